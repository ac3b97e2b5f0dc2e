package detect

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dcastellanos/extracto/internal/domain"
)

// Normalize converts raw parsed transactions into canonical form: amounts
// become non-negative magnitudes with direction carried by the type, and
// exact duplicates on (date, amount, description) are dropped keeping the
// first occurrence, each drop recorded as a warning.
func Normalize(raw []domain.RawTransaction) ([]domain.NormalizedTransaction, []string) {
	var (
		out      []domain.NormalizedTransaction
		warnings []string
		seen     = map[string]bool{}
	)

	for _, r := range raw {
		typ := r.Type
		if typ == "" {
			if r.Amount < 0 {
				typ = domain.TxExpense
			} else {
				typ = domain.TxIncome
			}
		}

		amount := r.Amount
		if amount < 0 {
			amount = -amount
		}

		key := dedupKey(r.Date, amount, r.Description)
		if seen[key] {
			warnings = append(warnings, fmt.Sprintf(
				"duplicate transaction dropped: %s %q %s", r.Date, r.Description,
				decimal.NewFromFloat(amount).StringFixed(2)))
			continue
		}
		seen[key] = true

		out = append(out, domain.NormalizedTransaction{
			Date:        r.Date,
			Description: r.Description,
			Amount:      amount,
			Type:        typ,
			Balance:     r.Balance,
			RawData:     r.Raw,
		})
	}
	return out, warnings
}

// dedupKey rounds the amount to cents so float noise can't split duplicates.
func dedupKey(date string, amount float64, description string) string {
	return date + "|" + decimal.NewFromFloat(amount).StringFixed(2) + "|" + description
}
