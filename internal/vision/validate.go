package vision

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dcastellanos/extracto/internal/domain"
)

// minConfidence is the review threshold: results below it still flow to
// review, flagged so the user knows to double-check everything.
const minConfidence = 50

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// validate turns a decoded model payload into a domain result, dropping
// entries that fail the schema and recording a warning for each. Validation
// never aborts: a partially usable extraction is worth more than none.
func validate(p *payload) *domain.ExtractionResult {
	res := &domain.ExtractionResult{
		Confidence: clampConfidence(p.Confidence),
		Warnings:   append([]string(nil), p.Warnings...),
	}

	if res.Confidence < minConfidence {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("low extraction confidence (%d), review all values carefully", res.Confidence))
	}

	for i, a := range p.Accounts {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("account %d dropped: missing name", i+1))
			continue
		}
		accType, ok := domain.ParseAccountType(a.AccountType)
		if !ok {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("account %q: unknown type %q, using OTHER", name, a.AccountType))
			accType = domain.AccountOther
		}
		var initial float64
		if a.InitialBalance != nil {
			initial = *a.InitialBalance
		}
		currency := strings.ToUpper(strings.TrimSpace(a.Currency))
		if currency == "" {
			currency = "COP"
		}
		res.Accounts = append(res.Accounts, domain.DetectedAccount{
			Name:               name,
			BankName:           strings.TrimSpace(a.BankName),
			AccountNumberLast4: last4(a.AccountNumberLast4),
			AccountType:        accType,
			InitialBalance:     initial,
			Currency:           currency,
		})
	}

	for i, tx := range p.Transactions {
		if !isoDateRe.MatchString(tx.Date) {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("transaction %d dropped: invalid date %q", i+1, tx.Date))
			continue
		}
		desc := strings.TrimSpace(tx.Description)
		if desc == "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("transaction %d dropped: missing description", i+1))
			continue
		}
		typ := domain.TransactionType(strings.ToUpper(strings.TrimSpace(tx.Type)))
		if typ != domain.TxIncome && typ != domain.TxExpense && typ != domain.TxTransfer {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("transaction %d dropped: unknown type %q", i+1, tx.Type))
			continue
		}
		if tx.Amount == nil {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("transaction %d dropped: missing amount", i+1))
			continue
		}
		amount := *tx.Amount
		if amount < 0 {
			amount = -amount
		}
		res.Transactions = append(res.Transactions, domain.NormalizedTransaction{
			Date:        tx.Date,
			Description: desc,
			Amount:      amount,
			Type:        typ,
			Merchant:    strings.TrimSpace(tx.Merchant),
			Balance:     tx.Balance,
		})
	}

	// Transactions can only be attributed when there is a single account.
	if len(res.Accounts) == 1 {
		res.Accounts[0].TransactionCount = len(res.Transactions)
	}
	return res
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

func last4(s string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) > 4 {
		return digits[len(digits)-4:]
	}
	return digits
}
