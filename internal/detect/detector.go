// Package detect turns parsed statement output into the reviewed account and
// transaction shape: it fingerprints the issuing bank, normalizes
// transactions, reconciles balances and derives the account presented for
// user review.
package detect

import (
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/shopspring/decimal"

	"github.com/dcastellanos/extracto/internal/domain"
)

// Issuer is a recognized statement issuer.
type Issuer struct {
	// Name is the canonical institution name.
	Name string
	// Format tags the statement layout family, used for logging and metrics.
	Format string
	// Confidence is 0-100: 100 for an exact fingerprint hit, lower for fuzzy
	// matches, 0 for the generic fallback.
	Confidence int
}

// FormatGeneric is the fallback when no fingerprint matches. Parsing still
// proceeds; the issuer is simply unknown.
const FormatGeneric = "GENERIC"

// fingerprints maps lowercase issuer markers to canonical issuers. Longer,
// more specific markers come first so "banco de bogota" wins over "banco".
var fingerprints = []struct {
	marker string
	name   string
	format string
}{
	{"bancolombia", "Bancolombia", "BANCOLOMBIA"},
	{"davivienda", "Davivienda", "DAVIVIENDA"},
	{"banco de bogota", "Banco de Bogotá", "BOGOTA"},
	{"banco de occidente", "Banco de Occidente", "OCCIDENTE"},
	{"banco popular", "Banco Popular", "POPULAR"},
	{"banco av villas", "Banco AV Villas", "AVVILLAS"},
	{"bbva", "BBVA Colombia", "BBVA"},
	{"scotiabank colpatria", "Scotiabank Colpatria", "COLPATRIA"},
	{"colpatria", "Scotiabank Colpatria", "COLPATRIA"},
	{"itau", "Itaú", "ITAU"},
	{"banco caja social", "Banco Caja Social", "CAJASOCIAL"},
	{"nequi", "Nequi", "NEQUI"},
	{"daviplata", "DaviPlata", "DAVIPLATA"},
	{"lulo bank", "Lulo Bank", "LULO"},
	{"banco falabella", "Banco Falabella", "FALABELLA"},
	{"banco agrario", "Banco Agrario", "AGRARIO"},
}

// DetectIssuer fingerprints the issuing bank from free-form issuer text.
// Exact substring match wins; otherwise a fuzzy pass catches OCR noise and
// odd casing. Unknown issuers fall back to the generic format.
func DetectIssuer(text string) Issuer {
	folded := fold(text)
	if folded == "" {
		return Issuer{Format: FormatGeneric}
	}

	for _, fp := range fingerprints {
		if strings.Contains(folded, fp.marker) {
			return Issuer{Name: fp.name, Format: fp.format, Confidence: 100}
		}
	}

	// Fuzzy pass over whitespace-normalized text. RankMatchNormalizedFold
	// returns the Levenshtein distance, -1 when no subsequence match exists.
	best := Issuer{Format: FormatGeneric}
	bestRank := -1
	for _, fp := range fingerprints {
		rank := fuzzy.RankMatchNormalizedFold(fp.marker, folded)
		if rank < 0 {
			continue
		}
		if bestRank == -1 || rank < bestRank {
			bestRank = rank
			best = Issuer{Name: fp.name, Format: fp.format, Confidence: 70}
		}
	}
	return best
}

func fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	r := strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n")
	return r.Replace(s)
}

// Detector builds the reviewed extraction result from parsed statement data.
type Detector struct{}

func New() *Detector { return &Detector{} }

// Detect assembles the account candidate and normalized transactions for one
// parsed statement. Reconciliation problems and duplicates become warnings on
// the result; Detect itself never fails.
func (d *Detector) Detect(meta domain.StatementMetadata, raw []domain.RawTransaction) *domain.ExtractionResult {
	issuer := DetectIssuer(meta.BankName)

	txs, warnings := Normalize(raw)

	accType := meta.AccountType
	if accType == "" {
		accType = domain.AccountOther
	}

	initial, w := initialBalance(meta, txs, accType)
	warnings = append(warnings, w...)

	confidence := 85
	if issuer.Format == FormatGeneric {
		confidence = 60
		warnings = append(warnings, "issuing bank not recognized, account details may be incomplete")
	}

	account := domain.DetectedAccount{
		Name:               accountName(issuer, accType),
		BankName:           issuer.Name,
		AccountNumberLast4: lastDigits(meta.AccountNumber, 4),
		AccountType:        accType,
		InitialBalance:     initial,
		Currency:           "COP",
		SuggestedColor:     ColorFor(accType),
		SuggestedIcon:      IconFor(accType),
		TransactionCount:   len(txs),
	}

	return &domain.ExtractionResult{
		Accounts:     []domain.DetectedAccount{account},
		Transactions: txs,
		Confidence:   confidence,
		Warnings:     warnings,
	}
}

// initialBalance resolves the balance the account had before the first
// transaction: the stated previous balance when the statement carries one,
// otherwise the current balance minus the signed transaction sum, otherwise
// zero. Debt-bearing account types store the balance as a negative amount.
func initialBalance(meta domain.StatementMetadata, txs []domain.NormalizedTransaction, accType domain.AccountType) (float64, []string) {
	var warnings []string

	signed := signedSum(txs)

	switch {
	case meta.PreviousBalance != nil:
		prev := decimal.NewFromFloat(*meta.PreviousBalance)
		if meta.CurrentBalance != nil {
			expected := prev.Add(signed)
			current := decimal.NewFromFloat(*meta.CurrentBalance)
			if !expected.Sub(current).Abs().LessThanOrEqual(decimal.NewFromFloat(0.01)) {
				warnings = append(warnings, fmt.Sprintf(
					"balance reconciliation mismatch: previous %s + movements %s = %s, statement says %s",
					prev.StringFixed(2), signed.StringFixed(2), expected.StringFixed(2), current.StringFixed(2)))
			}
		}
		return applyDebtSign(prev, accType), warnings

	case meta.CurrentBalance != nil:
		initial := decimal.NewFromFloat(*meta.CurrentBalance).Sub(signed)
		return applyDebtSign(initial, accType), warnings

	default:
		warnings = append(warnings, "statement carries no balances, initial balance set to 0")
		return 0, warnings
	}
}

// signedSum is the net movement of the statement: income positive, expenses
// negative. Transfers move money between the user's own accounts; whether
// they enter or leave this one is unknowable from the statement alone, so
// they are excluded.
func signedSum(txs []domain.NormalizedTransaction) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		amt := decimal.NewFromFloat(tx.Amount)
		switch tx.Type {
		case domain.TxIncome:
			sum = sum.Add(amt)
		case domain.TxExpense:
			sum = sum.Sub(amt)
		}
	}
	return sum
}

func applyDebtSign(v decimal.Decimal, accType domain.AccountType) float64 {
	if accType.DebtBearing() && v.IsPositive() {
		v = v.Neg()
	}
	return v.InexactFloat64()
}

var accountTypeLabels = map[domain.AccountType]string{
	domain.AccountSavings:    "Cuenta de Ahorros",
	domain.AccountChecking:   "Cuenta Corriente",
	domain.AccountCreditCard: "Tarjeta de Crédito",
	domain.AccountLoan:       "Crédito",
	domain.AccountCash:       "Efectivo",
	domain.AccountInvestment: "Inversión",
	domain.AccountOther:      "Cuenta",
}

func accountName(issuer Issuer, accType domain.AccountType) string {
	label := accountTypeLabels[accType]
	if issuer.Name == "" {
		return label
	}
	return label + " " + issuer.Name
}

func lastDigits(s string, n int) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) > n {
		return digits[len(digits)-n:]
	}
	return digits
}
