package statement

import (
	"regexp"
	"strings"

	"github.com/dcastellanos/extracto/internal/domain"
)

var (
	accountNumberRe = regexp.MustCompile(`(?i)(?:cuenta|producto|tarjeta)[^\d]{0,20}((?:\d[\s*-]?){6,20}\d)`)
	periodRe        = regexp.MustCompile(`(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\s*(?:al?|hasta|-)\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`)
)

// bankMarkers maps issuer text as it appears on statements to the canonical
// bank name. Order matters: more specific names come before substrings of
// them (bancolombia before banco).
var bankMarkers = []struct {
	marker string
	name   string
}{
	{"bancolombia", "Bancolombia"},
	{"davivienda", "Davivienda"},
	{"banco de bogota", "Banco de Bogotá"},
	{"banco de occidente", "Banco de Occidente"},
	{"banco popular", "Banco Popular"},
	{"banco av villas", "Banco AV Villas"},
	{"bbva", "BBVA Colombia"},
	{"scotiabank colpatria", "Scotiabank Colpatria"},
	{"colpatria", "Scotiabank Colpatria"},
	{"itau", "Itaú"},
	{"banco caja social", "Banco Caja Social"},
	{"nequi", "Nequi"},
	{"daviplata", "DaviPlata"},
	{"lulo bank", "Lulo Bank"},
	{"nu colombia", "Nu"},
	{"rappipay", "RappiPay"},
	{"falabella", "Banco Falabella"},
	{"banco agrario", "Banco Agrario"},
}

// accountTypeMarkers maps statement wording to account types. Checked in
// order; "tarjeta de credito" must win over "cuenta corriente" elsewhere in
// the header, so credit markers come first.
var accountTypeMarkers = []struct {
	marker string
	typ    domain.AccountType
}{
	{"tarjeta de credito", domain.AccountCreditCard},
	{"tarjeta credito", domain.AccountCreditCard},
	{"credito rotativo", domain.AccountLoan},
	{"libre inversion", domain.AccountLoan},
	{"prestamo", domain.AccountLoan},
	{"cuenta de ahorros", domain.AccountSavings},
	{"cuenta ahorros", domain.AccountSavings},
	{"cuenta corriente", domain.AccountChecking},
	{"fondo de inversion", domain.AccountInvestment},
	{"fiducuenta", domain.AccountInvestment},
}

// balanceMarkers are the labels that precede header/footer balances and
// totals. The first amount on the same line as a marker wins.
var balanceMarkers = []struct {
	markers []string
	assign  func(md *domain.StatementMetadata, v float64)
}{
	{[]string{"saldo anterior", "saldo inicial"}, func(md *domain.StatementMetadata, v float64) {
		if md.PreviousBalance == nil {
			md.PreviousBalance = &v
		}
	}},
	{[]string{"saldo actual", "saldo final", "nuevo saldo"}, func(md *domain.StatementMetadata, v float64) {
		if md.CurrentBalance == nil {
			md.CurrentBalance = &v
		}
	}},
	{[]string{"total abonos", "total creditos", "total consignaciones"}, func(md *domain.StatementMetadata, v float64) {
		if md.TotalCredits == nil {
			md.TotalCredits = &v
		}
	}},
	{[]string{"total cargos", "total debitos", "total retiros"}, func(md *domain.StatementMetadata, v float64) {
		if md.TotalDebits == nil {
			md.TotalDebits = &v
		}
	}},
}

// extractMetadata scans every line for header and footer facts. Fields stay
// zero when the statement doesn't state them; detection downstream fills the
// gaps from the transactions themselves.
func extractMetadata(lines []string) domain.StatementMetadata {
	var md domain.StatementMetadata

	for _, line := range lines {
		folded := fold(line)

		if md.BankName == "" {
			for _, b := range bankMarkers {
				if strings.Contains(folded, b.marker) {
					md.BankName = b.name
					break
				}
			}
		}

		if md.AccountType == "" {
			for _, t := range accountTypeMarkers {
				if strings.Contains(folded, t.marker) {
					md.AccountType = t.typ
					break
				}
			}
		}

		if md.AccountNumber == "" {
			if m := accountNumberRe.FindStringSubmatch(line); m != nil {
				md.AccountNumber = compactDigits(m[1])
			}
		}

		if md.StartDate == "" {
			if m := periodRe.FindStringSubmatch(line); m != nil {
				if start, ok := NormalizeDate(m[1]); ok {
					if end, ok := NormalizeDate(m[2]); ok {
						md.StartDate, md.EndDate = start, end
					}
				}
			}
		}

		for _, bm := range balanceMarkers {
			if !containsAny(folded, bm.markers) {
				continue
			}
			if tokens := findMoneyTokens(line, 0); len(tokens) > 0 {
				bm.assign(&md, tokens[0].value.InexactFloat64())
			}
		}
	}
	return md
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// compactDigits keeps digits and masking asterisks, dropping the spaces and
// dashes statements group account numbers with.
func compactDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '*' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
