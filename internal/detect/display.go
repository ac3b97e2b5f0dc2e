package detect

import "github.com/dcastellanos/extracto/internal/domain"

// Display defaults per account type. Deterministic so the same statement
// always produces the same review card.
var (
	colors = map[domain.AccountType]string{
		domain.AccountSavings:    "#2E7D32",
		domain.AccountChecking:   "#1565C0",
		domain.AccountCreditCard: "#C62828",
		domain.AccountLoan:       "#EF6C00",
		domain.AccountCash:       "#6A1B9A",
		domain.AccountInvestment: "#00838F",
		domain.AccountOther:      "#546E7A",
	}

	icons = map[domain.AccountType]string{
		domain.AccountSavings:    "piggy-bank",
		domain.AccountChecking:   "landmark",
		domain.AccountCreditCard: "credit-card",
		domain.AccountLoan:       "hand-coins",
		domain.AccountCash:       "banknote",
		domain.AccountInvestment: "trending-up",
		domain.AccountOther:      "wallet",
	}
)

// ColorFor returns the suggested display color for an account type.
func ColorFor(t domain.AccountType) string {
	if c, ok := colors[t]; ok {
		return c
	}
	return colors[domain.AccountOther]
}

// IconFor returns the suggested display icon for an account type.
func IconFor(t domain.AccountType) string {
	if i, ok := icons[t]; ok {
		return i
	}
	return icons[domain.AccountOther]
}
