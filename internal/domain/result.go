package domain

import "strings"

// AccountType classifies a detected account. The set is closed; anything the
// extraction sources report outside of it must be mapped or rejected upstream.
type AccountType string

const (
	AccountSavings    AccountType = "SAVINGS"
	AccountChecking   AccountType = "CHECKING"
	AccountCreditCard AccountType = "CREDIT_CARD"
	AccountLoan       AccountType = "LOAN"
	AccountCash       AccountType = "CASH"
	AccountInvestment AccountType = "INVESTMENT"
	AccountOther      AccountType = "OTHER"
)

// ParseAccountType maps a free-form type string onto the closed enum.
func ParseAccountType(s string) (AccountType, bool) {
	switch AccountType(strings.ToUpper(strings.TrimSpace(s))) {
	case AccountSavings:
		return AccountSavings, true
	case AccountChecking:
		return AccountChecking, true
	case AccountCreditCard:
		return AccountCreditCard, true
	case AccountLoan:
		return AccountLoan, true
	case AccountCash:
		return AccountCash, true
	case AccountInvestment:
		return AccountInvestment, true
	case AccountOther:
		return AccountOther, true
	}
	return "", false
}

// DebtBearing reports whether balances of this account type represent
// outstanding debt and are stored as negative amounts.
func (t AccountType) DebtBearing() bool {
	return t == AccountCreditCard || t == AccountLoan
}

// TransactionType carries the direction of a transaction. Amounts are always
// non-negative magnitudes; direction lives here and only here.
type TransactionType string

const (
	TxIncome   TransactionType = "INCOME"
	TxExpense  TransactionType = "EXPENSE"
	TxTransfer TransactionType = "TRANSFER"
)

// ExtractionResult is the reviewed output of a completed extraction. It is
// owned by the job that produced it and read-only for the confirmation step.
type ExtractionResult struct {
	Accounts     []DetectedAccount       `json:"accounts"`
	Transactions []NormalizedTransaction `json:"transactions"`
	Confidence   int                     `json:"confidence"`
	Warnings     []string                `json:"warnings"`
}

// DetectedAccount is one reconciled account candidate presented for review.
type DetectedAccount struct {
	Name               string      `json:"name"`
	BankName           string      `json:"bank_name,omitempty"`
	AccountNumberLast4 string      `json:"account_number_last4,omitempty"`
	AccountType        AccountType `json:"account_type"`
	InitialBalance     float64     `json:"initial_balance"`
	Currency           string      `json:"currency"`
	SuggestedColor     string      `json:"suggested_color"`
	SuggestedIcon      string      `json:"suggested_icon"`
	TransactionCount   int         `json:"transaction_count"`
}

// NormalizedTransaction is a single transaction in canonical form.
// Date is an ISO calendar date (YYYY-MM-DD). Amount is always >= 0.
type NormalizedTransaction struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Type        TransactionType `json:"type"`
	Merchant    string          `json:"merchant,omitempty"`
	Category    string          `json:"category,omitempty"`
	Balance     *float64        `json:"balance,omitempty"`
	RawData     string          `json:"raw_data,omitempty"`
}
