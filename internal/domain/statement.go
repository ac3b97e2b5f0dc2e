package domain

// RawTransaction is a transaction as the heuristic parser found it, before
// normalization. Amount keeps the source sign; Date keeps the source format.
type RawTransaction struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Type        TransactionType `json:"type,omitempty"`
	Balance     *float64        `json:"balance,omitempty"`
	Raw         string          `json:"raw,omitempty"`
}

// StatementMetadata is the header/footer information a statement carries
// about itself. It only exists to feed account detection and reconciliation;
// it is discarded once a DetectedAccount has been produced.
type StatementMetadata struct {
	AccountNumber   string      `json:"account_number,omitempty"`
	AccountType     AccountType `json:"account_type,omitempty"`
	BankName        string      `json:"bank_name,omitempty"`
	StartDate       string      `json:"start_date,omitempty"`
	EndDate         string      `json:"end_date,omitempty"`
	PreviousBalance *float64    `json:"previous_balance,omitempty"`
	CurrentBalance  *float64    `json:"current_balance,omitempty"`
	TotalCredits    *float64    `json:"total_credits,omitempty"`
	TotalDebits     *float64    `json:"total_debits,omitempty"`
}
