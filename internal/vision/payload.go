package vision

// payload is the wire shape the model is asked to produce. It stays separate
// from the domain types so a malformed response can be validated field by
// field before anything reaches the pipeline.
type payload struct {
	Accounts     []payloadAccount     `json:"accounts"`
	Transactions []payloadTransaction `json:"transactions"`
	Confidence   int                  `json:"confidence"`
	Warnings     []string             `json:"warnings"`
}

type payloadAccount struct {
	Name               string   `json:"name"`
	BankName           string   `json:"bank_name"`
	AccountNumberLast4 string   `json:"account_number_last4"`
	AccountType        string   `json:"account_type"`
	InitialBalance     *float64 `json:"initial_balance"`
	Currency           string   `json:"currency"`
}

type payloadTransaction struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	// Amount is a pointer so a null or absent amount is distinguishable from
	// a real zero and can be rejected instead of decoding to 0.
	Amount   *float64 `json:"amount"`
	Type     string   `json:"type"`
	Merchant string   `json:"merchant"`
	Balance  *float64 `json:"balance"`
}
