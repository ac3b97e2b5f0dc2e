package vision

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{
			"plain object",
			`{"confidence": 90}`,
			`{"confidence": 90}`,
			true,
		},
		{
			"fenced json",
			"```json\n{\"confidence\": 90}\n```",
			`{"confidence": 90}`,
			true,
		},
		{
			"prose around object",
			`Here is the result: {"a": 1} Hope it helps!`,
			`{"a": 1}`,
			true,
		},
		{
			"nested braces",
			`{"a": {"b": {"c": 1}}}`,
			`{"a": {"b": {"c": 1}}}`,
			true,
		},
		{
			"braces inside strings",
			`{"description": "PAGO {REF} }{", "n": 1}`,
			`{"description": "PAGO {REF} }{", "n": 1}`,
			true,
		},
		{
			"escaped quote inside string",
			`{"d": "dijo \"hola\" ayer"}`,
			`{"d": "dijo \"hola\" ayer"}`,
			true,
		},
		{
			"array value",
			`[{"a": 1}, {"b": 2}]`,
			`[{"a": 1}, {"b": 2}]`,
			true,
		},
		{
			"unbalanced",
			`{"a": 1`,
			"",
			false,
		},
		{
			"no json at all",
			"no puedo leer el documento",
			"",
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.in)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateLowConfidenceWarns(t *testing.T) {
	res := validate(&payload{Confidence: 30})
	assert.Equal(t, 30, res.Confidence)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "low extraction confidence")
}

func amt(v float64) *float64 { return &v }

func TestValidateDropsInvalidEntries(t *testing.T) {
	res := validate(&payload{
		Confidence: 80,
		Accounts: []payloadAccount{
			{Name: "", AccountType: "SAVINGS"},
			{Name: "Cuenta", AccountType: "MAGIC"},
		},
		Transactions: []payloadTransaction{
			{Date: "05/12/2023", Description: "fecha no ISO", Amount: amt(10), Type: "INCOME"},
			{Date: "2023-12-05", Description: "", Amount: amt(10), Type: "INCOME"},
			{Date: "2023-12-05", Description: "tipo raro", Amount: amt(10), Type: "REFUND"},
			{Date: "2023-12-05", Description: "valida", Amount: amt(-10), Type: "EXPENSE"},
		},
	})

	// Unknown account type degrades to OTHER instead of dropping the account.
	require.Len(t, res.Accounts, 1)
	assert.Equal(t, "Cuenta", res.Accounts[0].Name)

	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "valida", res.Transactions[0].Description)
	assert.Equal(t, 10.0, res.Transactions[0].Amount) // sign normalized away
	assert.Len(t, res.Warnings, 5)
}

func TestValidateDropsNullAmount(t *testing.T) {
	// A null amount must not slip through as a zero-value transaction.
	raw := `{
		"transactions": [
			{"date": "2023-12-05", "description": "PAGO SIN VALOR", "amount": null, "type": "EXPENSE"},
			{"date": "2023-12-06", "description": "RETIRO CAJERO", "amount": 50000, "type": "EXPENSE"}
		],
		"confidence": 80
	}`
	var p payload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	res := validate(&p)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "RETIRO CAJERO", res.Transactions[0].Description)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "missing amount")
}
