package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcastellanos/extracto/internal/domain"
)

func TestDetectIssuer(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantName   string
		wantFormat string
	}{
		{"exact", "BANCOLOMBIA S.A.", "Bancolombia", "BANCOLOMBIA"},
		{"accented", "Banco de Bogotá", "Banco de Bogotá", "BOGOTA"},
		{"embedded", "Extracto Nequi diciembre", "Nequi", "NEQUI"},
		{"unknown", "Cooperativa El Porvenir", "", FormatGeneric},
		{"empty", "", "", FormatGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectIssuer(tt.text)
			assert.Equal(t, tt.wantName, got.Name)
			assert.Equal(t, tt.wantFormat, got.Format)
		})
	}
}

func ptr(v float64) *float64 { return &v }

func TestDetectInitialBalanceFromPrevious(t *testing.T) {
	meta := domain.StatementMetadata{
		BankName:        "Bancolombia",
		AccountType:     domain.AccountSavings,
		AccountNumber:   "12345678901",
		PreviousBalance: ptr(1000000),
		CurrentBalance:  ptr(3350000),
	}
	raw := []domain.RawTransaction{
		{Date: "2023-12-05", Description: "PAGO NOMINA", Amount: 2500000, Type: domain.TxIncome},
		{Date: "2023-12-10", Description: "COMPRA EXITO", Amount: 150000, Type: domain.TxExpense},
	}

	res := New().Detect(meta, raw)

	require.Len(t, res.Accounts, 1)
	acc := res.Accounts[0]
	assert.Equal(t, "Bancolombia", acc.BankName)
	assert.Equal(t, "8901", acc.AccountNumberLast4)
	assert.InDelta(t, 1000000.0, acc.InitialBalance, 0.001)
	assert.Equal(t, 2, acc.TransactionCount)
	assert.Empty(t, res.Warnings) // 1,000,000 + 2,350,000 = 3,350,000: reconciles
}

func TestDetectReconciliationMismatchWarns(t *testing.T) {
	meta := domain.StatementMetadata{
		BankName:        "Davivienda",
		AccountType:     domain.AccountSavings,
		PreviousBalance: ptr(1000000),
		CurrentBalance:  ptr(9999999),
	}
	raw := []domain.RawTransaction{
		{Date: "2024-01-05", Description: "ABONO", Amount: 100, Type: domain.TxIncome},
	}

	res := New().Detect(meta, raw)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "reconciliation mismatch")
	// The stated previous balance still wins over the computed one.
	assert.InDelta(t, 1000000.0, res.Accounts[0].InitialBalance, 0.001)
}

func TestDetectBackwardComputedInitialBalance(t *testing.T) {
	meta := domain.StatementMetadata{
		BankName:       "BBVA",
		AccountType:    domain.AccountChecking,
		CurrentBalance: ptr(500000),
	}
	raw := []domain.RawTransaction{
		{Date: "2024-02-01", Description: "CONSIGNACION", Amount: 300000, Type: domain.TxIncome},
		{Date: "2024-02-02", Description: "RETIRO", Amount: 100000, Type: domain.TxExpense},
		// Transfers are excluded from the signed sum.
		{Date: "2024-02-03", Description: "TRANSFERENCIA PROPIA", Amount: 50000, Type: domain.TxTransfer},
	}

	res := New().Detect(meta, raw)
	// 500,000 - (300,000 - 100,000) = 300,000
	assert.InDelta(t, 300000.0, res.Accounts[0].InitialBalance, 0.001)
}

func TestDetectNoBalancesDefaultsToZero(t *testing.T) {
	res := New().Detect(domain.StatementMetadata{BankName: "Nequi"}, nil)
	assert.Zero(t, res.Accounts[0].InitialBalance)
	assert.NotEmpty(t, res.Warnings)
}

func TestDetectDebtBearingBalanceIsNegative(t *testing.T) {
	meta := domain.StatementMetadata{
		BankName:        "Bancolombia",
		AccountType:     domain.AccountCreditCard,
		PreviousBalance: ptr(750000), // statements print debt as positive
	}
	res := New().Detect(meta, nil)
	assert.InDelta(t, -750000.0, res.Accounts[0].InitialBalance, 0.001)
	assert.Equal(t, "credit-card", res.Accounts[0].SuggestedIcon)
}

func TestNormalizeDedupAndSign(t *testing.T) {
	raw := []domain.RawTransaction{
		{Date: "2024-03-01", Description: "COMPRA", Amount: -50000},
		{Date: "2024-03-01", Description: "COMPRA", Amount: -50000}, // exact duplicate
		{Date: "2024-03-01", Description: "COMPRA", Amount: -50001}, // different amount survives
	}

	txs, warnings := Normalize(raw)
	require.Len(t, txs, 2)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "duplicate transaction dropped")

	for _, tx := range txs {
		assert.GreaterOrEqual(t, tx.Amount, 0.0)
		assert.Equal(t, domain.TxExpense, tx.Type)
	}
}

func TestDisplayDefaultsAreStable(t *testing.T) {
	assert.Equal(t, ColorFor(domain.AccountSavings), ColorFor(domain.AccountSavings))
	assert.Equal(t, "wallet", IconFor(domain.AccountType("UNKNOWN")))
	assert.NotEmpty(t, ColorFor(domain.AccountType("UNKNOWN")))
}
