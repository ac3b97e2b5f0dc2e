package statement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmountBothConventions(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.234.567,89", "1234567.89"},
		{"1,234,567.89", "1234567.89"},
		{"$ 2.500.000,00", "2500000"},
		{"89.900", "89900"},   // thousands dot, no decimals
		{"89,900", "89900"},   // thousands comma, no decimals
		{"89.90", "89.9"},     // two-digit tail is decimal
		{"123,5", "123.5"},    // one-digit tail is decimal
		{"-200.000,00", "-200000"},
		{"(150.000,00)", "-150000"},
		{"500.000,00-", "-500000"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseAmountRejectsGarbage(t *testing.T) {
	_, err := ParseAmount("")
	assert.Error(t, err)
}

func TestFindMoneyTokensSkipsBareIntegers(t *testing.T) {
	tokens := findMoneyTokens("FACTURA 987654 POR 89.900,00", 0)
	require.Len(t, tokens, 1)
	assert.Equal(t, "89.900,00", tokens[0].text)
}

func TestFindMoneyTokensOffsets(t *testing.T) {
	line := "ABONO   1.000,00   2.000,00"
	tokens := findMoneyTokens(line, 10)
	require.Len(t, tokens, 2)
	assert.Equal(t, 10+8, tokens[0].start)
	assert.Equal(t, "2.000,00", tokens[1].text)
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"31/12/2023", "2023-12-31", true},
		{"31-12-2023", "2023-12-31", true},
		{"5/1/24", "2024-01-05", true},
		{"2023-12-31", "2023-12-31", true},
		{"31/02/2024", "", false}, // February has no 31st
		{"hoy", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
