package statement

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// moneyRe matches amounts as Colombian statements print them: with a leading
// peso sign, with thousands separators, or with an explicit decimal part.
// Bare integers are deliberately not matched so document and reference
// numbers inside descriptions don't get mistaken for amounts. Negative
// amounts appear with a leading or trailing minus or wrapped in parentheses.
var moneyRe = regexp.MustCompile(
	`-?\(?\$\s?\d+(?:[.,]\d{3})*(?:[.,]\d{1,2})?\)?-?` +
		`|-?\(?\d{1,3}(?:[.,]\d{3})+(?:[.,]\d{1,2})?\)?-?` +
		`|-?\(?\d+[.,]\d{1,2}\)?-?`)

// moneyToken is an amount found inside a line, with its byte offsets so the
// parser can reason about column positions.
type moneyToken struct {
	start, end int
	text       string
	value      decimal.Decimal
}

func findMoneyTokens(s string, base int) []moneyToken {
	var tokens []moneyToken
	for _, loc := range moneyRe.FindAllStringIndex(s, -1) {
		text := s[loc[0]:loc[1]]
		v, err := ParseAmount(text)
		if err != nil {
			continue
		}
		tokens = append(tokens, moneyToken{
			start: base + loc[0],
			end:   base + loc[1],
			text:  text,
			value: v,
		})
	}
	return tokens
}

// ParseAmount parses a money string under either numeric convention:
// thousands "." with decimal "," (1.234.567,89) or the reverse
// (1,234,567.89). Parentheses and a leading or trailing minus mean negative.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("statement: empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, "$", ""))
	s = strings.ReplaceAll(s, " ", "")

	plain, err := stripSeparators(s)
	if err != nil {
		return decimal.Zero, err
	}

	v, err := decimal.NewFromString(plain)
	if err != nil {
		return decimal.Zero, fmt.Errorf("statement: invalid amount %q: %w", s, err)
	}
	if negative {
		v = v.Neg()
	}
	return v, nil
}

// stripSeparators resolves which of "." and "," is the decimal separator and
// returns the number in plain form. When both appear, the right-most one is
// decimal. A lone separator followed by one or two digits is decimal;
// anything else is a thousands separator.
func stripSeparators(s string) (string, error) {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && isDecimalTail(s[lastComma+1:]) {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(s, ".") == 1 && isDecimalTail(s[lastDot+1:]) {
			// already plain decimal form
		} else {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	if s == "" {
		return "", fmt.Errorf("statement: no digits in amount")
	}
	return s, nil
}

func isDecimalTail(tail string) bool {
	return len(tail) >= 1 && len(tail) <= 2
}
