// Package statement parses extracted PDF text of Colombian bank statements
// into raw transactions and statement metadata. It is a pure transformation
// over normalized lines of text; nothing here touches the network or disk.
package statement

import (
	"errors"
	"strings"

	"github.com/dcastellanos/extracto/internal/domain"
)

// ErrNotStatement is returned when the text carries none of the column
// keywords a transaction table would have; the document is probably not a
// bank statement at all.
var ErrNotStatement = errors.New("statement: no transaction table markers found")

// tableKeywords are the Spanish column headers and totals markers that
// transaction-bearing statements carry. Matching is accent-insensitive.
var tableKeywords = []string{
	"fecha", "descripcion", "detalle", "concepto",
	"valor", "monto", "saldo",
	"credito", "debito", "abono", "cargo",
	"movimiento", "comprobante",
}

// ParseOutput is everything the parser recovers from one statement.
type ParseOutput struct {
	Transactions []domain.RawTransaction
	Metadata     domain.StatementMetadata
}

// Parser parses statement text. Stateless and safe for concurrent use.
type Parser struct{}

// New returns a statement parser.
func New() *Parser { return &Parser{} }

// Parse splits the text into trimmed, blank-filtered lines, verifies the
// document looks like a statement, then extracts metadata and per-line
// transactions.
func (p *Parser) Parse(text string) (*ParseOutput, error) {
	lines := splitLines(text)
	if !hasTableKeywords(lines) {
		return nil, ErrNotStatement
	}

	out := &ParseOutput{
		Metadata: extractMetadata(lines),
	}

	layout := detectLayout(lines)
	for _, line := range lines {
		if tx, ok := parseLine(line, layout); ok {
			out.Transactions = append(out.Transactions, tx)
		}
	}
	return out, nil
}

// splitLines right-trims every line and drops blank ones. Leading whitespace
// is preserved: column positions matter for debit/credit classification.
func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimRight(l, " \t\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

func hasTableKeywords(lines []string) bool {
	for _, line := range lines {
		folded := fold(line)
		for _, kw := range tableKeywords {
			if strings.Contains(folded, kw) {
				return true
			}
		}
	}
	return false
}

// fold lowercases and strips the accents that appear in Spanish headers so
// "Débito" and "DEBITO" compare equal.
func fold(s string) string {
	s = strings.ToLower(s)
	r := strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n")
	return r.Replace(s)
}

// columnLayout records the byte offsets of the debit, credit and balance
// column headers in the original header line, or -1 when the statement
// doesn't have that column. Offsets are measured on the raw line so they are
// directly comparable with money-token positions.
type columnLayout struct {
	debit, credit, balance int
}

var (
	debitHeaders  = []string{"debito", "cargos", "cargo", "retiros"}
	creditHeaders = []string{"credito", "abonos", "abono", "consignaciones"}
)

// foldedLine pairs an accent-folded copy of a line with a mapping from folded
// byte offsets back to byte offsets in the original. Folding shrinks accented
// runes ("é" is two bytes, "e" is one), so a match position in the folded
// text sits left of the real column by one byte per preceding accent.
type foldedLine struct {
	text    string
	offsets []int
}

func foldLine(line string) foldedLine {
	var b strings.Builder
	offsets := make([]int, 0, len(line))
	for i, r := range line {
		f := fold(string(r))
		b.WriteString(f)
		for j := 0; j < len(f); j++ {
			offsets = append(offsets, i)
		}
	}
	return foldedLine{text: b.String(), offsets: offsets}
}

// index returns the byte offset in the original line of the first folded
// occurrence of sub, or -1.
func (f foldedLine) index(sub string) int {
	if k := strings.Index(f.text, sub); k >= 0 {
		return f.offsets[k]
	}
	return -1
}

func (f foldedLine) indexAny(subs []string) int {
	for _, sub := range subs {
		if i := f.index(sub); i >= 0 {
			return i
		}
	}
	return -1
}

// detectLayout finds the table header line (it must name a date column and a
// description-like column) and records where the amount columns sit.
func detectLayout(lines []string) columnLayout {
	layout := columnLayout{debit: -1, credit: -1, balance: -1}
	for _, line := range lines {
		fl := foldLine(line)
		if !strings.Contains(fl.text, "fecha") {
			continue
		}
		if !strings.Contains(fl.text, "descripcion") &&
			!strings.Contains(fl.text, "detalle") &&
			!strings.Contains(fl.text, "concepto") {
			continue
		}
		layout.debit = fl.indexAny(debitHeaders)
		layout.credit = fl.indexAny(creditHeaders)
		layout.balance = fl.index("saldo")
		break
	}
	return layout
}

// transferCues mark movements between the user's own accounts. They refine
// the direction-based type, they never replace it.
var transferCues = []string{"transferencia", "traslado", "transf."}

// parseLine recognizes one transaction line: a date at the start, a
// description, and one or two trailing amounts (value, and running balance
// when the statement has a balance column).
func parseLine(line string, layout columnLayout) (domain.RawTransaction, bool) {
	lead := len(line) - len(strings.TrimLeft(line, " \t"))
	body := line[lead:]

	m := dateRe.FindString(body)
	if m == "" {
		return domain.RawTransaction{}, false
	}
	date, ok := NormalizeDate(m)
	if !ok {
		return domain.RawTransaction{}, false
	}

	rest := body[len(m):]
	tokens := findMoneyTokens(rest, lead+len(m))
	if len(tokens) == 0 {
		return domain.RawTransaction{}, false
	}

	var balance *float64
	amountTok := tokens[len(tokens)-1]
	if layout.balance >= 0 && len(tokens) >= 2 {
		b := tokens[len(tokens)-1].value.InexactFloat64()
		balance = &b
		amountTok = tokens[len(tokens)-2]
	}

	desc := strings.TrimSpace(line[lead+len(m) : amountTok.start])
	desc = collapseSpaces(desc)
	if desc == "" {
		return domain.RawTransaction{}, false
	}

	tx := domain.RawTransaction{
		Date:        date,
		Description: desc,
		Amount:      amountTok.value.InexactFloat64(),
		Type:        classify(amountTok, layout, desc),
		Balance:     balance,
		Raw:         strings.TrimSpace(line),
	}
	return tx, true
}

// classify derives the transaction type from structural cues: the column the
// amount sits in when the statement has split debit/credit columns, the sign
// otherwise. A transfer cue in the description refines the result.
func classify(tok moneyToken, layout columnLayout, desc string) domain.TransactionType {
	folded := fold(desc)
	for _, cue := range transferCues {
		if strings.Contains(folded, cue) {
			return domain.TxTransfer
		}
	}

	if layout.debit >= 0 && layout.credit >= 0 {
		if abs(tok.start-layout.credit) < abs(tok.start-layout.debit) {
			return domain.TxIncome
		}
		return domain.TxExpense
	}

	if tok.value.IsNegative() {
		return domain.TxExpense
	}
	return domain.TxIncome
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
