// Package categorize assigns spending categories and clean merchant names to
// normalized transactions. The default implementation is a rule table of
// Colombian merchants matched by substring first and fuzzily second, so
// statement suffixes like "EXITO CALLE 80 BOGOTA" still land on the merchant.
package categorize

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/dcastellanos/extracto/internal/domain"
)

// Categorizer infers a category and merchant from a transaction description.
// Empty returns mean "unknown"; callers leave the transaction untouched.
type Categorizer interface {
	Categorize(description string) (category, merchant string)
}

type rule struct {
	pattern  string // uppercase, accent-folded
	merchant string
	category string
}

// defaultRules covers the merchants that dominate Colombian statements.
// Patterns are matched against folded descriptions.
var defaultRules = []rule{
	{"EXITO", "Éxito", "Mercado"},
	{"CARULLA", "Carulla", "Mercado"},
	{"JUMBO", "Jumbo", "Mercado"},
	{"OLIMPICA", "Olímpica", "Mercado"},
	{"D1 ", "Tiendas D1", "Mercado"},
	{"ARA ", "Tiendas Ara", "Mercado"},
	{"RAPPI", "Rappi", "Domicilios"},
	{"IFOOD", "iFood", "Domicilios"},
	{"UBER EATS", "Uber Eats", "Domicilios"},
	{"UBER", "Uber", "Transporte"},
	{"DIDI", "DiDi", "Transporte"},
	{"CABIFY", "Cabify", "Transporte"},
	{"TERPEL", "Terpel", "Transporte"},
	{"PRIMAX", "Primax", "Transporte"},
	{"NETFLIX", "Netflix", "Suscripciones"},
	{"SPOTIFY", "Spotify", "Suscripciones"},
	{"DISNEY", "Disney+", "Suscripciones"},
	{"HBO", "HBO Max", "Suscripciones"},
	{"CLARO", "Claro", "Servicios"},
	{"MOVISTAR", "Movistar", "Servicios"},
	{"TIGO", "Tigo", "Servicios"},
	{"ETB", "ETB", "Servicios"},
	{"EPM", "EPM", "Servicios"},
	{"CODENSA", "Enel Codensa", "Servicios"},
	{"ACUEDUCTO", "Acueducto", "Servicios"},
	{"FARMATODO", "Farmatodo", "Salud"},
	{"CRUZ VERDE", "Cruz Verde", "Salud"},
	{"DROGAS LA REBAJA", "Drogas La Rebaja", "Salud"},
	{"COLSANITAS", "Colsanitas", "Salud"},
	{"SURA", "Sura", "Salud"},
	{"MCDONALDS", "McDonald's", "Restaurantes"},
	{"MC DONALDS", "McDonald's", "Restaurantes"},
	{"EL CORRAL", "El Corral", "Restaurantes"},
	{"CREPES", "Crepes & Waffles", "Restaurantes"},
	{"JUAN VALDEZ", "Juan Valdez", "Restaurantes"},
	{"STARBUCKS", "Starbucks", "Restaurantes"},
	{"KFC", "KFC", "Restaurantes"},
	{"FRISBY", "Frisby", "Restaurantes"},
	{"NOMINA", "", "Salario"},
	{"SALARIO", "", "Salario"},
	{"HONORARIOS", "", "Salario"},
	{"INTERESES", "", "Rendimientos"},
	{"RENDIMIENTOS", "", "Rendimientos"},
	{"CUOTA DE MANEJO", "", "Comisiones"},
	{"COMISION", "", "Comisiones"},
	{"GMF", "", "Impuestos"},
	{"4X1000", "", "Impuestos"},
	{"RETENCION", "", "Impuestos"},
	{"CINE COLOMBIA", "Cine Colombia", "Entretenimiento"},
	{"AMAZON", "Amazon", "Compras"},
	{"MERCADOLIBRE", "MercadoLibre", "Compras"},
	{"FALABELLA", "Falabella", "Compras"},
	{"HOMECENTER", "Homecenter", "Hogar"},
	{"AVIANCA", "Avianca", "Viajes"},
	{"LATAM", "LATAM", "Viajes"},
	{"AIRBNB", "Airbnb", "Viajes"},
	{"BOOKING", "Booking.com", "Viajes"},
}

// fuzzyThreshold is the minimum rank-based score a fuzzy hit needs. High on
// purpose: a wrong category is worse than none at review time.
const fuzzyThreshold = 80

// Keyword is the default rule-table categorizer. Stateless and safe for
// concurrent use.
type Keyword struct {
	rules []rule
}

var _ Categorizer = (*Keyword)(nil)

// NewKeyword returns the built-in Colombian merchant categorizer.
func NewKeyword() *Keyword {
	return &Keyword{rules: defaultRules}
}

// Categorize matches the description against the rule table. Substring hits
// win immediately; otherwise the closest fuzzy match above the threshold is
// used. Returns empty strings when nothing matches.
func (k *Keyword) Categorize(description string) (string, string) {
	desc := foldUpper(description)
	if desc == "" {
		return "", ""
	}

	for _, r := range k.rules {
		if strings.Contains(desc, r.pattern) {
			return r.category, r.merchant
		}
	}

	best := -1
	var hit rule
	for _, r := range k.rules {
		pattern := strings.TrimSpace(r.pattern)
		rank := fuzzy.RankMatchFold(pattern, desc)
		if rank < 0 {
			continue
		}
		score := scoreRank(rank, len(pattern), len(desc))
		if score >= fuzzyThreshold && score > best {
			best = score
			hit = r
		}
	}
	if best < 0 {
		return "", ""
	}
	return hit.category, hit.merchant
}

// scoreRank converts a fuzzy rank (Levenshtein distance of the matched
// subsequence) into a 0-100 score weighted by how much of the description the
// pattern covers.
func scoreRank(rank, patternLen, descLen int) int {
	if patternLen == 0 || descLen == 0 {
		return 0
	}
	score := 100 - (rank*100)/patternLen
	coverage := (patternLen * 100) / descLen
	if coverage < 30 {
		score -= 20
	}
	if score < 0 {
		return 0
	}
	return score
}

// Apply fills Category and Merchant on every transaction that doesn't already
// have them. Existing values (e.g. from vision extraction) are kept.
func Apply(c Categorizer, txs []domain.NormalizedTransaction) {
	for i := range txs {
		if txs[i].Category != "" {
			continue
		}
		category, merchant := c.Categorize(txs[i].Description)
		if category == "" {
			continue
		}
		txs[i].Category = category
		if txs[i].Merchant == "" {
			txs[i].Merchant = merchant
		}
	}
}

func foldUpper(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	r := strings.NewReplacer("Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ñ", "N")
	return r.Replace(s)
}
