package normalize

import "strings"

// ConfidenceThreshold gates model-suggested canonical terms: below it the
// user's own wording is kept verbatim instead of a guessed term.
const ConfidenceThreshold = 0.65

type termRule struct {
	keywords []string
	term     string
}

// Ordered: first match wins. Colloquial Rioplatense descriptions mapped to
// the terms the report collaborator expects.
var termRules = []termRule{
	{[]string{"presion alta", "presión alta", "hipertension", "hipertensión", "hta"}, "Hipertensión arterial"},
	{[]string{"azucar alta", "azúcar alta", "azucar en sangre", "diabetes", "diabetico", "diabético"}, "Diabetes"},
	{[]string{"colesterol", "dislipemia", "trigliceridos", "triglicéridos"}, "Dislipemia"},
	{[]string{"infarto", "iam"}, "Infarto de miocardio"},
	{[]string{"arritmia", "palpitaciones"}, "Arritmia"},
	{[]string{"asma"}, "Asma"},
	{[]string{"epoc", "enfisema", "bronquitis cronica", "bronquitis crónica"}, "EPOC"},
	{[]string{"apnea", "ronca", "ronquido"}, "Apnea del sueño"},
	{[]string{"tiroides", "hipotiroidismo"}, "Hipotiroidismo"},
	{[]string{"convulsiones", "epilepsia"}, "Epilepsia"},
	{[]string{"acv", "derrame"}, "ACV previo"},
}

// CanonicalTerm maps a free-text description to a canonical clinical term.
// When no rule matches it falls back to the capitalized raw text and reports
// matched=false.
func CanonicalTerm(text string) (term string, matched bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return "", false
	}
	for _, rule := range termRules {
		for _, kw := range rule.keywords {
			if strings.Contains(t, kw) {
				return rule.term, true
			}
		}
	}
	return CapitalizeName(t), false
}
