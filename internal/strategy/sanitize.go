package strategy

import (
	"strings"
)

// maxQueryTerms bounds URL length on the downstream API.
const maxQueryTerms = 6

// stopWords are connective tokens that add no search value. Swedish first,
// since auction titles in the home market are Swedish, plus common English.
var stopWords = map[string]struct{}{
	"och":  {},
	"med":  {},
	"för":  {},
	"från": {},
	"samt": {},
	"utan": {},
	"till": {},
	"av":   {},
	"på":   {},
	"en":   {},
	"ett":  {},
	"and":  {},
	"with": {},
	"the":  {},
	"of":   {},
	"for":  {},
}

// unitWords are measurement tokens that appear in catalog text but hurt
// recall when sent as required search terms.
var unitWords = map[string]struct{}{
	"mm":      {},
	"cm":      {},
	"meter":   {},
	"gram":    {},
	"g":       {},
	"kg":      {},
	"karat":   {},
	"ct":      {},
	"diam":    {},
	"längd":   {},
	"höjd":    {},
	"bredd":   {},
	"vikt":    {},
	"storlek": {},
}

// Sanitize prepares a raw query for the auction API: slashes and commas are
// stripped, whitespace collapsed, stop-words and unit tokens dropped, the
// term count capped, and every remaining term wrapped in quotes so the API
// treats it as required rather than fuzzy. Pure and idempotent.
func Sanitize(query string) string {
	replacer := strings.NewReplacer("/", " ", "\\", " ", ",", " ", "\"", " ")
	cleaned := replacer.Replace(query)

	var kept []string
	for _, token := range strings.Fields(cleaned) {
		lower := strings.ToLower(token)
		if _, stop := stopWords[lower]; stop {
			continue
		}
		if _, unit := unitWords[lower]; unit {
			continue
		}
		if isMeasurement(lower) {
			continue
		}
		kept = append(kept, token)
		if len(kept) == maxQueryTerms {
			break
		}
	}

	for i, term := range kept {
		kept[i] = "\"" + term + "\""
	}
	return strings.Join(kept, " ")
}

// isMeasurement reports whether a token is a number glued to a unit, like
// "35mm" or "750g". Bare numbers are kept: years and model numbers matter.
func isMeasurement(token string) bool {
	digits := 0
	for _, r := range token {
		if r >= '0' && r <= '9' {
			digits++
			continue
		}
		break
	}
	if digits == 0 {
		return false
	}
	suffix := token[digits:]
	if suffix == "" {
		return false
	}
	suffix = strings.TrimPrefix(suffix, ".")
	_, unit := unitWords[suffix]
	return unit
}
