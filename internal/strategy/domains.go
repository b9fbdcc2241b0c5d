package strategy

import (
	"strings"

	"github.com/auctionkit/market-engine/internal/domain"
)

// Keyword sets for domain detection. Matching is done on whole lowercase
// tokens so "armbandsur" classifies as a watch and not as the jewelry term
// "armband".
var (
	watchTerms = []string{
		"armbandsur", "fickur", "klocka", "ur", "kronograf", "chronograph",
		"rolex", "omega", "certina", "tissot", "longines", "breitling",
		"patek", "iwc", "seiko", "zenith",
	}
	jewelryTerms = []string{
		"ring", "brosch", "halsband", "armband", "örhängen", "collier",
		"smycke", "smycken", "berlock", "manschettknappar", "diamant",
		"brilliant", "pärla", "pärlor",
	}
	instrumentTerms = []string{
		"gitarr", "elgitarr", "fiol", "violin", "cello", "piano", "flygel",
		"synthesizer", "synt", "trumpet", "saxofon", "dragspel", "orgel",
		"moog", "fender", "gibson", "stradivarius",
	}
)

// DetectDomain classifies item facts into a strategy family. A pure function:
// easy to unit test and extend without touching search or statistics logic.
func DetectDomain(facts domain.ItemFacts) domain.Domain {
	haystack := strings.ToLower(strings.Join([]string{
		facts.PrimaryName, facts.ObjectType, facts.Technique,
	}, " "))
	tokens := map[string]struct{}{}
	for _, tok := range strings.Fields(haystack) {
		tokens[strings.Trim(tok, ".,()")] = struct{}{}
	}

	contains := func(terms []string) bool {
		for _, term := range terms {
			if _, ok := tokens[term]; ok {
				return true
			}
		}
		return false
	}

	// Watches before jewelry: an "armbandsur" in gold is still a watch.
	switch {
	case contains(watchTerms):
		return domain.DomainWatch
	case contains(jewelryTerms):
		return domain.DomainJewelry
	case contains(instrumentTerms):
		return domain.DomainInstrument
	default:
		return domain.DomainGeneral
	}
}

// buildWatchStrategies emits watch-specific fallbacks. Watch queries fail on
// specificity far more often than general ones, so the qualifier (movement,
// material) is dropped before the brand is.
func buildWatchStrategies(facts domain.ItemFacts) []domain.SearchStrategy {
	name := strings.TrimSpace(facts.PrimaryName)
	objectType := strings.TrimSpace(facts.ObjectType)
	technique := strings.TrimSpace(facts.Technique)

	var out []domain.SearchStrategy
	if name != "" && objectType != "" && technique != "" {
		out = append(out, domain.SearchStrategy{
			Query:       join(name, objectType, technique),
			Description: "märke + objekt + utförande",
			Weight:      1.0,
		})
	}
	if name != "" && objectType != "" {
		out = append(out, domain.SearchStrategy{
			Query:       join(name, objectType),
			Description: "märke + objekt",
			Weight:      0.9,
		})
	}
	if name != "" {
		out = append(out, domain.SearchStrategy{
			Query:       name,
			Description: "endast märke",
			Weight:      0.7,
		})
	}
	if objectType != "" {
		out = append(out, domain.SearchStrategy{
			Query:       objectType,
			Description: "endast objektstyp",
			Weight:      0.5,
		})
	}
	return out
}

// buildJewelryStrategies emits jewelry-specific fallbacks. The material
// (technique) is a stronger comparables signal than the maker for most
// jewelry, so material-led combinations come before name-led ones.
func buildJewelryStrategies(facts domain.ItemFacts) []domain.SearchStrategy {
	name := strings.TrimSpace(facts.PrimaryName)
	objectType := strings.TrimSpace(facts.ObjectType)
	technique := strings.TrimSpace(facts.Technique)

	var out []domain.SearchStrategy
	if objectType != "" && technique != "" {
		out = append(out, domain.SearchStrategy{
			Query:       join(objectType, technique),
			Description: "objekt + material",
			Weight:      1.0,
		})
	}
	if name != "" && objectType != "" {
		out = append(out, domain.SearchStrategy{
			Query:       join(name, objectType),
			Description: "tillverkare + objekt",
			Weight:      0.85,
		})
	}
	if name != "" {
		out = append(out, domain.SearchStrategy{
			Query:       name,
			Description: "endast tillverkare",
			Weight:      0.7,
		})
	}
	if objectType != "" {
		out = append(out, domain.SearchStrategy{
			Query:       objectType,
			Description: "endast objektstyp",
			Weight:      0.5,
		})
	}
	return out
}

// buildInstrumentStrategies emits instrument/synthesizer fallbacks. Model
// detail (technique) is dropped first, then period, then brand.
func buildInstrumentStrategies(facts domain.ItemFacts) []domain.SearchStrategy {
	name := strings.TrimSpace(facts.PrimaryName)
	objectType := strings.TrimSpace(facts.ObjectType)
	period := strings.TrimSpace(facts.Period)

	var out []domain.SearchStrategy
	if name != "" && objectType != "" {
		out = append(out, domain.SearchStrategy{
			Query:       join(name, objectType),
			Description: "märke + instrument",
			Weight:      1.0,
		})
	}
	if name != "" {
		out = append(out, domain.SearchStrategy{
			Query:       name,
			Description: "endast märke",
			Weight:      0.8,
		})
	}
	if objectType != "" && period != "" {
		out = append(out, domain.SearchStrategy{
			Query:       join(objectType, period),
			Description: "instrument + period",
			Weight:      0.6,
		})
	}
	if objectType != "" {
		out = append(out, domain.SearchStrategy{
			Query:       objectType,
			Description: "endast instrument",
			Weight:      0.5,
		})
	}
	return out
}

func join(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}
