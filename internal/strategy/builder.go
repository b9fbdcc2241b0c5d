// Package strategy builds prioritized search-query sequences for the
// comparable-sales pipeline. Strategies are tried most-specific-first; the
// first one that yields a usable validated sample wins.
package strategy

import (
	"strings"

	"github.com/auctionkit/market-engine/internal/domain"
)

// Builder produces ordered search strategies from item facts.
type Builder struct{}

// NewBuilder creates a strategy builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build returns the ordered strategy list for the given facts. A non-General
// hint selects a domain-specific builder; DomainGeneral falls back to
// pattern detection over the facts themselves. Guarantees: no empty queries,
// case-insensitive de-duplication after sanitization, stable ordering for
// identical input, and a non-empty list whenever at least one fact is set.
func (b *Builder) Build(facts domain.ItemFacts, hint domain.Domain) []domain.SearchStrategy {
	if facts.IsEmpty() {
		return nil
	}

	detected := hint
	if detected == "" || detected == domain.DomainGeneral {
		detected = DetectDomain(facts)
	}

	var raw []domain.SearchStrategy
	switch detected {
	case domain.DomainWatch:
		raw = buildWatchStrategies(facts)
	case domain.DomainJewelry:
		raw = buildJewelryStrategies(facts)
	case domain.DomainInstrument:
		raw = buildInstrumentStrategies(facts)
	default:
		raw = buildDefaultStrategies(facts)
	}
	// Domain builders work off name/object/material and can come up empty
	// when only a period or technique is known; the general ordering always
	// has a fallback for whatever facts exist.
	if len(raw) == 0 {
		raw = buildDefaultStrategies(facts)
	}

	return sanitizeAndDedupe(raw)
}

// buildDefaultStrategies emits the general ordering: every name-led
// combination first, then object-led fallbacks without the name.
func buildDefaultStrategies(facts domain.ItemFacts) []domain.SearchStrategy {
	name := strings.TrimSpace(facts.PrimaryName)
	objectType := strings.TrimSpace(facts.ObjectType)
	period := strings.TrimSpace(facts.Period)
	technique := strings.TrimSpace(facts.Technique)

	var out []domain.SearchStrategy
	if name != "" && objectType != "" {
		out = append(out, domain.SearchStrategy{
			Query:       join(name, objectType),
			Description: "namn + objektstyp",
			Weight:      1.0,
		})
	}
	if name != "" && technique != "" {
		out = append(out, domain.SearchStrategy{
			Query:       join(name, technique),
			Description: "namn + teknik",
			Weight:      0.9,
		})
	}
	if name != "" && period != "" {
		out = append(out, domain.SearchStrategy{
			Query:       join(name, period),
			Description: "namn + period",
			Weight:      0.8,
		})
	}
	if name != "" {
		out = append(out, domain.SearchStrategy{
			Query:       name,
			Description: "endast namn",
			Weight:      0.7,
		})
	}
	if objectType != "" && technique != "" && period != "" {
		out = append(out, domain.SearchStrategy{
			Query:       join(objectType, technique, period),
			Description: "objektstyp + teknik + period",
			Weight:      0.6,
		})
	}
	if objectType != "" && period != "" {
		out = append(out, domain.SearchStrategy{
			Query:       join(objectType, period),
			Description: "objektstyp + period",
			Weight:      0.5,
		})
	}
	if len(out) == 0 && objectType != "" {
		out = append(out, domain.SearchStrategy{
			Query:       objectType,
			Description: "endast objektstyp",
			Weight:      0.5,
		})
	}
	if len(out) == 0 {
		// Technique or period alone; still better than giving up.
		out = append(out, domain.SearchStrategy{
			Query:       join(technique, period),
			Description: "teknik/period",
			Weight:      0.5,
		})
	}
	return out
}

// sanitizeAndDedupe sanitizes every query and drops case-insensitive
// duplicates while preserving order. Strategies whose query sanitizes to
// nothing are dropped.
func sanitizeAndDedupe(in []domain.SearchStrategy) []domain.SearchStrategy {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.SearchStrategy, 0, len(in))

	for _, s := range in {
		sanitized := Sanitize(s.Query)
		if sanitized == "" {
			continue
		}
		key := strings.ToLower(sanitized)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		s.Query = sanitized
		out = append(out, s)
	}
	return out
}
