// Package relevance filters raw search results down to genuine comparables.
// Two independent, stackable filters: a deterministic heuristic pass and an
// optional AI-assisted pass. Omitting either degrades precision but never
// breaks the pipeline.
package relevance

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/auctionkit/market-engine/internal/domain"
	"github.com/auctionkit/market-engine/internal/observability"
)

const (
	// minSample is the smallest set worth running statistics on. Every
	// refinement step is reverted if it would shrink the sample below this.
	minSample = 3

	// priceBandRatio bounds the accepted price spread around the median.
	// Auction comparables legitimately vary a lot; the band only removes
	// results that are clearly a different kind of object.
	priceBandRatio = 10.0

	// maxSpanYears triggers the recency refinement; recentYears is the
	// window preferred when the sample spans too long.
	maxSpanYears = 10
	recentYears  = 5
)

// Validator applies the deterministic heuristic filter. It is meant for
// broad, generic searches; strategies that already pin a specific name
// produce samples precise enough to skip it.
type Validator struct {
	logger *observability.Logger
}

// NewValidator creates a heuristic validator.
func NewValidator(logger *observability.Logger) *Validator {
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	return &Validator{logger: logger}
}

// Validate refines the result set in three ordered steps: price-band outlier
// removal, query-term consistency, and recency preference. Each step is a
// refinement of the previous set and is reverted if it would leave fewer
// than minSample items.
func (v *Validator) Validate(items []domain.SoldItem, query string) []domain.SoldItem {
	if len(items) <= minSample {
		return items
	}

	result := items

	if filtered := filterPriceBand(result); len(filtered) >= minSample {
		result = filtered
	}
	if filtered := filterTermConsistency(result, query); len(filtered) >= minSample {
		result = filtered
	}
	if filtered := preferRecent(result); len(filtered) >= minSample {
		result = filtered
	}

	if len(result) != len(items) {
		v.logger.Debug().
			Str("query", query).
			Int("before", len(items)).
			Int("after", len(result)).
			Msg("Heuristic validation narrowed sample")
	}
	return result
}

// filterPriceBand drops items priced outside a robust median-ratio band.
// Items without any price figure carry no signal either way and pass.
func filterPriceBand(items []domain.SoldItem) []domain.SoldItem {
	var prices []float64
	for _, item := range items {
		if p := item.PriceOrEstimate(); p > 0 {
			prices = append(prices, p)
		}
	}
	if len(prices) < minSample {
		return items
	}

	med := median(prices)
	low, high := med/priceBandRatio, med*priceBandRatio

	out := make([]domain.SoldItem, 0, len(items))
	for _, item := range items {
		p := item.PriceOrEstimate()
		if p == 0 || (p >= low && p <= high) {
			out = append(out, item)
		}
	}
	return out
}

// filterTermConsistency requires the result text to echo the query. For
// queries that look like a person's full name every name token must appear
// in the title; otherwise any query token in title or description suffices.
func filterTermConsistency(items []domain.SoldItem, query string) []domain.SoldItem {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return items
	}
	strict := LooksLikePersonName(query)

	out := make([]domain.SoldItem, 0, len(items))
	for _, item := range items {
		title := strings.ToLower(item.Title)
		haystack := title + " " + strings.ToLower(item.Description)

		if strict {
			all := true
			for _, tok := range tokens {
				if !strings.Contains(title, tok) {
					all = false
					break
				}
			}
			if all {
				out = append(out, item)
			}
			continue
		}

		for _, tok := range tokens {
			if strings.Contains(haystack, tok) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

// preferRecent narrows samples spanning more than maxSpanYears to the most
// recent recentYears window. Old comparables misstate today's market.
func preferRecent(items []domain.SoldItem) []domain.SoldItem {
	dated := make([]domain.SoldItem, 0, len(items))
	for _, item := range items {
		if !item.EndDate.IsZero() {
			dated = append(dated, item)
		}
	}
	if len(dated) < minSample {
		return items
	}

	newest, oldest := dated[0].EndDate, dated[0].EndDate
	for _, item := range dated[1:] {
		if item.EndDate.After(newest) {
			newest = item.EndDate
		}
		if item.EndDate.Before(oldest) {
			oldest = item.EndDate
		}
	}
	if newest.Sub(oldest) <= time.Duration(maxSpanYears)*365*24*time.Hour {
		return items
	}

	cutoff := newest.AddDate(-recentYears, 0, 0)
	out := make([]domain.SoldItem, 0, len(items))
	for _, item := range items {
		if !item.EndDate.Before(cutoff) {
			out = append(out, item)
		}
	}
	return out
}

// LooksLikePersonName reports whether a query reads as a person's full name:
// two or three capitalized alphabetic words, nothing else.
func LooksLikePersonName(query string) bool {
	words := queryWords(query)
	if len(words) < 2 || len(words) > 3 {
		return false
	}
	for _, w := range words {
		runes := []rune(w)
		if !unicode.IsUpper(runes[0]) {
			return false
		}
		for _, r := range runes {
			if !unicode.IsLetter(r) && r != '-' {
				return false
			}
		}
	}
	return true
}

// queryTokens lowercases and unquotes the query's terms.
func queryTokens(query string) []string {
	words := queryWords(query)
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, strings.ToLower(w))
	}
	return out
}

// queryWords strips the sanitizer's required-term quoting.
func queryWords(query string) []string {
	var out []string
	for _, field := range strings.Fields(query) {
		w := strings.Trim(field, `"`)
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
