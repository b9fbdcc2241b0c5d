package relevance

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/auctionkit/market-engine/internal/domain"
	"github.com/auctionkit/market-engine/internal/observability"
)

const (
	// aiTriggerMinItems, aiTriggerSpreadRatio and aiTriggerManyItems gate the
	// AI pass: small tight samples are already good, and a model call costs
	// latency and money.
	aiTriggerMinItems    = 8
	aiTriggerSpreadRatio = 5.0
	aiTriggerManyItems   = 15

	defaultAITimeout = 8 * time.Second
)

// jsonArrayPattern pulls the first JSON array out of a model reply. Models
// wrap output in prose or markdown fences no matter how the prompt asks.
var jsonArrayPattern = regexp.MustCompile(`\[[\s\S]*\]`)

// AIFilter asks a language model which results actually match the item being
// analyzed. Every failure mode, from transport to malformed output to an
// implausibly small survivor set, falls back to the unfiltered input. The
// analysis must never be worse off for having tried.
type AIFilter struct {
	completer domain.Completer
	timeout   time.Duration
	logger    *observability.Logger
}

// NewAIFilter creates an AI filter around a completion backend. A nil
// completer yields a filter that passes everything through.
func NewAIFilter(completer domain.Completer, timeout time.Duration, logger *observability.Logger) *AIFilter {
	if timeout <= 0 {
		timeout = defaultAITimeout
	}
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	return &AIFilter{completer: completer, timeout: timeout, logger: logger}
}

// ShouldFilter reports whether the sample is large or scattered enough to be
// worth a model call: at least aiTriggerMinItems results, with either a wide
// price spread or a long result list.
func ShouldFilter(items []domain.SoldItem) bool {
	if len(items) < aiTriggerMinItems {
		return false
	}
	if len(items) > aiTriggerManyItems {
		return true
	}

	var minPrice, maxPrice float64
	for _, item := range items {
		p := item.PriceOrEstimate()
		if p <= 0 {
			continue
		}
		if minPrice == 0 || p < minPrice {
			minPrice = p
		}
		if p > maxPrice {
			maxPrice = p
		}
	}
	return minPrice > 0 && maxPrice/minPrice > aiTriggerSpreadRatio
}

// Filter returns the subset of items the model judges relevant to the
// described object. The input slice is returned unchanged when the filter is
// not triggered, the backend is absent or failing, the reply cannot be
// parsed, or the survivor set is implausibly small.
func (f *AIFilter) Filter(ctx context.Context, items []domain.SoldItem, itemContext string) []domain.SoldItem {
	if f.completer == nil || !ShouldFilter(items) {
		return items
	}
	log := f.logger.WithOperation("ai_relevance_filter")

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	reply, err := f.completer.Complete(ctx, buildFilterPrompt(items, itemContext))
	if err != nil {
		log.Warn().Err(err).Int("items", len(items)).Msg("AI filter unavailable, keeping full sample")
		return items
	}

	verdicts, err := parseVerdicts(reply)
	if err != nil {
		log.Warn().Err(err).Msg("Unparseable AI filter reply, keeping full sample")
		return items
	}

	kept := make([]domain.SoldItem, 0, len(items))
	for _, v := range verdicts {
		if v.Relevant && v.Index >= 0 && v.Index < len(items) {
			kept = append(kept, items[v.Index])
		}
	}

	if len(kept) < minSample {
		log.Warn().
			Int("before", len(items)).
			Int("after", len(kept)).
			Msg("AI filter removed too much, keeping full sample")
		return items
	}

	log.Info().Int("before", len(items)).Int("after", len(kept)).Msg("AI filter applied")
	return kept
}

type verdict struct {
	Index    int  `json:"index"`
	Relevant bool `json:"relevant"`
}

// buildFilterPrompt keeps the payload compact: index, title and price per
// result. Full descriptions would blow the token budget for no gain.
func buildFilterPrompt(items []domain.SoldItem, itemContext string) string {
	var sb strings.Builder
	sb.WriteString("You are screening auction results for relevance.\n")
	sb.WriteString("Item being analyzed: ")
	sb.WriteString(itemContext)
	sb.WriteString("\n\nAuction results:\n")
	for i, item := range items {
		fmt.Fprintf(&sb, "%d: %s (%.0f kr)\n", i, item.Title, item.PriceOrEstimate())
	}
	sb.WriteString("\nFor each result decide whether it is the same kind of object as the item being analyzed. ")
	sb.WriteString(`Respond with only a JSON array, one entry per result: [{"index":0,"relevant":true},...]`)
	return sb.String()
}

func parseVerdicts(reply string) ([]verdict, error) {
	raw := jsonArrayPattern.FindString(reply)
	if raw == "" {
		return nil, fmt.Errorf("no JSON array in reply")
	}
	var verdicts []verdict
	if err := json.Unmarshal([]byte(raw), &verdicts); err != nil {
		return nil, fmt.Errorf("decode verdicts: %w", err)
	}
	if len(verdicts) == 0 {
		return nil, fmt.Errorf("empty verdict list")
	}
	return verdicts, nil
}
