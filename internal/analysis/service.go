// Package analysis orchestrates the comparable-sales pipeline: strategy
// building, cache-aware search with fallback, relevance validation and market
// statistics.
package analysis

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/auctionkit/market-engine/internal/domain"
	"github.com/auctionkit/market-engine/internal/observability"
	"github.com/auctionkit/market-engine/internal/relevance"
	"github.com/auctionkit/market-engine/internal/stats"
	"github.com/auctionkit/market-engine/internal/strategy"
)

// Options carries per-request knobs for an analysis.
type Options struct {
	// DomainHint overrides pattern detection when the caller already knows
	// the item category.
	DomainHint domain.Domain
	// CurrentValuation is the caller's working valuation, zero when unknown.
	CurrentValuation float64
	// ItemContext is a free-text description of the item, used to steer the
	// AI relevance filter.
	ItemContext string
	// TotalMatches is the reported match count when the caller supplies
	// pre-fetched items directly.
	TotalMatches int
}

// Service runs the full analysis pipeline. All collaborators are injected;
// the AI filter may be nil when no completion backend is configured.
type Service struct {
	strategies *strategy.Builder
	searcher   domain.Searcher
	validator  *relevance.Validator
	aiFilter   *relevance.AIFilter
	engine     *stats.Engine
	logger     *observability.Logger
}

// NewService assembles the pipeline.
func NewService(
	builder *strategy.Builder,
	searcher domain.Searcher,
	validator *relevance.Validator,
	aiFilter *relevance.AIFilter,
	engine *stats.Engine,
	logger *observability.Logger,
) *Service {
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	return &Service{
		strategies: builder,
		searcher:   searcher,
		validator:  validator,
		aiFilter:   aiFilter,
		engine:     engine,
		logger:     logger,
	}
}

// AnalyzeComparableSales runs the strategy fallback loop until one query
// yields at least one validated sold item with a valid price, then computes
// the market analysis. Thin samples still win: a single comparable produces
// a low-confidence result, not a miss. Returns the structured no-data result
// when every strategy comes up short; the only error is a validation error
// for empty facts.
func (s *Service) AnalyzeComparableSales(ctx context.Context, facts domain.ItemFacts, opts Options) (*domain.MarketAnalysisResult, error) {
	if facts.IsEmpty() {
		return nil, domain.ValidationError("at least one item fact is required", nil)
	}

	log := s.logger.WithOperation("comparable_sales").WithRequestID(uuid.NewString())

	strategies := s.strategies.Build(facts, opts.DomainHint)
	if len(strategies) == 0 {
		return domain.NoComparableData(0, "", nil), nil
	}

	var (
		tried     []string
		lastQuery string
		lastTotal int
	)

	for _, strat := range strategies {
		select {
		case <-ctx.Done():
			return domain.NoComparableData(lastTotal, lastQuery, tried), nil
		default:
		}

		tried = append(tried, strat.Description)
		lastQuery = strat.Query

		result := s.searcher.SearchEnded(ctx, strat.Query, 0)
		if result == nil {
			log.Debug().Str("query", strat.Query).Msg("Strategy yielded no data")
			continue
		}
		lastTotal = result.TotalEntries

		validated := s.validate(ctx, result.SoldItems, strat, facts, opts.ItemContext)
		if confirmedCount(validated) == 0 {
			log.Debug().
				Str("query", strat.Query).
				Int("validated", len(validated)).
				Msg("Strategy yielded no priced comparables")
			continue
		}

		log.Info().
			Str("query", strat.Query).
			Str("strategy", strat.Description).
			Int("comparables", len(validated)).
			Int("total_matches", result.TotalEntries).
			Msg("Strategy accepted")

		return s.engine.Analyze(stats.Input{
			Items:            validated,
			TotalMatches:     result.TotalEntries,
			Facts:            facts,
			CurrentValuation: opts.CurrentValuation,
			SearchQuery:      strat.Query,
			StrategiesTried:  tried,
		}), nil
	}

	log.Info().Int("strategies_tried", len(tried)).Msg("No strategy yielded comparable data")
	return domain.NoComparableData(lastTotal, lastQuery, tried), nil
}

// AnalyzeMarketData validates and analyzes a caller-supplied item set,
// bypassing search. Used when results were fetched out of band.
func (s *Service) AnalyzeMarketData(ctx context.Context, items []domain.SoldItem, facts domain.ItemFacts, opts Options) *domain.MarketAnalysisResult {
	validated := items
	if s.validator != nil {
		validated = s.validator.Validate(validated, strings.TrimSpace(facts.PrimaryName))
	}
	if s.aiFilter != nil {
		validated = s.aiFilter.Filter(ctx, validated, s.itemContext(facts, opts.ItemContext))
	}

	totalMatches := opts.TotalMatches
	if totalMatches == 0 {
		totalMatches = len(items)
	}

	return s.engine.Analyze(stats.Input{
		Items:            validated,
		TotalMatches:     totalMatches,
		Facts:            facts,
		CurrentValuation: opts.CurrentValuation,
	})
}

// validate applies the heuristic filter to broad strategies and the AI filter
// to any sample that trips its trigger. Name-pinned queries skip the
// heuristic pass: the query itself already constrains relevance.
func (s *Service) validate(ctx context.Context, items []domain.SoldItem, strat domain.SearchStrategy, facts domain.ItemFacts, itemContext string) []domain.SoldItem {
	validated := items

	if s.validator != nil && !queryPinsName(strat.Query, facts.PrimaryName) {
		validated = s.validator.Validate(validated, strat.Query)
	}
	if s.aiFilter != nil {
		validated = s.aiFilter.Filter(ctx, validated, s.itemContext(facts, itemContext))
	}
	return validated
}

// itemContext prefers the caller's free-text description and falls back to a
// summary of the structured facts.
func (s *Service) itemContext(facts domain.ItemFacts, override string) string {
	if override != "" {
		return override
	}
	parts := make([]string, 0, 4)
	for _, p := range []string{facts.PrimaryName, facts.ObjectType, facts.Technique, facts.Period} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, ", ")
}

// queryPinsName reports whether the query already contains every token of
// the item's primary name. Sanitized queries quote each term, so the check
// is per token rather than on the raw name string.
func queryPinsName(query, primaryName string) bool {
	name := strings.TrimSpace(primaryName)
	if name == "" {
		return false
	}
	lowered := strings.ToLower(query)
	for _, token := range strings.Fields(strings.ToLower(name)) {
		if !strings.Contains(lowered, token) {
			return false
		}
	}
	return true
}

// confirmedCount counts items carrying a real hammer price. A strategy wins
// as soon as it yields one such item; estimate-only records alone do not
// carry an analysis.
func confirmedCount(items []domain.SoldItem) int {
	n := 0
	for _, item := range items {
		if item.HasConfirmedPrice() {
			n++
		}
	}
	return n
}
