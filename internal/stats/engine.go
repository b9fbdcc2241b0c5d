// Package stats turns a validated set of comparable sales into the market
// analysis block: robust statistics, a price band, confidence scoring, trend
// detection and exceptional-sale reporting.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/auctionkit/market-engine/internal/config"
	"github.com/auctionkit/market-engine/internal/domain"
	"github.com/auctionkit/market-engine/internal/observability"
)

const (
	// Confidence model. The base sits at coin-flip; evidence moves it up,
	// thin or stale samples move it down. The size of the underlying market
	// (total matches) carries the largest boost, more than the sample alone.
	confidenceBase        = 0.5
	confidenceFloor       = 0.1
	confidenceCeiling     = 0.95
	coverageBoostMax      = 0.2
	sampleBoostLarge      = 0.1
	sampleBoostSmall      = 0.05
	recencyBoostMax       = 0.1
	matchRateBoostMax     = 0.1
	unconfirmedPenaltyMax = 0.1
	recencyWindow         = 24 * 30 * 24 * time.Hour // ~24 months
	largeSampleSize       = 10
	smallSampleSize       = 5

	// Market-size tiers for the coverage boost.
	coverageBroadMarket  = 100
	coverageMediumMarket = 20
	coverageSmallMarket  = 5

	// Price-band widening for thin, flat samples.
	minBandPoints     = 3
	narrowBandPercent = 0.15

	// Exceptional-sale threshold factors over the comparable sample.
	exceptionalMedianFactor    = 3.0
	exceptionalQ3Factor        = 2.0
	exceptionalValuationFactor = 2.0

	// Trend classification bounds, percent change between halves.
	trendStablePercent = 5.0
	trendStrongPercent = 15.0

	recentSalesLimit = 5
)

// Engine computes market analysis results. Safe for concurrent use; every
// call works on its own copies of the input.
type Engine struct {
	cfg    config.StatsConfig
	logger *observability.Logger
	now    func() time.Time
}

// Input is one analysis request: the validated comparables plus the context
// needed for confidence scoring and reporting.
type Input struct {
	Items        []domain.SoldItem
	TotalMatches int
	Facts        domain.ItemFacts
	// CurrentValuation is the caller's working valuation, zero when unknown.
	// It raises the exceptional-sale threshold so a sale merely above the
	// comparables but below the valuation is not flagged.
	CurrentValuation float64
	SearchQuery      string
	StrategiesTried  []string
}

// NewEngine creates a statistics engine.
func NewEngine(cfg config.StatsConfig, logger *observability.Logger) *Engine {
	if cfg.IQRMultiplier <= 0 {
		cfg.IQRMultiplier = config.Default().Stats.IQRMultiplier
	}
	if cfg.ExtremeTrendPercent <= 0 {
		cfg.ExtremeTrendPercent = config.Default().Stats.ExtremeTrendPercent
	}
	if cfg.SuspiciousTrendPercent <= 0 {
		cfg.SuspiciousTrendPercent = config.Default().Stats.SuspiciousTrendPercent
	}
	if cfg.MinComparables < 1 {
		cfg.MinComparables = config.Default().Stats.MinComparables
	}
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	return &Engine{cfg: cfg, logger: logger, now: time.Now}
}

// SetClock replaces the engine's time source. Used in tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Analyze computes the full market analysis for a validated comparable set.
// Only confirmed hammer prices enter the price statistics; estimate-only and
// unsold records are diverted to a side bucket that weighs on confidence.
// Even a single confirmed sale produces a result, with low confidence and a
// thin-sample limitation; the structured no-data result is reserved for a
// sample with no confirmed price at all.
func (e *Engine) Analyze(input Input) *domain.MarketAnalysisResult {
	log := e.logger.WithOperation("market_analysis")

	confirmed := confirmedItems(input.Items)
	if len(confirmed) == 0 {
		log.Info().
			Int("total_matches", input.TotalMatches).
			Msg("No confirmed comparables for analysis")
		return domain.NoComparableData(input.TotalMatches, input.SearchQuery, input.StrategiesTried)
	}

	allPrices := prices(confirmed)
	filtered := e.iqrFilter(allPrices)

	statistics := buildStatistics(filtered, input.TotalMatches)
	band := e.priceBand(allPrices)
	confidence := e.confidence(input, confirmed)
	trend := e.trend(confirmed)
	exceptional := e.exceptionalSales(input.Items, input.CurrentValuation)

	result := &domain.MarketAnalysisResult{
		HasComparableData: true,
		PriceRange:        band,
		Confidence:        confidence,
		MarketContext:     marketContext(statistics, len(confirmed)),
		RecentSales:       recentSales(confirmed),
		TrendAnalysis:     trend,
		ExceptionalSales:  exceptional,
		Limitations:       e.limitations(input, confirmed),
		Statistics:        statistics,
		SearchQuery:       input.SearchQuery,
		StrategiesTried:   input.StrategiesTried,
	}

	log.Info().
		Int("sample_size", statistics.SampleSize).
		Float64("median", statistics.Median).
		Float64("confidence", confidence).
		Str("trend", string(trend.Direction)).
		Msg("Market analysis complete")
	return result
}

// iqrFilter removes values outside the Tukey fence. The filter reverts to the
// unfiltered sample when it would leave fewer than the minimum, and it is
// idempotent: a sample that already passed the fence passes again unchanged.
func (e *Engine) iqrFilter(values []float64) []float64 {
	if len(values) < 4 {
		return values
	}

	sorted := sortedCopy(values)
	q1, q3 := quartiles(sorted)
	iqr := q3 - q1
	low := q1 - e.cfg.IQRMultiplier*iqr
	high := q3 + e.cfg.IQRMultiplier*iqr

	filtered := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= low && v <= high {
			filtered = append(filtered, v)
		}
	}
	if len(filtered) < e.cfg.MinComparables {
		return values
	}
	return filtered
}

func buildStatistics(values []float64, totalMatches int) domain.Statistics {
	sorted := sortedCopy(values)
	return domain.Statistics{
		Average:      mean(sorted),
		Median:       median(sorted),
		Min:          sorted[0],
		Max:          sorted[len(sorted)-1],
		SampleSize:   len(sorted),
		TotalMatches: totalMatches,
	}
}

// priceBand is the full observed range, outliers included: a buyer could pay
// any of these prices. A tiny sample whose span is under 15% of the average
// is widened symmetrically around its midpoint to that 15%, so three near-
// identical results do not read as a precise market.
func (e *Engine) priceBand(allPrices []float64) domain.PriceRange {
	sorted := sortedCopy(allPrices)
	low, high := sorted[0], sorted[len(sorted)-1]

	avg := mean(sorted)
	if len(sorted) <= minBandPoints && avg > 0 && (high-low) < narrowBandPercent*avg {
		mid := (low + high) / 2
		halfSpan := narrowBandPercent * avg / 2
		low = mid - halfSpan
		high = mid + halfSpan
	}

	return domain.PriceRange{Low: low, High: high, Currency: domain.HomeCurrency}
}

// confidence scores how much to trust the band. The size of the underlying
// market carries the largest boost, then sample size, recency and how well
// titles echo the item's name or object type. More matches always means more
// confidence: a large market is better evidence than a thin one.
func (e *Engine) confidence(input Input, items []domain.SoldItem) float64 {
	score := confidenceBase

	switch {
	case input.TotalMatches >= coverageBroadMarket:
		score += coverageBoostMax
	case input.TotalMatches >= coverageMediumMarket:
		score += 0.15
	case input.TotalMatches >= coverageSmallMarket:
		score += 0.1
	case input.TotalMatches >= 1:
		score += 0.05
	}

	switch {
	case len(items) >= largeSampleSize:
		score += sampleBoostLarge
	case len(items) >= smallSampleSize:
		score += sampleBoostSmall
	}

	score += recencyBoostMax * e.recentShare(items)
	score += matchRateBoostMax * matchRate(input.Facts, items)

	// Estimate-only and unsold records never enter the statistics, but their
	// share of the validated set still counts against trust in it.
	if total := len(input.Items); total > len(items) {
		score -= unconfirmedPenaltyMax * float64(total-len(items)) / float64(total)
	}

	if score < confidenceFloor {
		return confidenceFloor
	}
	if score > confidenceCeiling {
		return confidenceCeiling
	}
	return score
}

// recentShare is the fraction of items sold within the recency window.
func (e *Engine) recentShare(items []domain.SoldItem) float64 {
	if len(items) == 0 {
		return 0
	}
	cutoff := e.now().Add(-recencyWindow)
	recent := 0
	for _, item := range items {
		if !item.EndDate.IsZero() && item.EndDate.After(cutoff) {
			recent++
		}
	}
	return float64(recent) / float64(len(items))
}

// factTerm picks the fact used for title matching: the primary name when
// known, the object type otherwise. Empty when neither is set.
func factTerm(facts domain.ItemFacts) string {
	if term := strings.ToLower(strings.TrimSpace(facts.PrimaryName)); term != "" {
		return term
	}
	return strings.ToLower(strings.TrimSpace(facts.ObjectType))
}

// matchRate is the fraction of titles mentioning the item's fact term.
func matchRate(facts domain.ItemFacts, items []domain.SoldItem) float64 {
	term := factTerm(facts)
	if term == "" || len(items) == 0 {
		return 0
	}

	matched := 0
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Title), term) {
			matched++
		}
	}
	return float64(matched) / float64(len(items))
}

// trend compares average price between the older and newer half of the dated
// sample. Implausible swings are capped or suppressed rather than shown.
func (e *Engine) trend(items []domain.SoldItem) domain.TrendAnalysis {
	dated := make([]domain.SoldItem, 0, len(items))
	for _, item := range items {
		if !item.EndDate.IsZero() && item.PriceOrEstimate() > 0 {
			dated = append(dated, item)
		}
	}
	if len(dated) < e.cfg.MinComparables {
		return domain.TrendAnalysis{Direction: domain.TrendInsufficient, DataQuality: domain.TrendQualityNormal}
	}

	sort.Slice(dated, func(i, j int) bool { return dated[i].EndDate.Before(dated[j].EndDate) })
	half := len(dated) / 2
	olderAvg := mean(prices(dated[:half]))
	newerAvg := mean(prices(dated[half:]))
	if olderAvg == 0 {
		return domain.TrendAnalysis{Direction: domain.TrendInsufficient, DataQuality: domain.TrendQualityNormal}
	}

	change := (newerAvg - olderAvg) / olderAvg * 100
	analysis := domain.TrendAnalysis{
		Direction:    classifyTrend(change),
		DataQuality:  domain.TrendQualityNormal,
		OlderAverage: olderAvg,
		NewerAverage: newerAvg,
		SampleSize:   len(dated),
	}

	magnitude := change
	if magnitude < 0 {
		magnitude = -magnitude
	}
	switch {
	case magnitude > e.cfg.SuspiciousTrendPercent:
		// A swing this large means the halves measure different things.
		analysis.DataQuality = domain.TrendQualitySuspicious
	case magnitude > e.cfg.ExtremeTrendPercent:
		capped := e.cfg.ExtremeTrendPercent
		if change < 0 {
			capped = -capped
		}
		analysis.ChangePercent = &capped
		analysis.DataQuality = domain.TrendQualityExtreme
	default:
		analysis.ChangePercent = &change
	}
	return analysis
}

func classifyTrend(changePercent float64) domain.TrendDirection {
	switch {
	case changePercent > trendStrongPercent:
		return domain.TrendRisingStrong
	case changePercent > trendStablePercent:
		return domain.TrendRising
	case changePercent < -trendStrongPercent:
		return domain.TrendFallingStrong
	case changePercent < -trendStablePercent:
		return domain.TrendFalling
	default:
		return domain.TrendStable
	}
}

// exceptionalSales reports confirmed sales far above the comparable sample.
// They are surfaced separately instead of inflating the statistics. Returns
// nil when the priced sample is too small to define "exceptional".
func (e *Engine) exceptionalSales(items []domain.SoldItem, currentValuation float64) *domain.ExceptionalSales {
	confirmed := prices(confirmedItems(items))
	if len(confirmed) < e.cfg.MinComparables {
		return nil
	}

	sorted := sortedCopy(confirmed)
	med := median(sorted)
	_, q3 := quartiles(sorted)

	threshold := exceptionalMedianFactor * med
	if t := exceptionalQ3Factor * q3; t > threshold {
		threshold = t
	}
	if currentValuation > 0 {
		if t := exceptionalValuationFactor * currentValuation; t > threshold {
			threshold = t
		}
	}

	var sales []domain.ExceptionalSale
	for _, item := range items {
		if !item.HasConfirmedPrice() {
			continue
		}
		price := *item.FinalPrice
		if price <= threshold {
			continue
		}
		sale := domain.ExceptionalSale{
			Item:          item,
			Price:         price,
			RatioToMedian: price / med,
		}
		if item.Estimate != nil && *item.Estimate > 0 {
			ratio := price / *item.Estimate
			sale.RatioToEstimate = &ratio
		}
		if currentValuation > 0 {
			ratio := price / currentValuation
			sale.RatioToValuation = &ratio
		}
		sales = append(sales, sale)
	}
	if len(sales) == 0 {
		return nil
	}

	sort.Slice(sales, func(i, j int) bool { return sales[i].Price > sales[j].Price })
	return &domain.ExceptionalSales{Threshold: threshold, Sales: sales}
}

// recentSales returns the newest items for display, newest first.
func recentSales(items []domain.SoldItem) []domain.SoldItem {
	sorted := make([]domain.SoldItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].EndDate.After(sorted[j].EndDate) })
	if len(sorted) > recentSalesLimit {
		sorted = sorted[:recentSalesLimit]
	}
	return sorted
}

func marketContext(stats domain.Statistics, sampleSize int) string {
	return fmt.Sprintf(
		"Baserat på %d jämförbara försäljningar. Medianpris %.0f %s, genomsnitt %.0f %s.",
		sampleSize, stats.Median, domain.HomeCurrency, stats.Average, domain.HomeCurrency,
	)
}

// limitations explains, in user-facing terms, why the analysis should be read
// with caution. Empty when no caveat applies.
func (e *Engine) limitations(input Input, items []domain.SoldItem) string {
	var notes []string

	if len(items) < smallSampleSize {
		notes = append(notes, fmt.Sprintf("Litet underlag: endast %d jämförbara försäljningar", len(items)))
	}
	if e.recentShare(items) < 0.5 {
		notes = append(notes, "Merparten av försäljningarna är äldre än två år")
	}
	// A zero match rate with a known name is the strongest mismatch signal
	// of all; only skip the note when no fact exists to match against.
	if factTerm(input.Facts) != "" && matchRate(input.Facts, items) < 0.7 {
		notes = append(notes, "Flera träffar matchar inte objektbeskrivningen exakt")
	}

	return strings.Join(notes, ". ")
}

func confirmedItems(items []domain.SoldItem) []domain.SoldItem {
	out := make([]domain.SoldItem, 0, len(items))
	for _, item := range items {
		if item.HasConfirmedPrice() {
			out = append(out, item)
		}
	}
	return out
}

func prices(items []domain.SoldItem) []float64 {
	out := make([]float64, 0, len(items))
	for _, item := range items {
		if p := item.PriceOrEstimate(); p > 0 {
			out = append(out, p)
		}
	}
	return out
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// median assumes sorted input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// quartiles uses the median-of-halves method, excluding the middle element
// for odd-length samples. Assumes sorted input of length >= 2.
func quartiles(sorted []float64) (q1, q3 float64) {
	n := len(sorted)
	half := n / 2
	q1 = median(sorted[:half])
	if n%2 == 1 {
		q3 = median(sorted[half+1:])
	} else {
		q3 = median(sorted[half:])
	}
	return q1, q3
}
