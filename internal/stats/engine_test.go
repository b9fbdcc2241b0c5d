package stats

import (
	"testing"
	"time"

	"github.com/auctionkit/market-engine/internal/config"
	"github.com/auctionkit/market-engine/internal/domain"
	"github.com/auctionkit/market-engine/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	e := NewEngine(config.Default().Stats, observability.Nop())
	e.SetClock(func() time.Time { return testNow })
	return e
}

func sold(price float64, endDate time.Time) domain.SoldItem {
	return domain.SoldItem{
		Title:      "CERTINA, armbandsur",
		FinalPrice: &price,
		Currency:   domain.HomeCurrency,
		EndDate:    endDate,
		BidDate:    endDate,
	}
}

func soldAll(prices []float64) []domain.SoldItem {
	items := make([]domain.SoldItem, 0, len(prices))
	for i, p := range prices {
		items = append(items, sold(p, testNow.AddDate(0, -i, 0)))
	}
	return items
}

func TestAnalyze_OutlierExcludedFromStatisticsButNotRange(t *testing.T) {
	// Tukey fence for this sample: Q1=350, Q3=900, upper fence 1725.
	items := soldAll([]float64{200, 350, 400, 450, 600, 900, 3896})

	result := newTestEngine().Analyze(Input{Items: items, TotalMatches: 7})
	require.True(t, result.HasComparableData)

	assert.Equal(t, 6, result.Statistics.SampleSize)
	assert.Equal(t, 900.0, result.Statistics.Max)
	assert.Equal(t, 425.0, result.Statistics.Median)

	// The displayed band still spans everything a buyer actually paid.
	assert.Equal(t, 200.0, result.PriceRange.Low)
	assert.Equal(t, 3896.0, result.PriceRange.High)
	assert.Equal(t, domain.HomeCurrency, result.PriceRange.Currency)
}

func TestAnalyze_IQRFilterIsIdempotent(t *testing.T) {
	e := newTestEngine()
	once := e.iqrFilter([]float64{200, 350, 400, 450, 600, 900, 3896})
	twice := e.iqrFilter(once)
	assert.Equal(t, once, twice)
}

func TestAnalyze_IQRFilterRevertsBelowMinimum(t *testing.T) {
	e := NewEngine(config.StatsConfig{IQRMultiplier: 0.01, MinComparables: 3}, observability.Nop())
	values := []float64{100, 5000, 90000, 400000}
	assert.Equal(t, values, e.iqrFilter(values))
}

func TestAnalyze_TwoConfirmedSalesProduceThinResult(t *testing.T) {
	// Two real hammer prices are a thin but honest sample: the caller gets a
	// result with the thinness spelled out, not a no-data miss.
	items := soldAll([]float64{500, 700})

	result := newTestEngine().Analyze(Input{Items: items, TotalMatches: 2})

	require.True(t, result.HasComparableData)
	assert.Equal(t, 2, result.Statistics.SampleSize)
	assert.Equal(t, 600.0, result.Statistics.Median)
	assert.Contains(t, result.Limitations, "Litet underlag")
	assert.Equal(t, domain.TrendInsufficient, result.TrendAnalysis.Direction)
	assert.Nil(t, result.ExceptionalSales)
}

func TestAnalyze_NoConfirmedPricesReturnsNoData(t *testing.T) {
	// Estimate-based figures alone cannot carry an analysis.
	estimate := 2000.0
	items := []domain.SoldItem{
		{Title: "CERTINA, armbandsur", FinalPrice: &estimate, IsEstimateBasedPrice: true, EndDate: testNow},
		{Title: "CERTINA, armbandsur", FinalPrice: &estimate, IsEstimateBasedPrice: true, EndDate: testNow},
	}

	result := newTestEngine().Analyze(Input{
		Items:           items,
		TotalMatches:    2,
		SearchQuery:     `"obskyr" "sak"`,
		StrategiesTried: []string{"full", "name-only"},
	})

	assert.False(t, result.HasComparableData)
	assert.Equal(t, 0.1, result.Confidence)
	assert.Equal(t, `"obskyr" "sak"`, result.SearchQuery)
	assert.Equal(t, []string{"full", "name-only"}, result.StrategiesTried)
	assert.Equal(t, 2, result.Statistics.TotalMatches)
}

func TestAnalyze_NarrowBandIsWidened(t *testing.T) {
	// Three near-identical results: span 10 of average 505, well under the
	// 15% flatness bound, so the band is widened around the midpoint 505.
	items := soldAll([]float64{500, 505, 510})

	result := newTestEngine().Analyze(Input{Items: items, TotalMatches: 3})
	require.True(t, result.HasComparableData)

	assert.InDelta(t, 467.125, result.PriceRange.Low, 0.001)
	assert.InDelta(t, 542.875, result.PriceRange.High, 0.001)
}

func TestAnalyze_LargerSampleKeepsTrueRange(t *testing.T) {
	// Four points are enough evidence: even a flat range is reported as-is.
	items := soldAll([]float64{500, 505, 515, 510})

	result := newTestEngine().Analyze(Input{Items: items, TotalMatches: 4})
	require.True(t, result.HasComparableData)

	assert.Equal(t, 500.0, result.PriceRange.Low)
	assert.Equal(t, 515.0, result.PriceRange.High)
}

func TestAnalyze_EstimateOnlyDivertedFromStatistics(t *testing.T) {
	items := soldAll([]float64{400, 500, 600, 450})
	estimate := 30000.0
	items = append(items, domain.SoldItem{
		Title:                "CERTINA, armbandsur",
		Estimate:             &estimate,
		IsEstimateBasedPrice: true,
		EndDate:              testNow,
	})

	result := newTestEngine().Analyze(Input{Items: items, TotalMatches: 5})
	require.True(t, result.HasComparableData)

	// The estimate record is outside both statistics and range.
	assert.Equal(t, 4, result.Statistics.SampleSize)
	assert.Equal(t, 600.0, result.PriceRange.High)

	// And its presence costs confidence relative to an all-confirmed sample.
	e := newTestEngine()
	allConfirmed := e.confidence(Input{Items: items[:4], TotalMatches: 5}, items[:4])
	mixed := e.confidence(Input{Items: items, TotalMatches: 5}, items[:4])
	assert.Less(t, mixed, allConfirmed)
}

func TestAnalyze_ExceptionalSaleDetected(t *testing.T) {
	prices := make([]float64, 0, 21)
	for i := 0; i < 20; i++ {
		prices = append(prices, float64(500+i*237)) // 500..5003
	}
	prices = append(prices, 500000)

	result := newTestEngine().Analyze(Input{Items: soldAll(prices), TotalMatches: 21})
	require.True(t, result.HasComparableData)
	require.NotNil(t, result.ExceptionalSales)

	require.Len(t, result.ExceptionalSales.Sales, 1)
	sale := result.ExceptionalSales.Sales[0]
	assert.Equal(t, 500000.0, sale.Price)
	assert.Greater(t, sale.RatioToMedian, 100.0)
	assert.Greater(t, result.ExceptionalSales.Threshold, 5003.0)

	// The freak sale must not drag the statistics block.
	assert.Less(t, result.Statistics.Max, 10000.0)
}

func TestAnalyze_ValuationRaisesExceptionalThreshold(t *testing.T) {
	e := newTestEngine()
	items := soldAll([]float64{1000, 1100, 1200, 1250, 1300, 5000})

	without := e.exceptionalSales(items, 0)
	require.NotNil(t, without)
	require.Len(t, without.Sales, 1)

	// With a 4000 kr working valuation the 5000 kr sale is unremarkable.
	with := e.exceptionalSales(items, 4000)
	assert.Nil(t, with)
}

func TestAnalyze_ExceptionalNeedsMinimumSample(t *testing.T) {
	e := newTestEngine()
	assert.Nil(t, e.exceptionalSales(soldAll([]float64{100, 90000}), 0))
}

func TestAnalyze_ExceptionalIgnoresEstimateBasedPrices(t *testing.T) {
	e := newTestEngine()
	estimate := 90000.0
	items := soldAll([]float64{1000, 1100, 1200, 1300})
	items = append(items, domain.SoldItem{
		Title:                "Brosch",
		Estimate:             &estimate,
		IsEstimateBasedPrice: true,
		EndDate:              testNow,
	})

	result := e.exceptionalSales(items, 0)
	assert.Nil(t, result)
}

func TestConfidence_MoreEvidenceNeverLowersScore(t *testing.T) {
	e := newTestEngine()

	small := e.confidence(Input{TotalMatches: 50}, soldAll([]float64{500, 600, 700}))
	medium := e.confidence(Input{TotalMatches: 50}, soldAll([]float64{500, 600, 700, 650, 550}))
	large := e.confidence(Input{TotalMatches: 50}, soldAll([]float64{500, 600, 700, 650, 550, 620, 580, 640, 530, 610}))

	assert.GreaterOrEqual(t, medium, small)
	assert.GreaterOrEqual(t, large, medium)
}

func TestConfidence_BroaderMarketNeverLowersScore(t *testing.T) {
	// Same validated sample, growing match count: a market with hundreds of
	// recorded sales is stronger evidence than one with a handful.
	e := newTestEngine()
	items := soldAll([]float64{500, 600, 700})

	prev := 0.0
	for _, matches := range []int{1, 6, 30, 600, 10000} {
		score := e.confidence(Input{TotalMatches: matches}, items)
		assert.GreaterOrEqual(t, score, prev, "matches %d", matches)
		prev = score
	}

	small := e.confidence(Input{TotalMatches: 6}, items)
	broad := e.confidence(Input{TotalMatches: 600}, items)
	assert.InDelta(t, 0.70, small, 0.001)
	assert.InDelta(t, 0.80, broad, 0.001)
}

func TestConfidence_StaysWithinBounds(t *testing.T) {
	e := newTestEngine()

	// Everything favorable: full coverage, large recent sample, perfect match.
	items := soldAll([]float64{500, 510, 520, 530, 540, 550, 560, 570, 580, 590})
	facts := domain.ItemFacts{PrimaryName: "Certina"}
	high := e.confidence(Input{TotalMatches: 10, Facts: facts}, items)
	assert.LessOrEqual(t, high, 0.95)

	// Everything unfavorable: ancient tiny sample out of a huge match count.
	old := []domain.SoldItem{
		sold(500, testNow.AddDate(-8, 0, 0)),
		sold(600, testNow.AddDate(-9, 0, 0)),
		sold(700, testNow.AddDate(-10, 0, 0)),
	}
	low := e.confidence(Input{TotalMatches: 10000}, old)
	assert.GreaterOrEqual(t, low, 0.1)
	assert.Less(t, low, high)
}

func TestTrend_RisingAndFallingAreSymmetric(t *testing.T) {
	e := newTestEngine()

	older := testNow.AddDate(-2, 0, 0)
	rising := []domain.SoldItem{
		sold(1000, older), sold(1000, older.AddDate(0, 1, 0)),
		sold(1100, testNow.AddDate(0, -2, 0)), sold(1100, testNow.AddDate(0, -1, 0)),
	}
	falling := []domain.SoldItem{
		sold(1100, older), sold(1100, older.AddDate(0, 1, 0)),
		sold(1000, testNow.AddDate(0, -2, 0)), sold(1000, testNow.AddDate(0, -1, 0)),
	}

	up := e.trend(rising)
	down := e.trend(falling)

	assert.Equal(t, domain.TrendRising, up.Direction)
	assert.Equal(t, domain.TrendFalling, down.Direction)
	require.NotNil(t, up.ChangePercent)
	require.NotNil(t, down.ChangePercent)
	assert.InDelta(t, 10.0, *up.ChangePercent, 0.01)
	assert.InDelta(t, -9.09, *down.ChangePercent, 0.01)
}

func TestTrend_Classification(t *testing.T) {
	tests := []struct {
		change float64
		want   domain.TrendDirection
	}{
		{30, domain.TrendRisingStrong},
		{10, domain.TrendRising},
		{2, domain.TrendStable},
		{-2, domain.TrendStable},
		{-10, domain.TrendFalling},
		{-30, domain.TrendFallingStrong},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyTrend(tt.change), "change %.0f%%", tt.change)
	}
}

func TestTrend_ExtremeSwingIsCapped(t *testing.T) {
	e := newTestEngine()

	older := testNow.AddDate(-2, 0, 0)
	items := []domain.SoldItem{
		sold(100, older), sold(100, older.AddDate(0, 1, 0)),
		sold(800, testNow.AddDate(0, -2, 0)), sold(800, testNow.AddDate(0, -1, 0)),
	}

	trend := e.trend(items)
	assert.Equal(t, domain.TrendRisingStrong, trend.Direction)
	assert.Equal(t, domain.TrendQualityExtreme, trend.DataQuality)
	require.NotNil(t, trend.ChangePercent)
	assert.Equal(t, 500.0, *trend.ChangePercent)
}

func TestTrend_SuspiciousSwingSuppressesMagnitude(t *testing.T) {
	e := newTestEngine()

	older := testNow.AddDate(-2, 0, 0)
	items := []domain.SoldItem{
		sold(100, older), sold(100, older.AddDate(0, 1, 0)),
		sold(5000, testNow.AddDate(0, -2, 0)), sold(5000, testNow.AddDate(0, -1, 0)),
	}

	trend := e.trend(items)
	assert.Equal(t, domain.TrendQualitySuspicious, trend.DataQuality)
	assert.Nil(t, trend.ChangePercent)
}

func TestTrend_UndatedSampleIsInsufficient(t *testing.T) {
	e := newTestEngine()
	items := []domain.SoldItem{
		{Title: "Vas", FinalPrice: floatPtr(500)},
		{Title: "Vas", FinalPrice: floatPtr(600)},
		{Title: "Vas", FinalPrice: floatPtr(700)},
	}
	assert.Equal(t, domain.TrendInsufficient, e.trend(items).Direction)
}

func floatPtr(v float64) *float64 { return &v }

func TestAnalyze_RecentSalesNewestFirstAndCapped(t *testing.T) {
	items := soldAll([]float64{100, 200, 300, 400, 500, 600, 700})

	result := newTestEngine().Analyze(Input{Items: items, TotalMatches: 7})
	require.Len(t, result.RecentSales, 5)
	for i := 1; i < len(result.RecentSales); i++ {
		assert.False(t, result.RecentSales[i].EndDate.After(result.RecentSales[i-1].EndDate))
	}
}

func TestLimitations_FlagsThinStaleAndMismatchedSamples(t *testing.T) {
	e := newTestEngine()

	old := []domain.SoldItem{
		sold(500, testNow.AddDate(-5, 0, 0)),
		sold(600, testNow.AddDate(-6, 0, 0)),
		{Title: "Helt annat objekt", FinalPrice: floatPtr(700), EndDate: testNow.AddDate(-7, 0, 0)},
	}
	notes := e.limitations(Input{Facts: domain.ItemFacts{PrimaryName: "Certina"}}, old)

	assert.Contains(t, notes, "Litet underlag")
	assert.Contains(t, notes, "äldre än två år")
	assert.Contains(t, notes, "matchar inte")

	fresh := soldAll([]float64{500, 550, 600, 620, 640, 660})
	assert.Empty(t, e.limitations(Input{Facts: domain.ItemFacts{PrimaryName: "Certina"}}, fresh))
}

func TestLimitations_TotalTitleMismatchStillFlagged(t *testing.T) {
	// Not a single title mentions the name. That is the strongest mismatch
	// signal there is and must not read as "no mismatch".
	e := newTestEngine()

	items := make([]domain.SoldItem, 0, 6)
	for i, p := range []float64{500, 550, 600, 620, 640, 660} {
		price := p
		items = append(items, domain.SoldItem{
			Title:      "Väggur, ek",
			FinalPrice: &price,
			EndDate:    testNow.AddDate(0, -i, 0),
		})
	}

	notes := e.limitations(Input{Facts: domain.ItemFacts{PrimaryName: "Certina"}}, items)
	assert.Contains(t, notes, "matchar inte")
	assert.NotContains(t, notes, "Litet underlag")

	// With no fact to match against there is nothing to flag.
	assert.NotContains(t, e.limitations(Input{}, items), "matchar inte")
}
