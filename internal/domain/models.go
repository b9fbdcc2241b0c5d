package domain

import (
	"strings"
	"time"
)

// HomeCurrency is the single currency the engine reasons about. Records in
// any other currency are dropped during normalization rather than converted.
const HomeCurrency = "SEK"

// Domain classifies an item into a search-strategy family. Jewelry, watches
// and instruments need progressively broader fallback queries because overly
// specific queries return zero results far more often in those categories.
type Domain string

const (
	DomainGeneral    Domain = "general"
	DomainJewelry    Domain = "jewelry"
	DomainWatch      Domain = "watch"
	DomainInstrument Domain = "instrument"
)

// ItemFacts holds the structured facts about an item under valuation.
// All fields are optional; at least one must be non-empty to build strategies.
type ItemFacts struct {
	PrimaryName string // artist or brand, e.g. "Lisa Larson", "Omega"
	ObjectType  string // e.g. "armbandsur", "brosch", "litografi"
	Period      string // e.g. "1960-tal"
	Technique   string // e.g. "olja på duk", "18k guld"
}

// IsEmpty reports whether no usable fact is present.
func (f ItemFacts) IsEmpty() bool {
	return strings.TrimSpace(f.PrimaryName) == "" &&
		strings.TrimSpace(f.ObjectType) == "" &&
		strings.TrimSpace(f.Period) == "" &&
		strings.TrimSpace(f.Technique) == ""
}

// SearchStrategy is one candidate query plus metadata. Strategies are tried
// most-specific-first; Weight is a tie-break hint only, not a hard ranking.
type SearchStrategy struct {
	Query       string
	Description string
	Weight      float64
}

// ResultKind selects between historical and in-progress auction searches.
type ResultKind string

const (
	ResultKindEnded ResultKind = "ended"
	ResultKindLive  ResultKind = "live"
)

// SoldItem is a normalized historical auction record. FinalPrice is nil when
// the lot failed to sell. IsEstimateBasedPrice flags records whose "price" is
// an auctioneer estimate rather than a hammer price; that distinction is
// load-bearing for every downstream statistic.
type SoldItem struct {
	Title                string
	FinalPrice           *float64
	Currency             string
	Estimate             *float64
	House                string
	Location             string
	EndDate              time.Time
	BidDate              time.Time
	ReserveMet           bool
	ReserveAmount        *float64
	Description          string
	Condition            string
	URL                  string
	IsEstimateBasedPrice bool
}

// HasConfirmedPrice reports whether the item carries a real positive hammer
// price, as opposed to no sale or an estimate-based figure.
func (s SoldItem) HasConfirmedPrice() bool {
	return s.FinalPrice != nil && *s.FinalPrice > 0 && !s.IsEstimateBasedPrice
}

// PriceOrEstimate returns the best available price figure, preferring the
// hammer price. Returns 0 when neither exists.
func (s SoldItem) PriceOrEstimate() float64 {
	if s.FinalPrice != nil && *s.FinalPrice > 0 {
		return *s.FinalPrice
	}
	if s.Estimate != nil && *s.Estimate > 0 {
		return *s.Estimate
	}
	return 0
}

// LiveItem is a normalized in-progress auction record.
type LiveItem struct {
	Title      string
	CurrentBid *float64
	Currency   string
	Estimate   *float64
	House      string
	Location   string
	EndDate    time.Time
	BidCount   int
	URL        string
}

// SearchResult is the outcome of running one search strategy to completion.
type SearchResult struct {
	TotalEntries int
	SoldItems    []SoldItem
	LiveItems    []LiveItem
	DataQuality  string // "good" or "sparse"
	Query        string
}

// PriceRange is the user-facing low/high band for an item.
type PriceRange struct {
	Low      float64 `json:"low"`
	High     float64 `json:"high"`
	Currency string  `json:"currency"`
}

// Statistics is the outlier-adjusted numeric block of an analysis.
type Statistics struct {
	Average      float64 `json:"average"`
	Median       float64 `json:"median"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	SampleSize   int     `json:"sample_size"`
	TotalMatches int     `json:"total_matches"`
}

// TrendDirection classifies price movement between the older and newer half
// of a dated sample.
type TrendDirection string

const (
	TrendRisingStrong  TrendDirection = "rising_strong"
	TrendRising        TrendDirection = "rising"
	TrendStable        TrendDirection = "stable"
	TrendFalling       TrendDirection = "falling"
	TrendFallingStrong TrendDirection = "falling_strong"
	TrendInsufficient  TrendDirection = "insufficient_data"
)

// Trend data-quality flags. Small noisy samples can report absurd percentage
// swings; anything past these bounds is capped or suppressed for display.
const (
	TrendQualityNormal     = "normal"
	TrendQualityExtreme    = "extreme_trend"
	TrendQualitySuspicious = "mixed_suspicious"
)

// TrendAnalysis describes price direction over the sample's time span.
type TrendAnalysis struct {
	Direction     TrendDirection `json:"direction"`
	ChangePercent *float64       `json:"change_percent,omitempty"` // nil when magnitude is suppressed
	DataQuality   string         `json:"data_quality"`
	OlderAverage  float64        `json:"older_average"`
	NewerAverage  float64        `json:"newer_average"`
	SampleSize    int            `json:"sample_size"`
}

// ExceptionalSale is one confirmed sale priced far above the comparable
// sample, reported separately rather than blended into averages.
type ExceptionalSale struct {
	Item             SoldItem `json:"item"`
	Price            float64  `json:"price"`
	RatioToMedian    float64  `json:"ratio_to_median"`
	RatioToEstimate  *float64 `json:"ratio_to_estimate,omitempty"`
	RatioToValuation *float64 `json:"ratio_to_valuation,omitempty"`
}

// ExceptionalSales groups the detected outlier sales with their threshold.
type ExceptionalSales struct {
	Threshold float64           `json:"threshold"`
	Sales     []ExceptionalSale `json:"sales"`
}

// MarketAnalysisResult is the full output of one analysis. It is recomputed
// per call and read-only to all callers.
type MarketAnalysisResult struct {
	HasComparableData bool              `json:"has_comparable_data"`
	PriceRange        PriceRange        `json:"price_range"`
	Confidence        float64           `json:"confidence"`
	MarketContext     string            `json:"market_context"`
	RecentSales       []SoldItem        `json:"recent_sales"`
	TrendAnalysis     TrendAnalysis     `json:"trend_analysis"`
	ExceptionalSales  *ExceptionalSales `json:"exceptional_sales,omitempty"`
	Limitations       string            `json:"limitations,omitempty"`
	Statistics        Statistics        `json:"statistics"`

	// Diagnostics for the no-data case: the last query attempted and the
	// strategies tried, so the caller can render "insufficient data" usefully.
	SearchQuery     string   `json:"search_query,omitempty"`
	StrategiesTried []string `json:"strategies_tried,omitempty"`
}

// NoComparableData builds the structured not-found result. Lower layers never
// throw for "no data"; this object is the vehicle instead.
func NoComparableData(totalMatches int, lastQuery string, tried []string) *MarketAnalysisResult {
	return &MarketAnalysisResult{
		HasComparableData: false,
		Confidence:        0.1,
		MarketContext:     "Inga jämförbara försäljningar hittades",
		SearchQuery:       lastQuery,
		StrategiesTried:   tried,
		Statistics:        Statistics{TotalMatches: totalMatches},
		TrendAnalysis:     TrendAnalysis{Direction: TrendInsufficient, DataQuality: TrendQualityNormal},
	}
}
