package marketengine

import (
	"github.com/auctionkit/market-engine/internal/config"
	"github.com/auctionkit/market-engine/internal/domain"
)

// Re-exported domain types so callers never import internal packages.
type (
	ItemFacts            = domain.ItemFacts
	Domain               = domain.Domain
	SoldItem             = domain.SoldItem
	LiveItem             = domain.LiveItem
	SearchResult         = domain.SearchResult
	PriceRange           = domain.PriceRange
	Statistics           = domain.Statistics
	TrendAnalysis        = domain.TrendAnalysis
	TrendDirection       = domain.TrendDirection
	ExceptionalSale      = domain.ExceptionalSale
	ExceptionalSales     = domain.ExceptionalSales
	MarketAnalysisResult = domain.MarketAnalysisResult
	DomainError          = domain.DomainError
)

// Domain hints for AnalysisOptions.
const (
	DomainGeneral    = domain.DomainGeneral
	DomainJewelry    = domain.DomainJewelry
	DomainWatch      = domain.DomainWatch
	DomainInstrument = domain.DomainInstrument
)

// Trend directions.
const (
	TrendRisingStrong  = domain.TrendRisingStrong
	TrendRising        = domain.TrendRising
	TrendStable        = domain.TrendStable
	TrendFalling       = domain.TrendFalling
	TrendFallingStrong = domain.TrendFallingStrong
	TrendInsufficient  = domain.TrendInsufficient
)

// Config is the full engine configuration, for NewClientWithConfig.
type Config = config.Config

// DefaultConfig returns the default configuration, ready for overrides.
func DefaultConfig() *Config {
	return config.Default()
}

// AnalysisOptions carries per-request knobs.
type AnalysisOptions struct {
	// DomainHint overrides category detection when the caller already knows
	// what kind of item this is.
	DomainHint Domain
	// CurrentValuation is the caller's working valuation, zero when unknown.
	CurrentValuation float64
	// ItemContext is a free-text item description used to steer the AI
	// relevance filter.
	ItemContext string
	// TotalMatches is the reported match count when supplying pre-fetched
	// items to AnalyzeMarketData.
	TotalMatches int
}
