// Package marketengine is the public entry point for comparable-sales market
// analysis. It wires the search strategies, the auction API client, the query
// cache, relevance validation and the statistics engine behind one client.
package marketengine

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/auctionkit/market-engine/internal/analysis"
	"github.com/auctionkit/market-engine/internal/auction"
	"github.com/auctionkit/market-engine/internal/cache"
	"github.com/auctionkit/market-engine/internal/config"
	"github.com/auctionkit/market-engine/internal/domain"
	"github.com/auctionkit/market-engine/internal/llm"
	"github.com/auctionkit/market-engine/internal/observability"
	"github.com/auctionkit/market-engine/internal/relevance"
	"github.com/auctionkit/market-engine/internal/stats"
	"github.com/auctionkit/market-engine/internal/strategy"
)

// Client is the market analysis engine. Safe for concurrent use.
type Client struct {
	cfg     *config.Config
	logger  *observability.Logger
	cache   cache.Client
	memory  *cache.MemoryCache
	search  *auction.SearchClient
	service *analysis.Service
}

// NewClient creates a client from environment configuration. A .env file in
// the working directory is honored when present; the config file path comes
// from MARKET_CONFIG_FILE.
func NewClient() (*Client, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("MARKET_CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	return NewClientWithConfig(cfg)
}

// NewClientWithConfig creates a client from an explicit configuration.
func NewClientWithConfig(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, domain.ConfigError("invalid configuration", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "market-engine",
	})

	c := &Client{cfg: cfg, logger: logger}

	switch cfg.Cache.Driver {
	case "redis":
		redisClient, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		c.cache = redisClient
	default:
		c.memory = cache.NewMemoryCache()
		c.cache = c.memory
	}

	c.search = auction.NewSearchClient(cfg.Search, cfg.Cache, c.cache, logger)

	aiFilter := c.buildAIFilter()
	engine := stats.NewEngine(cfg.Stats, logger)

	c.service = analysis.NewService(
		strategy.NewBuilder(),
		c.search,
		relevance.NewValidator(logger),
		aiFilter,
		engine,
		logger,
	)
	return c, nil
}

// buildAIFilter wires the completion backend when AI filtering is enabled
// and a key is configured. A missing key quietly disables the filter; the
// pipeline is designed to run without it.
func (c *Client) buildAIFilter() *relevance.AIFilter {
	if !c.cfg.AI.Enabled || c.cfg.AI.APIKey == "" {
		return nil
	}
	completer, err := llm.NewClient(llm.Config{
		APIKey:  c.cfg.AI.APIKey,
		Model:   c.cfg.AI.Model,
		BaseURL: c.cfg.AI.BaseURL,
		Timeout: c.cfg.AI.Timeout,
		Logger:  c.logger,
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("AI relevance filter disabled")
		return nil
	}
	return relevance.NewAIFilter(completer, c.cfg.AI.Timeout, c.logger)
}

// AnalyzeComparableSales searches for comparable sold items and computes the
// full market analysis. Returns the structured no-data result rather than an
// error when nothing comparable is found.
func (c *Client) AnalyzeComparableSales(ctx context.Context, facts ItemFacts, opts AnalysisOptions) (*MarketAnalysisResult, error) {
	return c.service.AnalyzeComparableSales(ctx, facts, analysis.Options{
		DomainHint:       opts.DomainHint,
		CurrentValuation: opts.CurrentValuation,
		ItemContext:      opts.ItemContext,
	})
}

// AnalyzeMarketData analyzes a caller-supplied item set, bypassing search.
func (c *Client) AnalyzeMarketData(ctx context.Context, items []SoldItem, facts ItemFacts, opts AnalysisOptions) *MarketAnalysisResult {
	return c.service.AnalyzeMarketData(ctx, items, facts, analysis.Options{
		DomainHint:       opts.DomainHint,
		CurrentValuation: opts.CurrentValuation,
		ItemContext:      opts.ItemContext,
		TotalMatches:     opts.TotalMatches,
	})
}

// SearchAuctionResults runs one raw query against historical auctions. The
// label is a caller-chosen tag describing what the query is for; it is
// carried in the log context so a search can be traced back to its purpose.
// A nil result means the query yielded nothing usable.
func (c *Client) SearchAuctionResults(ctx context.Context, query, label string, maxResults int) *SearchResult {
	log := c.logger.WithOperation("raw_search")
	result := c.search.SearchEnded(ctx, query, maxResults)
	if result == nil {
		log.Info().Str("query", query).Str("label", label).Msg("Search yielded nothing usable")
		return nil
	}
	log.Info().
		Str("query", query).
		Str("label", label).
		Int("sold_items", len(result.SoldItems)).
		Msg("Search complete")
	return result
}

// SearchLiveAuctions runs one raw query against in-progress auctions.
func (c *Client) SearchLiveAuctions(ctx context.Context, query, label string, maxResults int) *SearchResult {
	log := c.logger.WithOperation("raw_search")
	result := c.search.SearchLive(ctx, query, maxResults)
	if result == nil {
		log.Info().Str("query", query).Str("label", label).Msg("Search yielded nothing usable")
		return nil
	}
	log.Info().
		Str("query", query).
		Str("label", label).
		Int("live_items", len(result.LiveItems)).
		Msg("Search complete")
	return result
}

// ClearExpiredCache evicts expired entries eagerly and returns the count
// removed. Only meaningful for the in-memory driver; Redis expires entries
// on its own.
func (c *Client) ClearExpiredCache() int {
	if c.memory == nil {
		return 0
	}
	return c.memory.SweepExpired()
}

// Close releases the cache backend.
func (c *Client) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}
