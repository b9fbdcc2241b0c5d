// Package auction implements the search client against the external
// auction-results API: query execution, pagination, record normalization and
// query-result caching.
package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/auctionkit/market-engine/internal/cache"
	"github.com/auctionkit/market-engine/internal/config"
	"github.com/auctionkit/market-engine/internal/domain"
	"github.com/auctionkit/market-engine/internal/observability"
)

// SearchClient executes queries against the auction API. Transport failures
// never reach the strategy loop as errors: a failed search reads as "no data
// for this strategy" and the next, broader strategy gets its turn.
type SearchClient struct {
	httpClient       *http.Client
	baseURL          string
	pageSize         int
	pageCap          int
	qualityThreshold int
	excludedSellerID string
	cache            cache.Client
	endedTTL         time.Duration
	liveTTL          time.Duration
	logger           *observability.Logger
	now              func() time.Time
}

// NewSearchClient creates a search client. The cache is injected rather than
// ambient so callers control isolation and tests control time.
func NewSearchClient(cfg config.SearchConfig, cacheCfg config.CacheConfig, cacheClient cache.Client, logger *observability.Logger) *SearchClient {
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	return &SearchClient{
		httpClient:       &http.Client{Timeout: cfg.Timeout},
		baseURL:          cfg.BaseURL,
		pageSize:         cfg.PageSize,
		pageCap:          cfg.PageCap,
		qualityThreshold: cfg.QualityThreshold,
		excludedSellerID: cfg.ExcludedSellerID,
		cache:            cacheClient,
		endedTTL:         cacheCfg.EndedTTL,
		liveTTL:          cacheCfg.LiveTTL,
		logger:           logger,
		now:              time.Now,
	}
}

// SetClock replaces the client's time source. Used in tests.
func (c *SearchClient) SetClock(now func() time.Time) {
	c.now = now
}

// SearchEnded runs one query over historical auctions, paginating until the
// usable-record threshold is met or the page cap is hit. Returns nil on
// transport failure or zero usable results.
func (c *SearchClient) SearchEnded(ctx context.Context, query string, maxResultsHint int) *domain.SearchResult {
	return c.search(ctx, query, domain.ResultKindEnded, maxResultsHint)
}

// SearchLive runs one query over in-progress auctions.
func (c *SearchClient) SearchLive(ctx context.Context, query string, maxResultsHint int) *domain.SearchResult {
	return c.search(ctx, query, domain.ResultKindLive, maxResultsHint)
}

func (c *SearchClient) search(ctx context.Context, query string, kind domain.ResultKind, maxResultsHint int) *domain.SearchResult {
	log := c.logger.WithOperation("auction_search")

	key := c.cacheKey(query, kind)
	if cached := c.fromCache(ctx, key); cached != nil {
		log.Debug().Str("query", query).Str("kind", string(kind)).Msg("Cache hit")
		return c.trim(cached, maxResultsHint)
	}

	result := c.fetchAll(ctx, query, kind)
	if result == nil {
		return nil
	}

	c.toCache(ctx, key, kind, result)
	return c.trim(result, maxResultsHint)
}

// fetchAll paginates the API sequentially. Page N+1 is only requested when
// page N's usable yield is still below the quality threshold and more pages
// exist, up to the hard page cap. This bounds worst-case latency while
// maximizing the sample for popular queries.
func (c *SearchClient) fetchAll(ctx context.Context, query string, kind domain.ResultKind) *domain.SearchResult {
	log := c.logger.WithOperation("auction_search")
	now := c.now()

	result := &domain.SearchResult{Query: query}
	usable := 0

	for page := 1; page <= c.pageCap; page++ {
		resp := c.fetchPage(ctx, query, kind, page)
		if resp == nil {
			// A failed first page means no data; a failed later page means
			// we analyze what we already have.
			if page == 1 {
				return nil
			}
			break
		}

		result.TotalEntries = resp.Pagination.TotalEntries

		for _, raw := range resp.Items {
			if c.excludedSellerID != "" && raw.SellerID == c.excludedSellerID {
				continue
			}
			if kind == domain.ResultKindLive {
				if item, ok := normalizeLiveItem(raw, now); ok {
					result.LiveItems = append(result.LiveItems, item)
				}
				continue
			}
			if item, ok := normalizeSoldItem(raw, now); ok {
				result.SoldItems = append(result.SoldItems, item)
			}
			if isQuickUsable(raw) {
				usable++
			}
		}

		if kind == domain.ResultKindLive {
			usable = len(result.LiveItems)
		}

		lastPage := resp.Pagination.TotalPages
		if lastPage > 0 && page >= lastPage {
			break
		}
		if usable >= c.qualityThreshold {
			break
		}
	}

	if len(result.SoldItems) == 0 && len(result.LiveItems) == 0 {
		log.Debug().Str("query", query).Int("total_entries", result.TotalEntries).Msg("No usable records")
		return nil
	}

	result.DataQuality = "good"
	if usable < c.qualityThreshold {
		result.DataQuality = "sparse"
	}

	log.Info().
		Str("query", query).
		Str("kind", string(kind)).
		Int("total_entries", result.TotalEntries).
		Int("sold_items", len(result.SoldItems)).
		Int("live_items", len(result.LiveItems)).
		Str("data_quality", result.DataQuality).
		Msg("Search complete")
	return result
}

// fetchPage performs one GET with a single retry on throttling or server
// errors. Any remaining failure is logged and converted to nil.
func (c *SearchClient) fetchPage(ctx context.Context, query string, kind domain.ResultKind, page int) *searchResponse {
	log := c.logger.WithOperation("auction_search")

	endpoint, err := c.buildURL(query, kind, page)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("Failed to build search URL")
		return nil
	}

	for attempt := 0; attempt < 2; attempt++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		resp, err := c.doGet(ctx, endpoint)
		if err != nil {
			log.Warn().Err(err).Str("query", query).Int("page", page).Msg("Search request failed")
			return nil
		}

		if resp.StatusCode == http.StatusOK {
			parsed, err := decodeResponse(resp.Body)
			resp.Body.Close()
			if err != nil {
				log.Warn().Err(err).Str("query", query).Int("page", page).Msg("Malformed search response")
				return nil
			}
			return parsed
		}

		resp.Body.Close()
		if attempt == 0 && retryableStatus(resp.StatusCode) {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		log.Warn().Int("status", resp.StatusCode).Str("query", query).Int("page", page).Msg("Search returned error status")
		return nil
	}
	return nil
}

func (c *SearchClient) doGet(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}

func (c *SearchClient) buildURL(query string, kind domain.ResultKind, page int) (string, error) {
	base, err := url.Parse(c.baseURL + "/items.json")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(c.pageSize))
	if kind == domain.ResultKindEnded {
		params.Set("is", "ended")
	}

	base.RawQuery = params.Encode()
	return base.String(), nil
}

func decodeResponse(body io.Reader) (*searchResponse, error) {
	var parsed searchResponse
	if err := json.NewDecoder(body).Decode(&parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// cacheKey includes every setting that affects results, so a changed
// exclusion filter can never read another configuration's entries.
func (c *SearchClient) cacheKey(query string, kind domain.ResultKind) string {
	return string(kind) + ":" + cache.Key(
		query,
		string(kind),
		strconv.Itoa(c.pageSize),
		"exclude:"+c.excludedSellerID,
	)
}

func (c *SearchClient) fromCache(ctx context.Context, key string) *domain.SearchResult {
	if c.cache == nil {
		return nil
	}
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil
	}
	var result domain.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		// A corrupt entry reads as a miss; the overwrite heals it.
		return nil
	}
	return &result
}

func (c *SearchClient) toCache(ctx context.Context, key string, kind domain.ResultKind, result *domain.SearchResult) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	ttl := c.endedTTL
	if kind == domain.ResultKindLive {
		ttl = c.liveTTL
	}
	if err := c.cache.Set(ctx, key, data, ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache search result")
	}
}

// trim caps the returned item count without mutating the cached copy.
func (c *SearchClient) trim(result *domain.SearchResult, maxResultsHint int) *domain.SearchResult {
	if maxResultsHint <= 0 {
		return result
	}
	out := *result
	if len(out.SoldItems) > maxResultsHint {
		out.SoldItems = out.SoldItems[:maxResultsHint]
	}
	if len(out.LiveItems) > maxResultsHint {
		out.LiveItems = out.LiveItems[:maxResultsHint]
	}
	return &out
}
