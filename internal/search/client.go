// Package search adapts a web search provider into the typed listings
// contract consumed by the pricing pipeline.
//
// The Google Custom Search adapter applies a client-side rate limit, a
// circuit breaker and a per-call timeout, and maps provider JSON (including
// structured offer prices from pagemap metadata) into models.SearchResults.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/rewired-gh/curio/internal/logger"
	"github.com/rewired-gh/curio/internal/metrics"
	"github.com/rewired-gh/curio/internal/models"
	"github.com/rewired-gh/curio/internal/pricing"
)

// Config holds Google Custom Search client settings.
type Config struct {
	APIKey            string
	EngineID          string
	Endpoint          string // overrides the API base URL, mainly for tests
	Timeout           time.Duration
	ResultsPerQuery   int
	RequestsPerSecond float64
	Burst             int
	BreakerFailures   uint32
	BreakerCooldown   time.Duration
	HTTPClient        *http.Client // when set, used instead of API key auth
}

// Client queries Google Custom Search for marketplace listings.
type Client struct {
	svc      *customsearch.Service
	engineID string
	num      int64
	timeout  time.Duration
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[*customsearch.Search]
}

// NewClient creates a new Custom Search client
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.EngineID == "" {
		return nil, errors.New("search engine ID is required")
	}

	var opts []option.ClientOption
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	} else {
		if cfg.APIKey == "" {
			return nil, errors.New("search API key is required")
		}
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create custom search service: %w", err)
	}

	if cfg.ResultsPerQuery <= 0 || cfg.ResultsPerQuery > 10 {
		cfg.ResultsPerQuery = 10
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = time.Minute
	}

	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker[*customsearch.Search](gobreaker.Settings{
		Name:        "custom-search",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Search circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Client{
		svc:      svc,
		engineID: cfg.EngineID,
		num:      int64(cfg.ResultsPerQuery),
		timeout:  cfg.Timeout,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker:  breaker,
	}, nil
}

// SearchListings runs one search and maps the response into listings and
// per-host source counts. Every failure is returned as *UpstreamError.
func (c *Client) SearchListings(ctx context.Context, query string) (models.SearchResults, error) {
	start := time.Now()
	results, err := c.search(ctx, query)
	if err != nil {
		ue := classify(err)
		metrics.RecordSearch(string(ue.Kind), time.Since(start))
		return models.SearchResults{}, ue
	}
	metrics.RecordSearch("ok", time.Since(start))
	return results, nil
}

func (c *Client) search(ctx context.Context, query string) (models.SearchResults, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return models.SearchResults{}, &UpstreamError{Kind: KindRateLimited, Err: err}
	}

	resp, err := c.breaker.Execute(func() (*customsearch.Search, error) {
		return c.svc.Cse.List().Cx(c.engineID).Q(query).Num(c.num).Context(ctx).Do()
	})
	if err != nil {
		return models.SearchResults{}, err
	}
	if resp == nil {
		return models.SearchResults{}, &UpstreamError{Kind: KindMalformed, Err: errors.New("empty response")}
	}

	logger.Debug("Search %q returned %d items", query, len(resp.Items))
	return mapResults(resp.Items), nil
}

// mapResults converts provider items into the pipeline contract, skipping
// nil items and deriving source counts from link hostnames.
func mapResults(items []*customsearch.Result) models.SearchResults {
	out := models.SearchResults{Items: make([]models.Listing, 0, len(items))}
	counts := make(map[string]int)

	for _, item := range items {
		if item == nil {
			continue
		}
		listing := models.Listing{
			Title:   item.Title,
			Snippet: item.Snippet,
			Link:    item.Link,
		}
		if price, ok := offerPrice(item.Pagemap); ok {
			listing.OfferPrice = models.Float(price)
		}
		out.Items = append(out.Items, listing)

		host := hostname(item.Link)
		if host == "" {
			host = pricing.NormalizeHost(item.DisplayLink)
		}
		if host != "" {
			counts[host]++
		}
	}

	out.Sources = make([]models.SourceCount, 0, len(counts))
	for host, n := range counts {
		out.Sources = append(out.Sources, models.SourceCount{Hostname: host, Count: n})
	}
	sort.Slice(out.Sources, func(i, j int) bool {
		if out.Sources[i].Count != out.Sources[j].Count {
			return out.Sources[i].Count > out.Sources[j].Count
		}
		return out.Sources[i].Hostname < out.Sources[j].Hostname
	})
	return out
}

func hostname(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return pricing.NormalizeHost(u.Hostname())
}

// Unavailable is the Searcher used when no provider is configured; every
// call fails so estimates degrade to empty distributions.
type Unavailable struct{}

// SearchListings always returns an unavailable error.
func (Unavailable) SearchListings(context.Context, string) (models.SearchResults, error) {
	return models.SearchResults{}, &UpstreamError{Kind: KindUnavailable, Err: errors.New("no search provider configured")}
}
