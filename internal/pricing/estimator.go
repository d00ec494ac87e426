// Package pricing turns free-text marketplace search results into a price
// distribution with a confidence score.
//
// The pipeline runs per request:
//
//	identity -> BuildQuery -> EnhanceQuery -> Searcher -> ExtractPrices -> Analyze -> Scorer
//
// Estimation is best-effort. Estimate reports why no data was found, and
// GetPriceEstimate is the single place that converts any failure into the
// zero-count distribution so callers never block on pricing.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rewired-gh/curio/internal/logger"
	"github.com/rewired-gh/curio/internal/metrics"
	"github.com/rewired-gh/curio/internal/models"
)

// DefaultSearchTimeout bounds the upstream call when no timeout is configured.
const DefaultSearchTimeout = 10 * time.Second

var (
	// ErrEmptyIdentity is returned when an identity has nothing to search for.
	ErrEmptyIdentity = errors.New("identity has no searchable fields")
	// ErrNoUsableData is returned when results contained no extractable prices.
	ErrNoUsableData = errors.New("no usable price data in search results")
)

// Searcher is the search collaborator consumed by the estimator.
type Searcher interface {
	SearchListings(ctx context.Context, query string) (models.SearchResults, error)
}

// Estimator orchestrates the price estimation pipeline.
type Estimator struct {
	searcher Searcher
	scorer   *Scorer
	timeout  time.Duration
}

// NewEstimator creates an Estimator. A nil scorer uses the default domain lists.
func NewEstimator(searcher Searcher, scorer *Scorer, timeout time.Duration) *Estimator {
	if scorer == nil {
		scorer = NewScorer(DefaultScorerConfig())
	}
	if timeout <= 0 {
		timeout = DefaultSearchTimeout
	}
	return &Estimator{
		searcher: searcher,
		scorer:   scorer,
		timeout:  timeout,
	}
}

// Estimate runs the full pipeline for an identity. Upstream failures are
// returned as errors; the distribution is only meaningful when err is nil.
func (e *Estimator) Estimate(ctx context.Context, id models.Identity) (models.PriceDistribution, error) {
	if id.IsEmpty() {
		return models.PriceDistribution{}, ErrEmptyIdentity
	}
	query := EnhanceQuery(BuildQuery(id))

	searchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	results, err := e.searcher.SearchListings(searchCtx, query)
	if err != nil {
		return models.PriceDistribution{}, fmt.Errorf("search for %q: %w", query, err)
	}

	observations := Observations(results.Items)
	if len(observations) == 0 {
		return models.PriceDistribution{}, ErrNoUsableData
	}

	d := Analyze(observations)
	d.Query = query
	d.Sources = models.NewSourceSet(results.Sources)
	e.score(&d, id)
	return d, nil
}

// GetPriceEstimate never fails: any error from Estimate degrades to a
// zero-count distribution scored on context alone.
func (e *Estimator) GetPriceEstimate(ctx context.Context, id models.Identity) models.PriceDistribution {
	d, err := e.Estimate(ctx, id)
	if err == nil {
		metrics.RecordEstimate(metrics.OutcomeOK, d.Count, d.Confidence.Score)
		logger.Debug("Price estimate for %q: count=%d confidence=%d", d.Query, d.Count, d.Confidence.Score)
		return d
	}

	switch {
	case errors.Is(err, ErrEmptyIdentity), errors.Is(err, ErrNoUsableData):
		metrics.RecordEstimate(metrics.OutcomeEmpty, 0, 0)
		logger.Debug("No price data for %q: %v", id.Name, err)
	default:
		metrics.RecordEstimate(metrics.OutcomeUpstreamError, 0, 0)
		logger.Warn("Price estimate unavailable for %q: %v", id.Name, err)
	}

	empty := models.EmptyDistribution()
	if !id.IsEmpty() {
		empty.Query = EnhanceQuery(BuildQuery(id))
	}
	e.score(&empty, id)
	return empty
}

func (e *Estimator) score(d *models.PriceDistribution, id models.Identity) {
	c := e.scorer.Score(ScoreInput{
		Distribution: *d,
		Sources:      d.Sources,
		Query:        d.Query,
		Condition:    id.Condition,
	})
	d.Confidence = &c
}

// Observations builds the raw observation bag from search listings. A listing
// contributes its structured offer price and every price in its snippet; the
// title is only consulted when neither yields a value.
func Observations(items []models.Listing) []float64 {
	var out []float64
	for _, item := range items {
		found := false
		if item.OfferPrice != nil && valid(*item.OfferPrice) {
			out = append(out, *item.OfferPrice)
			found = true
		}
		if prices := ExtractPrices(item.Snippet); len(prices) > 0 {
			out = append(out, prices...)
			found = true
		}
		if !found {
			if p, ok := ExtractPrice(item.Title); ok {
				out = append(out, p)
			}
		}
	}
	return out
}
