// Package revalue re-estimates a user's collection and reports market value moves.
//
// Every collectible is re-estimated through the price pipeline on a bounded
// worker pool and the new estimate is written back. Items whose market value
// moved by at least the configured fraction are returned as value changes,
// ranked by absolute percentage move:
//
//	pct = (new - old) / old
//
// Only the previously stored value is compared; no price history is kept.
package revalue

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/rewired-gh/curio/internal/logger"
	"github.com/rewired-gh/curio/internal/models"
	"github.com/rewired-gh/curio/internal/storage"
)

// Estimator produces a scored price distribution for an identity.
type Estimator interface {
	GetPriceEstimate(ctx context.Context, id models.Identity) models.PriceDistribution
}

// Store is the slice of the collection store a revaluation needs.
type Store interface {
	List(ctx context.Context, userID string, f storage.Filter) ([]*models.Collectible, error)
	SetPriceEstimate(ctx context.Context, userID, id string, est models.PriceEstimate) error
}

// Config controls a revaluation run.
type Config struct {
	Workers      int
	TopK         int
	MinChangePct float64 // fraction, 0.10 == 10%
}

// ItemError represents a per-collectible error during a run.
type ItemError struct {
	CollectibleID string
	Err           error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("revaluation error for collectible %s: %v", e.CollectibleID, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// Result summarises a run.
type Result struct {
	Revalued int                  `json:"revalued"`
	Valued   int                  `json:"valued"`
	Kept     int                  `json:"kept"`
	Changes  []models.ValueChange `json:"changes"`
	Errors   []ItemError          `json:"-"`
}

// Revaluer re-estimates collections.
type Revaluer struct {
	estimator Estimator
	store     Store
	cfg       Config
	now       func() time.Time
}

// New creates a Revaluer. Non-positive worker and top-K settings fall back
// to 1 and 10.
func New(est Estimator, store Store, cfg Config) *Revaluer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.TopK < 1 {
		cfg.TopK = 10
	}
	return &Revaluer{estimator: est, store: store, cfg: cfg, now: time.Now}
}

type outcome struct {
	change *models.ValueChange
	valued bool
	kept   bool
	err    *ItemError
}

// Run re-estimates every collectible owned by userID. A store listing
// failure is fatal; per-item write failures are collected in Result.Errors.
func (r *Revaluer) Run(ctx context.Context, userID string) (Result, error) {
	items, err := r.store.List(ctx, userID, storage.Filter{})
	if err != nil {
		return Result{}, fmt.Errorf("failed to list collection: %w", err)
	}

	p := pool.NewWithResults[outcome]().WithMaxGoroutines(r.cfg.Workers)
	for _, item := range items {
		p.Go(func() outcome {
			return r.revalueOne(ctx, item)
		})
	}
	outcomes := p.Wait()

	res := Result{Changes: []models.ValueChange{}}
	var changes []models.ValueChange
	for _, o := range outcomes {
		if o.err != nil {
			res.Errors = append(res.Errors, *o.err)
			continue
		}
		res.Revalued++
		if o.kept {
			res.Kept++
		}
		if o.valued {
			res.Valued++
		}
		if o.change != nil {
			changes = append(changes, *o.change)
		}
	}
	res.Changes = Rank(changes, r.cfg.MinChangePct, r.cfg.TopK)

	logger.Info("Revalued %d/%d collectibles for user %s (%d priced, %d notable changes, %d errors)",
		res.Revalued, len(items), userID, res.Valued, len(res.Changes), len(res.Errors))
	return res, nil
}

func (r *Revaluer) revalueOne(ctx context.Context, item *models.Collectible) outcome {
	if err := ctx.Err(); err != nil {
		return outcome{err: &ItemError{CollectibleID: item.ID, Err: err}}
	}

	dist := r.estimator.GetPriceEstimate(ctx, item.Identity())
	now := r.now()
	est := models.NewPriceEstimate(dist, now)

	if !item.AcceptsEstimate(est) {
		logger.Debug("No fresh value for %s, keeping stored estimate", item.ID)
		return outcome{valued: true, kept: true}
	}

	if err := r.store.SetPriceEstimate(ctx, item.UserID, item.ID, est); err != nil {
		logger.Warn("Failed to store estimate for %s: %v", item.ID, err)
		return outcome{err: &ItemError{CollectibleID: item.ID, Err: err}}
	}

	return outcome{
		change: DetectChange(item, est, now),
		valued: est.MarketValue != nil,
	}
}

// DetectChange compares a collectible's stored market value against a fresh
// estimate. It returns nil when either value is missing or not positive, or
// when the value did not move.
func DetectChange(item *models.Collectible, est models.PriceEstimate, at time.Time) *models.ValueChange {
	oldValue := item.MarketValue()
	if oldValue == nil || est.MarketValue == nil {
		return nil
	}
	prev, next := *oldValue, *est.MarketValue
	if prev <= 0 || next <= 0 || prev == next {
		return nil
	}

	direction := "increase"
	if next < prev {
		direction = "decrease"
	}
	return &models.ValueChange{
		ID:            uuid.New().String(),
		CollectibleID: item.ID,
		Name:          item.Name,
		OldValue:      prev,
		NewValue:      next,
		PercentChange: (next - prev) / prev,
		Direction:     direction,
		Confidence:    est.Level,
		DetectedAt:    at,
	}
}

// Rank drops changes smaller than minPct, orders the rest by absolute
// percentage descending (ties by collectible ID) and keeps the top k.
// Returns a non-nil slice.
func Rank(changes []models.ValueChange, minPct float64, k int) []models.ValueChange {
	ranked := make([]models.ValueChange, 0, len(changes))
	for _, c := range changes {
		// Tolerate float noise right at the threshold
		if c.Magnitude()+1e-9 < minPct {
			continue
		}
		ranked = append(ranked, c)
	}

	sort.Slice(ranked, func(i, j int) bool {
		mi, mj := ranked[i].Magnitude(), ranked[j].Magnitude()
		if math.Abs(mi-mj) > 1e-12 {
			return mi > mj
		}
		return ranked[i].CollectibleID < ranked[j].CollectibleID
	})

	if k <= 0 {
		return []models.ValueChange{}
	}
	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}
