package revalue

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/curio/internal/models"
	"github.com/rewired-gh/curio/internal/storage"
)

// priceBook answers estimates by collectible name.
type priceBook struct {
	mu     sync.Mutex
	values map[string]float64
	calls  int
}

func (b *priceBook) GetPriceEstimate(_ context.Context, id models.Identity) models.PriceDistribution {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	d := models.EmptyDistribution()
	v, ok := b.values[id.Name]
	if !ok {
		d.Confidence = &models.ConfidenceScore{Score: 10, Level: models.LevelLow}
		return d
	}
	d.Low, d.High, d.Average, d.Median = models.Float(v), models.Float(v), models.Float(v), models.Float(v)
	d.All = []float64{v}
	d.Count = 1
	d.Confidence = &models.ConfidenceScore{Score: 55, Level: models.LevelMedium}
	return d
}

func newStore(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(filepath.Join(t.TempDir(), "curio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *storage.Storage, userID, name string, value *float64) *models.Collectible {
	t.Helper()
	ctx := context.Background()
	c := &models.Collectible{UserID: userID, Name: name}
	require.NoError(t, s.Create(ctx, c))
	if value != nil {
		require.NoError(t, s.SetPriceEstimate(ctx, userID, c.ID, models.PriceEstimate{MarketValue: value, EstimatedAt: time.Now()}))
	}
	return c
}

func TestRun_DetectsAndRanksChanges(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	seed(t, s, "u1", "Doubled", models.Float(100))
	seed(t, s, "u1", "Halved", models.Float(100))
	seed(t, s, "u1", "Steady", models.Float(100))
	seed(t, s, "u1", "Nudged", models.Float(100))
	fresh := seed(t, s, "u1", "New Item", nil)
	seed(t, s, "u2", "Someone Else", models.Float(100))

	book := &priceBook{values: map[string]float64{
		"Doubled":      200,
		"Halved":       50,
		"Steady":       100,
		"Nudged":       105,
		"New Item":     30,
		"Someone Else": 1000,
	}}
	r := New(book, s, Config{Workers: 3, TopK: 10, MinChangePct: 0.10})

	res, err := r.Run(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Revalued)
	assert.Equal(t, 5, res.Valued)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 5, book.calls)

	require.Len(t, res.Changes, 2)
	assert.Equal(t, "Doubled", res.Changes[0].Name)
	assert.Equal(t, "increase", res.Changes[0].Direction)
	assert.InDelta(t, 1.0, res.Changes[0].PercentChange, 1e-9)
	assert.Equal(t, "Halved", res.Changes[1].Name)
	assert.Equal(t, "decrease", res.Changes[1].Direction)
	for _, c := range res.Changes {
		assert.NoError(t, c.Validate())
		assert.Equal(t, models.LevelMedium, c.Confidence)
	}

	got, err := s.Get(ctx, "u1", fresh.ID)
	require.NoError(t, err)
	require.NotNil(t, got.MarketValue())
	assert.InDelta(t, 30, *got.MarketValue(), 1e-9)
	assert.Equal(t, 55, got.Estimate.Confidence)
}

func TestRun_KeepsStoredValueWhenNoData(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	c := seed(t, s, "u1", "Rare Thing", models.Float(250))
	unpriced := seed(t, s, "u1", "Unknown Thing", nil)

	r := New(&priceBook{values: map[string]float64{}}, s, Config{Workers: 2, MinChangePct: 0.1})
	res, err := r.Run(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Revalued)
	assert.Equal(t, 1, res.Kept)
	assert.Empty(t, res.Changes)

	got, err := s.Get(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.InDelta(t, 250, *got.MarketValue(), 1e-9)

	got, err = s.Get(ctx, "u1", unpriced.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Estimate)
	assert.Nil(t, got.Estimate.MarketValue)
	assert.Equal(t, models.LevelLow, got.Estimate.Level)
}

func TestRun_EmptyCollection(t *testing.T) {
	r := New(&priceBook{}, newStore(t), Config{})
	res, err := r.Run(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, res.Revalued)
	assert.NotNil(t, res.Changes)
	assert.Empty(t, res.Changes)
}

type brokenStore struct {
	items   []*models.Collectible
	listErr error
	failID  string
}

func (b *brokenStore) List(context.Context, string, storage.Filter) ([]*models.Collectible, error) {
	return b.items, b.listErr
}

func (b *brokenStore) SetPriceEstimate(_ context.Context, _, id string, _ models.PriceEstimate) error {
	if id == b.failID {
		return errors.New("disk full")
	}
	return nil
}

func TestRun_ListFailureIsFatal(t *testing.T) {
	r := New(&priceBook{}, &brokenStore{listErr: errors.New("locked")}, Config{})
	_, err := r.Run(context.Background(), "u1")
	assert.Error(t, err)
}

func TestRun_WriteFailureIsPerItem(t *testing.T) {
	store := &brokenStore{
		items: []*models.Collectible{
			{ID: "a", UserID: "u1", Name: "A"},
			{ID: "b", UserID: "u1", Name: "B"},
		},
		failID: "b",
	}
	r := New(&priceBook{values: map[string]float64{"A": 1, "B": 2}}, store, Config{Workers: 2})
	res, err := r.Run(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Revalued)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "b", res.Errors[0].CollectibleID)
	assert.Contains(t, res.Errors[0].Error(), "disk full")
}

func TestRun_CancelledContext(t *testing.T) {
	store := &brokenStore{items: []*models.Collectible{{ID: "a", UserID: "u1", Name: "A"}}}
	book := &priceBook{values: map[string]float64{"A": 1}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(book, store, Config{}).Run(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], context.Canceled)
	assert.Zero(t, book.calls)
}

func TestDetectChange(t *testing.T) {
	now := time.Now()
	withValue := func(v *float64) *models.Collectible {
		c := &models.Collectible{ID: "c1", Name: "Coin"}
		if v != nil {
			c.Estimate = &models.PriceEstimate{MarketValue: v}
		}
		return c
	}

	tests := []struct {
		name    string
		old     *float64
		new     *float64
		wantNil bool
		wantPct float64
		wantDir string
	}{
		{"no previous value", nil, models.Float(10), true, 0, ""},
		{"no new value", models.Float(10), nil, true, 0, ""},
		{"unchanged", models.Float(10), models.Float(10), true, 0, ""},
		{"zero previous value", models.Float(0), models.Float(10), true, 0, ""},
		{"increase", models.Float(80), models.Float(100), false, 0.25, "increase"},
		{"decrease", models.Float(100), models.Float(60), false, -0.40, "decrease"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectChange(withValue(tt.old), models.PriceEstimate{MarketValue: tt.new, Level: models.LevelHigh}, now)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, tt.wantPct, got.PercentChange, 1e-9)
			assert.Equal(t, tt.wantDir, got.Direction)
			assert.Equal(t, models.LevelHigh, got.Confidence)
			assert.NotEmpty(t, got.ID)
			assert.NoError(t, got.Validate())
		})
	}
}

func change(id string, pct float64) models.ValueChange {
	return models.ValueChange{CollectibleID: id, PercentChange: pct}
}

func TestRank(t *testing.T) {
	changes := []models.ValueChange{
		change("a", 0.05),
		change("b", -0.50),
		change("c", 0.30),
		change("d", 0.50),
		change("e", 0.10),
	}

	tests := []struct {
		name   string
		minPct float64
		k      int
		want   []string
	}{
		{"threshold and ordering", 0.10, 10, []string{"b", "d", "c", "e"}},
		{"top k", 0.10, 2, []string{"b", "d"}},
		{"zero threshold keeps all", 0, 10, []string{"b", "d", "c", "e", "a"}},
		{"k zero", 0, 0, []string{}},
		{"nothing passes", 0.9, 10, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rank(changes, tt.minPct, tt.k)
			require.NotNil(t, got)
			ids := make([]string, len(got))
			for i, c := range got {
				ids[i] = c.CollectibleID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	changes := []models.ValueChange{change("a", 0.1), change("b", 0.9)}
	_ = Rank(changes, 0, 10)
	assert.Equal(t, "a", changes[0].CollectibleID)
}
