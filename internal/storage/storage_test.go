package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/curio/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "curio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func addCollectible(t *testing.T, s *Storage, userID, name string, value *float64) *models.Collectible {
	t.Helper()
	c := &models.Collectible{UserID: userID, Name: name, Category: "coins", Manufacturer: "US Mint"}
	require.NoError(t, s.Create(context.Background(), c))
	if value != nil {
		est := models.PriceEstimate{MarketValue: value, Count: 3, Confidence: 50, Level: models.LevelMedium, EstimatedAt: time.Now()}
		require.NoError(t, s.SetPriceEstimate(context.Background(), userID, c.ID, est))
	}
	return c
}

func TestNew_RequiresPath(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestNew_MigratesToCurrentVersion(t *testing.T) {
	s := newTestStorage(t)
	v, err := s.schemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)
}

func TestNew_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curio.db")
	s, err := New(path)
	require.NoError(t, err)
	c := &models.Collectible{UserID: "u1", Name: "1909-S VDB Lincoln Cent"}
	require.NoError(t, s.Create(context.Background(), c))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.Get(context.Background(), "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
}

func TestStorage_CreateAndGet(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	c := &models.Collectible{
		UserID:       "u1",
		Name:         "Mickey Mantle Card",
		Category:     "sports cards",
		Type:         "baseball card",
		Manufacturer: "Topps",
		YearProduced: "1952",
		Condition:    "PSA 8",
		Notes:        "from grandpa",
	}
	require.NoError(t, s.Create(ctx, c))
	require.NotEmpty(t, c.ID)
	assert.False(t, c.CreatedAt.IsZero())

	got, err := s.Get(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.Category, got.Category)
	assert.Equal(t, c.Type, got.Type)
	assert.Equal(t, c.Manufacturer, got.Manufacturer)
	assert.Equal(t, c.YearProduced, got.YearProduced)
	assert.Equal(t, c.Condition, got.Condition)
	assert.Equal(t, c.Notes, got.Notes)
	assert.Nil(t, got.Estimate)
	assert.WithinDuration(t, c.CreatedAt, got.CreatedAt, time.Microsecond)
}

func TestStorage_CreateRejectsInvalid(t *testing.T) {
	s := newTestStorage(t)
	err := s.Create(context.Background(), &models.Collectible{UserID: "u1"})
	assert.Error(t, err)
}

func TestStorage_UserScoping(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	c := addCollectible(t, s, "owner", "Comic", nil)

	_, err := s.Get(ctx, "intruder", c.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.Delete(ctx, "intruder", c.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.SetPriceEstimate(ctx, "intruder", c.ID, models.PriceEstimate{MarketValue: models.Float(1)})
	assert.ErrorIs(t, err, ErrNotFound)

	upd := *c
	upd.UserID = "intruder"
	upd.Name = "Stolen"
	assert.ErrorIs(t, s.Update(ctx, &upd), ErrNotFound)

	got, err := s.Get(ctx, "owner", c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Comic", got.Name)
}

func TestStorage_UpdateKeepsEstimate(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	c := addCollectible(t, s, "u1", "Morgan Dollar", models.Float(120))

	upd := &models.Collectible{ID: c.ID, UserID: "u1", Name: "Morgan Silver Dollar", Condition: "MS-63"}
	require.NoError(t, s.Update(ctx, upd))

	got, err := s.Get(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Morgan Silver Dollar", got.Name)
	assert.Equal(t, "MS-63", got.Condition)
	assert.Equal(t, "", got.Category)
	require.NotNil(t, got.Estimate)
	assert.InDelta(t, 120, *got.Estimate.MarketValue, 1e-9)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestStorage_SetPriceEstimate(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	c := addCollectible(t, s, "u1", "Pokemon Charizard", nil)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	est := models.PriceEstimate{
		MarketValue: models.Float(350),
		Low:         models.Float(200),
		High:        models.Float(500),
		Count:       7,
		Confidence:  72,
		Level:       models.LevelHigh,
		EstimatedAt: at,
	}
	require.NoError(t, s.SetPriceEstimate(ctx, "u1", c.ID, est))

	got, err := s.Get(ctx, "u1", c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Estimate)
	assert.InDelta(t, 350, *got.Estimate.MarketValue, 1e-9)
	assert.InDelta(t, 200, *got.Estimate.Low, 1e-9)
	assert.InDelta(t, 500, *got.Estimate.High, 1e-9)
	assert.Equal(t, 7, got.Estimate.Count)
	assert.Equal(t, 72, got.Estimate.Confidence)
	assert.Equal(t, models.LevelHigh, got.Estimate.Level)
	assert.True(t, at.Equal(got.Estimate.EstimatedAt))
}

func TestStorage_SetPriceEstimateWithoutValue(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	c := addCollectible(t, s, "u1", "Obscure Token", models.Float(10))

	require.NoError(t, s.SetPriceEstimate(ctx, "u1", c.ID, models.PriceEstimate{Confidence: 10, Level: models.LevelLow}))

	got, err := s.Get(ctx, "u1", c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Estimate)
	assert.Nil(t, got.Estimate.MarketValue)
	assert.Equal(t, 10, got.Estimate.Confidence)
}

func TestStorage_SetPriceEstimateRejectsNegative(t *testing.T) {
	s := newTestStorage(t)
	c := addCollectible(t, s, "u1", "Stamp", nil)
	err := s.SetPriceEstimate(context.Background(), "u1", c.ID, models.PriceEstimate{MarketValue: models.Float(-1)})
	assert.Error(t, err)
}

func TestStorage_Delete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	c := addCollectible(t, s, "u1", "Stamp", nil)

	require.NoError(t, s.Delete(ctx, "u1", c.ID))
	_, err := s.Get(ctx, "u1", c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "u1", c.ID), ErrNotFound)
}

func names(cs []*models.Collectible) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func TestStorage_List(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	addCollectible(t, s, "u1", "Buffalo Nickel", models.Float(40))
	addCollectible(t, s, "u1", "Action Comics #1", models.Float(900))
	addCollectible(t, s, "u1", "Walking Liberty Half", nil)
	addCollectible(t, s, "u2", "Other User Coin", models.Float(5))

	stamp := &models.Collectible{UserID: "u1", Name: "Inverted Jenny", Category: "stamps", Condition: "Fine"}
	require.NoError(t, s.Create(ctx, stamp))
	require.NoError(t, s.SetPriceEstimate(ctx, "u1", stamp.ID, models.PriceEstimate{MarketValue: models.Float(500)}))

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{
			name:   "sorted by name",
			filter: Filter{SortBy: SortByName},
			want:   []string{"Action Comics #1", "Buffalo Nickel", "Inverted Jenny", "Walking Liberty Half"},
		},
		{
			name:   "category filter is case-insensitive",
			filter: Filter{Category: "STAMPS"},
			want:   []string{"Inverted Jenny"},
		},
		{
			name:   "condition filter",
			filter: Filter{Condition: "fine"},
			want:   []string{"Inverted Jenny"},
		},
		{
			name:   "text query matches name",
			filter: Filter{Query: "nickel"},
			want:   []string{"Buffalo Nickel"},
		},
		{
			name:   "text query matches manufacturer",
			filter: Filter{Query: "mint", SortBy: SortByName},
			want:   []string{"Action Comics #1", "Buffalo Nickel", "Walking Liberty Half"},
		},
		{
			name:   "text query escapes wildcards",
			filter: Filter{Query: "%"},
			want:   []string{},
		},
		{
			name:   "value range excludes unvalued",
			filter: Filter{MinValue: models.Float(50), MaxValue: models.Float(600), SortBy: SortByValue},
			want:   []string{"Inverted Jenny"},
		},
		{
			name:   "value descending puts unvalued last",
			filter: Filter{SortBy: SortByValue, Descending: true},
			want:   []string{"Action Comics #1", "Inverted Jenny", "Buffalo Nickel", "Walking Liberty Half"},
		},
		{
			name:   "limit and offset",
			filter: Filter{SortBy: SortByName, Limit: 2, Offset: 1},
			want:   []string{"Buffalo Nickel", "Inverted Jenny"},
		},
		{
			name:   "offset without limit",
			filter: Filter{SortBy: SortByName, Offset: 3},
			want:   []string{"Walking Liberty Half"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, "u1", tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestStorage_ListEmpty(t *testing.T) {
	s := newTestStorage(t)
	got, err := s.List(context.Background(), "nobody", Filter{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFilter_Validate(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		wantErr bool
	}{
		{"zero value", Filter{}, false},
		{"known sort", Filter{SortBy: SortByValue, Limit: 10}, false},
		{"unknown sort", Filter{SortBy: "price"}, true},
		{"negative limit", Filter{Limit: -1}, true},
		{"negative offset", Filter{Offset: -1}, true},
		{"inverted range", Filter{MinValue: models.Float(10), MaxValue: models.Float(5)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStorage_TotalValue(t *testing.T) {
	s := newTestStorage(t)
	addCollectible(t, s, "u1", "A", models.Float(10))
	addCollectible(t, s, "u1", "B", models.Float(32.5))
	addCollectible(t, s, "u1", "C", nil)

	total, valued, err := s.TotalValue(context.Background(), "u1")
	require.NoError(t, err)
	assert.InDelta(t, 42.5, total, 1e-9)
	assert.Equal(t, 2, valued)

	total, valued, err = s.TotalValue(context.Background(), "empty")
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, valued)
}
