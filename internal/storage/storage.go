// Package storage provides SQLite persistence for per-user collections.
// It owns the collectible records and the price estimate written back onto
// them; price distributions themselves are never stored.
//
// Every operation is scoped to a user ID: a record owned by another user is
// reported as ErrNotFound.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/rewired-gh/curio/internal/models"
)

// ErrNotFound is returned when a collectible does not exist for the user.
var ErrNotFound = errors.New("collectible not found")

// Storage is a SQLite-backed collection store.
type Storage struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// New opens (and migrates) the collection database at dbPath.
// ":memory:" opens a private in-memory database.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		return nil, errors.New("database path is required")
	}

	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple writers, and :memory: is per connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{db: db, dbPath: dbPath, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Create inserts a new collectible, assigning its ID and timestamps.
func (s *Storage) Create(ctx context.Context, c *models.Collectible) error {
	now := s.now().UTC()
	c.ID = uuid.New().String()
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid collectible: %w", err)
	}

	est := estimateColumns(c.Estimate)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collectibles (
			id, user_id, name, category, type, manufacturer, year_produced, condition, notes,
			market_value, price_low, price_high, price_count, confidence, confidence_level, estimated_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Category, c.Type, c.Manufacturer, c.YearProduced, c.Condition, c.Notes,
		est.marketValue, est.low, est.high, est.count, est.confidence, est.level, est.estimatedAt,
		c.CreatedAt.UnixNano(), c.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert collectible: %w", err)
	}
	return nil
}

// Get retrieves one collectible owned by userID.
func (s *Storage) Get(ctx context.Context, userID, id string) (*models.Collectible, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE user_id = ? AND id = ?`, userID, id)
	c, err := scanCollectible(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collectible: %w", err)
	}
	return c, nil
}

// Update replaces the descriptive fields of an existing collectible. The
// stored price estimate is left untouched.
func (s *Storage) Update(ctx context.Context, c *models.Collectible) error {
	existing, err := s.Get(ctx, c.UserID, c.ID)
	if err != nil {
		return err
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.now().UTC()
	c.Estimate = existing.Estimate
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid collectible: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE collectibles
		SET name = ?, category = ?, type = ?, manufacturer = ?, year_produced = ?, condition = ?, notes = ?,
			updated_at = ?
		WHERE user_id = ? AND id = ?`,
		c.Name, c.Category, c.Type, c.Manufacturer, c.YearProduced, c.Condition, c.Notes,
		c.UpdatedAt.UnixNano(), c.UserID, c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update collectible: %w", err)
	}
	return nil
}

// SetPriceEstimate writes a derived price estimate onto a collectible.
func (s *Storage) SetPriceEstimate(ctx context.Context, userID, id string, est models.PriceEstimate) error {
	if est.MarketValue != nil && *est.MarketValue < 0 {
		return errors.New("market value must not be negative")
	}
	cols := estimateColumns(&est)
	res, err := s.db.ExecContext(ctx, `
		UPDATE collectibles
		SET market_value = ?, price_low = ?, price_high = ?, price_count = ?, confidence = ?,
			confidence_level = ?, estimated_at = ?, updated_at = ?
		WHERE user_id = ? AND id = ?`,
		cols.marketValue, cols.low, cols.high, cols.count, cols.confidence, cols.level, cols.estimatedAt,
		s.now().UTC().UnixNano(), userID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set price estimate: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a collectible.
func (s *Storage) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM collectibles WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete collectible: %w", err)
	}
	return requireAffected(res)
}

// List returns a user's collectibles matching the filter.
func (s *Storage) List(ctx context.Context, userID string, f Filter) ([]*models.Collectible, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	where, args := f.where(userID)
	query := selectColumns + where + f.orderBy() + f.limit()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list collectibles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	collectibles := []*models.Collectible{}
	for rows.Next() {
		c, err := scanCollectible(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collectible: %w", err)
		}
		collectibles = append(collectibles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collectibles: %w", err)
	}
	return collectibles, nil
}

// TotalValue sums the market value of a user's collection.
func (s *Storage) TotalValue(ctx context.Context, userID string) (float64, int, error) {
	var total sql.NullFloat64
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(market_value), COUNT(market_value) FROM collectibles WHERE user_id = ?`, userID,
	).Scan(&total, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to total collection: %w", err)
	}
	return total.Float64, count, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectColumns = `
	SELECT id, user_id, name, category, type, manufacturer, year_produced, condition, notes,
		market_value, price_low, price_high, price_count, confidence, confidence_level, estimated_at,
		created_at, updated_at
	FROM collectibles`

type scanner interface {
	Scan(dest ...any) error
}

func scanCollectible(row scanner) (*models.Collectible, error) {
	var (
		c                      models.Collectible
		marketValue, low, high sql.NullFloat64
		count, confidence      sql.NullInt64
		level                  sql.NullString
		estimatedAt            sql.NullInt64
		createdAt, updatedAt   int64
	)
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Category, &c.Type, &c.Manufacturer, &c.YearProduced, &c.Condition, &c.Notes,
		&marketValue, &low, &high, &count, &confidence, &level, &estimatedAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	c.UpdatedAt = time.Unix(0, updatedAt).UTC()

	if estimatedAt.Valid {
		c.Estimate = &models.PriceEstimate{
			MarketValue: nullFloat(marketValue),
			Low:         nullFloat(low),
			High:        nullFloat(high),
			Count:       int(count.Int64),
			Confidence:  int(confidence.Int64),
			Level:       models.Level(level.String),
			EstimatedAt: time.Unix(0, estimatedAt.Int64).UTC(),
		}
	}
	return &c, nil
}

type estimateRow struct {
	marketValue, low, high sql.NullFloat64
	count, confidence      sql.NullInt64
	level                  sql.NullString
	estimatedAt            sql.NullInt64
}

func estimateColumns(est *models.PriceEstimate) estimateRow {
	if est == nil {
		return estimateRow{}
	}
	at := est.EstimatedAt
	if at.IsZero() {
		at = time.Now()
	}
	return estimateRow{
		marketValue: toNull(est.MarketValue),
		low:         toNull(est.Low),
		high:        toNull(est.High),
		count:       sql.NullInt64{Int64: int64(est.Count), Valid: true},
		confidence:  sql.NullInt64{Int64: int64(est.Confidence), Valid: true},
		level:       sql.NullString{String: string(est.Level), Valid: est.Level != ""},
		estimatedAt: sql.NullInt64{Int64: at.UTC().UnixNano(), Valid: true},
	}
}

func toNull(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float(v.Float64)
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
