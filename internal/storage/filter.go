package storage

import (
	"fmt"
	"strings"
)

// Sort keys accepted by Filter.SortBy.
const (
	SortByName    = "name"
	SortByCreated = "created"
	SortByValue   = "value"
)

// Filter narrows a collection listing.
type Filter struct {
	Category  string
	Condition string
	// Query matches a case-insensitive substring of the name or manufacturer.
	Query    string
	MinValue *float64
	MaxValue *float64

	SortBy     string
	Descending bool
	Limit      int
	Offset     int
}

// Validate checks the filter for unsupported values.
func (f Filter) Validate() error {
	switch f.SortBy {
	case "", SortByName, SortByCreated, SortByValue:
	default:
		return fmt.Errorf("unsupported sort key %q", f.SortBy)
	}
	if f.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", f.Limit)
	}
	if f.Offset < 0 {
		return fmt.Errorf("offset must not be negative, got %d", f.Offset)
	}
	if f.MinValue != nil && f.MaxValue != nil && *f.MinValue > *f.MaxValue {
		return fmt.Errorf("min value (%.2f) must not exceed max value (%.2f)", *f.MinValue, *f.MaxValue)
	}
	return nil
}

func (f Filter) where(userID string) (string, []any) {
	clauses := []string{"user_id = ?"}
	args := []any{userID}

	if f.Category != "" {
		clauses = append(clauses, "category = ? COLLATE NOCASE")
		args = append(args, f.Category)
	}
	if f.Condition != "" {
		clauses = append(clauses, "condition = ? COLLATE NOCASE")
		args = append(args, f.Condition)
	}
	if f.Query != "" {
		pattern := "%" + escapeLike(f.Query) + "%"
		clauses = append(clauses, `(name LIKE ? ESCAPE '\' OR manufacturer LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if f.MinValue != nil {
		clauses = append(clauses, "market_value >= ?")
		args = append(args, *f.MinValue)
	}
	if f.MaxValue != nil {
		clauses = append(clauses, "market_value <= ?")
		args = append(args, *f.MaxValue)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (f Filter) orderBy() string {
	dir := "ASC"
	if f.Descending {
		dir = "DESC"
	}
	switch f.SortBy {
	case SortByName:
		return " ORDER BY name COLLATE NOCASE " + dir + ", id"
	case SortByValue:
		// Unvalued items always sort last
		return " ORDER BY market_value IS NULL, market_value " + dir + ", id"
	default:
		return " ORDER BY created_at " + dir + ", id"
	}
}

func (f Filter) limit() string {
	switch {
	case f.Limit > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	case f.Offset > 0:
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", f.Offset)
	default:
		return ""
	}
}
