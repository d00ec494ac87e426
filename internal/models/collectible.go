package models

import (
	"errors"
	"time"
)

// PriceEstimate is the derived summary written back onto a collectible.
type PriceEstimate struct {
	MarketValue *float64  `json:"marketValue"`
	Low         *float64  `json:"low,omitempty"`
	High        *float64  `json:"high,omitempty"`
	Count       int       `json:"count"`
	Confidence  int       `json:"confidence"`
	Level       Level     `json:"level,omitempty"`
	EstimatedAt time.Time `json:"estimatedAt"`
}

// NewPriceEstimate derives the persisted estimate from a distribution.
func NewPriceEstimate(d PriceDistribution, at time.Time) PriceEstimate {
	est := PriceEstimate{
		MarketValue: d.MarketValue(),
		Low:         d.Low,
		High:        d.High,
		Count:       d.Count,
		EstimatedAt: at,
	}
	if d.Confidence != nil {
		est.Confidence = d.Confidence.Score
		est.Level = d.Confidence.Level
	}
	return est
}

// Collectible is one item in a user's collection.
type Collectible struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	Name         string         `json:"name"`
	Category     string         `json:"category,omitempty"`
	Type         string         `json:"type,omitempty"`
	Manufacturer string         `json:"manufacturer,omitempty"`
	YearProduced string         `json:"yearProduced,omitempty"`
	Condition    string         `json:"condition,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	Estimate     *PriceEstimate `json:"priceEstimate,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Identity returns the searchable fields of the collectible.
func (c *Collectible) Identity() Identity {
	return Identity{
		Name:         c.Name,
		Category:     c.Category,
		Type:         c.Type,
		Manufacturer: c.Manufacturer,
		YearProduced: c.YearProduced,
		Condition:    c.Condition,
	}
}

// MarketValue returns the persisted market value, or nil if never estimated.
func (c *Collectible) MarketValue() *float64 {
	if c.Estimate == nil {
		return nil
	}
	return c.Estimate.MarketValue
}

// AcceptsEstimate reports whether a fresh estimate may replace the stored one.
// An estimate without a market value (no listings, search down) never
// replaces a stored value.
func (c *Collectible) AcceptsEstimate(fresh PriceEstimate) bool {
	return fresh.MarketValue != nil || c.MarketValue() == nil
}

// Validate checks that all collectible fields are valid.
func (c *Collectible) Validate() error {
	if c.ID == "" {
		return errors.New("collectible ID must not be empty")
	}
	if c.UserID == "" {
		return errors.New("user ID must not be empty")
	}
	if c.Name == "" {
		return errors.New("collectible name must not be empty")
	}
	if c.Estimate != nil && c.Estimate.MarketValue != nil && *c.Estimate.MarketValue < 0 {
		return errors.New("market value must not be negative")
	}
	if c.CreatedAt.After(c.UpdatedAt) {
		return errors.New("created at must be <= updated at")
	}
	return nil
}
