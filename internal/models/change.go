package models

import (
	"errors"
	"math"
	"time"
)

// ValueChange is a market value move detected when a collectible is re-estimated.
type ValueChange struct {
	ID            string    `json:"id"`
	CollectibleID string    `json:"collectible_id"`
	Name          string    `json:"name"`
	OldValue      float64   `json:"old_value"`
	NewValue      float64   `json:"new_value"`
	PercentChange float64   `json:"percent_change"` // signed, 0.25 == +25%
	Direction     string    `json:"direction"`      // "increase" or "decrease"
	Confidence    Level     `json:"confidence"`
	DetectedAt    time.Time `json:"detected_at"`
}

// Magnitude is the absolute percentage move.
func (c *ValueChange) Magnitude() float64 {
	return math.Abs(c.PercentChange)
}

// Validate checks that all change fields are valid
func (c *ValueChange) Validate() error {
	if c.ID == "" {
		return errors.New("change ID must not be empty")
	}
	if c.CollectibleID == "" {
		return errors.New("collectible ID must not be empty")
	}
	if c.OldValue <= 0 {
		return errors.New("old value must be positive")
	}
	if c.NewValue <= 0 {
		return errors.New("new value must be positive")
	}

	// Verify percent change matches the values
	expected := (c.NewValue - c.OldValue) / c.OldValue
	if math.Abs(c.PercentChange-expected) > 0.001 {
		return errors.New("percent change must equal (new - old) / old")
	}

	if c.Direction != "increase" && c.Direction != "decrease" {
		return errors.New("direction must be 'increase' or 'decrease'")
	}
	if c.DetectedAt.After(time.Now()) {
		return errors.New("detected at must not be in the future")
	}
	return nil
}
