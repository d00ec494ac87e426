package models

import (
	"errors"
	"fmt"
)

// Level is the discrete confidence band derived from a score.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// LevelFor maps a score to its band: <40 low, <70 medium, otherwise high.
func LevelFor(score int) Level {
	switch {
	case score < 40:
		return LevelLow
	case score < 70:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Factor is one itemized contribution to a confidence score.
type Factor struct {
	Label  string `json:"label"`
	Impact int    `json:"impact"`
}

// ConfidenceScore is a 0-100 heuristic trust indicator for a price distribution.
// Factors are listed in computation order and exclude the base offset.
type ConfidenceScore struct {
	Score   int      `json:"score"`
	Level   Level    `json:"level"`
	Factors []Factor `json:"factors"`
}

// Validate checks the score range and that the level matches the score.
func (c *ConfidenceScore) Validate() error {
	if c.Score < 0 || c.Score > 100 {
		return errors.New("score must be between 0 and 100")
	}
	if want := LevelFor(c.Score); c.Level != want {
		return fmt.Errorf("level %q does not match score %d (want %q)", c.Level, c.Score, want)
	}
	return nil
}
