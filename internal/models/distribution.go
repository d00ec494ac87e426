package models

import (
	"errors"
	"math"
)

// HistogramBucket counts observations falling in [Min, Max).
// The last bucket of a histogram is inclusive of its upper edge.
type HistogramBucket struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// Percentiles holds the p10..p90 summary of a distribution.
type Percentiles struct {
	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

// PriceDistribution is the statistical summary of all observations for one estimate.
// Nullable fields are nil when there is not enough data to compute them.
type PriceDistribution struct {
	Low           *float64          `json:"low"`
	High          *float64          `json:"high"`
	Average       *float64          `json:"average"`
	Median        *float64          `json:"median"`
	All           []float64         `json:"all"`
	Outliers      []float64         `json:"outliers"`
	Count         int               `json:"count"`
	FilteredCount int               `json:"filteredCount,omitempty"`
	StdDev        *float64          `json:"stdDev,omitempty"`
	CV            *float64          `json:"coefficientOfVariation,omitempty"`
	OutlierRatio  *float64          `json:"outlierRatio,omitempty"`
	LowerFence    *float64          `json:"lowerFence,omitempty"`
	UpperFence    *float64          `json:"upperFence,omitempty"`
	HistogramData []HistogramBucket `json:"histogramData,omitempty"`
	Percentiles   *Percentiles      `json:"percentiles"`

	Query      string           `json:"query,omitempty"`
	Sources    SourceSet        `json:"sources,omitempty"`
	Confidence *ConfidenceScore `json:"confidence,omitempty"`
}

// EmptyDistribution returns the zero-count distribution used whenever no
// price data could be gathered.
func EmptyDistribution() PriceDistribution {
	return PriceDistribution{
		All:      []float64{},
		Outliers: []float64{},
	}
}

// MarketValue is the single value persisted for a collectible: the median when
// available, otherwise the average. Returns nil when the distribution is empty.
func (d *PriceDistribution) MarketValue() *float64 {
	if d.Median != nil {
		return Float(*d.Median)
	}
	if d.Average != nil {
		return Float(*d.Average)
	}
	return nil
}

// Validate checks the structural invariants of a distribution.
func (d *PriceDistribution) Validate() error {
	if d.Count != len(d.All) {
		return errors.New("count must equal the number of observations")
	}
	if d.Count == 0 {
		if d.Low != nil || d.High != nil || d.Average != nil || d.Median != nil {
			return errors.New("empty distribution must not carry summary values")
		}
		return nil
	}
	if d.Low == nil || d.High == nil || d.Average == nil || d.Median == nil {
		return errors.New("non-empty distribution must carry low, high, average and median")
	}
	if *d.Low > *d.Median || *d.Median > *d.High {
		return errors.New("low <= median <= high must hold")
	}
	for _, v := range d.All {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("observations must be finite and positive")
		}
	}
	return nil
}
