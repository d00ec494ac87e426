package pricing

import (
	"math"
	"slices"

	"github.com/rewired-gh/curio/internal/models"
)

const (
	// tukeyK is the IQR multiplier for outlier fences.
	tukeyK = 1.5

	minHistogramBuckets = 5
	maxHistogramBuckets = 10

	// minSpreadSample is the smallest sample with a defined spread (std dev, cv, outliers).
	minSpreadSample = 2
	// minShapeSample is the smallest sample with percentiles and a histogram.
	minShapeSample = 5
)

// Analyze summarizes positive price observations into a distribution.
// Invalid values are dropped first. An empty input yields the zero-count
// distribution; derived fields that need more data stay nil.
func Analyze(observations []float64) models.PriceDistribution {
	sorted := make([]float64, 0, len(observations))
	for _, v := range observations {
		if valid(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return models.EmptyDistribution()
	}
	slices.Sort(sorted)

	n := len(sorted)
	mean := Mean(sorted)
	d := models.PriceDistribution{
		Low:      models.Float(sorted[0]),
		High:     models.Float(sorted[n-1]),
		Average:  models.Float(mean),
		Median:   models.Float(Median(sorted)),
		All:      sorted,
		Outliers: []float64{},
		Count:    n,
	}

	if n >= minSpreadSample {
		std := StdDev(sorted, mean)
		d.StdDev = models.Float(std)
		if mean != 0 {
			d.CV = models.Float(std / mean)
		}

		lower, upper := TukeyFences(sorted)
		d.LowerFence = models.Float(lower)
		d.UpperFence = models.Float(upper)
		for _, v := range sorted {
			if v < lower || v > upper {
				d.Outliers = append(d.Outliers, v)
			}
		}
		d.OutlierRatio = models.Float(float64(len(d.Outliers)) / float64(n))
		if len(d.Outliers) > 0 {
			d.FilteredCount = n - len(d.Outliers)
		}
	}

	if n >= minShapeSample {
		d.Percentiles = &models.Percentiles{
			P10: Percentile(sorted, 0.10),
			P25: Percentile(sorted, 0.25),
			P50: Percentile(sorted, 0.50),
			P75: Percentile(sorted, 0.75),
			P90: Percentile(sorted, 0.90),
		}
		d.HistogramData = Histogram(sorted)
	}

	return d
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median returns the middle element of sorted values, averaging the two
// middle elements for an even count.
func Median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// StdDev is the population standard deviation sqrt(mean((x - mean)^2)).
func StdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sq float64
	for _, v := range values {
		diff := v - mean
		sq += diff * diff
	}
	return math.Sqrt(sq / float64(len(values)))
}

// Percentile returns the floor-indexed p-th percentile of sorted values.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(float64(len(sorted)) * p))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// TukeyFences returns Q1 - 1.5*IQR and Q3 + 1.5*IQR using floor-indexed quartiles.
func TukeyFences(sorted []float64) (lower, upper float64) {
	q1 := Percentile(sorted, 0.25)
	q3 := Percentile(sorted, 0.75)
	iqr := q3 - q1
	return q1 - tukeyK*iqr, q3 + tukeyK*iqr
}

// BucketCount applies Sturges' rule clamped to [5, 10].
func BucketCount(n int) int {
	if n <= 0 {
		return minHistogramBuckets
	}
	k := int(math.Ceil(1 + 3.322*math.Log10(float64(n))))
	return max(minHistogramBuckets, min(k, maxHistogramBuckets))
}

// Histogram buckets sorted values over [min, max]. Every bucket is half-open
// except the last, which includes max. A sample with no spread yields
// zero-width buckets with every value in the last one.
func Histogram(sorted []float64) []models.HistogramBucket {
	n := len(sorted)
	if n == 0 {
		return nil
	}
	lo, hi := sorted[0], sorted[n-1]
	k := BucketCount(n)
	if hi == lo {
		buckets := make([]models.HistogramBucket, k)
		for i := range buckets {
			buckets[i] = models.HistogramBucket{Min: lo, Max: hi}
		}
		buckets[k-1].Count = n
		return buckets
	}

	width := (hi - lo) / float64(k)
	buckets := make([]models.HistogramBucket, k)
	for i := range buckets {
		buckets[i].Min = lo + float64(i)*width
		buckets[i].Max = lo + float64(i+1)*width
	}
	buckets[k-1].Max = hi

	for _, v := range sorted {
		idx := int((v - lo) / width)
		if idx >= k {
			idx = k - 1
		}
		buckets[idx].Count++
	}
	return buckets
}
