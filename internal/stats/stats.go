// Package stats provides the pure numeric kernel shared by the analysis
// services: descriptive statistics, order statistics, simple linear
// regression, and Pearson correlation.
//
// All functions are deterministic, side-effect free, and defined for
// degenerate inputs: zero-variance sequences yield zero scores and zero
// correlation rather than dividing by zero.
package stats

import (
	"math"
	"sort"

	"github.com/Josue1991/Business-Report/internal/errors"
)

// Mean returns the arithmetic mean of values, or 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation of values
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	mean := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// Quantile returns the quantile at rank p using linear interpolation between
// order statistics. p is clamped to [0, 1]. Returns 0 for an empty slice.
func Quantile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return values[0]
	}

	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := p * float64(n-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}

	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// Regression holds the result of a simple linear fit y = Slope*x + Intercept
type Regression struct {
	Slope     float64
	Intercept float64
}

// LinearRegression fits a least-squares line through (0..n-1, values).
// Requires at least 2 points.
func LinearRegression(values []float64) (Regression, error) {
	n := len(values)
	if n < 2 {
		return Regression{}, errors.NewInsufficientDataError("linear regression requires at least 2 points")
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return Regression{Intercept: Mean(values)}, nil
	}

	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn
	return Regression{Slope: slope, Intercept: intercept}, nil
}

// Predict evaluates the fitted line at position x
func (r Regression) Predict(x float64) float64 {
	return r.Slope*x + r.Intercept
}

// Pearson returns the Pearson correlation coefficient between x and y.
// Both slices must have the same length of at least 2. A zero-variance
// series correlates as 0.
func Pearson(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, errors.NewValidationError("correlation requires sequences of equal length", nil)
	}
	if len(x) < 2 {
		return 0, errors.NewInsufficientDataError("correlation requires at least 2 paired points")
	}

	meanX := Mean(x)
	meanY := Mean(y)

	var cov, varX, varY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 || varY == 0 {
		return 0, nil
	}
	return cov / math.Sqrt(varX*varY), nil
}

// ZScore returns the standard score of value against mean and stddev, or 0
// when stddev is 0
func ZScore(value, mean, stddev float64) float64 {
	if stddev == 0 {
		return 0
	}
	return (value - mean) / stddev
}

// MAPE returns the mean absolute percentage error between actual and
// predicted values. Zero actuals are skipped to avoid division by zero;
// if every actual is zero, MAPE is 0.
func MAPE(actual, predicted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return 0
	}

	sum := 0.0
	count := 0
	for i := range actual {
		if actual[i] == 0 {
			continue
		}
		sum += math.Abs((actual[i] - predicted[i]) / actual[i])
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count) * 100
}
