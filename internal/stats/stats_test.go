package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Josue1991/Business-Report/internal/errors"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"empty slice", nil, 0},
		{"single value", []float64{5}, 5},
		{"simple average", []float64{1, 2, 3, 4, 5}, 3},
		{"negative values", []float64{-2, 2}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Mean(tt.values), 1e-9)
		})
	}
}

func TestStdDev(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"empty slice", nil, 0},
		{"zero variance", []float64{7, 7, 7, 7}, 0},
		{"population stddev", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, StdDev(tt.values), 1e-9)
		})
	}
}

func TestQuantile(t *testing.T) {
	values := []float64{1, 2, 3, 4}

	tests := []struct {
		name     string
		p        float64
		expected float64
	}{
		{"minimum", 0, 1},
		{"maximum", 1, 4},
		{"median interpolated", 0.5, 2.5},
		{"first quartile", 0.25, 1.75},
		{"third quartile", 0.75, 3.25},
		{"clamped below", -0.5, 1},
		{"clamped above", 1.5, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Quantile(values, tt.p), 1e-9)
		})
	}

	t.Run("empty slice", func(t *testing.T) {
		assert.Equal(t, 0.0, Quantile(nil, 0.5))
	})

	t.Run("does not mutate input", func(t *testing.T) {
		unsorted := []float64{3, 1, 2}
		Quantile(unsorted, 0.5)
		assert.Equal(t, []float64{3, 1, 2}, unsorted)
	})
}

func TestLinearRegression(t *testing.T) {
	t.Run("perfect line", func(t *testing.T) {
		reg, err := LinearRegression([]float64{10, 12, 14, 16})
		require.NoError(t, err)
		assert.InDelta(t, 2.0, reg.Slope, 1e-9)
		assert.InDelta(t, 10.0, reg.Intercept, 1e-9)
		assert.InDelta(t, 18.0, reg.Predict(4), 1e-9)
	})

	t.Run("flat series", func(t *testing.T) {
		reg, err := LinearRegression([]float64{5, 5, 5})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, reg.Slope, 1e-9)
		assert.InDelta(t, 5.0, reg.Intercept, 1e-9)
	})

	t.Run("insufficient data", func(t *testing.T) {
		_, err := LinearRegression([]float64{1})
		require.Error(t, err)
		assert.True(t, errors.IsInsufficientData(err))
	})
}

func TestPearson(t *testing.T) {
	t.Run("perfect positive", func(t *testing.T) {
		r, err := Pearson([]float64{1, 2, 3, 4}, []float64{2, 4, 6, 8})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, r, 1e-9)
	})

	t.Run("perfect negative", func(t *testing.T) {
		r, err := Pearson([]float64{1, 2, 3, 4}, []float64{8, 6, 4, 2})
		require.NoError(t, err)
		assert.InDelta(t, -1.0, r, 1e-9)
	})

	t.Run("zero variance defines correlation as zero", func(t *testing.T) {
		r, err := Pearson([]float64{5, 5, 5}, []float64{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, 0.0, r)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := Pearson([]float64{1, 2}, []float64{1, 2, 3})
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("insufficient data", func(t *testing.T) {
		_, err := Pearson([]float64{1}, []float64{2})
		require.Error(t, err)
		assert.True(t, errors.IsInsufficientData(err))
	})
}

func TestZScore(t *testing.T) {
	assert.Equal(t, 0.0, ZScore(100, 50, 0))
	assert.InDelta(t, 2.0, ZScore(110, 100, 5), 1e-9)
	assert.InDelta(t, -2.0, ZScore(90, 100, 5), 1e-9)
}

func TestMAPE(t *testing.T) {
	t.Run("exact predictions", func(t *testing.T) {
		assert.Equal(t, 0.0, MAPE([]float64{100, 200}, []float64{100, 200}))
	})

	t.Run("ten percent error", func(t *testing.T) {
		got := MAPE([]float64{100, 100}, []float64{90, 110})
		assert.InDelta(t, 10.0, got, 1e-9)
	})

	t.Run("skips zero actuals", func(t *testing.T) {
		got := MAPE([]float64{0, 100}, []float64{5, 110})
		assert.InDelta(t, 10.0, got, 1e-9)
		assert.False(t, math.IsNaN(got))
	})

	t.Run("all zero actuals", func(t *testing.T) {
		assert.Equal(t, 0.0, MAPE([]float64{0, 0}, []float64{1, 2}))
	})
}
