package analysis

import (
	"math"

	"github.com/Josue1991/Business-Report/internal/errors"
	"github.com/Josue1991/Business-Report/internal/stats"
)

// ForecastMethod identifies how future values were projected
type ForecastMethod string

const (
	ForecastLinearRegression ForecastMethod = "linear_regression"
	ForecastMovingAverage    ForecastMethod = "weighted_moving_average"
	ForecastSeasonal         ForecastMethod = "seasonal_decomposition"
)

// TrendDirection classifies the overall movement of a series
type TrendDirection string

const (
	TrendUpward   TrendDirection = "upward"
	TrendDownward TrendDirection = "downward"
	TrendStable   TrendDirection = "stable"
)

const (
	// minForecastSamples is the minimum history length for any forecast
	minForecastSamples = 3
	// regressionMaxSamples is the largest history still forecast by regression
	regressionMaxSamples = 9
	// movingAverageAlpha is the exponential recency weight for the WMA method
	movingAverageAlpha = 0.3
	// trendNoiseRatio is the slope-to-mean ratio below which a series is stable
	trendNoiseRatio = 0.01
)

// ForecastResult describes the projected future of a numeric series
type ForecastResult struct {
	Method     ForecastMethod `json:"method"`
	Trend      TrendDirection `json:"trend"`
	Forecasts  []float64      `json:"forecasts"`
	Confidence float64        `json:"confidence"`
	MAPE       float64        `json:"mape"`
}

// Forecast projects periods future values from the historical series.
// Histories shorter than 10 points are fit with linear regression; longer
// ones use an exponentially weighted moving average. All projections are
// floored at zero since business quantities cannot go negative.
func Forecast(values []float64, periods int) (*ForecastResult, error) {
	if len(values) < minForecastSamples {
		return nil, errors.NewInsufficientDataError("forecasting requires at least 3 points")
	}
	if periods < 1 {
		periods = 1
	}

	if len(values) <= regressionMaxSamples {
		return forecastRegression(values, periods)
	}
	return forecastMovingAverage(values, periods)
}

// ForecastSeasonalDecomposition decomposes the series into trend, seasonal
// and residual components, forecasts the trend, and re-adds the repeating
// seasonal offset. The series must cover at least two full cycles.
func ForecastSeasonalDecomposition(values []float64, periods, seasonLength int) (*ForecastResult, error) {
	if seasonLength < 2 {
		return nil, errors.NewValidationError("seasonal period must be at least 2", nil)
	}
	if len(values) < 2*seasonLength {
		return nil, errors.NewInsufficientDataError("seasonal decomposition requires at least two full cycles")
	}
	if periods < 1 {
		periods = 1
	}

	trend := centeredMovingAverage(values, seasonLength)

	// Seasonal component: mean of detrended residues grouped by cycle position
	seasonal := make([]float64, seasonLength)
	counts := make([]int, seasonLength)
	for i, v := range values {
		if math.IsNaN(trend[i]) {
			continue
		}
		pos := i % seasonLength
		seasonal[pos] += v - trend[i]
		counts[pos]++
	}
	for i := range seasonal {
		if counts[i] > 0 {
			seasonal[i] /= float64(counts[i])
		}
	}

	// Forecast the trend component from its defined region
	var trendSeries []float64
	for _, v := range trend {
		if !math.IsNaN(v) {
			trendSeries = append(trendSeries, v)
		}
	}

	base, err := Forecast(trendSeries, periods)
	if err != nil {
		return nil, err
	}

	forecasts := make([]float64, periods)
	for i := 0; i < periods; i++ {
		pos := (len(values) + i) % seasonLength
		forecasts[i] = math.Max(0, base.Forecasts[i]+seasonal[pos])
	}

	return &ForecastResult{
		Method:     ForecastSeasonal,
		Trend:      base.Trend,
		Forecasts:  forecasts,
		Confidence: base.Confidence,
		MAPE:       base.MAPE,
	}, nil
}

func forecastRegression(values []float64, periods int) (*ForecastResult, error) {
	reg, err := stats.LinearRegression(values)
	if err != nil {
		return nil, err
	}

	fitted := make([]float64, len(values))
	for i := range values {
		fitted[i] = reg.Predict(float64(i))
	}
	mape := stats.MAPE(values, fitted)

	forecasts := make([]float64, periods)
	for i := 0; i < periods; i++ {
		forecasts[i] = math.Max(0, reg.Predict(float64(len(values)+i)))
	}

	confidence := math.Max(0, 1-mape/100)

	return &ForecastResult{
		Method:     ForecastLinearRegression,
		Trend:      classifyTrend(reg.Slope, stats.Mean(values)),
		Forecasts:  forecasts,
		Confidence: confidence,
		MAPE:       mape,
	}, nil
}

func forecastMovingAverage(values []float64, periods int) (*ForecastResult, error) {
	// Exponentially weighted level of the series
	level := values[0]
	for _, v := range values[1:] {
		level = movingAverageAlpha*v + (1-movingAverageAlpha)*level
	}

	// Average period-over-period change, same recency weighting
	change := 0.0
	for i := 1; i < len(values); i++ {
		change = movingAverageAlpha*(values[i]-values[i-1]) + (1-movingAverageAlpha)*change
	}

	forecasts := make([]float64, periods)
	next := level
	for i := 0; i < periods; i++ {
		next += change
		forecasts[i] = math.Max(0, next)
	}

	// One-step-ahead backtest for MAPE
	fitted := make([]float64, 0, len(values)-1)
	actual := make([]float64, 0, len(values)-1)
	running := values[0]
	for i := 1; i < len(values); i++ {
		fitted = append(fitted, running)
		actual = append(actual, values[i])
		running = movingAverageAlpha*values[i] + (1-movingAverageAlpha)*running
	}
	mape := stats.MAPE(actual, fitted)

	return &ForecastResult{
		Method:     ForecastMovingAverage,
		Trend:      classifyTrend(change, stats.Mean(values)),
		Forecasts:  forecasts,
		Confidence: movingAverageConfidence(values),
		MAPE:       mape,
	}, nil
}

// movingAverageConfidence derives confidence from the coefficient of
// variation of period-over-period changes, clamped to [0.5, 0.95]
func movingAverageConfidence(values []float64) float64 {
	changes := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		changes = append(changes, values[i]-values[i-1])
	}

	mean := stats.Mean(changes)
	stddev := stats.StdDev(changes)

	confidence := 0.95
	if mean != 0 {
		cov := math.Abs(stddev / mean)
		confidence = 1 - cov
	} else if stddev > 0 {
		confidence = 0.5
	}

	return math.Min(0.95, math.Max(0.5, confidence))
}

// classifyTrend labels the series stable when the per-period change is small
// relative to the series magnitude
func classifyTrend(slope, mean float64) TrendDirection {
	threshold := trendNoiseRatio * math.Abs(mean)
	if math.Abs(slope) <= threshold {
		return TrendStable
	}
	if slope > 0 {
		return TrendUpward
	}
	return TrendDownward
}

// centeredMovingAverage smooths the series over a window, leaving NaN where
// the window does not fit. Even windows use the conventional 2x(window)
// average so the result stays centered.
func centeredMovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}

	half := window / 2
	if window%2 == 1 {
		for i := half; i < len(values)-half; i++ {
			sum := 0.0
			for j := i - half; j <= i+half; j++ {
				sum += values[j]
			}
			out[i] = sum / float64(window)
		}
		return out
	}

	for i := half; i < len(values)-half; i++ {
		sum := values[i-half]/2 + values[i+half]/2
		for j := i - half + 1; j <= i+half-1; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(window)
	}
	return out
}
