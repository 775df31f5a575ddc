package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func correlatedRecords(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		x := float64(i + 1)
		records[i] = Record{
			"units":   x,
			"revenue": 10 * x,        // perfectly correlated with units
			"returns": -2 * x,        // perfectly anti-correlated
			"noise":   float64(i%2) * 100, // alternating, unrelated to x
		}
	}
	return records
}

func TestFindCorrelationsPerfectPair(t *testing.T) {
	records := correlatedRecords(10)

	correlations := FindCorrelations(records, []string{"units", "revenue"})
	require.Len(t, correlations, 1)

	c := correlations[0]
	assert.Equal(t, "units", c.FieldA)
	assert.Equal(t, "revenue", c.FieldB)
	assert.InDelta(t, 1.0, c.Coefficient, 1e-9)
	assert.Equal(t, StrengthStrong, c.Strength)
	assert.Equal(t, 10, c.Samples)
}

func TestFindCorrelationsOrderedAndCapped(t *testing.T) {
	records := correlatedRecords(12)

	correlations := FindCorrelations(records, []string{"units", "revenue", "returns", "noise"})

	// units/revenue, units/returns and revenue/returns are all |r|=1;
	// pairs with noise fall below the floor. Capped at three.
	require.Len(t, correlations, 3)
	for i := 1; i < len(correlations); i++ {
		prev := correlations[i-1].Coefficient
		cur := correlations[i].Coefficient
		assert.GreaterOrEqual(t, absValue(prev), absValue(cur))
	}
}

func TestFindCorrelationsNegative(t *testing.T) {
	records := correlatedRecords(8)

	correlations := FindCorrelations(records, []string{"units", "returns"})
	require.Len(t, correlations, 1)
	assert.InDelta(t, -1.0, correlations[0].Coefficient, 1e-9)
	assert.Equal(t, StrengthStrong, correlations[0].Strength)
}

func TestFindCorrelationsSkipsConstantColumns(t *testing.T) {
	records := make([]Record, 6)
	for i := range records {
		records[i] = Record{"flat": 5.0, "rising": float64(i)}
	}

	correlations := FindCorrelations(records, []string{"flat", "rising"})
	assert.Empty(t, correlations)
}

func TestFindCorrelationsTooFewSamples(t *testing.T) {
	records := correlatedRecords(3)

	correlations := FindCorrelations(records, []string{"units", "revenue"})
	assert.Empty(t, correlations)
}

func TestClassifyStrength(t *testing.T) {
	assert.Equal(t, StrengthStrong, classifyStrength(0.95))
	assert.Equal(t, StrengthStrong, classifyStrength(-0.85))
	assert.Equal(t, StrengthModerate, classifyStrength(0.7))
	assert.Equal(t, StrengthWeak, classifyStrength(0.55))
}

func absValue(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
