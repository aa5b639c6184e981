package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundPercent(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		expected float64
	}{
		{"ten percent", 0.10, 10.00},
		{"rounds up", 0.123456, 12.35},
		{"rounds down", 0.123449, 12.34},
		{"half away from zero", 0.00125, 0.13},
		{"negative half away from zero", -0.00125, -0.13},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RoundPercent(&tt.rate)
			require.NotNil(t, result)
			assert.Equal(t, tt.expected, *result)
		})
	}
}

func TestRoundPercent_Undefined(t *testing.T) {
	assert.Nil(t, RoundPercent(nil))

	nan := math.NaN()
	assert.Nil(t, RoundPercent(&nan))

	inf := math.Inf(1)
	assert.Nil(t, RoundPercent(&inf))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.24, Round(1.235, 2))
	assert.Equal(t, -1.24, Round(-1.235, 2))
	assert.True(t, math.IsNaN(Round(math.NaN(), 2)))
}
