package percentile

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalCDF_ReferenceValues(t *testing.T) {
	// Reference values from standard normal tables (10 significant digits).
	tests := []struct {
		z    float64
		want float64
	}{
		{0, 0.5},
		{1, 0.8413447461},
		{-1, 0.1586552539},
		{1.96, 0.9750021049},
		{-2.5, 0.0062096653},
		{3, 0.9986501020},
		{-4, 0.0000316712},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalCDF(tt.z), 1e-6, "z=%v", tt.z)
	}
}

func TestNormalCDF_Symmetry(t *testing.T) {
	for z := -6.0; z <= 6; z += 0.25 {
		assert.InDelta(t, 1, NormalCDF(z)+NormalCDF(-z), 1e-12, "z=%v", z)
	}
}

func TestToPercentile(t *testing.T) {
	tests := []struct {
		name             string
		theta, mean, std float64
		want             int
	}{
		{"median", 0, 0, 1, 50},
		{"one sd above", 1, 0, 1, 84},
		{"one sd below", -1, 0, 1, 16},
		{"shifted population", 1, 1, 2, 50},
		{"far above clamps", 4, 0, 1, 99},
		{"far below clamps", -4, 0, 1, 1},
		{"zero std falls back", 1, 0, 0, 84},
		{"nan theta", math.NaN(), 0, 1, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToPercentile(tt.theta, tt.mean, tt.std))
		})
	}
}

func TestToPercentile_BoundedOverThetaRange(t *testing.T) {
	for theta := -4.0; theta <= 4.0; theta += 0.01 {
		p := ToPercentile(theta, 0, 1)
		assert.GreaterOrEqual(t, p, Min)
		assert.LessOrEqual(t, p, Max)
	}
}
