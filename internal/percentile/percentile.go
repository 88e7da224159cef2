// Package percentile converts a latent ability estimate into a population rank.
package percentile

import "math"

const (
	Min = 1
	Max = 99
)

// NormalCDF is the standard normal cumulative distribution function,
// Φ(z) = ½·erfc(−z/√2).
func NormalCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

// ToPercentile ranks theta against a normal population and clamps the result
// to [Min, Max]; 0 and 100 are never reported. A non-positive std falls back
// to the unit normal spread.
func ToPercentile(theta, mean, std float64) int {
	if math.IsNaN(theta) {
		return 50
	}
	if std <= 0 || math.IsNaN(std) {
		std = 1
	}
	p := math.Round(NormalCDF((theta-mean)/std) * 100)
	switch {
	case p < Min:
		return Min
	case p > Max:
		return Max
	}
	return int(p)
}
