package grading

import (
	"math"
	"strconv"
	"strings"
)

// numericMatch compares resp with key[0], honouring tolerance tokens in the
// remaining key entries:
//
//	["3.14159", "tol=0.01"]   // absolute tolerance
//	["100", "reltol=0.05"]    // 5% relative tolerance
func numericMatch(resp string, key []string) bool {
	target := key[0]
	if strings.TrimSpace(resp) == strings.TrimSpace(target) {
		return true
	}
	rv, rOK := parseFloatLoose(resp)
	tv, tOK := parseFloatLoose(target)
	if !rOK || !tOK {
		return false
	}
	if rv == tv {
		return true
	}

	absTol, relTol := parseTolerances(key[1:])
	diff := math.Abs(rv - tv)
	if absTol >= 0 && diff <= absTol {
		return true
	}
	return relTol >= 0 && diff <= relTol*math.Abs(tv)
}

// parseFloatLoose reads a leading number, so "12 cm" parses as 12.
func parseFloatLoose(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if sp := strings.Fields(s); len(sp) > 0 {
		if v, err := strconv.ParseFloat(sp[0], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func parseTolerances(keys []string) (absTol float64, relTol float64) {
	absTol, relTol = -1, -1
	for _, k := range keys {
		k = strings.TrimSpace(strings.ToLower(k))
		switch {
		case strings.HasPrefix(k, "tol="):
			if v, err := strconv.ParseFloat(strings.TrimPrefix(k, "tol="), 64); err == nil {
				absTol = v
			}
		case strings.HasPrefix(k, "reltol="):
			if v, err := strconv.ParseFloat(strings.TrimPrefix(k, "reltol="), 64); err == nil {
				relTol = v
			}
		}
	}
	return
}
