// Package marking turns a judged response into points.
package marking

import (
	"fmt"
	"math"
	"strings"

	"github.com/mind-engage/mindengage-cat/internal/pool"
)

type ScoringMethod string

const (
	ScoringRaw        ScoringMethod = "raw"
	ScoringPercentile ScoringMethod = "percentile"
)

func ParseScoringMethod(s string) (ScoringMethod, error) {
	switch m := ScoringMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case ScoringRaw, ScoringPercentile:
		return m, nil
	}
	return "", fmt.Errorf("unknown scoring method %q", s)
}

// BandPoints is the positive mark per difficulty band.
type BandPoints struct {
	Easy   float64 `json:"easy"`
	Medium float64 `json:"medium"`
	Hard   float64 `json:"hard"`
}

func (b BandPoints) For(band pool.Band) float64 {
	switch band {
	case pool.Easy:
		return b.Easy
	case pool.Medium:
		return b.Medium
	case pool.Hard:
		return b.Hard
	}
	return 0
}

// Config is the marking policy. It is fixed for the life of a session.
type Config struct {
	PositiveByBand    BandPoints                `json:"positive_by_band"`
	NegativeEnabled   bool                      `json:"negative_enabled"`
	PenaltyByItemType map[pool.ItemType]float64 `json:"penalty_by_item_type,omitempty"`
	UnansweredPenalty float64                   `json:"unanswered_penalty"`
	ScoringMethod     ScoringMethod             `json:"scoring_method"`
}

// DefaultConfig is +1/+2/+3 by band, -1 for a wrong single-response answer.
func DefaultConfig() Config {
	return Config{
		PositiveByBand:    BandPoints{Easy: 1, Medium: 2, Hard: 3},
		NegativeEnabled:   true,
		PenaltyByItemType: map[pool.ItemType]float64{pool.SingleResponse: -1},
		ScoringMethod:     ScoringPercentile,
	}
}

// WithDefaults fills what c leaves unset: a zero Config is DefaultConfig,
// otherwise the scoring method, an all-zero band table and a nil penalty
// table take their defaults. NegativeEnabled is taken as given.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.isZero() {
		return def
	}
	if c.ScoringMethod == "" {
		c.ScoringMethod = def.ScoringMethod
	}
	if c.PositiveByBand == (BandPoints{}) {
		c.PositiveByBand = def.PositiveByBand
	}
	if c.PenaltyByItemType == nil {
		c.PenaltyByItemType = def.PenaltyByItemType
	}
	return c
}

func (c Config) isZero() bool {
	return c.PositiveByBand == (BandPoints{}) && !c.NegativeEnabled &&
		c.PenaltyByItemType == nil && c.UnansweredPenalty == 0 && c.ScoringMethod == ""
}

func (c Config) Validate() error {
	for band, v := range map[pool.Band]float64{pool.Easy: c.PositiveByBand.Easy, pool.Medium: c.PositiveByBand.Medium, pool.Hard: c.PositiveByBand.Hard} {
		if v < 0 || !finite(v) {
			return fmt.Errorf("positive mark for %s must be a non-negative number", band)
		}
	}
	for typ, v := range c.PenaltyByItemType {
		if !typ.Valid() {
			return fmt.Errorf("penalty for unknown item type %q", typ)
		}
		if v > 0 || !finite(v) {
			return fmt.Errorf("penalty for %s must be <= 0", typ)
		}
	}
	if c.UnansweredPenalty > 0 || !finite(c.UnansweredPenalty) {
		return fmt.Errorf("unanswered penalty must be <= 0")
	}
	switch c.ScoringMethod {
	case ScoringRaw, ScoringPercentile:
	default:
		return fmt.Errorf("unknown scoring method %q", c.ScoringMethod)
	}
	return nil
}

// Clone returns a copy that shares no map with c.
func (c Config) Clone() Config {
	if c.PenaltyByItemType != nil {
		m := make(map[pool.ItemType]float64, len(c.PenaltyByItemType))
		for k, v := range c.PenaltyByItemType {
			m[k] = v
		}
		c.PenaltyByItemType = m
	}
	return c
}

// Score marks one response. An unanswered item always scores the
// unanswered penalty, whatever its correctness.
func (c Config) Score(it pool.Item, correct, unanswered bool) float64 {
	switch {
	case unanswered:
		return c.UnansweredPenalty
	case correct:
		return c.PositiveByBand.For(it.Band)
	case c.NegativeEnabled:
		return c.PenaltyByItemType[it.Type]
	}
	return 0
}

// MaxPossible is the score had every asked item been answered correctly.
func (c Config) MaxPossible(asked []pool.Item) float64 {
	total := 0.0
	for _, it := range asked {
		total += c.PositiveByBand.For(it.Band)
	}
	return total
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
