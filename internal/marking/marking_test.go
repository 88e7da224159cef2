package marking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-cat/internal/pool"
)

func TestScore_DefaultPolicy(t *testing.T) {
	c := DefaultConfig()
	easy := pool.Item{ID: "e", Type: pool.SingleResponse, Band: pool.Easy}
	medium := pool.Item{ID: "m", Type: pool.SingleResponse, Band: pool.Medium}
	hard := pool.Item{ID: "h", Type: pool.SingleResponse, Band: pool.Hard}
	open := pool.Item{ID: "o", Type: pool.OpenResponse, Band: pool.Hard}

	tests := []struct {
		name       string
		item       pool.Item
		correct    bool
		unanswered bool
		want       float64
	}{
		{"easy correct", easy, true, false, 1},
		{"medium incorrect single-response", medium, false, false, -1},
		{"hard correct", hard, true, false, 3},
		{"unanswered", medium, false, true, 0},
		{"unanswered ignores correctness", hard, true, true, 0},
		{"open response incorrect has no penalty", open, false, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Score(tt.item, tt.correct, tt.unanswered))
		})
	}
}

func TestScore_NegativeDisabled(t *testing.T) {
	c := DefaultConfig()
	c.NegativeEnabled = false
	it := pool.Item{ID: "m", Type: pool.SingleResponse, Band: pool.Medium}
	assert.Equal(t, 0.0, c.Score(it, false, false))
}

func TestScore_CustomPenalties(t *testing.T) {
	c := DefaultConfig()
	c.PenaltyByItemType = map[pool.ItemType]float64{pool.SingleResponse: -0.25, pool.Other: -0.5}
	c.UnansweredPenalty = -0.1

	assert.Equal(t, -0.25, c.Score(pool.Item{Type: pool.SingleResponse, Band: pool.Easy}, false, false))
	assert.Equal(t, -0.5, c.Score(pool.Item{Type: pool.Other, Band: pool.Easy}, false, false))
	assert.Equal(t, 0.0, c.Score(pool.Item{Type: pool.OpenResponse, Band: pool.Easy}, false, false))
	assert.Equal(t, -0.1, c.Score(pool.Item{Type: pool.Other, Band: pool.Easy}, false, true))
}

func TestMaxPossible(t *testing.T) {
	c := DefaultConfig()
	asked := []pool.Item{{Band: pool.Easy}, {Band: pool.Hard}, {Band: pool.Hard}, {Band: pool.Medium}}
	assert.Equal(t, 9.0, c.MaxPossible(asked))
	assert.Equal(t, 0.0, c.MaxPossible(nil))
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.PositiveByBand.Hard = -3
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.PenaltyByItemType = map[pool.ItemType]float64{pool.SingleResponse: 1}
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.PenaltyByItemType = map[pool.ItemType]float64{"essay": -1}
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.UnansweredPenalty = 0.5
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.ScoringMethod = "scaled"
	assert.Error(t, bad.Validate())
}

func TestClone_DoesNotShareMap(t *testing.T) {
	c := DefaultConfig()
	cp := c.Clone()
	cp.PenaltyByItemType[pool.SingleResponse] = -2
	assert.Equal(t, -1.0, c.PenaltyByItemType[pool.SingleResponse])
}

func TestWithDefaults(t *testing.T) {
	assert.Equal(t, DefaultConfig(), Config{}.WithDefaults())

	c := Config{ScoringMethod: ScoringRaw}.WithDefaults()
	require.NoError(t, c.Validate())
	assert.Equal(t, ScoringRaw, c.ScoringMethod)
	assert.Equal(t, BandPoints{Easy: 1, Medium: 2, Hard: 3}, c.PositiveByBand)
	assert.Equal(t, -1.0, c.PenaltyByItemType[pool.SingleResponse])
	assert.False(t, c.NegativeEnabled, "taken as given")

	custom := Config{
		PositiveByBand:    BandPoints{Hard: 5},
		NegativeEnabled:   true,
		PenaltyByItemType: map[pool.ItemType]float64{},
	}.WithDefaults()
	assert.Equal(t, BandPoints{Hard: 5}, custom.PositiveByBand)
	assert.Empty(t, custom.PenaltyByItemType)
	assert.Equal(t, ScoringPercentile, custom.ScoringMethod)
}
