package selection

import (
	"fmt"
	"math"
	"strings"

	"github.com/mind-engage/mindengage-cat/internal/irt"
	"github.com/mind-engage/mindengage-cat/internal/pool"
)

type Method string

const (
	MaxInformation    Method = "max-information"
	NearestDifficulty Method = "nearest-difficulty"
)

func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "max-information", "max_information", "mfi":
		return MaxInformation, nil
	case "nearest-difficulty", "nearest_difficulty":
		return NearestDifficulty, nil
	default:
		return "", fmt.Errorf("unknown item selection method %q", s)
	}
}

func (m Method) Valid() bool { return m == MaxInformation || m == NearestDifficulty }

// tieEpsilon treats scores this close as equal so that mirror-image items
// resolve by id rather than by rounding noise.
const tieEpsilon = 1e-12

// Selector picks the next item for a theta. It holds no state between calls.
type Selector struct {
	method Method
	model  irt.Model
}

func New(method Method, model irt.Model) *Selector {
	if !method.Valid() {
		method = MaxInformation
	}
	return &Selector{method: method, model: model}
}

// SelectNext returns the best unasked candidate at theta, or false when
// nothing is left. Ties go to the lowest item id.
func (s *Selector) SelectNext(theta float64, candidates []pool.Item, askedIDs []string) (pool.Item, bool) {
	asked := make(map[string]struct{}, len(askedIDs))
	for _, id := range askedIDs {
		asked[id] = struct{}{}
	}
	remaining := make([]pool.Item, 0, len(candidates))
	for _, it := range candidates {
		if _, ok := asked[it.ID]; !ok {
			remaining = append(remaining, it)
		}
	}
	if len(remaining) == 0 {
		return pool.Item{}, false
	}

	if s.method == MaxInformation && s.informative(remaining) {
		return pick(remaining, func(it pool.Item) float64 {
			return s.model.Information(theta, it.Params)
		}), true
	}
	return pick(remaining, func(it pool.Item) float64 {
		return -math.Abs(it.Params.Difficulty - theta)
	}), true
}

// informative is false when no item carries a usable discrimination, in
// which case information is flat and nearest-difficulty takes over.
func (s *Selector) informative(items []pool.Item) bool {
	if !s.model.UsesDiscrimination() {
		return true
	}
	for _, it := range items {
		if it.Params.Discrimination > 0 {
			return true
		}
	}
	return false
}

// pick returns the item with the highest score, lowest id on ties.
func pick(items []pool.Item, score func(pool.Item) float64) pool.Item {
	best := items[0]
	bestScore := score(best)
	for _, it := range items[1:] {
		sc := score(it)
		switch {
		case sc > bestScore+tieEpsilon:
			best, bestScore = it, sc
		case math.Abs(sc-bestScore) <= tieEpsilon && it.ID < best.ID:
			best, bestScore = it, sc
		}
	}
	return best
}
