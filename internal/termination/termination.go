// Package termination decides when an adaptive session stops.
package termination

import (
	"errors"
	"fmt"
	"math"
)

type Reason string

const (
	None             Reason = ""
	MaxItems         Reason = "max-items"
	PrecisionReached Reason = "precision-reached"
	PoolExhausted    Reason = "pool-exhausted"
	Aborted          Reason = "aborted"
)

// Limits are fixed at session start.
type Limits struct {
	MinItems    int     `json:"min_items"`
	MaxItems    int     `json:"max_items"`
	SEThreshold float64 `json:"se_threshold"`
}

func (l Limits) Validate() error {
	if l.MaxItems < 1 {
		return errors.New("max_items must be >= 1")
	}
	if l.MinItems < 0 {
		return errors.New("min_items must be >= 0")
	}
	if l.MinItems > l.MaxItems {
		return fmt.Errorf("min_items (%d) exceeds max_items (%d)", l.MinItems, l.MaxItems)
	}
	if !(l.SEThreshold > 0) || math.IsInf(l.SEThreshold, 0) {
		return errors.New("se_threshold must be > 0")
	}
	return nil
}

// Progress is the part of a session the evaluator looks at.
type Progress struct {
	ItemsAsked    int
	StandardError float64
	// PoolExhausted is set when the selector found no next item.
	PoolExhausted bool
}

// ShouldTerminate checks max items, then precision, then pool exhaustion.
// The first satisfied condition names the reason.
func ShouldTerminate(p Progress, l Limits) (bool, Reason) {
	if p.ItemsAsked >= l.MaxItems {
		return true, MaxItems
	}
	if p.ItemsAsked >= l.MinItems && p.StandardError <= l.SEThreshold {
		return true, PrecisionReached
	}
	if p.PoolExhausted {
		return true, PoolExhausted
	}
	return false, None
}
