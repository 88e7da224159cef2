package grading

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/mind-engage/mindengage-cat/internal/pool"
)

// Result is the verdict on one response.
type Result struct {
	Correct  bool
	Feedback []string // optional notes
}

// Strategy judges responses for one item type.
type Strategy interface {
	Grade(ctx context.Context, it pool.Item, response any) (Result, error)
}

// Grader routes by item type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, it pool.Item, response any) (Result, error)
}

// ErrResponseShape is returned when a response has the wrong Go type for
// its item. Callers treat it as an incorrect answer.
var ErrResponseShape = errors.New("response has the wrong shape for this item type")

type defaultGrader struct {
	strategies map[pool.ItemType]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, it pool.Item, response any) (Result, error) {
	s, ok := g.strategies[it.Type]
	if !ok {
		return Result{Feedback: []string{"no strategy available"}}, nil
	}
	return s.Grade(ctx, it, response)
}

// Engine options

type Option func(*config)

type config struct {
	MaxEditDistance int // fuzzy tolerance for open responses; 0 disables
}

func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[pool.ItemType]Strategy{
			pool.SingleResponse: singleResponseStrategy{},
			pool.OpenResponse:   openResponseStrategy{maxEdit: cfg.MaxEditDistance},
			pool.Other:          exactStrategy{},
		},
	}
}

// --- Strategies ---

// singleResponseStrategy matches the chosen option against any key.
type singleResponseStrategy struct{}

func (singleResponseStrategy) Grade(_ context.Context, it pool.Item, response any) (Result, error) {
	resp, ok := asString(response)
	if !ok {
		return Result{}, ErrResponseShape
	}
	for _, k := range it.AnswerKey {
		if resp == k {
			return Result{Correct: true}, nil
		}
	}
	return Result{}, nil
}

// openResponseStrategy compares numerically when the key is a number,
// otherwise as normalized text with an optional edit-distance allowance.
type openResponseStrategy struct{ maxEdit int }

func (s openResponseStrategy) Grade(_ context.Context, it pool.Item, response any) (Result, error) {
	resp, ok := asString(response)
	if !ok {
		return Result{}, ErrResponseShape
	}
	if len(it.AnswerKey) == 0 {
		return Result{Feedback: []string{"no answer key"}}, nil
	}
	if _, numeric := parseFloatLoose(it.AnswerKey[0]); numeric {
		return Result{Correct: numericMatch(resp, it.AnswerKey)}, nil
	}

	got := normalize(resp)
	fuzzy := false
	for _, k := range it.AnswerKey {
		nk := normalize(k)
		if nk == got {
			return Result{Correct: true}, nil
		}
		if s.maxEdit > 0 && levenshtein(nk, got) <= s.maxEdit {
			fuzzy = true
		}
	}
	if fuzzy {
		return Result{Correct: true, Feedback: []string{"close match (fuzzy)"}}, nil
	}
	return Result{}, nil
}

// exactStrategy handles "other" items: a string must equal a key, a list
// must equal the key set regardless of order.
type exactStrategy struct{}

func (exactStrategy) Grade(_ context.Context, it pool.Item, response any) (Result, error) {
	if s, ok := response.(string); ok {
		for _, k := range it.AnswerKey {
			if s == k {
				return Result{Correct: true}, nil
			}
		}
		return Result{}, nil
	}
	arr, ok := toStringSlice(response)
	if !ok {
		return Result{}, ErrResponseShape
	}
	return Result{Correct: setEqual(toSet(arr), toSet(it.AnswerKey))}, nil
}

// helpers

// asString accepts a string, a bare number or a single-element list;
// JSON clients send any of these for one answer.
func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	}
	if arr, ok := toStringSlice(v); ok && len(arr) == 1 {
		return arr[0], true
	}
	return "", false
}

func toStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
