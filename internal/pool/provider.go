package pool

import (
	"context"
	"sort"
	"strings"
)

// Scope narrows the bank to a subject and, optionally, a set of topics.
type Scope struct {
	Subject string   `json:"subject,omitempty" yaml:"subject,omitempty"`
	Topics  []string `json:"topics,omitempty" yaml:"topics,omitempty"`
}

// Matches reports whether it falls inside the scope. Empty fields match all.
func (s Scope) Matches(it Item) bool {
	if s.Subject != "" && !strings.EqualFold(s.Subject, it.Subject) {
		return false
	}
	if len(s.Topics) == 0 {
		return true
	}
	for _, t := range s.Topics {
		if strings.EqualFold(t, it.Topic) {
			return true
		}
	}
	return false
}

// Provider returns the candidate items for a session. Implementations may
// ignore allowedTypes; callers filter again.
type Provider interface {
	FetchCandidates(ctx context.Context, scope Scope, allowedTypes []ItemType) ([]Item, error)
}

// Static is an in-memory provider, mostly for tests and pool files.
type Static struct {
	items []Item
}

func NewStatic(items []Item) *Static {
	cp := make([]Item, len(items))
	copy(cp, items)
	return &Static{items: cp}
}

func (s *Static) FetchCandidates(_ context.Context, scope Scope, allowedTypes []ItemType) ([]Item, error) {
	out := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		if scope.Matches(it) {
			out = append(out, it)
		}
	}
	return Filter(out, allowedTypes, nil), nil
}

// Filter keeps items whose type and band are allowed. A nil/empty allow
// list means everything is allowed.
func Filter(items []Item, types []ItemType, bands []Band) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if len(types) > 0 && !containsType(types, it.Type) {
			continue
		}
		if len(bands) > 0 && !containsBand(bands, it.Band) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// SortByID orders items by id in place.
func SortByID(items []Item) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}

func containsType(xs []ItemType, t ItemType) bool {
	for _, x := range xs {
		if x == t {
			return true
		}
	}
	return false
}

func containsBand(xs []Band, b Band) bool {
	for _, x := range xs {
		if x == b {
			return true
		}
	}
	return false
}
