package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store is the durable event log. Append must be atomic and must fail with
// ErrConflict when the session already has an event at ev.Seq.
type Store interface {
	Append(ctx context.Context, ev Event) error
	// Load returns all events in seq order, or ErrSessionNotFound.
	Load(ctx context.Context, sessionID string) ([]Event, error)
	List(ctx context.Context, opts ListOpts) ([]Summary, error)
}

type ListOpts struct {
	CandidateID string
	Status      Status
	Limit       int
	Offset      int
}

// Summary is a listing row, newest first.
type Summary struct {
	SessionID   string    `json:"session_id"`
	CandidateID string    `json:"candidate_id,omitempty"`
	Status      Status    `json:"status"`
	ItemsAsked  int       `json:"items_asked"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MemoryStore keeps events in process. Used in offline mode and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	events   map[string][]Event
	sessions map[string]*Summary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: map[string][]Event{}, sessions: map[string]*Summary{}}
}

func (m *MemoryStore) Append(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.events[ev.SessionID]
	if ev.Seq != int64(len(log)+1) {
		return ErrConflict
	}
	m.events[ev.SessionID] = append(log, ev)

	sum, ok := m.sessions[ev.SessionID]
	if !ok {
		sum = &Summary{SessionID: ev.SessionID, StartedAt: ev.At}
		m.sessions[ev.SessionID] = sum
	}
	if ev.CandidateID != "" {
		sum.CandidateID = ev.CandidateID
	}
	sum.Status = ev.Status
	sum.ItemsAsked = ev.ItemsAsked
	sum.UpdatedAt = ev.At
	return nil
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	log, ok := m.events[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return append([]Event(nil), log...), nil
}

func (m *MemoryStore) List(_ context.Context, opts ListOpts) ([]Summary, error) {
	m.mu.RLock()
	out := make([]Summary, 0, len(m.sessions))
	for _, s := range m.sessions {
		if opts.CandidateID != "" && s.CandidateID != opts.CandidateID {
			continue
		}
		if opts.Status != "" && s.Status != opts.Status {
			continue
		}
		out = append(out, *s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []Summary{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}
