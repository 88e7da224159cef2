// Package session runs adaptive-testing sessions: it issues items, records
// turns, re-estimates ability and finalizes results. Session state is an
// append-only event log; the in-memory snapshot is derived from it.
package session

import (
	"time"

	"github.com/mind-engage/mindengage-cat/internal/irt"
	"github.com/mind-engage/mindengage-cat/internal/marking"
	"github.com/mind-engage/mindengage-cat/internal/pool"
	"github.com/mind-engage/mindengage-cat/internal/termination"
)

type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusAborted    Status = "aborted"
)

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusAborted }

// Turn is one asked item. Correct is nil when the item went unanswered.
type Turn struct {
	ItemID              string  `json:"item_id"`
	Response            any     `json:"response"`
	Correct             *bool   `json:"correct"`
	ScoreAwarded        float64 `json:"score_awarded"`
	RespondedAtOffsetMs int64   `json:"responded_at_offset_ms"`

	ThetaAfter float64 `json:"theta_after"`
	SEAfter    float64 `json:"se_after"`
	BoundHit   bool    `json:"bound_hit,omitempty"`
	Degenerate bool    `json:"degenerate,omitempty"`
}

func (t Turn) Unanswered() bool { return t.Correct == nil }

// Result is produced once, when the session leaves in-progress.
type Result struct {
	FinalAbilityEstimate float64               `json:"final_ability_estimate"`
	FinalStandardError   float64               `json:"final_standard_error"`
	Percentile           int                   `json:"percentile"`
	RawScore             float64               `json:"raw_score"`
	MaxPossibleScore     float64               `json:"max_possible_score"`
	ItemsAsked           int                   `json:"items_asked"`
	TerminationReason    termination.Reason    `json:"termination_reason"`
	ScoringMethod        marking.ScoringMethod `json:"scoring_method"`
	// Score is the headline figure: the percentile or the raw score,
	// depending on ScoringMethod.
	Score float64 `json:"score"`
}

// State is the snapshot derived from a session's events.
type State struct {
	SessionID   string         `json:"session_id"`
	CandidateID string         `json:"candidate_id,omitempty"`
	Scope       pool.Scope     `json:"scope"`
	Marking     marking.Config `json:"marking"`
	Config      Config         `json:"config"`
	Pool        []pool.Item    `json:"-"`
	StartedAt   time.Time      `json:"started_at"`

	AskedItems      []Turn  `json:"asked_items"`
	AbilityEstimate float64 `json:"ability_estimate"`
	StandardError   float64 `json:"standard_error"`
	Status          Status  `json:"status"`
	CurrentItemID   string  `json:"current_item_id,omitempty"`
	Result          *Result `json:"result,omitempty"`

	// Seq is the sequence number of the last applied event.
	Seq int64 `json:"seq"`
}

// Clone copies everything a turn may change. Pool items are read-only and
// shared.
func (s *State) Clone() *State {
	cp := *s
	cp.AskedItems = append([]Turn(nil), s.AskedItems...)
	if s.Result != nil {
		r := *s.Result
		cp.Result = &r
	}
	cp.Marking = s.Marking.Clone()
	return &cp
}

func (s *State) item(id string) (pool.Item, bool) {
	for _, it := range s.Pool {
		if it.ID == id {
			return it, true
		}
	}
	return pool.Item{}, false
}

func (s *State) asked(id string) bool {
	for _, t := range s.AskedItems {
		if t.ItemID == id {
			return true
		}
	}
	return false
}

func (s *State) askedIDs() []string {
	ids := make([]string, 0, len(s.AskedItems))
	for _, t := range s.AskedItems {
		ids = append(ids, t.ItemID)
	}
	return ids
}

// history is the estimator input: answered turns only.
func (s *State) history() []irt.Response {
	out := make([]irt.Response, 0, len(s.AskedItems))
	for _, t := range s.AskedItems {
		if t.Correct == nil {
			continue
		}
		it, ok := s.item(t.ItemID)
		if !ok {
			continue
		}
		out = append(out, irt.Response{Params: it.Params, Correct: *t.Correct})
	}
	return out
}

func (s *State) askedPoolItems() []pool.Item {
	out := make([]pool.Item, 0, len(s.AskedItems))
	for _, t := range s.AskedItems {
		if it, ok := s.item(t.ItemID); ok {
			out = append(out, it)
		}
	}
	return out
}

// CurrentItem is the item awaiting a response, if any.
func (s *State) CurrentItem() (pool.Item, bool) {
	if s.Status != StatusInProgress || s.CurrentItemID == "" {
		return pool.Item{}, false
	}
	return s.item(s.CurrentItemID)
}
