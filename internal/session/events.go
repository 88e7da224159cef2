package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-cat/internal/marking"
	"github.com/mind-engage/mindengage-cat/internal/pool"
	"github.com/mind-engage/mindengage-cat/internal/termination"
)

type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventTurnRecorded   EventType = "turn_recorded"
	EventSessionAborted EventType = "session_aborted"
)

// Event is one committed change to a session. Seq starts at 1 and has no
// gaps. CandidateID, Status and ItemsAsked describe the session after the
// event and let stores keep a listing without decoding Data.
type Event struct {
	SessionID   string          `json:"session_id"`
	Seq         int64           `json:"seq"`
	Type        EventType       `json:"type"`
	CandidateID string          `json:"candidate_id,omitempty"`
	Status      Status          `json:"status"`
	ItemsAsked  int             `json:"items_asked"`
	Data        json.RawMessage `json:"data"`
	At          time.Time       `json:"at"`
}

type startedData struct {
	CandidateID string         `json:"candidate_id,omitempty"`
	Scope       pool.Scope     `json:"scope"`
	Marking     marking.Config `json:"marking"`
	Config      Config         `json:"config"`
	Pool        []pool.Item    `json:"pool"`
	FirstItemID string         `json:"first_item_id"`
	StartedAt   time.Time      `json:"started_at"`
}

// turnData commits a marked response together with the estimate it
// produced. Result is set when the turn ended the session.
type turnData struct {
	Turn       Turn    `json:"turn"`
	NextItemID string  `json:"next_item_id,omitempty"`
	Result     *Result `json:"result,omitempty"`
}

type abortedData struct {
	Result Result `json:"result"`
}

// ErrCorruptLog is returned by Replay for a log that could not have been
// written by a Manager.
var ErrCorruptLog = errors.New("corrupt session log")

// Replay rebuilds a session snapshot from its events.
func Replay(events []Event) (*State, error) {
	if len(events) == 0 {
		return nil, ErrSessionNotFound
	}
	var st *State
	for i, ev := range events {
		if ev.Seq != int64(i+1) {
			return nil, fmt.Errorf("%w: event %d has seq %d", ErrCorruptLog, i+1, ev.Seq)
		}
		next, err := apply(st, ev)
		if err != nil {
			return nil, err
		}
		st = next
	}
	return st, nil
}

// apply returns the state after ev. st is not modified; nil st means the
// session does not exist yet.
func apply(st *State, ev Event) (*State, error) {
	if st == nil {
		if ev.Type != EventSessionStarted {
			return nil, fmt.Errorf("%w: first event is %s", ErrCorruptLog, ev.Type)
		}
		var d startedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrCorruptLog, ev.Type, err)
		}
		return &State{
			SessionID:       ev.SessionID,
			CandidateID:     d.CandidateID,
			Scope:           d.Scope,
			Marking:         d.Marking,
			Config:          d.Config,
			Pool:            d.Pool,
			StartedAt:       d.StartedAt,
			AbilityEstimate: d.Config.StartingTheta,
			StandardError:   d.Config.StartingSE,
			Status:          StatusInProgress,
			CurrentItemID:   d.FirstItemID,
			Seq:             ev.Seq,
		}, nil
	}

	if st.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s after session became %s", ErrCorruptLog, ev.Type, st.Status)
	}
	next := st.Clone()
	next.Seq = ev.Seq

	switch ev.Type {
	case EventTurnRecorded:
		var d turnData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrCorruptLog, ev.Type, err)
		}
		next.AskedItems = append(next.AskedItems, d.Turn)
		next.AbilityEstimate = d.Turn.ThetaAfter
		next.StandardError = d.Turn.SEAfter
		next.CurrentItemID = d.NextItemID
		if d.Result != nil {
			next.Status = StatusCompleted
			next.Result = d.Result
			next.CurrentItemID = ""
		}
	case EventSessionAborted:
		var d abortedData
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrCorruptLog, ev.Type, err)
		}
		d.Result.TerminationReason = termination.Aborted
		next.Status = StatusAborted
		next.Result = &d.Result
		next.CurrentItemID = ""
	default:
		return nil, fmt.Errorf("%w: unexpected %s", ErrCorruptLog, ev.Type)
	}
	return next, nil
}

func newEvent(sessionID string, seq int64, typ EventType, data any, at time.Time) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s: %w", typ, err)
	}
	return Event{SessionID: sessionID, Seq: seq, Type: typ, Data: raw, At: at}, nil
}
