package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-cat/internal/grading"
	"github.com/mind-engage/mindengage-cat/internal/irt"
	"github.com/mind-engage/mindengage-cat/internal/locks"
	"github.com/mind-engage/mindengage-cat/internal/marking"
	"github.com/mind-engage/mindengage-cat/internal/percentile"
	"github.com/mind-engage/mindengage-cat/internal/platform/logger"
	"github.com/mind-engage/mindengage-cat/internal/pool"
	"github.com/mind-engage/mindengage-cat/internal/termination"
)

// Manager is the session state machine. Turns for one session are
// serialized by the Locker; different sessions proceed in parallel.
type Manager struct {
	store  Store
	locker locks.Locker
	grader grading.Grader
	log    *logger.Logger
	now    func() time.Time
	newID  func() string

	base Config

	mu    sync.Mutex
	cache map[string]*State // in-progress sessions only
}

type Option func(*Manager)

func WithLocker(l locks.Locker) Option { return func(m *Manager) { m.locker = l } }

func WithGrader(g grading.Grader) Option { return func(m *Manager) { m.grader = g } }

func WithLogger(l *logger.Logger) Option { return func(m *Manager) { m.log = l } }

// WithClock replaces time.Now; turn offsets are measured with it.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithIDGenerator(f func() string) Option { return func(m *Manager) { m.newID = f } }

// WithBaseConfig supplies engine settings for requests that leave them
// unset: algorithm, selection method, starting SE, theta range,
// iterations, degenerate step and population.
func WithBaseConfig(base Config) Option { return func(m *Manager) { m.base = base } }

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		locker: locks.NewLocal(),
		grader: grading.NewDefaultGrader(),
		log:    logger.Nop(),
		now:    time.Now,
		newID:  uuid.NewString,
		cache:  make(map[string]*State),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// StartRequest opens a session. Unset Marking and Config fields take their
// defaults; both are then validated and frozen for the life of the session.
type StartRequest struct {
	CandidateID string         `json:"candidate_id,omitempty"`
	Scope       pool.Scope     `json:"scope"`
	Marking     marking.Config `json:"marking"`
	Config      Config         `json:"config"`
}

type Started struct {
	SessionID   string          `json:"session_id"`
	FirstItemID string          `json:"first_item_id"`
	FirstItem   pool.PublicItem `json:"first_item"`
}

// Outcome is the reply to a submitted answer: a next item or a result,
// never neither.
type Outcome struct {
	NextItemID string           `json:"next_item_id,omitempty"`
	NextItem   *pool.PublicItem `json:"next_item,omitempty"`
	Status     Status           `json:"status"`
	Turn       Turn             `json:"turn"`
	Result     *Result          `json:"result,omitempty"`
}

// StartSession fetches the candidate pool from provider, validates it and
// issues the first item.
func (m *Manager) StartSession(ctx context.Context, provider pool.Provider, req StartRequest) (Started, error) {
	cfg := req.Config.inherit(m.base).WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Started{}, err
	}
	mk := req.Marking.Clone().WithDefaults()
	if err := mk.Validate(); err != nil {
		return Started{}, fmt.Errorf("%w: marking: %v", ErrInvalidConfig, err)
	}
	if provider == nil {
		return Started{}, fmt.Errorf("%w: no item pool provider", ErrInvalidConfig)
	}

	fetched, err := provider.FetchCandidates(ctx, req.Scope, cfg.AllowedItemTypes)
	if err != nil {
		return Started{}, fmt.Errorf("fetch candidates: %w", err)
	}
	items := m.usableItems(pool.Filter(fetched, cfg.AllowedItemTypes, cfg.AllowedBands), cfg)
	if len(items) == 0 {
		return Started{}, fmt.Errorf("%w: item pool is empty after filtering", ErrInvalidConfig)
	}

	first, _ := cfg.selector().SelectNext(cfg.StartingTheta, items, nil)
	id := m.newID()
	now := m.now()
	ev, err := newEvent(id, 1, EventSessionStarted, startedData{
		CandidateID: req.CandidateID,
		Scope:       req.Scope,
		Marking:     mk,
		Config:      cfg,
		Pool:        items,
		FirstItemID: first.ID,
		StartedAt:   now,
	}, now)
	if err != nil {
		return Started{}, err
	}
	st, err := m.commit(ctx, nil, ev)
	if err != nil {
		return Started{}, err
	}

	m.log.Info("session started",
		"session_id", id,
		"candidate_id", req.CandidateID,
		"algorithm", cfg.Algorithm,
		"pool_size", len(items),
		"first_item", first.ID,
	)
	it, _ := st.CurrentItem()
	return Started{SessionID: id, FirstItemID: first.ID, FirstItem: it.Public()}, nil
}

// usableItems drops items the model cannot use and repeated ids, then
// orders by id so selection is reproducible.
func (m *Manager) usableItems(items []pool.Item, cfg Config) []pool.Item {
	out := make([]pool.Item, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if err := it.Validate(cfg.Algorithm); err != nil {
			m.log.Warn("dropping unusable item", "item_id", it.ID, "error", err)
			continue
		}
		if seen[it.ID] {
			m.log.Warn("dropping duplicate item", "item_id", it.ID)
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	pool.SortByID(out)
	return out
}

// SubmitAnswer records the response to the current item. A nil response
// is an explicit unanswered submission.
func (m *Manager) SubmitAnswer(ctx context.Context, sessionID, itemID string, response any) (Outcome, error) {
	var out Outcome
	err := m.mutate(ctx, sessionID, func(st *State) (Event, error) {
		ev, o, err := m.turn(ctx, st, itemID, response)
		out = o
		return ev, err
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func (m *Manager) turn(ctx context.Context, st *State, itemID string, response any) (Event, Outcome, error) {
	if st.Status != StatusInProgress {
		return Event{}, Outcome{}, fmt.Errorf("%w: session %s is %s", ErrSessionNotInProgress, st.SessionID, st.Status)
	}
	if st.asked(itemID) {
		return Event{}, Outcome{}, fmt.Errorf("%w: item %s was already answered", ErrItemMismatch, itemID)
	}
	if itemID != st.CurrentItemID {
		return Event{}, Outcome{}, fmt.Errorf("%w: got %s, issued %s", ErrItemMismatch, itemID, st.CurrentItemID)
	}
	it, ok := st.item(itemID)
	if !ok {
		return Event{}, Outcome{}, fmt.Errorf("%w: item %s is not in the session pool", ErrItemMismatch, itemID)
	}

	cfg := st.Config
	now := m.now()
	turn := Turn{
		ItemID:              itemID,
		Response:            response,
		RespondedAtOffsetMs: now.Sub(st.StartedAt).Milliseconds(),
	}

	unanswered := response == nil
	correct := false
	if !unanswered {
		res, err := m.grader.Grade(ctx, it, response)
		switch {
		case errors.Is(err, grading.ErrResponseShape):
			m.log.Debug("response judged incorrect: wrong shape", "session_id", st.SessionID, "item_id", itemID)
		case err != nil:
			return Event{}, Outcome{}, fmt.Errorf("grade item %s: %w", itemID, err)
		default:
			correct = res.Correct
		}
		turn.Correct = &correct
	}
	turn.ScoreAwarded = st.Marking.Score(it, correct, unanswered)

	est := irt.Estimate{Theta: st.AbilityEstimate, SE: st.StandardError}
	if !unanswered {
		history := append(st.history(), irt.Response{Params: it.Params, Correct: correct})
		est = cfg.estimator().Estimate(st.AbilityEstimate, st.StandardError, history)
	}
	turn.ThetaAfter, turn.SEAfter = est.Theta, est.SE
	turn.BoundHit, turn.Degenerate = est.BoundHit, est.Degenerate
	if est.BoundHit {
		m.log.Warn("ability estimate at bound",
			"session_id", st.SessionID,
			"item_id", itemID,
			"theta", est.Theta,
		)
	}

	asked := append(st.askedIDs(), itemID)
	progress := termination.Progress{ItemsAsked: len(asked), StandardError: est.SE}
	stop, reason := termination.ShouldTerminate(progress, cfg.limits())

	data := turnData{Turn: turn}
	out := Outcome{Status: StatusInProgress, Turn: turn}
	if !stop {
		next, ok := cfg.selector().SelectNext(est.Theta, st.Pool, asked)
		if ok {
			data.NextItemID = next.ID
			pub := next.Public()
			out.NextItemID, out.NextItem = next.ID, &pub
		} else {
			progress.PoolExhausted = true
			stop, reason = termination.ShouldTerminate(progress, cfg.limits())
		}
	}
	if stop {
		turns := append(append([]Turn(nil), st.AskedItems...), turn)
		res := finalize(st, turns, est.Theta, est.SE, reason)
		data.Result = &res
		out.Status, out.Result = StatusCompleted, &res
	}

	ev, err := newEvent(st.SessionID, st.Seq+1, EventTurnRecorded, data, now)
	return ev, out, err
}

// finalize builds the result over turns, which must include every asked item.
func finalize(st *State, turns []Turn, theta, se float64, reason termination.Reason) Result {
	raw := 0.0
	items := make([]pool.Item, 0, len(turns))
	for _, t := range turns {
		raw += t.ScoreAwarded
		if it, ok := st.item(t.ItemID); ok {
			items = append(items, it)
		}
	}
	res := Result{
		FinalAbilityEstimate: theta,
		FinalStandardError:   se,
		Percentile:           percentile.ToPercentile(theta, st.Config.PopulationMean, st.Config.PopulationStd),
		RawScore:             raw,
		MaxPossibleScore:     st.Marking.MaxPossible(items),
		ItemsAsked:           len(turns),
		TerminationReason:    reason,
		ScoringMethod:        st.Marking.ScoringMethod,
	}
	if res.ScoringMethod == marking.ScoringRaw {
		res.Score = res.RawScore
	} else {
		res.Score = float64(res.Percentile)
	}
	return res
}

// AbortSession cancels an in-progress session. Aborting an aborted session
// returns its existing result.
func (m *Manager) AbortSession(ctx context.Context, sessionID string) (Result, error) {
	var res Result
	err := m.mutate(ctx, sessionID, func(st *State) (Event, error) {
		switch st.Status {
		case StatusAborted:
			res = *st.Result
			return Event{}, errNoChange
		case StatusCompleted:
			return Event{}, fmt.Errorf("%w: session %s is completed", ErrSessionNotInProgress, sessionID)
		}
		res = finalize(st, st.AskedItems, st.AbilityEstimate, st.StandardError, termination.Aborted)
		return newEvent(sessionID, st.Seq+1, EventSessionAborted, abortedData{Result: res}, m.now())
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// GetResult returns the frozen result of a terminal session.
func (m *Manager) GetResult(ctx context.Context, sessionID string) (Result, error) {
	st, err := m.load(ctx, sessionID, true)
	if err != nil {
		return Result{}, err
	}
	if !st.Status.Terminal() || st.Result == nil {
		return Result{}, fmt.Errorf("%w: session %s", ErrSessionStillInProgress, sessionID)
	}
	return *st.Result, nil
}

// GetSession returns a copy of the current snapshot.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*State, error) {
	st, err := m.load(ctx, sessionID, true)
	if err != nil {
		return nil, err
	}
	return st.Clone(), nil
}

func (m *Manager) ListSessions(ctx context.Context, opts ListOpts) ([]Summary, error) {
	return m.store.List(ctx, opts)
}

// errNoChange lets a mutation succeed without writing an event.
var errNoChange = errors.New("no change")

// mutate runs build against the current state under the session lock and
// commits the event it returns. A lost append race reloads the session
// from the store and runs build once more.
func (m *Manager) mutate(ctx context.Context, sessionID string, build func(*State) (Event, error)) error {
	unlock, err := m.locker.Lock(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("lock session %s: %w", sessionID, err)
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		st, err := m.load(ctx, sessionID, false)
		if err != nil {
			return err
		}
		ev, err := build(st.Clone())
		if errors.Is(err, errNoChange) {
			return nil
		}
		if err != nil {
			m.log.Debug("request rejected", "session_id", sessionID, "error", err)
			return err
		}
		_, err = m.commit(ctx, st, ev)
		if errors.Is(err, ErrConflict) && attempt == 0 {
			m.log.Warn("session changed underneath us; reloading", "session_id", sessionID, "seq", ev.Seq)
			m.evict(sessionID)
			continue
		}
		return err
	}
}

// commit applies ev to st, appends it and updates the cache. The cached
// snapshot only changes after the store accepted the event.
func (m *Manager) commit(ctx context.Context, st *State, ev Event) (*State, error) {
	next, err := apply(st, ev)
	if err != nil {
		return nil, err
	}
	ev.CandidateID = next.CandidateID
	ev.Status = next.Status
	ev.ItemsAsked = len(next.AskedItems)
	if err := m.store.Append(ctx, ev); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("append %s: %w", ev.Type, err)
	}

	m.mu.Lock()
	if next.Status.Terminal() {
		delete(m.cache, next.SessionID)
	} else {
		m.cache[next.SessionID] = next
	}
	m.mu.Unlock()

	if next.Status.Terminal() {
		m.log.Info("session finished",
			"session_id", next.SessionID,
			"status", next.Status,
			"reason", next.Result.TerminationReason,
			"items_asked", next.Result.ItemsAsked,
			"theta", next.Result.FinalAbilityEstimate,
			"se", next.Result.FinalStandardError,
		)
	}
	return next, nil
}

// load returns the session snapshot. Writers use the cache and rely on
// ErrConflict to notice staleness; readers pass fresh to go to the store,
// since another instance may have moved the session on.
func (m *Manager) load(ctx context.Context, sessionID string, fresh bool) (*State, error) {
	if !fresh {
		m.mu.Lock()
		st, ok := m.cache[sessionID]
		m.mu.Unlock()
		if ok {
			return st, nil
		}
	}

	events, err := m.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	st, err := Replay(events)
	if err != nil {
		return nil, fmt.Errorf("replay session %s: %w", sessionID, err)
	}
	m.mu.Lock()
	switch cached, ok := m.cache[sessionID]; {
	case st.Status.Terminal():
		delete(m.cache, sessionID)
	case !ok || cached.Seq < st.Seq:
		m.cache[sessionID] = st
	}
	m.mu.Unlock()
	return st, nil
}

func (m *Manager) evict(sessionID string) {
	m.mu.Lock()
	delete(m.cache, sessionID)
	m.mu.Unlock()
}
