package session_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-cat/internal/marking"
	"github.com/mind-engage/mindengage-cat/internal/pool"
	"github.com/mind-engage/mindengage-cat/internal/session"
)

func TestReplay_MatchesLiveState(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	m := newManager(store)
	started := start(t, m, spacedPool(10, 1), e2eConfig())

	itemID := started.FirstItemID
	for _, resp := range []any{"a", nil, "b"} {
		out, err := m.SubmitAnswer(ctx, started.SessionID, itemID, resp)
		require.NoError(t, err)
		itemID = out.NextItemID
	}

	live, err := m.GetSession(ctx, started.SessionID)
	require.NoError(t, err)
	events, err := store.Load(ctx, started.SessionID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, session.EventSessionStarted, events[0].Type)
	assert.Equal(t, session.EventTurnRecorded, events[3].Type)
	assert.Equal(t, 3, events[3].ItemsAsked)

	replayed, err := session.Replay(events)
	require.NoError(t, err)
	assert.Equal(t, live, replayed)

	// Any prefix of the log is a valid earlier snapshot.
	prefix, err := session.Replay(events[:2])
	require.NoError(t, err)
	assert.Len(t, prefix.AskedItems, 1)
	assert.Equal(t, live.AskedItems[0], prefix.AskedItems[0])
}

func TestReplay_RejectsCorruptLogs(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	m := newManager(store)
	started := start(t, m, spacedPool(10, 1), e2eConfig())
	_, err := m.SubmitAnswer(ctx, started.SessionID, started.FirstItemID, "a")
	require.NoError(t, err)
	_, err = m.AbortSession(ctx, started.SessionID)
	require.NoError(t, err)
	events, err := store.Load(ctx, started.SessionID)
	require.NoError(t, err)
	require.Len(t, events, 3)

	_, err = session.Replay(nil)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	_, err = session.Replay(events[1:])
	assert.ErrorIs(t, err, session.ErrCorruptLog)

	gap := []session.Event{events[0], events[2]}
	_, err = session.Replay(gap)
	assert.ErrorIs(t, err, session.ErrCorruptLog)

	afterAbort := append(append([]session.Event(nil), events...), events[1])
	afterAbort[3].Seq = 4
	_, err = session.Replay(afterAbort)
	assert.ErrorIs(t, err, session.ErrCorruptLog)

	garbled := append([]session.Event(nil), events...)
	garbled[1].Data = []byte(`{"turn":`)
	_, err = session.Replay(garbled)
	assert.ErrorIs(t, err, session.ErrCorruptLog)
}

func TestMemoryStore_AppendConflict(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	ev := session.Event{SessionID: "s", Seq: 1, Type: session.EventSessionStarted, Data: []byte(`{}`)}
	require.NoError(t, store.Append(ctx, ev))
	assert.ErrorIs(t, store.Append(ctx, ev), session.ErrConflict)

	ev.Seq = 3
	assert.ErrorIs(t, store.Append(ctx, ev), session.ErrConflict)

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("x: %w", session.ErrInvalidConfig), session.CodeInvalidConfig},
		{session.ErrSessionNotFound, session.CodeSessionNotFound},
		{session.ErrSessionNotInProgress, session.CodeSessionNotInProgress},
		{session.ErrItemMismatch, session.CodeItemMismatch},
		{session.ErrSessionStillInProgress, session.CodeSessionStillInProgress},
		{session.ErrConflict, session.CodeConflict},
		{errors.New("disk on fire"), session.CodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, session.Code(tt.err))
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := session.Config{MinItems: 1, MaxItems: 3, SEThreshold: 0.3}.WithDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1.0, cfg.StartingSE)
	assert.Equal(t, -4.0, cfg.ThetaMin)
	assert.Equal(t, 4.0, cfg.ThetaMax)
	assert.Equal(t, 50, cfg.MaxIterations)
	assert.Equal(t, 0.7, cfg.DegenerateStep)
	assert.Equal(t, 1.0, cfg.PopulationStd)

	def := session.DefaultConfig()
	require.NoError(t, def.Validate())
	assert.Equal(t, 20, def.MaxItems)
}

func TestManager_BaseConfig(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(session.NewMemoryStore(),
		session.WithBaseConfig(session.Config{ThetaMin: -3, ThetaMax: 3, DegenerateStep: -1, PopulationMean: 0.5, PopulationStd: 2}))
	started, err := m.StartSession(ctx, pool.NewStatic(spacedPool(10, 1)), session.StartRequest{
		Marking: marking.DefaultConfig(),
		Config:  session.Config{MinItems: 1, MaxItems: 4, SEThreshold: 0.1},
	})
	require.NoError(t, err)

	out, err := m.SubmitAnswer(ctx, started.SessionID, started.FirstItemID, "a")
	require.NoError(t, err)
	// A negative degenerate step jumps straight to the inherited bound.
	assert.Equal(t, 3.0, out.Turn.ThetaAfter)
	assert.True(t, out.Turn.BoundHit)
	assert.True(t, out.Turn.Degenerate)

	st, err := m.GetSession(ctx, started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, st.Config.PopulationStd)
	assert.Equal(t, 4, st.Config.MaxItems)
}
