package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-cat/internal/db"
	"github.com/mind-engage/mindengage-cat/internal/irt"
	"github.com/mind-engage/mindengage-cat/internal/marking"
	"github.com/mind-engage/mindengage-cat/internal/pool"
	"github.com/mind-engage/mindengage-cat/internal/session"
	"github.com/mind-engage/mindengage-cat/internal/store"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "cat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })
	return dbh
}

func event(id string, seq int64, typ session.EventType, status session.Status, at time.Time) session.Event {
	return session.Event{
		SessionID:   id,
		Seq:         seq,
		Type:        typ,
		CandidateID: "stu-1",
		Status:      status,
		ItemsAsked:  int(seq - 1),
		Data:        []byte(fmt.Sprintf(`{"n":%d}`, seq)),
		At:          at,
	}
}

func TestSQLStore_AppendLoad(t *testing.T) {
	ctx := context.Background()
	s := store.NewSQLStore(openDB(t))
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, event("s-1", 1, session.EventSessionStarted, session.StatusInProgress, t0)))
	require.NoError(t, s.Append(ctx, event("s-1", 2, session.EventTurnRecorded, session.StatusInProgress, t0.Add(time.Second))))

	err := s.Append(ctx, event("s-1", 2, session.EventTurnRecorded, session.StatusInProgress, t0.Add(2*time.Second)))
	assert.ErrorIs(t, err, session.ErrConflict)

	err = s.Append(ctx, event("s-1", 4, session.EventTurnRecorded, session.StatusInProgress, t0))
	assert.ErrorIs(t, err, session.ErrConflict, "gap")

	got, err := s.Load(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[1].Seq)
	assert.Equal(t, session.EventTurnRecorded, got[1].Type)
	assert.JSONEq(t, `{"n":2}`, string(got[1].Data))
	assert.Equal(t, t0.Add(time.Second), got[1].At)

	_, err = s.Load(ctx, "nope")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestSQLStore_List(t *testing.T) {
	ctx := context.Background()
	s := store.NewSQLStore(openDB(t))
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, event("a", 1, session.EventSessionStarted, session.StatusInProgress, t0)))
	require.NoError(t, s.Append(ctx, event("a", 2, session.EventSessionAborted, session.StatusAborted, t0.Add(time.Minute))))
	require.NoError(t, s.Append(ctx, event("b", 1, session.EventSessionStarted, session.StatusInProgress, t0.Add(time.Second))))

	all, err := s.List(ctx, session.ListOpts{CandidateID: "stu-1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].SessionID)
	assert.Equal(t, session.StatusAborted, all[1].Status)
	assert.Equal(t, 1, all[1].ItemsAsked)
	assert.Equal(t, t0, all[1].StartedAt)
	assert.Equal(t, t0.Add(time.Minute), all[1].UpdatedAt)

	inProgress, err := s.List(ctx, session.ListOpts{Status: session.StatusInProgress})
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, "b", inProgress[0].SessionID)

	page, err := s.List(ctx, session.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].SessionID)

	none, err := s.List(ctx, session.ListOpts{CandidateID: "someone-else"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLStore_DrivesManager(t *testing.T) {
	ctx := context.Background()
	dbh := openDB(t)
	items := make([]pool.Item, 6)
	for i := range items {
		items[i] = pool.Item{
			ID:        fmt.Sprintf("q%02d", i+1),
			Type:      pool.SingleResponse,
			Band:      pool.Medium,
			Subject:   "algebra",
			Params:    irt.Params{Discrimination: 1.2, Difficulty: -1.5 + float64(i)*0.6},
			AnswerKey: []string{"a"},
		}
	}
	provider := pool.NewSQLProvider(dbh)
	require.NoError(t, provider.Upsert(ctx, items))

	m := session.NewManager(store.NewSQLStore(dbh))
	started, err := m.StartSession(ctx, provider, session.StartRequest{
		CandidateID: "stu-9",
		Scope:       pool.Scope{Subject: "algebra"},
		Marking:     marking.DefaultConfig(),
		Config:      session.Config{MinItems: 2, MaxItems: 3, SEThreshold: 0.2},
	})
	require.NoError(t, err)

	out, err := m.SubmitAnswer(ctx, started.SessionID, started.FirstItemID, "a")
	require.NoError(t, err)

	// A second manager on the same database resumes the session.
	m2 := session.NewManager(store.NewSQLStore(dbh))
	out, err = m2.SubmitAnswer(ctx, started.SessionID, out.NextItemID, "b")
	require.NoError(t, err)
	out, err = m2.SubmitAnswer(ctx, started.SessionID, out.NextItemID, nil)
	require.NoError(t, err)
	require.Equal(t, session.StatusCompleted, out.Status)

	res, err := m.GetResult(ctx, started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, *out.Result, res)
	assert.Equal(t, 3, res.ItemsAsked)

	list, err := m.ListSessions(ctx, session.ListOpts{CandidateID: "stu-9"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, session.StatusCompleted, list[0].Status)
	assert.Equal(t, 3, list[0].ItemsAsked)
}
