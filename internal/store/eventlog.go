// Package store persists session event logs in SQL (SQLite or Postgres).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-cat/internal/session"
)

// SQLStore implements session.Store over the cat_events / cat_sessions
// tables created by db.Open.
type SQLStore struct{ db *sql.DB }

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

var _ session.Store = (*SQLStore)(nil)

// Append writes the event and refreshes the session row in one
// transaction. The (session_id, seq) key turns a lost race into
// session.ErrConflict.
func (s *SQLStore) Append(ctx context.Context, ev session.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	at := ev.At.UnixMilli()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cat_sessions (id, candidate_id, status, items_asked, last_seq, started_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$6)
		 ON CONFLICT (id) DO UPDATE SET
		   status=EXCLUDED.status, items_asked=EXCLUDED.items_asked,
		   last_seq=EXCLUDED.last_seq, updated_at=EXCLUDED.updated_at`,
		ev.SessionID, ev.CandidateID, string(ev.Status), ev.ItemsAsked, ev.Seq, at); err != nil {
		return fmt.Errorf("upsert session %s: %w", ev.SessionID, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO cat_events (session_id, seq, typ, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (session_id, seq) DO NOTHING`,
		ev.SessionID, ev.Seq, string(ev.Type), string(ev.Data), at)
	if err != nil {
		return fmt.Errorf("insert event %s/%d: %w", ev.SessionID, ev.Seq, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return session.ErrConflict
	}
	if ev.Seq > 1 {
		// The previous event must exist; a gap means a stale writer.
		var prev int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM cat_events WHERE session_id=$1 AND seq=$2`,
			ev.SessionID, ev.Seq-1).Scan(&prev); err != nil {
			return err
		}
		if prev == 0 {
			return session.ErrConflict
		}
	}
	return tx.Commit()
}

func (s *SQLStore) Load(ctx context.Context, sessionID string) ([]session.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, typ, data, created_at FROM cat_events WHERE session_id=$1 ORDER BY seq`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.Event
	for rows.Next() {
		var (
			ev   session.Event
			typ  string
			data string
			at   int64
		)
		if err := rows.Scan(&ev.Seq, &typ, &data, &at); err != nil {
			return nil, err
		}
		ev.SessionID = sessionID
		ev.Type = session.EventType(typ)
		ev.Data = []byte(data)
		ev.At = time.UnixMilli(at).UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, session.ErrSessionNotFound
	}
	return out, nil
}

func (s *SQLStore) List(ctx context.Context, opts session.ListOpts) ([]session.Summary, error) {
	var (
		where []string
		args  []any
	)
	if opts.CandidateID != "" {
		args = append(args, opts.CandidateID)
		where = append(where, fmt.Sprintf("candidate_id = $%d", len(args)))
	}
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	q := `SELECT id, candidate_id, status, items_asked, started_at, updated_at FROM cat_sessions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC, id ASC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, max(opts.Offset, 0))
	q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []session.Summary{}
	for rows.Next() {
		var (
			sum              session.Summary
			status           string
			started, updated int64
		)
		if err := rows.Scan(&sum.SessionID, &sum.CandidateID, &status, &sum.ItemsAsked, &started, &updated); err != nil {
			return nil, err
		}
		sum.Status = session.Status(status)
		sum.StartedAt = time.UnixMilli(started).UTC()
		sum.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}
