package pool

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SQLProvider serves the item bank from the cat_items table.
type SQLProvider struct {
	db *sql.DB
}

func NewSQLProvider(db *sql.DB) *SQLProvider {
	return &SQLProvider{db: db}
}

func (p *SQLProvider) FetchCandidates(ctx context.Context, scope Scope, allowedTypes []ItemType) ([]Item, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if scope.Subject != "" {
		where = append(where, "LOWER(subject) = LOWER("+arg(scope.Subject)+")")
	}
	if len(scope.Topics) > 0 {
		ph := make([]string, 0, len(scope.Topics))
		for _, t := range scope.Topics {
			ph = append(ph, "LOWER("+arg(t)+")")
		}
		where = append(where, "LOWER(topic) IN ("+strings.Join(ph, ",")+")")
	}
	if len(allowedTypes) > 0 {
		ph := make([]string, 0, len(allowedTypes))
		for _, t := range allowedTypes {
			ph = append(ph, arg(string(t)))
		}
		where = append(where, "item_type IN ("+strings.Join(ph, ",")+")")
	}

	q := `SELECT id,item_type,band,discrimination,difficulty,guessing,subject,topic,prompt,choices_json,answer_key_json FROM cat_items`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id"

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var (
			it                 Item
			typ, band          string
			choices, answerKey string
		)
		if err := rows.Scan(&it.ID, &typ, &band,
			&it.Params.Discrimination, &it.Params.Difficulty, &it.Params.Guessing,
			&it.Subject, &it.Topic, &it.Prompt, &choices, &answerKey); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Type, it.Band = ItemType(typ), Band(band)
		if err := unmarshalList(choices, &it.Choices); err != nil {
			return nil, fmt.Errorf("item %s choices: %w", it.ID, err)
		}
		if err := unmarshalList(answerKey, &it.AnswerKey); err != nil {
			return nil, fmt.Errorf("item %s answer key: %w", it.ID, err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Upsert writes items in one transaction, replacing rows with the same id.
func (p *SQLProvider) Upsert(ctx context.Context, items []Item) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, it := range items {
		cj, _ := json.Marshal(it.Choices)
		kj, _ := json.Marshal(it.AnswerKey)
		_, err := tx.ExecContext(ctx, `INSERT INTO cat_items
			(id,item_type,band,discrimination,difficulty,guessing,subject,topic,prompt,choices_json,answer_key_json,updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (id) DO UPDATE SET
			  item_type=EXCLUDED.item_type, band=EXCLUDED.band,
			  discrimination=EXCLUDED.discrimination, difficulty=EXCLUDED.difficulty, guessing=EXCLUDED.guessing,
			  subject=EXCLUDED.subject, topic=EXCLUDED.topic, prompt=EXCLUDED.prompt,
			  choices_json=EXCLUDED.choices_json, answer_key_json=EXCLUDED.answer_key_json,
			  updated_at=EXCLUDED.updated_at`,
			it.ID, string(it.Type), string(it.Band),
			it.Params.Discrimination, it.Params.Difficulty, it.Params.Guessing,
			it.Subject, it.Topic, it.Prompt, string(cj), string(kj), now)
		if err != nil {
			return fmt.Errorf("upsert item %s: %w", it.ID, err)
		}
	}
	return tx.Commit()
}

func unmarshalList(s string, dst *[]string) error {
	if s == "" || s == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s), dst)
}
