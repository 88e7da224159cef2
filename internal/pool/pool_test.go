package pool_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-cat/internal/db"
	"github.com/mind-engage/mindengage-cat/internal/irt"
	"github.com/mind-engage/mindengage-cat/internal/pool"
)

const sampleYAML = `
subject: algebra
items:
  - id: alg-002
    type: mcq_single
    band: medium
    topic: linear
    irt: {discrimination: 1.2, difficulty: 0.1}
    choices: ["a", "b", "c", "d"]
    answer_key: ["c"]
  - id: alg-001
    type: open-response
    band: Easy
    topic: quadratics
    irt: {discrimination: 0.9, difficulty: -1.1}
    answer_key: ["4", "tol=0.01"]
  - id: geo-001
    subject: geometry
    type: other
    band: hard
    irt: {discrimination: 1.0, difficulty: 1.5, guessing: 0.2}
`

func TestParse(t *testing.T) {
	items, err := pool.Parse(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, pool.SingleResponse, items[0].Type)
	assert.Equal(t, pool.Medium, items[0].Band)
	assert.Equal(t, "algebra", items[0].Subject)
	assert.Equal(t, []string{"c"}, items[0].AnswerKey)

	assert.Equal(t, pool.OpenResponse, items[1].Type)
	assert.Equal(t, pool.Easy, items[1].Band)
	assert.Equal(t, -1.1, items[1].Params.Difficulty)

	assert.Equal(t, "geometry", items[2].Subject)
	assert.Equal(t, 0.2, items[2].Params.Guessing)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing id", "items:\n  - type: other\n    band: easy\n"},
		{"duplicate id", "items:\n  - {id: a, type: other, band: easy}\n  - {id: a, type: other, band: easy}\n"},
		{"bad type", "items:\n  - {id: a, type: essay, band: easy}\n"},
		{"bad band", "items:\n  - {id: a, type: other, band: extreme}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pool.Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
		})
	}
}

func TestItemValidate(t *testing.T) {
	base := pool.Item{ID: "x", Type: pool.Other, Band: pool.Easy, Params: irt.Params{Discrimination: 1}}
	require.NoError(t, base.Validate(irt.Model2PL))

	zeroA := base
	zeroA.Params.Discrimination = 0
	assert.Error(t, zeroA.Validate(irt.Model2PL))
	assert.Error(t, zeroA.Validate(irt.ModelRasch))

	negA := base
	negA.Params.Discrimination = -0.5
	assert.Error(t, negA.Validate(irt.ModelRasch))

	badC := base
	badC.Params.Guessing = 1
	assert.Error(t, badC.Validate(irt.Model3PL))
	assert.NoError(t, badC.Validate(irt.Model2PL), "2pl ignores guessing")

	noID := base
	noID.ID = " "
	assert.Error(t, noID.Validate(irt.ModelRasch))
}

func TestStaticAndFilter(t *testing.T) {
	items, err := pool.Parse(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	p := pool.NewStatic(items)
	ctx := context.Background()

	got, err := p.FetchCandidates(ctx, pool.Scope{Subject: "ALGEBRA"}, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = p.FetchCandidates(ctx, pool.Scope{Subject: "algebra", Topics: []string{"linear"}}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alg-002", got[0].ID)

	got, err = p.FetchCandidates(ctx, pool.Scope{}, []pool.ItemType{pool.Other, pool.OpenResponse})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	hard := pool.Filter(items, nil, []pool.Band{pool.Hard})
	require.Len(t, hard, 1)
	assert.Equal(t, "geo-001", hard[0].ID)

	pool.SortByID(items)
	assert.Equal(t, "alg-001", items[0].ID)
}

func TestPublicHidesKey(t *testing.T) {
	it := pool.Item{ID: "q", Type: pool.SingleResponse, Band: pool.Easy, Prompt: "2+2?", Choices: []string{"3", "4"}, AnswerKey: []string{"4"}}
	pub := it.Public()
	assert.Equal(t, pool.PublicItem{ID: "q", Type: pool.SingleResponse, Band: pool.Easy, Prompt: "2+2?", Choices: []string{"3", "4"}}, pub)
}

func TestSQLProvider_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "items.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })

	items, err := pool.Parse(strings.NewReader(sampleYAML))
	require.NoError(t, err)

	p := pool.NewSQLProvider(dbh)
	require.NoError(t, p.Upsert(ctx, items))

	// Upserting again replaces rather than duplicates.
	items[0].Params.Difficulty = 0.3
	require.NoError(t, p.Upsert(ctx, items[:1]))

	got, err := p.FetchCandidates(ctx, pool.Scope{}, nil)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "alg-001", got[0].ID, "ordered by id")
	assert.Equal(t, 0.3, got[1].Params.Difficulty)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got[1].Choices)
	assert.Equal(t, []string{"4", "tol=0.01"}, got[0].AnswerKey)

	got, err = p.FetchCandidates(ctx, pool.Scope{Subject: "Algebra", Topics: []string{"LINEAR"}}, []pool.ItemType{pool.SingleResponse})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alg-002", got[0].ID)

	got, err = p.FetchCandidates(ctx, pool.Scope{Subject: "geometry"}, []pool.ItemType{pool.SingleResponse})
	require.NoError(t, err)
	assert.Empty(t, got)
}
