package selection

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-cat/internal/irt"
	"github.com/mind-engage/mindengage-cat/internal/pool"
)

func item(id string, a, b float64) pool.Item {
	return pool.Item{ID: id, Type: pool.SingleResponse, Band: pool.Medium, Params: irt.Params{Discrimination: a, Difficulty: b}}
}

func spacedPool() []pool.Item {
	var items []pool.Item
	for i := 0; i < 10; i++ {
		items = append(items, item(fmt.Sprintf("q%02d", i+1), 1, -2+float64(i)*4/9))
	}
	return items
}

func TestSelectNext_MaxInformationPicksClosestForEqualDiscrimination(t *testing.T) {
	s := New(MaxInformation, irt.Model2PL)
	got, ok := s.SelectNext(0.7, spacedPool(), nil)
	require.True(t, ok)
	assert.Equal(t, "q07", got.ID)
}

func TestSelectNext_PrefersDiscrimination(t *testing.T) {
	s := New(MaxInformation, irt.Model2PL)
	items := []pool.Item{item("a", 0.5, 0), item("b", 2.0, 0.3)}
	got, ok := s.SelectNext(0, items, nil)
	require.True(t, ok)
	assert.Equal(t, "b", got.ID)
}

func TestSelectNext_TieBreaksOnLowestID(t *testing.T) {
	s := New(MaxInformation, irt.Model2PL)
	items := []pool.Item{item("z", 1, 1), item("m", 1, -1), item("y", 1, 1)}
	got, ok := s.SelectNext(0, items, nil)
	require.True(t, ok)
	assert.Equal(t, "m", got.ID)

	n := New(NearestDifficulty, irt.Model2PL)
	got, ok = n.SelectNext(0, items, nil)
	require.True(t, ok)
	assert.Equal(t, "m", got.ID)
}

func TestSelectNext_ExcludesAsked(t *testing.T) {
	s := New(MaxInformation, irt.Model2PL)
	items := spacedPool()
	got, ok := s.SelectNext(0.7, items, []string{"q07", "q06"})
	require.True(t, ok)
	assert.Equal(t, "q08", got.ID)
}

func TestSelectNext_ExhaustedPool(t *testing.T) {
	s := New(MaxInformation, irt.Model2PL)
	_, ok := s.SelectNext(0, nil, nil)
	assert.False(t, ok)

	items := []pool.Item{item("a", 1, 0)}
	_, ok = s.SelectNext(0, items, []string{"a"})
	assert.False(t, ok)
}

func TestSelectNext_NearestDifficulty(t *testing.T) {
	s := New(NearestDifficulty, irt.Model2PL)
	// Nearest difficulty ignores discrimination.
	items := []pool.Item{item("a", 3, 1.0), item("b", 0.2, 0.45)}
	got, ok := s.SelectNext(0.5, items, nil)
	require.True(t, ok)
	assert.Equal(t, "b", got.ID)
}

func TestSelectNext_FallsBackWhenDiscriminationMissing(t *testing.T) {
	s := New(MaxInformation, irt.Model2PL)
	items := []pool.Item{item("a", 0, -1), item("b", 0, 1.2), item("c", 0, 0.1)}
	got, ok := s.SelectNext(1, items, nil)
	require.True(t, ok)
	assert.Equal(t, "b", got.ID)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("MAX-INFORMATION")
	require.NoError(t, err)
	assert.Equal(t, MaxInformation, m)

	m, err = ParseMethod("nearest_difficulty")
	require.NoError(t, err)
	assert.Equal(t, NearestDifficulty, m)

	_, err = ParseMethod("random")
	assert.Error(t, err)
}
