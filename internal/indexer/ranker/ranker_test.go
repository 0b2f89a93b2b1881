package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeByMax(t *testing.T) {
	got := Rank(Normalize("task", map[string]int{"T-1": 1, "T-2": 4, "T-3": 2, "T-4": 0}), 0)
	require.Len(t, got, 3)
	assert.Equal(t, "T-2", got[0].Key)
	assert.Equal(t, 1.0, got[0].Score)
	assert.Equal(t, 0.5, got[1].Score)
	assert.Equal(t, 0.25, got[2].Score)
}

func TestNormalizeEmpty(t *testing.T) {
	assert.Nil(t, Normalize("task", nil))
	assert.Nil(t, Normalize("task", map[string]int{"T-1": 0}))
}

func TestMoreMatchesNeverScoreLower(t *testing.T) {
	got := Normalize("team", map[string]int{"a": 3, "b": 2, "c": 3, "d": 1})
	byKey := map[string]float64{}
	for _, s := range got {
		byKey[s.Key] = s.Score
	}
	assert.GreaterOrEqual(t, byKey["a"], byKey["b"])
	assert.GreaterOrEqual(t, byKey["b"], byKey["d"])
	assert.Equal(t, byKey["a"], byKey["c"])
}

func TestRankTieBreakIsDeterministic(t *testing.T) {
	in := []Scored{
		{RecordType: "team", Key: "b", Score: 1},
		{RecordType: "task", Key: "z", Score: 1},
		{RecordType: "task", Key: "a", Score: 1},
		{RecordType: "legislation", Key: "x", Score: 0.5},
	}
	got := Rank(in, 3)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"task/a", "task/z", "team/b"}, []string{
		got[0].RecordType + "/" + got[0].Key,
		got[1].RecordType + "/" + got[1].Key,
		got[2].RecordType + "/" + got[2].Key,
	})
}
