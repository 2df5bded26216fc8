package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRubric(t *testing.T) {
	t.Run("flat criteria", func(t *testing.T) {
		r := ParseRubric(map[string]any{
			"impact":  map[string]any{"weight": 0.6, "description": "Market impact"},
			"clarity": map[string]any{"weight": 0.4},
		})
		require.Len(t, r, 2)
		assert.Equal(t, 0.6, r.Weight("impact"))
		assert.Equal(t, "Market impact", r["impact"].Description)
	})

	t.Run("nested under criteria key", func(t *testing.T) {
		r := ParseRubric(map[string]any{
			"criteria": map[string]any{
				"innovation": map[string]any{"weight": 2.0},
			},
		})
		require.Len(t, r, 1)
		assert.Equal(t, 2.0, r.Weight("innovation"))
	})

	t.Run("missing weight defaults to 1", func(t *testing.T) {
		r := ParseRubric(map[string]any{
			"team": map[string]any{"description": "Team strength"},
		})
		assert.Equal(t, 1.0, r.Weight("team"))
	})

	t.Run("unknown criterion weighs 1", func(t *testing.T) {
		r := ParseRubric(map[string]any{"a": map[string]any{"weight": 3.0}})
		assert.Equal(t, 1.0, r.Weight("missing"))
	})

	t.Run("nil rubric", func(t *testing.T) {
		assert.Nil(t, ParseRubric(nil))
	})
}

func TestWeightedAverage(t *testing.T) {
	t.Run("normalizes by total weight", func(t *testing.T) {
		rubric := ParseRubric(map[string]any{
			"impact":  map[string]any{"weight": 0.6},
			"clarity": map[string]any{"weight": 0.4},
		})
		got := WeightedAverage(rubric, map[string]float64{"impact": 8, "clarity": 6})
		assert.InDelta(t, 7.2, got, 1e-9)
	})

	t.Run("default weights give plain mean", func(t *testing.T) {
		got := WeightedAverage(nil, map[string]float64{"a": 10, "b": 0, "c": 5})
		assert.InDelta(t, 5.0, got, 1e-9)
	})

	t.Run("weights not summing to one still normalize", func(t *testing.T) {
		rubric := ParseRubric(map[string]any{
			"a": map[string]any{"weight": 2.0},
			"b": map[string]any{"weight": 3.0},
		})
		// (4*2 + 9*3) / 5 = 7
		got := WeightedAverage(rubric, map[string]float64{"a": 4, "b": 9})
		assert.InDelta(t, 7.0, got, 1e-9)
	})

	t.Run("zero total weight yields zero", func(t *testing.T) {
		rubric := ParseRubric(map[string]any{
			"a": map[string]any{"weight": 0.0},
		})
		assert.Zero(t, WeightedAverage(rubric, map[string]float64{"a": 9}))
	})

	t.Run("empty scores yield zero", func(t *testing.T) {
		assert.Zero(t, WeightedAverage(nil, nil))
	})
}

func TestInRange(t *testing.T) {
	assert.True(t, InRange(0))
	assert.True(t, InRange(10))
	assert.True(t, InRange(7.5))
	assert.False(t, InRange(-0.5))
	assert.False(t, InRange(10.5))
	assert.False(t, InRange(nan()))
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestAddJudgeScore(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rubric := ParseRubric(map[string]any{
		"impact":  map[string]any{"weight": 0.6},
		"clarity": map[string]any{"weight": 0.4},
	})

	t.Run("first score initializes the set", func(t *testing.T) {
		hs := AddJudgeScore(nil, rubric, 7, "alice", map[string]float64{"impact": 8, "clarity": 6}, "solid", now)
		require.Len(t, hs.Judges, 1)
		assert.InDelta(t, 7.2, hs.Judges[0].Overall, 1e-9)
		assert.InDelta(t, 7.2, hs.Average, 1e-9)
	})

	t.Run("second judge shifts the average", func(t *testing.T) {
		hs := AddJudgeScore(nil, rubric, 7, "alice", map[string]float64{"impact": 8, "clarity": 6}, "solid", now)
		hs = AddJudgeScore(hs, rubric, 9, "bob", map[string]float64{"impact": 4, "clarity": 4}, "weak", now)
		require.Len(t, hs.Judges, 2)
		assert.InDelta(t, (7.2+4.0)/2, hs.Average, 1e-9)
	})

	t.Run("rescoring replaces the judge entry", func(t *testing.T) {
		hs := AddJudgeScore(nil, rubric, 7, "alice", map[string]float64{"impact": 2, "clarity": 2}, "first pass", now)
		hs = AddJudgeScore(hs, rubric, 7, "alice", map[string]float64{"impact": 8, "clarity": 6}, "revised", now.Add(time.Hour))
		require.Len(t, hs.Judges, 1)
		assert.Equal(t, "revised", hs.Judges[0].Feedback)
		assert.InDelta(t, 7.2, hs.Average, 1e-9)
	})
}

func TestJudgeEntry(t *testing.T) {
	now := time.Now().UTC()
	hs := AddJudgeScore(nil, nil, 1, "alice", map[string]float64{"a": 5}, "ok", now)
	hs = AddJudgeScore(hs, nil, 2, "bob", map[string]float64{"a": 9}, "great", now)

	entry := JudgeEntry(hs, 2)
	require.NotNil(t, entry)
	assert.Equal(t, "bob", entry.JudgeName)
	assert.InDelta(t, 9.0, entry.Overall, 1e-9)

	assert.Nil(t, JudgeEntry(hs, 3))
	assert.Nil(t, JudgeEntry(nil, 1))
}

func TestUpsertFeedback(t *testing.T) {
	now := time.Now().UTC()
	list := UpsertFeedback(nil, 1, "alice", "good", now)
	list = UpsertFeedback(list, 2, "bob", "fine", now)
	list = UpsertFeedback(list, 1, "alice", "better", now.Add(time.Minute))

	require.Len(t, list, 2)
	assert.Equal(t, "better", list[0].Feedback)
}

func TestFinalScore(t *testing.T) {
	// Human weight is 1.0, AI weight 0.0: the human average carries through.
	assert.Equal(t, 7.21, FinalScore(9.9, 7.214))
	assert.Equal(t, 0.0, FinalScore(5.0, 0))
}

func f(v float64) *float64 { return &v }

func TestRank(t *testing.T) {
	entries := Rank([]Candidate{
		{SubmissionID: 1, Username: "a", FinalScore: f(7.2), NumAssigned: 2, NumCompleted: 2},
		{SubmissionID: 2, Username: "b", FinalScore: f(9.1), NumAssigned: 2, NumCompleted: 2},
		{SubmissionID: 3, Username: "c", FinalScore: nil, NumAssigned: 2, NumCompleted: 1},
		{SubmissionID: 4, Username: "d", FinalScore: f(7.2), NumAssigned: 2, NumCompleted: 2},
	})
	require.Len(t, entries, 4)

	assert.Equal(t, int64(2), entries[0].SubmissionID)
	assert.Equal(t, 1, entries[0].Rank)

	// 1 and 4 tie at 7.2 and share rank 2.
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, 2, entries[2].Rank)
	assert.True(t, entries[1].HasTie)
	assert.True(t, entries[2].HasTie)

	// Incomplete judging sorts last and stays unranked.
	assert.Equal(t, int64(3), entries[3].SubmissionID)
	assert.Equal(t, UnrankedPlace, entries[3].Rank)
	assert.False(t, entries[3].JudgingComplete)
}
