package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedling/pitch-platform/internal/auth"
	"github.com/seedling/pitch-platform/internal/client/api"
	"github.com/seedling/pitch-platform/internal/client/cache"
	"github.com/seedling/pitch-platform/internal/client/session"
	"github.com/seedling/pitch-platform/internal/schemas"
	"github.com/seedling/pitch-platform/internal/scoring"
)

func testRubric() scoring.Rubric {
	return scoring.Rubric{
		"innovation": {Weight: 0.6},
		"execution":  {Weight: 0.4},
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*api.Client, *cache.Cache) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := cache.New()
	sess := session.New(filepath.Join(t.TempDir(), "token"), c)
	tok, err := auth.CreateAccessToken("test-secret", 7, "judge", time.Hour)
	require.NoError(t, err)
	require.NoError(t, sess.Login(tok))
	return api.New(srv.URL, sess, nil), c
}

func TestSetScoreKeepsRawAndFlagsRange(t *testing.T) {
	f := New(nil, cache.New(), 1, 2, testRubric())

	f.SetScore("innovation", "15")
	assert.Equal(t, "15", f.Raw("innovation"))
	assert.Equal(t, 15.0, f.Score("innovation"))
	assert.Contains(t, f.Errors(), "innovation")

	f.SetScore("innovation", "8")
	assert.NotContains(t, f.Errors(), "innovation")
	assert.Equal(t, 8.0, f.Score("innovation"))
}

func TestSetScoreRejectsNonNumeric(t *testing.T) {
	f := New(nil, cache.New(), 1, 2, testRubric())
	f.SetScore("execution", "abc")
	assert.Equal(t, "abc", f.Raw("execution"))
	assert.Contains(t, f.Errors(), "execution")

	f.SetScore("execution", "NaN")
	assert.Contains(t, f.Errors(), "execution")
}

func TestWeightedAverageIsPure(t *testing.T) {
	f := New(nil, cache.New(), 1, 2, testRubric())
	f.SetScore("innovation", "8")
	f.SetScore("execution", "6")

	// 8*0.6 + 6*0.4 = 7.2
	assert.InDelta(t, 7.2, f.WeightedAverage(), 1e-9)
	assert.InDelta(t, 7.2, f.WeightedAverage(), 1e-9)
	assert.Equal(t, 8.0, f.Score("innovation"))
}

func TestWeightedAverageCountsUnscoredAsZero(t *testing.T) {
	f := New(nil, cache.New(), 1, 2, testRubric())
	f.SetScore("innovation", "10")
	// execution unscored -> 0; (10*0.6 + 0*0.4) / 1.0 = 6
	assert.InDelta(t, 6.0, f.WeightedAverage(), 1e-9)
}

func TestValidateAggregatesAllViolations(t *testing.T) {
	f := New(nil, cache.New(), 1, 2, testRubric())
	f.SetScore("innovation", "12")
	f.SetFeedback("   ")

	errs := f.Validate()
	assert.Contains(t, errs, "innovation")
	assert.Contains(t, errs, "execution")
	assert.Contains(t, errs, "feedback")
	assert.Len(t, errs, 3)
}

func TestSubmitRefusesWhileInvalid(t *testing.T) {
	var posts atomic.Int32
	apiClient, c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
	}))
	f := New(apiClient, c, 1, 2, testRubric())
	f.SetScore("innovation", "11")

	err := f.Submit(context.Background())
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, int32(0), posts.Load())
	assert.False(t, f.Locked())
}

func TestSubmitPostsOnceInvalidatesAndLocks(t *testing.T) {
	var posts, fetches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /judging/submissions/2/score", func(w http.ResponseWriter, r *http.Request) {
		var body schemas.JudgeScoreSubmit
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 8.0, body.CriteriaScores["innovation"])
		assert.Equal(t, "solid pitch", body.Feedback)
		posts.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	apiClient, c := newTestClient(t, mux)

	for _, key := range []string{
		cache.KeyAssignments,
		cache.KeyCompetitionSubmissions(1),
		cache.KeySubmission(2),
	} {
		c.Register(key, func(ctx context.Context) (any, error) {
			fetches.Add(1)
			return "fresh", nil
		})
	}

	f := New(apiClient, c, 1, 2, testRubric())
	f.SetScore("innovation", "8")
	f.SetScore("execution", "6")
	f.SetFeedback("solid pitch")

	require.NoError(t, f.Submit(context.Background()))
	assert.Equal(t, int32(1), posts.Load())
	assert.Equal(t, int32(3), fetches.Load())
	assert.True(t, f.Locked())

	// Locked forms never resubmit.
	assert.ErrorIs(t, f.Submit(context.Background()), ErrLocked)
	assert.Equal(t, int32(1), posts.Load())
}

func TestSubmitFailureKeepsInputAndSurfacesDetail(t *testing.T) {
	apiClient, c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Criteria mismatch. Unknown criteria: vibes"})
	}))
	f := New(apiClient, c, 1, 2, testRubric())
	f.SetScore("innovation", "8")
	f.SetScore("execution", "6")
	f.SetFeedback("ok")

	err := f.Submit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Criteria mismatch")
	assert.False(t, f.Locked())
	assert.Equal(t, "8", f.Raw("innovation"))

	// Failed submit leaves the form usable.
	assert.NotErrorIs(t, f.Submit(context.Background()), ErrLocked)
}

func TestHydrateLocksAndPrefills(t *testing.T) {
	f := New(nil, cache.New(), 1, 2, testRubric())
	f.Hydrate(&schemas.JudgeScoreEntry{
		JudgeID:        7,
		CriteriaScores: map[string]float64{"innovation": 9, "execution": 7},
		Feedback:       "nice",
	})

	assert.True(t, f.Locked())
	assert.Equal(t, 9.0, f.Score("innovation"))
	assert.Equal(t, "9", f.Raw("innovation"))
	assert.ErrorIs(t, f.Submit(context.Background()), ErrLocked)

	// Locked forms ignore edits.
	f.SetScore("innovation", "1")
	assert.Equal(t, 9.0, f.Score("innovation"))
}
