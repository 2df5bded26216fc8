package httpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seedling/pitch-platform/internal/scoring"
)

func TestCriteriaMismatch(t *testing.T) {
	rubric := scoring.Rubric{
		"innovation": {Weight: 0.6},
		"execution":  {Weight: 0.4},
	}

	_, ok := criteriaMismatch(rubric, map[string]float64{"innovation": 8, "execution": 6})
	assert.True(t, ok)

	detail, ok := criteriaMismatch(rubric, map[string]float64{"innovation": 8})
	assert.False(t, ok)
	assert.Contains(t, detail, "Missing criteria: execution")
	assert.Contains(t, detail, "Expected: execution, innovation")

	detail, ok = criteriaMismatch(rubric, map[string]float64{"innovation": 8, "execution": 6, "vibes": 10})
	assert.False(t, ok)
	assert.Contains(t, detail, "Unknown criteria: vibes")

	detail, ok = criteriaMismatch(rubric, map[string]float64{"vibes": 10})
	assert.False(t, ok)
	assert.Contains(t, detail, "Missing criteria: execution, innovation")
	assert.Contains(t, detail, "Unknown criteria: vibes")
}
