package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/seedling/pitch-platform/internal/schemas"
)

// Score weighting between AI pre-screening and human judges. AI scoring is
// currently disabled, so the final score is the human average.
const (
	AIScoreWeight    = 0.0
	HumanScoreWeight = 1.0
)

const (
	MinScore = 0.0
	MaxScore = 10.0
)

// Criterion is one rubric entry.
type Criterion struct {
	Weight      float64
	Description string
}

// Rubric maps criterion name to its weight and description.
type Rubric map[string]Criterion

// ParseRubric normalizes the stored rubric JSON. Criteria may live at the
// root or nested under a "criteria" key; a missing weight defaults to 1.0.
func ParseRubric(raw map[string]any) Rubric {
	if raw == nil {
		return nil
	}
	criteria := raw
	if nested, ok := raw["criteria"].(map[string]any); ok {
		criteria = nested
	}
	out := make(Rubric, len(criteria))
	for name, v := range criteria {
		c := Criterion{Weight: 1.0}
		if details, ok := v.(map[string]any); ok {
			if w, ok := details["weight"].(float64); ok {
				c.Weight = w
			}
			if d, ok := details["description"].(string); ok {
				c.Description = d
			}
		}
		out[name] = c
	}
	return out
}

// Criteria returns the criterion names in sorted order.
func (r Rubric) Criteria() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Weight returns the weight for a criterion, defaulting to 1.0 when the
// rubric does not name it.
func (r Rubric) Weight(criterion string) float64 {
	if c, ok := r[criterion]; ok {
		return c.Weight
	}
	return 1.0
}

// WeightedAverage computes sum(score*weight)/sum(weight) over the given
// scores. Weights come from the rubric, defaulting to 1.0 per criterion.
// A nil rubric means every criterion weighs 1.0. Zero total weight yields 0.
func WeightedAverage(rubric Rubric, scores map[string]float64) float64 {
	var totalWeighted, totalWeight float64
	for criterion, score := range scores {
		w := 1.0
		if rubric != nil {
			w = rubric.Weight(criterion)
		}
		totalWeighted += score * w
		totalWeight += w
	}
	if totalWeight <= 0 {
		return 0
	}
	return totalWeighted / totalWeight
}

// InRange reports whether a score is a finite number within [MinScore, MaxScore].
func InRange(score float64) bool {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return false
	}
	return score >= MinScore && score <= MaxScore
}

// AddJudgeScore inserts or replaces a judge's entry in the stored scores,
// recomputes that judge's rubric-weighted overall and the cross-judge
// average. hs may be nil for a first score.
func AddJudgeScore(hs *schemas.HumanScores, rubric Rubric, judgeID int64, judgeName string, criteriaScores map[string]float64, feedback string, now time.Time) *schemas.HumanScores {
	if hs == nil {
		hs = &schemas.HumanScores{Judges: []schemas.JudgeScoreEntry{}}
	}
	entry := schemas.JudgeScoreEntry{
		JudgeID:        judgeID,
		JudgeName:      judgeName,
		CriteriaScores: criteriaScores,
		Overall:        WeightedAverage(rubric, criteriaScores),
		Feedback:       feedback,
		SubmittedAt:    now,
	}

	replaced := false
	for i, j := range hs.Judges {
		if j.JudgeID == judgeID {
			hs.Judges[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		hs.Judges = append(hs.Judges, entry)
	}

	var total float64
	for _, j := range hs.Judges {
		total += j.Overall
	}
	if len(hs.Judges) > 0 {
		hs.Average = total / float64(len(hs.Judges))
	} else {
		hs.Average = 0
	}
	return hs
}

// UpsertFeedback mirrors AddJudgeScore for the structured feedback list.
func UpsertFeedback(list []schemas.FeedbackEntry, judgeID int64, judgeName, feedback string, now time.Time) []schemas.FeedbackEntry {
	entry := schemas.FeedbackEntry{
		JudgeID:     judgeID,
		JudgeName:   judgeName,
		Feedback:    feedback,
		SubmittedAt: now,
	}
	for i, f := range list {
		if f.JudgeID == judgeID {
			list[i] = entry
			return list
		}
	}
	return append(list, entry)
}

// FinalScore combines AI and human averages with the configured weights,
// rounded to two decimal places.
func FinalScore(aiAvg, humanAvg float64) float64 {
	final := AIScoreWeight*aiAvg + HumanScoreWeight*humanAvg
	return math.Round(final*100) / 100
}

// JudgeEntry returns the given judge's stored entry, if any.
func JudgeEntry(hs *schemas.HumanScores, judgeID int64) *schemas.JudgeScoreEntry {
	if hs == nil {
		return nil
	}
	for i := range hs.Judges {
		if hs.Judges[i].JudgeID == judgeID {
			return &hs.Judges[i]
		}
	}
	return nil
}
