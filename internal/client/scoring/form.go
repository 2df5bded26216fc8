package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/seedling/pitch-platform/internal/client/api"
	"github.com/seedling/pitch-platform/internal/client/cache"
	"github.com/seedling/pitch-platform/internal/schemas"
	"github.com/seedling/pitch-platform/internal/scoring"
)

var (
	ErrLocked     = errors.New("scores already submitted for this submission")
	ErrInFlight   = errors.New("submission already in progress")
	ErrValidation = errors.New("form has validation errors")
)

// Form is the judge's scoring form for one submission. It holds raw input
// per criterion so out-of-range entries stay visible while flagged, computes
// the live weighted average, and submits at most once.
type Form struct {
	api   *api.Client
	cache *cache.Cache

	competitionID int64
	submissionID  int64
	rubric        scoring.Rubric

	mu       sync.Mutex
	scores   map[string]float64
	raw      map[string]string
	errs     map[string]string
	feedback string
	locked   bool
	inFlight bool
}

// New builds a blank form over the competition's rubric.
func New(apiClient *api.Client, c *cache.Cache, competitionID, submissionID int64, rubric scoring.Rubric) *Form {
	return &Form{
		api:           apiClient,
		cache:         c,
		competitionID: competitionID,
		submissionID:  submissionID,
		rubric:        rubric,
		scores:        make(map[string]float64, len(rubric)),
		raw:           make(map[string]string, len(rubric)),
		errs:          make(map[string]string),
	}
}

// Hydrate pre-fills the form from the judge's prior entry and locks it.
// A locked form renders read-only and never resubmits.
func (f *Form) Hydrate(entry *schemas.JudgeScoreEntry) {
	if entry == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for criterion, score := range entry.CriteriaScores {
		f.scores[criterion] = score
		f.raw[criterion] = strconv.FormatFloat(score, 'f', -1, 64)
	}
	f.feedback = entry.Feedback
	f.errs = make(map[string]string)
	f.locked = true
}

// SetScore records raw input for a criterion. A value that does not parse,
// is not finite, or falls outside [0, 10] is kept (the field reflects what
// was typed) with a per-criterion error; a good value clears the error.
func (f *Form) SetScore(criterion, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locked {
		return
	}
	f.raw[criterion] = raw

	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		delete(f.scores, criterion)
		f.errs[criterion] = "Enter a number between 0 and 10"
		return
	}
	f.scores[criterion] = v
	if !scoring.InRange(v) {
		f.errs[criterion] = fmt.Sprintf("Score must be between %g and %g", scoring.MinScore, scoring.MaxScore)
		return
	}
	delete(f.errs, criterion)
}

func (f *Form) SetFeedback(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locked {
		return
	}
	f.feedback = text
}

// Score returns the parsed value for a criterion; unscored criteria read
// as zero.
func (f *Form) Score(criterion string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scores[criterion]
}

// Raw returns what was last typed into a criterion's field.
func (f *Form) Raw(criterion string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.raw[criterion]
}

// WeightedAverage is the live overall preview. Pure over current state:
// calling it never mutates the form, and unscored criteria count as zero.
func (f *Form) WeightedAverage() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	full := make(map[string]float64, len(f.rubric))
	for criterion := range f.rubric {
		full[criterion] = f.scores[criterion]
	}
	return scoring.WeightedAverage(f.rubric, full)
}

// Validate collects every violation rather than stopping at the first:
// each criterion must hold a finite score in range, and feedback must be
// non-empty after trimming.
func (f *Form) Validate() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for criterion := range f.rubric {
		raw, typed := f.raw[criterion]
		if !typed || strings.TrimSpace(raw) == "" {
			out[criterion] = "Score is required"
			continue
		}
		v, ok := f.scores[criterion]
		if !ok {
			out[criterion] = "Enter a number between 0 and 10"
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || !scoring.InRange(v) {
			out[criterion] = fmt.Sprintf("Score must be between %g and %g", scoring.MinScore, scoring.MaxScore)
		}
	}
	if strings.TrimSpace(f.feedback) == "" {
		out["feedback"] = "Feedback is required"
	}
	return out
}

// Locked reports whether the form has been submitted (now or in a prior
// session).
func (f *Form) Locked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locked
}

// Errors returns the current per-field errors from typing.
func (f *Form) Errors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.errs))
	for k, v := range f.errs {
		out[k] = v
	}
	return out
}

// Submit posts the scores exactly once. It refuses while invalid, locked,
// or with a submit already in flight. On success the three affected cache
// keys are refetched and joined before the form locks; on failure input is
// left intact and the server's message is returned.
func (f *Form) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.locked {
		f.mu.Unlock()
		return ErrLocked
	}
	if f.inFlight {
		f.mu.Unlock()
		return ErrInFlight
	}
	f.inFlight = true
	payload := schemas.JudgeScoreSubmit{
		CriteriaScores: make(map[string]float64, len(f.scores)),
		Feedback:       f.feedback,
	}
	for k, v := range f.scores {
		payload.CriteriaScores[k] = v
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight = false
		f.mu.Unlock()
	}()

	if errs := f.Validate(); len(errs) > 0 {
		return fmt.Errorf("%w: %d field(s)", ErrValidation, len(errs))
	}

	path := fmt.Sprintf("/judging/submissions/%d/score", f.submissionID)
	if err := f.api.Post(ctx, path, payload, nil); err != nil {
		return err
	}

	if err := f.cache.Invalidate(ctx,
		cache.KeyAssignments,
		cache.KeyCompetitionSubmissions(f.competitionID),
		cache.KeySubmission(f.submissionID),
	); err != nil {
		return err
	}

	f.mu.Lock()
	f.locked = true
	f.mu.Unlock()
	return nil
}
