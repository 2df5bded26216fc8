package scoring

import (
	"sort"

	"github.com/seedling/pitch-platform/internal/schemas"
)

// UnrankedPlace marks leaderboard entries without a final score yet.
const UnrankedPlace = 999

// Candidate is a submission considered for the leaderboard.
type Candidate struct {
	SubmissionID int64
	Title        string
	UserID       int64
	Username     string
	FinalScore   *float64
	NumAssigned  int
	NumCompleted int
}

// JudgingComplete reports whether every assigned judge has scored.
func (c Candidate) JudgingComplete() bool {
	return c.NumAssigned > 0 && c.NumCompleted == c.NumAssigned
}

// Rank orders candidates into leaderboard entries: fully judged first by
// final score descending, then incomplete by submission id. Tied scores
// share a rank; unscored submissions get UnrankedPlace.
func Rank(candidates []Candidate) []schemas.LeaderboardEntry {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.JudgingComplete() != b.JudgingComplete() {
			return a.JudgingComplete()
		}
		as, bs := 0.0, 0.0
		if a.FinalScore != nil {
			as = *a.FinalScore
		}
		if b.FinalScore != nil {
			bs = *b.FinalScore
		}
		if as != bs {
			return as > bs
		}
		return a.SubmissionID < b.SubmissionID
	})

	entries := make([]schemas.LeaderboardEntry, 0, len(sorted))
	currentRank := 1
	var prevScore *float64
	for idx, c := range sorted {
		entry := schemas.LeaderboardEntry{
			Rank:               UnrankedPlace,
			SubmissionID:       c.SubmissionID,
			Title:              c.Title,
			UserID:             c.UserID,
			Username:           c.Username,
			FinalScore:         c.FinalScore,
			NumJudgesAssigned:  c.NumAssigned,
			NumJudgesCompleted: c.NumCompleted,
			JudgingComplete:    c.JudgingComplete(),
		}
		if c.FinalScore != nil {
			if prevScore != nil && *c.FinalScore == *prevScore {
				entry.HasTie = true
				if len(entries) > 0 {
					entries[len(entries)-1].HasTie = true
				}
			} else if idx > 0 && prevScore != nil {
				currentRank = idx + 1
			}
			entry.Rank = currentRank
			prevScore = c.FinalScore
		}
		entries = append(entries, entry)
	}
	return entries
}
