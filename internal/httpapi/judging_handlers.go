package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/seedling/pitch-platform/internal/db"
	"github.com/seedling/pitch-platform/internal/schemas"
	"github.com/seedling/pitch-platform/internal/scoring"
	"github.com/seedling/pitch-platform/internal/storage"
)

// judgeAssigned enforces the judge/submission assignment; admins bypass this.
func (s *Server) judgeAssigned(w http.ResponseWriter, r *http.Request, judgeID, submissionID int64) bool {
	var cnt int
	if err := s.DB.GetContext(r.Context(), &cnt,
		`select count(1) from judge_assignments where judge_id=$1 and submission_id=$2`,
		judgeID, submissionID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return false
	}
	if cnt == 0 {
		writeDetail(w, http.StatusForbidden, "You are not assigned to judge this submission")
		return false
	}
	return true
}

type assignmentRow struct {
	db.JudgeAssignment
	SubID        int64     `db:"sub_id"`
	SubTitle     string    `db:"sub_title"`
	SubUserID    int64     `db:"sub_user_id"`
	SubUsername  string    `db:"sub_username"`
	HumanScores  []byte    `db:"human_scores"`
	CompID       int64     `db:"comp_id"`
	CompTitle    string    `db:"comp_title"`
	CompDomain   string    `db:"comp_domain"`
	CompPrize    float64   `db:"comp_prize"`
	CompDeadline time.Time `db:"comp_deadline"`
	CompStatus   string    `db:"comp_status"`
}

// judgeAssignments lists the current judge's assignments grouped per
// competition, with scoring progress.
func (s *Server) judgeAssignments(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var rows []assignmentRow
	err := s.DB.SelectContext(r.Context(), &rows, `
		select ja.id, ja.judge_id, ja.submission_id, ja.assigned_by, ja.assigned_at, ja.completed_at,
		       sub.id as sub_id, sub.title as sub_title, sub.user_id as sub_user_id,
		       u.username as sub_username, sub.human_scores,
		       c.id as comp_id, c.title as comp_title, c.domain as comp_domain,
		       c.prize_pool as comp_prize, c.deadline as comp_deadline, c.status as comp_status
		from judge_assignments ja
		join submissions sub on sub.id = ja.submission_id
		join users u on u.id = sub.user_id
		join competitions c on c.id = sub.competition_id
		where ja.judge_id=$1
		order by c.id, sub.submitted_at nulls last, sub.id`, user.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	grouped := make(map[int64]*schemas.CompetitionAssignments)
	var order []int64
	for _, row := range rows {
		group, ok := grouped[row.CompID]
		if !ok {
			group = &schemas.CompetitionAssignments{}
			group.Competition.ID = row.CompID
			group.Competition.Title = row.CompTitle
			group.Competition.Domain = row.CompDomain
			group.Competition.PrizePool = row.CompPrize
			group.Competition.Deadline = row.CompDeadline
			group.Competition.Status = schemas.CompetitionStatus(row.CompStatus)
			grouped[row.CompID] = group
			order = append(order, row.CompID)
		}

		hasScored := row.CompletedAt.Valid
		var judgeScore *float64
		if len(row.HumanScores) > 0 {
			var hs schemas.HumanScores
			if json.Unmarshal(row.HumanScores, &hs) == nil {
				if entry := scoring.JudgeEntry(&hs, user.ID); entry != nil {
					v := entry.Overall
					judgeScore = &v
				}
			}
		}

		group.Submissions = append(group.Submissions, schemas.AssignmentSubmission{
			ID:         row.SubID,
			Title:      row.SubTitle,
			User:       schemas.UserInfo{ID: row.SubUserID, Username: row.SubUsername},
			HasScored:  hasScored,
			JudgeScore: judgeScore,
		})
		group.Total++
		if hasScored {
			group.Completed++
		}
	}

	out := make([]schemas.CompetitionAssignments, 0, len(order))
	for _, id := range order {
		out = append(out, *grouped[id])
	}
	writeJSON(w, http.StatusOK, out)
}

// withScores assembles the judging view of a submission for the requesting
// user: rubric snapshot, all parsed judge scores, and the current judge's
// own scored state.
func (s *Server) withScores(r *http.Request, sub *db.Submission, comp *db.Competition, founderUsername string, judgeID int64, completed *bool) schemas.SubmissionWithScores {
	out := schemas.SubmissionWithScores{SubmissionOut: submissionOut(sub)}
	out.FounderUsername = founderUsername
	_ = json.Unmarshal(comp.Rubric, &out.Rubric)

	if len(sub.HumanScores) > 0 {
		var hs schemas.HumanScores
		if json.Unmarshal(sub.HumanScores, &hs) == nil {
			out.HumanScores = &hs
		}
	}
	if len(sub.JudgeFeedback) > 0 {
		_ = json.Unmarshal(sub.JudgeFeedback, &out.JudgeFeedback)
	}

	if judgeID != 0 {
		scored := completed != nil && *completed
		out.IsScored = &scored
		if entry := scoring.JudgeEntry(out.HumanScores, judgeID); entry != nil {
			v := entry.Overall
			out.JudgeScore = &v
		}
	}

	if key := videoKeyOf(sub); key != "" {
		if url, _, err := s.S3.SignedGetURL(r.Context(), key, storage.SignedURLTTL); err == nil {
			out.VideoURL = url
		}
	}
	return out
}

// judgingSubmissions lists a competition's submissions for scoring. Judges
// see only what they are assigned; a complete competition shows everything
// ranked by final score.
func (s *Server) judgingSubmissions(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	comp, ok := s.getCompetitionByID(w, r)
	if !ok {
		return
	}
	showAll := schemas.CompetitionStatus(comp.Status) == schemas.CompetitionComplete

	statusFilter := ` and sub.status in ('submitted','under_review','winner')`
	if showAll {
		statusFilter = ``
	}
	orderBy := ` order by sub.submitted_at asc`
	if showAll {
		orderBy = ` order by sub.final_score desc nulls last`
	}

	type row struct {
		db.Submission
		Username    string       `db:"username"`
		CompletedAt sql.NullTime `db:"assignment_completed_at"`
	}
	var rows []row
	var err error
	if schemas.UserRole(user.Role) == schemas.RoleJudge {
		err = s.DB.SelectContext(r.Context(), &rows, `
			select sub.*, u.username, ja.completed_at as assignment_completed_at
			from submissions sub
			join judge_assignments ja on ja.submission_id = sub.id and ja.judge_id=$2
			join users u on u.id = sub.user_id
			where sub.competition_id=$1`+statusFilter+orderBy, comp.ID, user.ID)
	} else {
		err = s.DB.SelectContext(r.Context(), &rows, `
			select sub.*, u.username, null as assignment_completed_at
			from submissions sub
			join users u on u.id = sub.user_id
			where sub.competition_id=$1`+statusFilter+orderBy, comp.ID)
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]schemas.SubmissionWithScores, 0, len(rows))
	for i := range rows {
		var judgeID int64
		var completed *bool
		if schemas.UserRole(user.Role) == schemas.RoleJudge {
			judgeID = user.ID
			c := rows[i].CompletedAt.Valid
			completed = &c
		}
		out = append(out, s.withScores(r, &rows[i].Submission, comp, rows[i].Username, judgeID, completed))
	}
	writeJSON(w, http.StatusOK, out)
}

// submitJudgeScore records a judge's rubric scores for a submission.
// Criteria must match the competition rubric exactly and every score must
// be within bounds.
func (s *Server) submitJudgeScore(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	sub, ok := s.getSubmissionByID(w, r)
	if !ok {
		return
	}
	var req schemas.JudgeScoreSubmit
	if !decodeBody(w, r, &req) {
		return
	}

	isJudge := schemas.UserRole(user.Role) == schemas.RoleJudge
	if isJudge && !s.judgeAssigned(w, r, user.ID, sub.ID) {
		return
	}

	var comp db.Competition
	err := s.DB.GetContext(r.Context(), &comp, `select * from competitions where id=$1`, sub.CompetitionID)
	if errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, "Competition not found for this submission")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	var rawRubric map[string]any
	if json.Unmarshal(comp.Rubric, &rawRubric) != nil || len(rawRubric) == 0 {
		writeDetail(w, http.StatusBadRequest, "Competition rubric is invalid or missing")
		return
	}
	rubric := scoring.ParseRubric(rawRubric)

	if detail, ok := criteriaMismatch(rubric, req.CriteriaScores); !ok {
		writeDetail(w, http.StatusBadRequest, detail)
		return
	}
	for criterion, score := range req.CriteriaScores {
		if !scoring.InRange(score) {
			writeDetail(w, http.StatusBadRequest,
				"Score for '"+criterion+"' must be between 0 and 10")
			return
		}
	}
	if strings.TrimSpace(req.Feedback) == "" {
		writeDetail(w, http.StatusBadRequest, "Feedback is required")
		return
	}

	now := time.Now().UTC()
	var hs *schemas.HumanScores
	if len(sub.HumanScores) > 0 {
		hs = &schemas.HumanScores{}
		_ = json.Unmarshal(sub.HumanScores, hs)
	}
	hs = scoring.AddJudgeScore(hs, rubric, user.ID, user.Username, req.CriteriaScores, req.Feedback, now)

	var feedback []schemas.FeedbackEntry
	if len(sub.JudgeFeedback) > 0 {
		_ = json.Unmarshal(sub.JudgeFeedback, &feedback)
	}
	feedback = scoring.UpsertFeedback(feedback, user.ID, user.Username, req.Feedback, now)

	final := scoring.FinalScore(0, hs.Average)
	rawScores, _ := json.Marshal(hs)
	rawFeedback, _ := json.Marshal(feedback)
	if _, err := s.DB.ExecContext(r.Context(),
		`update submissions set human_scores=$1, judge_feedback=$2, final_score=$3, updated_at=now() where id=$4`,
		rawScores, rawFeedback, final, sub.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	sub.HumanScores = rawScores
	sub.JudgeFeedback = rawFeedback
	sub.FinalScore = sql.NullFloat64{Float64: final, Valid: true}

	var completed *bool
	var judgeID int64
	if isJudge {
		if _, err := s.DB.ExecContext(r.Context(),
			`update judge_assignments set completed_at=coalesce(completed_at, $1)
			 where judge_id=$2 and submission_id=$3`, now, user.ID, sub.ID); err != nil {
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
		judgeID = user.ID
		c := true
		completed = &c
	}

	var founder string
	_ = s.DB.GetContext(r.Context(), &founder, `select username from users where id=$1`, sub.UserID)
	writeJSON(w, http.StatusOK, s.withScores(r, sub, &comp, founder, judgeID, completed))
}

// judgingSubmissionDetail returns the full judging view of one submission.
func (s *Server) judgingSubmissionDetail(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	sub, ok := s.getSubmissionByID(w, r)
	if !ok {
		return
	}

	var completed *bool
	var judgeID int64
	if schemas.UserRole(user.Role) == schemas.RoleJudge {
		var assignment db.JudgeAssignment
		err := s.DB.GetContext(r.Context(), &assignment,
			`select * from judge_assignments where judge_id=$1 and submission_id=$2`, user.ID, sub.ID)
		if errors.Is(err, sql.ErrNoRows) {
			writeDetail(w, http.StatusForbidden, "You are not assigned to judge this submission")
			return
		}
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
		judgeID = user.ID
		c := assignment.CompletedAt.Valid
		completed = &c
	}

	var comp db.Competition
	if err := s.DB.GetContext(r.Context(), &comp,
		`select * from competitions where id=$1`, sub.CompetitionID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	var founder string
	_ = s.DB.GetContext(r.Context(), &founder, `select username from users where id=$1`, sub.UserID)

	writeJSON(w, http.StatusOK, s.withScores(r, sub, &comp, founder, judgeID, completed))
}

// criteriaMismatch checks that submitted criteria exactly match the rubric.
func criteriaMismatch(rubric scoring.Rubric, scores map[string]float64) (string, bool) {
	var missing, extra []string
	for name := range rubric {
		if _, ok := scores[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range scores {
		if _, ok := rubric[name]; !ok {
			extra = append(extra, name)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return "", true
	}
	sort.Strings(missing)
	sort.Strings(extra)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "Missing criteria: "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		parts = append(parts, "Unknown criteria: "+strings.Join(extra, ", "))
	}
	return "Criteria mismatch. " + strings.Join(parts, " ") +
		". Expected: " + strings.Join(rubric.Criteria(), ", "), false
}
