package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/seedling/pitch-platform/internal/db"
	"github.com/seedling/pitch-platform/internal/schemas"
	"github.com/seedling/pitch-platform/internal/scoring"
	"github.com/seedling/pitch-platform/internal/worker"
)

func assignmentOut(a *db.JudgeAssignment) schemas.JudgeAssignmentOut {
	out := schemas.JudgeAssignmentOut{
		ID:           a.ID,
		JudgeID:      a.JudgeID,
		SubmissionID: a.SubmissionID,
		AssignedBy:   a.AssignedBy,
		AssignedAt:   a.AssignedAt,
	}
	if a.CompletedAt.Valid {
		t := a.CompletedAt.Time
		out.CompletedAt = &t
	}
	return out
}

// assignJudges assigns every listed judge to every scoreable submission in
// the competition. Existing pairs are left alone.
func (s *Server) assignJudges(w http.ResponseWriter, r *http.Request) {
	admin := currentUser(r)
	comp, ok := s.getCompetitionByID(w, r)
	if !ok {
		return
	}
	var req schemas.AssignJudgesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.JudgeIDs) == 0 {
		writeDetail(w, http.StatusBadRequest, "judge_ids must not be empty")
		return
	}

	query, args, err := sqlx.In(
		`select count(1) from users where id in (?) and role='judge' and is_active`, req.JudgeIDs)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	var judgeCount int
	if err := s.DB.GetContext(r.Context(), &judgeCount, s.DB.Rebind(query), args...); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if judgeCount != len(req.JudgeIDs) {
		writeDetail(w, http.StatusBadRequest, "One or more judge_ids are not active judges")
		return
	}

	var submissionIDs []int64
	if err := s.DB.SelectContext(r.Context(), &submissionIDs,
		`select id from submissions where competition_id=$1 and status in ('submitted','under_review')`,
		comp.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(submissionIDs) == 0 {
		writeDetail(w, http.StatusBadRequest, "No submissions to assign in this competition")
		return
	}

	var created []db.JudgeAssignment
	err = db.WithTx(r.Context(), s.DB, func(tx *sqlx.Tx) error {
		for _, judgeID := range req.JudgeIDs {
			for _, subID := range submissionIDs {
				var a db.JudgeAssignment
				err := tx.GetContext(r.Context(), &a,
					`insert into judge_assignments(judge_id, submission_id, assigned_by)
					 values($1,$2,$3)
					 on conflict on constraint uq_judge_submission do nothing
					 returning *`, judgeID, subID, admin.ID)
				if errors.Is(err, sql.ErrNoRows) {
					continue
				}
				if err != nil {
					return err
				}
				created = append(created, a)
			}
		}
		return nil
	})
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]schemas.JudgeAssignmentOut, len(created))
	for i := range created {
		out[i] = assignmentOut(&created[i])
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) listJudgeAssignments(w http.ResponseWriter, r *http.Request) {
	comp, ok := s.getCompetitionByID(w, r)
	if !ok {
		return
	}
	var assignments []db.JudgeAssignment
	if err := s.DB.SelectContext(r.Context(), &assignments, `
		select ja.* from judge_assignments ja
		join submissions sub on sub.id = ja.submission_id
		where sub.competition_id=$1
		order by ja.judge_id, ja.submission_id`, comp.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]schemas.JudgeAssignmentOut, len(assignments))
	for i := range assignments {
		out[i] = assignmentOut(&assignments[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// reassignJudge moves an assignment to a different judge, as long as the
// original judge has not scored yet.
func (s *Server) reassignJudge(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid assignment id")
		return
	}
	var req struct {
		JudgeID int64 `json:"judge_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	var assignment db.JudgeAssignment
	err := s.DB.GetContext(r.Context(), &assignment,
		`select * from judge_assignments where id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, "Assignment not found")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if assignment.CompletedAt.Valid {
		writeDetail(w, http.StatusBadRequest, "Cannot reassign a completed assignment")
		return
	}

	var role string
	err = s.DB.GetContext(r.Context(), &role,
		`select role from users where id=$1 and is_active`, req.JudgeID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && role != "judge") {
		writeDetail(w, http.StatusBadRequest, "New assignee must be an active judge")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	err = s.DB.GetContext(r.Context(), &assignment,
		`update judge_assignments set judge_id=$1 where id=$2 returning *`, req.JudgeID, id)
	if err != nil {
		if strings.Contains(err.Error(), "uq_judge_submission") {
			writeDetail(w, http.StatusBadRequest, "Judge is already assigned to this submission")
			return
		}
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, assignmentOut(&assignment))
}

type leaderboardRow struct {
	ID           int64           `db:"id"`
	Title        string          `db:"title"`
	UserID       int64           `db:"user_id"`
	Username     string          `db:"username"`
	FinalScore   sql.NullFloat64 `db:"final_score"`
	NumAssigned  int             `db:"num_assigned"`
	NumCompleted int             `db:"num_completed"`
}

func (s *Server) buildLeaderboard(r *http.Request, comp *db.Competition) (*schemas.CompetitionLeaderboard, error) {
	var rows []leaderboardRow
	err := s.DB.SelectContext(r.Context(), &rows, `
		select sub.id, sub.title, sub.user_id, u.username, sub.final_score,
		       count(ja.id) as num_assigned,
		       count(ja.completed_at) as num_completed
		from submissions sub
		join users u on u.id = sub.user_id
		left join judge_assignments ja on ja.submission_id = sub.id
		where sub.competition_id=$1 and sub.status in ('submitted','under_review','winner','not_selected')
		group by sub.id, sub.title, sub.user_id, u.username, sub.final_score
		order by sub.id`, comp.ID)
	if err != nil {
		return nil, err
	}

	candidates := make([]scoring.Candidate, 0, len(rows))
	for _, row := range rows {
		c := scoring.Candidate{
			SubmissionID: row.ID,
			Title:        row.Title,
			UserID:       row.UserID,
			Username:     row.Username,
			NumAssigned:  row.NumAssigned,
			NumCompleted: row.NumCompleted,
		}
		if row.FinalScore.Valid {
			v := row.FinalScore.Float64
			c.FinalScore = &v
		}
		candidates = append(candidates, c)
	}
	entries := scoring.Rank(candidates)

	var total int
	if err := s.DB.GetContext(r.Context(), &total,
		`select count(1) from submissions where competition_id=$1`, comp.ID); err != nil {
		return nil, err
	}
	fullyJudged := 0
	for _, c := range candidates {
		if c.JudgingComplete() {
			fullyJudged++
		}
	}

	board := &schemas.CompetitionLeaderboard{
		CompetitionID:       comp.ID,
		CompetitionTitle:    comp.Title,
		Status:              schemas.CompetitionStatus(comp.Status),
		PrizePool:           comp.PrizePool,
		Entries:             entries,
		TotalSubmissions:    total,
		EligibleSubmissions: len(candidates),
		FullyJudgedCount:    fullyJudged,
	}
	_ = json.Unmarshal(comp.PrizeStructure, &board.PrizeStructure)
	return board, nil
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	comp, ok := s.getCompetitionByID(w, r)
	if !ok {
		return
	}
	board, err := s.buildLeaderboard(r, comp)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// selectWinners finalizes a competition: winners get their placement, the
// rest become not_selected, and the competition flips to complete.
func (s *Server) selectWinners(w http.ResponseWriter, r *http.Request) {
	comp, ok := s.getCompetitionByID(w, r)
	if !ok {
		return
	}
	if schemas.CompetitionStatus(comp.Status) != schemas.CompetitionJudging {
		writeDetail(w, http.StatusBadRequest, "Winners can only be selected while the competition is in judging")
		return
	}
	var req schemas.SelectWinnersRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var prizes map[string]float64
	if err := json.Unmarshal(comp.PrizeStructure, &prizes); err != nil || len(prizes) == 0 {
		writeDetail(w, http.StatusBadRequest, "Competition prize structure is invalid or missing")
		return
	}

	// Every place filled exactly once, no place outside the prize structure.
	seen := make(map[string]bool, len(req.Winners))
	subSeen := make(map[int64]bool, len(req.Winners))
	for _, sel := range req.Winners {
		if _, ok := prizes[sel.Place]; !ok {
			writeDetail(w, http.StatusBadRequest, "Unknown place '"+sel.Place+"' not in prize structure")
			return
		}
		if seen[sel.Place] {
			writeDetail(w, http.StatusBadRequest, "Duplicate place '"+sel.Place+"'")
			return
		}
		if subSeen[sel.SubmissionID] {
			writeDetail(w, http.StatusBadRequest, "A submission cannot win more than one place")
			return
		}
		seen[sel.Place] = true
		subSeen[sel.SubmissionID] = true
	}
	if len(seen) != len(prizes) {
		writeDetail(w, http.StatusBadRequest, "All places in the prize structure must be assigned a winner")
		return
	}

	board, err := s.buildLeaderboard(r, comp)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if board.EligibleSubmissions == 0 {
		writeDetail(w, http.StatusBadRequest, "Competition has no eligible submissions")
		return
	}
	if board.FullyJudgedCount != board.EligibleSubmissions {
		writeDetail(w, http.StatusBadRequest, "All submissions must be fully judged before selecting winners")
		return
	}
	eligible := make(map[int64]bool, len(board.Entries))
	for _, e := range board.Entries {
		eligible[e.SubmissionID] = true
	}
	for _, sel := range req.Winners {
		if !eligible[sel.SubmissionID] {
			writeDetail(w, http.StatusBadRequest, "Selected submission is not eligible in this competition")
			return
		}
	}

	winners := make([]schemas.WinnerInfo, 0, len(req.Winners))
	err = db.WithTx(r.Context(), s.DB, func(tx *sqlx.Tx) error {
		for _, sel := range req.Winners {
			var username string
			if err := tx.GetContext(r.Context(), &username, `
				update submissions set status='winner', placement=$1, updated_at=now()
				where id=$2
				returning (select username from users where users.id = submissions.user_id)`,
				sel.Place, sel.SubmissionID); err != nil {
				return err
			}
			winners = append(winners, schemas.WinnerInfo{
				Place:        sel.Place,
				SubmissionID: sel.SubmissionID,
				Username:     username,
				PrizeAmount:  prizes[sel.Place],
			})
		}
		if _, err := tx.ExecContext(r.Context(), `
			update submissions set status='not_selected', updated_at=now()
			where competition_id=$1 and status in ('submitted','under_review')`, comp.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(r.Context(),
			`update competitions set status='complete', updated_at=now() where id=$1`, comp.ID)
		return err
	})
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	for _, win := range winners {
		var email string
		if err := s.DB.GetContext(r.Context(), &email, `
			select u.email from users u join submissions sub on sub.user_id = u.id
			where sub.id=$1`, win.SubmissionID); err != nil {
			continue
		}
		task := worker.NewWinnerEmailTask(worker.WinnerEmailPayload{
			Email:            email,
			Username:         win.Username,
			CompetitionTitle: comp.Title,
			Place:            win.Place,
			PrizeAmount:      win.PrizeAmount,
		})
		if _, err := s.Asynq.Enqueue(task, asynq.MaxRetry(3)); err != nil {
			s.Log.Warn("winner email enqueue failed", zap.Int64("submission_id", win.SubmissionID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Winners selected",
		"winners": winners,
	})
}

// distributePrizes queues payouts for a completed competition. Every winner
// must have a Stripe Connect account with payouts enabled before anything
// is enqueued.
func (s *Server) distributePrizes(w http.ResponseWriter, r *http.Request) {
	admin := currentUser(r)
	comp, ok := s.getCompetitionByID(w, r)
	if !ok {
		return
	}
	if schemas.CompetitionStatus(comp.Status) != schemas.CompetitionComplete {
		writeDetail(w, http.StatusBadRequest, "Prizes can only be distributed for complete competitions")
		return
	}

	type winnerRow struct {
		SubmissionID   int64          `db:"id"`
		UserID         int64          `db:"user_id"`
		Username       string         `db:"username"`
		ConnectAccount sql.NullString `db:"stripe_connect_account_id"`
		PayoutsEnabled bool           `db:"connect_payouts_enabled"`
	}
	var winners []winnerRow
	if err := s.DB.SelectContext(r.Context(), &winners, `
		select sub.id, sub.user_id, u.username, u.stripe_connect_account_id, u.connect_payouts_enabled
		from submissions sub join users u on u.id = sub.user_id
		where sub.competition_id=$1 and sub.status='winner'`, comp.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(winners) == 0 {
		writeDetail(w, http.StatusBadRequest, "Competition has no winners")
		return
	}
	var notReady []string
	for _, win := range winners {
		if !win.ConnectAccount.Valid || !win.PayoutsEnabled {
			notReady = append(notReady, win.Username)
		}
	}
	if len(notReady) > 0 {
		writeDetail(w, http.StatusBadRequest,
			"Winners without payout-ready accounts: "+strings.Join(notReady, ", "))
		return
	}

	var pending int
	if err := s.DB.GetContext(r.Context(), &pending, `
		select count(1) from payments
		where competition_id=$1 and type='prize_payout' and status in ('pending','completed')`,
		comp.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pending > 0 {
		writeDetail(w, http.StatusBadRequest, "Prize distribution already started for this competition")
		return
	}

	task := worker.NewDistributePrizesTask(worker.DistributePrizesPayload{
		CompetitionID: comp.ID,
		InitiatedBy:   admin.ID,
	})
	if _, err := s.Asynq.Enqueue(task, asynq.MaxRetry(0), asynq.Timeout(5*time.Minute)); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, schemas.Message{Message: "Prize distribution queued"})
}

func (s *Server) competitionPayments(w http.ResponseWriter, r *http.Request) {
	comp, ok := s.getCompetitionByID(w, r)
	if !ok {
		return
	}
	var rows []db.Payment
	if err := s.DB.SelectContext(r.Context(), &rows,
		`select * from payments where competition_id=$1 order by created_at desc`, comp.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]any, len(rows))
	for i, p := range rows {
		entry := map[string]any{
			"id":         p.ID,
			"user_id":    p.UserID,
			"amount":     p.Amount,
			"type":       p.Type,
			"status":     p.Status,
			"created_at": p.CreatedAt,
		}
		if p.SubmissionID.Valid {
			entry["submission_id"] = p.SubmissionID.Int64
		}
		if p.StripePaymentIntentID.Valid {
			entry["stripe_payment_intent_id"] = p.StripePaymentIntentID.String
		}
		if p.StripeTransferID.Valid {
			entry["stripe_transfer_id"] = p.StripeTransferID.String
		}
		if p.ProcessedAt.Valid {
			entry["processed_at"] = p.ProcessedAt.Time
		}
		out[i] = entry
	}
	writeJSON(w, http.StatusOK, out)
}
