package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/seedling/pitch-platform/internal/db"
	"github.com/seedling/pitch-platform/internal/payments"
	"github.com/seedling/pitch-platform/internal/schemas"
	"github.com/seedling/pitch-platform/internal/storage"
)

func submissionOut(sub *db.Submission) schemas.SubmissionOut {
	out := schemas.SubmissionOut{
		ID:            sub.ID,
		CompetitionID: sub.CompetitionID,
		UserID:        sub.UserID,
		Title:         sub.Title,
		Description:   sub.Description,
		Status:        schemas.SubmissionStatus(sub.Status),
		IsPublic:      sub.IsPublic,
		Placement:     sub.Placement.String,
		CreatedAt:     sub.CreatedAt,
	}
	_ = json.Unmarshal(sub.Attachments, &out.Attachments)
	if out.Attachments == nil {
		out.Attachments = []schemas.Attachment{}
	}
	if sub.FinalScore.Valid {
		v := sub.FinalScore.Float64
		out.FinalScore = &v
	}
	if sub.SubmittedAt.Valid {
		t := sub.SubmittedAt.Time
		out.SubmittedAt = &t
	}
	return out
}

func (s *Server) getSubmissionByID(w http.ResponseWriter, r *http.Request) (*db.Submission, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid submission id")
		return nil, false
	}
	var sub db.Submission
	err := s.DB.GetContext(r.Context(), &sub, `select * from submissions where id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, "Submission not found")
		return nil, false
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return &sub, true
}

func (s *Server) createSubmission(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	var req schemas.SubmissionCreate
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == "" {
		writeDetail(w, http.StatusBadRequest, "Title is required")
		return
	}

	var comp db.Competition
	err := s.DB.GetContext(r.Context(), &comp, `select * from competitions where id=$1`, req.CompetitionID)
	if errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, "Competition not found")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if schemas.CompetitionStatus(comp.Status) != schemas.CompetitionActive {
		writeDetail(w, http.StatusBadRequest, "Competition is not accepting entries")
		return
	}
	if comp.CurrentEntries >= comp.MaxEntries {
		writeDetail(w, http.StatusBadRequest, "Competition is full")
		return
	}

	var existing int
	if err := s.DB.GetContext(r.Context(), &existing,
		`select count(1) from submissions where user_id=$1 and competition_id=$2 and status != 'rejected'`,
		user.ID, comp.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing > 0 {
		writeDetail(w, http.StatusBadRequest, "You already have an entry in this competition")
		return
	}

	var sub db.Submission
	err = s.DB.GetContext(r.Context(), &sub,
		`insert into submissions(competition_id, user_id, title, description, is_public, status)
		 values($1,$2,$3,$4,$5,'draft') returning *`,
		comp.ID, user.ID, req.Title, req.Description, req.IsPublic)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, submissionOut(&sub))
}

func (s *Server) listMySubmissions(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	var subs []db.Submission
	err := s.DB.SelectContext(r.Context(), &subs,
		`select * from submissions where user_id=$1 order by created_at desc`, user.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]schemas.SubmissionOut, len(subs))
	for i := range subs {
		out[i] = submissionOut(&subs[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSubmission(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	sub, ok := s.getSubmissionByID(w, r)
	if !ok {
		return
	}
	if sub.UserID != user.ID && schemas.UserRole(user.Role) == schemas.RoleFounder {
		writeDetail(w, http.StatusForbidden, "Not your submission")
		return
	}
	writeJSON(w, http.StatusOK, submissionOut(sub))
}

func (s *Server) updateSubmission(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	sub, ok := s.getSubmissionByID(w, r)
	if !ok {
		return
	}
	if sub.UserID != user.ID && schemas.UserRole(user.Role) != schemas.RoleAdmin {
		writeDetail(w, http.StatusForbidden, "Not your submission")
		return
	}
	var req schemas.SubmissionUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	// Founders can only edit drafts; admins can also move status.
	if schemas.UserRole(user.Role) != schemas.RoleAdmin &&
		schemas.SubmissionStatus(sub.Status) != schemas.SubmissionDraft &&
		schemas.SubmissionStatus(sub.Status) != schemas.SubmissionPendingPayment {
		writeDetail(w, http.StatusBadRequest, "Submission can no longer be edited")
		return
	}
	if req.Title != nil {
		sub.Title = *req.Title
	}
	if req.Description != nil {
		sub.Description = *req.Description
	}
	if req.IsPublic != nil {
		sub.IsPublic = *req.IsPublic
	}
	if req.Status != nil && schemas.UserRole(user.Role) == schemas.RoleAdmin {
		sub.Status = string(*req.Status)
	}
	_, err := s.DB.ExecContext(r.Context(),
		`update submissions set title=$1, description=$2, is_public=$3, status=$4, updated_at=now() where id=$5`,
		sub.Title, sub.Description, sub.IsPublic, sub.Status, sub.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, submissionOut(sub))
}

func (s *Server) deleteSubmission(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	sub, ok := s.getSubmissionByID(w, r)
	if !ok {
		return
	}
	if sub.UserID != user.ID && schemas.UserRole(user.Role) != schemas.RoleAdmin {
		writeDetail(w, http.StatusForbidden, "Not your submission")
		return
	}
	if schemas.SubmissionStatus(sub.Status) != schemas.SubmissionDraft &&
		schemas.UserRole(user.Role) != schemas.RoleAdmin {
		writeDetail(w, http.StatusBadRequest, "Only draft submissions can be deleted")
		return
	}

	var attachments []schemas.Attachment
	_ = json.Unmarshal(sub.Attachments, &attachments)
	for _, a := range attachments {
		if a.S3Key != "" {
			_ = s.S3.Delete(r.Context(), a.S3Key)
		}
	}
	if _, err := s.DB.ExecContext(r.Context(), `delete from submissions where id=$1`, sub.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) uploadSubmissionVideo(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	sub, ok := s.getSubmissionByID(w, r)
	if !ok {
		return
	}
	if sub.UserID != user.ID {
		writeDetail(w, http.StatusForbidden, "Not your submission")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := storage.ValidateVideo(header.Filename, contentType, header.Size); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	key := storage.VideoKey(user.ID, sub.ID, header.Filename)
	if err := s.S3.Put(r.Context(), key, contentType, file, map[string]string{
		"original_filename": storage.SanitizeFilename(header.Filename),
	}); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	var attachments []schemas.Attachment
	_ = json.Unmarshal(sub.Attachments, &attachments)
	replaced := false
	for i, a := range attachments {
		if a.Type == "video" {
			attachments[i] = schemas.Attachment{Type: "video", S3Key: key, Filename: header.Filename}
			replaced = true
			break
		}
	}
	if !replaced {
		attachments = append(attachments, schemas.Attachment{Type: "video", S3Key: key, Filename: header.Filename})
	}
	raw, _ := json.Marshal(attachments)
	if _, err := s.DB.ExecContext(r.Context(),
		`update submissions set attachments=$1, updated_at=now() where id=$2`, raw, sub.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	sub.Attachments = raw
	writeJSON(w, http.StatusOK, submissionOut(sub))
}

func videoKeyOf(sub *db.Submission) string {
	var attachments []schemas.Attachment
	_ = json.Unmarshal(sub.Attachments, &attachments)
	for _, a := range attachments {
		if a.Type == "video" && a.S3Key != "" {
			return a.S3Key
		}
	}
	return ""
}

func (s *Server) signVideoURL(w http.ResponseWriter, r *http.Request, sub *db.Submission) {
	key := videoKeyOf(sub)
	if key == "" {
		writeDetail(w, http.StatusNotFound, "Submission has no video")
		return
	}
	url, expires, err := s.S3.SignedGetURL(r.Context(), key, storage.SignedURLTTL)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, schemas.SignedURLOut{URL: url, ExpiresAt: expires})
}

// submissionVideoURL serves judges and admins; judges must be assigned.
func (s *Server) submissionVideoURL(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	sub, ok := s.getSubmissionByID(w, r)
	if !ok {
		return
	}
	if schemas.UserRole(user.Role) == schemas.RoleJudge {
		if !s.judgeAssigned(w, r, user.ID, sub.ID) {
			return
		}
	}
	s.signVideoURL(w, r, sub)
}

func (s *Server) getPublicSubmission(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.getSubmissionByID(w, r)
	if !ok {
		return
	}
	if !sub.IsPublic {
		writeDetail(w, http.StatusNotFound, "Submission not found")
		return
	}
	writeJSON(w, http.StatusOK, submissionOut(sub))
}

func (s *Server) publicSubmissionVideoURL(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.getSubmissionByID(w, r)
	if !ok {
		return
	}
	if !sub.IsPublic {
		writeDetail(w, http.StatusNotFound, "Submission not found")
		return
	}
	s.signVideoURL(w, r, sub)
}

func (s *Server) createSubmissionPaymentIntent(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	sub, ok := s.getSubmissionByID(w, r)
	if !ok {
		return
	}
	if sub.UserID != user.ID {
		writeDetail(w, http.StatusForbidden, "Not your submission")
		return
	}
	if schemas.SubmissionStatus(sub.Status) != schemas.SubmissionDraft &&
		schemas.SubmissionStatus(sub.Status) != schemas.SubmissionPendingPayment {
		writeDetail(w, http.StatusBadRequest, "Submission already paid for")
		return
	}

	var comp db.Competition
	if err := s.DB.GetContext(r.Context(), &comp,
		`select * from competitions where id=$1`, sub.CompetitionID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	intent, err := s.Stripe.CreatePaymentIntent(payments.ToCents(comp.EntryFee), map[string]string{
		"submission_id":  strconvID(sub.ID),
		"competition_id": strconvID(comp.ID),
		"user_id":        strconvID(user.ID),
		"type":           string(schemas.PaymentEntryFee),
	})
	if err != nil {
		writeDetail(w, http.StatusBadGateway, "Payment error: "+err.Error())
		return
	}

	_, err = s.DB.ExecContext(r.Context(),
		`insert into payments(user_id, competition_id, submission_id, amount, type, status, stripe_payment_intent_id)
		 values($1,$2,$3,$4,$5,'pending',$6)`,
		user.ID, comp.ID, sub.ID, comp.EntryFee, string(schemas.PaymentEntryFee), intent.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := s.DB.ExecContext(r.Context(),
		`update submissions set status='pending_payment', updated_at=now() where id=$1`, sub.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, schemas.PaymentIntentOut{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID})
}

func (s *Server) checkSubmissionPaymentStatus(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	sub, ok := s.getSubmissionByID(w, r)
	if !ok {
		return
	}
	if sub.UserID != user.ID {
		writeDetail(w, http.StatusForbidden, "Not your submission")
		return
	}

	var pay db.Payment
	err := s.DB.GetContext(r.Context(), &pay,
		`select * from payments where submission_id=$1 and type='entry_fee' order by created_at desc limit 1`, sub.ID)
	if errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, "No payment found for this submission")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	intent, err := s.Stripe.GetPaymentIntent(pay.StripePaymentIntentID.String)
	if err != nil {
		writeDetail(w, http.StatusBadGateway, "Payment error: "+err.Error())
		return
	}
	if intent.Status == "succeeded" && schemas.PaymentStatus(pay.Status) != schemas.PaymentCompleted {
		if err := s.completeEntryPayment(r, &pay, sub); err != nil {
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
		sub.Status = string(schemas.SubmissionSubmitted)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payment_status":    intent.Status,
		"submission_status": sub.Status,
	})
}

// completeEntryPayment marks the payment done, submits the entry and bumps
// the competition's entry count.
func (s *Server) completeEntryPayment(r *http.Request, pay *db.Payment, sub *db.Submission) error {
	now := time.Now().UTC()
	if _, err := s.DB.ExecContext(r.Context(),
		`update payments set status='completed', processed_at=$1, updated_at=now() where id=$2`, now, pay.ID); err != nil {
		return err
	}
	if _, err := s.DB.ExecContext(r.Context(),
		`update submissions set status='submitted', submitted_at=$1, updated_at=now() where id=$2`, now, sub.ID); err != nil {
		return err
	}
	_, err := s.DB.ExecContext(r.Context(),
		`update competitions set current_entries=current_entries+1, updated_at=now() where id=$1`, sub.CompetitionID)
	return err
}
