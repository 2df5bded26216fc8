package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"github.com/seedling/pitch-platform/internal/db"
	"github.com/seedling/pitch-platform/internal/payments"
)

const webhookBodyLimit = 64 << 10

// stripeWebhook processes payment intent and transfer events. Signature
// verification happens before anything is touched; unknown event types are
// acknowledged and dropped.
func (s *Server) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "could not read body")
		return
	}
	event, err := payments.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"), s.Cfg.StripeWebhookSecret)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid signature")
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			writeDetail(w, http.StatusBadRequest, "malformed event payload")
			return
		}
		if err := s.handlePaymentSucceeded(r, pi.ID); err != nil {
			s.Log.Error("webhook payment_intent.succeeded", zap.String("intent", pi.ID), zap.Error(err))
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			writeDetail(w, http.StatusBadRequest, "malformed event payload")
			return
		}
		if _, err := s.DB.ExecContext(r.Context(),
			`update payments set status='failed', updated_at=now()
			 where stripe_payment_intent_id=$1 and status='pending'`, pi.ID); err != nil {
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
	case "transfer.reversed":
		var tr stripe.Transfer
		if err := json.Unmarshal(event.Data.Raw, &tr); err != nil {
			writeDetail(w, http.StatusBadRequest, "malformed event payload")
			return
		}
		if _, err := s.DB.ExecContext(r.Context(),
			`update payments set status='failed', updated_at=now() where stripe_transfer_id=$1`, tr.ID); err != nil {
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
	default:
		s.Log.Debug("webhook event ignored", zap.String("type", string(event.Type)))
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// handlePaymentSucceeded is idempotent: an already-completed payment is a
// no-op, so the webhook and the client's status poll can race safely.
func (s *Server) handlePaymentSucceeded(r *http.Request, intentID string) error {
	var pay db.Payment
	err := s.DB.GetContext(r.Context(), &pay,
		`select * from payments where stripe_payment_intent_id=$1`, intentID)
	if errors.Is(err, sql.ErrNoRows) {
		s.Log.Warn("webhook for unknown payment intent", zap.String("intent", intentID))
		return nil
	}
	if err != nil {
		return err
	}
	if pay.Status == "completed" {
		return nil
	}
	if pay.Type != "entry_fee" || !pay.SubmissionID.Valid {
		_, err := s.DB.ExecContext(r.Context(),
			`update payments set status='completed', processed_at=$1, updated_at=now() where id=$2`,
			time.Now().UTC(), pay.ID)
		return err
	}

	var sub db.Submission
	if err := s.DB.GetContext(r.Context(), &sub,
		`select * from submissions where id=$1`, pay.SubmissionID.Int64); err != nil {
		return err
	}
	return s.completeEntryPayment(r, &pay, &sub)
}

// myWinnings lists the current user's prize payouts with competition context.
func (s *Server) myWinnings(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	type winningRow struct {
		db.Payment
		CompetitionTitle string         `db:"competition_title"`
		Placement        sql.NullString `db:"placement"`
	}
	var rows []winningRow
	err := s.DB.SelectContext(r.Context(), &rows, `
		select p.*, c.title as competition_title, sub.placement
		from payments p
		join competitions c on c.id = p.competition_id
		left join submissions sub on sub.id = p.submission_id
		where p.user_id=$1 and p.type='prize_payout'
		order by p.created_at desc`, user.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]any, len(rows))
	var total float64
	for i, row := range rows {
		entry := map[string]any{
			"id":                row.ID,
			"competition_id":    row.CompetitionID,
			"competition_title": row.CompetitionTitle,
			"amount":            row.Amount,
			"status":            row.Status,
			"created_at":        row.CreatedAt,
		}
		if row.Placement.Valid {
			entry["placement"] = row.Placement.String
		}
		if row.ProcessedAt.Valid {
			entry["processed_at"] = row.ProcessedAt.Time
		}
		out[i] = entry
		if row.Status == "completed" {
			total += row.Amount
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"winnings":     out,
		"total_paid":   total,
		"payout_ready": user.ConnectPayoutsEnabled,
	})
}
