package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/seedling/pitch-platform/internal/db"
	"github.com/seedling/pitch-platform/internal/mailer"
	"github.com/seedling/pitch-platform/internal/payments"
)

// Server processes background tasks: transactional email and prize payouts.
type Server struct {
	DB     *sqlx.DB
	Mailer mailer.Mailer
	Stripe payments.Provider
	Log    *zap.Logger
}

func (s *Server) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskPasswordResetEmail, s.handlePasswordResetEmail)
	mux.HandleFunc(TaskWinnerEmail, s.handleWinnerEmail)
	mux.HandleFunc(TaskDistributePrizes, s.handleDistributePrizes)
	return mux
}

func (s *Server) handlePasswordResetEmail(ctx context.Context, t *asynq.Task) error {
	var p PasswordResetPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := s.Mailer.SendPasswordReset(p.Email, p.Username, p.ResetToken); err != nil {
		s.Log.Error("password reset email failed", zap.String("to", p.Email), zap.Error(err))
		return err
	}
	s.Log.Info("password reset email sent", zap.String("to", p.Email))
	return nil
}

func (s *Server) handleWinnerEmail(ctx context.Context, t *asynq.Task) error {
	var p WinnerEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := s.Mailer.SendWinnerNotification(p.Email, p.Username, p.CompetitionTitle, p.Place, p.PrizeAmount); err != nil {
		s.Log.Error("winner email failed", zap.String("to", p.Email), zap.Error(err))
		return err
	}
	s.Log.Info("winner email sent", zap.String("to", p.Email), zap.String("place", p.Place))
	return nil
}

// handleDistributePrizes transfers each winner's prize to their Connect
// account. Transfers use an idempotency key per competition/submission, so
// a partially failed run can be retried without double paying; winners with
// an existing payout row are skipped.
func (s *Server) handleDistributePrizes(ctx context.Context, t *asynq.Task) error {
	var p DistributePrizesPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	log := s.Log.With(zap.Int64("competition_id", p.CompetitionID))
	log.Info("starting prize distribution")

	var comp db.Competition
	if err := s.DB.GetContext(ctx, &comp, `select * from competitions where id=$1`, p.CompetitionID); err != nil {
		return fmt.Errorf("load competition: %w", err)
	}
	var prizes map[string]float64
	if err := json.Unmarshal(comp.PrizeStructure, &prizes); err != nil {
		return fmt.Errorf("parse prize structure: %w", err)
	}

	type winnerRow struct {
		SubmissionID   int64  `db:"id"`
		UserID         int64  `db:"user_id"`
		Placement      string `db:"placement"`
		ConnectAccount string `db:"stripe_connect_account_id"`
	}
	var winners []winnerRow
	if err := s.DB.SelectContext(ctx, &winners, `
		select sub.id, sub.user_id, sub.placement, u.stripe_connect_account_id
		from submissions sub join users u on u.id = sub.user_id
		where sub.competition_id=$1 and sub.status='winner'
		order by sub.id`, p.CompetitionID); err != nil {
		return fmt.Errorf("load winners: %w", err)
	}

	var failed int
	for _, win := range winners {
		amount, ok := prizes[win.Placement]
		if !ok {
			log.Warn("winner placement not in prize structure",
				zap.Int64("submission_id", win.SubmissionID), zap.String("placement", win.Placement))
			continue
		}

		var done int
		if err := s.DB.GetContext(ctx, &done, `
			select count(1) from payments
			where submission_id=$1 and type='prize_payout' and status='completed'`,
			win.SubmissionID); err != nil {
			return err
		}
		if done > 0 {
			continue
		}

		idemKey := fmt.Sprintf("prize-%d-%d", p.CompetitionID, win.SubmissionID)
		transferID, err := s.Stripe.CreateTransfer(payments.ToCents(amount), win.ConnectAccount, idemKey, map[string]string{
			"competition_id": fmt.Sprint(p.CompetitionID),
			"submission_id":  fmt.Sprint(win.SubmissionID),
			"placement":      win.Placement,
		})
		if err != nil {
			failed++
			log.Error("prize transfer failed",
				zap.Int64("submission_id", win.SubmissionID), zap.Error(err))
			_, _ = s.DB.ExecContext(ctx, `
				insert into payments(user_id, competition_id, submission_id, amount, type, status)
				values($1,$2,$3,$4,'prize_payout','failed')`,
				win.UserID, p.CompetitionID, win.SubmissionID, amount)
			continue
		}

		if _, err := s.DB.ExecContext(ctx, `
			insert into payments(user_id, competition_id, submission_id, amount, type, status, stripe_transfer_id, processed_at)
			values($1,$2,$3,$4,'prize_payout','completed',$5,$6)`,
			win.UserID, p.CompetitionID, win.SubmissionID, amount, transferID, time.Now().UTC()); err != nil {
			return fmt.Errorf("record payout: %w", err)
		}
		log.Info("prize transferred",
			zap.Int64("submission_id", win.SubmissionID),
			zap.String("transfer_id", transferID),
			zap.Float64("amount", amount))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d prize transfers failed", failed, len(winners))
	}
	log.Info("prize distribution finished", zap.Int("winners", len(winners)))
	return nil
}

func Run(addr string, dbx *sqlx.DB, m mailer.Mailer, stripe payments.Provider, log *zap.Logger) error {
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: addr}, asynq.Config{Concurrency: 5})
	w := &Server{DB: dbx, Mailer: m, Stripe: stripe, Log: log}
	return srv.Run(w.mux())
}
