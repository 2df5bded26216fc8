package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	m "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/seedling/pitch-platform/internal/config"
	"github.com/seedling/pitch-platform/internal/payments"
	"github.com/seedling/pitch-platform/internal/schemas"
	"github.com/seedling/pitch-platform/internal/storage"
)

type Server struct {
	DB     *sqlx.DB
	S3     *storage.Client
	Asynq  *asynq.Client
	Stripe payments.Provider
	Cfg    *config.Config
	Log    *zap.Logger
}

func NewServer(cfg *config.Config, dbx *sqlx.DB, s3c *storage.Client, asq *asynq.Client, stripe payments.Provider, log *zap.Logger) *http.Server {
	s := &Server{DB: dbx, S3: s3c, Asynq: asq, Stripe: stripe, Cfg: cfg, Log: log}
	return &http.Server{Addr: cfg.ListenAddr, Handler: s.Router()}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(m.RequestID, m.RealIP, m.Logger, m.Recoverer)

	// Public
	r.Post("/auth/login", s.login)
	r.Post("/auth/request-password-reset", s.requestPasswordReset)
	r.Post("/auth/reset-password", s.resetPassword)
	r.Post("/users", s.register)
	r.Get("/submissions/public/{id}", s.getPublicSubmission)
	r.Get("/submissions/public/{id}/video-url", s.publicSubmissionVideoURL)
	r.Post("/payments/webhooks/stripe", s.stripeWebhook)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.DB.Ping(); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "db error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Authenticated
	r.Group(func(r chi.Router) {
		r.Use(s.Authenticate)

		r.Get("/users/me", s.me)
		r.Patch("/users/me", s.updateMe)
		r.Post("/users/me/avatar", s.uploadAvatar)
		r.Get("/users/me/avatar-url", s.avatarURL)
		r.Delete("/users/me/avatar", s.deleteAvatar)
		r.Get("/users/{id}", s.getUser)

		r.Get("/competitions", s.listCompetitions)
		r.Get("/competitions/{id}", s.getCompetition)
		r.Get("/competitions/{id}/results", s.competitionResults)

		r.Post("/submissions", s.createSubmission)
		r.Get("/submissions", s.listMySubmissions)
		r.Get("/submissions/{id}", s.getSubmission)
		r.Patch("/submissions/{id}", s.updateSubmission)
		r.Delete("/submissions/{id}", s.deleteSubmission)
		r.Post("/submissions/{id}/video", s.uploadSubmissionVideo)
		r.Post("/submissions/{id}/create-payment-intent", s.createSubmissionPaymentIntent)
		r.Post("/submissions/{id}/check-payment-status", s.checkSubmissionPaymentStatus)

		r.Post("/connect-accounts", s.createConnectAccount)
		r.Get("/connect-accounts/status", s.connectAccountStatus)
		r.Post("/connect-accounts/refresh-link", s.refreshOnboardingLink)
		r.Get("/connect-accounts/payout-status", s.payoutStatus)
		r.Get("/payments/my-winnings", s.myWinnings)

		r.Get("/judging/assignments", s.judgeAssignments)

		// Judge/admin only
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(schemas.RoleJudge, schemas.RoleAdmin))
			r.Get("/judging/competitions/{id}/submissions", s.judgingSubmissions)
			r.Post("/judging/submissions/{id}/score", s.submitJudgeScore)
			r.Get("/judging/submissions/{id}", s.judgingSubmissionDetail)
			r.Get("/submissions/{id}/video-url", s.submissionVideoURL)
		})

		// Admin only
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(schemas.RoleAdmin))
			r.Get("/users", s.listUsers)
			r.Patch("/users/{id}/role", s.updateUserRole)
			r.Post("/competitions", s.createCompetition)
			r.Patch("/competitions/{id}", s.updateCompetition)
			r.Delete("/competitions/{id}", s.deleteCompetition)
			r.Post("/competitions/{id}/upload-image", s.uploadCompetitionImage)
			r.Delete("/competitions/{id}/image", s.deleteCompetitionImage)

			r.Post("/admin/competitions/{id}/assign-judges", s.assignJudges)
			r.Get("/admin/competitions/{id}/judge-assignments", s.listJudgeAssignments)
			r.Patch("/admin/judge-assignments/{id}", s.reassignJudge)
			r.Get("/admin/competitions/{id}/leaderboard", s.leaderboard)
			r.Post("/admin/competitions/{id}/select-winners", s.selectWinners)
			r.Post("/admin/competitions/{id}/distribute-prizes", s.distributePrizes)
			r.Get("/admin/competitions/{id}/payments", s.competitionPayments)
		})
	})

	return r
}
