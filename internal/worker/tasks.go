package worker

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TaskPasswordResetEmail = "email:password_reset"
	TaskWinnerEmail        = "email:winner"
	TaskDistributePrizes   = "payments:distribute_prizes"
)

type PasswordResetPayload struct {
	Email      string `json:"email"`
	Username   string `json:"username"`
	ResetToken string `json:"reset_token"`
}

type WinnerEmailPayload struct {
	Email            string  `json:"email"`
	Username         string  `json:"username"`
	CompetitionTitle string  `json:"competition_title"`
	Place            string  `json:"place"`
	PrizeAmount      float64 `json:"prize_amount"`
}

type DistributePrizesPayload struct {
	CompetitionID int64 `json:"competition_id"`
	InitiatedBy   int64 `json:"initiated_by"`
}

func NewPasswordResetTask(p PasswordResetPayload) *asynq.Task {
	b, _ := json.Marshal(p)
	return asynq.NewTask(TaskPasswordResetEmail, b)
}

func NewWinnerEmailTask(p WinnerEmailPayload) *asynq.Task {
	b, _ := json.Marshal(p)
	return asynq.NewTask(TaskWinnerEmail, b)
}

func NewDistributePrizesTask(p DistributePrizesPayload) *asynq.Task {
	b, _ := json.Marshal(p)
	return asynq.NewTask(TaskDistributePrizes, b)
}
