package db

import (
	"database/sql"
	"time"
)

type User struct {
	ID             int64          `db:"id"`
	Email          string         `db:"email"`
	Username       string         `db:"username"`
	HashedPassword string         `db:"hashed_password"`
	IsActive       bool           `db:"is_active"`
	Role           string         `db:"role"`
	AvatarKey      sql.NullString `db:"avatar_key"`

	StripeCustomerID       sql.NullString `db:"stripe_customer_id"`
	StripeConnectAccountID sql.NullString `db:"stripe_connect_account_id"`
	ConnectOnboardingDone  bool           `db:"connect_onboarding_complete"`
	ConnectChargesEnabled  bool           `db:"connect_charges_enabled"`
	ConnectPayoutsEnabled  bool           `db:"connect_payouts_enabled"`
	ConnectOnboardedAt     sql.NullTime   `db:"connect_onboarded_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type Competition struct {
	ID                    int64          `db:"id"`
	Title                 string         `db:"title"`
	Description           string         `db:"description"`
	Domain                string         `db:"domain"`
	ImageKey              sql.NullString `db:"image_key"`
	EntryFee              float64        `db:"entry_fee"`
	PrizePool             float64        `db:"prize_pool"`
	PlatformFeePercentage float64        `db:"platform_fee_percentage"`
	MaxEntries            int            `db:"max_entries"`
	CurrentEntries        int            `db:"current_entries"`
	OpenDate              time.Time      `db:"open_date"`
	Deadline              time.Time      `db:"deadline"`
	JudgingSLADays        int            `db:"judging_sla_days"`
	Status                string         `db:"status"`
	Rubric                []byte         `db:"rubric"`
	PrizeStructure        []byte         `db:"prize_structure"`
	CreatedBy             int64          `db:"created_by"`
	CreatedAt             time.Time      `db:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at"`
}

type Submission struct {
	ID            int64           `db:"id"`
	CompetitionID int64           `db:"competition_id"`
	UserID        int64           `db:"user_id"`
	Title         string          `db:"title"`
	Description   string          `db:"description"`
	Attachments   []byte          `db:"attachments"`
	Status        string          `db:"status"`
	IsPublic      bool            `db:"is_public"`
	AIScores      []byte          `db:"ai_scores"`
	HumanScores   []byte          `db:"human_scores"`
	FinalScore    sql.NullFloat64 `db:"final_score"`
	Placement     sql.NullString  `db:"placement"`
	JudgeFeedback []byte          `db:"judge_feedback"`
	SubmittedAt   sql.NullTime    `db:"submitted_at"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

type JudgeAssignment struct {
	ID           int64        `db:"id"`
	JudgeID      int64        `db:"judge_id"`
	SubmissionID int64        `db:"submission_id"`
	AssignedBy   int64        `db:"assigned_by"`
	AssignedAt   time.Time    `db:"assigned_at"`
	CompletedAt  sql.NullTime `db:"completed_at"`
}

type Payment struct {
	ID                    int64          `db:"id"`
	UserID                int64          `db:"user_id"`
	CompetitionID         int64          `db:"competition_id"`
	SubmissionID          sql.NullInt64  `db:"submission_id"`
	Amount                float64        `db:"amount"`
	Type                  string         `db:"type"`
	Status                string         `db:"status"`
	StripePaymentIntentID sql.NullString `db:"stripe_payment_intent_id"`
	StripeTransferID      sql.NullString `db:"stripe_transfer_id"`
	ProcessedAt           sql.NullTime   `db:"processed_at"`
	CreatedAt             time.Time      `db:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at"`
}

type PasswordResetToken struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	Used      bool      `db:"used"`
	CreatedAt time.Time `db:"created_at"`
}

type UserBankAccount struct {
	ID                  int64          `db:"id"`
	UserID              int64          `db:"user_id"`
	StripeBankAccountID string         `db:"stripe_bank_account_id"`
	Last4               string         `db:"bank_account_last4"`
	BankName            sql.NullString `db:"bank_name"`
	AccountHolderName   sql.NullString `db:"account_holder_name"`
	IsDefault           bool           `db:"is_default"`
	Verified            bool           `db:"verified"`
	VerifiedAt          sql.NullTime   `db:"verified_at"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}
