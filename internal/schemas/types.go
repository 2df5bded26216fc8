package schemas

import "time"

// Status enums shared by the API and the client.

type UserRole string

const (
	RoleFounder UserRole = "founder"
	RoleJudge   UserRole = "judge"
	RoleAdmin   UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleFounder, RoleJudge, RoleAdmin:
		return true
	}
	return false
}

// HomePath returns the landing route for a role, used by the access guard
// when it turns someone away from a page they cannot see.
func (r UserRole) HomePath() string {
	switch r {
	case RoleJudge:
		return "/judge"
	case RoleAdmin:
		return "/admin"
	default:
		return "/dashboard"
	}
}

type CompetitionStatus string

const (
	CompetitionDraft    CompetitionStatus = "draft"
	CompetitionUpcoming CompetitionStatus = "upcoming"
	CompetitionActive   CompetitionStatus = "active"
	CompetitionClosed   CompetitionStatus = "closed"
	CompetitionJudging  CompetitionStatus = "judging"
	CompetitionComplete CompetitionStatus = "complete"
)

type SubmissionStatus string

const (
	SubmissionDraft          SubmissionStatus = "draft"
	SubmissionPendingPayment SubmissionStatus = "pending_payment"
	SubmissionSubmitted      SubmissionStatus = "submitted"
	SubmissionUnderReview    SubmissionStatus = "under_review"
	SubmissionWinner         SubmissionStatus = "winner"
	SubmissionNotSelected    SubmissionStatus = "not_selected"
	SubmissionRejected       SubmissionStatus = "rejected"
)

type PaymentType string

const (
	PaymentEntryFee    PaymentType = "entry_fee"
	PaymentPrizePayout PaymentType = "prize_payout"
	PaymentRefund      PaymentType = "refund"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Auth

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type PasswordReset struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type Message struct {
	Message string `json:"message"`
}

// Users

type UserCreate struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserUpdate struct {
	Email           *string `json:"email,omitempty"`
	Username        *string `json:"username,omitempty"`
	Password        *string `json:"password,omitempty"`
	CurrentPassword *string `json:"current_password,omitempty"`
}

type UserOut struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      UserRole  `json:"role"`
	IsActive  bool      `json:"is_active"`
	AvatarKey string    `json:"avatar_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type UserInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Competitions

type CompetitionCreate struct {
	Title                 string         `json:"title"`
	Description           string         `json:"description"`
	Domain                string         `json:"domain"`
	EntryFee              float64        `json:"entry_fee"`
	PrizePool             float64        `json:"prize_pool"`
	PlatformFeePercentage float64        `json:"platform_fee_percentage"`
	MaxEntries            int            `json:"max_entries"`
	OpenDate              time.Time      `json:"open_date"`
	Deadline              time.Time      `json:"deadline"`
	JudgingSLADays        int            `json:"judging_sla_days"`
	Rubric                map[string]any `json:"rubric"`
	PrizeStructure        map[string]any `json:"prize_structure"`
}

type CompetitionUpdate struct {
	Title          *string            `json:"title,omitempty"`
	Description    *string            `json:"description,omitempty"`
	Domain         *string            `json:"domain,omitempty"`
	Deadline       *time.Time         `json:"deadline,omitempty"`
	Status         *CompetitionStatus `json:"status,omitempty"`
	Rubric         map[string]any     `json:"rubric,omitempty"`
	PrizeStructure map[string]any     `json:"prize_structure,omitempty"`
}

type CompetitionOut struct {
	ID                    int64             `json:"id"`
	Title                 string            `json:"title"`
	Description           string            `json:"description"`
	Domain                string            `json:"domain"`
	EntryFee              float64           `json:"entry_fee"`
	PrizePool             float64           `json:"prize_pool"`
	PlatformFeePercentage float64           `json:"platform_fee_percentage"`
	MaxEntries            int               `json:"max_entries"`
	CurrentEntries        int               `json:"current_entries"`
	OpenDate              time.Time         `json:"open_date"`
	Deadline              time.Time         `json:"deadline"`
	JudgingSLADays        int               `json:"judging_sla_days"`
	Status                CompetitionStatus `json:"status"`
	Rubric                map[string]any    `json:"rubric,omitempty"`
	PrizeStructure        map[string]any    `json:"prize_structure,omitempty"`
	ImageURL              string            `json:"image_url,omitempty"`
	CreatedBy             int64             `json:"created_by"`
	Creator               *UserInfo         `json:"creator,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
}

// Submissions

type SubmissionCreate struct {
	CompetitionID int64  `json:"competition_id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	IsPublic      bool   `json:"is_public"`
}

type SubmissionUpdate struct {
	Title       *string           `json:"title,omitempty"`
	Description *string           `json:"description,omitempty"`
	IsPublic    *bool             `json:"is_public,omitempty"`
	Status      *SubmissionStatus `json:"status,omitempty"`
}

type Attachment struct {
	Type     string `json:"type"`
	S3Key    string `json:"s3_key"`
	Filename string `json:"filename,omitempty"`
}

type SubmissionOut struct {
	ID            int64            `json:"id"`
	CompetitionID int64            `json:"competition_id"`
	UserID        int64            `json:"user_id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Status        SubmissionStatus `json:"status"`
	IsPublic      bool             `json:"is_public"`
	Attachments   []Attachment     `json:"attachments"`
	FinalScore    *float64         `json:"final_score,omitempty"`
	Placement     string           `json:"placement,omitempty"`
	SubmittedAt   *time.Time       `json:"submitted_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Judging

type JudgeScoreSubmit struct {
	CriteriaScores map[string]float64 `json:"criteria_scores"`
	Feedback       string             `json:"feedback"`
}

type JudgeScoreEntry struct {
	JudgeID        int64              `json:"judge_id"`
	JudgeName      string             `json:"judge_name"`
	CriteriaScores map[string]float64 `json:"criteria_scores"`
	Overall        float64            `json:"overall"`
	Feedback       string             `json:"feedback"`
	SubmittedAt    time.Time          `json:"submitted_at"`
}

// HumanScores is the stored shape of all judge scores on a submission.
type HumanScores struct {
	Judges  []JudgeScoreEntry `json:"judges"`
	Average float64           `json:"average"`
}

type FeedbackEntry struct {
	JudgeID     int64     `json:"judge_id"`
	JudgeName   string    `json:"judge_name"`
	Feedback    string    `json:"feedback"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SubmissionWithScores is the judging view of a submission: the rubric
// snapshot, every judge's parsed scores, and the current judge's own state.
type SubmissionWithScores struct {
	SubmissionOut
	FounderUsername string          `json:"founder_username,omitempty"`
	Rubric          map[string]any  `json:"rubric,omitempty"`
	HumanScores     *HumanScores    `json:"human_scores,omitempty"`
	JudgeFeedback   []FeedbackEntry `json:"judge_feedback,omitempty"`
	IsScored        *bool           `json:"is_scored,omitempty"`
	JudgeScore      *float64        `json:"judge_score,omitempty"`
	VideoURL        string          `json:"video_url,omitempty"`
}

type AssignmentSubmission struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	User       UserInfo `json:"user"`
	HasScored  bool     `json:"has_scored"`
	JudgeScore *float64 `json:"judge_score,omitempty"`
}

type CompetitionAssignments struct {
	Competition struct {
		ID        int64             `json:"id"`
		Title     string            `json:"title"`
		Domain    string            `json:"domain"`
		PrizePool float64           `json:"prize_pool"`
		Deadline  time.Time         `json:"deadline"`
		Status    CompetitionStatus `json:"status"`
	} `json:"competition"`
	Submissions []AssignmentSubmission `json:"submissions"`
	Completed   int                    `json:"completed"`
	Total       int                    `json:"total"`
}

// Admin

type AssignJudgesRequest struct {
	JudgeIDs []int64 `json:"judge_ids"`
}

type JudgeAssignmentOut struct {
	ID           int64      `json:"id"`
	JudgeID      int64      `json:"judge_id"`
	SubmissionID int64      `json:"submission_id"`
	AssignedBy   int64      `json:"assigned_by"`
	AssignedAt   time.Time  `json:"assigned_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type LeaderboardEntry struct {
	Rank               int      `json:"rank"`
	SubmissionID       int64    `json:"submission_id"`
	Title              string   `json:"title"`
	UserID             int64    `json:"user_id"`
	Username           string   `json:"username"`
	FinalScore         *float64 `json:"final_score,omitempty"`
	NumJudgesAssigned  int      `json:"num_judges_assigned"`
	NumJudgesCompleted int      `json:"num_judges_completed"`
	JudgingComplete    bool     `json:"judging_complete"`
	HasTie             bool     `json:"has_tie"`
}

type CompetitionLeaderboard struct {
	CompetitionID       int64              `json:"competition_id"`
	CompetitionTitle    string             `json:"competition_title"`
	Status              CompetitionStatus  `json:"status"`
	PrizePool           float64            `json:"prize_pool"`
	PrizeStructure      map[string]any     `json:"prize_structure"`
	Entries             []LeaderboardEntry `json:"entries"`
	TotalSubmissions    int                `json:"total_submissions"`
	EligibleSubmissions int                `json:"eligible_submissions"`
	FullyJudgedCount    int                `json:"fully_judged_count"`
}

type WinnerSelection struct {
	SubmissionID int64  `json:"submission_id"`
	Place        string `json:"place"`
}

type SelectWinnersRequest struct {
	Winners []WinnerSelection `json:"winners"`
}

type WinnerInfo struct {
	Place        string  `json:"place"`
	SubmissionID int64   `json:"submission_id"`
	Username     string  `json:"username"`
	PrizeAmount  float64 `json:"prize_amount"`
}

// Payments / Connect

type PaymentIntentOut struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}

type ConnectAccountOut struct {
	AccountID     string `json:"account_id"`
	OnboardingURL string `json:"onboarding_url"`
}

type ConnectStatusOut struct {
	AccountID          string `json:"account_id,omitempty"`
	OnboardingComplete bool   `json:"onboarding_complete"`
	ChargesEnabled     bool   `json:"charges_enabled"`
	PayoutsEnabled     bool   `json:"payouts_enabled"`
}

type SignedURLOut struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
