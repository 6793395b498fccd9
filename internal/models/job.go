package models

import "time"

type Lane string

const (
	LaneEmail Lane = "email"
	LaneSMS   Lane = "sms"
	LaneBulk  Lane = "bulk"
)

// Lanes lists every known lane in dispatch order.
var Lanes = []Lane{LaneEmail, LaneSMS, LaneBulk}

func (l Lane) Valid() bool {
	switch l {
	case LaneEmail, LaneSMS, LaneBulk:
		return true
	}
	return false
}

type JobState string

const (
	JobWaiting   JobState = "waiting"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

type JobType string

const (
	JobTransactional     JobType = "transactional"
	JobWelcome           JobType = "welcome"
	JobPasswordReset     JobType = "password_reset"
	JobEventConfirmation JobType = "event_confirmation"
	JobOtp               JobType = "otp"
	JobBulkEmail         JobType = "bulk_email"
	JobBulkSMS           JobType = "bulk_sms"
)

// JobPayload carries everything a worker needs to perform a send.
// Recipients is only set for bulk job types.
type JobPayload struct {
	UserID     string                 `json:"user_id,omitempty"`
	To         string                 `json:"to,omitempty"`
	Subject    string                 `json:"subject,omitempty"`
	Template   string                 `json:"template,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Recipients []Recipient            `json:"recipients,omitempty"`
}

type Job struct {
	ID           string        `json:"id"`
	Lane         Lane          `json:"lane"`
	Type         JobType       `json:"type"`
	Payload      JobPayload    `json:"payload"`
	State        JobState      `json:"state"`
	AttemptsMade int           `json:"attempts_made"`
	MaxAttempts  int           `json:"max_attempts"`
	BackoffBase  time.Duration `json:"backoff_base"`
	LastError    string        `json:"last_error,omitempty"`

	NextRunAt time.Time `json:"next_run_at"`
	StartedAt time.Time `json:"started_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BackoffDelay returns how long to wait before attempt n+1,
// doubling on every attempt already made.
func (j *Job) BackoffDelay() time.Duration {
	if j.AttemptsMade <= 0 {
		return j.BackoffBase
	}
	return j.BackoffBase << (j.AttemptsMade - 1)
}

// LaneStats is a point-in-time count of jobs per state within a lane.
type LaneStats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}
