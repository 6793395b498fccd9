package models

import "time"

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp:
		return true
	}
	return false
}

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification is the durable audit record of a user-facing delivery
// attempt. System templates (auth, payment lifecycle) never create one.
type Notification struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	TemplateRef string             `json:"template_ref"`
	Channel     Channel            `json:"channel"`
	Subject     string             `json:"subject"`
	Summary     string             `json:"summary"`
	Status      NotificationStatus `json:"status"`
	SentAt      *time.Time         `json:"sent_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// NotificationLog is one provider attempt attached to a notification.
type NotificationLog struct {
	ID             int64     `json:"id"`
	NotificationID string    `json:"notification_id"`
	Provider       string    `json:"provider"`
	Response       string    `json:"response,omitempty"`
	ErrorMsg       string    `json:"error_msg,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Preference is a per-user, per-channel opt-in flag. A missing row is
// not "disabled": the default policy applies (allow all but SMS).
type Preference struct {
	UserID    string    `json:"user_id"`
	Channel   Channel   `json:"channel"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Template is a persisted rendering source, the highest-priority tier
// of the renderer's resolution chain.
type Template struct {
	Name            string    `json:"name"`
	Channel         Channel   `json:"channel"`
	SubjectTemplate string    `json:"subject_template"`
	BodyTemplate    string    `json:"body_template"`
	Version         int       `json:"version"`
	UpdatedAt       time.Time `json:"updated_at"`
}
