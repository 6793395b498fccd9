package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"NotiFlow/internal/models"
)

// Store persists notification records and their provider logs.
type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	AppendLog(ctx context.Context, l *models.NotificationLog) error
	UpdateNotificationStatus(ctx context.Context, id string, status models.NotificationStatus, sentAt *time.Time) error
}

const summaryLimit = 200

// Sink writes the durable audit trail for user-facing sends. Audit is
// best-effort: every persistence error is logged and swallowed, because
// the delivery outcome was already decided independently.
type Sink struct {
	store Store // optional
	log   *zap.Logger
}

func NewSink(store Store, log *zap.Logger) *Sink {
	return &Sink{store: store, log: log}
}

// Create records a pending notification. Returns nil without side
// effects when the user id is unresolved or no store is configured:
// system templates and anonymous sends leave no trace.
func (s *Sink) Create(ctx context.Context, userID, templateRef string, channel models.Channel, subject, content string) *models.Notification {
	if s.store == nil || userID == "" {
		return nil
	}

	summary := content
	if len(summary) > summaryLimit {
		summary = summary[:summaryLimit]
	}

	n := &models.Notification{
		ID:          uuid.NewString(),
		UserID:      userID,
		TemplateRef: templateRef,
		Channel:     channel,
		Subject:     subject,
		Summary:     summary,
		Status:      models.NotificationPending,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.store.CreateNotification(ctx, n); err != nil {
		s.log.Warn("failed to create notification record",
			zap.String("user_id", userID),
			zap.String("template", templateRef),
			zap.Error(err),
		)
		return nil
	}
	return n
}

// AppendLog attaches one provider attempt to an existing notification.
func (s *Sink) AppendLog(ctx context.Context, notificationID, provider, response, errorMsg string) {
	if s.store == nil || notificationID == "" {
		return
	}
	l := &models.NotificationLog{
		NotificationID: notificationID,
		Provider:       provider,
		Response:       response,
		ErrorMsg:       errorMsg,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.AppendLog(ctx, l); err != nil {
		s.log.Warn("failed to append notification log",
			zap.String("notification_id", notificationID),
			zap.Error(err),
		)
	}
}

// MarkSent transitions pending -> sent with a delivery timestamp.
func (s *Sink) MarkSent(ctx context.Context, notificationID string) {
	if s.store == nil || notificationID == "" {
		return
	}
	now := time.Now().UTC()
	if err := s.store.UpdateNotificationStatus(ctx, notificationID, models.NotificationSent, &now); err != nil {
		s.log.Warn("failed to mark notification sent",
			zap.String("notification_id", notificationID),
			zap.Error(err),
		)
	}
}

// MarkFailed transitions pending -> failed.
func (s *Sink) MarkFailed(ctx context.Context, notificationID string) {
	if s.store == nil || notificationID == "" {
		return
	}
	if err := s.store.UpdateNotificationStatus(ctx, notificationID, models.NotificationFailed, nil); err != nil {
		s.log.Warn("failed to mark notification failed",
			zap.String("notification_id", notificationID),
			zap.Error(err),
		)
	}
}
