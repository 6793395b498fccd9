package db

import (
	"context"
	"time"

	"NotiFlow/internal/models"
)

// Notification sink persistence (notification.Store).

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO notifications
		 (id, user_id, template_ref, channel, subject, summary, status, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		n.ID, n.UserID, n.TemplateRef, n.Channel, n.Subject, n.Summary, n.Status, n.CreatedAt,
	)
	return err
}

func (s *Store) AppendLog(ctx context.Context, l *models.NotificationLog) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO notification_logs
		 (notification_id, provider, response, error_msg, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		l.NotificationID, l.Provider, l.Response, l.ErrorMsg, l.CreatedAt,
	)
	return err
}

func (s *Store) UpdateNotificationStatus(ctx context.Context, id string, status models.NotificationStatus, sentAt *time.Time) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE notifications
		 SET status=$1, sent_at=COALESCE($2, sent_at)
		 WHERE id=$3`,
		status, sentAt, id,
	)
	return err
}
