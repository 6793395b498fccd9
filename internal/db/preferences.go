package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"NotiFlow/internal/models"
)

// Preference persistence (prefs.Store). An absent row returns nil, nil:
// the gate applies the default policy, not "disabled".

func (s *Store) GetPreference(ctx context.Context, userID string, channel models.Channel) (*models.Preference, error) {
	var p models.Preference
	err := s.Pool.QueryRow(ctx,
		`SELECT user_id, channel, enabled, updated_at
		 FROM preferences WHERE user_id=$1 AND channel=$2`,
		userID, channel,
	).Scan(&p.UserID, &p.Channel, &p.Enabled, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertPreference writes a per-user channel flag, keyed on the pair.
func (s *Store) UpsertPreference(ctx context.Context, p *models.Preference) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO preferences (user_id, channel, enabled, updated_at)
		 VALUES ($1,$2,$3,NOW())
		 ON CONFLICT (user_id, channel)
		 DO UPDATE SET enabled=EXCLUDED.enabled, updated_at=NOW()`,
		p.UserID, p.Channel, p.Enabled,
	)
	return err
}
