package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"NotiFlow/internal/models"
)

// Template persistence (template.Store), the renderer's first tier.

func (s *Store) GetByName(ctx context.Context, name string, channel models.Channel) (*models.Template, error) {
	var t models.Template
	err := s.Pool.QueryRow(ctx,
		`SELECT name, channel, subject_template, body_template, version, updated_at
		 FROM templates WHERE name=$1 AND channel=$2`,
		name, channel,
	).Scan(&t.Name, &t.Channel, &t.SubjectTemplate, &t.BodyTemplate, &t.Version, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpsertTemplate stores a template and bumps its version on change.
func (s *Store) UpsertTemplate(ctx context.Context, t *models.Template) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO templates (name, channel, subject_template, body_template, version, updated_at)
		 VALUES ($1,$2,$3,$4,1,NOW())
		 ON CONFLICT (name, channel)
		 DO UPDATE SET subject_template=EXCLUDED.subject_template,
		               body_template=EXCLUDED.body_template,
		               version=templates.version+1,
		               updated_at=NOW()`,
		t.Name, t.Channel, t.SubjectTemplate, t.BodyTemplate,
	)
	return err
}
