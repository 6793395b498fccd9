package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"NotiFlow/internal/models"
	"NotiFlow/internal/queue"
)

// Store implements queue.Store on Postgres. Claim relies on
// FOR UPDATE SKIP LOCKED so concurrent workers never share an attempt.

const jobColumns = `id, lane, type, payload, state, attempts_made, max_attempts,
	 backoff_base_ms, last_error, next_run_at, started_at, created_at, updated_at`

func (s *Store) Create(ctx context.Context, job *models.Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return err
	}

	_, err = s.Pool.Exec(ctx,
		`INSERT INTO jobs
		 (id, lane, type, payload, state, attempts_made, max_attempts,
		  backoff_base_ms, last_error, next_run_at, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'',$9,$10,$10)`,
		job.ID,
		job.Lane,
		job.Type,
		payload,
		job.State,
		job.AttemptsMade,
		job.MaxAttempts,
		job.BackoffBase.Milliseconds(),
		job.NextRunAt,
		job.CreatedAt,
	)
	return err
}

func (s *Store) Claim(ctx context.Context, lane models.Lane, now time.Time) (*models.Job, error) {
	row := s.Pool.QueryRow(ctx,
		`UPDATE jobs
		 SET state='active', started_at=$3, updated_at=$3
		 WHERE lane=$1 AND id = (
		   SELECT id FROM jobs
		   WHERE lane=$1 AND state='waiting' AND next_run_at <= $2
		   ORDER BY next_run_at, created_at
		   LIMIT 1
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+jobColumns,
		lane, now, now,
	)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, queue.ErrNoEligibleJob
	}
	return job, err
}

func (s *Store) MarkCompleted(ctx context.Context, id string, lane models.Lane, attempts int) error {
	return s.updateJob(ctx,
		`UPDATE jobs SET state='completed', attempts_made=$3, last_error='', updated_at=NOW()
		 WHERE id=$1 AND lane=$2`,
		id, lane, attempts,
	)
}

func (s *Store) MarkFailed(ctx context.Context, id string, lane models.Lane, attempts int, lastError string) error {
	return s.updateJob(ctx,
		`UPDATE jobs SET state='failed', attempts_made=$3, last_error=$4, updated_at=NOW()
		 WHERE id=$1 AND lane=$2`,
		id, lane, attempts, lastError,
	)
}

func (s *Store) Reschedule(ctx context.Context, id string, lane models.Lane, attempts int, nextRunAt time.Time, lastError string) error {
	return s.updateJob(ctx,
		`UPDATE jobs SET state='waiting', attempts_made=$3, next_run_at=$4, last_error=$5, updated_at=NOW()
		 WHERE id=$1 AND lane=$2`,
		id, lane, attempts, nextRunAt, lastError,
	)
}

func (s *Store) updateJob(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := s.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return queue.ErrJobNotFound
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string, lane models.Lane) (*models.Job, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id=$1 AND lane=$2`,
		id, lane,
	)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, queue.ErrJobNotFound
	}
	return job, err
}

func (s *Store) Remove(ctx context.Context, id string, lane models.Lane) error {
	return s.updateJob(ctx, `DELETE FROM jobs WHERE id=$1 AND lane=$2`, id, lane)
}

func (s *Store) Stats(ctx context.Context) (map[models.Lane]models.LaneStats, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT lane, state, COUNT(*) FROM jobs GROUP BY lane, state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[models.Lane]models.LaneStats, len(models.Lanes))
	for _, lane := range models.Lanes {
		out[lane] = models.LaneStats{}
	}

	for rows.Next() {
		var (
			lane  models.Lane
			state models.JobState
			count int
		)
		if err := rows.Scan(&lane, &state, &count); err != nil {
			return nil, err
		}
		st := out[lane]
		switch state {
		case models.JobWaiting:
			st.Waiting = count
		case models.JobActive:
			st.Active = count
		case models.JobCompleted:
			st.Completed = count
		case models.JobFailed:
			st.Failed = count
		}
		st.Total += count
		out[lane] = st
	}
	return out, rows.Err()
}

func (s *Store) Cleanup(ctx context.Context, olderThan time.Time, keepCompleted, keepFailed int) (int, error) {
	removed := 0

	for _, lane := range models.Lanes {
		for _, sweep := range []struct {
			state models.JobState
			keep  int
		}{
			{models.JobCompleted, keepCompleted},
			{models.JobFailed, keepFailed},
		} {
			tag, err := s.Pool.Exec(ctx,
				`DELETE FROM jobs
				 WHERE lane=$1 AND state=$2 AND id IN (
				   SELECT id FROM jobs WHERE lane=$1 AND state=$2
				   ORDER BY updated_at DESC OFFSET $3
				 )`,
				lane, sweep.state, sweep.keep,
			)
			if err != nil {
				return removed, err
			}
			removed += int(tag.RowsAffected())
		}
	}

	if !olderThan.IsZero() {
		tag, err := s.Pool.Exec(ctx,
			`DELETE FROM jobs
			 WHERE state IN ('completed','failed') AND updated_at < $1`,
			olderThan,
		)
		if err != nil {
			return removed, err
		}
		removed += int(tag.RowsAffected())
	}
	return removed, nil
}

func (s *Store) RecoverStalled(ctx context.Context, stalledBefore time.Time) (int, error) {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE jobs
		 SET state='waiting', next_run_at=NOW(), updated_at=NOW()
		 WHERE state='active' AND started_at < $1`,
		stalledBefore,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job       models.Job
		payload   []byte
		backoffMs int64
		startedAt *time.Time
	)
	err := row.Scan(
		&job.ID, &job.Lane, &job.Type, &payload, &job.State,
		&job.AttemptsMade, &job.MaxAttempts, &backoffMs, &job.LastError,
		&job.NextRunAt, &startedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &job.Payload); err != nil {
		return nil, err
	}
	job.BackoffBase = time.Duration(backoffMs) * time.Millisecond
	if startedAt != nil {
		job.StartedAt = *startedAt
	}
	return &job, nil
}
