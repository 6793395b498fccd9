package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NotiFlow/internal/models"
)

func seedJob(t *testing.T, s *MemStore, id string, createdAt, nextRunAt time.Time) {
	t.Helper()

	require.NoError(t, s.Create(context.Background(), &models.Job{
		ID:          id,
		Lane:        models.LaneEmail,
		Type:        models.JobWelcome,
		State:       models.JobWaiting,
		MaxAttempts: 3,
		NextRunAt:   nextRunAt,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}))
}

func TestMemStoreClaimOrder(t *testing.T) {
	t.Parallel()

	s := NewMemStore()
	now := time.Now()

	seedJob(t, s, "later", now.Add(-time.Minute), now.Add(-time.Second))
	seedJob(t, s, "earlier", now.Add(-time.Minute), now.Add(-time.Hour))
	seedJob(t, s, "future", now.Add(-time.Minute), now.Add(time.Hour))

	first, err := s.Claim(context.Background(), models.LaneEmail, now)
	require.NoError(t, err)
	assert.Equal(t, "earlier", first.ID)
	assert.Equal(t, models.JobActive, first.State)

	second, err := s.Claim(context.Background(), models.LaneEmail, now)
	require.NoError(t, err)
	assert.Equal(t, "later", second.ID)

	// "future" is not due; nothing else is claimable.
	_, err = s.Claim(context.Background(), models.LaneEmail, now)
	assert.ErrorIs(t, err, ErrNoEligibleJob)
}

func TestMemStoreClaimTieBreaksOnCreatedAt(t *testing.T) {
	t.Parallel()

	s := NewMemStore()
	now := time.Now()
	due := now.Add(-time.Minute)

	seedJob(t, s, "second", now.Add(-time.Minute), due)
	seedJob(t, s, "first", now.Add(-2*time.Minute), due)

	got, err := s.Claim(context.Background(), models.LaneEmail, now)
	require.NoError(t, err)
	assert.Equal(t, "first", got.ID)
}

func TestMemStoreClaimedJobNotReclaimed(t *testing.T) {
	t.Parallel()

	s := NewMemStore()
	now := time.Now()
	seedJob(t, s, "only", now, now.Add(-time.Second))

	_, err := s.Claim(context.Background(), models.LaneEmail, now)
	require.NoError(t, err)

	_, err = s.Claim(context.Background(), models.LaneEmail, now)
	assert.ErrorIs(t, err, ErrNoEligibleJob)
}

func TestMemStoreRescheduleMakesClaimableAgain(t *testing.T) {
	t.Parallel()

	s := NewMemStore()
	now := time.Now()
	seedJob(t, s, "j1", now, now.Add(-time.Second))

	_, err := s.Claim(context.Background(), models.LaneEmail, now)
	require.NoError(t, err)

	retryAt := now.Add(100 * time.Millisecond)
	require.NoError(t, s.Reschedule(context.Background(), "j1", models.LaneEmail, 1, retryAt, "boom"))

	// Not yet due.
	_, err = s.Claim(context.Background(), models.LaneEmail, now)
	assert.ErrorIs(t, err, ErrNoEligibleJob)

	got, err := s.Claim(context.Background(), models.LaneEmail, retryAt.Add(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 1, got.AttemptsMade)
	assert.Equal(t, "boom", got.LastError)
}

func TestMemStoreGetReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewMemStore()
	now := time.Now()
	seedJob(t, s, "j1", now, now)

	got, err := s.Get(context.Background(), "j1", models.LaneEmail)
	require.NoError(t, err)
	got.State = models.JobFailed

	again, err := s.Get(context.Background(), "j1", models.LaneEmail)
	require.NoError(t, err)
	assert.Equal(t, models.JobWaiting, again.State)
}

func TestMemStoreRecoverStalled(t *testing.T) {
	t.Parallel()

	s := NewMemStore()
	now := time.Now()
	seedJob(t, s, "stuck", now.Add(-time.Hour), now.Add(-time.Hour))
	seedJob(t, s, "fresh", now, now.Add(-time.Second))

	// Claim both; backdate the first claim so it looks abandoned.
	_, err := s.Claim(context.Background(), models.LaneEmail, now.Add(-10*time.Minute))
	require.NoError(t, err)
	_, err = s.Claim(context.Background(), models.LaneEmail, now)
	require.NoError(t, err)

	recovered, err := s.RecoverStalled(context.Background(), now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	stuck, err := s.Get(context.Background(), "stuck", models.LaneEmail)
	require.NoError(t, err)
	assert.Equal(t, models.JobWaiting, stuck.State)

	fresh, err := s.Get(context.Background(), "fresh", models.LaneEmail)
	require.NoError(t, err)
	assert.Equal(t, models.JobActive, fresh.State)
}

func TestMemStoreCleanupRetentionCap(t *testing.T) {
	t.Parallel()

	s := NewMemStore()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("c%d", i)
		seedJob(t, s, id, base.Add(time.Duration(i)*time.Minute), base)
		_, err := s.Claim(context.Background(), models.LaneEmail, time.Now())
		require.NoError(t, err)
		require.NoError(t, s.MarkCompleted(context.Background(), id, models.LaneEmail, 1))
	}

	removed, err := s.Cleanup(context.Background(), time.Time{}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats[models.LaneEmail].Completed)
}

func TestMemStoreCleanupLeavesUnfinishedJobs(t *testing.T) {
	t.Parallel()

	s := NewMemStore()
	now := time.Now()
	seedJob(t, s, "waiting", now, now.Add(time.Hour))

	removed, err := s.Cleanup(context.Background(), now.Add(time.Hour), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	_, err = s.Get(context.Background(), "waiting", models.LaneEmail)
	assert.NoError(t, err)
}

func TestMemStoreUnknownLane(t *testing.T) {
	t.Parallel()

	s := NewMemStore()

	err := s.Create(context.Background(), &models.Job{ID: "x", Lane: models.Lane("fax")})
	assert.ErrorIs(t, err, ErrLaneUnknown)

	_, err = s.Claim(context.Background(), models.Lane("fax"), time.Now())
	assert.ErrorIs(t, err, ErrLaneUnknown)
}

func TestMemStoreRemove(t *testing.T) {
	t.Parallel()

	s := NewMemStore()
	now := time.Now()
	seedJob(t, s, "j1", now, now)

	require.NoError(t, s.Remove(context.Background(), "j1", models.LaneEmail))
	assert.ErrorIs(t, s.Remove(context.Background(), "j1", models.LaneEmail), ErrJobNotFound)
}
