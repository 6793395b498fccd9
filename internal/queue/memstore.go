package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"NotiFlow/internal/models"
)

// MemStore is the in-memory Store used in development mode (no
// DATABASE_URL) and in tests. It honors the same claim atomicity as the
// Postgres store via a single mutex.
type MemStore struct {
	mu   sync.Mutex
	jobs map[models.Lane]map[string]*models.Job
}

func NewMemStore() *MemStore {
	jobs := make(map[models.Lane]map[string]*models.Job, len(models.Lanes))
	for _, lane := range models.Lanes {
		jobs[lane] = make(map[string]*models.Job)
	}
	return &MemStore{jobs: jobs}
}

func (s *MemStore) laneJobs(lane models.Lane) (map[string]*models.Job, error) {
	m, ok := s.jobs[lane]
	if !ok {
		return nil, ErrLaneUnknown
	}
	return m, nil
}

func copyJob(j *models.Job) *models.Job {
	c := *j
	return &c
}

func (s *MemStore) Create(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.laneJobs(job.Lane)
	if err != nil {
		return err
	}
	m[job.ID] = copyJob(job)
	return nil
}

func (s *MemStore) Claim(_ context.Context, lane models.Lane, now time.Time) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.laneJobs(lane)
	if err != nil {
		return nil, err
	}

	var next *models.Job
	for _, j := range m {
		if j.State != models.JobWaiting || j.NextRunAt.After(now) {
			continue
		}
		if next == nil || j.NextRunAt.Before(next.NextRunAt) ||
			(j.NextRunAt.Equal(next.NextRunAt) && j.CreatedAt.Before(next.CreatedAt)) {
			next = j
		}
	}
	if next == nil {
		return nil, ErrNoEligibleJob
	}

	next.State = models.JobActive
	next.StartedAt = now
	next.UpdatedAt = now
	return copyJob(next), nil
}

func (s *MemStore) MarkCompleted(_ context.Context, id string, lane models.Lane, attempts int) error {
	return s.update(id, lane, func(j *models.Job) {
		j.State = models.JobCompleted
		j.AttemptsMade = attempts
		j.LastError = ""
	})
}

func (s *MemStore) MarkFailed(_ context.Context, id string, lane models.Lane, attempts int, lastError string) error {
	return s.update(id, lane, func(j *models.Job) {
		j.State = models.JobFailed
		j.AttemptsMade = attempts
		j.LastError = lastError
	})
}

func (s *MemStore) Reschedule(_ context.Context, id string, lane models.Lane, attempts int, nextRunAt time.Time, lastError string) error {
	return s.update(id, lane, func(j *models.Job) {
		j.State = models.JobWaiting
		j.AttemptsMade = attempts
		j.NextRunAt = nextRunAt
		j.LastError = lastError
	})
}

func (s *MemStore) update(id string, lane models.Lane, mutate func(*models.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.laneJobs(lane)
	if err != nil {
		return err
	}
	j, ok := m[id]
	if !ok {
		return ErrJobNotFound
	}
	mutate(j)
	j.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) Get(_ context.Context, id string, lane models.Lane) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.laneJobs(lane)
	if err != nil {
		return nil, err
	}
	j, ok := m[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return copyJob(j), nil
}

func (s *MemStore) Remove(_ context.Context, id string, lane models.Lane) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.laneJobs(lane)
	if err != nil {
		return err
	}
	if _, ok := m[id]; !ok {
		return ErrJobNotFound
	}
	delete(m, id)
	return nil
}

func (s *MemStore) Stats(_ context.Context) (map[models.Lane]models.LaneStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[models.Lane]models.LaneStats, len(s.jobs))
	for lane, m := range s.jobs {
		var st models.LaneStats
		for _, j := range m {
			switch j.State {
			case models.JobWaiting:
				st.Waiting++
			case models.JobActive:
				st.Active++
			case models.JobCompleted:
				st.Completed++
			case models.JobFailed:
				st.Failed++
			}
		}
		st.Total = st.Waiting + st.Active + st.Completed + st.Failed
		out[lane] = st
	}
	return out, nil
}

func (s *MemStore) Cleanup(_ context.Context, olderThan time.Time, keepCompleted, keepFailed int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, m := range s.jobs {
		removed += sweepState(m, models.JobCompleted, olderThan, keepCompleted)
		removed += sweepState(m, models.JobFailed, olderThan, keepFailed)
	}
	return removed, nil
}

// sweepState removes finished jobs in one state: everything past the
// retention cap (newest kept first) plus anything older than the
// cutoff when one is given.
func sweepState(m map[string]*models.Job, state models.JobState, olderThan time.Time, keep int) int {
	var finished []*models.Job
	for _, j := range m {
		if j.State == state {
			finished = append(finished, j)
		}
	}
	sort.Slice(finished, func(i, k int) bool {
		return finished[i].UpdatedAt.After(finished[k].UpdatedAt)
	})

	removed := 0
	for i, j := range finished {
		overCap := keep >= 0 && i >= keep
		tooOld := !olderThan.IsZero() && j.UpdatedAt.Before(olderThan)
		if overCap || tooOld {
			delete(m, j.ID)
			removed++
		}
	}
	return removed
}

func (s *MemStore) RecoverStalled(_ context.Context, stalledBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recovered := 0
	now := time.Now()
	for _, m := range s.jobs {
		for _, j := range m {
			if j.State == models.JobActive && j.StartedAt.Before(stalledBefore) {
				j.State = models.JobWaiting
				j.NextRunAt = now
				j.UpdatedAt = now
				recovered++
			}
		}
	}
	return recovered, nil
}
