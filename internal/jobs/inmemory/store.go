package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/finance-bot/internal/jobs"
)

// DefaultMaxJobs is how many jobs the store remembers.
const DefaultMaxJobs = 1000

// Store is an in-memory JobStore holding the most recent jobs.
// It is safe for concurrent use; data is lost on restart.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*jobs.UpdateJob
	order   []string
	maxJobs int
}

// NewStore creates a store remembering up to maxJobs jobs. Zero or less
// means DefaultMaxJobs.
func NewStore(maxJobs int) *Store {
	if maxJobs <= 0 {
		maxJobs = DefaultMaxJobs
	}
	return &Store{
		jobs:    make(map[string]*jobs.UpdateJob),
		maxJobs: maxJobs,
	}
}

// SaveJob implements the JobStore interface. The oldest job is evicted
// once the store is full.
func (s *Store) SaveJob(ctx context.Context, job *jobs.UpdateJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.JobID]; !exists {
		s.order = append(s.order, job.JobID)
		for len(s.order) > s.maxJobs {
			delete(s.jobs, s.order[0])
			s.order = s.order[1:]
		}
	}

	// Create a copy to avoid external modifications
	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy

	return nil
}

// GetJob implements the JobStore interface.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.UpdateJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs implements the JobStore interface.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.UpdateJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*jobs.UpdateJob{}

	for _, job := range s.jobs {
		if filter.Kind != "" && job.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}

		jobCopy := *job
		result = append(result, &jobCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.UpdateJob{}, nil
		}
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Len returns the number of remembered jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Ensure Store implements JobStore interface.
var _ jobs.JobStore = (*Store)(nil)
