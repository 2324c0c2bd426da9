// Package memstore is an in-memory JobStore used for development and
// unit tests. Postgres (internal/db) is the durable production store.
package memstore

import (
	"sort"
	"sync"
	"time"

	"github.com/mimicryml/style-transfer/internal/interfaces"
)

// Store keeps all job records in a mutex-guarded map. Safe for
// concurrent use. Records are copied on the way in and out so callers
// can never mutate a stored job without going through a transition.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*interfaces.Job
}

var _ interfaces.JobStore = (*Store)(nil)

func New() *Store {
	return &Store{jobs: make(map[string]*interfaces.Job)}
}

func (s *Store) Create(job *interfaces.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return interfaces.ErrDuplicateID
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *Store) Get(id string) (*interfaces.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, interfaces.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *Store) ListBySession(sessionID string) ([]*interfaces.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*interfaces.Job, 0)
	for _, job := range s.jobs {
		if job.SessionID == sessionID {
			cp := *job
			jobs = append(jobs, &cp)
		}
	}
	sortNewestFirst(jobs)
	return jobs, nil
}

func (s *Store) ListRecentCompleted(limit int) ([]*interfaces.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*interfaces.Job, 0)
	for _, job := range s.jobs {
		if job.Status == interfaces.StatusCompleted {
			cp := *job
			jobs = append(jobs, &cp)
		}
	}
	sortNewestFirst(jobs)
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *Store) NextPending() (*interfaces.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var oldest *interfaces.Job
	for _, job := range s.jobs {
		if job.Status != interfaces.StatusPending {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, nil
	}
	cp := *oldest
	return &cp, nil
}

func (s *Store) SetProcessing(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return interfaces.ErrNotFound
	}
	if job.Status != interfaces.StatusPending {
		return interfaces.ErrNotPending
	}
	job.Status = interfaces.StatusProcessing
	return nil
}

func (s *Store) SetCompleted(id, outputPath string, processingTime float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return interfaces.ErrNotFound
	}
	if job.Status != interfaces.StatusProcessing {
		return interfaces.ErrNotProcessing
	}
	now := time.Now()
	job.Status = interfaces.StatusCompleted
	job.OutputPath = outputPath
	job.ProcessingTime = processingTime
	job.CompletedAt = &now
	return nil
}

func (s *Store) SetFailed(id, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return interfaces.ErrNotFound
	}
	if job.Status != interfaces.StatusProcessing {
		return interfaces.ErrNotProcessing
	}
	now := time.Now()
	job.Status = interfaces.StatusFailed
	job.ErrorMessage = errorMessage
	job.CompletedAt = &now
	return nil
}

func sortNewestFirst(jobs []*interfaces.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}
