// Package jobstore keeps job records in memory and enforces the job state
// machine: queued -> running -> completed | failed.
package jobstore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vision-gateway/internal/types"
	"vision-gateway/log"
	apperrors "vision-gateway/pkg/errors"
)

// Store is safe for concurrent use. Every read returns a private snapshot,
// so callers never observe a record mid-update.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*types.Job

	now   func() time.Time
	newID func() string
}

func New() *Store {
	return &Store{
		jobs:  make(map[string]*types.Job),
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// NewRequest describes a job at submission time.
type NewRequest struct {
	Task      types.TaskID
	Model     types.BackendID
	Params    types.Params
	ImageType string
	ImageSize int
}

// Create registers a queued job under a fresh id and returns its snapshot.
func (s *Store) Create(req NewRequest) *types.Job {
	job := &types.Job{
		ID:        s.newID(),
		Task:      req.Task,
		Model:     req.Model,
		Params:    req.Params.Clone(),
		ImageType: req.ImageType,
		ImageSize: req.ImageSize,
		Status:    types.JobStatusQueued,
		Progress:  types.ProgressQueued,
		Artifacts: []string{},
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if _, exists := s.jobs[job.ID]; !exists {
			break
		}
		job.ID = s.newID()
	}
	s.jobs[job.ID] = job
	return job.Clone()
}

func (s *Store) Get(id string) (*types.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, apperrors.ErrJobNotFound.WithDetail(id)
	}
	return job.Clone(), nil
}

// TransitionRunning moves a queued job to running.
func (s *Store) TransitionRunning(id string) error {
	_, err := s.mutate(id, func(job *types.Job) error {
		if job.Status != types.JobStatusQueued {
			return illegal(job, types.JobStatusRunning)
		}
		now := s.now()
		job.Status = types.JobStatusRunning
		job.StartedAt = &now
		job.Progress = max(job.Progress, types.ProgressRunning)
		return nil
	})
	return err
}

// SetProgress raises the progress of a running job. Lower values are ignored.
func (s *Store) SetProgress(id string, progress int) error {
	_, err := s.mutate(id, func(job *types.Job) error {
		if job.Status != types.JobStatusRunning {
			return illegal(job, job.Status)
		}
		job.Progress = max(job.Progress, min(progress, types.ProgressDone))
		return nil
	})
	return err
}

// Complete records the result of a running job.
func (s *Store) Complete(id string, result *types.CanonicalResult, artifacts []string) (*types.Job, error) {
	return s.mutate(id, func(job *types.Job) error {
		if job.Status != types.JobStatusRunning {
			return illegal(job, types.JobStatusCompleted)
		}
		if result == nil {
			return apperrors.ErrIllegalTransition.WithDetail(fmt.Sprintf("job %s: completed without result", job.ID))
		}
		now := s.now()
		job.Status = types.JobStatusCompleted
		job.Progress = types.ProgressDone
		job.Result = result
		job.Artifacts = append([]string{}, artifacts...)
		job.FinishedAt = &now
		return nil
	})
}

// Fail records an error on a queued or running job.
func (s *Store) Fail(id, message, detail string) (*types.Job, error) {
	return s.mutate(id, func(job *types.Job) error {
		if job.Status.IsTerminal() {
			return illegal(job, types.JobStatusFailed)
		}
		if message == "" {
			message = "unknown error"
		}
		now := s.now()
		job.Status = types.JobStatusFailed
		job.Error = message
		job.ErrorDetail = detail
		job.FinishedAt = &now
		return nil
	})
}

// List returns snapshots of every job, newest first.
func (s *Store) List() []*types.Job {
	s.mu.RLock()
	out := make([]*types.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Evict removes terminal jobs that finished before cutoff and returns their ids.
func (s *Store) Evict(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for id, job := range s.jobs {
		if job.Status.IsTerminal() && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Delete drops a record regardless of state. Used to roll back a job whose
// execution could not be scheduled.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *Store) mutate(id string, fn func(job *types.Job) error) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, apperrors.ErrJobNotFound.WithDetail(id)
	}
	// Mutate a copy so a rejected change leaves the record untouched.
	next := job.Clone()
	if err := fn(next); err != nil {
		if apperrors.Is(err, apperrors.CodeIllegalTransition) {
			log.GetLogger().Error("[JobStore] illegal transition",
				zap.String("job_id", id), zap.String("detail", apperrors.GetDetail(err)))
		}
		return nil, err
	}
	s.jobs[id] = next
	return next.Clone(), nil
}

func illegal(job *types.Job, to types.JobStatus) error {
	return apperrors.ErrIllegalTransition.WithDetail(fmt.Sprintf("job %s: %s -> %s", job.ID, job.Status, to))
}
