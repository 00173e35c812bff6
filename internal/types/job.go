package types

import (
	"fmt"
	"time"
)

type JobStatus uint8

const (
	JobStatusQueued JobStatus = iota + 1
	JobStatusRunning
	JobStatusCompleted
	JobStatusFailed
)

func (s JobStatus) String() string {
	switch s {
	case JobStatusQueued:
		return "queued"
	case JobStatusRunning:
		return "running"
	case JobStatusCompleted:
		return "completed"
	case JobStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func (s JobStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *JobStatus) UnmarshalText(text []byte) error {
	for _, candidate := range []JobStatus{JobStatusQueued, JobStatusRunning, JobStatusCompleted, JobStatusFailed} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown job status %q", text)
}

// Coarse progress checkpoints. Progress is advisory and never decreases.
const (
	ProgressQueued   = 0
	ProgressRunning  = 10
	ProgressInferred = 40
	ProgressDone     = 100
)

// Job is one asynchronous execution of a task against an image.
type Job struct {
	ID          string           `json:"id"`
	Task        TaskID           `json:"task"`
	Model       BackendID        `json:"model"`
	Params      Params           `json:"params"`
	ImageType   string           `json:"image_type,omitempty"`
	ImageSize   int              `json:"image_size"`
	Status      JobStatus        `json:"status"`
	Progress    int              `json:"progress"`
	Result      *CanonicalResult `json:"-"`
	Error       string           `json:"error,omitempty"`
	ErrorDetail string           `json:"error_detail,omitempty"`
	Artifacts   []string         `json:"artifacts"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
}

// Clone returns a deep copy safe to hand to readers. Result is shared: it is
// never mutated once set.
func (j *Job) Clone() *Job {
	cp := *j
	cp.Params = j.Params.Clone()
	cp.Artifacts = append([]string{}, j.Artifacts...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}

// Duration is the execution time of a finished job, zero otherwise.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}
