package taskrunner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vision-gateway/internal/artifact"
	"vision-gateway/internal/backend"
	"vision-gateway/internal/catalog"
	"vision-gateway/internal/jobstore"
	"vision-gateway/internal/mocks"
	"vision-gateway/internal/modelrouter"
	"vision-gateway/internal/types"
	apperrors "vision-gateway/pkg/errors"
)

type fixture struct {
	store     *jobstore.Store
	artifacts *artifact.MemoryStore
	adapter   *mocks.MockAdapter
	runner    *Runner
}

func newFixture(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()
	mem := artifact.NewMemoryStore()
	f := newFixtureWithStore(t, mem, cfg, opts...)
	f.artifacts = mem
	return f
}

func newFixtureWithStore(t *testing.T, store artifact.Store, cfg Config, opts ...Option) *fixture {
	t.Helper()
	cat := catalog.MustNew()
	desc, _ := cat.Backend(types.BackendFlorence)
	adapter := &mocks.MockAdapter{Backend: types.BackendFlorence, Tasks: desc.Tasks}

	reg := backend.NewRegistry(cat)
	reg.Register(types.BackendFlorence, func() (backend.Adapter, error) { return adapter, nil })

	f := &fixture{
		store:   jobstore.New(),
		adapter: adapter,
	}
	f.runner = New(f.store, modelrouter.New(cat, reg), store, cfg, opts...)
	t.Cleanup(f.runner.Close)
	return f
}

func detectionSubmission() Submission {
	return Submission{
		Route: modelrouter.Route{Task: types.TaskDetection, Backend: types.BackendFlorence},
		Image: []byte("image-bytes"),
	}
}

func waitTerminal(t *testing.T, s *jobstore.Store, id string) *types.Job {
	t.Helper()
	var job *types.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = s.Get(id)
		return err == nil && job.Status.IsTerminal()
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func TestSubmitCompletes(t *testing.T) {
	f := newFixture(t, Config{})
	f.adapter.On("Run", mock.Anything, types.TaskDetection, []byte("image-bytes"), mock.Anything).
		Return(&types.RawResult{
			Kind:       types.KindDetection,
			Detections: []types.Detection{{Label: "car", BBox: types.Box{1, 2, 3, 4}}},
			Overlay:    []byte("overlay"),
		}, nil)

	job, err := f.runner.Submit(detectionSubmission())
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusQueued, job.Status)
	_, err = uuid.Parse(job.ID)
	assert.NoError(t, err)

	done := waitTerminal(t, f.store, job.ID)
	require.Equal(t, types.JobStatusCompleted, done.Status)
	require.NotNil(t, done.Result)
	assert.Empty(t, done.Error)
	assert.Equal(t, types.ProgressDone, done.Progress)
	assert.Equal(t, []string{"original", "overlay"}, done.Artifacts)

	res, ok := done.Result.Results.(types.DetectionResults)
	require.True(t, ok)
	assert.Equal(t, []types.Box{{1, 2, 3, 4}}, res.BBoxes)
	assert.Equal(t, []string{"car"}, res.Labels)

	overlay, err := f.artifacts.Read(context.Background(), job.ID, artifact.Overlay)
	require.NoError(t, err)
	assert.Equal(t, []byte("overlay"), overlay)
	_, err = f.artifacts.Read(context.Background(), job.ID, artifact.Mask)
	assert.True(t, apperrors.Is(err, apperrors.CodeArtifactNotFound))
}

func TestAdapterErrorFailsJob(t *testing.T) {
	f := newFixture(t, Config{})
	f.adapter.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("sidecar exploded"))

	job, err := f.runner.Submit(detectionSubmission())
	require.NoError(t, err)

	done := waitTerminal(t, f.store, job.ID)
	assert.Equal(t, types.JobStatusFailed, done.Status)
	assert.Contains(t, done.Error, "sidecar exploded")
	assert.Nil(t, done.Result)
	assert.Empty(t, done.Artifacts)
}

func TestNilResultFailsJob(t *testing.T) {
	f := newFixture(t, Config{})
	f.adapter.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	job, err := f.runner.Submit(detectionSubmission())
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusFailed, waitTerminal(t, f.store, job.ID).Status)
}

func TestPanicFailsJobWithStack(t *testing.T) {
	f := newFixture(t, Config{})
	f.adapter.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("index out of range") }).
		Return(nil, nil)

	job, err := f.runner.Submit(detectionSubmission())
	require.NoError(t, err)

	done := waitTerminal(t, f.store, job.ID)
	assert.Equal(t, types.JobStatusFailed, done.Status)
	assert.Contains(t, done.Error, "index out of range")
	assert.Contains(t, done.ErrorDetail, "goroutine")
	assert.Equal(t, 0, f.runner.InFlight())
}

func TestAtCapacityRejectsWithoutRecord(t *testing.T) {
	f := newFixture(t, Config{MaxInFlight: 1})
	release := make(chan struct{})
	f.adapter.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&types.RawResult{Kind: types.KindDetection}, nil)

	first, err := f.runner.Submit(detectionSubmission())
	require.NoError(t, err)

	_, err = f.runner.Submit(detectionSubmission())
	assert.True(t, apperrors.Is(err, apperrors.CodeAtCapacity))
	assert.Equal(t, 1, f.store.Len())

	close(release)
	assert.Equal(t, types.JobStatusCompleted, waitTerminal(t, f.store, first.ID).Status)

	require.Eventually(t, func() bool { return f.runner.InFlight() == 0 }, time.Second, 5*time.Millisecond)
	second, err := f.runner.Submit(detectionSubmission())
	require.NoError(t, err)
	waitTerminal(t, f.store, second.ID)
}

func TestJobTimeout(t *testing.T) {
	f := newFixture(t, Config{JobTimeout: 20 * time.Millisecond})
	f.adapter.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	job, err := f.runner.Submit(detectionSubmission())
	require.NoError(t, err)

	done := waitTerminal(t, f.store, job.ID)
	assert.Equal(t, types.JobStatusFailed, done.Status)
	assert.Contains(t, done.Error, "deadline exceeded")
}

// brokenStore fails or panics on writes of one artifact name and records
// deletes.
type brokenStore struct {
	*artifact.MemoryStore
	name    artifact.Name
	panics  bool
	mu      sync.Mutex
	deleted []string
}

func (s *brokenStore) Write(ctx context.Context, jobID string, name artifact.Name, data []byte) error {
	if name == s.name {
		if s.panics {
			panic("artifact backend blew up")
		}
		return apperrors.New(apperrors.CodeArtifactWrite, "Failed to write artifact")
	}
	return s.MemoryStore.Write(ctx, jobID, name, data)
}

func (s *brokenStore) Delete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, jobID)
	s.mu.Unlock()
	return s.MemoryStore.Delete(ctx, jobID)
}

func TestArtifactWriteFailureFailsJob(t *testing.T) {
	for _, panics := range []bool{false, true} {
		t.Run(fmt.Sprintf("panics=%v", panics), func(t *testing.T) {
			store := &brokenStore{MemoryStore: artifact.NewMemoryStore(), name: artifact.Overlay, panics: panics}
			f := newFixtureWithStore(t, store, Config{})
			f.adapter.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(&types.RawResult{Kind: types.KindDetection, Overlay: []byte("overlay")}, nil)

			job, err := f.runner.Submit(detectionSubmission())
			require.NoError(t, err)

			done := waitTerminal(t, f.store, job.ID)
			assert.Equal(t, types.JobStatusFailed, done.Status)
			assert.Contains(t, done.Error, "1302")
			assert.Empty(t, done.Artifacts)
			assert.Nil(t, done.Result)

			store.mu.Lock()
			assert.Equal(t, []string{job.ID}, store.deleted)
			store.mu.Unlock()
			_, err = store.Read(context.Background(), job.ID, artifact.Original)
			assert.True(t, apperrors.Is(err, apperrors.CodeArtifactNotFound))

			require.Eventually(t, func() bool { return f.runner.InFlight() == 0 }, time.Second, 5*time.Millisecond)
		})
	}
}

type recordingArchiver struct {
	mu   sync.Mutex
	jobs []*types.Job
}

func (a *recordingArchiver) Archive(job *types.Job) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jobs = append(a.jobs, job)
	return errors.New("disk full")
}

func TestTerminalHooks(t *testing.T) {
	notifier := new(mocks.MockNotifier)
	notifier.On("JobFinished", mock.Anything, mock.MatchedBy(func(j *types.Job) bool {
		return j.Status == types.JobStatusCompleted
	})).Return(errors.New("redis down")).Once()
	archiver := &recordingArchiver{}

	f := newFixture(t, Config{}, WithNotifier(notifier), WithArchiver(archiver))
	f.adapter.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&types.RawResult{Kind: types.KindDetection}, nil)

	job, err := f.runner.Submit(detectionSubmission())
	require.NoError(t, err)
	done := waitTerminal(t, f.store, job.ID)
	assert.Equal(t, types.JobStatusCompleted, done.Status, "hook errors never change job state")

	require.Eventually(t, func() bool {
		archiver.mu.Lock()
		defer archiver.mu.Unlock()
		return len(archiver.jobs) == 1
	}, time.Second, 5*time.Millisecond)
	f.runner.Close()
	notifier.AssertExpectations(t)
}

func TestClosedRunnerRejects(t *testing.T) {
	f := newFixture(t, Config{})
	f.runner.Close()
	f.runner.Close()

	_, err := f.runner.Submit(detectionSubmission())
	assert.True(t, apperrors.Is(err, apperrors.CodeRunnerStopped))
	assert.Equal(t, 0, f.store.Len())
}

func TestSweepEvictsJobsAndArtifacts(t *testing.T) {
	f := newFixture(t, Config{})
	f.adapter.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&types.RawResult{Kind: types.KindDetection}, nil)

	job, err := f.runner.Submit(detectionSubmission())
	require.NoError(t, err)
	waitTerminal(t, f.store, job.ID)

	assert.Equal(t, 0, f.runner.Sweep(time.Now().Add(-time.Hour)))
	assert.Equal(t, 1, f.runner.Sweep(time.Now().Add(time.Second)))

	_, err = f.store.Get(job.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeJobNotFound))
	_, err = f.artifacts.Read(context.Background(), job.ID, artifact.Original)
	assert.True(t, apperrors.Is(err, apperrors.CodeArtifactNotFound))
}
