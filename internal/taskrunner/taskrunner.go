package taskrunner

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"vision-gateway/internal/artifact"
	"vision-gateway/internal/jobstore"
	"vision-gateway/internal/metrics"
	"vision-gateway/internal/modelrouter"
	"vision-gateway/internal/normalize"
	"vision-gateway/internal/notify"
	"vision-gateway/internal/types"
	"vision-gateway/log"
	apperrors "vision-gateway/pkg/errors"
)

const notifyTimeout = 5 * time.Second

var (
	ErrRunnerStopped = apperrors.ErrRunnerStopped
	ErrAtCapacity    = apperrors.ErrAtCapacity
)

// Config controls in-process job execution.
type Config struct {
	// MaxInFlight bounds concurrently executing jobs. Zero means unbounded.
	MaxInFlight int
	// JobTimeout bounds a single backend call. Zero means no timeout.
	JobTimeout time.Duration
}

// Archiver persists terminal jobs.
type Archiver interface {
	Archive(job *types.Job) error
}

type Option func(*Runner)

func WithNotifier(n notify.Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

func WithArchiver(a Archiver) Option {
	return func(r *Runner) { r.archiver = a }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Runner) { r.metrics = m }
}

// Submission is a routed request ready for execution.
type Submission struct {
	Route     modelrouter.Route
	Image     []byte
	ImageType string
	Params    types.Params
}

// Runner executes each submitted job on its own goroutine.
type Runner struct {
	store     *jobstore.Store
	router    *modelrouter.Router
	artifacts artifact.Store
	notifier  notify.Notifier
	archiver  Archiver
	metrics   *metrics.Recorder
	config    Config

	slots *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	workerWg sync.WaitGroup
	inFlight int
}

// New creates a runner. It starts no goroutines until a job is submitted.
func New(store *jobstore.Store, router *modelrouter.Router, artifacts artifact.Store, cfg Config, opts ...Option) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		store:     store,
		router:    router,
		artifacts: artifacts,
		notifier:  notify.Nop{},
		config:    cfg,
		ctx:       ctx,
		cancel:    cancel,
	}
	if cfg.MaxInFlight > 0 {
		r.slots = semaphore.NewWeighted(int64(cfg.MaxInFlight))
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit creates the job record and schedules its execution without waiting
// for it. The returned snapshot is taken before execution starts, so its
// status is always queued. When MaxInFlight is reached Submit fails with
// ErrAtCapacity and no record is created.
func (r *Runner) Submit(sub Submission) (*types.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRunnerStopped
	}
	if r.slots != nil && !r.slots.TryAcquire(1) {
		r.metrics.JobRejected(r.ctx, "at_capacity")
		log.GetLogger().Warn("[JobRunner] rejected: at capacity",
			zap.String("task", string(sub.Route.Task)), zap.Int("max_in_flight", r.config.MaxInFlight))
		return nil, ErrAtCapacity.WithDetail(fmt.Sprintf("max_in_flight=%d", r.config.MaxInFlight))
	}

	job := r.store.Create(jobstore.NewRequest{
		Task:      sub.Route.Task,
		Model:     sub.Route.Backend,
		Params:    sub.Params,
		ImageType: sub.ImageType,
		ImageSize: len(sub.Image),
	})

	r.inFlight++
	r.workerWg.Add(1)
	go r.execute(job.ID, sub)

	r.metrics.JobSubmitted(r.ctx, sub.Route.Task, sub.Route.Backend)
	log.GetLogger().Info("[JobRunner] job submitted",
		zap.String("job_id", job.ID),
		zap.String("task", string(job.Task)),
		zap.String("model", string(job.Model)))
	return job, nil
}

func (r *Runner) execute(jobID string, sub Submission) {
	defer r.done()
	defer func() {
		if rec := recover(); rec != nil {
			log.GetLogger().Error("[JobRunner] job panicked",
				zap.String("job_id", jobID), zap.Any("panic", rec))
			r.fail(jobID, fmt.Errorf("panic: %v", rec), string(debug.Stack()))
		}
	}()

	if err := r.store.TransitionRunning(jobID); err != nil {
		return
	}

	ctx := r.ctx
	if r.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.JobTimeout)
		defer cancel()
	}

	adapter, err := r.router.ResolveRoute(sub.Route)
	if err != nil {
		r.fail(jobID, err, "")
		return
	}

	raw, err := adapter.Run(ctx, sub.Route.Task, sub.Image, sub.Params)
	if err != nil {
		r.fail(jobID, err, apperrors.GetDetail(err))
		return
	}
	if raw == nil {
		r.fail(jobID, apperrors.New(apperrors.CodeBackendResponse, "Backend returned no result"), string(sub.Route.Backend))
		return
	}
	_ = r.store.SetProgress(jobID, types.ProgressInferred)

	result := normalize.Normalize(raw, sub.Route.Task, sub.Route.Backend, raw.Overlay, raw.Mask)

	names, err := r.writeArtifacts(ctx, jobID, sub.Image, raw)
	if err != nil {
		r.fail(jobID, err, apperrors.GetDetail(err))
		return
	}

	job, err := r.store.Complete(jobID, result, names)
	if err != nil {
		return
	}
	log.GetLogger().Info("[JobRunner] job completed",
		zap.String("job_id", jobID),
		zap.Strings("artifacts", names),
		zap.Duration("elapsed", job.Duration()))
	r.finish(job)
}

// writeArtifacts stores the input and whatever images the backend produced,
// returning the names written in vocabulary order.
func (r *Runner) writeArtifacts(ctx context.Context, jobID string, image []byte, raw *types.RawResult) ([]string, error) {
	blobs := map[artifact.Name][]byte{
		artifact.Original: image,
		artifact.Overlay:  raw.Overlay,
		artifact.Mask:     raw.Mask,
	}

	g, gctx := errgroup.WithContext(ctx)
	names := make([]string, 0, len(artifact.Names))
	for _, name := range artifact.Names {
		data := blobs[name]
		if len(data) == 0 {
			continue
		}
		names = append(names, string(name))
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					log.GetLogger().Error("[JobRunner] artifact write panicked",
						zap.String("job_id", jobID), zap.String("name", string(name)), zap.Any("panic", rec))
					err = apperrors.WrapWithDetail(apperrors.CodeArtifactWrite, "Failed to write artifact",
						string(debug.Stack()), fmt.Errorf("panic: %v", rec))
				}
			}()
			return r.artifacts.Write(gctx, jobID, name, data)
		})
	}
	if err := g.Wait(); err != nil {
		// drop whatever was written before the failure
		if derr := r.artifacts.Delete(context.Background(), jobID); derr != nil {
			log.GetLogger().Warn("[JobRunner] artifact cleanup failed", zap.String("job_id", jobID), zap.Error(derr))
		}
		return nil, err
	}
	return names, nil
}

func (r *Runner) fail(jobID string, cause error, detail string) {
	job, err := r.store.Fail(jobID, cause.Error(), detail)
	if err != nil {
		return
	}
	log.GetLogger().Error("[JobRunner] job failed",
		zap.String("job_id", jobID),
		zap.String("task", string(job.Task)),
		zap.String("model", string(job.Model)),
		zap.Error(cause))
	r.finish(job)
}

// finish runs the terminal hooks. Hook failures are logged and never change
// the job's state.
func (r *Runner) finish(job *types.Job) {
	r.metrics.JobFinished(r.ctx, job)

	if r.archiver != nil {
		if err := r.archiver.Archive(job); err != nil {
			log.GetLogger().Warn("[JobRunner] archive failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := r.notifier.JobFinished(ctx, job); err != nil {
		log.GetLogger().Warn("[JobRunner] notify failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (r *Runner) done() {
	if r.slots != nil {
		r.slots.Release(1)
	}
	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()
	r.workerWg.Done()
}

// InFlight returns the number of jobs currently executing.
func (r *Runner) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

// Close rejects new jobs, cancels running backend calls and waits for every
// job goroutine to reach a terminal state.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.workerWg.Wait()
}
