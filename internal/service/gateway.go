package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"vision-gateway/internal/artifact"
	"vision-gateway/internal/backend"
	"vision-gateway/internal/backend/rexomni"
	"vision-gateway/internal/catalog"
	"vision-gateway/internal/dto"
	"vision-gateway/internal/jobstore"
	"vision-gateway/internal/modelrouter"
	"vision-gateway/internal/notify"
	"vision-gateway/internal/storage"
	"vision-gateway/internal/taskrunner"
	"vision-gateway/internal/types"
	"vision-gateway/log"
	apperrors "vision-gateway/pkg/errors"
)

const defaultHistoryLimit = 50

// Gateway is the request boundary of the job engine: submission, status,
// results, artifacts and catalog listings.
type Gateway struct {
	Catalog   *catalog.Catalog
	Registry  *backend.Registry
	Router    *modelrouter.Router
	Store     *jobstore.Store
	Runner    *taskrunner.Runner
	Artifacts artifact.Store

	HistoryEnabled bool
	HistoryLimit   int

	notifier notify.Notifier
}

// SubmitRequest carries an unvalidated submission.
type SubmitRequest struct {
	Task   string
	Model  string
	Image  []byte
	Params types.Params
}

// Submit validates the request against the catalog and schedules the job.
// Every validation failure is returned before a job record exists.
func (g *Gateway) Submit(req SubmitRequest) (*dto.SubmitJobResData, error) {
	route, err := g.Router.Validate(req.Task, req.Model)
	if err != nil {
		return nil, err
	}

	if missing := g.Catalog.MissingInputs(route.Task, req.Params); len(missing) > 0 {
		names := lo.Map(missing, func(f types.InputField, _ int) string { return string(f) })
		return nil, apperrors.ErrMissingField.WithDetail(strings.Join(names, ", "))
	}

	if route.Task == types.TaskKeypoint {
		kt, ok := rexomni.ParseKeypointType(req.Params.KeypointType)
		if !ok {
			return nil, apperrors.ErrInvalidParams.WithDetail("unknown keypoint_type " + strconv.Quote(req.Params.KeypointType))
		}
		req.Params.KeypointType = kt
	}

	imageType, err := checkImage(req.Image)
	if err != nil {
		return nil, err
	}

	job, err := g.Runner.Submit(taskrunner.Submission{
		Route:     route,
		Image:     req.Image,
		ImageType: imageType,
		Params:    req.Params,
	})
	if err != nil {
		return nil, err
	}

	return &dto.SubmitJobResData{
		JobId:  job.ID,
		Task:   string(job.Task),
		Model:  string(job.Model),
		Status: job.Status.String(),
	}, nil
}

func checkImage(image []byte) (string, error) {
	if len(image) == 0 {
		return "", apperrors.ErrInvalidImage.WithDetail("empty image")
	}
	mt := mimetype.Detect(image)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", apperrors.ErrInvalidImage.WithDetail("unsupported content type " + mt.String())
	}
	return mt.String(), nil
}

func (g *Gateway) Status(jobID string) (*dto.JobStatusData, error) {
	job, err := g.Store.Get(jobID)
	if err != nil {
		return nil, err
	}
	return statusData(job), nil
}

func statusData(job *types.Job) *dto.JobStatusData {
	return &dto.JobStatusData{
		JobId:       job.ID,
		Task:        string(job.Task),
		Model:       string(job.Model),
		Status:      job.Status.String(),
		Progress:    job.Progress,
		Error:       job.Error,
		ErrorDetail: job.ErrorDetail,
		Artifacts:   append([]string{}, job.Artifacts...),
		HasResult:   job.Result != nil,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		FinishedAt:  job.FinishedAt,
	}
}

// Result returns the canonical result of a completed job. With withImages
// false the encoded overlay and mask are left out.
func (g *Gateway) Result(jobID string, withImages bool) (*types.CanonicalResult, error) {
	job, err := g.Store.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != types.JobStatusCompleted || job.Result == nil {
		return nil, apperrors.ErrJobNotCompleted.WithDetail(job.Status.String())
	}
	if !withImages {
		return job.Result.WithoutImages(), nil
	}
	return job.Result, nil
}

// Artifact returns the bytes and media type of a named artifact. An unknown
// job is reported before anything about the name.
func (g *Gateway) Artifact(ctx context.Context, jobID, name string) ([]byte, string, error) {
	job, err := g.Store.Get(jobID)
	if err != nil {
		return nil, "", err
	}
	n, err := artifact.ParseName(name)
	if err != nil {
		return nil, "", err
	}
	if !lo.Contains(job.Artifacts, string(n)) {
		return nil, "", apperrors.ErrArtifactNotFound.WithDetail(string(n))
	}

	data, err := g.Artifacts.Read(ctx, job.ID, n)
	if err != nil {
		if !apperrors.Is(err, apperrors.CodeArtifactNotFound) {
			log.GetLogger().Error("[Gateway] artifact read failed",
				zap.String("job_id", job.ID), zap.String("name", string(n)), zap.Error(err))
		}
		return nil, "", err
	}
	return data, artifact.MediaType(data), nil
}

// TasksForBackend lists the tasks a backend serves. An empty model selects
// florence.
func (g *Gateway) TasksForBackend(model string) (*dto.BackendTasksData, error) {
	if strings.TrimSpace(model) == "" {
		model = string(types.BackendFlorence)
	}
	id, ok := types.ParseBackend(model)
	if !ok {
		if s := catalog.SuggestBackend(model); s != "" {
			return nil, apperrors.ErrUnknownBackend.WithDetail(model + ` (did you mean "` + s + `"?)`)
		}
		return nil, apperrors.ErrUnknownBackend.WithDetail(model)
	}
	desc, _ := g.Catalog.Backend(id)

	tasks := lo.FilterMap(desc.Tasks, func(t types.TaskID, _ int) (dto.TaskInfo, bool) {
		td, ok := g.Catalog.Task(t)
		if !ok {
			return dto.TaskInfo{}, false
		}
		return dto.TaskInfo{
			Task:           string(td.ID),
			RequiredInputs: lo.Map(td.RequiredInputs, func(f types.InputField, _ int) string { return string(f) }),
			DefaultBackend: string(td.Default),
		}, true
	})
	return &dto.BackendTasksData{Model: string(id), Tasks: tasks}, nil
}

func (g *Gateway) Backends() []dto.BackendData {
	configured := g.Registry.Configured()
	return lo.Map(g.Catalog.Backends(), func(b catalog.BackendDescriptor, _ int) dto.BackendData {
		return dto.BackendData{
			Id:          string(b.ID),
			Description: b.Description,
			Tasks:       lo.Map(b.Tasks, func(t types.TaskID, _ int) string { return string(t) }),
			Configured:  lo.Contains(configured, b.ID),
			Loaded:      g.Registry.Loaded(b.ID),
		}
	})
}

// ListJobs returns every job in the store, newest first.
func (g *Gateway) ListJobs() []*dto.JobStatusData {
	return lo.Map(g.Store.List(), func(j *types.Job, _ int) *dto.JobStatusData {
		return statusData(j)
	})
}

// History returns archived terminal jobs, newest first.
func (g *Gateway) History(limit int) ([]types.JobHistory, error) {
	if !g.HistoryEnabled {
		return []types.JobHistory{}, nil
	}
	ceiling := g.HistoryLimit
	if ceiling <= 0 {
		ceiling = defaultHistoryLimit
	}
	if limit <= 0 || limit > ceiling {
		limit = ceiling
	}
	return storage.GetJobHistory(limit)
}

func (g *Gateway) Health() *dto.HealthData {
	return &dto.HealthData{
		Status:   "ok",
		Jobs:     g.Store.Len(),
		InFlight: g.Runner.InFlight(),
	}
}
