package storage

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"vision-gateway/internal/types"
	apperrors "vision-gateway/pkg/errors"
)

var errDBNotInitialized = errors.New("database not initialized")

// HistoryFromJob flattens a terminal job into its archive row.
func HistoryFromJob(job *types.Job) *types.JobHistory {
	return &types.JobHistory{
		JobId:      job.ID,
		Task:       string(job.Task),
		Model:      string(job.Model),
		Status:     job.Status.String(),
		Error:      job.Error,
		Artifacts:  strings.Join(job.Artifacts, ","),
		ImageType:  job.ImageType,
		ImageSize:  job.ImageSize,
		CreateTime: job.CreatedAt,
		StartTime:  job.StartedAt,
		FinishTime: job.FinishedAt,
		DurationMs: job.Duration().Milliseconds(),
	}
}

// SaveJobHistory upserts the archive row for job, keyed by job id.
func SaveJobHistory(job *types.Job) error {
	if DB == nil {
		return errDBNotInitialized
	}
	row := HistoryFromJob(job)

	var existing types.JobHistory
	result := DB.Where("job_id = ?", row.JobId).First(&existing)
	if result.Error == nil {
		row.Id = existing.Id
		return DB.Save(row).Error
	} else if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return DB.Create(row).Error
	}
	return result.Error
}

func GetJobHistory(limit int) ([]types.JobHistory, error) {
	if DB == nil {
		return nil, errDBNotInitialized
	}
	var rows []types.JobHistory
	if err := DB.Order("create_time desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDBError, "Database error", err)
	}
	return rows, nil
}

func GetJobHistoryByID(jobID string) (*types.JobHistory, error) {
	if DB == nil {
		return nil, errDBNotInitialized
	}
	var row types.JobHistory
	err := DB.Where("job_id = ?", jobID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrJobNotFound.WithDetail(jobID)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDBError, "Database error", err)
	}
	return &row, nil
}

// HistoryArchiver records terminal jobs in the history database.
type HistoryArchiver struct{}

func (HistoryArchiver) Archive(job *types.Job) error {
	return SaveJobHistory(job)
}
