package types

import "time"

// JobHistory is the archived row of a job that reached a terminal state.
type JobHistory struct {
	Id         uint       `gorm:"primaryKey" json:"-"`
	JobId      string     `gorm:"uniqueIndex;size:64" json:"job_id"`
	Task       string     `gorm:"index" json:"task"`
	Model      string     `json:"model"`
	Status     string     `gorm:"index" json:"status"`
	Error      string     `json:"error,omitempty"`
	Artifacts  string     `json:"artifacts"`
	ImageType  string     `json:"image_type"`
	ImageSize  int        `json:"image_size"`
	CreateTime time.Time  `gorm:"index" json:"create_time"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	FinishTime *time.Time `json:"finish_time,omitempty"`
	DurationMs int64      `json:"duration_ms"`
}
