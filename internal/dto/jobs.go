package dto

import "time"

// SubmitJobReq is the multipart form of POST /api/jobs. The image is
// uploaded as the "file" part.
type SubmitJobReq struct {
	Task         string `form:"task" binding:"required"`
	Model        string `form:"model"`
	TextInput    string `form:"text_input"`
	Categories   string `form:"categories"`
	PromptBoxes  string `form:"prompt_boxes"`
	KeypointType string `form:"keypoint_type"`
	Visualize    *bool  `form:"visualize"`
}

type SubmitJobResData struct {
	JobId  string `json:"job_id"`
	Task   string `json:"task"`
	Model  string `json:"model"`
	Status string `json:"status"`
}

type JobStatusData struct {
	JobId       string     `json:"job_id"`
	Task        string     `json:"task"`
	Model       string     `json:"model"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	Error       string     `json:"error,omitempty"`
	ErrorDetail string     `json:"error_detail,omitempty"`
	Artifacts   []string   `json:"artifacts"`
	HasResult   bool       `json:"has_result"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

type GetJobResultReq struct {
	Images *bool `form:"images"`
}

type GetBackendTasksReq struct {
	Model string `form:"model"`
}

type TaskInfo struct {
	Task           string   `json:"task"`
	RequiredInputs []string `json:"required_inputs"`
	DefaultBackend string   `json:"default_backend"`
}

type BackendTasksData struct {
	Model string     `json:"model"`
	Tasks []TaskInfo `json:"tasks"`
}

type BackendData struct {
	Id          string   `json:"id"`
	Description string   `json:"description"`
	Tasks       []string `json:"tasks"`
	Configured  bool     `json:"configured"`
	Loaded      bool     `json:"loaded"`
}

type GetJobHistoryReq struct {
	Limit int `form:"limit"`
}

type HealthData struct {
	Status   string `json:"status"`
	Jobs     int    `json:"jobs"`
	InFlight int    `json:"in_flight"`
}
