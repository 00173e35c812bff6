package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"vision-gateway/internal/types"
	"vision-gateway/log"
	apperrors "vision-gateway/pkg/errors"
)

const (
	inferPath             = "/v1/infer"
	defaultSidecarTimeout = 120 * time.Second
)

// SidecarConfig points an adapter at an external model server.
type SidecarConfig struct {
	BaseURL       string
	Timeout       time.Duration
	MaxConcurrent int
}

// InferRequest is the multipart form sent to a sidecar. Task is the
// backend-native task name.
type InferRequest struct {
	Task         string
	TextInput    string
	Categories   []string
	PromptBoxes  []types.Box
	KeypointType string
	Visualize    bool
}

type InferResponse struct {
	Results    json.RawMessage `json:"results"`
	ImageBytes string          `json:"image_bytes,omitempty"`
	MaskBytes  string          `json:"mask_bytes,omitempty"`
}

// Sidecar is the HTTP client shared by the sidecar-backed adapters. It holds
// MaxConcurrent slots; callers beyond that wait for a slot or their context.
type Sidecar struct {
	id     types.BackendID
	client *resty.Client
	slots  *semaphore.Weighted
}

func NewSidecar(id types.BackendID, cfg SidecarConfig) (*Sidecar, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%s: base_url is required", id)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSidecarTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Sidecar{
		id:     id,
		client: client,
		slots:  semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}, nil
}

func (s *Sidecar) Infer(ctx context.Context, image []byte, req InferRequest) (*InferResponse, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeBackendFailed, "Backend inference cancelled", err)
	}
	defer s.slots.Release(1)

	form, err := req.formData()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidParams, "Invalid backend parameters", err)
	}

	start := time.Now()
	var out InferResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetFileReader("image", "image", bytes.NewReader(image)).
		SetFormData(form).
		SetResult(&out).
		Post(inferPath)
	if err != nil {
		log.GetLogger().Error("[Sidecar] request failed",
			zap.String("backend", string(s.id)), zap.String("task", req.Task), zap.Error(err))
		return nil, apperrors.WrapWithDetail(apperrors.CodeBackendFailed, "Backend inference failed", string(s.id), err)
	}
	if resp.IsError() {
		detail := fmt.Sprintf("%s: status %d: %s", s.id, resp.StatusCode(), truncate(resp.String(), 512))
		return nil, apperrors.WrapWithDetail(apperrors.CodeBackendResponse, "Bad backend response", detail, nil)
	}
	if len(out.Results) == 0 {
		return nil, apperrors.WrapWithDetail(apperrors.CodeBackendResponse, "Bad backend response",
			fmt.Sprintf("%s: response has no results", s.id), nil)
	}

	log.GetLogger().Debug("[Sidecar] inference done",
		zap.String("backend", string(s.id)),
		zap.String("task", req.Task),
		zap.Duration("elapsed", time.Since(start)))
	return &out, nil
}

func (r InferRequest) formData() (map[string]string, error) {
	form := map[string]string{
		"task":      r.Task,
		"visualize": strconv.FormatBool(r.Visualize),
	}
	if r.TextInput != "" {
		form["text_input"] = r.TextInput
	}
	if len(r.Categories) > 0 {
		b, err := json.Marshal(r.Categories)
		if err != nil {
			return nil, err
		}
		form["categories"] = string(b)
	}
	if len(r.PromptBoxes) > 0 {
		b, err := json.Marshal(r.PromptBoxes)
		if err != nil {
			return nil, err
		}
		form["prompt_boxes"] = string(b)
	}
	if r.KeypointType != "" {
		form["keypoint_type"] = r.KeypointType
	}
	return form, nil
}

// Images decodes the optional overlay and mask carried by the response.
func (r *InferResponse) Images() (overlay, mask []byte, err error) {
	if r.ImageBytes != "" {
		if overlay, err = base64.StdEncoding.DecodeString(r.ImageBytes); err != nil {
			return nil, nil, fmt.Errorf("decode image_bytes: %w", err)
		}
	}
	if r.MaskBytes != "" {
		if mask, err = base64.StdEncoding.DecodeString(r.MaskBytes); err != nil {
			return nil, nil, fmt.Errorf("decode mask_bytes: %w", err)
		}
	}
	return overlay, mask, nil
}

// BadResponse wraps a decoding failure of a sidecar payload.
func BadResponse(id types.BackendID, err error) error {
	return apperrors.WrapWithDetail(apperrors.CodeBackendResponse, "Bad backend response", string(id), err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
