// Package vlm serves caption and open-vocabulary detection tasks through an
// OpenAI-compatible vision chat model.
package vlm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/semaphore"

	"vision-gateway/internal/backend"
	"vision-gateway/internal/types"
	apperrors "vision-gateway/pkg/errors"
	"vision-gateway/pkg/openai"
	"vision-gateway/pkg/util"
)

const DefaultModel = "gpt-4o-mini"

var captionPrompts = map[types.TaskID]string{
	types.TaskCaption:             "Describe this image in one short sentence.",
	types.TaskCaptionDetailed:     "Describe this image in a detailed paragraph.",
	types.TaskCaptionMoreDetailed: "Describe this image exhaustively: every object, its position, colours and any visible text.",
}

const detectionPrompt = `Locate every instance of the following categories in the image: %s.
Reply with only a JSON array. Each element must be {"label": <category>, "bbox": [x1, y1, x2, y2]} in pixel coordinates.
Reply with [] if nothing is found.`

// ChatClient is the slice of the OpenAI client the adapter needs.
type ChatClient interface {
	ChatWithImage(ctx context.Context, model, prompt string, image []byte) (string, error)
}

type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	Proxy         string
	MaxConcurrent int
}

type Adapter struct {
	chat  ChatClient
	model string
	slots *semaphore.Weighted
}

func New(cfg Config) (*Adapter, error) {
	client, err := openai.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Proxy)
	if err != nil {
		return nil, err
	}
	return NewWithClient(client, cfg.Model, cfg.MaxConcurrent), nil
}

func NewWithClient(chat ChatClient, model string, maxConcurrent int) *Adapter {
	if model == "" {
		model = DefaultModel
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Adapter{chat: chat, model: model, slots: semaphore.NewWeighted(int64(maxConcurrent))}
}

func Factory(cfg Config) backend.Factory {
	return func() (backend.Adapter, error) {
		return New(cfg)
	}
}

func (a *Adapter) ID() types.BackendID { return types.BackendVLM }

func (a *Adapter) SupportedTasks() []types.TaskID {
	return []types.TaskID{
		types.TaskOpenVocabDetection,
		types.TaskCaption,
		types.TaskCaptionDetailed,
		types.TaskCaptionMoreDetailed,
	}
}

func (a *Adapter) Run(ctx context.Context, task types.TaskID, image []byte, params types.Params) (*types.RawResult, error) {
	var prompt string
	if task == types.TaskOpenVocabDetection {
		prompt = fmt.Sprintf(detectionPrompt, strings.Join(params.Categories, ", "))
	} else if base, ok := captionPrompts[task]; ok {
		prompt = base
		if hint := strings.TrimSpace(params.TextInput); hint != "" {
			prompt += "\nFocus: " + hint
		}
	} else {
		return nil, apperrors.ErrUnsupportedTask.WithDetail(fmt.Sprintf("vlm: %s", task))
	}

	if err := a.slots.Acquire(ctx, 1); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeBackendFailed, "Backend inference cancelled", err)
	}
	reply, err := a.chat.ChatWithImage(ctx, a.model, prompt, image)
	a.slots.Release(1)
	if err != nil {
		return nil, apperrors.WrapWithDetail(apperrors.CodeBackendFailed, "Backend inference failed", string(types.BackendVLM), err)
	}

	if task != types.TaskOpenVocabDetection {
		return &types.RawResult{Kind: types.KindCaption, Caption: strings.TrimSpace(reply)}, nil
	}

	dets, err := parseDetections(reply)
	if err != nil {
		return nil, backend.BadResponse(types.BackendVLM, err)
	}
	return &types.RawResult{Kind: types.KindDetection, Detections: dets}, nil
}

type detection struct {
	Label string    `json:"label"`
	BBox  []float64 `json:"bbox"`
}

func parseDetections(reply string) ([]types.Detection, error) {
	var items []detection
	if err := json.Unmarshal([]byte(util.ExtractJSON(reply)), &items); err != nil {
		return nil, fmt.Errorf("parse detections: %w", err)
	}
	dets := make([]types.Detection, 0, len(items))
	for _, it := range items {
		if len(it.BBox) != 4 {
			return nil, fmt.Errorf("bbox for %q has %d values, want 4", it.Label, len(it.BBox))
		}
		dets = append(dets, types.Detection{
			Label: it.Label,
			BBox:  types.Box{it.BBox[0], it.BBox[1], it.BBox[2], it.BBox[3]},
		})
	}
	return dets, nil
}
