// Package florence adapts a Florence-2 model sidecar to the backend contract.
package florence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"vision-gateway/internal/backend"
	"vision-gateway/internal/types"
	apperrors "vision-gateway/pkg/errors"
)

const phraseGroundingPrompt = "<CAPTION_TO_PHRASE_GROUNDING>"

// prompts maps each task to the Florence-2 prompt token the sidecar expects.
// Results come back keyed by the same token.
var prompts = map[types.TaskID]string{
	types.TaskDetection:                    "<OD>",
	types.TaskOpenVocabDetection:           "<OPEN_VOCABULARY_DETECTION>",
	types.TaskOCR:                          "<OCR>",
	types.TaskOCRWithRegion:                "<OCR_WITH_REGION>",
	types.TaskCaption:                      "<CAPTION>",
	types.TaskCaptionDetailed:              "<DETAILED_CAPTION>",
	types.TaskCaptionMoreDetailed:          "<MORE_DETAILED_CAPTION>",
	types.TaskCaptionGrounding:             "<CAPTION>",
	types.TaskCaptionGroundingDetailed:     "<DETAILED_CAPTION>",
	types.TaskCaptionGroundingMoreDetailed: "<MORE_DETAILED_CAPTION>",
	types.TaskCaptionToPhraseGrounding:     phraseGroundingPrompt,
	types.TaskReferringSegmentation:        "<REFERRING_EXPRESSION_SEGMENTATION>",
	types.TaskRegionSegmentation:           "<REGION_TO_SEGMENTATION>",
	types.TaskRegionCategory:               "<REGION_TO_CATEGORY>",
	types.TaskRegionDescription:            "<REGION_TO_DESCRIPTION>",
	types.TaskRegionProposal:               "<REGION_PROPOSAL>",
	types.TaskDenseRegionCaption:           "<DENSE_REGION_CAPTION>",
}

type Adapter struct {
	sidecar *backend.Sidecar
}

func New(cfg backend.SidecarConfig) (*Adapter, error) {
	sc, err := backend.NewSidecar(types.BackendFlorence, cfg)
	if err != nil {
		return nil, err
	}
	return &Adapter{sidecar: sc}, nil
}

// Factory returns a registry factory for cfg.
func Factory(cfg backend.SidecarConfig) backend.Factory {
	return func() (backend.Adapter, error) {
		return New(cfg)
	}
}

func (a *Adapter) ID() types.BackendID { return types.BackendFlorence }

func (a *Adapter) SupportedTasks() []types.TaskID {
	return lo.Filter(types.AllTasks, func(t types.TaskID, _ int) bool {
		_, ok := prompts[t]
		return ok
	})
}

func (a *Adapter) Run(ctx context.Context, task types.TaskID, image []byte, params types.Params) (*types.RawResult, error) {
	prompt, ok := prompts[task]
	if !ok {
		return nil, apperrors.ErrUnsupportedTask.WithDetail(fmt.Sprintf("florence: %s", task))
	}

	req := backend.InferRequest{
		Task:      prompt,
		TextInput: params.TextInput,
		Visualize: params.Visualize,
	}
	if task == types.TaskOpenVocabDetection && req.TextInput == "" {
		req.TextInput = strings.Join(params.Categories, ", ")
	}

	resp, err := a.sidecar.Infer(ctx, image, req)
	if err != nil {
		return nil, err
	}

	var results map[string]json.RawMessage
	if err := json.Unmarshal(resp.Results, &results); err != nil {
		return nil, backend.BadResponse(types.BackendFlorence, err)
	}

	raw, err := decode(task, prompt, results)
	if err != nil {
		return nil, backend.BadResponse(types.BackendFlorence, err)
	}
	if raw.Overlay, raw.Mask, err = resp.Images(); err != nil {
		return nil, backend.BadResponse(types.BackendFlorence, err)
	}
	return raw, nil
}
