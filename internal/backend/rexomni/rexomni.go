// Package rexomni adapts a Rex-Omni model sidecar to the backend contract.
package rexomni

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"vision-gateway/internal/backend"
	"vision-gateway/internal/types"
	apperrors "vision-gateway/pkg/errors"
)

const DefaultKeypointType = "human_pose"

// keypointCategories is the category prompt used when a keypoint job names
// none of its own.
var keypointCategories = map[string][]string{
	"human_pose": {"person"},
	"hand":       {"hand"},
	"animal":     {"animal"},
}

// ParseKeypointType normalizes a keypoint_type value; empty selects
// DefaultKeypointType.
func ParseKeypointType(s string) (string, bool) {
	kt := strings.ToLower(strings.TrimSpace(s))
	if kt == "" {
		kt = DefaultKeypointType
	}
	_, ok := keypointCategories[kt]
	return kt, ok
}

var supported = []types.TaskID{
	types.TaskDetection,
	types.TaskOCR,
	types.TaskVisualPrompting,
	types.TaskKeypoint,
}

type item struct {
	Label     string                 `json:"label"`
	BBox      []float64              `json:"bbox"`
	Score     *float64               `json:"score"`
	Keypoints map[string]types.Point `json:"keypoints"`
}

type Adapter struct {
	sidecar *backend.Sidecar
}

func New(cfg backend.SidecarConfig) (*Adapter, error) {
	sc, err := backend.NewSidecar(types.BackendRexOmni, cfg)
	if err != nil {
		return nil, err
	}
	return &Adapter{sidecar: sc}, nil
}

func Factory(cfg backend.SidecarConfig) backend.Factory {
	return func() (backend.Adapter, error) {
		return New(cfg)
	}
}

func (a *Adapter) ID() types.BackendID { return types.BackendRexOmni }

func (a *Adapter) SupportedTasks() []types.TaskID {
	return append([]types.TaskID(nil), supported...)
}

func (a *Adapter) Run(ctx context.Context, task types.TaskID, image []byte, params types.Params) (*types.RawResult, error) {
	req := backend.InferRequest{
		Task:       string(task),
		Categories: params.Categories,
		Visualize:  params.Visualize,
	}

	switch task {
	case types.TaskDetection, types.TaskOCR:
	case types.TaskVisualPrompting:
		req.PromptBoxes = params.PromptBoxes
	case types.TaskKeypoint:
		kt, ok := ParseKeypointType(params.KeypointType)
		if !ok {
			return nil, apperrors.ErrInvalidParams.WithDetail(fmt.Sprintf("unknown keypoint_type %q", params.KeypointType))
		}
		req.KeypointType = kt
		if len(req.Categories) == 0 {
			req.Categories = keypointCategories[kt]
		}
	default:
		return nil, apperrors.ErrUnsupportedTask.WithDetail(fmt.Sprintf("rexomni: %s", task))
	}

	resp, err := a.sidecar.Infer(ctx, image, req)
	if err != nil {
		return nil, err
	}

	var items []item
	if err := json.Unmarshal(resp.Results, &items); err != nil {
		return nil, backend.BadResponse(types.BackendRexOmni, err)
	}

	raw, err := decode(task, items)
	if err != nil {
		return nil, backend.BadResponse(types.BackendRexOmni, err)
	}
	if raw.Overlay, raw.Mask, err = resp.Images(); err != nil {
		return nil, backend.BadResponse(types.BackendRexOmni, err)
	}
	return raw, nil
}

func decode(task types.TaskID, items []item) (*types.RawResult, error) {
	switch task {
	case types.TaskOCR:
		regions := make([]types.TextRegion, 0, len(items))
		for _, it := range items {
			regions = append(regions, types.TextRegion{Text: it.Label, Box: it.BBox})
		}
		return &types.RawResult{Kind: types.KindOCR, TextRegions: regions}, nil

	case types.TaskKeypoint:
		instances := make([]types.KeypointInstance, 0, len(items))
		for _, it := range items {
			box, err := toBox(it.BBox)
			if err != nil {
				return nil, err
			}
			inst := types.KeypointInstance{Label: it.Label, BBox: box, Points: it.Keypoints}
			if it.Score != nil {
				inst.Score = *it.Score
			}
			if inst.Points == nil {
				inst.Points = map[string]types.Point{}
			}
			instances = append(instances, inst)
		}
		return &types.RawResult{Kind: types.KindKeypoint, Keypoints: instances}, nil

	default:
		dets := make([]types.Detection, 0, len(items))
		scored := len(items) > 0
		for _, it := range items {
			box, err := toBox(it.BBox)
			if err != nil {
				return nil, err
			}
			d := types.Detection{Label: it.Label, BBox: box}
			if it.Score != nil {
				d.Score = *it.Score
			} else {
				scored = false
			}
			dets = append(dets, d)
		}
		return &types.RawResult{Kind: types.KindDetection, Detections: dets, Scored: scored}, nil
	}
}

func toBox(v []float64) (types.Box, error) {
	if len(v) != 4 {
		return types.Box{}, fmt.Errorf("bbox has %d values, want 4", len(v))
	}
	return types.Box{v[0], v[1], v[2], v[3]}, nil
}
