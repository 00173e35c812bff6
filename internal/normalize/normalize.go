// Package normalize maps typed adapter output onto the canonical result
// envelope. It performs no I/O.
package normalize

import (
	"encoding/base64"

	"github.com/samber/lo"

	"vision-gateway/internal/catalog"
	"vision-gateway/internal/types"
)

// Normalize builds the canonical result for raw. The sub-schema is chosen
// by the task family; an unclassified family passes the raw output through.
// overlay and mask are optional and encoded as base64.
func Normalize(raw *types.RawResult, task types.TaskID, model types.BackendID, overlay, mask []byte) *types.CanonicalResult {
	out := &types.CanonicalResult{
		OK:    true,
		Task:  task,
		Model: model,
	}
	if len(overlay) > 0 {
		out.ImageBytes = base64.StdEncoding.EncodeToString(overlay)
	}
	if len(mask) > 0 {
		out.MaskBytes = base64.StdEncoding.EncodeToString(mask)
	}
	if raw == nil {
		raw = &types.RawResult{}
	}

	switch catalog.FamilyOf(task) {
	case types.FamilyDetection:
		out.Results = detection(raw)
	case types.FamilySegmentation:
		out.Results = segmentation(raw)
	case types.FamilyOCR:
		out.Results = ocr(raw)
	case types.FamilyCaption:
		out.Results = types.CaptionResults{Caption: raw.Caption}
	case types.FamilyKeypoint:
		out.Results = types.KeypointResults{Keypoints: lo.Ternary(raw.Keypoints == nil, []types.KeypointInstance{}, raw.Keypoints)}
	default:
		out.Results = passthrough(raw)
	}
	return out
}

func detection(raw *types.RawResult) types.DetectionResults {
	res := types.DetectionResults{
		BBoxes: lo.Map(raw.Detections, func(d types.Detection, _ int) types.Box { return d.BBox }),
		Labels: lo.Map(raw.Detections, func(d types.Detection, _ int) string { return d.Label }),
		Scores: []float64{},
	}
	if raw.Scored {
		res.Scores = lo.Map(raw.Detections, func(d types.Detection, _ int) float64 { return d.Score })
	}
	return res
}

func segmentation(raw *types.RawResult) types.SegmentationResults {
	return types.SegmentationResults{
		Polygons: lo.Map(raw.Segments, func(s types.Segment, _ int) [][]float64 {
			return lo.Ternary(s.Polygons == nil, [][]float64{}, s.Polygons)
		}),
		Labels: lo.Map(raw.Segments, func(s types.Segment, _ int) string { return s.Label }),
		BBoxes: lo.Map(raw.Segments, func(s types.Segment, _ int) types.Box { return s.BBox }),
		Masks: segmentMasks(raw.Segments),
	}
}

// segmentMasks is positional with Labels: empty when no segment carries a
// mask, otherwise one entry per segment with "" where a mask is missing.
func segmentMasks(segments []types.Segment) []string {
	if !lo.SomeBy(segments, func(s types.Segment) bool { return len(s.Mask) > 0 }) {
		return []string{}
	}
	return lo.Map(segments, func(s types.Segment, _ int) string {
		if len(s.Mask) == 0 {
			return ""
		}
		return base64.StdEncoding.EncodeToString(s.Mask)
	})
}

func ocr(raw *types.RawResult) types.OCRResults {
	res := types.OCRResults{
		Text: lo.Map(raw.TextRegions, func(r types.TextRegion, _ int) string { return r.Text }),
		Boxes: [][]float64{},
	}
	// Boxes is positional with Text, so it is filled for every region or none.
	if lo.SomeBy(raw.TextRegions, func(r types.TextRegion) bool { return len(r.Box) > 0 }) {
		res.Boxes = lo.Map(raw.TextRegions, func(r types.TextRegion, _ int) []float64 {
			return lo.Ternary(r.Box == nil, []float64{}, r.Box)
		})
	}
	return res
}

// passthrough returns whatever the adapter produced, untouched.
func passthrough(raw *types.RawResult) any {
	switch raw.Kind {
	case types.KindDetection:
		return detection(raw)
	case types.KindSegmentation:
		return segmentation(raw)
	case types.KindOCR:
		return ocr(raw)
	case types.KindCaption:
		return types.CaptionResults{Caption: raw.Caption}
	case types.KindKeypoint:
		return types.KeypointResults{Keypoints: raw.Keypoints}
	}
	if raw.Generic == nil {
		return map[string]any{}
	}
	return raw.Generic
}
