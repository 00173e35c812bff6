package florence

import (
	"encoding/json"
	"fmt"
	"math"

	"vision-gateway/internal/types"
)

type boxesLabels struct {
	BBoxes       [][]float64 `json:"bboxes"`
	Labels       []string    `json:"labels"`
	BBoxesLabels []string    `json:"bboxes_labels"`
}

type quadBoxes struct {
	QuadBoxes [][]float64 `json:"quad_boxes"`
	Labels    []string    `json:"labels"`
}

type polygons struct {
	Polygons [][][]float64 `json:"polygons"`
	Labels   []string      `json:"labels"`
}

func decode(task types.TaskID, prompt string, results map[string]json.RawMessage) (*types.RawResult, error) {
	switch task {
	case types.TaskCaptionGrounding, types.TaskCaptionGroundingDetailed, types.TaskCaptionGroundingMoreDetailed:
		generic := make(map[string]any, len(results))
		for k, v := range results {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			generic[k] = val
		}
		return &types.RawResult{Kind: types.KindGeneric, Generic: generic}, nil
	}

	payload, ok := results[prompt]
	if !ok {
		return nil, fmt.Errorf("results missing %s", prompt)
	}

	switch task {
	case types.TaskDetection, types.TaskOpenVocabDetection, types.TaskCaptionToPhraseGrounding,
		types.TaskRegionProposal, types.TaskDenseRegionCaption:
		var bl boxesLabels
		if err := json.Unmarshal(payload, &bl); err != nil {
			return nil, err
		}
		dets, err := bl.detections()
		if err != nil {
			return nil, err
		}
		return &types.RawResult{Kind: types.KindDetection, Detections: dets}, nil

	case types.TaskOCR, types.TaskCaption, types.TaskCaptionDetailed, types.TaskCaptionMoreDetailed,
		types.TaskRegionCategory, types.TaskRegionDescription:
		var text string
		if err := json.Unmarshal(payload, &text); err != nil {
			return nil, err
		}
		if task == types.TaskOCR {
			return &types.RawResult{Kind: types.KindOCR, TextRegions: []types.TextRegion{{Text: text}}}, nil
		}
		return &types.RawResult{Kind: types.KindCaption, Caption: text}, nil

	case types.TaskOCRWithRegion:
		var qb quadBoxes
		if err := json.Unmarshal(payload, &qb); err != nil {
			return nil, err
		}
		if len(qb.QuadBoxes) != len(qb.Labels) {
			return nil, fmt.Errorf("ocr_with_region: %d boxes for %d labels", len(qb.QuadBoxes), len(qb.Labels))
		}
		regions := make([]types.TextRegion, 0, len(qb.Labels))
		for i, label := range qb.Labels {
			regions = append(regions, types.TextRegion{Text: label, Box: qb.QuadBoxes[i]})
		}
		return &types.RawResult{Kind: types.KindOCR, TextRegions: regions}, nil

	case types.TaskReferringSegmentation, types.TaskRegionSegmentation:
		var pl polygons
		if err := json.Unmarshal(payload, &pl); err != nil {
			return nil, err
		}
		segments := make([]types.Segment, 0, len(pl.Polygons))
		for i, polys := range pl.Polygons {
			seg := types.Segment{Polygons: polys, BBox: polygonBounds(polys)}
			if i < len(pl.Labels) {
				seg.Label = pl.Labels[i]
			}
			segments = append(segments, seg)
		}
		return &types.RawResult{Kind: types.KindSegmentation, Segments: segments}, nil
	}

	return nil, fmt.Errorf("no decoder for task %s", task)
}

func (bl boxesLabels) detections() ([]types.Detection, error) {
	labels := bl.Labels
	if len(labels) == 0 {
		labels = bl.BBoxesLabels
	}
	if len(bl.BBoxes) != len(labels) {
		return nil, fmt.Errorf("%d boxes for %d labels", len(bl.BBoxes), len(labels))
	}
	dets := make([]types.Detection, 0, len(bl.BBoxes))
	for i, b := range bl.BBoxes {
		box, err := toBox(b)
		if err != nil {
			return nil, err
		}
		dets = append(dets, types.Detection{Label: labels[i], BBox: box})
	}
	return dets, nil
}

func toBox(v []float64) (types.Box, error) {
	if len(v) != 4 {
		return types.Box{}, fmt.Errorf("bbox has %d values, want 4", len(v))
	}
	return types.Box{v[0], v[1], v[2], v[3]}, nil
}

// polygonBounds returns the axis-aligned box enclosing every polygon, each a
// flat x0, y0, x1, y1, ... list.
func polygonBounds(polys [][]float64) types.Box {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, poly := range polys {
		for i := 0; i+1 < len(poly); i += 2 {
			minX, maxX = math.Min(minX, poly[i]), math.Max(maxX, poly[i])
			minY, maxY = math.Min(minY, poly[i+1]), math.Max(maxY, poly[i+1])
		}
	}
	if math.IsInf(minX, 1) {
		return types.Box{}
	}
	return types.Box{minX, minY, maxX, maxY}
}
