package types

// ResultKind tags which field of RawResult an adapter populated.
type ResultKind uint8

const (
	KindGeneric ResultKind = iota
	KindDetection
	KindSegmentation
	KindOCR
	KindCaption
	KindKeypoint
)

type Detection struct {
	Label string
	BBox  Box
	Score float64
}

type Segment struct {
	Label    string
	Polygons [][]float64
	BBox     Box
	Mask     []byte
}

// TextRegion is one recognised text span. Box holds either 4 values (x1, y1,
// x2, y2) or 8 values (a quadrilateral); it is empty for plain OCR.
type TextRegion struct {
	Text string
	Box  []float64
}

type Point [2]float64

type KeypointInstance struct {
	Label  string           `json:"label"`
	BBox   Box              `json:"bbox"`
	Score  float64          `json:"score"`
	Points map[string]Point `json:"points"`
}

// RawResult is the typed output of Adapter.Run. Kind names the populated
// field; the others stay empty.
type RawResult struct {
	Kind        ResultKind
	Detections  []Detection
	// Scored reports whether Detections carry backend confidence scores.
	Scored      bool
	Segments    []Segment
	TextRegions []TextRegion
	Caption     string
	Keypoints   []KeypointInstance
	Generic     map[string]any

	// Overlay is an optional visualisation of the result drawn on the input.
	Overlay []byte
	// Mask is an optional combined mask image.
	Mask []byte
}

// CanonicalResult is the backend-agnostic envelope returned to callers.
type CanonicalResult struct {
	OK         bool      `json:"ok"`
	Task       TaskID    `json:"task"`
	Model      BackendID `json:"model"`
	ImageBytes string    `json:"image_bytes,omitempty"`
	MaskBytes  string    `json:"mask_bytes,omitempty"`
	Results    any       `json:"results"`
}

// WithoutImages returns a copy of r with the encoded images dropped.
func (r *CanonicalResult) WithoutImages() *CanonicalResult {
	cp := *r
	cp.ImageBytes = ""
	cp.MaskBytes = ""
	return &cp
}

type DetectionResults struct {
	BBoxes []Box     `json:"bboxes"`
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

type SegmentationResults struct {
	Polygons [][][]float64 `json:"polygons"`
	Labels   []string      `json:"labels"`
	BBoxes   []Box         `json:"bboxes"`
	Masks    []string      `json:"masks"`
}

type OCRResults struct {
	Text  []string    `json:"text"`
	Boxes [][]float64 `json:"boxes"`
}

type CaptionResults struct {
	Caption string `json:"caption"`
}

type KeypointResults struct {
	Keypoints []KeypointInstance `json:"keypoints"`
}
