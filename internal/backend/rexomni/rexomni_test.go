package rexomni

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vision-gateway/internal/backend"
	"vision-gateway/internal/types"
	apperrors "vision-gateway/pkg/errors"
)

func newAdapter(t *testing.T, results any, form map[string]string) *Adapter {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			for k := range r.MultipartForm.Value {
				form[k] = r.FormValue(k)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	t.Cleanup(srv.Close)

	a, err := New(backend.SidecarConfig{BaseURL: srv.URL + "/", MaxConcurrent: 2})
	require.NoError(t, err)
	return a
}

func TestDetectionCarriesScores(t *testing.T) {
	form := map[string]string{}
	a := newAdapter(t, []map[string]any{
		{"label": "car", "bbox": []float64{1, 2, 3, 4}, "score": 0.9},
	}, form)

	raw, err := a.Run(context.Background(), types.TaskDetection, []byte("img"),
		types.Params{Categories: []string{"car"}})
	require.NoError(t, err)
	assert.Equal(t, "detection", form["task"])
	assert.JSONEq(t, `["car"]`, form["categories"])

	assert.True(t, raw.Scored)
	require.Len(t, raw.Detections, 1)
	assert.InDelta(t, 0.9, raw.Detections[0].Score, 1e-9)
}

func TestVisualPromptingSendsBoxes(t *testing.T) {
	form := map[string]string{}
	a := newAdapter(t, []map[string]any{}, form)

	raw, err := a.Run(context.Background(), types.TaskVisualPrompting, []byte("img"),
		types.Params{PromptBoxes: []types.Box{{1, 1, 9, 9}}})
	require.NoError(t, err)
	assert.JSONEq(t, `[[1,1,9,9]]`, form["prompt_boxes"])
	assert.NotNil(t, raw.Detections)
	assert.Empty(t, raw.Detections)
}

func TestKeypointDefaults(t *testing.T) {
	form := map[string]string{}
	a := newAdapter(t, []map[string]any{
		{"label": "person", "bbox": []float64{0, 0, 10, 20}, "keypoints": map[string][]float64{"nose": {5, 2}}},
	}, form)

	raw, err := a.Run(context.Background(), types.TaskKeypoint, []byte("img"), types.Params{})
	require.NoError(t, err)
	assert.Equal(t, "human_pose", form["keypoint_type"])
	assert.JSONEq(t, `["person"]`, form["categories"])

	require.Len(t, raw.Keypoints, 1)
	assert.Equal(t, types.Point{5, 2}, raw.Keypoints[0].Points["nose"])

	_, err = a.Run(context.Background(), types.TaskKeypoint, []byte("img"), types.Params{KeypointType: "tentacle"})
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidParams))
}

func TestOCRUsesLabelsAsText(t *testing.T) {
	a := newAdapter(t, []map[string]any{
		{"label": "EXIT", "bbox": []float64{0, 0, 4, 2}},
	}, map[string]string{})

	raw, err := a.Run(context.Background(), types.TaskOCR, []byte("img"), types.Params{})
	require.NoError(t, err)
	require.Len(t, raw.TextRegions, 1)
	assert.Equal(t, "EXIT", raw.TextRegions[0].Text)
}

func TestUnsupportedTask(t *testing.T) {
	a := &Adapter{}
	_, err := a.Run(context.Background(), types.TaskCaption, []byte("img"), types.Params{})
	assert.True(t, apperrors.Is(err, apperrors.CodeUnsupportedTask))
}

func TestParseKeypointType(t *testing.T) {
	kt, ok := ParseKeypointType("")
	assert.True(t, ok)
	assert.Equal(t, DefaultKeypointType, kt)

	kt, ok = ParseKeypointType(" Hand ")
	assert.True(t, ok)
	assert.Equal(t, "hand", kt)

	_, ok = ParseKeypointType("tentacle")
	assert.False(t, ok)
}
