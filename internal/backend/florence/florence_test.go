package florence

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vision-gateway/internal/backend"
	"vision-gateway/internal/types"
	apperrors "vision-gateway/pkg/errors"
)

type captured struct {
	task      string
	textInput string
	visualize string
	image     []byte
}

func newSidecar(t *testing.T, status int, body any) (*Adapter, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/infer", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		got.task = r.FormValue("task")
		got.textInput = r.FormValue("text_input")
		got.visualize = r.FormValue("visualize")
		if f, _, err := r.FormFile("image"); assert.NoError(t, err) {
			got.image, _ = io.ReadAll(f)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)

	a, err := New(backend.SidecarConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	return a, got
}

func TestRunDetection(t *testing.T) {
	overlay := []byte("overlay-png")
	a, got := newSidecar(t, http.StatusOK, map[string]any{
		"results": map[string]any{
			"<OD>": map[string]any{
				"bboxes": [][]float64{{1, 2, 3, 4}, {5, 6, 7, 8}},
				"labels": []string{"car", "person"},
			},
		},
		"image_bytes": base64.StdEncoding.EncodeToString(overlay),
	})

	raw, err := a.Run(context.Background(), types.TaskDetection, []byte("img"), types.Params{Visualize: true})
	require.NoError(t, err)

	assert.Equal(t, "<OD>", got.task)
	assert.Equal(t, "true", got.visualize)
	assert.Equal(t, []byte("img"), got.image)

	assert.Equal(t, types.KindDetection, raw.Kind)
	require.Len(t, raw.Detections, 2)
	assert.Equal(t, types.Box{1, 2, 3, 4}, raw.Detections[0].BBox)
	assert.Equal(t, "person", raw.Detections[1].Label)
	assert.False(t, raw.Scored)
	assert.Equal(t, overlay, raw.Overlay)
	assert.Nil(t, raw.Mask)
}

func TestRunOpenVocabUsesCategoriesAsPrompt(t *testing.T) {
	a, got := newSidecar(t, http.StatusOK, map[string]any{
		"results": map[string]any{
			"<OPEN_VOCABULARY_DETECTION>": map[string]any{
				"bboxes":        [][]float64{{0, 0, 10, 10}},
				"bboxes_labels": []string{"cat"},
			},
		},
	})

	raw, err := a.Run(context.Background(), types.TaskOpenVocabDetection, []byte("img"),
		types.Params{Categories: []string{"cat", "dog"}})
	require.NoError(t, err)
	assert.Equal(t, "cat, dog", got.textInput)
	require.Len(t, raw.Detections, 1)
	assert.Equal(t, "cat", raw.Detections[0].Label)
}

func TestRunOCRWithRegion(t *testing.T) {
	a, _ := newSidecar(t, http.StatusOK, map[string]any{
		"results": map[string]any{
			"<OCR_WITH_REGION>": map[string]any{
				"quad_boxes": [][]float64{{0, 0, 4, 0, 4, 2, 0, 2}},
				"labels":     []string{"STOP"},
			},
		},
	})

	raw, err := a.Run(context.Background(), types.TaskOCRWithRegion, []byte("img"), types.Params{})
	require.NoError(t, err)
	assert.Equal(t, types.KindOCR, raw.Kind)
	require.Len(t, raw.TextRegions, 1)
	assert.Equal(t, "STOP", raw.TextRegions[0].Text)
	assert.Len(t, raw.TextRegions[0].Box, 8)
}

func TestRunSegmentationComputesBounds(t *testing.T) {
	a, _ := newSidecar(t, http.StatusOK, map[string]any{
		"results": map[string]any{
			"<REGION_TO_SEGMENTATION>": map[string]any{
				"polygons": [][][]float64{{{1, 1, 5, 1, 5, 9, 1, 9}}},
				"labels":   []string{""},
			},
		},
	})

	raw, err := a.Run(context.Background(), types.TaskRegionSegmentation, []byte("img"), types.Params{})
	require.NoError(t, err)
	require.Len(t, raw.Segments, 1)
	assert.Equal(t, types.Box{1, 1, 5, 9}, raw.Segments[0].BBox)
}

func TestRunCaptionAndGrounding(t *testing.T) {
	a, _ := newSidecar(t, http.StatusOK, map[string]any{
		"results": map[string]any{"<DETAILED_CAPTION>": "a red car"},
	})
	raw, err := a.Run(context.Background(), types.TaskCaptionDetailed, []byte("img"), types.Params{TextInput: "x"})
	require.NoError(t, err)
	assert.Equal(t, types.KindCaption, raw.Kind)
	assert.Equal(t, "a red car", raw.Caption)

	a, _ = newSidecar(t, http.StatusOK, map[string]any{
		"results": map[string]any{
			"<CAPTION>": "a red car",
			"<CAPTION_TO_PHRASE_GROUNDING>": map[string]any{
				"bboxes": [][]float64{{1, 1, 2, 2}},
				"labels": []string{"a red car"},
			},
		},
	})
	raw, err = a.Run(context.Background(), types.TaskCaptionGrounding, []byte("img"), types.Params{TextInput: "x"})
	require.NoError(t, err)
	assert.Equal(t, types.KindGeneric, raw.Kind)
	assert.Equal(t, "a red car", raw.Generic["<CAPTION>"])
	assert.Contains(t, raw.Generic, "<CAPTION_TO_PHRASE_GROUNDING>")
}

func TestRunErrors(t *testing.T) {
	a, _ := newSidecar(t, http.StatusInternalServerError, map[string]any{"detail": "cuda oom"})
	_, err := a.Run(context.Background(), types.TaskDetection, []byte("img"), types.Params{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeBackendResponse))
	assert.Contains(t, apperrors.GetDetail(err), "500")

	a, _ = newSidecar(t, http.StatusOK, map[string]any{
		"results": map[string]any{"<OD>": map[string]any{"bboxes": [][]float64{{1, 2, 3}}, "labels": []string{"x"}}},
	})
	_, err = a.Run(context.Background(), types.TaskDetection, []byte("img"), types.Params{})
	assert.True(t, apperrors.Is(err, apperrors.CodeBackendResponse))

	_, err = a.Run(context.Background(), types.TaskKeypoint, []byte("img"), types.Params{})
	assert.True(t, apperrors.Is(err, apperrors.CodeUnsupportedTask))
}

func TestSupportedTasksExcludeRexOmniOnlyTasks(t *testing.T) {
	a := &Adapter{}
	tasks := a.SupportedTasks()
	assert.Len(t, tasks, 17)
	assert.NotContains(t, tasks, types.TaskKeypoint)
	assert.NotContains(t, tasks, types.TaskVisualPrompting)
}
