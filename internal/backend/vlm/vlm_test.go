package vlm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vision-gateway/internal/types"
	apperrors "vision-gateway/pkg/errors"
)

type mockChat struct {
	mock.Mock
}

func (m *mockChat) ChatWithImage(ctx context.Context, model, prompt string, image []byte) (string, error) {
	args := m.Called(ctx, model, prompt, image)
	return args.String(0), args.Error(1)
}

func TestCaption(t *testing.T) {
	chat := new(mockChat)
	chat.On("ChatWithImage", mock.Anything, "gpt-4o", "Describe this image in one short sentence.\nFocus: the dog", []byte("img")).Return("  A dog in the park. ", nil)

	a := NewWithClient(chat, "gpt-4o", 1)
	raw, err := a.Run(context.Background(), types.TaskCaption, []byte("img"), types.Params{TextInput: "the dog"})
	require.NoError(t, err)
	assert.Equal(t, types.KindCaption, raw.Kind)
	assert.Equal(t, "A dog in the park.", raw.Caption)
	chat.AssertExpectations(t)
}

func TestOpenVocabDetection(t *testing.T) {
	chat := new(mockChat)
	chat.On("ChatWithImage", mock.Anything, DefaultModel, mock.AnythingOfType("string"), mock.Anything).
		Return("```json\n[{\"label\":\"cat\",\"bbox\":[1,2,3,4]}]\n```", nil)

	a := NewWithClient(chat, "", 0)
	raw, err := a.Run(context.Background(), types.TaskOpenVocabDetection, []byte("img"),
		types.Params{Categories: []string{"cat"}})
	require.NoError(t, err)
	require.Len(t, raw.Detections, 1)
	assert.Equal(t, types.Box{1, 2, 3, 4}, raw.Detections[0].BBox)
	assert.False(t, raw.Scored)
}

func TestDetectionReplyErrors(t *testing.T) {
	chat := new(mockChat)
	chat.On("ChatWithImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("I cannot see any cats.", nil).Once()
	chat.On("ChatWithImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("429 rate limited")).Once()

	a := NewWithClient(chat, "", 1)
	_, err := a.Run(context.Background(), types.TaskOpenVocabDetection, []byte("img"), types.Params{Categories: []string{"cat"}})
	assert.True(t, apperrors.Is(err, apperrors.CodeBackendResponse))

	_, err = a.Run(context.Background(), types.TaskOpenVocabDetection, []byte("img"), types.Params{Categories: []string{"cat"}})
	assert.True(t, apperrors.Is(err, apperrors.CodeBackendFailed))

	_, err = a.Run(context.Background(), types.TaskKeypoint, []byte("img"), types.Params{})
	assert.True(t, apperrors.Is(err, apperrors.CodeUnsupportedTask))
}
