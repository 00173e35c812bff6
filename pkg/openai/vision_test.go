package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatWithImage(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"a cat on a mat"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/v1", "sk-test", "")
	require.NoError(t, err)

	png := []byte("\x89PNG\r\n\x1a\n0000")
	got, err := c.ChatWithImage(context.Background(), "gpt-4o-mini", "describe", png)
	require.NoError(t, err)
	assert.Equal(t, "a cat on a mat", got)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	raw, _ := json.Marshal(body["messages"])
	assert.True(t, strings.Contains(string(raw), "data:image/png;base64,"))
}

func TestNewClientRejectsBadProxy(t *testing.T) {
	_, err := NewClient("", "k", "://bad")
	assert.Error(t, err)
}
