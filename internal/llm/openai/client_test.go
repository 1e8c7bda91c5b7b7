package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicediary/internal/config"
	"voicediary/internal/llm"
	"voicediary/internal/llm/openai"
)

func newTestClient(baseURL string) *openai.Client {
	return openai.NewClient(config.OpenAIConfig{
		APIKey:      "sk-test",
		BaseURL:     baseURL,
		Temperature: 0.2,
		MaxTokens:   256,
	}, nil)
}

func TestGenerate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req["model"])

		messages := req["messages"].([]any)
		require.Len(t, messages, 2)
		assert.Equal(t, "system", messages[0].(map[string]any)["role"])

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  a diary note  "}},
			},
		})
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Generate(context.Background(), "prompt", "system", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "a diary note", text)
}

func TestGenerate_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "prompt", "system", "gpt-4o")
	assert.ErrorIs(t, err, llm.ErrRateLimited)
}

func TestGenerate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "prompt", "system", "gpt-4o")
	assert.ErrorIs(t, err, llm.ErrProviderFailed)
	assert.NotErrorIs(t, err, llm.ErrRateLimited)
}

func TestGenerate_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "prompt", "system", "gpt-4o")
	assert.ErrorIs(t, err, llm.ErrProviderFailed)
}
