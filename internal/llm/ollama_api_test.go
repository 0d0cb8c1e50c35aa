package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaComplete(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"qwen","response":"{\"action\":\"list_repos\"}","done":true,"prompt_eval_count":12,"eval_count":7}`))
	}))
	defer srv.Close()

	temp := 0.1
	client := NewOllamaAPIClient(srv.URL+"/", "qwen")
	resp, err := client.Complete(context.Background(), CompletionRequest{
		System:      "be terse",
		Prompt:      "list my repos",
		Temperature: &temp,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"action":"list_repos"}`, resp.Content)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, 7, resp.Usage.OutputTokens)

	assert.Equal(t, "qwen", got.Model)
	assert.Equal(t, "list my repos", got.Prompt)
	assert.Equal(t, "be terse", got.System)
	assert.False(t, got.Stream)
	require.NotNil(t, got.Options)
	require.NotNil(t, got.Options.Temperature)
	assert.InDelta(t, 0.1, *got.Options.Temperature, 1e-9)
}

func TestOllamaComplete_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'nope' not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaAPIClient(srv.URL, "nope").Complete(context.Background(), CompletionRequest{Prompt: "x"})
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, 404, provErr.Code)
	assert.Equal(t, "ollama", provErr.Provider)
	assert.Contains(t, provErr.Message, "not found")
}

func TestOllamaComplete_ErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"out of memory"}`))
	}))
	defer srv.Close()

	_, err := NewOllamaAPIClient(srv.URL, "m").Complete(context.Background(), CompletionRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
}

func TestOllamaComplete_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOllamaAPIClient(url, "m").Complete(context.Background(), CompletionRequest{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, isRetryable(err))
}

func TestOllamaListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"qwen2.5-coder:7b"},{"name":"llama3:8b"}]}`))
	}))
	defer srv.Close()

	models, err := NewOllamaAPIClient(srv.URL, "m").ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"qwen2.5-coder:7b", "llama3:8b"}, models)
}

func TestOllamaDefaultBaseURL(t *testing.T) {
	client := NewOllamaAPIClient("", "m")
	assert.Equal(t, "http://localhost:11434", client.baseURL)
	assert.Equal(t, "ollama", client.Name())
}
