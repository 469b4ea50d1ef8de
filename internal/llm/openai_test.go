package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"apiagent/internal/domain"
)

func TestNewOpenAIGenerator_RequiresKey(t *testing.T) {
	_, err := NewOpenAIGenerator(Config{}, arbor.NewNoOpLogger())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNewGeminiGenerator_RequiresClient(t *testing.T) {
	_, err := NewGeminiGenerator(nil, Config{}, arbor.NewNoOpLogger())
	assert.Error(t, err)
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Messages, 1)
		gotPrompt = body.Messages[0].Content

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   body.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": `{"explanation":"ok","generated_code":"curl x"}`,
				},
			}},
		})
	}))
	defer srv.Close()

	g, err := NewOpenAIGenerator(Config{APIKey: "k", BaseURL: srv.URL, Model: "gpt-test"}, arbor.NewNoOpLogger())
	require.NoError(t, err)
	assert.Equal(t, "openai:gpt-test", g.Name())

	out, err := g.Generate(context.Background(), "how do I list users?")
	require.NoError(t, err)
	assert.Equal(t, `{"explanation":"ok","generated_code":"curl x"}`, out)
	assert.Equal(t, "how do I list users?", gotPrompt)
}

func TestOpenAIGenerator_RateLimitedWithoutRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	}))
	defer srv.Close()

	g, err := NewOpenAIGenerator(Config{APIKey: "k", BaseURL: srv.URL}, arbor.NewNoOpLogger())
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, IsRateLimitError(err))
	assert.Equal(t, 1, calls)
}
