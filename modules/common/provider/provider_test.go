package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func newChatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestCallOpenRouter(t *testing.T) {
	var got chatCompletionRequest
	srv := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"x-ai/grok-4-fast","choices":[{"message":{"role":"assistant","content":" Edit "},"finish_reason":"stop"}]}`))
	})

	g := NewGateway(
		WithEnv(envOf(map[string]string{"OPENROUTER_API_KEY": "or-key"})),
		WithBaseURL(OpenRouter, srv.URL),
	)
	temp := 0.0
	resp, err := g.Call(context.Background(), "x-ai/grok-4-fast", []Message{
		{Role: "system", Content: "classify"},
		{Role: "user", Content: "make it blue"},
	}, "OpenRouter", Options{Temperature: &temp, MaxTokens: 5})
	require.NoError(t, err)

	assert.Equal(t, " Edit ", resp.Text())
	assert.Equal(t, OpenRouter, resp.Provider)
	assert.Equal(t, "x-ai/grok-4-fast", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, 5, got.MaxTokens)
	require.NotNil(t, got.Temperature)
}

func TestCallMissingCredential(t *testing.T) {
	g := NewGateway(WithEnv(envOf(nil)))
	_, err := g.Call(context.Background(), "gpt-4o-mini", nil, OpenAI, Options{})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.False(t, errors.Is(err, ErrNoResult))
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
	assert.Empty(t, g.Cached())
}

func TestCallUnsupportedProvider(t *testing.T) {
	g := NewGateway(WithEnv(envOf(map[string]string{"OPENAI_API_KEY": "k"})))
	_, err := g.Call(context.Background(), "m", nil, "anthropic", Options{})
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "anthropic", cfgErr.Provider)
}

func TestUpstreamFailuresCollapseToNoResult(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"malformed body": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices": [`))
		},
		"api error": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":{"message":"quota"}}`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newChatServer(t, handler)
			g := NewGateway(
				WithEnv(envOf(map[string]string{"OPENAI_API_KEY": "k"})),
				WithBaseURL(OpenAI, srv.URL),
			)
			resp, err := g.Call(context.Background(), "m", []Message{{Role: "user", Content: "hi"}}, OpenAI, Options{})
			assert.Nil(t, resp)
			assert.True(t, errors.Is(err, ErrNoResult))
			assert.False(t, IsConfigError(err))
		})
	}
}

func TestClientInitializedOnce(t *testing.T) {
	var lookups atomic.Int32
	srv := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"new"}}]}`))
	})
	g := NewGateway(
		WithEnv(func(key string) string {
			lookups.Add(1)
			return "k"
		}),
		WithBaseURL(OpenRouter, srv.URL),
	)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Call(context.Background(), "m", nil, OpenRouter, Options{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), lookups.Load())
	assert.Equal(t, []string{OpenRouter}, g.Cached())
}

func TestProviders(t *testing.T) {
	g := NewGateway()
	assert.Equal(t, []string{Gemini, OpenAI, OpenRouter}, g.Providers())
}

func TestChatResponseText(t *testing.T) {
	var nilResp *ChatResponse
	assert.Equal(t, "", nilResp.Text())
	assert.Equal(t, "", (&ChatResponse{}).Text())
}
