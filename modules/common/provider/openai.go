package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// openAICompatible calls an OpenAI style /chat/completions endpoint (OpenAI, OpenRouter).
type openAICompatible struct {
	http    *http.Client
	apiKey  string
	baseURL string
}

func buildOpenAICompatible(g *Gateway, spec providerSpec, apiKey string) (chatClient, error) {
	if spec.baseURL == "" {
		return nil, fmt.Errorf("base URL is not set")
	}
	return &openAICompatible{http: g.http, apiKey: apiKey, baseURL: spec.baseURL}, nil
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *openAICompatible) Complete(ctx context.Context, model string, messages []Message, opts Options) (*ChatResponse, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, bytes.TrimSpace(snippet))
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("api error: %s", out.Error.Message)
	}

	result := &ChatResponse{Model: out.Model}
	for _, ch := range out.Choices {
		result.Choices = append(result.Choices, Choice{
			Message:      Message{Role: ch.Message.Role, Content: ch.Message.Content},
			FinishReason: ch.FinishReason,
		})
	}
	return result, nil
}
