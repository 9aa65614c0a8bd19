package provider

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// geminiChat maps chat messages onto genai GenerateContent.
type geminiChat struct {
	client *genai.Client
}

func buildGemini(g *Gateway, spec providerSpec, apiKey string) (chatClient, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &geminiChat{client: client}, nil
}

func (c *geminiChat) Complete(ctx context.Context, model string, messages []Message, opts Options) (*ChatResponse, error) {
	cfg := &genai.GenerateContentConfig{}
	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		switch strings.ToLower(m.Role) {
		case "system":
			system = append(system, m.Content)
		case "assistant", "model":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if opts.Temperature != nil {
		t := float32(*opts.Temperature)
		cfg.Temperature = &t
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}

	result, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, err
	}

	resp := &ChatResponse{Model: model}
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range candidate.Content.Parts {
			if part != nil && part.Text != "" && !part.Thought {
				sb.WriteString(part.Text)
			}
		}
		resp.Choices = append(resp.Choices, Choice{
			Message:      Message{Role: "assistant", Content: sb.String()},
			FinishReason: string(candidate.FinishReason),
		})
	}
	return resp, nil
}
