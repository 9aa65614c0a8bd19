package genaiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"google.golang.org/genai"
	"media-studio-server/modules/common/config"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// New - genai client for the configured backend (Gemini API key or Vertex AI)
func New(ctx context.Context, cfg *config.Config) (*genai.Client, error) {
	if cfg.GeminiBackend == config.BackendVertex {
		return newVertexClient(ctx, cfg)
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini backend")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	log.Println("✅ [Genai] Gemini API client initialized")
	return client, nil
}

func newVertexClient(ctx context.Context, cfg *config.Config) (*genai.Client, error) {
	creds, err := vertexCredentials(cfg)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:     cfg.VertexProject,
		Location:    cfg.VertexLocation,
		Backend:     genai.BackendVertexAI,
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	log.Printf("✅ [Genai] Vertex AI client initialized for project=%s, location=%s", cfg.VertexProject, cfg.VertexLocation)
	return client, nil
}

// vertexCredentials - VERTEXAI_CREDENTIALS_JSON, then VERTEXAI_CREDENTIALS_PATH, then ADC (nil)
func vertexCredentials(cfg *config.Config) (*auth.Credentials, error) {
	var credsJSON []byte
	switch {
	case cfg.VertexCredentialsJSON != "":
		log.Println("✅ [Genai] Using VERTEXAI_CREDENTIALS_JSON from environment")
		credsJSON = []byte(cfg.VertexCredentialsJSON)
	case cfg.VertexCredentialsPath != "":
		log.Printf("✅ [Genai] Using credentials from file: %s", cfg.VertexCredentialsPath)
		data, err := os.ReadFile(cfg.VertexCredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		credsJSON = data
	default:
		log.Println("⚠️  [Genai] No explicit credentials found, using Application Default Credentials")
		return nil, nil
	}

	var probe map[string]any
	if err := json.Unmarshal(credsJSON, &probe); err != nil {
		return nil, fmt.Errorf("invalid JSON credentials: %w", err)
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		Scopes:          []string{cloudPlatformScope},
		CredentialsJSON: credsJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load Vertex AI credentials: %w", err)
	}
	return creds, nil
}
