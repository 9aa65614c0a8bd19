package veo3

import (
	"context"
	"errors"
	"fmt"
	"log"

	"google.golang.org/genai"

	"media-studio-server/modules/common/gemini"
	"media-studio-server/modules/common/genaiclient"
)

var (
	// ErrNoVideoProduced - the operation finished without a response or without any video
	ErrNoVideoProduced = errors.New("no video produced")
	// ErrOperationFailed - the operation finished with an error payload
	ErrOperationFailed = errors.New("video operation failed")
)

// Operation - handle of a long-running video generation
type Operation struct {
	Name   string
	Done   bool
	Error  map[string]any
	Videos int

	// HasResponse is false when the finished operation carried no response at all.
	HasResponse bool

	raw *genai.GenerateVideosOperation
}

// VideoBackend - a long-running image-to-video model
type VideoBackend interface {
	Submit(ctx context.Context, prompt string, image []byte, negativePrompt string) (*Operation, error)
	Refresh(ctx context.Context, op *Operation) (*Operation, error)
	// Download returns the bytes of the first generated video of a finished operation.
	Download(ctx context.Context, op *Operation) ([]byte, error)
}

// GeminiVideoBackend - VideoBackend over genai GenerateVideos
type GeminiVideoBackend struct {
	source genaiclient.Source
	model  string
}

func NewGeminiVideoBackend(source genaiclient.Source, model string) *GeminiVideoBackend {
	return &GeminiVideoBackend{source: source, model: model}
}

func (b *GeminiVideoBackend) Submit(ctx context.Context, prompt string, image []byte, negativePrompt string) (*Operation, error) {
	client, err := b.source.Client(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("🎬 [Veo3] Submitting video generation (model: %s, image: %d bytes)", b.model, len(image))
	var cfg *genai.GenerateVideosConfig
	if negativePrompt != "" {
		cfg = &genai.GenerateVideosConfig{NegativePrompt: negativePrompt}
	}
	source := &genai.Image{ImageBytes: image, MIMEType: "image/png"}
	op, err := gemini.WithRetry(ctx, "GenerateVideos", gemini.DefaultRetry, func(ctx context.Context) (*genai.GenerateVideosOperation, error) {
		return client.Models.GenerateVideos(ctx, b.model, prompt, source, cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("video generation submit failed: %w", err)
	}
	return wrapOperation(op), nil
}

func (b *GeminiVideoBackend) Refresh(ctx context.Context, op *Operation) (*Operation, error) {
	if op == nil || op.raw == nil {
		return nil, errors.New("operation handle is empty")
	}
	client, err := b.source.Client(ctx)
	if err != nil {
		return nil, err
	}
	next, err := client.Operations.GetVideosOperation(ctx, op.raw, nil)
	if err != nil {
		return nil, fmt.Errorf("video operation refresh failed: %w", err)
	}
	return wrapOperation(next), nil
}

func (b *GeminiVideoBackend) Download(ctx context.Context, op *Operation) ([]byte, error) {
	if op == nil || op.raw == nil || op.raw.Response == nil || len(op.raw.Response.GeneratedVideos) == 0 {
		return nil, ErrNoVideoProduced
	}
	video := op.raw.Response.GeneratedVideos[0]
	if video.Video == nil {
		return nil, ErrNoVideoProduced
	}
	// Vertex returns the bytes inline; the Gemini API returns a file URI.
	if len(video.Video.VideoBytes) > 0 {
		return video.Video.VideoBytes, nil
	}
	client, err := b.source.Client(ctx)
	if err != nil {
		return nil, err
	}
	data, err := client.Files.Download(ctx, genai.NewDownloadURIFromGeneratedVideo(video), nil)
	if err != nil {
		return nil, fmt.Errorf("video download failed: %w", err)
	}
	return data, nil
}

func wrapOperation(op *genai.GenerateVideosOperation) *Operation {
	if op == nil {
		return &Operation{}
	}
	out := &Operation{
		Name:  op.Name,
		Done:  op.Done,
		Error: op.Error,
		raw:   op,
	}
	if op.Response != nil {
		out.HasResponse = true
		out.Videos = len(op.Response.GeneratedVideos)
	}
	return out
}
