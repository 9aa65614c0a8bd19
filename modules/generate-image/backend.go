package generateimage

import (
	"context"
	"errors"
	"fmt"
	"log"

	"google.golang.org/genai"

	"media-studio-server/modules/common/gemini"
	"media-studio-server/modules/common/genaiclient"
)

// ErrNoImageProduced - the model answered without an inline image
var ErrNoImageProduced = errors.New("no image produced")

// ImageBackend - a generative image model
type ImageBackend interface {
	// GenerateImage returns the first inline image payload, or ErrNoImageProduced.
	GenerateImage(ctx context.Context, prompt string, reference *ReferenceImage) ([]byte, error)
}

// GeminiImageBackend - ImageBackend over genai GenerateContent
type GeminiImageBackend struct {
	source genaiclient.Source
	model  string
}

// NewGeminiImageBackend - backend for the given image model (e.g. gemini-2.5-flash-image-preview)
func NewGeminiImageBackend(source genaiclient.Source, model string) *GeminiImageBackend {
	return &GeminiImageBackend{source: source, model: model}
}

func (b *GeminiImageBackend) GenerateImage(ctx context.Context, prompt string, reference *ReferenceImage) ([]byte, error) {
	client, err := b.source.Client(ctx)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if reference != nil {
		parts = append(parts, genai.NewPartFromBytes(reference.Data, reference.MIMEType))
	}

	log.Printf("🎨 [GenerateImage] Calling Gemini API (model: %s, reference: %v)", b.model, reference != nil)
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
	result, err := gemini.WithRetry(ctx, "GenerateContent", gemini.DefaultRetry, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return client.Models.GenerateContent(ctx, b.model, contents, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				log.Printf("✅ [GenerateImage] Received image from Gemini: %d bytes", len(part.InlineData.Data))
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, ErrNoImageProduced
}
