package generateimage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"media-studio-server/modules/common/model"
	"media-studio-server/modules/common/storage"
	"media-studio-server/modules/common/utils"
)

// editSearchOrder - where an edit reference is looked up
var editSearchOrder = []storage.Namespace{storage.GeneratedImage, storage.Uploaded}

// IntentClassifier - resolves auto mode
type IntentClassifier interface {
	Classify(ctx context.Context, prompt string) model.Intent
}

// Service - synchronous image generation
type Service struct {
	backend    ImageBackend
	classifier IntentClassifier
	store      *storage.Store
}

func NewService(backend ImageBackend, classifier IntentClassifier, store *storage.Store) *Service {
	return &Service{backend: backend, classifier: classifier, store: store}
}

// Generate - classify (auto mode), attach the reference image (edit mode), generate and persist
//
// An edit whose reference is missing or unresolvable is downgraded to new.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", utils.ErrInvalidInput)
	}

	intent := model.Intent(req.Mode)
	if req.Mode == "" || req.Mode == model.ModeAuto {
		intent = s.classifier.Classify(ctx, req.Prompt)
	}

	var reference *ReferenceImage
	if intent == model.IntentEdit {
		ref, err := s.loadReference(req.CurrentImage)
		if err != nil {
			log.Printf("⚠️  [GenerateImage] Edit reference unavailable (%v), generating new image", err)
			intent = model.IntentNew
		} else {
			reference = ref
		}
	}

	data, err := s.backend.GenerateImage(ctx, req.Prompt, reference)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNoImageProduced
	}

	pngData, err := utils.NormalizeToPNG(data)
	if err != nil {
		return nil, fmt.Errorf("generated image is not decodable: %w", err)
	}
	artifact, err := s.store.Put(ctx, storage.GeneratedImage, pngData, ".png")
	if err != nil {
		return nil, err
	}

	log.Printf("✅ [GenerateImage] %s image saved: %s", intent, artifact.Reference())
	return &GenerateResult{ImagePath: artifact.Reference(), RequestType: intent}, nil
}

func (s *Service) loadReference(raw string) (*ReferenceImage, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("no current image given")
	}
	artifact, err := s.store.ResolvePath(raw, editSearchOrder...)
	if err != nil {
		return nil, err
	}
	data, err := s.store.ReadFile(artifact)
	if err != nil {
		return nil, err
	}
	pngData, err := utils.NormalizeToPNG(data)
	if err != nil {
		return nil, err
	}
	return &ReferenceImage{Data: pngData, MIMEType: "image/png"}, nil
}
