package veo3

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"media-studio-server/modules/common/cancel"
	"media-studio-server/modules/common/model"
	"media-studio-server/modules/common/storage"
	"media-studio-server/modules/common/utils"
)

// sourceSearchOrder - where the source image of a video is looked up
var sourceSearchOrder = []storage.Namespace{storage.GeneratedImage, storage.Uploaded}

// ProgressPublisher - receives poll tick events keyed by job ID
type ProgressPublisher interface {
	Publish(jobID string, event any)
}

// Service - image-to-video orchestration
type Service struct {
	backend  VideoBackend
	store    *storage.Store
	config   *Config
	progress ProgressPublisher
}

func NewService(backend VideoBackend, store *storage.Store, cfg *Config) *Service {
	return &Service{backend: backend, store: store, config: cfg}
}

// SetProgress - attach a progress publisher (nil disables publishing)
func (s *Service) SetProgress(p ProgressPublisher) {
	s.progress = p
}

// GenerateVideo - submit, poll until done, download and persist
//
// Polling has no attempt limit. It stops when the operation is done, when
// Config.Timeout elapses (if set) or when ctx is cancelled.
func (s *Service) GenerateVideo(ctx context.Context, req VideoRequest) (*VideoResult, error) {
	if strings.TrimSpace(req.ImagePath) == "" {
		return nil, fmt.Errorf("%w: image_path is required", utils.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", utils.ErrInvalidInput)
	}

	source, err := s.store.ResolvePath(req.ImagePath, sourceSearchOrder...)
	if err != nil {
		return nil, err
	}
	raw, err := s.store.ReadFile(source)
	if err != nil {
		return nil, err
	}
	image, err := utils.NormalizeToPNG(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: source image is not decodable: %v", utils.ErrInvalidInput, err)
	}

	if s.config.Timeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, s.config.Timeout)
		defer stop()
	}

	op, err := s.backend.Submit(ctx, req.Prompt, image, s.config.NegativePrompt)
	if err != nil {
		s.publish(req.JobID, 0, true, terminalStatus(ctx))
		return nil, err
	}
	log.Printf("⏳ [Veo3] Operation started: %s (source: %s)", op.Name, source.Reference())

	attempt := 0
	for !op.Done {
		attempt++
		s.publish(req.JobID, attempt, false, model.StatusProcessing)
		if err := sleepContext(ctx, s.config.PollInterval); err != nil {
			s.publish(req.JobID, attempt, true, terminalStatus(ctx))
			return nil, fmt.Errorf("video generation interrupted after %d polls: %w", attempt, err)
		}
		if op, err = s.backend.Refresh(ctx, op); err != nil {
			s.publish(req.JobID, attempt, true, terminalStatus(ctx))
			return nil, err
		}
	}

	if op.Error != nil {
		s.publish(req.JobID, attempt, true, model.StatusFailed)
		return nil, fmt.Errorf("%w: %v", ErrOperationFailed, op.Error)
	}
	if !op.HasResponse || op.Videos == 0 {
		s.publish(req.JobID, attempt, true, model.StatusFailed)
		return nil, ErrNoVideoProduced
	}

	data, err := s.backend.Download(ctx, op)
	if err != nil {
		s.publish(req.JobID, attempt, true, model.StatusFailed)
		return nil, err
	}
	artifact, err := s.store.Put(ctx, storage.GeneratedVideo, data, ".mp4")
	if err != nil {
		s.publish(req.JobID, attempt, true, model.StatusFailed)
		return nil, err
	}

	s.publish(req.JobID, attempt, true, model.StatusCompleted)
	log.Printf("✅ [Veo3] Video saved after %d polls: %s", attempt, artifact.Reference())
	return &VideoResult{VideoPath: artifact.Reference()}, nil
}

func (s *Service) publish(jobID string, attempt int, done bool, status string) {
	if s.progress == nil || jobID == "" {
		return
	}
	s.progress.Publish(jobID, ProgressEvent{
		Type:    progressEventType,
		JobID:   jobID,
		Attempt: attempt,
		Done:    done,
		Status:  status,
	})
}

// terminalStatus - status reported to subscribers when the call ends early
func terminalStatus(ctx context.Context) string {
	if cancel.Cancelled(ctx) {
		return model.StatusUserCancelled
	}
	return model.StatusFailed
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
