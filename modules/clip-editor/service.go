package clipeditor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"media-studio-server/modules/common/media"
	"media-studio-server/modules/common/storage"
	"media-studio-server/modules/common/utils"
)

// ErrEmptySequence - export called without scenes
var ErrEmptySequence = errors.New("No valid scenes to export")

var (
	trimSearchOrder   = []storage.Namespace{storage.GeneratedVideo, storage.Uploaded}
	exportSearchOrder = []storage.Namespace{storage.GeneratedVideo, storage.Uploaded, storage.GeneratedImage}
)

// Service - trim and sequence export over a media engine
type Service struct {
	engine media.Engine
	store  *storage.Store
}

func NewService(engine media.Engine, store *storage.Store) *Service {
	return &Service{engine: engine, store: store}
}

// Clamp - fit [start, end] into [0, duration]; end never precedes start
func Clamp(start, end, duration float64) (float64, float64) {
	start = math.Max(0, math.Min(start, duration))
	end = math.Max(start, math.Min(end, duration))
	return start, end
}

// Trim - cut [start, end] of a video (or uploaded media) into a new trimmed_ artifact
func (s *Service) Trim(ctx context.Context, ref string, start, end float64) (*EditResult, error) {
	if err := checkTimes(start, end); err != nil {
		return nil, err
	}
	artifact, err := s.store.ResolvePath(ref, trimSearchOrder...)
	if err != nil {
		return nil, err
	}

	src, err := s.engine.Open(ctx, artifact.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", artifact.Reference(), err)
	}
	defer release(src, artifact.Reference())

	from, to := Clamp(start, end, src.Duration())
	sub, err := src.Subclip(from, to)
	if err != nil {
		return nil, err
	}
	defer release(sub, artifact.Reference())

	out, err := s.render(ctx, sub, "trimmed_")
	if err != nil {
		return nil, err
	}
	log.Printf("✂️  [ClipEditor] Trimmed %s [%.3f, %.3f] → %s", artifact.Reference(), from, to, out.Reference())
	return &EditResult{VideoPath: out.Reference()}, nil
}

// ExportSequence - concatenate the clamped scenes in order into a new sequence_ artifact
//
// Every scene must resolve before anything is opened; one missing scene fails the whole export.
func (s *Service) ExportSequence(ctx context.Context, items []TimelineItem) (*EditResult, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %w", utils.ErrInvalidInput, ErrEmptySequence)
	}

	artifacts := make([]storage.Artifact, len(items))
	for i, item := range items {
		if err := checkTimes(item.StartTime, item.EndTime); err != nil {
			return nil, fmt.Errorf("scene %d: %w", i, err)
		}
		a, err := s.store.ResolvePath(item.Path, exportSearchOrder...)
		if err != nil {
			return nil, fmt.Errorf("scene %d: %w", i, err)
		}
		artifacts[i] = a
	}

	var opened []media.Clip
	defer func() {
		// views first, then their sources
		for i := len(opened) - 1; i >= 0; i-- {
			release(opened[i], "sequence")
		}
	}()

	subs := make([]media.Clip, 0, len(items))
	for i, item := range items {
		src, err := s.engine.Open(ctx, artifacts[i].Path)
		if err != nil {
			return nil, fmt.Errorf("scene %d: open %s: %w", i, artifacts[i].Reference(), err)
		}
		opened = append(opened, src)

		from, to := Clamp(item.StartTime, item.EndTime, src.Duration())
		sub, err := src.Subclip(from, to)
		if err != nil {
			return nil, fmt.Errorf("scene %d: %w", i, err)
		}
		opened = append(opened, sub)
		subs = append(subs, sub)
	}

	composed, err := s.engine.Compose(subs)
	if err != nil {
		return nil, err
	}
	defer release(composed, "sequence")

	out, err := s.render(ctx, composed, "sequence_")
	if err != nil {
		return nil, err
	}
	log.Printf("🎞️  [ClipEditor] Exported %d scene(s) → %s", len(items), out.Reference())
	return &EditResult{VideoPath: out.Reference()}, nil
}

// render - write clip into a pending generated_videos artifact and commit it
func (s *Service) render(ctx context.Context, clip media.Clip, prefix string) (storage.Artifact, error) {
	pending, err := s.store.Create(storage.GeneratedVideo, prefix, ".mp4")
	if err != nil {
		return storage.Artifact{}, err
	}
	if err := s.engine.Write(ctx, clip, pending.TempPath()); err != nil {
		pending.Abort()
		return storage.Artifact{}, err
	}
	return pending.Commit(ctx)
}

func checkTimes(start, end float64) error {
	for _, v := range []float64{start, end} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: time values must be finite numbers", utils.ErrInvalidInput)
		}
	}
	return nil
}

// release - close errors are logged, never returned
func release(c media.Clip, what string) {
	if err := c.Close(); err != nil {
		log.Printf("⚠️  [ClipEditor] Failed to release clip (%s): %v", what, err)
	}
}
