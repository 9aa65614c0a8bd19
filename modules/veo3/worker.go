package veo3

import (
	"context"
	"errors"
	"log"
	"time"

	"media-studio-server/modules/common/cancel"
	"media-studio-server/modules/common/model"
)

const (
	workerRetryDelay    = 5 * time.Second
	cancelCheckInterval = 2 * time.Second
)

// Worker - drains the jobs:video queue one job at a time
type Worker struct {
	queue       JobQueue
	service     *Service
	cancelCheck time.Duration
}

func NewWorker(queue JobQueue, service *Service) *Worker {
	return &Worker{queue: queue, service: service, cancelCheck: cancelCheckInterval}
}

// Start - blocks until ctx is cancelled
func (w *Worker) Start(ctx context.Context) {
	log.Println("🔄 [Veo3 Worker] Starting video queue worker...")
	log.Printf("👀 [Veo3 Worker] Watching queue: %s", videoQueueKey)

	for {
		jobID, err := w.queue.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("🛑 [Veo3 Worker] Stopped")
				return
			}
			log.Printf("❌ [Veo3 Worker] Queue error: %v", err)
			if sleepContext(ctx, workerRetryDelay) != nil {
				return
			}
			continue
		}

		log.Printf("🎯 [Veo3 Worker] Received video job: %s", jobID)
		w.processJob(ctx, jobID)
	}
}

// processJob - pending -> processing -> completed|failed|user_cancelled
func (w *Worker) processJob(ctx context.Context, jobID string) {
	job, err := w.queue.Get(ctx, jobID)
	if err != nil {
		log.Printf("❌ [Veo3 Worker] Failed to fetch job %s: %v", jobID, err)
		return
	}
	if job.Finished() {
		log.Printf("⚠️  [Veo3 Worker] Job %s already %s, skipping", jobID, job.Status)
		return
	}
	if w.queue.IsJobCancelled(ctx, jobID) {
		w.update(ctx, job, model.StatusUserCancelled, "", "")
		log.Printf("🛑 [Veo3 Worker] Job %s cancelled before start", jobID)
		return
	}

	w.update(ctx, job, model.StatusProcessing, "", "")

	jobCtx, stop := cancel.Watch(ctx, w.queue, jobID, w.cancelCheck)
	defer stop()

	result, err := w.service.GenerateVideo(jobCtx, VideoRequest{
		ImagePath: job.ImagePath,
		Prompt:    job.Prompt,
		JobID:     job.JobID,
	})
	if err != nil {
		if cancel.Cancelled(jobCtx) {
			log.Printf("🛑 [Veo3 Worker] Job %s cancelled by user", jobID)
			w.update(ctx, job, model.StatusUserCancelled, "", "")
			return
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			// shutting down; leave the record as processing
			log.Printf("🛑 [Veo3 Worker] Job %s interrupted by shutdown", jobID)
			return
		}
		log.Printf("❌ [Veo3 Worker] Job %s failed: %v", jobID, err)
		w.update(ctx, job, model.StatusFailed, "", err.Error())
		return
	}

	w.update(ctx, job, model.StatusCompleted, result.VideoPath, "")
	log.Printf("✅ [Veo3] Video job %s completed", jobID)
}

func (w *Worker) update(ctx context.Context, job *VideoJob, status, videoPath, errMsg string) {
	job.Status = status
	job.VideoPath = videoPath
	job.ErrorMessage = errMsg
	job.UpdatedAt = time.Now().Format(time.RFC3339)
	if err := w.queue.Save(ctx, job); err != nil {
		log.Printf("⚠️  [Veo3 Worker] Failed to update job %s: %v", job.JobID, err)
	}
}
