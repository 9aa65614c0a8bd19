package veo3

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"media-studio-server/modules/common/model"
	"media-studio-server/modules/common/utils"
)

// Handler - video generation endpoints
type Handler struct {
	service *Service
	queue   JobQueue
}

// NewHandler - queue may be nil, in which case the async endpoints answer 503
func NewHandler(service *Service, queue JobQueue) *Handler {
	return &Handler{service: service, queue: queue}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/generate-video", h.GenerateVideo).Methods("POST", "OPTIONS")
	r.HandleFunc("/generate-video/enqueue", h.EnqueueVideo).Methods("POST", "OPTIONS")
	r.HandleFunc("/generate-video/status/{jobId}", h.GetJobStatus).Methods("GET", "OPTIONS")
	r.HandleFunc("/generate-video/cancel/{jobId}", h.CancelJob).Methods("POST", "OPTIONS")
	log.Println("✅ [Veo3] Routes registered: /generate-video, /generate-video/enqueue, /generate-video/status/{jobId}, /generate-video/cancel/{jobId}")
}

// GenerateVideo - form fields image_path, prompt; blocks until the video is persisted
func (h *Handler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	if err := utils.ParseForm(r); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.GenerateVideo(r.Context(), VideoRequest{
		ImagePath: r.FormValue("image_path"),
		Prompt:    r.FormValue("prompt"),
	})
	if err != nil {
		log.Printf("❌ [Veo3] Error generating video: %v", err)
		utils.WriteError(w, videoStatus(err), "Error generating video: "+err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

// EnqueueVideo - same form as GenerateVideo; returns the job ID immediately
func (h *Handler) EnqueueVideo(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		utils.WriteError(w, http.StatusServiceUnavailable, "async video jobs require Redis")
		return
	}
	if err := utils.ParseForm(r); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	imagePath := strings.TrimSpace(r.FormValue("image_path"))
	prompt := strings.TrimSpace(r.FormValue("prompt"))
	if imagePath == "" || prompt == "" {
		utils.WriteError(w, http.StatusBadRequest, "image_path and prompt are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	job, err := h.queue.Enqueue(ctx, imagePath, prompt)
	if err != nil {
		log.Printf("❌ [Veo3] Enqueue failed: %v", err)
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	queueLen, _ := h.queue.Len(ctx)
	log.Printf("📥 [Veo3] Video job %s enqueued (position: %d)", job.JobID, queueLen)

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"jobId":  job.JobID,
		"status": model.StatusPending,
	})
}

// GetJobStatus - stored job record
func (h *Handler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		utils.WriteError(w, http.StatusServiceUnavailable, "async video jobs require Redis")
		return
	}
	jobID := mux.Vars(r)["jobId"]
	job, err := h.queue.Get(r.Context(), jobID)
	if errors.Is(err, ErrJobNotFound) {
		utils.WriteError(w, http.StatusNotFound, fmt.Sprintf("Job not found: %s", jobID))
		return
	}
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, job)
}

// CancelJob - raises the cancel flag; pending jobs are marked user_cancelled right away
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		utils.WriteError(w, http.StatusServiceUnavailable, "async video jobs require Redis")
		return
	}
	ctx := r.Context()
	jobID := mux.Vars(r)["jobId"]

	job, err := h.queue.Get(ctx, jobID)
	if errors.Is(err, ErrJobNotFound) {
		utils.WriteError(w, http.StatusNotFound, fmt.Sprintf("Job not found: %s", jobID))
		return
	}
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job.Finished() {
		utils.WriteError(w, http.StatusConflict, fmt.Sprintf("Job %s already %s", jobID, job.Status))
		return
	}

	if err := h.queue.Cancel(ctx, jobID); err != nil {
		log.Printf("❌ [Veo3] Cancel failed for %s: %v", jobID, err)
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job.Status == model.StatusPending {
		job.Status = model.StatusUserCancelled
		job.UpdatedAt = time.Now().Format(time.RFC3339)
		if err := h.queue.Save(ctx, job); err != nil {
			utils.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	log.Printf("🛑 [Veo3] Cancel requested for job %s (%s)", jobID, job.Status)

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"jobId":  jobID,
		"status": job.Status,
	})
}

func videoStatus(err error) int {
	switch {
	case errors.Is(err, ErrNoVideoProduced), errors.Is(err, ErrOperationFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return utils.StatusFor(err)
}
