package veo3

import "media-studio-server/modules/common/model"

// VideoRequest - image-to-video request
type VideoRequest struct {
	ImagePath string
	Prompt    string
	// JobID is set for queued jobs; progress events are published under it.
	JobID string
}

// VideoResult - reference of the persisted video
type VideoResult struct {
	VideoPath string `json:"video_path"`
}

// VideoJob - async job record stored in Redis
type VideoJob struct {
	JobID        string `json:"jobId"`
	ImagePath    string `json:"imagePath"`
	Prompt       string `json:"prompt"`
	Status       string `json:"status"` // "pending", "processing", "completed", "failed", "user_cancelled"
	VideoPath    string `json:"videoPath,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

// Finished - completed, failed or cancelled
func (j *VideoJob) Finished() bool {
	switch j.Status {
	case model.StatusCompleted, model.StatusFailed, model.StatusUserCancelled:
		return true
	}
	return false
}

// ProgressEvent - published on every poll tick
type ProgressEvent struct {
	Type    string `json:"type"`
	JobID   string `json:"jobId"`
	Attempt int    `json:"attempt"`
	Done    bool   `json:"done"`
	Status  string `json:"status"`
}

const progressEventType = "video_progress"
