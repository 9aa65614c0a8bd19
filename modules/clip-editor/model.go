package clipeditor

// TimelineItem - one scene of an exported sequence
type TimelineItem struct {
	Path      string  `json:"path"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// ExportRequest - POST /export-sequence body
type ExportRequest struct {
	Scenes []TimelineItem `json:"scenes"`
}

// EditResult - reference of the rendered video
type EditResult struct {
	VideoPath string `json:"video_path"`
}
