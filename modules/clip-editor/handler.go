package clipeditor

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"media-studio-server/modules/common/utils"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes - POST /trim-video, POST /export-sequence
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/trim-video", h.TrimVideo).Methods("POST", "OPTIONS")
	r.HandleFunc("/export-sequence", h.ExportSequence).Methods("POST", "OPTIONS")
	log.Println("✅ [ClipEditor] Routes registered: /trim-video, /export-sequence")
}

// TrimVideo - form fields video_path, start_time, end_time (seconds)
func (h *Handler) TrimVideo(w http.ResponseWriter, r *http.Request) {
	if err := utils.ParseForm(r); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, err := parseSeconds(r.FormValue("start_time"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid start_time: "+err.Error())
		return
	}
	end, err := parseSeconds(r.FormValue("end_time"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid end_time: "+err.Error())
		return
	}

	result, err := h.service.Trim(r.Context(), r.FormValue("video_path"), start, end)
	if err != nil {
		log.Printf("❌ [ClipEditor] Error trimming video: %v", err)
		utils.WriteError(w, utils.StatusFor(err), "Error trimming video: "+err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

// ExportSequence - JSON {"scenes":[{"path","start_time","end_time"}]}
func (h *Handler) ExportSequence(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.ExportSequence(r.Context(), req.Scenes)
	if err != nil {
		if errors.Is(err, ErrEmptySequence) {
			utils.WriteError(w, http.StatusBadRequest, ErrEmptySequence.Error())
			return
		}
		log.Printf("❌ [ClipEditor] Error exporting sequence: %v", err)
		utils.WriteError(w, utils.StatusFor(err), "Error exporting sequence: "+err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

func parseSeconds(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
