package generateimage

import (
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"media-studio-server/modules/common/model"
	"media-studio-server/modules/common/utils"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes - POST /generate-image
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/generate-image", h.GenerateImage).Methods("POST", "OPTIONS")
	log.Println("✅ Generate image routes registered: /generate-image")
}

// GenerateImage - form fields prompt, mode (auto|new|edit), current_image
func (h *Handler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	if err := utils.ParseForm(r); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	mode, err := model.ParseMode(r.FormValue("mode"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req := GenerateRequest{
		Prompt:       r.FormValue("prompt"),
		Mode:         mode,
		CurrentImage: r.FormValue("current_image"),
	}

	result, err := h.service.Generate(r.Context(), req)
	if err != nil {
		log.Printf("❌ [GenerateImage] Error generating image: %v", err)
		status := utils.StatusFor(err)
		if errors.Is(err, ErrNoImageProduced) {
			status = http.StatusBadGateway
		}
		utils.WriteError(w, status, "Error generating image: "+err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}
