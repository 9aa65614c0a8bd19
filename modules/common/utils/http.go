package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"media-studio-server/modules/common/provider"
	"media-studio-server/modules/common/storage"
)

// ErrInvalidInput - request validation failure (400)
var ErrInvalidInput = errors.New("invalid input")

const maxFormMemory = 32 << 20

// ParseForm - parse urlencoded or multipart bodies
func ParseForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxFormMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// WriteJSON - encode v with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️  Failed to encode response: %v", err)
	}
}

// WriteError - {"detail": message} with the given status
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"detail": message})
}

// StatusFor - HTTP status for errors shared across modules
func StatusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrRejected), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case provider.IsConfigError(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
