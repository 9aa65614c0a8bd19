package files

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"media-studio-server/modules/common/storage"
	"media-studio-server/modules/common/utils"
)

const maxUploadBytes = 32 << 20

// FileEntry - one row of GET /list-files
type FileEntry struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Type     string `json:"type"` // "image" | "video"
}

// FileListing - GET /list-files response
type FileListing struct {
	Images []FileEntry `json:"images"`
	Videos []FileEntry `json:"videos"`
}

// DeleteRequest - POST /delete-file body
type DeleteRequest struct {
	Path string `json:"path"`
}

// Handler - upload, listing, deletion and retrieval of artifacts
type Handler struct {
	store *storage.Store
}

func NewHandler(store *storage.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes - /upload-image, /list-files, /delete-file and the namespace file routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/upload-image", h.UploadImage).Methods("POST", "OPTIONS")
	r.HandleFunc("/list-files", h.ListFiles).Methods("GET", "OPTIONS")
	r.HandleFunc("/delete-file", h.DeleteFile).Methods("POST", "OPTIONS")

	dirs := make([]string, 0, 3)
	for _, ns := range storage.Namespaces() {
		dirs = append(dirs, ns.DefaultDir())
	}
	pattern := fmt.Sprintf("/{dir:%s}/{filename}", strings.Join(dirs, "|"))
	r.HandleFunc(pattern, h.ServeFile).Methods("GET", "HEAD", "OPTIONS")
	log.Printf("✅ [Files] Routes registered: /upload-image, /list-files, /delete-file, %s", pattern)
}

// UploadImage - multipart field "file"; stored as PNG in uploaded_images
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		utils.WriteError(w, http.StatusBadRequest, "File must be an image")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "failed to read upload: "+err.Error())
		return
	}
	pngData, err := utils.NormalizeToPNG(data)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "File must be an image")
		return
	}

	artifact, err := h.store.Put(r.Context(), storage.Uploaded, pngData, ".png")
	if err != nil {
		log.Printf("❌ [Files] Upload failed: %v", err)
		utils.WriteError(w, utils.StatusFor(err), "Error uploading image: "+err.Error())
		return
	}
	log.Printf("📤 [Files] Uploaded %s as %s", header.Filename, artifact.Reference())
	utils.WriteJSON(w, http.StatusOK, map[string]string{"image_path": artifact.Reference()})
}

// ListFiles - generated images and generated videos
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	images, err := h.entries(storage.GeneratedImage, "image")
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	videos, err := h.entries(storage.GeneratedVideo, "video")
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, FileListing{Images: images, Videos: videos})
}

func (h *Handler) entries(ns storage.Namespace, kind string) ([]FileEntry, error) {
	artifacts, err := h.store.List(ns)
	if err != nil {
		return nil, err
	}
	out := make([]FileEntry, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, FileEntry{Filename: a.Filename, Path: a.Reference(), Type: kind})
	}
	return out, nil
}

// DeleteFile - JSON {"path": ref}
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		utils.WriteError(w, http.StatusBadRequest, "path is required")
		return
	}

	if _, err := h.store.Delete(r.Context(), req.Path); err != nil {
		log.Printf("❌ [Files] Delete %q failed: %v", req.Path, err)
		utils.WriteError(w, utils.StatusFor(err), err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// ServeFile - artifact bytes with single Range support
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ref, err := storage.ParseReference("/" + vars["dir"] + "/" + vars["filename"])
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, artifact, err := h.store.Open(ref)
	if err != nil {
		utils.WriteError(w, utils.StatusFor(err), err.Error())
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", storage.MediaType(artifact.Ext()))
	w.Header().Set("Accept-Ranges", "bytes")
	http.ServeContent(w, r, artifact.Filename, info.ModTime(), f)
}
