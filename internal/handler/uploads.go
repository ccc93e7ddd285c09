package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/bierserv/api/internal/storage"
)

// ImageSaver stores an uploaded image and returns its public URL.
// Satisfied by *storage.ImageStore.
type ImageSaver interface {
	Save(r io.Reader) (string, error)
}

// UploadHandler accepts product and logo images.
type UploadHandler struct {
	images   ImageSaver
	maxBytes int64
}

// NewUploadHandler creates a new UploadHandler. Request bodies above maxBytes
// are rejected.
func NewUploadHandler(images ImageSaver, maxBytes int64) *UploadHandler {
	return &UploadHandler{images: images, maxBytes: maxBytes}
}

// RegisterRoutes registers the staff endpoint at /uploads.
func (h *UploadHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Upload)
}

// Upload reads the multipart field "file".
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	url, err := h.images.Save(file)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedImage) {
			writeError(w, http.StatusBadRequest, "file must be a JPEG, PNG or GIF image")
			return
		}
		internalError(w, r, err, "save upload")
		return
	}

	log.Info().Str("name", header.Filename).Int64("size", header.Size).Str("url", url).Msg("image uploaded")
	writeJSON(w, http.StatusCreated, map[string]string{"file_url": url})
}
