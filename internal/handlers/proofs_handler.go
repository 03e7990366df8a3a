package handlers

import (
	"io"
	"net/http"

	"aether/internal/storage"
)

// ProofsHandler serves locally stored proof images from signed URLs.
// It is only mounted when the local storage backend is in use; the S3
// backend presigns its own URLs.
type ProofsHandler struct {
	store *storage.LocalStore
}

// NewProofsHandler creates a new proofs handler
func NewProofsHandler(store *storage.LocalStore) *ProofsHandler {
	return &ProofsHandler{store: store}
}

// Serve handles GET /proofs/{token}
func (h *ProofsHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key, err := h.store.VerifyToken(r.PathValue("token"))
	if err != nil {
		respondWithError(w, http.StatusForbidden, "Link expired or invalid", "", nil)
		return
	}

	file, contentType, err := h.store.Open(r.Context(), key)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Image not found", "failed to open proof image", err)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := io.Copy(w, file); err != nil {
		return
	}
}
