package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/kozaktomas/photo-tagger/internal/config"
	"github.com/kozaktomas/photo-tagger/internal/constants"
	"github.com/kozaktomas/photo-tagger/internal/library"
)

// UploadHandler handles the batch photo intake endpoint.
type UploadHandler struct {
	config *config.Config
	store  *library.Store
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(cfg *config.Config, store *library.Store) *UploadHandler {
	return &UploadHandler{
		config: cfg,
		store:  store,
	}
}

// UploadedFile reports the outcome for one file of a batch.
type UploadedFile struct {
	OriginalName   string   `json:"original_name"`
	ID             string   `json:"id,omitempty"`
	Accepted       bool     `json:"accepted"`
	Error          string   `json:"error,omitempty"`
	DuplicateOf    string   `json:"duplicate_of,omitempty"`
	NearDuplicates []string `json:"near_duplicates,omitempty"`
}

// UploadResponse is the batch upload result.
type UploadResponse struct {
	Accepted int            `json:"accepted"`
	Files    []UploadedFile `json:"files"`
}

// Upload handles multipart photo uploads. Every accepted file becomes a
// pending library item; duplicates are flagged in the response but never
// rejected, that call is the user's.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > constants.MaxUploadSize {
		respondError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload exceeds the %d MB limit", constants.MaxUploadSize>>20))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)

	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds the %d MB limit", constants.MaxUploadSize>>20))
			return
		}
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	files := r.MultipartForm.File["photos"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no photos provided")
		return
	}
	if len(files) > constants.MaxBatchSize {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("batch of %d exceeds the limit of %d files", len(files), constants.MaxBatchSize))
		return
	}

	response := UploadResponse{Files: make([]UploadedFile, 0, len(files))}
	for _, fileHeader := range files {
		result := h.storeFile(r, fileHeader)
		if result.Accepted {
			response.Accepted++
		}
		response.Files = append(response.Files, result)
	}

	respondJSON(w, http.StatusOK, response)
}

// storeFile reads one multipart file into the library.
func (h *UploadHandler) storeFile(r *http.Request, fileHeader *multipart.FileHeader) UploadedFile {
	name := filepath.Base(fileHeader.Filename)
	result := UploadedFile{OriginalName: name}

	file, err := fileHeader.Open()
	if err != nil {
		result.Error = "failed to open file"
		return result
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		result.Error = "failed to read file"
		return result
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	photo, err := h.store.Add(name, mimeType, data)
	if err != nil {
		log.Printf("WARNING: rejected upload %q: %v", sanitizeForLog(name), err)
		result.Error = err.Error()
		return result
	}

	mirrorSave(r.Context(), photo)

	result.ID = photo.ID
	result.Accepted = true
	result.DuplicateOf = photo.DuplicateOf
	result.NearDuplicates = photo.NearIDs
	return result
}
