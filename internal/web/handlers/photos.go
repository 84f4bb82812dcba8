package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-tagger/internal/ai"
	"github.com/kozaktomas/photo-tagger/internal/config"
	"github.com/kozaktomas/photo-tagger/internal/library"
)

// PhotosHandler handles photo listing, metadata editing and deletion.
type PhotosHandler struct {
	config *config.Config
	store  *library.Store
}

// NewPhotosHandler creates a new photos handler.
func NewPhotosHandler(cfg *config.Config, store *library.Store) *PhotosHandler {
	return &PhotosHandler{
		config: cfg,
		store:  store,
	}
}

// PhotoSummary is the list view of a library item.
type PhotoSummary struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	MIME         string    `json:"mime"`
	Status       string    `json:"status"`
	Title        string    `json:"title,omitempty"`
	Category     string    `json:"category,omitempty"`
	KeywordCount int       `json:"keyword_count"`
	QualityScore int       `json:"quality_score,omitempty"`
	DuplicateOf  string    `json:"duplicate_of,omitempty"`
	NearIDs      []string  `json:"near_duplicates,omitempty"`
	Error        string    `json:"error,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// PhotoDetail is the full view of a library item including the analysis.
type PhotoDetail struct {
	ID           string            `json:"id"`
	OriginalName string            `json:"original_name"`
	MIME         string            `json:"mime"`
	Size         int               `json:"size"`
	Status       string            `json:"status"`
	Analysis     *ai.PhotoAnalysis `json:"analysis,omitempty"`
	DuplicateOf  string            `json:"duplicate_of,omitempty"`
	NearIDs      []string          `json:"near_duplicates,omitempty"`
	Error        string            `json:"error,omitempty"`
	UploadedAt   time.Time         `json:"uploaded_at"`
	AnalyzedAt   *time.Time        `json:"analyzed_at,omitempty"`
}

func photoSummary(p *library.Photo) PhotoSummary {
	summary := PhotoSummary{
		ID:           p.ID,
		OriginalName: p.OriginalName,
		MIME:         p.MIME,
		Status:       string(p.Status),
		DuplicateOf:  p.DuplicateOf,
		NearIDs:      p.NearIDs,
		Error:        p.Error,
		UploadedAt:   p.UploadedAt,
	}
	if p.Analysis != nil {
		summary.Title = p.Analysis.Title
		summary.Category = p.Analysis.Category
		summary.KeywordCount = len(p.Analysis.Keywords)
		if p.Analysis.Quality != nil {
			summary.QualityScore = p.Analysis.Quality.Score
		}
	}
	return summary
}

func photoDetail(p *library.Photo) PhotoDetail {
	detail := PhotoDetail{
		ID:           p.ID,
		OriginalName: p.OriginalName,
		MIME:         p.MIME,
		Size:         len(p.Data),
		Status:       string(p.Status),
		Analysis:     p.Analysis,
		DuplicateOf:  p.DuplicateOf,
		NearIDs:      p.NearIDs,
		Error:        p.Error,
		UploadedAt:   p.UploadedAt,
	}
	if !p.AnalyzedAt.IsZero() {
		analyzedAt := p.AnalyzedAt
		detail.AnalyzedAt = &analyzedAt
	}
	return detail
}

// photoErrorStatus maps library errors onto HTTP status codes.
func photoErrorStatus(err error) int {
	switch {
	case errors.Is(err, library.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, library.ErrNotEditable):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// List returns all photos in upload order.
func (h *PhotosHandler) List(w http.ResponseWriter, r *http.Request) {
	photos := h.store.List()
	summaries := make([]PhotoSummary, 0, len(photos))
	for _, p := range photos {
		summaries = append(summaries, photoSummary(p))
	}
	respondJSON(w, http.StatusOK, summaries)
}

// Get returns a single photo including its analysis.
func (h *PhotosHandler) Get(w http.ResponseWriter, r *http.Request) {
	photo, err := h.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, photoErrorStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, photoDetail(photo))
}

// UpdatePhotoRequest carries a partial metadata edit. Absent fields stay
// untouched.
type UpdatePhotoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
}

// Update edits the title, description or category of a completed photo.
func (h *PhotosHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdatePhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Title == nil && req.Description == nil && req.Category == nil {
		respondError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if req.Category != nil && !h.validCategory(*req.Category) {
		respondError(w, http.StatusBadRequest, "unknown category")
		return
	}

	if req.Title != nil {
		if err := h.store.UpdateTitle(id, *req.Title); err != nil {
			respondError(w, photoErrorStatus(err), err.Error())
			return
		}
	}
	if req.Description != nil {
		if err := h.store.UpdateDescription(id, *req.Description); err != nil {
			respondError(w, photoErrorStatus(err), err.Error())
			return
		}
	}
	if req.Category != nil {
		if err := h.store.SetCategory(id, *req.Category); err != nil {
			respondError(w, photoErrorStatus(err), err.Error())
			return
		}
	}

	photo, err := h.store.Get(id)
	if err != nil {
		respondError(w, photoErrorStatus(err), err.Error())
		return
	}
	mirrorMetadata(r.Context(), photo)

	respondJSON(w, http.StatusOK, photoDetail(photo))
}

// validCategory accepts the configured categories plus the empty string,
// which clears the assignment.
func (h *PhotosHandler) validCategory(category string) bool {
	if category == "" {
		return true
	}
	for _, c := range h.config.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Delete removes a photo from the library.
func (h *PhotosHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Remove(id); err != nil {
		respondError(w, photoErrorStatus(err), err.Error())
		return
	}
	mirrorDelete(r.Context(), id)
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// KeywordRequest carries a single keyword to append.
type KeywordRequest struct {
	Keyword string `json:"keyword"`
}

// AddKeyword appends a keyword to a completed photo.
func (h *PhotosHandler) AddKeyword(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req KeywordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if err := h.store.AddKeyword(id, req.Keyword); err != nil {
		respondError(w, photoErrorStatus(err), err.Error())
		return
	}

	h.respondKeywords(w, r, id)
}

// RemoveKeyword drops a keyword from a completed photo.
func (h *PhotosHandler) RemoveKeyword(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	keyword := chi.URLParam(r, "keyword")

	if err := h.store.RemoveKeyword(id, keyword); err != nil {
		respondError(w, photoErrorStatus(err), err.Error())
		return
	}

	h.respondKeywords(w, r, id)
}

// respondKeywords persists the keyword change and returns the current list.
func (h *PhotosHandler) respondKeywords(w http.ResponseWriter, r *http.Request, id string) {
	photo, err := h.store.Get(id)
	if err != nil {
		respondError(w, photoErrorStatus(err), err.Error())
		return
	}
	mirrorMetadata(r.Context(), photo)

	respondJSON(w, http.StatusOK, map[string]any{
		"id":       photo.ID,
		"keywords": photo.Analysis.Keywords,
	})
}

// Retry re-queues a failed photo for analysis.
func (h *PhotosHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Retry(id); err != nil {
		respondError(w, photoErrorStatus(err), err.Error())
		return
	}
	mirrorStatus(r.Context(), id, library.StatusPending, "")

	respondJSON(w, http.StatusOK, map[string]string{
		"id":     id,
		"status": string(library.StatusPending),
	})
}
