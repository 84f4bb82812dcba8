package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/kozaktomas/photo-tagger/internal/database"
	"github.com/kozaktomas/photo-tagger/internal/library"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// storedPhoto converts a library photo into its database record. Image
// bytes stay in memory; only metadata and the fingerprint persist.
func storedPhoto(p *library.Photo) *database.StoredPhoto {
	record := &database.StoredPhoto{
		ID:           p.ID,
		OriginalName: p.OriginalName,
		MIME:         p.MIME,
		Status:       string(p.Status),
		Error:        p.Error,
		UploadedAt:   p.UploadedAt,
		AnalyzedAt:   p.AnalyzedAt,
	}
	if p.Analysis != nil {
		record.Title = p.Analysis.Title
		record.Description = p.Analysis.Description
		record.Category = p.Analysis.Category
		record.Keywords = p.Analysis.Keywords
		if p.Analysis.Quality != nil {
			record.QualityScore = p.Analysis.Quality.Score
			record.QualityIssues = p.Analysis.Quality.Issues
		}
	}
	if p.Fingerprint != nil {
		record.PHash = p.Fingerprint.PHash
		record.DHash = p.Fingerprint.DHash
		record.Vector = p.Fingerprint.Vector
	}
	return record
}

// The mirror helpers copy library changes into the active storage backend.
// With no backend configured they are no-ops; persistence failures are
// logged and never surface to the client, the in-memory library stays the
// source of truth for the session.

func mirrorSave(ctx context.Context, photo *library.Photo) {
	db := database.Active()
	if db == nil {
		return
	}
	if err := db.Save(ctx, storedPhoto(photo)); err != nil {
		log.Printf("WARNING: failed to persist photo %s: %v", photo.ID, err)
	}
}

func mirrorMetadata(ctx context.Context, photo *library.Photo) {
	db := database.Active()
	if db == nil || photo.Analysis == nil {
		return
	}
	a := photo.Analysis
	if err := db.UpdateMetadata(ctx, photo.ID, a.Title, a.Description, a.Category, a.Keywords); err != nil {
		log.Printf("WARNING: failed to persist metadata for photo %s: %v", photo.ID, err)
	}
}

func mirrorStatus(ctx context.Context, id string, status library.Status, errorMsg string) {
	db := database.Active()
	if db == nil {
		return
	}
	if err := db.UpdateStatus(ctx, id, string(status), errorMsg); err != nil {
		log.Printf("WARNING: failed to persist status for photo %s: %v", id, err)
	}
}

func mirrorDelete(ctx context.Context, id string) {
	db := database.Active()
	if db == nil {
		return
	}
	if err := db.Delete(ctx, id); err != nil {
		log.Printf("WARNING: failed to delete persisted photo %s: %v", id, err)
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
