package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-tagger/internal/config"
	"github.com/kozaktomas/photo-tagger/internal/embedder"
	"github.com/kozaktomas/photo-tagger/internal/export"
	"github.com/kozaktomas/photo-tagger/internal/library"
)

// ExportHandler handles export downloads: single photos, the zip archive
// and the CSV manifest.
type ExportHandler struct {
	config   *config.Config
	store    *library.Store
	embedder *embedder.Embedder
}

// NewExportHandler creates a new export handler.
func NewExportHandler(cfg *config.Config, store *library.Store, emb *embedder.Embedder) *ExportHandler {
	return &ExportHandler{
		config:   cfg,
		store:    store,
		embedder: emb,
	}
}

func exportItem(p *library.Photo) export.Item {
	item := export.Item{
		OriginalName: p.OriginalName,
		MIME:         p.MIME,
		Source:       func() ([]byte, error) { return p.Data, nil },
	}
	if p.Analysis != nil {
		item.Title = p.Analysis.Title
		item.Description = p.Analysis.Description
		item.Category = p.Analysis.Category
		item.Keywords = p.Analysis.Keywords
	}
	return item
}

// completedItems collects every completed photo as an export item, in
// upload order.
func (h *ExportHandler) completedItems() []export.Item {
	photos := h.store.ListByStatus(library.StatusCompleted)
	items := make([]export.Item, 0, len(photos))
	for _, p := range photos {
		items = append(items, exportItem(p))
	}
	return items
}

func exportOptions(r *http.Request) export.Options {
	return export.Options{
		KeepOriginalNames: r.URL.Query().Get("keep_original") == "true",
	}
}

// Archive streams a zip of all completed photos with metadata embedded.
func (h *ExportHandler) Archive(w http.ResponseWriter, r *http.Request) {
	items := h.completedItems()
	if len(items) == 0 {
		respondError(w, http.StatusConflict, "no completed photos to export")
		return
	}

	filename := fmt.Sprintf("photos-%s.zip", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	// Headers are on the wire once the first entry is written, a failure
	// here can only be logged
	if _, err := export.BuildArchive(w, items, h.embedder, exportOptions(r)); err != nil {
		log.Printf("WARNING: archive export aborted: %v", err)
	}
}

// CSV streams the metadata manifest for all completed photos. An empty
// library yields a header-only manifest.
func (h *ExportHandler) CSV(w http.ResponseWriter, r *http.Request) {
	items := h.completedItems()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="manifest.csv"`)

	if err := export.WriteCSV(w, items, exportOptions(r)); err != nil {
		log.Printf("WARNING: csv export aborted: %v", err)
	}
}

// Single downloads one completed photo with metadata embedded.
func (h *ExportHandler) Single(w http.ResponseWriter, r *http.Request) {
	photo, err := h.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, photoErrorStatus(err), err.Error())
		return
	}
	if photo.Status != library.StatusCompleted {
		respondError(w, http.StatusConflict, fmt.Sprintf("photo %s is %s, not completed", photo.ID, photo.Status))
		return
	}

	keepOriginal := r.URL.Query().Get("keep_original") == "true"
	name, data, err := export.Single(exportItem(photo), h.embedder, keepOriginal)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", photo.MIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		log.Printf("WARNING: could not stream %s: %v", name, err)
	}
}
