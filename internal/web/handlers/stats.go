package handlers

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/kozaktomas/photo-tagger/internal/config"
	"github.com/kozaktomas/photo-tagger/internal/database"
	"github.com/kozaktomas/photo-tagger/internal/library"
)

// The library changes with every upload and analysis, so the cache only
// smooths out dashboard polling.
const statsCacheTTL = 30 * time.Second

// statsCache holds cached stats with expiry
type statsCache struct {
	mu        sync.RWMutex
	data      *StatsResponse
	expiresAt time.Time
}

func (c *statsCache) get() (*StatsResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

func (c *statsCache) set(data *StatsResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.expiresAt = time.Now().Add(statsCacheTTL)
}

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	config     *config.Config
	store      *library.Store
	jobManager *JobManager
	cache      statsCache
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(cfg *config.Config, store *library.Store, jm *JobManager) *StatsHandler {
	return &StatsHandler{
		config:     cfg,
		store:      store,
		jobManager: jm,
	}
}

// StatsResponse represents the statistics response
type StatsResponse struct {
	TotalPhotos     int            `json:"total_photos"`
	ByStatus        map[string]int `json:"by_status"`
	ByCategory      map[string]int `json:"by_category"`
	AverageQuality  float64        `json:"average_quality"`
	PersistedPhotos *int           `json:"persisted_photos,omitempty"`
	Usage           UsageInfo      `json:"usage"`
}

// Get returns statistics about the library and accumulated API usage
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.cache.get(); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	libStats := h.store.Stats()

	byStatus := make(map[string]int, len(libStats.ByStatus))
	for status, count := range libStats.ByStatus {
		byStatus[string(status)] = count
	}

	stats := &StatsResponse{
		TotalPhotos:    libStats.Total,
		ByStatus:       byStatus,
		ByCategory:     libStats.ByCategory,
		AverageQuality: libStats.AvgQuality,
		Usage:          h.jobManager.TotalUsage(),
	}

	if db := database.Active(); db != nil {
		if count, err := db.Count(r.Context()); err != nil {
			log.Printf("WARNING: could not count persisted photos: %v", err)
		} else {
			stats.PersistedPhotos = &count
		}
	}

	h.cache.set(stats)
	respondJSON(w, http.StatusOK, stats)
}
