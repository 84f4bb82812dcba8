package handlers

import (
	"net/http"

	"github.com/kozaktomas/photo-tagger/internal/config"
	"github.com/kozaktomas/photo-tagger/internal/constants"
	"github.com/kozaktomas/photo-tagger/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Providers       []ProviderInfo `json:"providers"`
	DefaultProvider string         `json:"default_provider"`
	Categories      []string       `json:"categories"`
	Limits          LimitsInfo     `json:"limits"`
	Persistence     bool           `json:"persistence"`
}

// ProviderInfo represents information about an AI provider
type ProviderInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// LimitsInfo reports the intake and tagging limits clients should respect.
type LimitsInfo struct {
	MaxUploadSize int64 `json:"max_upload_size"`
	MaxBatchSize  int   `json:"max_batch_size"`
	MinKeywords   int   `json:"min_keywords"`
	MaxKeywords   int   `json:"max_keywords"`
}

// Get returns the available configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	providers := []ProviderInfo{
		{
			Name:      constants.ProviderOpenAI,
			Available: h.config.OpenAI.APIKey != "",
		},
		{
			Name:      constants.ProviderGemini,
			Available: h.config.Gemini.APIKey != "",
		},
		{
			Name:      constants.ProviderOllama,
			Available: true, // Always available (local)
		},
		{
			Name:      constants.ProviderLlamaCpp,
			Available: true, // Always available (local)
		},
	}

	response := ConfigResponse{
		Providers:       providers,
		DefaultProvider: h.config.AIProvider,
		Categories:      h.config.Categories,
		Limits: LimitsInfo{
			MaxUploadSize: constants.MaxUploadSize,
			MaxBatchSize:  constants.MaxBatchSize,
			MinKeywords:   constants.MinKeywords,
			MaxKeywords:   constants.MaxKeywords,
		},
		Persistence: database.IsInitialized(),
	}

	respondJSON(w, http.StatusOK, response)
}
