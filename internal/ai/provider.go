package ai

import (
	"context"

	"github.com/kozaktomas/photo-tagger/internal/constants"
)

// Provider defines the interface for AI analysis backends.
type Provider interface {
	Name() string
	AnalyzePhoto(ctx context.Context, imageData []byte, opts AnalyzeOptions) (*PhotoAnalysis, error)

	// Usage tracking.
	GetUsage() *Usage
	ResetUsage()
}

// AnalyzeOptions carries the per-request contract for a photo analysis.
type AnalyzeOptions struct {
	Categories   []string // allowed category values, the model must pick exactly one
	MinKeywords  int      // fewer keywords than this rejects the response
	MaxKeywords  int      // more keywords than this are truncated
	OriginalName string   // original upload filename, shown to the model as context
}

// withDefaults fills unset keyword bounds with the house defaults.
func (o AnalyzeOptions) withDefaults() AnalyzeOptions {
	if o.MinKeywords <= 0 {
		o.MinKeywords = constants.MinKeywords
	}
	if o.MaxKeywords <= 0 {
		o.MaxKeywords = constants.MaxKeywords
	}
	return o
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalCost    float64 // in USD
}

// PhotoAnalysis contains the AI's metadata for a single photo.
type PhotoAnalysis struct {
	// Title is a short human-readable caption.
	Title string `json:"title"`
	// Description of what's in the photo, one or two sentences.
	Description string `json:"description"`
	// Category is one value from the configured enumeration.
	Category string `json:"category"`
	// Keywords ordered from most to least relevant.
	Keywords []string `json:"keywords"`
	// Quality is the model's technical quality audit.
	Quality *QualityAnalysis `json:"quality"`
}

// QualityAnalysis holds the technical quality audit of a photo.
type QualityAnalysis struct {
	Score  int      `json:"score"`  // 1 (unusable) to 10 (excellent)
	Issues []string `json:"issues"` // "Category: Issue" entries, empty when clean
}
