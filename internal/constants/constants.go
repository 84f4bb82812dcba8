// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Metadata constants
const (
	// SoftwareTag is the product identifier written into the EXIF Software tag
	SoftwareTag = "photo-tagger"

	// MinKeywords is the lowest keyword count accepted from an AI provider
	MinKeywords = 25

	// MaxKeywords is the keyword count an AI response is truncated to
	MaxKeywords = 30

	// MaxFilenameBase is the length a title-derived filename base is truncated to
	MaxFilenameBase = 50
)

// Upload constants
const (
	// MaxUploadSize is the maximum accepted request body for a photo upload
	MaxUploadSize = 50 << 20

	// MaxBatchSize is the maximum number of photos accepted in one batch
	MaxBatchSize = 100
)

// Export constants
const (
	// ArchiveFolder is the folder photos are placed under inside the export archive
	ArchiveFolder = "photos"
)

// Processing constants
const (
	// DefaultAnalyzeConcurrency is the default number of parallel AI analysis calls
	DefaultAnalyzeConcurrency = 2

	// MaxImageSize is the maximum dimension (width or height) sent to an AI provider
	MaxImageSize = 800
)

// Duplicate detection constants
const (
	// DuplicateHammingThreshold is the maximum perceptual hash distance at which
	// two photos are flagged as near duplicates
	DuplicateHammingThreshold = 10

	// DefaultDuplicateThreshold is the default max cosine distance for duplicate detection
	DefaultDuplicateThreshold = 0.10

	// DefaultDuplicateLimit is the default max number of duplicate candidates to return
	DefaultDuplicateLimit = 100
)
