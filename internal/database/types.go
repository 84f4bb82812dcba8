package database

import (
	"time"
)

// StoredPhoto is a photo record as persisted by a storage backend. The
// raw image bytes stay with the in-memory library; backends keep the
// metadata and fingerprints so a tagged collection survives restarts.
type StoredPhoto struct {
	ID           string
	OriginalName string
	MIME         string
	Status       string // pending, processing, completed, failed

	// Generated metadata, empty until analysis completes
	Title         string
	Description   string
	Category      string
	Keywords      []string
	QualityScore  int      // 1-10, 0 when no quality audit ran
	QualityIssues []string // "Category: Issue" entries
	Error         string   // failure reason when status is failed

	// Perceptual fingerprint, empty for non-decodable uploads
	PHash  string    // 64-bit perceptual hash as hex string
	DHash  string    // 64-bit difference hash as hex string
	Vector []float32 // normalized 64-dim luma grid

	UploadedAt time.Time
	AnalyzedAt time.Time // zero until analysis completes
}

// NearDuplicate is one hit from a fingerprint similarity query.
type NearDuplicate struct {
	ID       string
	Distance float64 // cosine distance, 0 is identical
}
