package database

import (
	"context"
)

// PhotoStore is the persistence contract a storage backend implements.
// Save is an upsert keyed on the photo ID; it is used both at upload
// time and when a completed analysis lands.
type PhotoStore interface {
	// Save stores or replaces the full photo record
	Save(ctx context.Context, photo *StoredPhoto) error
	// Get retrieves a photo record by ID, returns nil if not found
	Get(ctx context.Context, id string) (*StoredPhoto, error)
	// List returns all photo records ordered by upload time
	List(ctx context.Context) ([]StoredPhoto, error)
	// UpdateMetadata replaces the editable metadata of a record
	UpdateMetadata(ctx context.Context, id, title, description, category string, keywords []string) error
	// UpdateStatus moves a record through the analysis lifecycle
	UpdateStatus(ctx context.Context, id, status, errorMsg string) error
	// Delete removes a photo record
	Delete(ctx context.Context, id string) error
	// Count returns the total number of photo records
	Count(ctx context.Context) (int, error)

	// SaveFingerprint attaches the perceptual fingerprint to a record
	SaveFingerprint(ctx context.Context, id, pHash, dHash string, vector []float32) error
	// FindNearDuplicates finds records perceptually close to the given
	// fingerprint, nearest first. maxDistance is on a 0..1 scale; the
	// postgres backend measures cosine distance over the luma vector,
	// the mysql backend normalized Hamming distance over the hash.
	FindNearDuplicates(ctx context.Context, pHash string, vector []float32, limit int, maxDistance float64) ([]NearDuplicate, error)
}
