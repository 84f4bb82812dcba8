// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/photo-tagger/internal/database"
)

// MockPhotoStore is a mock implementation of database.PhotoStore
type MockPhotoStore struct {
	mu     sync.RWMutex
	photos map[string]*database.StoredPhoto
	order  []string

	// Track calls
	SaveCalls            []string
	DeleteCalls          []string
	UpdateMetadataCalls  []string
	UpdateStatusCalls    []string
	SaveFingerprintCalls []string

	// Error injection
	SaveError               error
	GetError                error
	ListError               error
	UpdateMetadataError     error
	UpdateStatusError       error
	DeleteError             error
	CountError              error
	SaveFingerprintError    error
	FindNearDuplicatesError error
}

// NewMockPhotoStore creates a new mock photo store
func NewMockPhotoStore() *MockPhotoStore {
	return &MockPhotoStore{
		photos: make(map[string]*database.StoredPhoto),
	}
}

// AddPhoto seeds the mock store with a record
func (m *MockPhotoStore) AddPhoto(photo database.StoredPhoto) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.photos[photo.ID]; !ok {
		m.order = append(m.order, photo.ID)
	}
	m.photos[photo.ID] = &photo
}

// Save stores or replaces a photo record
func (m *MockPhotoStore) Save(ctx context.Context, photo *database.StoredPhoto) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.SaveCalls = append(m.SaveCalls, photo.ID)
	copied := *photo
	m.AddPhoto(copied)
	return nil
}

// Get retrieves a photo record, nil when missing
func (m *MockPhotoStore) Get(ctx context.Context, id string) (*database.StoredPhoto, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	photo, ok := m.photos[id]
	if !ok {
		return nil, nil
	}
	copied := *photo
	return &copied, nil
}

// List returns all records in insertion order
func (m *MockPhotoStore) List(ctx context.Context) ([]database.StoredPhoto, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var photos []database.StoredPhoto
	for _, id := range m.order {
		photos = append(photos, *m.photos[id])
	}
	return photos, nil
}

// UpdateMetadata replaces the editable metadata of a record
func (m *MockPhotoStore) UpdateMetadata(ctx context.Context, id, title, description, category string, keywords []string) error {
	if m.UpdateMetadataError != nil {
		return m.UpdateMetadataError
	}
	m.UpdateMetadataCalls = append(m.UpdateMetadataCalls, id)
	m.mu.Lock()
	defer m.mu.Unlock()
	photo, ok := m.photos[id]
	if !ok {
		return fmt.Errorf("photo %s not found", id)
	}
	photo.Title = title
	photo.Description = description
	photo.Category = category
	photo.Keywords = keywords
	return nil
}

// UpdateStatus moves a record through the analysis lifecycle
func (m *MockPhotoStore) UpdateStatus(ctx context.Context, id, status, errorMsg string) error {
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.UpdateStatusCalls = append(m.UpdateStatusCalls, id)
	m.mu.Lock()
	defer m.mu.Unlock()
	photo, ok := m.photos[id]
	if !ok {
		return fmt.Errorf("photo %s not found", id)
	}
	photo.Status = status
	photo.Error = errorMsg
	return nil
}

// Delete removes a record, missing records are not an error
func (m *MockPhotoStore) Delete(ctx context.Context, id string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.DeleteCalls = append(m.DeleteCalls, id)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.photos[id]; !ok {
		return nil
	}
	delete(m.photos, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Count returns the number of records
func (m *MockPhotoStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.photos), nil
}

// SaveFingerprint attaches a perceptual fingerprint to a record
func (m *MockPhotoStore) SaveFingerprint(ctx context.Context, id, pHash, dHash string, vector []float32) error {
	if m.SaveFingerprintError != nil {
		return m.SaveFingerprintError
	}
	m.SaveFingerprintCalls = append(m.SaveFingerprintCalls, id)
	m.mu.Lock()
	defer m.mu.Unlock()
	photo, ok := m.photos[id]
	if !ok {
		return fmt.Errorf("photo %s not found", id)
	}
	photo.PHash = pHash
	photo.DHash = dHash
	photo.Vector = vector
	return nil
}

// FindNearDuplicates ranks stored records by cosine distance of their
// luma vectors, mirroring the PostgreSQL backend
func (m *MockPhotoStore) FindNearDuplicates(ctx context.Context, pHash string, vector []float32, limit int, maxDistance float64) ([]database.NearDuplicate, error) {
	if m.FindNearDuplicatesError != nil {
		return nil, m.FindNearDuplicatesError
	}
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []database.NearDuplicate
	for _, id := range m.order {
		photo := m.photos[id]
		if len(photo.Vector) == 0 {
			continue
		}
		distance := database.CosineDistance(vector, photo.Vector)
		if distance > maxDistance {
			continue
		}
		hits = append(hits, database.NearDuplicate{ID: id, Distance: distance})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Verify interface compliance
var _ database.PhotoStore = (*MockPhotoStore)(nil)
