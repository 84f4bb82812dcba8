package library

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/photo-tagger/internal/ai"
	"github.com/kozaktomas/photo-tagger/internal/constants"
	"github.com/kozaktomas/photo-tagger/internal/fingerprint"
)

var (
	// ErrNotFound is returned when no photo has the requested ID.
	ErrNotFound = errors.New("photo not found")
	// ErrNotEditable is returned for metadata edits on photos without a
	// completed analysis.
	ErrNotEditable = errors.New("photo has no completed analysis")
)

// DuplicateIndex finds earlier photos whose luma vectors fall within the
// index's distance threshold. Implemented by database.DuplicateIndex;
// nil disables vector lookups.
type DuplicateIndex interface {
	Add(id string, vector []float32)
	Search(vector []float32, limit int) []string
	Remove(id string)
}

// Store is a mutex-guarded photo collection preserving upload order.
type Store struct {
	mu     sync.RWMutex
	photos map[string]*Photo
	order  []string
	index  DuplicateIndex
}

// NewStore creates an empty photo store.
func NewStore() *Store {
	return &Store{
		photos: make(map[string]*Photo),
	}
}

// SetDuplicateIndex attaches a vector index consulted on Add for
// near-duplicate lookups. Pass nil to disable.
func (s *Store) SetDuplicateIndex(index DuplicateIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = index
}

// Add stores a new photo as pending, computes its fingerprint and flags
// duplicates of earlier uploads. Photos that cannot be decoded are
// accepted without a fingerprint.
func (s *Store) Add(originalName, mimeType string, data []byte) (*Photo, error) {
	if len(data) == 0 {
		return nil, errors.New("empty photo data")
	}

	photo := &Photo{
		ID:           uuid.NewString(),
		OriginalName: originalName,
		MIME:         mimeType,
		Data:         data,
		Status:       StatusPending,
		UploadedAt:   time.Now(),
	}

	// Fingerprinting happens outside the lock, the DCT is not cheap
	fp, err := fingerprint.Compute(data)
	if err != nil {
		log.Printf("WARNING: could not fingerprint %q: %v", originalName, err)
	} else {
		photo.Fingerprint = fp
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if photo.Fingerprint != nil {
		s.flagDuplicates(photo)
		if s.index != nil {
			found := s.index.Search(photo.Fingerprint.Vector, constants.DefaultDuplicateLimit)
			photo.NearIDs = mergeNearIDs(photo.NearIDs, found, photo.DuplicateOf)
			s.index.Add(photo.ID, photo.Fingerprint.Vector)
		}
	}

	s.photos[photo.ID] = photo
	s.order = append(s.order, photo.ID)

	return photo.clone(), nil
}

// flagDuplicates scans earlier photos for matching hashes. Caller holds
// the lock.
func (s *Store) flagDuplicates(photo *Photo) {
	for _, id := range s.order {
		other := s.photos[id]
		if other.Fingerprint == nil {
			continue
		}
		if other.Fingerprint.PHash == photo.Fingerprint.PHash {
			if photo.DuplicateOf == "" {
				photo.DuplicateOf = other.ID
			}
			continue
		}
		distance := fingerprint.HammingDistance(photo.Fingerprint.PHashBits, other.Fingerprint.PHashBits)
		if distance <= constants.DuplicateHammingThreshold {
			photo.NearIDs = append(photo.NearIDs, other.ID)
		}
	}
}

// mergeNearIDs appends vector search hits to the Hamming hits, dropping
// repeats and the exact-duplicate ID.
func mergeNearIDs(existing, found []string, duplicateOf string) []string {
	seen := make(map[string]bool, len(existing))
	for _, id := range existing {
		seen[id] = true
	}
	for _, id := range found {
		if id == duplicateOf || seen[id] {
			continue
		}
		seen[id] = true
		existing = append(existing, id)
	}
	return existing
}

// Get returns a copy of the photo with the given ID.
func (s *Store) Get(id string) (*Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	photo, ok := s.photos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return photo.clone(), nil
}

// List returns all photos in upload order.
func (s *Store) List() []*Photo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	photos := make([]*Photo, 0, len(s.order))
	for _, id := range s.order {
		photos = append(photos, s.photos[id].clone())
	}
	return photos
}

// ListByStatus returns photos with the given status in upload order.
func (s *Store) ListByStatus(status Status) []*Photo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var photos []*Photo
	for _, id := range s.order {
		if s.photos[id].Status == status {
			photos = append(photos, s.photos[id].clone())
		}
	}
	return photos
}

// Remove deletes a photo and drops it from the duplicate index.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.photos[id]; !ok {
		return ErrNotFound
	}
	delete(s.photos, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.index != nil {
		s.index.Remove(id)
	}
	return nil
}

// SetProcessing marks a pending photo as being analyzed.
func (s *Store) SetProcessing(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, ok := s.photos[id]
	if !ok {
		return ErrNotFound
	}
	if photo.Status != StatusPending {
		return fmt.Errorf("photo %s is %s, not pending", id, photo.Status)
	}
	photo.Status = StatusProcessing
	return nil
}

// SetCompleted stores the analysis result and marks the photo completed.
func (s *Store) SetCompleted(id string, analysis *ai.PhotoAnalysis) error {
	if analysis == nil {
		return errors.New("analysis is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, ok := s.photos[id]
	if !ok {
		return ErrNotFound
	}
	if photo.Status != StatusProcessing {
		return fmt.Errorf("photo %s is %s, not processing", id, photo.Status)
	}
	photo.Status = StatusCompleted
	photo.Analysis = cloneAnalysis(analysis)
	photo.Error = ""
	photo.AnalyzedAt = time.Now()
	return nil
}

// ResetProcessing reverts a processing photo to pending, used when an
// analysis run is cancelled before the photo finishes.
func (s *Store) ResetProcessing(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, ok := s.photos[id]
	if !ok {
		return ErrNotFound
	}
	if photo.Status != StatusProcessing {
		return fmt.Errorf("photo %s is %s, not processing", id, photo.Status)
	}
	photo.Status = StatusPending
	photo.Error = ""
	return nil
}

// SetFailed records an analysis failure.
func (s *Store) SetFailed(id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, ok := s.photos[id]
	if !ok {
		return ErrNotFound
	}
	photo.Status = StatusFailed
	photo.Error = reason
	return nil
}

// Retry re-queues a failed photo as pending.
func (s *Store) Retry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, ok := s.photos[id]
	if !ok {
		return ErrNotFound
	}
	if photo.Status != StatusFailed {
		return fmt.Errorf("photo %s is %s, not failed", id, photo.Status)
	}
	photo.Status = StatusPending
	photo.Error = ""
	return nil
}

// editable returns the photo if it has a completed analysis. Caller holds
// the lock.
func (s *Store) editable(id string) (*Photo, error) {
	photo, ok := s.photos[id]
	if !ok {
		return nil, ErrNotFound
	}
	if photo.Status != StatusCompleted || photo.Analysis == nil {
		return nil, ErrNotEditable
	}
	return photo, nil
}

// UpdateTitle replaces the title of a completed photo.
func (s *Store) UpdateTitle(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("title cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, err := s.editable(id)
	if err != nil {
		return err
	}
	photo.Analysis.Title = title
	return nil
}

// UpdateDescription replaces the description of a completed photo.
func (s *Store) UpdateDescription(id, description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return errors.New("description cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, err := s.editable(id)
	if err != nil {
		return err
	}
	photo.Analysis.Description = description
	return nil
}

// SetCategory sets or clears the category of a completed photo.
func (s *Store) SetCategory(id, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, err := s.editable(id)
	if err != nil {
		return err
	}
	photo.Analysis.Category = strings.TrimSpace(category)
	return nil
}

// AddKeyword appends a keyword, rejecting duplicates case-insensitively.
func (s *Store) AddKeyword(id, keyword string) error {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return errors.New("keyword cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, err := s.editable(id)
	if err != nil {
		return err
	}
	for _, existing := range photo.Analysis.Keywords {
		if strings.EqualFold(existing, keyword) {
			return fmt.Errorf("keyword %q already present", keyword)
		}
	}
	photo.Analysis.Keywords = append(photo.Analysis.Keywords, keyword)
	return nil
}

// RemoveKeyword deletes a keyword, matching case-insensitively.
func (s *Store) RemoveKeyword(id, keyword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, err := s.editable(id)
	if err != nil {
		return err
	}
	for i, existing := range photo.Analysis.Keywords {
		if strings.EqualFold(existing, keyword) {
			photo.Analysis.Keywords = append(photo.Analysis.Keywords[:i], photo.Analysis.Keywords[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("keyword %q not found", keyword)
}

// Stats summarizes the collection.
type Stats struct {
	Total      int
	ByStatus   map[Status]int
	ByCategory map[string]int
	AvgQuality float64
}

// Stats computes counts by status and category plus the average quality
// score over analyzed photos.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Total:      len(s.order),
		ByStatus:   make(map[Status]int),
		ByCategory: make(map[string]int),
	}

	scored := 0
	scoreSum := 0
	for _, photo := range s.photos {
		stats.ByStatus[photo.Status]++
		if photo.Analysis == nil {
			continue
		}
		if photo.Analysis.Category != "" {
			stats.ByCategory[photo.Analysis.Category]++
		}
		if photo.Analysis.Quality != nil {
			scored++
			scoreSum += photo.Analysis.Quality.Score
		}
	}
	if scored > 0 {
		stats.AvgQuality = float64(scoreSum) / float64(scored)
	}
	return stats
}
