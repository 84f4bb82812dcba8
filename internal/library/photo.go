// Package library holds the in-memory photo collection behind the web API.
package library

import (
	"time"

	"github.com/kozaktomas/photo-tagger/internal/ai"
	"github.com/kozaktomas/photo-tagger/internal/fingerprint"
)

// Status describes where a photo is in the analysis lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Photo is a single uploaded item: the original bytes plus, once analysis
// completes, the generated metadata.
type Photo struct {
	ID           string
	OriginalName string
	MIME         string
	Data         []byte
	Status       Status
	Analysis     *ai.PhotoAnalysis
	Fingerprint  *fingerprint.Fingerprint
	DuplicateOf  string   // ID of an earlier photo with the same pHash
	NearIDs      []string // IDs of earlier photos within near-duplicate distance
	Error        string   // failure reason when Status is failed
	UploadedAt   time.Time
	AnalyzedAt   time.Time
}

// HasDuplicates reports whether upload-time duplicate detection flagged
// this photo against any earlier upload.
func (p *Photo) HasDuplicates() bool {
	return p.DuplicateOf != "" || len(p.NearIDs) > 0
}

// clone returns a copy safe to hand out. Data and Fingerprint are never
// mutated after Add and are shared; all mutable fields are copied.
func (p *Photo) clone() *Photo {
	c := *p
	if p.Analysis != nil {
		c.Analysis = cloneAnalysis(p.Analysis)
	}
	if p.NearIDs != nil {
		c.NearIDs = append([]string(nil), p.NearIDs...)
	}
	return &c
}

func cloneAnalysis(a *ai.PhotoAnalysis) *ai.PhotoAnalysis {
	c := *a
	c.Keywords = append([]string(nil), a.Keywords...)
	if a.Quality != nil {
		q := *a.Quality
		q.Issues = append([]string(nil), a.Quality.Issues...)
		c.Quality = &q
	}
	return &c
}
