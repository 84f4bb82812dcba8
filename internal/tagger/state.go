package tagger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kozaktomas/photo-tagger/internal/ai"
	"github.com/kozaktomas/photo-tagger/internal/export"
)

// StateFile is the sidecar written next to the tagged photos. It lets the
// export command rebuild archives and manifests without re-running AI.
const StateFile = ".photo-tagger.json"

// StateVersion guards against reading sidecars from a future format.
const StateVersion = 1

// State is the persisted outcome of a tagging run.
type State struct {
	Version  int          `json:"version"`
	Provider string       `json:"provider,omitempty"`
	TaggedAt time.Time    `json:"tagged_at"`
	Photos   []StatePhoto `json:"photos"`
}

// StatePhoto couples one file with its generated metadata.
type StatePhoto struct {
	File     string           `json:"file"`
	MIME     string           `json:"mime"`
	Analysis ai.PhotoAnalysis `json:"analysis"`
}

// Save writes the state into dir, stamping the tagging time.
func (s *State) Save(dir string) error {
	s.TaggedAt = time.Now()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	path := filepath.Join(dir, StateFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file %s: %w", path, err)
	}
	return nil
}

// LoadState reads the sidecar state file from dir.
func LoadState(dir string) (*State, error) {
	path := filepath.Join(dir, StateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no state file in %s, run tag first", dir)
		}
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("state file version %d is newer than supported version %d", state.Version, StateVersion)
	}
	return &state, nil
}

// Items converts the state into export items. Each item re-reads its file
// from disk when the exporter asks for it, so a directory export never
// holds more than one photo in memory.
func (s *State) Items(dir string) []export.Item {
	items := make([]export.Item, 0, len(s.Photos))
	for _, p := range s.Photos {
		path := filepath.Join(dir, p.File)
		items = append(items, export.Item{
			OriginalName: p.File,
			MIME:         p.MIME,
			Title:        p.Analysis.Title,
			Description:  p.Analysis.Description,
			Category:     p.Analysis.Category,
			Keywords:     p.Analysis.Keywords,
			Source: func() ([]byte, error) {
				return os.ReadFile(path)
			},
		})
	}
	return items
}
