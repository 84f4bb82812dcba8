package database

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"sync"

	"github.com/coder/hnsw"
)

// DuplicateIndex wraps an HNSW graph over photo fingerprint vectors for
// near-duplicate candidate retrieval. Keys are photo IDs. It satisfies
// library.DuplicateIndex.
type DuplicateIndex struct {
	graph       *hnsw.Graph[string]
	savedGraph  *hnsw.SavedGraph[string] // For persistence
	vectors     map[string][]float32     // membership filter, HNSW has no true deletion
	maxDistance float64
	mu          sync.RWMutex
	path        string // Path to save/load index
}

// NewDuplicateIndex creates an empty index. maxDistance is the cosine
// distance cutoff below which a candidate counts as a near duplicate.
func NewDuplicateIndex(maxDistance float64) *DuplicateIndex {
	return &DuplicateIndex{
		vectors:     make(map[string][]float32),
		maxDistance: maxDistance,
	}
}

// newGraph creates an HNSW graph with the house parameters.
func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// active returns the live graph, preferring a loaded one.
func (x *DuplicateIndex) active() *hnsw.Graph[string] {
	if x.savedGraph != nil {
		return x.savedGraph.Graph
	}
	return x.graph
}

// Add indexes a photo's fingerprint vector. Empty vectors are ignored.
func (x *DuplicateIndex) Add(id string, vector []float32) {
	if len(vector) == 0 {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.active() == nil {
		x.graph = newGraph()
	}

	x.active().Add(hnsw.MakeNode(id, vector))
	x.vectors[id] = vector
}

// Search returns the IDs of indexed photos within the distance cutoff,
// nearest first, at most limit. Removed photos never appear.
func (x *DuplicateIndex) Search(vector []float32, limit int) []string {
	if len(vector) == 0 || limit <= 0 {
		return nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	g := x.active()
	if g == nil {
		return nil
	}

	// Request more candidates to survive distance and membership filtering
	searchK := limit * HNSWSearchMultiplier
	searchK = max(searchK, HNSWEfSearch)

	var ids []string
	for _, n := range g.Search(vector, searchK) {
		if _, ok := x.vectors[n.Key]; !ok {
			continue // removed
		}
		if CosineDistance(vector, n.Value) > x.maxDistance {
			continue
		}
		ids = append(ids, n.Key)
		if len(ids) >= limit {
			break
		}
	}
	return ids
}

// Remove drops a photo from the index.
// HNSW doesn't support true deletion; removing from the vectors map
// effectively removes it from search results since we filter by lookup.
func (x *DuplicateIndex) Remove(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.vectors, id)
}

// Count returns the number of indexed photos.
func (x *DuplicateIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// SetPath sets the path for saving/loading the index.
func (x *DuplicateIndex) SetPath(path string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.path = path
}

// Save persists the graph and the membership vectors to disk.
// The graph goes to the configured path, the vectors to path + ".vectors".
func (x *DuplicateIndex) Save() error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.path == "" {
		return nil // No path set
	}

	g := x.active()
	if g == nil || len(x.vectors) == 0 {
		// Remove existing files if index is empty (best-effort cleanup)
		_ = os.Remove(x.path)
		_ = os.Remove(x.path + ".vectors")
		return nil
	}

	f, err := os.Create(x.path)
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer f.Close()

	if err := g.Export(f); err != nil {
		return fmt.Errorf("exporting HNSW graph: %w", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(x.vectors); err != nil {
		return fmt.Errorf("encoding index vectors: %w", err)
	}
	if err := os.WriteFile(x.path+".vectors", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing index vectors: %w", err)
	}
	return nil
}

// Load loads a previously saved index from disk. A missing file is not an
// error, the index stays empty and is rebuilt from the store.
func (x *DuplicateIndex) Load(path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.path = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // No index file, will build from the store
	}

	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	data, err := os.ReadFile(path + ".vectors")
	if err != nil {
		return fmt.Errorf("reading index vectors: %w", err)
	}
	vectors := make(map[string][]float32)
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&vectors); err != nil {
		return fmt.Errorf("decoding index vectors: %w", err)
	}

	x.savedGraph = saved
	x.vectors = vectors
	return nil
}

// RebuildFromStore reindexes every stored photo that has a fingerprint.
// Called at startup when persistence is on and no saved index was found.
func (x *DuplicateIndex) RebuildFromStore(ctx context.Context, store PhotoStore) error {
	photos, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing photos for index rebuild: %w", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	g := newGraph()
	x.vectors = make(map[string][]float32, len(photos))
	for i := range photos {
		p := &photos[i]
		if len(p.Vector) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(p.ID, p.Vector))
		x.vectors[p.ID] = p.Vector
	}

	x.graph = g
	x.savedGraph = nil
	return nil
}
