// Package export turns tagged photos into downloadable artifacts: single
// files, a zip archive and a CSV manifest.
package export

import (
	"fmt"

	"github.com/kozaktomas/photo-tagger/internal/embedder"
)

// Item is one photo queued for export. Source re-obtains the raw bytes on
// demand so the archive builder never holds more than one photo in memory.
type Item struct {
	OriginalName string
	MIME         string
	Title        string
	Description  string
	Category     string
	Keywords     []string
	Source       func() ([]byte, error)
}

// Options control the naming policy of an export.
type Options struct {
	KeepOriginalNames bool
}

// Single embeds one item and returns its download name and bytes.
func Single(item Item, emb *embedder.Embedder, keepOriginal bool) (string, []byte, error) {
	raw, err := item.Source()
	if err != nil {
		return "", nil, fmt.Errorf("could not read %s: %w", item.OriginalName, err)
	}
	data := emb.Embed(raw, item.MIME, item.Title, item.Description, item.Keywords, item.Category)
	return Filename(item.OriginalName, item.Title, item.Category, keepOriginal), data, nil
}
