package export

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"path"

	"github.com/kozaktomas/photo-tagger/internal/constants"
	"github.com/kozaktomas/photo-tagger/internal/embedder"
)

// Result reports what an archive build actually wrote.
type Result struct {
	Written int
	Skipped []string
}

// BuildArchive writes the items into a zip stream, one entry per item
// under a single folder. Items are processed strictly sequentially, so
// only one photo's bytes live in memory at a time. An item whose bytes
// cannot be read is skipped with a warning, embedding failures degrade to
// the original bytes inside the embedder, and only archive level write
// failures abort the whole export. Duplicate entry names are written
// as-is.
func BuildArchive(w io.Writer, items []Item, emb *embedder.Embedder, opts Options) (*Result, error) {
	zw := zip.NewWriter(w)
	res := &Result{}
	for _, item := range items {
		raw, err := item.Source()
		if err != nil {
			log.Printf("WARNING: skipping %s, reading its bytes failed: %v", item.OriginalName, err)
			res.Skipped = append(res.Skipped, item.OriginalName)
			continue
		}
		data := emb.Embed(raw, item.MIME, item.Title, item.Description, item.Keywords, item.Category)
		name := Filename(item.OriginalName, item.Title, item.Category, opts.KeepOriginalNames)

		entry, err := zw.Create(path.Join(constants.ArchiveFolder, name))
		if err != nil {
			return nil, fmt.Errorf("could not create archive entry %s: %w", name, err)
		}
		if _, err := entry.Write(data); err != nil {
			return nil, fmt.Errorf("could not write archive entry %s: %w", name, err)
		}
		res.Written++
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("could not finalize archive: %w", err)
	}
	return res, nil
}
