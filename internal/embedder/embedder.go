// Package embedder writes generated metadata into photo files. Embedding
// is best effort: any failure falls back to the original bytes, so an
// export never loses a photo to a metadata problem.
package embedder

import (
	"log"
	"strings"

	"github.com/kozaktomas/photo-tagger/internal/constants"
	"github.com/kozaktomas/photo-tagger/internal/exif"
	"github.com/kozaktomas/photo-tagger/internal/jpeg"
	"github.com/kozaktomas/photo-tagger/internal/xmp"
)

// Codec renders EXIF tag structures and writes the result into JPEG
// containers. It is an optional dependency, a nil codec turns embedding
// into a logged no-op.
type Codec interface {
	Render(b *exif.Builder) ([]byte, error)
	Splice(container, blob []byte) ([]byte, error)
}

// Embedder orchestrates EXIF and XMP embedding for exported photos.
type Embedder struct {
	codec Codec
}

// New creates an embedder around the given codec. A nil codec is allowed.
func New(codec Codec) *Embedder {
	return &Embedder{codec: codec}
}

// IsJPEG reports whether a declared MIME type names a JPEG image.
func IsJPEG(mimeType string) bool {
	return strings.EqualFold(mimeType, "image/jpeg") || strings.EqualFold(mimeType, "image/jpg")
}

// Embed returns a copy of raw with the metadata written into fresh EXIF
// and XMP segments. The category joins the keyword list when present.
// Non-JPEG input passes through untouched and any failure returns the
// original bytes unchanged.
func (e *Embedder) Embed(raw []byte, mimeType, title, description string, keywords []string, category string) []byte {
	if !IsJPEG(mimeType) {
		return raw
	}
	if e == nil || e.codec == nil {
		log.Printf("WARNING: no EXIF codec configured, keeping %q without embedded metadata", title)
		return raw
	}

	final := make([]string, 0, len(keywords)+1)
	final = append(final, keywords...)
	if category != "" {
		final = append(final, category)
	}

	blob, err := e.codec.Render(exif.BuildTags(title, description, final, constants.SoftwareTag))
	if err != nil {
		log.Printf("WARNING: rendering EXIF block failed: %v", err)
		return raw
	}
	withExif, err := e.codec.Splice(raw, blob)
	if err != nil {
		log.Printf("WARNING: writing EXIF block failed: %v", err)
		return raw
	}
	out, err := jpeg.InsertXMP(withExif, xmp.BuildPacket(title, description, final, category))
	if err != nil {
		log.Printf("WARNING: writing XMP packet failed: %v", err)
		return raw
	}
	return out
}
