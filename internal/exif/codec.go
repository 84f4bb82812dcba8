package exif

import "github.com/kozaktomas/photo-tagger/internal/jpeg"

// Codec renders EXIF blocks and splices them into JPEG containers. It
// exists as a value so callers can hold it behind an interface and swap it
// out in tests.
type Codec struct{}

// Render serializes the builder into an APP1 payload.
func (Codec) Render(b *Builder) ([]byte, error) {
	return b.Serialize()
}

// Splice writes blob into the container, replacing an existing EXIF
// segment when one is present and inserting right after SOI otherwise.
func (Codec) Splice(container, blob []byte) ([]byte, error) {
	return jpeg.ReplaceOrInsertExif(container, blob)
}
