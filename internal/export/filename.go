package export

import (
	"strings"
	"unicode/utf16"

	"github.com/kozaktomas/photo-tagger/internal/constants"
)

// Filename derives the output name for an exported photo. The extension
// comes from the original name with its case preserved, jpg when the name
// has none. The base is either the original name without its extension or
// a slug of the title, and a non-empty category lands in parentheses
// between base and extension.
func Filename(originalName, title, category string, keepOriginal bool) string {
	ext := "jpg"
	stem := originalName
	if i := strings.LastIndex(originalName, "."); i >= 0 {
		ext = originalName[i+1:]
		stem = originalName[:i]
	}

	base := stem
	if !keepOriginal {
		base = slugify(title)
	}
	if category != "" {
		base += "(" + category + ")"
	}
	return base + "." + ext
}

// slugify maps a title onto lower case ASCII, anything outside [A-Za-z0-9]
// becomes an underscore. It walks UTF-16 code units, so a character outside
// the basic plane turns into two underscores.
func slugify(title string) string {
	units := utf16.Encode([]rune(title))
	var b strings.Builder
	b.Grow(len(units))
	for _, u := range units {
		switch {
		case u >= 'A' && u <= 'Z':
			b.WriteByte(byte(u) + 'a' - 'A')
		case u >= 'a' && u <= 'z', u >= '0' && u <= '9':
			b.WriteByte(byte(u))
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if len(s) > constants.MaxFilenameBase {
		s = s[:constants.MaxFilenameBase]
	}
	return s
}
