package exif

import (
	"unicode/utf16"

	"golang.org/x/text/encoding/unicode"
)

// userCommentPrefix declares the character set of an Exif UserComment
// value.
var userCommentPrefix = []byte("ASCII\x00\x00\x00")

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeUCS2 encodes s as UTF-16 code units, low byte first, and appends a
// double-zero terminator. This is the wire form of the Windows XP* tags.
// Code points above the BMP become surrogate pairs whose halves are written
// as two independent code units.
func EncodeUCS2(s string) []byte {
	// UTF-16 covers all of Unicode, the encoder cannot fail on a Go string.
	encoded, _ := utf16le.NewEncoder().Bytes([]byte(s))
	return append(encoded, 0x00, 0x00)
}

// DecodeUCS2 reverses EncodeUCS2, dropping the trailing double-zero
// terminator when present. Odd trailing bytes are ignored.
func DecodeUCS2(b []byte) string {
	if len(b) >= 2 && b[len(b)-1] == 0x00 && b[len(b)-2] == 0x00 {
		b = b[:len(b)-2]
	}
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])|uint16(b[i+1])<<8)
	}
	return string(utf16.Decode(units))
}

// EncodeUserComment renders text for the Exif UserComment tag: the ASCII
// charset prefix followed by one byte per UTF-16 code unit, low 8 bits
// only.
//
// TODO: non-ASCII text is silently truncated to its low bytes here.
// Writing the UNICODE charset prefix with a UTF-16 payload would preserve
// it, but changes the bytes of every exported file.
func EncodeUserComment(s string) []byte {
	out := make([]byte, 0, len(userCommentPrefix)+len(s))
	out = append(out, userCommentPrefix...)
	for _, unit := range utf16.Encode([]rune(s)) {
		out = append(out, byte(unit))
	}
	return out
}
