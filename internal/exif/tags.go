package exif

import "fmt"

// IFD group names used by Builder.
const (
	IFDZeroth = "0th"
	IFDExif   = "Exif"
	IFDGPS    = "GPS"
	IFDFirst  = "1st"
)

// Tag codes written or read by this package.
const (
	TagImageDescription uint16 = 0x010E
	TagOrientation      uint16 = 0x0112
	TagSoftware         uint16 = 0x0131
	TagExifIFDPointer   uint16 = 0x8769
	TagGPSIFDPointer    uint16 = 0x8825
	TagUserComment      uint16 = 0x9286
	TagXPTitle          uint16 = 0x9C9B
	TagXPComment        uint16 = 0x9C9C
	TagXPAuthor         uint16 = 0x9C9D
	TagXPKeywords       uint16 = 0x9C9E
	TagXPSubject        uint16 = 0x9C9F
)

// tagNames maps known tag codes to display names for the info command.
var tagNames = map[uint16]string{
	TagImageDescription: "ImageDescription",
	TagOrientation:      "Orientation",
	TagSoftware:         "Software",
	TagExifIFDPointer:   "ExifIFDPointer",
	TagGPSIFDPointer:    "GPSIFDPointer",
	TagUserComment:      "UserComment",
	TagXPTitle:          "XPTitle",
	TagXPComment:        "XPComment",
	TagXPAuthor:         "XPAuthor",
	TagXPKeywords:       "XPKeywords",
	TagXPSubject:        "XPSubject",
}

// TagName returns a human-readable name for a tag code, or a hex form for
// unknown tags.
func TagName(tag uint16) string {
	if name, ok := tagNames[tag]; ok {
		return name
	}
	return fmt.Sprintf("0x%04X", tag)
}

// FieldType is a TIFF field type code.
type FieldType uint16

// TIFF field types.
const (
	TypeByte      FieldType = 1
	TypeASCII     FieldType = 2
	TypeShort     FieldType = 3
	TypeLong      FieldType = 4
	TypeRational  FieldType = 5
	TypeUndefined FieldType = 7
	TypeSLong     FieldType = 9
	TypeSRational FieldType = 10
)

// typeSize returns the unit size of a field type in bytes, 0 for unknown
// types.
func typeSize(t FieldType) uint32 {
	switch t {
	case TypeByte, TypeASCII, TypeUndefined:
		return 1
	case TypeShort:
		return 2
	case TypeLong, TypeSLong:
		return 4
	case TypeRational, TypeSRational:
		return 8
	default:
		return 0
	}
}
