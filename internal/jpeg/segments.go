package jpeg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Marker codes used when walking a JPEG marker stream.
const (
	markerPrefix = 0xFF

	MarkerSOI  = 0xD8 // start of image
	MarkerEOI  = 0xD9 // end of image
	MarkerSOS  = 0xDA // start of scan, entropy-coded data follows
	MarkerAPP0 = 0xE0 // JFIF application segment
	MarkerAPP1 = 0xE1 // Exif / XMP application segment

	markerTEM  = 0x01
	markerRST0 = 0xD0
	markerRST7 = 0xD7
)

// APP1 payload signatures.
var (
	ExifSignature = []byte("Exif\x00\x00")
	XMPSignature  = []byte("http://ns.adobe.com/xap/1.0/\x00")
)

// ErrNotJPEG is returned when a buffer does not begin with the SOI marker.
var ErrNotJPEG = errors.New("buffer does not start with a JPEG SOI marker")

// Segment is a marker segment located within a JPEG buffer.
type Segment struct {
	Marker  byte
	Offset  int    // offset of the 0xFF prefix byte
	Length  int    // declared length including its own two bytes, 0 for standalone markers
	Payload []byte // slice into the scanned buffer, nil for standalone markers
}

// End returns the offset of the first byte after the segment.
func (s Segment) End() int {
	return s.Offset + 2 + s.Length
}

// HasSOI reports whether buf begins with the JPEG start-of-image marker.
func HasSOI(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == markerPrefix && buf[1] == MarkerSOI
}

// Segments walks the marker stream from the start of buf and returns every
// segment up to and including the start-of-scan marker. Entropy-coded data
// after SOS is not walked.
func Segments(buf []byte) ([]Segment, error) {
	if !HasSOI(buf) {
		return nil, ErrNotJPEG
	}

	var segs []Segment
	cursor := 2
	for cursor+1 < len(buf) {
		// Fill bytes are legal padding before a marker code.
		for cursor+1 < len(buf) && buf[cursor] == markerPrefix && buf[cursor+1] == markerPrefix {
			cursor++
		}
		if cursor+1 >= len(buf) {
			return segs, errors.New("truncated marker stream")
		}
		if buf[cursor] != markerPrefix {
			return segs, fmt.Errorf("expected marker prefix at offset %d, found 0x%02X", cursor, buf[cursor])
		}

		marker := buf[cursor+1]
		switch {
		case marker == MarkerEOI:
			segs = append(segs, Segment{Marker: marker, Offset: cursor})
			return segs, nil
		case marker == markerTEM || (marker >= markerRST0 && marker <= markerRST7):
			// Standalone markers carry no length field.
			segs = append(segs, Segment{Marker: marker, Offset: cursor})
			cursor += 2
			continue
		}

		if cursor+4 > len(buf) {
			return segs, errors.New("truncated segment length")
		}
		length := int(binary.BigEndian.Uint16(buf[cursor+2 : cursor+4]))
		if length < 2 || cursor+2+length > len(buf) {
			return segs, fmt.Errorf("segment 0x%02X at offset %d declares invalid length %d", marker, cursor, length)
		}

		segs = append(segs, Segment{
			Marker:  marker,
			Offset:  cursor,
			Length:  length,
			Payload: buf[cursor+4 : cursor+2+length],
		})
		cursor += 2 + length

		if marker == MarkerSOS {
			return segs, nil
		}
	}

	return segs, nil
}

// FindSegment returns the first segment with the given marker whose payload
// starts with signature. An empty signature matches any payload. Returns
// nil when no such segment exists before the scan stopped.
func FindSegment(buf []byte, marker byte, signature []byte) (*Segment, error) {
	segs, err := Segments(buf)
	for i := range segs {
		s := &segs[i]
		if s.Marker != marker {
			continue
		}
		if len(signature) > 0 && !bytes.HasPrefix(s.Payload, signature) {
			continue
		}
		return s, nil
	}
	return nil, err
}
