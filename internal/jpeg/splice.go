package jpeg

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// maxSegmentPayload is the largest payload an APP1 segment can carry: the
// two-byte length field counts itself and tops out at 0xFFFF.
const maxSegmentPayload = 0xFFFF - 2

// buildAPP1 frames payload as an APP1 segment: 0xFF 0xE1 followed by a
// big-endian length that includes its own two bytes.
func buildAPP1(payload []byte) ([]byte, error) {
	if len(payload) > maxSegmentPayload {
		return nil, fmt.Errorf("APP1 payload of %d bytes exceeds the %d byte segment limit", len(payload), maxSegmentPayload)
	}
	segLen := len(payload) + 2
	seg := make([]byte, 0, 2+segLen)
	seg = append(seg, markerPrefix, MarkerAPP1, byte(segLen>>8), byte(segLen&0xFF))
	return append(seg, payload...), nil
}

// spliceAt returns a copy of buf with seg inserted at off.
func spliceAt(buf []byte, off int, seg []byte) []byte {
	out := make([]byte, 0, len(buf)+len(seg))
	out = append(out, buf[:off]...)
	out = append(out, seg...)
	return append(out, buf[off:]...)
}

// InsertXMP splices an APP1 segment carrying the XMP packet into buf after
// any leading JFIF/Exif application segments. The input slice is never
// modified; a spliced copy is returned.
func InsertXMP(buf []byte, packet string) ([]byte, error) {
	if !HasSOI(buf) {
		return nil, ErrNotJPEG
	}

	payload := make([]byte, 0, len(XMPSignature)+len(packet))
	payload = append(payload, XMPSignature...)
	payload = append(payload, packet...)

	seg, err := buildAPP1(payload)
	if err != nil {
		return nil, err
	}
	return spliceAt(buf, xmpInsertOffset(buf), seg), nil
}

// xmpInsertOffset walks APP0/APP1 segments from offset 2 and returns the
// offset following the last one. A walk that cannot proceed stops where it
// is, so malformed streams get the segment right after SOI.
func xmpInsertOffset(buf []byte) int {
	cursor := 2
	for cursor+4 <= len(buf) && buf[cursor] == markerPrefix &&
		(buf[cursor+1] == MarkerAPP0 || buf[cursor+1] == MarkerAPP1) {
		length := int(binary.BigEndian.Uint16(buf[cursor+2 : cursor+4]))
		next := cursor + 2 + length
		if length < 2 || next > len(buf) {
			break
		}
		cursor = next
	}
	return cursor
}

// ReplaceOrInsertExif splices an APP1 segment carrying the EXIF payload into
// buf. An existing EXIF APP1 segment is replaced; otherwise the new segment
// goes immediately after SOI. The payload must begin with the EXIF
// signature.
func ReplaceOrInsertExif(buf, payload []byte) ([]byte, error) {
	if !HasSOI(buf) {
		return nil, ErrNotJPEG
	}
	if !bytes.HasPrefix(payload, ExifSignature) {
		return nil, fmt.Errorf("EXIF payload does not start with %q", ExifSignature)
	}

	seg, err := buildAPP1(payload)
	if err != nil {
		return nil, err
	}

	existing, _ := FindSegment(buf, MarkerAPP1, ExifSignature)
	if existing == nil {
		return spliceAt(buf, 2, seg), nil
	}

	out := make([]byte, 0, len(buf)-(existing.End()-existing.Offset)+len(seg))
	out = append(out, buf[:existing.Offset]...)
	out = append(out, seg...)
	return append(out, buf[existing.End():]...), nil
}
