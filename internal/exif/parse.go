package exif

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/kozaktomas/photo-tagger/internal/jpeg"
)

// Parse decodes an EXIF APP1 payload into a builder. Both TIFF byte orders
// are accepted and every value is normalized to little-endian, so callers
// never deal with the order of the source file.
func Parse(payload []byte) (*Builder, error) {
	if !bytes.HasPrefix(payload, jpeg.ExifSignature) {
		return nil, errors.New("missing Exif header")
	}
	tiff := payload[len(jpeg.ExifSignature):]
	if len(tiff) < tiffHeaderSize {
		return nil, errors.New("truncated TIFF header")
	}

	var order binary.ByteOrder
	switch string(tiff[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("unknown TIFF byte order %q", tiff[:2])
	}
	if order.Uint16(tiff[2:4]) != tiffMagic {
		return nil, errors.New("bad TIFF magic")
	}

	b := NewBuilder()
	next, err := parseIFD(b, IFDZeroth, tiff, order.Uint32(tiff[4:8]), order)
	if err != nil {
		return nil, err
	}
	if off, ok := pointerTarget(b, TagExifIFDPointer); ok {
		if _, err := parseIFD(b, IFDExif, tiff, off, order); err != nil {
			return nil, err
		}
	}
	if off, ok := pointerTarget(b, TagGPSIFDPointer); ok {
		if _, err := parseIFD(b, IFDGPS, tiff, off, order); err != nil {
			return nil, err
		}
	}
	if next != 0 {
		if _, err := parseIFD(b, IFDFirst, tiff, next, order); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// pointerTarget reads a sub-IFD pointer from the 0th IFD.
func pointerTarget(b *Builder, tag uint16) (uint32, bool) {
	v, ok := b.Get(IFDZeroth, tag)
	if !ok {
		return 0, false
	}
	switch v.Type {
	case TypeLong, TypeSLong:
		if len(v.Data) >= 4 {
			return binary.LittleEndian.Uint32(v.Data[:4]), true
		}
	case TypeShort:
		if len(v.Data) >= 2 {
			return uint32(binary.LittleEndian.Uint16(v.Data[:2])), true
		}
	}
	return 0, false
}

// parseIFD reads one IFD table and stores its entries under ifd. It returns
// the offset of the chained IFD, zero when there is none.
func parseIFD(b *Builder, ifd string, tiff []byte, offset uint32, order binary.ByteOrder) (uint32, error) {
	start := int(offset)
	if start+2 > len(tiff) {
		return 0, fmt.Errorf("%s IFD offset %d out of range", ifd, offset)
	}
	n := int(order.Uint16(tiff[start : start+2]))
	end := start + 2 + n*ifdEntrySize
	if end+4 > len(tiff) {
		return 0, fmt.Errorf("%s IFD with %d entries overruns the TIFF body", ifd, n)
	}

	for i := 0; i < n; i++ {
		entry := tiff[start+2+i*ifdEntrySize:]
		tag := order.Uint16(entry[0:2])
		typ := FieldType(order.Uint16(entry[2:4]))
		count := order.Uint32(entry[4:8])

		size := typeSize(typ)
		if size == 0 {
			// unknown field type, nothing sensible to decode
			continue
		}
		length := uint64(count) * uint64(size)
		if length > uint64(len(tiff)) {
			return 0, fmt.Errorf("tag %s count %d overruns the TIFF body", TagName(tag), count)
		}

		var raw []byte
		if length <= 4 {
			raw = entry[8 : 8+length]
		} else {
			valueOffset := int(order.Uint32(entry[8:12]))
			if uint64(valueOffset)+length > uint64(len(tiff)) {
				return 0, fmt.Errorf("tag %s value at %d overruns the TIFF body", TagName(tag), valueOffset)
			}
			raw = tiff[valueOffset : uint64(valueOffset)+length]
		}
		b.Set(ifd, tag, Value{Type: typ, Data: normalize(raw, typ, order)})
	}
	return order.Uint32(tiff[end : end+4]), nil
}

// normalize copies a raw value into little-endian wire form. Byte sized
// types carry no order, rationals are swapped per four-byte half.
func normalize(raw []byte, typ FieldType, order binary.ByteOrder) []byte {
	out := make([]byte, len(raw))
	copy(out, raw)
	if order == binary.ByteOrder(binary.LittleEndian) {
		return out
	}
	switch typ {
	case TypeShort:
		for i := 0; i+2 <= len(out); i += 2 {
			out[i], out[i+1] = out[i+1], out[i]
		}
	case TypeLong, TypeSLong, TypeRational, TypeSRational:
		for i := 0; i+4 <= len(out); i += 4 {
			out[i], out[i+1], out[i+2], out[i+3] = out[i+3], out[i+2], out[i+1], out[i]
		}
	}
	return out
}
