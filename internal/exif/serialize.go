package exif

import (
	"encoding/binary"
	"errors"
	"sort"

	"github.com/kozaktomas/photo-tagger/internal/jpeg"
)

const (
	tiffMagic      = 0x2A
	tiffHeaderSize = 8
	ifdEntrySize   = 12
)

type ifdEntry struct {
	tag   uint16
	typ   FieldType
	count uint32
	data  []byte
}

// sizeIFD returns the byte size of an IFD table with n entries: the entry
// count, the entries themselves and the next-IFD pointer.
func sizeIFD(n int) int {
	return 2 + n*ifdEntrySize + 4
}

// Serialize renders the builder as an EXIF APP1 payload: the Exif header
// followed by a little-endian TIFF body holding the 0th, Exif and GPS IFDs
// with all out-of-line values packed after the tables.
func (b *Builder) Serialize() ([]byte, error) {
	if len(b.ifds[IFDFirst]) > 0 {
		return nil, errors.New("thumbnail IFD serialization not supported")
	}

	zeroth := withoutPointerTags(b.entries(IFDZeroth))
	exifIFD := b.entries(IFDExif)
	gps := b.entries(IFDGPS)

	exifOffset := tiffHeaderSize + sizeIFD(len(zeroth)+2)
	gpsOffset := exifOffset + sizeIFD(len(exifIFD))
	dataStart := gpsOffset + sizeIFD(len(gps))

	zeroth = insertEntry(zeroth, longEntry(TagExifIFDPointer, uint32(exifOffset)))
	zeroth = insertEntry(zeroth, longEntry(TagGPSIFDPointer, uint32(gpsOffset)))

	tiff := make([]byte, 0, dataStart)
	tiff = append(tiff, 'I', 'I')
	tiff = binary.LittleEndian.AppendUint16(tiff, tiffMagic)
	tiff = binary.LittleEndian.AppendUint32(tiff, tiffHeaderSize)

	var data []byte
	tiff = appendIFD(tiff, zeroth, &data, dataStart)
	tiff = appendIFD(tiff, exifIFD, &data, dataStart)
	tiff = appendIFD(tiff, gps, &data, dataStart)

	out := make([]byte, 0, len(jpeg.ExifSignature)+len(tiff)+len(data))
	out = append(out, jpeg.ExifSignature...)
	out = append(out, tiff...)
	out = append(out, data...)
	return out, nil
}

// entries collects the IFD group as wire entries sorted by tag.
func (b *Builder) entries(ifd string) []ifdEntry {
	group := b.ifds[ifd]
	out := make([]ifdEntry, 0, len(group))
	for _, tag := range b.Tags(ifd) {
		v := group[tag]
		out = append(out, ifdEntry{tag: tag, typ: v.Type, count: v.Count(), data: v.Data})
	}
	return out
}

// Pointer tags are rebuilt from the layout on every serialization, so
// copies carried over from a parsed file are discarded first.
func withoutPointerTags(entries []ifdEntry) []ifdEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.tag == TagExifIFDPointer || e.tag == TagGPSIFDPointer {
			continue
		}
		out = append(out, e)
	}
	return out
}

func longEntry(tag uint16, value uint32) ifdEntry {
	return ifdEntry{
		tag:   tag,
		typ:   TypeLong,
		count: 1,
		data:  binary.LittleEndian.AppendUint32(nil, value),
	}
}

// insertEntry places e into the tag-sorted entry list.
func insertEntry(entries []ifdEntry, e ifdEntry) []ifdEntry {
	i := sort.Search(len(entries), func(j int) bool { return entries[j].tag >= e.tag })
	entries = append(entries, ifdEntry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = e
	return entries
}

// appendIFD writes one IFD table. Values up to four bytes are stored inline
// zero padded, longer ones go to the shared data area addressed from the
// start of the TIFF body.
func appendIFD(tiff []byte, entries []ifdEntry, data *[]byte, dataStart int) []byte {
	tiff = binary.LittleEndian.AppendUint16(tiff, uint16(len(entries)))
	for _, e := range entries {
		tiff = binary.LittleEndian.AppendUint16(tiff, e.tag)
		tiff = binary.LittleEndian.AppendUint16(tiff, uint16(e.typ))
		tiff = binary.LittleEndian.AppendUint32(tiff, e.count)
		if len(e.data) <= 4 {
			var inline [4]byte
			copy(inline[:], e.data)
			tiff = append(tiff, inline[:]...)
		} else {
			tiff = binary.LittleEndian.AppendUint32(tiff, uint32(dataStart+len(*data)))
			*data = append(*data, e.data...)
		}
	}
	// IFDs are never chained, the next pointer stays zero.
	return binary.LittleEndian.AppendUint32(tiff, 0)
}
