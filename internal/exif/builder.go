package exif

import (
	"sort"
	"strings"
)

// Value is a single tag value in its wire representation. Data always holds
// little-endian bytes regardless of the byte order of the file it came
// from.
type Value struct {
	Type FieldType
	Data []byte
}

// Count returns the TIFF count field for the value.
func (v Value) Count() uint32 {
	size := typeSize(v.Type)
	if size == 0 {
		size = 1
	}
	return uint32(len(v.Data)) / size
}

// ASCIIString interprets the value as a NUL-terminated string.
func (v Value) ASCIIString() string {
	return strings.TrimRight(string(v.Data), "\x00")
}

// Builder assembles EXIF tag values grouped by IFD. All four groups exist
// from construction, so unset IFDs serialize as empty groups rather than
// missing ones.
type Builder struct {
	ifds map[string]map[uint16]Value
}

// NewBuilder returns an empty builder with all IFD groups present.
func NewBuilder() *Builder {
	return &Builder{ifds: map[string]map[uint16]Value{
		IFDZeroth: {},
		IFDExif:   {},
		IFDGPS:    {},
		IFDFirst:  {},
	}}
}

// Set stores a raw value under the given IFD and tag.
func (b *Builder) Set(ifd string, tag uint16, v Value) {
	group, ok := b.ifds[ifd]
	if !ok {
		group = map[uint16]Value{}
		b.ifds[ifd] = group
	}
	group[tag] = v
}

// SetASCII stores s as a NUL-terminated ASCII value.
func (b *Builder) SetASCII(ifd string, tag uint16, s string) {
	b.Set(ifd, tag, Value{Type: TypeASCII, Data: append([]byte(s), 0x00)})
}

// SetBytes stores data as a BYTE value.
func (b *Builder) SetBytes(ifd string, tag uint16, data []byte) {
	b.Set(ifd, tag, Value{Type: TypeByte, Data: data})
}

// SetUndefined stores data as an UNDEFINED value.
func (b *Builder) SetUndefined(ifd string, tag uint16, data []byte) {
	b.Set(ifd, tag, Value{Type: TypeUndefined, Data: data})
}

// Get returns the value stored under the given IFD and tag.
func (b *Builder) Get(ifd string, tag uint16) (Value, bool) {
	v, ok := b.ifds[ifd][tag]
	return v, ok
}

// Tags returns the tag codes present in an IFD in ascending order.
func (b *Builder) Tags(ifd string) []uint16 {
	group := b.ifds[ifd]
	tags := make([]uint16, 0, len(group))
	for tag := range group {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// BuildTags assembles the tag layout written into exported photos. The
// keyword list is expected in its final form, with the category already
// appended by the caller.
func BuildTags(title, description string, keywords []string, software string) *Builder {
	b := NewBuilder()
	b.SetASCII(IFDZeroth, TagImageDescription, description)
	b.SetBytes(IFDZeroth, TagXPTitle, EncodeUCS2(title))
	b.SetBytes(IFDZeroth, TagXPComment, EncodeUCS2(description))
	b.SetBytes(IFDZeroth, TagXPKeywords, EncodeUCS2(strings.Join(keywords, ";")))
	b.SetBytes(IFDZeroth, TagXPSubject, EncodeUCS2(description))
	b.SetASCII(IFDZeroth, TagSoftware, software)
	b.SetUndefined(IFDExif, TagUserComment, EncodeUserComment(description))
	return b
}
