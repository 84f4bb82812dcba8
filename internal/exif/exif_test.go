package exif

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kozaktomas/photo-tagger/internal/jpeg"
)

func TestEncodeUCS2(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []byte
	}{
		{"empty", "", []byte{0x00, 0x00}},
		{"ascii", "A", []byte{0x41, 0x00, 0x00, 0x00}},
		{"latin extended", "ž", []byte{0x7E, 0x01, 0x00, 0x00}},
		{"surrogate pair", "😀", []byte{0x3D, 0xD8, 0x00, 0xDE, 0x00, 0x00}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := EncodeUCS2(tc.in); !bytes.Equal(got, tc.want) {
				t.Errorf("EncodeUCS2(%q) = % X, want % X", tc.in, got, tc.want)
			}
		})
	}
}

func TestEncodeUCS2Length(t *testing.T) {
	// printable ASCII encodes to one code unit per byte plus the terminator
	for _, s := range []string{"", "a", "abc", "hello world 123"} {
		if got, want := len(EncodeUCS2(s)), 2*len(s)+2; got != want {
			t.Errorf("len(EncodeUCS2(%q)) = %d, want %d", s, got, want)
		}
	}
}

func TestUCS2RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"hello",
		"Žluťoučký kůň",
		"snow ☃ man",
		"mixed 😀 emoji",
	}
	for _, s := range inputs {
		if got := DecodeUCS2(EncodeUCS2(s)); got != s {
			t.Errorf("round trip of %q = %q", s, got)
		}
	}
}

func TestDecodeUCS2WithoutTerminator(t *testing.T) {
	if got := DecodeUCS2([]byte{0x41, 0x00, 0x42, 0x00}); got != "AB" {
		t.Errorf("DecodeUCS2 = %q, want %q", got, "AB")
	}
}

func TestEncodeUserComment(t *testing.T) {
	got := EncodeUserComment("Hi")
	want := append([]byte("ASCII\x00\x00\x00"), 'H', 'i')
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeUserComment = % X, want % X", got, want)
	}
}

func TestEncodeUserCommentDropsHighBytes(t *testing.T) {
	got := EncodeUserComment("Žák")
	want := append([]byte("ASCII\x00\x00\x00"), 0x7D, 0xE1, 0x6B)
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeUserComment = % X, want % X", got, want)
	}
}

func TestBuildTags(t *testing.T) {
	b := BuildTags("Sunset", "A warm sunset", []string{"sunset", "sky", "Nature"}, "photo-tagger")

	if v, ok := b.Get(IFDZeroth, TagImageDescription); !ok || v.ASCIIString() != "A warm sunset" {
		t.Errorf("ImageDescription = %q", v.ASCIIString())
	}
	if v, ok := b.Get(IFDZeroth, TagSoftware); !ok || v.ASCIIString() != "photo-tagger" {
		t.Errorf("Software = %q", v.ASCIIString())
	}
	if v, ok := b.Get(IFDZeroth, TagXPTitle); !ok || !bytes.Equal(v.Data, EncodeUCS2("Sunset")) {
		t.Errorf("XPTitle does not match the encoded title")
	}
	if v, ok := b.Get(IFDZeroth, TagXPKeywords); !ok || !bytes.Equal(v.Data, EncodeUCS2("sunset;sky;Nature")) {
		t.Errorf("XPKeywords does not match the joined keyword list")
	}

	comment, _ := b.Get(IFDZeroth, TagXPComment)
	subject, _ := b.Get(IFDZeroth, TagXPSubject)
	if !bytes.Equal(comment.Data, EncodeUCS2("A warm sunset")) {
		t.Errorf("XPComment does not match the encoded description")
	}
	if !bytes.Equal(subject.Data, comment.Data) {
		t.Errorf("XPSubject differs from XPComment")
	}

	if v, ok := b.Get(IFDExif, TagUserComment); !ok || !bytes.HasPrefix(v.Data, []byte("ASCII\x00\x00\x00")) {
		t.Errorf("UserComment misses the ASCII charset prefix")
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	built := BuildTags("Morning fog", "Fog over the valley", []string{"fog", "valley", "Nature"}, "photo-tagger")
	payload, err := built.Serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	if !bytes.HasPrefix(payload, jpeg.ExifSignature) {
		t.Fatalf("payload does not start with the Exif header")
	}

	parsed, err := Parse(payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	for _, tag := range built.Tags(IFDZeroth) {
		want, _ := built.Get(IFDZeroth, tag)
		got, ok := parsed.Get(IFDZeroth, tag)
		if !ok {
			t.Errorf("tag %s missing after round trip", TagName(tag))
			continue
		}
		if got.Type != want.Type || !bytes.Equal(got.Data, want.Data) {
			t.Errorf("tag %s changed after round trip", TagName(tag))
		}
	}
	if v, ok := parsed.Get(IFDExif, TagUserComment); !ok || !bytes.Equal(v.Data, EncodeUserComment("Fog over the valley")) {
		t.Errorf("UserComment changed after round trip")
	}
	if _, ok := parsed.Get(IFDZeroth, TagExifIFDPointer); !ok {
		t.Errorf("parsed 0th IFD misses the Exif sub-IFD pointer")
	}
}

func TestSerializeEmptyBuilder(t *testing.T) {
	payload, err := NewBuilder().Serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	parsed, err := Parse(payload)
	if err != nil {
		t.Fatalf("parse of empty block failed: %v", err)
	}
	tags := parsed.Tags(IFDZeroth)
	if len(tags) != 2 || tags[0] != TagExifIFDPointer || tags[1] != TagGPSIFDPointer {
		t.Errorf("0th IFD tags = %v, want just the sub-IFD pointers", tags)
	}
	if got := parsed.Tags(IFDExif); len(got) != 0 {
		t.Errorf("Exif IFD tags = %v, want none", got)
	}
}

func TestSerializeInlineValue(t *testing.T) {
	b := NewBuilder()
	b.SetASCII(IFDZeroth, TagImageDescription, "ab")
	payload, err := b.Serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	parsed, err := Parse(payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if v, ok := parsed.Get(IFDZeroth, TagImageDescription); !ok || v.ASCIIString() != "ab" {
		t.Errorf("inline ASCII value lost in round trip")
	}
}

func TestSerializeRejectsThumbnailIFD(t *testing.T) {
	b := NewBuilder()
	b.SetBytes(IFDFirst, 0x0201, []byte{0x00})
	if _, err := b.Serialize(); err == nil {
		t.Fatal("expected an error for a populated thumbnail IFD")
	}
}

func TestParseBigEndian(t *testing.T) {
	payload := []byte{
		'E', 'x', 'i', 'f', 0x00, 0x00,
		'M', 'M', 0x00, 0x2A,
		0x00, 0x00, 0x00, 0x08, // 0th IFD at offset 8
		0x00, 0x01, // one entry
		0x01, 0x12, // Orientation
		0x00, 0x03, // SHORT
		0x00, 0x00, 0x00, 0x01, // count 1
		0x00, 0x06, 0x00, 0x00, // value 6, left justified
		0x00, 0x00, 0x00, 0x00, // no chained IFD
	}
	b, err := Parse(payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	v, ok := b.Get(IFDZeroth, TagOrientation)
	if !ok {
		t.Fatal("Orientation missing")
	}
	if v.Type != TypeShort || !bytes.Equal(v.Data, []byte{0x06, 0x00}) {
		t.Errorf("Orientation = type %d data % X, want SHORT 06 00", v.Type, v.Data)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"truncated header", []byte("Exif")},
		{"wrong signature", []byte("JFIF\x00\x00II*\x00\x08\x00\x00\x00")},
		{"unknown byte order", append(append([]byte{}, jpeg.ExifSignature...), 'X', 'X', 0x2A, 0x00, 0x08, 0x00, 0x00, 0x00)},
		{"bad magic", append(append([]byte{}, jpeg.ExifSignature...), 'I', 'I', 0x00, 0x00, 0x08, 0x00, 0x00, 0x00)},
		{"ifd out of range", append(append([]byte{}, jpeg.ExifSignature...), 'I', 'I', 0x2A, 0x00, 0xFF, 0x00, 0x00, 0x00)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.payload); err == nil {
				t.Error("expected a parse error")
			}
		})
	}
}

func TestCodecSpliceIntoJPEG(t *testing.T) {
	container := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	built := BuildTags("Forest road", "A road through the forest", []string{"forest", "road"}, "photo-tagger")

	var codec Codec
	blob, err := codec.Render(built)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	out, err := codec.Splice(container, blob)
	if err != nil {
		t.Fatalf("splice failed: %v", err)
	}

	seg, err := jpeg.FindSegment(out, jpeg.MarkerAPP1, jpeg.ExifSignature)
	if err != nil {
		t.Fatalf("walking the spliced container failed: %v", err)
	}
	if seg == nil {
		t.Fatal("EXIF segment not found after splice")
	}
	parsed, err := Parse(seg.Payload)
	if err != nil {
		t.Fatalf("parse of spliced payload failed: %v", err)
	}
	if v, ok := parsed.Get(IFDZeroth, TagImageDescription); !ok || v.ASCIIString() != "A road through the forest" {
		t.Errorf("ImageDescription lost in the container")
	}
}

func BenchmarkEncodeUCS2(b *testing.B) {
	s := strings.Repeat("photo metadata ", 8)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		EncodeUCS2(s)
	}
}
