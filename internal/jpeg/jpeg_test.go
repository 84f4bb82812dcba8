package jpeg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	stdjpeg "image/jpeg"
	"strings"
	"testing"
)

// minimalJPEG is the smallest buffer the splicer accepts: SOI followed by EOI.
func minimalJPEG() []byte {
	return []byte{0xFF, 0xD8, 0xFF, 0xD9}
}

// jfifJPEG builds SOI + a 20-byte APP0 (JFIF) segment + EOI.
func jfifJPEG() []byte {
	payload := append([]byte("JFIF\x00"), make([]byte, 11)...)
	buf := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x12}
	buf = append(buf, payload...)
	return append(buf, 0xFF, 0xD9)
}

// encodedJPEG encodes a small gradient through the standard library encoder.
func encodedJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := stdjpeg.Encode(&buf, img, &stdjpeg.Options{Quality: 85}); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// assertSegmentAt verifies that an APP1 segment carrying the XMP signature
// starts at the given offset.
func assertSegmentAt(t *testing.T, out []byte, offset int, packet string) {
	t.Helper()
	if out[offset] != 0xFF || out[offset+1] != 0xE1 {
		t.Fatalf("Expected APP1 marker at offset %d, got % X", offset, out[offset:offset+2])
	}
	wantLen := 2 + len(XMPSignature) + len(packet)
	gotLen := int(binary.BigEndian.Uint16(out[offset+2 : offset+4]))
	if gotLen != wantLen {
		t.Errorf("Expected segment length %d, got %d", wantLen, gotLen)
	}
	payload := out[offset+4 : offset+2+gotLen]
	if !bytes.HasPrefix(payload, XMPSignature) {
		t.Errorf("Segment payload does not start with the XMP signature")
	}
	if !bytes.HasSuffix(payload, []byte(packet)) {
		t.Errorf("Segment payload does not end with the packet text")
	}
}

func TestInsertXMP_MinimalBuffer(t *testing.T) {
	packet := "<x:xmpmeta xmlns:x=\"adobe:ns:meta/\"></x:xmpmeta>"

	out, err := InsertXMP(minimalJPEG(), packet)
	if err != nil {
		t.Fatalf("InsertXMP failed: %v", err)
	}

	assertSegmentAt(t, out, 2, packet)

	if !bytes.HasSuffix(out, []byte{0xFF, 0xD9}) {
		t.Errorf("EOI marker missing from spliced output")
	}
	wantSize := 4 + 4 + len(XMPSignature) + len(packet)
	if len(out) != wantSize {
		t.Errorf("Expected output of %d bytes, got %d", wantSize, len(out))
	}
}

func TestInsertXMP_AfterJFIFSegment(t *testing.T) {
	packet := "<x:xmpmeta/>"

	out, err := InsertXMP(jfifJPEG(), packet)
	if err != nil {
		t.Fatalf("InsertXMP failed: %v", err)
	}

	// SOI (2 bytes) + APP0 (20 bytes) puts the new segment at offset 22.
	assertSegmentAt(t, out, 22, packet)
}

func TestInsertXMP_SkipsChainedAppSegments(t *testing.T) {
	exifPayload := append([]byte("Exif\x00\x00"), 0x01, 0x02)
	buf := jfifJPEG()
	buf = buf[:len(buf)-2] // drop EOI
	buf = append(buf, 0xFF, 0xE1, 0x00, 0x0A)
	buf = append(buf, exifPayload...)
	buf = append(buf, 0xFF, 0xD9)

	out, err := InsertXMP(buf, "<x/>")
	if err != nil {
		t.Fatalf("InsertXMP failed: %v", err)
	}

	// SOI + 20-byte APP0 + 12-byte APP1 puts the new segment at offset 34.
	assertSegmentAt(t, out, 34, "<x/>")
}

func TestInsertXMP_NonAppMarkerInsertsAfterSOI(t *testing.T) {
	// DQT directly after SOI, no application segments to skip.
	buf := []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x04, 0x00, 0x00, 0xFF, 0xD9}

	out, err := InsertXMP(buf, "<x/>")
	if err != nil {
		t.Fatalf("InsertXMP failed: %v", err)
	}

	assertSegmentAt(t, out, 2, "<x/>")
}

func TestInsertXMP_InvalidLengthInsertsAfterSOI(t *testing.T) {
	// APP0 declaring a length far past the end of the buffer.
	buf := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0xFF, 0xFF, 0xFF, 0xD9}

	out, err := InsertXMP(buf, "<x/>")
	if err != nil {
		t.Fatalf("InsertXMP failed: %v", err)
	}

	assertSegmentAt(t, out, 2, "<x/>")
}

func TestInsertXMP_RejectsNonJPEG(t *testing.T) {
	cases := [][]byte{
		nil,
		{0xFF},
		[]byte("not a jpeg at all"),
		{0x89, 0x50, 0x4E, 0x47},
	}
	for _, buf := range cases {
		if _, err := InsertXMP(buf, "<x/>"); !errors.Is(err, ErrNotJPEG) {
			t.Errorf("Expected ErrNotJPEG for % X, got %v", buf, err)
		}
	}
}

func TestInsertXMP_RejectsOversizedPacket(t *testing.T) {
	packet := strings.Repeat("k", 70000)
	if _, err := InsertXMP(minimalJPEG(), packet); err == nil {
		t.Fatal("Expected an error for a packet above the segment limit")
	}
}

func TestInsertXMP_EncodedImageStillDecodes(t *testing.T) {
	src := encodedJPEG(t)

	out, err := InsertXMP(src, "<x:xmpmeta xmlns:x=\"adobe:ns:meta/\"></x:xmpmeta>")
	if err != nil {
		t.Fatalf("InsertXMP failed: %v", err)
	}

	// The standard library encoder emits no APP segments, so the packet
	// lands right after SOI.
	assertSegmentAt(t, out, 2, "<x:xmpmeta xmlns:x=\"adobe:ns:meta/\"></x:xmpmeta>")

	img, err := stdjpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Spliced JPEG no longer decodes: %v", err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 16 {
		t.Errorf("Decoded dimensions changed: %v", img.Bounds())
	}
}

func TestReplaceOrInsertExif_InsertsAfterSOI(t *testing.T) {
	payload := append([]byte("Exif\x00\x00"), []byte("IIBLOB")...)

	out, err := ReplaceOrInsertExif(jfifJPEG(), payload)
	if err != nil {
		t.Fatalf("ReplaceOrInsertExif failed: %v", err)
	}

	if out[2] != 0xFF || out[3] != 0xE1 {
		t.Fatalf("Expected EXIF APP1 directly after SOI, got % X", out[2:4])
	}
	if !bytes.HasPrefix(out[6:], ExifSignature) {
		t.Errorf("EXIF signature missing at payload start")
	}
	// The JFIF segment must follow unchanged.
	if idx := bytes.Index(out, []byte("JFIF\x00")); idx < 0 {
		t.Errorf("APP0 segment lost during splice")
	}
}

func TestReplaceOrInsertExif_ReplacesExisting(t *testing.T) {
	old := append([]byte("Exif\x00\x00"), []byte("OLDDATA")...)
	buf, err := ReplaceOrInsertExif(minimalJPEG(), old)
	if err != nil {
		t.Fatalf("Seeding EXIF segment failed: %v", err)
	}

	replacement := append([]byte("Exif\x00\x00"), []byte("NEW")...)
	out, err := ReplaceOrInsertExif(buf, replacement)
	if err != nil {
		t.Fatalf("ReplaceOrInsertExif failed: %v", err)
	}

	if bytes.Contains(out, []byte("OLDDATA")) {
		t.Errorf("Old EXIF payload still present after replacement")
	}
	if bytes.Count(out, ExifSignature) != 1 {
		t.Errorf("Expected exactly one EXIF segment, found %d", bytes.Count(out, ExifSignature))
	}

	seg, err := FindSegment(out, MarkerAPP1, ExifSignature)
	if err != nil || seg == nil {
		t.Fatalf("EXIF segment not found after replacement: %v", err)
	}
	if !bytes.Equal(seg.Payload, replacement) {
		t.Errorf("Replacement payload mismatch: got % X", seg.Payload)
	}
}

func TestReplaceOrInsertExif_RejectsBadSignature(t *testing.T) {
	if _, err := ReplaceOrInsertExif(minimalJPEG(), []byte("IIBLOB")); err == nil {
		t.Fatal("Expected an error for a payload without the EXIF signature")
	}
}

func TestSegments_WalksEncodedImage(t *testing.T) {
	segs, err := Segments(encodedJPEG(t))
	if err != nil {
		t.Fatalf("Segments failed: %v", err)
	}
	if len(segs) == 0 {
		t.Fatal("Expected at least one segment")
	}

	if last := segs[len(segs)-1]; last.Marker != MarkerSOS {
		t.Errorf("Expected walk to stop at SOS, last marker 0x%02X", last.Marker)
	}

	var sawDQT bool
	for _, s := range segs {
		if s.Marker == 0xDB {
			sawDQT = true
		}
	}
	if !sawDQT {
		t.Errorf("Expected a DQT segment in encoder output")
	}
}

func TestSegments_RejectsNonJPEG(t *testing.T) {
	if _, err := Segments([]byte("plain text")); !errors.Is(err, ErrNotJPEG) {
		t.Errorf("Expected ErrNotJPEG, got %v", err)
	}
}

func TestFindSegment_LocatesXMP(t *testing.T) {
	out, err := InsertXMP(jfifJPEG(), "<x:xmpmeta/>")
	if err != nil {
		t.Fatalf("InsertXMP failed: %v", err)
	}

	seg, err := FindSegment(out, MarkerAPP1, XMPSignature)
	if err != nil {
		t.Fatalf("FindSegment failed: %v", err)
	}
	if seg == nil {
		t.Fatal("XMP segment not found")
	}
	if !bytes.HasSuffix(seg.Payload, []byte("<x:xmpmeta/>")) {
		t.Errorf("Unexpected XMP payload: %q", seg.Payload)
	}

	if missing, err := FindSegment(out, MarkerAPP1, ExifSignature); err != nil || missing != nil {
		t.Errorf("Expected no EXIF segment, got %+v, %v", missing, err)
	}
}

func BenchmarkInsertXMP(b *testing.B) {
	buf := jfifJPEG()
	packet := strings.Repeat("<rdf:li>keyword</rdf:li>", 40)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := InsertXMP(buf, packet); err != nil {
			b.Fatal(err)
		}
	}
}
