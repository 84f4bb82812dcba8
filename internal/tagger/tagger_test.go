package tagger

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kozaktomas/photo-tagger/internal/ai"
	"github.com/kozaktomas/photo-tagger/internal/embedder"
	"github.com/kozaktomas/photo-tagger/internal/exif"
)

// stubProvider implements ai.Provider with canned answers.
type stubProvider struct {
	mu      sync.Mutex
	calls   int
	failFor string // original name that should fail analysis
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) AnalyzePhoto(ctx context.Context, imageData []byte, opts ai.AnalyzeOptions) (*ai.PhotoAnalysis, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.failFor != "" && opts.OriginalName == s.failFor {
		return nil, errors.New("model refused")
	}
	return &ai.PhotoAnalysis{
		Title:       "Stub title for " + opts.OriginalName,
		Description: "A stubbed analysis.",
		Category:    "Nature",
		Keywords:    []string{"stub", "test"},
		Quality:     &ai.QualityAnalysis{Score: 8},
	}, nil
}

func (s *stubProvider) GetUsage() *ai.Usage {
	return &ai.Usage{InputTokens: 100, OutputTokens: 40, TotalCost: 0.001}
}

func (s *stubProvider) ResetUsage() {}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for y := range 16 {
		for x := range 16 {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) * 8)})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode test JPEG: %v", err)
	}
	return buf.Bytes()
}

// photoDir creates a temp directory holding the named photo files.
func photoDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	data := testJPEG(t)
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

func createTaggerForTest() *Tagger {
	return New(&stubProvider{}, embedder.New(exif.Codec{}))
}

func TestMimeForExt(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"photo.jpg", "image/jpeg"},
		{"photo.JPEG", "image/jpeg"},
		{"photo.png", "image/png"},
		{"photo.PNG", "image/png"},
		{"notes.txt", ""},
		{"noextension", ""},
	}

	for _, tc := range tests {
		if got := mimeForExt(tc.name); got != tc.expected {
			t.Errorf("mimeForExt(%q) = %q, expected %q", tc.name, got, tc.expected)
		}
	}
}

func TestScanDir(t *testing.T) {
	dir := photoDir(t, "b.png", "a.jpg", "notes.txt", ".hidden.jpg")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("failed to create subdirectory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, StateFile), []byte("{}"), 0o644); err != nil {
		t.Fatalf("failed to write state file: %v", err)
	}

	photos, err := scanDir(dir)
	if err != nil {
		t.Fatalf("scanDir failed: %v", err)
	}

	if len(photos) != 2 {
		t.Fatalf("expected 2 photos, got %d", len(photos))
	}
	if photos[0].Name != "a.jpg" || photos[1].Name != "b.png" {
		t.Errorf("unexpected scan order: %s, %s", photos[0].Name, photos[1].Name)
	}
	if photos[0].MIME != "image/jpeg" || photos[1].MIME != "image/png" {
		t.Errorf("unexpected MIME types: %s, %s", photos[0].MIME, photos[1].MIME)
	}
}

func TestScanDir_MissingDirectory(t *testing.T) {
	_, err := scanDir("/nonexistent/photos")
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestState_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	state := &State{
		Version:  StateVersion,
		Provider: "stub",
		Photos: []StatePhoto{
			{
				File: "a.jpg",
				MIME: "image/jpeg",
				Analysis: ai.PhotoAnalysis{
					Title:    "A title",
					Category: "Nature",
					Keywords: []string{"one", "two"},
				},
			},
		},
	}

	if err := state.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if state.TaggedAt.IsZero() {
		t.Error("expected Save to stamp the tagging time")
	}

	loaded, err := LoadState(dir)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if loaded.Provider != "stub" {
		t.Errorf("expected provider 'stub', got '%s'", loaded.Provider)
	}
	if len(loaded.Photos) != 1 || loaded.Photos[0].Analysis.Title != "A title" {
		t.Errorf("unexpected loaded state: %+v", loaded)
	}
}

func TestLoadState_Missing(t *testing.T) {
	_, err := LoadState(t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing state file")
	}
}

func TestLoadState_FutureVersion(t *testing.T) {
	dir := t.TempDir()
	content := fmt.Sprintf(`{"version": %d, "photos": []}`, StateVersion+1)
	if err := os.WriteFile(filepath.Join(dir, StateFile), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write state file: %v", err)
	}

	_, err := LoadState(dir)
	if err == nil {
		t.Fatal("expected error for future state version")
	}
}

func TestState_Items(t *testing.T) {
	dir := photoDir(t, "a.jpg")
	state := &State{
		Photos: []StatePhoto{
			{File: "a.jpg", MIME: "image/jpeg", Analysis: ai.PhotoAnalysis{Title: "A title"}},
		},
	}

	items := state.Items(dir)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Title != "A title" || items[0].MIME != "image/jpeg" {
		t.Errorf("unexpected item: %+v", items[0])
	}

	data, err := items[0].Source()
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected Source to read the photo bytes")
	}
}

func TestTagger_Run_DryRun(t *testing.T) {
	dir := photoDir(t, "a.jpg", "b.jpg")
	tagger := createTaggerForTest()

	result, err := tagger.Run(context.Background(), dir, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.ProcessedCount != 2 || result.TaggedCount != 2 {
		t.Errorf("expected 2 processed and tagged, got %d/%d", result.ProcessedCount, result.TaggedCount)
	}
	if result.WrittenCount != 0 {
		t.Errorf("expected nothing written in dry run, got %d", result.WrittenCount)
	}
	if len(result.Tagged) != 2 || result.Tagged[0].File != "a.jpg" {
		t.Errorf("expected per-photo results in scan order, got %+v", result.Tagged)
	}
	if result.Usage == nil || result.Usage.InputTokens != 100 {
		t.Errorf("expected usage from provider, got %+v", result.Usage)
	}
	if _, err := os.Stat(filepath.Join(dir, StateFile)); !os.IsNotExist(err) {
		t.Error("expected no state file after dry run")
	}
}

func TestTagger_Run_WritesOutputDir(t *testing.T) {
	dir := photoDir(t, "a.jpg")
	outDir := filepath.Join(t.TempDir(), "out")
	csvPath := filepath.Join(t.TempDir(), "manifest.csv")
	tagger := createTaggerForTest()

	result, err := tagger.Run(context.Background(), dir, Options{
		OutputDir: outDir,
		CSVPath:   csvPath,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.WrittenCount != 1 {
		t.Errorf("expected 1 written photo, got %d", result.WrittenCount)
	}

	// Output name derives from the stubbed title
	outPath := filepath.Join(outDir, "stub_title_for_a_jpg(Nature).jpg")
	if _, err := os.Stat(outPath); err != nil {
		entries, _ := os.ReadDir(outDir)
		t.Fatalf("expected output photo at %s: %v (dir has %d entries)", outPath, err, len(entries))
	}

	// Sidecar enables later re-export
	if _, err := LoadState(dir); err != nil {
		t.Errorf("expected a readable state file: %v", err)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("failed to open manifest: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("manifest is not valid CSV: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected header plus 1 row, got %d records", len(records))
	}
}

func TestTagger_Run_WritesZip(t *testing.T) {
	dir := photoDir(t, "a.jpg", "b.jpg")
	zipPath := filepath.Join(t.TempDir(), "photos.zip")
	tagger := createTaggerForTest()

	result, err := tagger.Run(context.Background(), dir, Options{ZipPath: zipPath})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.WrittenCount != 2 {
		t.Errorf("expected 2 archived photos, got %d", result.WrittenCount)
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("archive is not a valid zip: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 2 {
		t.Errorf("expected 2 archive entries, got %d", len(zr.File))
	}
}

func TestTagger_Run_CollectsFailures(t *testing.T) {
	dir := photoDir(t, "a.jpg", "broken.jpg")
	tagger := New(&stubProvider{failFor: "broken.jpg"}, embedder.New(exif.Codec{}))

	result, err := tagger.Run(context.Background(), dir, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.TaggedCount != 1 {
		t.Errorf("expected 1 tagged photo, got %d", result.TaggedCount)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(result.Errors))
	}
	if msg := result.Errors[0].Error(); !strings.Contains(msg, "broken.jpg") {
		t.Errorf("expected error to name the photo, got %q", msg)
	}
}

func TestTagger_Run_EmptyDirectory(t *testing.T) {
	tagger := createTaggerForTest()

	_, err := tagger.Run(context.Background(), t.TempDir(), Options{})
	if err == nil {
		t.Fatal("expected error for empty directory")
	}
}
