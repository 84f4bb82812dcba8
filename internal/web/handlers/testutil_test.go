package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-tagger/internal/ai"
	"github.com/kozaktomas/photo-tagger/internal/config"
	"github.com/kozaktomas/photo-tagger/internal/library"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		AIProvider: "ollama",
		Categories: []string{"Nature", "People", "Architecture"},
	}
}

// testJPEG encodes a small gradient JPEG that the fingerprint and resize
// code paths can decode.
func testJPEG() []byte {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := range 32 {
		for x := range 32 {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) * 4)})
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

// invertedJPEG encodes a structurally different image so fingerprints do
// not collide with testJPEG.
func invertedJPEG() []byte {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := range 32 {
		for x := range 32 {
			img.SetGray(x, y, color.Gray{Y: 255 - uint8((x+y)*4)})
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func testAnalysis() *ai.PhotoAnalysis {
	return &ai.PhotoAnalysis{
		Title:       "Red rowboat at dawn",
		Description: "A red rowboat tied to a wooden jetty in morning fog.",
		Category:    "Nature",
		Keywords:    []string{"rowboat", "jetty", "fog", "dawn", "lake"},
		Quality:     &ai.QualityAnalysis{Score: 7, Issues: []string{"slight underexposure"}},
	}
}

// richAnalysis returns an analysis that passes the default keyword bounds.
func richAnalysis() *ai.PhotoAnalysis {
	analysis := testAnalysis()
	keywords := make([]string, 0, 25)
	for i := range 25 {
		keywords = append(keywords, fmt.Sprintf("keyword%02d", i))
	}
	analysis.Keywords = keywords
	return analysis
}

// seedPhoto adds a photo to the store, optionally walking it to completed.
func seedPhoto(t *testing.T, store *library.Store, name string, data []byte, complete bool) *library.Photo {
	t.Helper()
	photo, err := store.Add(name, "image/jpeg", data)
	if err != nil {
		t.Fatalf("failed to seed photo %s: %v", name, err)
	}
	if !complete {
		return photo
	}
	if err := store.SetProcessing(photo.ID); err != nil {
		t.Fatalf("SetProcessing failed: %v", err)
	}
	if err := store.SetCompleted(photo.ID, testAnalysis()); err != nil {
		t.Fatalf("SetCompleted failed: %v", err)
	}
	updated, err := store.Get(photo.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	return updated
}

// mockOllamaServer serves a canned analysis for every chat request so an
// analyze job can complete without a real model.
func mockOllamaServer(t *testing.T, analysis *ai.PhotoAnalysis) *httptest.Server {
	t.Helper()
	content, err := json.Marshal(analysis)
	if err != nil {
		t.Fatalf("failed to marshal analysis: %v", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model":             "test-model",
			"message":           map[string]string{"role": "assistant", "content": string(content)},
			"done":              true,
			"prompt_eval_count": 50,
			"eval_count":        30,
		})
	})
	return httptest.NewServer(mux)
}

// waitForJob polls until the job reaches a terminal status.
func waitForJob(t *testing.T, jm *JobManager, jobID string) *AnalyzeJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job := jm.GetJob(jobID)
		if job != nil && isJobTerminal(job.GetStatus()) {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal status in time")
	return nil
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
