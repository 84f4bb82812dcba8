package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/photo-tagger/internal/library"
)

func createAnalyzeHandlerForTest(store *library.Store, ollamaURL string) (*AnalyzeHandler, *JobManager) {
	cfg := testConfig()
	cfg.Ollama.URL = ollamaURL
	cfg.Ollama.Model = "test-model"
	jm := NewJobManager()
	return NewAnalyzeHandler(cfg, store, jm), jm
}

func TestAnalyzeHandler_Start_Success(t *testing.T) {
	server := mockOllamaServer(t, richAnalysis())
	defer server.Close()

	store := library.NewStore()
	seedPhoto(t, store, "one.jpg", testJPEG(), false)
	seedPhoto(t, store, "two.jpg", invertedJPEG(), false)

	handler, jm := createAnalyzeHandlerForTest(store, server.URL)

	req := httptest.NewRequest("POST", "/api/v1/analyze", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	handler.Start(recorder, req)

	assertStatusCode(t, recorder, http.StatusAccepted)

	var result map[string]any
	parseJSONResponse(t, recorder, &result)

	jobID, _ := result["job_id"].(string)
	if jobID == "" {
		t.Fatal("expected non-empty job_id")
	}
	if total, _ := result["total_photos"].(float64); int(total) != 2 {
		t.Errorf("expected total_photos 2, got %v", result["total_photos"])
	}

	job := waitForJob(t, jm, jobID)
	if job.GetStatus() != JobStatusCompleted {
		t.Fatalf("expected completed job, got %s (error: %s)", job.GetStatus(), job.Error)
	}

	jobResult := job.GetResult()
	if jobResult == nil {
		t.Fatal("expected job result")
	}
	if jobResult.AnalyzedCount != 2 || jobResult.FailedCount != 0 {
		t.Errorf("unexpected counts: %+v", jobResult)
	}
	if jobResult.Usage == nil || jobResult.Usage.InputTokens != 100 || jobResult.Usage.OutputTokens != 60 {
		t.Errorf("unexpected usage: %+v", jobResult.Usage)
	}

	for _, photo := range store.List() {
		if photo.Status != library.StatusCompleted {
			t.Errorf("photo %s is %s, expected completed", photo.OriginalName, photo.Status)
		}
		if photo.Analysis == nil || photo.Analysis.Title != "Red rowboat at dawn" {
			t.Errorf("photo %s has unexpected analysis: %+v", photo.OriginalName, photo.Analysis)
		}
	}
}

func TestAnalyzeHandler_Start_EmptyBody(t *testing.T) {
	server := mockOllamaServer(t, richAnalysis())
	defer server.Close()

	store := library.NewStore()
	seedPhoto(t, store, "one.jpg", testJPEG(), false)

	handler, jm := createAnalyzeHandlerForTest(store, server.URL)

	req := httptest.NewRequest("POST", "/api/v1/analyze", nil)
	recorder := httptest.NewRecorder()
	handler.Start(recorder, req)

	assertStatusCode(t, recorder, http.StatusAccepted)

	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	waitForJob(t, jm, result["job_id"].(string))
}

func TestAnalyzeHandler_Start_NoPending(t *testing.T) {
	store := library.NewStore()
	seedPhoto(t, store, "done.jpg", testJPEG(), true)
	handler, _ := createAnalyzeHandlerForTest(store, "")

	req := httptest.NewRequest("POST", "/api/v1/analyze", bytes.NewBufferString(`{}`))
	recorder := httptest.NewRecorder()
	handler.Start(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "no pending photos to analyze")
}

func TestAnalyzeHandler_Start_ExplicitIDs(t *testing.T) {
	server := mockOllamaServer(t, richAnalysis())
	defer server.Close()

	store := library.NewStore()
	pending := seedPhoto(t, store, "one.jpg", testJPEG(), false)
	completed := seedPhoto(t, store, "two.jpg", invertedJPEG(), true)

	handler, jm := createAnalyzeHandlerForTest(store, server.URL)

	body := bytes.NewBufferString(fmt.Sprintf(`{"ids": [%q]}`, pending.ID))
	req := httptest.NewRequest("POST", "/api/v1/analyze", body)
	recorder := httptest.NewRecorder()
	handler.Start(recorder, req)

	assertStatusCode(t, recorder, http.StatusAccepted)

	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if total, _ := result["total_photos"].(float64); int(total) != 1 {
		t.Errorf("expected total_photos 1, got %v", result["total_photos"])
	}
	waitForJob(t, jm, result["job_id"].(string))

	// A completed photo cannot be queued again
	body = bytes.NewBufferString(fmt.Sprintf(`{"ids": [%q]}`, completed.ID))
	req = httptest.NewRequest("POST", "/api/v1/analyze", body)
	recorder = httptest.NewRecorder()
	handler.Start(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestAnalyzeHandler_Start_UnknownID(t *testing.T) {
	store := library.NewStore()
	handler, _ := createAnalyzeHandlerForTest(store, "")

	body := bytes.NewBufferString(`{"ids": ["no-such-photo"]}`)
	req := httptest.NewRequest("POST", "/api/v1/analyze", body)
	recorder := httptest.NewRecorder()
	handler.Start(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestAnalyzeHandler_Start_InvalidJSON(t *testing.T) {
	store := library.NewStore()
	seedPhoto(t, store, "one.jpg", testJPEG(), false)
	handler, _ := createAnalyzeHandlerForTest(store, "")

	req := httptest.NewRequest("POST", "/api/v1/analyze", bytes.NewBufferString(`{invalid`))
	recorder := httptest.NewRecorder()
	handler.Start(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "invalid request body")
}

func TestAnalyzeHandler_Start_UnknownProvider(t *testing.T) {
	store := library.NewStore()
	seedPhoto(t, store, "one.jpg", testJPEG(), false)
	handler, jm := createAnalyzeHandlerForTest(store, "")

	body := bytes.NewBufferString(`{"provider": "crystal-ball"}`)
	req := httptest.NewRequest("POST", "/api/v1/analyze", body)
	recorder := httptest.NewRecorder()
	handler.Start(recorder, req)

	// The job is accepted, provider creation fails in the background
	assertStatusCode(t, recorder, http.StatusAccepted)

	var result map[string]any
	parseJSONResponse(t, recorder, &result)

	job := waitForJob(t, jm, result["job_id"].(string))
	if job.GetStatus() != JobStatusFailed {
		t.Errorf("expected failed job, got %s", job.GetStatus())
	}
	if job.Error != "unknown provider: crystal-ball" {
		t.Errorf("unexpected job error %q", job.Error)
	}
}

func TestAnalyzeHandler_FailedPhoto(t *testing.T) {
	// Five keywords never satisfy the default minimum, so every retry
	// fails validation and the photo ends up failed.
	server := mockOllamaServer(t, testAnalysis())
	defer server.Close()

	store := library.NewStore()
	photo := seedPhoto(t, store, "one.jpg", testJPEG(), false)

	handler, jm := createAnalyzeHandlerForTest(store, server.URL)

	req := httptest.NewRequest("POST", "/api/v1/analyze", bytes.NewBufferString(`{}`))
	recorder := httptest.NewRecorder()
	handler.Start(recorder, req)

	assertStatusCode(t, recorder, http.StatusAccepted)

	var result map[string]any
	parseJSONResponse(t, recorder, &result)

	job := waitForJob(t, jm, result["job_id"].(string))
	if job.GetStatus() != JobStatusCompleted {
		t.Fatalf("expected completed job, got %s", job.GetStatus())
	}

	jobResult := job.GetResult()
	if jobResult.AnalyzedCount != 0 || jobResult.FailedCount != 1 {
		t.Errorf("unexpected counts: %+v", jobResult)
	}
	if len(jobResult.Errors) != 1 {
		t.Errorf("expected 1 recorded error, got %v", jobResult.Errors)
	}

	got, _ := store.Get(photo.ID)
	if got.Status != library.StatusFailed {
		t.Errorf("expected failed photo, got %s", got.Status)
	}
	if got.Error == "" {
		t.Error("expected failure reason on the photo")
	}
}

func TestAnalyzeHandler_CancelRevertsInFlight(t *testing.T) {
	// The model endpoint blocks until the client gives up, so the photo
	// is still in flight when the job is cancelled.
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := library.NewStore()
	photo := seedPhoto(t, store, "one.jpg", testJPEG(), false)

	handler, jm := createAnalyzeHandlerForTest(store, server.URL)

	req := httptest.NewRequest("POST", "/api/v1/analyze", bytes.NewBufferString(`{}`))
	recorder := httptest.NewRecorder()
	handler.Start(recorder, req)

	assertStatusCode(t, recorder, http.StatusAccepted)

	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	jobID := result["job_id"].(string)

	// Wait until the photo is actually being processed
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, _ := store.Get(photo.ID)
		if got.Status == library.StatusProcessing {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancelReq := httptest.NewRequest("DELETE", "/api/v1/analyze/"+jobID, nil)
	cancelReq = requestWithChiParams(cancelReq, map[string]string{"jobId": jobID})
	cancelRecorder := httptest.NewRecorder()
	handler.Cancel(cancelRecorder, cancelReq)

	assertStatusCode(t, cancelRecorder, http.StatusOK)

	job := waitForJob(t, jm, jobID)
	if job.GetStatus() != JobStatusCancelled {
		t.Errorf("expected cancelled job, got %s", job.GetStatus())
	}

	// The interrupted photo went back to pending
	deadline = time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, _ := store.Get(photo.ID)
		if got.Status == library.StatusPending {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	got, _ := store.Get(photo.ID)
	t.Errorf("expected pending photo after cancellation, got %s", got.Status)
}

func TestAnalyzeHandler_Status(t *testing.T) {
	store := library.NewStore()
	handler, jm := createAnalyzeHandlerForTest(store, "")

	job := jm.CreateJob("job-123", 4, AnalyzeJobOptions{Provider: "ollama", Concurrency: 2})
	job.mu.Lock()
	job.Status = JobStatusRunning
	job.ProcessedPhotos = 2
	job.Progress = 50
	job.mu.Unlock()

	req := httptest.NewRequest("GET", "/api/v1/analyze/job-123", nil)
	req = requestWithChiParams(req, map[string]string{"jobId": "job-123"})

	recorder := httptest.NewRecorder()
	handler.Status(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["status"] != "running" {
		t.Errorf("expected running status, got %v", result["status"])
	}
	if progress, _ := result["progress"].(float64); int(progress) != 50 {
		t.Errorf("expected progress 50, got %v", result["progress"])
	}
}

func TestAnalyzeHandler_Status_NotFound(t *testing.T) {
	handler, _ := createAnalyzeHandlerForTest(library.NewStore(), "")

	req := httptest.NewRequest("GET", "/api/v1/analyze/missing", nil)
	req = requestWithChiParams(req, map[string]string{"jobId": "missing"})

	recorder := httptest.NewRecorder()
	handler.Status(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "job not found")
}

func TestAnalyzeHandler_Cancel_NotFound(t *testing.T) {
	handler, _ := createAnalyzeHandlerForTest(library.NewStore(), "")

	req := httptest.NewRequest("DELETE", "/api/v1/analyze/missing", nil)
	req = requestWithChiParams(req, map[string]string{"jobId": "missing"})

	recorder := httptest.NewRecorder()
	handler.Cancel(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "job not found")
}
