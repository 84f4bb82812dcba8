package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/photo-tagger/internal/ai"
	"github.com/kozaktomas/photo-tagger/internal/config"
	"github.com/kozaktomas/photo-tagger/internal/constants"
	"github.com/kozaktomas/photo-tagger/internal/library"
)

// AnalyzeHandler handles analysis job endpoints.
type AnalyzeHandler struct {
	config     *config.Config
	store      *library.Store
	jobManager *JobManager
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(cfg *config.Config, store *library.Store, jm *JobManager) *AnalyzeHandler {
	return &AnalyzeHandler{
		config:     cfg,
		store:      store,
		jobManager: jm,
	}
}

// AnalyzeRequest represents an analyze start request. All fields are
// optional; an empty body analyzes every pending photo with the
// configured default provider.
type AnalyzeRequest struct {
	IDs         []string `json:"ids"`
	Provider    string   `json:"provider"`
	Concurrency int      `json:"concurrency"`
}

// Start starts a new analysis job over pending photos.
func (h *AnalyzeHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if req.Provider == "" {
		req.Provider = h.config.AIProvider
	}
	if req.Concurrency <= 0 {
		req.Concurrency = constants.DefaultAnalyzeConcurrency
	}
	if req.Concurrency > constants.MaxAnalyzeConcurrency {
		req.Concurrency = constants.MaxAnalyzeConcurrency
	}

	photos, err := h.selectPhotos(req.IDs)
	if err != nil {
		respondError(w, photoErrorStatus(err), err.Error())
		return
	}

	jobID := uuid.New().String()
	options := AnalyzeJobOptions{
		IDs:         req.IDs,
		Provider:    req.Provider,
		Concurrency: req.Concurrency,
	}
	job := h.jobManager.CreateJob(jobID, len(photos), options)

	go h.runAnalyzeJob(job, photos)

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id":       jobID,
		"total_photos": len(photos),
		"status":       string(JobStatusPending),
	})
}

// selectPhotos resolves the explicit ID list, or falls back to every
// pending photo. Explicit IDs must exist and be pending.
func (h *AnalyzeHandler) selectPhotos(ids []string) ([]*library.Photo, error) {
	if len(ids) == 0 {
		photos := h.store.ListByStatus(library.StatusPending)
		if len(photos) == 0 {
			return nil, errors.New("no pending photos to analyze")
		}
		return photos, nil
	}

	photos := make([]*library.Photo, 0, len(ids))
	for _, id := range ids {
		photo, err := h.store.Get(id)
		if err != nil {
			return nil, fmt.Errorf("photo %s: %w", id, err)
		}
		if photo.Status != library.StatusPending {
			return nil, fmt.Errorf("photo %s is %s, not pending", id, photo.Status)
		}
		photos = append(photos, photo)
	}
	return photos, nil
}

// Status returns the status of an analysis job.
func (h *AnalyzeHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// Events streams job events via SSE.
func (h *AnalyzeHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job
		},
	)
}

// Cancel cancels an analysis job.
func (h *AnalyzeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// runAnalyzeJob runs the analysis job in the background.
func (h *AnalyzeHandler) runAnalyzeJob(job *AnalyzeJob, photos []*library.Photo) {
	ctx, cancel := context.WithCancel(context.Background())
	job.cancel = cancel
	defer cancel()

	job.mu.Lock()
	job.Status = JobStatusRunning
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "started", Message: "Analysis job started"})

	aiProvider, err := h.createAIProvider(job.Options.Provider)
	if err != nil {
		h.failJob(job, err.Error())
		return
	}

	var failures struct {
		mu   sync.Mutex
		msgs []string
	}

	// The semaphore also throttles dispatch, so the context check
	// runs at most one batch behind a cancellation.
	sem := make(chan struct{}, job.Options.Concurrency)
	var wg sync.WaitGroup
	for _, photo := range photos {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(p *library.Photo) {
			defer wg.Done()
			defer func() { <-sem }()

			updated, err := h.analyzePhoto(ctx, aiProvider, p)
			if err != nil && ctx.Err() != nil {
				// Interrupted mid-flight, the photo went back to pending
				return
			}

			job.mu.Lock()
			job.ProcessedPhotos++
			if err != nil {
				job.FailedPhotos++
			}
			if job.TotalPhotos > 0 {
				job.Progress = job.ProcessedPhotos * 100 / job.TotalPhotos
			}
			current := job.ProcessedPhotos
			total := job.TotalPhotos
			job.mu.Unlock()

			if err != nil {
				failures.mu.Lock()
				failures.msgs = append(failures.msgs, fmt.Sprintf("%s: %v", p.OriginalName, err))
				failures.mu.Unlock()
				job.SendEvent(JobEvent{
					Type:    "photo_error",
					Message: err.Error(),
					Data:    map[string]string{"photo_id": p.ID},
				})
				return
			}

			title := ""
			if updated.Analysis != nil {
				title = updated.Analysis.Title
			}
			job.SendEvent(JobEvent{
				Type: "progress",
				Data: map[string]any{
					"current":  current,
					"total":    total,
					"photo_id": p.ID,
					"title":    title,
				},
			})
		}(photo)
	}
	wg.Wait()

	if ctx.Err() != nil {
		now := time.Now()
		job.mu.Lock()
		job.Status = JobStatusCancelled
		job.CompletedAt = &now
		job.mu.Unlock()
		job.SendEvent(JobEvent{Type: "cancelled", Message: "Job was cancelled"})
		return
	}

	usage := aiProvider.GetUsage()

	job.mu.Lock()
	processed := job.ProcessedPhotos
	failed := job.FailedPhotos
	job.mu.Unlock()

	jobResult := &AnalyzeJobResult{
		AnalyzedCount: processed - failed,
		FailedCount:   failed,
		Errors:        failures.msgs,
		Usage: &UsageInfo{
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
			TotalCost:    usage.TotalCost,
		},
	}

	now := time.Now()
	job.mu.Lock()
	job.Status = JobStatusCompleted
	job.CompletedAt = &now
	job.Progress = 100
	job.Result = jobResult
	job.mu.Unlock()

	job.SendEvent(JobEvent{Type: "completed", Data: jobResult})
}

// analyzePhoto runs a single photo through the provider and records the
// outcome in the library. On success it returns the updated photo. A
// cancellation that aborts the provider call reverts the photo to
// pending so a later job picks it up again.
func (h *AnalyzeHandler) analyzePhoto(ctx context.Context, provider ai.Provider, photo *library.Photo) (*library.Photo, error) {
	if err := h.store.SetProcessing(photo.ID); err != nil {
		return nil, err
	}
	mirrorStatus(ctx, photo.ID, library.StatusProcessing, "")

	analysis, err := provider.AnalyzePhoto(ctx, photo.Data, ai.AnalyzeOptions{
		Categories:   h.config.Categories,
		OriginalName: photo.OriginalName,
	})
	if err != nil {
		if ctx.Err() != nil {
			if resetErr := h.store.ResetProcessing(photo.ID); resetErr != nil {
				log.Printf("WARNING: could not reset photo %s after cancellation: %v", photo.ID, resetErr)
			}
			mirrorStatus(context.Background(), photo.ID, library.StatusPending, "")
			return nil, err
		}
		if failErr := h.store.SetFailed(photo.ID, err.Error()); failErr != nil {
			log.Printf("WARNING: could not mark photo %s as failed: %v", photo.ID, failErr)
		}
		mirrorStatus(ctx, photo.ID, library.StatusFailed, err.Error())
		return nil, err
	}

	if err := h.store.SetCompleted(photo.ID, analysis); err != nil {
		return nil, err
	}
	updated, err := h.store.Get(photo.ID)
	if err != nil {
		return nil, err
	}
	mirrorSave(ctx, updated)

	return updated, nil
}

func (h *AnalyzeHandler) failJob(job *AnalyzeJob, message string) {
	now := time.Now()
	job.mu.Lock()
	job.Status = JobStatusFailed
	job.Error = message
	job.CompletedAt = &now
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "job_error", Message: message})
}

func (h *AnalyzeHandler) createAIProvider(providerName string) (ai.Provider, error) {
	switch providerName {
	case constants.ProviderOpenAI:
		if h.config.OpenAI.APIKey == "" {
			return nil, errors.New("OPENAI_API_KEY environment variable is required")
		}
		pricing := h.config.GetModelPricing("gpt-4.1-mini")
		return ai.NewOpenAIProvider(h.config.OpenAI.APIKey,
			ai.RequestPricing{Input: pricing.Standard.Input, Output: pricing.Standard.Output},
		), nil
	case constants.ProviderGemini:
		if h.config.Gemini.APIKey == "" {
			return nil, errors.New("GEMINI_API_KEY environment variable is required")
		}
		pricing := h.config.GetModelPricing("gemini-2.5-flash")
		provider, err := ai.NewGeminiProvider(context.Background(), h.config.Gemini.APIKey,
			ai.RequestPricing{Input: pricing.Standard.Input, Output: pricing.Standard.Output},
		)
		if err != nil {
			return nil, fmt.Errorf("creating Gemini provider: %w", err)
		}
		return provider, nil
	case constants.ProviderOllama:
		return ai.NewOllamaProvider(h.config.Ollama.URL, h.config.Ollama.Model), nil
	case constants.ProviderLlamaCpp:
		p, err := ai.NewLlamaCppProvider(h.config.LlamaCpp.URL, h.config.LlamaCpp.Model)
		if err != nil {
			return nil, fmt.Errorf("creating llama.cpp provider: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", providerName)
	}
}
