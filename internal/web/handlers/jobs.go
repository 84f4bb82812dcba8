package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/photo-tagger/internal/constants"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// AnalyzeJob represents an async photo analysis job.
type AnalyzeJob struct {
	EventBroadcaster

	ID              string            `json:"id"`
	Status          JobStatus         `json:"status"`
	Progress        int               `json:"progress"`
	TotalPhotos     int               `json:"total_photos"`
	ProcessedPhotos int               `json:"processed_photos"`
	FailedPhotos    int               `json:"failed_photos"`
	Error           string            `json:"error,omitempty"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	Options         AnalyzeJobOptions `json:"options"`
	Result          *AnalyzeJobResult `json:"result,omitempty"`
}

// GetStatus returns the current job status (implements SSEJob).
func (j *AnalyzeJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// GetResult returns the job result, nil while the job is running.
func (j *AnalyzeJob) GetResult() *AnalyzeJobResult {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Result
}

// Cancel cancels the analyze job.
func (j *AnalyzeJob) Cancel() {
	j.EventBroadcaster.Cancel()
	j.mu.Lock()
	j.Status = JobStatusCancelled
	j.mu.Unlock()
}

// AnalyzeJobOptions represents analyze job options.
type AnalyzeJobOptions struct {
	IDs         []string `json:"ids,omitempty"`
	Provider    string   `json:"provider"`
	Concurrency int      `json:"concurrency"`
}

// AnalyzeJobResult represents the result of an analyze job.
type AnalyzeJobResult struct {
	AnalyzedCount int        `json:"analyzed_count"`
	FailedCount   int        `json:"failed_count"`
	Errors        []string   `json:"errors,omitempty"`
	Usage         *UsageInfo `json:"usage,omitempty"`
}

// UsageInfo represents API usage information.
type UsageInfo struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalCost    float64 `json:"total_cost"`
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	if b.cancel != nil {
		b.cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async analyze jobs.
type JobManager struct {
	jobs map[string]*AnalyzeJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*AnalyzeJob),
	}
}

// CreateJob creates a new analyze job.
func (m *JobManager) CreateJob(id string, totalPhotos int, options AnalyzeJobOptions) *AnalyzeJob {
	job := &AnalyzeJob{
		ID:          id,
		Status:      JobStatusPending,
		TotalPhotos: totalPhotos,
		StartedAt:   time.Now(),
		Options:     options,
	}

	m.mu.Lock()
	m.jobs[id] = job
	m.pruneLocked()
	m.mu.Unlock()

	return job
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *AnalyzeJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

// ListJobs returns all jobs.
func (m *JobManager) ListJobs() []*AnalyzeJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*AnalyzeJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// TotalUsage sums the recorded usage across all finished jobs.
func (m *JobManager) TotalUsage() UsageInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total UsageInfo
	for _, job := range m.jobs {
		result := job.GetResult()
		if result == nil || result.Usage == nil {
			continue
		}
		total.InputTokens += result.Usage.InputTokens
		total.OutputTokens += result.Usage.OutputTokens
		total.TotalCost += result.Usage.TotalCost
	}
	return total
}

// pruneLocked drops the oldest finished jobs once the retention limit is
// exceeded. Running jobs are never dropped. Caller holds the lock.
func (m *JobManager) pruneLocked() {
	if len(m.jobs) <= constants.JobRetention {
		return
	}

	var finished []*AnalyzeJob
	for _, job := range m.jobs {
		status := job.GetStatus()
		if status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled {
			finished = append(finished, job)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].StartedAt.Before(finished[j].StartedAt)
	})

	excess := len(m.jobs) - constants.JobRetention
	for i := 0; i < excess && i < len(finished); i++ {
		delete(m.jobs, finished[i].ID)
	}
}
