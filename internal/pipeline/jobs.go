package pipeline

import (
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// JobStatus represents the state of an ingestion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusValidating JobStatus = "validating"
	StatusStoring    JobStatus = "storing"
	StatusPublishing JobStatus = "publishing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartial, StatusDupSkipped:
		return true
	}
	return false
}

// Job tracks the state of a single bundle ingestion.
type Job struct {
	mu sync.Mutex

	ID     string `json:"job_id"`
	SiteID string `json:"site_id"`
	Name   string `json:"name"`
	Force  bool   `json:"force"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	DuplicateOf string    `json:"duplicate_of,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	files  map[string][]byte
	errors []string
}

// Progress tracks processing progress.
type Progress struct {
	Files              int      `json:"files"`
	NavNodes           int      `json:"nav_nodes"`
	Entries            int      `json:"entries"`
	ValidationErrors   int      `json:"validation_errors"`
	ValidationWarnings int      `json:"validation_warnings"`
	SymbolsPublished   int      `json:"symbols_published"`
	NavPublished       int      `json:"nav_published"`
	PublishSkipped     bool     `json:"publish_skipped"`
	Errors             []string `json:"errors"`
}

// NewJob creates a queued job for the uploaded files. An empty siteID is
// replaced by the job's own ID, lower-cased.
func NewJob(siteID, name string, files map[string][]byte, force bool) *Job {
	now := time.Now()
	id := ulid.Make().String()
	if siteID == "" {
		siteID = strings.ToLower(id)
	}
	return &Job{
		ID:        id,
		SiteID:    siteID,
		Name:      name,
		Force:     force,
		Status:    StatusQueued,
		Phase:     "queued",
		Progress:  Progress{Files: len(files)},
		CreatedAt: now,
		UpdatedAt: now,
		files:     files,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
	if status.Done() {
		// uploaded bytes are no longer needed
		j.files = nil
	}
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetParsed records what the bundle contained.
func (j *Job) SetParsed(hash string, navNodes, entries int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = hash
	j.Progress.NavNodes = navNodes
	j.Progress.Entries = entries
	j.UpdatedAt = time.Now()
}

// SetValidation records validation totals.
func (j *Job) SetValidation(errors, warnings int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ValidationErrors = errors
	j.Progress.ValidationWarnings = warnings
	j.UpdatedAt = time.Now()
}

// AddPublished records published node counts.
func (j *Job) AddPublished(symbols, nav int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.SymbolsPublished += symbols
	j.Progress.NavPublished += nav
	j.UpdatedAt = time.Now()
}

// MarkPublishSkipped records that the published revision was already current.
func (j *Job) MarkPublishSkipped() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.PublishSkipped = true
	j.UpdatedAt = time.Now()
}

// SetDuplicateOf records the site that already holds this content.
func (j *Job) SetDuplicateOf(siteID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.DuplicateOf = siteID
}

// Files returns the uploaded files.
func (j *Job) Files() map[string][]byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.files
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	SiteID      string    `json:"site_id"`
	Name        string    `json:"name,omitempty"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	ContentHash string    `json:"content_hash,omitempty"`
	DuplicateOf string    `json:"duplicate_of,omitempty"`
	Progress    Progress  `json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	progress := j.Progress
	progress.Errors = append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:          j.ID,
		SiteID:      j.SiteID,
		Name:        j.Name,
		Status:      j.Status,
		Phase:       j.Phase,
		ContentHash: j.ContentHash,
		DuplicateOf: j.DuplicateOf,
		Progress:    progress,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}
