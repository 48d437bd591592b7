// Package exports runs assessment data exports asynchronously: jobs render
// the entries matching a filter into CSV or JSON artifacts and hand them to
// the artifact store.
package exports

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"carbonscope/internal/assemble"
	blob "carbonscope/internal/blob/core"
	"carbonscope/pkg/domain"
)

// Format selects the artifact encoding of an export job.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

func (f Format) contentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

func (f Format) filename() string {
	return "entries." + string(f)
}

func (f Format) valid() bool {
	return f == FormatCSV || f == FormatJSON
}

// Status describes the lifecycle stage of an export job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Artifact describes one stored export output.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Checksum    string    `json:"checksum"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks one export job from enqueue to completion.
type Record struct {
	ID          string                  `json:"id"`
	Filter      domain.AssessmentFilter `json:"filter"`
	Formats     []Format                `json:"formats"`
	Status      Status                  `json:"status"`
	Error       string                  `json:"error,omitempty"`
	Artifacts   []Artifact              `json:"artifacts,omitempty"`
	RequestedBy string                  `json:"requested_by"`
	Reason      string                  `json:"reason,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
}

// Input represents an enqueue request.
type Input struct {
	Filter      domain.AssessmentFilter
	Formats     []Format
	RequestedBy string
	Reason      string
}

// Scheduler queues export requests and exposes job status.
type Scheduler interface {
	Enqueue(ctx context.Context, input Input) (Record, error)
	Get(id string) (Record, bool)
}

// EntrySource yields the entries a job renders. Every assessment store
// satisfies it.
type EntrySource interface {
	GetAssessmentData(filter domain.AssessmentFilter) []domain.AssessmentDataEntry
}

// AuditLogger records export job transitions.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures one export job transition.
type AuditEntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor"`
	JobID      string    `json:"job_id"`
	Status     Status    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

const auditAction = "assessment_export"

// Worker executes export jobs asynchronously. Job records live in memory for
// the life of the worker; artifacts outlive it in the artifact store.
type Worker struct {
	source  EntrySource
	store   blob.Store
	audit   AuditLogger
	logger  domain.Logger
	workers int

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id string
}

// Option configures a Worker.
type Option func(*workerConfig)

type workerConfig struct {
	logger    domain.Logger
	workers   int
	queueSize int
}

// WithLogger routes job lifecycle logging to l.
func WithLogger(l domain.Logger) Option {
	return func(c *workerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithWorkers sets the number of processing goroutines.
func WithWorkers(n int) Option {
	return func(c *workerConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithQueueSize bounds the pending job queue.
func WithQueueSize(n int) Option {
	return func(c *workerConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// NewWorker constructs an export worker reading entries from source and
// writing artifacts through store. A nil store keeps artifacts unmaterialized
// and fails jobs at processing time.
func NewWorker(source EntrySource, store blob.Store, audit AuditLogger, opts ...Option) *Worker {
	cfg := workerConfig{logger: domain.NopLogger(), workers: 1, queueSize: 32}
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		source:  source,
		store:   store,
		audit:   audit,
		logger:  cfg.logger,
		workers: cfg.workers,
		queue:   make(chan task, cfg.queueSize),
		jobs:    make(map[string]*Record),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing queued jobs.
func (w *Worker) Start() {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.loop()
	}
}

// Stop signals the worker to halt and waits for in-flight jobs to finish.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.queue:
			w.process(task.id)
		}
	}
}

// Enqueue schedules an export job and returns the queued record. Formats
// default to CSV plus JSON; duplicates collapse.
func (w *Worker) Enqueue(ctx context.Context, input Input) (Record, error) {
	if w.source == nil {
		return Record{}, fmt.Errorf("export entry source not configured")
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatCSV, FormatJSON}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, format := range formats {
		if !format.valid() {
			return Record{}, fmt.Errorf("unsupported export format %s", format)
		}
		if _, duplicate := seen[format]; duplicate {
			continue
		}
		uniq = append(uniq, format)
		seen[format] = struct{}{}
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	record := Record{
		ID:          id,
		Filter:      input.Filter,
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queued := record.copy()
	w.mu.Unlock()

	w.recordAudit(ctx, AuditEntry{
		Actor:      input.RequestedBy,
		JobID:      id,
		Status:     StatusQueued,
		Reason:     input.Reason,
		OccurredAt: now,
	})

	select {
	case w.queue <- task{id: id}:
	default:
		w.mu.Lock()
		delete(w.jobs, id)
		w.mu.Unlock()
		return Record{}, fmt.Errorf("export queue full")
	}

	w.logger.Debug("export job queued", "job", id, "formats", len(uniq))
	return queued, nil
}

// Get returns a snapshot of a job record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

// Jobs returns snapshots of every known job, newest first.
func (w *Worker) Jobs() []Record {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Record, 0, len(w.jobs))
	for _, record := range w.jobs {
		out = append(out, record.copy())
	}
	sortRecords(out)
	return out
}

func (w *Worker) process(id string) {
	record, ok := w.Get(id)
	if !ok {
		return
	}

	w.updateStatus(id, StatusRunning, "")

	if w.store == nil {
		w.fail(id, "artifact store not configured")
		return
	}

	entries := w.source.GetAssessmentData(record.Filter)
	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		payload, err := materialize(format, entries)
		if err != nil {
			w.fail(id, err.Error())
			return
		}
		sum := sha256.Sum256(payload)
		key := blob.ExportKey(id, format.filename())
		info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: format.contentType(),
			Metadata: map[string]string{
				"entries":  strconv.Itoa(len(entries)),
				"checksum": hex.EncodeToString(sum[:]),
			},
		})
		if err != nil {
			w.fail(id, fmt.Sprintf("store artifact: %v", err))
			return
		}
		artifact := Artifact{
			Key:         info.Key,
			Format:      format,
			ContentType: info.ContentType,
			SizeBytes:   info.Size,
			Checksum:    hex.EncodeToString(sum[:]),
			URL:         info.URL,
			CreatedAt:   info.LastModified,
		}
		if artifact.ContentType == "" {
			artifact.ContentType = format.contentType()
		}
		if artifact.SizeBytes == 0 {
			artifact.SizeBytes = int64(len(payload))
		}
		if artifact.CreatedAt.IsZero() {
			artifact.CreatedAt = time.Now().UTC()
		}
		artifacts = append(artifacts, artifact)
	}

	w.complete(id, artifacts)
}

// materialize renders entries in the given format.
func materialize(format Format, entries []domain.AssessmentDataEntry) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatCSV:
		if err := assemble.WriteCSV(&buf, entries); err != nil {
			return nil, err
		}
	case FormatJSON:
		if err := assemble.WriteJSON(&buf, entries); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported export format %s", format)
	}
	return buf.Bytes(), nil
}

func (w *Worker) updateStatus(id string, status Status, message string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, AuditEntry{
		Actor:      w.actorFor(id),
		JobID:      id,
		Status:     status,
		Note:       message,
		OccurredAt: now,
	})
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, AuditEntry{
		Actor:      w.actorFor(id),
		JobID:      id,
		Status:     StatusSucceeded,
		OccurredAt: now,
	})
	w.logger.Debug("export job succeeded", "job", id, "artifacts", len(artifacts))
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, AuditEntry{
		Actor:      w.actorFor(id),
		JobID:      id,
		Status:     StatusFailed,
		Note:       reason,
		OccurredAt: now,
	})
	w.logger.Warn("export job failed", "job", id, "reason", reason)
}

func (w *Worker) recordAudit(ctx context.Context, entry AuditEntry) {
	if w.audit == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.Action = auditAction
	w.audit.Record(ctx, entry)
}

func (w *Worker) actorFor(id string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if record, ok := w.jobs[id]; ok {
		return record.RequestedBy
	}
	return ""
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	if r.Filter.ProjectID != nil {
		projectID := *r.Filter.ProjectID
		dup.Filter.ProjectID = &projectID
	}
	if r.CompletedAt != nil {
		completed := *r.CompletedAt
		dup.CompletedAt = &completed
	}
	return dup
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}

// MemoryAuditLog captures audit entries in memory for assertions.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a defensive copy of recorded audit entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
