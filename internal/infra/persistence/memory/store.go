// Package memory provides the in-memory relational image behind the
// assessment store. It doubles as a standalone store for tests and ephemeral
// environments; the durable backends embed it and sync it with their medium.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"carbonscope/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.AssessmentStore = (*Store)(nil)

// Store keeps projects and assessment entries in process memory. All methods
// are safe for concurrent use. Version increments on every mutation so
// embedding stores can tell unflushed writes from a clean image.
type Store struct {
	mu          sync.RWMutex
	projects    map[int64]domain.Project
	pathIndex   map[string]int64
	assessments []domain.AssessmentDataEntry
	nextProject int64
	nextEntry   int64
	version     uint64
	closed      bool
	logger      domain.Logger
	nowFn       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger routes degradation warnings to l instead of discarding them.
func WithLogger(l domain.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the timestamp source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewStore returns an empty, ready-to-use in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		projects:    make(map[int64]domain.Project),
		pathIndex:   make(map[string]int64),
		nextProject: 1,
		nextEntry:   1,
		logger:      domain.NopLogger(),
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize is a no-op for the purely in-memory store.
func (s *Store) Initialize(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return nil
}

// CreateProject registers a project for path, returning the existing ID when
// the path is already known. Paths are unique by construction.
func (s *Store) CreateProject(_ context.Context, name, path string) (int64, error) {
	if path == "" {
		return 0, errors.New("project path must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, domain.ErrStoreClosed
	}
	if id, ok := s.pathIndex[path]; ok {
		return id, nil
	}
	now := s.nowFn()
	project := domain.Project{
		ID:        s.nextProject,
		Name:      name,
		Path:      path,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.nextProject++
	s.projects[project.ID] = project
	s.pathIndex[path] = project.ID
	s.version++
	return project.ID, nil
}

// UpdateProject applies mutate to the project at path. Identity fields are
// preserved and UpdatedAt is refreshed on success.
func (s *Store) UpdateProject(_ context.Context, path string, mutate func(*domain.Project) error) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.Project{}, domain.ErrStoreClosed
	}
	id, ok := s.pathIndex[path]
	if !ok {
		return domain.Project{}, domain.NotFoundError{Entity: "project", Key: path}
	}
	current := s.projects[id]
	updated := cloneProject(current)
	if err := mutate(&updated); err != nil {
		return domain.Project{}, err
	}
	updated.ID = current.ID
	updated.Path = current.Path
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = s.nowFn()
	s.projects[id] = updated
	s.version++
	return cloneProject(updated), nil
}

// StoreAssessmentData appends one immutable tool run record. The payload is
// normalized to its JSON-decoded shape so it round-trips identically through
// every backend.
func (s *Store) StoreAssessmentData(_ context.Context, projectID int64, toolName, dataType string, data any, source string) (int64, error) {
	if toolName == "" {
		return 0, errors.New("tool name must not be empty")
	}
	if dataType == "" {
		return 0, errors.New("data type must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, domain.ErrStoreClosed
	}
	entry := domain.AssessmentDataEntry{
		ID:        s.nextEntry,
		ProjectID: projectID,
		ToolName:  toolName,
		DataType:  dataType,
		Data:      normalizeValue(data),
		Timestamp: s.nowFn(),
		Source:    source,
	}
	s.nextEntry++
	s.assessments = append(s.assessments, entry)
	s.version++
	return entry.ID, nil
}

// GetProject returns the project registered at path, or nil. On a closed
// store it logs and returns nil.
func (s *Store) GetProject(path string) *domain.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn("project lookup on unavailable store", "path", path)
		return nil
	}
	id, ok := s.pathIndex[path]
	if !ok {
		return nil
	}
	project := cloneProject(s.projects[id])
	return &project
}

// GetAllProjects lists every project ordered by ID. Empty on a closed store.
func (s *Store) GetAllProjects() []domain.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn("project listing on unavailable store")
		return nil
	}
	out := make([]domain.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, cloneProject(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetAssessmentData lists entries matching filter, newest first (timestamp
// descending, ties broken by higher ID). Empty on a closed store.
func (s *Store) GetAssessmentData(filter domain.AssessmentFilter) []domain.AssessmentDataEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn("assessment query on unavailable store")
		return nil
	}
	var out []domain.AssessmentDataEntry
	for _, entry := range s.assessments {
		if filter.ProjectID != nil && entry.ProjectID != *filter.ProjectID {
			continue
		}
		if filter.ToolName != "" && entry.ToolName != filter.ToolName {
			continue
		}
		if filter.DataType != "" && entry.DataType != filter.DataType {
			continue
		}
		out = append(out, cloneEntry(entry))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Reload is a no-op for the purely in-memory store.
func (s *Store) Reload(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return nil
}

// Flush is a no-op for the purely in-memory store.
func (s *Store) Flush(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return nil
}

// Close marks the store unavailable and releases the image. Idempotent.
func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.projects = nil
	s.pathIndex = nil
	s.assessments = nil
	return nil
}

// ExistedOnInit is always false for the in-memory store.
func (s *Store) ExistedOnInit() bool { return false }

// MarkUnavailable puts the store into the degraded closed state without a
// flush, used by durable backends whose Initialize failed.
func (s *Store) MarkUnavailable(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.logger.Warn("assessment store marked unavailable", "reason", reason)
	}
	s.closed = true
}

// Version returns the mutation counter. Embedding stores compare it against
// the version captured at their last successful load or flush.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// ExportState deep-copies the current image. Empty once closed.
func (s *Store) ExportState() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.Snapshot{}
	}
	snap := domain.Snapshot{
		Projects:    make([]domain.Project, 0, len(s.projects)),
		Assessments: make([]domain.AssessmentDataEntry, 0, len(s.assessments)),
	}
	for _, p := range s.projects {
		snap.Projects = append(snap.Projects, cloneProject(p))
	}
	sort.Slice(snap.Projects, func(i, j int) bool { return snap.Projects[i].ID < snap.Projects[j].ID })
	for _, e := range s.assessments {
		snap.Assessments = append(snap.Assessments, cloneEntry(e))
	}
	sort.Slice(snap.Assessments, func(i, j int) bool { return snap.Assessments[i].ID < snap.Assessments[j].ID })
	return snap
}

// ImportState replaces the image with snap and recomputes ID counters. It is
// ignored on a closed store.
func (s *Store) ImportState(snap domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.projects = make(map[int64]domain.Project, len(snap.Projects))
	s.pathIndex = make(map[string]int64, len(snap.Projects))
	s.nextProject = 1
	for _, p := range snap.Projects {
		clone := cloneProject(p)
		s.projects[clone.ID] = clone
		s.pathIndex[clone.Path] = clone.ID
		if clone.ID >= s.nextProject {
			s.nextProject = clone.ID + 1
		}
	}
	s.assessments = make([]domain.AssessmentDataEntry, 0, len(snap.Assessments))
	s.nextEntry = 1
	for _, e := range snap.Assessments {
		clone := cloneEntry(e)
		s.assessments = append(s.assessments, clone)
		if clone.ID >= s.nextEntry {
			s.nextEntry = clone.ID + 1
		}
	}
	s.version++
}

// normalizeValue coerces a payload into its JSON-decoded shape. Values that
// cannot be marshalled are stored as-is; they simply will not survive a
// durable round trip unchanged.
func normalizeValue(v any) any {
	switch v.(type) {
	case nil, string, bool, float64:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return v
	}
	return decoded
}

func cloneProject(p domain.Project) domain.Project {
	out := p
	out.Metadata = cloneBag(p.Metadata)
	out.CO2Variables = cloneBag(p.CO2Variables)
	return out
}

func cloneEntry(e domain.AssessmentDataEntry) domain.AssessmentDataEntry {
	out := e
	out.Data = normalizeValue(e.Data)
	return out
}

func cloneBag(bag map[string]any) map[string]any {
	if bag == nil {
		return nil
	}
	cloned, ok := normalizeValue(bag).(map[string]any)
	if !ok {
		return nil
	}
	return cloned
}
