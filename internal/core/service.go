// Package core wires the assessment store, the schema registry, and the
// presentation pipeline behind one instrumented service facade.
package core

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"carbonscope/internal/assemble"
	"carbonscope/internal/classify"
	"carbonscope/internal/infra/persistence/memory"
	"carbonscope/pkg/domain"
	"carbonscope/pkg/schemaapi"
)

// The registry doubles as the plugin-facing registration surface.
var _ schemaapi.Registry = (*SchemaRegistry)(nil)

// Service exposes the store lifecycle, record-keeping, and presentation
// operations behind one facade. Every operation runs instrumented: a trace
// span, a metrics observation, a log line, and an audit entry for mutations.
type Service struct {
	store    domain.AssessmentStore
	registry *SchemaRegistry
	logger   domain.Logger
	clock    Clock
	metrics  MetricsRecorder
	tracer   Tracer
	audit    AuditRecorder

	seeds map[string]domain.ThresholdSet

	mu      sync.Mutex
	plugins map[string]PluginMetadata
}

// Option configures a Service.
type Option func(*Service)

// WithLogger routes service logs to l.
func WithLogger(l domain.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the audit timestamp source.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMetricsRecorder registers a metrics sink for operation observations.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer registers a tracer opening one span per operation.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithAuditRecorder registers an audit sink for mutating operations.
func WithAuditRecorder(a AuditRecorder) Option {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithThresholds seeds per-metric threshold overrides, typically from
// configuration. Invalid sets are dropped with a warning.
func WithThresholds(sets map[string]domain.ThresholdSet) Option {
	return func(s *Service) {
		for metric, set := range sets {
			s.seeds[metric] = set
		}
	}
}

// NewService constructs a service over store.
func NewService(store domain.AssessmentStore, opts ...Option) *Service {
	s := &Service{
		store:    store,
		registry: NewSchemaRegistry(),
		logger:   domain.NopLogger(),
		clock:    ClockFunc(nil),
		metrics:  noopMetricsRecorder{},
		tracer:   noopTracer{},
		audit:    noopAuditRecorder{},
		seeds:    make(map[string]domain.ThresholdSet),
		plugins:  make(map[string]PluginMetadata),
	}
	for _, opt := range opts {
		opt(s)
	}
	for metric, set := range s.seeds {
		if err := s.registry.RegisterThresholds(metric, set); err != nil {
			s.logger.Warn("dropping threshold override", "metric", metric, "error", err)
		}
	}
	s.seeds = nil
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(opts ...Option) *Service {
	return NewService(memory.NewStore(), opts...)
}

// Store returns the underlying assessment store.
func (s *Service) Store() domain.AssessmentStore {
	return s.store
}

// Registry returns the schema registry backing presentation.
func (s *Service) Registry() *SchemaRegistry {
	return s.registry
}

// Initialize prepares the store's in-memory image from its backing medium.
func (s *Service) Initialize(ctx context.Context) error {
	return s.run(ctx, "initialize_store", func(ctx context.Context) (string, error) {
		return "", s.store.Initialize(ctx)
	})
}

// Reload replaces the store's in-memory image with a fresh read of the
// backing medium, picking up writes from other processes.
func (s *Service) Reload(ctx context.Context) error {
	return s.run(ctx, "reload_store", func(ctx context.Context) (string, error) {
		return "", s.store.Reload(ctx)
	})
}

// Flush persists the store's in-memory image.
func (s *Service) Flush(ctx context.Context) error {
	return s.run(ctx, "flush_store", func(ctx context.Context) (string, error) {
		return "", s.store.Flush(ctx)
	})
}

// Close releases the store, flushing when safe.
func (s *Service) Close(ctx context.Context) error {
	return s.run(ctx, "close_store", func(ctx context.Context) (string, error) {
		return "", s.store.Close(ctx)
	})
}

// RegisterProject registers a project for path, returning the stored record.
// Registering a known path returns the existing project unchanged.
func (s *Service) RegisterProject(ctx context.Context, name, path string) (domain.Project, error) {
	var project domain.Project
	err := s.run(ctx, "register_project", func(ctx context.Context) (string, error) {
		id, err := s.store.CreateProject(ctx, name, path)
		if err != nil {
			return "", err
		}
		if p := s.store.GetProject(path); p != nil {
			project = *p
		} else {
			project = domain.Project{ID: id, Name: name, Path: path}
		}
		return strconv.FormatInt(id, 10), nil
	})
	return project, err
}

// UpdateProject applies mutate to the project registered at path.
func (s *Service) UpdateProject(ctx context.Context, path string, mutate func(*domain.Project) error) (domain.Project, error) {
	var updated domain.Project
	err := s.run(ctx, "update_project", func(ctx context.Context) (string, error) {
		var err error
		updated, err = s.store.UpdateProject(ctx, path, mutate)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(updated.ID, 10), nil
	})
	return updated, err
}

// AssessmentInput names the parameters of RecordAssessment.
type AssessmentInput struct {
	ProjectName string
	ProjectPath string
	ToolName    string
	DataType    string
	Data        any
	Source      string
}

// RecordAssessment appends one tool run record to the project at
// input.ProjectPath, registering the project first when unknown. It returns
// the stored entry's ID.
func (s *Service) RecordAssessment(ctx context.Context, input AssessmentInput) (int64, error) {
	var entryID int64
	err := s.run(ctx, "record_assessment", func(ctx context.Context) (string, error) {
		projectID, err := s.store.CreateProject(ctx, input.ProjectName, input.ProjectPath)
		if err != nil {
			return "", err
		}
		entryID, err = s.store.StoreAssessmentData(ctx, projectID, input.ToolName, input.DataType, input.Data, input.Source)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(entryID, 10), nil
	})
	return entryID, err
}

// Project returns the project registered at path, or nil.
func (s *Service) Project(path string) *domain.Project {
	return s.store.GetProject(path)
}

// Projects lists every registered project ordered by ID.
func (s *Service) Projects() []domain.Project {
	return s.store.GetAllProjects()
}

// Assessments lists entries matching filter, newest first.
func (s *Service) Assessments(filter domain.AssessmentFilter) []domain.AssessmentDataEntry {
	return s.store.GetAssessmentData(filter)
}

// GroupedEntries renders the entries matching filter as presentation groups.
func (s *Service) GroupedEntries(ctx context.Context, filter domain.AssessmentFilter) []assemble.Group {
	var groups []assemble.Group
	_ = s.run(ctx, "grouped_entries", func(context.Context) (string, error) {
		groups = s.assembler().Groups(s.store.GetAssessmentData(filter))
		return "", nil
	})
	return groups
}

// Search renders the entries matching filter whose tool name or payload
// contains query.
func (s *Service) Search(ctx context.Context, filter domain.AssessmentFilter, query string) []assemble.Item {
	var items []assemble.Item
	_ = s.run(ctx, "search_entries", func(context.Context) (string, error) {
		items = s.assembler().Search(s.store.GetAssessmentData(filter), query)
		return "", nil
	})
	return items
}

// Statistics summarizes the entries matching filter.
func (s *Service) Statistics(ctx context.Context, filter domain.AssessmentFilter) assemble.Statistics {
	var stats assemble.Statistics
	_ = s.run(ctx, "entry_statistics", func(context.Context) (string, error) {
		stats = s.assembler().Statistics(s.store.GetAssessmentData(filter))
		return "", nil
	})
	return stats
}

// ExportCSV writes the entries matching filter to w as CSV.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, filter domain.AssessmentFilter) error {
	return s.run(ctx, "export_csv", func(context.Context) (string, error) {
		return "", assemble.WriteCSV(w, s.store.GetAssessmentData(filter))
	})
}

// ExportJSON writes the entries matching filter to w as a JSON document.
func (s *Service) ExportJSON(ctx context.Context, w io.Writer, filter domain.AssessmentFilter) error {
	return s.run(ctx, "export_json", func(context.Context) (string, error) {
		return "", assemble.WriteJSON(w, s.store.GetAssessmentData(filter))
	})
}

// PluginMetadata describes an installed plugin.
type PluginMetadata struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Schemas []string `json:"schemas,omitempty"`
}

// InstallPlugin registers a plugin's schemas and thresholds. Registration is
// staged so a failing plugin leaves the live registry untouched; schema name
// conflicts across plugins are rejected.
func (s *Service) InstallPlugin(ctx context.Context, plugin schemaapi.Plugin) (PluginMetadata, error) {
	if plugin == nil {
		return PluginMetadata{}, fmt.Errorf("plugin must not be nil")
	}
	var meta PluginMetadata
	err := s.run(ctx, "install_plugin", func(context.Context) (string, error) {
		staging := NewSchemaRegistry()
		if err := plugin.Register(staging); err != nil {
			return plugin.Name(), fmt.Errorf("register plugin %s: %w", plugin.Name(), err)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.plugins[plugin.Name()]; ok {
			return plugin.Name(), fmt.Errorf("plugin %s already registered", plugin.Name())
		}
		staged := staging.Schemas()
		for _, schema := range staged {
			if _, exists := s.registry.Schema(schema.Name); exists {
				return plugin.Name(), fmt.Errorf("tool schema %s already registered", schema.Name)
			}
		}
		names := make([]string, 0, len(staged))
		for _, schema := range staged {
			if err := s.registry.RegisterSchema(schema); err != nil {
				return plugin.Name(), err
			}
			names = append(names, schema.Name)
		}
		for metric, set := range staging.Thresholds() {
			if err := s.registry.RegisterThresholds(metric, set); err != nil {
				return plugin.Name(), err
			}
		}

		meta = PluginMetadata{Name: plugin.Name(), Version: plugin.Version(), Schemas: names}
		s.plugins[plugin.Name()] = meta
		return plugin.Name(), nil
	})
	return meta, err
}

// RegisteredPlugins returns metadata for installed plugins sorted by name.
func (s *Service) RegisteredPlugins() []PluginMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PluginMetadata, 0, len(s.plugins))
	for _, meta := range s.plugins {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// assembler builds a presentation assembler over the current registry state.
// Rebuilt per call so plugin registrations take effect immediately.
func (s *Service) assembler() *assemble.Assembler {
	return assemble.New(s.registry, classify.New(s.registry.Thresholds()), assemble.WithLogger(s.logger))
}

// auditedOperations maps instrumented operations onto the entity and action
// recorded in their audit entries. Operations absent here are observed by
// metrics and traces only.
var auditedOperations = map[string]struct {
	Entity string
	Action string
}{
	"register_project":  {Entity: "project", Action: ActionCreate},
	"update_project":    {Entity: "project", Action: ActionUpdate},
	"record_assessment": {Entity: "assessment", Action: ActionCreate},
	"install_plugin":    {Entity: "plugin", Action: ActionInstall},
}

// run executes fn instrumented. fn returns the audited entity ID, empty when
// the operation has none.
func (s *Service) run(ctx context.Context, op string, fn func(context.Context) (string, error)) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	entityID, err := fn(ctx)
	elapsed := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	if err != nil {
		s.logger.Error(op+" failed", "error", err)
		s.recordAudit(ctx, op, entityID, AuditStatusError, elapsed)
		return err
	}
	s.logger.Debug(op+" completed", "duration", elapsed)
	s.recordAudit(ctx, op, entityID, AuditStatusSuccess, elapsed)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, op, entityID string, status AuditStatus, duration time.Duration) {
	spec, ok := auditedOperations[op]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: op,
		Entity:    spec.Entity,
		Action:    spec.Action,
		EntityID:  entityID,
		Status:    status,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	})
}
