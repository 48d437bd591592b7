// Package postgres provides a Postgres-backed assessment store that mirrors
// the in-memory semantics and writes through after every mutation.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"carbonscope/internal/infra/persistence/memory"
	"carbonscope/internal/sqlbundle"
	"carbonscope/pkg/domain"
)

var _ domain.AssessmentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with OpenAssessmentStore defaults while
	// allowing overrides via env.
	defaultDSN = "postgres://localhost/carbonscope?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists the assessment image to Postgres while serving queries from
// the embedded in-memory store. Unlike the file-backed store it does not wait
// for Close: every successful mutation is written through, so a crash loses
// nothing.
type Store struct {
	*memory.Store

	mu        sync.Mutex
	dsn       string
	logger    domain.Logger
	clock     func() time.Time
	db        *sql.DB
	existed   bool
	failed    bool
	closed    bool
	lastSaved uint64
}

// Option configures a Store.
type Option func(*Store)

// WithLogger routes lifecycle logging to l.
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
			s.clock = now
		}
	}
}

// NewStore returns a store that will connect to dsn on Initialize. An empty
// dsn falls back to the local default.
func NewStore(dsn string, opts ...Option) *Store {
	if dsn == "" {
		dsn = defaultDSN
	}
	s := &Store{
		dsn:    dsn,
		logger: domain.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	memOpts := []memory.Option{memory.WithLogger(s.logger)}
	if s.clock != nil {
		memOpts = append(memOpts, memory.WithClock(s.clock))
	}
	s.Store = memory.NewStore(memOpts...)
	return s
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

// Initialize connects, applies the DDL, and hydrates the in-memory image
// from whatever rows the database already holds.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	if s.db != nil {
		return nil
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, s.dsn)
	openMu.Unlock()
	if err == nil {
		if err = db.PingContext(ctx); err != nil {
			err = fmt.Errorf("ping postgres: %w", err)
		}
	} else {
		err = fmt.Errorf("open postgres: %w", err)
	}
	if err == nil {
		err = applyDDL(ctx, db)
	}
	var snap domain.Snapshot
	if err == nil {
		snap, err = readSnapshot(ctx, db)
	}
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		s.failed = true
		s.logger.Error("initialize assessment store", "dsn", s.dsn, "error", err)
		s.MarkUnavailable("postgres not reachable")
		return fmt.Errorf("initialize postgres store: %w", err)
	}
	s.db = db
	s.ImportState(snap)
	s.existed = len(snap.Projects) > 0 || len(snap.Assessments) > 0
	s.lastSaved = s.Version()
	return nil
}

// Reload replaces the in-memory image with a fresh read of the tables.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.failed {
		return domain.ErrStoreClosed
	}
	if s.db == nil {
		return errors.New("postgres store not initialized")
	}
	snap, err := readSnapshot(ctx, s.db)
	if err != nil {
		s.logger.Error("reload assessment store", "error", err)
		return fmt.Errorf("reload postgres store: %w", err)
	}
	s.ImportState(snap)
	s.lastSaved = s.Version()
	return nil
}

// Flush writes the current image. With write-through mutations this only
// matters after a persist failure left unflushed state behind.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return s.persistLocked(ctx)
}

// Close flushes any unpersisted writes and releases the connection.
// Idempotent.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.db != nil {
		if !s.failed && s.Version() != s.lastSaved {
			err = s.persistLocked(ctx)
		}
		if cerr := s.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
		s.db = nil
	}
	s.mu.Unlock()
	if cerr := s.Store.Close(ctx); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// ExistedOnInit reports whether Initialize found existing rows.
func (s *Store) ExistedOnInit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existed
}

// CreateProject registers the project in memory and writes through.
func (s *Store) CreateProject(ctx context.Context, name, path string) (int64, error) {
	id, err := s.Store.CreateProject(ctx, name, path)
	if err != nil {
		return id, err
	}
	if err := s.persist(ctx); err != nil {
		return id, err
	}
	return id, nil
}

// UpdateProject applies the mutation in memory and writes through.
func (s *Store) UpdateProject(ctx context.Context, path string, mutate func(*domain.Project) error) (domain.Project, error) {
	project, err := s.Store.UpdateProject(ctx, path, mutate)
	if err != nil {
		return project, err
	}
	if err := s.persist(ctx); err != nil {
		return project, err
	}
	return project, nil
}

// StoreAssessmentData appends the entry in memory and writes through.
func (s *Store) StoreAssessmentData(ctx context.Context, projectID int64, toolName, dataType string, data any, source string) (int64, error) {
	id, err := s.Store.StoreAssessmentData(ctx, projectID, toolName, dataType, data, source)
	if err != nil {
		return id, err
	}
	if err := s.persist(ctx); err != nil {
		return id, err
	}
	return id, nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) error {
	if s.failed {
		return errors.New("postgres store never initialized cleanly")
	}
	if s.db == nil {
		return errors.New("postgres store not initialized")
	}
	snap := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, "DELETE FROM assessment_data"); err != nil {
		return fmt.Errorf("clear assessment_data: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM projects"); err != nil {
		return fmt.Errorf("clear projects: %w", err)
	}
	for _, p := range snap.Projects {
		metadata, err := encodeBag(p.Metadata)
		if err != nil {
			return fmt.Errorf("project %d metadata: %w", p.ID, err)
		}
		co2Vars, err := encodeBag(p.CO2Variables)
		if err != nil {
			return fmt.Errorf("project %d co2_variables: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO projects(id, name, path, created_at, updated_at, metadata, co2_variables) VALUES($1, $2, $3, $4, $5, $6, $7)",
			p.ID, p.Name, p.Path, p.CreatedAt.UTC(), p.UpdatedAt.UTC(), metadata, co2Vars); err != nil {
			return fmt.Errorf("insert project %d: %w", p.ID, err)
		}
	}
	for _, e := range snap.Assessments {
		payload, err := encodePayload(e.Data)
		if err != nil {
			return fmt.Errorf("entry %d data: %w", e.ID, err)
		}
		var projectID any
		if e.ProjectID != 0 {
			projectID = e.ProjectID
		}
		var source any
		if e.Source != "" {
			source = e.Source
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO assessment_data(id, project_id, tool_name, data_type, data, timestamp, source) VALUES($1, $2, $3, $4, $5, $6, $7)",
			e.ID, projectID, e.ToolName, e.DataType, payload, e.Timestamp.UTC(), source); err != nil {
			return fmt.Errorf("insert entry %d: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	s.lastSaved = s.Version()
	return nil
}

func applyDDL(ctx context.Context, db *sql.DB) error {
	for _, stmt := range sqlbundle.SplitStatements(sqlbundle.Postgres()) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

func readSnapshot(ctx context.Context, db *sql.DB) (domain.Snapshot, error) {
	var snap domain.Snapshot
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, path, created_at, updated_at, metadata, co2_variables FROM projects ORDER BY id")
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("select projects: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			p                 domain.Project
			metadata, co2Vars []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Path, &p.CreatedAt, &p.UpdatedAt, &metadata, &co2Vars); err != nil {
			return domain.Snapshot{}, fmt.Errorf("scan project: %w", err)
		}
		if p.Metadata, err = decodeBag(metadata); err != nil {
			return domain.Snapshot{}, fmt.Errorf("project %d metadata: %w", p.ID, err)
		}
		if p.CO2Variables, err = decodeBag(co2Vars); err != nil {
			return domain.Snapshot{}, fmt.Errorf("project %d co2_variables: %w", p.ID, err)
		}
		snap.Projects = append(snap.Projects, p)
	}
	if err := rows.Err(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("iterate projects: %w", err)
	}

	entryRows, err := db.QueryContext(ctx,
		"SELECT id, project_id, tool_name, data_type, data, timestamp, source FROM assessment_data ORDER BY id")
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("select assessment_data: %w", err)
	}
	defer func() { _ = entryRows.Close() }()
	for entryRows.Next() {
		var (
			e         domain.AssessmentDataEntry
			projectID sql.NullInt64
			payload   []byte
			source    sql.NullString
		)
		if err := entryRows.Scan(&e.ID, &projectID, &e.ToolName, &e.DataType, &payload, &e.Timestamp, &source); err != nil {
			return domain.Snapshot{}, fmt.Errorf("scan entry: %w", err)
		}
		e.ProjectID = projectID.Int64
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Data); err != nil {
				return domain.Snapshot{}, fmt.Errorf("entry %d data: %w", e.ID, err)
			}
		}
		e.Source = source.String
		snap.Assessments = append(snap.Assessments, e)
	}
	if err := entryRows.Err(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("iterate assessment_data: %w", err)
	}
	return snap, nil
}

func encodeBag(bag map[string]any) ([]byte, error) {
	if bag == nil {
		return nil, nil
	}
	return json.Marshal(bag)
}

func decodeBag(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var bag map[string]any
	if err := json.Unmarshal(raw, &bag); err != nil {
		return nil, err
	}
	return bag, nil
}

func encodePayload(data any) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	return json.Marshal(data)
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore
// function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
