// Package sqlite persists the in-memory assessment image to a single
// database file using the pure-Go modernc driver.
//
// The store is memory-first: queries and writes run against the embedded
// image, and the file is only touched by the lifecycle operations. No
// database handle is held between them; Initialize and Reload open the file
// read-only, Flush and Close open it read-write and replace the whole image.
// That keeps the on-disk bytes untouched by a plain Initialize and lets the
// close-time no-clobber rule protect appends made by other processes sharing
// the same file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"carbonscope/internal/infra/persistence/memory"
	"carbonscope/internal/sqlbundle"
	"carbonscope/pkg/domain"
)

var _ domain.AssessmentStore = (*Store)(nil)

// Store is the file-backed assessment store.
type Store struct {
	*memory.Store

	mu        sync.Mutex
	path      string
	logger    domain.Logger
	clock     func() time.Time
	existed   bool
	failed    bool
	closed    bool
	lastSaved uint64
}

// Option configures a Store.
type Option func(*Store)

// WithLogger routes lifecycle and degradation logging to l.
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

// NewStore returns a store backed by the database file at path. No I/O
// happens until Initialize.
func NewStore(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite store requires a file path")
	}
	s := &Store{
		path:   path,
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
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Initialize loads the backing file into memory when it exists and records
// the existed-on-init flag. A missing file yields a fresh empty image with no
// disk write; an unreadable or unparseable file degrades the instance, which
// then serves empty reads, rejects writes, and never touches the file again.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.existed = false
		s.lastSaved = s.Version()
		return nil
	}
	if err == nil && info.IsDir() {
		err = fmt.Errorf("%s is a directory", s.path)
	}
	if err != nil {
		s.failed = true
		s.logger.Error("initialize assessment store", "path", s.path, "error", err)
		s.MarkUnavailable("backing file not usable")
		return fmt.Errorf("initialize %s: %w", s.path, err)
	}
	s.existed = true
	snap, err := readSnapshot(ctx, s.path)
	if err != nil {
		s.failed = true
		s.logger.Error("initialize assessment store", "path", s.path, "error", err)
		s.MarkUnavailable("backing file not readable")
		return fmt.Errorf("initialize %s: %w", s.path, err)
	}
	s.ImportState(snap)
	s.lastSaved = s.Version()
	return nil
}

// Reload replaces the in-memory image with a fresh read of the backing file.
// The read happens before any serialization, so a reload can never clobber
// concurrent writes the instance has not observed. On a read failure the
// current image keeps serving. A missing file reloads to an empty image.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.failed {
		return domain.ErrStoreClosed
	}
	snap, err := readSnapshot(ctx, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		snap, err = domain.Snapshot{}, nil
	}
	if err != nil {
		s.logger.Error("reload assessment store", "path", s.path, "error", err)
		return fmt.Errorf("reload %s: %w", s.path, err)
	}
	s.ImportState(snap)
	s.lastSaved = s.Version()
	return nil
}

// Flush writes the current in-memory image to the backing file.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return s.flushLocked(ctx)
}

func (s *Store) flushLocked(ctx context.Context) error {
	if s.failed {
		return fmt.Errorf("assessment store never initialized cleanly; refusing to write %s", s.path)
	}
	if err := writeSnapshot(ctx, s.path, s.ExportState()); err != nil {
		s.logger.Error("flush assessment store", "path", s.path, "error", err)
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	s.lastSaved = s.Version()
	return nil
}

// Close flushes and releases the image. The flush is skipped when the
// instance initialized against a pre-existing file and holds no unflushed
// writes: such an instance has nothing to add, and writing its image could
// regress appends other processes made since it last looked. Idempotent.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if !s.failed {
		dirty := s.Version() != s.lastSaved
		if !s.existed || dirty {
			err = s.flushLocked(ctx)
		}
	}
	s.mu.Unlock()
	if cerr := s.Store.Close(ctx); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// ExistedOnInit reports whether Initialize found the backing file.
func (s *Store) ExistedOnInit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existed
}

// readSnapshot opens the file read-only and loads both tables. A valid
// database without the tables (never flushed) reads as an empty snapshot.
func readSnapshot(ctx context.Context, path string) (domain.Snapshot, error) {
	if _, err := os.Stat(path); err != nil {
		return domain.Snapshot{}, err
	}
	db, err := sql.Open("sqlite", readOnlyDSN(path))
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer func() { _ = db.Close() }()

	var snap domain.Snapshot
	ok, err := hasTable(ctx, db, "projects")
	if err != nil {
		return domain.Snapshot{}, err
	}
	if ok {
		if snap.Projects, err = readProjects(ctx, db); err != nil {
			return domain.Snapshot{}, err
		}
	}
	ok, err = hasTable(ctx, db, "assessment_data")
	if err != nil {
		return domain.Snapshot{}, err
	}
	if ok {
		if snap.Assessments, err = readAssessments(ctx, db); err != nil {
			return domain.Snapshot{}, err
		}
	}
	return snap, nil
}

func readOnlyDSN(path string) string {
	return "file:" + path + "?mode=ro"
}

func hasTable(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func readProjects(ctx context.Context, db *sql.DB) ([]domain.Project, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, path, created_at, updated_at, metadata, co2_variables FROM projects ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var projects []domain.Project
	for rows.Next() {
		var (
			p                  domain.Project
			createdAt, updated string
			metadata, co2Vars  sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Path, &createdAt, &updated, &metadata, &co2Vars); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("project %d created_at: %w", p.ID, err)
		}
		if p.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, fmt.Errorf("project %d updated_at: %w", p.ID, err)
		}
		if p.Metadata, err = decodeBag(metadata); err != nil {
			return nil, fmt.Errorf("project %d metadata: %w", p.ID, err)
		}
		if p.CO2Variables, err = decodeBag(co2Vars); err != nil {
			return nil, fmt.Errorf("project %d co2_variables: %w", p.ID, err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func readAssessments(ctx context.Context, db *sql.DB) ([]domain.AssessmentDataEntry, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, project_id, tool_name, data_type, data, timestamp, source FROM assessment_data ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var entries []domain.AssessmentDataEntry
	for rows.Next() {
		var (
			e         domain.AssessmentDataEntry
			projectID sql.NullInt64
			payload   sql.NullString
			stamp     string
			source    sql.NullString
		)
		if err := rows.Scan(&e.ID, &projectID, &e.ToolName, &e.DataType, &payload, &stamp, &source); err != nil {
			return nil, err
		}
		e.ProjectID = projectID.Int64
		if payload.Valid {
			if err := json.Unmarshal([]byte(payload.String), &e.Data); err != nil {
				return nil, fmt.Errorf("entry %d data: %w", e.ID, err)
			}
		}
		if e.Timestamp, err = parseTime(stamp); err != nil {
			return nil, fmt.Errorf("entry %d timestamp: %w", e.ID, err)
		}
		e.Source = source.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// writeSnapshot opens the file read-write (creating it if needed), applies
// the DDL, and replaces both tables with the snapshot in one transaction.
func writeSnapshot(ctx context.Context, path string, snap domain.Snapshot) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	for _, stmt := range sqlbundle.SplitStatements(sqlbundle.SQLite()) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM assessment_data"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM projects"); err != nil {
		return err
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
			"INSERT INTO projects(id, name, path, created_at, updated_at, metadata, co2_variables) VALUES(?, ?, ?, ?, ?, ?, ?)",
			p.ID, p.Name, p.Path, formatTime(p.CreatedAt), formatTime(p.UpdatedAt), metadata, co2Vars); err != nil {
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
			"INSERT INTO assessment_data(id, project_id, tool_name, data_type, data, timestamp, source) VALUES(?, ?, ?, ?, ?, ?, ?)",
			e.ID, projectID, e.ToolName, e.DataType, payload, formatTime(e.Timestamp), source); err != nil {
			return fmt.Errorf("insert entry %d: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, raw)
}

func encodeBag(bag map[string]any) (any, error) {
	if bag == nil {
		return nil, nil
	}
	raw, err := json.Marshal(bag)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func decodeBag(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var bag map[string]any
	if err := json.Unmarshal([]byte(raw.String), &bag); err != nil {
		return nil, err
	}
	return bag, nil
}

func encodePayload(data any) (any, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}
