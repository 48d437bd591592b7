package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrStoreClosed is returned by mutating operations attempted after Close or
// after a failed Initialize. Query methods never return it: they degrade to
// empty results so UI-facing callers treat the store as best-effort.
var ErrStoreClosed = errors.New("assessment store is closed")

// NotFoundError reports a lookup that matched nothing where an entity was
// required, e.g. updating a project by an unknown path.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

// AssessmentFilter narrows GetAssessmentData results. A nil ProjectID or an
// empty string field matches everything; only equality filters are supported.
type AssessmentFilter struct {
	ProjectID *int64
	ToolName  string
	DataType  string
}

// AssessmentStore is the contract every persistence backend satisfies. One
// in-memory relational image per instance; durable backends sync it with
// their medium through Initialize, Reload, Flush, and Close.
//
// Lifecycle rules, shared by all backends:
//
//   - Initialize loads whatever the backing medium holds into memory. The
//     file-backed store records whether the file already existed; that flag
//     is retained for the life of the instance and consulted by Close.
//   - Reload replaces the in-memory image with a fresh read of the medium.
//     It never writes first: an instance whose memory differs from the medium
//     must not clobber concurrent writes it has never observed. Idempotent
//     absent external writes.
//   - Close flushes current memory to the medium and releases the image, but
//     never regresses the medium with a stale or empty image: an instance
//     that initialized against pre-existing data and wrote nothing skips the
//     flush. Callers that want the latest external writes merged before
//     closing call Reload first.
//   - Query methods on a closed or failed instance log and return empty
//     results rather than failing.
type AssessmentStore interface {
	// Initialize prepares the in-memory image from the backing medium.
	Initialize(ctx context.Context) error
	// CreateProject registers a project for path, or returns the existing
	// project's ID when the path is already known. Paths are unique.
	CreateProject(ctx context.Context, name, path string) (int64, error)
	// UpdateProject applies mutate to the project identified by path. The ID,
	// Path, and CreatedAt fields are preserved; UpdatedAt is refreshed.
	UpdateProject(ctx context.Context, path string, mutate func(*Project) error) (Project, error)
	// StoreAssessmentData appends one immutable tool-run record. The payload
	// is normalized to its JSON-decoded shape before storage.
	StoreAssessmentData(ctx context.Context, projectID int64, toolName, dataType string, data any, source string) (int64, error)
	// GetProject returns the project registered at path, or nil.
	GetProject(path string) *Project
	// GetAllProjects lists every project ordered by ID.
	GetAllProjects() []Project
	// GetAssessmentData lists matching entries newest first.
	GetAssessmentData(filter AssessmentFilter) []AssessmentDataEntry
	// Reload re-reads the backing medium and replaces the in-memory image.
	Reload(ctx context.Context) error
	// Flush writes the current in-memory image to the backing medium.
	Flush(ctx context.Context) error
	// Close flushes when safe (see lifecycle rules) and releases the image.
	Close(ctx context.Context) error
	// ExistedOnInit reports whether Initialize found pre-existing data.
	ExistedOnInit() bool
}
