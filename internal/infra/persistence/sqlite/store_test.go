package sqlite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"carbonscope/pkg/domain"
)

type captureLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *captureLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+" "+msg)
}

func (l *captureLogger) Debug(msg string, args ...any) { l.log("DEBUG", msg) }
func (l *captureLogger) Info(msg string, args ...any)  { l.log("INFO", msg) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.log("WARN", msg) }
func (l *captureLogger) Error(msg string, args ...any) { l.log("ERROR", msg) }

func (l *captureLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if len(e) >= len(level) && e[:len(level)] == level {
			n++
		}
	}
	return n
}

func dbPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "assessments.db")
}

func mustStore(t *testing.T, path string, opts ...Option) *Store {
	t.Helper()
	store, err := NewStore(path, opts...)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestNewStoreRequiresPath(t *testing.T) {
	if _, err := NewStore(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestInitializeMissingFileStartsEmpty(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)
	store := mustStore(t, path)

	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if store.ExistedOnInit() {
		t.Fatal("missing file should report ExistedOnInit false")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("Initialize must not create the backing file")
	}
	if projects := store.GetAllProjects(); len(projects) != 0 {
		t.Fatalf("expected empty store, got %d projects", len(projects))
	}
	if err := store.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Close should have created the backing file: %v", err)
	}
}

func TestWriteCloseReloadAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)

	writer := mustStore(t, path)
	if err := writer.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	projectID, err := writer.CreateProject(ctx, "shop", "/srv/shop")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	payload := map[string]any{
		"co2":   0.125,
		"pages": []any{"/", "/cart"},
		"meta":  map[string]any{"cached": false, "note": nil},
	}
	entryID, err := writer.StoreAssessmentData(ctx, projectID, "greenframe", "scan", payload, "ci")
	if err != nil {
		t.Fatalf("StoreAssessmentData: %v", err)
	}
	if err := writer.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reader := mustStore(t, path)
	if err := reader.Initialize(ctx); err != nil {
		t.Fatalf("reader Initialize: %v", err)
	}
	defer reader.Close(ctx)
	if !reader.ExistedOnInit() {
		t.Fatal("reader should report ExistedOnInit true")
	}
	project := reader.GetProject("/srv/shop")
	if project == nil {
		t.Fatal("project not found after reopen")
	}
	if project.ID != projectID || project.Name != "shop" {
		t.Fatalf("unexpected project %+v", project)
	}
	entries := reader.GetAssessmentData(domain.AssessmentFilter{ProjectID: &projectID})
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.ID != entryID || got.ToolName != "greenframe" || got.DataType != "scan" || got.Source != "ci" {
		t.Fatalf("unexpected entry %+v", got)
	}
	data, ok := got.Data.(map[string]any)
	if !ok {
		t.Fatalf("payload type %T after round trip", got.Data)
	}
	if data["co2"] != 0.125 {
		t.Fatalf("co2 = %v", data["co2"])
	}
	pages, ok := data["pages"].([]any)
	if !ok || len(pages) != 2 || pages[1] != "/cart" {
		t.Fatalf("pages = %v", data["pages"])
	}
	meta, ok := data["meta"].(map[string]any)
	if !ok || meta["cached"] != false {
		t.Fatalf("meta = %v", data["meta"])
	}
	if v, present := meta["note"]; !present || v != nil {
		t.Fatalf("null payload field lost: %v %v", v, present)
	}
}

func TestInitializeLeavesFileBytesUnchanged(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)

	writer := mustStore(t, path)
	if err := writer.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	id, err := writer.CreateProject(ctx, "app", "/srv/app")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := writer.StoreAssessmentData(ctx, id, "semgrep", "scan", map[string]any{"total": 3.0}, ""); err != nil {
		t.Fatalf("StoreAssessmentData: %v", err)
	}
	if err := writer.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	reader := mustStore(t, path)
	if err := reader.Initialize(ctx); err != nil {
		t.Fatalf("reader Initialize: %v", err)
	}
	if got := reader.GetAllProjects(); len(got) != 1 {
		t.Fatalf("expected 1 project, got %d", len(got))
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("Initialize modified the backing file")
	}

	// A clean close of a store that loaded an existing file must not
	// rewrite it either.
	if err := reader.Close(ctx); err != nil {
		t.Fatalf("reader Close: %v", err)
	}
	after, err = os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("clean Close rewrote the backing file")
	}
}

func TestCleanClosePreservesForeignAppends(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)

	seed := mustStore(t, path)
	if err := seed.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	projectID, err := seed.CreateProject(ctx, "site", "/srv/site")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := seed.StoreAssessmentData(ctx, projectID, "greenframe", "scan", map[string]any{"n": 1.0}, ""); err != nil {
		t.Fatalf("StoreAssessmentData: %v", err)
	}
	if err := seed.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A read-only consumer opens the file, then another writer appends
	// and closes while the consumer is still up.
	consumer := mustStore(t, path)
	if err := consumer.Initialize(ctx); err != nil {
		t.Fatalf("consumer Initialize: %v", err)
	}

	writer := mustStore(t, path)
	if err := writer.Initialize(ctx); err != nil {
		t.Fatalf("writer Initialize: %v", err)
	}
	if _, err := writer.StoreAssessmentData(ctx, projectID, "greenframe", "scan", map[string]any{"n": 2.0}, ""); err != nil {
		t.Fatalf("StoreAssessmentData: %v", err)
	}
	if err := writer.Close(ctx); err != nil {
		t.Fatalf("writer Close: %v", err)
	}

	// The consumer made no writes, so its close must not drag the file
	// back to the one-entry image it loaded.
	if err := consumer.Close(ctx); err != nil {
		t.Fatalf("consumer Close: %v", err)
	}

	check := mustStore(t, path)
	if err := check.Initialize(ctx); err != nil {
		t.Fatalf("check Initialize: %v", err)
	}
	defer check.Close(ctx)
	entries := check.GetAssessmentData(domain.AssessmentFilter{})
	if len(entries) != 2 {
		t.Fatalf("foreign append lost: %d entries", len(entries))
	}
}

func TestDirtyCloseFlushesNewWrites(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)

	seed := mustStore(t, path)
	if err := seed.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	projectID, err := seed.CreateProject(ctx, "api", "/srv/api")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if err := seed.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	writer := mustStore(t, path)
	if err := writer.Initialize(ctx); err != nil {
		t.Fatalf("writer Initialize: %v", err)
	}
	if !writer.ExistedOnInit() {
		t.Fatal("writer should see the existing file")
	}
	if _, err := writer.StoreAssessmentData(ctx, projectID, "cpuprofile", "profile", map[string]any{"ms": 12.0}, ""); err != nil {
		t.Fatalf("StoreAssessmentData: %v", err)
	}
	if err := writer.Close(ctx); err != nil {
		t.Fatalf("writer Close: %v", err)
	}

	check := mustStore(t, path)
	if err := check.Initialize(ctx); err != nil {
		t.Fatalf("check Initialize: %v", err)
	}
	defer check.Close(ctx)
	if entries := check.GetAssessmentData(domain.AssessmentFilter{ToolName: "cpuprofile"}); len(entries) != 1 {
		t.Fatalf("dirty close lost the write: %d entries", len(entries))
	}
}

func TestReloadPicksUpForeignWrites(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)

	seed := mustStore(t, path)
	if err := seed.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	projectID, err := seed.CreateProject(ctx, "web", "/srv/web")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := seed.StoreAssessmentData(ctx, projectID, "greenframe", "scan", map[string]any{"n": 1.0}, ""); err != nil {
		t.Fatalf("StoreAssessmentData: %v", err)
	}
	if err := seed.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reader := mustStore(t, path)
	if err := reader.Initialize(ctx); err != nil {
		t.Fatalf("reader Initialize: %v", err)
	}
	defer reader.Close(ctx)

	writer := mustStore(t, path)
	if err := writer.Initialize(ctx); err != nil {
		t.Fatalf("writer Initialize: %v", err)
	}
	if _, err := writer.StoreAssessmentData(ctx, projectID, "greenframe", "scan", map[string]any{"n": 2.0}, ""); err != nil {
		t.Fatalf("StoreAssessmentData: %v", err)
	}
	if err := writer.Close(ctx); err != nil {
		t.Fatalf("writer Close: %v", err)
	}

	if entries := reader.GetAssessmentData(domain.AssessmentFilter{}); len(entries) != 1 {
		t.Fatalf("expected stale view before reload, got %d entries", len(entries))
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := reader.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	entries := reader.GetAssessmentData(domain.AssessmentFilter{})
	if len(entries) != 2 {
		t.Fatalf("reload missed foreign write: %d entries", len(entries))
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("Reload modified the backing file")
	}
	// Reload is idempotent.
	if err := reader.Reload(ctx); err != nil {
		t.Fatalf("second Reload: %v", err)
	}
	if entries := reader.GetAssessmentData(domain.AssessmentFilter{}); len(entries) != 2 {
		t.Fatalf("second reload changed the image: %d entries", len(entries))
	}
}

func TestReloadMissingFileEmptiesImage(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)

	store := mustStore(t, path)
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer store.Close(ctx)
	if _, err := store.CreateProject(ctx, "tmp", "/srv/tmp"); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if projects := store.GetAllProjects(); len(projects) != 0 {
		t.Fatalf("expected empty image after reload of missing file, got %d", len(projects))
	}
}

func TestFlushVisibleToOtherInstances(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)

	store := mustStore(t, path)
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer store.Close(ctx)
	projectID, err := store.CreateProject(ctx, "app", "/srv/app")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := store.StoreAssessmentData(ctx, projectID, "deployscan", "deploy", map[string]any{"kb": 420.0}, ""); err != nil {
		t.Fatalf("StoreAssessmentData: %v", err)
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	peer := mustStore(t, path)
	if err := peer.Initialize(ctx); err != nil {
		t.Fatalf("peer Initialize: %v", err)
	}
	defer peer.Close(ctx)
	if entries := peer.GetAssessmentData(domain.AssessmentFilter{}); len(entries) != 1 {
		t.Fatalf("flush not visible to peer: %d entries", len(entries))
	}
}

func TestUnparseableFileDegradesWithoutOverwriting(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)
	garbage := []byte("not a database at all")
	if err := os.WriteFile(path, garbage, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	logger := &captureLogger{}
	store := mustStore(t, path, WithLogger(logger))
	if err := store.Initialize(ctx); err == nil {
		t.Fatal("expected Initialize to fail on garbage file")
	}
	if logger.count("ERROR") == 0 {
		t.Fatal("expected the failure to be logged")
	}

	// Degraded instance serves empty reads and rejects writes.
	if projects := store.GetAllProjects(); len(projects) != 0 {
		t.Fatalf("degraded store returned %d projects", len(projects))
	}
	if _, err := store.CreateProject(ctx, "x", "/srv/x"); !errors.Is(err, domain.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
	if err := store.Reload(ctx); !errors.Is(err, domain.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed from Reload, got %v", err)
	}

	// Close must never write through a failed initialize.
	if err := store.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, garbage) {
		t.Fatal("degraded store overwrote the backing file")
	}
}

func TestInitializeRejectsDirectoryPath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := mustStore(t, dir)
	if err := store.Initialize(ctx); err == nil {
		t.Fatal("expected Initialize to fail on a directory")
	}
	if store.ExistedOnInit() {
		t.Fatal("failed initialize should not report an existing file")
	}
}

func TestClosedStoreDegradesGracefully(t *testing.T) {
	ctx := context.Background()
	logger := &captureLogger{}
	store := mustStore(t, dbPath(t), WithLogger(logger))
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := store.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if projects := store.GetAllProjects(); projects != nil {
		t.Fatalf("closed store returned projects: %v", projects)
	}
	if entries := store.GetAssessmentData(domain.AssessmentFilter{}); entries != nil {
		t.Fatalf("closed store returned entries: %v", entries)
	}
	if logger.count("WARN") == 0 {
		t.Fatal("expected closed reads to be logged")
	}
	if _, err := store.CreateProject(ctx, "x", "/srv/x"); !errors.Is(err, domain.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
	if err := store.Flush(ctx); !errors.Is(err, domain.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed from Flush, got %v", err)
	}
	if err := store.Initialize(ctx); !errors.Is(err, domain.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed from Initialize, got %v", err)
	}
	if err := store.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestNewestFirstOrderSurvivesRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)

	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
	writer := mustStore(t, path, WithClock(clock))
	if err := writer.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	projectID, err := writer.CreateProject(ctx, "web", "/srv/web")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	for i := 1; i <= 3; i++ {
		payload := map[string]any{"run": float64(i)}
		if _, err := writer.StoreAssessmentData(ctx, projectID, "greenframe", "scan", payload, ""); err != nil {
			t.Fatalf("StoreAssessmentData %d: %v", i, err)
		}
	}
	if err := writer.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reader := mustStore(t, path)
	if err := reader.Initialize(ctx); err != nil {
		t.Fatalf("reader Initialize: %v", err)
	}
	defer reader.Close(ctx)
	entries := reader.GetAssessmentData(domain.AssessmentFilter{})
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []float64{3, 2, 1} {
		data := entries[i].Data.(map[string]any)
		if data["run"] != want {
			t.Fatalf("position %d: run = %v, want %v", i, data["run"], want)
		}
	}
	if !entries[0].Timestamp.After(entries[2].Timestamp) {
		t.Fatal("timestamps not descending")
	}
}

func TestProjectBagsSurviveRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)

	writer := mustStore(t, path)
	if err := writer.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	projectID, err := writer.CreateProject(ctx, "site", "/srv/site")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := writer.UpdateProject(ctx, "/srv/site", func(p *domain.Project) error {
		p.Metadata = map[string]any{"branch": "main", "ci": true}
		p.CO2Variables = map[string]any{"gridIntensity": 442.0}
		return nil
	}); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	bare, err := writer.CreateProject(ctx, "bare", "/srv/bare")
	if err != nil {
		t.Fatalf("CreateProject bare: %v", err)
	}
	if err := writer.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reader := mustStore(t, path)
	if err := reader.Initialize(ctx); err != nil {
		t.Fatalf("reader Initialize: %v", err)
	}
	defer reader.Close(ctx)
	project := reader.GetProject("/srv/site")
	if project == nil {
		t.Fatal("project missing after round trip")
	}
	if project.ID != projectID {
		t.Fatalf("project ID = %d, want %d", project.ID, projectID)
	}
	if project.Metadata["branch"] != "main" || project.Metadata["ci"] != true {
		t.Fatalf("metadata = %v", project.Metadata)
	}
	if project.CO2Variables["gridIntensity"] != 442.0 {
		t.Fatalf("co2 variables = %v", project.CO2Variables)
	}
	bareProject := reader.GetProject("/srv/bare")
	if bareProject == nil || bareProject.ID != bare {
		t.Fatalf("bare project missing: %+v", bareProject)
	}
	if bareProject.Metadata != nil || bareProject.CO2Variables != nil {
		t.Fatalf("empty bags should stay nil, got %v / %v", bareProject.Metadata, bareProject.CO2Variables)
	}
}

func TestGetOrCreateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)

	first := mustStore(t, path)
	if err := first.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	id, err := first.CreateProject(ctx, "app", "/srv/app")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if err := first.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := mustStore(t, path)
	if err := second.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	defer second.Close(ctx)
	again, err := second.CreateProject(ctx, "renamed", "/srv/app")
	if err != nil {
		t.Fatalf("CreateProject again: %v", err)
	}
	if again != id {
		t.Fatalf("path registration not idempotent across reopen: %d vs %d", again, id)
	}
	project := second.GetProject("/srv/app")
	if project == nil || project.Name != "app" {
		t.Fatalf("existing project should keep its name: %+v", project)
	}
	// New IDs continue past the persisted range.
	fresh, err := second.CreateProject(ctx, "next", "/srv/next")
	if err != nil {
		t.Fatalf("CreateProject next: %v", err)
	}
	if fresh <= id {
		t.Fatalf("fresh ID %d should exceed persisted ID %d", fresh, id)
	}
}

func TestManyEntriesRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)

	writer := mustStore(t, path)
	if err := writer.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	projectID, err := writer.CreateProject(ctx, "bulk", "/srv/bulk")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	const n = 50
	for i := 0; i < n; i++ {
		tool := "greenframe"
		if i%2 == 1 {
			tool = "semgrep"
		}
		payload := map[string]any{"seq": float64(i)}
		if _, err := writer.StoreAssessmentData(ctx, projectID, tool, fmt.Sprintf("type-%d", i%3), payload, ""); err != nil {
			t.Fatalf("StoreAssessmentData %d: %v", i, err)
		}
	}
	if err := writer.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reader := mustStore(t, path)
	if err := reader.Initialize(ctx); err != nil {
		t.Fatalf("reader Initialize: %v", err)
	}
	defer reader.Close(ctx)
	if all := reader.GetAssessmentData(domain.AssessmentFilter{}); len(all) != n {
		t.Fatalf("expected %d entries, got %d", n, len(all))
	}
	semgrep := reader.GetAssessmentData(domain.AssessmentFilter{ToolName: "semgrep"})
	if len(semgrep) != n/2 {
		t.Fatalf("expected %d semgrep entries, got %d", n/2, len(semgrep))
	}
	typed := reader.GetAssessmentData(domain.AssessmentFilter{DataType: "type-0"})
	for _, e := range typed {
		if e.DataType != "type-0" {
			t.Fatalf("filter leaked %q", e.DataType)
		}
	}
}
