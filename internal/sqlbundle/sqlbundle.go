// Package sqlbundle carries the canonical DDL for the assessment store
// tables and a helper to split a bundle into executable statements.
package sqlbundle

import (
	"bufio"
	"strings"
)

const sqliteDDL = `
-- projects: one row per workspace root; path is the external identity.
CREATE TABLE IF NOT EXISTS projects (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    path TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    metadata TEXT,
    co2_variables TEXT
);

-- assessment_data: append-only tool run records.
CREATE TABLE IF NOT EXISTS assessment_data (
    id INTEGER PRIMARY KEY,
    project_id INTEGER REFERENCES projects(id),
    tool_name TEXT NOT NULL,
    data_type TEXT NOT NULL,
    data TEXT,
    timestamp TEXT NOT NULL,
    source TEXT
);

CREATE INDEX IF NOT EXISTS idx_assessment_data_project ON assessment_data(project_id);
CREATE INDEX IF NOT EXISTS idx_assessment_data_tool ON assessment_data(tool_name);
`

const postgresDDL = `
CREATE TABLE IF NOT EXISTS projects (
    id BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    path TEXT NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    metadata JSONB,
    co2_variables JSONB
);

CREATE TABLE IF NOT EXISTS assessment_data (
    id BIGINT PRIMARY KEY,
    project_id BIGINT REFERENCES projects(id),
    tool_name TEXT NOT NULL,
    data_type TEXT NOT NULL,
    data JSONB,
    timestamp TIMESTAMPTZ NOT NULL,
    source TEXT
);

CREATE INDEX IF NOT EXISTS idx_assessment_data_project ON assessment_data(project_id);
CREATE INDEX IF NOT EXISTS idx_assessment_data_tool ON assessment_data(tool_name);
`

// SQLite returns the DDL bundle for the file-backed store.
func SQLite() string { return sqliteDDL }

// Postgres returns the DDL bundle for the shared-server store.
func Postgres() string { return postgresDDL }

// SplitStatements splits a semicolon-terminated DDL script into executable
// statements, dropping blank lines and "--" comments.
func SplitStatements(ddl string) []string {
	scanner := bufio.NewScanner(strings.NewReader(ddl))
	var stmts []string
	var current strings.Builder

	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			stmts = append(stmts, stmt)
		}
		current.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()

	return stmts
}
