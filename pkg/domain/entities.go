// Package domain defines the persistent entities, display schema types, and
// store contract shared by the carbonscope persistence and presentation
// layers.
package domain

import "time"

// Project is the per-workspace root record that assessment data hangs off.
// Path is the external identity used by all lookups and is unique within a
// store; ID is internal, assigned once on creation, and referenced by
// assessment entries. Projects are never deleted by this subsystem.
type Project struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	Path         string         `json:"path"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CO2Variables map[string]any `json:"co2_variables,omitempty"`
}

// AssessmentDataEntry is one immutable record of a single tool run's output,
// scoped to a project. Entries are append-only: multiple entries per tool per
// project coexist and are never upserted. Data holds the tool-defined payload
// as a structurally faithful JSON value; ProjectID is zero on query paths
// that return entries without project scoping.
type AssessmentDataEntry struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id,omitempty"`
	ToolName  string    `json:"tool_name"`
	DataType  string    `json:"data_type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}

// Snapshot is a full copy of a store's relational image, used to move state
// between the in-memory image and a durable backend.
type Snapshot struct {
	Projects    []Project             `json:"projects"`
	Assessments []AssessmentDataEntry `json:"assessments"`
}
