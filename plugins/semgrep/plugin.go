// Package semgrep integrates semgrep code scans: eco-rule findings with
// their locations, severities, and per-run tallies stored as code-analysis
// entries.
package semgrep

import (
	"strings"

	"carbonscope/pkg/schemaapi"
)

// Tool and data type names entries are stored under.
const (
	ToolName = "semgrep"
	DataType = "code-analysis"
)

// MetricCodeFindings classifies runs by their total finding count.
const MetricCodeFindings = "codeFindings"

// Severity levels semgrep assigns to findings.
const (
	SeverityError   = "ERROR"
	SeverityWarning = "WARNING"
	SeverityInfo    = "INFO"
)

// Plugin registers the code-analysis display schema and the finding-count
// thresholds.
type Plugin struct{}

// New constructs a semgrep plugin instance.
func New() Plugin {
	return Plugin{}
}

// Name returns the plugin identifier.
func (Plugin) Name() string { return ToolName }

// Version returns the plugin semantic version.
func (Plugin) Version() string { return "0.3.1" }

// Register wires the display schema and the codeFindings threshold set: a
// clean run stays green, a handful of findings is yellow, ten or more orange,
// twenty-five or more red.
func (Plugin) Register(registry schemaapi.Registry) error {
	err := registry.RegisterSchema(schemaapi.ToolSchema{
		ID:   "carbonscope:plugin:semgrep",
		Name: ToolName,
		Display: schemaapi.DisplaySpec{
			GroupLabel:          "Code Findings",
			Icon:                "shield",
			EntryTemplate:       "{target}",
			DescriptionTemplate: "{stats.total_matches} findings in {stats.files_scanned} files",
			Fields: []schemaapi.FieldSpec{
				{Key: "findings", Label: "Findings", Path: "stats.total_matches", Type: schemaapi.FieldText, Metric: MetricCodeFindings},
				{Key: "errors", Label: "Errors", Path: "stats.error_count", Type: schemaapi.FieldText},
				{Key: "files", Label: "Files Scanned", Path: "stats.files_scanned", Type: schemaapi.FieldText},
			},
		},
	})
	if err != nil {
		return err
	}
	return registry.RegisterThresholds(MetricCodeFindings, schemaapi.NewThresholdSet(1, 10, 25))
}

// Match is one finding from a semgrep run. Fix and Metadata are optional and
// omitted from the payload when empty.
type Match struct {
	RuleID      string
	Path        string
	StartLine   int
	EndLine     int
	StartColumn int
	EndColumn   int
	Message     string
	Severity    string
	CodeSnippet string
	Fix         string
	Metadata    map[string]any
}

// NormalizeRuleID strips the directory-derived prefix semgrep prepends to
// rule identifiers, keeping the last dotted segment.
func NormalizeRuleID(id string) string {
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		return id[i+1:]
	}
	return id
}

// Payload builds the stored code-analysis payload for a run against target.
// Rule IDs are normalized before storage; stats carry the severity tallies.
func Payload(target string, matches []Match) map[string]any {
	out := make([]any, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.payload())
	}
	return map[string]any{
		"target":  target,
		"matches": out,
		"stats":   Stats(matches),
	}
}

func (m Match) payload() map[string]any {
	entry := map[string]any{
		"rule_id":      NormalizeRuleID(m.RuleID),
		"path":         m.Path,
		"start_line":   m.StartLine,
		"end_line":     m.EndLine,
		"start_column": m.StartColumn,
		"end_column":   m.EndColumn,
		"message":      m.Message,
		"severity":     m.Severity,
		"code_snippet": m.CodeSnippet,
	}
	if m.Fix != "" {
		entry["fix"] = m.Fix
	}
	if len(m.Metadata) > 0 {
		entry["metadata"] = m.Metadata
	}
	return entry
}

// Stats tallies matches by severity plus the distinct files findings touch.
// Severities outside the known three count toward the total only.
func Stats(matches []Match) map[string]any {
	files := make(map[string]struct{}, len(matches))
	var errors, warnings, infos int
	for _, m := range matches {
		files[m.Path] = struct{}{}
		switch m.Severity {
		case SeverityError:
			errors++
		case SeverityWarning:
			warnings++
		case SeverityInfo:
			infos++
		}
	}
	return map[string]any{
		"total_matches": len(matches),
		"error_count":   errors,
		"warning_count": warnings,
		"info_count":    infos,
		"files_scanned": len(files),
	}
}
