// Package cpuprofile integrates per-line CPU profiling runs: sample counts
// and hot-line percentages stored as cpu-profile entries.
package cpuprofile

import (
	"time"

	"carbonscope/pkg/schemaapi"
)

// Tool and data type names entries are stored under.
const (
	ToolName = "cpu-profiler"
	DataType = "cpu-profile"
)

// Plugin registers the cpu-profile display schema.
type Plugin struct{}

// New constructs a cpuprofile plugin instance.
func New() Plugin {
	return Plugin{}
}

// Name returns the plugin identifier.
func (Plugin) Name() string { return ToolName }

// Version returns the plugin semantic version.
func (Plugin) Version() string { return "0.1.0" }

// Register wires the cpu-profile display schema. Profiles are informational,
// so no threshold metrics are contributed and entries stay unclassified.
func (Plugin) Register(registry schemaapi.Registry) error {
	return registry.RegisterSchema(schemaapi.ToolSchema{
		ID:   "carbonscope:plugin:cpuprofile",
		Name: ToolName,
		Display: schemaapi.DisplaySpec{
			GroupLabel:          "CPU Profiles",
			Icon:                "cpu",
			EntryTemplate:       "{app}",
			DescriptionTemplate: "{lang} {samples_total} samples",
			Fields: []schemaapi.FieldSpec{
				{Key: "samples", Label: "Samples", Path: "samples_total", Type: schemaapi.FieldText},
				{Key: "hotspot", Label: "Hotspot", Path: "lines[*].file", Type: schemaapi.FieldText},
				{Key: "hotshare", Label: "Hottest Line", Path: "lines[*].percent", Type: schemaapi.FieldText, FormatTemplate: "{value}%"},
				{Key: "scenario", Label: "Scenario", Path: "scenario.value", Type: schemaapi.FieldText},
			},
		},
	})
}

// Line is one source line of a profile, ordered hottest first by the
// producing profiler. Function, CPUMs, and Note are optional.
type Line struct {
	File     string
	Line     int
	Samples  int64
	Percent  float64
	Function string
	CPUMs    float64
	Note     string
}

// Scenario describes what drove the profiled run, such as a benchmark name
// or a request replay.
type Scenario struct {
	Type  string
	Value string
}

// Profile is one profiling run of an application.
type Profile struct {
	App          string
	Lang         string
	Timestamp    time.Time
	SamplesTotal int64
	Lines        []Line
	Scenario     *Scenario
}

// Payload builds the stored cpu-profile payload for p. The timestamp is
// stored as RFC3339 UTC so payloads survive the JSON round trip of durable
// backends byte for byte.
func Payload(p Profile) map[string]any {
	lines := make([]any, 0, len(p.Lines))
	for _, line := range p.Lines {
		lines = append(lines, line.payload())
	}
	payload := map[string]any{
		"app":           p.App,
		"lang":          p.Lang,
		"timestamp":     p.Timestamp.UTC().Format(time.RFC3339),
		"samples_total": p.SamplesTotal,
		"lines":         lines,
	}
	if p.Scenario != nil {
		payload["scenario"] = map[string]any{"type": p.Scenario.Type, "value": p.Scenario.Value}
	}
	return payload
}

func (l Line) payload() map[string]any {
	entry := map[string]any{
		"file":    l.File,
		"line":    l.Line,
		"samples": l.Samples,
		"percent": l.Percent,
	}
	if l.Function != "" {
		entry["function"] = l.Function
	}
	if l.CPUMs > 0 {
		entry["cpu_ms"] = l.CPUMs
	}
	if l.Note != "" {
		entry["note"] = l.Note
	}
	return entry
}
