// Package assemble turns stored assessment entries into the grouped, labeled,
// badge-classified items the side panel renders. Schemas drive extraction and
// formatting; tools without a schema fall back to a generic key dump so every
// stored entry stays visible.
package assemble

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"carbonscope/internal/classify"
	"carbonscope/internal/extract"
	"carbonscope/internal/render"
	"carbonscope/pkg/domain"
)

// SchemaSource resolves tool names to their registered display schemas.
type SchemaSource interface {
	Schema(toolName string) (domain.ToolSchema, bool)
}

// FieldValue is one rendered display field of an item. Raw keeps the
// extracted value before formatting; Metric names the threshold metric the
// badge was classified under, empty when the field is unclassified.
type FieldValue struct {
	Key    string            `json:"key"`
	Label  string            `json:"label"`
	Value  string            `json:"value"`
	Raw    any               `json:"raw,omitempty"`
	Badge  domain.BadgeColor `json:"badge"`
	Metric string            `json:"metric,omitempty"`
}

// Item is one assessment entry prepared for display. Badge is the worst
// field badge; Generic marks items rendered by the schemaless fallback.
type Item struct {
	EntryID     int64             `json:"entry_id"`
	ToolName    string            `json:"tool_name"`
	DataType    string            `json:"data_type"`
	Timestamp   time.Time         `json:"timestamp"`
	Label       string            `json:"label"`
	Description string            `json:"description,omitempty"`
	Badge       domain.BadgeColor `json:"badge"`
	Fields      []FieldValue      `json:"fields,omitempty"`
	Generic     bool              `json:"generic,omitempty"`
}

// Group collects the items of one tool under its display header.
type Group struct {
	ToolName string `json:"tool_name"`
	Label    string `json:"label"`
	Icon     string `json:"icon,omitempty"`
	Items    []Item `json:"items"`
}

// Statistics summarizes a set of entries.
type Statistics struct {
	TotalEntries int            `json:"total_entries"`
	ToolCounts   map[string]int `json:"tool_counts"`
	LatestEntry  time.Time      `json:"latest_entry"`
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger routes assembly diagnostics to l instead of discarding them.
func WithLogger(l domain.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// Assembler renders entries against a schema source and a threshold
// classifier. A nil source renders everything generically; a nil classifier
// falls back to the built-in threshold defaults.
type Assembler struct {
	schemas    SchemaSource
	classifier *classify.Classifier
	logger     domain.Logger
}

// New constructs an Assembler.
func New(schemas SchemaSource, classifier *classify.Classifier, opts ...Option) *Assembler {
	if classifier == nil {
		classifier = classify.New(nil)
	}
	a := &Assembler{
		schemas:    schemas,
		classifier: classifier,
		logger:     domain.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Groups renders entries into one group per tool, in order of first
// appearance. Entries are expected newest first, as the store returns them.
func (a *Assembler) Groups(entries []domain.AssessmentDataEntry) []Group {
	averages := a.metricAverages(entries)
	var groups []Group
	index := make(map[string]int)
	for _, entry := range entries {
		item := a.buildItem(entry, averages)
		pos, ok := index[entry.ToolName]
		if !ok {
			pos = len(groups)
			index[entry.ToolName] = pos
			groups = append(groups, a.newGroup(entry.ToolName))
		}
		groups[pos].Items = append(groups[pos].Items, item)
	}
	return groups
}

// Search returns the items whose tool name or JSON-stringified payload
// contains query, matched case-insensitively. An empty query matches
// everything.
func (a *Assembler) Search(entries []domain.AssessmentDataEntry, query string) []Item {
	q := strings.ToLower(strings.TrimSpace(query))
	averages := a.metricAverages(entries)
	var out []Item
	for _, entry := range entries {
		if !matchesQuery(entry, q) {
			continue
		}
		out = append(out, a.buildItem(entry, averages))
	}
	return out
}

// Statistics summarizes entries: total count, per-tool counts, and the most
// recent timestamp.
func (a *Assembler) Statistics(entries []domain.AssessmentDataEntry) Statistics {
	stats := Statistics{
		TotalEntries: len(entries),
		ToolCounts:   make(map[string]int, 4),
	}
	for _, entry := range entries {
		stats.ToolCounts[entry.ToolName]++
		if entry.Timestamp.After(stats.LatestEntry) {
			stats.LatestEntry = entry.Timestamp
		}
	}
	return stats
}

func (a *Assembler) newGroup(toolName string) Group {
	group := Group{ToolName: toolName, Label: toolName}
	if a.schemas == nil {
		return group
	}
	schema, ok := a.schemas.Schema(toolName)
	if !ok {
		return group
	}
	if schema.Display.GroupLabel != "" {
		group.Label = schema.Display.GroupLabel
	}
	group.Icon = schema.Display.Icon
	return group
}

func (a *Assembler) buildItem(entry domain.AssessmentDataEntry, averages map[string]float64) Item {
	item := Item{
		EntryID:   entry.ID,
		ToolName:  entry.ToolName,
		DataType:  entry.DataType,
		Timestamp: entry.Timestamp,
		Badge:     domain.BadgeNone,
	}
	var schema domain.ToolSchema
	ok := false
	if a.schemas != nil {
		schema, ok = a.schemas.Schema(entry.ToolName)
	}
	if !ok {
		a.logger.Debug("no display schema registered, rendering generic", "tool", entry.ToolName)
		a.genericItem(&item, entry)
		return item
	}
	item.Label = resolveTemplate(schema.Display.EntryTemplate, entry.Data)
	if item.Label == "" {
		item.Label = entry.DataType
	}
	item.Description = resolveTemplate(schema.Display.DescriptionTemplate, entry.Data)
	for _, spec := range schema.Display.Fields {
		raw := extract.Value(entry.Data, spec.Path)
		if raw == nil {
			continue
		}
		field := FieldValue{
			Key:    spec.Key,
			Label:  fieldLabel(spec),
			Value:  render.Value(raw, spec.Type, spec.FormatTemplate),
			Raw:    raw,
			Badge:  domain.BadgeNone,
			Metric: fieldMetric(spec),
		}
		if field.Metric != "" {
			field.Badge = a.classifier.RelativeBadgeColor(field.Metric, raw, averagePtr(averages, field.Metric))
			item.Badge = item.Badge.WorseOf(field.Badge)
		}
		item.Fields = append(item.Fields, field)
	}
	return item
}

// genericItem renders an entry with no registered schema as a sorted
// top-level key dump. Non-object payloads collapse to a single value field.
func (a *Assembler) genericItem(item *Item, entry domain.AssessmentDataEntry) {
	item.Generic = true
	item.Label = entry.DataType
	payload, ok := entry.Data.(map[string]any)
	if !ok {
		if entry.Data != nil {
			item.Fields = append(item.Fields, FieldValue{
				Key:   "value",
				Label: "value",
				Value: render.Plain(entry.Data),
				Raw:   entry.Data,
				Badge: domain.BadgeNone,
			})
		}
		return
	}
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := payload[key]
		item.Fields = append(item.Fields, FieldValue{
			Key:   key,
			Label: key,
			Value: plainOrJSON(value),
			Raw:   value,
			Badge: domain.BadgeNone,
		})
	}
}

// metricAverages computes per-metric means over every classifiable field of
// the supplied entries, feeding relative badge escalation.
func (a *Assembler) metricAverages(entries []domain.AssessmentDataEntry) map[string]float64 {
	if a.schemas == nil {
		return nil
	}
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, entry := range entries {
		schema, ok := a.schemas.Schema(entry.ToolName)
		if !ok {
			continue
		}
		for _, spec := range schema.Display.Fields {
			metric := fieldMetric(spec)
			if metric == "" {
				continue
			}
			if num, ok := asNumber(extract.Value(entry.Data, spec.Path)); ok {
				sums[metric] += num
				counts[metric]++
			}
		}
	}
	if len(counts) == 0 {
		return nil
	}
	averages := make(map[string]float64, len(counts))
	for metric, count := range counts {
		averages[metric] = sums[metric] / float64(count)
	}
	return averages
}

// fieldMetric resolves the threshold metric of a field: an explicit Metric
// wins, otherwise the field type implies one. Energy and text fields are
// unclassified.
func fieldMetric(spec domain.FieldSpec) string {
	if spec.Metric != "" {
		return spec.Metric
	}
	switch spec.Type {
	case domain.FieldCarbon:
		return domain.MetricCO2Emissions
	case domain.FieldBytes:
		return domain.MetricDataTransfer
	case domain.FieldTime:
		return domain.MetricLoadTime
	default:
		return ""
	}
}

func fieldLabel(spec domain.FieldSpec) string {
	label := spec.Label
	if label == "" {
		label = spec.Key
	}
	return render.NormalizeFieldLabel(label)
}

// resolveTemplate expands {path.expression} placeholders against the payload.
// Placeholders that resolve to nothing render empty.
func resolveTemplate(template string, payload any) string {
	if template == "" {
		return ""
	}
	var b strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		offset := strings.IndexByte(rest[open:], '}')
		if offset < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:open])
		expr := rest[open+1 : open+offset]
		if value := extract.Value(payload, expr); value != nil {
			b.WriteString(render.Plain(value))
		}
		rest = rest[open+offset+1:]
	}
	return strings.TrimSpace(b.String())
}

func matchesQuery(entry domain.AssessmentDataEntry, q string) bool {
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(entry.ToolName), q) {
		return true
	}
	raw, err := json.Marshal(entry.Data)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(raw)), q)
}

// plainOrJSON renders scalars plainly and nested structures as compact JSON,
// keeping the generic dump readable.
func plainOrJSON(value any) string {
	switch value.(type) {
	case map[string]any, []any:
		raw, err := json.Marshal(value)
		if err != nil {
			return render.Plain(value)
		}
		return string(raw)
	default:
		return render.Plain(value)
	}
}

func averagePtr(averages map[string]float64, metric string) *float64 {
	if averages == nil {
		return nil
	}
	avg, ok := averages[metric]
	if !ok {
		return nil
	}
	return &avg
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
