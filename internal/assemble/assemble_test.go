package assemble

import (
	"testing"
	"time"

	"carbonscope/internal/classify"
	"carbonscope/pkg/domain"
)

type schemaMap map[string]domain.ToolSchema

func (m schemaMap) Schema(tool string) (domain.ToolSchema, bool) {
	schema, ok := m[tool]
	return schema, ok
}

func webAuditSchema() domain.ToolSchema {
	return domain.ToolSchema{
		ID:   "web-audit",
		Name: "greenframe",
		Display: domain.DisplaySpec{
			GroupLabel:          "Web Audits",
			Icon:                "globe",
			EntryTemplate:       "{page.url}",
			DescriptionTemplate: "run on {page.device}",
			Fields: []domain.FieldSpec{
				{Key: "co2", Label: "co2", Path: "co2.value", Type: domain.FieldCarbon},
				{Key: "transfer", Label: "transferred", Path: "bytes", Type: domain.FieldBytes},
				{Key: "load", Label: "load time", Path: "metrics.loadTime", Type: domain.FieldTime},
			},
		},
	}
}

func entryAt(id int64, tool, dataType string, ts time.Time, data any) domain.AssessmentDataEntry {
	return domain.AssessmentDataEntry{
		ID:        id,
		ProjectID: 1,
		ToolName:  tool,
		DataType:  dataType,
		Data:      data,
		Timestamp: ts,
	}
}

func TestGroupsSchemaDriven(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	schemas := schemaMap{"greenframe": webAuditSchema()}
	asm := New(schemas, classify.New(nil))

	entries := []domain.AssessmentDataEntry{
		entryAt(3, "greenframe", "web-audit", base.Add(2*time.Minute), map[string]any{
			"page":    map[string]any{"url": "https://example.test", "device": "desktop"},
			"co2":     map[string]any{"value": 0.912},
			"bytes":   float64(2 * 1024 * 1024),
			"metrics": map[string]any{"loadTime": float64(1500)},
		}),
		entryAt(2, "custom-tool", "custom-report", base.Add(time.Minute), map[string]any{
			"score": float64(42),
		}),
		entryAt(1, "greenframe", "web-audit", base, map[string]any{
			"page":    map[string]any{"url": "https://example.test/about", "device": "mobile"},
			"co2":     map[string]any{"value": 0.8},
			"metrics": map[string]any{"loadTime": float64(900)},
		}),
	}

	groups := asm.Groups(entries)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	web := groups[0]
	if web.ToolName != "greenframe" || web.Label != "Web Audits" || web.Icon != "globe" {
		t.Fatalf("unexpected group header: %+v", web)
	}
	if len(web.Items) != 2 {
		t.Fatalf("expected 2 web audit items, got %d", len(web.Items))
	}

	first := web.Items[0]
	if first.EntryID != 3 {
		t.Fatalf("expected newest entry first, got id %d", first.EntryID)
	}
	if first.Label != "https://example.test" {
		t.Fatalf("unexpected label %q", first.Label)
	}
	if first.Description != "run on desktop" {
		t.Fatalf("unexpected description %q", first.Description)
	}
	if first.Generic {
		t.Fatal("schema-driven item marked generic")
	}
	if len(first.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %+v", first.Fields)
	}
	byKey := make(map[string]FieldValue, len(first.Fields))
	for _, f := range first.Fields {
		byKey[f.Key] = f
	}
	if f := byKey["co2"]; f.Value != "0.912g" || f.Label != "CO2 Emissions" || f.Badge != domain.BadgeYellow {
		t.Fatalf("unexpected co2 field: %+v", f)
	}
	if f := byKey["transfer"]; f.Value != "2048 KB" || f.Label != "Data Transfer" || f.Badge != domain.BadgeRed {
		t.Fatalf("unexpected transfer field: %+v", f)
	}
	if f := byKey["load"]; f.Value != "1500ms" || f.Label != "Load Time" || f.Badge != domain.BadgeYellow {
		t.Fatalf("unexpected load field: %+v", f)
	}
	if first.Badge != domain.BadgeRed {
		t.Fatalf("expected worst field badge red, got %s", first.Badge)
	}

	second := web.Items[1]
	if second.EntryID != 1 {
		t.Fatalf("expected older entry second, got id %d", second.EntryID)
	}
	if len(second.Fields) != 2 {
		t.Fatalf("expected missing path to drop field, got %+v", second.Fields)
	}

	generic := groups[1]
	if generic.ToolName != "custom-tool" || generic.Label != "custom-tool" {
		t.Fatalf("unexpected generic group: %+v", generic)
	}
	if !generic.Items[0].Generic {
		t.Fatal("expected generic item flag")
	}
	if generic.Items[0].Label != "custom-report" {
		t.Fatalf("unexpected generic label %q", generic.Items[0].Label)
	}
}

func TestGroupsRelativeEscalation(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	schemas := schemaMap{"greenframe": webAuditSchema()}
	asm := New(schemas, classify.New(nil))

	co2Entry := func(id int64, grams float64) domain.AssessmentDataEntry {
		return entryAt(id, "greenframe", "web-audit", base.Add(time.Duration(id)*time.Minute), map[string]any{
			"co2": map[string]any{"value": grams},
		})
	}

	// Average is 0.8g; 1.4g exceeds 1.5x the average and escalates one tier.
	groups := asm.Groups([]domain.AssessmentDataEntry{co2Entry(3, 1.4), co2Entry(2, 0.5), co2Entry(1, 0.5)})
	items := groups[0].Items
	if items[0].Fields[0].Badge != domain.BadgeOrange {
		t.Fatalf("expected escalated orange badge, got %s", items[0].Fields[0].Badge)
	}
	if items[1].Fields[0].Badge != domain.BadgeYellow {
		t.Fatalf("expected plain yellow badge, got %s", items[1].Fields[0].Badge)
	}

	// An absolute green is never escalated no matter how far above average.
	groups = asm.Groups([]domain.AssessmentDataEntry{co2Entry(3, 0.45), co2Entry(2, 0.1), co2Entry(1, 0.1)})
	if badge := groups[0].Items[0].Fields[0].Badge; badge != domain.BadgeGreen {
		t.Fatalf("expected green to stay green, got %s", badge)
	}
}

func TestGenericFallbackShapes(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	asm := New(nil, nil)

	groups := asm.Groups([]domain.AssessmentDataEntry{
		entryAt(1, "mystery", "mystery-report", base, map[string]any{
			"zeta":   float64(1),
			"alpha":  "first",
			"nested": map[string]any{"k": "v"},
		}),
	})
	fields := groups[0].Items[0].Fields
	if len(fields) != 3 {
		t.Fatalf("expected 3 dumped fields, got %+v", fields)
	}
	if fields[0].Key != "alpha" || fields[1].Key != "nested" || fields[2].Key != "zeta" {
		t.Fatalf("expected sorted keys, got %+v", fields)
	}
	if fields[1].Value != `{"k":"v"}` {
		t.Fatalf("expected nested JSON dump, got %q", fields[1].Value)
	}

	groups = asm.Groups([]domain.AssessmentDataEntry{entryAt(2, "mystery", "scalar", base, float64(7))})
	fields = groups[0].Items[0].Fields
	if len(fields) != 1 || fields[0].Key != "value" || fields[0].Value != "7" {
		t.Fatalf("unexpected scalar dump: %+v", fields)
	}

	groups = asm.Groups([]domain.AssessmentDataEntry{entryAt(3, "mystery", "empty", base, nil)})
	if len(groups[0].Items[0].Fields) != 0 {
		t.Fatalf("expected no fields for nil payload, got %+v", groups[0].Items[0].Fields)
	}
}

func TestTemplateResolution(t *testing.T) {
	payload := map[string]any{
		"page":  map[string]any{"url": "https://example.test"},
		"stats": map[string]any{"total_matches": float64(12)},
	}
	cases := []struct {
		template string
		want     string
	}{
		{"", ""},
		{"{page.url}", "https://example.test"},
		{"{stats.total_matches} findings in {page.url}", "12 findings in https://example.test"},
		{"{missing.path} trailing", "trailing"},
		{"{stats['total_matches']}", "12"},
		{"unbalanced {page.url", "unbalanced {page.url"},
	}
	for _, tc := range cases {
		if got := resolveTemplate(tc.template, payload); got != tc.want {
			t.Fatalf("resolveTemplate(%q) = %q, want %q", tc.template, got, tc.want)
		}
	}
}

func TestSearch(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	asm := New(nil, nil)
	entries := []domain.AssessmentDataEntry{
		entryAt(2, "semgrep", "code-analysis", base.Add(time.Minute), map[string]any{
			"target": "src/Main.java",
		}),
		entryAt(1, "greenframe", "web-audit", base, map[string]any{
			"page": "https://example.test",
		}),
	}

	if got := asm.Search(entries, "MAIN.JAVA"); len(got) != 1 || got[0].EntryID != 2 {
		t.Fatalf("payload search failed: %+v", got)
	}
	if got := asm.Search(entries, "GreenFrame"); len(got) != 1 || got[0].EntryID != 1 {
		t.Fatalf("tool name search failed: %+v", got)
	}
	if got := asm.Search(entries, ""); len(got) != 2 {
		t.Fatalf("empty query should match all, got %d", len(got))
	}
	if got := asm.Search(entries, "nowhere"); len(got) != 0 {
		t.Fatalf("expected no matches, got %+v", got)
	}
}

func TestStatistics(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	asm := New(nil, nil)
	stats := asm.Statistics([]domain.AssessmentDataEntry{
		entryAt(3, "semgrep", "code-analysis", base.Add(2*time.Minute), nil),
		entryAt(2, "semgrep", "code-analysis", base.Add(time.Minute), nil),
		entryAt(1, "greenframe", "web-audit", base, nil),
	})
	if stats.TotalEntries != 3 {
		t.Fatalf("expected 3 entries, got %d", stats.TotalEntries)
	}
	if stats.ToolCounts["semgrep"] != 2 || stats.ToolCounts["greenframe"] != 1 {
		t.Fatalf("unexpected tool counts: %+v", stats.ToolCounts)
	}
	if !stats.LatestEntry.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("unexpected latest entry %v", stats.LatestEntry)
	}

	empty := asm.Statistics(nil)
	if empty.TotalEntries != 0 || !empty.LatestEntry.IsZero() {
		t.Fatalf("unexpected empty statistics: %+v", empty)
	}
}

func TestGroupsEmptyInput(t *testing.T) {
	asm := New(schemaMap{}, nil)
	if groups := asm.Groups(nil); len(groups) != 0 {
		t.Fatalf("expected no groups, got %+v", groups)
	}
	if items := asm.Search(nil, "x"); len(items) != 0 {
		t.Fatalf("expected no items, got %+v", items)
	}
}

func TestItemLabelFallsBackToDataType(t *testing.T) {
	schema := webAuditSchema()
	schema.Display.EntryTemplate = "{missing.everywhere}"
	asm := New(schemaMap{"greenframe": schema}, nil)
	groups := asm.Groups([]domain.AssessmentDataEntry{
		entryAt(1, "greenframe", "web-audit", time.Now().UTC(), map[string]any{"co2": map[string]any{"value": 0.1}}),
	})
	if got := groups[0].Items[0].Label; got != "web-audit" {
		t.Fatalf("expected data type fallback label, got %q", got)
	}
}

func TestExplicitMetricOverridesTypeMapping(t *testing.T) {
	schema := domain.ToolSchema{
		Name: "deployment-scan",
		Display: domain.DisplaySpec{
			GroupLabel: "Deployments",
			Fields: []domain.FieldSpec{
				{Key: "intensity", Label: "grid intensity", Path: "intensity", Type: domain.FieldText, Metric: domain.MetricCarbonIntensity},
			},
		},
	}
	asm := New(schemaMap{"deployment-scan": schema}, classify.New(nil))
	groups := asm.Groups([]domain.AssessmentDataEntry{
		entryAt(1, "deployment-scan", "infrastructure-analysis", time.Now().UTC(), map[string]any{
			"intensity": float64(350),
		}),
	})
	field := groups[0].Items[0].Fields[0]
	if field.Metric != domain.MetricCarbonIntensity {
		t.Fatalf("expected explicit metric, got %q", field.Metric)
	}
	if field.Badge != domain.BadgeOrange {
		t.Fatalf("expected orange for 350 gCO2/kWh, got %s", field.Badge)
	}
}

func TestSearchMatchesPayloadLiterally(t *testing.T) {
	asm := New(nil, nil)
	entries := []domain.AssessmentDataEntry{
		entryAt(1, "cpu-profiler", "cpu-profile", time.Now().UTC(), map[string]any{
			"lines": []any{map[string]any{"file": "handler.py", "samples": float64(40)}},
		}),
	}
	if got := asm.Search(entries, "handler.py"); len(got) != 1 {
		t.Fatalf("expected nested array match, got %+v", got)
	}
	if got := asm.Search(entries, "profiler"); len(got) != 1 {
		t.Fatalf("expected tool substring match, got %+v", got)
	}
}
