package semgrep

import (
	"testing"

	"carbonscope/internal/core"
)

func TestPluginRegistration(t *testing.T) {
	plugin := New()
	registry := core.NewSchemaRegistry()
	if err := plugin.Register(registry); err != nil {
		t.Fatalf("register plugin: %v", err)
	}

	schema, ok := registry.Schema(ToolName)
	if !ok {
		t.Fatalf("expected %s schema to be registered", ToolName)
	}
	if schema.Display.GroupLabel != "Code Findings" {
		t.Fatalf("unexpected group label: %q", schema.Display.GroupLabel)
	}
	if len(schema.Display.Fields) != 3 {
		t.Fatalf("expected three display fields, got %d", len(schema.Display.Fields))
	}
	if schema.Display.Fields[0].Metric != MetricCodeFindings {
		t.Fatalf("expected findings field to classify under %s, got %q", MetricCodeFindings, schema.Display.Fields[0].Metric)
	}

	set, ok := registry.Thresholds()[MetricCodeFindings]
	if !ok {
		t.Fatalf("expected %s thresholds to be registered", MetricCodeFindings)
	}
	if set.Yellow.Min != 1 || set.Orange.Min != 10 || set.Red.Min != 25 {
		t.Fatalf("unexpected threshold cut points: %+v", set)
	}
	if got := set.Classify(0); got != "green" {
		t.Fatalf("expected a clean run to classify green, got %s", got)
	}
	if got := set.Classify(25); got != "red" {
		t.Fatalf("expected 25 findings to classify red, got %s", got)
	}
}

func TestNormalizeRuleID(t *testing.T) {
	cases := []struct {
		id   string
		want string
	}{
		{"packages.core.semgrep.gci2-java-avoid-multiple-if-else-statement", "gci2-java-avoid-multiple-if-else-statement"},
		{"gci24-java-returned-sql-results-should-be-limited", "gci24-java-returned-sql-results-should-be-limited"},
		{"", ""},
		{"prefix.", ""},
	}
	for _, tc := range cases {
		if got := NormalizeRuleID(tc.id); got != tc.want {
			t.Fatalf("NormalizeRuleID(%q) = %q, want %q", tc.id, got, tc.want)
		}
	}
}

func TestPayloadNormalizesAndTallies(t *testing.T) {
	matches := []Match{
		{
			RuleID:      "packages.core.semgrep.gci24-java-returned-sql-results-should-be-limited",
			Path:        "src/main/java/Repo.java",
			StartLine:   42,
			EndLine:     44,
			StartColumn: 9,
			EndColumn:   31,
			Message:     "limit returned SQL results",
			Severity:    SeverityError,
			CodeSnippet: "return stmt.executeQuery(sql);",
			Fix:         "return stmt.executeQuery(sql + \" LIMIT 100\");",
			Metadata:    map[string]any{"category": "sobriety"},
		},
		{
			RuleID:    "packages.core.semgrep.gci2-java-avoid-multiple-if-else-statement",
			Path:      "src/main/java/Repo.java",
			StartLine: 80,
			Severity:  SeverityWarning,
			Message:   "avoid chained if-else",
		},
		{
			RuleID:    "gci103-python-dont-use-items-to-iterate-over-a-dictionary-when-only-keys-or-values-are-needed",
			Path:      "scripts/report.py",
			StartLine: 7,
			Severity:  SeverityInfo,
			Message:   "iterate keys directly",
		},
	}

	payload := Payload("/srv/shop", matches)
	if payload["target"] != "/srv/shop" {
		t.Fatalf("unexpected target: %v", payload["target"])
	}

	stored, ok := payload["matches"].([]any)
	if !ok || len(stored) != 3 {
		t.Fatalf("expected three stored matches, got %T %v", payload["matches"], payload["matches"])
	}
	first := stored[0].(map[string]any)
	if first["rule_id"] != "gci24-java-returned-sql-results-should-be-limited" {
		t.Fatalf("expected normalized rule id, got %v", first["rule_id"])
	}
	if first["severity"] != SeverityError || first["start_line"] != 42 {
		t.Fatalf("unexpected match payload: %+v", first)
	}
	if _, ok := first["fix"]; !ok {
		t.Fatalf("expected fix to be present: %+v", first)
	}
	second := stored[1].(map[string]any)
	if _, ok := second["fix"]; ok {
		t.Fatalf("expected fix to be omitted when empty: %+v", second)
	}
	if _, ok := second["metadata"]; ok {
		t.Fatalf("expected metadata to be omitted when empty: %+v", second)
	}

	stats, ok := payload["stats"].(map[string]any)
	if !ok {
		t.Fatalf("expected stats object, got %T", payload["stats"])
	}
	want := map[string]int{
		"total_matches": 3,
		"error_count":   1,
		"warning_count": 1,
		"info_count":    1,
		"files_scanned": 2,
	}
	for key, value := range want {
		if stats[key] != value {
			t.Fatalf("stats[%s] = %v, want %d", key, stats[key], value)
		}
	}
}

func TestStatsEmptyRun(t *testing.T) {
	stats := Stats(nil)
	if stats["total_matches"] != 0 || stats["files_scanned"] != 0 {
		t.Fatalf("expected zeroed stats for empty run, got %+v", stats)
	}
}

func TestStatsIgnoresUnknownSeverity(t *testing.T) {
	stats := Stats([]Match{{RuleID: "x", Path: "a.go", Severity: "EXPERIMENT"}})
	if stats["total_matches"] != 1 {
		t.Fatalf("unknown severities still count toward the total: %+v", stats)
	}
	if stats["error_count"] != 0 || stats["warning_count"] != 0 || stats["info_count"] != 0 {
		t.Fatalf("unknown severities must not inflate the tallies: %+v", stats)
	}
}
