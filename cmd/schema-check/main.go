// Command schema-check lints the display schemas and threshold sets the
// built-in plugins register: tool name uniqueness, group labels, field paths
// and types, template placeholders, and threshold contiguity.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"carbonscope/internal/classify"
	"carbonscope/internal/core"
	"carbonscope/internal/extract"
	"carbonscope/pkg/domain"
	"carbonscope/pkg/schemaapi"
	"carbonscope/plugins/cpuprofile"
	"carbonscope/plugins/deployscan"
	"carbonscope/plugins/greenframe"
	"carbonscope/plugins/semgrep"
)

var exitFunc = os.Exit

var knownFieldTypes = map[domain.FieldType]struct{}{
	domain.FieldBytes:  {},
	domain.FieldTime:   {},
	domain.FieldCarbon: {},
	domain.FieldEnergy: {},
	domain.FieldText:   {},
}

// builtinPlugins lists every plugin shipped with the binary.
func builtinPlugins() []schemaapi.Plugin {
	return []schemaapi.Plugin{
		cpuprofile.New(),
		deployscan.New(),
		greenframe.New(),
		semgrep.New(),
	}
}

// main runs the command-line interface using the program arguments and exits
// the process with the status code returned by cli.
func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("schema-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var only string
	fs.StringVar(&only, "plugin", "", "restrict the check to one plugin name")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	plugins := builtinPlugins()
	if only != "" {
		var filtered []schemaapi.Plugin
		for _, plugin := range plugins {
			if plugin.Name() == only {
				filtered = append(filtered, plugin)
			}
		}
		if len(filtered) == 0 {
			if _, writeErr := fmt.Fprintf(stderr, "unknown plugin %q\n", only); writeErr != nil {
				return 2
			}
			return 2
		}
		plugins = filtered
	}

	rep := check(plugins)
	for _, line := range rep.lines {
		fmt.Fprintln(stdout, line)
	}
	if len(rep.violations) > 0 {
		for _, v := range rep.violations {
			fmt.Fprintln(stderr, v)
		}
		if _, writeErr := fmt.Fprintf(stderr, "Schema check failed: %d violation(s).\n", len(rep.violations)); writeErr != nil {
			return 1
		}
		return 1
	}
	if _, writeErr := fmt.Fprintln(stdout, "Schema check passed."); writeErr != nil {
		return 1
	}
	return 0
}

// report accumulates the per-plugin summary lines and every violation found.
type report struct {
	lines      []string
	violations []string
}

// check registers each plugin into a staging registry and validates what it
// contributed. Cross-plugin tool name collisions and classifying fields whose
// metric resolves to no threshold set are caught over the merged result.
func check(plugins []schemaapi.Plugin) report {
	var rep report
	merged := core.NewSchemaRegistry()
	owners := map[string]string{}

	for _, plugin := range plugins {
		name := plugin.Name()
		if name == "" {
			rep.violations = append(rep.violations, "plugin with empty name")
			continue
		}
		staging := core.NewSchemaRegistry()
		if err := plugin.Register(staging); err != nil {
			rep.violations = append(rep.violations, fmt.Sprintf("plugin %s: register: %v", name, err))
			continue
		}

		schemas := staging.Schemas()
		thresholds := staging.Thresholds()
		rep.lines = append(rep.lines, fmt.Sprintf("%s %s: schemas=%d thresholds=%d", name, plugin.Version(), len(schemas), len(thresholds)))

		for _, schema := range schemas {
			if owner, taken := owners[schema.Name]; taken {
				rep.violations = append(rep.violations, fmt.Sprintf("plugin %s: tool %s already registered by %s", name, schema.Name, owner))
				continue
			}
			owners[schema.Name] = name
			rep.violations = append(rep.violations, checkSchema(name, schema)...)
			if err := merged.RegisterSchema(schema); err != nil {
				rep.violations = append(rep.violations, fmt.Sprintf("plugin %s: %v", name, err))
			}
		}
		for metric, set := range thresholds {
			if err := set.Validate(); err != nil {
				rep.violations = append(rep.violations, fmt.Sprintf("plugin %s: thresholds %s: %v", name, metric, err))
				continue
			}
			if err := merged.RegisterThresholds(metric, set); err != nil {
				rep.violations = append(rep.violations, fmt.Sprintf("plugin %s: %v", name, err))
			}
		}
	}

	// Explicit metric overrides must resolve against the defaults merged with
	// every contributed set; type-implied metrics always have defaults.
	classifier := classify.New(merged.Thresholds())
	for _, schema := range merged.Schemas() {
		for _, field := range schema.Display.Fields {
			if field.Metric == "" {
				continue
			}
			if _, ok := classifier.Thresholds(field.Metric); !ok {
				rep.violations = append(rep.violations, fmt.Sprintf("schema %s: field %s: metric %s has no threshold set", schema.Name, field.Key, field.Metric))
			}
		}
	}
	return rep
}

// checkSchema validates one registered schema: group label, templates, and
// every field's key, type, path, and format template.
func checkSchema(plugin string, schema domain.ToolSchema) []string {
	var violations []string
	fail := func(format string, args ...any) {
		violations = append(violations, fmt.Sprintf("plugin %s: schema %s: ", plugin, schema.Name)+fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(schema.Display.GroupLabel) == "" {
		fail("group label must not be empty")
	}
	if err := checkTemplate(schema.Display.EntryTemplate); err != nil {
		fail("entry template: %v", err)
	}
	if err := checkTemplate(schema.Display.DescriptionTemplate); err != nil {
		fail("description template: %v", err)
	}

	keys := map[string]struct{}{}
	for _, field := range schema.Display.Fields {
		if field.Key == "" {
			fail("field with empty key")
			continue
		}
		if _, dup := keys[field.Key]; dup {
			fail("duplicate field key %s", field.Key)
		}
		keys[field.Key] = struct{}{}
		if _, ok := knownFieldTypes[field.Type]; !ok {
			fail("field %s: unknown type %q", field.Key, field.Type)
		}
		if field.Path == "" {
			fail("field %s: empty path", field.Key)
		} else if err := extract.Validate(field.Path); err != nil {
			fail("field %s: path: %v", field.Key, err)
		}
		if field.FormatTemplate != "" && !strings.Contains(field.FormatTemplate, "{value}") && !strings.Contains(field.FormatTemplate, "{valueMB}") {
			fail("field %s: format template references neither {value} nor {valueMB}", field.Key)
		}
	}
	return violations
}

// checkTemplate verifies that every placeholder in template is closed and
// holds a parseable path expression. Empty templates are fine.
func checkTemplate(template string) error {
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			return nil
		}
		offset := strings.IndexByte(rest[open:], '}')
		if offset < 0 {
			return fmt.Errorf("unclosed placeholder at %q", rest[open:])
		}
		expr := rest[open+1 : open+offset]
		if strings.TrimSpace(expr) == "" {
			return fmt.Errorf("empty placeholder")
		}
		if err := extract.Validate(expr); err != nil {
			return fmt.Errorf("placeholder %q: %w", expr, err)
		}
		rest = rest[open+offset+1:]
	}
}
