// Package greenframe integrates GreenFrame web audits: page-load carbon,
// energy, transfer, and timing measurements stored as web-audit entries.
package greenframe

import "carbonscope/pkg/schemaapi"

// Tool and data type names entries are stored under.
const (
	ToolName = "greenframe"
	DataType = "web-audit"
)

// Plugin registers the GreenFrame display schema.
type Plugin struct{}

// New constructs a greenframe plugin instance.
func New() Plugin {
	return Plugin{}
}

// Name returns the plugin identifier.
func (Plugin) Name() string { return ToolName }

// Version returns the plugin semantic version.
func (Plugin) Version() string { return "0.2.0" }

// Register wires the web-audit display schema. The standard metrics already
// carry classifier defaults, so no threshold overrides are contributed.
func (Plugin) Register(registry schemaapi.Registry) error {
	return registry.RegisterSchema(schemaapi.ToolSchema{
		ID:   "carbonscope:plugin:greenframe",
		Name: ToolName,
		Display: schemaapi.DisplaySpec{
			GroupLabel:          "Web Audits",
			Icon:                "globe",
			EntryTemplate:       "{page.url}",
			DescriptionTemplate: "{page.device}",
			Fields: []schemaapi.FieldSpec{
				// Older GreenFrame releases reported co2 and energy as bare
				// numbers; the fallback paths keep those payloads rendering.
				{Key: "co2", Label: "CO2 Emissions", Path: "co2.value,co2", Type: schemaapi.FieldCarbon},
				{Key: "energy", Label: "Energy", Path: "energy.value,energy", Type: schemaapi.FieldEnergy},
				{Key: "transfer", Label: "Data Transfer", Path: "bytes", Type: schemaapi.FieldBytes},
				{Key: "load", Label: "Load Time", Path: "metrics.loadTime", Type: schemaapi.FieldTime},
			},
		},
	})
}

// Audit is one GreenFrame run result in the units the CLI reports: grams of
// CO2 equivalent, kilowatt hours, transferred bytes, and milliseconds.
type Audit struct {
	URL        string
	Device     string
	CO2Grams   float64
	EnergyKWh  float64
	Bytes      int64
	LoadTimeMS float64
}

// Payload builds the stored web-audit payload for a. Device is omitted when
// empty so desktop-only audits stay compact.
func Payload(a Audit) map[string]any {
	page := map[string]any{"url": a.URL}
	if a.Device != "" {
		page["device"] = a.Device
	}
	return map[string]any{
		"page":    page,
		"co2":     map[string]any{"value": a.CO2Grams},
		"energy":  map[string]any{"value": a.EnergyKWh},
		"bytes":   a.Bytes,
		"metrics": map[string]any{"loadTime": a.LoadTimeMS},
	}
}
