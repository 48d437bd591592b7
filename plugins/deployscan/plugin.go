// Package deployscan integrates cloud deployment inventories: each scanned
// deployment is annotated with its electricity grid zone and carbon
// intensity and stored as an infrastructure-analysis entry.
package deployscan

import (
	"carbonscope/pkg/carbon"
	"carbonscope/pkg/schemaapi"
)

// Tool and data type names entries are stored under.
const (
	ToolName = "deployment-scan"
	DataType = "infrastructure-analysis"
)

// Plugin registers the infrastructure-analysis display schema.
type Plugin struct{}

// New constructs a deployscan plugin instance.
func New() Plugin {
	return Plugin{}
}

// Name returns the plugin identifier.
func (Plugin) Name() string { return ToolName }

// Version returns the plugin semantic version.
func (Plugin) Version() string { return "0.1.2" }

// Register wires the infrastructure-analysis display schema. Intensity
// classification rides on the built-in carbonIntensity thresholds.
func (Plugin) Register(registry schemaapi.Registry) error {
	return registry.RegisterSchema(schemaapi.ToolSchema{
		ID:   "carbonscope:plugin:deployscan",
		Name: ToolName,
		Display: schemaapi.DisplaySpec{
			GroupLabel:          "Deployments",
			Icon:                "cloud",
			EntryTemplate:       "{deployments[*].service}",
			DescriptionTemplate: "{total_count} deployments",
			Fields: []schemaapi.FieldSpec{
				{Key: "intensity", Label: "Grid Intensity", Path: "deployments[*].grid_intensity", Type: schemaapi.FieldText, FormatTemplate: "{value} gCO2/kWh", Metric: schemaapi.MetricCarbonIntensity},
				{Key: "zone", Label: "Grid Zone", Path: "deployments[*].grid_zone", Type: schemaapi.FieldText},
				{Key: "count", Label: "Deployments", Path: "total_count", Type: schemaapi.FieldText},
			},
		},
	})
}

// Deployment is one scanned workload placement.
type Deployment struct {
	Provider string
	Region   string
	Service  string
	Replicas int
}

// Payload builds the stored infrastructure-analysis payload, annotating each
// deployment with its grid zone and carbon intensity. Unknown regions keep
// the world-average intensity and carry no zone.
func Payload(deployments []Deployment) map[string]any {
	out := make([]any, 0, len(deployments))
	for _, d := range deployments {
		entry := map[string]any{
			"provider":       d.Provider,
			"region":         d.Region,
			"service":        d.Service,
			"replicas":       d.Replicas,
			"grid_intensity": carbon.Intensity(d.Provider, d.Region),
		}
		if zone, ok := carbon.LookupRegion(d.Provider, d.Region); ok {
			entry["grid_zone"] = zone.Code
		}
		out = append(out, entry)
	}
	return map[string]any{
		"deployments": out,
		"total_count": len(deployments),
	}
}
