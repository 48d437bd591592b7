// Package schemaapi provides a stable surface for assessment tool plugins by
// re-exporting the domain presentation concepts and the registration
// contract. Plugin authors import only this package.
package schemaapi

import "carbonscope/pkg/domain"

// Registry receives the schemas and threshold overrides a plugin
// contributes during installation.
type Registry interface {
	RegisterSchema(schema ToolSchema) error
	RegisterThresholds(metric string, set ThresholdSet) error
}

// Plugin is implemented by every assessment tool integration.
type Plugin interface {
	Name() string
	Version() string
	Register(Registry) error
}

// Version is the schema API revision plugins compile against.
const Version = "v1"

// Presentation schema aliases.
type (
	// ToolSchema is an alias of domain.ToolSchema, the static metadata a
	// tool registers once.
	ToolSchema = domain.ToolSchema
	// DisplaySpec is an alias of domain.DisplaySpec describing how entries
	// of a tool are rendered.
	DisplaySpec = domain.DisplaySpec
	// FieldSpec is an alias of domain.FieldSpec describing one display
	// field extraction.
	FieldSpec = domain.FieldSpec
	// FieldType is an alias of domain.FieldType selecting a built-in
	// rendering.
	FieldType = domain.FieldType
	// ThresholdSet is an alias of domain.ThresholdSet partitioning a
	// metric into badge buckets.
	ThresholdSet = domain.ThresholdSet
	// BadgeColor is an alias of domain.BadgeColor.
	BadgeColor = domain.BadgeColor
)

// Field type aliases.
const (
	FieldBytes  = domain.FieldBytes
	FieldTime   = domain.FieldTime
	FieldCarbon = domain.FieldCarbon
	FieldEnergy = domain.FieldEnergy
	FieldText   = domain.FieldText
)

// Standard metric name aliases.
const (
	MetricCarbonIntensity = domain.MetricCarbonIntensity
	MetricCO2Emissions    = domain.MetricCO2Emissions
	MetricDataTransfer    = domain.MetricDataTransfer
	MetricLoadTime        = domain.MetricLoadTime
)

// NewThresholdSet builds a contiguous threshold set from the three cut
// points between green/yellow, yellow/orange, and orange/red.
func NewThresholdSet(yellowMin, orangeMin, redMin float64) ThresholdSet {
	return domain.NewThresholdSet(yellowMin, orangeMin, redMin)
}
