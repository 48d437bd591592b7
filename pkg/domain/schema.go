package domain

import "fmt"

// FieldType selects the built-in rendering applied to an extracted value.
type FieldType string

// Built-in field types understood by the value formatter.
const (
	// FieldBytes renders a byte count as integer kilobytes.
	FieldBytes FieldType = "bytes"
	// FieldTime renders a duration in milliseconds.
	FieldTime FieldType = "time"
	// FieldCarbon renders a mass of CO2 in grams with three decimals.
	FieldCarbon FieldType = "carbon"
	// FieldEnergy renders an energy amount in kWh with three decimals.
	FieldEnergy FieldType = "energy"
	// FieldText renders the value's plain string form.
	FieldText FieldType = "text"
)

// FieldSpec describes how one display field is pulled out of a tool payload.
// Path holds one or more fallback path expressions separated by commas; the
// first expression that resolves wins. Metric optionally names the threshold
// metric used for badge classification, overriding the default mapping from
// Type.
type FieldSpec struct {
	Key            string    `json:"key"`
	Label          string    `json:"label"`
	Path           string    `json:"path"`
	Type           FieldType `json:"type"`
	FormatTemplate string    `json:"format_template,omitempty"`
	Metric         string    `json:"metric,omitempty"`
}

// DisplaySpec carries everything the presentation assembler needs to render
// entries of one tool: the group header, per-entry templates, and the field
// list. Templates resolve {path.expression} placeholders against the payload.
type DisplaySpec struct {
	GroupLabel          string      `json:"group_label"`
	Icon                string      `json:"icon,omitempty"`
	EntryTemplate       string      `json:"entry_template,omitempty"`
	DescriptionTemplate string      `json:"description_template,omitempty"`
	Fields              []FieldSpec `json:"fields,omitempty"`
}

// ToolSchema is the static metadata registered once per tool. Name is the
// tool name entries are stored under; tools with no registered schema fall
// back to a generic key-dump rendering.
type ToolSchema struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Display DisplaySpec `json:"display"`
}

// BadgeColor is the ordinal severity bucket shown next to an entry.
type BadgeColor string

// Badge colors ordered from unclassified to most severe.
const (
	BadgeNone   BadgeColor = "none"
	BadgeGreen  BadgeColor = "green"
	BadgeYellow BadgeColor = "yellow"
	BadgeOrange BadgeColor = "orange"
	BadgeRed    BadgeColor = "red"
)

// Rank orders badge colors by severity: none < green < yellow < orange < red.
func (b BadgeColor) Rank() int {
	switch b {
	case BadgeGreen:
		return 1
	case BadgeYellow:
		return 2
	case BadgeOrange:
		return 3
	case BadgeRed:
		return 4
	default:
		return 0
	}
}

// WorseOf returns the more severe of b and other.
func (b BadgeColor) WorseOf(other BadgeColor) BadgeColor {
	if other.Rank() > b.Rank() {
		return other
	}
	return b
}

// Standard threshold metric names with built-in classifier defaults.
const (
	MetricCarbonIntensity = "carbonIntensity"
	MetricCO2Emissions    = "co2Emissions"
	MetricDataTransfer    = "dataTransfer"
	MetricLoadTime        = "loadTime"
)

// Band is one contiguous numeric bucket of a ThresholdSet. Min is inclusive;
// Max is the exclusive upper edge and equals the next band's Min.
type Band struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ThresholdSet partitions a metric's value range into the four badge buckets.
// Boundaries are inclusive on the lower edge of each higher bucket: a value
// equal to a band's Min belongs to that band, not the one below.
type ThresholdSet struct {
	Green  Band `json:"green"`
	Yellow Band `json:"yellow"`
	Orange Band `json:"orange"`
	Red    Band `json:"red"`
}

// NewThresholdSet builds a contiguous set from the three cut points between
// green/yellow, yellow/orange, and orange/red.
func NewThresholdSet(yellowMin, orangeMin, redMin float64) ThresholdSet {
	return ThresholdSet{
		Green:  Band{Min: 0, Max: yellowMin},
		Yellow: Band{Min: yellowMin, Max: orangeMin},
		Orange: Band{Min: orangeMin, Max: redMin},
		Red:    Band{Min: redMin},
	}
}

// Classify returns the bucket containing value using lower-bound-inclusive
// semantics across bucket boundaries.
func (t ThresholdSet) Classify(value float64) BadgeColor {
	switch {
	case value >= t.Red.Min:
		return BadgeRed
	case value >= t.Orange.Min:
		return BadgeOrange
	case value >= t.Yellow.Min:
		return BadgeYellow
	default:
		return BadgeGreen
	}
}

// Validate reports whether the set's buckets are ordered and contiguous.
func (t ThresholdSet) Validate() error {
	if !(t.Yellow.Min < t.Orange.Min && t.Orange.Min < t.Red.Min) {
		return fmt.Errorf("threshold cut points not strictly increasing: yellow=%v orange=%v red=%v", t.Yellow.Min, t.Orange.Min, t.Red.Min)
	}
	if t.Green.Max != t.Yellow.Min || t.Yellow.Max != t.Orange.Min || t.Orange.Max != t.Red.Min {
		return fmt.Errorf("threshold bands not contiguous")
	}
	return nil
}
