// Package classify maps numeric metric values onto ordinal badge colors,
// optionally escalated relative to a project's running average.
package classify

import (
	"math"

	"carbonscope/pkg/domain"
)

// Classifier resolves metric names to threshold sets and classifies values
// against them. The zero value is unusable; construct with New.
type Classifier struct {
	sets map[string]domain.ThresholdSet
}

// Defaults returns the built-in threshold sets for the four standard metrics:
// grid carbon intensity in gCO2/kWh, per-run CO2 emissions in grams, data
// transfer in bytes, and load time in milliseconds.
func Defaults() map[string]domain.ThresholdSet {
	return map[string]domain.ThresholdSet{
		domain.MetricCarbonIntensity: domain.NewThresholdSet(100, 300, 500),
		domain.MetricCO2Emissions:    domain.NewThresholdSet(0.5, 1.5, 3),
		domain.MetricDataTransfer:    domain.NewThresholdSet(512*1024, 1024*1024, 2*1024*1024),
		domain.MetricLoadTime:        domain.NewThresholdSet(1000, 3000, 5000),
	}
}

// New builds a Classifier from the defaults merged with overrides. Overrides
// may replace standard sets or add custom metrics.
func New(overrides map[string]domain.ThresholdSet) *Classifier {
	sets := Defaults()
	for metric, set := range overrides {
		sets[metric] = set
	}
	return &Classifier{sets: sets}
}

// Thresholds returns the set registered for metric.
func (c *Classifier) Thresholds(metric string) (domain.ThresholdSet, bool) {
	set, ok := c.sets[metric]
	return set, ok
}

// BadgeColor classifies value against metric's threshold set. Nil,
// non-numeric, and NaN values yield BadgeNone, as do metrics with no
// registered set.
func (c *Classifier) BadgeColor(metric string, value any) domain.BadgeColor {
	num, ok := numeric(value)
	if !ok {
		return domain.BadgeNone
	}
	set, ok := c.sets[metric]
	if !ok {
		return domain.BadgeNone
	}
	return set.Classify(num)
}

// RelativeBadgeColor classifies value absolutely and then escalates one tier
// when the value exceeds 1.5 times the project average. An absolute green is
// never escalated, and a nil average leaves the absolute color unchanged.
func (c *Classifier) RelativeBadgeColor(metric string, value any, projectAverage *float64) domain.BadgeColor {
	absolute := c.BadgeColor(metric, value)
	if absolute == domain.BadgeNone || absolute == domain.BadgeGreen || projectAverage == nil {
		return absolute
	}
	num, ok := numeric(value)
	if !ok || num <= *projectAverage*1.5 {
		return absolute
	}
	return escalate(absolute)
}

// Average applies extractor to every entry, discards misses, and averages the
// rest. The second return is false when no entry yields a usable value.
func Average(entries []domain.AssessmentDataEntry, extractor func(domain.AssessmentDataEntry) (float64, bool)) (float64, bool) {
	var sum float64
	var count int
	for _, entry := range entries {
		if v, ok := extractor(entry); ok && !math.IsNaN(v) {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// escalate moves one tier up the severity ladder, capped at red.
func escalate(color domain.BadgeColor) domain.BadgeColor {
	switch color {
	case domain.BadgeYellow:
		return domain.BadgeOrange
	case domain.BadgeOrange, domain.BadgeRed:
		return domain.BadgeRed
	default:
		return color
	}
}

func numeric(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, !math.IsNaN(v)
	case float32:
		f := float64(v)
		return f, !math.IsNaN(f)
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
