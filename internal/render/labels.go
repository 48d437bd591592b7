package render

import "strings"

// labelRules map keyword hits to canonical display labels. Matching is
// case-insensitive substring search, which tolerates camelCase, kebab-case,
// and free-text spellings alike. Rule order matters: transfer keywords are
// checked before duration keywords so names like "downloadBytes" do not trip
// the "load" keyword.
var labelRules = []struct {
	keywords []string
	label    string
}{
	{[]string{"co2", "carbon", "emission"}, "CO2 Emissions"},
	{[]string{"energy", "kwh", "watt", "power"}, "Energy"},
	{[]string{"byte", "transfer", "network", "size", "payload", "download", "upload"}, "Data Transfer"},
	{[]string{"duration", "load", "latency"}, "Load Time"},
}

// NormalizeFieldLabel canonicalizes the many historical spellings of the four
// standard metrics into stable display labels. Labels matching no rule pass
// through unchanged.
func NormalizeFieldLabel(label string) string {
	lower := strings.ToLower(label)
	for _, rule := range labelRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return rule.label
			}
		}
	}
	return label
}
