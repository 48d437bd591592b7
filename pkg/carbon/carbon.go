// Package carbon holds static average grid carbon intensity tables keyed by
// electricity grid zone, with lookups by cloud provider region and by
// country. Intensities are long-run grid averages in grams of CO2 equivalent
// per kilowatt hour, suitable for coarse classification rather than
// accounting.
package carbon

import (
	"sort"
	"strings"
)

// WorldAverage is the global average grid intensity in gCO2eq/kWh, used as
// the fallback when no zone matches.
const WorldAverage = 475.0

// Zone pairs an electricity grid identifier with its average carbon
// intensity. Codes follow ISO 3166-1 alpha-2 because every zone in the
// static table spans exactly one country.
type Zone struct {
	Code      string
	Country   string
	Intensity float64
}

var zones = []Zone{
	{"AE", "United Arab Emirates", 466},
	{"AT", "Austria", 111},
	{"AU", "Australia", 531},
	{"BE", "Belgium", 165},
	{"BR", "Brazil", 98},
	{"CA", "Canada", 128},
	{"CH", "Switzerland", 46},
	{"CN", "China", 537},
	{"DE", "Germany", 381},
	{"DK", "Denmark", 142},
	{"ES", "Spain", 174},
	{"FI", "Finland", 79},
	{"FR", "France", 56},
	{"GB", "United Kingdom", 225},
	{"HK", "Hong Kong", 609},
	{"ID", "Indonesia", 619},
	{"IE", "Ireland", 346},
	{"IN", "India", 632},
	{"IT", "Italy", 324},
	{"JP", "Japan", 462},
	{"KR", "South Korea", 436},
	{"NL", "Netherlands", 328},
	{"NO", "Norway", 29},
	{"PL", "Poland", 657},
	{"SE", "Sweden", 25},
	{"SG", "Singapore", 489},
	{"TW", "Taiwan", 560},
	{"US", "United States", 379},
	{"ZA", "South Africa", 709},
}

var (
	zoneIndex    = buildZoneIndex()
	countryIndex = buildCountryIndex()
)

func buildZoneIndex() map[string]Zone {
	idx := make(map[string]Zone, len(zones))
	for _, z := range zones {
		idx[z.Code] = z
	}
	return idx
}

func buildCountryIndex() map[string]string {
	idx := make(map[string]string, len(zones))
	for _, z := range zones {
		idx[strings.ToLower(z.Country)] = z.Code
	}
	return idx
}

// providerRegions maps cloud provider regions onto grid zone codes. Regions
// that span several grids are assigned the grid hosting the bulk of the
// provider's capacity there.
var providerRegions = map[string]map[string]string{
	"aws": {
		"ap-east-1":      "HK",
		"ap-northeast-1": "JP",
		"ap-northeast-2": "KR",
		"ap-south-1":     "IN",
		"ap-southeast-1": "SG",
		"ap-southeast-2": "AU",
		"ap-southeast-3": "ID",
		"ca-central-1":   "CA",
		"eu-central-1":   "DE",
		"eu-north-1":     "SE",
		"eu-south-1":     "IT",
		"eu-west-1":      "IE",
		"eu-west-2":      "GB",
		"eu-west-3":      "FR",
		"sa-east-1":      "BR",
		"us-east-1":      "US",
		"us-east-2":      "US",
		"us-west-1":      "US",
		"us-west-2":      "US",
	},
	"gcp": {
		"asia-east1":              "TW",
		"asia-east2":              "HK",
		"asia-northeast1":         "JP",
		"asia-northeast3":         "KR",
		"asia-south1":             "IN",
		"asia-southeast1":         "SG",
		"asia-southeast2":         "ID",
		"australia-southeast1":    "AU",
		"europe-central2":         "PL",
		"europe-north1":           "FI",
		"europe-west1":            "BE",
		"europe-west2":            "GB",
		"europe-west3":            "DE",
		"europe-west4":            "NL",
		"europe-west6":            "CH",
		"northamerica-northeast1": "CA",
		"southamerica-east1":      "BR",
		"us-central1":             "US",
		"us-east1":                "US",
		"us-east4":                "US",
		"us-west1":                "US",
		"us-west2":                "US",
	},
	"azure": {
		"australiaeast":      "AU",
		"brazilsouth":        "BR",
		"canadacentral":      "CA",
		"centralindia":       "IN",
		"centralus":          "US",
		"eastasia":           "HK",
		"eastus":             "US",
		"eastus2":            "US",
		"francecentral":      "FR",
		"germanywestcentral": "DE",
		"italynorth":         "IT",
		"japaneast":          "JP",
		"koreacentral":       "KR",
		"northeurope":        "IE",
		"norwayeast":         "NO",
		"polandcentral":      "PL",
		"southafricanorth":   "ZA",
		"southeastasia":      "SG",
		"swedencentral":      "SE",
		"switzerlandnorth":   "CH",
		"uaenorth":           "AE",
		"uksouth":            "GB",
		"westeurope":         "NL",
		"westus":             "US",
		"westus2":            "US",
	},
}

// LookupZone returns the zone registered under code. Matching is
// case-insensitive and ignores surrounding whitespace.
func LookupZone(code string) (Zone, bool) {
	z, ok := zoneIndex[strings.ToUpper(strings.TrimSpace(code))]
	return z, ok
}

// LookupCountry resolves a country to its grid zone. It accepts either an
// ISO 3166-1 alpha-2 code or the English country name, case-insensitively.
func LookupCountry(name string) (Zone, bool) {
	key := strings.TrimSpace(name)
	if z, ok := zoneIndex[strings.ToUpper(key)]; ok {
		return z, true
	}
	code, ok := countryIndex[strings.ToLower(key)]
	if !ok {
		return Zone{}, false
	}
	return zoneIndex[code], true
}

// LookupRegion resolves a cloud provider region ("aws", "gcp", or "azure")
// to its grid zone.
func LookupRegion(provider, region string) (Zone, bool) {
	regions, ok := providerRegions[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return Zone{}, false
	}
	code, ok := regions[strings.ToLower(strings.TrimSpace(region))]
	if !ok {
		return Zone{}, false
	}
	return zoneIndex[code], true
}

// Intensity returns the grid intensity for a provider region, falling back
// to WorldAverage when the region is unknown.
func Intensity(provider, region string) float64 {
	if z, ok := LookupRegion(provider, region); ok {
		return z.Intensity
	}
	return WorldAverage
}

// Zones returns every registered grid zone sorted by code.
func Zones() []Zone {
	out := make([]Zone, len(zones))
	copy(out, zones)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
