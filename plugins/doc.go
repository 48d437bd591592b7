// Package plugins hosts the built-in assessment tool integrations as
// subpackages. It intentionally contains no production runtime code itself;
// this file exists to satisfy tooling (go vet, import linters) for the
// architectural guard test that lives alongside it.
//
// Plugin packages register display schemas and threshold overrides through
// the stable facade in pkg/schemaapi and must not import the internal domain
// model directly. pkg/carbon is a public lookup table and is fair game for
// plugins that annotate payloads with grid intensities.
package plugins
