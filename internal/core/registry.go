package core

import (
	"fmt"
	"sort"
	"sync"

	"carbonscope/pkg/domain"
)

// SchemaRegistry accumulates display schemas and threshold sets contributed
// by configuration and installed plugins. Schemas are create-only per tool
// name; thresholds are validated and last-write-wins so plugins can refine
// configured defaults. Safe for concurrent use.
type SchemaRegistry struct {
	mu         sync.RWMutex
	schemas    map[string]domain.ToolSchema
	thresholds map[string]domain.ThresholdSet
}

// NewSchemaRegistry constructs an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{
		schemas:    make(map[string]domain.ToolSchema),
		thresholds: make(map[string]domain.ThresholdSet),
	}
}

// RegisterSchema adds a tool display schema. Empty and duplicate tool names
// are rejected.
func (r *SchemaRegistry) RegisterSchema(schema domain.ToolSchema) error {
	if schema.Name == "" {
		return fmt.Errorf("tool schema name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemas[schema.Name]; ok {
		return fmt.Errorf("tool schema %s already registered", schema.Name)
	}
	r.schemas[schema.Name] = schema
	return nil
}

// RegisterThresholds associates a validated threshold set with metric.
func (r *SchemaRegistry) RegisterThresholds(metric string, set domain.ThresholdSet) error {
	if metric == "" {
		return fmt.Errorf("threshold metric must not be empty")
	}
	if err := set.Validate(); err != nil {
		return fmt.Errorf("thresholds for %s: %w", metric, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.thresholds[metric] = set
	return nil
}

// Schema returns the display schema registered for toolName.
func (r *SchemaRegistry) Schema(toolName string) (domain.ToolSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schema, ok := r.schemas[toolName]
	return schema, ok
}

// Schemas lists all registered schemas sorted by tool name.
func (r *SchemaRegistry) Schemas() []domain.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ToolSchema, 0, len(r.schemas))
	for _, schema := range r.schemas {
		out = append(out, schema)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Thresholds returns a copy of the registered threshold sets keyed by
// metric.
func (r *SchemaRegistry) Thresholds() map[string]domain.ThresholdSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domain.ThresholdSet, len(r.thresholds))
	for metric, set := range r.thresholds {
		out[metric] = set
	}
	return out
}
