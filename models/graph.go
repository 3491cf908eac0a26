// Package models contains the data transfer objects handed to the presentation layer.
// The structs in this file represent a visualizable graph built from query results,
// serializable to the JSON shape graph frontends consume.
package models

import (
	"encoding/json"
	"maps"
	"slices"
)

// NodeView is a node of a VisualizationGraph.
// It is a domain-agnostic representation, capturing the essential components of any node:
// its unique element ID, its labels, its properties and whether the query selected it.
type NodeView struct {
	// ID is the engine's stable element identifier of the node.
	ID string `json:"id"`

	// Labels is a slice of strings containing all the labels attached to the node (e.g., ["User", "Person"]).
	Labels []string `json:"labels"`

	// Properties is a map containing the key-value properties of the node.
	// It is nil for a context endpoint whose properties have not been loaded.
	Properties map[string]any `json:"properties"`

	// Selected is true when the node was a direct result of the query and false when it
	// is only shown as context (for example as the endpoint of a selected relationship).
	Selected bool `json:"selected"`
}

// RelationshipView is a relationship (or edge) of a VisualizationGraph.
// It includes the relationship's unique ID, its type, its properties, and the
// element IDs of the source and target nodes it connects.
type RelationshipView struct {
	// ID is the engine's stable element identifier of the relationship.
	ID string `json:"id"`

	// Source is the ID of the node where the relationship starts.
	Source string `json:"source"`

	// Target is the ID of the node where the relationship ends.
	Target string `json:"target"`

	// Type is the relationship's type (e.g., "WROTE", "FOLLOWS").
	Type string `json:"type"`

	// Properties is a map containing the key-value properties of the relationship.
	Properties map[string]any `json:"properties"`

	// Selected is true when the relationship was a direct result of the query.
	Selected bool `json:"selected"`
}

// VisualizationGraph is the deduplicated graph projected from a query result.
// Both maps are keyed by element ID, so an element that appears in many result rows
// has exactly one entry. Every relationship's Source and Target are present in Nodes.
type VisualizationGraph struct {
	Nodes         map[string]*NodeView
	Relationships map[string]*RelationshipView
}

// NewVisualizationGraph returns an empty graph.
func NewVisualizationGraph() *VisualizationGraph {
	return &VisualizationGraph{
		Nodes:         make(map[string]*NodeView),
		Relationships: make(map[string]*RelationshipView),
	}
}

// Empty reports whether the graph has neither nodes nor relationships.
func (g *VisualizationGraph) Empty() bool {
	return len(g.Nodes) == 0 && len(g.Relationships) == 0
}

// SortedNodes returns the nodes ordered by ID.
func (g *VisualizationGraph) SortedNodes() []*NodeView {
	out := make([]*NodeView, 0, len(g.Nodes))
	for _, id := range slices.Sorted(maps.Keys(g.Nodes)) {
		out = append(out, g.Nodes[id])
	}
	return out
}

// SortedRelationships returns the relationships ordered by ID.
func (g *VisualizationGraph) SortedRelationships() []*RelationshipView {
	out := make([]*RelationshipView, 0, len(g.Relationships))
	for _, id := range slices.Sorted(maps.Keys(g.Relationships)) {
		out = append(out, g.Relationships[id])
	}
	return out
}

// MarshalJSON encodes the graph as {"nodes": [...], "links": [...]}, a standard
// format consumed by most frontend graph visualization libraries (e.g., D3.js).
// Entries are ordered by ID so the output is stable.
func (g *VisualizationGraph) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Nodes []*NodeView         `json:"nodes"`
		Links []*RelationshipView `json:"links"`
	}{
		Nodes: g.SortedNodes(),
		Links: g.SortedRelationships(),
	})
}
