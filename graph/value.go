// Package graph defines the value model returned by graph queries and the engine
// interfaces the console core depends on, together with a Neo4j implementation.
//
// Query results are a closed set of value kinds: Scalar, Node, Relationship, Path and
// List. Consumers switch over the kinds explicitly instead of inspecting untyped
// driver values, which keeps projection and flattening code exhaustive.
package graph

// Value is a single cell of a query result row. The set of implementations is closed:
// Scalar, Node, Relationship, Path and List.
type Value interface {
	isValue()
}

// Scalar wraps any non-graph value (numbers, strings, booleans, maps, temporal values, nil).
type Scalar struct {
	V any
}

// Node is a graph node as returned by the engine.
type Node struct {
	// ID is the engine's stable element identifier (e.g. "4:abc123:0" for Neo4j).
	ID string

	// Labels attached to the node.
	Labels []string

	// Props holds the node properties.
	Props map[string]any
}

// Relationship is a directed graph relationship as returned by the engine.
type Relationship struct {
	// ID is the engine's stable element identifier.
	ID string

	// StartID and EndID are the element identifiers of the endpoint nodes.
	StartID string
	EndID   string

	// Type is the relationship type (e.g. "KNOWS").
	Type string

	// Props holds the relationship properties.
	Props map[string]any
}

// Path is an alternating sequence of nodes and relationships.
// len(Nodes) == len(Relationships)+1 for every non-empty path.
type Path struct {
	Nodes         []Node
	Relationships []Relationship
}

// List is a collection value that may itself contain graph elements,
// e.g. the result of collect(n).
type List struct {
	Items []Value
}

func (Scalar) isValue()       {}
func (Node) isValue()         {}
func (Relationship) isValue() {}
func (Path) isValue()         {}
func (List) isValue()         {}

// Elements returns the path elements in path order: n0, r0, n1, r1, ..., nk.
func (p Path) Elements() []Value {
	out := make([]Value, 0, len(p.Nodes)+len(p.Relationships))
	for i, n := range p.Nodes {
		out = append(out, n)
		if i < len(p.Relationships) {
			out = append(out, p.Relationships[i])
		}
	}
	return out
}

// Record is one row of a query result.
type Record struct {
	Keys   []string
	Values []Value
}

// Get returns the value of the column named key.
func (r Record) Get(key string) (Value, bool) {
	for i, k := range r.Keys {
		if k == key && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Counters reports the writes performed by a query.
type Counters struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
	LabelsAdded          int
}

// ContainsUpdates reports whether any counter is non-zero.
func (c Counters) ContainsUpdates() bool {
	return c != Counters{}
}

// Add returns the element-wise sum of c and o.
func (c Counters) Add(o Counters) Counters {
	return Counters{
		NodesCreated:         c.NodesCreated + o.NodesCreated,
		NodesDeleted:         c.NodesDeleted + o.NodesDeleted,
		RelationshipsCreated: c.RelationshipsCreated + o.RelationshipsCreated,
		RelationshipsDeleted: c.RelationshipsDeleted + o.RelationshipsDeleted,
		PropertiesSet:        c.PropertiesSet + o.PropertiesSet,
		LabelsAdded:          c.LabelsAdded + o.LabelsAdded,
	}
}

// Result is the fully buffered outcome of a query. It is not modified after the
// engine returns it.
type Result struct {
	Columns  []string
	Records  []Record
	Counters Counters
}

// Empty reports whether the result holds no rows.
func (r *Result) Empty() bool {
	return r == nil || len(r.Records) == 0
}
