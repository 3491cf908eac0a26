// Package geoff reads and writes Geoff, a line-oriented text format for subgraphs.
//
// A document is a sequence of lines. Blank lines and lines starting with '#' are
// ignored. Every other line declares either a node or a relationship:
//
//	(A) {"name": "Alice"}
//	(B:Person:Admin) {"name": "Bob", "age": 42}
//	(A)-[:KNOWS]->(B) {"since": 2010}
//	(A)-[r1:LIKES]->(B)
//
// Node names are local to the document and only serve to connect relationships;
// relationships may reference nodes declared further down. Property maps are JSON
// objects whose values are strings, numbers, booleans or arrays of those. Integral
// numbers decode to int64 and all others to float64.
package geoff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph"
)

// NodeDef declares a node.
type NodeDef struct {
	Name   string
	Labels []string
	Props  map[string]any
	Line   int
}

// RelationshipDef declares a relationship between two named nodes.
type RelationshipDef struct {
	// Name is optional.
	Name  string
	Start string
	End   string
	Type  string
	Props map[string]any
	Line  int
}

// Subgraph is a parsed document.
type Subgraph struct {
	Nodes         []NodeDef
	Relationships []RelationshipDef
}

// ErrNilSubgraph is returned when a nil *Subgraph is validated or applied.
var ErrNilSubgraph = errors.New("geoff: nil subgraph")

// SyntaxError reports a line that is not valid Geoff.
type SyntaxError struct {
	Line int
	Text string
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("geoff: syntax error on line %d: %s: %q", e.Line, e.Msg, e.Text)
}

// StructuralError reports a document whose lines are valid but do not describe a
// consistent subgraph, e.g. a relationship to an undeclared node.
type StructuralError struct {
	Line int
	Name string
	Msg  string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("geoff: invalid subgraph on line %d: %s %q", e.Line, e.Msg, e.Name)
}

// String renders sg as a document. Property maps that cannot be encoded are
// written with %v.
func (sg *Subgraph) String() string {
	if sg == nil {
		return ""
	}
	var buf bytes.Buffer
	props := func(p map[string]any) {
		if err := writeProps(&buf, p); err != nil {
			fmt.Fprintf(&buf, " %v", p)
		}
	}
	for _, n := range sg.Nodes {
		buf.WriteString("(" + n.Name)
		for _, l := range n.Labels {
			buf.WriteString(":" + l)
		}
		buf.WriteString(")")
		props(n.Props)
		buf.WriteString("\n")
	}
	for _, r := range sg.Relationships {
		fmt.Fprintf(&buf, "(%s)-[%s:%s]->(%s)", r.Start, r.Name, r.Type, r.End)
		props(r.Props)
		buf.WriteString("\n")
	}
	return buf.String()
}

// Validate checks that names are unique and every relationship endpoint is declared.
func (sg *Subgraph) Validate() error {
	if sg == nil {
		return ErrNilSubgraph
	}
	nodes := make(map[string]bool, len(sg.Nodes))
	for _, n := range sg.Nodes {
		if nodes[n.Name] {
			return &StructuralError{Line: n.Line, Name: n.Name, Msg: "duplicate node name"}
		}
		nodes[n.Name] = true
	}
	rels := make(map[string]bool)
	for _, r := range sg.Relationships {
		if r.Name != "" {
			if rels[r.Name] || nodes[r.Name] {
				return &StructuralError{Line: r.Line, Name: r.Name, Msg: "duplicate relationship name"}
			}
			rels[r.Name] = true
		}
		if !nodes[r.Start] {
			return &StructuralError{Line: r.Line, Name: r.Start, Msg: "relationship starts at undeclared node"}
		}
		if !nodes[r.End] {
			return &StructuralError{Line: r.Line, Name: r.End, Msg: "relationship ends at undeclared node"}
		}
	}
	return nil
}

// Parse reads a document. It returns a *SyntaxError for the first malformed line and
// a *StructuralError when the lines do not form a valid subgraph.
func Parse(text string) (*Subgraph, error) {
	sg := &Subgraph{}
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lineNo := i + 1

		if m := relLine.FindStringSubmatch(line); m != nil {
			props, err := decodeProps(m[5])
			if err != nil {
				return nil, &SyntaxError{Line: lineNo, Text: line, Msg: err.Error()}
			}
			sg.Relationships = append(sg.Relationships, RelationshipDef{
				Name:  m[2],
				Start: m[1],
				Type:  m[3],
				End:   m[4],
				Props: props,
				Line:  lineNo,
			})
			continue
		}
		if m := nodeLine.FindStringSubmatch(line); m != nil {
			props, err := decodeProps(m[3])
			if err != nil {
				return nil, &SyntaxError{Line: lineNo, Text: line, Msg: err.Error()}
			}
			var labels []string
			if m[2] != "" {
				labels = strings.Split(strings.TrimPrefix(m[2], ":"), ":")
			}
			sg.Nodes = append(sg.Nodes, NodeDef{Name: m[1], Labels: labels, Props: props, Line: lineNo})
			continue
		}
		return nil, &SyntaxError{Line: lineNo, Text: line, Msg: "expected a node or relationship declaration"}
	}

	if err := sg.Validate(); err != nil {
		return nil, err
	}
	return sg, nil
}

// Apply writes sg through w, nodes first, and returns the write counters.
// It stops at the first failing write; callers wrap it in a transaction to keep
// the import all-or-nothing.
func Apply(ctx context.Context, sg *Subgraph, w graph.Writer) (graph.Counters, error) {
	var c graph.Counters
	if err := sg.Validate(); err != nil {
		return c, err
	}

	ids := make(map[string]string, len(sg.Nodes))
	for _, n := range sg.Nodes {
		created, err := w.CreateNode(ctx, n.Labels, n.Props)
		if err != nil {
			return c, fmt.Errorf("create node %q (line %d): %w", n.Name, n.Line, err)
		}
		ids[n.Name] = created.ID
		c.NodesCreated++
		c.LabelsAdded += len(n.Labels)
		c.PropertiesSet += len(n.Props)
	}
	for _, r := range sg.Relationships {
		if _, err := w.CreateRelationship(ctx, ids[r.Start], ids[r.End], r.Type, r.Props); err != nil {
			return c, fmt.Errorf("create relationship %s->%s (line %d): %w", r.Start, r.End, r.Line, err)
		}
		c.RelationshipsCreated++
		c.PropertiesSet += len(r.Props)
	}
	return c, nil
}

// Codec implements text import and export in the Geoff format.
type Codec struct{}

// ParseAndApply parses text and applies it through w.
func (Codec) ParseAndApply(ctx context.Context, text string, w graph.Writer) (graph.Counters, error) {
	sg, err := Parse(text)
	if err != nil {
		return graph.Counters{}, err
	}
	return Apply(ctx, sg, w)
}

// Render reads the current graph from r and encodes it.
func (Codec) Render(ctx context.Context, r graph.Reader) (string, error) {
	nodes, rels, err := r.Scan(ctx)
	if err != nil {
		return "", err
	}
	return Encode(nodes, rels)
}
