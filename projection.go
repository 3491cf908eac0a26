package neoconsole

import (
	"context"
	"slices"

	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph"
	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/models"
)

// Project maps a query result into a deduplicated VisualizationGraph.
//
// Nodes and relationships returned by the query are marked selected. The endpoints of
// a selected relationship are added as context (Selected false) unless the query also
// returned them. Paths contribute each element in path order, lists contribute each
// item, and scalar values contribute nothing.
//
// An element that appears in many rows or columns has exactly one entry, and its
// Selected flag is the OR over all occurrences, so the result does not depend on the
// order in which rows are processed.
//
// Parameters:
//   - res: A query result. A nil result yields an empty graph.
//
// Returns:
//
//	A graph whose every relationship has both endpoints in Nodes. Endpoints the query
//	did not return are stubs with nil Properties; see Hydrate.
func Project(res *graph.Result) *models.VisualizationGraph {
	g := models.NewVisualizationGraph()
	if res == nil {
		return g
	}
	for _, rec := range res.Records {
		for _, v := range rec.Values {
			project(g, v)
		}
	}
	return g
}

func project(g *models.VisualizationGraph, v graph.Value) {
	switch v := v.(type) {
	case graph.Node:
		mergeNode(g, v)
	case graph.Relationship:
		mergeRelationship(g, v)
	case graph.Path:
		for _, e := range v.Elements() {
			project(g, e)
		}
	case graph.List:
		for _, item := range v.Items {
			project(g, item)
		}
	case graph.Scalar:
		// Scalars are not part of the graph.
	}
}

func mergeNode(g *models.VisualizationGraph, n graph.Node) {
	view, ok := g.Nodes[n.ID]
	if !ok {
		view = &models.NodeView{ID: n.ID}
		g.Nodes[n.ID] = view
	}
	view.Labels = nonNilLabels(slices.Clone(n.Labels))
	view.Properties = nonNilProps(cloneProps(n.Props))
	view.Selected = true
}

func mergeRelationship(g *models.VisualizationGraph, r graph.Relationship) {
	view, ok := g.Relationships[r.ID]
	if !ok {
		view = &models.RelationshipView{ID: r.ID}
		g.Relationships[r.ID] = view
	}
	view.Source = r.StartID
	view.Target = r.EndID
	view.Type = r.Type
	view.Properties = nonNilProps(cloneProps(r.Props))
	view.Selected = true

	addEndpoint(g, r.StartID)
	addEndpoint(g, r.EndID)
}

// addEndpoint adds a context stub for id unless the node is already present.
func addEndpoint(g *models.VisualizationGraph, id string) {
	if _, ok := g.Nodes[id]; !ok {
		g.Nodes[id] = &models.NodeView{ID: id}
	}
}

func nonNilLabels(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}

func nonNilProps(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}

// cloneProps copies p together with any nested lists or maps, so views never share
// storage with the result they came from.
func cloneProps(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v any) any {
	switch v := v.(type) {
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneAny(e)
		}
		return out
	case []string:
		return slices.Clone(v)
	case map[string]any:
		return cloneProps(v)
	default:
		return v
	}
}

// Hydrate fills in the labels and properties of the endpoint stubs in g with a single
// NodesByID lookup. Selection flags are left unchanged. Stubs whose node no longer
// exists stay stubs.
func Hydrate(ctx context.Context, g *models.VisualizationGraph, r graph.Reader) error {
	var stubs []string
	for id, n := range g.Nodes {
		if n.Properties == nil {
			stubs = append(stubs, id)
		}
	}
	if len(stubs) == 0 {
		return nil
	}
	slices.Sort(stubs)

	nodes, err := r.NodesByID(ctx, stubs)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		view, ok := g.Nodes[n.ID]
		if !ok || view.Properties != nil {
			continue
		}
		view.Labels = nonNilLabels(slices.Clone(n.Labels))
		view.Properties = nonNilProps(cloneProps(n.Props))
	}
	return nil
}
