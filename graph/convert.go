package graph

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// convertResult converts driver records and summary into a Result.
func convertResult(records []*neo4j.Record, summary neo4j.ResultSummary) *Result {
	result := &Result{
		Columns: []string{},
		Records: make([]Record, 0, len(records)),
	}
	if len(records) > 0 {
		result.Columns = records[0].Keys
	}

	for _, rec := range records {
		values := make([]Value, len(rec.Values))
		for i, v := range rec.Values {
			values[i] = convertValue(v)
		}
		result.Records = append(result.Records, Record{Keys: rec.Keys, Values: values})
	}

	if summary != nil && summary.Counters() != nil {
		c := summary.Counters()
		result.Counters = Counters{
			NodesCreated:         c.NodesCreated(),
			NodesDeleted:         c.NodesDeleted(),
			RelationshipsCreated: c.RelationshipsCreated(),
			RelationshipsDeleted: c.RelationshipsDeleted(),
			PropertiesSet:        c.PropertiesSet(),
			LabelsAdded:          c.LabelsAdded(),
		}
	}
	return result
}

// convertValue maps a driver value onto the closed Value set. Lists are converted
// element-wise so graph elements nested in collect(...) results stay typed.
func convertValue(v any) Value {
	switch x := v.(type) {
	case dbtype.Node:
		return convertNode(x)
	case dbtype.Relationship:
		return convertRelationship(x)
	case dbtype.Path:
		p := Path{
			Nodes:         make([]Node, len(x.Nodes)),
			Relationships: make([]Relationship, len(x.Relationships)),
		}
		for i, n := range x.Nodes {
			p.Nodes[i] = convertNode(n)
		}
		for i, r := range x.Relationships {
			p.Relationships[i] = convertRelationship(r)
		}
		return p
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = convertValue(item)
		}
		return List{Items: items}
	default:
		return Scalar{V: v}
	}
}

func convertNode(n dbtype.Node) Node {
	return Node{ID: n.ElementId, Labels: n.Labels, Props: n.Props}
}

func convertRelationship(r dbtype.Relationship) Relationship {
	return Relationship{
		ID:      r.ElementId,
		StartID: r.StartElementId,
		EndID:   r.EndElementId,
		Type:    r.Type,
		Props:   r.Props,
	}
}
