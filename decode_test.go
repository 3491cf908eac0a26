package neoconsole

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph"
	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph/graphtest"
)

type person struct {
	ID     string   `neo4j:"id"`
	Labels []string `neo4j:"labels"`
	Name   string   `neo4j:"property:name"`
	Age    int      `neo4j:"property:age"`
	Tags   []string `neo4j:"property:tags"`
	Score  float64  `neo4j:"property:score"`
	Ignore string
}

type friendship struct {
	ID    string `neo4j:"id"`
	Type  string `neo4j:"type"`
	Since int64  `neo4j:"property:since"`
}

func TestDecodeNode(t *testing.T) {
	n := graph.Node{
		ID:     "n1",
		Labels: []string{"Person"},
		Props: map[string]any{
			"name":  "Alice",
			"age":   int64(30),
			"tags":  []any{"a", "b"},
			"score": int64(7),
			"other": true,
		},
	}

	p, err := DecodeNode[person](n)
	require.NoError(t, err)
	assert.Equal(t, person{ID: "n1", Labels: []string{"Person"}, Name: "Alice", Age: 30, Tags: []string{"a", "b"}, Score: 7}, p)
}

func TestDecodeNode_MissingAndMismatched(t *testing.T) {
	p, err := DecodeNode[person](graph.Node{ID: "n1"})
	require.NoError(t, err)
	assert.Equal(t, "n1", p.ID)
	assert.Zero(t, p.Name)

	_, err = DecodeNode[person](graph.Node{ID: "n1", Props: map[string]any{"name": int64(5)}})
	assert.Error(t, err, "integers are not silently turned into strings")

	_, err = DecodeNode[int](graph.Node{})
	assert.Error(t, err)

	type badTag struct {
		X string `neo4j:"primary"`
	}
	_, err = DecodeNode[badTag](graph.Node{})
	assert.Error(t, err)
}

func TestDecodeColumn(t *testing.T) {
	a := graph.Node{ID: "a", Props: map[string]any{"name": "Alice"}}
	b := graph.Node{ID: "b", Props: map[string]any{"name": "Bob"}}
	r := graph.Relationship{ID: "r", Type: "KNOWS", Props: map[string]any{"since": int64(2010)}}
	res := graphtest.NewResult([]string{"n", "r", "x"},
		[]graph.Value{a, r, graph.Scalar{V: 1}},
		[]graph.Value{b, r, graph.Scalar{V: 2}},
	)

	people, err := DecodeColumn[person](res, "n")
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, "Bob", people[1].Name)

	rels, err := DecodeColumn[friendship](res, "r")
	require.NoError(t, err)
	assert.Equal(t, friendship{ID: "r", Type: "KNOWS", Since: 2010}, rels[0])

	_, err = DecodeColumn[person](res, "x")
	assert.Error(t, err)
	_, err = DecodeColumn[person](res, "missing")
	assert.Error(t, err)

	none, err := DecodeColumn[person](nil, "n")
	require.NoError(t, err)
	assert.Empty(t, none)
}
