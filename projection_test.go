package neoconsole

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph"
	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph/graphtest"
)

var (
	alice = graph.Node{ID: "a", Labels: []string{"Person"}, Props: map[string]any{"name": "Alice"}}
	bob   = graph.Node{ID: "b", Labels: []string{"Person"}, Props: map[string]any{"name": "Bob"}}
	carol = graph.Node{ID: "c", Labels: []string{"Person"}, Props: map[string]any{"name": "Carol"}}
	knows = graph.Relationship{ID: "r1", StartID: "a", EndID: "b", Type: "KNOWS", Props: map[string]any{}}
	likes = graph.Relationship{ID: "r2", StartID: "b", EndID: "c", Type: "LIKES", Props: map[string]any{}}
)

func resultOf(cols []string, rs ...[]graph.Value) *graph.Result {
	return graphtest.NewResult(cols, rs...)
}

func TestProject_Nil(t *testing.T) {
	g := Project(nil)
	require.NotNil(t, g)
	assert.True(t, g.Empty())
}

func TestProject_DuplicateNode(t *testing.T) {
	g := Project(resultOf([]string{"n", "m"},
		[]graph.Value{alice, alice},
		[]graph.Value{alice, graph.Scalar{V: 1}},
	))

	require.Len(t, g.Nodes, 1)
	assert.True(t, g.Nodes["a"].Selected)
	assert.Empty(t, g.Relationships)
}

func TestProject_RelationshipOnly(t *testing.T) {
	g := Project(resultOf([]string{"r"}, []graph.Value{knows}))

	require.Len(t, g.Relationships, 1)
	assert.True(t, g.Relationships["r1"].Selected)
	assert.Equal(t, "a", g.Relationships["r1"].Source)
	assert.Equal(t, "b", g.Relationships["r1"].Target)

	require.Len(t, g.Nodes, 2)
	for _, id := range []string{"a", "b"} {
		assert.False(t, g.Nodes[id].Selected, id)
		assert.Nil(t, g.Nodes[id].Properties, id)
	}
}

func TestProject_OrMergeIsOrderIndependent(t *testing.T) {
	orders := map[string]*graph.Result{
		"node first":         resultOf([]string{"x"}, []graph.Value{alice}, []graph.Value{knows}),
		"relationship first": resultOf([]string{"x"}, []graph.Value{knows}, []graph.Value{alice}),
		"same row":           resultOf([]string{"r", "n"}, []graph.Value{knows, alice}),
	}
	for name, res := range orders {
		t.Run(name, func(t *testing.T) {
			g := Project(res)
			require.Len(t, g.Nodes, 2)
			assert.True(t, g.Nodes["a"].Selected)
			assert.Equal(t, alice.Props, g.Nodes["a"].Properties)
			assert.False(t, g.Nodes["b"].Selected)
			assert.True(t, g.Relationships["r1"].Selected)
		})
	}
}

func TestProject_Path(t *testing.T) {
	p := graph.Path{Nodes: []graph.Node{alice, bob, carol}, Relationships: []graph.Relationship{knows, likes}}
	g := Project(resultOf([]string{"p"}, []graph.Value{p}, []graph.Value{p}))

	assert.Len(t, g.Nodes, 3)
	assert.Len(t, g.Relationships, 2)
	for _, n := range g.Nodes {
		assert.True(t, n.Selected, n.ID)
		assert.NotNil(t, n.Properties, n.ID)
	}
	for _, r := range g.Relationships {
		assert.True(t, r.Selected, r.ID)
	}
}

func TestProject_List(t *testing.T) {
	g := Project(resultOf([]string{"xs"}, []graph.Value{
		graph.List{Items: []graph.Value{carol, graph.List{Items: []graph.Value{likes}}, graph.Scalar{V: "x"}}},
	}))

	assert.Len(t, g.Nodes, 2)
	assert.True(t, g.Nodes["c"].Selected)
	assert.False(t, g.Nodes["b"].Selected)
	assert.True(t, g.Relationships["r2"].Selected)
}

func TestProject_EndpointsAlwaysPresent(t *testing.T) {
	g := Project(resultOf([]string{"r", "s"}, []graph.Value{knows, likes}))
	for _, r := range g.Relationships {
		assert.Contains(t, g.Nodes, r.Source)
		assert.Contains(t, g.Nodes, r.Target)
	}
}

func TestHydrate(t *testing.T) {
	ctx := context.Background()
	e := graphtest.NewEngine()
	var a, b graph.Node
	var r graph.Relationship
	e.Seed(func(s *graphtest.State) {
		a = s.AddNode([]string{"Person"}, map[string]any{"name": "Alice"})
		b = s.AddNode([]string{"Person"}, map[string]any{"name": "Bob"})
		r, _ = s.AddRelationship(a.ID, b.ID, "KNOWS", nil)
	})

	g := Project(resultOf([]string{"r", "n"}, []graph.Value{r, a}))
	require.NoError(t, Hydrate(ctx, g, e))

	assert.Equal(t, map[string]any{"name": "Bob"}, g.Nodes[b.ID].Properties)
	assert.Equal(t, []string{"Person"}, g.Nodes[b.ID].Labels)
	assert.False(t, g.Nodes[b.ID].Selected)
	assert.True(t, g.Nodes[a.ID].Selected)
	assert.Len(t, e.CallsTo("NodesByID"), 1)
}

func TestHydrate_NoStubs(t *testing.T) {
	e := graphtest.NewEngine()
	g := Project(resultOf([]string{"n"}, []graph.Value{alice}))

	require.NoError(t, Hydrate(context.Background(), g, e))
	assert.Empty(t, e.Calls())
}

type failingReader struct{ graph.Reader }

func (failingReader) NodesByID(context.Context, []string) ([]graph.Node, error) {
	return nil, errors.New("unavailable")
}

func TestHydrate_Error(t *testing.T) {
	g := Project(resultOf([]string{"r"}, []graph.Value{knows}))
	assert.Error(t, Hydrate(context.Background(), g, failingReader{}))
}

func TestProject_ViewsDoNotShareResultData(t *testing.T) {
	n := graph.Node{ID: "n", Labels: []string{"Person"}, Props: map[string]any{"name": "Dan", "tags": []any{"x"}}}
	r := graph.Relationship{ID: "r", StartID: "n", EndID: "n", Type: "SELF", Props: map[string]any{"w": int64(1)}}
	g := Project(resultOf([]string{"n", "r"}, []graph.Value{n, r}))

	g.Nodes["n"].Labels[0] = "Changed"
	g.Nodes["n"].Properties["name"] = "Changed"
	g.Nodes["n"].Properties["tags"].([]any)[0] = "changed"
	g.Relationships["r"].Properties["w"] = int64(2)

	assert.Equal(t, []string{"Person"}, n.Labels)
	assert.Equal(t, "Dan", n.Props["name"])
	assert.Equal(t, []any{"x"}, n.Props["tags"])
	assert.Equal(t, int64(1), r.Props["w"])
}
