package cypherscript

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph"
	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph/graphtest"
)

func TestEncode(t *testing.T) {
	nodes := []graph.Node{
		{ID: "b", Labels: []string{"Person"}, Props: map[string]any{"name": "Bob", "weight": 80.0}},
		{ID: "a", Props: map[string]any{}},
	}
	rels := []graph.Relationship{
		{ID: "r", StartID: "a", EndID: "b", Type: "KNOWS", Props: map[string]any{"since": int64(2010)}},
	}

	got, err := Encode(nodes, rels)
	require.NoError(t, err)
	assert.Equal(t, `CREATE (_0), (_1:Person {name: "Bob", weight: 80.0}), (_0)-[:KNOWS {since: 2010}]->(_1)`, got)
}

func TestEncode_Empty(t *testing.T) {
	got, err := Encode(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEncode_UnknownEndpoint(t *testing.T) {
	_, err := Encode([]graph.Node{{ID: "a"}}, []graph.Relationship{{ID: "r", StartID: "x", EndID: "a", Type: "T"}})
	assert.Error(t, err)
}

func TestIdentifier(t *testing.T) {
	tests := map[string]string{
		"Person":    "Person",
		"_private":  "_private",
		"v2":        "v2",
		"2fast":     "`2fast`",
		"Has Space": "`Has Space`",
		"a`b":       "`a``b`",
		"":          "``",
	}
	for in, want := range tests {
		assert.Equal(t, want, Identifier(in), in)
	}
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		in      any
		want    string
		wantErr bool
	}{
		{in: nil, want: "null"},
		{in: "it's \"x\"\n", want: `"it's \"x\"\n"`},
		{in: true, want: "true"},
		{in: 7, want: "7"},
		{in: int64(-3), want: "-3"},
		{in: 2.0, want: "2.0"},
		{in: 0.5, want: "0.5"},
		{in: []any{int64(1), "a"}, want: `[1, "a"]`},
		{in: []string{"x", "y"}, want: `["x", "y"]`},
		{in: map[string]any{}, wantErr: true},
	}
	for _, tt := range tests {
		got, err := Literal(tt.in)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestCodec_Render(t *testing.T) {
	e := graphtest.NewEngine()
	e.Seed(func(s *graphtest.State) {
		a := s.AddNode([]string{"Person"}, map[string]any{"name": "Alice"})
		b := s.AddNode([]string{"Person"}, map[string]any{"name": "Bob"})
		_, _ = s.AddRelationship(a.ID, b.ID, "KNOWS", nil)
	})

	got, err := Codec{}.Render(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, `CREATE (_0:Person {name: "Alice"}), (_1:Person {name: "Bob"}), (_0)-[:KNOWS]->(_1)`, got)
}
