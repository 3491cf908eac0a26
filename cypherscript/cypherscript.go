// Package cypherscript renders a graph as a single Cypher CREATE statement that
// recreates it on an empty database.
package cypherscript

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph"
)

// Codec exports graphs as Cypher.
type Codec struct{}

// Render reads the current graph from r and encodes it.
func (Codec) Render(ctx context.Context, r graph.Reader) (string, error) {
	nodes, rels, err := r.Scan(ctx)
	if err != nil {
		return "", err
	}
	return Encode(nodes, rels)
}

// Encode returns a statement of the form
//
//	CREATE (_0:Person {name: "Alice"}), (_1), (_0)-[:KNOWS {since: 2010}]->(_1)
//
// with nodes and relationships in ID order. An empty graph encodes as "".
func Encode(nodes []graph.Node, rels []graph.Relationship) (string, error) {
	if len(nodes) == 0 && len(rels) == 0 {
		return "", nil
	}
	nodes = slices.Clone(nodes)
	rels = slices.Clone(rels)
	slices.SortFunc(nodes, func(a, b graph.Node) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(rels, func(a, b graph.Relationship) int { return strings.Compare(a.ID, b.ID) })

	parts := make([]string, 0, len(nodes)+len(rels))
	names := make(map[string]string, len(nodes))
	for i, n := range nodes {
		name := "_" + strconv.Itoa(i)
		names[n.ID] = name

		var b strings.Builder
		b.WriteString("(" + name)
		for _, l := range n.Labels {
			b.WriteString(":" + Identifier(l))
		}
		if err := writeProps(&b, n.Props); err != nil {
			return "", fmt.Errorf("cypherscript: node %s: %w", n.ID, err)
		}
		b.WriteString(")")
		parts = append(parts, b.String())
	}

	for _, r := range rels {
		start, ok := names[r.StartID]
		if !ok {
			return "", fmt.Errorf("cypherscript: relationship %s starts at unknown node %s", r.ID, r.StartID)
		}
		end, ok := names[r.EndID]
		if !ok {
			return "", fmt.Errorf("cypherscript: relationship %s ends at unknown node %s", r.ID, r.EndID)
		}

		var b strings.Builder
		b.WriteString("(" + start + ")-[:" + Identifier(r.Type))
		if err := writeProps(&b, r.Props); err != nil {
			return "", fmt.Errorf("cypherscript: relationship %s: %w", r.ID, err)
		}
		b.WriteString("]->(" + end + ")")
		parts = append(parts, b.String())
	}

	return "CREATE " + strings.Join(parts, ", "), nil
}

func writeProps(b *strings.Builder, props map[string]any) error {
	if len(props) == 0 {
		return nil
	}
	b.WriteString(" {")
	for i, k := range slices.Sorted(maps.Keys(props)) {
		lit, err := Literal(props[k])
		if err != nil {
			return fmt.Errorf("property %q: %w", k, err)
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(Identifier(k) + ": " + lit)
	}
	b.WriteString("}")
	return nil
}

// Identifier returns s as a Cypher identifier, backtick-quoted unless it is a plain
// word that does not start with a digit.
func Identifier(s string) string {
	if s != "" && isPlain(s) {
		return s
	}
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func isPlain(s string) bool {
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Literal renders a property value as a Cypher literal.
func Literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		return quote(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int8, int16, int32, int64, uint8, uint16, uint32:
		return fmt.Sprint(x), nil
	case float32:
		return Literal(float64(x))
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return "", fmt.Errorf("non-finite number %v", x)
		}
		s := strconv.FormatFloat(x, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s, nil
	case []any:
		items := make([]string, len(x))
		for i, item := range x {
			lit, err := Literal(item)
			if err != nil {
				return "", err
			}
			items[i] = lit
		}
		return "[" + strings.Join(items, ", ") + "]", nil
	case []string:
		items := make([]string, len(x))
		for i, item := range x {
			items[i] = quote(item)
		}
		return "[" + strings.Join(items, ", ") + "]", nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}
