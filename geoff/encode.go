package geoff

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph"
)

var (
	nodeLine = regexp.MustCompile(`^\((\w+)((?::\w+)*)\)\s*(\{.*\})?$`)
	relLine  = regexp.MustCompile(`^\((\w+)\)-\[(\w*):(\w+)\]->\((\w+)\)\s*(\{.*\})?$`)
	ident    = regexp.MustCompile(`^\w+$`)
)

// Encode renders nodes and relationships as a document. Nodes are named _0, _1, ...
// in ID order and relationships follow in ID order, so equal graphs encode equally.
func Encode(nodes []graph.Node, rels []graph.Relationship) (string, error) {
	nodes = slices.Clone(nodes)
	rels = slices.Clone(rels)
	slices.SortFunc(nodes, func(a, b graph.Node) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(rels, func(a, b graph.Relationship) int { return strings.Compare(a.ID, b.ID) })

	var buf bytes.Buffer
	names := make(map[string]string, len(nodes))
	for i, n := range nodes {
		name := "_" + strconv.Itoa(i)
		names[n.ID] = name

		buf.WriteString("(" + name)
		for _, l := range n.Labels {
			if !ident.MatchString(l) {
				return "", fmt.Errorf("geoff: label %q of node %s cannot be encoded", l, n.ID)
			}
			buf.WriteString(":" + l)
		}
		buf.WriteString(")")
		if err := writeProps(&buf, n.Props); err != nil {
			return "", fmt.Errorf("geoff: node %s: %w", n.ID, err)
		}
		buf.WriteString("\n")
	}

	for _, r := range rels {
		start, ok := names[r.StartID]
		if !ok {
			return "", fmt.Errorf("geoff: relationship %s starts at unknown node %s", r.ID, r.StartID)
		}
		end, ok := names[r.EndID]
		if !ok {
			return "", fmt.Errorf("geoff: relationship %s ends at unknown node %s", r.ID, r.EndID)
		}
		if !ident.MatchString(r.Type) {
			return "", fmt.Errorf("geoff: relationship type %q cannot be encoded", r.Type)
		}
		fmt.Fprintf(&buf, "(%s)-[:%s]->(%s)", start, r.Type, end)
		if err := writeProps(&buf, r.Props); err != nil {
			return "", fmt.Errorf("geoff: relationship %s: %w", r.ID, err)
		}
		buf.WriteString("\n")
	}
	return buf.String(), nil
}

func writeProps(buf *bytes.Buffer, props map[string]any) error {
	if len(props) == 0 {
		return nil
	}
	enc := make(map[string]any, len(props))
	for k, v := range props {
		ev, err := encodeValue(v)
		if err != nil {
			return fmt.Errorf("property %q: %w", k, err)
		}
		enc[k] = ev
	}
	data, err := json.Marshal(enc)
	if err != nil {
		return err
	}
	buf.WriteString(" ")
	buf.Write(data)
	return nil
}

// encodeValue keeps integral floats recognisable as floats ("2.0", not "2") so that
// decoding restores the original numeric kind.
func encodeValue(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return nil, fmt.Errorf("non-finite number %v", x)
		}
		s := strconv.FormatFloat(x, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return json.Number(s), nil
	case float32:
		return encodeValue(float64(x))
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			ev, err := encodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case map[string]any:
		return nil, errors.New("map values are not supported")
	default:
		return v, nil
	}
}

// decodeProps parses a JSON property object. An empty string yields nil.
func decodeProps(text string) (map[string]any, error) {
	if text == "" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid property map: %v", err)
	}
	if dec.More() {
		return nil, errors.New("invalid property map: trailing data")
	}

	props := make(map[string]any, len(raw))
	for k, v := range raw {
		pv, err := decodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %v", k, err)
		}
		props[k] = pv
	}
	return props, nil
}

func decodeValue(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		s := x.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := x.Int64(); err == nil {
				return i, nil
			}
		}
		return x.Float64()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			if _, ok := item.([]any); ok {
				return nil, errors.New("nested arrays are not supported")
			}
			dv, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = dv
		}
		return out, nil
	case map[string]any:
		return nil, errors.New("map values are not supported")
	case nil:
		return nil, errors.New("null values are not supported")
	default:
		return v, nil
	}
}
