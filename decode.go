package neoconsole

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph"
)

// entityMetadata holds the parsed `neo4j` tag information for a specific struct type.
type entityMetadata struct {
	// IDField receives the element ID.
	IDField string
	// LabelsField receives the node labels ([]string).
	LabelsField string
	// TypeField receives the relationship type.
	TypeField string
	// Mappings maps struct field names to their corresponding property names.
	Mappings map[string]string
}

// metaCache stores parsed entityMetadata per reflect.Type to avoid repeated reflection.
var metaCache sync.Map

// parseTagsFromType inspects a struct type and extracts its `neo4j` tags:
//
//	ID     string   `neo4j:"id"`
//	Labels []string `neo4j:"labels"`
//	Type   string   `neo4j:"type"`
//	Name   string   `neo4j:"property:name"`
//
// Untagged fields are ignored.
func parseTagsFromType(typ reflect.Type) (*entityMetadata, error) {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type %s is not a struct", typ)
	}
	if cached, ok := metaCache.Load(typ); ok {
		return cached.(*entityMetadata), nil
	}

	meta := &entityMetadata{Mappings: make(map[string]string)}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("neo4j")
		if tag == "" || !field.IsExported() {
			continue
		}

		for _, part := range strings.Split(tag, ",") {
			switch {
			case part == "id":
				meta.IDField = field.Name
			case part == "labels":
				meta.LabelsField = field.Name
			case part == "type":
				meta.TypeField = field.Name
			case strings.HasPrefix(part, "property:"):
				prop := strings.TrimPrefix(part, "property:")
				if prop == "" {
					return nil, fmt.Errorf("field %s has an empty property name", field.Name)
				}
				meta.Mappings[field.Name] = prop
			default:
				return nil, fmt.Errorf("field %s: unknown neo4j tag component %q", field.Name, part)
			}
		}
	}

	metaCache.Store(typ, meta)
	return meta, nil
}

// DecodeNode populates a new T from a node, using T's `neo4j` struct tags.
// Missing properties leave the field at its zero value.
func DecodeNode[T any](n graph.Node) (T, error) {
	var out T
	meta, err := parseTagsFromType(reflect.TypeOf(out))
	if err != nil {
		return out, err
	}
	val := reflect.ValueOf(&out).Elem()
	if err := setField(val, meta.IDField, n.ID); err != nil {
		return out, err
	}
	if err := setField(val, meta.LabelsField, n.Labels); err != nil {
		return out, err
	}
	return out, mapProps(val, meta, n.Props)
}

// DecodeRelationship populates a new T from a relationship, using T's `neo4j` tags.
func DecodeRelationship[T any](r graph.Relationship) (T, error) {
	var out T
	meta, err := parseTagsFromType(reflect.TypeOf(out))
	if err != nil {
		return out, err
	}
	val := reflect.ValueOf(&out).Elem()
	if err := setField(val, meta.IDField, r.ID); err != nil {
		return out, err
	}
	if err := setField(val, meta.TypeField, r.Type); err != nil {
		return out, err
	}
	return out, mapProps(val, meta, r.Props)
}

// DecodeColumn decodes the named column of every record. The column must hold nodes
// or relationships.
func DecodeColumn[T any](res *graph.Result, column string) ([]T, error) {
	if res == nil {
		return nil, nil
	}
	out := make([]T, 0, len(res.Records))
	for i, rec := range res.Records {
		v, ok := rec.Get(column)
		if !ok {
			return nil, fmt.Errorf("record %d has no column %q", i, column)
		}
		var (
			item T
			err  error
		)
		switch v := v.(type) {
		case graph.Node:
			item, err = DecodeNode[T](v)
		case graph.Relationship:
			item, err = DecodeRelationship[T](v)
		default:
			err = fmt.Errorf("column %q holds %T, not a node or relationship", column, v)
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, item)
	}
	return out, nil
}

func mapProps(val reflect.Value, meta *entityMetadata, props map[string]any) error {
	for fieldName, propName := range meta.Mappings {
		propValue, ok := props[propName]
		if !ok || propValue == nil {
			continue
		}
		if err := setField(val, fieldName, propValue); err != nil {
			return err
		}
	}
	return nil
}

// setField assigns v to the named field, converting numeric kinds and []any slices
// element by element. An empty name is a no-op.
func setField(val reflect.Value, name string, v any) error {
	if name == "" {
		return nil
	}
	field := val.FieldByName(name)
	if !field.IsValid() || !field.CanSet() {
		return nil
	}
	rv, err := convertTo(reflect.ValueOf(v), field.Type())
	if err != nil {
		return fmt.Errorf("field %s: %w", name, err)
	}
	field.Set(rv)
	return nil
}

func convertTo(v reflect.Value, t reflect.Type) (reflect.Value, error) {
	switch {
	case v.Type().AssignableTo(t):
		return v, nil
	case t.Kind() == reflect.Slice && v.Kind() == reflect.Slice:
		out := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			elem := v.Index(i)
			if elem.Kind() == reflect.Interface {
				elem = elem.Elem()
			}
			if !elem.IsValid() {
				return reflect.Value{}, fmt.Errorf("nil element at index %d", i)
			}
			ce, err := convertTo(elem, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(ce)
		}
		return out, nil
	case isNumeric(v.Kind()) && isNumeric(t.Kind()):
		return v.Convert(t), nil
	default:
		return reflect.Value{}, fmt.Errorf("cannot assign %s to %s", v.Type(), t)
	}
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
