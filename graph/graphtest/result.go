package graphtest

import "github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph"

// NewResult builds a result with the given columns; each row lists one value per column.
func NewResult(columns []string, rows ...[]graph.Value) *graph.Result {
	res := &graph.Result{Columns: columns, Records: make([]graph.Record, 0, len(rows))}
	for _, row := range rows {
		res.Records = append(res.Records, graph.Record{Keys: columns, Values: row})
	}
	return res
}

// Fixed returns a QueryFunc that always answers res.
func Fixed(res *graph.Result) QueryFunc {
	return func(*State, map[string]any) (*graph.Result, error) {
		return res, nil
	}
}

// Failing returns a QueryFunc that always fails with err.
func Failing(err error) QueryFunc {
	return func(*State, map[string]any) (*graph.Result, error) {
		return nil, err
	}
}
