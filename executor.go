package neoconsole

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph"
)

const tracerName = "github.com/saulfrancisco-ruizacevedo/go-neoconsole"

var defaultTracer = otel.Tracer(tracerName)

// executor runs classified queries. Mutating queries go through the guard, reads are
// sent to the engine directly.
type executor struct {
	engine  graph.Engine
	guard   *txGuard
	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// execute classifies query under pin and runs it. Blank text yields an empty result
// without touching the engine; Geoff text is refused.
func (x *executor) execute(ctx context.Context, query string, pin VersionPin) (*graph.Result, error) {
	c := Classify(query, pin)

	ctx, span := x.tracer.Start(ctx, "neoconsole.Execute", trace.WithAttributes(
		attribute.String("neoconsole.dialect", c.Dialect.String()),
		attribute.Bool("neoconsole.mutating", c.Mutating),
	))
	defer span.End()

	if c.Empty {
		x.metrics.observeQuery(modeSkipped, nil, 0)
		return &graph.Result{}, nil
	}
	if c.Dialect == DialectGeoff {
		err := newError(KindQueryFailed, query, ErrNotAQuery)
		x.metrics.observeQuery(modeSkipped, err, 0)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	text := withVersion(query, pin)
	log := x.logger.With(
		zap.String("query", query),
		zap.Stringer("dialect", c.Dialect),
		zap.Bool("mutating", c.Mutating),
	)

	start := time.Now()
	var (
		res  *graph.Result
		err  error
		mode = modeRead
	)
	if c.Mutating {
		mode = modeWrite
		res, err = inTransaction(ctx, x.guard, "query", func(ctx context.Context, tx graph.Tx) (*graph.Result, error) {
			return tx.Run(ctx, text, nil)
		})
	} else {
		res, err = x.engine.Run(ctx, text, nil)
	}
	elapsed := time.Since(start)
	x.metrics.observeQuery(mode, err, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Debug("query failed", zap.Duration("duration", elapsed), zap.Error(err))
		return nil, newError(KindQueryFailed, query, err)
	}
	log.Debug("query executed", zap.Duration("duration", elapsed), zap.Int("records", len(res.Records)))
	return res, nil
}

// executeRaw runs query and flattens every value with Flatten.
func (x *executor) executeRaw(ctx context.Context, query string, pin VersionPin) ([]map[string]any, error) {
	res, err := x.execute(ctx, query, pin)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(res.Records))
	for _, rec := range res.Records {
		row := make(map[string]any, len(rec.Keys))
		for i, k := range rec.Keys {
			if i < len(rec.Values) {
				row[k] = Flatten(rec.Values[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// withVersion prefixes query with "CYPHER <pin> " unless the pin is cleared or the
// query already names its version.
func withVersion(query string, pin VersionPin) string {
	if !pin.IsSet() {
		return query
	}
	if cypherPrefix.MatchString(strings.TrimSpace(blankLiterals(query))) {
		return query
	}
	return "CYPHER " + pin.String() + " " + query
}

// Flatten converts a result value into plain Go data.
//
//   - Node: its properties plus "_id" and "_labels".
//   - Relationship: its properties plus "_id", "_type", "_start" and "_end".
//   - Path: the flattened elements in path order.
//   - List: the flattened items.
//   - Scalar: the value itself.
func Flatten(v graph.Value) any {
	switch v := v.(type) {
	case graph.Node:
		m := make(map[string]any, len(v.Props)+2)
		for k, p := range v.Props {
			m[k] = cloneAny(p)
		}
		m["_id"] = v.ID
		m["_labels"] = slices.Clone(v.Labels)
		return m
	case graph.Relationship:
		m := make(map[string]any, len(v.Props)+4)
		for k, p := range v.Props {
			m[k] = cloneAny(p)
		}
		m["_id"] = v.ID
		m["_type"] = v.Type
		m["_start"] = v.StartID
		m["_end"] = v.EndID
		return m
	case graph.Path:
		elems := v.Elements()
		out := make([]any, len(elems))
		for i, e := range elems {
			out[i] = Flatten(e)
		}
		return out
	case graph.List:
		out := make([]any, len(v.Items))
		for i, item := range v.Items {
			out[i] = Flatten(item)
		}
		return out
	case graph.Scalar:
		return cloneAny(v.V)
	default:
		return nil
	}
}
