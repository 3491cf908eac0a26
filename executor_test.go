package neoconsole

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph"
	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph/graphtest"
)

type executorFixture struct {
	engine   *graphtest.Engine
	exec     *executor
	metrics  *Metrics
	recorder *tracetest.SpanRecorder
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()
	e := graphtest.NewEngine()
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	guard := &txGuard{engine: e, logger: zap.NewNop(), metrics: m}
	return &executorFixture{
		engine:   e,
		metrics:  m,
		recorder: rec,
		exec: &executor{
			engine:  e,
			guard:   guard,
			logger:  zap.NewNop(),
			metrics: m,
			tracer:  tp.Tracer("test"),
		},
	}
}

func TestExecute_BlankNeverReachesEngine(t *testing.T) {
	f := newExecutorFixture(t)

	for _, q := range []string{"", " ", "\n\t", "// only a comment"} {
		res, err := f.exec.execute(context.Background(), q, VersionPin{})
		require.NoError(t, err)
		assert.True(t, res.Empty())
		assert.True(t, Project(res).Empty())
	}
	assert.Empty(t, f.engine.Calls())
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.QueriesTotal.WithLabelValues(modeSkipped, outcomeOK)))
}

func TestExecute_GeoffIsRefused(t *testing.T) {
	f := newExecutorFixture(t)

	_, err := f.exec.execute(context.Background(), "(A) {\"name\": \"Alice\"}", VersionPin{})
	assert.ErrorIs(t, err, ErrQueryFailed)
	assert.ErrorIs(t, err, ErrNotAQuery)
	assert.Empty(t, f.engine.Calls())
}

func TestExecute_ReadRunsWithoutTransaction(t *testing.T) {
	f := newExecutorFixture(t)
	const q = "MATCH (n) RETURN n"
	f.engine.Seed(func(s *graphtest.State) { s.AddNode([]string{"Person"}, nil) })
	f.engine.Handle(q, func(s *graphtest.State, _ map[string]any) (*graph.Result, error) {
		var rows [][]graph.Value
		for _, n := range s.Nodes() {
			rows = append(rows, []graph.Value{n})
		}
		return graphtest.NewResult([]string{"n"}, rows...), nil
	})

	res, err := f.exec.execute(context.Background(), q, VersionPin{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	assert.Len(t, f.engine.CallsTo("Run"), 1)
	assert.Empty(t, f.engine.CallsTo("Begin"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.QueriesTotal.WithLabelValues(modeRead, outcomeOK)))

	spans := f.recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "neoconsole.Execute", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Bool("neoconsole.mutating", false))
	assert.Contains(t, spans[0].Attributes(), attribute.String("neoconsole.dialect", "cypher"))
}

func TestExecute_MutatingRunsInExactlyOneTransaction(t *testing.T) {
	f := newExecutorFixture(t)
	const q = "CREATE (n:Person) RETURN n"
	f.engine.Handle(q, func(s *graphtest.State, _ map[string]any) (*graph.Result, error) {
		n := s.AddNode([]string{"Person"}, nil)
		return graphtest.NewResult([]string{"n"}, []graph.Value{n}), nil
	})

	_, err := f.exec.execute(context.Background(), q, VersionPin{})
	require.NoError(t, err)

	begins, commits, rollbacks, closes := f.engine.TxStats()
	assert.Equal(t, [4]int{1, 1, 0, 1}, [4]int{begins, commits, rollbacks, closes})
	assert.Len(t, f.engine.CallsTo("Tx.Run"), 1)
	assert.Empty(t, f.engine.CallsTo("Run"))
	assert.Len(t, f.engine.Snapshot().Nodes(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.QueriesTotal.WithLabelValues(modeWrite, outcomeOK)))
}

func TestExecute_WritesWithoutClassicKeywordsAreGuarded(t *testing.T) {
	for _, q := range []string{
		"MATCH (a:Person) INSERT (a)-[:KNOWS]->(:Person {name: 'x'})",
		"SHOW TRANSACTIONS YIELD transactionId AS tx TERMINATE TRANSACTIONS tx",
	} {
		t.Run(q, func(t *testing.T) {
			f := newExecutorFixture(t)
			f.engine.Handle(q, graphtest.Fixed(graphtest.NewResult(nil)))

			_, err := f.exec.execute(context.Background(), q, VersionPin{})
			require.NoError(t, err)

			begins, commits, _, _ := f.engine.TxStats()
			assert.Equal(t, 1, begins)
			assert.Equal(t, 1, commits)
			assert.Len(t, f.engine.CallsTo("Tx.Run"), 1)
			assert.Empty(t, f.engine.CallsTo("Run"))
		})
	}
}

func TestExecute_FailedWriteLeavesGraphUnchanged(t *testing.T) {
	f := newExecutorFixture(t)
	f.engine.Seed(func(s *graphtest.State) { s.AddNode([]string{"Person"}, map[string]any{"name": "Alice"}) })
	before := f.engine.Snapshot()

	const q = "MATCH (n) SET n.age = 1 CREATE (m)"
	f.engine.Handle(q, func(s *graphtest.State, _ map[string]any) (*graph.Result, error) {
		s.AddNode(nil, nil)
		return nil, errors.New("constraint violation")
	})

	_, err := f.exec.execute(context.Background(), q, VersionPin{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueryFailed)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, q, e.Input)

	begins, commits, rollbacks, _ := f.engine.TxStats()
	assert.Equal(t, [3]int{1, 0, 1}, [3]int{begins, commits, rollbacks})
	assert.Equal(t, before.Nodes(), f.engine.Snapshot().Nodes())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.QueriesTotal.WithLabelValues(modeWrite, outcomeError)))

	spans := f.recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestExecute_VersionPrefix(t *testing.T) {
	f := newExecutorFixture(t)
	f.engine.Handle("CYPHER 3.5 MATCH (n) RETURN n", graphtest.Fixed(graphtest.NewResult([]string{"n"})))

	_, err := f.exec.execute(context.Background(), "MATCH (n) RETURN n", MustVersionPin("3.5"))
	require.NoError(t, err)
	assert.Equal(t, "CYPHER 3.5 MATCH (n) RETURN n", f.engine.CallsTo("Run")[0].Query)
}

func TestWithVersion(t *testing.T) {
	pin := MustVersionPin("4.4")
	assert.Equal(t, "MATCH (n) RETURN n", withVersion("MATCH (n) RETURN n", VersionPin{}))
	assert.Equal(t, "CYPHER 4.4 MATCH (n) RETURN n", withVersion("MATCH (n) RETURN n", pin))
	assert.Equal(t, "CYPHER 3.5 MATCH (n) RETURN n", withVersion("CYPHER 3.5 MATCH (n) RETURN n", pin))
	assert.Equal(t, "// c\ncypher 3.5 RETURN 1", withVersion("// c\ncypher 3.5 RETURN 1", pin))
}

func TestExecuteRaw(t *testing.T) {
	f := newExecutorFixture(t)
	const q = "MATCH p=(a)-[r]->(b) RETURN a, r, p, a.name AS name, collect(b) AS bs"

	a := graph.Node{ID: "a", Labels: []string{"Person"}, Props: map[string]any{"name": "Alice"}}
	b := graph.Node{ID: "b", Labels: []string{"Person"}, Props: map[string]any{"name": "Bob"}}
	r := graph.Relationship{ID: "r", StartID: "a", EndID: "b", Type: "KNOWS", Props: map[string]any{"since": int64(2010)}}
	p := graph.Path{Nodes: []graph.Node{a, b}, Relationships: []graph.Relationship{r}}
	f.engine.Handle(q, graphtest.Fixed(graphtest.NewResult(
		[]string{"a", "r", "p", "name", "bs"},
		[]graph.Value{a, r, p, graph.Scalar{V: "Alice"}, graph.List{Items: []graph.Value{b}}},
	)))

	rows, err := f.exec.executeRaw(context.Background(), q, VersionPin{})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	flatA := map[string]any{"name": "Alice", "_id": "a", "_labels": []string{"Person"}}
	flatB := map[string]any{"name": "Bob", "_id": "b", "_labels": []string{"Person"}}
	flatR := map[string]any{"since": int64(2010), "_id": "r", "_type": "KNOWS", "_start": "a", "_end": "b"}
	assert.Equal(t, map[string]any{
		"a":    flatA,
		"r":    flatR,
		"p":    []any{flatA, flatR, flatB},
		"name": "Alice",
		"bs":   []any{flatB},
	}, rows[0])
}

func TestFlatten_CopiesResultData(t *testing.T) {
	n := graph.Node{ID: "n", Labels: []string{"Person"}, Props: map[string]any{"tags": []any{"x"}}}

	m := Flatten(n).(map[string]any)
	m["_labels"].([]string)[0] = "Changed"
	m["tags"].([]any)[0] = "changed"

	assert.Equal(t, []string{"Person"}, n.Labels)
	assert.Equal(t, []any{"x"}, n.Props["tags"])

	list := []any{"a"}
	out := Flatten(graph.Scalar{V: list}).([]any)
	out[0] = "b"
	assert.Equal(t, []any{"a"}, list)
}
