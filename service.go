// Package neoconsole runs queries against a graph database on behalf of a console.
//
// A Service classifies every query before running it: writes run inside a
// transaction that is rolled back on failure, reads run in the engine's read mode.
// Query results can be projected into a deduplicated VisualizationGraph that tells
// the elements the query returned apart from the ones shown only for context. Graph
// data is imported from Geoff text and exported as Geoff or as a Cypher script.
package neoconsole

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/cypherscript"
	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/geoff"
	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph"
	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/models"
)

// serviceState is the lifecycle state of a Service: *activeState or stoppedState.
type serviceState interface {
	isServiceState()
}

// activeState owns the engine and the components built on it.
type activeState struct {
	engine   graph.Engine
	guard    *txGuard
	exec     *executor
	transfer *transfer
}

type stoppedState struct{}

func (*activeState) isServiceState() {}
func (stoppedState) isServiceState() {}

// Service is the entry point for running queries, visualizing results and moving
// graph data in and out. It is safe for concurrent use; Stop must not race with other
// calls.
type Service struct {
	mu    sync.RWMutex
	state serviceState
	pin   VersionPin

	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracer sets the tracer used for query spans. The default is the global
// OpenTelemetry tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithVersion sets the initial version pin.
func WithVersion(pin VersionPin) Option {
	return func(s *Service) { s.pin = pin }
}

// New returns an active Service that owns engine. Stop closes it.
func New(engine graph.Engine, opts ...Option) *Service {
	s := &Service{
		logger: zap.NewNop(),
		tracer: defaultTracer,
	}
	for _, opt := range opts {
		opt(s)
	}

	guard := &txGuard{engine: engine, logger: s.logger, metrics: s.metrics}
	var codec geoff.Codec
	s.state = &activeState{
		engine: engine,
		guard:  guard,
		exec: &executor{
			engine:  engine,
			guard:   guard,
			logger:  s.logger,
			metrics: s.metrics,
			tracer:  s.tracer,
		},
		transfer: &transfer{
			engine:    engine,
			guard:     guard,
			logger:    s.logger,
			metrics:   s.metrics,
			importer:  codec,
			geoffOut:  codec,
			cypherOut: cypherscript.Codec{},
		},
	}
	return s
}

// Start connects to Neo4j as described by cfg and returns an active Service.
// Options are applied after the ones derived from cfg, so they take precedence.
//
// Parameters:
//   - ctx: The context used while connecting.
//   - cfg: The service configuration, usually from LoadConfig.
//   - opts: Additional options.
//
// Returns:
//
//	The running service, or an error if cfg is invalid or the server cannot be reached.
func Start(ctx context.Context, cfg Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pin, err := ParseVersionPin(cfg.QueryVersion)
	if err != nil {
		return nil, err
	}
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	base := []Option{WithLogger(logger), WithVersion(pin)}
	if cfg.Metrics.Enabled {
		m, err := NewMetrics(prometheus.DefaultRegisterer)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		base = append(base, WithMetrics(m))
	}

	engine, err := graph.NewNeo4jEngine(ctx, cfg.Neo4j)
	if err != nil {
		return nil, err
	}
	s := New(engine, append(base, opts...)...)
	s.logger.Info("service started", zap.String("uri", cfg.Neo4j.URI), zap.String("query_version", pin.String()))
	return s, nil
}

// Stop closes the engine and moves the service to its terminal state. Calling Stop
// again does nothing. Every other method of a stopped service fails with
// ErrServiceStopped.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	a, ok := s.state.(*activeState)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	s.state = stoppedState{}
	s.mu.Unlock()

	if err := a.engine.Close(ctx); err != nil {
		s.logger.Warn("closing engine failed", zap.Error(err))
		return fmt.Errorf("close engine: %w", err)
	}
	s.logger.Info("service stopped")
	return nil
}

// active returns the components of an active service and the current pin.
func (s *Service) active() (*activeState, VersionPin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.(*activeState)
	if !ok {
		return nil, VersionPin{}, newError(KindServiceStopped, "", nil)
	}
	return a, s.pin, nil
}

// Stopped reports whether Stop has been called.
func (s *Service) Stopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.state.(stoppedState)
	return ok
}

// Engine returns the engine the service owns, or nil once it is stopped.
func (s *Service) Engine() graph.Engine {
	a, _, err := s.active()
	if err != nil {
		return nil
	}
	return a.engine
}

// SetVersion pins the query-language version. The string is cut to its major.minor
// prefix; an empty string clears the pin. A string without such a prefix fails with
// ErrInvalidVersion and leaves the pin unchanged.
func (s *Service) SetVersion(v string) error {
	pin, err := ParseVersionPin(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.(*activeState); !ok {
		return newError(KindServiceStopped, v, nil)
	}
	s.pin = pin
	return nil
}

// Version returns the pinned version, or "" when none is pinned.
func (s *Service) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pin.String()
}

// HasRootNode reports whether the graph has a root node. A missing root is not an error.
func (s *Service) HasRootNode(ctx context.Context) (bool, error) {
	a, _, err := s.active()
	if err != nil {
		return false, err
	}
	if _, err := a.engine.RootNode(ctx); err != nil {
		if errors.Is(err, graph.ErrNotFound) {
			return false, nil
		}
		return false, newError(KindQueryFailed, "", err)
	}
	return true, nil
}

// DeleteRootNode deletes the root node and its relationships in one transaction.
// It does nothing when there is no root node.
func (s *Service) DeleteRootNode(ctx context.Context) error {
	a, _, err := s.active()
	if err != nil {
		return err
	}
	root, err := a.engine.RootNode(ctx)
	if errors.Is(err, graph.ErrNotFound) {
		return nil
	}
	if err != nil {
		return newError(KindQueryFailed, "", err)
	}
	_, err = inTransaction(ctx, a.guard, "delete root", func(ctx context.Context, tx graph.Tx) (struct{}, error) {
		return struct{}{}, tx.DeleteNode(ctx, root.ID)
	})
	if err != nil {
		return newError(KindQueryFailed, "", err)
	}
	return nil
}

// Classify classifies query under the current version pin.
func (s *Service) Classify(query string) Classification {
	s.mu.RLock()
	pin := s.pin
	s.mu.RUnlock()
	return Classify(query, pin)
}

// IsMutatingQuery reports whether query would be run inside a write transaction.
func (s *Service) IsMutatingQuery(query string) bool {
	return s.Classify(query).Mutating
}

// IsCypherQuery reports whether query is recognised as Cypher.
func (s *Service) IsCypherQuery(query string) bool {
	return s.Classify(query).Dialect == DialectCypher
}

// Query runs query and returns its result. Blank queries return an empty result
// without reaching the engine. Mutating queries run in a transaction that is rolled
// back if the engine fails. Failures are ErrQueryFailed errors carrying the query.
func (s *Service) Query(ctx context.Context, query string) (*graph.Result, error) {
	a, pin, err := s.active()
	if err != nil {
		return nil, err
	}
	return a.exec.execute(ctx, query, pin)
}

// QueryRows runs query and returns its rows as plain maps; see Flatten.
func (s *Service) QueryRows(ctx context.Context, query string) ([]map[string]any, error) {
	a, pin, err := s.active()
	if err != nil {
		return nil, err
	}
	return a.exec.executeRaw(ctx, query, pin)
}

// Visualize runs a read query and projects its result. Context endpoints are hydrated
// with their labels and properties. Mutating or non-Cypher text is never executed and
// yields an empty graph; run such a query with Query and pass its result to
// VisualizeResult instead.
func (s *Service) Visualize(ctx context.Context, query string) (*models.VisualizationGraph, error) {
	a, pin, err := s.active()
	if err != nil {
		return nil, err
	}
	if c := Classify(query, pin); c.Mutating {
		s.logger.Debug("visualization skipped for mutating query",
			zap.String("dialect", c.Dialect.String()),
			zap.Strings("keywords", c.Keywords))
		return Project(nil), nil
	}
	res, err := a.exec.execute(ctx, query, pin)
	if err != nil {
		return nil, err
	}
	return visualize(ctx, a, res)
}

// VisualizeResult projects a result obtained earlier. A nil result yields an empty graph.
func (s *Service) VisualizeResult(ctx context.Context, res *graph.Result) (*models.VisualizationGraph, error) {
	a, _, err := s.active()
	if err != nil {
		return nil, err
	}
	return visualize(ctx, a, res)
}

func visualize(ctx context.Context, a *activeState, res *graph.Result) (*models.VisualizationGraph, error) {
	g := Project(res)
	if err := Hydrate(ctx, g, a.engine); err != nil {
		return nil, newError(KindQueryFailed, "", err)
	}
	return g, nil
}

// ImportText parses Geoff text and writes it in a single transaction. On any failure
// nothing is written and the error is an ErrImportFailed carrying text; the codec's
// *geoff.SyntaxError or *geoff.StructuralError is reachable with errors.As.
func (s *Service) ImportText(ctx context.Context, text string) (MutationSummary, error) {
	a, _, err := s.active()
	if err != nil {
		return MutationSummary{}, err
	}
	return a.transfer.importText(ctx, text)
}

// ImportGraph writes an already parsed subgraph in a single transaction.
func (s *Service) ImportGraph(ctx context.Context, sg *geoff.Subgraph) (MutationSummary, error) {
	a, _, err := s.active()
	if err != nil {
		return MutationSummary{}, err
	}
	return a.transfer.importGraph(ctx, sg)
}

// ExportGeoff renders the whole graph as Geoff.
func (s *Service) ExportGeoff(ctx context.Context) (string, error) {
	a, _, err := s.active()
	if err != nil {
		return "", err
	}
	return a.transfer.exportGeoff(ctx)
}

// ExportCypher renders the whole graph as a single Cypher CREATE statement.
func (s *Service) ExportCypher(ctx context.Context) (string, error) {
	a, _, err := s.active()
	if err != nil {
		return "", err
	}
	return a.transfer.exportCypher(ctx)
}
