// Package graphtest provides an in-memory graph.Engine for tests.
//
// The engine keeps nodes and relationships in maps and implements real transaction
// semantics: Begin takes a copy of the committed state, writes go to the copy, Commit
// publishes it and Rollback discards it. Cypher is not interpreted; tests register a
// QueryFunc per query text with Handle. Every call is recorded for later assertions.
package graphtest

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("graphtest: engine closed")

// RootLabel marks the node RootNode returns.
const RootLabel = "Root"

// QueryFunc answers a registered query against s. Handlers run against a transaction's
// working copy for Tx.Run and against a throwaway copy for Engine.Run.
type QueryFunc func(s *State, params map[string]any) (*graph.Result, error)

// Call is a recorded method invocation.
type Call struct {
	Method string
	Query  string
}

// Engine is an in-memory graph.Engine.
type Engine struct {
	mu       sync.Mutex
	state    *State
	handlers map[string]QueryFunc
	calls    []Call
	closed   bool

	// BeginErr, CommitErr and RollbackErr are returned by the matching operation when set.
	BeginErr    error
	CommitErr   error
	RollbackErr error

	begins    int
	commits   int
	rollbacks int
	txCloses  int
}

// NewEngine returns an empty engine.
func NewEngine() *Engine {
	return &Engine{
		state:    newState(),
		handlers: make(map[string]QueryFunc),
	}
}

// Handle registers fn as the answer to query.
func (e *Engine) Handle(query string, fn QueryFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[query] = fn
}

// Seed applies fn directly to the committed state.
func (e *Engine) Seed(fn func(s *State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.state)
}

// Snapshot returns a copy of the committed state.
func (e *Engine) Snapshot() *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Calls returns every recorded call in order.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.calls)
}

// CallsTo returns the recorded calls to method.
func (e *Engine) CallsTo(method string) []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Call
	for _, c := range e.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// TxStats reports how many transactions were begun, committed, rolled back and closed.
func (e *Engine) TxStats() (begins, commits, rollbacks, closes int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.begins, e.commits, e.rollbacks, e.txCloses
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) record(method, query string) {
	e.calls = append(e.calls, Call{Method: method, Query: query})
}

func (e *Engine) handler(query string) (QueryFunc, error) {
	fn, ok := e.handlers[query]
	if !ok {
		return nil, fmt.Errorf("graphtest: no handler for query %q", query)
	}
	return fn, nil
}

// Run answers query from its handler against a copy of the committed state, so any
// writes the handler performs are dropped.
func (e *Engine) Run(_ context.Context, query string, params map[string]any) (*graph.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("Run", query)
	if e.closed {
		return nil, ErrClosed
	}
	fn, err := e.handler(query)
	if err != nil {
		return nil, err
	}
	return fn(e.state.clone(), params)
}

// Begin starts a transaction over a copy of the committed state.
func (e *Engine) Begin(_ context.Context) (graph.Tx, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("Begin", "")
	if e.closed {
		return nil, ErrClosed
	}
	if e.BeginErr != nil {
		return nil, e.BeginErr
	}
	e.begins++
	return &Tx{engine: e, work: e.state.clone()}, nil
}

// RootNode returns the lowest-ID node labelled RootLabel.
func (e *Engine) RootNode(_ context.Context) (graph.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("RootNode", "")
	if e.closed {
		return graph.Node{}, ErrClosed
	}
	for _, n := range e.state.Nodes() {
		if slices.Contains(n.Labels, RootLabel) {
			return n, nil
		}
	}
	return graph.Node{}, graph.ErrNotFound
}

// Scan returns the committed nodes and relationships ordered by ID.
func (e *Engine) Scan(_ context.Context) ([]graph.Node, []graph.Relationship, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("Scan", "")
	if e.closed {
		return nil, nil, ErrClosed
	}
	return e.state.Nodes(), e.state.Relationships(), nil
}

// NodesByID returns the committed nodes with the given IDs.
func (e *Engine) NodesByID(_ context.Context, ids []string) ([]graph.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("NodesByID", "")
	if e.closed {
		return nil, ErrClosed
	}
	var out []graph.Node
	for _, id := range ids {
		if n, ok := e.state.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// Close marks the engine closed.
func (e *Engine) Close(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("Close", "")
	e.closed = true
	return nil
}

// Tx is a transaction of Engine.
type Tx struct {
	engine   *Engine
	work     *State
	finished bool
	closed   bool
}

func (t *Tx) Run(_ context.Context, query string, params map[string]any) (*graph.Result, error) {
	t.engine.mu.Lock()
	t.engine.record("Tx.Run", query)
	fn, err := t.engine.handler(query)
	t.engine.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if t.finished {
		return nil, errors.New("graphtest: transaction already finished")
	}
	return fn(t.work, params)
}

func (t *Tx) CreateNode(_ context.Context, labels []string, props map[string]any) (graph.Node, error) {
	t.engine.mu.Lock()
	t.engine.record("Tx.CreateNode", "")
	t.engine.mu.Unlock()
	if t.finished {
		return graph.Node{}, errors.New("graphtest: transaction already finished")
	}
	return t.work.AddNode(labels, props), nil
}

func (t *Tx) CreateRelationship(_ context.Context, startID, endID, relType string, props map[string]any) (graph.Relationship, error) {
	t.engine.mu.Lock()
	t.engine.record("Tx.CreateRelationship", "")
	t.engine.mu.Unlock()
	if t.finished {
		return graph.Relationship{}, errors.New("graphtest: transaction already finished")
	}
	return t.work.AddRelationship(startID, endID, relType, props)
}

func (t *Tx) DeleteNode(_ context.Context, id string) error {
	t.engine.mu.Lock()
	t.engine.record("Tx.DeleteNode", "")
	t.engine.mu.Unlock()
	if t.finished {
		return errors.New("graphtest: transaction already finished")
	}
	t.work.DeleteNode(id)
	return nil
}

// Commit publishes the working copy unless CommitErr is set.
func (t *Tx) Commit(_ context.Context) error {
	t.engine.mu.Lock()
	defer t.engine.mu.Unlock()
	t.engine.record("Tx.Commit", "")
	if t.finished {
		return errors.New("graphtest: transaction already finished")
	}
	t.finished = true
	if t.engine.CommitErr != nil {
		return t.engine.CommitErr
	}
	t.engine.state = t.work
	t.engine.commits++
	return nil
}

// Rollback discards the working copy.
func (t *Tx) Rollback(_ context.Context) error {
	t.engine.mu.Lock()
	defer t.engine.mu.Unlock()
	t.engine.record("Tx.Rollback", "")
	if t.finished {
		return errors.New("graphtest: transaction already finished")
	}
	t.finished = true
	t.engine.rollbacks++
	return t.engine.RollbackErr
}

// Close rolls back an unfinished transaction and releases it.
func (t *Tx) Close(_ context.Context) error {
	t.engine.mu.Lock()
	defer t.engine.mu.Unlock()
	t.engine.record("Tx.Close", "")
	if t.closed {
		return nil
	}
	t.closed = true
	if !t.finished {
		t.finished = true
		t.engine.rollbacks++
	}
	t.engine.txCloses++
	return nil
}

// State is the node and relationship store behind an Engine or one of its transactions.
type State struct {
	nodes  map[string]graph.Node
	rels   map[string]graph.Relationship
	nextID int
}

func newState() *State {
	return &State{
		nodes: make(map[string]graph.Node),
		rels:  make(map[string]graph.Relationship),
	}
}

func (s *State) clone() *State {
	c := &State{
		nodes:  make(map[string]graph.Node, len(s.nodes)),
		rels:   make(map[string]graph.Relationship, len(s.rels)),
		nextID: s.nextID,
	}
	for id, n := range s.nodes {
		n.Labels = slices.Clone(n.Labels)
		n.Props = maps.Clone(n.Props)
		c.nodes[id] = n
	}
	for id, r := range s.rels {
		r.Props = maps.Clone(r.Props)
		c.rels[id] = r
	}
	return c
}

func (s *State) newID(prefix string) string {
	s.nextID++
	return prefix + strconv.Itoa(s.nextID)
}

// AddNode stores a node and returns it with a fresh "n<k>" ID.
func (s *State) AddNode(labels []string, props map[string]any) graph.Node {
	if props == nil {
		props = map[string]any{}
	}
	n := graph.Node{ID: s.newID("n"), Labels: slices.Clone(labels), Props: maps.Clone(props)}
	s.nodes[n.ID] = n
	return n
}

// AddRelationship stores a relationship between two existing nodes.
func (s *State) AddRelationship(startID, endID, relType string, props map[string]any) (graph.Relationship, error) {
	if _, ok := s.nodes[startID]; !ok {
		return graph.Relationship{}, fmt.Errorf("graphtest: start node %s: %w", startID, graph.ErrNotFound)
	}
	if _, ok := s.nodes[endID]; !ok {
		return graph.Relationship{}, fmt.Errorf("graphtest: end node %s: %w", endID, graph.ErrNotFound)
	}
	if props == nil {
		props = map[string]any{}
	}
	r := graph.Relationship{ID: s.newID("r"), StartID: startID, EndID: endID, Type: relType, Props: maps.Clone(props)}
	s.rels[r.ID] = r
	return r, nil
}

// DeleteNode removes a node and every relationship attached to it.
func (s *State) DeleteNode(id string) {
	delete(s.nodes, id)
	for rid, r := range s.rels {
		if r.StartID == id || r.EndID == id {
			delete(s.rels, rid)
		}
	}
}

// Node returns the node with the given ID.
func (s *State) Node(id string) (graph.Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Relationship returns the relationship with the given ID.
func (s *State) Relationship(id string) (graph.Relationship, bool) {
	r, ok := s.rels[id]
	return r, ok
}

// Nodes returns all nodes ordered by creation.
func (s *State) Nodes() []graph.Node {
	out := slices.Collect(maps.Values(s.nodes))
	slices.SortFunc(out, func(a, b graph.Node) int { return compareIDs(a.ID, b.ID) })
	return out
}

// Relationships returns all relationships ordered by creation.
func (s *State) Relationships() []graph.Relationship {
	out := slices.Collect(maps.Values(s.rels))
	slices.SortFunc(out, func(a, b graph.Relationship) int { return compareIDs(a.ID, b.ID) })
	return out
}

// compareIDs orders "n<k>"/"r<k>" IDs by their numeric suffix.
func compareIDs(a, b string) int {
	ai, _ := strconv.Atoi(a[1:])
	bi, _ := strconv.Atoi(b[1:])
	return ai - bi
}
