package graph

import (
	"context"
	"errors"
)

// ErrNotFound is a sentinel error returned by lookups such as Engine.RootNode when no
// matching element exists in the database.
var ErrNotFound = errors.New("graph element not found")

// Runner executes a single query with parameters and returns a fully-buffered result.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]any) (*Result, error)
}

// Writer creates and removes graph elements. It is the surface interchange codecs
// apply their changes through.
type Writer interface {
	// CreateNode creates a node and returns it with its engine-assigned ID.
	CreateNode(ctx context.Context, labels []string, props map[string]any) (Node, error)

	// CreateRelationship creates a relationship of type relType from startID to endID.
	CreateRelationship(ctx context.Context, startID, endID, relType string, props map[string]any) (Relationship, error)

	// DeleteNode removes a node together with its relationships.
	DeleteNode(ctx context.Context, id string) error
}

// Reader exposes read-only snapshots of graph state.
type Reader interface {
	// Scan returns every node and relationship currently stored.
	Scan(ctx context.Context) ([]Node, []Relationship, error)

	// NodesByID returns the nodes with the given IDs. Unknown IDs are skipped.
	NodesByID(ctx context.Context, ids []string) ([]Node, error)
}

// Tx is a live transaction. It is owned by exactly one unit of work and must not be
// shared between goroutines.
type Tx interface {
	Runner
	Writer

	// Commit makes the transaction's writes durable.
	Commit(ctx context.Context) error

	// Rollback discards the transaction's writes.
	Rollback(ctx context.Context) error

	// Close releases the resources held by the transaction. Closing a transaction that
	// was neither committed nor rolled back rolls it back.
	Close(ctx context.Context) error
}

// Engine is the handle to a live graph database.
//
// Run executes in read mode outside any explicit transaction; writes must go through
// Begin. Implementations must be safe for concurrent use; individual transactions are not.
type Engine interface {
	Runner
	Reader

	// Begin starts a new write transaction.
	Begin(ctx context.Context) (Tx, error)

	// RootNode returns the designated root node, or ErrNotFound when the graph has none.
	RootNode(ctx context.Context) (Node, error)

	// Close releases the engine. The engine cannot be used afterwards.
	Close(ctx context.Context) error
}
