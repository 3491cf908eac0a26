package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/saulfrancisco-ruizacevedo/gocypher"
)

// Neo4jConfig holds the connection settings for a Neo4jEngine.
type Neo4jConfig struct {
	// URI is the connection URI (e.g. "neo4j://localhost:7687", "bolt+s://host:7687").
	URI string `yaml:"uri" validate:"required"`

	// Username and Password are used for basic authentication.
	Username string `yaml:"username" validate:"required"`
	Password string `yaml:"password" validate:"required"`

	// Database is the target database name. Empty uses the server default.
	Database string `yaml:"database"`

	// RootLabel is the label that marks the graph's root node.
	RootLabel string `yaml:"root_label" validate:"required"`

	// MaxConnectionPoolSize limits the number of pooled connections.
	// Zero or negative values use the driver default.
	MaxConnectionPoolSize int `yaml:"max_connection_pool_size" validate:"gte=0"`

	// ConnectionTimeout is the maximum time to wait for a pooled connection.
	ConnectionTimeout time.Duration `yaml:"connection_timeout" validate:"gt=0"`
}

// DefaultNeo4jConfig returns a Neo4jConfig pointing at a local server.
func DefaultNeo4jConfig() Neo4jConfig {
	return Neo4jConfig{
		URI:                   "neo4j://localhost:7687",
		Username:              "neo4j",
		Password:              "neo4j",
		RootLabel:             "Root",
		MaxConnectionPoolSize: 50,
		ConnectionTimeout:     30 * time.Second,
	}
}

// Neo4jEngine is the Engine implementation backed by the official Neo4j Go driver.
// It owns the driver instance; Close releases it.
type Neo4jEngine struct {
	Driver neo4j.DriverWithContext
	cfg    Neo4jConfig
}

// NewNeo4jEngine creates the driver and verifies connectivity to the configured database.
//
// Parameters:
//   - ctx: The context used for the connectivity check.
//   - cfg: Connection settings.
//
// Returns:
//
//	A connected engine, or an error if the driver cannot be created or the server
//	cannot be reached. The driver is closed again when verification fails.
func NewNeo4jEngine(ctx context.Context, cfg Neo4jConfig) (*Neo4jEngine, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			if cfg.MaxConnectionPoolSize > 0 {
				c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
			}
			if cfg.ConnectionTimeout > 0 {
				c.ConnectionAcquisitionTimeout = cfg.ConnectionTimeout
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("could not create Neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("could not connect to Neo4j at %s: %w", cfg.URI, err)
	}
	return &Neo4jEngine{Driver: driver, cfg: cfg}, nil
}

func (e *Neo4jEngine) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return e.Driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: e.cfg.Database,
		AccessMode:   mode,
	})
}

// Run executes query in a read-mode autocommit session. The server rejects writes
// issued through a read session, so a write that slips past classification fails
// instead of running outside a transaction.
func (e *Neo4jEngine) Run(ctx context.Context, query string, params map[string]any) (*Result, error) {
	session := e.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	res, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("error executing neo4j query: %w", err)
	}
	return collect(ctx, res)
}

// Begin opens a write session and starts an explicit transaction on it.
func (e *Neo4jEngine) Begin(ctx context.Context) (Tx, error) {
	session := e.session(ctx, neo4j.AccessModeWrite)
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		_ = session.Close(ctx)
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	return &neo4jTx{session: session, tx: tx}, nil
}

// RootNode returns the first node carrying the configured root label.
func (e *Neo4jEngine) RootNode(ctx context.Context) (Node, error) {
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", quoteIdentifier(e.cfg.RootLabel))).
		Return("n").
		Build()
	if err != nil {
		return Node{}, fmt.Errorf("could not build root query: %w", err)
	}

	res, err := e.Run(ctx, query, params)
	if err != nil {
		return Node{}, err
	}
	for _, rec := range res.Records {
		if v, ok := rec.Get("n"); ok {
			if n, ok := v.(Node); ok {
				return n, nil
			}
		}
	}
	return Node{}, ErrNotFound
}

// Scan reads every node and relationship in two read queries.
func (e *Neo4jEngine) Scan(ctx context.Context) ([]Node, []Relationship, error) {
	nodeRes, err := e.Run(ctx, "MATCH (n) RETURN n", nil)
	if err != nil {
		return nil, nil, err
	}
	relRes, err := e.Run(ctx, "MATCH ()-[r]->() RETURN r", nil)
	if err != nil {
		return nil, nil, err
	}

	nodes := make([]Node, 0, len(nodeRes.Records))
	for _, rec := range nodeRes.Records {
		if v, ok := rec.Get("n"); ok {
			if n, ok := v.(Node); ok {
				nodes = append(nodes, n)
			}
		}
	}
	rels := make([]Relationship, 0, len(relRes.Records))
	for _, rec := range relRes.Records {
		if v, ok := rec.Get("r"); ok {
			if r, ok := v.(Relationship); ok {
				rels = append(rels, r)
			}
		}
	}
	return nodes, rels, nil
}

// NodesByID fetches nodes by element ID.
func (e *Neo4jEngine) NodesByID(ctx context.Context, ids []string) ([]Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	res, err := e.Run(ctx, "MATCH (n) WHERE elementId(n) IN $ids RETURN n", map[string]any{"ids": ids})
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(res.Records))
	for _, rec := range res.Records {
		if v, ok := rec.Get("n"); ok {
			if n, ok := v.(Node); ok {
				nodes = append(nodes, n)
			}
		}
	}
	return nodes, nil
}

// Close closes the underlying driver.
func (e *Neo4jEngine) Close(ctx context.Context) error {
	if err := e.Driver.Close(ctx); err != nil {
		return fmt.Errorf("could not close Neo4j driver: %w", err)
	}
	return nil
}

// neo4jTx binds an explicit transaction to the session it was started on.
type neo4jTx struct {
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
}

func (t *neo4jTx) Run(ctx context.Context, query string, params map[string]any) (*Result, error) {
	res, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("error executing neo4j query: %w", err)
	}
	return collect(ctx, res)
}

// CreateNode builds a CREATE query with gocypher and returns the created node.
func (t *neo4jTx) CreateNode(ctx context.Context, labels []string, props map[string]any) (Node, error) {
	query, params, err := createNodeQuery(labels, props)
	if err != nil {
		return Node{}, err
	}

	res, err := t.Run(ctx, query, params)
	if err != nil {
		return Node{}, err
	}
	if len(res.Records) != 1 {
		return Node{}, fmt.Errorf("expected 1 created node but got %d records", len(res.Records))
	}
	v, _ := res.Records[0].Get("n")
	n, ok := v.(Node)
	if !ok {
		return Node{}, errors.New("create query did not return a node")
	}
	return n, nil
}

func (t *neo4jTx) CreateRelationship(ctx context.Context, startID, endID, relType string, props map[string]any) (Relationship, error) {
	if props == nil {
		props = map[string]any{}
	}
	query := fmt.Sprintf(`MATCH (a), (b)
WHERE elementId(a) = $start AND elementId(b) = $end
CREATE (a)-[r:%s]->(b)
SET r = $props
RETURN r`, quoteIdentifier(relType))

	res, err := t.Run(ctx, query, map[string]any{"start": startID, "end": endID, "props": props})
	if err != nil {
		return Relationship{}, err
	}
	if len(res.Records) != 1 {
		return Relationship{}, fmt.Errorf("expected 1 created relationship but got %d records", len(res.Records))
	}
	v, _ := res.Records[0].Get("r")
	r, ok := v.(Relationship)
	if !ok {
		return Relationship{}, errors.New("create query did not return a relationship")
	}
	return r, nil
}

// DeleteNode removes the node and its relationships with DETACH DELETE.
func (t *neo4jTx) DeleteNode(ctx context.Context, id string) error {
	_, err := t.Run(ctx, "MATCH (n) WHERE elementId(n) = $id DETACH DELETE n", map[string]any{"id": id})
	return err
}

func (t *neo4jTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *neo4jTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// Close closes the transaction and then its session. Both are always attempted.
func (t *neo4jTx) Close(ctx context.Context) error {
	txErr := t.tx.Close(ctx)
	sessErr := t.session.Close(ctx)
	return errors.Join(txErr, sessErr)
}

// collect buffers all records and the summary counters of res.
func collect(ctx context.Context, res neo4j.ResultWithContext) (*Result, error) {
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading neo4j result: %w", err)
	}
	summary, err := res.Consume(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading neo4j summary: %w", err)
	}
	return convertResult(records, summary), nil
}

// createNodeQuery builds the CREATE query for CreateNode. gocypher writes labels and
// property keys verbatim, so both are quoted here.
func createNodeQuery(labels []string, props map[string]any) (string, map[string]any, error) {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = quoteIdentifier(l)
	}
	keyed := make(map[string]any, len(props))
	for k, v := range props {
		keyed[quoteIdentifier(k)] = v
	}
	query, params, err := gocypher.NewQueryBuilder().
		Create(gocypher.N("n", strings.Join(quoted, ":")).WithProperties(keyed)).
		Return("n").
		Build()
	if err != nil {
		return "", nil, fmt.Errorf("could not build create query: %w", err)
	}
	return query, params, nil
}

// quoteIdentifier backtick-quotes a label, relationship type or property key.
func quoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}
