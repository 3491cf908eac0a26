package neoconsole

import (
	"context"

	"go.uber.org/zap"

	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/geoff"
	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph"
)

// MutationSummary counts the changes made by an import.
type MutationSummary struct {
	NodesCreated         int `json:"nodes_created"`
	RelationshipsCreated int `json:"relationships_created"`
	PropertiesSet        int `json:"properties_set"`
	LabelsAdded          int `json:"labels_added"`
}

func summaryOf(c graph.Counters) MutationSummary {
	return MutationSummary{
		NodesCreated:         c.NodesCreated,
		RelationshipsCreated: c.RelationshipsCreated,
		PropertiesSet:        c.PropertiesSet,
		LabelsAdded:          c.LabelsAdded,
	}
}

// Importer parses interchange text and writes it through w.
type Importer interface {
	ParseAndApply(ctx context.Context, text string, w graph.Writer) (graph.Counters, error)
}

// Exporter renders the graph visible through r as text.
type Exporter interface {
	Render(ctx context.Context, r graph.Reader) (string, error)
}

// transfer moves graph data in and out of the engine through the codecs.
type transfer struct {
	engine  graph.Engine
	guard   *txGuard
	logger  *zap.Logger
	metrics *Metrics

	importer  Importer
	geoffOut  Exporter
	cypherOut Exporter
}

// importText applies text in one transaction. Any failure, from the codec or the
// engine, is a KindImportFailed error carrying text, and nothing is written.
func (t *transfer) importText(ctx context.Context, text string) (MutationSummary, error) {
	c, err := inTransaction(ctx, t.guard, "import", func(ctx context.Context, tx graph.Tx) (graph.Counters, error) {
		return t.importer.ParseAndApply(ctx, text, tx)
	})
	return t.finishImport(text, c, err)
}

// importGraph applies an already parsed subgraph in one transaction.
func (t *transfer) importGraph(ctx context.Context, sg *geoff.Subgraph) (MutationSummary, error) {
	if sg == nil {
		return t.finishImport("", graph.Counters{}, geoff.ErrNilSubgraph)
	}
	c, err := inTransaction(ctx, t.guard, "import", func(ctx context.Context, tx graph.Tx) (graph.Counters, error) {
		return geoff.Apply(ctx, sg, tx)
	})
	return t.finishImport(sg.String(), c, err)
}

func (t *transfer) finishImport(input string, c graph.Counters, err error) (MutationSummary, error) {
	t.metrics.observeImport(err)
	if err != nil {
		t.logger.Debug("import failed", zap.Error(err))
		return MutationSummary{}, newError(KindImportFailed, input, err)
	}
	s := summaryOf(c)
	t.logger.Debug("import applied",
		zap.Int("nodes_created", s.NodesCreated),
		zap.Int("relationships_created", s.RelationshipsCreated),
	)
	return s, nil
}

func (t *transfer) exportGeoff(ctx context.Context) (string, error) {
	return t.export(ctx, t.geoffOut)
}

func (t *transfer) exportCypher(ctx context.Context) (string, error) {
	return t.export(ctx, t.cypherOut)
}

// export renders a snapshot read outside any transaction. Read failures are reported
// as KindQueryFailed.
func (t *transfer) export(ctx context.Context, e Exporter) (string, error) {
	text, err := e.Render(ctx, t.engine)
	if err != nil {
		return "", newError(KindQueryFailed, "", err)
	}
	return text, nil
}
