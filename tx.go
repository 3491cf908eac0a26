package neoconsole

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saulfrancisco-ruizacevedo/go-neoconsole/graph"
)

// txGuard demarcates units of work on one engine.
type txGuard struct {
	engine  graph.Engine
	logger  *zap.Logger
	metrics *Metrics
}

// inTransaction runs work inside a new transaction. The transaction is committed when
// work returns a nil error and rolled back when it returns an error or panics; a panic
// keeps propagating after the rollback. The transaction is closed on every path.
//
// Guards do not nest: work must not start another guarded unit on the same engine,
// and tx must not be used after work returns or from another goroutine.
func inTransaction[T any](ctx context.Context, g *txGuard, name string, work func(ctx context.Context, tx graph.Tx) (T, error)) (result T, err error) {
	tx, err := g.engine.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin transaction: %w", err)
	}

	log := g.logger.With(zap.String("tx_id", uuid.NewString()), zap.String("unit", name))
	log.Debug("transaction started")

	finished := false
	defer func() {
		if !finished {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Warn("rollback failed", zap.Error(rbErr))
			}
			g.metrics.observeTransaction(txRolledBack)
			log.Debug("transaction rolled back", zap.Error(err))
		}
		if closeErr := tx.Close(ctx); closeErr != nil {
			log.Warn("closing transaction failed", zap.Error(closeErr))
		}
	}()

	result, err = work(ctx, tx)
	if err != nil {
		return result, err
	}

	finished = true
	if err = tx.Commit(ctx); err != nil {
		g.metrics.observeTransaction(txCommitFailed)
		log.Debug("commit failed", zap.Error(err))
		return result, fmt.Errorf("commit transaction: %w", err)
	}
	g.metrics.observeTransaction(txCommitted)
	log.Debug("transaction committed")
	return result, nil
}
