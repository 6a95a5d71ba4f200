package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Transactor implements ports.Transactor with SERIALIZABLE transactions.
// Units that lose a serialization or deadlock conflict are rerun up to maxRetries times.
type Transactor struct {
	pool       Pool
	maxRetries int
	log        zerolog.Logger
}

// NewTransactor creates a new Transactor wrapping the connection pool.
func NewTransactor(pool Pool, maxRetries int, log zerolog.Logger) *Transactor {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Transactor{pool: pool, maxRetries: maxRetries, log: log}
}

// WithinTx runs fn in one transaction and commits when fn returns nil.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	for attempt := 0; ; attempt++ {
		err := t.run(ctx, fn)
		if err == nil || !isRetryable(err) || attempt >= t.maxRetries {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		t.log.Debug().
			Int("attempt", attempt+1).
			Err(err).
			Msg("serializable transaction conflict, retrying")
	}
}

func (t *Transactor) run(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			t.log.Warn().Err(rbErr).Msg("rollback failed")
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
