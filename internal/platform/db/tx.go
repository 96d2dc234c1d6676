package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const DBTxKey contextKey = "db_tx"

// TxRunner executes fn as one atomic unit of work. The transaction is carried
// on the context passed to fn; repositories pick it up with TxFromContext.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Conn is a single pooled connection able to open a transaction.
type Conn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Release()
}

// Acquirer hands out pooled connections.
type Acquirer interface {
	AcquireConn(ctx context.Context) (Conn, error)
}

// PgxAcquirer adapts *pgxpool.Pool to Acquirer.
type PgxAcquirer struct {
	Pool *pgxpool.Pool
}

func (a PgxAcquirer) AcquireConn(ctx context.Context) (Conn, error) {
	conn, err := a.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// WithTx acquires one connection, begins a transaction, runs fn and commits.
// Any error from fn or a panic rolls the transaction back. The connection is
// released exactly once on every path, including rollback failure.
func WithTx(ctx context.Context, pool Acquirer, fn func(ctx context.Context) error) (err error) {
	conn, err := pool.AcquireConn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// The request context may already be cancelled; rollback still has
		// to reach the server.
		rbErr := tx.Rollback(context.WithoutCancel(ctx))
		if rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) && err != nil {
			err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		if r := recover(); r != nil {
			panic(r)
		}
	}()

	if err = fn(context.WithValue(ctx, DBTxKey, tx)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// TxFromContext retrieves the transaction opened by WithTx, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}
