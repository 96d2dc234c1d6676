package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

type fakeTx struct {
	pgx.Tx
	committed   bool
	rolledBack  bool
	commitErr   error
	rollbackErr error
}

func (t *fakeTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return t.rollbackErr
}

type fakeConn struct {
	pool     *fakePool
	tx       *fakeTx
	beginErr error
}

func (c *fakeConn) Begin(context.Context) (pgx.Tx, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	return c.tx, nil
}

func (c *fakeConn) Release() {
	c.pool.released++
	c.pool.available++
}

type fakePool struct {
	available  int
	acquired   int
	released   int
	acquireErr error
	conn       *fakeConn
}

func newFakePool(tx *fakeTx) *fakePool {
	p := &fakePool{available: 4}
	p.conn = &fakeConn{pool: p, tx: tx}
	return p
}

func (p *fakePool) AcquireConn(context.Context) (Conn, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	p.acquired++
	p.available--
	return p.conn, nil
}

func TestWithTx_Commits(t *testing.T) {
	tx := &fakeTx{}
	pool := newFakePool(tx)

	var seen pgx.Tx
	err := WithTx(context.Background(), pool, func(ctx context.Context) error {
		seen = TxFromContext(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != tx {
		t.Error("expected transaction on callback context")
	}
	if !tx.committed {
		t.Error("expected commit")
	}
	if tx.rolledBack {
		t.Error("did not expect rollback after commit")
	}
	if pool.released != 1 || pool.available != 4 {
		t.Errorf("expected one release and 4 available, got released=%d available=%d", pool.released, pool.available)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	tx := &fakeTx{}
	pool := newFakePool(tx)
	boom := errors.New("insert failed")

	err := WithTx(context.Background(), pool, func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if !tx.rolledBack || tx.committed {
		t.Error("expected rollback without commit")
	}
	if pool.released != 1 || pool.available != 4 {
		t.Errorf("expected connection released once, got released=%d available=%d", pool.released, pool.available)
	}
}

func TestWithTx_RollbackFailureStillReleases(t *testing.T) {
	tx := &fakeTx{rollbackErr: errors.New("connection lost")}
	pool := newFakePool(tx)
	boom := errors.New("insert failed")

	err := WithTx(context.Background(), pool, func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error to be preserved, got %v", err)
	}
	if pool.released != 1 {
		t.Errorf("expected exactly one release, got %d", pool.released)
	}
}

func TestWithTx_CommitFailure(t *testing.T) {
	tx := &fakeTx{commitErr: errors.New("serialization failure")}
	pool := newFakePool(tx)

	err := WithTx(context.Background(), pool, func(ctx context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected commit error")
	}
	if !tx.rolledBack {
		t.Error("expected rollback after failed commit")
	}
	if pool.released != 1 {
		t.Errorf("expected exactly one release, got %d", pool.released)
	}
}

func TestWithTx_BeginFailureReleases(t *testing.T) {
	pool := newFakePool(&fakeTx{})
	pool.conn.beginErr = errors.New("begin refused")

	err := WithTx(context.Background(), pool, func(ctx context.Context) error {
		t.Error("callback must not run")
		return nil
	})
	if err == nil {
		t.Fatal("expected begin error")
	}
	if pool.released != 1 || pool.available != 4 {
		t.Errorf("expected connection released, got released=%d available=%d", pool.released, pool.available)
	}
}

func TestWithTx_AcquireFailure(t *testing.T) {
	pool := newFakePool(&fakeTx{})
	pool.acquireErr = errors.New("pool exhausted")

	err := WithTx(context.Background(), pool, func(ctx context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected acquire error")
	}
	if pool.released != 0 {
		t.Errorf("nothing acquired, nothing to release; got %d releases", pool.released)
	}
}

func TestWithTx_PanicRollsBackAndReleases(t *testing.T) {
	tx := &fakeTx{}
	pool := newFakePool(tx)

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = WithTx(context.Background(), pool, func(ctx context.Context) error {
			panic("handler bug")
		})
	}()

	if !tx.rolledBack {
		t.Error("expected rollback on panic")
	}
	if pool.released != 1 || pool.available != 4 {
		t.Errorf("expected connection released once, got released=%d available=%d", pool.released, pool.available)
	}
}

func TestTxFromContext_Empty(t *testing.T) {
	if TxFromContext(context.Background()) != nil {
		t.Error("expected nil transaction on bare context")
	}
}

func TestTxFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	tx := TxFromContext(ctx)
	if tx != nil {
		t.Error("expected nil when context value is wrong type")
	}
}
