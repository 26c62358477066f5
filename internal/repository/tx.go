package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// TxObserver receives the duration and outcome of every transaction.
type TxObserver func(duration time.Duration, err error)

// TxManager runs callbacks inside a single READ COMMITTED transaction.
// Row-level locks taken by the callbacks provide per-seat serialisation.
type TxManager struct {
	db       *sqlx.DB
	timeout  time.Duration
	observer TxObserver
}

// NewTxManager constructs a TxManager. A zero timeout disables the per-transaction deadline.
func NewTxManager(db *sqlx.DB, timeout time.Duration) *TxManager {
	return &TxManager{db: db, timeout: timeout}
}

// WithObserver registers a callback invoked after each transaction.
func (m *TxManager) WithObserver(observer TxObserver) *TxManager {
	m.observer = observer
	return m
}

// WithinTx executes fn in a transaction, committing when fn returns nil and
// rolling back otherwise. Errors are passed through ClassifyError.
func (m *TxManager) WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) (err error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if m.observer != nil {
			m.observer(time.Since(start), err)
		}
	}()

	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return ClassifyError(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return ClassifyError(err)
	}
	if err = tx.Commit(); err != nil {
		return ClassifyError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}
