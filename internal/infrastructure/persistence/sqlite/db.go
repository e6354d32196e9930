// Package sqlite carries the unit-of-work used by the repositories: a
// transaction travels in the context and every repository call made with
// that context joins it.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/garyjia/marketplace-returns/internal/application/port"
)

type txKey struct{}

// Executor covers both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxManager implements port.TransactionManager over one SQLite handle
type TxManager struct {
	db          *sql.DB
	logger      *zap.Logger
	busyRetries int
	busyBackoff time.Duration
}

// TxOption configures a TxManager
type TxOption func(*TxManager)

// WithBusyRetry retries a unit of work that lost the write lock.
// attempts counts retries after the first try.
func WithBusyRetry(attempts int, backoff time.Duration) TxOption {
	return func(m *TxManager) {
		m.busyRetries = attempts
		m.busyBackoff = backoff
	}
}

// NewTxManager creates a transaction manager
func NewTxManager(db *sql.DB, logger *zap.Logger, opts ...TxOption) *TxManager {
	m := &TxManager{db: db, logger: logger, busyRetries: 3, busyBackoff: 20 * time.Millisecond}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithTransaction runs fn in a transaction carried by the context passed to
// it. A call made while ctx already carries one joins it. When SQLite
// reports the database busy before fn's work committed the whole unit is
// retried, so fn must not have effects outside the transaction.
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = m.run(ctx, fn)
		if err == nil || !isBusy(err) || attempt >= m.busyRetries {
			return err
		}
		m.logger.Debug("Database busy, retrying transaction", zap.Int("attempt", attempt+1))
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(m.busyBackoff * time.Duration(attempt+1)):
		}
	}
}

func (m *TxManager) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			m.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			m.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
			return errors.Join(err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ExecutorFrom returns the transaction carried by ctx, or db outside one
func ExecutorFrom(ctx context.Context, db *sql.DB) Executor {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return db
}

func txFrom(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

func isBusy(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}

var _ port.TransactionManager = (*TxManager)(nil)
