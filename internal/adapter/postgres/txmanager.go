package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"

	"github.com/heartmarshall/shop-catalog-backend/internal/domain"
)

// TxManager manages database transactions using the context pattern.
// Nested calls are NOT supported: starting a transaction inside a callback
// creates a second independent transaction, which is a bug.
type TxManager struct {
	pool       *pgxpool.Pool
	maxRetries uint64
	baseDelay  time.Duration
}

// TxOption configures a TxManager.
type TxOption func(*TxManager)

// WithSerializationRetries sets how many times RunSerializable re-runs a
// transaction aborted by a serialization failure, and the first backoff delay.
func WithSerializationRetries(maxRetries uint64, baseDelay time.Duration) TxOption {
	return func(m *TxManager) {
		m.maxRetries = maxRetries
		m.baseDelay = baseDelay
	}
}

// NewTxManager creates a new TxManager.
func NewTxManager(pool *pgxpool.Pool, opts ...TxOption) *TxManager {
	m := &TxManager{pool: pool, maxRetries: 3, baseDelay: 10 * time.Millisecond}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunRepeatableRead executes fn within a read-only Repeatable Read
// transaction, so every query inside fn sees the same snapshot.
func (m *TxManager) RunRepeatableRead(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTxWithOptions(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, fn)
}

// RunSerializable executes fn within a Serializable transaction. When the
// transaction is aborted by a serialization failure it is re-run from scratch
// with exponential backoff; once the retries are exhausted the error wraps
// domain.ErrConflict. fn must therefore be safe to call more than once.
func (m *TxManager) RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(m.maxRetries, retry.WithJitterPercent(20, retry.NewExponential(m.baseDelay)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := m.RunInTxWithOptions(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
		if IsSerializationFailure(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if IsSerializationFailure(err) {
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	}
	return err
}

// RunInTxWithOptions executes fn within a transaction started with opts.
// On success: commits.
// On error from fn: rolls back and returns the error.
// On panic from fn: rolls back and re-panics.
func (m *TxManager) RunInTxWithOptions(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) (err error) {
	tx, err := m.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(r)
		}
	}()

	if err := fn(withTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
