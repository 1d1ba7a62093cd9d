package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// ErrMaxRetriesExceeded is returned when every retry hit a serialization
// failure or deadlock.
var ErrMaxRetriesExceeded = errors.New("transaction failed after max retries")

// Transactor runs repository work inside pgx transactions.
type Transactor struct {
	pool       Pool
	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger
}

// NewTransactor creates a Transactor that retries serialization failures
// and deadlocks up to maxRetries times.
func NewTransactor(pool Pool, maxRetries int, log zerolog.Logger) *Transactor {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Transactor{pool: pool, maxRetries: maxRetries, backoff: 100 * time.Millisecond, log: log}
}

func runInTx[T any](ctx context.Context, t *Transactor, fn func(tx pgx.Tx) (T, error)) (T, error) {
	var zero T

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return zero, fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			t.log.Warn().Err(rbErr).Msg("failed to rollback transaction")
		}
	}()

	result, err := fn(tx)
	if err != nil {
		return zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return result, nil
}

// withRetry runs fn in a transaction, retrying on 40001 and 40P01.
func withRetry[T any](ctx context.Context, t *Transactor, fn func(tx pgx.Tx) (T, error)) (T, error) {
	var zero T

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		result, err := runInTx(ctx, t, fn)
		if err == nil {
			return result, nil
		}
		if !isRetryable(err) {
			return zero, err
		}
		if attempt == t.maxRetries {
			t.log.Error().Err(err).Int("attempts", attempt+1).Msg("transaction failed after max retries")
			return zero, fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, err)
		}

		wait := time.Duration(attempt+1) * t.backoff
		t.log.Warn().Err(err).Int("attempt", attempt+1).Dur("wait", wait).Msg("retrying transaction")

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}
	return zero, ErrMaxRetriesExceeded
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return true
	default:
		return false
	}
}
