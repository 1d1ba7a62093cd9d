package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vending-kernel/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const walletColumns = `actor_id, balance, is_admin, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
	tx   *Transactor
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool, tx *Transactor) *WalletRepo {
	return &WalletRepo{pool: pool, tx: tx}
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	if err := row.Scan(&w.ActorID, &w.Balance, &w.IsAdmin, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return w, nil
}

// Get fetches a wallet without locking.
func (r *WalletRepo) Get(ctx context.Context, actorID string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE actor_id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, actorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

// GetOrCreate inserts an empty wallet on first use and returns the row.
func (r *WalletRepo) GetOrCreate(ctx context.Context, actorID string) (*domain.Wallet, error) {
	query := `INSERT INTO wallets (actor_id, balance, is_admin, created_at, updated_at)
		VALUES ($1, 0, FALSE, $2, $2)
		ON CONFLICT (actor_id) DO UPDATE SET actor_id = EXCLUDED.actor_id
		RETURNING ` + walletColumns

	w, err := scanWallet(r.pool.QueryRow(ctx, query, actorID, time.Now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("get or create wallet: %w", err)
	}
	return w, nil
}

// Credit adds amount in a single upsert and returns the new balance.
func (r *WalletRepo) Credit(ctx context.Context, actorID string, amount int64) (int64, error) {
	balance, err := creditWallet(ctx, r.pool, actorID, amount)
	if err != nil {
		return 0, fmt.Errorf("credit wallet: %w", err)
	}
	return balance, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func creditWallet(ctx context.Context, q queryRower, actorID string, amount int64) (int64, error) {
	query := `INSERT INTO wallets (actor_id, balance, is_admin, created_at, updated_at)
		VALUES ($1, $2, FALSE, $3, $3)
		ON CONFLICT (actor_id) DO UPDATE
		SET balance = wallets.balance + EXCLUDED.balance, updated_at = EXCLUDED.updated_at
		RETURNING balance`

	var balance int64
	err := q.QueryRow(ctx, query, actorID, amount, time.Now().UTC()).Scan(&balance)
	return balance, err
}

// Debit locks the wallet row, checks the balance and subtracts amount.
func (r *WalletRepo) Debit(ctx context.Context, actorID string, amount int64) (int64, error) {
	return withRetry(ctx, r.tx, func(tx pgx.Tx) (int64, error) {
		var balance int64
		err := tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE actor_id = $1 FOR UPDATE`, actorID).Scan(&balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, domain.ErrWalletNotFound
			}
			return 0, fmt.Errorf("lock wallet: %w", err)
		}
		if balance < amount {
			return balance, domain.ErrInsufficientFunds
		}

		err = tx.QueryRow(ctx,
			`UPDATE wallets SET balance = balance - $2, updated_at = $3 WHERE actor_id = $1 RETURNING balance`,
			actorID, amount, time.Now().UTC(),
		).Scan(&balance)
		if err != nil {
			return 0, fmt.Errorf("debit wallet: %w", err)
		}
		return balance, nil
	})
}

// SetAdmin toggles the admin flag.
func (r *WalletRepo) SetAdmin(ctx context.Context, actorID string, isAdmin bool) (*domain.Wallet, error) {
	query := `UPDATE wallets SET is_admin = $2, updated_at = $3 WHERE actor_id = $1 RETURNING ` + walletColumns

	w, err := scanWallet(r.pool.QueryRow(ctx, query, actorID, isAdmin, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("set admin: %w", err)
	}
	return w, nil
}

// List returns all wallets, oldest first.
func (r *WalletRepo) List(ctx context.Context) ([]domain.Wallet, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+walletColumns+` FROM wallets ORDER BY created_at ASC, actor_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		wallets = append(wallets, *w)
	}
	return wallets, rows.Err()
}

// ListAdminIDs returns actors flagged as administrators.
func (r *WalletRepo) ListAdminIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT actor_id FROM wallets WHERE is_admin ORDER BY actor_id`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of wallets.
func (r *WalletRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wallets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count wallets: %w", err)
	}
	return n, nil
}
