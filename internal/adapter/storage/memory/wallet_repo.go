// Package memory implements the storage ports in process memory. Locks are
// per record, so operations on different wallets, products or payment
// requests never wait on each other.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vending-kernel/internal/core/domain"
)

type walletEntry struct {
	mu     sync.Mutex
	wallet domain.Wallet
}

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	mu      sync.RWMutex
	wallets map[string]*walletEntry
}

// NewWalletRepo creates an empty WalletRepo.
func NewWalletRepo() *WalletRepo {
	return &WalletRepo{wallets: make(map[string]*walletEntry)}
}

func (r *WalletRepo) entry(actorID string, create bool) *walletEntry {
	r.mu.RLock()
	e := r.wallets[actorID]
	r.mu.RUnlock()
	if e != nil || !create {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e = r.wallets[actorID]; e == nil {
		e = &walletEntry{wallet: *domain.NewWallet(actorID, time.Now().UTC())}
		r.wallets[actorID] = e
	}
	return e
}

func (e *walletEntry) snapshot() *domain.Wallet {
	e.mu.Lock()
	defer e.mu.Unlock()
	w := e.wallet
	return &w
}

// Get returns the wallet or nil when the actor has none.
func (r *WalletRepo) Get(_ context.Context, actorID string) (*domain.Wallet, error) {
	e := r.entry(actorID, false)
	if e == nil {
		return nil, nil
	}
	return e.snapshot(), nil
}

// GetOrCreate returns the wallet, creating an empty one on first use.
func (r *WalletRepo) GetOrCreate(_ context.Context, actorID string) (*domain.Wallet, error) {
	return r.entry(actorID, true).snapshot(), nil
}

// Credit increases the balance and returns the new value.
func (r *WalletRepo) Credit(_ context.Context, actorID string, amount int64) (int64, error) {
	return r.entry(actorID, true).credit(amount), nil
}

func (e *walletEntry) credit(amount int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wallet.Balance += amount
	e.wallet.UpdatedAt = time.Now().UTC()
	return e.wallet.Balance
}

// Debit decreases the balance if it covers amount.
func (r *WalletRepo) Debit(_ context.Context, actorID string, amount int64) (int64, error) {
	e := r.entry(actorID, false)
	if e == nil {
		return 0, domain.ErrWalletNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.wallet.CanAfford(amount) {
		return e.wallet.Balance, domain.ErrInsufficientFunds
	}
	e.wallet.Balance -= amount
	e.wallet.UpdatedAt = time.Now().UTC()
	return e.wallet.Balance, nil
}

// SetAdmin toggles the admin flag of an existing wallet.
func (r *WalletRepo) SetAdmin(_ context.Context, actorID string, isAdmin bool) (*domain.Wallet, error) {
	e := r.entry(actorID, false)
	if e == nil {
		return nil, domain.ErrWalletNotFound
	}
	e.mu.Lock()
	e.wallet.IsAdmin = isAdmin
	e.wallet.UpdatedAt = time.Now().UTC()
	e.mu.Unlock()
	return e.snapshot(), nil
}

// List returns all wallets, oldest first.
func (r *WalletRepo) List(_ context.Context) ([]domain.Wallet, error) {
	r.mu.RLock()
	entries := make([]*walletEntry, 0, len(r.wallets))
	for _, e := range r.wallets {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]domain.Wallet, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ActorID < out[j].ActorID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ListAdminIDs returns actors whose wallet carries the admin flag.
func (r *WalletRepo) ListAdminIDs(ctx context.Context) ([]string, error) {
	wallets, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, w := range wallets {
		if w.IsAdmin {
			ids = append(ids, w.ActorID)
		}
	}
	return ids, nil
}

// Count returns the number of wallets.
func (r *WalletRepo) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.wallets)), nil
}
