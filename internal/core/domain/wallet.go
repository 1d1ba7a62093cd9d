package domain

import "time"

// Wallet holds an actor's spendable balance in minor currency units.
type Wallet struct {
	ActorID   string    `json:"actor_id"`
	Balance   int64     `json:"balance"` // In smallest unit (e.g., paise)
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWallet returns an empty wallet for a first-time actor.
func NewWallet(actorID string, now time.Time) *Wallet {
	return &Wallet{
		ActorID:   actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanAfford reports whether the balance covers amount.
func (w *Wallet) CanAfford(amount int64) bool {
	return w.Balance >= amount
}
