package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order is the immutable receipt of a completed purchase.
type Order struct {
	ID          uuid.UUID  `json:"id"`
	ActorID     string     `json:"actor_id"`
	ProductID   uuid.UUID  `json:"product_id"`
	ProductName string     `json:"product_name"`
	Credential  Credential `json:"credential"`
	Price       int64      `json:"price"`
	CreatedAt   time.Time  `json:"created_at"`
}
