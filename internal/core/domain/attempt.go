package domain

import "github.com/google/uuid"

// AttemptStatus tracks a claimed purchase attempt.
type AttemptStatus string

const (
	AttemptInFlight  AttemptStatus = "in_flight"
	AttemptCompleted AttemptStatus = "completed"
)

// AttemptRecord is the cached terminal response for a purchase attempt.
// Exactly one of OrderID or ErrorCode is set once Status is completed. The
// order itself is reloaded from the order repository so the delivered
// credential never sits in the cache.
type AttemptRecord struct {
	Status       AttemptStatus `json:"status"`
	OrderID      uuid.UUID     `json:"order_id,omitempty"`
	ErrorCode    string        `json:"error_code,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	HTTPStatus   int           `json:"http_status,omitempty"`
}

// BuildPurchaseAttemptKey scopes a caller-supplied attempt id to its actor.
func BuildPurchaseAttemptKey(actorID, attemptID string) string {
	return actorID + ":purchase:" + attemptID
}
