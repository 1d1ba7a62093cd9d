package domain

// SagaState is the position of one purchase attempt in its lifecycle.
//
//	started -> debited -> withdrawn -> committed
//	debited | withdrawn -> compensated | compensation_failed
//	started -> rejected
type SagaState string

const (
	SagaStarted            SagaState = "started"
	SagaRejected           SagaState = "rejected"
	SagaDebited            SagaState = "debited"
	SagaWithdrawn          SagaState = "withdrawn"
	SagaCommitted          SagaState = "committed"
	SagaCompensated        SagaState = "compensated"
	SagaCompensationFailed SagaState = "compensation_failed"
)

var sagaTransitions = map[SagaState][]SagaState{
	SagaStarted:   {SagaDebited, SagaRejected},
	SagaDebited:   {SagaWithdrawn, SagaCompensated, SagaCompensationFailed},
	SagaWithdrawn: {SagaCommitted, SagaCompensated, SagaCompensationFailed},
}

// CanTransition reports whether the saga may move from s to next.
func (s SagaState) CanTransition(next SagaState) bool {
	for _, allowed := range sagaTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s SagaState) IsTerminal() bool {
	_, ok := sagaTransitions[s]
	return !ok
}

// HoldsFunds reports whether the actor's money is currently taken by the saga.
func (s SagaState) HoldsFunds() bool {
	return s == SagaDebited || s == SagaWithdrawn
}
