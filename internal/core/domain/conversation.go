package domain

import "time"

// FlowKind names a multi-step structured-input flow.
type FlowKind string

const (
	FlowAddProduct    FlowKind = "add-product"
	FlowAddStock      FlowKind = "add-stock"
	FlowUpdatePrice   FlowKind = "update-price"
	FlowAddBalance    FlowKind = "add-balance"
	FlowBroadcast     FlowKind = "broadcast"
	FlowEditText      FlowKind = "edit-text"
	FlowSubmitPayment FlowKind = "submit-payment"
)

// FlowStep is a non-terminal position inside a flow.
type FlowStep string

const (
	StepAwaitingProductDetails FlowStep = "awaiting-product-details"
	StepAwaitingProductID      FlowStep = "awaiting-product-id"
	StepAwaitingCredentials    FlowStep = "awaiting-credentials"
	StepAwaitingPriceUpdate    FlowStep = "awaiting-price-update"
	StepAwaitingBalanceGrant   FlowStep = "awaiting-balance-grant"
	StepAwaitingBroadcast      FlowStep = "awaiting-broadcast-message"
	StepAwaitingSettingText    FlowStep = "awaiting-setting-text"
	StepAwaitingAmount         FlowStep = "awaiting-amount"
	StepAwaitingTransactionRef FlowStep = "awaiting-transaction-reference"
	StepAwaitingEvidence       FlowStep = "awaiting-evidence-or-skip"
)

// flowSteps lists each flow's steps in order. The step after the last one
// is the terminal kernel call.
var flowSteps = map[FlowKind][]FlowStep{
	FlowAddProduct:    {StepAwaitingProductDetails},
	FlowAddStock:      {StepAwaitingProductID, StepAwaitingCredentials},
	FlowUpdatePrice:   {StepAwaitingPriceUpdate},
	FlowAddBalance:    {StepAwaitingBalanceGrant},
	FlowBroadcast:     {StepAwaitingBroadcast},
	FlowEditText:      {StepAwaitingSettingText},
	FlowSubmitPayment: {StepAwaitingAmount, StepAwaitingTransactionRef, StepAwaitingEvidence},
}

// Valid reports whether k is a known flow.
func (k FlowKind) Valid() bool {
	_, ok := flowSteps[k]
	return ok
}

// RequiresPrivilege reports whether only administrators may run the flow.
func (k FlowKind) RequiresPrivilege() bool {
	return k != FlowSubmitPayment
}

// FirstStep returns the step a freshly started flow waits on.
func (k FlowKind) FirstStep() FlowStep {
	return flowSteps[k][0]
}

// NextStep returns the step after cur. ok is false when cur is the last
// step, meaning the next accepted input completes the flow.
func (k FlowKind) NextStep(cur FlowStep) (next FlowStep, ok bool) {
	steps := flowSteps[k]
	for i, s := range steps {
		if s == cur && i+1 < len(steps) {
			return steps[i+1], true
		}
	}
	return "", false
}

// FlowFields accumulates parsed input across steps.
type FlowFields struct {
	ProductID      string `json:"product_id,omitempty"`
	Amount         int64  `json:"amount,omitempty"`
	TransactionRef string `json:"transaction_ref,omitempty"`
	SettingKey     string `json:"setting_key,omitempty"`
}

// ConversationState is the single active flow of one actor.
// Revision changes on every write and is used for compare-and-swap.
type ConversationState struct {
	ActorID   string     `json:"actor_id"`
	Flow      FlowKind   `json:"flow"`
	Step      FlowStep   `json:"step"`
	Fields    FlowFields `json:"fields"`
	Revision  string     `json:"revision"`
	StartedAt time.Time  `json:"started_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewConversationState starts flow for actorID at its first step.
func NewConversationState(actorID string, flow FlowKind, now time.Time) *ConversationState {
	return &ConversationState{
		ActorID:   actorID,
		Flow:      flow,
		Step:      flow.FirstStep(),
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy that can be mutated without touching s.
func (s *ConversationState) Clone() *ConversationState {
	c := *s
	return &c
}

// InputKind distinguishes the shapes of conversational input.
type InputKind string

const (
	InputText       InputKind = "text"
	InputAttachment InputKind = "attachment"
	InputSkip       InputKind = "skip"
	InputCancel     InputKind = "cancel"
)

// ConversationInput is one message from the actor.
type ConversationInput struct {
	Kind         InputKind `json:"kind"`
	Text         string    `json:"text,omitempty"`
	AttachmentID string    `json:"attachment_id,omitempty"`
}
