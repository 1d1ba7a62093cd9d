package domain

// NotificationEvent identifies what the gateway should render.
type NotificationEvent string

const (
	EventCredentialDelivered NotificationEvent = "credential.delivered"
	EventPaymentPending      NotificationEvent = "payment.pending"
	EventPaymentApproved     NotificationEvent = "payment.approved"
	EventPaymentRejected     NotificationEvent = "payment.rejected"
	EventBroadcast           NotificationEvent = "broadcast"
)

// Notification is a structured outbound message for one actor.
type Notification struct {
	Recipient    string            `json:"recipient"`
	Event        NotificationEvent `json:"event"`
	Text         string            `json:"text,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	AttachmentID string            `json:"attachment_id,omitempty"`
}
