package domain

import "time"

// Setting is an editable text record read by the chat gateway.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EditableSettings lists the keys administrators may rewrite, with labels.
var EditableSettings = map[string]string{
	"home_text":           "Home message",
	"services_empty_text": "Empty catalog message",
	"wallet_text":         "Wallet message",
	"add_funds_text":      "Add funds instructions",
	"orders_empty_text":   "Empty orders message",
	"help_text":           "Help message",
	"support_text":        "Support message",
}

// IsEditableSetting reports whether key may be changed by the edit-text flow.
func IsEditableSetting(key string) bool {
	_, ok := EditableSettings[key]
	return ok
}
