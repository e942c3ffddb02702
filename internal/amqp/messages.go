package amqp

import (
	"encoding/json"
	"time"

	"budgeter/internal/core"
)

// LedgerChangeMessage announces a transaction or budget mutation made by an
// external producer (importer, mobile app) writing to the shared ledger.
// The worker relays it onto the in-process bus.
type LedgerChangeMessage struct {
	Kind            string    `json:"kind"` // "transaction" | "budget"
	ChangeType      string    `json:"change_type"`
	TransactionID   int64     `json:"transaction_id,omitempty"`
	BudgetID        int64     `json:"budget_id,omitempty"`
	CategoryID      int64     `json:"category_id"`
	AmountCents     int64     `json:"amount_cents"`
	PrevAmountCents *int64    `json:"prev_amount_cents,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangeMessageFromJSON creates a message from JSON bytes
func LedgerChangeMessageFromJSON(data []byte) (*LedgerChangeMessage, error) {
	var msg LedgerChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AlertsUpdatedMessage carries freshly evaluated alerts for one category to
// out-of-process listeners (push gateways, dashboards).
type AlertsUpdatedMessage struct {
	CategoryID int64              `json:"category_id"`
	Alerts     []core.BudgetAlert `json:"alerts"`
	Timestamp  time.Time          `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m *AlertsUpdatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
