package invoices

import (
	"encoding/json"
	"time"
)

const (
	EventInvoiceCreated   = "InvoiceCreated"
	EventPaymentSubmitted = "PaymentSubmitted"
	EventStatusChanged    = "InvoiceStatusChanged"
	EventInvoiceCancelled = "InvoiceCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "order-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // invoice_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type InvoiceCreatedPayload struct {
	InvoiceID string      `json:"invoice_id"`
	Channel   Channel     `json:"channel"`
	Items     []ItemInput `json:"items"`
	Total     int64       `json:"total"`
}

type PaymentSubmittedPayload struct {
	InvoiceID string `json:"invoice_id"`
	Amount    int64  `json:"amount"`
	ProofRef  string `json:"proof_ref,omitempty"`
}

type StatusChangedPayload struct {
	InvoiceID  string  `json:"invoice_id"`
	Channel    Channel `json:"channel"`
	PrevStatus Status  `json:"prev_status,omitempty"`
	NewStatus  Status  `json:"new_status"`
	Label      string  `json:"label"` // label tampilan per channel
	Actor      string  `json:"actor"`
}

type InvoiceCancelledPayload struct {
	InvoiceID   string `json:"invoice_id"`
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelled_by"`
}
