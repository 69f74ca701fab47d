package contracts

import (
	"encoding/json"
	"time"
)

const (
	EventTypeInvoicePaid            = "invoice.paid"
	EventTypePaymentIntentCreated   = "payment_intent.created"
	EventTypePaymentIntentSucceeded = "payment_intent.succeeded"
	EventTypePaymentIntentFailed    = "payment_intent.failed"
	EventTypePaymentIntentCanceled  = "payment_intent.canceled"
	EventClassDomain                = "domain"
	EventSchemaVersion              = "v1"
	PartitionKeyPathInvoiceID       = "data.invoice_id"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	EventClass       string          `json:"event_class"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKey     string          `json:"partition_key"`
	PartitionKeyPath string          `json:"partition_key_path"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type InvoicePaidPayload struct {
	InvoiceID       string `json:"invoice_id"`
	Number          string `json:"number"`
	ClientID        string `json:"client_id"`
	Total           string `json:"total"`
	PaidAt          string `json:"paid_at"`
	Source          string `json:"source"`
	GatewayIntentID string `json:"gateway_intent_id,omitempty"`
}

type PaymentIntentPayload struct {
	PaymentIntentID string `json:"payment_intent_id"`
	GatewayIntentID string `json:"gateway_intent_id"`
	InvoiceID       string `json:"invoice_id"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
	PaymentMethod   string `json:"payment_method,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}
