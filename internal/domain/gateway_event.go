package domain

import "time"

// EventMeta carries the envelope fields shared by every gateway notification.
type EventMeta struct {
	EventID    string
	Type       string
	OccurredAt time.Time
}

// GatewayEvent is the closed set of verified gateway notifications the reconciler
// understands. Implementations live in this package only.
type GatewayEvent interface {
	Meta() EventMeta
	gatewayEvent()
}

type PaymentSucceeded struct {
	EventMeta
	GatewayIntentID string
	// InvoiceID is the correlation id embedded at intent creation. It may be empty.
	InvoiceID       string
	PaymentMethodID string
}

type PaymentFailed struct {
	EventMeta
	GatewayIntentID string
	FailureMessage  string
}

type PaymentCanceled struct {
	EventMeta
	GatewayIntentID string
}

// UnrecognizedEvent is any verified event kind outside the recognized set.
type UnrecognizedEvent struct {
	EventMeta
}

func (e PaymentSucceeded) Meta() EventMeta  { return e.EventMeta }
func (e PaymentFailed) Meta() EventMeta     { return e.EventMeta }
func (e PaymentCanceled) Meta() EventMeta   { return e.EventMeta }
func (e UnrecognizedEvent) Meta() EventMeta { return e.EventMeta }

func (PaymentSucceeded) gatewayEvent()  {}
func (PaymentFailed) gatewayEvent()     {}
func (PaymentCanceled) gatewayEvent()   {}
func (UnrecognizedEvent) gatewayEvent() {}
