package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidAmount marks a negative or zero quantity, a negative price, or a
	// charge amount that does not match the invoice total. It is a validation error.
	ErrInvalidAmount      = fmt.Errorf("%w: invalid amount", ErrInvalidInput)
	ErrConflict           = errors.New("conflict")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvoiceAlreadyPaid = errors.New("invoice already paid")
	ErrUnauthorized       = errors.New("unauthorized")
	// ErrConfiguration is raised at the point of use when a required secret is
	// absent. Operators must fix the deployment; callers must not retry.
	ErrConfiguration = errors.New("configuration error")
	// ErrGateway wraps any failed call to the payment gateway.
	ErrGateway          = errors.New("payment gateway error")
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	// ErrReconciliationMiss means a webhook referenced a record this service does not know.
	// It is acknowledged to the sender and never surfaced as a failure.
	ErrReconciliationMiss = errors.New("reconciliation miss")
)
