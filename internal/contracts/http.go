package contracts

import "time"

type InvoiceItemDTO struct {
	ServiceID   string `json:"service_id"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
}

type CreateInvoiceRequest struct {
	ClientID       string           `json:"client_id"`
	Number         string           `json:"number"`
	Date           time.Time        `json:"date"`
	DueDate        time.Time        `json:"due_date"`
	Status         string           `json:"status"`
	ContactEmail   string           `json:"contact_email"`
	BillingAddress string           `json:"billing_address"`
	Notes          string           `json:"notes"`
	Items          []InvoiceItemDTO `json:"items"`
}

// UpdateInvoiceRequest uses pointers so absent fields are left untouched.
// A present items array replaces the whole item set.
type UpdateInvoiceRequest struct {
	ClientID       *string           `json:"client_id"`
	Number         *string           `json:"number"`
	Date           *time.Time        `json:"date"`
	DueDate        *time.Time        `json:"due_date"`
	Status         *string           `json:"status"`
	ContactEmail   *string           `json:"contact_email"`
	BillingAddress *string           `json:"billing_address"`
	Notes          *string           `json:"notes"`
	Items          *[]InvoiceItemDTO `json:"items"`
}

type CreatePaymentIntentRequest struct {
	InvoiceID string `json:"invoice_id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

type ClientRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

type ServiceRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *string `json:"price"`
}

type WebhookAck struct {
	Received bool `json:"received"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}
