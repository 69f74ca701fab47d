package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Client struct {
	ClientID  string    `json:"client_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service is a billable catalog entry referenced by invoice items.
type Service struct {
	ServiceID   string          `json:"service_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func ValidateClient(c Client) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(c.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	return ValidateContactEmail(c.Email)
}

func ValidateService(s Service) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if s.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidAmount)
	}
	if err := CheckScale(s.Price, LedgerScale); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	return nil
}
