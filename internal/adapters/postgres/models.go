package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type clientModel struct {
	ClientID  string    `gorm:"column:client_id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name"`
	Email     string    `gorm:"column:email"`
	Phone     string    `gorm:"column:phone"`
	Address   string    `gorm:"column:address"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (clientModel) TableName() string { return "clients" }

type serviceModel struct {
	ServiceID   string          `gorm:"column:service_id;type:uuid;primaryKey"`
	Name        string          `gorm:"column:name"`
	Description string          `gorm:"column:description"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(14,2)"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at"`
}

func (serviceModel) TableName() string { return "services" }

type invoiceModel struct {
	InvoiceID      string             `gorm:"column:invoice_id;type:uuid;primaryKey"`
	Number         string             `gorm:"column:number"`
	ClientID       string             `gorm:"column:client_id;type:uuid"`
	InvoiceDate    time.Time          `gorm:"column:invoice_date"`
	DueDate        time.Time          `gorm:"column:due_date"`
	Status         string             `gorm:"column:status"`
	Total          decimal.Decimal    `gorm:"column:total;type:numeric(14,2)"`
	ContactEmail   string             `gorm:"column:contact_email"`
	BillingAddress string             `gorm:"column:billing_address"`
	Notes          string             `gorm:"column:notes"`
	PaymentMethod  string             `gorm:"column:payment_method"`
	PaidAt         *time.Time         `gorm:"column:paid_at"`
	CreatedAt      time.Time          `gorm:"column:created_at"`
	UpdatedAt      time.Time          `gorm:"column:updated_at"`
	Items          []invoiceItemModel `gorm:"foreignKey:InvoiceID;references:InvoiceID"`
}

func (invoiceModel) TableName() string { return "invoices" }

type invoiceItemModel struct {
	ItemID      string          `gorm:"column:item_id;type:uuid;primaryKey"`
	InvoiceID   string          `gorm:"column:invoice_id;type:uuid"`
	ServiceID   string          `gorm:"column:service_id;type:uuid"`
	Position    int             `gorm:"column:position"`
	Description string          `gorm:"column:description"`
	Quantity    int             `gorm:"column:quantity"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(14,2)"`
	Total       decimal.Decimal `gorm:"column:total;type:numeric(14,2)"`
}

func (invoiceItemModel) TableName() string { return "invoice_items" }

type paymentIntentModel struct {
	PaymentIntentID    string          `gorm:"column:payment_intent_id;type:uuid;primaryKey"`
	GatewayIntentID    string          `gorm:"column:gateway_intent_id"`
	InvoiceID          string          `gorm:"column:invoice_id;type:uuid"`
	Amount             decimal.Decimal `gorm:"column:amount;type:numeric(14,4)"`
	Currency           string          `gorm:"column:currency"`
	Status             string          `gorm:"column:status"`
	ClientSecret       string          `gorm:"column:client_secret"`
	PaymentMethod      string          `gorm:"column:payment_method"`
	PaymentMethodTypes string          `gorm:"column:payment_method_types;type:jsonb"`
	FailureReason      string          `gorm:"column:failure_reason"`
	PaidAt             *time.Time      `gorm:"column:paid_at"`
	CreatedAt          time.Time       `gorm:"column:created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at"`
}

func (paymentIntentModel) TableName() string { return "payment_intents" }

type processedEventModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	EventType   string    `gorm:"column:event_type"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (processedEventModel) TableName() string { return "processed_gateway_events" }

type outboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	FirstSeenAt    time.Time  `gorm:"column:first_seen_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (outboxModel) TableName() string { return "invoicing_outbox" }
