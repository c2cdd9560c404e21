package billing

import (
	"time"

	"github.com/autoerp/backend/internal/domain/shared"
	"github.com/autoerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceCreatedEvent is raised when a new invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID            `json:"invoice_id"`
	InvoiceNumber string               `json:"invoice_number"`
	PartnerID     uuid.UUID            `json:"partner_id"`
	PartnerName   string               `json:"partner_name"`
	Currency      valueobject.Currency `json:"currency"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	DueDate       *time.Time           `json:"due_date,omitempty"`
}

// EventType returns the event type name
func (e *InvoiceCreatedEvent) EventType() string {
	return "InvoiceCreated"
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceCreated", "Invoice", inv.ID, inv.TenantID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		PartnerID:       inv.PartnerID,
		PartnerName:     inv.PartnerName,
		Currency:        inv.Currency,
		TotalAmount:     inv.TotalAmount,
		DueDate:         inv.DueDate,
	}
}

// InvoiceSettledEvent is raised when an invoice balance reaches zero
type InvoiceSettledEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	PartnerID     uuid.UUID       `json:"partner_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	WrittenOff    decimal.Decimal `json:"written_off"`
	SettledAt     time.Time       `json:"settled_at"`
}

// EventType returns the event type name
func (e *InvoiceSettledEvent) EventType() string {
	return "InvoiceSettled"
}

// NewInvoiceSettledEvent creates a new InvoiceSettledEvent
func NewInvoiceSettledEvent(inv *Invoice) *InvoiceSettledEvent {
	settledAt := time.Now()
	if inv.SettledAt != nil {
		settledAt = *inv.SettledAt
	}
	return &InvoiceSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceSettled", "Invoice", inv.ID, inv.TenantID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		PartnerID:       inv.PartnerID,
		TotalAmount:     inv.TotalAmount,
		WrittenOff:      inv.WrittenOff,
		SettledAt:       settledAt,
	}
}
