package billing

import (
	"github.com/autoerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationAppliedEvent is raised when an allocation record is written
type AllocationAppliedEvent struct {
	shared.BaseDomainEvent
	AllocationID      uuid.UUID       `json:"allocation_id"`
	PaymentID         uuid.UUID       `json:"payment_id"`
	InvoiceID         uuid.UUID       `json:"invoice_id"`
	InvoiceNumber     string          `json:"invoice_number"`
	PartnerID         uuid.UUID       `json:"partner_id"`
	Amount            decimal.Decimal `json:"amount"`
	ToleranceWriteoff decimal.Decimal `json:"tolerance_writeoff"`
}

// EventType returns the event type name
func (e *AllocationAppliedEvent) EventType() string {
	return "AllocationApplied"
}

// NewAllocationAppliedEvent creates a new AllocationAppliedEvent
func NewAllocationAppliedEvent(a *PaymentAllocation) *AllocationAppliedEvent {
	return &AllocationAppliedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent("AllocationApplied", "PaymentAllocation", a.ID, a.TenantID),
		AllocationID:      a.ID,
		PaymentID:         a.PaymentID,
		InvoiceID:         a.InvoiceID,
		InvoiceNumber:     a.InvoiceNumber,
		PartnerID:         a.PartnerID,
		Amount:            a.Amount,
		ToleranceWriteoff: a.ToleranceWriteoff,
	}
}

// AllocationReversedEvent is raised when an allocation is reversed by a
// corrective record
type AllocationReversedEvent struct {
	shared.BaseDomainEvent
	AllocationID   uuid.UUID       `json:"allocation_id"`
	CorrectiveID   uuid.UUID       `json:"corrective_id"`
	PaymentID      uuid.UUID       `json:"payment_id"`
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	Amount         decimal.Decimal `json:"amount"`
	ReversalReason string          `json:"reversal_reason"`
}

// EventType returns the event type name
func (e *AllocationReversedEvent) EventType() string {
	return "AllocationReversed"
}

// NewAllocationReversedEvent creates a new AllocationReversedEvent
func NewAllocationReversedEvent(a *PaymentAllocation, correctiveID uuid.UUID) *AllocationReversedEvent {
	return &AllocationReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("AllocationReversed", "PaymentAllocation", a.ID, a.TenantID),
		AllocationID:    a.ID,
		CorrectiveID:    correctiveID,
		PaymentID:       a.PaymentID,
		InvoiceID:       a.InvoiceID,
		Amount:          a.Amount,
		ReversalReason:  a.ReversalReason,
	}
}
