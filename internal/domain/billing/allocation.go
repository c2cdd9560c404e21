package billing

import (
	"fmt"
	"time"

	"github.com/autoerp/backend/internal/domain/shared"
	"github.com/autoerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExcessHandling classifies what happens to payment amount left over after
// all target invoices are satisfied
type ExcessHandling string

const (
	ExcessHandlingNone              ExcessHandling = "NONE"               // No excess
	ExcessHandlingToleranceWriteoff ExcessHandling = "TOLERANCE_WRITEOFF" // Excess forgiven within tolerance
	ExcessHandlingCreditBalance     ExcessHandling = "CREDIT_BALANCE"     // Excess becomes a reusable partner credit
	ExcessHandlingRefundRequired    ExcessHandling = "REFUND_REQUIRED"    // Excess must be returned to the partner
)

// IsValid checks if the excess handling value is valid
func (h ExcessHandling) IsValid() bool {
	switch h {
	case ExcessHandlingNone, ExcessHandlingToleranceWriteoff,
		ExcessHandlingCreditBalance, ExcessHandlingRefundRequired:
		return true
	}
	return false
}

// String returns the string representation of ExcessHandling
func (h ExcessHandling) String() string {
	return string(h)
}

// AllocationStatus represents the status of a persisted allocation record
type AllocationStatus string

const (
	AllocationStatusActive   AllocationStatus = "ACTIVE"   // Normal allocation record
	AllocationStatusReversed AllocationStatus = "REVERSED" // Superseded by a corrective reversal
)

// IsValid checks if the allocation status is valid
func (s AllocationStatus) IsValid() bool {
	return s == AllocationStatusActive || s == AllocationStatusReversed
}

// AllocationRequest describes a payment to distribute across a partner's
// open invoices. InvoiceIDs, when present, fixes the allocation order;
// when empty, open invoices are targeted oldest-due-date-first.
type AllocationRequest struct {
	PaymentID  uuid.UUID            `json:"payment_id"`
	PartnerID  uuid.UUID            `json:"partner_id"`
	Amount     decimal.Decimal      `json:"amount"`
	Currency   valueobject.Currency `json:"currency"`
	InvoiceIDs []uuid.UUID          `json:"invoice_ids,omitempty"`
}

// Validate checks the structural validity of the request
func (r *AllocationRequest) Validate() error {
	if r.PaymentID == uuid.Nil {
		return shared.NewDomainError("INVALID_PAYMENT", "Payment ID cannot be empty")
	}
	if r.PartnerID == uuid.Nil {
		return shared.NewDomainError("INVALID_PARTNER", "Partner ID cannot be empty")
	}
	if r.Amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if r.Currency == "" {
		return shared.NewDomainError("CURRENCY_MISMATCH", "Payment currency cannot be empty")
	}
	for _, id := range r.InvoiceIDs {
		if id == uuid.Nil {
			return shared.NewDomainError("INVALID_INVOICE", "Invoice ID cannot be empty")
		}
	}
	return nil
}

// HasExplicitTargets returns true when the request fixes the invoice order
func (r *AllocationRequest) HasExplicitTargets() bool {
	return len(r.InvoiceIDs) > 0
}

// AllocationLine is one proposed allocation against a single invoice
type AllocationLine struct {
	InvoiceID             uuid.UUID       `json:"invoice_id"`
	InvoiceNumber         string          `json:"invoice_number"`
	AllocatedAmount       decimal.Decimal `json:"allocated_amount"`
	RemainingBalanceAfter decimal.Decimal `json:"remaining_balance_after"`
	ToleranceWriteoff     decimal.Decimal `json:"tolerance_writeoff"`
}

// AllocationPreview is the full proposed distribution of one payment.
// Pure computation result; nothing is persisted until it is applied.
type AllocationPreview struct {
	PaymentID      uuid.UUID            `json:"payment_id"`
	PartnerID      uuid.UUID            `json:"partner_id"`
	Currency       valueobject.Currency `json:"currency"`
	Lines          []AllocationLine     `json:"allocations"`
	TotalAllocated decimal.Decimal      `json:"total_allocated"`
	TotalWriteoff  decimal.Decimal      `json:"total_writeoff"`
	ExcessAbsorbed decimal.Decimal      `json:"excess_absorbed"` // Payment-side portion of TotalWriteoff
	ExcessAmount   decimal.Decimal      `json:"excess_amount"`
	ExcessHandling ExcessHandling       `json:"excess_handling"`
}

// PaymentMoney reconstructs the payment amount this preview accounts for:
// allocated plus excess-absorbed write-off plus unabsorbed excess.
// Shortfall write-offs are forgiven debt, not payment money, and are
// excluded from the sum.
func (p *AllocationPreview) PaymentMoney() decimal.Decimal {
	return p.TotalAllocated.Add(p.ExcessAbsorbed).Add(p.ExcessAmount)
}

// PaymentAllocation is the persisted, immutable record of one allocation
// line. Corrections are new reversing records, never edits.
type PaymentAllocation struct {
	shared.TenantAggregateRoot
	PaymentID         uuid.UUID            `json:"payment_id"`
	InvoiceID         uuid.UUID            `json:"invoice_id"`
	InvoiceNumber     string               `json:"invoice_number"`
	PartnerID         uuid.UUID            `json:"partner_id"`
	Currency          valueobject.Currency `json:"currency"`
	Amount            decimal.Decimal      `json:"amount"`
	ToleranceWriteoff decimal.Decimal      `json:"tolerance_writeoff"`
	Status            AllocationStatus     `json:"status"`
	ReversalOfID      *uuid.UUID           `json:"reversal_of_id,omitempty"` // Set on corrective records
	ReversedAt        *time.Time           `json:"reversed_at,omitempty"`
	ReversalReason    string               `json:"reversal_reason,omitempty"`
}

// NewPaymentAllocation creates an allocation record from an accepted line
func NewPaymentAllocation(
	tenantID uuid.UUID,
	paymentID uuid.UUID,
	partnerID uuid.UUID,
	currency valueobject.Currency,
	line AllocationLine,
) (*PaymentAllocation, error) {
	if paymentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PAYMENT", "Payment ID cannot be empty")
	}
	if line.InvoiceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice ID cannot be empty")
	}
	if line.AllocatedAmount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Allocated amount must be positive")
	}
	if line.ToleranceWriteoff.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Tolerance write-off cannot be negative")
	}

	alloc := &PaymentAllocation{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		PaymentID:           paymentID,
		InvoiceID:           line.InvoiceID,
		InvoiceNumber:       line.InvoiceNumber,
		PartnerID:           partnerID,
		Currency:            currency,
		Amount:              line.AllocatedAmount,
		ToleranceWriteoff:   line.ToleranceWriteoff,
		Status:              AllocationStatusActive,
	}

	alloc.AddDomainEvent(NewAllocationAppliedEvent(alloc))

	return alloc, nil
}

// Reverse marks this record reversed and produces the corrective
// negative-amount record. The original is never edited beyond its status.
func (a *PaymentAllocation) Reverse(reason string) (*PaymentAllocation, error) {
	if a.Status == AllocationStatusReversed {
		return nil, shared.NewDomainError("INVALID_STATE", "Allocation has already been reversed")
	}
	if a.ReversalOfID != nil {
		return nil, shared.NewDomainError("INVALID_STATE", "A corrective record cannot be reversed")
	}
	if reason == "" {
		return nil, shared.NewDomainError("INVALID_REASON", "Reversal reason is required")
	}

	now := time.Now()
	a.Status = AllocationStatusReversed
	a.ReversedAt = &now
	a.ReversalReason = reason
	a.UpdatedAt = now
	a.IncrementVersion()

	originalID := a.ID
	corrective := &PaymentAllocation{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(a.TenantID),
		PaymentID:           a.PaymentID,
		InvoiceID:           a.InvoiceID,
		InvoiceNumber:       a.InvoiceNumber,
		PartnerID:           a.PartnerID,
		Currency:            a.Currency,
		Amount:              a.Amount.Neg(),
		ToleranceWriteoff:   a.ToleranceWriteoff.Neg(),
		Status:              AllocationStatusActive,
		ReversalOfID:        &originalID,
	}

	a.AddDomainEvent(NewAllocationReversedEvent(a, corrective.ID))

	return corrective, nil
}

// IsReversal returns true if this is a corrective record
func (a *PaymentAllocation) IsReversal() bool {
	return a.ReversalOfID != nil
}

// GetAmountMoney returns the allocated amount as Money
func (a *PaymentAllocation) GetAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(a.Amount, a.Currency)
	return m
}

// CreditStatus represents the lifecycle of a partner credit
type CreditStatus string

const (
	CreditStatusAvailable CreditStatus = "AVAILABLE" // Credit can be consumed
	CreditStatusConsumed  CreditStatus = "CONSUMED"  // Credit has been used up
	CreditStatusRefunded  CreditStatus = "REFUNDED"  // Credit was paid back out
)

// IsValid checks if the credit status is valid
func (s CreditStatus) IsValid() bool {
	return s == CreditStatusAvailable || s == CreditStatusConsumed || s == CreditStatusRefunded
}

// PartnerCredit is a reusable credit created when payment excess exceeds
// tolerance and the excess policy resolves to CREDIT_BALANCE.
type PartnerCredit struct {
	shared.TenantAggregateRoot
	PartnerID  uuid.UUID            `json:"partner_id"`
	PaymentID  uuid.UUID            `json:"payment_id"`
	Currency   valueobject.Currency `json:"currency"`
	Amount     decimal.Decimal      `json:"amount"`
	Status     CreditStatus         `json:"status"`
	ConsumedAt *time.Time           `json:"consumed_at,omitempty"`
	Remark     string               `json:"remark,omitempty"`
}

// NewPartnerCredit creates a partner credit from excess payment
func NewPartnerCredit(tenantID, partnerID, paymentID uuid.UUID, amount valueobject.Money, remark string) (*PartnerCredit, error) {
	if partnerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PARTNER", "Partner ID cannot be empty")
	}
	if paymentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PAYMENT", "Payment ID cannot be empty")
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Credit amount must be positive")
	}

	return &PartnerCredit{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		PartnerID:           partnerID,
		PaymentID:           paymentID,
		Currency:            amount.Currency(),
		Amount:              amount.Amount(),
		Status:              CreditStatusAvailable,
		Remark:              remark,
	}, nil
}

// Consume marks the credit as used
func (c *PartnerCredit) Consume() error {
	if c.Status != CreditStatusAvailable {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot consume credit in %s status", c.Status))
	}
	now := time.Now()
	c.Status = CreditStatusConsumed
	c.ConsumedAt = &now
	c.UpdatedAt = now
	c.IncrementVersion()
	return nil
}
