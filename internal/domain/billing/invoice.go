package billing

import (
	"fmt"
	"time"

	"github.com/autoerp/backend/internal/domain/shared"
	"github.com/autoerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusOpen      InvoiceStatus = "OPEN"      // Unpaid, balance = total
	InvoiceStatusPartial   InvoiceStatus = "PARTIAL"   // Partially paid, 0 < balance < total
	InvoiceStatusSettled   InvoiceStatus = "SETTLED"   // Fully paid or written off, balance = 0
	InvoiceStatusReversed  InvoiceStatus = "REVERSED"  // Reversed/voided
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED" // Cancelled before any payment
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusOpen, InvoiceStatusPartial, InvoiceStatusSettled,
		InvoiceStatusReversed, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the invoice is in a terminal state
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusSettled || s == InvoiceStatusReversed || s == InvoiceStatusCancelled
}

// CanReceiveAllocation returns true if payment allocations can be applied in this status
func (s InvoiceStatus) CanReceiveAllocation() bool {
	return s == InvoiceStatusOpen || s == InvoiceStatusPartial
}

// Invoice represents an open receivable invoice aggregate root.
// The allocation engine treats it as a balance snapshot during preview and
// mutates it only inside the applier's transaction.
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber  string               `json:"invoice_number"`
	PartnerID      uuid.UUID            `json:"partner_id"`
	PartnerName    string               `json:"partner_name"`
	Currency       valueobject.Currency `json:"currency"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	Balance        decimal.Decimal      `json:"balance"`     // Remaining amount due
	WrittenOff     decimal.Decimal      `json:"written_off"` // Accumulated tolerance write-offs
	Status         InvoiceStatus        `json:"status"`
	DueDate        *time.Time           `json:"due_date"`
	SettledAt      *time.Time           `json:"settled_at"`
	ReversedAt     *time.Time           `json:"reversed_at"`
	ReversalReason string               `json:"reversal_reason"`
}

// NewInvoice creates a new open invoice
func NewInvoice(
	tenantID uuid.UUID,
	invoiceNumber string,
	partnerID uuid.UUID,
	partnerName string,
	totalAmount valueobject.Money,
	dueDate *time.Time,
) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot exceed 50 characters")
	}
	if partnerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PARTNER", "Partner ID cannot be empty")
	}
	if partnerName == "" {
		return nil, shared.NewDomainError("INVALID_PARTNER_NAME", "Partner name cannot be empty")
	}
	if totalAmount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Invoice total must be positive")
	}

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceNumber:       invoiceNumber,
		PartnerID:           partnerID,
		PartnerName:         partnerName,
		Currency:            totalAmount.Currency(),
		TotalAmount:         totalAmount.Amount(),
		Balance:             totalAmount.Amount(),
		WrittenOff:          decimal.Zero,
		Status:              InvoiceStatusOpen,
		DueDate:             dueDate,
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// ApplyAllocation reduces the invoice balance by an allocated amount plus an
// optional tolerance write-off. The combined reduction must not exceed the
// current balance; a write-off always settles the remaining balance in full.
func (inv *Invoice) ApplyAllocation(amount, writeoff decimal.Decimal) error {
	if !inv.Status.CanReceiveAllocation() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot allocate to invoice in %s status", inv.Status))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be positive")
	}
	if writeoff.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Tolerance write-off cannot be negative")
	}
	if amount.GreaterThan(inv.Balance) {
		return shared.NewDomainError("EXCEEDS_BALANCE", fmt.Sprintf("Allocation %s exceeds invoice balance %s", amount, inv.Balance))
	}
	reduction := amount.Add(writeoff)
	if reduction.GreaterThan(inv.Balance) {
		return shared.NewDomainError("EXCEEDS_BALANCE", fmt.Sprintf("Allocation plus write-off %s exceeds invoice balance %s", reduction, inv.Balance))
	}

	inv.Balance = inv.Balance.Sub(reduction)
	inv.WrittenOff = inv.WrittenOff.Add(writeoff)

	if inv.Balance.IsZero() {
		now := time.Now()
		inv.Status = InvoiceStatusSettled
		inv.SettledAt = &now
		inv.AddDomainEvent(NewInvoiceSettledEvent(inv))
	} else {
		inv.Status = InvoiceStatusPartial
	}

	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	return nil
}

// RestoreAllocation reverses a previously applied allocation, restoring the
// invoice balance. Used by corrective reversals only.
func (inv *Invoice) RestoreAllocation(amount, writeoff decimal.Decimal) error {
	if inv.Status == InvoiceStatusReversed || inv.Status == InvoiceStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot restore allocation on invoice in %s status", inv.Status))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Restored amount must be positive")
	}
	if writeoff.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Restored write-off cannot be negative")
	}

	restored := amount.Add(writeoff)
	if inv.Balance.Add(restored).GreaterThan(inv.TotalAmount) {
		return shared.NewDomainError("EXCEEDS_TOTAL", fmt.Sprintf("Restoring %s would exceed invoice total %s", restored, inv.TotalAmount))
	}

	inv.Balance = inv.Balance.Add(restored)
	inv.WrittenOff = inv.WrittenOff.Sub(writeoff)
	inv.SettledAt = nil

	if inv.Balance.Equal(inv.TotalAmount) {
		inv.Status = InvoiceStatusOpen
	} else {
		inv.Status = InvoiceStatusPartial
	}

	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	return nil
}

// Cancel cancels the invoice (only before any payment has been applied)
func (inv *Invoice) Cancel(reason string) error {
	if inv.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel invoice in %s status", inv.Status))
	}
	if !inv.Balance.Equal(inv.TotalAmount) {
		return shared.NewDomainError("HAS_PAYMENTS", "Cannot cancel invoice with existing allocations")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
	}

	inv.Status = InvoiceStatusCancelled
	inv.Balance = decimal.Zero
	inv.ReversalReason = reason
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	return nil
}

// GetTotalAmountMoney returns the invoice total as Money
func (inv *Invoice) GetTotalAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(inv.TotalAmount, inv.Currency)
	return m
}

// GetBalanceMoney returns the remaining balance as Money
func (inv *Invoice) GetBalanceMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(inv.Balance, inv.Currency)
	return m
}

// IsOpen returns true if the invoice still carries a balance
func (inv *Invoice) IsOpen() bool {
	return inv.Status.CanReceiveAllocation() && inv.Balance.GreaterThan(decimal.Zero)
}

// IsOverdue returns true if the invoice is past its due date and not settled
func (inv *Invoice) IsOverdue() bool {
	if inv.Status.IsTerminal() || inv.DueDate == nil {
		return false
	}
	return time.Now().After(*inv.DueDate)
}
