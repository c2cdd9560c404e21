package billing

import (
	"fmt"
	"sort"

	"github.com/autoerp/backend/internal/domain/shared"
	"github.com/autoerp/backend/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderingStrategyType defines how target invoices are ordered
type OrderingStrategyType string

const (
	OrderingStrategyTypeExplicit  OrderingStrategyType = "EXPLICIT"   // Caller-supplied literal order
	OrderingStrategyTypeOldestDue OrderingStrategyType = "OLDEST_DUE" // Oldest due date first
)

// IsValid checks if the strategy type is valid
func (t OrderingStrategyType) IsValid() bool {
	return t == OrderingStrategyTypeExplicit || t == OrderingStrategyTypeOldestDue
}

// String returns the string representation
func (t OrderingStrategyType) String() string {
	return string(t)
}

// InvoiceOrderingStrategy selects and orders the invoices a payment targets
type InvoiceOrderingStrategy interface {
	strategy.Strategy
	// StrategyType returns the ordering strategy type
	StrategyType() OrderingStrategyType
	// Order returns the target invoices in allocation order
	Order(request *AllocationRequest, openInvoices []Invoice) ([]Invoice, error)
}

// ExplicitOrderStrategy allocates to the invoices named in the request,
// in their literal order
type ExplicitOrderStrategy struct {
	strategy.BaseStrategy
}

// NewExplicitOrderStrategy creates a new explicit ordering strategy
func NewExplicitOrderStrategy() *ExplicitOrderStrategy {
	return &ExplicitOrderStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"explicit_order",
			strategy.StrategyTypeOrdering,
			"Allocates to the requested invoices in their literal order",
		),
	}
}

// StrategyType returns the ordering strategy type
func (s *ExplicitOrderStrategy) StrategyType() OrderingStrategyType {
	return OrderingStrategyTypeExplicit
}

// Order resolves the requested invoice IDs against the open-invoice snapshot,
// preserving the requested order
func (s *ExplicitOrderStrategy) Order(request *AllocationRequest, openInvoices []Invoice) ([]Invoice, error) {
	byID := make(map[uuid.UUID]*Invoice, len(openInvoices))
	for i := range openInvoices {
		byID[openInvoices[i].ID] = &openInvoices[i]
	}

	targets := make([]Invoice, 0, len(request.InvoiceIDs))
	for _, id := range request.InvoiceIDs {
		inv, ok := byID[id]
		if !ok {
			return nil, shared.NewDomainError("NOT_FOUND", fmt.Sprintf("Invoice %s is not open for partner %s", id, request.PartnerID))
		}
		if !inv.IsOpen() {
			return nil, shared.NewDomainError("NOT_FOUND", fmt.Sprintf("Invoice %s has no open balance", inv.InvoiceNumber))
		}
		targets = append(targets, *inv)
	}
	return targets, nil
}

// OldestDueFirstStrategy selects all open invoices ordered by due date
// ascending, with deterministic tie-breaking
type OldestDueFirstStrategy struct {
	strategy.BaseStrategy
}

// NewOldestDueFirstStrategy creates a new oldest-due-first ordering strategy
func NewOldestDueFirstStrategy() *OldestDueFirstStrategy {
	return &OldestDueFirstStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"oldest_due_first",
			strategy.StrategyTypeOrdering,
			"Allocates to open invoices oldest due date first, ties broken by invoice number then ID",
		),
	}
}

// StrategyType returns the ordering strategy type
func (s *OldestDueFirstStrategy) StrategyType() OrderingStrategyType {
	return OrderingStrategyTypeOldestDue
}

// Order returns all open invoices oldest-due-first. Invoices without a due
// date sort last.
func (s *OldestDueFirstStrategy) Order(_ *AllocationRequest, openInvoices []Invoice) ([]Invoice, error) {
	targets := make([]Invoice, 0, len(openInvoices))
	for _, inv := range openInvoices {
		if inv.IsOpen() {
			targets = append(targets, inv)
		}
	}

	sort.Slice(targets, func(i, j int) bool {
		di, dj := targets[i].DueDate, targets[j].DueDate
		if di != nil && dj != nil && !di.Equal(*dj) {
			return di.Before(*dj)
		}
		if (di == nil) != (dj == nil) {
			return di != nil
		}
		if targets[i].InvoiceNumber != targets[j].InvoiceNumber {
			return targets[i].InvoiceNumber < targets[j].InvoiceNumber
		}
		return targets[i].ID.String() < targets[j].ID.String()
	})

	return targets, nil
}

// OrderingStrategyFactory creates invoice ordering strategies
type OrderingStrategyFactory struct{}

// NewOrderingStrategyFactory creates a new factory
func NewOrderingStrategyFactory() *OrderingStrategyFactory {
	return &OrderingStrategyFactory{}
}

// ForRequest returns the ordering strategy implied by the request
func (f *OrderingStrategyFactory) ForRequest(request *AllocationRequest) InvoiceOrderingStrategy {
	if request.HasExplicitTargets() {
		return NewExplicitOrderStrategy()
	}
	return NewOldestDueFirstStrategy()
}

// AllocationProposer computes a proposed distribution of a payment across a
// partner's open invoices. Pure computation over snapshots; safe to call
// repeatedly and discard.
type AllocationProposer struct {
	strategies *OrderingStrategyFactory
}

// NewAllocationProposer creates a new allocation proposer
func NewAllocationProposer() *AllocationProposer {
	return &AllocationProposer{
		strategies: NewOrderingStrategyFactory(),
	}
}

// Propose computes the allocation preview for a payment request.
// Walks the ordered targets allocating min(remaining, balance); a shortfall
// left on a partially covered invoice is absorbed into the line's write-off
// when it fits the tolerance cap, and leftover payment within the last
// line's cap is absorbed the same way before the excess is classified.
func (p *AllocationProposer) Propose(
	request *AllocationRequest,
	tolerance *EffectiveTolerance,
	openInvoices []Invoice,
	policy ExcessPolicy,
) (*AllocationPreview, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	if tolerance == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Tolerance settings are required for allocation")
	}

	targets, err := p.strategies.ForRequest(request).Order(request, openInvoices)
	if err != nil {
		return nil, err
	}
	for _, inv := range targets {
		if inv.Currency != request.Currency {
			return nil, shared.NewDomainError("CURRENCY_MISMATCH",
				fmt.Sprintf("Invoice %s is in %s but payment is in %s", inv.InvoiceNumber, inv.Currency, request.Currency))
		}
	}

	lines := make([]AllocationLine, 0, len(targets))
	remaining := request.Amount
	totalAllocated := decimal.Zero
	totalWriteoff := decimal.Zero
	targeted := make(map[uuid.UUID]bool, len(targets))

	for _, inv := range targets {
		if remaining.IsZero() {
			break
		}
		targeted[inv.ID] = true

		allocated := decimal.Min(remaining, inv.Balance)
		balanceAfter := inv.Balance.Sub(allocated)
		writeoff := decimal.Zero

		remaining = remaining.Sub(allocated)

		// Shortfall absorption: the payment ran out on this invoice but the
		// uncovered residual fits the tolerance cap, so the invoice is
		// settled and the residual forgiven.
		if remaining.IsZero() && balanceAfter.GreaterThan(decimal.Zero) {
			if balanceAfter.LessThanOrEqual(tolerance.CapFor(inv.Balance)) {
				writeoff = balanceAfter
				balanceAfter = decimal.Zero
			}
		}

		lines = append(lines, AllocationLine{
			InvoiceID:             inv.ID,
			InvoiceNumber:         inv.InvoiceNumber,
			AllocatedAmount:       allocated,
			RemainingBalanceAfter: balanceAfter,
			ToleranceWriteoff:     writeoff,
		})
		totalAllocated = totalAllocated.Add(allocated)
		totalWriteoff = totalWriteoff.Add(writeoff)
	}

	// Excess absorption: leftover payment small enough to fit the last
	// allocated invoice's remaining tolerance allowance is forgiven on that
	// line instead of being classified as excess.
	excess := remaining
	excessAbsorbed := decimal.Zero
	if excess.GreaterThan(decimal.Zero) && len(lines) > 0 {
		last := &lines[len(lines)-1]
		allowance := tolerance.CapFor(targets[len(lines)-1].Balance).Sub(last.ToleranceWriteoff)
		if excess.LessThanOrEqual(allowance) {
			last.ToleranceWriteoff = last.ToleranceWriteoff.Add(excess)
			totalWriteoff = totalWriteoff.Add(excess)
			excessAbsorbed = excess
			excess = decimal.Zero
		}
	}

	hasOtherOpen := false
	for _, inv := range openInvoices {
		if !targeted[inv.ID] && inv.IsOpen() {
			hasOtherOpen = true
			break
		}
	}

	return &AllocationPreview{
		PaymentID:      request.PaymentID,
		PartnerID:      request.PartnerID,
		Currency:       request.Currency,
		Lines:          lines,
		TotalAllocated: totalAllocated,
		TotalWriteoff:  totalWriteoff,
		ExcessAbsorbed: excessAbsorbed,
		ExcessAmount:   excess,
		ExcessHandling: ClassifyExcess(excess, tolerance, hasOtherOpen, policy),
	}, nil
}
