package billing

import (
	"context"
	"time"

	"github.com/autoerp/backend/internal/domain/billing"
	"github.com/autoerp/backend/internal/domain/shared"
	"github.com/autoerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ToleranceCache caches resolved tolerance settings per company.
// Implementations live in infrastructure/cache; a nil cache disables caching.
type ToleranceCache interface {
	// Get returns the cached effective tolerance for a company, if present
	Get(ctx context.Context, companyID uuid.UUID) (*billing.EffectiveTolerance, bool)
	// Set stores the resolved tolerance for a company
	Set(ctx context.Context, companyID uuid.UUID, tolerance *billing.EffectiveTolerance)
	// Invalidate drops the cached entry for a company
	Invalidate(ctx context.Context, companyID uuid.UUID)
}

// SmartPaymentService provides the payment allocation application operations:
// tolerance resolution, allocation preview, atomic apply, and the
// surrounding invoice/allocation/credit surface.
type SmartPaymentService struct {
	companyRepo    billing.CompanyRepository
	invoiceRepo    billing.InvoiceRepository
	allocationRepo billing.PaymentAllocationRepository
	toleranceRepo  billing.ToleranceSettingRepository
	creditRepo     billing.PartnerCreditRepository
	uow            billing.AllocationUnitOfWork
	proposer       *billing.AllocationProposer
	cache          ToleranceCache
	tracer         trace.Tracer
}

// SmartPaymentServiceOption is a functional option for configuring SmartPaymentService
type SmartPaymentServiceOption func(*SmartPaymentService)

// WithToleranceCache enables tolerance settings caching
func WithToleranceCache(cache ToleranceCache) SmartPaymentServiceOption {
	return func(s *SmartPaymentService) {
		s.cache = cache
	}
}

// NewSmartPaymentService creates a new SmartPaymentService
func NewSmartPaymentService(
	companyRepo billing.CompanyRepository,
	invoiceRepo billing.InvoiceRepository,
	allocationRepo billing.PaymentAllocationRepository,
	toleranceRepo billing.ToleranceSettingRepository,
	creditRepo billing.PartnerCreditRepository,
	uow billing.AllocationUnitOfWork,
	opts ...SmartPaymentServiceOption,
) *SmartPaymentService {
	s := &SmartPaymentService{
		companyRepo:    companyRepo,
		invoiceRepo:    invoiceRepo,
		allocationRepo: allocationRepo,
		toleranceRepo:  toleranceRepo,
		creditRepo:     creditRepo,
		uow:            uow,
		proposer:       billing.NewAllocationProposer(),
		tracer:         otel.Tracer("application/billing"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VerifyToleranceConfiguration ensures the mandatory system default exists.
// Called at startup; a missing or incomplete system row is fatal.
func (s *SmartPaymentService) VerifyToleranceConfiguration(ctx context.Context) error {
	system, err := s.toleranceRepo.FindSystemDefault(ctx)
	if err != nil {
		return err
	}
	_, err = billing.ResolveTolerance(nil, nil, system)
	return err
}

// ===================== Tolerance Settings =====================

// ToleranceSettingsResponse represents resolved tolerance settings in API responses
type ToleranceSettingsResponse struct {
	MaxWriteoffAbsolute string `json:"max_writeoff_absolute"`
	MaxWriteoffPercent  string `json:"max_writeoff_percent"`
	AbsoluteScope       string `json:"absolute_scope"`
	PercentScope        string `json:"percent_scope"`
}

func toToleranceResponse(t *billing.EffectiveTolerance) *ToleranceSettingsResponse {
	return &ToleranceSettingsResponse{
		MaxWriteoffAbsolute: t.MaxWriteoffAbsolute.StringFixed(valueobject.AmountScale),
		MaxWriteoffPercent:  t.MaxWriteoffPercent.StringFixed(valueobject.AmountScale),
		AbsoluteScope:       t.AbsoluteScope.String(),
		PercentScope:        t.PercentScope.String(),
	}
}

// resolveTolerance resolves the effective tolerance for a company through the
// company → country → system precedence chain, consulting the cache first.
func (s *SmartPaymentService) resolveTolerance(ctx context.Context, company *billing.Company) (*billing.EffectiveTolerance, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, company.ID); ok {
			return cached, nil
		}
	}

	companyRow, err := s.toleranceRepo.FindByCompany(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	countryRow, err := s.toleranceRepo.FindByCountry(ctx, company.CountryCode)
	if err != nil {
		return nil, err
	}
	systemRow, err := s.toleranceRepo.FindSystemDefault(ctx)
	if err != nil {
		return nil, err
	}

	effective, err := billing.ResolveTolerance(companyRow, countryRow, systemRow)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, company.ID, effective)
	}
	return effective, nil
}

// GetToleranceSettings returns the effective tolerance settings for a company
func (s *SmartPaymentService) GetToleranceSettings(ctx context.Context, companyID uuid.UUID) (*ToleranceSettingsResponse, error) {
	company, err := s.companyRepo.FindByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	effective, err := s.resolveTolerance(ctx, company)
	if err != nil {
		return nil, err
	}
	return toToleranceResponse(effective), nil
}

// UpdateToleranceSettingsRequest carries a company-scope tolerance override
type UpdateToleranceSettingsRequest struct {
	MaxWriteoffAbsolute *string `json:"max_writeoff_absolute"`
	MaxWriteoffPercent  *string `json:"max_writeoff_percent"`
}

// UpdateToleranceSettings upserts the company-scope tolerance override and
// invalidates the cached resolution
func (s *SmartPaymentService) UpdateToleranceSettings(ctx context.Context, companyID uuid.UUID, req UpdateToleranceSettingsRequest) (*ToleranceSettingsResponse, error) {
	company, err := s.companyRepo.FindByID(ctx, companyID)
	if err != nil {
		return nil, err
	}

	absolute, err := parseOptionalAmount(req.MaxWriteoffAbsolute)
	if err != nil {
		return nil, err
	}
	percent, err := parseOptionalAmount(req.MaxWriteoffPercent)
	if err != nil {
		return nil, err
	}

	existing, err := s.toleranceRepo.FindByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := existing.UpdateCaps(absolute, percent); err != nil {
			return nil, err
		}
	} else {
		existing, err = billing.NewToleranceSetting(billing.ToleranceScopeCompany, &companyID, "", absolute, percent)
		if err != nil {
			return nil, err
		}
	}
	if err := s.toleranceRepo.Save(ctx, existing); err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, companyID)
	}

	effective, err := s.resolveTolerance(ctx, company)
	if err != nil {
		return nil, err
	}
	return toToleranceResponse(effective), nil
}

func parseOptionalAmount(v *string) (*decimal.Decimal, error) {
	if v == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*v)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Amount is not a valid decimal: "+*v)
	}
	return &d, nil
}

// ===================== Preview =====================

// PreviewAllocationRequest is the preview input with amounts as decimal strings
type PreviewAllocationRequest struct {
	PaymentID  uuid.UUID   `json:"payment_id" binding:"required"`
	PartnerID  uuid.UUID   `json:"partner_id" binding:"required"`
	Amount     string      `json:"amount" binding:"required,amount"`
	Currency   string      `json:"currency" binding:"required,oneof=EUR USD GBP CHF PLN CZK"`
	InvoiceIDs []uuid.UUID `json:"invoice_ids"`
}

// AllocationLineResponse is one proposed line with string amounts
type AllocationLineResponse struct {
	InvoiceID             uuid.UUID `json:"invoice_id"`
	InvoiceNumber         string    `json:"invoice_number"`
	AllocatedAmount       string    `json:"allocated_amount"`
	RemainingBalanceAfter string    `json:"remaining_balance_after"`
	ToleranceWriteoff     string    `json:"tolerance_writeoff"`
}

// AllocationPreviewResponse is the proposed distribution with string amounts.
// It round-trips back in the apply request.
type AllocationPreviewResponse struct {
	PaymentID      uuid.UUID                `json:"payment_id"`
	PartnerID      uuid.UUID                `json:"partner_id"`
	Currency       string                   `json:"currency"`
	Allocations    []AllocationLineResponse `json:"allocations"`
	TotalAllocated string                   `json:"total_allocated"`
	TotalWriteoff  string                   `json:"total_writeoff"`
	ExcessAbsorbed string                   `json:"excess_absorbed"`
	ExcessAmount   string                   `json:"excess_amount"`
	ExcessHandling string                   `json:"excess_handling"`
}

func toPreviewResponse(p *billing.AllocationPreview) *AllocationPreviewResponse {
	lines := make([]AllocationLineResponse, 0, len(p.Lines))
	for _, l := range p.Lines {
		lines = append(lines, AllocationLineResponse{
			InvoiceID:             l.InvoiceID,
			InvoiceNumber:         l.InvoiceNumber,
			AllocatedAmount:       l.AllocatedAmount.StringFixed(valueobject.AmountScale),
			RemainingBalanceAfter: l.RemainingBalanceAfter.StringFixed(valueobject.AmountScale),
			ToleranceWriteoff:     l.ToleranceWriteoff.StringFixed(valueobject.AmountScale),
		})
	}
	return &AllocationPreviewResponse{
		PaymentID:      p.PaymentID,
		PartnerID:      p.PartnerID,
		Currency:       string(p.Currency),
		Allocations:    lines,
		TotalAllocated: p.TotalAllocated.StringFixed(valueobject.AmountScale),
		TotalWriteoff:  p.TotalWriteoff.StringFixed(valueobject.AmountScale),
		ExcessAbsorbed: p.ExcessAbsorbed.StringFixed(valueobject.AmountScale),
		ExcessAmount:   p.ExcessAmount.StringFixed(valueobject.AmountScale),
		ExcessHandling: p.ExcessHandling.String(),
	}
}

func (r *AllocationPreviewResponse) toDomain() (*billing.AllocationPreview, error) {
	lines := make([]billing.AllocationLine, 0, len(r.Allocations))
	for _, l := range r.Allocations {
		allocated, err := parseAmount(l.AllocatedAmount)
		if err != nil {
			return nil, err
		}
		after, err := parseAmount(l.RemainingBalanceAfter)
		if err != nil {
			return nil, err
		}
		writeoff, err := parseAmount(l.ToleranceWriteoff)
		if err != nil {
			return nil, err
		}
		lines = append(lines, billing.AllocationLine{
			InvoiceID:             l.InvoiceID,
			InvoiceNumber:         l.InvoiceNumber,
			AllocatedAmount:       allocated,
			RemainingBalanceAfter: after,
			ToleranceWriteoff:     writeoff,
		})
	}

	totalAllocated, err := parseAmount(r.TotalAllocated)
	if err != nil {
		return nil, err
	}
	totalWriteoff, err := parseAmount(r.TotalWriteoff)
	if err != nil {
		return nil, err
	}
	excessAbsorbed, err := parseAmount(r.ExcessAbsorbed)
	if err != nil {
		return nil, err
	}
	excessAmount, err := parseAmount(r.ExcessAmount)
	if err != nil {
		return nil, err
	}

	handling := billing.ExcessHandling(r.ExcessHandling)
	if !handling.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown excess handling: "+r.ExcessHandling)
	}

	return &billing.AllocationPreview{
		PaymentID:      r.PaymentID,
		PartnerID:      r.PartnerID,
		Currency:       valueobject.Currency(r.Currency),
		Lines:          lines,
		TotalAllocated: totalAllocated,
		TotalWriteoff:  totalWriteoff,
		ExcessAbsorbed: excessAbsorbed,
		ExcessAmount:   excessAmount,
		ExcessHandling: handling,
	}, nil
}

func parseAmount(v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, shared.NewDomainError("INVALID_AMOUNT", "Amount is not a valid decimal: "+v)
	}
	return d, nil
}

// PreviewAllocation computes the proposed allocation for a payment.
// Pure read path: nothing is persisted and repeated calls with unchanged
// invoice state return identical previews.
func (s *SmartPaymentService) PreviewAllocation(ctx context.Context, companyID uuid.UUID, req PreviewAllocationRequest) (*AllocationPreviewResponse, error) {
	ctx, span := s.tracer.Start(ctx, "SmartPaymentService.PreviewAllocation",
		trace.WithAttributes(attribute.String("payment.id", req.PaymentID.String())))
	defer span.End()

	amount, err := valueobject.NewMoneyFromString(req.Amount, valueobject.Currency(req.Currency))
	if err != nil {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount is not a valid decimal: "+req.Amount)
	}

	company, err := s.companyRepo.FindByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	tolerance, err := s.resolveTolerance(ctx, company)
	if err != nil {
		return nil, err
	}
	openInvoices, err := s.invoiceRepo.FindOpenByPartner(ctx, companyID, req.PartnerID)
	if err != nil {
		return nil, err
	}

	request := &billing.AllocationRequest{
		PaymentID:  req.PaymentID,
		PartnerID:  req.PartnerID,
		Amount:     amount.Amount(),
		Currency:   amount.Currency(),
		InvoiceIDs: req.InvoiceIDs,
	}

	preview, err := s.proposer.Propose(request, tolerance, openInvoices, company.ExcessPolicy)
	if err != nil {
		return nil, err
	}
	return toPreviewResponse(preview), nil
}

// ===================== Apply =====================

// ApplyAllocationRequest carries a confirmed preview back for persistence
type ApplyAllocationRequest struct {
	PaymentID uuid.UUID                 `json:"payment_id" binding:"required"`
	Preview   AllocationPreviewResponse `json:"preview" binding:"required"`
}

// AllocationRecordResponse represents a persisted allocation record
type AllocationRecordResponse struct {
	ID                uuid.UUID  `json:"id"`
	PaymentID         uuid.UUID  `json:"payment_id"`
	InvoiceID         uuid.UUID  `json:"invoice_id"`
	InvoiceNumber     string     `json:"invoice_number"`
	PartnerID         uuid.UUID  `json:"partner_id"`
	Currency          string     `json:"currency"`
	Amount            string     `json:"amount"`
	ToleranceWriteoff string     `json:"tolerance_writeoff"`
	Status            string     `json:"status"`
	ReversalOfID      *uuid.UUID `json:"reversal_of_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toAllocationResponse(a *billing.PaymentAllocation) AllocationRecordResponse {
	return AllocationRecordResponse{
		ID:                a.ID,
		PaymentID:         a.PaymentID,
		InvoiceID:         a.InvoiceID,
		InvoiceNumber:     a.InvoiceNumber,
		PartnerID:         a.PartnerID,
		Currency:          string(a.Currency),
		Amount:            a.Amount.StringFixed(valueobject.AmountScale),
		ToleranceWriteoff: a.ToleranceWriteoff.StringFixed(valueobject.AmountScale),
		Status:            string(a.Status),
		ReversalOfID:      a.ReversalOfID,
		CreatedAt:         a.CreatedAt,
	}
}

// ApplyAllocationResult is the outcome of a successful apply
type ApplyAllocationResult struct {
	Allocations    []AllocationRecordResponse `json:"allocations"`
	ExcessHandling string                     `json:"excess_handling"`
	CreditID       *uuid.UUID                 `json:"credit_id,omitempty"`
}

// ApplyAllocation persists an accepted preview as immutable allocation
// records. Invoice rows are re-fetched under row locks inside one
// transaction and every line is re-validated against the current balance;
// any shortfall fails the whole apply with STALE_ALLOCATION and nothing is
// written. A partner credit is created when the preview classified the
// excess as CREDIT_BALANCE.
func (s *SmartPaymentService) ApplyAllocation(ctx context.Context, companyID uuid.UUID, req ApplyAllocationRequest) (*ApplyAllocationResult, error) {
	ctx, span := s.tracer.Start(ctx, "SmartPaymentService.ApplyAllocation",
		trace.WithAttributes(attribute.String("payment.id", req.PaymentID.String())))
	defer span.End()

	preview, err := req.Preview.toDomain()
	if err != nil {
		return nil, err
	}
	if req.PaymentID != preview.PaymentID {
		return nil, shared.NewDomainError("INVALID_INPUT", "Payment ID does not match the preview")
	}
	if len(preview.Lines) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Preview contains no allocations")
	}

	lineTotal := decimal.Zero
	for _, line := range preview.Lines {
		lineTotal = lineTotal.Add(line.AllocatedAmount)
	}
	if !lineTotal.Equal(preview.TotalAllocated) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Preview total does not match its allocation lines")
	}

	// The preview round-trips through the client, so the tolerance cap is
	// re-resolved and re-checked line by line against current balances.
	company, err := s.companyRepo.FindByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	tolerance, err := s.resolveTolerance(ctx, company)
	if err != nil {
		return nil, err
	}

	result := &ApplyAllocationResult{
		Allocations:    make([]AllocationRecordResponse, 0, len(preview.Lines)),
		ExcessHandling: preview.ExcessHandling.String(),
	}

	err = s.uow.WithinTx(ctx, func(tx billing.AllocationTxContext) error {
		for _, line := range preview.Lines {
			invoice, err := tx.FindInvoiceForUpdate(ctx, companyID, line.InvoiceID)
			if err != nil {
				return err
			}
			if invoice.Currency != preview.Currency {
				return shared.NewDomainError("CURRENCY_MISMATCH",
					"Invoice "+invoice.InvoiceNumber+" currency no longer matches the payment")
			}
			if !invoice.Status.CanReceiveAllocation() ||
				line.AllocatedAmount.Add(line.ToleranceWriteoff).GreaterThan(invoice.Balance) {
				return shared.NewDomainError("STALE_ALLOCATION",
					"Invoice "+invoice.InvoiceNumber+" balance changed since preview; request a new preview")
			}
			if line.ToleranceWriteoff.GreaterThan(tolerance.CapFor(invoice.Balance)) {
				return shared.NewDomainError("TOLERANCE_EXCEEDED",
					"Write-off for invoice "+invoice.InvoiceNumber+" exceeds the tolerance cap")
			}

			if err := invoice.ApplyAllocation(line.AllocatedAmount, line.ToleranceWriteoff); err != nil {
				return err
			}
			if err := tx.SaveInvoice(ctx, invoice); err != nil {
				return err
			}

			record, err := billing.NewPaymentAllocation(companyID, preview.PaymentID, preview.PartnerID, preview.Currency, line)
			if err != nil {
				return err
			}
			if err := tx.SaveAllocation(ctx, record); err != nil {
				return err
			}
			result.Allocations = append(result.Allocations, toAllocationResponse(record))
		}

		if preview.ExcessHandling == billing.ExcessHandlingCreditBalance {
			excess, err := valueobject.NewMoney(preview.ExcessAmount, preview.Currency)
			if err != nil {
				return err
			}
			credit, err := billing.NewPartnerCredit(companyID, preview.PartnerID, preview.PaymentID, excess,
				"Excess from payment allocation")
			if err != nil {
				return err
			}
			if err := tx.SaveCredit(ctx, credit); err != nil {
				return err
			}
			result.CreditID = &credit.ID
		}

		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return result, nil
}

// ===================== Reversal =====================

// ReverseAllocation writes a corrective negative record for an applied
// allocation and restores the invoice balance, atomically.
func (s *SmartPaymentService) ReverseAllocation(ctx context.Context, companyID, allocationID uuid.UUID, reason string) (*AllocationRecordResponse, error) {
	var corrective *billing.PaymentAllocation
	err := s.uow.WithinTx(ctx, func(tx billing.AllocationTxContext) error {
		// The record is read under a row lock so that two reversals of the
		// same allocation serialize; the loser re-reads a REVERSED record and
		// fails the state check instead of restoring the balance twice.
		allocation, err := tx.FindAllocationForUpdate(ctx, companyID, allocationID)
		if err != nil {
			return err
		}
		invoice, err := tx.FindInvoiceForUpdate(ctx, companyID, allocation.InvoiceID)
		if err != nil {
			return err
		}

		corrective, err = allocation.Reverse(reason)
		if err != nil {
			return err
		}
		if err := invoice.RestoreAllocation(allocation.Amount, allocation.ToleranceWriteoff); err != nil {
			return err
		}

		if err := tx.SaveInvoice(ctx, invoice); err != nil {
			return err
		}
		if err := tx.SaveAllocation(ctx, allocation); err != nil {
			return err
		}
		return tx.SaveAllocation(ctx, corrective)
	})
	if err != nil {
		return nil, err
	}

	response := toAllocationResponse(corrective)
	return &response, nil
}

// ===================== Read surface =====================

// OpenInvoiceResponse represents an open invoice snapshot
type OpenInvoiceResponse struct {
	ID            uuid.UUID  `json:"id"`
	InvoiceNumber string     `json:"invoice_number"`
	PartnerID     uuid.UUID  `json:"partner_id"`
	PartnerName   string     `json:"partner_name"`
	Currency      string     `json:"currency"`
	TotalAmount   string     `json:"total_amount"`
	Balance       string     `json:"balance"`
	Status        string     `json:"status"`
	DueDate       *time.Time `json:"due_date,omitempty"`
}

func toInvoiceResponse(inv *billing.Invoice) OpenInvoiceResponse {
	return OpenInvoiceResponse{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		PartnerID:     inv.PartnerID,
		PartnerName:   inv.PartnerName,
		Currency:      string(inv.Currency),
		TotalAmount:   inv.TotalAmount.StringFixed(valueobject.AmountScale),
		Balance:       inv.Balance.StringFixed(valueobject.AmountScale),
		Status:        inv.Status.String(),
		DueDate:       inv.DueDate,
	}
}

// ListOpenInvoices returns a partner's invoices with an open balance,
// oldest due date first
func (s *SmartPaymentService) ListOpenInvoices(ctx context.Context, companyID, partnerID uuid.UUID) ([]OpenInvoiceResponse, error) {
	if partnerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PARTNER", "Partner ID is required")
	}
	invoices, err := s.invoiceRepo.FindOpenByPartner(ctx, companyID, partnerID)
	if err != nil {
		return nil, err
	}

	ordered, err := billing.NewOldestDueFirstStrategy().Order(nil, invoices)
	if err != nil {
		return nil, err
	}

	responses := make([]OpenInvoiceResponse, 0, len(ordered))
	for i := range ordered {
		responses = append(responses, toInvoiceResponse(&ordered[i]))
	}
	return responses, nil
}

// CreateInvoiceRequest creates an invoice for administration and testing
type CreateInvoiceRequest struct {
	InvoiceNumber string     `json:"invoice_number" binding:"required,max=50"`
	PartnerID     uuid.UUID  `json:"partner_id" binding:"required"`
	PartnerName   string     `json:"partner_name" binding:"required"`
	Amount        string     `json:"amount" binding:"required,amount"`
	Currency      string     `json:"currency" binding:"required,oneof=EUR USD GBP CHF PLN CZK"`
	DueDate       *time.Time `json:"due_date"`
}

// CreateInvoice creates a new open invoice
func (s *SmartPaymentService) CreateInvoice(ctx context.Context, companyID uuid.UUID, req CreateInvoiceRequest) (*OpenInvoiceResponse, error) {
	exists, err := s.invoiceRepo.ExistsByInvoiceNumber(ctx, companyID, req.InvoiceNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("ALREADY_EXISTS", "Invoice number already exists: "+req.InvoiceNumber)
	}

	total, err := valueobject.NewMoneyFromString(req.Amount, valueobject.Currency(req.Currency))
	if err != nil {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Invoice amount is not a valid decimal: "+req.Amount)
	}

	invoice, err := billing.NewInvoice(companyID, req.InvoiceNumber, req.PartnerID, req.PartnerName, total, req.DueDate)
	if err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Save(ctx, invoice); err != nil {
		return nil, err
	}

	response := toInvoiceResponse(invoice)
	return &response, nil
}

// AllocationListFilter defines filtering options for the allocation history
type AllocationListFilter struct {
	PaymentID *uuid.UUID `form:"payment_id"`
	InvoiceID *uuid.UUID `form:"invoice_id"`
	PartnerID *uuid.UUID `form:"partner_id"`
	Page      int        `form:"page"`
	PageSize  int        `form:"page_size"`
}

// ListAllocations returns the persisted allocation history for a company
func (s *SmartPaymentService) ListAllocations(ctx context.Context, companyID uuid.UUID, filter AllocationListFilter) ([]AllocationRecordResponse, int64, error) {
	domainFilter := billing.AllocationFilter{
		Filter:    shared.DefaultFilter(),
		PaymentID: filter.PaymentID,
		InvoiceID: filter.InvoiceID,
		PartnerID: filter.PartnerID,
	}
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}

	allocations, err := s.allocationRepo.FindAllForTenant(ctx, companyID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.allocationRepo.CountForTenant(ctx, companyID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]AllocationRecordResponse, 0, len(allocations))
	for i := range allocations {
		responses = append(responses, toAllocationResponse(&allocations[i]))
	}
	return responses, total, nil
}

// PartnerCreditResponse represents a partner credit
type PartnerCreditResponse struct {
	ID        uuid.UUID `json:"id"`
	PartnerID uuid.UUID `json:"partner_id"`
	PaymentID uuid.UUID `json:"payment_id"`
	Currency  string    `json:"currency"`
	Amount    string    `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ListPartnerCredits returns credits for a partner
func (s *SmartPaymentService) ListPartnerCredits(ctx context.Context, companyID, partnerID uuid.UUID, onlyAvailable bool) ([]PartnerCreditResponse, error) {
	if partnerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PARTNER", "Partner ID is required")
	}
	credits, err := s.creditRepo.FindByPartner(ctx, companyID, partnerID, onlyAvailable)
	if err != nil {
		return nil, err
	}

	responses := make([]PartnerCreditResponse, 0, len(credits))
	for _, c := range credits {
		responses = append(responses, PartnerCreditResponse{
			ID:        c.ID,
			PartnerID: c.PartnerID,
			PaymentID: c.PaymentID,
			Currency:  string(c.Currency),
			Amount:    c.Amount.StringFixed(valueobject.AmountScale),
			Status:    string(c.Status),
			CreatedAt: c.CreatedAt,
		})
	}
	return responses, nil
}
