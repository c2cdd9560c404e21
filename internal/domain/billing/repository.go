package billing

import (
	"context"
	"time"

	"github.com/autoerp/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	PartnerID *uuid.UUID     // Filter by partner
	Status    *InvoiceStatus // Filter by status
	DueFrom   *time.Time     // Filter by due date range start
	DueTo     *time.Time     // Filter by due date range end
	Overdue   *bool          // Filter only overdue invoices
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByID finds an invoice by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByIDForTenant finds an invoice by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindOpenByPartner finds all invoices with an open balance for a partner
	FindOpenByPartner(ctx context.Context, tenantID, partnerID uuid.UUID) ([]Invoice, error)

	// FindAllForTenant finds invoices for a tenant with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)

	// CountForTenant counts invoices for a tenant with optional filters
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) (int64, error)

	// Save creates or updates an invoice
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, invoice *Invoice) error

	// ExistsByInvoiceNumber checks if an invoice number exists for a tenant
	ExistsByInvoiceNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (bool, error)
}

// AllocationFilter defines filtering options for allocation queries
type AllocationFilter struct {
	shared.Filter
	PaymentID *uuid.UUID        // Filter by payment
	InvoiceID *uuid.UUID        // Filter by invoice
	PartnerID *uuid.UUID        // Filter by partner
	Status    *AllocationStatus // Filter by status
}

// PaymentAllocationRepository defines the interface for allocation persistence
type PaymentAllocationRepository interface {
	// FindByID finds an allocation record by ID
	FindByID(ctx context.Context, id uuid.UUID) (*PaymentAllocation, error)

	// FindByIDForTenant finds an allocation record by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*PaymentAllocation, error)

	// FindByPayment finds all allocation records for a payment
	FindByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]PaymentAllocation, error)

	// FindAllForTenant finds allocation records for a tenant with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter AllocationFilter) ([]PaymentAllocation, error)

	// CountForTenant counts allocation records for a tenant with optional filters
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter AllocationFilter) (int64, error)

	// Save creates an allocation record. Records are immutable except for the
	// status flip performed by a reversal.
	Save(ctx context.Context, allocation *PaymentAllocation) error
}

// ToleranceSettingRepository defines the interface for tolerance settings
type ToleranceSettingRepository interface {
	// FindSystemDefault finds the mandatory system-scope row
	FindSystemDefault(ctx context.Context) (*ToleranceSetting, error)

	// FindByCountry finds the country-scope row, nil when absent
	FindByCountry(ctx context.Context, countryCode string) (*ToleranceSetting, error)

	// FindByCompany finds the company-scope row, nil when absent
	FindByCompany(ctx context.Context, companyID uuid.UUID) (*ToleranceSetting, error)

	// Save creates or updates a tolerance setting row
	Save(ctx context.Context, setting *ToleranceSetting) error
}

// PartnerCreditRepository defines the interface for partner credit persistence
type PartnerCreditRepository interface {
	// FindByID finds a credit by ID
	FindByID(ctx context.Context, id uuid.UUID) (*PartnerCredit, error)

	// FindByPartner finds credits for a partner, optionally only available ones
	FindByPartner(ctx context.Context, tenantID, partnerID uuid.UUID, onlyAvailable bool) ([]PartnerCredit, error)

	// Save creates or updates a partner credit
	Save(ctx context.Context, credit *PartnerCredit) error
}

// CompanyRepository defines the interface for company persistence
type CompanyRepository interface {
	// FindByID finds a company by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Company, error)

	// Save creates or updates a company
	Save(ctx context.Context, company *Company) error
}

// AllocationTxContext exposes the repositories participating in one apply
// or reversal transaction. Reads through it take row locks for the duration
// of the transaction.
type AllocationTxContext interface {
	// FindInvoiceForUpdate loads an invoice with its row locked until commit
	FindInvoiceForUpdate(ctx context.Context, tenantID, invoiceID uuid.UUID) (*Invoice, error)

	// FindAllocationForUpdate loads an allocation record with its row locked
	// until commit
	FindAllocationForUpdate(ctx context.Context, tenantID, allocationID uuid.UUID) (*PaymentAllocation, error)

	// SaveInvoice persists invoice balance changes inside the transaction
	SaveInvoice(ctx context.Context, invoice *Invoice) error

	// SaveAllocation persists an allocation record inside the transaction
	SaveAllocation(ctx context.Context, allocation *PaymentAllocation) error

	// SaveCredit persists a partner credit inside the transaction
	SaveCredit(ctx context.Context, credit *PartnerCredit) error
}

// AllocationUnitOfWork runs the applier's writes inside one all-or-nothing
// transaction. Any error returned by fn rolls everything back.
type AllocationUnitOfWork interface {
	WithinTx(ctx context.Context, fn func(tx AllocationTxContext) error) error
}
