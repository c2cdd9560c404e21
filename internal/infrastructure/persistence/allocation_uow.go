package persistence

import (
	"context"
	"errors"

	"github.com/autoerp/backend/internal/domain/billing"
	"github.com/autoerp/backend/internal/domain/shared"
	"github.com/autoerp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAllocationUnitOfWork implements billing.AllocationUnitOfWork using a
// single database transaction with row-level invoice locks.
type GormAllocationUnitOfWork struct {
	db *gorm.DB
}

// NewGormAllocationUnitOfWork creates a new GormAllocationUnitOfWork
func NewGormAllocationUnitOfWork(db *gorm.DB) *GormAllocationUnitOfWork {
	return &GormAllocationUnitOfWork{db: db}
}

// WithinTx runs fn inside one transaction. Any error from fn rolls back
// every write made through the transaction context.
func (u *GormAllocationUnitOfWork) WithinTx(ctx context.Context, fn func(tx billing.AllocationTxContext) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormAllocationTxContext{tx: tx})
	})
}

// gormAllocationTxContext exposes the allocation writes bound to one open
// transaction.
type gormAllocationTxContext struct {
	tx *gorm.DB
}

// FindInvoiceForUpdate loads an invoice with SELECT ... FOR UPDATE so the
// row stays locked until the transaction commits or rolls back.
func (c *gormAllocationTxContext) FindInvoiceForUpdate(ctx context.Context, tenantID, invoiceID uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := c.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, invoiceID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllocationForUpdate loads an allocation record with SELECT ... FOR
// UPDATE so a concurrent reversal of the same record blocks until this
// transaction finishes.
func (c *gormAllocationTxContext) FindAllocationForUpdate(ctx context.Context, tenantID, allocationID uuid.UUID) (*billing.PaymentAllocation, error) {
	var model models.PaymentAllocationModel
	if err := c.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, allocationID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// SaveInvoice persists invoice changes with an optimistic version check.
// The row lock taken by FindInvoiceForUpdate makes a version miss unlikely,
// but a miss still aborts the transaction rather than overwrite.
// The column list is explicit so that fields cleared back to their zero
// value (a reversal resets settled_at to NULL) are written too.
func (c *gormAllocationTxContext) SaveInvoice(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	result := c.tx.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version-1).
		Select("updated_at", "version", "balance", "written_off", "status",
			"settled_at", "reversed_at", "reversal_reason").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("STALE_ALLOCATION", "Invoice was modified by another transaction")
	}
	return nil
}

// SaveAllocation persists an allocation record inside the transaction
func (c *gormAllocationTxContext) SaveAllocation(ctx context.Context, allocation *billing.PaymentAllocation) error {
	model := models.PaymentAllocationModelFromDomain(allocation)
	return c.tx.WithContext(ctx).Save(model).Error
}

// SaveCredit persists a partner credit inside the transaction
func (c *gormAllocationTxContext) SaveCredit(ctx context.Context, credit *billing.PartnerCredit) error {
	model := models.PartnerCreditModelFromDomain(credit)
	return c.tx.WithContext(ctx).Save(model).Error
}
