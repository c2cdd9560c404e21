package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/autoerp/backend/internal/domain/billing"
	"github.com/autoerp/backend/internal/domain/shared"
	"github.com/autoerp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentAllocationRepository implements billing.PaymentAllocationRepository using GORM
type GormPaymentAllocationRepository struct {
	db *gorm.DB
}

// NewGormPaymentAllocationRepository creates a new GormPaymentAllocationRepository
func NewGormPaymentAllocationRepository(db *gorm.DB) *GormPaymentAllocationRepository {
	return &GormPaymentAllocationRepository{db: db}
}

// FindByID finds an allocation record by its ID
func (r *GormPaymentAllocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.PaymentAllocation, error) {
	var model models.PaymentAllocationModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds an allocation record by ID for a specific tenant
func (r *GormPaymentAllocationRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.PaymentAllocation, error) {
	var model models.PaymentAllocationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPayment finds all allocation records for a payment
func (r *GormPaymentAllocationRepository) FindByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]billing.PaymentAllocation, error) {
	var allocationModels []models.PaymentAllocationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND payment_id = ?", tenantID, paymentID).
		Order("created_at ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	allocations := make([]billing.PaymentAllocation, len(allocationModels))
	for i, model := range allocationModels {
		allocations[i] = *model.ToDomain()
	}
	return allocations, nil
}

// FindAllForTenant finds allocation records for a tenant with filtering
func (r *GormPaymentAllocationRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.AllocationFilter) ([]billing.PaymentAllocation, error) {
	var allocationModels []models.PaymentAllocationModel
	query := r.db.WithContext(ctx).Model(&models.PaymentAllocationModel{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyAllocationFilter(query, filter)

	sortField := ValidateSortField(filter.OrderBy, AllocationSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", sortField, sortOrder))

	if filter.PageSize > 0 {
		offset := 0
		if filter.Page > 1 {
			offset = (filter.Page - 1) * filter.PageSize
		}
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	allocations := make([]billing.PaymentAllocation, len(allocationModels))
	for i, model := range allocationModels {
		allocations[i] = *model.ToDomain()
	}
	return allocations, nil
}

// CountForTenant counts allocation records for a tenant with optional filters
func (r *GormPaymentAllocationRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.AllocationFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.PaymentAllocationModel{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyAllocationFilter(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates an allocation record
func (r *GormPaymentAllocationRepository) Save(ctx context.Context, allocation *billing.PaymentAllocation) error {
	model := models.PaymentAllocationModelFromDomain(allocation)
	return r.db.WithContext(ctx).Save(model).Error
}

func (r *GormPaymentAllocationRepository) applyAllocationFilter(query *gorm.DB, filter billing.AllocationFilter) *gorm.DB {
	if filter.PaymentID != nil {
		query = query.Where("payment_id = ?", *filter.PaymentID)
	}
	if filter.InvoiceID != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.PartnerID != nil {
		query = query.Where("partner_id = ?", *filter.PartnerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Search != "" {
		query = query.Where("invoice_number ILIKE ?", "%"+filter.Search+"%")
	}
	return query
}
