package persistence

import (
	"context"
	"errors"

	"github.com/autoerp/backend/internal/domain/billing"
	"github.com/autoerp/backend/internal/domain/shared"
	"github.com/autoerp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPartnerCreditRepository implements billing.PartnerCreditRepository using GORM
type GormPartnerCreditRepository struct {
	db *gorm.DB
}

// NewGormPartnerCreditRepository creates a new GormPartnerCreditRepository
func NewGormPartnerCreditRepository(db *gorm.DB) *GormPartnerCreditRepository {
	return &GormPartnerCreditRepository{db: db}
}

// FindByID finds a partner credit by its ID
func (r *GormPartnerCreditRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.PartnerCredit, error) {
	var model models.PartnerCreditModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPartner finds credits for a partner, optionally only available ones
func (r *GormPartnerCreditRepository) FindByPartner(ctx context.Context, tenantID, partnerID uuid.UUID, onlyAvailable bool) ([]billing.PartnerCredit, error) {
	var creditModels []models.PartnerCreditModel
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND partner_id = ?", tenantID, partnerID)
	if onlyAvailable {
		query = query.Where("status = ?", billing.CreditStatusAvailable)
	}
	if err := query.Order("created_at ASC").Find(&creditModels).Error; err != nil {
		return nil, err
	}
	credits := make([]billing.PartnerCredit, len(creditModels))
	for i, model := range creditModels {
		credits[i] = *model.ToDomain()
	}
	return credits, nil
}

// Save creates or updates a partner credit
func (r *GormPartnerCreditRepository) Save(ctx context.Context, credit *billing.PartnerCredit) error {
	model := models.PartnerCreditModelFromDomain(credit)
	return r.db.WithContext(ctx).Save(model).Error
}
