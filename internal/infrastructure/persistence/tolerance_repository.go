package persistence

import (
	"context"
	"errors"

	"github.com/autoerp/backend/internal/domain/billing"
	"github.com/autoerp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormToleranceSettingRepository implements billing.ToleranceSettingRepository using GORM
type GormToleranceSettingRepository struct {
	db *gorm.DB
}

// NewGormToleranceSettingRepository creates a new GormToleranceSettingRepository
func NewGormToleranceSettingRepository(db *gorm.DB) *GormToleranceSettingRepository {
	return &GormToleranceSettingRepository{db: db}
}

// FindSystemDefault finds the mandatory system-scope row.
// Returns nil without error when the row is absent so the caller can decide
// whether that is a configuration failure.
func (r *GormToleranceSettingRepository) FindSystemDefault(ctx context.Context) (*billing.ToleranceSetting, error) {
	var model models.ToleranceSettingModel
	if err := r.db.WithContext(ctx).
		Where("scope = ?", billing.ToleranceScopeSystem).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCountry finds the country-scope row, nil when absent
func (r *GormToleranceSettingRepository) FindByCountry(ctx context.Context, countryCode string) (*billing.ToleranceSetting, error) {
	var model models.ToleranceSettingModel
	if err := r.db.WithContext(ctx).
		Where("scope = ? AND country_code = ?", billing.ToleranceScopeCountry, countryCode).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCompany finds the company-scope row, nil when absent
func (r *GormToleranceSettingRepository) FindByCompany(ctx context.Context, companyID uuid.UUID) (*billing.ToleranceSetting, error) {
	var model models.ToleranceSettingModel
	if err := r.db.WithContext(ctx).
		Where("scope = ? AND company_id = ?", billing.ToleranceScopeCompany, companyID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a tolerance setting row
func (r *GormToleranceSettingRepository) Save(ctx context.Context, setting *billing.ToleranceSetting) error {
	model := models.ToleranceSettingModelFromDomain(setting)
	return r.db.WithContext(ctx).Save(model).Error
}
