package billing

import (
	"github.com/autoerp/backend/internal/domain/shared"
	"github.com/autoerp/backend/internal/domain/shared/valueobject"
)

// ExcessPolicy controls how payment excess beyond the tolerance cap is handled
type ExcessPolicy string

const (
	// ExcessPolicyAuto credits the partner when other open invoices exist,
	// otherwise flags a refund
	ExcessPolicyAuto ExcessPolicy = "AUTO"
	// ExcessPolicyCredit always converts excess into a partner credit
	ExcessPolicyCredit ExcessPolicy = "CREDIT"
	// ExcessPolicyRefund always flags excess for refund
	ExcessPolicyRefund ExcessPolicy = "REFUND"
)

// IsValid checks if the excess policy is valid
func (p ExcessPolicy) IsValid() bool {
	switch p {
	case ExcessPolicyAuto, ExcessPolicyCredit, ExcessPolicyRefund:
		return true
	}
	return false
}

// String returns the string representation of ExcessPolicy
func (p ExcessPolicy) String() string {
	return string(p)
}

// Company represents a tenant company participating in payment allocation.
// It carries the country used for tolerance resolution and the excess policy
// applied by the classifier.
type Company struct {
	shared.BaseAggregateRoot
	Name         string               `json:"name"`
	CountryCode  string               `json:"country_code"` // ISO 3166-1 alpha-2
	Currency     valueobject.Currency `json:"currency"`
	ExcessPolicy ExcessPolicy         `json:"excess_policy"`
}

// NewCompany creates a new company
func NewCompany(name, countryCode string, currency valueobject.Currency) (*Company, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_COMPANY_NAME", "Company name cannot be empty")
	}
	if len(countryCode) != 2 {
		return nil, shared.NewDomainError("INVALID_COUNTRY_CODE", "Country code must be a two-letter ISO code")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	return &Company{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		CountryCode:       countryCode,
		Currency:          currency,
		ExcessPolicy:      ExcessPolicyAuto,
	}, nil
}

// SetExcessPolicy updates the excess handling policy
func (c *Company) SetExcessPolicy(policy ExcessPolicy) error {
	if !policy.IsValid() {
		return shared.NewDomainError("INVALID_EXCESS_POLICY", "Excess policy is not valid")
	}
	c.ExcessPolicy = policy
	c.IncrementVersion()
	return nil
}
