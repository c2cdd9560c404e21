package billing

import (
	"github.com/autoerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ToleranceScope identifies the precedence level of a tolerance setting row
type ToleranceScope string

const (
	ToleranceScopeSystem  ToleranceScope = "SYSTEM"  // Global fallback, seeded by migration
	ToleranceScopeCountry ToleranceScope = "COUNTRY" // Per-country default
	ToleranceScopeCompany ToleranceScope = "COMPANY" // Company-specific override
)

// IsValid checks if the tolerance scope is valid
func (s ToleranceScope) IsValid() bool {
	switch s {
	case ToleranceScopeSystem, ToleranceScopeCountry, ToleranceScopeCompany:
		return true
	}
	return false
}

// String returns the string representation of ToleranceScope
func (s ToleranceScope) String() string {
	return string(s)
}

// ToleranceSetting is one row of write-off policy at a given scope.
// Fields are nullable so that a narrower scope can override only one
// of the two caps and inherit the other.
type ToleranceSetting struct {
	shared.BaseAggregateRoot
	Scope               ToleranceScope   `json:"scope"`
	CompanyID           *uuid.UUID       `json:"company_id,omitempty"`   // Set for COMPANY scope only
	CountryCode         string           `json:"country_code,omitempty"` // Set for COUNTRY scope only
	MaxWriteoffAbsolute *decimal.Decimal `json:"max_writeoff_absolute,omitempty"`
	MaxWriteoffPercent  *decimal.Decimal `json:"max_writeoff_percent,omitempty"` // 0-100
}

// NewToleranceSetting creates a tolerance setting row for a scope
func NewToleranceSetting(scope ToleranceScope, companyID *uuid.UUID, countryCode string, absolute, percent *decimal.Decimal) (*ToleranceSetting, error) {
	if !scope.IsValid() {
		return nil, shared.NewDomainError("INVALID_SCOPE", "Tolerance scope is not valid")
	}
	if scope == ToleranceScopeCompany && (companyID == nil || *companyID == uuid.Nil) {
		return nil, shared.NewDomainError("INVALID_COMPANY", "Company-scope tolerance requires a company ID")
	}
	if scope == ToleranceScopeCountry && len(countryCode) != 2 {
		return nil, shared.NewDomainError("INVALID_COUNTRY_CODE", "Country-scope tolerance requires a two-letter country code")
	}
	if absolute == nil && percent == nil {
		return nil, shared.NewDomainError("INVALID_TOLERANCE", "Tolerance setting must define at least one cap")
	}
	if absolute != nil && absolute.IsNegative() {
		return nil, shared.NewDomainError("INVALID_TOLERANCE", "Absolute write-off cap cannot be negative")
	}
	if percent != nil && (percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100))) {
		return nil, shared.NewDomainError("INVALID_TOLERANCE", "Percent write-off cap must be between 0 and 100")
	}

	return &ToleranceSetting{
		BaseAggregateRoot:   shared.NewBaseAggregateRoot(),
		Scope:               scope,
		CompanyID:           companyID,
		CountryCode:         countryCode,
		MaxWriteoffAbsolute: absolute,
		MaxWriteoffPercent:  percent,
	}, nil
}

// UpdateCaps replaces the caps on an existing setting row
func (t *ToleranceSetting) UpdateCaps(absolute, percent *decimal.Decimal) error {
	if absolute == nil && percent == nil {
		return shared.NewDomainError("INVALID_TOLERANCE", "Tolerance setting must define at least one cap")
	}
	if absolute != nil && absolute.IsNegative() {
		return shared.NewDomainError("INVALID_TOLERANCE", "Absolute write-off cap cannot be negative")
	}
	if percent != nil && (percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100))) {
		return shared.NewDomainError("INVALID_TOLERANCE", "Percent write-off cap must be between 0 and 100")
	}
	t.MaxWriteoffAbsolute = absolute
	t.MaxWriteoffPercent = percent
	t.IncrementVersion()
	return nil
}

// EffectiveTolerance is the result of resolving the tolerance precedence chain
// for one company. Both caps are always populated; the Scope fields record
// which level supplied each value.
type EffectiveTolerance struct {
	MaxWriteoffAbsolute decimal.Decimal `json:"max_writeoff_absolute"`
	MaxWriteoffPercent  decimal.Decimal `json:"max_writeoff_percent"`
	AbsoluteScope       ToleranceScope  `json:"absolute_scope"`
	PercentScope        ToleranceScope  `json:"percent_scope"`
}

// CapFor returns the effective write-off cap for a given invoice balance:
// the lesser of the absolute cap and balance scaled by the percent cap.
func (t *EffectiveTolerance) CapFor(balance decimal.Decimal) decimal.Decimal {
	percentCap := balance.Mul(t.MaxWriteoffPercent).Div(decimal.NewFromInt(100))
	return decimal.Min(t.MaxWriteoffAbsolute, percentCap)
}

// ResolveTolerance merges tolerance setting rows by precedence
// company over country over system, each cap resolved independently.
// The system row is mandatory and must carry both caps; its absence is a
// configuration error detected at startup.
func ResolveTolerance(company, country, system *ToleranceSetting) (*EffectiveTolerance, error) {
	if system == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "System default tolerance setting is missing")
	}
	if system.MaxWriteoffAbsolute == nil || system.MaxWriteoffPercent == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "System default tolerance setting must define both caps")
	}

	effective := &EffectiveTolerance{
		MaxWriteoffAbsolute: *system.MaxWriteoffAbsolute,
		MaxWriteoffPercent:  *system.MaxWriteoffPercent,
		AbsoluteScope:       ToleranceScopeSystem,
		PercentScope:        ToleranceScopeSystem,
	}

	for _, s := range []*ToleranceSetting{country, company} {
		if s == nil {
			continue
		}
		if s.MaxWriteoffAbsolute != nil {
			effective.MaxWriteoffAbsolute = *s.MaxWriteoffAbsolute
			effective.AbsoluteScope = s.Scope
		}
		if s.MaxWriteoffPercent != nil {
			effective.MaxWriteoffPercent = *s.MaxWriteoffPercent
			effective.PercentScope = s.Scope
		}
	}

	return effective, nil
}
