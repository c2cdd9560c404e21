package models

import (
	"time"

	"github.com/autoerp/backend/internal/domain/billing"
	"github.com/autoerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CompanyModel is the persistence model for the Company aggregate root.
type CompanyModel struct {
	AggregateModel
	Name         string               `gorm:"type:varchar(200);not null"`
	CountryCode  string               `gorm:"type:char(2);not null;index"`
	Currency     valueobject.Currency `gorm:"type:char(3);not null"`
	ExcessPolicy billing.ExcessPolicy `gorm:"type:varchar(20);not null;default:'AUTO'"`
}

// TableName returns the table name for GORM
func (CompanyModel) TableName() string {
	return "companies"
}

// ToDomain converts the persistence model to a domain Company.
func (m *CompanyModel) ToDomain() *billing.Company {
	c := &billing.Company{
		Name:         m.Name,
		CountryCode:  m.CountryCode,
		Currency:     m.Currency,
		ExcessPolicy: m.ExcessPolicy,
	}
	m.PopulateAggregateRoot(&c.BaseAggregateRoot)
	return c
}

// FromDomain populates the persistence model from a domain Company.
func (m *CompanyModel) FromDomain(c *billing.Company) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.Name = c.Name
	m.CountryCode = c.CountryCode
	m.Currency = c.Currency
	m.ExcessPolicy = c.ExcessPolicy
}

// CompanyModelFromDomain creates a persistence model from a domain Company.
func CompanyModelFromDomain(c *billing.Company) *CompanyModel {
	m := &CompanyModel{}
	m.FromDomain(c)
	return m
}

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	TenantAggregateModel
	InvoiceNumber  string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_tenant_number,priority:2"`
	PartnerID      uuid.UUID             `gorm:"type:uuid;not null;index"`
	PartnerName    string                `gorm:"type:varchar(200);not null"`
	Currency       valueobject.Currency  `gorm:"type:char(3);not null"`
	TotalAmount    decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Balance        decimal.Decimal       `gorm:"type:decimal(18,4);not null;index"`
	WrittenOff     decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Status         billing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'OPEN';index"`
	DueDate        *time.Time            `gorm:"index"`
	SettledAt      *time.Time
	ReversedAt     *time.Time
	ReversalReason string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	inv := &billing.Invoice{
		InvoiceNumber:  m.InvoiceNumber,
		PartnerID:      m.PartnerID,
		PartnerName:    m.PartnerName,
		Currency:       m.Currency,
		TotalAmount:    m.TotalAmount,
		Balance:        m.Balance,
		WrittenOff:     m.WrittenOff,
		Status:         m.Status,
		DueDate:        m.DueDate,
		SettledAt:      m.SettledAt,
		ReversedAt:     m.ReversedAt,
		ReversalReason: m.ReversalReason,
	}
	m.PopulateTenantAggregateRoot(&inv.TenantAggregateRoot)
	return inv
}

// FromDomain populates the persistence model from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.PartnerID = inv.PartnerID
	m.PartnerName = inv.PartnerName
	m.Currency = inv.Currency
	m.TotalAmount = inv.TotalAmount
	m.Balance = inv.Balance
	m.WrittenOff = inv.WrittenOff
	m.Status = inv.Status
	m.DueDate = inv.DueDate
	m.SettledAt = inv.SettledAt
	m.ReversedAt = inv.ReversedAt
	m.ReversalReason = inv.ReversalReason
}

// InvoiceModelFromDomain creates a persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// ToleranceSettingModel is the persistence model for tolerance setting rows.
type ToleranceSettingModel struct {
	AggregateModel
	Scope               billing.ToleranceScope `gorm:"type:varchar(20);not null;index"`
	CompanyID           *uuid.UUID             `gorm:"type:uuid;uniqueIndex:idx_tolerance_company"`
	CountryCode         string                 `gorm:"type:char(2);index"`
	MaxWriteoffAbsolute *decimal.Decimal       `gorm:"type:decimal(18,4)"`
	MaxWriteoffPercent  *decimal.Decimal       `gorm:"type:decimal(7,4)"`
}

// TableName returns the table name for GORM
func (ToleranceSettingModel) TableName() string {
	return "tolerance_settings"
}

// ToDomain converts the persistence model to a domain ToleranceSetting.
func (m *ToleranceSettingModel) ToDomain() *billing.ToleranceSetting {
	ts := &billing.ToleranceSetting{
		Scope:               m.Scope,
		CompanyID:           m.CompanyID,
		CountryCode:         m.CountryCode,
		MaxWriteoffAbsolute: m.MaxWriteoffAbsolute,
		MaxWriteoffPercent:  m.MaxWriteoffPercent,
	}
	m.PopulateAggregateRoot(&ts.BaseAggregateRoot)
	return ts
}

// FromDomain populates the persistence model from a domain ToleranceSetting.
func (m *ToleranceSettingModel) FromDomain(ts *billing.ToleranceSetting) {
	m.FromDomainAggregateRoot(ts.BaseAggregateRoot)
	m.Scope = ts.Scope
	m.CompanyID = ts.CompanyID
	m.CountryCode = ts.CountryCode
	m.MaxWriteoffAbsolute = ts.MaxWriteoffAbsolute
	m.MaxWriteoffPercent = ts.MaxWriteoffPercent
}

// ToleranceSettingModelFromDomain creates a persistence model from a domain ToleranceSetting.
func ToleranceSettingModelFromDomain(ts *billing.ToleranceSetting) *ToleranceSettingModel {
	m := &ToleranceSettingModel{}
	m.FromDomain(ts)
	return m
}

// PaymentAllocationModel is the persistence model for allocation records.
type PaymentAllocationModel struct {
	TenantAggregateModel
	PaymentID         uuid.UUID                `gorm:"type:uuid;not null;index"`
	InvoiceID         uuid.UUID                `gorm:"type:uuid;not null;index"`
	InvoiceNumber     string                   `gorm:"type:varchar(50);not null"`
	PartnerID         uuid.UUID                `gorm:"type:uuid;not null;index"`
	Currency          valueobject.Currency     `gorm:"type:char(3);not null"`
	Amount            decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	ToleranceWriteoff decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	Status            billing.AllocationStatus `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	ReversalOfID      *uuid.UUID               `gorm:"type:uuid;index"`
	ReversedAt        *time.Time
	ReversalReason    string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (PaymentAllocationModel) TableName() string {
	return "payment_allocations"
}

// ToDomain converts the persistence model to a domain PaymentAllocation.
func (m *PaymentAllocationModel) ToDomain() *billing.PaymentAllocation {
	pa := &billing.PaymentAllocation{
		PaymentID:         m.PaymentID,
		InvoiceID:         m.InvoiceID,
		InvoiceNumber:     m.InvoiceNumber,
		PartnerID:         m.PartnerID,
		Currency:          m.Currency,
		Amount:            m.Amount,
		ToleranceWriteoff: m.ToleranceWriteoff,
		Status:            m.Status,
		ReversalOfID:      m.ReversalOfID,
		ReversedAt:        m.ReversedAt,
		ReversalReason:    m.ReversalReason,
	}
	m.PopulateTenantAggregateRoot(&pa.TenantAggregateRoot)
	return pa
}

// FromDomain populates the persistence model from a domain PaymentAllocation.
func (m *PaymentAllocationModel) FromDomain(pa *billing.PaymentAllocation) {
	m.FromDomainTenantAggregateRoot(pa.TenantAggregateRoot)
	m.PaymentID = pa.PaymentID
	m.InvoiceID = pa.InvoiceID
	m.InvoiceNumber = pa.InvoiceNumber
	m.PartnerID = pa.PartnerID
	m.Currency = pa.Currency
	m.Amount = pa.Amount
	m.ToleranceWriteoff = pa.ToleranceWriteoff
	m.Status = pa.Status
	m.ReversalOfID = pa.ReversalOfID
	m.ReversedAt = pa.ReversedAt
	m.ReversalReason = pa.ReversalReason
}

// PaymentAllocationModelFromDomain creates a persistence model from a domain PaymentAllocation.
func PaymentAllocationModelFromDomain(pa *billing.PaymentAllocation) *PaymentAllocationModel {
	m := &PaymentAllocationModel{}
	m.FromDomain(pa)
	return m
}

// PartnerCreditModel is the persistence model for partner credits.
type PartnerCreditModel struct {
	TenantAggregateModel
	PartnerID  uuid.UUID            `gorm:"type:uuid;not null;index"`
	PaymentID  uuid.UUID            `gorm:"type:uuid;not null;index"`
	Currency   valueobject.Currency `gorm:"type:char(3);not null"`
	Amount     decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Status     billing.CreditStatus `gorm:"type:varchar(20);not null;default:'AVAILABLE';index"`
	ConsumedAt *time.Time
	Remark     string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (PartnerCreditModel) TableName() string {
	return "partner_credits"
}

// ToDomain converts the persistence model to a domain PartnerCredit.
func (m *PartnerCreditModel) ToDomain() *billing.PartnerCredit {
	pc := &billing.PartnerCredit{
		PartnerID:  m.PartnerID,
		PaymentID:  m.PaymentID,
		Currency:   m.Currency,
		Amount:     m.Amount,
		Status:     m.Status,
		ConsumedAt: m.ConsumedAt,
		Remark:     m.Remark,
	}
	m.PopulateTenantAggregateRoot(&pc.TenantAggregateRoot)
	return pc
}

// FromDomain populates the persistence model from a domain PartnerCredit.
func (m *PartnerCreditModel) FromDomain(pc *billing.PartnerCredit) {
	m.FromDomainTenantAggregateRoot(pc.TenantAggregateRoot)
	m.PartnerID = pc.PartnerID
	m.PaymentID = pc.PaymentID
	m.Currency = pc.Currency
	m.Amount = pc.Amount
	m.Status = pc.Status
	m.ConsumedAt = pc.ConsumedAt
	m.Remark = pc.Remark
}

// PartnerCreditModelFromDomain creates a persistence model from a domain PartnerCredit.
func PartnerCreditModelFromDomain(pc *billing.PartnerCredit) *PartnerCreditModel {
	m := &PartnerCreditModel{}
	m.FromDomain(pc)
	return m
}
