// Package integration tests the payment allocation flows end to end
// against a real PostgreSQL database:
// - invoice creation and the open invoice listing
// - preview/apply including tolerance write-offs
// - stale preview rejection under concurrent balance changes
// - reversal with balance restoration
// - excess conversion into partner credits
package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingapp "github.com/autoerp/backend/internal/application/billing"
	"github.com/autoerp/backend/internal/domain/shared"
	"github.com/autoerp/backend/internal/infrastructure/persistence"
)

// PaymentTestSetup provides test infrastructure backed by a real database.
type PaymentTestSetup struct {
	DB        *TestDB
	Service   *billingapp.SmartPaymentService
	CompanyID uuid.UUID
	PartnerID uuid.UUID
}

// NewPaymentTestSetup creates the service wired to real repositories.
func NewPaymentTestSetup(t *testing.T, excessPolicy string) *PaymentTestSetup {
	t.Helper()

	testDB := NewTestDB(t)

	companyRepo := persistence.NewGormCompanyRepository(testDB.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(testDB.DB)
	allocationRepo := persistence.NewGormPaymentAllocationRepository(testDB.DB)
	toleranceRepo := persistence.NewGormToleranceSettingRepository(testDB.DB)
	creditRepo := persistence.NewGormPartnerCreditRepository(testDB.DB)
	uow := persistence.NewGormAllocationUnitOfWork(testDB.DB)

	service := billingapp.NewSmartPaymentService(
		companyRepo, invoiceRepo, allocationRepo, toleranceRepo, creditRepo, uow,
	)

	companyID := testDB.CreateTestCompany("Auto Parts GmbH", "DE", "EUR", excessPolicy)

	return &PaymentTestSetup{
		DB:        testDB,
		Service:   service,
		CompanyID: companyID,
		PartnerID: uuid.New(),
	}
}

// createInvoice creates an invoice through the service and returns its ID.
func (s *PaymentTestSetup) createInvoice(t *testing.T, number, amount string) uuid.UUID {
	t.Helper()

	resp, err := s.Service.CreateInvoice(context.Background(), s.CompanyID, billingapp.CreateInvoiceRequest{
		InvoiceNumber: number,
		PartnerID:     s.PartnerID,
		PartnerName:   "Autohaus Weber GmbH",
		Amount:        amount,
		Currency:      "EUR",
	})
	require.NoError(t, err)
	return resp.ID
}

// invoiceState reads the invoice row directly from the database.
func (s *PaymentTestSetup) invoiceState(t *testing.T, id uuid.UUID) (balance, writtenOff decimal.Decimal, status string) {
	t.Helper()

	var row struct {
		Balance    decimal.Decimal
		WrittenOff decimal.Decimal
		Status     string
	}
	err := s.DB.DB.Raw(
		`SELECT balance, written_off, status FROM invoices WHERE id = ?`, id,
	).Scan(&row).Error
	require.NoError(t, err)
	return row.Balance, row.WrittenOff, row.Status
}

func domainErrorCode(t *testing.T, err error) string {
	t.Helper()

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	return domainErr.Code
}

func TestSmartPayment_FullAllocationFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	setup := NewPaymentTestSetup(t, "AUTO")
	ctx := context.Background()

	require.NoError(t, setup.Service.VerifyToleranceConfiguration(ctx))

	invoiceID := setup.createInvoice(t, "RE-2026-0001", "100.00")

	// Open invoice listing sees the new invoice
	open, err := setup.Service.ListOpenInvoices(ctx, setup.CompanyID, setup.PartnerID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "100.0000", open[0].Balance)

	// A 99.00 payment leaves a 1.00 shortfall, inside the 5.00 / 2% caps
	paymentID := uuid.New()
	preview, err := setup.Service.PreviewAllocation(ctx, setup.CompanyID, billingapp.PreviewAllocationRequest{
		PaymentID: paymentID,
		PartnerID: setup.PartnerID,
		Amount:    "99.00",
		Currency:  "EUR",
	})
	require.NoError(t, err)
	require.Len(t, preview.Allocations, 1)
	assert.Equal(t, "99.0000", preview.Allocations[0].AllocatedAmount)
	assert.Equal(t, "1.0000", preview.Allocations[0].ToleranceWriteoff)
	assert.Equal(t, "0.0000", preview.Allocations[0].RemainingBalanceAfter)

	// Preview is a pure read: nothing changed yet
	balance, _, status := setup.invoiceState(t, invoiceID)
	assert.True(t, balance.Equal(decimal.RequireFromString("100")))
	assert.Equal(t, "OPEN", status)

	result, err := setup.Service.ApplyAllocation(ctx, setup.CompanyID, billingapp.ApplyAllocationRequest{
		PaymentID: paymentID,
		Preview:   *preview,
	})
	require.NoError(t, err)
	require.Len(t, result.Allocations, 1)
	assert.Equal(t, "ACTIVE", result.Allocations[0].Status)

	// Invoice settled with the shortfall written off
	balance, writtenOff, status := setup.invoiceState(t, invoiceID)
	assert.True(t, balance.IsZero(), "Balance should be zero, got %s", balance)
	assert.True(t, writtenOff.Equal(decimal.RequireFromString("1")))
	assert.Equal(t, "SETTLED", status)

	// Allocation history records the application
	records, total, err := setup.Service.ListAllocations(ctx, setup.CompanyID, billingapp.AllocationListFilter{
		PaymentID: &paymentID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, records, 1)
	assert.Equal(t, "99.0000", records[0].Amount)
	assert.Equal(t, "1.0000", records[0].ToleranceWriteoff)
}

func TestSmartPayment_ApplyRejectsStalePreview(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	setup := NewPaymentTestSetup(t, "AUTO")
	ctx := context.Background()

	invoiceID := setup.createInvoice(t, "RE-2026-0002", "200.00")

	preview, err := setup.Service.PreviewAllocation(ctx, setup.CompanyID, billingapp.PreviewAllocationRequest{
		PaymentID: uuid.New(),
		PartnerID: setup.PartnerID,
		Amount:    "200.00",
		Currency:  "EUR",
	})
	require.NoError(t, err)

	// First apply consumes the invoice balance
	_, err = setup.Service.ApplyAllocation(ctx, setup.CompanyID, billingapp.ApplyAllocationRequest{
		PaymentID: preview.PaymentID,
		Preview:   *preview,
	})
	require.NoError(t, err)

	// Replaying the same preview must fail atomically
	_, err = setup.Service.ApplyAllocation(ctx, setup.CompanyID, billingapp.ApplyAllocationRequest{
		PaymentID: preview.PaymentID,
		Preview:   *preview,
	})
	require.Error(t, err)
	assert.Equal(t, "STALE_ALLOCATION", domainErrorCode(t, err))

	// Nothing was written by the failed apply
	var count int64
	err = setup.DB.DB.Raw(
		`SELECT COUNT(*) FROM payment_allocations WHERE invoice_id = ?`, invoiceID,
	).Scan(&count).Error
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSmartPayment_ReverseAllocationRestoresBalance(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	setup := NewPaymentTestSetup(t, "AUTO")
	ctx := context.Background()

	invoiceID := setup.createInvoice(t, "RE-2026-0003", "100.00")
	paymentID := uuid.New()

	preview, err := setup.Service.PreviewAllocation(ctx, setup.CompanyID, billingapp.PreviewAllocationRequest{
		PaymentID: paymentID,
		PartnerID: setup.PartnerID,
		Amount:    "99.00",
		Currency:  "EUR",
	})
	require.NoError(t, err)

	result, err := setup.Service.ApplyAllocation(ctx, setup.CompanyID, billingapp.ApplyAllocationRequest{
		PaymentID: paymentID,
		Preview:   *preview,
	})
	require.NoError(t, err)

	corrective, err := setup.Service.ReverseAllocation(ctx, setup.CompanyID, result.Allocations[0].ID, "Payment booked to wrong partner")
	require.NoError(t, err)
	require.NotNil(t, corrective.ReversalOfID)
	assert.Equal(t, result.Allocations[0].ID, *corrective.ReversalOfID)

	// Invoice balance and write-off fully restored
	balance, writtenOff, status := setup.invoiceState(t, invoiceID)
	assert.True(t, balance.Equal(decimal.RequireFromString("100")), "Balance should be restored, got %s", balance)
	assert.True(t, writtenOff.IsZero())
	assert.Equal(t, "OPEN", status)

	// History holds the original (now REVERSED) and the corrective record
	records, total, err := setup.Service.ListAllocations(ctx, setup.CompanyID, billingapp.AllocationListFilter{
		PaymentID: &paymentID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	statuses := make(map[string]int)
	for _, r := range records {
		statuses[r.Status]++
	}
	assert.Equal(t, 1, statuses["REVERSED"])

	// A reversed allocation cannot be reversed again
	_, err = setup.Service.ReverseAllocation(ctx, setup.CompanyID, result.Allocations[0].ID, "Twice")
	require.Error(t, err)
}

func TestSmartPayment_ExcessBecomesPartnerCredit(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	setup := NewPaymentTestSetup(t, "CREDIT")
	ctx := context.Background()

	setup.createInvoice(t, "RE-2026-0004", "100.00")

	// 110.00 payment leaves 10.00 excess, above the 5.00 absolute cap
	paymentID := uuid.New()
	preview, err := setup.Service.PreviewAllocation(ctx, setup.CompanyID, billingapp.PreviewAllocationRequest{
		PaymentID: paymentID,
		PartnerID: setup.PartnerID,
		Amount:    "110.00",
		Currency:  "EUR",
	})
	require.NoError(t, err)
	assert.Equal(t, "CREDIT_BALANCE", preview.ExcessHandling)
	assert.Equal(t, "10.0000", preview.ExcessAmount)

	result, err := setup.Service.ApplyAllocation(ctx, setup.CompanyID, billingapp.ApplyAllocationRequest{
		PaymentID: paymentID,
		Preview:   *preview,
	})
	require.NoError(t, err)
	require.NotNil(t, result.CreditID)

	credits, err := setup.Service.ListPartnerCredits(ctx, setup.CompanyID, setup.PartnerID, true)
	require.NoError(t, err)
	require.Len(t, credits, 1)
	assert.Equal(t, "10.0000", credits[0].Amount)
	assert.Equal(t, "AVAILABLE", credits[0].Status)
	assert.Equal(t, paymentID, credits[0].PaymentID)
}

func TestSmartPayment_ToleranceResolutionPrecedence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	setup := NewPaymentTestSetup(t, "AUTO")
	ctx := context.Background()

	// Only the system row exists at first
	settings, err := setup.Service.GetToleranceSettings(ctx, setup.CompanyID)
	require.NoError(t, err)
	assert.Equal(t, "5.0000", settings.MaxWriteoffAbsolute)
	assert.Equal(t, "SYSTEM", settings.AbsoluteScope)
	assert.Equal(t, "SYSTEM", settings.PercentScope)

	// A country row overrides field by field; the percent cap stays SYSTEM
	setup.DB.SeedCountryTolerance("DE", "10.00", "")

	settings, err = setup.Service.GetToleranceSettings(ctx, setup.CompanyID)
	require.NoError(t, err)
	assert.Equal(t, "10.0000", settings.MaxWriteoffAbsolute)
	assert.Equal(t, "COUNTRY", settings.AbsoluteScope)
	assert.Equal(t, "2.0000", settings.MaxWriteoffPercent)
	assert.Equal(t, "SYSTEM", settings.PercentScope)

	// A company override wins over the country row
	absolute := "3.50"
	settings, err = setup.Service.UpdateToleranceSettings(ctx, setup.CompanyID, billingapp.UpdateToleranceSettingsRequest{
		MaxWriteoffAbsolute: &absolute,
	})
	require.NoError(t, err)
	assert.Equal(t, "3.5000", settings.MaxWriteoffAbsolute)
	assert.Equal(t, "COMPANY", settings.AbsoluteScope)
	assert.Equal(t, "SYSTEM", settings.PercentScope)
}
