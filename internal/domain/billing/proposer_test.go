package billing

import (
	"testing"
	"time"

	"github.com/autoerp/backend/internal/domain/shared"
	"github.com/autoerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTenantID = uuid.New()

func testTolerance(absolute, percent string) *EffectiveTolerance {
	return &EffectiveTolerance{
		MaxWriteoffAbsolute: decimal.RequireFromString(absolute),
		MaxWriteoffPercent:  decimal.RequireFromString(percent),
		AbsoluteScope:       ToleranceScopeSystem,
		PercentScope:        ToleranceScopeSystem,
	}
}

func testOpenInvoice(t *testing.T, partnerID uuid.UUID, number, balance string, dueDate *time.Time) Invoice {
	t.Helper()
	total, err := valueobject.NewMoneyFromString(balance, valueobject.EUR)
	require.NoError(t, err)
	inv, err := NewInvoice(testTenantID, number, partnerID, "Partner GmbH", total, dueDate)
	require.NoError(t, err)
	return *inv
}

func testRequest(partnerID uuid.UUID, amount string, invoiceIDs ...uuid.UUID) *AllocationRequest {
	return &AllocationRequest{
		PaymentID:  uuid.New(),
		PartnerID:  partnerID,
		Amount:     decimal.RequireFromString(amount),
		Currency:   valueobject.EUR,
		InvoiceIDs: invoiceIDs,
	}
}

func TestAllocationProposer_Propose(t *testing.T) {
	proposer := NewAllocationProposer()
	partnerID := uuid.New()

	t.Run("exact payment settles single invoice with no excess", func(t *testing.T) {
		inv := testOpenInvoice(t, partnerID, "INV-001", "100.00", nil)

		preview, err := proposer.Propose(
			testRequest(partnerID, "100.00", inv.ID),
			testTolerance("1.00", "10"),
			[]Invoice{inv},
			ExcessPolicyAuto,
		)
		require.NoError(t, err)

		require.Len(t, preview.Lines, 1)
		assert.Equal(t, "100", preview.Lines[0].AllocatedAmount.String())
		assert.True(t, preview.Lines[0].ToleranceWriteoff.IsZero())
		assert.True(t, preview.Lines[0].RemainingBalanceAfter.IsZero())
		assert.True(t, preview.ExcessAmount.IsZero())
		assert.Equal(t, ExcessHandlingNone, preview.ExcessHandling)
	})

	t.Run("small excess is absorbed into the last line's write-off", func(t *testing.T) {
		inv := testOpenInvoice(t, partnerID, "INV-001", "99.50", nil)

		preview, err := proposer.Propose(
			testRequest(partnerID, "100.00", inv.ID),
			testTolerance("1.00", "10"),
			[]Invoice{inv},
			ExcessPolicyAuto,
		)
		require.NoError(t, err)

		require.Len(t, preview.Lines, 1)
		assert.Equal(t, "99.5", preview.Lines[0].AllocatedAmount.String())
		assert.Equal(t, "0.5", preview.Lines[0].ToleranceWriteoff.String())
		assert.True(t, preview.ExcessAmount.IsZero())
		assert.Equal(t, ExcessHandlingNone, preview.ExcessHandling)
	})

	t.Run("payment spans two invoices in the requested order", func(t *testing.T) {
		first := testOpenInvoice(t, partnerID, "INV-001", "100.00", nil)
		second := testOpenInvoice(t, partnerID, "INV-002", "100.00", nil)

		preview, err := proposer.Propose(
			testRequest(partnerID, "150.00", first.ID, second.ID),
			testTolerance("1.00", "10"),
			[]Invoice{first, second},
			ExcessPolicyAuto,
		)
		require.NoError(t, err)

		require.Len(t, preview.Lines, 2)
		assert.Equal(t, first.ID, preview.Lines[0].InvoiceID)
		assert.Equal(t, "100", preview.Lines[0].AllocatedAmount.String())
		assert.Equal(t, second.ID, preview.Lines[1].InvoiceID)
		assert.Equal(t, "50", preview.Lines[1].AllocatedAmount.String())
		assert.Equal(t, "50", preview.Lines[1].RemainingBalanceAfter.String())
		assert.True(t, preview.ExcessAmount.IsZero())
	})

	t.Run("excess above cap with no other open invoices requires refund", func(t *testing.T) {
		inv := testOpenInvoice(t, partnerID, "INV-001", "100.00", nil)

		preview, err := proposer.Propose(
			testRequest(partnerID, "105.00", inv.ID),
			testTolerance("2.00", "10"),
			[]Invoice{inv},
			ExcessPolicyAuto,
		)
		require.NoError(t, err)

		require.Len(t, preview.Lines, 1)
		assert.Equal(t, "100", preview.Lines[0].AllocatedAmount.String())
		assert.Equal(t, "5", preview.ExcessAmount.String())
		assert.Equal(t, ExcessHandlingRefundRequired, preview.ExcessHandling)
	})

	t.Run("excess above cap becomes credit when other open invoices exist", func(t *testing.T) {
		target := testOpenInvoice(t, partnerID, "INV-001", "100.00", nil)
		other := testOpenInvoice(t, partnerID, "INV-002", "40.00", nil)

		preview, err := proposer.Propose(
			testRequest(partnerID, "105.00", target.ID),
			testTolerance("2.00", "10"),
			[]Invoice{target, other},
			ExcessPolicyAuto,
		)
		require.NoError(t, err)

		assert.Equal(t, "5", preview.ExcessAmount.String())
		assert.Equal(t, ExcessHandlingCreditBalance, preview.ExcessHandling)
	})

	t.Run("shortfall within cap settles the invoice with a write-off", func(t *testing.T) {
		inv := testOpenInvoice(t, partnerID, "INV-001", "100.00", nil)

		preview, err := proposer.Propose(
			testRequest(partnerID, "99.50", inv.ID),
			testTolerance("1.00", "10"),
			[]Invoice{inv},
			ExcessPolicyAuto,
		)
		require.NoError(t, err)

		require.Len(t, preview.Lines, 1)
		assert.Equal(t, "99.5", preview.Lines[0].AllocatedAmount.String())
		assert.Equal(t, "0.5", preview.Lines[0].ToleranceWriteoff.String())
		assert.True(t, preview.Lines[0].RemainingBalanceAfter.IsZero())
		assert.True(t, preview.ExcessAmount.IsZero())
		assert.Equal(t, ExcessHandlingNone, preview.ExcessHandling)
	})

	t.Run("shortfall beyond cap leaves the invoice partially covered", func(t *testing.T) {
		inv := testOpenInvoice(t, partnerID, "INV-001", "100.00", nil)

		preview, err := proposer.Propose(
			testRequest(partnerID, "95.00", inv.ID),
			testTolerance("1.00", "10"),
			[]Invoice{inv},
			ExcessPolicyAuto,
		)
		require.NoError(t, err)

		require.Len(t, preview.Lines, 1)
		assert.Equal(t, "95", preview.Lines[0].AllocatedAmount.String())
		assert.True(t, preview.Lines[0].ToleranceWriteoff.IsZero())
		assert.Equal(t, "5", preview.Lines[0].RemainingBalanceAfter.String())
	})

	t.Run("percent cap can bind tighter than the absolute cap", func(t *testing.T) {
		// 1% of 20.00 is 0.20, below the 1.00 absolute cap
		inv := testOpenInvoice(t, partnerID, "INV-001", "20.00", nil)

		preview, err := proposer.Propose(
			testRequest(partnerID, "19.50", inv.ID),
			testTolerance("1.00", "1"),
			[]Invoice{inv},
			ExcessPolicyAuto,
		)
		require.NoError(t, err)

		require.Len(t, preview.Lines, 1)
		assert.True(t, preview.Lines[0].ToleranceWriteoff.IsZero())
		assert.Equal(t, "0.5", preview.Lines[0].RemainingBalanceAfter.String())
	})

	t.Run("auto selection orders open invoices oldest due date first", func(t *testing.T) {
		now := time.Now()
		earlier := now.Add(-72 * time.Hour)
		later := now.Add(72 * time.Hour)

		newest := testOpenInvoice(t, partnerID, "INV-003", "100.00", &later)
		oldest := testOpenInvoice(t, partnerID, "INV-001", "100.00", &earlier)
		middle := testOpenInvoice(t, partnerID, "INV-002", "100.00", &now)

		preview, err := proposer.Propose(
			testRequest(partnerID, "150.00"),
			testTolerance("1.00", "10"),
			[]Invoice{newest, oldest, middle},
			ExcessPolicyAuto,
		)
		require.NoError(t, err)

		require.Len(t, preview.Lines, 2)
		assert.Equal(t, oldest.ID, preview.Lines[0].InvoiceID)
		assert.Equal(t, "100", preview.Lines[0].AllocatedAmount.String())
		assert.Equal(t, middle.ID, preview.Lines[1].InvoiceID)
		assert.Equal(t, "50", preview.Lines[1].AllocatedAmount.String())
	})

	t.Run("auto selection breaks due date ties by invoice number", func(t *testing.T) {
		due := time.Now().Add(24 * time.Hour)
		b := testOpenInvoice(t, partnerID, "INV-B", "50.00", &due)
		a := testOpenInvoice(t, partnerID, "INV-A", "50.00", &due)

		preview, err := proposer.Propose(
			testRequest(partnerID, "60.00"),
			testTolerance("1.00", "10"),
			[]Invoice{b, a},
			ExcessPolicyAuto,
		)
		require.NoError(t, err)

		require.Len(t, preview.Lines, 2)
		assert.Equal(t, a.ID, preview.Lines[0].InvoiceID)
		assert.Equal(t, b.ID, preview.Lines[1].InvoiceID)
	})

	t.Run("non-positive amount is rejected", func(t *testing.T) {
		inv := testOpenInvoice(t, partnerID, "INV-001", "100.00", nil)

		_, err := proposer.Propose(
			testRequest(partnerID, "0", inv.ID),
			testTolerance("1.00", "10"),
			[]Invoice{inv},
			ExcessPolicyAuto,
		)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_AMOUNT", domainErr.Code)
	})

	t.Run("currency mismatch is rejected", func(t *testing.T) {
		inv := testOpenInvoice(t, partnerID, "INV-001", "100.00", nil)

		request := testRequest(partnerID, "100.00", inv.ID)
		request.Currency = valueobject.USD

		_, err := proposer.Propose(request, testTolerance("1.00", "10"), []Invoice{inv}, ExcessPolicyAuto)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "CURRENCY_MISMATCH", domainErr.Code)
	})

	t.Run("explicit target outside the snapshot is not found", func(t *testing.T) {
		inv := testOpenInvoice(t, partnerID, "INV-001", "100.00", nil)

		_, err := proposer.Propose(
			testRequest(partnerID, "100.00", uuid.New()),
			testTolerance("1.00", "10"),
			[]Invoice{inv},
			ExcessPolicyAuto,
		)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "NOT_FOUND", domainErr.Code)
	})

	t.Run("preview is deterministic for identical inputs", func(t *testing.T) {
		inv := testOpenInvoice(t, partnerID, "INV-001", "99.50", nil)
		request := testRequest(partnerID, "100.00", inv.ID)
		tolerance := testTolerance("1.00", "10")

		first, err := proposer.Propose(request, tolerance, []Invoice{inv}, ExcessPolicyAuto)
		require.NoError(t, err)
		second, err := proposer.Propose(request, tolerance, []Invoice{inv}, ExcessPolicyAuto)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("payment amount is conserved across lines and excess", func(t *testing.T) {
		now := time.Now()
		invoices := []Invoice{
			testOpenInvoice(t, partnerID, "INV-001", "33.3300", &now),
			testOpenInvoice(t, partnerID, "INV-002", "66.6700", &now),
			testOpenInvoice(t, partnerID, "INV-003", "10.0001", &now),
		}

		for _, amount := range []string{"25.00", "100.0001", "110.5000", "250.00"} {
			request := testRequest(partnerID, amount)
			preview, err := proposer.Propose(request, testTolerance("0.50", "5"), invoices, ExcessPolicyAuto)
			require.NoError(t, err)

			assert.True(t, preview.PaymentMoney().Equal(request.Amount),
				"payment %s: allocated %s + absorbed %s + excess %s", amount,
				preview.TotalAllocated, preview.ExcessAbsorbed, preview.ExcessAmount)

			for _, line := range preview.Lines {
				assert.True(t, line.AllocatedAmount.LessThanOrEqual(decimal.RequireFromString("66.67")),
					"no line may exceed the largest balance")
			}
		}
	})
}

func TestClassifyExcess(t *testing.T) {
	tolerance := testTolerance("2.00", "10")

	t.Run("zero excess needs no handling", func(t *testing.T) {
		handling := ClassifyExcess(decimal.Zero, tolerance, false, ExcessPolicyAuto)
		assert.Equal(t, ExcessHandlingNone, handling)
	})

	t.Run("excess within absolute cap is written off", func(t *testing.T) {
		handling := ClassifyExcess(decimal.RequireFromString("1.50"), tolerance, false, ExcessPolicyAuto)
		assert.Equal(t, ExcessHandlingToleranceWriteoff, handling)
	})

	t.Run("auto policy credits partner with other open invoices", func(t *testing.T) {
		handling := ClassifyExcess(decimal.RequireFromString("5.00"), tolerance, true, ExcessPolicyAuto)
		assert.Equal(t, ExcessHandlingCreditBalance, handling)
	})

	t.Run("auto policy requires refund without other open invoices", func(t *testing.T) {
		handling := ClassifyExcess(decimal.RequireFromString("5.00"), tolerance, false, ExcessPolicyAuto)
		assert.Equal(t, ExcessHandlingRefundRequired, handling)
	})

	t.Run("credit policy forces a credit", func(t *testing.T) {
		handling := ClassifyExcess(decimal.RequireFromString("5.00"), tolerance, false, ExcessPolicyCredit)
		assert.Equal(t, ExcessHandlingCreditBalance, handling)
	})

	t.Run("refund policy forces a refund", func(t *testing.T) {
		handling := ClassifyExcess(decimal.RequireFromString("5.00"), tolerance, true, ExcessPolicyRefund)
		assert.Equal(t, ExcessHandlingRefundRequired, handling)
	})
}
