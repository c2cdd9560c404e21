package billing

import (
	"github.com/shopspring/decimal"
)

// ClassifyExcess decides how unabsorbed payment excess is handled.
// Excess within the absolute tolerance cap is forgiven outright; anything
// larger follows the company's excess policy, where AUTO credits the partner
// only when they have other open invoices to spend the credit on.
// Advisory only; nothing is persisted from classification.
func ClassifyExcess(excess decimal.Decimal, tolerance *EffectiveTolerance, hasOtherOpenInvoices bool, policy ExcessPolicy) ExcessHandling {
	if excess.LessThanOrEqual(decimal.Zero) {
		return ExcessHandlingNone
	}
	if excess.LessThanOrEqual(tolerance.MaxWriteoffAbsolute) {
		return ExcessHandlingToleranceWriteoff
	}

	switch policy {
	case ExcessPolicyCredit:
		return ExcessHandlingCreditBalance
	case ExcessPolicyRefund:
		return ExcessHandlingRefundRequired
	default:
		if hasOtherOpenInvoices {
			return ExcessHandlingCreditBalance
		}
		return ExcessHandlingRefundRequired
	}
}
