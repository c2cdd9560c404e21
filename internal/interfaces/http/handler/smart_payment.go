package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	billingapp "github.com/autoerp/backend/internal/application/billing"
)

// SmartPaymentHandler handles payment allocation API endpoints
type SmartPaymentHandler struct {
	BaseHandler
	paymentService *billingapp.SmartPaymentService
}

// NewSmartPaymentHandler creates a new SmartPaymentHandler
func NewSmartPaymentHandler(paymentService *billingapp.SmartPaymentService) *SmartPaymentHandler {
	return &SmartPaymentHandler{
		paymentService: paymentService,
	}
}

// ReverseAllocationRequest carries the reversal reason
type ReverseAllocationRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// GetToleranceSettings godoc
// @Summary      Get effective tolerance settings
// @Description  Resolve the effective write-off tolerance for the current company
// @Tags         smart-payment
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Success      200 {object} dto.Response{data=billingapp.ToleranceSettingsResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /smart-payment/tolerance-settings [get]
func (h *SmartPaymentHandler) GetToleranceSettings(c *gin.Context) {
	companyID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	settings, err := h.paymentService.GetToleranceSettings(c.Request.Context(), companyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, settings)
}

// UpdateToleranceSettings godoc
// @Summary      Update tolerance settings
// @Description  Upsert the company-scope write-off tolerance override
// @Tags         smart-payment
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        request body billingapp.UpdateToleranceSettingsRequest true "Tolerance caps"
// @Success      200 {object} dto.Response{data=billingapp.ToleranceSettingsResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /smart-payment/tolerance-settings [put]
func (h *SmartPaymentHandler) UpdateToleranceSettings(c *gin.Context) {
	companyID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req billingapp.UpdateToleranceSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	settings, err := h.paymentService.UpdateToleranceSettings(c.Request.Context(), companyID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, settings)
}

// PreviewAllocation godoc
// @Summary      Preview a payment allocation
// @Description  Propose how a payment would be distributed across open invoices without persisting anything
// @Tags         smart-payment
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        request body billingapp.PreviewAllocationRequest true "Payment to preview"
// @Success      200 {object} dto.Response{data=billingapp.AllocationPreviewResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /smart-payment/preview-allocation [post]
func (h *SmartPaymentHandler) PreviewAllocation(c *gin.Context) {
	companyID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req billingapp.PreviewAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	preview, err := h.paymentService.PreviewAllocation(c.Request.Context(), companyID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, preview)
}

// ApplyAllocation godoc
// @Summary      Apply a previewed allocation
// @Description  Persist an accepted allocation preview atomically; fails with STALE_ALLOCATION if invoice balances changed since the preview
// @Tags         smart-payment
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        request body billingapp.ApplyAllocationRequest true "Accepted preview"
// @Success      201 {object} dto.Response{data=billingapp.ApplyAllocationResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /smart-payment/apply-allocation [post]
func (h *SmartPaymentHandler) ApplyAllocation(c *gin.Context) {
	companyID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req billingapp.ApplyAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.paymentService.ApplyAllocation(c.Request.Context(), companyID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// ListOpenInvoices godoc
// @Summary      List open invoices for a partner
// @Description  Return a partner's invoices with an open balance, oldest due date first
// @Tags         smart-payment
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        partner_id query string true "Partner ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]billingapp.OpenInvoiceResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /smart-payment/open-invoices [get]
func (h *SmartPaymentHandler) ListOpenInvoices(c *gin.Context) {
	companyID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	partnerID, err := uuid.Parse(c.Query("partner_id"))
	if err != nil {
		h.BadRequest(c, "Invalid partner ID format")
		return
	}

	invoices, err := h.paymentService.ListOpenInvoices(c.Request.Context(), companyID, partnerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoices)
}

// CreateInvoice godoc
// @Summary      Create an invoice
// @Description  Create a new open invoice
// @Tags         smart-payment
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        request body billingapp.CreateInvoiceRequest true "Invoice to create"
// @Success      201 {object} dto.Response{data=billingapp.OpenInvoiceResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /smart-payment/invoices [post]
func (h *SmartPaymentHandler) CreateInvoice(c *gin.Context) {
	companyID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req billingapp.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	invoice, err := h.paymentService.CreateInvoice(c.Request.Context(), companyID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, invoice)
}

// ListAllocations godoc
// @Summary      List allocation history
// @Description  Return persisted allocation records with optional payment/invoice/partner filters
// @Tags         smart-payment
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        payment_id query string false "Payment ID" format(uuid)
// @Param        invoice_id query string false "Invoice ID" format(uuid)
// @Param        partner_id query string false "Partner ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]billingapp.AllocationRecordResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /smart-payment/allocations [get]
func (h *SmartPaymentHandler) ListAllocations(c *gin.Context) {
	companyID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter billingapp.AllocationListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	allocations, total, err := h.paymentService.ListAllocations(c.Request.Context(), companyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, allocations, total, filter.Page, filter.PageSize)
}

// ReverseAllocation godoc
// @Summary      Reverse an allocation
// @Description  Create a corrective record that restores the invoice balance; the original record stays immutable
// @Tags         smart-payment
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Allocation ID" format(uuid)
// @Param        request body ReverseAllocationRequest true "Reversal reason"
// @Success      201 {object} dto.Response{data=billingapp.AllocationRecordResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /smart-payment/allocations/{id}/reverse [post]
func (h *SmartPaymentHandler) ReverseAllocation(c *gin.Context) {
	companyID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	allocationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid allocation ID format")
		return
	}

	var req ReverseAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	reversal, err := h.paymentService.ReverseAllocation(c.Request.Context(), companyID, allocationID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, reversal)
}

// ListPartnerCredits godoc
// @Summary      List partner credits
// @Description  Return credits created from payment excess for a partner
// @Tags         smart-payment
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        partner_id query string true "Partner ID" format(uuid)
// @Param        only_available query bool false "Only credits still available"
// @Success      200 {object} dto.Response{data=[]billingapp.PartnerCreditResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /smart-payment/credits [get]
func (h *SmartPaymentHandler) ListPartnerCredits(c *gin.Context) {
	companyID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	partnerID, err := uuid.Parse(c.Query("partner_id"))
	if err != nil {
		h.BadRequest(c, "Invalid partner ID format")
		return
	}

	onlyAvailable := c.Query("only_available") == "true"

	credits, err := h.paymentService.ListPartnerCredits(c.Request.Context(), companyID, partnerID, onlyAvailable)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, credits)
}
