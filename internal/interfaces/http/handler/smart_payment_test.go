package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	billingapp "github.com/autoerp/backend/internal/application/billing"
	"github.com/autoerp/backend/internal/domain/billing"
	"github.com/autoerp/backend/internal/domain/shared"
	"github.com/autoerp/backend/internal/domain/shared/valueobject"
)

// MockCompanyRepository implements billing.CompanyRepository for testing
type MockCompanyRepository struct {
	mock.Mock
}

func (m *MockCompanyRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Company, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Company), args.Error(1)
}

func (m *MockCompanyRepository) Save(ctx context.Context, company *billing.Company) error {
	args := m.Called(ctx, company)
	return args.Error(0)
}

// MockInvoiceRepository implements billing.InvoiceRepository for testing
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindOpenByPartner(ctx context.Context, tenantID, partnerID uuid.UUID) ([]billing.Invoice, error) {
	args := m.Called(ctx, tenantID, partnerID)
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.InvoiceFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) ExistsByInvoiceNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (bool, error) {
	args := m.Called(ctx, tenantID, invoiceNumber)
	return args.Bool(0), args.Error(1)
}

// MockAllocationRepository implements billing.PaymentAllocationRepository for testing
type MockAllocationRepository struct {
	mock.Mock
}

func (m *MockAllocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.PaymentAllocation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PaymentAllocation), args.Error(1)
}

func (m *MockAllocationRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.PaymentAllocation, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PaymentAllocation), args.Error(1)
}

func (m *MockAllocationRepository) FindByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) ([]billing.PaymentAllocation, error) {
	args := m.Called(ctx, tenantID, paymentID)
	return args.Get(0).([]billing.PaymentAllocation), args.Error(1)
}

func (m *MockAllocationRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.AllocationFilter) ([]billing.PaymentAllocation, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]billing.PaymentAllocation), args.Error(1)
}

func (m *MockAllocationRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.AllocationFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAllocationRepository) Save(ctx context.Context, allocation *billing.PaymentAllocation) error {
	args := m.Called(ctx, allocation)
	return args.Error(0)
}

// MockToleranceRepository implements billing.ToleranceSettingRepository for testing
type MockToleranceRepository struct {
	mock.Mock
}

func (m *MockToleranceRepository) FindSystemDefault(ctx context.Context) (*billing.ToleranceSetting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ToleranceSetting), args.Error(1)
}

func (m *MockToleranceRepository) FindByCountry(ctx context.Context, countryCode string) (*billing.ToleranceSetting, error) {
	args := m.Called(ctx, countryCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ToleranceSetting), args.Error(1)
}

func (m *MockToleranceRepository) FindByCompany(ctx context.Context, companyID uuid.UUID) (*billing.ToleranceSetting, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ToleranceSetting), args.Error(1)
}

func (m *MockToleranceRepository) Save(ctx context.Context, setting *billing.ToleranceSetting) error {
	args := m.Called(ctx, setting)
	return args.Error(0)
}

// MockCreditRepository implements billing.PartnerCreditRepository for testing
type MockCreditRepository struct {
	mock.Mock
}

func (m *MockCreditRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.PartnerCredit, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PartnerCredit), args.Error(1)
}

func (m *MockCreditRepository) FindByPartner(ctx context.Context, tenantID, partnerID uuid.UUID, onlyAvailable bool) ([]billing.PartnerCredit, error) {
	args := m.Called(ctx, tenantID, partnerID, onlyAvailable)
	return args.Get(0).([]billing.PartnerCredit), args.Error(1)
}

func (m *MockCreditRepository) Save(ctx context.Context, credit *billing.PartnerCredit) error {
	args := m.Called(ctx, credit)
	return args.Error(0)
}

// MockUnitOfWork implements billing.AllocationUnitOfWork for testing.
// WithinTx runs the callback against a MockTxContext.
type MockUnitOfWork struct {
	tx MockTxContext
}

func (m *MockUnitOfWork) WithinTx(ctx context.Context, fn func(tx billing.AllocationTxContext) error) error {
	return fn(&m.tx)
}

// MockTxContext implements billing.AllocationTxContext for testing
type MockTxContext struct {
	mock.Mock
}

func (m *MockTxContext) FindInvoiceForUpdate(ctx context.Context, tenantID, invoiceID uuid.UUID) (*billing.Invoice, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockTxContext) FindAllocationForUpdate(ctx context.Context, tenantID, allocationID uuid.UUID) (*billing.PaymentAllocation, error) {
	args := m.Called(ctx, tenantID, allocationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PaymentAllocation), args.Error(1)
}

func (m *MockTxContext) SaveInvoice(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockTxContext) SaveAllocation(ctx context.Context, allocation *billing.PaymentAllocation) error {
	args := m.Called(ctx, allocation)
	return args.Error(0)
}

func (m *MockTxContext) SaveCredit(ctx context.Context, credit *billing.PartnerCredit) error {
	args := m.Called(ctx, credit)
	return args.Error(0)
}

// Fixtures

const devTenant = "00000000-0000-0000-0000-000000000001"

type paymentHandlerFixture struct {
	companyRepo    *MockCompanyRepository
	invoiceRepo    *MockInvoiceRepository
	allocationRepo *MockAllocationRepository
	toleranceRepo  *MockToleranceRepository
	creditRepo     *MockCreditRepository
	uow            *MockUnitOfWork
	handler        *SmartPaymentHandler
}

func setupPaymentHandler() *paymentHandlerFixture {
	f := &paymentHandlerFixture{
		companyRepo:    new(MockCompanyRepository),
		invoiceRepo:    new(MockInvoiceRepository),
		allocationRepo: new(MockAllocationRepository),
		toleranceRepo:  new(MockToleranceRepository),
		creditRepo:     new(MockCreditRepository),
		uow:            &MockUnitOfWork{},
	}
	service := billingapp.NewSmartPaymentService(
		f.companyRepo,
		f.invoiceRepo,
		f.allocationRepo,
		f.toleranceRepo,
		f.creditRepo,
		f.uow,
	)
	f.handler = NewSmartPaymentHandler(service)
	return f
}

func setupTestRouter() *gin.Engine {
	router := gin.New()
	return router
}

func testCompany(t *testing.T) *billing.Company {
	t.Helper()
	company, err := billing.NewCompany("Auto Parts GmbH", "DE", valueobject.EUR)
	require.NoError(t, err)
	company.ID = uuid.MustParse(devTenant)
	return company
}

func testSystemTolerance(t *testing.T) *billing.ToleranceSetting {
	t.Helper()
	abs := decimal.RequireFromString("5.00")
	pct := decimal.RequireFromString("2.00")
	setting, err := billing.NewToleranceSetting(billing.ToleranceScopeSystem, nil, "", &abs, &pct)
	require.NoError(t, err)
	return setting
}

func testOpenInvoice(t *testing.T, tenantID, partnerID uuid.UUID, number, amount string) billing.Invoice {
	t.Helper()
	total, err := valueobject.NewMoneyFromString(amount, valueobject.EUR)
	require.NoError(t, err)
	inv, err := billing.NewInvoice(tenantID, number, partnerID, "Test Partner", total, nil)
	require.NoError(t, err)
	return *inv
}

func expectSystemToleranceOnly(f *paymentHandlerFixture, tenantID uuid.UUID, t *testing.T) {
	f.toleranceRepo.On("FindByCompany", mock.Anything, tenantID).Return(nil, nil)
	f.toleranceRepo.On("FindByCountry", mock.Anything, "DE").Return(nil, nil)
	f.toleranceRepo.On("FindSystemDefault", mock.Anything).Return(testSystemTolerance(t), nil)
}

// Tests

func TestSmartPaymentHandler_GetToleranceSettings_Success(t *testing.T) {
	f := setupPaymentHandler()
	tenantID := uuid.MustParse(devTenant)

	f.companyRepo.On("FindByID", mock.Anything, tenantID).Return(testCompany(t), nil)
	expectSystemToleranceOnly(f, tenantID, t)

	router := setupTestRouter()
	router.GET("/smart-payment/tolerance-settings", f.handler.GetToleranceSettings)

	req := httptest.NewRequest(http.MethodGet, "/smart-payment/tolerance-settings", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                                 `json:"success"`
		Data    billingapp.ToleranceSettingsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "5.0000", resp.Data.MaxWriteoffAbsolute)
	assert.Equal(t, "SYSTEM", resp.Data.AbsoluteScope)
	f.toleranceRepo.AssertExpectations(t)
}

func TestSmartPaymentHandler_GetToleranceSettings_CompanyNotFound(t *testing.T) {
	f := setupPaymentHandler()
	tenantID := uuid.MustParse(devTenant)

	f.companyRepo.On("FindByID", mock.Anything, tenantID).Return(nil, shared.ErrNotFound)

	router := setupTestRouter()
	router.GET("/smart-payment/tolerance-settings", f.handler.GetToleranceSettings)

	req := httptest.NewRequest(http.MethodGet, "/smart-payment/tolerance-settings", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestSmartPaymentHandler_UpdateToleranceSettings_InvalidAmount(t *testing.T) {
	f := setupPaymentHandler()
	tenantID := uuid.MustParse(devTenant)

	f.companyRepo.On("FindByID", mock.Anything, tenantID).Return(testCompany(t), nil)

	router := setupTestRouter()
	router.PUT("/smart-payment/tolerance-settings", f.handler.UpdateToleranceSettings)

	body, _ := json.Marshal(map[string]any{"max_writeoff_absolute": "not-a-number"})
	req := httptest.NewRequest(http.MethodPut, "/smart-payment/tolerance-settings", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_AMOUNT")
}

func TestSmartPaymentHandler_PreviewAllocation_Success(t *testing.T) {
	f := setupPaymentHandler()
	tenantID := uuid.MustParse(devTenant)
	partnerID := uuid.New()
	paymentID := uuid.New()

	invoices := []billing.Invoice{
		testOpenInvoice(t, tenantID, partnerID, "INV-001", "100.00"),
	}

	f.companyRepo.On("FindByID", mock.Anything, tenantID).Return(testCompany(t), nil)
	expectSystemToleranceOnly(f, tenantID, t)
	f.invoiceRepo.On("FindOpenByPartner", mock.Anything, tenantID, partnerID).Return(invoices, nil)

	router := setupTestRouter()
	router.POST("/smart-payment/preview-allocation", f.handler.PreviewAllocation)

	reqBody := billingapp.PreviewAllocationRequest{
		PaymentID: paymentID,
		PartnerID: partnerID,
		Amount:    "99.00",
		Currency:  "EUR",
	}
	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/smart-payment/preview-allocation", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                                 `json:"success"`
		Data    billingapp.AllocationPreviewResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Allocations, 1)
	// 1.00 shortfall sits inside the 5.00 absolute / 2% caps
	assert.Equal(t, "99.0000", resp.Data.Allocations[0].AllocatedAmount)
	assert.Equal(t, "1.0000", resp.Data.Allocations[0].ToleranceWriteoff)
	assert.Equal(t, "0.0000", resp.Data.Allocations[0].RemainingBalanceAfter)
}

func TestSmartPaymentHandler_PreviewAllocation_InvalidJSON(t *testing.T) {
	f := setupPaymentHandler()

	router := setupTestRouter()
	router.POST("/smart-payment/preview-allocation", f.handler.PreviewAllocation)

	req := httptest.NewRequest(http.MethodPost, "/smart-payment/preview-allocation", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSmartPaymentHandler_ListOpenInvoices_Success(t *testing.T) {
	f := setupPaymentHandler()
	tenantID := uuid.MustParse(devTenant)
	partnerID := uuid.New()

	invoices := []billing.Invoice{
		testOpenInvoice(t, tenantID, partnerID, "INV-001", "100.00"),
		testOpenInvoice(t, tenantID, partnerID, "INV-002", "50.00"),
	}
	f.invoiceRepo.On("FindOpenByPartner", mock.Anything, tenantID, partnerID).Return(invoices, nil)

	router := setupTestRouter()
	router.GET("/smart-payment/open-invoices", f.handler.ListOpenInvoices)

	req := httptest.NewRequest(http.MethodGet, "/smart-payment/open-invoices?partner_id="+partnerID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                             `json:"success"`
		Data    []billingapp.OpenInvoiceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
}

func TestSmartPaymentHandler_ListOpenInvoices_MissingPartner(t *testing.T) {
	f := setupPaymentHandler()

	router := setupTestRouter()
	router.GET("/smart-payment/open-invoices", f.handler.ListOpenInvoices)

	req := httptest.NewRequest(http.MethodGet, "/smart-payment/open-invoices", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSmartPaymentHandler_CreateInvoice_Success(t *testing.T) {
	f := setupPaymentHandler()
	tenantID := uuid.MustParse(devTenant)
	partnerID := uuid.New()

	f.invoiceRepo.On("ExistsByInvoiceNumber", mock.Anything, tenantID, "INV-100").Return(false, nil)
	f.invoiceRepo.On("Save", mock.Anything, mock.AnythingOfType("*billing.Invoice")).Return(nil)

	router := setupTestRouter()
	router.POST("/smart-payment/invoices", f.handler.CreateInvoice)

	reqBody := billingapp.CreateInvoiceRequest{
		InvoiceNumber: "INV-100",
		PartnerID:     partnerID,
		PartnerName:   "Test Partner",
		Amount:        "250.00",
		Currency:      "EUR",
	}
	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/smart-payment/invoices", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	f.invoiceRepo.AssertExpectations(t)
}

func TestSmartPaymentHandler_CreateInvoice_DuplicateNumber(t *testing.T) {
	f := setupPaymentHandler()
	tenantID := uuid.MustParse(devTenant)

	f.invoiceRepo.On("ExistsByInvoiceNumber", mock.Anything, tenantID, "INV-100").Return(true, nil)

	router := setupTestRouter()
	router.POST("/smart-payment/invoices", f.handler.CreateInvoice)

	reqBody := billingapp.CreateInvoiceRequest{
		InvoiceNumber: "INV-100",
		PartnerID:     uuid.New(),
		PartnerName:   "Test Partner",
		Amount:        "250.00",
		Currency:      "EUR",
	}
	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/smart-payment/invoices", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ALREADY_EXISTS")
}

func TestSmartPaymentHandler_ListAllocations_Success(t *testing.T) {
	f := setupPaymentHandler()
	tenantID := uuid.MustParse(devTenant)

	f.allocationRepo.On("FindAllForTenant", mock.Anything, tenantID, mock.Anything).Return([]billing.PaymentAllocation{}, nil)
	f.allocationRepo.On("CountForTenant", mock.Anything, tenantID, mock.Anything).Return(int64(0), nil)

	router := setupTestRouter()
	router.GET("/smart-payment/allocations", f.handler.ListAllocations)

	req := httptest.NewRequest(http.MethodGet, "/smart-payment/allocations?page=2&page_size=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Meta    struct {
			Page     int `json:"page"`
			PageSize int `json:"page_size"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Meta.Page)
	assert.Equal(t, 10, resp.Meta.PageSize)
}

func TestSmartPaymentHandler_ReverseAllocation_NotFound(t *testing.T) {
	f := setupPaymentHandler()
	tenantID := uuid.MustParse(devTenant)
	allocationID := uuid.New()

	f.uow.tx.On("FindAllocationForUpdate", mock.Anything, tenantID, allocationID).Return(nil, shared.ErrNotFound)

	router := setupTestRouter()
	router.POST("/smart-payment/allocations/:id/reverse", f.handler.ReverseAllocation)

	body, _ := json.Marshal(ReverseAllocationRequest{Reason: "entered against wrong invoice"})
	req := httptest.NewRequest(http.MethodPost, "/smart-payment/allocations/"+allocationID.String()+"/reverse", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSmartPaymentHandler_ReverseAllocation_MissingReason(t *testing.T) {
	f := setupPaymentHandler()

	router := setupTestRouter()
	router.POST("/smart-payment/allocations/:id/reverse", f.handler.ReverseAllocation)

	req := httptest.NewRequest(http.MethodPost, "/smart-payment/allocations/"+uuid.NewString()+"/reverse", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSmartPaymentHandler_ListPartnerCredits_Success(t *testing.T) {
	f := setupPaymentHandler()
	tenantID := uuid.MustParse(devTenant)
	partnerID := uuid.New()

	f.creditRepo.On("FindByPartner", mock.Anything, tenantID, partnerID, true).Return([]billing.PartnerCredit{}, nil)

	router := setupTestRouter()
	router.GET("/smart-payment/credits", f.handler.ListPartnerCredits)

	req := httptest.NewRequest(http.MethodGet, "/smart-payment/credits?partner_id="+partnerID.String()+"&only_available=true", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	f.creditRepo.AssertExpectations(t)
}
