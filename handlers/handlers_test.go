package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing-service/gateway"
	"billing-service/middleware"
	"billing-service/models"
)

const secret = "handler-test-secret"

type stubPayments struct {
	initResp   *models.InitializePaymentResponse
	verifyResp *models.VerifyPaymentResult
	err        error

	gotStudent string
	gotEmail   string
	webhooks   [][]byte
}

func (s *stubPayments) Initialize(_ context.Context, studentID, email string, req *models.InitializePaymentRequest) (*models.InitializePaymentResponse, error) {
	s.gotStudent, s.gotEmail = studentID, email
	if s.err != nil {
		return nil, s.err
	}
	return s.initResp, nil
}

func (s *stubPayments) Verify(_ context.Context, studentID, _ string) (*models.VerifyPaymentResult, error) {
	s.gotStudent = studentID
	if s.err != nil {
		return nil, s.err
	}
	return s.verifyResp, nil
}

func (s *stubPayments) HandleWebhook(_ context.Context, body []byte) error {
	s.webhooks = append(s.webhooks, body)
	return s.err
}

type stubAccounts struct {
	balance   *models.Balance
	statement []models.StatementEntry
	paid      *models.Bill
	err       error
}

func (s *stubAccounts) Balance(context.Context, string) (*models.Balance, error) {
	return s.balance, s.err
}

func (s *stubAccounts) Statement(context.Context, string) ([]models.StatementEntry, error) {
	return s.statement, s.err
}

func (s *stubAccounts) PayBill(context.Context, string, uuid.UUID) (*models.Bill, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.paid, nil
}

type stubBilling struct {
	bills    []models.Bill
	gotPaid  *bool
	err      error
	lastCall string
}

func (s *stubBilling) CreateBill(_ context.Context, req *models.CreateBillRequest) (*models.Bill, error) {
	s.lastCall = "create"
	if s.err != nil {
		return nil, s.err
	}
	return &models.Bill{ID: uuid.New(), StudentID: req.StudentID, Type: req.Type, AmountUSD: req.AmountUSD}, nil
}

func (s *stubBilling) RaiseApplicationFee(_ context.Context, studentID string) (*models.Bill, error) {
	s.lastCall = "application-fee"
	return &models.Bill{ID: uuid.New(), StudentID: studentID, Type: models.BillTypeApplicationFee}, s.err
}

func (s *stubBilling) RaiseSemesterBills(context.Context, *models.RaiseSemesterBillsRequest) ([]models.Bill, error) {
	s.lastCall = "semester"
	return s.bills, s.err
}

func (s *stubBilling) RaiseCourseRegistrationBills(context.Context, *models.RaiseCourseBillsRequest) ([]models.Bill, error) {
	s.lastCall = "course-registration"
	return s.bills, s.err
}

func (s *stubBilling) ListBills(_ context.Context, _ string, isPaid *bool) ([]models.Bill, error) {
	s.gotPaid = isPaid
	return s.bills, s.err
}

type stubVerifier bool

func (v stubVerifier) VerifySignature([]byte, string) bool { return bool(v) }

type fixture struct {
	router   *gin.Engine
	payments *stubPayments
	accounts *stubAccounts
	billing  *stubBilling
}

func newFixture(validSignature bool) *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{
		payments: &stubPayments{},
		accounts: &stubAccounts{},
		billing:  &stubBilling{},
	}
	f.router = gin.New()
	Register(f.router,
		NewPaymentHandler(f.payments, f.accounts, stubVerifier(validSignature)),
		NewBillHandler(f.billing),
		middleware.Auth(secret),
	)
	return f
}

func token(t *testing.T, role models.UserRole) string {
	t.Helper()
	claims := middleware.Claims{
		UserID: "stu-1",
		Email:  "stu-1@example.edu",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (f *fixture) do(t *testing.T, method, path, body string, role models.UserRole) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, role))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestInitializePayment(t *testing.T) {
	f := newFixture(true)
	f.payments.initResp = &models.InitializePaymentResponse{
		URL:       "https://checkout.paystack.com/abc",
		Amount:    decimal.NewFromInt(80000),
		Reference: "ref-1",
	}

	w := f.do(t, http.MethodPost, "/payment/initialize", `{"amount":80000,"description":"Top-up"}`, models.RoleStudent)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "Payment initialized successfully", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "https://checkout.paystack.com/abc", data["url"])
	assert.Equal(t, "ref-1", data["reference"])
	assert.Equal(t, float64(80000), data["amount"])
	assert.Equal(t, "stu-1", f.payments.gotStudent)
	assert.Equal(t, "stu-1@example.edu", f.payments.gotEmail)
}

func TestInitializePaymentErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "gateway down", body: `{"amount":100,"description":"x"}`, err: fmt.Errorf("%w: initialize returned status 500", gateway.ErrGatewayUnreachable), wantStatus: http.StatusBadGateway},
		{name: "invalid amount", body: `{"amount":-1,"description":"x"}`, err: models.ErrInvalidAmount, wantStatus: http.StatusBadRequest},
		{name: "missing description", body: `{"amount":100}`, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(true)
			f.payments.err = tt.err
			w := f.do(t, http.MethodPost, "/payment/initialize", tt.body, models.RoleStudent)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestRoutesRequireToken(t *testing.T) {
	f := newFixture(true)
	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/payment/initialize"},
		{http.MethodGet, "/payment/verify/ref-1"},
		{http.MethodGet, "/payment/balance"},
		{http.MethodPut, "/payment/pay"},
		{http.MethodGet, "/payment/account-statement"},
		{http.MethodGet, "/payment/bills"},
		{http.MethodPost, "/bills"},
	} {
		w := f.do(t, route.method, route.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
	}
}

func TestVerifyPayment(t *testing.T) {
	paidAt := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name        string
		result      *models.VerifyPaymentResult
		err         error
		wantStatus  int
		wantSuccess any
	}{
		{
			name:        "success",
			result:      &models.VerifyPaymentResult{Success: true, Status: models.PaymentStatusSuccess, PaidAt: &paidAt},
			wantStatus:  http.StatusOK,
			wantSuccess: true,
		},
		{
			name:        "not successful",
			result:      &models.VerifyPaymentResult{Status: models.PaymentStatusFailed},
			wantStatus:  http.StatusBadRequest,
			wantSuccess: false,
		},
		{name: "unknown reference", err: models.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "gateway down", err: gateway.ErrGatewayUnreachable, wantStatus: http.StatusBadGateway},
		{name: "amount mismatch", err: fmt.Errorf("%w: ref-1", models.ErrAmountMismatch), wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(true)
			f.payments.verifyResp = tt.result
			f.payments.err = tt.err

			w := f.do(t, http.MethodGet, "/payment/verify/ref-1", "", models.RoleStudent)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantSuccess != nil {
				assert.Equal(t, tt.wantSuccess, decode(t, w)["success"])
			}
		})
	}
}

func TestGetBalance(t *testing.T) {
	f := newFixture(true)
	f.accounts.balance = &models.Balance{Balance: decimal.NewFromInt(40000), Currency: models.CurrencyNGN}

	w := f.do(t, http.MethodGet, "/payment/balance", "", models.RoleStudent)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"balance":40000,"currency":"NGN"}`, w.Body.String())
}

func TestPayBill(t *testing.T) {
	billID := uuid.New()
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "paid", body: fmt.Sprintf(`{"billId":%q}`, billID), wantStatus: http.StatusOK},
		{name: "insufficient funds", body: fmt.Sprintf(`{"billId":%q}`, billID), err: models.ErrInsufficientFunds, wantStatus: http.StatusBadRequest},
		{name: "already paid", body: fmt.Sprintf(`{"billId":%q}`, billID), err: models.ErrAlreadyPaid, wantStatus: http.StatusBadRequest},
		{name: "not found", body: fmt.Sprintf(`{"billId":%q}`, billID), err: models.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "consistency violation", body: fmt.Sprintf(`{"billId":%q}`, billID), err: fmt.Errorf("%w: missing course", models.ErrConsistencyViolation), wantStatus: http.StatusInternalServerError},
		{name: "missing bill id", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "bad bill id", body: `{"billId":"nope"}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(true)
			f.accounts.paid = &models.Bill{ID: billID, IsPaid: true}
			f.accounts.err = tt.err

			w := f.do(t, http.MethodPut, "/payment/pay", tt.body, models.RoleStudent)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, w.Body.String(), "missing course", "internal details must not leak")
			}
		})
	}
}

func TestGetAccountStatement(t *testing.T) {
	f := newFixture(true)
	f.accounts.statement = []models.StatementEntry{
		{
			Date:            time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			ReferenceNumber: "abc123def0",
			Description:     "Tuition",
			Direction:       models.DirectionDebit,
			AmountNGN:       decimal.NewFromInt(40000),
			RunningBalance:  decimal.NewFromInt(40000),
		},
	}

	w := f.do(t, http.MethodGet, "/payment/account-statement", "", models.RoleStudent)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{
		"date":"2024-01-02T00:00:00Z",
		"referenceNumber":"abc123def0",
		"description":"Tuition",
		"type":"debit",
		"amount":40000,
		"balance":40000
	}]`, w.Body.String())
}

func TestListBills(t *testing.T) {
	f := newFixture(true)

	w := f.do(t, http.MethodGet, "/payment/bills", "", models.RoleStudent)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	assert.Nil(t, f.billing.gotPaid)

	w = f.do(t, http.MethodGet, "/payment/bills?isPaid=false", "", models.RoleStudent)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, f.billing.gotPaid)
	assert.False(t, *f.billing.gotPaid)

	w = f.do(t, http.MethodGet, "/payment/bills?isPaid=maybe", "", models.RoleStudent)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStaffRoutes(t *testing.T) {
	session := uuid.New()
	tests := []struct {
		path string
		body string
		call string
	}{
		{path: "/bills", body: `{"studentId":"stu-9","type":"ICT Levy","amountUsd":20}`, call: "create"},
		{path: "/bills/application-fee", body: `{"studentId":"stu-9"}`, call: "application-fee"},
		{path: "/bills/semester", body: fmt.Sprintf(`{"studentId":"stu-9","academicSessionId":%q}`, session), call: "semester"},
		{
			path: "/bills/course-registration",
			body: fmt.Sprintf(`{"studentId":"stu-9","academicSessionId":%q,"courses":[{"semesterCourseId":%q,"code":"CSC101","costUsd":10}]}`, session, uuid.New()),
			call: "course-registration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f := newFixture(true)

			w := f.do(t, http.MethodPost, tt.path, tt.body, models.RoleStudent)
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Empty(t, f.billing.lastCall)

			w = f.do(t, http.MethodPost, tt.path, tt.body, models.RoleStaff)
			assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
			assert.Equal(t, tt.call, f.billing.lastCall)
		})
	}
}

func TestCourseRegistrationNeedsCourses(t *testing.T) {
	f := newFixture(true)
	body := fmt.Sprintf(`{"studentId":"stu-9","academicSessionId":%q,"courses":[]}`, uuid.New())

	w := f.do(t, http.MethodPost, "/bills/course-registration", body, models.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.billing.lastCall)
}

func TestCreateBillInvalidType(t *testing.T) {
	f := newFixture(true)
	f.billing.err = models.ErrInvalidBillType

	w := f.do(t, http.MethodPost, "/bills", `{"studentId":"stu-9","type":"Parking","amountUsd":5}`, models.RoleStaff)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook(t *testing.T) {
	payload := `{"event":"charge.success","data":{"reference":"ref-1"}}`

	t.Run("invalid signature", func(t *testing.T) {
		f := newFixture(false)
		w := f.do(t, http.MethodPost, "/payment/webhook", payload, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, f.payments.webhooks)
	})

	t.Run("accepted", func(t *testing.T) {
		f := newFixture(true)
		w := f.do(t, http.MethodPost, "/payment/webhook", payload, "")
		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, f.payments.webhooks, 1)
		assert.JSONEq(t, payload, string(f.payments.webhooks[0]))
	})

	t.Run("gateway down", func(t *testing.T) {
		f := newFixture(true)
		f.payments.err = gateway.ErrGatewayUnreachable
		w := f.do(t, http.MethodPost, "/payment/webhook", payload, "")
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(true)

	w := f.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())

	w = f.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
