package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"billing-service/logging"
	"billing-service/middleware"
	"billing-service/models"
)

// PaymentFlow is the deposit side of the billing core.
type PaymentFlow interface {
	Initialize(ctx context.Context, studentID, email string, req *models.InitializePaymentRequest) (*models.InitializePaymentResponse, error)
	Verify(ctx context.Context, studentID, reference string) (*models.VerifyPaymentResult, error)
	HandleWebhook(ctx context.Context, body []byte) error
}

// Accounts answers balance queries and settles bills.
type Accounts interface {
	Balance(ctx context.Context, studentID string) (*models.Balance, error)
	Statement(ctx context.Context, studentID string) ([]models.StatementEntry, error)
	PayBill(ctx context.Context, studentID string, billID uuid.UUID) (*models.Bill, error)
}

// SignatureVerifier authenticates webhook deliveries.
type SignatureVerifier interface {
	VerifySignature(body []byte, signature string) bool
}

// SignatureHeader carries the webhook HMAC.
const SignatureHeader = "x-paystack-signature"

// maxWebhookBody bounds the webhook payload read into memory.
const maxWebhookBody = 1 << 20

// PaymentHandler handles HTTP requests for payments
type PaymentHandler struct {
	payments PaymentFlow
	accounts Accounts
	verifier SignatureVerifier
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(payments PaymentFlow, accounts Accounts, verifier SignatureVerifier) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		accounts: accounts,
		verifier: verifier,
	}
}

// InitializePayment starts a deposit and returns the checkout URL
func (h *PaymentHandler) InitializePayment(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	var req models.InitializePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	resp, err := h.payments.Initialize(c.Request.Context(), claims.UserID, claims.Email, &req)
	if err != nil {
		respondError(c, err, "Payment initialization")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment initialized successfully",
		"data":    resp,
	})
}

// VerifyPayment reconciles a deposit with the gateway
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)
	reference := c.Param("reference")

	result, err := h.payments.Verify(c.Request.Context(), claims.UserID, reference)
	if err != nil {
		respondError(c, err, "Payment verification")
		return
	}

	if !result.Success {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"status":  result.Status,
			"message": "Payment was not successful",
			"paidAt":  result.PaidAt,
		})
		return
	}

	span := trace.SpanFromContext(c.Request.Context())
	span.AddEvent("payment_verified_successfully")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  result.Status,
		"message": "Payment verified successfully",
		"paidAt":  result.PaidAt,
	})
}

// GetBalance returns the student's balance
func (h *PaymentHandler) GetBalance(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	balance, err := h.accounts.Balance(c.Request.Context(), claims.UserID)
	if err != nil {
		respondError(c, err, "Balance lookup")
		return
	}
	c.JSON(http.StatusOK, balance)
}

// PayBill settles a bill from the student's balance
func (h *PaymentHandler) PayBill(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	var req models.PayBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	bill, err := h.accounts.PayBill(c.Request.Context(), claims.UserID, req.BillID)
	if err != nil {
		respondError(c, err, "Bill payment")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Bill paid successfully",
		"data":    bill,
	})
}

// GetAccountStatement returns the student's statement, most recent first
func (h *PaymentHandler) GetAccountStatement(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	entries, err := h.accounts.Statement(c.Request.Context(), claims.UserID)
	if err != nil {
		respondError(c, err, "Account statement")
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Webhook receives gateway event deliveries
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Unreadable body"})
		return
	}

	if !h.verifier.VerifySignature(body, c.GetHeader(SignatureHeader)) {
		logging.FromContext(c.Request.Context()).Warn("Rejected webhook with invalid signature",
			zap.String("client_ip", c.ClientIP()),
		)
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid signature"})
		return
	}

	if err := h.payments.HandleWebhook(c.Request.Context(), body); err != nil {
		respondError(c, err, "Webhook processing")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HealthCheck handles health check requests
func (h *PaymentHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
