package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"billing-service/currency"
	"billing-service/gateway"
	"billing-service/logging"
	"billing-service/models"
	"billing-service/monitoring"
	"billing-service/store"
)

// PaymentService handles deposits through the payment gateway
type PaymentService struct {
	tracer      trace.Tracer
	ledger      store.Ledger
	gateway     gateway.Gateway
	converter   currency.Converter
	callbackURL string

	// collapses concurrent verifications of one reference into a single
	// gateway round trip
	verifying singleflight.Group
}

// NewPaymentService creates a new payment service
func NewPaymentService(tracer trace.Tracer, ledger store.Ledger, gw gateway.Gateway, converter currency.Converter, callbackURL string) *PaymentService {
	return &PaymentService{
		tracer:      tracer,
		ledger:      ledger,
		gateway:     gw,
		converter:   converter,
		callbackURL: callbackURL,
	}
}

// Initialize creates a gateway checkout for a deposit and records it as a
// pending payment. Nothing is persisted when the gateway call fails.
func (s *PaymentService) Initialize(ctx context.Context, studentID, email string, req *models.InitializePaymentRequest) (*models.InitializePaymentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "initialize_payment")
	defer span.End()

	span.SetAttributes(
		attribute.String("payment.student_id", studentID),
		attribute.String("payment.amount", req.Amount.String()),
	)
	logger := logging.WithTraceContext(span)

	if !currency.InRange(req.Amount) {
		return nil, models.ErrInvalidAmount
	}
	amountMinor, ok := currency.ToMinorUnits(req.Amount)
	if !ok {
		return nil, models.ErrInvalidAmount
	}
	if _, err := s.ledger.FindStudent(ctx, studentID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	checkout, err := s.gateway.InitializeTransaction(ctx, amountMinor, email, s.callbackURL)
	if err != nil {
		monitoring.PaymentsInitialized.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", "failed")),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway initialize failed")
		return nil, err
	}

	payment := &models.Payment{
		Reference:   checkout.Reference,
		StudentID:   studentID,
		Amount:      req.Amount,
		AccessCode:  checkout.AccessCode,
		Description: req.Description,
	}
	if err := s.ledger.CreatePendingPayment(ctx, payment); err != nil {
		logger.Error("Gateway transaction created but pending payment was not stored",
			zap.Error(err),
			zap.String("reference", checkout.Reference),
			zap.String("student_id", studentID),
		)
		span.RecordError(err)
		return nil, fmt.Errorf("store pending payment %s: %w", checkout.Reference, err)
	}

	monitoring.PaymentsInitialized.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", "success")),
	)
	span.SetAttributes(attribute.String("payment.reference", checkout.Reference))
	logger.Info("Payment initialized",
		zap.String("reference", checkout.Reference),
		zap.String("student_id", studentID),
		zap.String("amount", req.Amount.String()),
	)

	return &models.InitializePaymentResponse{
		URL:       checkout.AuthorizationURL,
		Amount:    req.Amount,
		Reference: checkout.Reference,
	}, nil
}

// Verify reconciles one of the student's payments with the gateway. A
// reference that belongs to another student is reported as not found.
func (s *PaymentService) Verify(ctx context.Context, studentID, reference string) (*models.VerifyPaymentResult, error) {
	payment, err := s.ledger.FindPaymentByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if payment.StudentID != studentID {
		return nil, models.ErrNotFound
	}
	return s.verifyShared(ctx, payment)
}

// VerifyReference reconciles a payment without owner scoping. Gateway
// webhooks use it.
func (s *PaymentService) VerifyReference(ctx context.Context, reference string) (*models.VerifyPaymentResult, error) {
	payment, err := s.ledger.FindPaymentByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return s.verifyShared(ctx, payment)
}

func (s *PaymentService) verifyShared(ctx context.Context, payment *models.Payment) (*models.VerifyPaymentResult, error) {
	// The shared call outlives any one caller's cancellation.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.verifying.Do(payment.Reference, func() (any, error) {
		return s.verify(shared, payment)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.VerifyPaymentResult), nil
}

func (s *PaymentService) verify(ctx context.Context, payment *models.Payment) (*models.VerifyPaymentResult, error) {
	ctx, span := s.tracer.Start(ctx, "verify_payment")
	defer span.End()

	span.SetAttributes(
		attribute.String("payment.reference", payment.Reference),
		attribute.String("payment.student_id", payment.StudentID),
	)
	logger := logging.WithTraceContext(span)

	// Terminal payments never change again; answer from the ledger.
	if payment.Status.IsTerminal() {
		span.SetAttributes(attribute.Bool("payment.cached", true))
		return resultOf(payment.Status, payment.PaidAt), nil
	}

	external, err := s.gateway.VerifyTransaction(ctx, payment.Reference)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway verify failed")
		return nil, err
	}

	var (
		status models.PaymentStatus
		paidAt *time.Time
	)
	switch external.Status {
	case gateway.StatusSuccess:
		expected, _ := currency.ToMinorUnits(payment.Amount)
		if external.Amount != expected {
			span.SetStatus(codes.Error, "amount mismatch")
			logger.Error("Gateway charged a different amount than the payment was initialized with",
				zap.String("reference", payment.Reference),
				zap.String("student_id", payment.StudentID),
				zap.Int64("expected_minor", expected),
				zap.Int64("gateway_minor", external.Amount),
			)
			return nil, fmt.Errorf("%w: %s", models.ErrAmountMismatch, payment.Reference)
		}
		status = models.PaymentStatusSuccess
		at := time.Now().UTC()
		if external.PaidAt != nil {
			at = external.PaidAt.UTC()
		}
		paidAt = &at
	case gateway.StatusFailed:
		status = models.PaymentStatusFailed
	default:
		span.SetAttributes(attribute.String("payment.external_status", external.Status))
		return resultOf(models.PaymentStatusPending, nil), nil
	}

	var transitioned bool
	err = s.ledger.Transaction(ctx, func(tx store.Ledger) error {
		moved, err := tx.UpdatePaymentStatus(ctx, payment.Reference, status, paidAt)
		if err != nil {
			return err
		}
		transitioned = moved
		if !moved || status != models.PaymentStatusSuccess {
			return nil
		}
		return s.settleApplicationFee(ctx, tx, payment.StudentID, payment.Reference, *paidAt)
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record verification of %s: %w", payment.Reference, err)
	}

	if !transitioned {
		// A concurrent verification got there first; report what it stored.
		stored, err := s.ledger.FindPaymentByReference(ctx, payment.Reference)
		if err != nil {
			return nil, err
		}
		return resultOf(stored.Status, stored.PaidAt), nil
	}

	monitoring.PaymentsVerified.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", string(status))),
	)
	span.SetAttributes(attribute.String("payment.status", string(status)))
	logger.Info("Payment verified",
		zap.String("reference", payment.Reference),
		zap.String("student_id", payment.StudentID),
		zap.String("status", string(status)),
	)

	return resultOf(status, paidAt), nil
}

// settleApplicationFee pays an applicant's outstanding application fee from
// the deposit that just succeeded and moves the admission forward. When the
// balance does not cover the fee both are left alone.
func (s *PaymentService) settleApplicationFee(ctx context.Context, tx store.Ledger, studentID, reference string, paidAt time.Time) error {
	student, err := tx.LockStudent(ctx, studentID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if student.AdmissionStatus != models.AdmissionStatusApplication {
		return nil
	}

	fee, err := tx.FindUnpaidBillByType(ctx, studentID, models.BillTypeApplicationFee)
	switch {
	case errors.Is(err, models.ErrNotFound):
		fee = nil
	case err != nil:
		return err
	}

	if fee != nil {
		balance, err := balanceOf(ctx, tx, studentID, s.converter)
		if err != nil {
			return err
		}
		if balance.Balance.LessThan(s.converter.BillAmount(*fee)) {
			logging.FromContext(ctx).Warn("Deposit does not cover the application fee",
				zap.String("student_id", studentID),
				zap.String("balance", balance.Balance.String()),
			)
			return nil
		}
		if err := tx.MarkBillPaid(ctx, fee.ID, paidAt, reference); err != nil {
			return err
		}
	}

	return tx.UpdateAdmissionStatus(ctx, studentID,
		models.AdmissionStatusApplication, models.AdmissionStatusApplicationFeePaid)
}

// HandleWebhook records a gateway event delivery and reconciles the payment
// it refers to. Events for unknown references are kept but ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte) error {
	ctx, span := s.tracer.Start(ctx, "handle_gateway_webhook")
	defer span.End()

	event, err := gateway.ParseEvent(body)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", models.ErrInvalidWebhook, err)
	}
	span.SetAttributes(
		attribute.String("webhook.event", event.Event),
		attribute.String("payment.reference", event.Data.Reference),
	)

	record := &models.GatewayEvent{
		Provider:  models.PaymentChannelPaystack,
		Event:     event.Event,
		Reference: event.Data.Reference,
		Payload:   body,
		Status:    models.GatewayEventReceived,
	}
	if err := s.ledger.RecordGatewayEvent(ctx, record); err != nil {
		return fmt.Errorf("record gateway event: %w", err)
	}

	_, verr := s.VerifyReference(ctx, event.Data.Reference)

	status := models.GatewayEventProcessed
	var reason *string
	switch {
	case errors.Is(verr, models.ErrNotFound):
		status = models.GatewayEventIgnored
		msg := "payment not found"
		reason = &msg
	case verr != nil:
		status = models.GatewayEventFailed
		msg := verr.Error()
		reason = &msg
	}

	if err := s.ledger.FinishGatewayEvent(ctx, record.ID, status, reason); err != nil {
		logging.WithTraceContext(span).Error("Failed to update gateway event",
			zap.Error(err),
			zap.String("event_id", record.ID.String()),
		)
	}

	if status == models.GatewayEventFailed {
		span.RecordError(verr)
		return verr
	}
	return nil
}

func resultOf(status models.PaymentStatus, paidAt *time.Time) *models.VerifyPaymentResult {
	return &models.VerifyPaymentResult{
		Success: status == models.PaymentStatusSuccess,
		Status:  status,
		PaidAt:  paidAt,
	}
}
