package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"billing-service/currency"
	"billing-service/logging"
	"billing-service/models"
	"billing-service/monitoring"
	"billing-service/store"
)

// AccountService answers balance and statement queries and settles bills
// from a student's balance.
type AccountService struct {
	tracer    trace.Tracer
	ledger    store.Ledger
	converter currency.Converter
}

// NewAccountService creates a new account service
func NewAccountService(tracer trace.Tracer, ledger store.Ledger, converter currency.Converter) *AccountService {
	return &AccountService{
		tracer:    tracer,
		ledger:    ledger,
		converter: converter,
	}
}

// Balance returns the student's spendable balance in NGN
func (s *AccountService) Balance(ctx context.Context, studentID string) (*models.Balance, error) {
	ctx, span := s.tracer.Start(ctx, "compute_balance")
	defer span.End()

	balance, err := balanceOf(ctx, s.ledger, studentID, s.converter)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("balance.ngn", balance.Balance.String()))
	return balance, nil
}

// Statement returns the student's account statement, most recent first
func (s *AccountService) Statement(ctx context.Context, studentID string) ([]models.StatementEntry, error) {
	ctx, span := s.tracer.Start(ctx, "build_statement")
	defer span.End()

	payments, err := s.ledger.ListSuccessfulPayments(ctx, studentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	bills, err := s.ledger.ListPaidBills(ctx, studentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	entries := BuildStatement(payments, bills, s.converter)
	span.SetAttributes(attribute.Int("statement.entries", len(entries)))
	return entries, nil
}

// PayBill settles one of the student's bills from their balance. The funds
// check and every write happen in one transaction that holds the student's
// row lock, so concurrent settlements for a student run one at a time.
func (s *AccountService) PayBill(ctx context.Context, studentID string, billID uuid.UUID) (*models.Bill, error) {
	ctx, span := s.tracer.Start(ctx, "pay_bill")
	defer span.End()

	span.SetAttributes(
		attribute.String("bill.id", billID.String()),
		attribute.String("bill.student_id", studentID),
	)
	logger := logging.WithTraceContext(span)

	var (
		paid   *models.Bill
		amount decimal.Decimal
	)
	err := s.ledger.Transaction(ctx, func(tx store.Ledger) error {
		if _, err := tx.LockStudent(ctx, studentID); err != nil {
			return err
		}

		bill, err := tx.FindBillByID(ctx, billID, studentID)
		if err != nil {
			return err
		}
		if bill.IsPaid {
			return models.ErrAlreadyPaid
		}

		amount = s.converter.BillAmount(*bill)
		balance, err := balanceOf(ctx, tx, studentID, s.converter)
		if err != nil {
			return err
		}
		if balance.Balance.LessThan(amount) {
			return models.ErrInsufficientFunds
		}

		if bill.Type == models.BillTypeCourseRegistration && bill.SemesterCourseID != nil {
			err := tx.MarkSemesterCoursePaid(ctx, *bill.SemesterCourseID)
			if errors.Is(err, models.ErrNotFound) {
				return fmt.Errorf("%w: bill %s links missing semester course %s",
					models.ErrConsistencyViolation, bill.ID, *bill.SemesterCourseID)
			}
			if err != nil {
				return err
			}
		}

		referenceNumber := NewReferenceNumber()
		paidAt := time.Now().UTC()
		if err := tx.MarkBillPaid(ctx, bill.ID, paidAt, referenceNumber); err != nil {
			return err
		}

		// Settling the application fee moves an applicant forward; students
		// past that stage keep their status.
		if bill.Type == models.BillTypeApplicationFee {
			err := tx.UpdateAdmissionStatus(ctx, studentID,
				models.AdmissionStatusApplication, models.AdmissionStatusApplicationFeePaid)
			if err != nil && !errors.Is(err, models.ErrNotFound) {
				return err
			}
		}

		bill.IsPaid = true
		bill.PaidAt = &paidAt
		bill.ReferenceNumber = &referenceNumber
		paid = bill
		return nil
	})

	outcome := settlementOutcome(err)
	monitoring.BillSettlements.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
	span.SetAttributes(attribute.String("bill.outcome", outcome))

	if err != nil {
		if outcome == "error" || outcome == "consistency_violation" {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bill settlement failed")
			logger.Error("Bill settlement failed",
				zap.Error(err),
				zap.String("bill_id", billID.String()),
				zap.String("student_id", studentID),
			)
		}
		return nil, err
	}

	amountNGN, _ := amount.Float64()
	monitoring.SettlementAmount.Record(ctx, amountNGN,
		metric.WithAttributes(attribute.String("bill_type", string(paid.Type))),
	)
	logger.Info("Bill paid",
		zap.String("bill_id", paid.ID.String()),
		zap.String("student_id", studentID),
		zap.String("reference_number", *paid.ReferenceNumber),
		zap.String("amount_ngn", amount.String()),
	)
	return paid, nil
}

func settlementOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrAlreadyPaid):
		return "already_paid"
	case errors.Is(err, models.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, models.ErrConsistencyViolation):
		return "consistency_violation"
	default:
		return "error"
	}
}
