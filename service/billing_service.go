package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"billing-service/currency"
	"billing-service/logging"
	"billing-service/models"
	"billing-service/store"
)

// Standard semester charges in USD.
var semesterCharges = []struct {
	Type        models.BillType
	Description string
	AmountUSD   decimal.Decimal
}{
	{models.BillTypeTuition, "New semester tuition fee", decimal.NewFromInt(50)},
	{models.BillTypeICTLevy, "New semester ICT levy", decimal.NewFromInt(20)},
	{models.BillTypeExcursionLevy, "New semester excursion levy", decimal.NewFromInt(5)},
}

// BillingService raises bills against students
type BillingService struct {
	tracer            trace.Tracer
	ledger            store.Ledger
	applicationFeeUSD decimal.Decimal
}

// NewBillingService creates a new billing service
func NewBillingService(tracer trace.Tracer, ledger store.Ledger, applicationFeeUSD decimal.Decimal) *BillingService {
	return &BillingService{
		tracer:            tracer,
		ledger:            ledger,
		applicationFeeUSD: applicationFeeUSD,
	}
}

// CreateBill raises a single bill
func (s *BillingService) CreateBill(ctx context.Context, req *models.CreateBillRequest) (*models.Bill, error) {
	ctx, span := s.tracer.Start(ctx, "create_bill")
	defer span.End()

	if !req.Type.Valid() {
		return nil, models.ErrInvalidBillType
	}
	if !currency.InRange(req.AmountUSD) {
		return nil, models.ErrInvalidAmount
	}

	bill := &models.Bill{
		StudentID:         req.StudentID,
		Type:              req.Type,
		Description:       req.Description,
		AmountUSD:         req.AmountUSD,
		DueDate:           req.DueDate,
		AcademicSessionID: req.AcademicSessionID,
		SemesterCourseID:  req.SemesterCourseID,
	}
	if bill.Description == "" {
		bill.Description = string(req.Type)
	}
	err := s.ledger.Transaction(ctx, func(tx store.Ledger) error {
		if _, err := tx.FindStudent(ctx, req.StudentID); err != nil {
			return err
		}
		return tx.CreateBill(ctx, bill)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("bill.id", bill.ID.String()),
		attribute.String("bill.type", string(bill.Type)),
	)
	logging.WithTraceContext(span).Info("Bill created",
		zap.String("bill_id", bill.ID.String()),
		zap.String("student_id", bill.StudentID),
		zap.String("type", string(bill.Type)),
		zap.String("amount_usd", bill.AmountUSD.String()),
	)
	return bill, nil
}

// RaiseApplicationFee bills an applicant the application fee. An outstanding
// fee bill is returned instead of raising a second one.
func (s *BillingService) RaiseApplicationFee(ctx context.Context, studentID string) (*models.Bill, error) {
	ctx, span := s.tracer.Start(ctx, "raise_application_fee")
	defer span.End()

	var bill *models.Bill
	err := s.ledger.Transaction(ctx, func(tx store.Ledger) error {
		if _, err := tx.LockStudent(ctx, studentID); err != nil {
			return err
		}
		existing, err := tx.FindUnpaidBillByType(ctx, studentID, models.BillTypeApplicationFee)
		if err == nil {
			bill = existing
			return nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return err
		}

		bill = &models.Bill{
			StudentID:   studentID,
			Type:        models.BillTypeApplicationFee,
			Description: "Application fee",
			AmountUSD:   s.applicationFeeUSD,
		}
		return tx.CreateBill(ctx, bill)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return bill, nil
}

// RaiseSemesterBills raises the tuition, ICT and excursion charges for an
// academic session.
func (s *BillingService) RaiseSemesterBills(ctx context.Context, req *models.RaiseSemesterBillsRequest) ([]models.Bill, error) {
	ctx, span := s.tracer.Start(ctx, "raise_semester_bills")
	defer span.End()

	session := req.AcademicSessionID
	bills := make([]models.Bill, 0, len(semesterCharges))
	err := s.ledger.Transaction(ctx, func(tx store.Ledger) error {
		if _, err := tx.FindStudent(ctx, req.StudentID); err != nil {
			return err
		}
		for _, charge := range semesterCharges {
			bill := models.Bill{
				StudentID:         req.StudentID,
				Type:              charge.Type,
				Description:       charge.Description,
				AmountUSD:         charge.AmountUSD,
				AcademicSessionID: &session,
			}
			if err := tx.CreateBill(ctx, &bill); err != nil {
				return fmt.Errorf("raise %s: %w", charge.Type, err)
			}
			bills = append(bills, bill)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logging.WithTraceContext(span).Info("Semester bills raised",
		zap.String("student_id", req.StudentID),
		zap.String("academic_session_id", session.String()),
	)
	return bills, nil
}

// RaiseCourseRegistrationBills raises one course registration bill per
// registered course, each linked to its semester course record.
func (s *BillingService) RaiseCourseRegistrationBills(ctx context.Context, req *models.RaiseCourseBillsRequest) ([]models.Bill, error) {
	ctx, span := s.tracer.Start(ctx, "raise_course_registration_bills")
	defer span.End()

	for _, c := range req.Courses {
		if !currency.InRange(c.CostUSD) {
			return nil, fmt.Errorf("%w: course %s", models.ErrInvalidAmount, c.Code)
		}
	}

	session := req.AcademicSessionID
	bills := make([]models.Bill, 0, len(req.Courses))
	err := s.ledger.Transaction(ctx, func(tx store.Ledger) error {
		if _, err := tx.FindStudent(ctx, req.StudentID); err != nil {
			return err
		}
		for _, c := range req.Courses {
			semesterCourse := c.SemesterCourseID
			bill := models.Bill{
				StudentID:         req.StudentID,
				Type:              models.BillTypeCourseRegistration,
				Description:       "Course registration fee for " + c.Code,
				AmountUSD:         c.CostUSD,
				AcademicSessionID: &session,
				SemesterCourseID:  &semesterCourse,
			}
			if err := tx.CreateBill(ctx, &bill); err != nil {
				return fmt.Errorf("raise course bill %s: %w", c.Code, err)
			}
			bills = append(bills, bill)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("bills.count", len(bills)))
	return bills, nil
}

// ListBills returns the student's bills, optionally filtered by paid state
func (s *BillingService) ListBills(ctx context.Context, studentID string, isPaid *bool) ([]models.Bill, error) {
	ctx, span := s.tracer.Start(ctx, "list_bills")
	defer span.End()

	bills, err := s.ledger.ListBills(ctx, studentID, isPaid)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return bills, nil
}
