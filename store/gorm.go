package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"billing-service/models"
)

// GormLedger implements Ledger on gorm.
type GormLedger struct {
	db *gorm.DB
}

// NewGormLedger wraps an open database.
func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (s *GormLedger) Transaction(ctx context.Context, fn func(tx Ledger) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormLedger{db: tx})
	})
}

func (s *GormLedger) CreatePendingPayment(ctx context.Context, p *models.Payment) error {
	p.Status = models.PaymentStatusPending
	p.PaidAt = nil
	if p.Currency == "" {
		p.Currency = models.CurrencyNGN
	}
	if p.Channel == "" {
		p.Channel = models.PaymentChannelPaystack
	}
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *GormLedger) FindPaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.WithContext(ctx).First(&p, "reference = ?", reference).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *GormLedger) UpdatePaymentStatus(ctx context.Context, reference string, status models.PaymentStatus, paidAt *time.Time) (bool, error) {
	if !status.IsTerminal() {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("reference = ? AND status = ?", reference, models.PaymentStatusPending).
		Updates(map[string]any{"status": status, "paid_at": paidAt})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormLedger) ListSuccessfulPayments(ctx context.Context, studentID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND status = ?", studentID, models.PaymentStatusSuccess).
		Order("paid_at DESC").
		Find(&payments).Error
	return payments, err
}

func (s *GormLedger) CreateBill(ctx context.Context, b *models.Bill) error {
	b.IsPaid = false
	b.PaidAt = nil
	b.ReferenceNumber = nil
	return s.db.WithContext(ctx).Create(b).Error
}

func (s *GormLedger) FindBillByID(ctx context.Context, billID uuid.UUID, studentID string) (*models.Bill, error) {
	var b models.Bill
	if err := s.db.WithContext(ctx).First(&b, "id = ? AND student_id = ?", billID, studentID).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (s *GormLedger) FindUnpaidBillByType(ctx context.Context, studentID string, billType models.BillType) (*models.Bill, error) {
	var b models.Bill
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND type = ? AND is_paid = ?", studentID, billType, false).
		Order("created_at ASC").
		First(&b).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (s *GormLedger) ListBills(ctx context.Context, studentID string, isPaid *bool) ([]models.Bill, error) {
	q := s.db.WithContext(ctx).Where("student_id = ?", studentID)
	if isPaid != nil {
		q = q.Where("is_paid = ?", *isPaid)
	}
	var bills []models.Bill
	err := q.Order("created_at ASC").Find(&bills).Error
	return bills, err
}

func (s *GormLedger) ListPaidBills(ctx context.Context, studentID string) ([]models.Bill, error) {
	paid := true
	return s.ListBills(ctx, studentID, &paid)
}

func (s *GormLedger) MarkBillPaid(ctx context.Context, billID uuid.UUID, paidAt time.Time, referenceNumber string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Bill{}).
		Where("id = ? AND is_paid = ?", billID, false).
		Updates(map[string]any{
			"is_paid":          true,
			"paid_at":          paidAt,
			"reference_number": referenceNumber,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Bill{}).Where("id = ?", billID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return models.ErrNotFound
	}
	return models.ErrAlreadyPaid
}

func (s *GormLedger) FindStudent(ctx context.Context, studentID string) (*models.Student, error) {
	var st models.Student
	if err := s.db.WithContext(ctx).First(&st, "user_id = ?", studentID).Error; err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

func (s *GormLedger) LockStudent(ctx context.Context, studentID string) (*models.Student, error) {
	var st models.Student
	if err := s.forUpdate(ctx).First(&st, "user_id = ?", studentID).Error; err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

func (s *GormLedger) UpdateAdmissionStatus(ctx context.Context, studentID string, from, to models.AdmissionStatus) error {
	res := s.db.WithContext(ctx).
		Model(&models.Student{}).
		Where("user_id = ? AND admission_status = ?", studentID, from).
		Update("admission_status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *GormLedger) MarkSemesterCoursePaid(ctx context.Context, semesterCourseID uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Model(&models.SemesterCourse{}).
		Where("id = ?", semesterCourseID).
		Update("is_paid", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *GormLedger) RecordGatewayEvent(ctx context.Context, ev *models.GatewayEvent) error {
	return s.db.WithContext(ctx).Create(ev).Error
}

func (s *GormLedger) FinishGatewayEvent(ctx context.Context, id uuid.UUID, status string, errMsg *string) error {
	now := time.Now()
	return s.db.WithContext(ctx).
		Model(&models.GatewayEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "error": errMsg, "processed_at": now}).Error
}

// forUpdate adds SELECT ... FOR UPDATE on Postgres. SQLite has no row locks;
// it serializes writers for the whole database instead.
func (s *GormLedger) forUpdate(ctx context.Context) *gorm.DB {
	q := s.db.WithContext(ctx)
	if s.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrNotFound
	}
	return err
}
