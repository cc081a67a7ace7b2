// Package store persists bills, payments and the records settlement touches.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"billing-service/models"
)

// Ledger is the persistence contract of the billing core. Lookups that find
// nothing return models.ErrNotFound.
type Ledger interface {
	// Transaction runs fn against a Ledger bound to one database
	// transaction. fn's error rolls everything back.
	Transaction(ctx context.Context, fn func(tx Ledger) error) error

	CreatePendingPayment(ctx context.Context, p *models.Payment) error
	FindPaymentByReference(ctx context.Context, reference string) (*models.Payment, error)
	// UpdatePaymentStatus moves a pending payment to status and reports
	// whether this call made the transition. Payments that already left
	// pending are not touched.
	UpdatePaymentStatus(ctx context.Context, reference string, status models.PaymentStatus, paidAt *time.Time) (bool, error)
	ListSuccessfulPayments(ctx context.Context, studentID string) ([]models.Payment, error)

	CreateBill(ctx context.Context, b *models.Bill) error
	FindBillByID(ctx context.Context, billID uuid.UUID, studentID string) (*models.Bill, error)
	FindUnpaidBillByType(ctx context.Context, studentID string, billType models.BillType) (*models.Bill, error)
	ListBills(ctx context.Context, studentID string, isPaid *bool) ([]models.Bill, error)
	ListPaidBills(ctx context.Context, studentID string) ([]models.Bill, error)
	// MarkBillPaid fails with models.ErrAlreadyPaid on a paid bill.
	MarkBillPaid(ctx context.Context, billID uuid.UUID, paidAt time.Time, referenceNumber string) error

	FindStudent(ctx context.Context, studentID string) (*models.Student, error)
	// LockStudent reads the student row and, inside a transaction, holds a
	// write lock on it until commit. Settlement uses it to serialize all
	// balance-affecting writes of one student.
	LockStudent(ctx context.Context, studentID string) (*models.Student, error)
	UpdateAdmissionStatus(ctx context.Context, studentID string, from, to models.AdmissionStatus) error

	MarkSemesterCoursePaid(ctx context.Context, semesterCourseID uuid.UUID) error

	RecordGatewayEvent(ctx context.Context, ev *models.GatewayEvent) error
	FinishGatewayEvent(ctx context.Context, id uuid.UUID, status string, errMsg *string) error
}
