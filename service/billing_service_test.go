package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing-service/models"
)

func newBillingService(l *memLedger) *BillingService {
	return NewBillingService(testTracer(), l, decimal.NewFromInt(20))
}

func TestCreateBill(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	ledger.addStudent("stu-1", models.AdmissionStatusAdmitted)
	svc := newBillingService(ledger)

	bill, err := svc.CreateBill(ctx, &models.CreateBillRequest{
		StudentID: "stu-1",
		Type:      models.BillTypeTuition,
		AmountUSD: decimal.RequireFromString("49.99"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Tuition Fee", bill.Description)
	assert.False(t, bill.IsPaid)

	bills, err := svc.ListBills(ctx, "stu-1", nil)
	require.NoError(t, err)
	assert.Len(t, bills, 1)
}

func TestCreateBillValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     models.CreateBillRequest
		wantErr error
	}{
		{
			name:    "unknown type",
			req:     models.CreateBillRequest{StudentID: "stu-1", Type: "Parking", AmountUSD: decimal.NewFromInt(5)},
			wantErr: models.ErrInvalidBillType,
		},
		{
			name:    "zero amount",
			req:     models.CreateBillRequest{StudentID: "stu-1", Type: models.BillTypeICTLevy},
			wantErr: models.ErrInvalidAmount,
		},
		{
			name:    "amount too large to store",
			req:     models.CreateBillRequest{StudentID: "stu-1", Type: models.BillTypeICTLevy, AmountUSD: decimal.New(1, 12)},
			wantErr: models.ErrInvalidAmount,
		},
		{
			name:    "sub-cent amount",
			req:     models.CreateBillRequest{StudentID: "stu-1", Type: models.BillTypeICTLevy, AmountUSD: decimal.RequireFromString("1.001")},
			wantErr: models.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := newMemLedger()
			ledger.addStudent("stu-1", models.AdmissionStatusAdmitted)
			_, err := newBillingService(ledger).CreateBill(context.Background(), &tt.req)
			assert.ErrorIs(t, err, tt.wantErr)

			bills, err := ledger.ListBills(context.Background(), "stu-1", nil)
			require.NoError(t, err)
			assert.Empty(t, bills)
		})
	}
}

func TestRaiseApplicationFee(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	ledger.addStudent("stu-1", models.AdmissionStatusApplication)
	svc := newBillingService(ledger)

	first, err := svc.RaiseApplicationFee(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, models.BillTypeApplicationFee, first.Type)
	assert.True(t, first.AmountUSD.Equal(decimal.NewFromInt(20)))

	second, err := svc.RaiseApplicationFee(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "an outstanding fee is not billed twice")

	_, err = svc.RaiseApplicationFee(ctx, "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRaiseSemesterBills(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	ledger.addStudent("stu-1", models.AdmissionStatusAdmitted)
	svc := newBillingService(ledger)
	session := uuid.New()

	bills, err := svc.RaiseSemesterBills(ctx, &models.RaiseSemesterBillsRequest{
		StudentID:         "stu-1",
		AcademicSessionID: session,
	})
	require.NoError(t, err)
	require.Len(t, bills, 3)

	total := decimal.Zero
	types := map[models.BillType]bool{}
	for _, b := range bills {
		total = total.Add(b.AmountUSD)
		types[b.Type] = true
		require.NotNil(t, b.AcademicSessionID)
		assert.Equal(t, session, *b.AcademicSessionID)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(75)))
	assert.True(t, types[models.BillTypeTuition])
	assert.True(t, types[models.BillTypeICTLevy])
	assert.True(t, types[models.BillTypeExcursionLevy])
}

func TestRaiseCourseRegistrationBills(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	ledger.addStudent("stu-1", models.AdmissionStatusAdmitted)
	ledger.addPayment("stu-1", "p1", 80000, models.PaymentStatusSuccess, at(1))
	svc := newBillingService(ledger)

	c1, c2 := uuid.New(), uuid.New()
	ledger.addCourse(c1)
	ledger.addCourse(c2)

	bills, err := svc.RaiseCourseRegistrationBills(ctx, &models.RaiseCourseBillsRequest{
		StudentID:         "stu-1",
		AcademicSessionID: uuid.New(),
		Courses: []models.CourseCharge{
			{SemesterCourseID: c1, Code: "CSC101", CostUSD: decimal.NewFromInt(10)},
			{SemesterCourseID: c2, Code: "MTH101", CostUSD: decimal.NewFromInt(15)},
		},
	})
	require.NoError(t, err)
	require.Len(t, bills, 2)
	assert.Equal(t, "Course registration fee for CSC101", bills[0].Description)

	_, err = newAccountService(ledger).PayBill(ctx, "stu-1", bills[1].ID)
	require.NoError(t, err)
	assert.False(t, ledger.course(c1).IsPaid)
	assert.True(t, ledger.course(c2).IsPaid)
}

func TestRaiseCourseRegistrationBillsAllOrNothing(t *testing.T) {
	ledger := newMemLedger()
	svc := newBillingService(ledger)

	_, err := svc.RaiseCourseRegistrationBills(context.Background(), &models.RaiseCourseBillsRequest{
		StudentID:         "stu-1",
		AcademicSessionID: uuid.New(),
		Courses: []models.CourseCharge{
			{SemesterCourseID: uuid.New(), Code: "CSC101", CostUSD: decimal.NewFromInt(10)},
			{SemesterCourseID: uuid.New(), Code: "FREE100"},
		},
	})
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	bills, err := ledger.ListBills(context.Background(), "stu-1", nil)
	require.NoError(t, err)
	assert.Empty(t, bills)
}

func TestRaiseBillsForUnknownStudent(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	svc := newBillingService(ledger)

	_, err := svc.CreateBill(ctx, &models.CreateBillRequest{
		StudentID: "ghost",
		Type:      models.BillTypeTuition,
		AmountUSD: decimal.NewFromInt(50),
	})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.RaiseSemesterBills(ctx, &models.RaiseSemesterBillsRequest{
		StudentID:         "ghost",
		AcademicSessionID: uuid.New(),
	})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.RaiseCourseRegistrationBills(ctx, &models.RaiseCourseBillsRequest{
		StudentID:         "ghost",
		AcademicSessionID: uuid.New(),
		Courses: []models.CourseCharge{
			{SemesterCourseID: uuid.New(), Code: "CSC101", CostUSD: decimal.NewFromInt(10)},
		},
	})
	assert.ErrorIs(t, err, models.ErrNotFound)

	bills, err := ledger.ListBills(ctx, "ghost", nil)
	require.NoError(t, err)
	assert.Empty(t, bills)
}

func TestListBillsFilter(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	ledger.addStudent("stu-1", models.AdmissionStatusAdmitted)
	ledger.addPayment("stu-1", "p1", 80000, models.PaymentStatusSuccess, at(1))
	paidID := ledger.addBill(unpaidBill("stu-1", models.BillTypeTuition, 50))
	ledger.addBill(unpaidBill("stu-1", models.BillTypeICTLevy, 20))
	ledger.addBill(unpaidBill("stu-2", models.BillTypeICTLevy, 20))

	_, err := newAccountService(ledger).PayBill(ctx, "stu-1", paidID)
	require.NoError(t, err)

	svc := newBillingService(ledger)

	all, err := svc.ListBills(ctx, "stu-1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	paid, err := svc.ListBills(ctx, "stu-1", boolPtr(true))
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, paidID, paid[0].ID)

	unpaid, err := svc.ListBills(ctx, "stu-1", boolPtr(false))
	require.NoError(t, err)
	require.Len(t, unpaid, 1)
	assert.Equal(t, models.BillTypeICTLevy, unpaid[0].Type)
}
