package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InitializePaymentRequest represents a deposit request from a student
type InitializePaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" binding:"required"`
}

// InitializePaymentResponse carries the checkout URL the student is sent to
type InitializePaymentResponse struct {
	URL       string          `json:"url"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

// VerifyPaymentResult is the outcome of reconciling a payment with the gateway
type VerifyPaymentResult struct {
	Success bool          `json:"success"`
	Status  PaymentStatus `json:"status"`
	PaidAt  *time.Time    `json:"paidAt"`
}

// Balance is a student's spendable balance in NGN
type Balance struct {
	Balance     decimal.Decimal `json:"balance"`
	Currency    Currency        `json:"currency"`
	LastDeposit *Payment        `json:"lastDeposit,omitempty"`
}

// PayBillRequest asks to settle a bill from the student's balance
type PayBillRequest struct {
	BillID uuid.UUID `json:"billId" binding:"required"`
}

// StatementEntry is one line of an account statement. RunningBalance is the
// balance immediately after this entry in chronological order.
type StatementEntry struct {
	Date            time.Time       `json:"date"`
	ReferenceNumber string          `json:"referenceNumber"`
	Description     string          `json:"description"`
	Direction       Direction       `json:"type"`
	AmountNGN       decimal.Decimal `json:"amount"`
	RunningBalance  decimal.Decimal `json:"balance"`
}

// CreateBillRequest raises an arbitrary bill against a student
type CreateBillRequest struct {
	StudentID         string          `json:"studentId" binding:"required"`
	Type              BillType        `json:"type" binding:"required"`
	Description       string          `json:"description"`
	AmountUSD         decimal.Decimal `json:"amountUsd"`
	DueDate           *time.Time      `json:"dueDate"`
	AcademicSessionID *uuid.UUID      `json:"academicSessionId"`
	SemesterCourseID  *uuid.UUID      `json:"semesterCourseId"`
}

// RaiseSemesterBillsRequest raises the standard semester registration charges
type RaiseSemesterBillsRequest struct {
	StudentID         string    `json:"studentId" binding:"required"`
	AcademicSessionID uuid.UUID `json:"academicSessionId" binding:"required"`
}

// CourseCharge is one course a student registered for in a session
type CourseCharge struct {
	SemesterCourseID uuid.UUID       `json:"semesterCourseId" binding:"required"`
	Code             string          `json:"code" binding:"required"`
	CostUSD          decimal.Decimal `json:"costUsd"`
}

// RaiseCourseBillsRequest raises one course registration bill per course
type RaiseCourseBillsRequest struct {
	StudentID         string         `json:"studentId" binding:"required"`
	AcademicSessionID uuid.UUID      `json:"academicSessionId" binding:"required"`
	Courses           []CourseCharge `json:"courses" binding:"required,min=1,dive"`
}
