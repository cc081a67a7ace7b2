package models

import "github.com/shopspring/decimal"

func init() {
	// Amounts are sent to clients as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Currency is an ISO 4217 code.
type Currency string

const (
	CurrencyNGN Currency = "NGN"
	CurrencyUSD Currency = "USD"
)

// PaymentStatus moves pending -> success|failed exactly once.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

type PaymentChannel string

const PaymentChannelPaystack PaymentChannel = "paystack"

// BillType tags what a bill charges for.
type BillType string

const (
	BillTypeApplicationFee     BillType = "Application Fee"
	BillTypeTuition            BillType = "Tuition Fee"
	BillTypeICTLevy            BillType = "ICT Levy"
	BillTypeExcursionLevy      BillType = "Excursion Levy"
	BillTypeCourseRegistration BillType = "Course Registration Fee"
)

// Valid reports whether t is one of the known bill types.
func (t BillType) Valid() bool {
	switch t {
	case BillTypeApplicationFee, BillTypeTuition, BillTypeICTLevy,
		BillTypeExcursionLevy, BillTypeCourseRegistration:
		return true
	}
	return false
}

type AdmissionStatus string

const (
	AdmissionStatusApplication        AdmissionStatus = "application"
	AdmissionStatusApplicationFeePaid AdmissionStatus = "application_fee_paid"
	AdmissionStatusInReview           AdmissionStatus = "in_review"
	AdmissionStatusAdmitted           AdmissionStatus = "admitted"
	AdmissionStatusRejected           AdmissionStatus = "rejected"
)

// UserRole is carried in access tokens.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleStaff   UserRole = "staff"
	RoleAdmin   UserRole = "admin"
)

// Direction is the side of a statement entry.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)
