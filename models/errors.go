package models

import "errors"

var (
	// ErrNotFound is returned when a payment, bill or student does not exist
	// or does not belong to the requesting student.
	ErrNotFound = errors.New("not found")

	ErrAlreadyPaid       = errors.New("bill has already been paid")
	ErrInsufficientFunds = errors.New("insufficient balance to pay bill")
	ErrInvalidAmount     = errors.New("amount must be a positive value below 1000000000000 with at most two decimal places")
	ErrInvalidBillType   = errors.New("unknown bill type")

	// ErrConsistencyViolation marks a broken link between ledger records,
	// such as a course registration bill whose semester course is gone.
	ErrConsistencyViolation = errors.New("ledger consistency violation")

	// ErrAmountMismatch is returned when the gateway reports a successful
	// charge for a different amount than the payment was initialized with.
	ErrAmountMismatch = errors.New("gateway amount does not match payment")
)

// ErrInvalidWebhook is returned for webhook deliveries that cannot be parsed.
var ErrInvalidWebhook = errors.New("invalid webhook payload")
