// Package gateway wraps the external payment processor. It performs no
// retries; callers decide what to do with ErrGatewayUnreachable.
package gateway

import (
	"context"
	"errors"
	"time"
)

// ErrGatewayUnreachable is wrapped by every failure to get a usable answer
// from the processor: network errors, non-2xx responses and malformed bodies.
var ErrGatewayUnreachable = errors.New("payment gateway unreachable")

// External transaction statuses the billing core acts on. Anything else
// leaves the payment pending.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Initialization is a freshly created checkout.
type Initialization struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// Verification is the processor's view of a transaction.
type Verification struct {
	Reference string
	Status    string
	PaidAt    *time.Time
	// Amount is in minor units (kobo).
	Amount int64
}

// Gateway is the request/response contract with the payment processor.
type Gateway interface {
	InitializeTransaction(ctx context.Context, amountMinor int64, email, callbackURL string) (*Initialization, error)
	VerifyTransaction(ctx context.Context, reference string) (*Verification, error)
}
