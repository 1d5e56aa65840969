// Package payment wraps the payment processor behind Initialize and Verify.
package payment

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("payment gateway not configured")

type Status string

const (
	StatusPaid    Status = "paid"
	StatusUnpaid  Status = "unpaid"
	StatusExpired Status = "expired"
)

type InitializeRequest struct {
	// ReferenceID ties the payment back to the order.
	ReferenceID    string
	AmountCents    int64
	Currency       string
	Description    string
	CustomerEmail  string
	Metadata       map[string]string
	IdempotencyKey string
}

type Initialized struct {
	URL       string
	Reference string
}

type Verification struct {
	Reference   string
	Status      Status
	AmountCents int64
	Metadata    map[string]string
}

type Gateway interface {
	Initialize(ctx context.Context, req InitializeRequest) (Initialized, error)
	Verify(ctx context.Context, reference string) (Verification, error)
}

// Disabled is used when no processor credentials are configured.
type Disabled struct{}

func (Disabled) Initialize(context.Context, InitializeRequest) (Initialized, error) {
	return Initialized{}, ErrNotConfigured
}

func (Disabled) Verify(context.Context, string) (Verification, error) {
	return Verification{}, ErrNotConfigured
}
