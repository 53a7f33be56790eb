// Package payment talks to the payment provider. The only provider is a
// simulator that settles M-Pesa style after a fixed delay.
package payment

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDeclined means the provider refused the charge; nothing was captured.
	ErrDeclined = errors.New("payment declined")
	// ErrInvalidAmount is returned for negative charges.
	ErrInvalidAmount = errors.New("invalid payment amount")
)

// Charge describes one capture request.
type Charge struct {
	Reference string // transaction external reference
	UserID    uint
	Phone     string
	Amount    int64
}

// Receipt is the provider's confirmation of a captured charge.
type Receipt struct {
	Reference   string    `json:"reference"`
	ProviderRef string    `json:"provider_ref"`
	Amount      int64     `json:"amount"`
	PaidAt      time.Time `json:"paid_at"`
}

// Gateway captures payments. Implementations must return an error, and
// capture nothing, when ctx ends before the charge settles.
type Gateway interface {
	Charge(ctx context.Context, c Charge) (Receipt, error)
}
