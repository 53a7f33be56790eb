package ledger

import "github.com/mrlokans/storefront/internal/entities"

// Outcome is the caller-visible result of a ledger operation.
type Outcome string

const (
	// Transaction recorded, awaiting payment confirmation.
	OutcomePending Outcome = "pending"
	// Paid and entitled.
	OutcomePurchased Outcome = "purchased"
	// Subscription paid and active.
	OutcomeSubscribed Outcome = "subscribed"
	// User already owned the book; nothing new was charged or granted.
	OutcomeAlreadyOwned Outcome = "already_owned"
	// Confirmation repeated for a transaction that had already completed.
	OutcomeAlreadyProcessed Outcome = "already_processed"
	// A completed payment exists without its entitlement; waiting on
	// reconciliation, so no new charge is made.
	OutcomeGrantPending Outcome = "grant_pending"
	// The payment failed; nothing was captured.
	OutcomeFailed Outcome = "failed"
)

// PurchaseResult reports one purchase, confirmation or subscription.
type PurchaseResult struct {
	Outcome     Outcome               `json:"outcome"`
	BookID      uint                  `json:"book_id,omitempty"`
	PlanID      uint                  `json:"plan_id,omitempty"`
	Transaction *entities.Transaction `json:"transaction,omitempty"`
	// Set for subscription results.
	Subscription *entities.Subscription `json:"subscription,omitempty"`
	Reason       string                 `json:"reason,omitempty"`
}

// TransactionID is zero when no transaction was created.
func (r *PurchaseResult) TransactionID() uint {
	if r == nil || r.Transaction == nil {
		return 0
	}
	return r.Transaction.ID
}

type CheckoutStatus string

const (
	CheckoutCompleted   CheckoutStatus = "completed"
	CheckoutPartial     CheckoutStatus = "partial"
	CheckoutFailed      CheckoutStatus = "failed"
	CheckoutNothingToDo CheckoutStatus = "nothing_to_do"
)

// CheckoutItem is the per-book result of a checkout.
type CheckoutItem struct {
	BookID        uint    `json:"book_id"`
	Outcome       Outcome `json:"outcome"`
	TransactionID uint    `json:"transaction_id,omitempty"`
	Error         string  `json:"error,omitempty"`
	Retryable     bool    `json:"retryable,omitempty"`
}

// Settled reports whether the item should leave the cart.
func (i CheckoutItem) Settled() bool {
	switch i.Outcome {
	case OutcomePurchased, OutcomeAlreadyOwned, OutcomeAlreadyProcessed, OutcomeGrantPending:
		return true
	}
	return false
}

// CheckoutResult aggregates a checkout. Items keep cart order.
type CheckoutResult struct {
	Status CheckoutStatus `json:"status"`
	Items  []CheckoutItem `json:"items"`
}

func summarize(items []CheckoutItem) CheckoutStatus {
	if len(items) == 0 {
		return CheckoutNothingToDo
	}
	var purchased, failed int
	for _, it := range items {
		switch it.Outcome {
		case OutcomePurchased:
			purchased++
		case OutcomeFailed:
			failed++
		}
	}
	switch {
	case purchased == len(items):
		return CheckoutCompleted
	case purchased > 0:
		return CheckoutPartial
	case failed > 0:
		return CheckoutFailed
	default:
		return CheckoutNothingToDo
	}
}
