package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated     = errors.New("not signed in")
	ErrBookNotFound        = errors.New("book not found")
	ErrBookNotPurchasable  = errors.New("book is not available for purchase")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransactionTerminal = errors.New("transaction already settled")
	ErrPlanNotFound        = errors.New("subscription plan not found")
	ErrPlanInactive        = errors.New("subscription plan is not available")
	ErrIssueNotFound       = errors.New("reconciliation issue not found")
	ErrIssueNotRepairable  = errors.New("reconciliation issue cannot be repaired")
)

// PaymentRecordError means the pending transaction could not be written.
// Nothing was charged; the caller may retry.
type PaymentRecordError struct {
	UserID uint
	Err    error
}

func (e *PaymentRecordError) Error() string {
	return fmt.Sprintf("record payment for user %d: %v", e.UserID, e.Err)
}

func (e *PaymentRecordError) Unwrap() error { return e.Err }

// Retryable reports that the failure happened before any money moved.
func (e *PaymentRecordError) Retryable() bool { return true }

// EntitlementGrantError means payment completed but the ownership (or
// subscription) row could not be written. The transaction stays completed
// and a reconciliation issue is recorded; it must not be retried blindly.
type EntitlementGrantError struct {
	TransactionID uint
	UserID        uint
	BookID        uint
	PlanID        uint
	Err           error
}

func (e *EntitlementGrantError) Error() string {
	if e.PlanID != 0 {
		return fmt.Sprintf("grant subscription for transaction %d (user %d, plan %d): %v",
			e.TransactionID, e.UserID, e.PlanID, e.Err)
	}
	return fmt.Sprintf("grant ownership for transaction %d (user %d, book %d): %v",
		e.TransactionID, e.UserID, e.BookID, e.Err)
}

func (e *EntitlementGrantError) Unwrap() error { return e.Err }

func (e *EntitlementGrantError) Retryable() bool { return false }
