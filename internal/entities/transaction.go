package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionCompleted || s == TransactionFailed
}

type TransactionType string

const (
	TransactionPurchase     TransactionType = "purchase"
	TransactionSubscription TransactionType = "subscription"
)

// ErrTransactionTarget is returned when a transaction does not reference
// exactly one of a book or a subscription plan.
var ErrTransactionTarget = errors.New("transaction must reference exactly one of book or subscription plan")

// Transaction is the durable record of one payment attempt.
type Transaction struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	UserID             uint              `gorm:"index;not null" json:"user_id" validate:"required"`
	BookID             *uint             `gorm:"index" json:"book_id,omitempty"`
	SubscriptionPlanID *uint             `gorm:"index" json:"subscription_plan_id,omitempty"`
	Amount             int64             `json:"amount" validate:"gte=0"`
	Status             TransactionStatus `gorm:"size:20;index;default:'pending'" json:"status" validate:"required,oneof=pending completed failed"`
	Type               TransactionType   `gorm:"size:20;index" json:"type" validate:"required,oneof=purchase subscription"`
	ExternalReference  string            `gorm:"uniqueIndex;size:64" json:"external_reference" validate:"required,max=64"`
	FailureReason      string            `gorm:"size:255" json:"failure_reason,omitempty"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// NewPurchaseTransaction builds a pending purchase of bookID.
func NewPurchaseTransaction(userID, bookID uint, amount int64) (*Transaction, error) {
	return newTransaction(userID, &bookID, nil, amount, TransactionPurchase)
}

// NewSubscriptionTransaction builds a pending subscription to planID.
func NewSubscriptionTransaction(userID, planID uint, amount int64) (*Transaction, error) {
	return newTransaction(userID, nil, &planID, amount, TransactionSubscription)
}

func newTransaction(userID uint, bookID, planID *uint, amount int64, typ TransactionType) (*Transaction, error) {
	t := &Transaction{
		UserID:             userID,
		BookID:             bookID,
		SubscriptionPlanID: planID,
		Amount:             amount,
		Status:             TransactionPending,
		Type:               typ,
		ExternalReference:  uuid.NewString(),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks field constraints and the book XOR plan rule.
func (t *Transaction) Validate() error {
	if err := check(t); err != nil {
		return err
	}
	hasBook := t.BookID != nil && *t.BookID != 0
	hasPlan := t.SubscriptionPlanID != nil && *t.SubscriptionPlanID != 0
	if hasBook == hasPlan {
		return ErrTransactionTarget
	}
	if t.Type == TransactionPurchase && !hasBook {
		return ErrTransactionTarget
	}
	if t.Type == TransactionSubscription && !hasPlan {
		return ErrTransactionTarget
	}
	return nil
}
