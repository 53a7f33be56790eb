package ledger

import (
	"context"
	"time"

	"github.com/mrlokans/storefront/internal/entities"
)

// The ledger depends on these narrow views of the repositories so tests can
// substitute failing stores.

type BookStore interface {
	GetByID(ctx context.Context, id uint) (*entities.Book, error)
}

type ProfileStore interface {
	GetByID(ctx context.Context, id uint) (*entities.Profile, error)
}

type TransactionStore interface {
	Create(ctx context.Context, tx *entities.Transaction) error
	GetByID(ctx context.Context, id uint) (*entities.Transaction, error)
	GetByReference(ctx context.Context, ref string) (*entities.Transaction, error)
	Transition(ctx context.Context, id uint, from, to entities.TransactionStatus, reason string) (bool, error)
}

type OwnershipStore interface {
	Grant(ctx context.Context, o *entities.Ownership) error
	Owns(ctx context.Context, userID, bookID uint) (bool, error)
	ListForUser(ctx context.Context, userID uint) ([]entities.Ownership, error)
}

type PlanStore interface {
	GetByID(ctx context.Context, id uint) (*entities.SubscriptionPlan, error)
}

type SubscriptionStore interface {
	Create(ctx context.Context, sub *entities.Subscription) error
	ActiveAt(ctx context.Context, userID uint, at time.Time) (*entities.Subscription, error)
	LatestEnd(ctx context.Context, userID uint) (time.Time, error)
}

type IssueStore interface {
	Record(ctx context.Context, issue *entities.ReconciliationIssue) (bool, error)
	GetByID(ctx context.Context, id uint) (*entities.ReconciliationIssue, error)
	Resolve(ctx context.Context, id, by uint) (bool, error)
	HasOpenGrantIssue(ctx context.Context, userID, bookID uint) (bool, error)
}

// Auditor receives ledger outcomes; *audit.Service implements it.
type Auditor interface {
	LogPurchase(userID, bookID, transactionID uint, outcome string, err error)
	LogSubscription(userID, planID, transactionID uint, outcome string, err error)
	LogReconcile(userID uint, action, description string, err error)
}

type nopAuditor struct{}

func (nopAuditor) LogPurchase(uint, uint, uint, string, error)     {}
func (nopAuditor) LogSubscription(uint, uint, uint, string, error) {}
func (nopAuditor) LogReconcile(uint, string, string, error)        {}
