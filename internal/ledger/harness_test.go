package ledger

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/storefront/internal/database/books"
	"github.com/mrlokans/storefront/internal/database/dbtest"
	"github.com/mrlokans/storefront/internal/database/ownership"
	"github.com/mrlokans/storefront/internal/database/plans"
	"github.com/mrlokans/storefront/internal/database/profiles"
	"github.com/mrlokans/storefront/internal/database/reconciliation"
	"github.com/mrlokans/storefront/internal/database/subscriptions"
	"github.com/mrlokans/storefront/internal/database/transactions"
	"github.com/mrlokans/storefront/internal/entities"
	"github.com/mrlokans/storefront/internal/payment"
)

const declinedPhone = "254700000999"

type countingGateway struct {
	inner payment.Gateway
	calls atomic.Int32
}

func (g *countingGateway) Charge(ctx context.Context, c payment.Charge) (payment.Receipt, error) {
	g.calls.Add(1)
	return g.inner.Charge(ctx, c)
}

// hookGateway runs hook in the middle of every charge. A non-nil error from
// the hook is returned as the charge result.
type hookGateway struct {
	hook func(ctx context.Context) error
}

func (g *hookGateway) Charge(ctx context.Context, c payment.Charge) (payment.Receipt, error) {
	if g.hook != nil {
		if err := g.hook(ctx); err != nil {
			return payment.Receipt{}, err
		}
	}
	return payment.Receipt{Reference: c.Reference, ProviderRef: "HOOK-1", Amount: c.Amount}, nil
}

// brokenGrants fails every ownership insert.
type brokenGrants struct {
	*ownership.Repository
}

func (brokenGrants) Grant(context.Context, *entities.Ownership) error {
	return errors.New("disk I/O error")
}

// blindOwnership never sees existing rows, forcing the unique index to decide.
type blindOwnership struct {
	*ownership.Repository
}

func (blindOwnership) Owns(context.Context, uint, uint) (bool, error) {
	return false, nil
}

// brokenCreates fails every transaction insert.
type brokenCreates struct {
	*transactions.Repository
}

func (brokenCreates) Create(context.Context, *entities.Transaction) error {
	return errors.New("database is locked")
}

type harness struct {
	db       *gorm.DB
	svc      *Service
	books    *books.Repository
	profiles *profiles.Repository
	txs      *transactions.Repository
	owns     *ownership.Repository
	plans    *plans.Repository
	issues   *reconciliation.Repository
	gateway  *countingGateway
}

func newHarness(t *testing.T, mutate ...func(*Deps)) *harness {
	t.Helper()
	db := dbtest.Open(t)
	h := &harness{
		db:       db,
		books:    books.NewRepository(db),
		profiles: profiles.NewRepository(db),
		txs:      transactions.NewRepository(db),
		owns:     ownership.NewRepository(db),
		plans:    plans.NewRepository(db),
		issues:   reconciliation.NewRepository(db),
		gateway: &countingGateway{
			inner: payment.NewSimulator(0, []string{declinedPhone}, nil, zerolog.Nop()),
		},
	}
	deps := Deps{
		Books:         h.books,
		Profiles:      h.profiles,
		Transactions:  h.txs,
		Ownerships:    h.owns,
		Plans:         h.plans,
		Subscriptions: subscriptions.NewRepository(db),
		Issues:        h.issues,
		Gateway:       h.gateway,
		Logger:        zerolog.Nop(),
	}
	for _, m := range mutate {
		m(&deps)
	}
	h.svc = NewService(deps)
	return h
}

func (h *harness) user(t *testing.T, email string, role entities.Role) *entities.Profile {
	t.Helper()
	p, err := entities.NewProfile(email, "User", "254700000001", role)
	require.NoError(t, err)
	require.NoError(t, h.profiles.Create(context.Background(), p))
	return p
}

func (h *harness) book(t *testing.T, title string, published bool) *entities.Book {
	t.Helper()
	b, err := entities.NewBook(title, "Author", 450, false, nil)
	require.NoError(t, err)
	if published {
		b.Status = entities.BookStatusPublished
	}
	require.NoError(t, h.books.Create(context.Background(), b))
	return b
}

func (h *harness) issuesFor(t *testing.T, txID uint) []entities.ReconciliationIssue {
	t.Helper()
	var out []entities.ReconciliationIssue
	require.NoError(t, h.db.Where("transaction_id = ?", txID).Order("id").Find(&out).Error)
	return out
}

func (h *harness) ownershipRows(t *testing.T, userID, bookID uint) int64 {
	t.Helper()
	n, err := h.owns.CountForUserBook(context.Background(), userID, bookID)
	require.NoError(t, err)
	return n
}
