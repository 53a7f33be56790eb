package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/database"
	"github.com/mrlokans/storefront/internal/entities"
	"github.com/mrlokans/storefront/internal/ledger"
)

var ErrBookUnavailable = errors.New("book is not available")

// Catalog is the book lookup the cart needs to validate additions.
type Catalog interface {
	GetByID(ctx context.Context, id uint) (*entities.Book, error)
}

// Checkouter runs the purchases; *ledger.Service implements it.
type Checkouter interface {
	InitiateCheckout(ctx context.Context, userID uint, bookIDs []uint) (*ledger.CheckoutResult, error)
}

type Service struct {
	store   Store
	books   Catalog
	ledger  Checkouter
	log     zerolog.Logger
	nowFunc func() time.Time
}

func NewService(store Store, books Catalog, l Checkouter, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		books:   books,
		ledger:  l,
		log:     log.With().Str("component", "cart").Logger(),
		nowFunc: time.Now,
	}
}

func (s *Service) Get(ctx context.Context, userID uint) (*Cart, error) {
	if userID == 0 {
		return nil, ledger.ErrUnauthenticated
	}
	return s.store.Load(ctx, Key(userID))
}

// Add puts a published book in the cart.
func (s *Service) Add(ctx context.Context, userID, bookID uint) (*Cart, error) {
	if userID == 0 {
		return nil, ledger.ErrUnauthenticated
	}
	if bookID == 0 {
		return nil, ErrInvalidItem
	}
	book, err := s.books.GetByID(ctx, bookID)
	if database.IsNotFound(err) {
		return nil, ErrBookUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("load book %d: %w", bookID, err)
	}
	if !book.IsPublished() {
		return nil, ErrBookUnavailable
	}

	c, err := s.store.Load(ctx, Key(userID))
	if err != nil {
		return nil, err
	}
	if c.Add(bookID, s.nowFunc()) {
		if err := s.store.Save(ctx, Key(userID), c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (s *Service) Remove(ctx context.Context, userID, bookID uint) (*Cart, error) {
	if userID == 0 {
		return nil, ledger.ErrUnauthenticated
	}
	c, err := s.store.Load(ctx, Key(userID))
	if err != nil {
		return nil, err
	}
	if c.Remove(bookID) {
		if err := s.store.Save(ctx, Key(userID), c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (s *Service) Clear(ctx context.Context, userID uint) error {
	if userID == 0 {
		return ledger.ErrUnauthenticated
	}
	return s.store.Clear(ctx, Key(userID))
}

// Checkout buys everything in the cart. Settled items (purchased, already
// owned, or paid and awaiting reconciliation) leave the cart; failed ones
// stay so the reader can retry.
func (s *Service) Checkout(ctx context.Context, userID uint) (*ledger.CheckoutResult, *Cart, error) {
	if userID == 0 {
		return nil, nil, ledger.ErrUnauthenticated
	}
	key := Key(userID)
	c, err := s.store.Load(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.ledger.InitiateCheckout(ctx, userID, c.IDs())
	if err != nil {
		return nil, c, err
	}

	for _, item := range result.Items {
		if item.Settled() {
			c.Remove(item.BookID)
		}
	}
	// The purchases already happened; the cart write must not be skipped.
	if err := s.store.Save(context.WithoutCancel(ctx), key, c); err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Msg("failed to update cart after checkout")
	}
	return result, c, nil
}
