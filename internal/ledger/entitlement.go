package ledger

import (
	"context"
	"fmt"

	"github.com/mrlokans/storefront/internal/database"
	"github.com/mrlokans/storefront/internal/entities"
)

// CanRead reports whether userID may open bookID: its owner, its publisher,
// an admin, or an active subscriber when the book is in the subscription
// catalog. Anonymous users can read nothing.
func (s *Service) CanRead(ctx context.Context, userID, bookID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	book, err := s.books.GetByID(ctx, bookID)
	if database.IsNotFound(err) {
		return false, ErrBookNotFound
	}
	if err != nil {
		return false, fmt.Errorf("load book %d: %w", bookID, err)
	}
	if book.IsPublishedBy(userID) {
		return true, nil
	}

	owned, err := s.owns.Owns(ctx, userID, bookID)
	if err != nil {
		return false, fmt.Errorf("check ownership: %w", err)
	}
	if owned {
		return true, nil
	}

	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil && !database.IsNotFound(err) {
		return false, fmt.Errorf("load profile %d: %w", userID, err)
	}
	if profile != nil && profile.Role == entities.RoleAdmin {
		return true, nil
	}

	if !book.IsSubscription {
		return false, nil
	}
	sub, err := s.ActiveSubscription(ctx, userID)
	if err != nil {
		return false, err
	}
	return sub != nil, nil
}

// Library lists the user's owned books, newest purchase first.
func (s *Service) Library(ctx context.Context, userID uint) ([]entities.Ownership, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	rows, err := s.owns.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list library: %w", err)
	}
	return rows, nil
}
