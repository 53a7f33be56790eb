package ledger

import (
	"context"
	"errors"
)

// InitiateCheckout purchases each distinct book in order. Every item is an
// independent payment: a failure is reported on that item and never rolls
// back the others.
func (s *Service) InitiateCheckout(ctx context.Context, userID uint, bookIDs []uint) (*CheckoutResult, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	ids := dedupe(bookIDs)
	items := make([]CheckoutItem, 0, len(ids))
	for _, bookID := range ids {
		if err := ctx.Err(); err != nil {
			items = append(items, CheckoutItem{
				BookID:    bookID,
				Outcome:   OutcomeFailed,
				Error:     "checkout interrupted",
				Retryable: true,
			})
			continue
		}
		items = append(items, s.checkoutItem(ctx, userID, bookID))
	}

	result := &CheckoutResult{Status: summarize(items), Items: items}
	s.log.Info().
		Uint("user_id", userID).
		Int("items", len(items)).
		Str("status", string(result.Status)).
		Msg("checkout finished")
	return result, nil
}

func (s *Service) checkoutItem(ctx context.Context, userID, bookID uint) CheckoutItem {
	item := CheckoutItem{BookID: bookID}

	res, err := s.Purchase(ctx, userID, bookID)
	if err == nil {
		item.Outcome = res.Outcome
		item.TransactionID = res.TransactionID()
		if res.Outcome == OutcomeFailed {
			item.Error = "payment " + res.Reason
			item.Retryable = true
		}
		return item
	}

	var grantErr *EntitlementGrantError
	var recordErr *PaymentRecordError
	switch {
	case errors.As(err, &grantErr):
		item.Outcome = OutcomeGrantPending
		item.TransactionID = grantErr.TransactionID
		item.Error = "payment received, access is being restored"
	case errors.As(err, &recordErr):
		item.Outcome = OutcomeFailed
		item.Error = "could not record payment"
		item.Retryable = true
	case errors.Is(err, ErrBookNotFound), errors.Is(err, ErrBookNotPurchasable):
		item.Outcome = OutcomeFailed
		item.Error = err.Error()
	default:
		s.log.Warn().Err(err).Uint("user_id", userID).Uint("book_id", bookID).Msg("checkout item failed")
		item.Outcome = OutcomeFailed
		item.Error = "temporary failure"
		item.Retryable = true
	}
	return item
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
