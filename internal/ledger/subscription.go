package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrlokans/storefront/internal/database"
	"github.com/mrlokans/storefront/internal/entities"
	"github.com/mrlokans/storefront/internal/payment"
)

// Subscribe charges for one period of planID and extends the user's access
// from the later of now and their current subscription end.
func (s *Service) Subscribe(ctx context.Context, userID, planID uint) (*PurchaseResult, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	plan, err := s.plans.GetByID(ctx, planID)
	if database.IsNotFound(err) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load plan %d: %w", planID, err)
	}
	if !plan.Active {
		return nil, ErrPlanInactive
	}

	tx, err := entities.NewSubscriptionTransaction(userID, planID, plan.Price)
	if err != nil {
		return nil, &PaymentRecordError{UserID: userID, Err: err}
	}
	if err := s.txs.Create(ctx, tx); err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Uint("plan_id", planID).Msg("failed to record subscription transaction")
		return nil, &PaymentRecordError{UserID: userID, Err: err}
	}

	_, chargeErr := s.gateway.Charge(ctx, payment.Charge{
		Reference: tx.ExternalReference,
		UserID:    userID,
		Phone:     s.phoneOf(ctx, userID),
		Amount:    tx.Amount,
	})
	writeCtx := context.WithoutCancel(ctx)
	if chargeErr != nil {
		return s.fail(writeCtx, tx, failureReason(chargeErr))
	}
	return s.confirm(writeCtx, tx)
}

func (s *Service) confirmSubscription(ctx context.Context, tx *entities.Transaction) (*PurchaseResult, error) {
	if err := s.complete(ctx, tx); err != nil {
		if errors.Is(err, errLostRace) {
			return s.settled(ctx, tx.ID)
		}
		return nil, err
	}
	return s.grantSubscription(ctx, tx)
}

func (s *Service) grantSubscription(ctx context.Context, tx *entities.Transaction) (*PurchaseResult, error) {
	planID := derefID(tx.SubscriptionPlanID)
	sub, err := s.extendSubscription(ctx, tx)
	switch {
	case err == nil:
		s.audit.LogSubscription(tx.UserID, planID, tx.ID, string(OutcomeSubscribed), nil)
		return &PurchaseResult{Outcome: OutcomeSubscribed, PlanID: planID, Transaction: tx, Subscription: sub}, nil

	case database.IsUniqueViolation(err):
		// The period for this transaction was already written.
		return s.processed(tx), nil

	default:
		s.log.Error().Err(err).
			Uint("transaction_id", tx.ID).
			Uint("user_id", tx.UserID).
			Uint("plan_id", planID).
			Msg("subscription paid but not granted; needs reconciliation")
		s.flag(ctx, entities.IssueEntitlementGrantFailure, tx, err.Error())
		s.audit.LogSubscription(tx.UserID, planID, tx.ID, "grant_failed", err)
		return nil, &EntitlementGrantError{TransactionID: tx.ID, UserID: tx.UserID, PlanID: planID, Err: err}
	}
}

func (s *Service) extendSubscription(ctx context.Context, tx *entities.Transaction) (*entities.Subscription, error) {
	plan, err := s.plans.GetByID(ctx, derefID(tx.SubscriptionPlanID))
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	start := s.now()
	latest, err := s.subs.LatestEnd(ctx, tx.UserID)
	if err != nil {
		return nil, fmt.Errorf("load current subscription: %w", err)
	}
	if latest.After(start) {
		start = latest
	}
	sub := &entities.Subscription{
		UserID:        tx.UserID,
		PlanID:        plan.ID,
		TransactionID: tx.ID,
		StartsAt:      start,
		EndsAt:        plan.Period.Extend(start),
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// ActiveSubscription returns the subscription covering now, or nil.
func (s *Service) ActiveSubscription(ctx context.Context, userID uint) (*entities.Subscription, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	sub, err := s.subs.ActiveAt(ctx, userID, s.now())
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	return sub, nil
}
