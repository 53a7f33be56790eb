// Package ledger records payments and the entitlements they buy.
//
// A purchase always writes its Transaction before any Ownership row, and
// ownership is only attempted once the transaction reached completed.
// Completion is a conditional pending->completed update, so it happens at
// most once no matter how many confirmations race. The unique
// (user_id, book_id) index on user_books is the final guard: a losing
// grant is reported as already owned and flagged for reconciliation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/database"
	"github.com/mrlokans/storefront/internal/entities"
	"github.com/mrlokans/storefront/internal/payment"
)

// Failure reasons stored on failed transactions.
const (
	ReasonDeclined     = "declined"
	ReasonCanceled     = "canceled"
	ReasonGatewayError = "gateway_error"
)

type Deps struct {
	Books         BookStore
	Profiles      ProfileStore
	Transactions  TransactionStore
	Ownerships    OwnershipStore
	Plans         PlanStore
	Subscriptions SubscriptionStore
	Issues        IssueStore
	Gateway       payment.Gateway
	Audit         Auditor
	Logger        zerolog.Logger
	Clock         func() time.Time
}

type Service struct {
	books    BookStore
	profiles ProfileStore
	txs      TransactionStore
	owns     OwnershipStore
	plans    PlanStore
	subs     SubscriptionStore
	issues   IssueStore
	gateway  payment.Gateway
	audit    Auditor
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		books:    d.Books,
		profiles: d.Profiles,
		txs:      d.Transactions,
		owns:     d.Ownerships,
		plans:    d.Plans,
		subs:     d.Subscriptions,
		issues:   d.Issues,
		gateway:  d.Gateway,
		audit:    d.Audit,
		log:      d.Logger.With().Str("component", "ledger").Logger(),
		now:      d.Clock,
	}
	if s.audit == nil {
		s.audit = nopAuditor{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// InitiatePurchase records a pending transaction for bookID unless the user
// already owns it.
func (s *Service) InitiatePurchase(ctx context.Context, userID, bookID uint) (*PurchaseResult, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	book, err := s.books.GetByID(ctx, bookID)
	if database.IsNotFound(err) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load book %d: %w", bookID, err)
	}
	if !book.IsPublished() {
		return nil, ErrBookNotPurchasable
	}

	owned, err := s.owns.Owns(ctx, userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("check ownership: %w", err)
	}
	if owned {
		return &PurchaseResult{Outcome: OutcomeAlreadyOwned, BookID: bookID}, nil
	}

	// Paid earlier but the grant failed: never charge twice.
	stuck, err := s.issues.HasOpenGrantIssue(ctx, userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("check reconciliation: %w", err)
	}
	if stuck {
		return &PurchaseResult{Outcome: OutcomeGrantPending, BookID: bookID}, nil
	}

	tx, err := entities.NewPurchaseTransaction(userID, bookID, book.Price)
	if err != nil {
		return nil, &PaymentRecordError{UserID: userID, Err: err}
	}
	if err := s.txs.Create(ctx, tx); err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Uint("book_id", bookID).Msg("failed to record transaction")
		return nil, &PaymentRecordError{UserID: userID, Err: err}
	}
	return &PurchaseResult{Outcome: OutcomePending, BookID: bookID, Transaction: tx}, nil
}

// ConfirmPayment completes a pending transaction and grants what it paid for.
func (s *Service) ConfirmPayment(ctx context.Context, txID uint) (*PurchaseResult, error) {
	tx, err := s.txs.GetByID(ctx, txID)
	if database.IsNotFound(err) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction %d: %w", txID, err)
	}
	return s.confirm(ctx, tx)
}

// ConfirmByReference is ConfirmPayment keyed by the external reference.
func (s *Service) ConfirmByReference(ctx context.Context, ref string) (*PurchaseResult, error) {
	tx, err := s.txs.GetByReference(ctx, ref)
	if database.IsNotFound(err) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction %q: %w", ref, err)
	}
	return s.confirm(ctx, tx)
}

// FailPayment marks a pending transaction failed. Failing an already failed
// transaction is a no-op; failing a completed one is ErrTransactionTerminal.
func (s *Service) FailPayment(ctx context.Context, txID uint, reason string) (*PurchaseResult, error) {
	tx, err := s.txs.GetByID(ctx, txID)
	if database.IsNotFound(err) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction %d: %w", txID, err)
	}
	return s.fail(ctx, tx, reason)
}

// FailByReference is FailPayment keyed by the external reference.
func (s *Service) FailByReference(ctx context.Context, ref, reason string) (*PurchaseResult, error) {
	tx, err := s.txs.GetByReference(ctx, ref)
	if database.IsNotFound(err) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction %q: %w", ref, err)
	}
	return s.fail(ctx, tx, reason)
}

// Purchase runs the whole single-book flow: record, charge, confirm.
// Writes after the charge ignore ctx cancellation so a client going away
// cannot strand a captured payment.
func (s *Service) Purchase(ctx context.Context, userID, bookID uint) (*PurchaseResult, error) {
	res, err := s.InitiatePurchase(ctx, userID, bookID)
	if err != nil || res.Outcome != OutcomePending {
		return res, err
	}
	tx := res.Transaction

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

	res, err = s.confirm(writeCtx, tx)
	if err == nil && res.Outcome == OutcomeAlreadyProcessed {
		// A provider callback settled it first; to the buyer it is a purchase.
		res.Outcome = OutcomePurchased
	}
	return res, err
}

func (s *Service) confirm(ctx context.Context, tx *entities.Transaction) (*PurchaseResult, error) {
	switch tx.Status {
	case entities.TransactionCompleted:
		return s.processed(tx), nil
	case entities.TransactionFailed:
		return s.lateCapture(ctx, tx)
	}

	if tx.Type == entities.TransactionSubscription {
		return s.confirmSubscription(ctx, tx)
	}
	bookID := derefID(tx.BookID)

	owned, err := s.owns.Owns(ctx, tx.UserID, bookID)
	if err != nil {
		return nil, fmt.Errorf("check ownership: %w", err)
	}

	// The money moved, so the transaction completes whatever happens next.
	if err := s.complete(ctx, tx); err != nil {
		if errors.Is(err, errLostRace) {
			return s.settled(ctx, tx.ID)
		}
		return nil, err
	}

	if owned {
		s.flag(ctx, entities.IssueDuplicateCharge, tx, "user already owned the book when payment completed")
		s.audit.LogPurchase(tx.UserID, bookID, tx.ID, string(OutcomeAlreadyOwned), nil)
		return &PurchaseResult{Outcome: OutcomeAlreadyOwned, BookID: bookID, Transaction: tx}, nil
	}
	return s.grantOwnership(ctx, tx)
}

// lateCapture handles a success signal for a transaction already marked
// failed, such as a provider capturing after the buyer's request was
// canceled. The transaction stays failed and an admin is told about the money.
func (s *Service) lateCapture(ctx context.Context, tx *entities.Transaction) (*PurchaseResult, error) {
	s.log.Error().
		Uint("transaction_id", tx.ID).
		Uint("user_id", tx.UserID).
		Str("failure_reason", tx.FailureReason).
		Msg("payment succeeded for a failed transaction; needs reconciliation")
	s.flag(ctx, entities.IssueLateCapture, tx, "payment succeeded after the transaction failed: "+tx.FailureReason)
	s.audit.LogReconcile(tx.UserID, "late_capture", fmt.Sprintf("transaction %d", tx.ID), ErrTransactionTerminal)
	return nil, ErrTransactionTerminal
}

var errLostRace = errors.New("transaction no longer pending")

func (s *Service) complete(ctx context.Context, tx *entities.Transaction) error {
	ok, err := s.txs.Transition(ctx, tx.ID, entities.TransactionPending, entities.TransactionCompleted, "")
	if err != nil {
		return fmt.Errorf("complete transaction %d: %w", tx.ID, err)
	}
	if !ok {
		return errLostRace
	}
	now := s.now()
	tx.Status = entities.TransactionCompleted
	tx.CompletedAt = &now
	return nil
}

func (s *Service) grantOwnership(ctx context.Context, tx *entities.Transaction) (*PurchaseResult, error) {
	bookID := derefID(tx.BookID)
	err := s.owns.Grant(ctx, &entities.Ownership{
		UserID:        tx.UserID,
		BookID:        bookID,
		TransactionID: tx.ID,
		PurchasedAt:   s.now(),
	})
	switch {
	case err == nil:
		s.audit.LogPurchase(tx.UserID, bookID, tx.ID, string(OutcomePurchased), nil)
		return &PurchaseResult{Outcome: OutcomePurchased, BookID: bookID, Transaction: tx}, nil

	case database.IsUniqueViolation(err):
		// Another completed transaction won the grant; this one charged twice.
		s.flag(ctx, entities.IssueDuplicateCharge, tx, "ownership already existed when payment completed")
		s.audit.LogPurchase(tx.UserID, bookID, tx.ID, string(OutcomeAlreadyOwned), nil)
		return &PurchaseResult{Outcome: OutcomeAlreadyOwned, BookID: bookID, Transaction: tx}, nil

	default:
		grantErr := &EntitlementGrantError{TransactionID: tx.ID, UserID: tx.UserID, BookID: bookID, Err: err}
		s.log.Error().Err(err).
			Uint("transaction_id", tx.ID).
			Uint("user_id", tx.UserID).
			Uint("book_id", bookID).
			Msg("payment completed but ownership grant failed; needs reconciliation")
		s.flag(ctx, entities.IssueEntitlementGrantFailure, tx, err.Error())
		s.audit.LogPurchase(tx.UserID, bookID, tx.ID, "grant_failed", err)
		return nil, grantErr
	}
}

func (s *Service) fail(ctx context.Context, tx *entities.Transaction, reason string) (*PurchaseResult, error) {
	switch tx.Status {
	case entities.TransactionFailed:
		return s.failedResult(tx), nil
	case entities.TransactionCompleted:
		return nil, ErrTransactionTerminal
	}

	ok, err := s.txs.Transition(ctx, tx.ID, entities.TransactionPending, entities.TransactionFailed, reason)
	if err != nil {
		return nil, fmt.Errorf("fail transaction %d: %w", tx.ID, err)
	}
	if !ok {
		current, err := s.txs.GetByID(ctx, tx.ID)
		if err != nil {
			return nil, fmt.Errorf("reload transaction %d: %w", tx.ID, err)
		}
		if current.Status == entities.TransactionCompleted {
			return nil, ErrTransactionTerminal
		}
		return s.failedResult(current), nil
	}

	tx.Status = entities.TransactionFailed
	tx.FailureReason = reason
	if tx.Type == entities.TransactionSubscription {
		s.audit.LogSubscription(tx.UserID, derefID(tx.SubscriptionPlanID), tx.ID, string(OutcomeFailed), errors.New(reason))
	} else {
		s.audit.LogPurchase(tx.UserID, derefID(tx.BookID), tx.ID, string(OutcomeFailed), errors.New(reason))
	}
	return s.failedResult(tx), nil
}

// settled reports a transaction some other caller already moved out of
// pending. Callers only reach it after a success signal.
func (s *Service) settled(ctx context.Context, txID uint) (*PurchaseResult, error) {
	tx, err := s.txs.GetByID(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("reload transaction %d: %w", txID, err)
	}
	switch tx.Status {
	case entities.TransactionCompleted:
		return s.processed(tx), nil
	case entities.TransactionFailed:
		return s.lateCapture(ctx, tx)
	}
	return nil, fmt.Errorf("transaction %d still %s after lost update", txID, tx.Status)
}

func (s *Service) processed(tx *entities.Transaction) *PurchaseResult {
	return &PurchaseResult{
		Outcome:     OutcomeAlreadyProcessed,
		BookID:      derefID(tx.BookID),
		PlanID:      derefID(tx.SubscriptionPlanID),
		Transaction: tx,
	}
}

func (s *Service) failedResult(tx *entities.Transaction) *PurchaseResult {
	return &PurchaseResult{
		Outcome:     OutcomeFailed,
		BookID:      derefID(tx.BookID),
		PlanID:      derefID(tx.SubscriptionPlanID),
		Transaction: tx,
		Reason:      tx.FailureReason,
	}
}

// flag records a reconciliation issue. It must outlive the request.
func (s *Service) flag(ctx context.Context, kind entities.IssueKind, tx *entities.Transaction, detail string) {
	issue := &entities.ReconciliationIssue{
		Kind:          kind,
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		BookID:        derefID(tx.BookID),
		Detail:        truncate(detail, 500),
	}
	if _, err := s.issues.Record(context.WithoutCancel(ctx), issue); err != nil {
		s.log.Error().Err(err).
			Str("kind", string(kind)).
			Uint("transaction_id", tx.ID).
			Msg("failed to record reconciliation issue")
	}
}

func (s *Service) phoneOf(ctx context.Context, userID uint) string {
	if s.profiles == nil {
		return ""
	}
	p, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Msg("could not load payer phone")
		return ""
	}
	return p.Phone
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, payment.ErrDeclined):
		return ReasonDeclined
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCanceled
	default:
		return ReasonGatewayError
	}
}

func derefID(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
