package ledger

import (
	"context"
	"fmt"

	"github.com/mrlokans/storefront/internal/database"
	"github.com/mrlokans/storefront/internal/entities"
)

// RepairEntitlement grants the entitlement a completed payment is missing
// and resolves the issue. It is only ever run by an admin.
func (s *Service) RepairEntitlement(ctx context.Context, issueID, adminID uint) (*entities.ReconciliationIssue, error) {
	issue, err := s.issues.GetByID(ctx, issueID)
	if database.IsNotFound(err) {
		return nil, ErrIssueNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load issue %d: %w", issueID, err)
	}
	if !issue.Repairable() {
		return nil, ErrIssueNotRepairable
	}

	tx, err := s.txs.GetByID(ctx, issue.TransactionID)
	if database.IsNotFound(err) {
		return nil, ErrIssueNotRepairable
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction %d: %w", issue.TransactionID, err)
	}
	if tx.Status != entities.TransactionCompleted {
		return nil, ErrIssueNotRepairable
	}

	switch tx.Type {
	case entities.TransactionPurchase:
		err = s.owns.Grant(ctx, &entities.Ownership{
			UserID:        tx.UserID,
			BookID:        derefID(tx.BookID),
			TransactionID: tx.ID,
			PurchasedAt:   s.now(),
		})
	case entities.TransactionSubscription:
		_, err = s.extendSubscription(ctx, tx)
	}
	// A unique violation means the entitlement already exists.
	if err != nil && !database.IsUniqueViolation(err) {
		s.audit.LogReconcile(adminID, "entitlement_repair", fmt.Sprintf("issue %d", issueID), err)
		return nil, fmt.Errorf("repair issue %d: %w", issueID, err)
	}

	if _, err := s.issues.Resolve(ctx, issueID, adminID); err != nil {
		return nil, fmt.Errorf("resolve issue %d: %w", issueID, err)
	}
	s.log.Info().Uint("issue_id", issueID).Uint("admin_id", adminID).Msg("entitlement repaired")
	s.audit.LogReconcile(adminID, "entitlement_repair", fmt.Sprintf("issue %d", issueID), nil)

	return s.issues.GetByID(ctx, issueID)
}
