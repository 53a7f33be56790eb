package entities

import "time"

type IssueKind string

const (
	// Transaction completed but the ownership insert failed.
	IssueEntitlementGrantFailure IssueKind = "entitlement_grant_failure"
	// A second completed transaction for a book the user already owned.
	IssueDuplicateCharge IssueKind = "duplicate_charge"
	// Found by the periodic scan: completed purchase with no ownership row.
	IssueMissingOwnership IssueKind = "missing_ownership"
	// Payment succeeded for a transaction already recorded as failed.
	IssueLateCapture IssueKind = "late_capture"
)

// ReconciliationIssue flags a ledger inconsistency for manual follow-up.
type ReconciliationIssue struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Kind          IssueKind  `gorm:"size:40;uniqueIndex:ux_issue_kind_tx,priority:1" json:"kind"`
	TransactionID uint       `gorm:"uniqueIndex:ux_issue_kind_tx,priority:2" json:"transaction_id"`
	UserID        uint       `gorm:"index" json:"user_id"`
	BookID        uint       `json:"book_id"`
	Detail        string     `gorm:"size:500" json:"detail"`
	Resolved      bool       `gorm:"index;default:false" json:"resolved"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy    *uint      `json:"resolved_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (ReconciliationIssue) TableName() string {
	return "reconciliation_issues"
}

// Repairable reports whether granting ownership would close the issue.
func (i *ReconciliationIssue) Repairable() bool {
	return !i.Resolved && (i.Kind == IssueEntitlementGrantFailure || i.Kind == IssueMissingOwnership)
}
