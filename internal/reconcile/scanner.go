// Package reconcile finds paid purchases that never produced an ownership
// row. It only reports; repairs are an explicit admin action.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/entities"
)

// DefaultGrace skips purchases completed too recently to have finished granting.
const DefaultGrace = 5 * time.Minute

type TransactionFinder interface {
	CompletedPurchasesWithoutOwnership(ctx context.Context, cutoff time.Time, limit int) ([]entities.Transaction, error)
}

type IssueRecorder interface {
	Record(ctx context.Context, issue *entities.ReconciliationIssue) (bool, error)
}

type Auditor interface {
	LogReconcile(userID uint, action, description string, err error)
}

// Report summarises one scan.
type Report struct {
	Checked   int       `json:"checked"`
	NewIssues int       `json:"new_issues"`
	ScannedAt time.Time `json:"scanned_at"`
}

type Scanner struct {
	txs    TransactionFinder
	issues IssueRecorder
	audit  Auditor
	grace  time.Duration
	batch  int
	log    zerolog.Logger
}

func NewScanner(txs TransactionFinder, issues IssueRecorder, audit Auditor, log zerolog.Logger) *Scanner {
	return &Scanner{
		txs:    txs,
		issues: issues,
		audit:  audit,
		grace:  DefaultGrace,
		batch:  500,
		log:    log.With().Str("component", "reconcile").Logger(),
	}
}

// WithGrace overrides the grace period; tests use zero.
func (s *Scanner) WithGrace(d time.Duration) *Scanner {
	s.grace = d
	return s
}

// Scan records a missing_ownership issue for every orphaned purchase.
// Running it twice records nothing new.
func (s *Scanner) Scan(ctx context.Context) (*Report, error) {
	now := time.Now()
	orphans, err := s.txs.CompletedPurchasesWithoutOwnership(ctx, now.Add(-s.grace), s.batch)
	if err != nil {
		s.audit.LogReconcile(0, "reconcile_scan", "scan failed", err)
		return nil, fmt.Errorf("find orphaned purchases: %w", err)
	}

	report := &Report{Checked: len(orphans), ScannedAt: now}
	for i := range orphans {
		tx := &orphans[i]
		var bookID uint
		if tx.BookID != nil {
			bookID = *tx.BookID
		}
		created, err := s.issues.Record(ctx, &entities.ReconciliationIssue{
			Kind:          entities.IssueMissingOwnership,
			TransactionID: tx.ID,
			UserID:        tx.UserID,
			BookID:        bookID,
			Detail:        "completed purchase has no ownership row",
		})
		if err != nil {
			return report, fmt.Errorf("record issue for transaction %d: %w", tx.ID, err)
		}
		if created {
			report.NewIssues++
			s.log.Warn().
				Uint("transaction_id", tx.ID).
				Uint("user_id", tx.UserID).
				Uint("book_id", bookID).
				Msg("completed purchase without ownership")
		}
	}

	s.log.Info().Int("checked", report.Checked).Int("new_issues", report.NewIssues).Msg("reconciliation scan finished")
	s.audit.LogReconcile(0, "reconcile_scan",
		fmt.Sprintf("checked %d, new issues %d", report.Checked, report.NewIssues), nil)
	return report, nil
}
