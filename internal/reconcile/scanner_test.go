package reconcile

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/storefront/internal/database/dbtest"
	"github.com/mrlokans/storefront/internal/database/reconciliation"
	"github.com/mrlokans/storefront/internal/database/transactions"
	"github.com/mrlokans/storefront/internal/entities"
)

type nopAuditor struct{ calls int }

func (a *nopAuditor) LogReconcile(uint, string, string, error) { a.calls++ }

func TestScanner_FlagsOrphansOnce(t *testing.T) {
	db := dbtest.Open(t)
	txs := transactions.NewRepository(db)
	issues := reconciliation.NewRepository(db)
	audit := &nopAuditor{}
	scanner := NewScanner(txs, issues, audit, zerolog.Nop()).WithGrace(0)
	ctx := context.Background()

	granted, err := entities.NewPurchaseTransaction(1, 10, 100)
	require.NoError(t, err)
	orphan, err := entities.NewPurchaseTransaction(1, 11, 100)
	require.NoError(t, err)
	for _, tx := range []*entities.Transaction{granted, orphan} {
		require.NoError(t, txs.Create(ctx, tx))
		_, err := txs.Transition(ctx, tx.ID, entities.TransactionPending, entities.TransactionCompleted, "")
		require.NoError(t, err)
	}
	require.NoError(t, db.Create(&entities.Ownership{UserID: 1, BookID: 10, TransactionID: granted.ID}).Error)

	report, err := scanner.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.NewIssues)

	report, err = scanner.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Checked, "flagged orphans are not rescanned")
	assert.Equal(t, 0, report.NewIssues)

	var issue entities.ReconciliationIssue
	require.NoError(t, db.First(&issue).Error)
	assert.Equal(t, entities.IssueMissingOwnership, issue.Kind)
	assert.Equal(t, orphan.ID, issue.TransactionID)
	assert.Equal(t, uint(11), issue.BookID)

	var owned int64
	require.NoError(t, db.Model(&entities.Ownership{}).Count(&owned).Error)
	assert.Equal(t, int64(1), owned, "scan never writes ownership")
	assert.Equal(t, 2, audit.calls)
}

func TestScanner_SkipsGrantFailuresAlreadyFlagged(t *testing.T) {
	db := dbtest.Open(t)
	txs := transactions.NewRepository(db)
	issues := reconciliation.NewRepository(db)
	scanner := NewScanner(txs, issues, &nopAuditor{}, zerolog.Nop()).WithGrace(0)
	ctx := context.Background()

	tx, err := entities.NewPurchaseTransaction(1, 10, 100)
	require.NoError(t, err)
	require.NoError(t, txs.Create(ctx, tx))
	_, err = txs.Transition(ctx, tx.ID, entities.TransactionPending, entities.TransactionCompleted, "")
	require.NoError(t, err)
	_, err = issues.Record(ctx, &entities.ReconciliationIssue{
		Kind:          entities.IssueEntitlementGrantFailure,
		TransactionID: tx.ID,
		UserID:        1,
		BookID:        10,
	})
	require.NoError(t, err)

	report, err := scanner.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Checked)
	assert.Zero(t, report.NewIssues)

	var kinds []entities.IssueKind
	require.NoError(t, db.Model(&entities.ReconciliationIssue{}).Pluck("kind", &kinds).Error)
	assert.Equal(t, []entities.IssueKind{entities.IssueEntitlementGrantFailure}, kinds)
}

func TestScanner_GraceSkipsFreshCompletions(t *testing.T) {
	db := dbtest.Open(t)
	txs := transactions.NewRepository(db)
	scanner := NewScanner(txs, reconciliation.NewRepository(db), &nopAuditor{}, zerolog.Nop())
	ctx := context.Background()

	tx, err := entities.NewPurchaseTransaction(1, 10, 100)
	require.NoError(t, err)
	require.NoError(t, txs.Create(ctx, tx))
	_, err = txs.Transition(ctx, tx.ID, entities.TransactionPending, entities.TransactionCompleted, "")
	require.NoError(t, err)

	report, err := scanner.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Checked)
}
