package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/storefront/internal/database"
	"github.com/mrlokans/storefront/internal/database/dbtest"
	"github.com/mrlokans/storefront/internal/entities"
)

func TestRepository_ActiveAtAndLatestEnd(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	plan, err := entities.NewSubscriptionPlan("Monthly", 500, entities.PeriodMonth, nil)
	require.NoError(t, err)
	require.NoError(t, db.Create(plan).Error)

	end, err := repo.LatestEnd(ctx, 1)
	require.NoError(t, err)
	assert.True(t, end.IsZero())

	now := time.Now()
	expired := &entities.Subscription{UserID: 1, PlanID: plan.ID, TransactionID: 1,
		StartsAt: now.AddDate(0, -2, 0), EndsAt: now.AddDate(0, -1, 0)}
	current := &entities.Subscription{UserID: 1, PlanID: plan.ID, TransactionID: 2,
		StartsAt: now.Add(-time.Hour), EndsAt: now.AddDate(0, 1, 0)}
	require.NoError(t, repo.Create(ctx, expired))
	require.NoError(t, repo.Create(ctx, current))

	active, err := repo.ActiveAt(ctx, 1, now)
	require.NoError(t, err)
	assert.Equal(t, current.ID, active.ID)
	assert.Equal(t, "Monthly", active.Plan.Name)

	_, err = repo.ActiveAt(ctx, 1, now.AddDate(0, 2, 0))
	assert.True(t, database.IsNotFound(err))

	end, err = repo.LatestEnd(ctx, 1)
	require.NoError(t, err)
	assert.WithinDuration(t, current.EndsAt, end, time.Second)

	list, total, err := repo.List(ctx, 0, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)
}
