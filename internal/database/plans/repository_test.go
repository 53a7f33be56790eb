package plans

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/storefront/internal/database/dbtest"
	"github.com/mrlokans/storefront/internal/entities"
)

func TestRepository_ListActiveOnly(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	monthly, err := entities.NewSubscriptionPlan("Monthly", 999, entities.PeriodMonth, []string{"all books"})
	require.NoError(t, err)
	yearly, err := entities.NewSubscriptionPlan("Yearly", 9999, entities.PeriodYear, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, monthly))
	require.NoError(t, repo.Create(ctx, yearly))

	yearly.Active = false
	require.NoError(t, repo.Save(ctx, yearly))

	active, err := repo.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Monthly", active[0].Name)
	assert.Equal(t, []string{"all books"}, active[0].FeatureList())

	all, err := repo.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := repo.GetByID(ctx, yearly.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}
