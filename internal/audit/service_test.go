package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	auditRepo "github.com/mrlokans/storefront/internal/database/audit"
	"github.com/mrlokans/storefront/internal/database/dbtest"
	"github.com/mrlokans/storefront/internal/entities"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	db := dbtest.Open(t)
	svc := NewService(auditRepo.NewRepository(db), zerolog.Nop())
	return svc, db
}

func TestService_Log(t *testing.T) {
	svc, db := setupTestService(t)

	event := &entities.AuditEvent{
		UserID:    1,
		EventType: entities.AuditEventAdmin,
		Action:    "test_action",
		Status:    entities.AuditStatusSuccess,
	}
	require.NoError(t, svc.Log(context.Background(), event))

	var saved entities.AuditEvent
	require.NoError(t, db.First(&saved, event.ID).Error)
	assert.Equal(t, "test_action", saved.Action)
}

func TestService_LogPurchase(t *testing.T) {
	svc, db := setupTestService(t)

	t.Run("successful purchase", func(t *testing.T) {
		svc.LogPurchase(1, 5, 9, "purchased", nil)
		svc.Wait()

		var event entities.AuditEvent
		require.NoError(t, db.Where("action = ? AND user_id = ?", "book_purchase", 1).First(&event).Error)
		assert.Equal(t, entities.AuditStatusSuccess, event.Status)
		assert.Contains(t, event.Metadata, `"transaction_id":9`)
		require.NotNil(t, event.EntityID)
		assert.Equal(t, uint(5), *event.EntityID)
	})

	t.Run("failed purchase", func(t *testing.T) {
		svc.LogPurchase(2, 5, 10, "failed", errors.New("declined"))
		svc.Wait()

		var event entities.AuditEvent
		require.NoError(t, db.Where("action = ? AND user_id = ?", "book_purchase", 2).First(&event).Error)
		assert.Equal(t, entities.AuditStatusFailed, event.Status)
		assert.Equal(t, "declined", event.ErrorMsg)
	})
}

func TestService_LogAuth(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogAuth(1, "login", "10.0.0.1", "Mozilla/5.0", false)
	svc.Wait()

	var event entities.AuditEvent
	require.NoError(t, db.Where("event_type = ?", entities.AuditEventAuth).First(&event).Error)
	assert.Equal(t, "login", event.Action)
	assert.Equal(t, "10.0.0.1", event.IPAddress)
	assert.Equal(t, entities.AuditStatusFailed, event.Status)
}

func TestService_GetEventsAndDelete(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Log(ctx, &entities.AuditEvent{
		UserID: 1, EventType: entities.AuditEventSettings, Action: "old",
		Status: entities.AuditStatusSuccess, CreatedAt: time.Now().Add(-100 * 24 * time.Hour),
	}))
	svc.LogSettings(1, "setting_update", "store_name")
	svc.LogAdmin(2, "role_change", "reader -> publisher", "profile", 3)
	svc.Wait()

	events, total, err := svc.GetEvents(ctx, auditRepo.Filter{UserID: 1}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "setting_update", events[0].Action)

	deleted, err := svc.DeleteOldEvents(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
