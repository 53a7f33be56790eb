package http

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/storefront/internal/entities"
	"github.com/mrlokans/storefront/internal/ledger"
)

func TestReaderController_PurchaseAndRead(t *testing.T) {
	f := newAPIFixture(t)
	pub := f.user(t, "pub@example.com", entities.RolePublisher)
	reader := f.user(t, "reader@example.com", entities.RoleReader)
	book := f.book(t, "Purchasable", 999, pub.profile.ID, false)
	readPath := fmt.Sprintf("/api/me/books/%d/read", book.ID)

	w := f.do(t, http.MethodGet, readPath, reader.token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not_entitled", decode[ErrorResponse](t, w).Code)

	w = f.do(t, http.MethodPost, "/api/me/purchases", reader.token, map[string]any{"book_id": book.ID})
	requireStatus(t, w, http.StatusCreated)
	res := decode[ledger.PurchaseResult](t, w)
	assert.Equal(t, ledger.OutcomePurchased, res.Outcome)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, entities.TransactionCompleted, res.Transaction.Status)

	t.Run("second purchase reports already owned", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/me/purchases", reader.token, map[string]any{"book_id": book.ID})
		requireStatus(t, w, http.StatusOK)
		assert.Equal(t, ledger.OutcomeAlreadyOwned, decode[ledger.PurchaseResult](t, w).Outcome)

		var count int64
		require.NoError(t, f.db.Model(&entities.Transaction{}).Count(&count).Error)
		assert.Equal(t, int64(1), count, "no second transaction")
	})

	t.Run("library lists the book", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/me/library", reader.token, nil)
		requireStatus(t, w, http.StatusOK)
		rows := decode[[]entities.Ownership](t, w)
		require.Len(t, rows, 1)
		assert.Equal(t, book.ID, rows[0].BookID)
	})

	t.Run("owner can read", func(t *testing.T) {
		w := f.do(t, http.MethodGet, readPath, reader.token, nil)
		requireStatus(t, w, http.StatusOK)
	})

	t.Run("owner keeps access after unpublish", func(t *testing.T) {
		require.NoError(t, f.books.SetStatus(t.Context(), book.ID, entities.BookStatusDraft))
		w := f.do(t, http.MethodGet, readPath, reader.token, nil)
		requireStatus(t, w, http.StatusOK)
	})
}

func TestReaderController_PurchaseErrors(t *testing.T) {
	f := newAPIFixture(t)
	pub := f.user(t, "pub@example.com", entities.RolePublisher)
	reader := f.user(t, "reader@example.com", entities.RoleReader)
	declined := f.userWithPhone(t, "declined@example.com", entities.RoleReader, testDeclinedPhone)
	draft := f.book(t, "Draft", 500, pub.profile.ID, true)
	book := f.book(t, "Live", 500, pub.profile.ID, false)

	tests := []struct {
		name   string
		token  string
		body   any
		status int
		code   string
	}{
		{"missing book id", reader.token, map[string]any{}, http.StatusBadRequest, "invalid_request"},
		{"unknown book", reader.token, map[string]any{"book_id": 9999}, http.StatusNotFound, "not_found"},
		{"draft book", reader.token, map[string]any{"book_id": draft.ID}, http.StatusConflict, "not_purchasable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/me/purchases", tt.token, tt.body)
			requireStatus(t, w, tt.status)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, w).Code)
		})
	}

	t.Run("declined payment grants nothing", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/me/purchases", declined.token, map[string]any{"book_id": book.ID})
		requireStatus(t, w, http.StatusPaymentRequired)
		res := decode[ledger.PurchaseResult](t, w)
		assert.Equal(t, ledger.OutcomeFailed, res.Outcome)
		assert.Equal(t, ledger.ReasonDeclined, res.Reason)

		owned, err := f.ownerships.Owns(t.Context(), declined.profile.ID, book.ID)
		require.NoError(t, err)
		assert.False(t, owned)
	})
}

func TestReaderController_Subscriptions(t *testing.T) {
	f := newAPIFixture(t)
	pub := f.user(t, "pub@example.com", entities.RolePublisher)
	reader := f.user(t, "reader@example.com", entities.RoleReader)

	subBook, err := entities.NewBook("Included", "Author", 800, true, &pub.profile.ID)
	require.NoError(t, err)
	require.NoError(t, f.books.Create(t.Context(), subBook))
	require.NoError(t, f.books.SetStatus(t.Context(), subBook.ID, entities.BookStatusPublished))
	paidBook := f.book(t, "Not Included", 800, pub.profile.ID, false)

	plan, err := entities.NewSubscriptionPlan("Monthly", 1500, entities.PeriodMonth, []string{"all subscription books"})
	require.NoError(t, err)
	require.NoError(t, f.plans.Create(t.Context(), plan))

	w := f.do(t, http.MethodGet, "/api/me/subscription", reader.token, nil)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, false, decode[map[string]any](t, w)["active"])

	w = f.do(t, http.MethodPost, "/api/me/subscriptions", reader.token, map[string]any{"plan_id": plan.ID})
	requireStatus(t, w, http.StatusCreated)
	res := decode[ledger.PurchaseResult](t, w)
	assert.Equal(t, ledger.OutcomeSubscribed, res.Outcome)
	require.NotNil(t, res.Subscription)

	w = f.do(t, http.MethodGet, "/api/me/subscription", reader.token, nil)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, true, decode[map[string]any](t, w)["active"])

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/me/books/%d/read", subBook.ID), reader.token, nil)
	assert.Equal(t, http.StatusOK, w.Code, "subscription book is readable")

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/me/books/%d/read", paidBook.ID), reader.token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "paid book still needs a purchase")

	w = f.do(t, http.MethodPost, "/api/me/subscriptions", reader.token, map[string]any{"plan_id": 4242})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
