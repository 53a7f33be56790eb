package http

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/storefront/internal/entities"
)

type booksPage struct {
	Data  []entities.Book `json:"data"`
	Total int64           `json:"total"`
}

func TestBooksController_Browse(t *testing.T) {
	f := newAPIFixture(t)
	pub := f.user(t, "pub@example.com", entities.RolePublisher)
	f.book(t, "The Go Programming Language", 3000, pub.profile.ID, false)
	f.book(t, "Concurrency in Go", 2500, pub.profile.ID, false)
	f.book(t, "Unreleased Draft", 1000, pub.profile.ID, true)

	t.Run("lists published books only", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/books", "", nil)
		requireStatus(t, w, http.StatusOK)

		page := decode[booksPage](t, w)
		assert.Equal(t, int64(2), page.Total)
		for _, b := range page.Data {
			assert.Equal(t, entities.BookStatusPublished, b.Status)
		}
	})

	t.Run("filters by title case-insensitively", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/books?q=concurrency", "", nil)
		requireStatus(t, w, http.StatusOK)

		page := decode[booksPage](t, w)
		require.Len(t, page.Data, 1)
		assert.Equal(t, "Concurrency in Go", page.Data[0].Title)
	})

	t.Run("search never shows drafts", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/books?q=draft", "", nil)
		requireStatus(t, w, http.StatusOK)
		assert.Empty(t, decode[booksPage](t, w).Data)
	})
}

func TestBooksController_GetDraftVisibility(t *testing.T) {
	f := newAPIFixture(t)
	owner := f.user(t, "owner@example.com", entities.RolePublisher)
	other := f.user(t, "other@example.com", entities.RolePublisher)
	admin := f.user(t, "admin@example.com", entities.RoleAdmin)
	draft := f.book(t, "Work in Progress", 1500, owner.profile.ID, true)
	path := fmt.Sprintf("/api/books/%d", draft.ID)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, path, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, path, other.token, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, owner.token, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, admin.token, nil).Code)

	w := f.do(t, http.MethodGet, "/api/books/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBooksController_PublisherLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	pub := f.user(t, "pub@example.com", entities.RolePublisher)
	rival := f.user(t, "rival@example.com", entities.RolePublisher)

	w := f.do(t, http.MethodPost, "/api/publisher/books", pub.token, map[string]any{
		"title":  "Field Notes",
		"author": "A. Writer",
		"price":  1200,
	})
	requireStatus(t, w, http.StatusCreated)
	created := decode[entities.Book](t, w)
	assert.Equal(t, entities.BookStatusDraft, created.Status)
	require.NotNil(t, created.PublisherID)
	assert.Equal(t, pub.profile.ID, *created.PublisherID)

	t.Run("rejects invalid input", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/publisher/books", pub.token, map[string]any{"title": "", "price": 10})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = f.do(t, http.MethodPost, "/api/publisher/books", pub.token, map[string]any{"title": "Cheap", "price": -1})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("another publisher cannot edit", func(t *testing.T) {
		w := f.do(t, http.MethodPut, fmt.Sprintf("/api/publisher/books/%d", created.ID), rival.token, map[string]any{
			"title": "Hijacked",
			"price": 1,
		})
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = f.do(t, http.MethodPost, fmt.Sprintf("/api/publisher/books/%d/publish", created.ID), rival.token, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("owner updates and publishes", func(t *testing.T) {
		w := f.do(t, http.MethodPut, fmt.Sprintf("/api/publisher/books/%d", created.ID), pub.token, map[string]any{
			"title":  "Field Notes, Second Edition",
			"author": "A. Writer",
			"price":  1500,
		})
		requireStatus(t, w, http.StatusOK)
		assert.Equal(t, int64(1500), decode[entities.Book](t, w).Price)

		w = f.do(t, http.MethodPost, fmt.Sprintf("/api/publisher/books/%d/publish", created.ID), pub.token, nil)
		requireStatus(t, w, http.StatusOK)
		assert.Equal(t, entities.BookStatusPublished, decode[entities.Book](t, w).Status)

		w = f.do(t, http.MethodGet, "/api/books", "", nil)
		assert.Equal(t, int64(1), decode[booksPage](t, w).Total)
	})

	t.Run("unpublish hides it again", func(t *testing.T) {
		w := f.do(t, http.MethodPost, fmt.Sprintf("/api/publisher/books/%d/unpublish", created.ID), pub.token, nil)
		requireStatus(t, w, http.StatusOK)

		w = f.do(t, http.MethodGet, "/api/books", "", nil)
		assert.Equal(t, int64(0), decode[booksPage](t, w).Total)
	})

	t.Run("lists only own books", func(t *testing.T) {
		f.book(t, "Rival Book", 100, rival.profile.ID, false)

		w := f.do(t, http.MethodGet, "/api/publisher/books", pub.token, nil)
		requireStatus(t, w, http.StatusOK)
		books := decode[[]entities.Book](t, w)
		require.Len(t, books, 1)
		assert.Equal(t, created.ID, books[0].ID)
	})
}
