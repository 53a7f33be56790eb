// Package catalog manages the books publishers sell and readers browse.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrlokans/storefront/internal/database"
	"github.com/mrlokans/storefront/internal/entities"
)

var (
	ErrNotFound  = errors.New("book not found")
	ErrForbidden = errors.New("not allowed to edit this book")
)

type BookStore interface {
	Create(ctx context.Context, book *entities.Book) error
	GetByID(ctx context.Context, id uint) (*entities.Book, error)
	Save(ctx context.Context, book *entities.Book) error
	SetStatus(ctx context.Context, id uint, status entities.BookStatus) error
	SearchPublished(ctx context.Context, q string, limit, offset int) ([]entities.Book, int64, error)
	ListByPublisher(ctx context.Context, publisherID uint) ([]entities.Book, error)
	ListAll(ctx context.Context) ([]entities.Book, error)
}

type Auditor interface {
	LogCatalog(userID uint, action string, bookID uint, title string)
}

// Actor is whoever is asking, as resolved by the gate.
type Actor struct {
	UserID uint
	Role   entities.Role
}

// BookInput carries editable book fields.
type BookInput struct {
	Title          string `json:"title"`
	Author         string `json:"author"`
	Description    string `json:"description"`
	CoverURL       string `json:"cover_url"`
	Price          int64  `json:"price"`
	IsSubscription bool   `json:"is_subscription"`
}

type Service struct {
	books BookStore
	audit Auditor
}

func NewService(books BookStore, audit Auditor) *Service {
	return &Service{books: books, audit: audit}
}

// Browse lists published books matching q.
func (s *Service) Browse(ctx context.Context, q string, limit, offset int) ([]entities.Book, int64, error) {
	return s.books.SearchPublished(ctx, q, limit, offset)
}

// Get returns a published book, or a draft to its publisher or an admin.
func (s *Service) Get(ctx context.Context, actor Actor, id uint) (*entities.Book, error) {
	book, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !book.IsPublished() && !canEdit(actor, book) {
		return nil, ErrNotFound
	}
	return book, nil
}

// ListOwn lists the actor's books; admins see every book.
func (s *Service) ListOwn(ctx context.Context, actor Actor) ([]entities.Book, error) {
	if actor.Role == entities.RoleAdmin {
		return s.books.ListAll(ctx)
	}
	return s.books.ListByPublisher(ctx, actor.UserID)
}

// Create adds a draft owned by the actor.
func (s *Service) Create(ctx context.Context, actor Actor, in BookInput) (*entities.Book, error) {
	if !actor.Role.Satisfies(entities.RolePublisher) {
		return nil, ErrForbidden
	}
	publisherID := actor.UserID
	book, err := entities.NewBook(in.Title, in.Author, in.Price, in.IsSubscription, &publisherID)
	if err != nil {
		return nil, err
	}
	book.Description = in.Description
	book.CoverURL = in.CoverURL
	if err := book.Validate(); err != nil {
		return nil, err
	}
	if err := s.books.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}
	s.audit.LogCatalog(actor.UserID, "book_create", book.ID, book.Title)
	return book, nil
}

// Update replaces the editable fields of a book the actor may edit.
func (s *Service) Update(ctx context.Context, actor Actor, id uint, in BookInput) (*entities.Book, error) {
	book, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	book.Title = in.Title
	book.Author = in.Author
	book.Description = in.Description
	book.CoverURL = in.CoverURL
	book.Price = in.Price
	book.IsSubscription = in.IsSubscription
	if err := book.Validate(); err != nil {
		return nil, err
	}
	if err := s.books.Save(ctx, book); err != nil {
		return nil, fmt.Errorf("update book %d: %w", id, err)
	}
	s.audit.LogCatalog(actor.UserID, "book_update", book.ID, book.Title)
	return book, nil
}

func (s *Service) Publish(ctx context.Context, actor Actor, id uint) (*entities.Book, error) {
	return s.setStatus(ctx, actor, id, entities.BookStatusPublished, "book_publish")
}

// Unpublish hides a book from browsing and purchase. Existing owners keep it.
func (s *Service) Unpublish(ctx context.Context, actor Actor, id uint) (*entities.Book, error) {
	return s.setStatus(ctx, actor, id, entities.BookStatusDraft, "book_unpublish")
}

func (s *Service) setStatus(ctx context.Context, actor Actor, id uint, status entities.BookStatus, action string) (*entities.Book, error) {
	book, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if book.Status == status {
		return book, nil
	}
	if err := s.books.SetStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("set status of book %d: %w", id, err)
	}
	book.Status = status
	s.audit.LogCatalog(actor.UserID, action, book.ID, book.Title)
	return book, nil
}

func (s *Service) editable(ctx context.Context, actor Actor, id uint) (*entities.Book, error) {
	book, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canEdit(actor, book) {
		return nil, ErrForbidden
	}
	return book, nil
}

func (s *Service) load(ctx context.Context, id uint) (*entities.Book, error) {
	book, err := s.books.GetByID(ctx, id)
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load book %d: %w", id, err)
	}
	return book, nil
}

func canEdit(actor Actor, book *entities.Book) bool {
	if actor.Role == entities.RoleAdmin {
		return true
	}
	return actor.Role == entities.RolePublisher && book.IsPublishedBy(actor.UserID)
}
