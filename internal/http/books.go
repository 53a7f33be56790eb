package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/catalog"
)

// BooksController serves public browsing and the publisher's book
// management endpoints.
type BooksController struct {
	catalog *catalog.Service
	log     zerolog.Logger
}

func NewBooksController(catalog *catalog.Service, log zerolog.Logger) *BooksController {
	return &BooksController{
		catalog: catalog,
		log:     log.With().Str("component", "books_controller").Logger(),
	}
}

// Browse lists published books, optionally filtered by title or author.
// GET /api/books?q=
func (bc *BooksController) Browse(c *gin.Context) {
	p := parsePage(c)
	books, total, err := bc.catalog.Browse(c.Request.Context(), c.Query("q"), p.limit, p.offset)
	if err != nil {
		respondInternalError(c, bc.log, err, "browse books")
		return
	}
	c.JSON(http.StatusOK, newPaginated(books, total, p))
}

// Get returns one book. Drafts are visible only to their publisher and admins.
// GET /api/books/:id
func (bc *BooksController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	book, err := bc.catalog.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		respondServiceError(c, bc.log, err, "get book")
		return
	}
	c.JSON(http.StatusOK, book)
}

// ListOwn lists the caller's books; admins see all of them.
// GET /api/publisher/books
func (bc *BooksController) ListOwn(c *gin.Context) {
	books, err := bc.catalog.ListOwn(c.Request.Context(), actor(c))
	if err != nil {
		respondInternalError(c, bc.log, err, "list publisher books")
		return
	}
	c.JSON(http.StatusOK, books)
}

// Create adds a draft.
// POST /api/publisher/books
func (bc *BooksController) Create(c *gin.Context) {
	var in catalog.BookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid book payload")
		return
	}
	book, err := bc.catalog.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		respondServiceError(c, bc.log, err, "create book")
		return
	}
	respondCreated(c, book)
}

// Update replaces editable fields.
// PUT /api/publisher/books/:id
func (bc *BooksController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var in catalog.BookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid book payload")
		return
	}
	book, err := bc.catalog.Update(c.Request.Context(), actor(c), id, in)
	if err != nil {
		respondServiceError(c, bc.log, err, "update book")
		return
	}
	c.JSON(http.StatusOK, book)
}

// POST /api/publisher/books/:id/publish
func (bc *BooksController) Publish(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	book, err := bc.catalog.Publish(c.Request.Context(), actor(c), id)
	if err != nil {
		respondServiceError(c, bc.log, err, "publish book")
		return
	}
	c.JSON(http.StatusOK, book)
}

// POST /api/publisher/books/:id/unpublish
func (bc *BooksController) Unpublish(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	book, err := bc.catalog.Unpublish(c.Request.Context(), actor(c), id)
	if err != nil {
		respondServiceError(c, bc.log, err, "unpublish book")
		return
	}
	c.JSON(http.StatusOK, book)
}
