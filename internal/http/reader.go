package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/auth"
	"github.com/mrlokans/storefront/internal/entities"
	"github.com/mrlokans/storefront/internal/ledger"
)

// BookLoader fetches a book regardless of publication status; owners keep
// access to books that were later unpublished.
type BookLoader interface {
	GetByID(ctx context.Context, id uint) (*entities.Book, error)
}

// ReaderController serves the signed-in reader's purchases, library and
// subscription endpoints under /api/me.
type ReaderController struct {
	ledger *ledger.Service
	books  BookLoader
	log    zerolog.Logger
}

func NewReaderController(ledger *ledger.Service, books BookLoader, log zerolog.Logger) *ReaderController {
	return &ReaderController{
		ledger: ledger,
		books:  books,
		log:    log.With().Str("component", "reader_controller").Logger(),
	}
}

type purchaseRequest struct {
	BookID uint `json:"book_id" binding:"required"`
}

type subscribeRequest struct {
	PlanID uint `json:"plan_id" binding:"required"`
}

// Purchase buys one book through the payment gateway.
// POST /api/me/purchases
func (rc *ReaderController) Purchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "book_id is required")
		return
	}
	res, err := rc.ledger.Purchase(c.Request.Context(), auth.GetUserID(c), req.BookID)
	if err != nil {
		respondServiceError(c, rc.log, err, "purchase")
		return
	}
	c.JSON(purchaseStatus(res.Outcome), res)
}

// Subscribe pays for one period of a plan.
// POST /api/me/subscriptions
func (rc *ReaderController) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "plan_id is required")
		return
	}
	res, err := rc.ledger.Subscribe(c.Request.Context(), auth.GetUserID(c), req.PlanID)
	if err != nil {
		respondServiceError(c, rc.log, err, "subscribe")
		return
	}
	c.JSON(purchaseStatus(res.Outcome), res)
}

// Subscription returns the active subscription, or null.
// GET /api/me/subscription
func (rc *ReaderController) Subscription(c *gin.Context) {
	sub, err := rc.ledger.ActiveSubscription(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondServiceError(c, rc.log, err, "active subscription")
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": sub != nil, "subscription": sub})
}

// Library lists owned books.
// GET /api/me/library
func (rc *ReaderController) Library(c *gin.Context) {
	rows, err := rc.ledger.Library(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondServiceError(c, rc.log, err, "library")
		return
	}
	if rows == nil {
		rows = []entities.Ownership{}
	}
	c.JSON(http.StatusOK, rows)
}

// Read opens a book the caller is entitled to.
// GET /api/me/books/:id/read
func (rc *ReaderController) Read(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	allowed, err := rc.ledger.CanRead(ctx, auth.GetUserID(c), id)
	if err != nil {
		respondServiceError(c, rc.log, err, "entitlement check")
		return
	}
	if !allowed {
		respondError(c, http.StatusForbidden, "not_entitled", "purchase this book or subscribe to read it")
		return
	}
	book, err := rc.books.GetByID(ctx, id)
	if err != nil {
		respondServiceError(c, rc.log, err, "load book")
		return
	}
	c.JSON(http.StatusOK, gin.H{"book": book, "can_read": true})
}

func purchaseStatus(o ledger.Outcome) int {
	switch o {
	case ledger.OutcomePurchased, ledger.OutcomeSubscribed:
		return http.StatusCreated
	case ledger.OutcomeGrantPending, ledger.OutcomePending:
		return http.StatusAccepted
	case ledger.OutcomeFailed:
		return http.StatusPaymentRequired
	default:
		return http.StatusOK
	}
}
