package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/auth"
	"github.com/mrlokans/storefront/internal/cart"
	"github.com/mrlokans/storefront/internal/ledger"
)

type CartController struct {
	carts *cart.Service
	log   zerolog.Logger
}

func NewCartController(carts *cart.Service, log zerolog.Logger) *CartController {
	return &CartController{
		carts: carts,
		log:   log.With().Str("component", "cart_controller").Logger(),
	}
}

type cartResponse struct {
	Items []cart.Item `json:"items"`
	Count int         `json:"count"`
}

type checkoutResponse struct {
	*ledger.CheckoutResult
	Cart cartResponse `json:"cart"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	if c == nil || c.Items == nil {
		return cartResponse{Items: []cart.Item{}}
	}
	return cartResponse{Items: c.Items, Count: c.Len()}
}

// GET /api/me/cart
func (cc *CartController) Get(c *gin.Context) {
	got, err := cc.carts.Get(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondServiceError(c, cc.log, err, "load cart")
		return
	}
	c.JSON(http.StatusOK, toCartResponse(got))
}

// Add puts a book in the cart. Adding twice is a no-op.
// POST /api/me/cart
func (cc *CartController) Add(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "book_id is required")
		return
	}
	got, err := cc.carts.Add(c.Request.Context(), auth.GetUserID(c), req.BookID)
	if err != nil {
		respondServiceError(c, cc.log, err, "add to cart")
		return
	}
	c.JSON(http.StatusOK, toCartResponse(got))
}

// Remove drops one book when book_id is given, otherwise empties the cart.
// DELETE /api/me/cart?book_id=
func (cc *CartController) Remove(c *gin.Context) {
	userID := auth.GetUserID(c)
	raw := c.Query("book_id")
	if raw == "" {
		if err := cc.carts.Clear(c.Request.Context(), userID); err != nil {
			respondServiceError(c, cc.log, err, "clear cart")
			return
		}
		c.JSON(http.StatusOK, toCartResponse(nil))
		return
	}

	bookID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		respondBadRequest(c, "invalid book_id")
		return
	}
	got, err := cc.carts.Remove(c.Request.Context(), userID, uint(bookID))
	if err != nil {
		respondServiceError(c, cc.log, err, "remove from cart")
		return
	}
	c.JSON(http.StatusOK, toCartResponse(got))
}

// Checkout buys every book in the cart. Items are purchased one by one;
// failures stay in the cart for a retry.
// POST /api/me/cart/checkout
func (cc *CartController) Checkout(c *gin.Context) {
	result, remaining, err := cc.carts.Checkout(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondServiceError(c, cc.log, err, "checkout")
		return
	}

	status := http.StatusOK
	if result.Status == ledger.CheckoutFailed {
		status = http.StatusPaymentRequired
	}
	c.JSON(status, checkoutResponse{CheckoutResult: result, Cart: toCartResponse(remaining)})
}
