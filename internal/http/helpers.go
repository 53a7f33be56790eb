package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/auth"
	"github.com/mrlokans/storefront/internal/cart"
	"github.com/mrlokans/storefront/internal/catalog"
	"github.com/mrlokans/storefront/internal/database"
	"github.com/mrlokans/storefront/internal/entities"
	"github.com/mrlokans/storefront/internal/ledger"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`      // machine-readable error code
	Retryable bool   `json:"retryable,omitempty"` // safe to repeat the same request
	Details   any    `json:"details,omitempty"`
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// PaginatedResponse wraps paginated data with metadata.
type PaginatedResponse struct {
	Data       any   `json:"data"`
	Total      int64 `json:"total"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	HasMore    bool  `json:"has_more"`
	TotalPages int   `json:"total_pages,omitempty"`
}

func newPaginated(data any, total int64, p page) PaginatedResponse {
	totalPages := int((total + int64(p.limit) - 1) / int64(p.limit))
	return PaginatedResponse{
		Data:       data,
		Total:      total,
		Limit:      p.limit,
		Offset:     p.offset,
		HasMore:    int64(p.offset+p.limit) < total,
		TotalPages: totalPages,
	}
}

// --- Error Response Helpers ---

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Code: "invalid_request"})
}

func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found", Code: "not_found"})
}

// respondInternalError logs err and answers 500 without exposing it.
func respondInternalError(c *gin.Context, log zerolog.Logger, err error, context string) {
	log.Error().Err(err).Str("context", context).Str("path", c.Request.URL.Path).Msg("internal error")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "internal", Retryable: true})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Error: message, Code: code})
}

// retryable is implemented by ledger errors that know whether the caller
// may repeat the request.
type retryable interface {
	Retryable() bool
}

// respondServiceError maps domain errors onto HTTP statuses. Anything it
// does not recognise is logged and answered as a 500.
func respondServiceError(c *gin.Context, log zerolog.Logger, err error, context string) {
	var grantErr *ledger.EntitlementGrantError
	var recordErr *ledger.PaymentRecordError

	switch {
	case errors.Is(err, ledger.ErrUnauthenticated):
		respondError(c, http.StatusUnauthorized, "unauthenticated", "sign in required")
	case errors.Is(err, ledger.ErrBookNotFound), errors.Is(err, catalog.ErrNotFound):
		respondNotFound(c, "book")
	case errors.Is(err, ledger.ErrBookNotPurchasable), errors.Is(err, cart.ErrBookUnavailable):
		respondError(c, http.StatusConflict, "not_purchasable", err.Error())
	case errors.Is(err, ledger.ErrTransactionNotFound):
		respondNotFound(c, "transaction")
	case errors.Is(err, ledger.ErrTransactionTerminal):
		respondError(c, http.StatusConflict, "transaction_settled", err.Error())
	case errors.Is(err, ledger.ErrPlanNotFound):
		respondNotFound(c, "plan")
	case errors.Is(err, ledger.ErrPlanInactive):
		respondError(c, http.StatusConflict, "plan_inactive", err.Error())
	case errors.Is(err, ledger.ErrIssueNotFound):
		respondNotFound(c, "issue")
	case errors.Is(err, ledger.ErrIssueNotRepairable):
		respondError(c, http.StatusConflict, "not_repairable", err.Error())
	case errors.Is(err, catalog.ErrForbidden):
		respondError(c, http.StatusForbidden, "forbidden", err.Error())
	case database.IsNotFound(err):
		respondNotFound(c, "record")
	case database.IsUniqueViolation(err):
		respondError(c, http.StatusConflict, "conflict", "already exists")
	case errors.Is(err, cart.ErrInvalidItem):
		respondBadRequest(c, err.Error())
	case errors.Is(err, entities.ErrInvalidEntity):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Code: "invalid_request", Details: err.Error()})
	case errors.As(err, &grantErr):
		// Payment was taken; the entitlement is flagged for reconciliation.
		log.Error().Err(err).Str("context", context).Msg("entitlement grant failed")
		c.JSON(http.StatusAccepted, ErrorResponse{
			Error:     "payment received, access is being set up",
			Code:      "grant_pending",
			Retryable: grantErr.Retryable(),
		})
	case errors.As(err, &recordErr):
		log.Error().Err(err).Str("context", context).Msg("payment record failed")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:     "could not record payment, nothing was charged",
			Code:      "payment_record_failed",
			Retryable: recordErr.Retryable(),
		})
	default:
		var r retryable
		if errors.As(err, &r) && !r.Retryable() {
			log.Error().Err(err).Str("context", context).Msg("request failed")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "internal"})
			return
		}
		respondInternalError(c, log, err, context)
	}
}

// --- Success Response Helpers ---

func respondSuccess(c *gin.Context, message string) {
	c.JSON(http.StatusOK, SuccessResponse{Message: message})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

func respondAccepted(c *gin.Context, message string, data any) {
	c.JSON(http.StatusAccepted, SuccessResponse{Message: message, Data: data})
}

// --- Parameter Parsing ---

// parseIDParam extracts and validates an unsigned integer ID from URL parameters.
// Returns the parsed ID or responds with a 400 error and returns 0, false.
func parseIDParam(c *gin.Context, paramName string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(paramName), 10, 32)
	if err != nil || id == 0 {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return uint(id), true
}

type page struct {
	limit  int
	offset int
}

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// parsePage reads limit/offset query parameters, clamping bad values.
func parsePage(c *gin.Context) page {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return page{limit: limit, offset: offset}
}

// actor returns the identity the gate attached to the request.
func actor(c *gin.Context) catalog.Actor {
	id := auth.GetIdentity(c)
	return catalog.Actor{UserID: id.UserID, Role: id.Role}
}
