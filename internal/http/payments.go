package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/audit"
	"github.com/mrlokans/storefront/internal/ledger"
	"github.com/mrlokans/storefront/internal/payment"
)

// CallbackVerifier authenticates provider callbacks; *payment.CallbackSigner
// implements it.
type CallbackVerifier interface {
	Verify(token string) (payment.Callback, error)
}

// PaymentsController receives asynchronous payment provider notifications.
type PaymentsController struct {
	ledger   *ledger.Service
	verifier CallbackVerifier
	audit    *audit.Service
	log      zerolog.Logger
}

func NewPaymentsController(ledger *ledger.Service, verifier CallbackVerifier, audit *audit.Service, log zerolog.Logger) *PaymentsController {
	return &PaymentsController{
		ledger:   ledger,
		verifier: verifier,
		audit:    audit,
		log:      log.With().Str("component", "payments_controller").Logger(),
	}
}

type callbackRequest struct {
	Token string `json:"token" binding:"required"`
}

// Callback settles a transaction from a signed provider notification.
// Repeated deliveries are safe: confirmation only moves pending rows.
// POST /api/payments/callback
func (pc *PaymentsController) Callback(c *gin.Context) {
	if pc.verifier == nil {
		respondError(c, http.StatusServiceUnavailable, "callbacks_disabled", "payment callbacks are not configured")
		return
	}
	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "token is required")
		return
	}

	cb, err := pc.verifier.Verify(req.Token)
	if err != nil {
		pc.log.Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("rejected payment callback")
		pc.audit.LogReconcile(0, "callback_rejected", "invalid payment callback from "+c.ClientIP(), err)
		respondError(c, http.StatusUnauthorized, "invalid_callback", "callback signature is invalid")
		return
	}

	ctx := c.Request.Context()
	var res *ledger.PurchaseResult
	switch cb.Status {
	case payment.CallbackSucceeded:
		res, err = pc.ledger.ConfirmByReference(ctx, cb.Reference)
	default:
		res, err = pc.ledger.FailByReference(ctx, cb.Reference, ledger.ReasonDeclined)
	}
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionTerminal) {
			// Success for a failed transaction is flagged as a late capture by the ledger.
			pc.log.Error().Str("reference", cb.Reference).Str("status", string(cb.Status)).Msg("callback conflicts with settled transaction")
		}
		respondServiceError(c, pc.log, err, "payment callback")
		return
	}

	pc.log.Info().
		Str("reference", cb.Reference).
		Str("status", string(cb.Status)).
		Str("outcome", string(res.Outcome)).
		Msg("payment callback processed")
	c.JSON(http.StatusOK, res)
}
