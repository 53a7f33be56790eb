package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/entities"
)

// DevotionalSource returns the message of the day.
type DevotionalSource interface {
	Today(ctx context.Context) (*entities.Devotional, error)
}

type DevotionalController struct {
	source DevotionalSource
	log    zerolog.Logger
}

func NewDevotionalController(source DevotionalSource, log zerolog.Logger) *DevotionalController {
	return &DevotionalController{
		source: source,
		log:    log.With().Str("component", "devotional_controller").Logger(),
	}
}

// GET /api/devotional/today
func (dc *DevotionalController) Today(c *gin.Context) {
	d, err := dc.source.Today(c.Request.Context())
	if err != nil {
		respondInternalError(c, dc.log, err, "devotional")
		return
	}
	c.JSON(http.StatusOK, d)
}
