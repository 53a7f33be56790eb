package http

import (
	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/auth"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	Logger  zerolog.Logger
	Version string

	// Middleware. Sessions may be nil for bearer-only deployments; Gate is
	// required.
	Sessions *auth.SessionManager
	Gate     *auth.Gate
	// CSRF protection is skipped when CSRFSecret is empty.
	CSRFSecret    []byte
	SecureCookies bool
	Tokens        auth.TokenValidator

	// Controllers
	Health     *HealthController
	Auth       *auth.Controller
	Books      *BooksController
	Reader     *ReaderController
	Cart       *CartController
	Admin      *AdminController
	Payments   *PaymentsController
	Devotional *DevotionalController // optional
	Pages      *PagesController
}
