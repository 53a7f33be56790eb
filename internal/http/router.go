package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/storefront/internal/auth"
)

// CallbackPath receives signed payment provider notifications. It carries
// no session, so CSRF does not apply.
const CallbackPath = "/api/payments/callback"

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(cfg.Logger))
	router.Use(auth.SecurityHeadersMiddleware())

	// Probes are registered before the session and gate middleware so they
	// never touch the session store.
	if cfg.Health != nil {
		router.GET("/health", cfg.Health.Status)
		router.GET("/ping", cfg.Health.Ping)
	}

	if cfg.Sessions != nil {
		router.Use(cfg.Sessions.SessionLoadSave())
	}
	router.Use(cfg.Gate.Handler())
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies, cfg.Tokens, CallbackPath))
	}

	// Pages
	if p := cfg.Pages; p != nil {
		router.GET("/", p.Home)
		router.GET("/login", p.Login)
		router.GET("/signup", p.Signup)
		router.GET("/reset-password", p.ResetPassword)
		router.GET("/my-books", p.MyBooks)
		router.GET("/cart", p.Cart)
		router.GET("/publisher", p.Publisher)
		router.GET("/admin", p.Admin)
	}

	// Session endpoints share the public-only paths with the pages.
	if cfg.Auth != nil {
		cfg.Auth.RegisterRoutes(router)
	}

	// Public API
	if cfg.Books != nil {
		router.GET("/api/books", cfg.Books.Browse)
		router.GET("/api/books/:id", cfg.Books.Get)
	}
	if cfg.Payments != nil {
		router.POST(CallbackPath, cfg.Payments.Callback)
	}
	if cfg.Devotional != nil {
		router.GET("/api/devotional/today", cfg.Devotional.Today)
	}

	// Signed-in reader
	me := router.Group("/api/me")
	if cfg.Auth != nil {
		cfg.Auth.RegisterAccountRoutes(me)
	}
	if r := cfg.Reader; r != nil {
		me.POST("/purchases", r.Purchase)
		me.GET("/library", r.Library)
		me.GET("/books/:id/read", r.Read)
		me.POST("/subscriptions", r.Subscribe)
		me.GET("/subscription", r.Subscription)
	}
	if ct := cfg.Cart; ct != nil {
		me.GET("/cart", ct.Get)
		me.POST("/cart", ct.Add)
		me.DELETE("/cart", ct.Remove)
		me.POST("/cart/checkout", ct.Checkout)
	}

	// Publisher
	if b := cfg.Books; b != nil {
		pub := router.Group("/api/publisher")
		pub.GET("/books", b.ListOwn)
		pub.POST("/books", b.Create)
		pub.PUT("/books/:id", b.Update)
		pub.POST("/books/:id/publish", b.Publish)
		pub.POST("/books/:id/unpublish", b.Unpublish)
	}

	// Admin
	if a := cfg.Admin; a != nil {
		admin := router.Group("/api/admin")
		admin.GET("/users", a.ListUsers)
		admin.PUT("/users/:id/role", a.UpdateRole)
		admin.GET("/transactions", a.ListTransactions)
		admin.GET("/plans", a.ListPlans)
		admin.POST("/plans", a.CreatePlan)
		admin.PUT("/plans/:id", a.UpdatePlan)
		admin.GET("/subscriptions", a.ListSubscriptions)
		admin.GET("/settings", a.ListSettings)
		admin.GET("/settings/:key", a.GetSetting)
		admin.PUT("/settings/:key", a.PutSetting)
		admin.GET("/reconciliation", a.ListIssues)
		admin.POST("/reconciliation/scan", a.Scan)
		admin.POST("/reconciliation/:id/repair", a.RepairIssue)
		admin.GET("/audit", a.ListAudit)
	}

	return router
}
