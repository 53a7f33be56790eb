package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/auth"
	"github.com/mrlokans/storefront/internal/cart"
	"github.com/mrlokans/storefront/internal/catalog"
	"github.com/mrlokans/storefront/internal/entities"
	"github.com/mrlokans/storefront/internal/ledger"
)

// IssueCounter reports how many reconciliation issues are open.
type IssueCounter interface {
	CountOpen(ctx context.Context) (int64, error)
}

// PagesDeps groups what the page models read from.
type PagesDeps struct {
	Catalog    *catalog.Service
	Ledger     *ledger.Service
	Carts      *cart.Service
	Settings   SettingsStore
	Devotional DevotionalSource // optional
	Issues     IssueCounter
	Users      UserStore
	Gate       *auth.Gate
}

// PagesController serves the data behind each top-level page as JSON.
// Access to these paths is decided by the gate before any handler runs.
type PagesController struct {
	PagesDeps
	log zerolog.Logger
}

func NewPagesController(deps PagesDeps, log zerolog.Logger) *PagesController {
	return &PagesController{
		PagesDeps: deps,
		log:       log.With().Str("component", "pages_controller").Logger(),
	}
}

const homeShelfSize = 12

type viewer struct {
	Authenticated bool          `json:"authenticated"`
	UserID        uint          `json:"user_id,omitempty"`
	Role          entities.Role `json:"role,omitempty"`
	Home          string        `json:"home,omitempty"`
}

func viewerOf(c *gin.Context) viewer {
	id := auth.GetIdentity(c)
	if !id.Authenticated() {
		return viewer{}
	}
	return viewer{Authenticated: true, UserID: id.UserID, Role: id.Role, Home: id.Role.Home()}
}

func (pc *PagesController) setting(ctx context.Context, key, fallback string) string {
	if pc.Settings == nil {
		return fallback
	}
	s, err := pc.Settings.GetSetting(ctx, key)
	if err != nil || s.Value == "" {
		return fallback
	}
	return s.Value
}

// GET /
func (pc *PagesController) Home(c *gin.Context) {
	ctx := c.Request.Context()
	books, total, err := pc.Catalog.Browse(ctx, c.Query("q"), homeShelfSize, 0)
	if err != nil {
		respondInternalError(c, pc.log, err, "home page")
		return
	}

	page := gin.H{
		"page":       "home",
		"viewer":     viewerOf(c),
		"store_name": pc.setting(ctx, entities.SettingKeyStoreName, "Storefront"),
		"notice":     pc.setting(ctx, entities.SettingKeyMaintenanceNote, ""),
		"books":      books,
		"total":      total,
	}
	if pc.Devotional != nil {
		// Devotional is decoration; the page renders without it.
		if d, err := pc.Devotional.Today(ctx); err == nil {
			page["devotional"] = d
		} else {
			pc.log.Warn().Err(err).Msg("devotional unavailable for home page")
		}
	}
	c.JSON(http.StatusOK, page)
}

// authPage serves the anonymous-only forms. The gate sends signed-in
// users to their home before this runs.
func (pc *PagesController) authPage(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"page":       name,
			"next":       c.Query("next"),
			"csrf_token": auth.GetCSRFToken(c),
			"support":    pc.setting(c.Request.Context(), entities.SettingKeySupportContact, ""),
		})
	}
}

// GET /login
func (pc *PagesController) Login(c *gin.Context) { pc.authPage("login")(c) }

// GET /signup
func (pc *PagesController) Signup(c *gin.Context) { pc.authPage("signup")(c) }

// GET /reset-password
func (pc *PagesController) ResetPassword(c *gin.Context) { pc.authPage("reset-password")(c) }

// GET /my-books
func (pc *PagesController) MyBooks(c *gin.Context) {
	ctx := c.Request.Context()
	userID := auth.GetUserID(c)

	library, err := pc.Ledger.Library(ctx, userID)
	if err != nil {
		respondServiceError(c, pc.log, err, "my books page")
		return
	}
	if library == nil {
		library = []entities.Ownership{}
	}
	sub, err := pc.Ledger.ActiveSubscription(ctx, userID)
	if err != nil {
		respondServiceError(c, pc.log, err, "my books page")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"page":         "my-books",
		"viewer":       viewerOf(c),
		"library":      library,
		"subscription": sub,
	})
}

type cartLine struct {
	BookID    uint   `json:"book_id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Price     int64  `json:"price"`
	Available bool   `json:"available"`
}

// GET /cart
func (pc *PagesController) Cart(c *gin.Context) {
	ctx := c.Request.Context()
	a := actor(c)

	got, err := pc.Carts.Get(ctx, a.UserID)
	if err != nil {
		respondServiceError(c, pc.log, err, "cart page")
		return
	}
	lines := make([]cartLine, 0, got.Len())
	var total int64
	for _, id := range got.IDs() {
		line := cartLine{BookID: id}
		if book, err := pc.Catalog.Get(ctx, a, id); err == nil && book.IsPublished() {
			line.Title = book.Title
			line.Author = book.Author
			line.Price = book.Price
			line.Available = true
			total += book.Price
		}
		lines = append(lines, line)
	}
	c.JSON(http.StatusOK, gin.H{
		"page":       "cart",
		"viewer":     viewerOf(c),
		"items":      lines,
		"total":      total,
		"csrf_token": auth.GetCSRFToken(c),
	})
}

// GET /publisher
func (pc *PagesController) Publisher(c *gin.Context) {
	books, err := pc.Catalog.ListOwn(c.Request.Context(), actor(c))
	if err != nil {
		respondInternalError(c, pc.log, err, "publisher page")
		return
	}
	if books == nil {
		books = []entities.Book{}
	}
	var published int
	for i := range books {
		if books[i].IsPublished() {
			published++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"page":       "publisher",
		"viewer":     viewerOf(c),
		"books":      books,
		"published":  published,
		"drafts":     len(books) - published,
		"csrf_token": auth.GetCSRFToken(c),
	})
}

// GET /admin
func (pc *PagesController) Admin(c *gin.Context) {
	ctx := c.Request.Context()
	openIssues, err := pc.Issues.CountOpen(ctx)
	if err != nil {
		respondInternalError(c, pc.log, err, "admin page")
		return
	}
	_, users, err := pc.Users.List(ctx, 1, 0)
	if err != nil {
		respondInternalError(c, pc.log, err, "admin page")
		return
	}
	page := gin.H{
		"page":        "admin",
		"viewer":      viewerOf(c),
		"open_issues": openIssues,
		"users":       users,
		"csrf_token":  auth.GetCSRFToken(c),
	}
	if pc.Gate != nil {
		page["gate"] = pc.Gate.Stats()
	}
	c.JSON(http.StatusOK, page)
}
