package http

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mrlokans/storefront/internal/audit"
	"github.com/mrlokans/storefront/internal/auth"
	"github.com/mrlokans/storefront/internal/cart"
	"github.com/mrlokans/storefront/internal/catalog"
	"github.com/mrlokans/storefront/internal/config"
	auditrepo "github.com/mrlokans/storefront/internal/database/audit"
	"github.com/mrlokans/storefront/internal/database/books"
	"github.com/mrlokans/storefront/internal/database/dbtest"
	"github.com/mrlokans/storefront/internal/database/devotionals"
	"github.com/mrlokans/storefront/internal/database/ownership"
	"github.com/mrlokans/storefront/internal/database/plans"
	"github.com/mrlokans/storefront/internal/database/profiles"
	"github.com/mrlokans/storefront/internal/database/reconciliation"
	"github.com/mrlokans/storefront/internal/database/settings"
	"github.com/mrlokans/storefront/internal/database/subscriptions"
	"github.com/mrlokans/storefront/internal/database/transactions"
	"github.com/mrlokans/storefront/internal/devotional"
	"github.com/mrlokans/storefront/internal/entities"
	"github.com/mrlokans/storefront/internal/ledger"
	"github.com/mrlokans/storefront/internal/payment"
	"github.com/mrlokans/storefront/internal/reconcile"
)

const (
	testPassword      = "correct horse battery"
	testCallbackKey   = "callback-test-secret"
	testDeclinedPhone = "+15550000000"
)

// apiFixture wires the whole API over a throwaway database. Callers
// authenticate with bearer tokens.
type apiFixture struct {
	db     *gorm.DB
	router *gin.Engine

	authService  *auth.Service
	gate         *auth.Gate
	profiles     *profiles.Repository
	books        *books.Repository
	transactions *transactions.Repository
	ownerships   *ownership.Repository
	plans        *plans.Repository
	issues       *reconciliation.Repository
	settings     *settings.Repository
	audit        *audit.Service
	ledger       *ledger.Service
	signer       *payment.CallbackSigner
	cartStore    *cart.MemoryStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()

	db := dbtest.Open(t)
	f := &apiFixture{
		db:           db,
		profiles:     profiles.NewRepository(db),
		books:        books.NewRepository(db),
		transactions: transactions.NewRepository(db),
		ownerships:   ownership.NewRepository(db),
		plans:        plans.NewRepository(db),
		issues:       reconciliation.NewRepository(db),
		settings:     settings.NewRepository(db),
		cartStore:    cart.NewMemoryStore(),
	}
	f.audit = audit.NewService(auditrepo.NewRepository(db), log)
	t.Cleanup(f.audit.Wait)

	signer, err := payment.NewCallbackSigner(testCallbackKey)
	require.NoError(t, err)
	f.signer = signer

	f.authService = auth.NewService(f.profiles, config.Auth{
		TokenExpiry:      time.Hour,
		BcryptCost:       bcrypt.MinCost,
		MaxLoginAttempts: 5,
		LockoutDuration:  time.Minute,
	}, log)

	f.ledger = ledger.NewService(ledger.Deps{
		Books:         f.books,
		Profiles:      f.profiles,
		Transactions:  f.transactions,
		Ownerships:    f.ownerships,
		Plans:         f.plans,
		Subscriptions: subscriptions.NewRepository(db),
		Issues:        f.issues,
		Gateway:       payment.NewSimulator(0, []string{testDeclinedPhone}, signer, log),
		Audit:         f.audit,
		Logger:        log,
	})
	catalogService := catalog.NewService(f.books, f.audit)
	carts := cart.NewService(f.cartStore, f.books, f.ledger, log)
	scanner := reconcile.NewScanner(f.transactions, f.issues, f.audit, log).WithGrace(0)
	daily := devotional.NewService(devotionals.NewRepository(db), devotional.NewOpenAICompatGenerator("", "", ""), log)

	f.gate, err = auth.NewGate(auth.GateConfig{
		Identities: auth.NewBearerResolver(f.authService),
		Roles:      f.profiles,
	}, log)
	require.NoError(t, err)

	f.router = NewRouter(RouterConfig{
		Logger:  log,
		Version: "test",
		Gate:    f.gate,
		Tokens:  f.authService,
		Health:  NewHealthController("test", f.gate),
		Auth:    auth.NewController(f.authService, nil, nil, nil, f.audit, log),
		Books:   NewBooksController(catalogService, log),
		Reader:  NewReaderController(f.ledger, f.books, log),
		Cart:    NewCartController(carts, log),
		Admin: NewAdminController(AdminDeps{
			Users:         f.profiles,
			Transactions:  f.transactions,
			Plans:         f.plans,
			Subscriptions: subscriptions.NewRepository(db),
			Settings:      f.settings,
			Issues:        f.issues,
			Ledger:        f.ledger,
			Scanner:       scanner,
			Audit:         f.audit,
		}, log),
		Payments:   NewPaymentsController(f.ledger, signer, f.audit, log),
		Devotional: NewDevotionalController(daily, log),
		Pages: NewPagesController(PagesDeps{
			Catalog:    catalogService,
			Ledger:     f.ledger,
			Carts:      carts,
			Settings:   f.settings,
			Devotional: daily,
			Issues:     f.issues,
			Users:      f.profiles,
			Gate:       f.gate,
		}, log),
	})
	return f
}

type testUser struct {
	profile *entities.Profile
	token   string
}

func (f *apiFixture) user(t *testing.T, email string, role entities.Role) testUser {
	return f.userWithPhone(t, email, role, "")
}

func (f *apiFixture) userWithPhone(t *testing.T, email string, role entities.Role, phone string) testUser {
	t.Helper()
	p, err := f.authService.CreateProfile(t.Context(), auth.SignupInput{
		Email:       email,
		Password:    testPassword,
		DisplayName: "Test User",
		Phone:       phone,
	}, role)
	require.NoError(t, err)
	token, err := f.authService.GenerateToken(t.Context(), p.ID)
	require.NoError(t, err)
	return testUser{profile: p, token: token}
}

// book creates a book owned by publisher, published unless draft is set.
func (f *apiFixture) book(t *testing.T, title string, price int64, publisher uint, draft bool) *entities.Book {
	t.Helper()
	b, err := entities.NewBook(title, "Author", price, false, &publisher)
	require.NoError(t, err)
	require.NoError(t, f.books.Create(t.Context(), b))
	if !draft {
		require.NoError(t, f.books.SetStatus(t.Context(), b.ID, entities.BookStatusPublished))
		b.Status = entities.BookStatusPublished
	}
	return b
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
}
