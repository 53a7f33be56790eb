package entrypoint

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/audit"
	"github.com/mrlokans/storefront/internal/auth"
	"github.com/mrlokans/storefront/internal/cart"
	"github.com/mrlokans/storefront/internal/catalog"
	"github.com/mrlokans/storefront/internal/config"
	"github.com/mrlokans/storefront/internal/database"
	auditrepo "github.com/mrlokans/storefront/internal/database/audit"
	"github.com/mrlokans/storefront/internal/database/books"
	"github.com/mrlokans/storefront/internal/database/devotionals"
	"github.com/mrlokans/storefront/internal/database/ownership"
	"github.com/mrlokans/storefront/internal/database/plans"
	"github.com/mrlokans/storefront/internal/database/profiles"
	"github.com/mrlokans/storefront/internal/database/reconciliation"
	"github.com/mrlokans/storefront/internal/database/settings"
	"github.com/mrlokans/storefront/internal/database/subscriptions"
	"github.com/mrlokans/storefront/internal/database/transactions"
	"github.com/mrlokans/storefront/internal/devotional"
	http_controllers "github.com/mrlokans/storefront/internal/http"
	"github.com/mrlokans/storefront/internal/ledger"
	"github.com/mrlokans/storefront/internal/payment"
	"github.com/mrlokans/storefront/internal/reconcile"
	"github.com/mrlokans/storefront/internal/scheduler"
	"github.com/mrlokans/storefront/internal/tasks"
)

// App holds every long-lived component of a running storefront.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	DB            *database.Database
	Profiles      *profiles.Repository
	Books         *books.Repository
	Transactions  *transactions.Repository
	Ownerships    *ownership.Repository
	Plans         *plans.Repository
	Subscriptions *subscriptions.Repository
	Issues        *reconciliation.Repository
	Settings      *settings.Repository

	Audit       *audit.Service
	Signer      *payment.CallbackSigner
	Ledger      *ledger.Service
	Catalog     *catalog.Service
	Carts       *cart.Service
	Scanner     *reconcile.Scanner
	Devotional  *devotional.Service
	AuthService *auth.Service
	Sessions    *auth.SessionManager
	Gate        *auth.Gate
	Throttle    *auth.LoginThrottle
	CSRFSecret  []byte

	redis     *cart.RedisStore
	tasks     *tasks.Client
	tasksStop context.CancelFunc
	scheduler *scheduler.Scheduler
}

// Build opens the database and wires every service. Nothing runs in the
// background until Start is called.
func Build(cfg *config.Config, log zerolog.Logger) (*App, error) {
	db, err := database.NewDatabase(cfg.Database.Path, log)
	if err != nil {
		return nil, err
	}
	gdb := db.DB

	a := &App{
		cfg:           cfg,
		log:           log,
		DB:            db,
		Profiles:      profiles.NewRepository(gdb),
		Books:         books.NewRepository(gdb),
		Transactions:  transactions.NewRepository(gdb),
		Ownerships:    ownership.NewRepository(gdb),
		Plans:         plans.NewRepository(gdb),
		Subscriptions: subscriptions.NewRepository(gdb),
		Issues:        reconciliation.NewRepository(gdb),
		Settings:      settings.NewRepository(gdb),
	}
	a.Audit = audit.NewService(auditrepo.NewRepository(gdb), log)

	if err := a.buildDomain(); err != nil {
		a.close()
		return nil, err
	}
	if err := a.buildAuth(); err != nil {
		a.close()
		return nil, err
	}
	if err := a.buildBackground(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) buildDomain() error {
	secret := a.cfg.Payment.CallbackSecret
	if secret == "" {
		generated, err := auth.GenerateSecret()
		if err != nil {
			return fmt.Errorf("failed to generate callback secret: %w", err)
		}
		secret = generated
		a.log.Warn().Msg("generated payment callback secret, set PAYMENT_CALLBACK_SECRET to persist")
	}
	signer, err := payment.NewCallbackSigner(secret)
	if err != nil {
		return err
	}
	a.Signer = signer

	a.Ledger = ledger.NewService(ledger.Deps{
		Books:         a.Books,
		Profiles:      a.Profiles,
		Transactions:  a.Transactions,
		Ownerships:    a.Ownerships,
		Plans:         a.Plans,
		Subscriptions: a.Subscriptions,
		Issues:        a.Issues,
		Gateway:       payment.NewSimulator(a.cfg.Payment.SimulatedDelay, a.cfg.Payment.DeclinedPhones, signer, a.log),
		Audit:         a.Audit,
		Logger:        a.log,
	})
	a.Catalog = catalog.NewService(a.Books, a.Audit)

	var store cart.Store = cart.NewMemoryStore()
	if a.cfg.Redis.URL != "" {
		rs, err := cart.NewRedisStore(a.cfg.Redis.URL, a.cfg.Cart.TTL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redis = rs
		store = rs
		a.log.Info().Msg("carts stored in redis")
	} else {
		a.log.Info().Msg("carts kept in memory, set REDIS_URL to persist them")
	}
	a.Carts = cart.NewService(store, a.Books, a.Ledger, a.log)

	a.Scanner = reconcile.NewScanner(a.Transactions, a.Issues, a.Audit, a.log)
	a.Devotional = devotional.NewService(
		devotionals.NewRepository(a.DB.DB),
		devotional.NewOpenAICompatGenerator(a.cfg.Devotional.BaseURL, a.cfg.Devotional.APIKey, a.cfg.Devotional.Model),
		a.log,
	)
	return nil
}

func (a *App) buildAuth() error {
	a.AuthService = auth.NewService(a.Profiles, a.cfg.Auth, a.log)

	sqlDB, err := a.DB.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB for sessions: %w", err)
	}
	a.Sessions, err = auth.NewSessionManager(sqlDB, a.cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize session manager: %w", err)
	}

	a.Gate, err = auth.NewGate(auth.GateConfig{
		Policy:              auth.DefaultPolicy(),
		Identities:          auth.NewChainResolver(a.Sessions, auth.NewBearerResolver(a.AuthService)),
		Roles:               a.Profiles,
		Refresher:           a.Sessions,
		OnRoleLookupFailure: a.cfg.Auth.RoleLookupFailure,
	}, a.log)
	if err != nil {
		return err
	}

	a.Throttle = auth.NewLoginThrottle(auth.ThrottleConfig{
		MaxAttempts:     a.cfg.Auth.MaxLoginAttempts,
		WindowDuration:  a.cfg.Auth.RateLimitWindow,
		LockoutDuration: a.cfg.Auth.LockoutDuration,
	})

	if !a.cfg.Auth.CSRFEnabled {
		a.log.Warn().Msg("CSRF protection disabled")
		return nil
	}
	secret := a.cfg.Auth.SessionSecret
	if secret == "" {
		secret, err = auth.GenerateSecret()
		if err != nil {
			return fmt.Errorf("failed to generate CSRF secret: %w", err)
		}
		a.log.Warn().Msg("generated session secret, set AUTH_SESSION_SECRET to persist")
	}
	a.CSRFSecret, err = hex.DecodeString(secret)
	if err != nil {
		// Not hex, use as raw bytes
		a.CSRFSecret = []byte(secret)
	}
	return nil
}

func (a *App) buildBackground() error {
	if !a.cfg.Tasks.Enabled {
		a.log.Info().Msg("task queue disabled, scheduled jobs will not run")
		return nil
	}

	client, err := tasks.NewClient(a.cfg.Database.Path, tasks.FromConfig(a.cfg.Tasks), a.log)
	if err != nil {
		return fmt.Errorf("failed to initialize task queue: %w", err)
	}
	a.tasks = client
	client.Register(
		tasks.NewReconcileScanQueue(a.Scanner, a.log),
		tasks.NewCleanupAuditEventsQueue(a.Audit, a.log),
		tasks.NewGenerateDevotionalQueue(a.Devotional, a.log),
	)

	a.scheduler = scheduler.New(client, a.log)
	jobs := []scheduler.Job{
		{Name: "audit-cleanup", Schedule: a.cfg.Audit.Schedule, Task: tasks.CleanupAuditEventsTask{RetentionDays: a.cfg.Audit.RetentionDays}},
		{Name: "devotional", Schedule: a.cfg.Devotional.Schedule, Task: tasks.GenerateDevotionalTask{}},
	}
	if a.cfg.Reconcile.Enabled {
		jobs = append(jobs, scheduler.Job{Name: "reconcile-scan", Schedule: a.cfg.Reconcile.Schedule, Task: tasks.ReconcileScanTask{Trigger: "schedule"}})
	}
	for _, job := range jobs {
		if err := a.scheduler.Add(job); err != nil {
			return err
		}
	}
	return nil
}

// Start launches the task workers and the scheduler.
func (a *App) Start() {
	if a.tasks == nil {
		return
	}
	var ctx context.Context
	ctx, a.tasksStop = context.WithCancel(context.Background())
	go a.tasks.Start(ctx)
	a.scheduler.Start(ctx)
}

// RouterConfig builds the HTTP wiring for this app.
func (a *App) RouterConfig(version string) http_controllers.RouterConfig {
	health := http_controllers.NewHealthController(version, a.Gate).
		Require("database", http_controllers.PingFunc(func(context.Context) error { return a.DB.Ping() }))
	if a.redis != nil {
		health.Observe("redis", a.redis)
	}
	if a.tasks != nil {
		health.Observe("tasks", a.tasks)
	}

	var scans http_controllers.TaskEnqueuer
	if a.tasks != nil {
		scans = a.tasks
	}

	return http_controllers.RouterConfig{
		Logger:        a.log,
		Version:       version,
		Sessions:      a.Sessions,
		Gate:          a.Gate,
		CSRFSecret:    a.CSRFSecret,
		SecureCookies: a.cfg.Auth.SecureCookies,
		Tokens:        a.AuthService,
		Health:        health,
		Auth:          auth.NewController(a.AuthService, a.Sessions, a.Throttle, auth.DefaultPolicy(), a.Audit, a.log),
		Books:         http_controllers.NewBooksController(a.Catalog, a.log),
		Reader:        http_controllers.NewReaderController(a.Ledger, a.Books, a.log),
		Cart:          http_controllers.NewCartController(a.Carts, a.log),
		Admin: http_controllers.NewAdminController(http_controllers.AdminDeps{
			Users:         a.Profiles,
			Transactions:  a.Transactions,
			Plans:         a.Plans,
			Subscriptions: a.Subscriptions,
			Settings:      a.Settings,
			Issues:        a.Issues,
			Ledger:        a.Ledger,
			Scanner:       a.Scanner,
			Tasks:         scans,
			Audit:         a.Audit,
		}, a.log),
		Payments:   http_controllers.NewPaymentsController(a.Ledger, a.Signer, a.Audit, a.log),
		Devotional: http_controllers.NewDevotionalController(a.Devotional, a.log),
		Pages: http_controllers.NewPagesController(http_controllers.PagesDeps{
			Catalog:    a.Catalog,
			Ledger:     a.Ledger,
			Carts:      a.Carts,
			Settings:   a.Settings,
			Devotional: a.Devotional,
			Issues:     a.Issues,
			Users:      a.Profiles,
			Gate:       a.Gate,
		}, a.log),
	}
}

// Shutdown stops background work and releases connections. It is safe to
// call on a partially built App.
func (a *App) Shutdown(ctx context.Context) {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.tasks != nil {
		if !a.tasks.Stop(ctx) {
			a.log.Warn().Msg("task workers did not stop before the deadline")
		}
		if a.tasksStop != nil {
			a.tasksStop()
		}
	}
	done := make(chan struct{})
	go func() {
		a.Audit.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn().Msg("audit writes still pending at shutdown")
	}

	a.close()
}

func (a *App) close() {
	if a.Throttle != nil {
		a.Throttle.Stop()
	}
	if a.tasks != nil {
		if err := a.tasks.Close(); err != nil {
			a.log.Error().Err(err).Msg("error closing task client")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error().Err(err).Msg("error closing redis")
		}
	}
	if err := a.DB.Close(); err != nil {
		a.log.Error().Err(err).Msg("error closing database")
	}
}
