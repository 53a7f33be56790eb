package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/audit"
	"github.com/mrlokans/storefront/internal/auth"
	auditrepo "github.com/mrlokans/storefront/internal/database/audit"
	"github.com/mrlokans/storefront/internal/entities"
	"github.com/mrlokans/storefront/internal/ledger"
	"github.com/mrlokans/storefront/internal/reconcile"
	"github.com/mrlokans/storefront/internal/tasks"
)

type UserStore interface {
	List(ctx context.Context, limit, offset int) ([]entities.Profile, int64, error)
	GetByID(ctx context.Context, id uint) (*entities.Profile, error)
	UpdateRole(ctx context.Context, id uint, role entities.Role) error
}

type TransactionLister interface {
	List(ctx context.Context, status entities.TransactionStatus, limit, offset int) ([]entities.Transaction, int64, error)
}

type PlanStore interface {
	Create(ctx context.Context, plan *entities.SubscriptionPlan) error
	GetByID(ctx context.Context, id uint) (*entities.SubscriptionPlan, error)
	Save(ctx context.Context, plan *entities.SubscriptionPlan) error
	List(ctx context.Context, activeOnly bool) ([]entities.SubscriptionPlan, error)
}

type SubscriptionLister interface {
	List(ctx context.Context, userID uint, limit, offset int) ([]entities.Subscription, int64, error)
}

type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (*entities.Setting, error)
	SetSetting(ctx context.Context, key, value string) error
	ListSettings(ctx context.Context) ([]entities.Setting, error)
}

type IssueLister interface {
	List(ctx context.Context, resolved *bool, limit, offset int) ([]entities.ReconciliationIssue, int64, error)
}

// ScanRunner runs a reconciliation scan inline.
type ScanRunner interface {
	Scan(ctx context.Context) (*reconcile.Report, error)
}

// TaskEnqueuer queues background work; *tasks.Client implements it.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, task backlite.Task) error
}

// AdminDeps groups the stores behind the admin endpoints.
type AdminDeps struct {
	Users         UserStore
	Transactions  TransactionLister
	Plans         PlanStore
	Subscriptions SubscriptionLister
	Settings      SettingsStore
	Issues        IssueLister
	Ledger        *ledger.Service
	Scanner       ScanRunner
	Tasks         TaskEnqueuer // optional; scans run inline without it
	Audit         *audit.Service
}

type AdminController struct {
	AdminDeps
	log zerolog.Logger
}

func NewAdminController(deps AdminDeps, log zerolog.Logger) *AdminController {
	return &AdminController{
		AdminDeps: deps,
		log:       log.With().Str("component", "admin_controller").Logger(),
	}
}

// --- Users ---

// GET /api/admin/users
func (ac *AdminController) ListUsers(c *gin.Context) {
	p := parsePage(c)
	users, total, err := ac.Users.List(c.Request.Context(), p.limit, p.offset)
	if err != nil {
		respondInternalError(c, ac.log, err, "list users")
		return
	}
	c.JSON(http.StatusOK, newPaginated(users, total, p))
}

type roleRequest struct {
	Role entities.Role `json:"role" binding:"required"`
}

// UpdateRole changes a user's role. The gate reads the role on every
// request, so the change applies to the user's next request.
// PUT /api/admin/users/:id/role
func (ac *AdminController) UpdateRole(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Role.Valid() {
		respondBadRequest(c, "role must be reader, publisher or admin")
		return
	}
	adminID := auth.GetUserID(c)
	if id == adminID && req.Role != entities.RoleAdmin {
		respondError(c, http.StatusConflict, "self_demotion", "admins cannot remove their own admin role")
		return
	}

	ctx := c.Request.Context()
	if err := ac.Users.UpdateRole(ctx, id, req.Role); err != nil {
		respondServiceError(c, ac.log, err, "update role")
		return
	}
	ac.Audit.LogAdmin(adminID, "role_change", "role set to "+string(req.Role), "profile", id)

	user, err := ac.Users.GetByID(ctx, id)
	if err != nil {
		respondServiceError(c, ac.log, err, "reload user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// --- Transactions and subscriptions ---

// GET /api/admin/transactions?status=
func (ac *AdminController) ListTransactions(c *gin.Context) {
	status := entities.TransactionStatus(c.Query("status"))
	switch status {
	case "", entities.TransactionPending, entities.TransactionCompleted, entities.TransactionFailed:
	default:
		respondBadRequest(c, "status must be pending, completed or failed")
		return
	}
	p := parsePage(c)
	txs, total, err := ac.Transactions.List(c.Request.Context(), status, p.limit, p.offset)
	if err != nil {
		respondInternalError(c, ac.log, err, "list transactions")
		return
	}
	c.JSON(http.StatusOK, newPaginated(txs, total, p))
}

// GET /api/admin/subscriptions?user_id=
func (ac *AdminController) ListSubscriptions(c *gin.Context) {
	var userID uint
	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondBadRequest(c, "invalid user_id")
			return
		}
		userID = uint(id)
	}
	p := parsePage(c)
	subs, total, err := ac.Subscriptions.List(c.Request.Context(), userID, p.limit, p.offset)
	if err != nil {
		respondInternalError(c, ac.log, err, "list subscriptions")
		return
	}
	c.JSON(http.StatusOK, newPaginated(subs, total, p))
}

// --- Plans ---

type planRequest struct {
	Name     string              `json:"name"`
	Price    int64               `json:"price"`
	Period   entities.PlanPeriod `json:"period"`
	Features []string            `json:"features"`
	Active   *bool               `json:"active"`
}

// GET /api/admin/plans
func (ac *AdminController) ListPlans(c *gin.Context) {
	plans, err := ac.Plans.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		respondInternalError(c, ac.log, err, "list plans")
		return
	}
	if plans == nil {
		plans = []entities.SubscriptionPlan{}
	}
	c.JSON(http.StatusOK, plans)
}

// POST /api/admin/plans
func (ac *AdminController) CreatePlan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid plan payload")
		return
	}
	plan, err := entities.NewSubscriptionPlan(strings.TrimSpace(req.Name), req.Price, req.Period, req.Features)
	if err != nil {
		respondServiceError(c, ac.log, err, "create plan")
		return
	}
	ctx := c.Request.Context()
	if err := ac.Plans.Create(ctx, plan); err != nil {
		respondServiceError(c, ac.log, err, "create plan")
		return
	}
	// gorm skips zero values that have a column default on insert.
	if req.Active != nil && !*req.Active {
		plan.Active = false
		if err := ac.Plans.Save(ctx, plan); err != nil {
			respondServiceError(c, ac.log, err, "deactivate plan")
			return
		}
	}
	ac.Audit.LogAdmin(auth.GetUserID(c), "plan_create", plan.Name, "plan", plan.ID)
	respondCreated(c, plan)
}

// UpdatePlan replaces a plan's terms. Existing subscriptions keep the
// period they paid for.
// PUT /api/admin/plans/:id
func (ac *AdminController) UpdatePlan(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid plan payload")
		return
	}
	ctx := c.Request.Context()
	plan, err := ac.Plans.GetByID(ctx, id)
	if err != nil {
		respondServiceError(c, ac.log, err, "load plan")
		return
	}

	updated, err := entities.NewSubscriptionPlan(strings.TrimSpace(req.Name), req.Price, req.Period, req.Features)
	if err != nil {
		respondServiceError(c, ac.log, err, "update plan")
		return
	}
	plan.Name = updated.Name
	plan.Price = updated.Price
	plan.Period = updated.Period
	plan.Features = updated.Features
	if req.Active != nil {
		plan.Active = *req.Active
	}
	if err := ac.Plans.Save(ctx, plan); err != nil {
		respondServiceError(c, ac.log, err, "update plan")
		return
	}
	ac.Audit.LogAdmin(auth.GetUserID(c), "plan_update", plan.Name, "plan", plan.ID)
	c.JSON(http.StatusOK, plan)
}

// --- Settings ---

type settingRequest struct {
	Value string `json:"value"`
}

// GET /api/admin/settings
func (ac *AdminController) ListSettings(c *gin.Context) {
	settings, err := ac.Settings.ListSettings(c.Request.Context())
	if err != nil {
		respondInternalError(c, ac.log, err, "list settings")
		return
	}
	if settings == nil {
		settings = []entities.Setting{}
	}
	c.JSON(http.StatusOK, settings)
}

// GET /api/admin/settings/:key
func (ac *AdminController) GetSetting(c *gin.Context) {
	key := c.Param("key")
	if !entities.EditableSettings[key] {
		respondNotFound(c, "setting")
		return
	}
	setting, err := ac.Settings.GetSetting(c.Request.Context(), key)
	if err != nil {
		respondServiceError(c, ac.log, err, "get setting")
		return
	}
	c.JSON(http.StatusOK, setting)
}

// PUT /api/admin/settings/:key
func (ac *AdminController) PutSetting(c *gin.Context) {
	key := c.Param("key")
	if !entities.EditableSettings[key] {
		respondNotFound(c, "setting")
		return
	}
	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "value is required")
		return
	}
	if len(req.Value) > 2000 {
		respondBadRequest(c, "value is too long")
		return
	}
	ctx := c.Request.Context()
	if err := ac.Settings.SetSetting(ctx, key, req.Value); err != nil {
		respondInternalError(c, ac.log, err, "set setting")
		return
	}
	ac.Audit.LogSettings(auth.GetUserID(c), "setting_update", key)

	setting, err := ac.Settings.GetSetting(ctx, key)
	if err != nil {
		respondServiceError(c, ac.log, err, "reload setting")
		return
	}
	c.JSON(http.StatusOK, setting)
}

// --- Reconciliation ---

// GET /api/admin/reconciliation?resolved=
func (ac *AdminController) ListIssues(c *gin.Context) {
	var resolved *bool
	if raw := c.Query("resolved"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondBadRequest(c, "resolved must be true or false")
			return
		}
		resolved = &v
	}
	p := parsePage(c)
	issues, total, err := ac.Issues.List(c.Request.Context(), resolved, p.limit, p.offset)
	if err != nil {
		respondInternalError(c, ac.log, err, "list issues")
		return
	}
	c.JSON(http.StatusOK, newPaginated(issues, total, p))
}

// RepairIssue grants the ownership a completed purchase is missing.
// POST /api/admin/reconciliation/:id/repair
func (ac *AdminController) RepairIssue(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	issue, err := ac.Ledger.RepairEntitlement(c.Request.Context(), id, auth.GetUserID(c))
	if err != nil {
		respondServiceError(c, ac.log, err, "repair issue")
		return
	}
	c.JSON(http.StatusOK, issue)
}

// Scan queues a reconciliation scan, or runs it inline when no task queue
// is configured.
// POST /api/admin/reconciliation/scan
func (ac *AdminController) Scan(c *gin.Context) {
	ctx := c.Request.Context()
	adminID := auth.GetUserID(c)

	if ac.Tasks != nil {
		if err := ac.Tasks.Enqueue(ctx, tasks.ReconcileScanTask{Trigger: "admin"}); err != nil {
			respondInternalError(c, ac.log, err, "queue scan")
			return
		}
		ac.Audit.LogReconcile(adminID, "scan_queued", "reconciliation scan queued", nil)
		respondAccepted(c, "scan queued", nil)
		return
	}

	if ac.Scanner == nil {
		respondError(c, http.StatusServiceUnavailable, "unavailable", "reconciliation is not configured")
		return
	}
	report, err := ac.Scanner.Scan(ctx)
	if err != nil {
		respondInternalError(c, ac.log, err, "scan")
		return
	}
	c.JSON(http.StatusOK, report)
}

// --- Audit ---

// GET /api/admin/audit?type=&user_id=
func (ac *AdminController) ListAudit(c *gin.Context) {
	var filter auditrepo.Filter
	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondBadRequest(c, "invalid user_id")
			return
		}
		filter.UserID = uint(id)
	}
	filter.EventType = entities.AuditEventType(c.Query("type"))

	p := parsePage(c)
	events, total, err := ac.Audit.GetEvents(c.Request.Context(), filter, p.limit, p.offset)
	if err != nil {
		respondInternalError(c, ac.log, err, "list audit events")
		return
	}
	if events == nil {
		events = []entities.AuditEvent{}
	}
	c.JSON(http.StatusOK, newPaginated(events, total, p))
}
