package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"ops-dashboard/internal/audit"
	"ops-dashboard/internal/auth"
	"ops-dashboard/internal/inspect"
	"ops-dashboard/internal/reporting"
	"ops-dashboard/internal/timewindow"
	"ops-dashboard/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Login     *auth.Authenticator
	Dashboard *reporting.Service
	Inspect   *inspect.Service
	Audit     *audit.Service

	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- Auth ---

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// PostLogin checks the operator credentials and issues a token pair.
func (h Handlers) PostLogin(c *gin.Context) {
	if h.Auth == nil || h.Login == nil {
		abort(c, http.StatusInternalServerError, "auth not configured", reasonInternal)
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "username and password required", reasonBadRequest)
		return
	}
	role, err := h.Login.Check(req.Username, req.Password)
	if err != nil {
		logger.FromGin(c).Warn("login rejected", "username", req.Username)
		abort(c, http.StatusUnauthorized, "invalid credentials", reasonUnauthorized)
		return
	}
	h.issue(c, req.Username, role)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// PostRefresh exchanges a refresh token for a new pair.
func (h Handlers) PostRefresh(c *gin.Context) {
	if h.Auth == nil || h.Login == nil {
		abort(c, http.StatusInternalServerError, "auth not configured", reasonInternal)
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "refreshToken required", reasonBadRequest)
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, h.now())
	if err != nil {
		abort(c, http.StatusUnauthorized, "invalid refresh token", reasonUnauthorized)
		return
	}
	role, ok := h.Login.RoleOf(claims.UserID)
	if !ok {
		abort(c, http.StatusUnauthorized, "invalid refresh token", reasonUnauthorized)
		return
	}
	h.issue(c, claims.UserID, role)
}

func (h Handlers) issue(c *gin.Context, userID, role string) {
	pair, err := h.Auth.IssuePair(h.now(), userID, role)
	if err != nil {
		logger.FromGin(c).Error("token issuance failed", "err", err)
		abort(c, http.StatusInternalServerError, "token issuance failed", reasonInternal)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h Handlers) GetMe(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"userId": uid, "role": role})
}

// --- Dashboard ---

// GetDashboardMetrics returns a freshly assembled snapshot. Partial upstream
// failures still answer 200 with the affected metrics listed in unavailable.
func (h Handlers) GetDashboardMetrics(c *gin.Context) {
	if h.Dashboard == nil {
		abort(c, http.StatusInternalServerError, "dashboard not configured", reasonInternal)
		return
	}
	m, err := h.Dashboard.Assemble(c.Request.Context(), h.now())
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// --- Inspection ---

func (h Handlers) GetInspect(c *gin.Context) {
	if h.Inspect == nil {
		abort(c, http.StatusInternalServerError, "inspect not configured", reasonInternal)
		return
	}
	col, err := inspect.ParseCollection(c.Param("collection"))
	if err != nil {
		abortErr(c, err)
		return
	}
	q := inspect.Query{Collection: col}
	if w := c.Query("window"); w != "" {
		k, err := timewindow.ParseKind(w)
		if err != nil {
			abortErr(c, err)
			return
		}
		q.Window = k
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	q.Limit = limit

	res, err := h.Inspect.List(c.Request.Context(), q, h.now())
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetInspectOutstanding is mounted at /inspect/:collection/outstanding and
// only answers for invoices.
func (h Handlers) GetInspectOutstanding(c *gin.Context) {
	if h.Inspect == nil {
		abort(c, http.StatusInternalServerError, "inspect not configured", reasonInternal)
		return
	}
	if c.Param("collection") != string(inspect.CollectionInvoices) {
		abort(c, http.StatusNotFound, "outstanding applies to invoices only", reasonNotFound)
		return
	}
	res, err := h.Inspect.Outstanding(c.Request.Context())
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetWebhookEvents lists recent audited integration events.
func (h Handlers) GetWebhookEvents(c *gin.Context) {
	if h.Audit == nil {
		abort(c, http.StatusInternalServerError, "audit not configured", reasonInternal)
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	evs, err := h.Audit.Recent(c.Request.Context(), audit.Source(c.Query("source")), limit)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evs})
}

// parseLimit reads an optional positive ?limit. Zero means the service default.
func parseLimit(c *gin.Context) (int, bool) {
	l := c.Query("limit")
	if l == "" {
		return 0, true
	}
	n, err := strconv.Atoi(l)
	if err != nil || n <= 0 {
		abort(c, http.StatusBadRequest, "limit must be a positive integer", reasonBadRequest)
		return 0, false
	}
	return n, true
}
