package jobber

import (
	"errors"
	"net/http"

	"ops-dashboard/internal/audit"
	"ops-dashboard/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the connect flow and token status.
type Handlers struct {
	Client *Client
	Audit  *audit.Service
	// DoneURL is where the callback sends the operator after success.
	// Empty means respond with JSON.
	DoneURL string
}

// Connect starts the flow for an authenticated operator. The consent URL is
// returned as JSON; the dashboard navigates to it, and Jobber redirects back
// to the public callback.
func (h Handlers) Connect(c *gin.Context) {
	u, err := h.Client.AuthCodeURL(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("jobber connect failed", "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "cannot start jobber connect"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authorizeUrl": u})
}

func (h Handlers) Callback(c *gin.Context) {
	log := logger.FromGin(c)
	ctx := c.Request.Context()

	if e := c.Query("error"); e != "" {
		log.Warn("jobber consent denied", "error", e)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "jobber authorization denied"})
		return
	}

	tok, err := h.Client.Exchange(ctx, c.Query("code"), c.Query("state"))
	if errors.Is(err, ErrInvalidState) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid state"})
		return
	}
	if err != nil {
		log.Error("jobber token exchange failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "token exchange failed"})
		return
	}

	if aerr := h.Audit.LogWebhook(ctx, audit.SourceJobber, "oauth.connected", "", audit.OutcomeStored, nil); aerr != nil {
		log.Warn("jobber audit append failed", "err", aerr)
	}
	log.Info("jobber connected", "expiry", tok.Expiry)

	if h.DoneURL != "" {
		c.Redirect(http.StatusFound, h.DoneURL)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true})
}

func (h Handlers) Status(c *gin.Context) {
	st, err := h.Client.Status(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("jobber status failed", "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "token store unavailable"})
		return
	}
	c.JSON(http.StatusOK, st)
}
