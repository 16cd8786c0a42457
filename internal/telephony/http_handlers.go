package telephony

import (
	"errors"
	"io"
	"net/http"

	"ops-dashboard/internal/audit"
	"ops-dashboard/pkg/logger"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// WebhookHandler receives OpenPhone deliveries.
//
// Verifier may be nil only outside production; config validation enforces that.
type WebhookHandler struct {
	Verifier *Verifier
	Ingestor *Ingestor
}

func (h WebhookHandler) HandleOpenPhone(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Ingestor == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ingestor not configured"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	if len(body) > maxWebhookBody {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
		return
	}

	if h.Verifier != nil {
		if err := h.Verifier.Verify(c.GetHeader(SignatureHeader), body); err != nil {
			log.Warn("openphone signature rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}

	ev, err := ParseEvent(body)
	if err != nil {
		log.Warn("openphone event parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
		return
	}

	outcome, err := h.Ingestor.Ingest(c.Request.Context(), ev, body)
	switch {
	case errors.Is(err, ErrCallNotStored):
		log.Info("transcript before call; asking for redelivery", "event_id", ev.ID)
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call not yet stored"})
		return
	case errors.Is(err, ErrMalformedEvent):
		log.Warn("openphone event rejected", "event_id", ev.ID, "type", ev.Type, "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
		return
	case err != nil:
		log.Error("openphone ingest failed", "event_id", ev.ID, "type", ev.Type, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ingest failed"})
		return
	}

	if outcome == audit.OutcomeIgnored {
		log.Debug("openphone event ignored", "type", ev.Type)
	}
	c.JSON(http.StatusOK, gin.H{"status": outcome})
}
