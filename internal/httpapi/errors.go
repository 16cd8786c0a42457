package httpapi

import (
	"errors"
	"net/http"

	"ops-dashboard/internal/inspect"
	"ops-dashboard/internal/reporting"
	"ops-dashboard/internal/timewindow"
	"ops-dashboard/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Machine-readable reasons returned alongside every error.
const (
	reasonUpstreamUnavailable = "upstream_unavailable"
	reasonTimezoneUnavailable = "timezone_unavailable"
	reasonBadRequest          = "bad_request"
	reasonUnauthorized        = "unauthorized"
	reasonNotFound            = "not_found"
	reasonInternal            = "internal"
)

func abort(c *gin.Context, status int, msg, reason string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "reason": reason})
}

// abortErr maps service errors to HTTP responses.
func abortErr(c *gin.Context, err error) {
	log := logger.FromGin(c)
	switch {
	case errors.Is(err, timewindow.ErrTimezoneUnavailable):
		log.Error("timezone unavailable", "err", err)
		abort(c, http.StatusInternalServerError, "reporting timezone unavailable", reasonTimezoneUnavailable)
	case errors.Is(err, reporting.ErrUpstreamUnavailable):
		log.Error("upstream unavailable", "err", err)
		abort(c, http.StatusServiceUnavailable, "record store unavailable", reasonUpstreamUnavailable)
	case errors.Is(err, inspect.ErrUnknownCollection), errors.Is(err, timewindow.ErrUnknownKind):
		abort(c, http.StatusBadRequest, err.Error(), reasonBadRequest)
	default:
		log.Error("request failed", "err", err)
		abort(c, http.StatusInternalServerError, "internal error", reasonInternal)
	}
}
