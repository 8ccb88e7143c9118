package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prismbench/search/pkg/apperrors"
)

// statusFor maps a service-layer error to the HTTP status it should produce
// by checking sentinel errors with errors.Is, rather than a type switch over
// an exception hierarchy.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrSessionNotFound), errors.Is(err, apperrors.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrSessionAlreadyExists), errors.Is(err, apperrors.ErrTaskNotRunning):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrTreeInitialization), errors.Is(err, apperrors.ErrMCTSExecution):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a uniform error body and logs the underlying error at
// a level appropriate to its severity.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
	} else {
		slog.Warn("request rejected", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

// recoverMiddleware converts a panicking handler into a 500 response instead
// of crashing the process.
func recoverMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic recovered", "path", c.FullPath(), "panic", r)
				c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
				c.Abort()
			}
		}()
		c.Next()
	}
}
