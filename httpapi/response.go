package httpapi

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/martinemde/aimux/logging"
	"github.com/martinemde/aimux/router"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Kind      router.ErrorKind  `json:"kind,omitempty"`
	Message   string            `json:"message"`
	Service   string            `json:"service,omitempty"`
	Operation router.Capability `json:"operation,omitempty"`
}

// StatusFor maps a dispatch error kind to an HTTP status.
func StatusFor(kind router.ErrorKind) int {
	switch kind {
	case router.ModelNotSupported:
		return http.StatusNotFound
	case router.ServiceUnavailable:
		return http.StatusServiceUnavailable
	case router.CapabilityUnsupported:
		return http.StatusBadRequest
	case router.UnexpectedFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) respondError(c *gin.Context, err error) {
	e, ok := router.AsError(err)
	if !ok {
		s.log.Error("unclassified handler error", logging.Fields(logging.FieldError, err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": ErrorBody{Message: "internal server error"}})
		return
	}
	c.JSON(StatusFor(e.Kind), gin.H{"error": ErrorBody{
		Kind:      e.Kind,
		Message:   e.Error(),
		Service:   e.Service,
		Operation: e.Operation,
	}})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": ErrorBody{Message: "invalid request: " + err.Error()}})
}

// Recovery returns a gin middleware that recovers from panics and logs the
// stack.
func Recovery(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered", logging.Fields(
					logging.FieldError, fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": ErrorBody{Message: "internal server error"},
				})
			}
		}()
		c.Next()
	}
}

// RequestLogger logs one event per HTTP request, at a level chosen by the
// response status. Health checks are skipped.
func RequestLogger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := logging.Fields(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			logging.FieldDuration, time.Since(start).Milliseconds(),
		)
		switch {
		case status >= 500:
			log.Error("http request", fields)
		case status >= 400:
			log.Warn("http request", fields)
		default:
			log.Debug("http request", fields)
		}
	}
}
