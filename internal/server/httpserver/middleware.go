package httpserver

import (
	"time"

	"github.com/dmitrijs2005/cinecritic/internal/common"
	"github.com/dmitrijs2005/cinecritic/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const loggerKey = "logger"

// requestContext tags each request with an id (kept from X-Request-ID when it
// is a valid UUID), stores a logger carrying it and logs the outcome.
func requestContext(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(common.RequestIDHeaderName)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Header(common.RequestIDHeaderName, id)

		log := logger.With("request_id", id)
		c.Set(loggerKey, log)

		start := time.Now()
		c.Next()

		log.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// requestLogger returns the request-scoped logger, or fallback outside a
// request.
func requestLogger(c *gin.Context, fallback logging.Logger) logging.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(logging.Logger); ok {
			return l
		}
	}
	return fallback
}
