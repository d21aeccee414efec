package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Logger writes one access line per request using the request-scoped logger
// from RequestID when present. Health probes only show up at debug level.
func Logger(log zerolog.Logger, quietPaths ...string) gin.HandlerFunc {
	quiet := make(map[string]struct{}, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		reqLog := zerolog.Ctx(c.Request.Context())
		if reqLog.GetLevel() == zerolog.Disabled {
			reqLog = &log
		}

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = reqLog.Error()
		case status >= 400:
			event = reqLog.Warn()
		default:
			if _, ok := quiet[c.FullPath()]; ok {
				event = reqLog.Debug()
			} else {
				event = reqLog.Info()
			}
		}

		if identity, ok := IdentityFrom(c); ok {
			event = event.Str("user_id", identity.User.ID)
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
