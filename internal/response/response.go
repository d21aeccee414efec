// Package response writes the JSON envelope used by every endpoint and owns
// the mapping from error kind to HTTP status.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"visitethiopia/api/internal/apperror"
)

const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

type Envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Token   string      `json:"token,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, code int, env Envelope) {
	env.Status = statusSuccess
	c.JSON(code, env)
}

func Message(c *gin.Context, code int, message string) {
	Success(c, code, Envelope{Message: message})
}

// Fail writes a non-error envelope for a client mistake detected outside the
// service layer.
func Fail(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Envelope{Status: statusFail, Message: message})
}

// Error writes err and aborts the chain. Internal causes are logged, never
// sent to the client.
func Error(c *gin.Context, log zerolog.Logger, err error) {
	code := StatusFor(apperror.KindOf(err))
	status := statusFail
	if code >= http.StatusInternalServerError {
		status = statusError
		log.Error().
			Err(err).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.Writer.Header().Get("X-Request-Id")).
			Msg("request failed")
	} else {
		log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("request rejected")
	}

	c.AbortWithStatusJSON(code, Envelope{Status: status, Message: apperror.MessageOf(err)})
}

func StatusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation, apperror.KindInvalidToken, apperror.KindExpiredToken:
		return http.StatusBadRequest
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindAuthentication, apperror.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
