package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"visitethiopia/api/internal/config"
	"visitethiopia/api/internal/handlers"
	"visitethiopia/api/internal/repository"
	"visitethiopia/api/internal/security"
	"visitethiopia/api/internal/service"
	"visitethiopia/api/internal/session"
)

func TestServerAppliesMiddleware(t *testing.T) {
	cfg := &config.AppConfig{
		Environment:      "test",
		HTTP:             config.HTTPConfig{Port: 0, RequestTimeout: time.Second},
		AllowCORSOrigins: []string{"https://visitethiopia.et"},
	}
	repo := repository.NewMemoryUserRepository()
	codec := security.NewSessionCodec("0123456789abcdef0123456789abcdef", time.Hour, nil)
	issuer := session.NewIssuer(codec, "", false, nil)
	auth := service.NewAuthService(repo, nil, codec, issuer, service.Options{}, zerolog.Nop(), nil)
	users := service.NewUserService(repo, nil, service.Options{}, zerolog.Nop(), nil)
	hs := handlers.NewHandlerSet(zerolog.Nop(), cfg, auth, users, repo, nil, session.DefaultCookieName)

	srv := NewHTTPServer(cfg, zerolog.Nop(), hs)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users/login", nil)
	req.Header.Set("Origin", "https://visitethiopia.et")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://visitethiopia.et", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestServerUnknownRouteUsesEnvelope(t *testing.T) {
	cfg := &config.AppConfig{Environment: "test"}
	srv := NewHTTPServer(cfg, zerolog.Nop(), pingRoutes{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"status":"fail","message":"Can't find /api/v1/tours on this server!"}`, rec.Body.String())
}

func TestServerWrongMethodUsesEnvelope(t *testing.T) {
	cfg := &config.AppConfig{Environment: "test"}
	srv := NewHTTPServer(cfg, zerolog.Nop(), pingRoutes{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ping", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"status":"fail","message":"POST is not allowed on /api/ping"}`, rec.Body.String())
}

// pingRoutes mounts a single route; gin needs at least one method tree to
// answer 405.
type pingRoutes struct{}

func (pingRoutes) Register(r *gin.RouterGroup) {
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
}
