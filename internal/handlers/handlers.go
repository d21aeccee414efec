package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"visitethiopia/api/internal/config"
	"visitethiopia/api/internal/middleware"
	"visitethiopia/api/internal/models"
	"visitethiopia/api/internal/service"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HandlerSet struct {
	log        zerolog.Logger
	cfg        *config.AppConfig
	auth       *service.AuthService
	users      *service.UserService
	store      Pinger
	cache      *redis.Client
	cookieName string
}

// NewHandlerSet wires the HTTP layer. cache may be nil when no redis is
// configured.
func NewHandlerSet(
	log zerolog.Logger,
	cfg *config.AppConfig,
	auth *service.AuthService,
	users *service.UserService,
	store Pinger,
	cache *redis.Client,
	cookieName string,
) HandlerSet {
	return HandlerSet{
		log:        log,
		cfg:        cfg,
		auth:       auth,
		users:      users,
		store:      store,
		cache:      cache,
		cookieName: cookieName,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	users := router.Group("/v1/users")
	users.POST("/signup", h.Signup)
	users.POST("/login", h.Login)
	users.POST("/logout", h.Logout)
	users.GET("/logout", h.Logout)
	users.GET("/verify/:token", h.VerifyEmail)
	users.POST("/resendVerification", h.ResendVerification)
	users.POST("/forgotPassword", h.ForgotPassword)
	users.PATCH("/resetPassword/:token", h.ResetPassword)

	protected := users.Group("")
	protected.Use(middleware.Protect(h.auth, h.log, middleware.BearerHeader(), middleware.Cookie(h.cookieName)))
	protected.GET("/test", h.Test)
	protected.PATCH("/updatePassword", h.UpdatePassword)
	protected.GET("/profile", h.Profile)
	protected.PATCH("/profile", h.UpdateProfile)
	protected.DELETE("/profile", h.DeleteProfile)

	admin := protected.Group("")
	admin.Use(middleware.Restrict(h.log, models.UserRoleAdmin))
	admin.GET("", h.AdminListUsers)
	admin.GET("/:id", h.AdminGetUser)
	admin.PATCH("/:id", h.AdminUpdateUser)
	admin.DELETE("/:id", h.AdminDeleteUser)
}
