package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"visitethiopia/api/internal/apperror"
	"visitethiopia/api/internal/models"
	"visitethiopia/api/internal/response"
	"visitethiopia/api/internal/service"
)

const identityKey = "identity"

type identityCtxKey struct{}

// Authenticator resolves a raw session token into the current caller.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (service.Identity, error)
}

// CredentialSource extracts a session token from a request, or "" if it
// carries none.
type CredentialSource func(r *http.Request) string

// BearerHeader reads "Authorization: Bearer <token>".
func BearerHeader() CredentialSource {
	return func(r *http.Request) string {
		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
}

func Cookie(name string) CredentialSource {
	return func(r *http.Request) string {
		cookie, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return cookie.Value
	}
}

// Protect admits only requests whose token resolves to an active user whose
// password has not changed since the token was issued. The first source that
// yields a token wins.
func Protect(auth Authenticator, log zerolog.Logger, sources ...CredentialSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		for _, source := range sources {
			if token = source(c.Request); token != "" {
				break
			}
		}

		identity, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Error(c, log, err)
			return
		}

		c.Set(identityKey, identity)
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), identity))
		c.Next()
	}
}

// Restrict admits only callers whose current role is in roles. It must run
// after Protect.
func Restrict(log zerolog.Logger, roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			response.Error(c, log, apperror.Unauthenticated("You are not logged in! Please log in to get access."))
			return
		}
		if _, ok := allowed[identity.Role()]; !ok {
			response.Error(c, log, apperror.Forbidden("You do not have permission to perform this action"))
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (service.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return service.Identity{}, false
	}
	identity, ok := v.(service.Identity)
	return identity, ok
}

func WithIdentity(ctx context.Context, identity service.Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (service.Identity, bool) {
	identity, ok := ctx.Value(identityCtxKey{}).(service.Identity)
	return identity, ok
}
