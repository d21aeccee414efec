package session

import (
	"net/http"
	"time"

	"visitethiopia/api/internal/models"
	"visitethiopia/api/internal/security"
)

const DefaultCookieName = "jwt"

// Session is a freshly minted session token ready for delivery.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Cookie    *http.Cookie
}

type Issuer struct {
	codec      *security.SessionCodec
	cookieName string
	secure     bool
	now        func() time.Time
}

func NewIssuer(codec *security.SessionCodec, cookieName string, secure bool, now func() time.Time) *Issuer {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		codec:      codec,
		cookieName: cookieName,
		secure:     secure,
		now:        now,
	}
}

func (i *Issuer) CookieName() string {
	return i.cookieName
}

// Issue mints a token for the user's current id and role. The cookie expires
// together with the token.
func (i *Issuer) Issue(user models.User) (Session, error) {
	token, expiresAt, err := i.codec.Issue(user.ID, string(user.Role))
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		ExpiresAt: expiresAt,
		Cookie: &http.Cookie{
			Name:     i.cookieName,
			Value:    token,
			Path:     "/",
			Expires:  expiresAt,
			HttpOnly: true,
			Secure:   i.secure,
			SameSite: http.SameSiteLaxMode,
		},
	}, nil
}

// Clear returns a cookie that overwrites the session cookie with an empty,
// already expired value.
func (i *Issuer) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     i.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  i.now().Add(-time.Hour),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   i.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
