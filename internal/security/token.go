package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

type SessionClaims struct {
	Role string `json:"role"`
	// IssuedAtMilli is iat at millisecond precision. The registered iat only
	// carries whole seconds.
	IssuedAtMilli int64 `json:"iat_ms,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c SessionClaims) UserID() string {
	return c.Subject
}

func (c SessionClaims) IssuedAtTime() time.Time {
	if c.IssuedAtMilli > 0 {
		return time.UnixMilli(c.IssuedAtMilli).UTC()
	}
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// SessionCodec mints and verifies the stateless HS256 session tokens.
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionCodec(secret string, ttl time.Duration, now func() time.Time) *SessionCodec {
	if now == nil {
		now = time.Now
	}
	return &SessionCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    now,
	}
}

func (c *SessionCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for userID and returns it with its expiry.
func (c *SessionCodec) Issue(userID string, role string) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.ttl)
	claims := SessionClaims{
		Role:          role,
		IssuedAtMilli: now.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign jwt: %w", err)
	}
	return signed, jwt.NewNumericDate(expiresAt).Time, nil
}

// Parse verifies the signature before any claim is trusted. The returned
// error is ErrExpiredToken or wraps ErrInvalidToken.
func (c *SessionCodec) Parse(tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	if claims.IssuedAtMilli != 0 && claims.IssuedAtMilli/1000 != claims.IssuedAt.Unix() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
