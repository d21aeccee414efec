package security

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)}
}

func TestIssueAndParse(t *testing.T) {
	clock := newClock()
	codec := NewSessionCodec("super-secret", 90*24*time.Hour, clock.Now)

	tok, exp, err := codec.Issue("user-1", "admin")
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(90*24*time.Hour), exp)

	claims, err := codec.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, clock.t.Unix(), claims.IssuedAtTime().Unix())
}

func TestIssuedAtKeepsMilliseconds(t *testing.T) {
	clock := newClock()
	clock.t = clock.t.Add(750 * time.Millisecond)
	codec := NewSessionCodec("secret", time.Hour, clock.Now)

	tok, _, err := codec.Issue("u1", "user")
	require.NoError(t, err)

	claims, err := codec.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, clock.t.UnixMilli(), claims.IssuedAtTime().UnixMilli())
	assert.Equal(t, clock.t.Unix(), claims.IssuedAt.Unix())
}

func TestParseRejectsMismatchedMilliseconds(t *testing.T) {
	clock := newClock()
	codec := NewSessionCodec("secret", time.Hour, clock.Now)

	claims := SessionClaims{
		Role:          "user",
		IssuedAtMilli: clock.t.Add(-time.Minute).UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u5",
			IssuedAt:  jwt.NewNumericDate(clock.t),
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = codec.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseExpired(t *testing.T) {
	clock := newClock()
	codec := NewSessionCodec("secret", time.Hour, clock.Now)

	tok, _, err := codec.Issue("u1", "user")
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Hour)
	_, err = codec.Parse(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestParseWrongSecret(t *testing.T) {
	clock := newClock()
	tok, _, err := NewSessionCodec("right-secret", time.Hour, clock.Now).Issue("u2", "user")
	require.NoError(t, err)

	_, err = NewSessionCodec("wrong-secret", time.Hour, clock.Now).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTamperedPayload(t *testing.T) {
	clock := newClock()
	codec := NewSessionCodec("secret", time.Hour, clock.Now)

	tok, _, err := codec.Issue("u3", "user")
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	forged := strings.Replace(string(payload), `"role":"user"`, `"role":"admin"`, 1)
	require.NotEqual(t, string(payload), forged)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(forged))

	_, err = codec.Parse(strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsNoneAlgorithm(t *testing.T) {
	clock := newClock()
	codec := NewSessionCodec("secret", time.Hour, clock.Now)

	claims := SessionClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u4",
			IssuedAt:  jwt.NewNumericDate(clock.t),
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = codec.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseMalformed(t *testing.T) {
	codec := NewSessionCodec("k", time.Hour, nil)

	_, err := codec.Parse("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = codec.Parse("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
