package handler

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthHandler(now time.Time) *Handler {
	h := NewHandler(nil, "test-secret", 1)
	h.now = func() time.Time { return now }
	return h
}

// TestTokenRoundTrip verifies a signed token yields its anon_id back.
func TestTokenRoundTrip(t *testing.T) {
	h := newAuthHandler(time.Now())

	token, err := h.generateJWT("anon-1")
	require.NoError(t, err)
	anonID, err := h.validateAndGetAnonID(token)

	require.NoError(t, err)
	assert.Equal(t, "anon-1", anonID)
}

// TestTokenExpires verifies tokens stop working after their TTL.
func TestTokenExpires(t *testing.T) {
	issued := time.Now()
	token, err := newAuthHandler(issued).generateJWT("anon-1")
	require.NoError(t, err)

	_, err = newAuthHandler(issued.Add(tokenTTL + time.Minute)).validateAndGetAnonID(token)

	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

// TestTokenRejectsForeignTokens covers wrong secret, issuer and missing claim.
func TestTokenRejectsForeignTokens(t *testing.T) {
	h := newAuthHandler(time.Now())
	exp := time.Now().Add(time.Hour).Unix()

	otherSecret, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"anon_id": "anon-1", "iss": tokenIssuer, "exp": exp,
	}).SignedString([]byte("other-secret"))
	_, err := h.validateAndGetAnonID(otherSecret)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	otherIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"anon_id": "anon-1", "iss": "someone-else", "exp": exp,
	}).SignedString(h.secret)
	_, err = h.validateAndGetAnonID(otherIssuer)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": tokenIssuer, "exp": exp,
	}).SignedString(h.secret)
	_, err = h.validateAndGetAnonID(noSubject)
	assert.ErrorIs(t, err, errMissingAnonID)
}
