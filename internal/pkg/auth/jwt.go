// Package auth provides session and email-confirmation tokens built on
// JSON Web Tokens, plus the route guards evaluated before handler dispatch.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// SessionTokenExp defines the session token expiration duration.
const SessionTokenExp = time.Hour * 3

// ConfirmationTokenExp defines how long an email-confirmation link stays valid.
const ConfirmationTokenExp = time.Hour

// ErrInvalidToken is returned for any token that fails verification.
// Tampered, mis-purposed, and expired tokens are deliberately
// indistinguishable to the caller.
var ErrInvalidToken = errors.New("auth: invalid token")

// SessionClaims carries the account email of an authenticated session.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ConfirmationClaims carries the email a confirmation link proves control
// of. Purpose namespaces the token so a session token can never be used as
// a confirmation link or vice versa.
type ConfirmationClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies the two token kinds with a server-held secret.
type Tokens struct {
	secret  []byte
	purpose string
}

// NewTokens creates a token manager from the signing secret and the
// confirmation-purpose salt.
func NewTokens(secret, confirmationSalt string) *Tokens {
	return &Tokens{secret: []byte(secret), purpose: confirmationSalt}
}

// GenerateSession creates a signed session token for the given email.
func (t *Tokens) GenerateSession(email string) (string, error) {
	claims := SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(SessionTokenExp)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ParseSession validates a session token and returns the embedded email.
func (t *Tokens) ParseSession(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	return claims.Email, nil
}

// GenerateConfirmation creates a signed, time-limited confirmation token
// bound to the given email.
func (t *Tokens) GenerateConfirmation(email string) (string, error) {
	claims := ConfirmationClaims{
		Email:   email,
		Purpose: t.purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ConfirmationTokenExp)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ParseConfirmation validates a confirmation token and returns the embedded
// email. Signature, purpose, and expiry failures all surface as
// ErrInvalidToken.
func (t *Tokens) ParseConfirmation(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &ConfirmationClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*ConfirmationClaims)
	if !ok || !token.Valid || claims.Purpose != t.purpose {
		return "", ErrInvalidToken
	}
	return claims.Email, nil
}
