// Package auth issues the console's session tokens. A token wraps the backend
// session opened at login so the gateway stays stateless.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"schoolhub/internal/backend"
)

var timeNow = time.Now

// Token is a signed session token.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Claims represents JWT payload.
type Claims struct {
	UserID   int             `json:"uid"`
	Username string          `json:"username"`
	Staff    bool            `json:"staff,omitempty"`
	Session  backend.Session `json:"bs"`
	jwt.RegisteredClaims
}

// Issue signs a token for user carrying the backend session.
func Issue(user backend.User, session backend.Session, issuer, key string, ttl time.Duration) (Token, error) {
	now := timeNow()
	exp := now.Add(ttl)
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Staff:    user.IsStaff || user.IsSuperuser,
		Session:  session,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.Username,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.Session.ID == "" {
		return Claims{}, errors.New("token carries no session")
	}
	return *claims, nil
}
