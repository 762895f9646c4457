/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Panel roles. Viewers may read state and follow events; operators may
// also change the catalog, schedules, settings and playback.
const (
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// ErrUnknownRole is returned when issuing a token for an unsupported role.
var ErrUnknownRole = errors.New("unknown role")

// Claims carries the panel roles on top of the registered claims.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims grant role. Operators implicitly hold
// the viewer role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role || (r == RoleOperator && role == RoleViewer) {
			return true
		}
	}
	return false
}

// ValidRole reports whether role is one the panel understands.
func ValidRole(role string) bool {
	return role == RoleOperator || role == RoleViewer
}

// Issue signs an HS256 token for subject.
func Issue(secret []byte, subject string, roles []string, ttl time.Duration) (string, error) {
	for _, r := range roles {
		if !ValidRole(r) {
			return "", ErrUnknownRole
		}
	}
	now := time.Now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "grimnir-panel",
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Parse validates token string.
func Parse(secret []byte, token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}
