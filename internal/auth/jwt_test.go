package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestParse_ValidHS256(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Issue(secret, "desk-1", []string{RoleOperator}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := Parse(secret, token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "desk-1" {
		t.Fatalf("expected subject desk-1, got %q", claims.Subject)
	}
	if !claims.HasRole(RoleOperator) || !claims.HasRole(RoleViewer) {
		t.Fatalf("expected operator to hold both roles, got %v", claims.Roles)
	}
}

func TestParse_RejectsUnexpectedAlgorithm(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Now()
	claims := Claims{
		Roles: []string{RoleOperator},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   "desk-1",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS384, claims)
	tokenStr, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := Parse(secret, tokenStr); err == nil {
		t.Fatalf("expected parse to reject non-HS256 token")
	}
}

func TestParse_RejectsExpiredAndForeignTokens(t *testing.T) {
	secret := []byte("test-secret")
	expired, err := Issue(secret, "desk-1", []string{RoleViewer}, -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(secret, expired); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	foreign, err := Issue([]byte("other"), "desk-1", []string{RoleViewer}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(secret, foreign); err == nil {
		t.Fatal("expected signature failure")
	}
}

func TestIssue_RejectsUnknownRole(t *testing.T) {
	if _, err := Issue([]byte("s"), "desk-1", []string{"admin"}, time.Hour); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestViewerLacksOperatorRole(t *testing.T) {
	c := &Claims{Roles: []string{RoleViewer}}
	if c.HasRole(RoleOperator) {
		t.Fatal("viewer must not hold operator role")
	}
}
