package auth_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bierserv/api/internal/auth"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"
	userID := uuid.New()

	token, err := auth.GenerateToken(secret, userID, auth.RoleWaiter, 0)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("user ID: got %v, want %v", claims.UserID, userID)
	}
	if claims.Role != auth.RoleWaiter {
		t.Errorf("role: got %v, want %v", claims.Role, auth.RoleWaiter)
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl > auth.AccessTokenTTL || ttl < auth.AccessTokenTTL-time.Minute {
		t.Errorf("default ttl: got %v", ttl)
	}
}

func TestValidateTokenWithWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken("secret-a", uuid.New(), auth.RoleAdmin, time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := auth.ValidateToken("secret-b", token); err == nil {
		t.Fatal("expected error validating with wrong secret")
	}
}

func TestValidateTokenWithInvalidString(t *testing.T) {
	if _, err := auth.ValidateToken("secret", "not-a-jwt"); err == nil {
		t.Fatal("expected error validating invalid token string")
	}
}

func TestGenerateTokenNegativeTTLUsesDefault(t *testing.T) {
	token, err := auth.GenerateToken("secret", uuid.New(), auth.RoleAdmin, -time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := auth.ValidateToken("secret", token); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, jti, err := auth.GenerateRefreshToken("secret", userID, time.Hour)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}
	if jti == "" {
		t.Fatal("expected a token id")
	}

	rc, err := auth.ValidateRefreshToken("secret", token)
	if err != nil {
		t.Fatalf("validate refresh token: %v", err)
	}
	if rc.UserID != userID {
		t.Errorf("user ID: got %v, want %v", rc.UserID, userID)
	}
	if rc.TokenID != jti {
		t.Errorf("token id: got %q, want %q", rc.TokenID, jti)
	}
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	refresh, _, err := auth.GenerateRefreshToken("secret", uuid.New(), time.Hour)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}
	if _, err := auth.ValidateToken("secret", refresh); err == nil {
		t.Fatal("refresh token must not pass as an access token")
	}

	access, err := auth.GenerateToken("secret", uuid.New(), auth.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := auth.ValidateRefreshToken("secret", access); err == nil {
		t.Fatal("access token must not pass as a refresh token")
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{auth.RoleAdmin, auth.RoleManager, auth.RoleWaiter} {
		if !auth.ValidRole(r) {
			t.Errorf("%q should be valid", r)
		}
	}
	if auth.ValidRole("OWNER") {
		t.Error("OWNER should not be valid")
	}
}
