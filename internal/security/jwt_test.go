package security

import (
	"testing"
	"time"

	"github.com/miky-rola/signals-backend/internal/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:        "test-secret",
		AccessExpiry:  30 * time.Minute,
		RefreshExpiry: 24 * time.Hour,
	}
}

func TestIssueTokenPair(t *testing.T) {
	cfg := testJWTConfig()

	pair, err := IssueTokenPair(cfg, 42, "trader@example.com")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	refreshClaims, errRefresh := ParseToken(cfg.Secret, pair.Refresh, TokenTypeRefresh)
	if errRefresh != nil {
		t.Fatalf("parse refresh: %v", errRefresh)
	}
	accessClaims, errAccess := ParseToken(cfg.Secret, pair.Access, TokenTypeAccess)
	if errAccess != nil {
		t.Fatalf("parse access: %v", errAccess)
	}

	if refreshClaims.UserID != 42 || accessClaims.UserID != 42 {
		t.Fatalf("expected user_id=42 in both tokens")
	}
	if refreshClaims.ID == "" || refreshClaims.ID != accessClaims.ID {
		t.Fatalf("expected access token to inherit the refresh JTI")
	}
}

func TestParseTokenRejectsWrongType(t *testing.T) {
	cfg := testJWTConfig()

	pair, err := IssueTokenPair(cfg, 7, "trader@example.com")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	if _, errParse := ParseToken(cfg.Secret, pair.Refresh, TokenTypeAccess); errParse == nil {
		t.Fatalf("expected refresh token to be rejected as access")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	cfg := testJWTConfig()

	pair, err := IssueTokenPair(cfg, 7, "trader@example.com")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	if _, errParse := ParseToken("other-secret", pair.Access, TokenTypeAccess); errParse == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(hash, "s3cret-pass") {
		t.Fatalf("expected password to verify")
	}
	if VerifyPassword(hash, "wrong-pass") {
		t.Fatalf("expected wrong password to fail")
	}
}
