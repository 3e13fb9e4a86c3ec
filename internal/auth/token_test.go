package auth

import (
	"testing"

	"github.com/spec-kit/servicedesk/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)
	opdID := "opd-1"
	user := &domain.User{ID: "user-1", Role: domain.RoleTechnician, OPDID: &opdID}

	token, expiresAt, err := tm.GenerateToken(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if expiresAt.IsZero() {
		t.Fatal("expiry not set")
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("UserID = %s, want %s", claims.UserID, user.ID)
	}
	if claims.Role != domain.RoleTechnician {
		t.Errorf("Role = %s, want %s", claims.Role, domain.RoleTechnician)
	}
	if claims.OPDID == nil || *claims.OPDID != opdID {
		t.Errorf("OPDID = %v, want %s", claims.OPDID, opdID)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", 60)
	verifier := NewTokenManager("secret-b", 60)

	token, _, err := issuer.GenerateToken(&domain.User{ID: "user-1", Role: domain.RoleHelpdesk})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := verifier.ParseToken(token); err == nil {
		t.Fatal("token signed with another secret should not validate")
	}
}

func TestParseBearer(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)
	mw := NewAuthMiddleware(tm, nil)

	token, _, err := tm.GenerateToken(&domain.User{ID: "user-1", Role: domain.RoleHelpdesk})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := mw.ParseBearer("Bearer " + token)
	if err != nil {
		t.Fatalf("parse bearer: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %s, want user-1", claims.UserID)
	}

	if _, err := mw.ParseBearer(""); err == nil {
		t.Fatal("missing header should be rejected")
	}
	if _, err := mw.ParseBearer(token); err == nil {
		t.Fatal("header without Bearer scheme should be rejected")
	}
}
