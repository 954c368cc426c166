package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndValidate(t *testing.T) {
	mgr := NewJWTManager("test-secret-key-123")
	token, err := mgr.Issue("user-42", "game-1", "game-2")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := mgr.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != "user-42" || claims.Subject != "user-42" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if !claims.CanAccess("game-2") || claims.CanAccess("game-3") {
		t.Errorf("unexpected game scope %v", claims.Games)
	}
}

func TestAdminAccessesEverything(t *testing.T) {
	mgr := NewJWTManager("s")
	token, _ := mgr.IssueAdmin("ops")
	claims, err := mgr.ValidateToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if !claims.CanAccess("any-game") {
		t.Error("admin should access any game")
	}
	var none *Claims
	if none.CanAccess("any-game") {
		t.Error("nil claims must not grant access")
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := NewJWTManager("secret-one").Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewJWTManager("secret-two").ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	mgr := NewJWTManager("test-secret")
	if _, err := mgr.ValidateToken("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := mgr.ValidateToken(""); !errors.Is(err, ErrMissingToken) {
		t.Errorf("expected ErrMissingToken, got %v", err)
	}
}

func TestExpiredToken(t *testing.T) {
	mgr := &JWTManager{secret: []byte("test-secret"), expiry: -time.Second}
	token, err := mgr.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := mgr.ValidateToken(token); err == nil {
		t.Error("expected error for expired token")
	}
}
