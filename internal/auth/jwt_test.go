package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/cardroom-server/internal/store"
)

func testJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "cardroom",
		Audience: "cardroom-clients",
		TTL:      time.Hour,
	}
}

func TestJWTSignAndParse(t *testing.T) {
	cfg := testJWTConfig()
	level := store.LevelUser | store.LevelRegistered | store.LevelModerator

	token, err := cfg.sign("alice", level, time.Now())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := cfg.parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserName != "alice" || claims.Subject != "alice" {
		t.Fatalf("unexpected identity %q/%q", claims.UserName, claims.Subject)
	}
	if claims.Level != level {
		t.Fatalf("level = %v, want %v", claims.Level, level)
	}
	if claims.Guest() {
		t.Fatal("registered user reported as guest")
	}
}

func TestJWTRejects(t *testing.T) {
	cfg := testJWTConfig()

	expired, err := cfg.sign("alice", store.LevelUser, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("sign expired: %v", err)
	}

	other := testJWTConfig()
	other.Audience = "someone-else"
	foreign, err := other.sign("alice", store.LevelUser, time.Now())
	if err != nil {
		t.Fatalf("sign foreign: %v", err)
	}

	forged := testJWTConfig()
	forged.Secret = []byte("not-the-secret")
	badSig, err := forged.sign("alice", store.LevelUser, time.Now())
	if err != nil {
		t.Fatalf("sign forged: %v", err)
	}

	for name, token := range map[string]string{
		"expired":   expired,
		"audience":  foreign,
		"signature": badSig,
		"garbage":   "not.a.token",
	} {
		if _, err := cfg.parse(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestGuestClaims(t *testing.T) {
	cfg := testJWTConfig()
	token, err := cfg.sign("visitor", store.LevelUser, time.Now())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := cfg.parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !claims.Guest() {
		t.Fatal("unregistered user should be a guest")
	}
}
