package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/cardroom-server/internal/store"
	"github.com/vovakirdan/cardroom-server/internal/store/sqlite"
)

func newTestAuthService(t *testing.T) (*Service, *sqlite.SQLiteStore) {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		// Inactive account seeded directly, the way a pending registration looks.
		hash, err := HashPassword("sleeping")
		if err != nil {
			return err
		}
		_, err = db.Exec(`INSERT INTO users (name, password_hash, active) VALUES ('dormant', ?, 0)`, hash)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return NewService(st, jwtConfig), st
}

func TestRegister_RejectsInvalidUsername(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "ab", "password123", 0); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}

	// Should be validated after trimming whitespace.
	if _, err := svc.Register(ctx, " ab ", "password123", 0); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestRegister_RejectsInvalidPassword(t *testing.T) {
	svc, _ := newTestAuthService(t)

	if _, err := svc.Register(context.Background(), "alice", "123", 0); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	long := strings.Repeat("x", maxPasswordLen+1)
	if _, err := svc.Register(context.Background(), "alice", long, 0); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword for an overlong password, got %v", err)
	}
}

func TestRegister_DuplicateAndLevel(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "password123", store.LevelModerator)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	want := store.LevelUser | store.LevelRegistered | store.LevelModerator
	if user.Level != want {
		t.Fatalf("expected level %b, got %b", want, user.Level)
	}

	if _, err := svc.Register(ctx, "alice", "password123", 0); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "password123", 0); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tests := []struct {
		name     string
		user     string
		password string
		wantErr  error
	}{
		{name: "valid", user: "alice", password: "password123"},
		{name: "wrong password", user: "alice", password: "nope", wantErr: ErrInvalidCredentials},
		{name: "unknown user", user: "bob", password: "password123", wantErr: ErrUnknownUser},
		{name: "inactive", user: "dormant", password: "sleeping", wantErr: ErrInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Authenticate(ctx, tt.user, tt.password)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate: %v", err)
			}
			if user.Name != tt.user {
				t.Fatalf("unexpected user %q", user.Name)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "password123", 0); err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, err := svc.IssueToken("alice", store.LevelUser|store.LevelRegistered)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	user, err := svc.AuthenticateToken(ctx, token)
	if err != nil {
		t.Fatalf("AuthenticateToken: %v", err)
	}
	if user.Name != "alice" {
		t.Fatalf("unexpected user %q", user.Name)
	}

	guestToken, err := svc.IssueToken("visitor", store.LevelUser)
	if err != nil {
		t.Fatalf("IssueToken guest: %v", err)
	}
	if _, err := svc.AuthenticateToken(ctx, guestToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("guest tokens must not log in, got %v", err)
	}

	if _, err := svc.AuthenticateToken(ctx, "garbage"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
