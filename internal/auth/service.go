package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vovakirdan/cardroom-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when name/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnknownUser is returned when no account exists for the name.
	ErrUnknownUser = errors.New("unknown user")
	// ErrInactive is returned for accounts that were never activated.
	ErrInactive = errors.New("account not activated")
	// ErrUserExists is returned when trying to register with existing name.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when name doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

// Service verifies credentials against the user store and issues session tokens.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates an active account with a hashed password.
func (s *Service) Register(ctx context.Context, name, password string, level store.UserLevel) (*store.User, error) {
	name = strings.TrimSpace(name)
	if len(name) < 3 || len(name) > 32 {
		return nil, ErrInvalidUsername
	}
	if !validPassword(password) {
		return nil, ErrInvalidPassword
	}

	if existing, err := s.store.GetUserByName(ctx, name); err == nil && existing != nil {
		return nil, ErrUserExists
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, &store.User{
		Name:         name,
		PasswordHash: hashedPassword,
		Level:        level | store.LevelUser | store.LevelRegistered,
		PrivLevel:    store.PrivNone,
		Active:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate checks a name/password pair.
// It returns ErrUnknownUser when the name has no account.
func (s *Service) Authenticate(ctx context.Context, name, password string) (*store.User, error) {
	user, err := s.store.GetUserByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !passwordMatches(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrInactive
	}
	return user, nil
}

// AuthenticateToken resolves a session token back to its registered account.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (*store.User, error) {
	claims, err := s.jwtConfig.parse(token)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if claims.Guest() {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByName(ctx, claims.UserName)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.Active {
		return nil, ErrInactive
	}
	return user, nil
}

// IssueToken signs a session token for a logged-in user.
func (s *Service) IssueToken(name string, level store.UserLevel) (string, error) {
	token, err := s.jwtConfig.sign(name, level, time.Now())
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// ValidateToken checks a session token and returns its claims.
// Failures wrap ErrInvalidToken.
func (s *Service) ValidateToken(token string) (*Claims, error) {
	return s.jwtConfig.parse(token)
}
