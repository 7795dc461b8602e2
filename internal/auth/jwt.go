package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vovakirdan/cardroom-server/internal/store"
)

// ErrInvalidToken wraps every reason a session token is refused.
var ErrInvalidToken = errors.New("invalid token")

// Claims carries the session identity. Guests get a token too so the HTTP API
// can tell who is calling, but it never restores a registered account.
type Claims struct {
	UserName string          `json:"user_name"`
	Level    store.UserLevel `json:"level"`
	jwt.RegisteredClaims
}

// Guest reports whether the token was issued to an unregistered session.
func (c *Claims) Guest() bool {
	return !c.Level.Has(store.LevelRegistered)
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

func (cfg *JWTConfig) sign(userName string, level store.UserLevel, now time.Time) (string, error) {
	claims := Claims{
		UserName: userName,
		Level:    level,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userName,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
		},
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
}

func (cfg *JWTConfig) parse(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return cfg.Secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.UserName == "" {
		return nil, fmt.Errorf("%w: missing user name", ErrInvalidToken)
	}
	return claims, nil
}
