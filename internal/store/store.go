package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// UserLevel is a bit set of account capabilities.
type UserLevel int

const (
	LevelUser       UserLevel = 1 << iota // any connected user
	LevelRegistered                       // has a password-protected account
	LevelModerator
	LevelAdmin
	LevelJudge
)

// Has reports whether every bit of flag is set.
func (l UserLevel) Has(flag UserLevel) bool {
	return l&flag == flag
}

// Privilege levels ordered from lowest to highest.
const (
	PrivNone    = "NONE"
	PrivVIP     = "VIP"
	PrivDonator = "DONATOR"
)

// PrivilegeRank orders privilege levels. Unknown values rank as none.
func PrivilegeRank(priv string) int {
	switch priv {
	case PrivVIP:
		return 1
	case PrivDonator:
		return 2
	default:
		return 0
	}
}

// User represents an account.
type User struct {
	ID           int64
	Name         string
	PasswordHash string
	Level        UserLevel
	PrivLevel    string
	RealName     string
	Country      string
	Active       bool
	CreatedAt    time.Time
}

// Ban is a server ban on a name, an address or a client id.
type Ban struct {
	ID            int64
	UserName      string
	Address       string
	ClientID      string
	Moderator     string
	Reason        string
	VisibleReason string
	CreatedAt     time.Time
	// EndsAt is zero for permanent bans.
	EndsAt time.Time
}

// Permanent reports whether the ban never expires.
func (b *Ban) Permanent() bool {
	return b.EndsAt.IsZero()
}

// ChatTarget is what a logged message was sent to.
type ChatTarget string

const (
	ChatTargetRoom ChatTarget = "room"
	ChatTargetUser ChatTarget = "user"
	ChatTargetGame ChatTarget = "game"
)

// ChatMessage is a logged chat line.
type ChatMessage struct {
	ID         int64
	Sender     string
	Address    string
	TargetType ChatTarget
	TargetID   int64
	TargetName string
	Text       string
	CreatedAt  time.Time
}

// ChatFilter narrows a chat log query. Zero fields match anything.
type ChatFilter struct {
	Sender     string
	TargetType ChatTarget
	TargetName string
	Since      time.Time
	Limit      int
}

// List names for per-user social lists.
const (
	ListBuddy  = "buddy"
	ListIgnore = "ignore"
)

// UserStore handles account persistence.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) (*User, error)
	GetUserByName(ctx context.Context, name string) (*User, error)
	SetUserLevel(ctx context.Context, name string, level UserLevel) error
	RemoveForgotPassword(ctx context.Context, name string) error
	AddForgotPassword(ctx context.Context, name string) error
}

// SocialStore handles buddy and ignore lists.
type SocialStore interface {
	ListMembers(ctx context.Context, owner, list string) ([]string, error)
	AddToList(ctx context.Context, owner, list, target string) error
	RemoveFromList(ctx context.Context, owner, list, target string) error
}

// BanStore handles server bans.
type BanStore interface {
	AddBan(ctx context.Context, ban *Ban) error
	// ActiveBan returns the longest running ban matching any of the given keys,
	// or ErrNotFound.
	ActiveBan(ctx context.Context, name, address, clientID string, now time.Time) (*Ban, error)
}

// ChatLogStore persists chat lines.
type ChatLogStore interface {
	LogMessage(ctx context.Context, msg *ChatMessage) error
	ChatHistory(ctx context.Context, filter ChatFilter) ([]ChatMessage, error)
}

// GameStore allocates game identifiers.
type GameStore interface {
	// NextGameID returns a fresh, monotonically increasing game id.
	NextGameID(ctx context.Context) (int, error)
}

// Store aggregates all store interfaces.
type Store interface {
	UserStore
	SocialStore
	BanStore
	ChatLogStore
	GameStore
	Close() error
}
