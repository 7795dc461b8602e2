package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/cardroom-server/internal/store"
)

// Schema is the full database layout. Every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	level         INTEGER NOT NULL DEFAULT 3,
	priv_level    TEXT NOT NULL DEFAULT 'NONE',
	real_name     TEXT NOT NULL DEFAULT '',
	country       TEXT NOT NULL DEFAULT '',
	active        BOOLEAN NOT NULL DEFAULT 1,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS user_lists (
	owner  TEXT NOT NULL,
	list   TEXT NOT NULL,
	target TEXT NOT NULL,
	PRIMARY KEY (owner, list, target)
);

CREATE TABLE IF NOT EXISTS bans (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	user_name      TEXT NOT NULL DEFAULT '',
	address        TEXT NOT NULL DEFAULT '',
	client_id      TEXT NOT NULL DEFAULT '',
	moderator      TEXT NOT NULL DEFAULT '',
	reason         TEXT NOT NULL DEFAULT '',
	visible_reason TEXT NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL,
	ends_at        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS chat_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	sender      TEXT NOT NULL,
	address     TEXT NOT NULL DEFAULT '',
	target_type TEXT NOT NULL,
	target_id   INTEGER NOT NULL DEFAULT 0,
	target_name TEXT NOT NULL DEFAULT '',
	text        TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS games (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS forgot_password (
	name       TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_log_sender ON chat_log(sender, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_bans_user ON bans(user_name);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, nil)
}

// NewWithSetup opens the database, applies the schema and then runs setup.
// Tests use it to seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser inserts a new account.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *store.User) (*store.User, error) {
	priv := user.PrivLevel
	if priv == "" {
		priv = store.PrivNone
	}
	query := `
		INSERT INTO users (name, password_hash, level, priv_level, real_name, country, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		user.Name, user.PasswordHash, int(user.Level), priv, user.RealName, user.Country, user.Active)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetUserByName(ctx, user.Name)
}

// GetUserByName retrieves an account by name.
func (s *SQLiteStore) GetUserByName(ctx context.Context, name string) (*store.User, error) {
	query := `
		SELECT id, name, password_hash, level, priv_level, real_name, country, active, created_at
		FROM users
		WHERE name = ?
	`
	var (
		user  store.User
		level int
	)
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&user.ID, &user.Name, &user.PasswordHash, &level, &user.PrivLevel,
		&user.RealName, &user.Country, &user.Active, &user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	user.Level = store.UserLevel(level)
	return &user, nil
}

// SetUserLevel replaces the level bits of an account.
func (s *SQLiteStore) SetUserLevel(ctx context.Context, name string, level store.UserLevel) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET level = ? WHERE name = ?`, int(level), name)
	if err != nil {
		return fmt.Errorf("update user level: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %q: %w", name, store.ErrNotFound)
	}
	return nil
}

// AddForgotPassword records a pending password reset.
func (s *SQLiteStore) AddForgotPassword(ctx context.Context, name string) error {
	query := `INSERT OR REPLACE INTO forgot_password (name, created_at) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, query, name, time.Now().Unix()); err != nil {
		return fmt.Errorf("insert forgot password: %w", err)
	}
	return nil
}

// RemoveForgotPassword clears a pending password reset. Missing rows are not an error.
func (s *SQLiteStore) RemoveForgotPassword(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM forgot_password WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete forgot password: %w", err)
	}
	return nil
}

// ==== SocialStore implementation ====

// ListMembers returns the targets of owner's list, sorted by name.
func (s *SQLiteStore) ListMembers(ctx context.Context, owner, list string) ([]string, error) {
	query := `SELECT target FROM user_lists WHERE owner = ? AND list = ? ORDER BY target`
	rows, err := s.db.QueryContext(ctx, query, owner, list)
	if err != nil {
		return nil, fmt.Errorf("query list: %w", err)
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("scan list member: %w", err)
		}
		members = append(members, target)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate list: %w", err)
	}
	return members, nil
}

// AddToList adds target to owner's list. Adding twice is a no-op.
func (s *SQLiteStore) AddToList(ctx context.Context, owner, list, target string) error {
	query := `INSERT OR IGNORE INTO user_lists (owner, list, target) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, owner, list, target); err != nil {
		return fmt.Errorf("insert list member: %w", err)
	}
	return nil
}

// RemoveFromList removes target from owner's list.
func (s *SQLiteStore) RemoveFromList(ctx context.Context, owner, list, target string) error {
	query := `DELETE FROM user_lists WHERE owner = ? AND list = ? AND target = ?`
	result, err := s.db.ExecContext(ctx, query, owner, list, target)
	if err != nil {
		return fmt.Errorf("delete list member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("list member %q: %w", target, store.ErrNotFound)
	}
	return nil
}

// ==== BanStore implementation ====

// AddBan stores a ban. A zero EndsAt makes it permanent.
func (s *SQLiteStore) AddBan(ctx context.Context, ban *store.Ban) error {
	created := ban.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	var endsAt int64
	if !ban.EndsAt.IsZero() {
		endsAt = ban.EndsAt.Unix()
	}
	query := `
		INSERT INTO bans (user_name, address, client_id, moderator, reason, visible_reason, created_at, ends_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		ban.UserName, ban.Address, ban.ClientID, ban.Moderator, ban.Reason, ban.VisibleReason,
		created.Unix(), endsAt)
	if err != nil {
		return fmt.Errorf("insert ban: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	ban.ID = id
	ban.CreatedAt = created
	return nil
}

// ActiveBan returns the ban with the latest end matching name, address or client id.
func (s *SQLiteStore) ActiveBan(ctx context.Context, name, address, clientID string, now time.Time) (*store.Ban, error) {
	query := `
		SELECT id, user_name, address, client_id, moderator, reason, visible_reason, created_at, ends_at
		FROM bans
		WHERE ((user_name <> '' AND user_name = ?)
			OR (address <> '' AND address = ?)
			OR (client_id <> '' AND client_id = ?))
			AND (ends_at = 0 OR ends_at > ?)
		ORDER BY ends_at = 0 DESC, ends_at DESC
		LIMIT 1
	`
	var (
		ban             store.Ban
		created, endsAt int64
	)
	err := s.db.QueryRowContext(ctx, query, name, address, clientID, now.Unix()).Scan(
		&ban.ID, &ban.UserName, &ban.Address, &ban.ClientID, &ban.Moderator,
		&ban.Reason, &ban.VisibleReason, &created, &endsAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query ban: %w", err)
	}
	ban.CreatedAt = time.Unix(created, 0)
	if endsAt != 0 {
		ban.EndsAt = time.Unix(endsAt, 0)
	}
	return &ban, nil
}

// ==== ChatLogStore implementation ====

// LogMessage appends a chat line to the log.
func (s *SQLiteStore) LogMessage(ctx context.Context, msg *store.ChatMessage) error {
	created := msg.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	query := `
		INSERT INTO chat_log (sender, address, target_type, target_id, target_name, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.Sender, msg.Address, string(msg.TargetType), msg.TargetID, msg.TargetName, msg.Text, created.Unix())
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id
	msg.CreatedAt = created
	return nil
}

// ChatHistory returns logged lines matching filter, newest first.
func (s *SQLiteStore) ChatHistory(ctx context.Context, filter store.ChatFilter) ([]store.ChatMessage, error) {
	query := `
		SELECT id, sender, address, target_type, target_id, target_name, text, created_at
		FROM chat_log
		WHERE (? = '' OR sender = ?)
			AND (? = '' OR target_type = ?)
			AND (? = '' OR target_name = ?)
			AND created_at >= ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	var since int64
	if !filter.Since.IsZero() {
		since = filter.Since.Unix()
	}
	target := string(filter.TargetType)

	rows, err := s.db.QueryContext(ctx, query,
		filter.Sender, filter.Sender, target, target, filter.TargetName, filter.TargetName, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	messages := []store.ChatMessage{}
	for rows.Next() {
		var (
			msg        store.ChatMessage
			targetType string
			created    int64
		)
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Address, &targetType, &msg.TargetID,
			&msg.TargetName, &msg.Text, &created); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msg.TargetType = store.ChatTarget(targetType)
		msg.CreatedAt = time.Unix(created, 0)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat history: %w", err)
	}
	return messages, nil
}

// ==== GameStore implementation ====

// NextGameID allocates a game id from the games sequence.
func (s *SQLiteStore) NextGameID(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO games (created_at) VALUES (?)`, time.Now().Unix())
	if err != nil {
		return -1, fmt.Errorf("allocate game id: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return -1, fmt.Errorf("get last insert id: %w", err)
	}
	return int(id), nil
}
