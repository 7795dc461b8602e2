package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	// MaxFramesPerMinute caps inbound websocket frames per connection; zero disables it.
	MaxFramesPerMinute int `mapstructure:"max_frames_per_minute" yaml:"max_frames_per_minute"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	// NATSURL enables the inter-server link when set.
	NATSURL string `mapstructure:"nats_url" yaml:"nats_url"`

	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Rooms  []RoomConfig `mapstructure:"rooms" yaml:"rooms"`
}

// ServerConfig holds the game server limits and policies.
type ServerConfig struct {
	ID   int    `mapstructure:"id" yaml:"id"`
	Name string `mapstructure:"name" yaml:"name"`

	ClientKeepAlive         time.Duration `mapstructure:"client_keep_alive" yaml:"client_keep_alive"`
	MaxPlayerInactivityTime time.Duration `mapstructure:"max_player_inactivity_time" yaml:"max_player_inactivity_time"`
	IdleClientTimeout       time.Duration `mapstructure:"idle_client_timeout" yaml:"idle_client_timeout"`

	MessageCountingInterval    time.Duration `mapstructure:"message_counting_interval" yaml:"message_counting_interval"`
	MaxMessageCountPerInterval int           `mapstructure:"max_message_count_per_interval" yaml:"max_message_count_per_interval"`
	MaxMessageSizePerInterval  int           `mapstructure:"max_message_size_per_interval" yaml:"max_message_size_per_interval"`
	CommandCountingInterval    time.Duration `mapstructure:"command_counting_interval" yaml:"command_counting_interval"`
	MaxCommandCountPerInterval int           `mapstructure:"max_command_count_per_interval" yaml:"max_command_count_per_interval"`

	MaxGamesPerUser int `mapstructure:"max_games_per_user" yaml:"max_games_per_user"`
	MaxUserTotal    int `mapstructure:"max_user_total" yaml:"max_user_total"`

	PermitUnregisteredUsers bool `mapstructure:"permit_unregistered_users" yaml:"permit_unregistered_users"`
	RequireClientID         bool `mapstructure:"require_client_id" yaml:"require_client_id"`
	PermitCreateGameAsJudge bool `mapstructure:"permit_create_game_as_judge" yaml:"permit_create_game_as_judge"`

	ServerFeatures   []string `mapstructure:"server_features" yaml:"server_features"`
	RequiredFeatures []string `mapstructure:"required_features" yaml:"required_features"`

	MaxChatHistory int    `mapstructure:"max_chat_history" yaml:"max_chat_history"`
	LoginMessage   string `mapstructure:"login_message" yaml:"login_message"`
	OutboundQueue  int    `mapstructure:"outbound_queue" yaml:"outbound_queue"`
}

// RoomConfig describes a room created at startup.
type RoomConfig struct {
	ID             int      `mapstructure:"id" yaml:"id"`
	Name           string   `mapstructure:"name" yaml:"name"`
	Description    string   `mapstructure:"description" yaml:"description,omitempty"`
	Permission     string   `mapstructure:"permission" yaml:"permission,omitempty"`
	PrivilegeLevel string   `mapstructure:"privilege_level" yaml:"privilege_level,omitempty"`
	JoinMessage    string   `mapstructure:"join_message" yaml:"join_message,omitempty"`
	AutoJoin       bool     `mapstructure:"auto_join" yaml:"auto_join,omitempty"`
	GameTypes      []string `mapstructure:"game_types" yaml:"game_types,omitempty"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":4748",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		MaxMessageBytes:    1 << 20,
		MaxFramesPerMinute: 600,
		LogLevel:           "info",
		DatabasePath:       "cardroom.db",
		JWTSecret:          "change-me",
		JWTIssuer:          "cardroom",
		JWTAudience:        "cardroom-clients",
		JWTTTL:             24 * time.Hour,
		Server: ServerConfig{
			ID:                         1,
			Name:                       "cardroom",
			ClientKeepAlive:            time.Second,
			MaxPlayerInactivityTime:    15 * time.Second,
			IdleClientTimeout:          time.Hour,
			MessageCountingInterval:    10 * time.Second,
			MaxMessageCountPerInterval: 15,
			MaxMessageSizePerInterval:  1000,
			CommandCountingInterval:    10 * time.Second,
			MaxCommandCountPerInterval: 20,
			MaxGamesPerUser:            5,
			PermitUnregisteredUsers:    true,
			PermitCreateGameAsJudge:    true,
			MaxChatHistory:             100,
			LoginMessage:               "Welcome to cardroom.",
			OutboundQueue:              64,
		},
		Rooms: []RoomConfig{{
			ID:          1,
			Name:        "Lobby",
			Description: "General chat and casual games",
			Permission:  "none",
			AutoJoin:    true,
			JoinMessage: "Be nice.",
		}},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Command line flags are applied this way.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFile != "" {
		c.LogFile = other.LogFile
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.NATSURL != "" {
		c.NATSURL = other.NATSURL
	}
	if other.Server.ID != 0 {
		c.Server.ID = other.Server.ID
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if len(c.JWTSecret) == 0 {
		return fmt.Errorf("%w: jwt_secret is empty", ErrInvalid)
	}
	if c.Server.OutboundQueue <= 0 {
		return fmt.Errorf("%w: server.outbound_queue must be positive", ErrInvalid)
	}
	if c.Server.ClientKeepAlive <= 0 {
		return fmt.Errorf("%w: server.client_keep_alive must be positive", ErrInvalid)
	}
	seen := make(map[int]bool, len(c.Rooms))
	for _, r := range c.Rooms {
		if r.Name == "" {
			return fmt.Errorf("%w: room %d has no name", ErrInvalid, r.ID)
		}
		if r.ID < 1 {
			return fmt.Errorf("%w: room %q has id %d", ErrInvalid, r.Name, r.ID)
		}
		if seen[r.ID] {
			return fmt.Errorf("%w: duplicate room id %d", ErrInvalid, r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}
