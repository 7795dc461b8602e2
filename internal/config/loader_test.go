package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, resolved, err := Load(&logger, path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, Default().Addr, cfg.Addr)
	assert.Equal(t, time.Second, cfg.Server.ClientKeepAlive)
	require.Len(t, cfg.Rooms, 1)
	assert.Equal(t, "Lobby", cfg.Rooms[0].Name)

	_, err = os.Stat(path)
	assert.NoError(t, err, "default config should be written")
}

func TestLoadFileAndEnv(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
addr: ":9000"
server:
  max_games_per_user: 2
  idle_client_timeout: 30m
  required_features: [websocket, judge]
rooms:
  - id: 3
    name: Vintage
    join_message: hello
  - id: 4
    name: Draft
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("CARDROOM_SERVER_MAX_USER_TOTAL", "250")
	t.Setenv("CARDROOM_NATS_URL", "nats://127.0.0.1:4222")

	cfg, _, err := Load(&logger, path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 2, cfg.Server.MaxGamesPerUser)
	assert.Equal(t, 30*time.Minute, cfg.Server.IdleClientTimeout)
	assert.Equal(t, []string{"websocket", "judge"}, cfg.Server.RequiredFeatures)
	assert.Equal(t, 250, cfg.Server.MaxUserTotal)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATSURL)
	// untouched keys keep their defaults
	assert.Equal(t, 15, cfg.Server.MaxMessageCountPerInterval)

	require.Len(t, cfg.Rooms, 2)
	assert.Equal(t, RoomConfig{ID: 3, Name: "Vintage", JoinMessage: "hello"}, cfg.Rooms[0])
	assert.Equal(t, "Draft", cfg.Rooms[1].Name)
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":1", DatabasePath: "other.db", Server: ServerConfig{ID: 7}})

	assert.Equal(t, ":1", cfg.Addr)
	assert.Equal(t, "other.db", cfg.DatabasePath)
	assert.Equal(t, 7, cfg.Server.ID)
	assert.Equal(t, Default().LogLevel, cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty secret", func(c *Config) { c.JWTSecret = "" }},
		{"no queue", func(c *Config) { c.Server.OutboundQueue = 0 }},
		{"no tick", func(c *Config) { c.Server.ClientKeepAlive = 0 }},
		{"room id zero", func(c *Config) { c.Rooms = []RoomConfig{{ID: 0, Name: "void"}} }},
		{"duplicate rooms", func(c *Config) {
			c.Rooms = []RoomConfig{{ID: 2, Name: "a"}, {ID: 2, Name: "b"}}
		}},
	}

	base := Default()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestLoadRejectsInvalidRooms(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rooms:\n  - id: -1\n    name: broken\n"), 0o600))

	_, _, err := Load(&logger, path)
	assert.ErrorIs(t, err, ErrInvalid)
}
