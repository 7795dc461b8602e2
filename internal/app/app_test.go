package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/cardroom-server/internal/config"
)

func TestNewCreatesConfiguredRooms(t *testing.T) {
	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "cardroom.db")
	cfg.Rooms = []config.RoomConfig{
		{ID: 1, Name: "Lobby", AutoJoin: true},
		{ID: 2, Name: "Legacy", GameTypes: []string{"Constructed", "Draft"}},
	}
	logger := zerolog.Nop()

	a, err := New(&cfg, &logger)
	require.NoError(t, err)
	defer a.cleanup()

	rooms := a.core.Rooms()
	require.Len(t, rooms, 2)
	assert.Equal(t, "Lobby", rooms[0].Name)
	assert.Equal(t, []string{"Constructed", "Draft"}, rooms[1].GameTypes)
	assert.Nil(t, a.bridge)
}

func TestNewRejectsDuplicateRooms(t *testing.T) {
	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "cardroom.db")
	cfg.Rooms = []config.RoomConfig{{ID: 1, Name: "a"}, {ID: 1, Name: "b"}}
	logger := zerolog.Nop()

	_, err := New(&cfg, &logger)
	assert.Error(t, err)
}

func TestSettings(t *testing.T) {
	sc := config.Default().Server
	sc.MaxUserTotal = 40
	sc.RequiredFeatures = []string{"judge"}

	s := Settings(sc)
	assert.Equal(t, sc.ID, s.ServerID)
	assert.Equal(t, 40, s.MaxUserTotal)
	assert.Equal(t, []string{"judge"}, s.RequiredFeatures)
	assert.Equal(t, 10*time.Second, s.RateLimits.CommandCountingInterval)
	assert.Equal(t, sc.MaxCommandCountPerInterval, s.RateLimits.MaxCommandCountPerInterval)
}
