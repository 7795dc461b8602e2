package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/cardroom-server/internal/store"
	"github.com/vovakirdan/cardroom-server/internal/store/sqlite"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestUserAdd(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cardroom.db")
	configPath := filepath.Join(dir, "config.yaml")

	out, err := execute(t, "user", "add", "marshal", "--password", "s3cret!", "--moderator",
		"--config", configPath, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "registered marshal")

	st, err := sqlite.New(dbPath)
	require.NoError(t, err)
	defer st.Close()

	user, err := st.GetUserByName(context.Background(), "marshal")
	require.NoError(t, err)
	assert.True(t, user.Level.Has(store.LevelModerator))
	assert.True(t, user.Level.Has(store.LevelRegistered))
	assert.False(t, user.Level.Has(store.LevelAdmin))
}

func TestUserAddRequiresPassword(t *testing.T) {
	_, err := execute(t, "user", "add", "marshal", "--config", filepath.Join(t.TempDir(), "config.yaml"))
	assert.Error(t, err)
}
