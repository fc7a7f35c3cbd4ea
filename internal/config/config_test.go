package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	path := writeConfig(t, "server:\n  data_dir: "+dir+"\n")

	cfg, err := Load(path)
	req.NoError(err)
	req.Equal("minecraft", cfg.Server.Name)
	req.True(cfg.Logging.Enabled)
	req.True(cfg.Logging.LogTypes.Chat)
	req.False(cfg.Logging.LogTypes.Commands)
	req.True(cfg.Logging.FilterSensitive)
	req.Equal(1000, cfg.Logging.MaxMessageLength)
	req.Equal("sqlite", cfg.Database.Type)
	req.Equal(filepath.Join(dir, "chatlog.db"), cfg.Database.Path)
	req.Equal(10, cfg.Database.Pool.MaximumPoolSize)
	req.Equal(30*time.Second, cfg.Database.Pool.ConnectionTimeout)
	req.Equal(3, cfg.Pipeline.WriteWorkers)
	req.Equal(10*time.Second, cfg.Pipeline.ShutdownGrace)
	req.False(cfg.Retention.Enabled)
	req.True(cfg.Retention.Archive)
	req.Equal(filepath.Join(dir, "archive"), cfg.Retention.ArchiveDir)
	req.Equal("INFO", cfg.LogLevel)
}

func TestLoad_FileAndEnv(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	path := writeConfig(t, `
server:
  name: survival
  data_dir: `+dir+`
chat_logging:
  max_message_length: 256
  channels: [global, staff]
  excluded_players: [Alice]
  log_types:
    death_messages: false
pipeline:
  shutdown_grace: 3s
log_level: debug
`)
	t.Setenv("CHATLOG_SERVER_NAME", "creative")

	cfg, err := Load(path)
	req.NoError(err)
	req.Equal("creative", cfg.Server.Name)
	req.Equal(256, cfg.Logging.MaxMessageLength)
	req.Equal([]string{"global", "staff"}, cfg.Logging.Channels)
	req.Equal([]string{"Alice"}, cfg.Logging.ExcludedPlayers)
	req.False(cfg.Logging.LogTypes.DeathMessages)
	req.True(cfg.Logging.LogTypes.Chat)
	req.Equal(3*time.Second, cfg.Pipeline.ShutdownGrace)
	req.Equal("DEBUG", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	path := writeConfig(t, "server:\n  data_dir: "+dir+"\ndatabase:\n  type: postgres\n")

	_, err := Load(path)
	req.Error(err)
}

func TestHolder_ReloadSwapsSnapshot(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	path := writeConfig(t, "server:\n  name: a\n  data_dir: "+dir+"\n")

	cfg, err := Load(path)
	req.NoError(err)
	h := NewHolder(path, cfg)
	old := h.Get()

	req.NoError(os.WriteFile(path, []byte("server:\n  name: b\n  data_dir: "+dir+"\n"), 0644))
	_, err = h.Reload()
	req.NoError(err)

	req.Equal("b", h.Get().Server.Name)
	req.Equal("a", old.Server.Name)
}

func TestHolder_ReloadKeepsOldOnError(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	path := writeConfig(t, "server:\n  name: a\n  data_dir: "+dir+"\n")

	cfg, err := Load(path)
	req.NoError(err)
	h := NewHolder(path, cfg)

	req.NoError(os.WriteFile(path, []byte("chat_logging:\n  max_message_length: 1\nserver:\n  data_dir: "+dir+"\n"), 0644))
	_, err = h.Reload()
	req.Error(err)
	req.Equal("a", h.Get().Server.Name)
}
