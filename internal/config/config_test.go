package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 22, cfg.Connection.Port)
	assert.Equal(t, 3, cfg.Connection.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Connection.RetryBaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Poller.Interval)
	assert.Equal(t, ".sshprint/spool", cfg.Staging.RemoteDir)
	assert.Equal(t, "./data/sshprint.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
server:
  port: 9090
connection:
  host: printhost.example.edu
  username: alice
  use_password: true
queues:
  known: [labprint, poster]
  default: labprint
poller:
  interval: 10s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "printhost.example.edu", cfg.Connection.Host)
	assert.Equal(t, "alice", cfg.Connection.Username)
	assert.True(t, cfg.Connection.UsePassword)
	assert.Equal(t, []string{"labprint", "poster"}, cfg.Queues.Known)
	assert.Equal(t, "labprint", cfg.Queues.Default)
	assert.Equal(t, 10*time.Second, cfg.Poller.Interval)

	// Untouched sections keep their defaults.
	assert.Equal(t, 22, cfg.Connection.Port)
	assert.Equal(t, ".sshprint/spool", cfg.Staging.RemoteDir)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := defaults()
	assert.NoError(t, valid.Validate())

	badPort := defaults()
	badPort.Server.Port = 0
	assert.Error(t, badPort.Validate())

	badAttempts := defaults()
	badAttempts.Connection.MaxAttempts = 0
	assert.Error(t, badAttempts.Validate())

	badInterval := defaults()
	badInterval.Poller.Interval = 0
	assert.Error(t, badInterval.Validate())

	badLevel := defaults()
	badLevel.Logging.Level = "chatty"
	assert.Error(t, badLevel.Validate())

	unknownDefault := defaults()
	unknownDefault.Queues.Known = []string{"labprint"}
	unknownDefault.Queues.Default = "poster"
	assert.Error(t, unknownDefault.Validate())

	knownDefault := defaults()
	knownDefault.Queues.Known = []string{"labprint", "poster"}
	knownDefault.Queues.Default = "poster"
	assert.NoError(t, knownDefault.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SSHPRINT_PORT", "9999")
	t.Setenv("SSHPRINT_HOST", "envhost")
	t.Setenv("SSHPRINT_USER", "bob")

	cfg := LoadFromEnv()
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "envhost", cfg.Connection.Host)
	assert.Equal(t, "bob", cfg.Connection.Username)
}
