package ssh

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sshprint/internal/config"
)

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".ssh", "id_ed25519"), expandTilde("~/.ssh/id_ed25519"))

	// Forms that are not "~/..." pass through untouched.
	assert.Equal(t, "~", expandTilde("~"))
	assert.Equal(t, "~bob/.ssh/id_rsa", expandTilde("~bob/.ssh/id_rsa"))
	assert.Equal(t, "/etc/keys/id_rsa", expandTilde("/etc/keys/id_rsa"))
	assert.Equal(t, "", expandTilde(""))
}

func TestNewClient_BareTildeKeyFile(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")

	cfg := config.ConnectionConfig{
		Host:     "printhost",
		Port:     22,
		Username: "alice",
		KeyFile:  "~",
	}

	// A key_file of exactly "~" is a config mistake; it must come back
	// as an error, never a crash.
	assert.NotPanics(t, func() {
		_, err := NewClient(cfg, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no usable authentication method")
	})
}
