package ssh

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"sshprint/internal/config"
)

const keyringService = "sshprint"

// PassphraseRequiredError indicates that a passphrase is needed to
// decrypt the configured private key.
type PassphraseRequiredError struct {
	KeyFile string
}

func (e *PassphraseRequiredError) Error() string {
	return fmt.Sprintf("passphrase required for encrypted key: %s", e.KeyFile)
}

// Client is the single live handle to the authenticated remote shell.
// It is owned by the session manager and recreated on every reconnect.
type Client struct {
	conn *ssh.Client
}

// KeyringAccount returns the keyring key under which the connection
// password (or key passphrase) is stored.
func KeyringAccount(cfg config.ConnectionConfig) string {
	return fmt.Sprintf("%s@%s", cfg.Username, cfg.Host)
}

// StorePassword saves the secret for a connection in the OS keyring so
// it never appears in the serialized config.
func StorePassword(cfg config.ConnectionConfig, password string) error {
	return keyring.Set(keyringService, KeyringAccount(cfg), password)
}

// NewClient dials the remote print host and authenticates using the
// configured method. Password-based connections read the secret from
// the OS keyring when one is not supplied directly.
func NewClient(cfg config.ConnectionConfig, password string) (*Client, error) {
	if cfg.UsePassword && password == "" {
		stored, err := keyring.Get(keyringService, KeyringAccount(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve password from keyring: %w", err)
		}
		password = stored
	}

	var authMethods []ssh.AuthMethod

	if socket := os.Getenv("SSH_AUTH_SOCK"); socket != "" {
		if conn, err := net.Dial("unix", socket); err == nil {
			agentClient := agent.NewClient(conn)
			authMethods = append(authMethods, ssh.PublicKeysCallback(agentClient.Signers))
		}
	}

	keyFile := expandTilde(cfg.KeyFile)

	if keyFile == "" && !cfg.UsePassword {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			keyFile = filepath.Join(homeDir, ".ssh", "id_rsa")
		}
	}

	if keyFile != "" {
		keyBytes, err := os.ReadFile(keyFile)
		if err != nil {
			log.Printf("[ssh] failed to read key file %s: %v", keyFile, err)
		} else {
			signer, err := ssh.ParsePrivateKey(keyBytes)
			if err != nil {
				if _, ok := err.(*ssh.PassphraseMissingError); ok {
					if password == "" {
						return nil, &PassphraseRequiredError{KeyFile: keyFile}
					}
					signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(password))
					if err != nil {
						return nil, &PassphraseRequiredError{KeyFile: keyFile}
					}
				} else {
					log.Printf("[ssh] failed to parse private key %s: %v", keyFile, err)
				}
			}

			if signer != nil {
				authMethods = append(authMethods, ssh.PublicKeys(signer))
			}
		}
	}

	if cfg.UsePassword && password != "" {
		authMethods = append(authMethods, ssh.Password(password))
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no usable authentication method for %s", KeyringAccount(cfg))
	}

	sshConfig := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         cfg.DialTimeout,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	return &Client{conn: conn}, nil
}

// expandTilde resolves a leading "~/" against the current user's home
// directory. Other tilde forms ("~", "~user/...") are left alone and
// surface later as an unreadable key file rather than being mangled.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, path[2:])
}

// Close tears down the underlying connection. Safe to call on a client
// whose dial failed.
func (c *Client) Close() error {
	if c != nil && c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
