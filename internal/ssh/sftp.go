package ssh

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
)

// Stager uploads local files to a remote spool directory so the remote
// shell can act on them. One Stager is opened per connected session and
// shares the session's underlying transport.
type Stager struct {
	client    *sftp.Client
	remoteDir string
}

// NewStager opens an SFTP subsystem channel on the connected client.
func NewStager(c *Client, remoteDir string) (*Stager, error) {
	if c == nil || c.conn == nil {
		return nil, fmt.Errorf("ssh client not connected")
	}

	sftpClient, err := sftp.NewClient(c.conn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sftp channel: %w", err)
	}

	return &Stager{
		client:    sftpClient,
		remoteDir: remoteDir,
	}, nil
}

// Stage copies a local file into the remote spool directory and returns
// the remote path. File names are prefixed with a timestamp so repeated
// submissions of the same document never collide.
func (s *Stager) Stage(localPath string) (string, error) {
	localFile, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open local file: %w", err)
	}
	defer localFile.Close()

	if err := s.client.MkdirAll(s.remoteDir); err != nil {
		return "", fmt.Errorf("failed to create remote spool directory: %w", err)
	}

	name := fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(localPath))
	remotePath := path.Join(s.remoteDir, name)

	remoteFile, err := s.client.Create(remotePath)
	if err != nil {
		return "", fmt.Errorf("failed to create remote file: %w", err)
	}
	defer remoteFile.Close()

	if _, err := io.Copy(remoteFile, localFile); err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return remotePath, nil
}

// Remove deletes a previously staged file. Callers treat failures as
// advisory; a leftover spool file does not affect the submitted job.
func (s *Stager) Remove(remotePath string) error {
	if err := s.client.Remove(remotePath); err != nil {
		return fmt.Errorf("failed to remove staged file: %w", err)
	}
	return nil
}

// Close releases the SFTP channel. The SSH connection itself stays up.
func (s *Stager) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
