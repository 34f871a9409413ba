package cmd

import (
	"fmt"

	"sshprint/internal/config"
	"sshprint/internal/session"
	"sshprint/internal/ssh"
)

// connectSession dials the configured host for a one-shot command and
// returns the bound serializer alongside the manager. The caller must
// Disconnect and Stop when done.
func connectSession(cfg *config.Config, password string) (*session.Manager, *session.Serializer, error) {
	if cfg.Connection.Host == "" {
		return nil, nil, fmt.Errorf("no remote host configured; set connection.host in the config file")
	}

	serializer := session.NewSerializer(0)
	serializer.Start()

	manager := session.NewManager(serializer, session.SSHDialer)
	if err := manager.Connect(cfg.Connection, password); err != nil {
		serializer.Stop()
		return nil, nil, err
	}

	return manager, serializer, nil
}

// sessionStager opens an SFTP stager on the session's live connection.
func sessionStager(manager *session.Manager, remoteDir string) (*ssh.Stager, error) {
	client, ok := manager.Conn().(*ssh.Client)
	if !ok {
		return nil, session.ErrNotConnected
	}
	return ssh.NewStager(client, remoteDir)
}
