package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sshprint/internal/api"
	"sshprint/internal/archive"
	"sshprint/internal/config"
	"sshprint/internal/core"
	"sshprint/internal/db"
	"sshprint/internal/session"
	"sshprint/internal/ssh"
	"sshprint/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the print service with its HTTP API",
	Long: `Start the long-running service: it holds the SSH session, polls the
remote queues, drives submitted jobs through their lifecycle, and
exposes everything over an authenticated HTTP API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Server.Port = port
		}

		return runServe(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "override the configured HTTP port")
}

// stagerCache holds the SFTP stager for the current session. Stagers
// ride on the SSH connection, so each reconnect needs a fresh one.
type stagerCache struct {
	mu        sync.Mutex
	stager    *ssh.Stager
	manager   *session.Manager
	remoteDir string
}

func (sc *stagerCache) onStatusChange(status session.Status) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if status.State == session.StateConnected {
		client, ok := sc.manager.Conn().(*ssh.Client)
		if !ok {
			return
		}
		stager, err := ssh.NewStager(client, sc.remoteDir)
		if err != nil {
			log.Printf("[serve] failed to open sftp channel: %v", err)
			return
		}
		sc.stager = stager
		return
	}

	if sc.stager != nil {
		sc.stager.Close()
		sc.stager = nil
	}
}

func (sc *stagerCache) source() (core.Stager, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.stager == nil {
		return nil, session.ErrNotConnected
	}
	return sc.stager, nil
}

func runServe(cfg *config.Config) error {
	if err := db.Init(db.Config{Path: cfg.Database.Path}); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	bus := core.NewBus(0)

	serializer := session.NewSerializer(0)
	serializer.Start()
	defer serializer.Stop()

	manager := session.NewManager(serializer, session.SSHDialer)

	cache := &stagerCache{manager: manager, remoteDir: cfg.Staging.RemoteDir}
	manager.OnStatusChange(cache.onStatusChange)
	manager.OnStatusChange(func(status session.Status) {
		s := status
		bus.Publish(core.Event{Type: core.EventConnectionChanged, Status: &s})
	})

	store := core.NewJobStore(&db.JobPersister{}, bus)
	if jobs, err := db.Jobs.ListJobs(context.Background()); err != nil {
		log.Printf("[serve] failed to load persisted jobs: %v", err)
	} else {
		store.Load(jobs)
	}

	orchestrator := core.NewOrchestrator(store, serializer, cache.source, bus)

	poller := core.NewQueuePoller(serializer, manager, bus, cfg.Queues.Known, cfg.Poller.Interval)
	poller.Start()
	defer poller.Stop()

	sender := webhook.NewSender(webhook.Config{})
	sender.Attach(bus)
	sender.Start()
	defer sender.Stop()

	archiver, err := archive.NewArchiver(archive.Config{
		ArchivePath: cfg.Database.ArchivePath,
		ArchiveDays: cfg.Database.ArchiveDays,
	})
	if err != nil {
		return fmt.Errorf("failed to init archiver: %w", err)
	}
	archiver.Start()
	defer archiver.Stop()

	server, err := api.NewServer(api.Deps{
		Config:       cfg,
		Manager:      manager,
		Store:        store,
		Orchestrator: orchestrator,
		Poller:       poller,
		Bus:          bus,
		Archiver:     archiver,
	})
	if err != nil {
		return err
	}

	// Dial the configured host in the background; the API is usable
	// either way, and a failed attempt is visible in connection status.
	if cfg.Connection.Host != "" {
		go func() {
			if err := manager.Connect(cfg.Connection, ""); err != nil {
				log.Printf("[serve] initial connect failed: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("[serve] received %v, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[serve] http shutdown: %v", err)
	}

	if err := manager.Disconnect(); err != nil {
		log.Printf("[serve] disconnect: %v", err)
	}

	return nil
}
