package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sshprint/internal/config"
	"sshprint/internal/core"
	"sshprint/internal/db"
	"sshprint/internal/session"
)

var submitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Print a file on a remote queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runSubmit(cmd, cfg, args[0])
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringP("queue", "q", "", "target queue (default from config)")
	submitCmd.Flags().IntP("copies", "n", 1, "number of copies")
	submitCmd.Flags().String("duplex", "", "duplex mode: one-sided, two-sided-long-edge, two-sided-short-edge")
	submitCmd.Flags().String("paper", "", "paper size, e.g. a4 or letter")
	submitCmd.Flags().Bool("landscape", false, "print in landscape orientation")
	submitCmd.Flags().Int("number-up", 0, "pages per sheet")
	submitCmd.Flags().String("pages", "", "page range, e.g. 1-4,7")
	submitCmd.Flags().String("password", "", "SSH password (keyring and key file are tried otherwise)")
	submitCmd.Flags().BoolP("wait", "w", false, "wait until all copies reach a terminal state")
	submitCmd.Flags().Duration("timeout", 10*time.Minute, "how long to wait with --wait")
}

func runSubmit(cmd *cobra.Command, cfg *config.Config, filePath string) error {
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("cannot read %s: %w", filePath, err)
	}

	queue, _ := cmd.Flags().GetString("queue")
	if queue == "" {
		queue = cfg.Queues.Default
	}
	if queue == "" {
		return fmt.Errorf("no queue given and no default queue configured")
	}

	settings := core.DefaultSettings()
	if copies, _ := cmd.Flags().GetInt("copies"); copies > 0 {
		settings.Copies = copies
	}
	if duplex, _ := cmd.Flags().GetString("duplex"); duplex != "" {
		settings.Duplex = core.DuplexMode(duplex)
	}
	if paper, _ := cmd.Flags().GetString("paper"); paper != "" {
		settings.PaperSize = paper
	}
	if landscape, _ := cmd.Flags().GetBool("landscape"); landscape {
		settings.Orientation = core.OrientationLandscape
	}
	if numberUp, _ := cmd.Flags().GetInt("number-up"); numberUp > 0 {
		settings.PagesPerSheet = numberUp
	}
	if pages, _ := cmd.Flags().GetString("pages"); pages != "" {
		settings.PageRange = pages
	}

	if err := db.Init(db.Config{Path: cfg.Database.Path}); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	password, _ := cmd.Flags().GetString("password")

	manager, serializer, err := connectSession(cfg, password)
	if err != nil {
		return err
	}
	defer serializer.Stop()
	defer manager.Disconnect()

	stager, err := sessionStager(manager, cfg.Staging.RemoteDir)
	if err != nil {
		return err
	}
	defer stager.Close()

	bus := core.NewBus(0)
	store := core.NewJobStore(&db.JobPersister{}, bus)
	orchestrator := core.NewOrchestrator(store, serializer, func() (core.Stager, error) {
		return stager, nil
	}, bus)

	ctx := context.Background()
	jobs, result, err := orchestrator.Submit(ctx, filePath, queue, settings)

	for _, job := range jobs {
		fmt.Printf("%s  %-12s  %s\n", job.ID, job.Status, job.Name)
	}
	if err != nil {
		return fmt.Errorf("%d of %d copies failed: %w", result.FailureCount, len(jobs), err)
	}
	fmt.Printf("submitted %d job(s) to queue %s\n", result.SuccessCount, queue)

	// A real submission supersedes any draft saved for the same file.
	db.Drafts.DeleteDraft(ctx, filePath)

	if wait, _ := cmd.Flags().GetBool("wait"); wait {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		return waitForJobs(ctx, cfg, manager, serializer, bus, store, jobs, timeout)
	}
	return nil
}

// waitForJobs polls the remote queue until every submitted job reaches
// a terminal state or the timeout expires.
func waitForJobs(ctx context.Context, cfg *config.Config, manager *session.Manager, serializer *session.Serializer, bus *core.Bus, store *core.JobStore, jobs []*core.PrintJob, timeout time.Duration) error {
	queues := make([]string, 0, 1)
	seen := make(map[string]bool)
	for _, job := range jobs {
		if !seen[job.Queue] {
			seen[job.Queue] = true
			queues = append(queues, job.Queue)
		}
	}

	poller := core.NewQueuePoller(serializer, manager, bus, queues, 5*time.Second)
	poller.Start()
	defer poller.Stop()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		allDone := true
		for _, job := range jobs {
			current, err := store.Get(job.ID)
			if err != nil {
				continue
			}
			if !current.Status.Terminal() {
				allDone = false
				break
			}
		}
		if allDone {
			for _, job := range jobs {
				current, _ := store.Get(job.ID)
				fmt.Printf("%s  %-12s  %s\n", current.ID, current.Status, current.Name)
			}
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %s waiting for jobs to finish", timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
