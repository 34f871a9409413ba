package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sshprint/internal/db"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and job summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("sshprint %s (%s, %s)\n\n", buildVersion, buildCommit, buildDate)

		host := cfg.Connection.Host
		if host == "" {
			host = "(not configured)"
		} else {
			host = fmt.Sprintf("%s@%s:%d", cfg.Connection.Username, cfg.Connection.Host, cfg.Connection.Port)
		}
		fmt.Printf("remote host:   %s\n", host)
		fmt.Printf("known queues:  %s\n", joinOrDash(cfg.Queues.Known))
		fmt.Printf("default queue: %s\n", orDash(cfg.Queues.Default))
		fmt.Printf("database:      %s\n", cfg.Database.Path)
		fmt.Printf("staging dir:   %s\n", cfg.Staging.RemoteDir)

		if err := db.Init(db.Config{Path: cfg.Database.Path}); err != nil {
			return nil
		}
		defer db.Close()

		jobs, err := db.Jobs.ListJobs(context.Background())
		if err != nil {
			return nil
		}

		counts := make(map[string]int)
		for _, job := range jobs {
			counts[string(job.Status)]++
		}

		fmt.Printf("\njobs: %d total\n", len(jobs))
		for _, status := range []string{"pending", "uploading", "queued", "printing", "completed", "failed", "cancelled"} {
			if counts[status] > 0 {
				fmt.Printf("  %-10s %d\n", status, counts[status])
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
