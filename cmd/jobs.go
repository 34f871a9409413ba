package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sshprint/internal/db"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List tracked print jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if err := db.Init(db.Config{Path: cfg.Database.Path}); err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		jobs, err := db.Jobs.ListJobs(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}

		status, _ := cmd.Flags().GetString("status")

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tQUEUE\tREMOTE\tCREATED\tNAME")
		for _, job := range jobs {
			if status != "" && string(job.Status) != status {
				continue
			}
			remote := job.RemoteID
			if remote == "" {
				remote = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				job.ID, job.Status, job.Queue, remote,
				job.CreatedAt.Format("2006-01-02 15:04"), job.Name)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)

	jobsCmd.Flags().StringP("status", "s", "", "only show jobs with this status")
}
