package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sshprint/internal/core"
	"sshprint/internal/db"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a tracked print job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if err := db.Init(db.Config{Path: cfg.Database.Path}); err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		ctx := context.Background()
		jobID := args[0]

		job, err := db.Jobs.GetJobByID(ctx, jobID)
		if err != nil {
			return fmt.Errorf("job %s not found", jobID)
		}
		if job.Status.Terminal() {
			return fmt.Errorf("job %s is already %s", jobID, job.Status)
		}

		password, _ := cmd.Flags().GetString("password")

		manager, serializer, err := connectSession(cfg, password)
		if err != nil {
			return err
		}
		defer serializer.Stop()
		defer manager.Disconnect()

		store := core.NewJobStore(&db.JobPersister{}, nil)
		store.Load([]*core.PrintJob{job})

		orchestrator := core.NewOrchestrator(store, serializer, nil, nil)
		if err := orchestrator.Cancel(ctx, jobID); err != nil {
			return err
		}

		updated, _ := store.Get(jobID)
		fmt.Printf("%s  %s\n", updated.ID, updated.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)

	cancelCmd.Flags().String("password", "", "SSH password (keyring and key file are tried otherwise)")
}
