package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sshprint/internal/core"
)

var queuesCmd = &cobra.Command{
	Use:   "queues [queue...]",
	Short: "Show pending jobs on the remote queues",
	Long: `List the remote spooler's pending jobs. With no arguments the known
queues from the config file are polled; otherwise only the named ones.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		queues := args
		if len(queues) == 0 {
			queues = cfg.Queues.Known
		}
		if len(queues) == 0 {
			return fmt.Errorf("no queues given and none configured under queues.known")
		}

		password, _ := cmd.Flags().GetString("password")

		manager, serializer, err := connectSession(cfg, password)
		if err != nil {
			return err
		}
		defer serializer.Stop()
		defer manager.Disconnect()

		ctx := context.Background()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

		for _, queue := range queues {
			output, err := serializer.Execute(ctx, core.BuildListCommand(queue))
			if err != nil {
				fmt.Fprintf(os.Stderr, "queue %s: %v\n", queue, err)
				continue
			}

			entries := core.ParseQueueListing(output)
			if len(entries) == 0 {
				fmt.Fprintf(w, "%s\t(empty)\t\t\n", queue)
				continue
			}
			for _, entry := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d bytes\n", queue, entry.RemoteID, entry.Owner, entry.SizeBytes)
			}
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(queuesCmd)

	queuesCmd.Flags().String("password", "", "SSH password (keyring and key file are tried otherwise)")
}
