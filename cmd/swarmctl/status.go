package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swarmcore/swarmcore/internal/jobstore"
	"github.com/swarmcore/swarmcore/internal/swarmconfig"
)

func buildStatusCmd() *cobra.Command {
	var (
		configPath string
		swarmID    string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recorded job status for a swarm run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := swarmconfig.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			store, err := jobstore.Open(cfg.Store.DSN)
			if err != nil {
				return fmt.Errorf("open job store: %w", err)
			}
			defer store.Close()

			jobs, err := store.ListJobsBySwarm(cmd.Context(), swarmID)
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintf(out, "No jobs recorded for swarm %s.\n", swarmID)
				return nil
			}

			for _, job := range jobs {
				fmt.Fprintf(out, "%s [%s] %s: %s\n", job.TaskID, job.Role, job.Status, summarize(job))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "swarm.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&swarmID, "swarm-id", "", "Swarm run ID to show")
	cobra.CheckErr(cmd.MarkFlagRequired("swarm-id"))
	return cmd
}

func summarize(job jobstore.JobRecord) string {
	if job.Status == jobstore.JobFailed {
		return job.Error
	}
	if len(job.Result) > 80 {
		return job.Result[:77] + "..."
	}
	return job.Result
}
