package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/swarmcore/swarmcore/internal/jobstore"
	"github.com/swarmcore/swarmcore/internal/swarmconfig"
	"github.com/swarmcore/swarmcore/internal/swarmcoord"
)

func buildRunCmd() *cobra.Command {
	var (
		configPath string
		goal       string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a swarm against a goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := swarmconfig.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if errs := swarmconfig.ValidateConfig(cfg); len(errs) > 0 {
				return fmt.Errorf("invalid config: %v", errs[0])
			}

			coord, store, err := buildCoordinator(cfg, slog.Default())
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := coord.Execute(cmd.Context(), swarmcoord.ExecuteInput{
				Goal:      goal,
				SessionID: uuid.New().String(),
			})
			if err != nil {
				return fmt.Errorf("execute: %w", err)
			}

			if err := recordRun(cmd.Context(), store, result); err != nil {
				slog.Warn("failed to persist run to job store", "error", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				payload, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(payload))
				return nil
			}

			fmt.Fprintf(out, "swarm %s finished with status %s\n", result.State.ID, result.State.Status)
			fmt.Fprintf(out, "%s\n", result.FinalResult)
			if result.Postback != nil {
				fmt.Fprintln(out, "\n--- postback ---")
				fmt.Fprintln(out, result.Postback.Content)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "swarm.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&goal, "goal", "", "Goal for the swarm to accomplish")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	cobra.CheckErr(cmd.MarkFlagRequired("goal"))
	return cmd
}

// recordRun persists one JobRecord per planned task so `swarmctl status`
// can later report on a completed run from the job store alone.
func recordRun(ctx context.Context, store jobstore.Store, result *swarmcoord.SwarmResult) error {
	if result.State.Plan == nil {
		return nil
	}
	now := time.Now()
	for _, task := range result.State.Plan.Tasks {
		status := jobstore.JobCompleted
		errMsg := ""
		resultText := ""
		if taskResult := result.State.TaskResults[task.ID]; taskResult != nil {
			if !taskResult.Success {
				status = jobstore.JobFailed
				errMsg = taskResult.Error
			}
			resultText = taskResult.Result
		}
		rec := jobstore.JobRecord{
			ID:        task.ID,
			SwarmID:   result.State.ID,
			TaskID:    task.ID,
			Role:      string(task.Role),
			Status:    status,
			Result:    resultText,
			Error:     errMsg,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := store.SaveJob(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
