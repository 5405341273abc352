package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swarmcore/swarmcore/internal/swarmconfig"
)

func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate swarm configuration",
	}
	cmd.AddCommand(buildConfigValidateCmd(), buildConfigInitCmd())
	return cmd
}

func buildConfigValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a swarm configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := swarmconfig.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			errs := swarmconfig.ValidateConfig(cfg)
			out := cmd.OutOrStdout()
			if len(errs) == 0 {
				fmt.Fprintln(out, "Configuration is valid.")
				return nil
			}

			fmt.Fprintln(out, "Configuration problems:")
			for _, e := range errs {
				fmt.Fprintf(out, "  - %s\n", e)
			}
			return fmt.Errorf("%d configuration problem(s) found", len(errs))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "swarm.yaml", "Path to YAML configuration file")
	return cmd
}

func buildConfigInitCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter swarm configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := swarmconfig.ParseConfigYAML(nil)
			if err != nil {
				return err
			}
			cfg.Enabled = true
			if err := swarmconfig.SaveConfig(cfg, configPath); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written: %s\n", configPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "swarm.yaml", "Path to YAML configuration file")
	return cmd
}
