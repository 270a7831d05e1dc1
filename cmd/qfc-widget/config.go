package main

import (
	"fmt"
	"os"

	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or persist the resolved configuration",
	}

	save := &cobra.Command{
		Use:   "save",
		Short: "Write the resolved settings (file, env and flags) to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString(config.FlagConfig)
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return errors.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", path)
			return nil
		},
	}
	save.Flags().Bool("force", false, "overwrite an existing file")

	cmd.AddCommand(save)
	return cmd
}
