// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/toeirei/serverbase/internal/config"
	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/i18n"
)

// newConfigCmd works on the configuration only; it never opens the
// registry database.
func newConfigCmd() *cobra.Command {
	var cfg config.Config
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or write the configuration",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = loadConfig(cmd)
			return err
		},
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	var system, force bool
	var path string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to a config file",
		Long: `Writes the configuration currently in effect (defaults, environment
and flags) to the user config file, or the system one with --system. An
existing file is only replaced with --force.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := path
			if target == "" {
				p, err := config.GetConfigPath(system)
				if err != nil {
					return err
				}
				target = p
			}
			if _, err := os.Stat(target); err == nil && !force {
				return fault.Errorf(fault.ErrInvalid, "%s already exists, use --force to replace it", target)
			}
			if err := config.WriteConfigFileTo(&cfg, target); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("config.written", target))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&system, "system", false, "Write the system-wide config file")
	initCmd.Flags().BoolVar(&force, "force", false, "Replace an existing file")
	initCmd.Flags().StringVar(&path, "path", "", "Write to this path instead")

	cmd.AddCommand(show, initCmd)
	return cmd
}
