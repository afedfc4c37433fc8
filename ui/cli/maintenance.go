// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/serverbase/internal/backup"
	"github.com/toeirei/serverbase/internal/db"
	"github.com/toeirei/serverbase/internal/i18n"
)

func newConnectorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connectors",
		Short: "Named database connections from the configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List configured connectors",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				rows := [][]string{}
				for _, name := range app.conns.Names() {
					c, _ := app.conns.Get(name)
					rows = append(rows, []string{name, c.Driver, orDash(c.Tunnel.Server)})
				}
				printTable(cmd.OutOrStdout(), []string{"NAME", "DRIVER", "TUNNEL"}, rows)
				return nil
			},
		},
		&cobra.Command{
			Use:   "ping <name>",
			Short: "Open a connector, ping it and close it again",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				start := time.Now()
				if err := app.conns.Ping(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("connectors.ping_ok", args[0], time.Since(start).Round(time.Millisecond)))
				return nil
			},
		},
	)
	return cmd
}

func newAuditCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the most recent audit log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := app.store.AuditLog(cmd.Context(), limit)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					strconv.FormatInt(e.ID, 10),
					e.Timestamp.Local().Format(time.DateTime),
					e.Username,
					e.Action,
					e.Details,
				})
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "TIME", "USER", "ACTION", "DETAILS"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Number of entries to show")
	return cmd
}

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup [output-file]",
		Short: "Create a compressed (zstd) JSON backup of the database",
		Long: `Dumps the entire registry, secrets included, into a single
Zstandard-compressed JSON file readable only by its owner.

If no output file is given, serverbase-backup-YYYY-MM-DD.json.zst is used.
'.zst' is appended to a given name that lacks it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := backup.DefaultFilename(time.Now())
			if len(args) == 1 {
				out = backup.EnsureExt(args[0])
			}
			fmt.Fprintln(cmd.ErrOrStderr(), i18n.T("backup.cli_starting"))
			if _, err := backup.Create(cmd.Context(), app.store, out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("backup.cli_success", out))
			return nil
		},
	}
}

func newRestoreCmd() *cobra.Command {
	var full, yes bool
	cmd := &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Restore a backup; integrates by default",
		Long: `Reads a backup written by 'serverbase backup'. By default only rows whose
keys are not taken yet are added. --full wipes every table first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if full && !yes && !confirm(cmd, i18n.T("restore.full_confirm")) {
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("aborted"))
				return nil
			}
			a, err := backup.Restore(cmd.Context(), app.store, args[0], !full)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("restore.cli_success", len(a.Servers), a.CreatedAt.Format(time.RFC3339)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "Perform a full, destructive restore (wipes all existing data first)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Registry database housekeeping",
	}
	var timeout int
	maintain := &cobra.Command{
		Use:   "maintain",
		Short: "Run engine specific maintenance (VACUUM, ANALYZE, OPTIMIZE)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
				defer cancel()
			}
			if err := db.RunDBMaintenance(ctx, app.cfg.Database.Type, app.cfg.Database.Dsn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("db.maintain_done", app.cfg.Database.Type))
			return nil
		},
	}
	maintain.Flags().IntVar(&timeout, "timeout", 0, "Timeout in seconds for maintenance (0 means no timeout)")
	cmd.AddCommand(maintain)
	return cmd
}
