// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/toeirei/serverbase/internal/i18n"
)

func newProxiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxies",
		Short: "Manage the SSH proxies a server is reached through",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list <server>",
			Short: "List the proxies of a server",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				proxies, err := app.reg.ListProxies(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if len(proxies) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), i18n.T("proxies.none"))
					return nil
				}
				rows := make([][]string, 0, len(proxies))
				for _, p := range proxies {
					rows = append(rows, []string{strconv.FormatInt(p.ID, 10), p.Domain, p.HostPort()})
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "DOMAIN", "ADDRESS"}, rows)
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <server> <proxy>",
			Short: "Let a server be reached through proxy",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := app.reg.AddProxy(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("proxies.added", args[1], args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "update <server> <old-proxy> <new-proxy>",
			Short: "Replace one proxy of a server",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := app.reg.UpdateProxy(cmd.Context(), args[0], args[1], args[2]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("proxies.updated", args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <server> [proxy]",
			Short: "Remove one proxy, or every proxy when none is given",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				var proxy any
				if len(args) == 2 {
					proxy = args[1]
				}
				n, err := app.reg.DeleteProxy(cmd.Context(), args[0], proxy)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("proxies.removed", n))
				return nil
			},
		},
	)
	return cmd
}

func newDomainsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domains",
		Short: "Manage the domains linked to a server",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list <server>",
			Short: "List the domains linked to a server",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				domains, err := app.reg.ListDomains(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for _, d := range domains {
					fmt.Fprintln(cmd.OutOrStdout(), d.Domain)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <server> [domain...]",
			Short: "Replace every domain link of a server",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				domains := args[1:]
				if err := app.reg.UpdateDomains(cmd.Context(), args[0], domains); err != nil {
					return reportError(cmd, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("domains.set", len(domains), args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <server> <domain>",
			Short: "Link one domain to a server",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := app.reg.AddDomain(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("domains.added", args[1], args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <server> [domain]",
			Short: "Unlink one domain, or every domain when none is given",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				domain := ""
				if len(args) == 2 {
					domain = args[1]
				}
				n, err := app.reg.RemoveDomain(cmd.Context(), args[0], domain)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("domains.removed", n))
				return nil
			},
		},
	)
	return cmd
}
