// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/serverbase/internal/db"
	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/i18n"
	"github.com/toeirei/serverbase/internal/model"
	"github.com/toeirei/serverbase/internal/registry"
	"github.com/toeirei/serverbase/internal/remote"
)

func newServersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "servers",
		Aliases: []string{"server", "srv"},
		Short:   "Manage registered servers",
	}
	cmd.AddCommand(
		newServersListCmd(),
		newServersShowCmd(),
		newServersAddCmd(),
		newServersUpdateCmd(),
		newServersEraseCmd(),
		newServersStatusCmd(),
		newServersExecCmd(),
		newServersPushCmd(),
		newServersFetchCmd(),
		newServersTrustCmd(),
		newProxiesCmd(),
		newDomainsCmd(),
	)
	return cmd
}

func newServersListCmd() *cobra.Command {
	var f db.ServerFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			servers, err := app.reg.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			if len(servers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("servers.none"))
				return nil
			}
			rows := make([][]string, 0, len(servers))
			for _, s := range servers {
				rows = append(rows, []string{
					strconv.FormatInt(s.ID, 10),
					s.Domain,
					orDash(s.IPv4),
					strconv.Itoa(s.Port),
					orDash(s.Username),
					orDash(s.Status),
				})
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "DOMAIN", "IPV4", "PORT", "USER", "STATUS"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "Only list servers with this status")
	cmd.Flags().BoolVar(&f.AnyStatus, "all", false, "List servers of every status")
	cmd.Flags().StringVar(&f.Search, "search", "", "Substring of domain or seodomain")
	cmd.Flags().Int64Var(&f.CustomerID, "customer", 0, "Filter by customer id")
	cmd.Flags().Int64Var(&f.ProviderID, "provider", 0, "Filter by provider id")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "Maximum number of rows")
	return cmd
}

func newServersShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <server>",
		Short: "Show a server with its proxy chain and domains",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			srv, err := app.reg.Get(ctx, args[0], registry.GetOptions{ReturnProxies: true, IncludeInactive: true})
			if err != nil {
				return err
			}
			if srv == nil {
				return fault.Errorf(fault.ErrNotSpecified, "no server given")
			}
			w := cmd.OutOrStdout()
			heading(w, srv.String())
			due := ""
			if srv.BillDueDate != nil {
				due = srv.BillDueDate.Format("2006-01-02")
			}
			cost := ""
			if srv.Cost != 0 {
				cost = strconv.FormatFloat(srv.Cost, 'f', 2, 64)
			}
			printFields(w,
				"seodomain", srv.SEODomain,
				"ipv4", srv.IPv4,
				"ipv6", srv.IPv6,
				"port", strconv.Itoa(srv.Port),
				"user", srv.Username,
				"status", srv.Status,
				"description", srv.Description,
				"cost", cost,
				"interval", srv.Interval,
				"bill due", due,
			)

			if len(srv.Proxies) > 0 {
				hops := make([]string, 0, len(srv.Proxies))
				for i := len(srv.Proxies) - 1; i >= 0; i-- {
					hops = append(hops, srv.Proxies[i].HostPort())
				}
				hops = append(hops, srv.HostPort())
				heading(w, i18n.T("servers.route"))
				fmt.Fprintln(w, strings.Join(hops, " -> "))
			}

			domains, err := app.reg.ListDomains(ctx, srv.ID)
			if err != nil {
				return err
			}
			if len(domains) > 0 {
				heading(w, i18n.T("servers.domains"))
				for _, d := range domains {
					fmt.Fprintln(w, d.Domain)
				}
			}
			return nil
		},
	}
}

// serverFlags are the editable columns of a server.
type serverFlags struct {
	domain, ipv4, ipv6, description, status, interval, billDue string
	port                                                       int
	sshAccount, dbAccount, provider, customer                  int64
	cost                                                       float64
	allowSSHD, checkPassword                                   bool
	domains                                                    []string
}

func (f *serverFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.domain, "domain", "", "Primary domain")
	fl.StringVar(&f.ipv4, "ipv4", "", "IPv4 address (resolved from the domain when empty)")
	fl.StringVar(&f.ipv6, "ipv6", "", "IPv6 address")
	fl.IntVar(&f.port, "port", 0, "SSH port (default 22)")
	fl.Int64Var(&f.sshAccount, "ssh-account", 0, "SSH account id")
	fl.Int64Var(&f.dbAccount, "db-account", 0, "Database account id")
	fl.Int64Var(&f.provider, "provider", 0, "Provider id")
	fl.Int64Var(&f.customer, "customer", 0, "Customer id")
	fl.StringVar(&f.description, "description", "", "Free text description")
	fl.StringVar(&f.status, "status", "", "Status; empty means active")
	fl.Float64Var(&f.cost, "cost", 0, "Billing cost")
	fl.StringVar(&f.interval, "interval", "", "Billing interval")
	fl.StringVar(&f.billDue, "bill-due", "", "Next bill due date (YYYY-MM-DD)")
	fl.BoolVar(&f.allowSSHD, "allow-sshd-modification", false, "Allow changes to the sshd configuration")
	fl.BoolVar(&f.checkPassword, "check-password", false, "Require a strong password on the ssh account")
	fl.StringSliceVar(&f.domains, "domains", nil, "Additional domains to link (replaces existing links on update)")
}

// apply copies the flags onto s. With onlyChanged, untouched flags keep the
// current value.
func (f *serverFlags) apply(cmd *cobra.Command, s *model.Server, onlyChanged bool) error {
	set := func(name string) bool { return !onlyChanged || cmd.Flags().Changed(name) }
	if set("domain") {
		s.Domain = f.domain
	}
	if set("ipv4") {
		s.IPv4 = f.ipv4
	}
	if set("ipv6") {
		s.IPv6 = f.ipv6
	}
	if set("port") {
		s.Port = f.port
	}
	if set("ssh-account") {
		s.SSHAccountID = f.sshAccount
	}
	if set("db-account") {
		s.DatabaseAccountID = f.dbAccount
	}
	if set("provider") {
		s.ProviderID = f.provider
	}
	if set("customer") {
		s.CustomerID = f.customer
	}
	if set("description") {
		s.Description = f.description
	}
	if set("status") {
		s.Status = f.status
	}
	if set("cost") {
		s.Cost = f.cost
	}
	if set("interval") {
		s.Interval = f.interval
	}
	if set("allow-sshd-modification") {
		s.AllowSSHDModification = f.allowSSHD
	}
	if set("bill-due") {
		s.BillDueDate = nil
		if f.billDue != "" {
			t, err := time.Parse("2006-01-02", f.billDue)
			if err != nil {
				return fault.Errorf(fault.ErrInvalid, "bill-due %q is not a date", f.billDue)
			}
			s.BillDueDate = &t
		}
	}
	return nil
}

func newServersAddCmd() *cobra.Command {
	var f serverFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := &registry.ServerInput{Domains: f.domains}
			if err := f.apply(cmd, &in.Server, false); err != nil {
				return err
			}
			srv, err := app.reg.Insert(cmd.Context(), in, registry.ValidateOptions{CheckPassword: f.checkPassword})
			if err != nil {
				return reportError(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("servers.added", srv.Domain, srv.ID))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newServersUpdateCmd() *cobra.Command {
	var f serverFlags
	cmd := &cobra.Command{
		Use:   "update <server>",
		Short: "Change a server; only the given flags are applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cur, err := app.reg.Get(ctx, args[0], registry.GetOptions{IncludeInactive: true})
			if err != nil {
				return err
			}
			if cur == nil {
				return fault.Errorf(fault.ErrNotSpecified, "no server given")
			}
			in := &registry.ServerInput{Server: *cur}
			if cmd.Flags().Changed("domains") {
				in.Domains = f.domains
				if in.Domains == nil {
					in.Domains = []string{}
				}
			}
			if err := f.apply(cmd, &in.Server, true); err != nil {
				return err
			}
			srv, err := app.reg.Update(ctx, in, registry.ValidateOptions{CheckPassword: f.checkPassword})
			if err != nil {
				return reportError(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("servers.updated", srv.Domain, srv.ID))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newServersEraseCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "erase <server>",
		Short: "Delete a server with its host keys, domain links and proxy edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirm(cmd, i18n.T("servers.erase_confirm", args[0])) {
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("aborted"))
				return nil
			}
			if err := app.reg.Erase(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("servers.erased", args[0]))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newServersStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <server> <status|active>",
		Short: "Set the status of a server; 'active' clears it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := args[1]
			if status == "active" {
				status = model.StatusActive
			}
			if err := app.reg.SetStatus(cmd.Context(), args[0], status); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("servers.status_set", args[0], orDash(status)))
			return nil
		},
	}
}

// askPassphrase fills the passphrase mailbox of the native runner.
func askPassphrase(cmd *cobra.Command) error {
	pass, err := readSecret(cmd, i18n.T("prompt.passphrase"))
	if err != nil {
		return err
	}
	defer pass.Zero()
	app.passphrases.Set(pass)
	return nil
}

func newServersExecCmd() *cobra.Command {
	var (
		timeout time.Duration
		persist bool
		askPass bool
	)
	cmd := &cobra.Command{
		Use:   "exec <server> <command...>",
		Short: "Run a command on a server and print its output",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if askPass {
				if err := askPassphrase(cmd); err != nil {
					return err
				}
			}
			ident := args[0]
			if persist && !strings.HasPrefix(ident, registry.PersistPrefix) {
				ident = registry.PersistPrefix + ident
			}
			spec := remote.CommandSpec{Command: strings.Join(args[1:], " "), Timeout: timeout}
			lines, err := app.exec.Exec(cmd.Context(), ident, spec)
			for _, l := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), l)
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the command after this duration")
	cmd.Flags().BoolVar(&persist, "persist", false, "Keep the connection open for later calls in this process")
	cmd.Flags().BoolVar(&askPass, "ask-passphrase", false, "Prompt for the passphrase of encrypted keys")
	return cmd
}

func newServersPushCmd() *cobra.Command {
	var askPass bool
	cmd := &cobra.Command{
		Use:   "push <server> <local-file> <remote-path>",
		Short: "Upload a file over SFTP",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if askPass {
				if err := askPassphrase(cmd); err != nil {
					return err
				}
			}
			n, err := app.exec.Push(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("transfer.done", n, args[2]))
			return nil
		},
	}
	cmd.Flags().BoolVar(&askPass, "ask-passphrase", false, "Prompt for the passphrase of encrypted keys")
	return cmd
}

func newServersFetchCmd() *cobra.Command {
	var askPass bool
	cmd := &cobra.Command{
		Use:   "fetch <server> <remote-path> <local-file>",
		Short: "Download a file over SFTP",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if askPass {
				if err := askPassphrase(cmd); err != nil {
					return err
				}
			}
			n, err := app.exec.Fetch(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("transfer.done", n, args[2]))
			return nil
		},
	}
	cmd.Flags().BoolVar(&askPass, "ask-passphrase", false, "Prompt for the passphrase of encrypted keys")
	return cmd
}

func newServersTrustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trust <server>",
		Short: "Fetch and store the host key of a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kh, err := app.reg.TrustHost(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("trust_host.added_success", kh.Hostname, kh.Algorithm, kh.Fingerprint))
			return nil
		},
	}
}
