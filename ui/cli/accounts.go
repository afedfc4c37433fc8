// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/toeirei/serverbase/internal/db"
	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/i18n"
	"github.com/toeirei/serverbase/internal/model"
	"github.com/toeirei/serverbase/internal/security"
	"github.com/toeirei/serverbase/internal/sshkey"
	"golang.org/x/crypto/ssh"
)

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage SSH and database accounts",
	}
	sshCmd := &cobra.Command{Use: "ssh", Short: "SSH accounts servers are reached with"}
	sshCmd.AddCommand(newSSHAccountAddCmd(), newSSHAccountListCmd())
	dbc := &cobra.Command{Use: "db", Short: "Database accounts of servers"}
	dbc.AddCommand(newDBAccountAddCmd(), newDBAccountListCmd())
	cmd.AddCommand(sshCmd, dbc)
	return cmd
}

func newSSHAccountAddCmd() *cobra.Command {
	var (
		name, username, keyFile, description string
		generate, askPassword, encrypt       bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an SSH account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			acc := &model.SSHAccount{Name: name, Username: username, Description: description}
			var pub string
			defer acc.SSHKey.Zero()
			defer acc.Password.Zero()

			switch {
			case generate && keyFile != "":
				return fault.Errorf(fault.ErrInvalid, "--generate and --key-file exclude each other")
			case generate:
				var pass security.Secret
				if encrypt {
					p, err := readSecret(cmd, i18n.T("prompt.new_passphrase"))
					if err != nil {
						return err
					}
					pass = p
					defer pass.Zero()
				}
				var err error
				pub, acc.SSHKey, err = sshkey.GenerateEd25519(name, pass)
				if err != nil {
					return err
				}
			case keyFile != "":
				data, err := os.ReadFile(keyFile)
				if err != nil {
					return fault.Wrap(fault.ErrNotFound, "ssh accounts add", err)
				}
				acc.SSHKey = security.Secret(data)
				if err := sshkey.CheckPrivateKey(acc.SSHKey); err != nil {
					var missing *ssh.PassphraseMissingError
					if !errors.As(err, &missing) {
						return fault.Wrap(fault.ErrInvalid, "ssh accounts add", err)
					}
				}
			}
			if askPassword {
				pw, err := readSecret(cmd, i18n.T("prompt.password"))
				if err != nil {
					return err
				}
				acc.Password = pw
			}

			if err := app.reg.AddSSHAccount(cmd.Context(), acc); err != nil {
				return reportError(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("accounts.added", acc.Name, acc.ID, acc.SEOName))
			if pub != "" {
				fmt.Fprintln(cmd.OutOrStdout(), pub)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&username, "username", "", "Login user")
	cmd.Flags().StringVar(&description, "description", "", "Free text description")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "Read the private key from this file")
	cmd.Flags().BoolVar(&generate, "generate", false, "Generate a new ed25519 key and print its public half")
	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "Protect a generated key with a passphrase")
	cmd.Flags().BoolVar(&askPassword, "ask-password", false, "Prompt for a login password")
	return cmd
}

func newSSHAccountListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List SSH accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts, err := app.store.ListSSHAccounts(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(accounts))
			for _, a := range accounts {
				rows = append(rows, []string{
					strconv.FormatInt(a.ID, 10), a.Name, a.SEOName, a.Username,
					yesNo(!a.SSHKey.Empty()), yesNo(!a.Password.Empty()),
				})
				a.SSHKey.Zero()
				a.Password.Zero()
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "SEONAME", "USER", "KEY", "PASSWORD"}, rows)
			return nil
		},
	}
}

func newDBAccountAddCmd() *cobra.Command {
	var name, username string
	var withRoot bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a database account; passwords are prompted for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			acc := &model.DatabaseAccount{Name: name, Username: username}
			defer acc.Password.Zero()
			defer acc.RootPassword.Zero()

			pw, err := readSecret(cmd, i18n.T("prompt.password"))
			if err != nil {
				return err
			}
			acc.Password = pw
			if withRoot {
				if acc.RootPassword, err = readSecret(cmd, i18n.T("prompt.root_password")); err != nil {
					return err
				}
			}
			if err := app.reg.AddDatabaseAccount(cmd.Context(), acc); err != nil {
				return reportError(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("accounts.added", acc.Name, acc.ID, acc.SEOName))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&username, "username", "", "Database user")
	cmd.Flags().BoolVar(&withRoot, "root-password", false, "Also prompt for the root password")
	return cmd
}

func newDBAccountListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List database accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts, err := app.store.ListDatabaseAccounts(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(accounts))
			for _, a := range accounts {
				rows = append(rows, []string{strconv.FormatInt(a.ID, 10), a.Name, a.SEOName, a.Username, yesNo(!a.RootPassword.Empty())})
				a.Password.Zero()
				a.RootPassword.Zero()
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "SEONAME", "USER", "ROOT"}, rows)
			return nil
		},
	}
}

// newPartyCmd builds the providers and customers commands, which only
// differ in their table.
func newPartyCmd(use string, e db.Entity) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: "Manage " + use,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <name>",
			Short: "Add one of the " + use,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p := &model.Party{Name: args[0]}
				if err := app.reg.AddParty(cmd.Context(), e, p); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("accounts.added", p.Name, p.ID, p.SEOName))
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List " + use,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				parties, err := app.store.ListParties(cmd.Context(), e)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(parties))
				for _, p := range parties {
					rows = append(rows, []string{strconv.FormatInt(p.ID, 10), p.Name, p.SEOName})
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "SEONAME"}, rows)
				return nil
			},
		},
	)
	return cmd
}

func yesNo(b bool) string {
	if b {
		return i18n.T("yes")
	}
	return i18n.T("no")
}
