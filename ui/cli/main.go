// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/toeirei/serverbase/buildvars"
	"github.com/toeirei/serverbase/internal/config"
	"github.com/toeirei/serverbase/internal/connector"
	"github.com/toeirei/serverbase/internal/db"
	"github.com/toeirei/serverbase/internal/i18n"
	"github.com/toeirei/serverbase/internal/logging"
	"github.com/toeirei/serverbase/internal/registry"
	"github.com/toeirei/serverbase/internal/remote"
	"github.com/toeirei/serverbase/internal/state"
	"github.com/toeirei/serverbase/internal/vault"
)

var version = "dev"   // this will be set by the linker
var gitCommit = "dev" // set at build time with the short commit SHA
var buildDate = ""    // set at build time (RFC3339)

// services is everything a command needs, built once per invocation.
type services struct {
	cfg         config.Config
	store       *db.BunStore
	reg         *registry.Registry
	exec        *remote.Executor
	native      *remote.NativeRunner
	conns       *connector.Manager
	passphrases *state.Mailbox
}

func (s *services) Close() {
	if s == nil {
		return
	}
	if s.native != nil {
		s.native.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}

// app is set by the root command's PersistentPreRunE.
var app *services

// newServices opens the registry database and wires the remote stack
// according to cfg.
func newServices(cfg config.Config) (*services, error) {
	store, err := db.New(cfg.Database.Type, cfg.Database.Dsn)
	if err != nil {
		return nil, errors.New(i18n.T("config.error_init_db", err))
	}

	opts := registry.OptionsFromConfig(cfg)
	opts.Scanner = remote.Scanner{Timeout: cfg.SSH.ConnectTimeout}
	reg := registry.New(store, opts)

	s := &services{cfg: cfg, store: store, reg: reg, passphrases: &state.Mailbox{}}
	var runner remote.Runner
	switch cfg.SSH.Runner {
	case config.RunnerOpenSSH:
		runner = remote.NewOpenSSHRunner(cfg.SSH)
	default:
		s.native = remote.NewNativeRunner(store, cfg.SSH)
		s.native.Passphrases = s.passphrases
		runner = s.native
	}
	s.exec = remote.NewExecutor(reg, vault.New(cfg.SSH.KeyDir), runner, store)

	var tunnel connector.Tunneler
	if s.native != nil {
		tunnel = s.exec
	}
	s.conns = connector.New(cfg.Connectors, tunnel)
	return s, nil
}

// loadConfig reads the effective configuration for cmd and applies its
// logging and language settings.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := getConfigPathFromCli(cmd)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(cmd, path)
	if err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return cfg, fmt.Errorf("error loading config: %w", err)
		}
		logging.Debugf("no config file found, running on defaults")
	}
	logging.SetDebug(cfg.Debug)
	i18n.Init(cfg.Language)
	return cfg, nil
}

func setupDefaultServices(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := newServices(cfg)
	if err != nil {
		return err
	}
	app = s
	return nil
}

func teardownServices(*cobra.Command, []string) error {
	app.Close()
	app = nil
	return nil
}

// Execute runs the CLI entrypoint. The cmd/serverbase main package should
// call this function and handle process exit.
func Execute() error {
	return NewRootCmd().Execute()
}

func getConfigPathFromCli(cmd *cobra.Command) (*string, error) {
	if !cmd.Flags().Changed("config") {
		return nil, nil
	}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("could not read --config flag: %w", err)
	}
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
	}
	return &path, nil
}

// NewRootCmd creates the root command with every subcommand. Each call
// returns a fresh tree, which keeps tests isolated.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serverbase",
		Short: "Serverbase keeps a registry of SSH servers and runs commands on them.",
		Long: `Serverbase stores servers, their SSH and database accounts, providers,
customers, domains and proxy chains in a database and runs commands on
registered servers over SSH, hopping through proxies where needed.`,
		SilenceUsage:       true,
		PersistentPreRunE:  setupDefaultServices,
		PersistentPostRunE: teardownServices,
	}

	v, c, d := resolveBuildVersion(nil)
	compositeVersion := v
	if c != "" && c != "dev" {
		compositeVersion = compositeVersion + " (" + c + ")"
	}
	if d != "" {
		compositeVersion = compositeVersion + " built: " + d
	}
	cmd.Version = compositeVersion

	cmd.PersistentFlags().String("config", "", "config file")
	cmd.PersistentFlags().BoolP("debug", "v", false, "Enable debug logging")
	cmd.PersistentFlags().String("language", "en", `Output language ("en", "de")`)
	cmd.PersistentFlags().String("database.type", "sqlite", "Database type (sqlite, postgres, mysql)")
	cmd.PersistentFlags().String("database.dsn", "./serverbase.db", "Database connection string (DSN)")
	cmd.PersistentFlags().String("ssh.runner", config.RunnerNative, `SSH runner ("native", "openssh")`)

	cmd.AddCommand(
		newServersCmd(),
		newAccountsCmd(),
		newPartyCmd("providers", db.EntityProvider),
		newPartyCmd("customers", db.EntityCustomer),
		newConnectorsCmd(),
		newAuditCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newDBCmd(),
		newConfigCmd(),
	)
	return cmd
}

// resolveBuildVersion computes the best-available version, commit and build
// date for the running binary. If info is nil, it reads build info from the
// runtime.
func resolveBuildVersion(info *debug.BuildInfo) (versionOut, commitOut, dateOut string) {
	resolvedVersion := buildvars.VersionOrDefault(version)
	resolvedCommit := gitCommit
	resolvedDate := buildDate

	var ok bool
	if info == nil {
		if infoLocal, found := debug.ReadBuildInfo(); found {
			info = infoLocal
			ok = true
		}
	} else {
		ok = true
	}

	if ok && info != nil {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			resolvedVersion = info.Main.Version
		}
		if (resolvedVersion == "dev" || resolvedVersion == "(devel)") && info.Deps != nil {
			for _, dep := range info.Deps {
				if dep.Path == "github.com/toeirei/serverbase" && dep.Version != "" {
					resolvedVersion = dep.Version
					break
				}
			}
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" {
					resolvedCommit = s.Value
				}
			case "vcs.time":
				if s.Value != "" {
					resolvedDate = s.Value
				}
			}
		}
	}

	if resolvedVersion == "dev" && gitCommit != "dev" && gitCommit != "" {
		resolvedVersion = gitCommit
	}
	return resolvedVersion, resolvedCommit, resolvedDate
}
