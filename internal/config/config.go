// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads the serverbase configuration from defaults, config
// files, SERVERBASE_* environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/toeirei/serverbase/internal/fault"
)

// Runner names.
const (
	RunnerNative  = "native"
	RunnerOpenSSH = "openssh"
)

// Host key checking modes.
const (
	HostKeyStrict    = "strict"
	HostKeyAcceptNew = "accept-new"
	HostKeyOff       = "off"
)

// Proxy selection strategies.
const (
	ProxyRandom = "random"
	ProxyFirst  = "first"
)

// Config is the typed application configuration.
type Config struct {
	Database   Database             `mapstructure:"database" yaml:"database"`
	Connectors map[string]Connector `mapstructure:"connectors" yaml:"connectors,omitempty"`
	SSH        SSH                  `mapstructure:"ssh" yaml:"ssh"`
	Validation Validation           `mapstructure:"validation" yaml:"validation"`
	Language   string               `mapstructure:"language" yaml:"language"`
	Debug      bool                 `mapstructure:"debug" yaml:"debug"`
}

// Database selects the registry database.
type Database struct {
	Type string `mapstructure:"type" yaml:"type"`
	Dsn  string `mapstructure:"dsn" yaml:"dsn"`
}

// Connector is a named database connection, optionally tunnelled through a
// registered server.
type Connector struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Dsn    string `mapstructure:"dsn" yaml:"dsn"`
	Tunnel Tunnel `mapstructure:"tunnel" yaml:"tunnel,omitempty"`
}

// Tunnel names the server to tunnel through. Host and Port are the database
// address as seen from that server; they default to 127.0.0.1 and the
// address in the DSN.
type Tunnel struct {
	Server string `mapstructure:"server" yaml:"server,omitempty"`
	Host   string `mapstructure:"host" yaml:"host,omitempty"`
	Port   int    `mapstructure:"port" yaml:"port,omitempty"`
}

// Enabled reports whether the connector tunnels through a server.
func (t Tunnel) Enabled() bool { return t.Server != "" }

// SSH configures remote execution.
type SSH struct {
	Runner             string        `mapstructure:"runner" yaml:"runner"`
	Binary             string        `mapstructure:"binary" yaml:"binary"`
	KeyDir             string        `mapstructure:"key_dir" yaml:"key_dir"`
	KnownHostsCheck    string        `mapstructure:"known_hosts_check" yaml:"known_hosts_check"`
	RegisterKnownHosts bool          `mapstructure:"register_known_hosts" yaml:"register_known_hosts"`
	ProxySelection     string        `mapstructure:"proxy_selection" yaml:"proxy_selection"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	PersistentPoolSize int           `mapstructure:"persistent_pool_size" yaml:"persistent_pool_size"`
}

// Validation tunes the server validator.
type Validation struct {
	MinPasswordScore int  `mapstructure:"min_password_score" yaml:"min_password_score"`
	ResolveIPv4      bool `mapstructure:"resolve_ipv4" yaml:"resolve_ipv4"`
}

// Defaults returns the default values keyed the way viper expects them.
func Defaults() map[string]any {
	return map[string]any{
		"database.type":                 "sqlite",
		"database.dsn":                  "./serverbase.db",
		"ssh.runner":                    RunnerNative,
		"ssh.binary":                    "ssh",
		"ssh.key_dir":                   filepath.Join(DataDir(), "ssh", "keys"),
		"ssh.known_hosts_check":         HostKeyAcceptNew,
		"ssh.register_known_hosts":      true,
		"ssh.proxy_selection":           ProxyRandom,
		"ssh.connect_timeout":           "10s",
		"ssh.persistent_pool_size":      8,
		"validation.min_password_score": 3,
		"validation.resolve_ipv4":       true,
		"language":                      "en",
		"debug":                         false,
	}
}

// Default returns a Config populated with Defaults.
func Default() Config {
	return Config{
		Database: Database{Type: "sqlite", Dsn: "./serverbase.db"},
		SSH: SSH{
			Runner:             RunnerNative,
			Binary:             "ssh",
			KeyDir:             filepath.Join(DataDir(), "ssh", "keys"),
			KnownHostsCheck:    HostKeyAcceptNew,
			RegisterKnownHosts: true,
			ProxySelection:     ProxyRandom,
			ConnectTimeout:     10 * time.Second,
			PersistentPoolSize: 8,
		},
		Validation: Validation{MinPasswordScore: 3, ResolveIPv4: true},
		Language:   "en",
	}
}

// Validate checks enumerations and ranges.
func (c Config) Validate() error {
	var v fault.ValidationError
	switch c.Database.Type {
	case "sqlite", "mysql", "postgres":
	default:
		v.Add("database.type", "unsupported database type %q", c.Database.Type)
	}
	if strings.TrimSpace(c.Database.Dsn) == "" {
		v.Add("database.dsn", "must not be empty")
	}
	switch c.SSH.Runner {
	case RunnerNative, RunnerOpenSSH:
	default:
		v.Add("ssh.runner", "unsupported runner %q", c.SSH.Runner)
	}
	switch c.SSH.KnownHostsCheck {
	case HostKeyStrict, HostKeyAcceptNew, HostKeyOff:
	default:
		v.Add("ssh.known_hosts_check", "unsupported mode %q", c.SSH.KnownHostsCheck)
	}
	switch c.SSH.ProxySelection {
	case ProxyRandom, ProxyFirst:
	default:
		v.Add("ssh.proxy_selection", "unsupported strategy %q", c.SSH.ProxySelection)
	}
	if c.SSH.KeyDir == "" {
		v.Add("ssh.key_dir", "must not be empty")
	}
	if c.SSH.ConnectTimeout < 0 {
		v.Add("ssh.connect_timeout", "must not be negative")
	}
	if c.SSH.PersistentPoolSize < 0 {
		v.Add("ssh.persistent_pool_size", "must not be negative")
	}
	if c.Validation.MinPasswordScore < 0 || c.Validation.MinPasswordScore > 4 {
		v.Add("validation.min_password_score", "must be between 0 and 4")
	}
	for name, conn := range c.Connectors {
		switch conn.Driver {
		case "mysql", "postgres", "sqlite":
		default:
			v.Add("connectors."+name+".driver", "unsupported driver %q", conn.Driver)
		}
		if conn.Dsn == "" {
			v.Add("connectors."+name+".dsn", "must not be empty")
		}
		if conn.Tunnel.Enabled() && conn.Driver == "sqlite" {
			v.Add("connectors."+name+".tunnel", "sqlite connectors cannot be tunnelled")
		}
	}
	return v.Err()
}

// DataDir is the directory holding runtime data such as transient identity
// files.
func DataDir() string {
	if dir := os.Getenv("SERVERBASE_DATA_DIR"); dir != "" {
		return dir
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "serverbase")
	}
	return filepath.Join(os.TempDir(), "serverbase")
}

// GetConfigPath returns the full path for the configuration file.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Serverbase")
		default:
			configDir = "/etc/serverbase"
		}
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "serverbase")
	}

	return filepath.Join(configDir, "serverbase.yaml"), nil
}

// LoadConfig builds a T from defaults, the first serverbase.yaml found (or
// the explicit file), the environment and cmd's flags, in increasing order
// of precedence. A viper.ConfigFileNotFoundError is returned together with a
// fully populated T when no file was found.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, explicitPath *string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("serverbase")
	v.SetConfigType("yaml")
	if explicitPath != nil && *explicitPath != "" {
		v.SetConfigFile(*explicitPath)
	}
	if userConfigPath, err := GetConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := GetConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	var notFound error
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
		notFound = err
	}

	v.SetEnvPrefix("serverbase")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, notFound
}

// Load is LoadConfig for Config with the package defaults, followed by
// Validate.
func Load(cmd *cobra.Command, explicitPath *string) (Config, error) {
	c, err := LoadConfig[Config](cmd, Defaults(), explicitPath)
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}
	if vErr := c.Validate(); vErr != nil {
		return c, vErr
	}
	return c, err
}

// WriteConfigFile writes c to the user (or system) config path with mode 0600.
func WriteConfigFile[T any](c *T, system bool) (string, error) {
	path, err := GetConfigPath(system)
	if err != nil {
		return "", err
	}
	return path, WriteConfigFileTo(c, path)
}

// WriteConfigFileTo writes c as YAML to path.
func WriteConfigFileTo[T any](c *T, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}
	// 0600: the file may carry connector DSNs with passwords.
	return os.WriteFile(path, data, 0600)
}
