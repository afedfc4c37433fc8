// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cfg "github.com/toeirei/serverbase/internal/config"
	"github.com/toeirei/serverbase/internal/fault"
)

func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)
	t.Setenv("HOME", tmp)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return tmp
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	isolate(t)

	got, err := cfg.Load(&cobra.Command{}, nil)
	if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		t.Fatalf("expected ConfigFileNotFoundError, got: %T %v", err, err)
	}
	if got.Database.Type != "sqlite" || got.Database.Dsn != "./serverbase.db" {
		t.Fatalf("unexpected database defaults: %+v", got.Database)
	}
	if got.SSH.Runner != cfg.RunnerNative {
		t.Fatalf("unexpected runner %q", got.SSH.Runner)
	}
	if got.SSH.ConnectTimeout != 10*time.Second {
		t.Fatalf("unexpected connect timeout %v", got.SSH.ConnectTimeout)
	}
	if got.SSH.ProxySelection != cfg.ProxyRandom {
		t.Fatalf("unexpected proxy selection %q", got.SSH.ProxySelection)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmp := isolate(t)
	file := filepath.Join(tmp, "explicit.yaml")
	yaml := "database:\n  type: mysql\n  dsn: user:pw@tcp(db:3306)/servers\nssh:\n  runner: openssh\n"
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("SERVERBASE_SSH_RUNNER", "native")

	got, err := cfg.Load(&cobra.Command{}, &file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Database.Type != "mysql" {
		t.Fatalf("expected mysql from file, got %q", got.Database.Type)
	}
	if got.SSH.Runner != "native" {
		t.Fatalf("expected env to override runner, got %q", got.SSH.Runner)
	}
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	isolate(t)
	t.Setenv("SERVERBASE_LANGUAGE", "fr")

	cmd := &cobra.Command{}
	cmd.Flags().String("language", "", "language")
	if err := cmd.Flags().Set("language", "de"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	got, _ := cfg.Load(cmd, nil)
	if got.Language != "de" {
		t.Fatalf("expected de from flag, got %q", got.Language)
	}
}

func TestLoad_ConnectorsFromFile(t *testing.T) {
	tmp := isolate(t)
	file := filepath.Join(tmp, "serverbase.yaml")
	yaml := `connectors:
  billing:
    driver: mysql
    dsn: billing:secret@tcp(127.0.0.1:3306)/billing
    tunnel:
      server: db1.example.com
`
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := cfg.Load(&cobra.Command{}, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c, ok := got.Connectors["billing"]
	if !ok {
		t.Fatalf("connector not loaded: %+v", got.Connectors)
	}
	if !c.Tunnel.Enabled() || c.Tunnel.Server != "db1.example.com" {
		t.Fatalf("unexpected tunnel %+v", c.Tunnel)
	}
}

func TestValidate(t *testing.T) {
	c := cfg.Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	c.Database.Type = "oracle"
	c.SSH.Runner = "telnet"
	c.Validation.MinPasswordScore = 9
	c.Connectors = map[string]cfg.Connector{"x": {Driver: "sqlite", Dsn: "x.db", Tunnel: cfg.Tunnel{Server: "a"}}}
	err := c.Validate()
	if !errors.Is(err, fault.ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
	var v *fault.ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	for _, field := range []string{"database.type", "ssh.runner", "validation.min_password_score", "connectors.x.tunnel"} {
		if !v.Has(field) {
			t.Errorf("missing problem for %s: %v", field, err)
		}
	}
}

func TestWriteConfigFile_RoundTrip(t *testing.T) {
	tmp := isolate(t)
	path := filepath.Join(tmp, "out", "serverbase.yaml")

	c := cfg.Default()
	c.Database.Type = "postgres"
	c.Database.Dsn = "postgres://u@/servers"
	if err := cfg.WriteConfigFileTo(&c, path); err != nil {
		t.Fatalf("WriteConfigFileTo: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}

	got, err := cfg.Load(&cobra.Command{}, &path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Database.Type != "postgres" || got.Database.Dsn != "postgres://u@/servers" {
		t.Fatalf("unexpected round trip: %+v", got.Database)
	}
	if got.SSH.ConnectTimeout != 10*time.Second {
		t.Fatalf("unexpected timeout after round trip: %v", got.SSH.ConnectTimeout)
	}
}
