// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// setupTestEnv points the CLI at a fresh SQLite file and keeps it away from
// any user configuration. It returns the DSN.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("SERVERBASE_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("SERVERBASE_SSH_KEY_DIR", filepath.Join(dir, "keys"))
	t.Setenv("SERVERBASE_SSH_REGISTER_KNOWN_HOSTS", "false")
	return filepath.Join(dir, "serverbase.db")
}

// executeCommand runs a fresh root command against dsn and returns stdout,
// stderr and the error of Execute.
func executeCommand(t *testing.T, dsn string, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(append([]string{"--database.dsn", dsn, "--language", "en"}, args...))
	root.SetOut(&out)
	root.SetErr(&errOut)
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	root.SetIn(stdin)
	err := root.Execute()
	// Failing commands skip the post-run hook.
	if app != nil {
		app.Close()
		app = nil
	}
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, dsn string, args ...string) string {
	t.Helper()
	out, errOut, err := executeCommand(t, dsn, nil, args...)
	if err != nil {
		t.Fatalf("%v failed: %v\nstderr: %s", args, err, errOut)
	}
	return out
}

func TestServersLifecycle(t *testing.T) {
	dsn := setupTestEnv(t)

	out := mustRun(t, dsn, "servers", "list")
	if !strings.Contains(out, "No servers found.") {
		t.Fatalf("expected empty list, got %q", out)
	}

	out = mustRun(t, dsn, "servers", "add", "--domain", "Web1.Example.com", "--ipv4", "192.0.2.10", "--domains", "www.example.com")
	if !strings.Contains(out, "Added server web1.example.com") {
		t.Fatalf("unexpected add output %q", out)
	}
	mustRun(t, dsn, "servers", "add", "--domain", "jump.example.com", "--ipv4", "192.0.2.1", "--port", "2222")

	out = mustRun(t, dsn, "servers", "list")
	for _, want := range []string{"web1.example.com", "jump.example.com", "2222"} {
		if !strings.Contains(out, want) {
			t.Fatalf("list output missing %q:\n%s", want, out)
		}
	}

	mustRun(t, dsn, "servers", "proxies", "add", "web1.example.com", "jump.example.com")
	out = mustRun(t, dsn, "servers", "proxies", "list", "web1.example.com")
	if !strings.Contains(out, "192.0.2.1:2222") {
		t.Fatalf("proxy list missing jump host:\n%s", out)
	}

	out = mustRun(t, dsn, "servers", "show", "web1.example.com")
	for _, want := range []string{"web1.example.com", "Route", "Domains", "www.example.com"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q:\n%s", want, out)
		}
	}

	mustRun(t, dsn, "servers", "update", "web1.example.com", "--description", "frontend")
	out = mustRun(t, dsn, "servers", "show", "web1.example.com")
	if !strings.Contains(out, "frontend") {
		t.Fatalf("update did not stick:\n%s", out)
	}

	mustRun(t, dsn, "servers", "status", "jump.example.com", "retired")
	out = mustRun(t, dsn, "servers", "list")
	if strings.Contains(out, "jump.example.com") {
		t.Fatalf("retired server should be hidden by default:\n%s", out)
	}
	out = mustRun(t, dsn, "servers", "list", "--all")
	if !strings.Contains(out, "retired") {
		t.Fatalf("--all should list retired servers:\n%s", out)
	}

	out = mustRun(t, dsn, "audit")
	if !strings.Contains(out, "SERVER_ADD") {
		t.Fatalf("audit log missing SERVER_ADD:\n%s", out)
	}
}

func TestServersAdd_ReportsValidationProblems(t *testing.T) {
	dsn := setupTestEnv(t)
	_, errOut, err := executeCommand(t, dsn, nil, "servers", "add", "--domain", "not a domain", "--ipv4", "999.1.1.1", "--port", "70000")
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"Validation failed:", "domain", "ipv4", "port"} {
		if !strings.Contains(errOut, want) {
			t.Fatalf("stderr missing %q:\n%s", want, errOut)
		}
	}
}

func TestServersErase_AsksForConfirmation(t *testing.T) {
	dsn := setupTestEnv(t)
	mustRun(t, dsn, "servers", "add", "--domain", "db1.example.com", "--ipv4", "192.0.2.20")

	out, _, err := executeCommand(t, dsn, strings.NewReader("n\n"), "servers", "erase", "db1.example.com")
	if err != nil {
		t.Fatalf("erase: %v", err)
	}
	if !strings.Contains(out, "Aborted.") {
		t.Fatalf("expected abort, got %q", out)
	}

	out = mustRun(t, dsn, "servers", "erase", "-y", "db1.example.com")
	if !strings.Contains(out, "Server db1.example.com erased.") {
		t.Fatalf("unexpected erase output %q", out)
	}
	_, _, err = executeCommand(t, dsn, nil, "servers", "show", "db1.example.com")
	if err == nil {
		t.Fatal("erased server is still resolvable")
	}
}

func TestPartiesAndAccounts(t *testing.T) {
	dsn := setupTestEnv(t)
	out := mustRun(t, dsn, "providers", "add", "Hetzner Online")
	if !strings.Contains(out, "Hetzner Online") {
		t.Fatalf("unexpected provider add output %q", out)
	}
	out = mustRun(t, dsn, "providers", "list")
	if !strings.Contains(out, "hetzner-online") {
		t.Fatalf("provider list missing seoname:\n%s", out)
	}

	out, errOut, err := executeCommand(t, dsn, strings.NewReader("hunter2\n"),
		"accounts", "ssh", "add", "--name", "deploy", "--username", "deploy", "--ask-password")
	if err != nil {
		t.Fatalf("ssh account add: %v\n%s", err, errOut)
	}
	if !strings.Contains(out, "Added deploy") {
		t.Fatalf("unexpected account add output %q", out)
	}
	out = mustRun(t, dsn, "accounts", "ssh", "list")
	if !strings.Contains(out, "deploy") || strings.Contains(out, "hunter2") {
		t.Fatalf("account list should show the account but never its password:\n%s", out)
	}
}

func TestBackupAndRestore(t *testing.T) {
	dsn := setupTestEnv(t)
	mustRun(t, dsn, "servers", "add", "--domain", "web1.example.com", "--ipv4", "192.0.2.10")

	file := filepath.Join(t.TempDir(), "snapshot.json")
	out := mustRun(t, dsn, "backup", file)
	if !strings.Contains(out, file+".zst") {
		t.Fatalf("backup should report the .zst name, got %q", out)
	}
	info, err := os.Stat(file + ".zst")
	if err != nil {
		t.Fatalf("backup file missing: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("backup file mode %v, want 0600", info.Mode().Perm())
	}

	out, _, err = executeCommand(t, dsn, strings.NewReader("no\n"), "restore", "--full", file+".zst")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !strings.Contains(out, "Aborted.") {
		t.Fatalf("full restore should ask first, got %q", out)
	}

	other := filepath.Join(t.TempDir(), "other.db")
	out = mustRun(t, other, "restore", file+".zst")
	if !strings.Contains(out, "Restored 1 server(s)") {
		t.Fatalf("unexpected restore output %q", out)
	}
	out = mustRun(t, other, "servers", "list")
	if !strings.Contains(out, "web1.example.com") {
		t.Fatalf("restored database lacks the server:\n%s", out)
	}

	_, _, err = executeCommand(t, dsn, nil, "restore", filepath.Join(t.TempDir(), "missing.json.zst"))
	if err == nil {
		t.Fatal("restoring a missing file must fail")
	}
}

func TestConnectorsAndMaintenance(t *testing.T) {
	dsn := setupTestEnv(t)
	out := mustRun(t, dsn, "connectors", "list")
	if !strings.Contains(out, "NAME") {
		t.Fatalf("expected table header, got %q", out)
	}
	if _, _, err := executeCommand(t, dsn, nil, "connectors", "ping", "nope"); err == nil {
		t.Fatal("pinging an unknown connector must fail")
	}

	out = mustRun(t, dsn, "db", "maintain")
	if !strings.Contains(out, "sqlite") {
		t.Fatalf("unexpected maintenance output %q", out)
	}
}

func TestGetConfigPathFromCli_MissingFile(t *testing.T) {
	dsn := setupTestEnv(t)
	_, _, err := executeCommand(t, dsn, nil, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "servers", "list")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected missing config error, got %v", err)
	}
}

func TestConfigShowAndInit(t *testing.T) {
	dsn := setupTestEnv(t)
	out := mustRun(t, dsn, "config", "show")
	for _, want := range []string{"database:", "type: sqlite", dsn, "runner: native"} {
		if !strings.Contains(out, want) {
			t.Fatalf("config show missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(dsn); err == nil {
		t.Fatal("config commands must not open the registry database")
	}

	target := filepath.Join(t.TempDir(), "conf", "serverbase.yaml")
	out = mustRun(t, dsn, "config", "init", "--path", target)
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected init output %q", out)
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("config file mode %v, want 0600", info.Mode().Perm())
	}
	if _, _, err := executeCommand(t, dsn, nil, "config", "init", "--path", target); err == nil {
		t.Fatal("init must not overwrite without --force")
	}
	mustRun(t, dsn, "config", "init", "--path", target, "--force")

	// The written file is loadable.
	out = mustRun(t, dsn, "--config", target, "config", "show")
	if !strings.Contains(out, "type: sqlite") {
		t.Fatalf("reloaded config lacks database type:\n%s", out)
	}
}
