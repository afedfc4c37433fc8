// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package remote

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toeirei/serverbase/internal/config"
	"github.com/toeirei/serverbase/internal/db"
	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/model"
	"github.com/toeirei/serverbase/internal/registry"
	"github.com/toeirei/serverbase/internal/security"
	"github.com/toeirei/serverbase/internal/testutil"
	"github.com/toeirei/serverbase/internal/vault"
)

// fakeRunner records every call together with the identity files that
// existed while it ran.
type fakeRunner struct {
	mu    sync.Mutex
	calls []Target
	files map[string]fs.FileMode
	keys  []string
	out   []byte
	err   error
}

func (f *fakeRunner) Run(_ context.Context, t *Target, _ CommandSpec) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, *t)
	if f.files == nil {
		f.files = map[string]fs.FileMode{}
	}
	paths := []string{t.IdentityFile}
	for _, j := range t.Jumps {
		paths = append(paths, j.IdentityFile)
	}
	if t.IdentityFile != "" {
		if b, err := os.ReadFile(t.IdentityFile); err == nil {
			f.keys = append(f.keys, string(b))
		}
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil {
			f.files[p] = info.Mode().Perm()
		}
	}
	return f.out, f.err
}

type execFixture struct {
	reg    *registry.Registry
	store  *db.BunStore
	exec   *Executor
	runner *fakeRunner
	keyDir string
}

func newExecFixture(t *testing.T, runner Runner) *execFixture {
	t.Helper()
	store := testutil.NewStore(t)
	reg := registry.New(store, registry.Options{ProxySelection: config.ProxyFirst})
	keyDir := filepath.Join(t.TempDir(), "keys")
	fr, _ := runner.(*fakeRunner)
	return &execFixture{
		reg:    reg,
		store:  store,
		exec:   NewExecutor(reg, vault.New(keyDir), runner, store),
		runner: fr,
		keyDir: keyDir,
	}
}

// addServer registers domain; a non-empty key gets its own ssh account.
func (f *execFixture) addServer(t *testing.T, domain, ipv4 string, port int, key security.Secret) *model.Server {
	t.Helper()
	ctx := context.Background()
	srv := model.Server{Domain: domain, IPv4: ipv4, Port: port}
	if !key.Empty() {
		acc := &model.SSHAccount{Name: "acc " + domain, Username: "deploy", SSHKey: key}
		require.NoError(t, f.reg.AddSSHAccount(ctx, acc))
		srv.SSHAccountID = acc.ID
	}
	out, err := f.reg.Insert(ctx, &registry.ServerInput{Server: srv}, registry.ValidateOptions{})
	require.NoError(t, err)
	return out
}

func (f *execFixture) leftoverFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.keyDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestExec_EchoOneLeavesNoIdentityFile(t *testing.T) {
	f := newExecFixture(t, &fakeRunner{out: []byte("1\n")})
	a := f.addServer(t, "a.example.com", "192.0.2.1", 0, security.FromString("KEY-A"))

	out, err := f.exec.Exec(context.Background(), a.ID, CommandSpec{Command: "echo 1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, out)

	require.Len(t, f.runner.calls, 1)
	call := f.runner.calls[0]
	assert.Equal(t, "192.0.2.1", call.Host)
	assert.Equal(t, 22, call.Port)
	assert.Equal(t, "deploy", call.User)
	require.NotEmpty(t, call.IdentityFile)
	assert.Equal(t, fs.FileMode(0o400), f.runner.files[call.IdentityFile])
	assert.Equal(t, f.keyDir, filepath.Dir(call.IdentityFile))

	assert.Empty(t, f.leftoverFiles(t))
	_, err = os.Stat(call.IdentityFile)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	entries, err := f.store.AuditLog(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "EXEC", entries[0].Action)
}

func TestExec_MissingCredentialsBeforeRunner(t *testing.T) {
	f := newExecFixture(t, &fakeRunner{})
	a := f.addServer(t, "a.example.com", "192.0.2.1", 0, nil)

	_, err := f.exec.Exec(context.Background(), a.ID, CommandSpec{Command: "uptime"})
	require.ErrorIs(t, err, fault.ErrMissingCredentials)
	assert.Equal(t, "missing-data", fault.Kind(err))
	assert.Empty(t, f.runner.calls)
}

func TestExec_RunnerFailureStillCleansUp(t *testing.T) {
	f := newExecFixture(t, &fakeRunner{out: []byte("partial\n"), err: errors.New("exit status 1")})
	a := f.addServer(t, "a.example.com", "192.0.2.1", 0, security.FromString("KEY-A"))

	out, err := f.exec.Exec(context.Background(), "a.example.com", CommandSpec{Command: "false"})
	require.ErrorIs(t, err, fault.ErrExecutionFailed)
	assert.Equal(t, "execution-failed", fault.Kind(err))
	assert.Equal(t, []string{"partial"}, out)
	require.Len(t, f.runner.calls, 1)
	assert.Equal(t, a.ID, f.runner.calls[0].ServerID)
	assert.Empty(t, f.leftoverFiles(t))
}

func TestExec_LookupErrorsPassThrough(t *testing.T) {
	f := newExecFixture(t, &fakeRunner{})

	_, err := f.exec.Exec(context.Background(), "missing.example.com", CommandSpec{Command: "uptime"})
	require.ErrorIs(t, err, fault.ErrNotFound)

	_, err = f.exec.Exec(context.Background(), nil, CommandSpec{Command: "uptime"})
	require.ErrorIs(t, err, fault.ErrNotSpecified)
	assert.Empty(t, f.runner.calls)
}

func TestExec_ProxyHopsGetIdentityFilesInDialOrder(t *testing.T) {
	f := newExecFixture(t, &fakeRunner{out: []byte("ok\n")})
	ctx := context.Background()
	a := f.addServer(t, "a.example.com", "192.0.2.1", 0, security.FromString("KEY-A"))
	b := f.addServer(t, "b.example.com", "192.0.2.2", 2222, security.FromString("KEY-B"))
	c := f.addServer(t, "c.example.com", "192.0.2.3", 0, security.FromString("KEY-C"))
	require.NoError(t, f.reg.AddProxy(ctx, b.ID, a.ID))
	require.NoError(t, f.reg.AddProxy(ctx, c.ID, b.ID))

	got, err := f.reg.Get(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, got.Proxies, 1)
	assert.Equal(t, a.ID, got.Proxies[0].ID)
	assert.Equal(t, "a.example.com", got.Proxies[0].Domain)

	_, err = f.exec.Exec(ctx, "+c.example.com", CommandSpec{Command: "hostname"})
	require.NoError(t, err)

	require.Len(t, f.runner.calls, 1)
	call := f.runner.calls[0]
	assert.True(t, call.Persist)
	require.Len(t, call.Jumps, 2)
	assert.Equal(t, a.ID, call.Jumps[0].ServerID, "outermost hop is dialed first")
	assert.Equal(t, b.ID, call.Jumps[1].ServerID)
	assert.Equal(t, 2222, call.Jumps[1].Port)
	assert.Len(t, f.runner.files, 3)
	for _, j := range call.Jumps {
		assert.NotEmpty(t, j.IdentityFile)
	}
	assert.Empty(t, f.leftoverFiles(t))
}

func TestExec_PasswordOnlyNeedsNoFile(t *testing.T) {
	f := newExecFixture(t, &fakeRunner{out: []byte("x")})
	ctx := context.Background()
	acc := &model.SSHAccount{Name: "pw", Username: "root", Password: security.FromString("hunter2")}
	require.NoError(t, f.reg.AddSSHAccount(ctx, acc))
	srv, err := f.reg.Insert(ctx, &registry.ServerInput{Server: model.Server{Domain: "pw.example.com", IPv4: "192.0.2.9", SSHAccountID: acc.ID}}, registry.ValidateOptions{})
	require.NoError(t, err)

	out, err := f.exec.Exec(ctx, srv.ID, CommandSpec{Command: "id"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, out)
	call := f.runner.calls[0]
	assert.Empty(t, call.IdentityFile)
	assert.Equal(t, "hunter2", string(call.Password))
}

func TestExec_NativeRunnerScenario(t *testing.T) {
	srv := startTestServer(t, "")
	f := newExecFixture(t, &fakeRunner{})
	f.exec = NewExecutor(f.reg, vault.New(f.keyDir), newNativeRunner(f.store, config.HostKeyAcceptNew), f.store)

	a := f.addServer(t, "a.example.com", srv.Host, srv.Port, testutil.NewPrivateKeyPEM(t))
	out, err := f.exec.Exec(context.Background(), a.ID, CommandSpec{Command: "echo 1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, out)
	assert.Empty(t, f.leftoverFiles(t))
}

func TestExecutor_PushAndFetch(t *testing.T) {
	srv := startTestServer(t, "")
	f := newExecFixture(t, &fakeRunner{})
	f.exec = NewExecutor(f.reg, vault.New(f.keyDir), newNativeRunner(nil, config.HostKeyOff), f.store)
	a := f.addServer(t, "a.example.com", srv.Host, srv.Port, testutil.NewPrivateKeyPEM(t))

	dir := t.TempDir()
	local := filepath.Join(dir, "local.txt")
	require.NoError(t, os.WriteFile(local, []byte("payload\n"), 0o640))
	remotePath := filepath.ToSlash(filepath.Join(dir, "remote.txt"))

	n, err := f.exec.Push(context.Background(), a.ID, local, remotePath)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	data, err := os.ReadFile(remotePath)
	require.NoError(t, err)
	assert.Equal(t, "payload\n", string(data))

	back := filepath.Join(dir, "back.txt")
	n, err = f.exec.Fetch(context.Background(), a.ID, remotePath, back)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	data, err = os.ReadFile(back)
	require.NoError(t, err)
	assert.Equal(t, "payload\n", string(data))
	assert.Empty(t, f.leftoverFiles(t))
}

func TestExecutor_TransferNeedsNativeRunner(t *testing.T) {
	f := newExecFixture(t, &fakeRunner{})
	a := f.addServer(t, "a.example.com", "192.0.2.1", 0, security.FromString("KEY"))
	_, err := f.exec.Fetch(context.Background(), a.ID, "/etc/hostname", filepath.Join(t.TempDir(), "h"))
	require.ErrorIs(t, err, fault.ErrInvalid)
}

func TestSplitLines(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"\n", nil},
		{"1\n", []string{"1"}},
		{"a\nb", []string{"a", "b"}},
		{"a\r\nb\r\n", []string{"a", "b"}},
		{"a\n\nb\n", []string{"a", "", "b"}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, SplitLines([]byte(c.in)), "input %q", c.in)
	}
}

func TestExecutor_ConnectOutlivesIdentityFiles(t *testing.T) {
	srv := startTestServer(t, "")
	f := newExecFixture(t, &fakeRunner{})
	f.exec = NewExecutor(f.reg, vault.New(f.keyDir), newNativeRunner(nil, config.HostKeyOff), f.store)
	a := f.addServer(t, "a.example.com", srv.Host, srv.Port, testutil.NewPrivateKeyPEM(t))

	client, release, err := f.exec.Connect(context.Background(), a.ID)
	require.NoError(t, err)
	defer release()
	assert.Empty(t, f.leftoverFiles(t))

	sess, err := client.NewSession()
	require.NoError(t, err)
	defer sess.Close()
	out, err := sess.Output("echo still open")
	require.NoError(t, err)
	assert.Equal(t, "still open\n", string(out))
}

func TestExec_SameRecordTwiceKeepsCallersKey(t *testing.T) {
	f := newExecFixture(t, &fakeRunner{out: []byte("ok\n")})
	a := f.addServer(t, "a.example.com", "192.0.2.1", 0, security.FromString("KEY-A"))
	rec, err := f.reg.Get(context.Background(), a.ID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := f.exec.Exec(context.Background(), rec, CommandSpec{Command: "echo ok"})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"KEY-A\n", "KEY-A\n"}, f.runner.keys)
	assert.Equal(t, "KEY-A", string(rec.SSHKey.Bytes()), "the caller's record is not wiped")
	assert.Empty(t, f.leftoverFiles(t))
}
