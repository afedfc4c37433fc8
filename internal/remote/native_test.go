// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package remote

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toeirei/serverbase/internal/config"
	"github.com/toeirei/serverbase/internal/model"
	"github.com/toeirei/serverbase/internal/security"
	"github.com/toeirei/serverbase/internal/sshkey"
	"github.com/toeirei/serverbase/internal/state"
	"github.com/toeirei/serverbase/internal/testutil"
	"github.com/toeirei/serverbase/internal/vault"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

func noAgent() agent.Agent { return nil }

func newNativeRunner(store HostKeyStore, mode string) *NativeRunner {
	return &NativeRunner{
		HostKeys:    store,
		HostKeyMode: mode,
		Agent:       noAgent,
		Pool:        NewPool(4),
	}
}

// identityFile writes a fresh private key through a vault and returns its
// path.
func identityFile(t *testing.T) string {
	t.Helper()
	v := vault.New(filepath.Join(t.TempDir(), "keys"))
	key := testutil.NewPrivateKeyPEM(t)
	path, err := v.Create(&key)
	require.NoError(t, err)
	return path
}

func endpointOf(s *testServer) Endpoint {
	return Endpoint{Host: s.Host, Port: s.Port, User: "deploy"}
}

func TestNativeRunner_RunWithIdentityFile(t *testing.T) {
	srv := startTestServer(t, "")
	store := testutil.NewStore(t)
	r := newNativeRunner(store, config.HostKeyAcceptNew)
	defer r.Close()

	target := &Target{Endpoint: endpointOf(srv)}
	target.IdentityFile = identityFile(t)

	out, err := r.Run(context.Background(), target, CommandSpec{Command: "echo 1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, SplitLines(out))

	known, err := store.KnownHosts(context.Background(), srv.Host, srv.Port)
	require.NoError(t, err)
	require.Len(t, known, 1, "accept-new stores the first key")
	assert.Equal(t, ssh.FingerprintSHA256(srv.HostKey.PublicKey()), known[0].Fingerprint)

	// Second run checks against the stored key.
	_, err = r.Run(context.Background(), target, CommandSpec{Command: "echo 2"})
	require.NoError(t, err)
}

func TestNativeRunner_CommandFailureCarriesStderr(t *testing.T) {
	srv := startTestServer(t, "")
	r := newNativeRunner(nil, config.HostKeyOff)
	target := &Target{Endpoint: endpointOf(srv)}
	target.IdentityFile = identityFile(t)

	_, err := r.Run(context.Background(), target, CommandSpec{Command: "reboot"})
	require.Error(t, err)
	var exitErr *ssh.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 127, exitErr.ExitStatus())
	assert.Contains(t, err.Error(), "unknown command")
}

func TestNativeRunner_PasswordAuth(t *testing.T) {
	srv := startTestServer(t, "s3cret")
	r := newNativeRunner(nil, config.HostKeyOff)

	target := &Target{Endpoint: endpointOf(srv)}
	target.Password = security.FromString("s3cret")
	out, err := r.Run(context.Background(), target, CommandSpec{Command: "echo ok"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, SplitLines(out))

	target.Password = security.FromString("wrong")
	_, err = r.Run(context.Background(), target, CommandSpec{Command: "echo ok"})
	require.Error(t, err)
	assert.True(t, IsAuthenticationError(err), "got %v", err)
	assert.Contains(t, err.Error(), "authentication failed for")
}

func TestNativeRunner_NoAuthMethod(t *testing.T) {
	r := newNativeRunner(nil, config.HostKeyOff)
	_, err := r.Run(context.Background(), &Target{Endpoint: Endpoint{Host: "127.0.0.1", Port: 1}}, CommandSpec{Command: "echo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no authentication method")
}

func TestNativeRunner_StrictRejectsUnknownHost(t *testing.T) {
	srv := startTestServer(t, "")
	store := testutil.NewStore(t)
	r := newNativeRunner(store, config.HostKeyStrict)
	target := &Target{Endpoint: endpointOf(srv)}
	target.IdentityFile = identityFile(t)

	_, err := r.Run(context.Background(), target, CommandSpec{Command: "echo 1"})
	require.Error(t, err)
	assert.True(t, IsHostKeyError(err), "got %v", err)
	assert.Contains(t, err.Error(), "host key verification failed")
}

func TestNativeRunner_RejectsChangedHostKey(t *testing.T) {
	srv := startTestServer(t, "")
	store := testutil.NewStore(t)
	other, err := testutil.NewHostKey()
	require.NoError(t, err)
	require.NoError(t, store.AddKnownHost(context.Background(), &model.KnownHost{
		Hostname:    srv.Host,
		Port:        srv.Port,
		Algorithm:   other.PublicKey().Type(),
		Fingerprint: ssh.FingerprintSHA256(other.PublicKey()),
		PublicKey:   string(ssh.MarshalAuthorizedKey(other.PublicKey())),
	}))

	r := newNativeRunner(store, config.HostKeyAcceptNew)
	target := &Target{Endpoint: endpointOf(srv)}
	target.IdentityFile = identityFile(t)
	_, err = r.Run(context.Background(), target, CommandSpec{Command: "echo 1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HOST KEY MISMATCH")
}

func TestNativeRunner_ThroughJumpHost(t *testing.T) {
	jump := startTestServer(t, "")
	dest := startTestServer(t, "")
	store := testutil.NewStore(t)
	r := newNativeRunner(store, config.HostKeyAcceptNew)

	key := identityFile(t)
	target := &Target{Endpoint: endpointOf(dest), Jumps: []Endpoint{endpointOf(jump)}}
	target.IdentityFile = key
	target.Jumps[0].IdentityFile = key

	out, err := r.Run(context.Background(), target, CommandSpec{Command: "echo via jump"})
	require.NoError(t, err)
	assert.Equal(t, []string{"via jump"}, SplitLines(out))
	assert.Equal(t, 1, jump.Conns())
	assert.Equal(t, 1, dest.Conns())

	for _, s := range []*testServer{jump, dest} {
		known, err := store.KnownHosts(context.Background(), s.Host, s.Port)
		require.NoError(t, err)
		assert.Len(t, known, 1)
	}
}

func TestNativeRunner_PersistentConnectionIsReused(t *testing.T) {
	srv := startTestServer(t, "")
	r := newNativeRunner(nil, config.HostKeyOff)
	defer r.Close()

	target := &Target{Endpoint: endpointOf(srv), Persist: true}
	target.IdentityFile = identityFile(t)

	for i := 0; i < 3; i++ {
		_, err := r.Run(context.Background(), target, CommandSpec{Command: "echo again"})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, r.Pool.Len())
	assert.Equal(t, 1, srv.Conns())
}

func TestNativeRunner_SessionFailureKeepsOthersPooledConnection(t *testing.T) {
	srv := startTestServer(t, "")
	r := newNativeRunner(nil, config.HostKeyOff)
	defer r.Close()
	key := identityFile(t)

	persistent := &Target{Endpoint: endpointOf(srv), Persist: true}
	persistent.IdentityFile = key
	_, err := r.Run(context.Background(), persistent, CommandSpec{Command: "echo pooled"})
	require.NoError(t, err)
	require.Equal(t, 1, r.Pool.Len())

	srv.NoSessions.Store(true)
	oneShot := &Target{Endpoint: endpointOf(srv)}
	oneShot.IdentityFile = key
	require.Equal(t, persistent.Key(), oneShot.Key())
	_, err = r.Run(context.Background(), oneShot, CommandSpec{Command: "echo 1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open session")
	assert.Equal(t, 1, r.Pool.Len(), "a one-shot failure leaves the pooled connection alone")

	_, err = r.Run(context.Background(), persistent, CommandSpec{Command: "echo 1"})
	require.Error(t, err)
	assert.Equal(t, 0, r.Pool.Len(), "a broken persistent connection is dropped")
}

func TestNativeRunner_EncryptedKeyNeedsPassphrase(t *testing.T) {
	srv := startTestServer(t, "")
	_, priv, err := sshkey.GenerateEd25519("enc", security.FromString("pass phrase"))
	require.NoError(t, err)
	v := vault.New(filepath.Join(t.TempDir(), "keys"))
	path, err := v.Create(&priv)
	require.NoError(t, err)

	r := newNativeRunner(nil, config.HostKeyOff)
	target := &Target{Endpoint: endpointOf(srv)}
	target.IdentityFile = path

	_, err = r.Run(context.Background(), target, CommandSpec{Command: "echo 1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no passphrase")

	r.Passphrases = &state.Mailbox{}
	r.Passphrases.Set([]byte("pass phrase"))
	out, err := r.Run(context.Background(), target, CommandSpec{Command: "echo 1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, SplitLines(out))
}

func TestScanner_ScanHostKey(t *testing.T) {
	srv := startTestServer(t, "")
	key, err := Scanner{}.ScanHostKey(context.Background(), srv.Host, srv.Port)
	require.NoError(t, err)
	assert.Equal(t, ssh.FingerprintSHA256(srv.HostKey.PublicKey()), ssh.FingerprintSHA256(key))
	assert.Equal(t, 0, srv.Conns(), "probe never completes a handshake")
}

func TestScanner_RefusedIsClassified(t *testing.T) {
	_, err := Scanner{}.ScanHostKey(context.Background(), "127.0.0.1", 1)
	require.Error(t, err)
	msg := err.Error()
	assert.True(t, strings.Contains(msg, "refused") || strings.Contains(msg, "failed to connect"), msg)
}

func TestHostKeyCallback_OffIgnoresStore(t *testing.T) {
	cb := HostKeyCallback(context.Background(), nil, config.HostKeyStrict, Endpoint{Host: "h"})
	signer, err := testutil.NewHostKey()
	require.NoError(t, err)
	assert.NoError(t, cb("h:22", nil, signer.PublicKey()), "nil store disables checking")
}
