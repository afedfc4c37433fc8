// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

// Package testutil holds test doubles shared by package tests: an in-memory
// registry database, a canned DNS resolver and a host key scanner that
// needs no network.
package testutil

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/toeirei/serverbase/internal/db"
	"github.com/toeirei/serverbase/internal/security"
	"github.com/toeirei/serverbase/internal/sshkey"
	"golang.org/x/crypto/ssh"
)

// NewStore opens a migrated in-memory SQLite store private to t.
func NewStore(t testing.TB) *db.BunStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := db.New("sqlite", "file:testutil_"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// FakeResolver answers from a fixed table.
type FakeResolver struct {
	Hosts map[string][]string
	mu    sync.Mutex
	Calls []string
}

// LookupIPv4 returns the configured addresses or an error for unknown hosts.
func (f *FakeResolver) LookupIPv4(_ context.Context, host string) ([]string, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, host)
	f.mu.Unlock()
	if ips, ok := f.Hosts[host]; ok {
		return ips, nil
	}
	return nil, fmt.Errorf("no such host: %s", host)
}

// FakeScanner hands out one generated ed25519 host key per host:port.
type FakeScanner struct {
	mu   sync.Mutex
	keys map[string]ssh.PublicKey
	// Err, when set, is returned by every scan.
	Err error
}

// ScanHostKey returns the stable fake key of host:port.
func (f *FakeScanner) ScanHostKey(_ context.Context, host string, port int) (ssh.PublicKey, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		f.keys = map[string]ssh.PublicKey{}
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	if k, ok := f.keys[addr]; ok {
		return k, nil
	}
	k, err := NewHostKey()
	if err != nil {
		return nil, err
	}
	f.keys[addr] = k.PublicKey()
	return f.keys[addr], nil
}

// NewHostKey generates an ed25519 signer usable as host or client key.
func NewHostKey() (ssh.Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return ssh.NewSignerFromKey(priv)
}

// NewPrivateKeyPEM returns an unencrypted OpenSSH PEM ed25519 private key.
func NewPrivateKeyPEM(t testing.TB) security.Secret {
	t.Helper()
	_, priv, err := sshkey.GenerateEd25519("test", nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv
}
