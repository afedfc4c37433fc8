// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

// Package registry is the server registry: lookup by id, domain or
// seodomain, validation, proxy chains, domain links and record lifecycle.
// It sits between the CLI and the db.Store and never talks SSH itself;
// host key scanning and DNS resolution are injected.
package registry // import "github.com/toeirei/serverbase/internal/registry"

import (
	"context"
	"math/rand/v2"
	"net"

	"github.com/toeirei/serverbase/internal/config"
	"github.com/toeirei/serverbase/internal/db"
	"github.com/toeirei/serverbase/internal/logging"
	"golang.org/x/crypto/ssh"
)

// Resolver looks up IPv4 addresses of a host name.
type Resolver interface {
	LookupIPv4(ctx context.Context, host string) ([]string, error)
}

// HostKeyScanner fetches the host key a server presents.
type HostKeyScanner interface {
	ScanHostKey(ctx context.Context, host string, port int) (ssh.PublicKey, error)
}

// Options tune registry behaviour.
type Options struct {
	// ProxySelection is config.ProxyRandom or config.ProxyFirst.
	ProxySelection     string
	MinPasswordScore   int
	ResolveIPv4        bool
	RegisterKnownHosts bool

	Resolver Resolver
	Scanner  HostKeyScanner

	// IntN picks the random proxy edge; defaults to math/rand/v2.IntN.
	IntN func(n int) int
}

// OptionsFromConfig maps the loaded configuration onto Options.
func OptionsFromConfig(c config.Config) Options {
	return Options{
		ProxySelection:     c.SSH.ProxySelection,
		MinPasswordScore:   c.Validation.MinPasswordScore,
		ResolveIPv4:        c.Validation.ResolveIPv4,
		RegisterKnownHosts: c.SSH.RegisterKnownHosts,
		Resolver:           NetResolver{},
	}
}

// Registry resolves and mutates server records.
type Registry struct {
	store db.Store
	opts  Options
}

// New returns a Registry backed by store.
func New(store db.Store, opts Options) *Registry {
	if opts.IntN == nil {
		opts.IntN = rand.IntN
	}
	if opts.ProxySelection == "" {
		opts.ProxySelection = config.ProxyRandom
	}
	return &Registry{store: store, opts: opts}
}

// Store returns the underlying store.
func (r *Registry) Store() db.Store { return r.store }

// audit records an action. Failures are logged, never returned.
func (r *Registry) audit(ctx context.Context, action, details string) {
	if err := r.store.LogAction(ctx, action, details); err != nil {
		logging.Warnf("registry: audit %s failed: %v", action, err)
	}
}

// NetResolver resolves through the system resolver.
type NetResolver struct{}

// LookupIPv4 returns the IPv4 addresses of host.
func (NetResolver) LookupIPv4(ctx context.Context, host string) ([]string, error) {
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, ip.String())
	}
	return out, nil
}
