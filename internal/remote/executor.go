// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package remote

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/logging"
	"github.com/toeirei/serverbase/internal/model"
	"github.com/toeirei/serverbase/internal/vault"
)

// Executor runs commands on registered servers.
type Executor struct {
	servers ServerSource
	vault   *vault.Vault
	runner  Runner
	audit   Auditor
}

// NewExecutor wires an Executor. audit may be nil.
func NewExecutor(servers ServerSource, v *vault.Vault, runner Runner, audit Auditor) *Executor {
	return &Executor{servers: servers, vault: v, runner: runner, audit: audit}
}

// Runner returns the runner commands are delegated to.
func (e *Executor) Runner() Runner { return e.runner }

// Exec runs spec on the server ident refers to and returns the output
// lines. Private keys of the server and of every proxy hop are written to
// identity files for the duration of the call and removed before Exec
// returns, whatever the outcome. The keys held by the resolved record are
// zeroed.
func (e *Executor) Exec(ctx context.Context, ident any, spec CommandSpec) ([]string, error) {
	runID := uuid.NewString()
	var out []byte
	err := e.withTarget(ctx, ident, func(srv *model.Server, t *Target) error {
		logging.Debugf("remote: run %s on %s via %d hop(s)", runID, t.Addr(), len(t.Jumps))
		if spec.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
			defer cancel()
		}
		var runErr error
		out, runErr = e.runner.Run(ctx, t, spec)
		if runErr != nil {
			e.record(ctx, "EXEC_FAILED", fmt.Sprintf("run=%s server=%d error=%v", runID, srv.ID, runErr))
			return fault.Wrap(fault.ErrExecutionFailed, "servers exec "+srv.Domain, runErr)
		}
		e.record(ctx, "EXEC", fmt.Sprintf("run=%s server=%d command=%q", runID, srv.ID, spec.Command))
		return nil
	})
	return SplitLines(out), err
}

// withTarget resolves ident, materializes identity files, calls fn and
// removes the files again.
func (e *Executor) withTarget(ctx context.Context, ident any, fn func(*model.Server, *Target) error) error {
	srv, err := e.servers.Get(ctx, ident)
	if err != nil {
		return err
	}
	if srv == nil {
		return fault.Errorf(fault.ErrNotSpecified, "no server given")
	}
	if !srv.HasCredentials() {
		return fault.Errorf(fault.ErrMissingCredentials, "server %s has neither identity file, ssh key nor password", srv.Domain)
	}

	var files []string
	defer func() {
		for _, f := range files {
			if rmErr := e.vault.Remove(f); rmErr != nil {
				logging.Warnf("remote: identity file %s not removed: %v", f, rmErr)
			}
		}
	}()

	t := &Target{
		Endpoint: Endpoint{
			ServerID:     srv.ID,
			Host:         srv.Address(),
			Port:         srv.Port,
			User:         srv.Username,
			IdentityFile: srv.IdentityFile,
			Password:     srv.Password,
		},
		Persist: srv.Persist,
	}
	if t.IdentityFile == "" && !srv.SSHKey.Empty() {
		path, err := e.vault.Create(&srv.SSHKey)
		if err != nil {
			return err
		}
		files = append(files, path)
		t.IdentityFile = path
	}

	// Proxies are ordered target-outwards; dial order is the reverse.
	for i := len(srv.Proxies) - 1; i >= 0; i-- {
		hop := &srv.Proxies[i]
		host := hop.IPv4
		if host == "" {
			host = hop.Domain
		}
		ep := Endpoint{
			ServerID:     hop.ID,
			Host:         host,
			Port:         hop.Port,
			User:         hop.Username,
			IdentityFile: hop.IdentityFile,
			Password:     hop.Password,
		}
		if ep.IdentityFile == "" && !hop.SSHKey.Empty() {
			path, err := e.vault.Create(&hop.SSHKey)
			if err != nil {
				return err
			}
			files = append(files, path)
			ep.IdentityFile = path
		}
		t.Jumps = append(t.Jumps, ep)
	}

	return fn(srv, t)
}

func (e *Executor) record(ctx context.Context, action, details string) {
	if e.audit == nil {
		return
	}
	if err := e.audit.LogAction(ctx, action, details); err != nil {
		logging.Warnf("remote: audit %s failed: %v", action, err)
	}
}
