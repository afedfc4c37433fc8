// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/toeirei/serverbase/internal/db"
	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/logging"
	"github.com/toeirei/serverbase/internal/model"
	"golang.org/x/crypto/ssh"
)

// Insert validates and stores a new server, registers its host key when
// enabled and links in.Domains.
func (r *Registry) Insert(ctx context.Context, in *ServerInput, opts ValidateOptions) (*model.Server, error) {
	if in == nil {
		return nil, fault.Errorf(fault.ErrNotSpecified, "no server given")
	}
	in.Server.ID = 0
	if err := r.Validate(ctx, in, opts); err != nil {
		return nil, err
	}
	srv := in.Server
	if err := r.store.InsertServer(ctx, &srv); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, fault.Wrap(fault.ErrInvalid, "servers insert", err)
		}
		return nil, fault.Wrap(fault.ErrUnknown, "servers insert", err)
	}

	if len(in.Domains) > 0 {
		if err := r.UpdateDomains(ctx, srv.ID, in.Domains); err != nil {
			// Never leave a server behind without the links it was added with.
			if delErr := r.store.DeleteServer(ctx, srv.ID); delErr != nil {
				logging.Errorf("registry: server %d left after failed domain linking: %v", srv.ID, delErr)
			}
			return nil, err
		}
	}
	if r.opts.RegisterKnownHosts && r.opts.Scanner != nil {
		if _, err := r.TrustHost(ctx, srv.ID); err != nil {
			logging.Warnf("registry: host key of %s not registered: %v", srv.Domain, err)
		}
	}
	r.audit(ctx, "SERVER_ADD", fmt.Sprintf("id=%d domain=%s", srv.ID, srv.Domain))
	return &srv, nil
}

// Update validates and rewrites an existing server. A nil in.Domains keeps
// the current links; a non-nil slice replaces them.
func (r *Registry) Update(ctx context.Context, in *ServerInput, opts ValidateOptions) (*model.Server, error) {
	if in == nil || in.Server.ID == 0 {
		return nil, fault.Errorf(fault.ErrNotSpecified, "server id missing")
	}
	rows, err := r.store.LookupServers(ctx, db.ServerQuery{ID: in.Server.ID, IncludeInactive: true})
	if err != nil {
		return nil, fault.Wrap(fault.ErrUnknown, "servers update", err)
	}
	if len(rows) == 0 {
		return nil, fault.Errorf(fault.ErrNotFound, "server %d", in.Server.ID)
	}
	if err := r.Validate(ctx, in, opts); err != nil {
		return nil, err
	}
	srv := in.Server
	srv.CreatedOn = rows[0].CreatedOn
	if err := r.store.UpdateServer(ctx, &srv); err != nil {
		return nil, fault.Wrap(fault.ErrUnknown, "servers update", err)
	}
	if in.Domains != nil {
		if err := r.UpdateDomains(ctx, srv.ID, in.Domains); err != nil {
			return &srv, err
		}
	}
	r.audit(ctx, "SERVER_UPDATE", fmt.Sprintf("id=%d domain=%s", srv.ID, srv.Domain))
	return &srv, nil
}

// resolveAny finds a server regardless of its status.
func (r *Registry) resolveAny(ctx context.Context, ident any) (*model.Server, error) {
	srv, err := r.Get(ctx, ident, GetOptions{IncludeInactive: true})
	if err != nil {
		return nil, err
	}
	if srv == nil {
		return nil, fault.Errorf(fault.ErrNotSpecified, "no server given")
	}
	return srv, nil
}

// Erase removes a server together with its known host keys, domain links
// and proxy edges.
func (r *Registry) Erase(ctx context.Context, ident any) error {
	srv, err := r.resolveAny(ctx, ident)
	if err != nil {
		return err
	}
	if err := r.store.DeleteServer(ctx, srv.ID); err != nil {
		return fault.Wrap(fault.ErrUnknown, "servers erase", err)
	}
	r.audit(ctx, "SERVER_ERASE", fmt.Sprintf("id=%d domain=%s", srv.ID, srv.Domain))
	return nil
}

// SetStatus changes a server's status. model.StatusActive reactivates it,
// model.StatusDeleted soft-deletes it.
func (r *Registry) SetStatus(ctx context.Context, ident any, status string) error {
	srv, err := r.resolveAny(ctx, ident)
	if err != nil {
		return err
	}
	if status == model.StatusActive && !srv.Active() {
		taken, err := r.store.DomainTaken(ctx, srv.Domain, srv.ID)
		if err != nil {
			return fault.Wrap(fault.ErrUnknown, "servers status", err)
		}
		if taken {
			return fault.Errorf(fault.ErrInvalid, "%s is already registered by an active server", srv.Domain)
		}
	}
	if err := r.store.SetServerStatus(ctx, srv.ID, status); err != nil {
		return fault.Wrap(fault.ErrUnknown, "servers status", err)
	}
	r.audit(ctx, "SERVER_STATUS", fmt.Sprintf("id=%d status=%q", srv.ID, status))
	return nil
}

// TrustHost scans the host key of a server and stores it as known. A key
// that is already stored is returned without error.
func (r *Registry) TrustHost(ctx context.Context, ident any) (*model.KnownHost, error) {
	if r.opts.Scanner == nil {
		return nil, fault.Errorf(fault.ErrNotSpecified, "no host key scanner configured")
	}
	srv, err := r.resolveAny(ctx, ident)
	if err != nil {
		return nil, err
	}
	port := srv.Port
	if port == 0 {
		port = model.DefaultSSHPort
	}
	key, err := r.opts.Scanner.ScanHostKey(ctx, srv.Address(), port)
	if err != nil {
		return nil, fault.Wrap(fault.ErrExecutionFailed, "servers trust", err)
	}
	kh := &model.KnownHost{
		ServerID:    srv.ID,
		Hostname:    srv.Address(),
		Port:        port,
		Algorithm:   key.Type(),
		Fingerprint: ssh.FingerprintSHA256(key),
		PublicKey:   string(ssh.MarshalAuthorizedKey(key)),
	}
	if err := r.store.AddKnownHost(ctx, kh); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return kh, nil
		}
		return nil, fault.Wrap(fault.ErrUnknown, "servers trust", err)
	}
	r.audit(ctx, "HOST_TRUST", fmt.Sprintf("id=%d host=%s fingerprint=%s", srv.ID, kh.Hostname, kh.Fingerprint))
	return kh, nil
}
