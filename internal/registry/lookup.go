// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package registry

import (
	"context"

	"github.com/toeirei/serverbase/internal/db"
	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/model"
	"github.com/toeirei/serverbase/internal/security"
)

// GetOptions tunes Get.
type GetOptions struct {
	// ReturnProxies resolves the proxy chain into Server.Proxies.
	ReturnProxies bool
	// IncludeInactive also matches rows whose status is not NULL.
	IncludeInactive bool
}

// DefaultGetOptions resolves proxies and only sees active servers.
func DefaultGetOptions() GetOptions {
	return GetOptions{ReturnProxies: true}
}

// Get returns the single server ident refers to. A nil identifier yields
// (nil, nil), meaning the local machine. A record that already carries an
// id is returned unchanged. Zero matches is fault.ErrNotFound, several are
// fault.ErrAmbiguous.
func (r *Registry) Get(ctx context.Context, ident any, opts ...GetOptions) (*model.Server, error) {
	o := DefaultGetOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	id, err := ParseIdentifier(ident)
	if err != nil {
		return nil, err
	}
	switch id.Kind {
	case IdentNone:
		return nil, nil
	case IdentServer:
		return id.Server, nil
	}

	q := db.ServerQuery{ID: id.ID, Name: id.Name, IncludeInactive: o.IncludeInactive}
	rows, err := r.store.LookupServers(ctx, q)
	if err != nil {
		return nil, fault.Wrap(fault.ErrUnknown, "servers get", err)
	}
	srv, err := single(rows, id.String())
	if err != nil {
		return nil, err
	}
	srv.Persist = id.Persist
	if o.ReturnProxies {
		hops, err := r.ResolveProxies(ctx, srv.ID)
		if err != nil {
			return nil, err
		}
		srv.Proxies = hops
	}
	return srv, nil
}

func single(rows []model.Server, what string) (*model.Server, error) {
	switch len(rows) {
	case 0:
		return nil, fault.Errorf(fault.ErrNotFound, "server %s", what)
	case 1:
		s := rows[0]
		return &s, nil
	}
	return nil, fault.Errorf(fault.ErrAmbiguous, "server %s matches %d records", what, len(rows))
}

// GetID resolves ident to a server id whatever the server's status, so
// maintenance of domains and proxies also reaches retired or testing rows.
func (r *Registry) GetID(ctx context.Context, ident any) (int64, error) {
	id, err := ParseIdentifier(ident)
	if err != nil {
		return 0, err
	}
	switch id.Kind {
	case IdentNone:
		return 0, fault.Errorf(fault.ErrNotSpecified, "no server given")
	case IdentServer:
		return id.ID, nil
	}
	srv, err := r.resolveAny(ctx, id)
	if err != nil {
		return 0, err
	}
	return srv.ID, nil
}

// Like returns the id of the one active server whose domain or seodomain
// contains term.
func (r *Registry) Like(ctx context.Context, term string) (int64, error) {
	if term == "" {
		return 0, fault.Errorf(fault.ErrNotSpecified, "empty search term")
	}
	rows, err := r.store.LookupServers(ctx, db.ServerQuery{Contains: term})
	if err != nil {
		return 0, fault.Wrap(fault.ErrUnknown, "servers like", err)
	}
	srv, err := single(rows, "like "+term)
	if err != nil {
		return 0, err
	}
	return srv.ID, nil
}

// List returns servers matching f with credentials stripped.
func (r *Registry) List(ctx context.Context, f db.ServerFilter) ([]model.Server, error) {
	rows, err := r.store.ListServers(ctx, f)
	if err != nil {
		return nil, fault.Wrap(fault.ErrUnknown, "servers list", err)
	}
	for i := range rows {
		rows[i].SSHKey = security.Secret(nil)
		rows[i].Password = security.Secret(nil)
	}
	return rows, nil
}
