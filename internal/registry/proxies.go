// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/toeirei/serverbase/internal/config"
	"github.com/toeirei/serverbase/internal/db"
	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/logging"
	"github.com/toeirei/serverbase/internal/model"
)

// GetProxy returns one of the edges leaving serverID, or nil when the
// server is reached directly. With random selection every edge is equally
// likely; with first selection the oldest edge wins.
func (r *Registry) GetProxy(ctx context.Context, serverID int64) (*model.ProxyEdge, error) {
	edges, err := r.store.ProxyEdges(ctx, serverID)
	if err != nil {
		return nil, fault.Wrap(fault.ErrUnknown, "servers get proxy", err)
	}
	if len(edges) == 0 {
		return nil, nil
	}
	i := 0
	if r.opts.ProxySelection != config.ProxyFirst && len(edges) > 1 {
		i = r.opts.IntN(len(edges))
	}
	e := edges[i]
	return &e, nil
}

// ResolveProxies follows proxy edges from serverID until a server without
// an edge is reached. Index 0 of the result is the hop next to serverID,
// the last element is dialed first. A hop that was already visited ends
// the chain.
func (r *Registry) ResolveProxies(ctx context.Context, serverID int64) ([]model.ProxyHop, error) {
	var hops []model.ProxyHop
	visited := map[int64]bool{serverID: true}
	current := serverID
	for {
		edge, err := r.GetProxy(ctx, current)
		if err != nil {
			return nil, err
		}
		if edge == nil {
			return hops, nil
		}
		if visited[edge.ProxyID] {
			logging.Warnf("registry: proxy cycle at server %d -> %d, chain truncated", current, edge.ProxyID)
			return hops, nil
		}
		visited[edge.ProxyID] = true

		rows, err := r.store.LookupServers(ctx, db.ServerQuery{ID: edge.ProxyID})
		if err != nil {
			return nil, fault.Wrap(fault.ErrUnknown, "servers get proxy", err)
		}
		if len(rows) == 0 {
			return nil, fault.Errorf(fault.ErrNotFound, "proxy server %d of server %d", edge.ProxyID, current)
		}
		hops = append(hops, rows[0].Trim())
		current = edge.ProxyID
	}
}

func (r *Registry) proxyPair(ctx context.Context, server, proxy any) (int64, int64, error) {
	serverID, err := r.GetID(ctx, server)
	if err != nil {
		return 0, 0, err
	}
	proxyID, err := r.GetID(ctx, proxy)
	if err != nil {
		return 0, 0, err
	}
	if serverID == proxyID {
		return 0, 0, fault.Errorf(fault.ErrInvalid, "server %d cannot proxy through itself", serverID)
	}
	return serverID, proxyID, nil
}

// AddProxy lets server be reached through proxy.
func (r *Registry) AddProxy(ctx context.Context, server, proxy any) error {
	serverID, proxyID, err := r.proxyPair(ctx, server, proxy)
	if err != nil {
		return err
	}
	if _, err := r.store.AddProxyEdge(ctx, serverID, proxyID); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return fault.Wrap(fault.ErrInvalid, "servers add proxy", err)
		}
		return fault.Wrap(fault.ErrUnknown, "servers add proxy", err)
	}
	r.audit(ctx, "PROXY_ADD", fmt.Sprintf("server=%d proxy=%d", serverID, proxyID))
	return nil
}

// UpdateProxy replaces the edge server -> oldProxy with server -> newProxy.
func (r *Registry) UpdateProxy(ctx context.Context, server, oldProxy, newProxy any) error {
	serverID, oldID, err := r.proxyPair(ctx, server, oldProxy)
	if err != nil {
		return err
	}
	_, newID, err := r.proxyPair(ctx, serverID, newProxy)
	if err != nil {
		return err
	}
	if err := r.store.UpdateProxyEdge(ctx, serverID, oldID, newID); err != nil {
		return fault.Wrap(fault.ErrUnknown, "servers update proxy", err)
	}
	r.audit(ctx, "PROXY_UPDATE", fmt.Sprintf("server=%d proxy=%d->%d", serverID, oldID, newID))
	return nil
}

// DeleteProxy removes the edge server -> proxy. A nil proxy removes every
// edge of server.
func (r *Registry) DeleteProxy(ctx context.Context, server, proxy any) (int64, error) {
	serverID, err := r.GetID(ctx, server)
	if err != nil {
		return 0, err
	}
	var proxyID int64
	if proxy != nil {
		if proxyID, err = r.GetID(ctx, proxy); err != nil {
			return 0, err
		}
	}
	n, err := r.store.DeleteProxyEdge(ctx, serverID, proxyID)
	if err != nil {
		return 0, fault.Wrap(fault.ErrUnknown, "servers delete proxy", err)
	}
	r.audit(ctx, "PROXY_DELETE", fmt.Sprintf("server=%d proxy=%d removed=%d", serverID, proxyID, n))
	return n, nil
}

// ListProxies returns the servers that server may be reached through, in
// edge order, with credentials stripped.
func (r *Registry) ListProxies(ctx context.Context, server any) ([]model.Server, error) {
	serverID, err := r.GetID(ctx, server)
	if err != nil {
		return nil, err
	}
	edges, err := r.store.ProxyEdges(ctx, serverID)
	if err != nil {
		return nil, fault.Wrap(fault.ErrUnknown, "servers list proxies", err)
	}
	out := make([]model.Server, 0, len(edges))
	for _, e := range edges {
		rows, err := r.store.LookupServers(ctx, db.ServerQuery{ID: e.ProxyID, IncludeInactive: true})
		if err != nil {
			return nil, fault.Wrap(fault.ErrUnknown, "servers list proxies", err)
		}
		if len(rows) == 0 {
			continue
		}
		s := rows[0]
		s.SSHKey, s.Password = nil, nil
		out = append(out, s)
	}
	return out, nil
}
