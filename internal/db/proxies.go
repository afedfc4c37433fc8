// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"

	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/model"
)

// ProxyEdges returns the edges leaving serverID ordered by edge id.
func (s *BunStore) ProxyEdges(ctx context.Context, serverID int64) ([]model.ProxyEdge, error) {
	var rows []ProxyEdgeModel
	if err := s.bun.NewSelect().
		Model(&rows).
		Where("sp.servers_id = ?", serverID).
		Order("sp.id ASC").
		Scan(ctx); err != nil && !notFound(err) {
		return nil, err
	}
	out := make([]model.ProxyEdge, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.ProxyEdge{ID: r.ID, ServerID: r.ServerID, ProxyID: r.ProxyID})
	}
	return out, nil
}

// AddProxyEdge lets serverID be reached through proxyID.
func (s *BunStore) AddProxyEdge(ctx context.Context, serverID, proxyID int64) (int64, error) {
	m := &ProxyEdgeModel{ServerID: serverID, ProxyID: proxyID}
	if _, err := s.bun.NewInsert().Model(m).ExcludeColumn("id").Returning("id").Exec(ctx); err != nil {
		return 0, MapDBError(err)
	}
	return m.ID, nil
}

// UpdateProxyEdge repoints the edge serverID -> oldProxyID to newProxyID.
func (s *BunStore) UpdateProxyEdge(ctx context.Context, serverID, oldProxyID, newProxyID int64) error {
	res, err := s.bun.NewUpdate().
		Model((*ProxyEdgeModel)(nil)).
		Set("proxies_id = ?", newProxyID).
		Where("servers_id = ?", serverID).
		Where("proxies_id = ?", oldProxyID).
		Exec(ctx)
	if err != nil {
		return MapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.Errorf(fault.ErrNotFound, "proxy edge %d -> %d", serverID, oldProxyID)
	}
	return nil
}

// DeleteProxyEdge removes the edge serverID -> proxyID, or every edge of
// serverID when proxyID is zero. It returns the number of removed edges.
func (s *BunStore) DeleteProxyEdge(ctx context.Context, serverID, proxyID int64) (int64, error) {
	q := s.bun.NewDelete().Model((*ProxyEdgeModel)(nil)).Where("servers_id = ?", serverID)
	if proxyID != 0 {
		q = q.Where("proxies_id = ?", proxyID)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
