// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"

	"github.com/toeirei/serverbase/internal/model"
)

// KnownHosts returns the trusted keys for hostname:port.
func (s *BunStore) KnownHosts(ctx context.Context, hostname string, port int) ([]model.KnownHost, error) {
	var rows []KnownHostModel
	if err := s.bun.NewSelect().
		Model(&rows).
		Where("kh.hostname = ?", hostname).
		Where("kh.port = ?", port).
		Order("kh.id ASC").
		Scan(ctx); err != nil && !notFound(err) {
		return nil, err
	}
	out := make([]model.KnownHost, 0, len(rows))
	for _, r := range rows {
		out = append(out, knownHostFromModel(r))
	}
	return out, nil
}

// AddKnownHost trusts a host key. A key already stored for the same host,
// port and algorithm yields ErrDuplicate.
func (s *BunStore) AddKnownHost(ctx context.Context, kh *model.KnownHost) error {
	m := &KnownHostModel{
		ServerID:    kh.ServerID,
		Hostname:    kh.Hostname,
		Port:        kh.Port,
		Algorithm:   kh.Algorithm,
		Fingerprint: kh.Fingerprint,
		PublicKey:   kh.PublicKey,
	}
	if m.Port == 0 {
		m.Port = model.DefaultSSHPort
	}
	if _, err := s.bun.NewInsert().Model(m).ExcludeColumn("id").Returning("id").Exec(ctx); err != nil {
		return MapDBError(err)
	}
	kh.ID = m.ID
	kh.Port = m.Port
	return nil
}

// DeleteKnownHosts forgets every key registered for serverID.
func (s *BunStore) DeleteKnownHosts(ctx context.Context, serverID int64) error {
	_, err := s.bun.NewDelete().Model((*KnownHostModel)(nil)).Where("servers_id = ?", serverID).Exec(ctx)
	return err
}
