// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// Snapshot holds every registry row, secrets included, for backup and
// restore.
type Snapshot struct {
	Providers        []ProviderModel
	Customers        []CustomerModel
	SSHAccounts      []SSHAccountModel
	DatabaseAccounts []DatabaseAccountModel
	Servers          []ServerModel
	ProxyEdges       []ProxyEdgeModel
	Domains          []DomainModel
	DomainLinks      []DomainLinkModel
	KnownHosts       []KnownHostModel
	AuditLog         []AuditLogModel
}

// Tables in dependency order: parents first.
var snapshotTables = []string{
	"providers",
	"customers",
	"ssh_accounts",
	"database_accounts",
	"servers",
	"servers_ssh_proxies",
	"domains",
	"domains_servers",
	"ssh_fingerprints",
	"audit_log",
}

// Export reads every table inside one transaction.
func (s *BunStore) Export(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	err := s.WithTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		targets := []any{
			&snap.Providers,
			&snap.Customers,
			&snap.SSHAccounts,
			&snap.DatabaseAccounts,
			&snap.Servers,
			&snap.ProxyEdges,
			&snap.Domains,
			&snap.DomainLinks,
			&snap.KnownHosts,
			&snap.AuditLog,
		}
		for i, dest := range targets {
			if err := tx.NewSelect().Model(dest).Scan(ctx); err != nil && !notFound(err) {
				return fmt.Errorf("export %s: %w", snapshotTables[i], err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Import loads snap. Without integrate every table is wiped first; with
// integrate rows whose keys already exist are skipped.
func (s *BunStore) Import(ctx context.Context, snap *Snapshot, integrate bool) error {
	return s.WithTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if !integrate {
			for i := len(snapshotTables) - 1; i >= 0; i-- {
				if _, err := ExecRaw(ctx, tx, fmt.Sprintf("DELETE FROM %s", snapshotTables[i])); err != nil {
					return fmt.Errorf("wipe %s: %w", snapshotTables[i], err)
				}
			}
		}
		batches := []struct {
			n    int
			rows any
		}{
			{len(snap.Providers), &snap.Providers},
			{len(snap.Customers), &snap.Customers},
			{len(snap.SSHAccounts), &snap.SSHAccounts},
			{len(snap.DatabaseAccounts), &snap.DatabaseAccounts},
			{len(snap.Servers), &snap.Servers},
			{len(snap.ProxyEdges), &snap.ProxyEdges},
			{len(snap.Domains), &snap.Domains},
			{len(snap.DomainLinks), &snap.DomainLinks},
			{len(snap.KnownHosts), &snap.KnownHosts},
			{len(snap.AuditLog), &snap.AuditLog},
		}
		for i, b := range batches {
			if b.n == 0 {
				continue
			}
			q := tx.NewInsert().Model(b.rows)
			if integrate {
				if s.dbType == "mysql" {
					q = q.Ignore()
				} else {
					q = q.On("CONFLICT DO NOTHING")
				}
			}
			if _, err := q.Exec(ctx); err != nil {
				return fmt.Errorf("import %s: %w", snapshotTables[i], MapDBError(err))
			}
		}
		if s.dbType == "postgres" {
			return resetSequences(ctx, tx)
		}
		return nil
	})
}

// resetSequences moves PostgreSQL id sequences past the imported ids.
func resetSequences(ctx context.Context, tx bun.Tx) error {
	for _, t := range snapshotTables {
		if t == "domains_servers" {
			continue
		}
		q := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)", t, t)
		if _, err := ExecRaw(ctx, tx, q); err != nil {
			return fmt.Errorf("reset sequence of %s: %w", t, err)
		}
	}
	return nil
}
