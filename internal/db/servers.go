// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"fmt"

	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/model"
	"github.com/uptrace/bun"
)

// selectServers starts a servers query joined with the SSH account login.
func (s *BunStore) selectServers(rows *[]serverWithAccount) *bun.SelectQuery {
	return s.bun.NewSelect().
		Model(rows).
		ColumnExpr("s.*").
		ColumnExpr("a.username AS ssh_username").
		ColumnExpr("a.ssh_key AS ssh_key").
		ColumnExpr("a.password AS ssh_password").
		Join("LEFT JOIN ssh_accounts AS a ON a.id = s.ssh_account_id")
}

func toServers(rows []serverWithAccount) []model.Server {
	out := make([]model.Server, 0, len(rows))
	for _, r := range rows {
		srv := serverFromModel(r.ServerModel)
		srv.Username = r.Username
		srv.SSHKey = r.SSHKey
		srv.Password = r.Password
		out = append(out, srv)
	}
	return out
}

// LookupServers returns every server matching q. Callers decide what zero
// or several matches mean.
func (s *BunStore) LookupServers(ctx context.Context, q ServerQuery) ([]model.Server, error) {
	var rows []serverWithAccount
	sel := s.selectServers(&rows)
	switch {
	case q.ID != 0:
		sel = sel.Where("s.id = ?", q.ID)
	case q.Name != "":
		sel = sel.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where("s.domain = ?", q.Name).WhereOr("s.seodomain = ?", q.Name)
		})
	case q.Contains != "":
		pattern := "%" + q.Contains + "%"
		sel = sel.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where("s.domain LIKE ?", pattern).WhereOr("s.seodomain LIKE ?", pattern)
		})
	default:
		return nil, fault.Errorf(fault.ErrNotSpecified, "server query without key")
	}
	if !q.IncludeInactive {
		sel = sel.Where("s.status IS NULL")
	}
	if err := sel.Order("s.id ASC").Scan(ctx); err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup servers: %w", err)
	}
	dbLogf("db: lookup %+v matched %d rows", q, len(rows))
	return toServers(rows), nil
}

// ListServers returns servers ordered by domain.
func (s *BunStore) ListServers(ctx context.Context, f ServerFilter) ([]model.Server, error) {
	var rows []serverWithAccount
	sel := s.selectServers(&rows)
	switch {
	case f.Status != "":
		sel = sel.Where("s.status = ?", f.Status)
	case !f.AnyStatus:
		sel = sel.Where("s.status IS NULL")
	}
	if f.CustomerID != 0 {
		sel = sel.Where("s.customer_id = ?", f.CustomerID)
	}
	if f.ProviderID != 0 {
		sel = sel.Where("s.provider_id = ?", f.ProviderID)
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		sel = sel.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where("s.domain LIKE ?", pattern).
				WhereOr("s.seodomain LIKE ?", pattern).
				WhereOr("s.description LIKE ?", pattern)
		})
	}
	if f.Limit > 0 {
		sel = sel.Limit(f.Limit)
	}
	if f.Offset > 0 {
		sel = sel.Offset(f.Offset)
	}
	if err := sel.Order("s.domain ASC", "s.id ASC").Scan(ctx); err != nil && !notFound(err) {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	return toServers(rows), nil
}

// InsertServer stores srv and sets its ID.
func (s *BunStore) InsertServer(ctx context.Context, srv *model.Server) error {
	m := serverToModel(srv)
	m.ID = 0
	if _, err := s.bun.NewInsert().Model(&m).ExcludeColumn("id").Returning("id").Exec(ctx); err != nil {
		return MapDBError(err)
	}
	srv.ID = m.ID
	srv.Port = m.Port
	dbLogf("db: inserted server %d (%s)", m.ID, m.Domain)
	return nil
}

// UpdateServer rewrites every column of the row with srv.ID.
func (s *BunStore) UpdateServer(ctx context.Context, srv *model.Server) error {
	if srv.ID == 0 {
		return fault.Errorf(fault.ErrNotSpecified, "server id missing")
	}
	m := serverToModel(srv)
	res, err := s.bun.NewUpdate().
		Model(&m).
		ExcludeColumn("id", "created_on").
		WherePK().
		Exec(ctx)
	if err != nil {
		return MapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.Errorf(fault.ErrNotFound, "server %d", srv.ID)
	}
	return nil
}

// SetServerStatus changes the status column. An empty status reactivates.
func (s *BunStore) SetServerStatus(ctx context.Context, id int64, status string) error {
	q := s.bun.NewUpdate().TableExpr("servers").Where("id = ?", id)
	if status == model.StatusActive {
		q = q.Set("status = NULL")
	} else {
		q = q.Set("status = ?", status)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return MapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.Errorf(fault.ErrNotFound, "server %d", id)
	}
	return nil
}

// DeleteServer removes a server with its known hosts, domain links and
// proxy edges in both directions.
func (s *BunStore) DeleteServer(ctx context.Context, id int64) error {
	tx, err := s.bun.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.NewDelete().Model((*KnownHostModel)(nil)).Where("servers_id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("delete known hosts: %w", err)
	}
	if _, err := tx.NewDelete().Model((*DomainLinkModel)(nil)).Where("servers_id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("delete domain links: %w", err)
	}
	if _, err := tx.NewDelete().Model((*ProxyEdgeModel)(nil)).
		Where("servers_id = ?", id).
		WhereOr("proxies_id = ?", id).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete proxy edges: %w", err)
	}
	res, err := tx.NewDelete().Model((*ServerModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete server: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.Errorf(fault.ErrNotFound, "server %d", id)
	}
	return tx.Commit()
}

// DomainTaken reports whether another active server uses domain.
func (s *BunStore) DomainTaken(ctx context.Context, domain string, excludeID int64) (bool, error) {
	q := s.bun.NewSelect().
		Model((*ServerModel)(nil)).
		Where("s.domain = ?", domain).
		Where("s.status IS NULL")
	if excludeID != 0 {
		q = q.Where("s.id <> ?", excludeID)
	}
	return q.Exists(ctx)
}
