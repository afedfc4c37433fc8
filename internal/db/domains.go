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

// ensureDomain returns the id of d.Domain, creating the row with d's
// seodomain, customer and provider when it does not exist yet.
func ensureDomain(ctx context.Context, idb bun.IDB, d model.Domain) (int64, error) {
	var existing DomainModel
	err := idb.NewSelect().Model(&existing).Column("id").Where("d.domain = ?", d.Domain).Limit(1).Scan(ctx)
	if err == nil {
		return existing.ID, nil
	}
	if !notFound(err) {
		return 0, err
	}
	m := &DomainModel{
		Domain:     d.Domain,
		SEODomain:  d.SEODomain,
		CustomerID: d.CustomerID,
		ProviderID: d.ProviderID,
		Status:     d.Status,
	}
	if _, err := idb.NewInsert().Model(m).ExcludeColumn("id").Returning("id").Exec(ctx); err != nil {
		return 0, fmt.Errorf("create domain %s: %w", d.Domain, MapDBError(err))
	}
	dbLogf("db: created domain %d (%s)", m.ID, d.Domain)
	return m.ID, nil
}

func linkDomain(ctx context.Context, idb bun.IDB, serverID, domainID int64) error {
	exists, err := idb.NewSelect().
		Model((*DomainLinkModel)(nil)).
		Where("ds.servers_id = ?", serverID).
		Where("ds.domains_id = ?", domainID).
		Exists(ctx)
	if err != nil || exists {
		return err
	}
	_, err = idb.NewInsert().Model(&DomainLinkModel{ServerID: serverID, DomainID: domainID}).Exec(ctx)
	return MapDBError(err)
}

// ReplaceDomainLinks swaps the full link set of serverID for domains in one
// transaction. Unknown domains are created.
func (s *BunStore) ReplaceDomainLinks(ctx context.Context, serverID int64, domains []model.Domain) error {
	return s.WithTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*DomainLinkModel)(nil)).Where("servers_id = ?", serverID).Exec(ctx); err != nil {
			return fmt.Errorf("clear domain links: %w", err)
		}
		for _, d := range domains {
			id, err := ensureDomain(ctx, tx, d)
			if err != nil {
				return err
			}
			if err := linkDomain(ctx, tx, serverID, id); err != nil {
				return fmt.Errorf("link domain %s: %w", d.Domain, err)
			}
		}
		return nil
	})
}

// AddDomainLink links d to serverID. Linking twice is a no-op.
func (s *BunStore) AddDomainLink(ctx context.Context, serverID int64, d model.Domain) error {
	return s.WithTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		id, err := ensureDomain(ctx, tx, d)
		if err != nil {
			return err
		}
		return linkDomain(ctx, tx, serverID, id)
	})
}

// RemoveDomainLinks drops links. With an empty domain every link of
// serverID goes; with serverID zero every link of domain goes.
func (s *BunStore) RemoveDomainLinks(ctx context.Context, serverID int64, domain string) (int64, error) {
	if serverID == 0 && domain == "" {
		return 0, fault.Errorf(fault.ErrNotSpecified, "neither server nor domain given")
	}
	q := s.bun.NewDelete().Model((*DomainLinkModel)(nil))
	if serverID != 0 {
		q = q.Where("servers_id = ?", serverID)
	}
	if domain != "" {
		sub := s.bun.NewSelect().Model((*DomainModel)(nil)).Column("id").Where("d.domain = ?", domain)
		q = q.Where("domains_id IN (?)", sub)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ServerDomains returns the domains linked to serverID ordered by name.
func (s *BunStore) ServerDomains(ctx context.Context, serverID int64) ([]model.Domain, error) {
	var rows []DomainModel
	err := s.bun.NewSelect().
		Model(&rows).
		Join("JOIN domains_servers AS ds ON ds.domains_id = d.id").
		Where("ds.servers_id = ?", serverID).
		Order("d.domain ASC").
		Scan(ctx)
	if err != nil && !notFound(err) {
		return nil, err
	}
	out := make([]model.Domain, 0, len(rows))
	for _, r := range rows {
		out = append(out, domainFromModel(r))
	}
	return out, nil
}
