// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/toeirei/serverbase/internal/model"
	"github.com/uptrace/bun"
)

// Entity names a table holding records that servers reference.
type Entity string

const (
	EntitySSHAccount      Entity = "ssh_accounts"
	EntityDatabaseAccount Entity = "database_accounts"
	EntityProvider        Entity = "providers"
	EntityCustomer        Entity = "customers"
	EntityServer          Entity = "servers"
	EntityDomain          Entity = "domains"
)

// ServerQuery selects servers by exactly one of its keys. Name matches the
// domain or the seodomain; Contains matches a substring of either.
type ServerQuery struct {
	ID              int64
	Name            string
	Contains        string
	IncludeInactive bool
}

// ServerFilter narrows ListServers. An empty Status lists active rows only
// unless AnyStatus is set.
type ServerFilter struct {
	Status     string
	AnyStatus  bool
	CustomerID int64
	ProviderID int64
	Search     string
	Limit      int
	Offset     int
}

// Store is the persistence contract of the registry.
type Store interface {
	// Servers
	LookupServers(ctx context.Context, q ServerQuery) ([]model.Server, error)
	ListServers(ctx context.Context, f ServerFilter) ([]model.Server, error)
	InsertServer(ctx context.Context, s *model.Server) error
	UpdateServer(ctx context.Context, s *model.Server) error
	SetServerStatus(ctx context.Context, id int64, status string) error
	DeleteServer(ctx context.Context, id int64) error
	DomainTaken(ctx context.Context, domain string, excludeID int64) (bool, error)

	// Referenced records
	Exists(ctx context.Context, e Entity, id int64) (bool, error)
	SEONameTaken(ctx context.Context, e Entity, seoname string) (bool, error)
	AddSSHAccount(ctx context.Context, a *model.SSHAccount) error
	GetSSHAccount(ctx context.Context, id int64) (*model.SSHAccount, error)
	ListSSHAccounts(ctx context.Context) ([]model.SSHAccount, error)
	AddDatabaseAccount(ctx context.Context, a *model.DatabaseAccount) error
	GetDatabaseAccount(ctx context.Context, id int64) (*model.DatabaseAccount, error)
	ListDatabaseAccounts(ctx context.Context) ([]model.DatabaseAccount, error)
	AddParty(ctx context.Context, e Entity, p *model.Party) error
	ListParties(ctx context.Context, e Entity) ([]model.Party, error)

	// Proxy edges
	ProxyEdges(ctx context.Context, serverID int64) ([]model.ProxyEdge, error)
	AddProxyEdge(ctx context.Context, serverID, proxyID int64) (int64, error)
	UpdateProxyEdge(ctx context.Context, serverID, oldProxyID, newProxyID int64) error
	DeleteProxyEdge(ctx context.Context, serverID, proxyID int64) (int64, error)

	// Domains
	ReplaceDomainLinks(ctx context.Context, serverID int64, domains []model.Domain) error
	AddDomainLink(ctx context.Context, serverID int64, d model.Domain) error
	RemoveDomainLinks(ctx context.Context, serverID int64, domain string) (int64, error)
	ServerDomains(ctx context.Context, serverID int64) ([]model.Domain, error)

	// Known hosts
	KnownHosts(ctx context.Context, hostname string, port int) ([]model.KnownHost, error)
	AddKnownHost(ctx context.Context, kh *model.KnownHost) error
	DeleteKnownHosts(ctx context.Context, serverID int64) error

	// Audit
	LogAction(ctx context.Context, action, details string) error
	AuditLog(ctx context.Context, limit int) ([]model.AuditLogEntry, error)

	// Backup
	Export(ctx context.Context) (*Snapshot, error)
	Import(ctx context.Context, snap *Snapshot, integrate bool) error

	Close() error
}

// BunStore implements Store on top of a *bun.DB.
type BunStore struct {
	bun    *bun.DB
	dbType string
}

var _ Store = (*BunStore)(nil)

// NewBunStoreFromDB wraps an already migrated *sql.DB.
func NewBunStoreFromDB(sqlDB *sql.DB, dbType string) (*BunStore, error) {
	bdb, err := NewBunDB(sqlDB, dbType)
	if err != nil {
		return nil, err
	}
	return &BunStore{bun: bdb, dbType: dbType}, nil
}

// BunDB exposes the underlying Bun handle.
func (s *BunStore) BunDB() *bun.DB { return s.bun }

// Type returns the configured database type.
func (s *BunStore) Type() string { return s.dbType }

// Close releases the connection pool.
func (s *BunStore) Close() error { return s.bun.Close() }

func (e Entity) valid() error {
	switch e {
	case EntitySSHAccount, EntityDatabaseAccount, EntityProvider, EntityCustomer, EntityServer, EntityDomain:
		return nil
	}
	return fmt.Errorf("unknown entity %q", string(e))
}

// Exists reports whether an active row with id exists in e.
func (s *BunStore) Exists(ctx context.Context, e Entity, id int64) (bool, error) {
	if err := e.valid(); err != nil {
		return false, err
	}
	return s.bun.NewSelect().
		TableExpr(string(e)).
		Where("id = ?", id).
		Where("status IS NULL").
		Exists(ctx)
}

// SEONameTaken reports whether seoname is already used in e. Domains and
// servers are keyed by seodomain, everything else by seoname.
func (s *BunStore) SEONameTaken(ctx context.Context, e Entity, seoname string) (bool, error) {
	if err := e.valid(); err != nil {
		return false, err
	}
	column := "seoname"
	if e == EntityServer || e == EntityDomain {
		column = "seodomain"
	}
	return s.bun.NewSelect().
		TableExpr(string(e)).
		Where("? = ?", bun.Ident(column), seoname).
		Exists(ctx)
}

// BeginTx starts a transaction on the store's database.
func (s *BunStore) BeginTx(ctx context.Context, opts *sql.TxOptions) (bun.Tx, error) {
	return s.bun.BeginTx(ctx, opts)
}

// WithTx runs fn in a transaction, committing when fn returns nil.
func (s *BunStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	tx, err := s.bun.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

func notFound(err error) bool { return errors.Is(err, sql.ErrNoRows) }
