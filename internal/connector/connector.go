// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

// Package connector opens the named database connections listed in the
// configuration, optionally tunnelled through a registered server.
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/toeirei/serverbase/internal/config"
	"github.com/toeirei/serverbase/internal/db"
	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/logging"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/ssh"
)

// Tunneler opens SSH clients to registered servers.
type Tunneler interface {
	Connect(ctx context.Context, ident any) (*ssh.Client, func(), error)
}

// Manager resolves connectors by name.
type Manager struct {
	conns  map[string]config.Connector
	tunnel Tunneler
}

// New returns a Manager over conns. tunnel may be nil when no connector is
// tunnelled.
func New(conns map[string]config.Connector, tunnel Tunneler) *Manager {
	return &Manager{conns: conns, tunnel: tunnel}
}

// Names lists the configured connectors in lexical order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.conns))
	for n := range m.conns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the connector called name.
func (m *Manager) Get(name string) (config.Connector, error) {
	if name == "" {
		return config.Connector{}, fault.Errorf(fault.ErrNotSpecified, "no connector given")
	}
	c, ok := m.conns[name]
	if !ok {
		return config.Connector{}, fault.Errorf(fault.ErrNotFound, "connector %q not found", name)
	}
	return c, nil
}

// DB is an open connector. Close releases the tunnel as well.
type DB struct {
	*bun.DB
	release func()
}

// Close closes the database and the SSH tunnel behind it.
func (d *DB) Close() error {
	err := d.DB.Close()
	if d.release != nil {
		d.release()
	}
	return err
}

// Open connects to the connector called name.
func (m *Manager) Open(ctx context.Context, name string) (*DB, error) {
	c, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	if !c.Tunnel.Enabled() {
		sqlDB, err := sql.Open(db.DriverName(c.Driver), c.Dsn)
		if err != nil {
			return nil, fault.Wrap(fault.ErrInvalid, "connector "+name, err)
		}
		return wrap(sqlDB, c.Driver, nil)
	}

	if m.tunnel == nil {
		return nil, fault.Errorf(fault.ErrInvalid, "connector %s needs a tunnel but none is available", name)
	}
	client, release, err := m.tunnel.Connect(ctx, c.Tunnel.Server)
	if err != nil {
		return nil, err
	}
	logging.Debugf("connector: %s tunnelled through %s", name, c.Tunnel.Server)

	var sqlDB *sql.DB
	switch c.Driver {
	case "mysql":
		sqlDB, err = openMySQL(client, c)
	case "postgres":
		sqlDB, err = openPostgres(client, c)
	default:
		err = fmt.Errorf("driver %s cannot be tunnelled", c.Driver)
	}
	if err != nil {
		release()
		return nil, fault.Wrap(fault.ErrInvalid, "connector "+name, err)
	}
	return wrap(sqlDB, c.Driver, release)
}

// Ping opens the connector, pings it and closes it again.
func (m *Manager) Ping(ctx context.Context, name string) error {
	d, err := m.Open(ctx, name)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.PingContext(ctx); err != nil {
		return fault.Wrap(fault.ErrExecutionFailed, "connector "+name, err)
	}
	return nil
}

func wrap(sqlDB *sql.DB, driver string, release func()) (*DB, error) {
	bdb, err := db.NewBunDB(sqlDB, driver)
	if err != nil {
		_ = sqlDB.Close()
		if release != nil {
			release()
		}
		return nil, fault.Wrap(fault.ErrInvalid, "connector", err)
	}
	return &DB{DB: bdb, release: release}, nil
}

// remoteAddr is the database address as seen from the tunnel server.
func remoteAddr(t config.Tunnel, dsnPort, defPort int) string {
	host := t.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := t.Port
	if port == 0 {
		port = dsnPort
	}
	if port == 0 {
		port = defPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func openMySQL(client *ssh.Client, c config.Connector) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(c.Dsn)
	if err != nil {
		return nil, err
	}
	port := splitPort(cfg.Addr)
	addr := remoteAddr(c.Tunnel, port, 3306)

	network := "serverbase-" + uuid.NewString()
	mysql.RegisterDialContext(network, func(ctx context.Context, _ string) (net.Conn, error) {
		return client.DialContext(ctx, "tcp", addr)
	})
	cfg.Net = network
	cfg.Addr = addr
	conn, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(conn), nil
}

func openPostgres(client *ssh.Client, c config.Connector) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(c.Dsn)
	if err != nil {
		return nil, err
	}
	addr := remoteAddr(c.Tunnel, int(cfg.Port), 5432)
	cfg.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
		return client.DialContext(ctx, "tcp", addr)
	}
	// The host is resolved on the far side of the tunnel.
	cfg.LookupFunc = func(_ context.Context, host string) ([]string, error) {
		return []string{host}, nil
	}
	cfg.Fallbacks = nil
	return stdlib.OpenDB(*cfg), nil
}

func splitPort(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(p)
	return port
}
