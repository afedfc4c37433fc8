// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

// Package backup writes and reads zstd-compressed JSON dumps of the
// registry. Secrets are stored in clear text; protect the files accordingly.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/toeirei/serverbase/internal/db"
	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/logging"
	"github.com/toeirei/serverbase/internal/security"
)

// FormatVersion is bumped whenever the archive layout changes.
const FormatVersion = 1

// Store is the part of the database a backup needs.
type Store interface {
	Export(ctx context.Context) (*db.Snapshot, error)
	Import(ctx context.Context, snap *db.Snapshot, integrate bool) error
}

// Archive is the on-disk form of a snapshot.
type Archive struct {
	Version          int                  `json:"version"`
	CreatedAt        time.Time            `json:"created_at"`
	Providers        []db.ProviderModel   `json:"providers"`
	Customers        []db.CustomerModel   `json:"customers"`
	SSHAccounts      []sshAccount         `json:"ssh_accounts"`
	DatabaseAccounts []databaseAccount    `json:"database_accounts"`
	Servers          []db.ServerModel     `json:"servers"`
	ProxyEdges       []db.ProxyEdgeModel  `json:"proxy_edges"`
	Domains          []db.DomainModel     `json:"domains"`
	DomainLinks      []db.DomainLinkModel `json:"domain_links"`
	KnownHosts       []db.KnownHostModel  `json:"known_hosts"`
	AuditLog         []db.AuditLogModel   `json:"audit_log"`
}

// The row types redact their secrets when marshalled; these shadow the
// secret fields with plain strings.
type sshAccount struct {
	db.SSHAccountModel
	SSHKey   string `json:"SSHKey,omitempty"`
	Password string `json:"Password,omitempty"`
}

type databaseAccount struct {
	db.DatabaseAccountModel
	Password     string `json:"Password,omitempty"`
	RootPassword string `json:"RootPassword,omitempty"`
}

// FromSnapshot converts snap into an Archive stamped with now.
func FromSnapshot(snap *db.Snapshot, now time.Time) *Archive {
	a := &Archive{
		Version:     FormatVersion,
		CreatedAt:   now.UTC(),
		Providers:   snap.Providers,
		Customers:   snap.Customers,
		Servers:     snap.Servers,
		ProxyEdges:  snap.ProxyEdges,
		Domains:     snap.Domains,
		DomainLinks: snap.DomainLinks,
		KnownHosts:  snap.KnownHosts,
		AuditLog:    snap.AuditLog,
	}
	for _, m := range snap.SSHAccounts {
		a.SSHAccounts = append(a.SSHAccounts, sshAccount{
			SSHAccountModel: m,
			SSHKey:          string(m.SSHKey),
			Password:        string(m.Password),
		})
	}
	for _, m := range snap.DatabaseAccounts {
		a.DatabaseAccounts = append(a.DatabaseAccounts, databaseAccount{
			DatabaseAccountModel: m,
			Password:             string(m.Password),
			RootPassword:         string(m.RootPassword),
		})
	}
	return a
}

// Snapshot converts a back into database rows.
func (a *Archive) Snapshot() *db.Snapshot {
	snap := &db.Snapshot{
		Providers:   a.Providers,
		Customers:   a.Customers,
		Servers:     a.Servers,
		ProxyEdges:  a.ProxyEdges,
		Domains:     a.Domains,
		DomainLinks: a.DomainLinks,
		KnownHosts:  a.KnownHosts,
		AuditLog:    a.AuditLog,
	}
	for _, acc := range a.SSHAccounts {
		m := acc.SSHAccountModel
		m.SSHKey = secret(acc.SSHKey)
		m.Password = secret(acc.Password)
		snap.SSHAccounts = append(snap.SSHAccounts, m)
	}
	for _, acc := range a.DatabaseAccounts {
		m := acc.DatabaseAccountModel
		m.Password = secret(acc.Password)
		m.RootPassword = secret(acc.RootPassword)
		snap.DatabaseAccounts = append(snap.DatabaseAccounts, m)
	}
	return snap
}

func secret(s string) security.Secret {
	if s == "" {
		return nil
	}
	return security.FromString(s)
}

// Write encodes a as zstd-compressed JSON.
func Write(w io.Writer, a *Archive) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("could not create zstd writer: %w", err)
	}
	if err := json.NewEncoder(zw).Encode(a); err != nil {
		_ = zw.Close()
		return fmt.Errorf("could not encode backup: %w", err)
	}
	return zw.Close()
}

// Read decodes an archive written by Write.
func Read(r io.Reader) (*Archive, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not create zstd reader: %w", err)
	}
	defer zr.Close()

	var a Archive
	if err := json.NewDecoder(zr).Decode(&a); err != nil {
		return nil, fault.Wrap(fault.ErrInvalid, "backup", fmt.Errorf("could not decode json from zstd reader: %w", err))
	}
	if a.Version != FormatVersion {
		return nil, fault.Errorf(fault.ErrInvalid, "unsupported backup version %d", a.Version)
	}
	return &a, nil
}

// DefaultFilename is used when no output file is given.
func DefaultFilename(now time.Time) string {
	return fmt.Sprintf("serverbase-backup-%s.json.zst", now.Format("2006-01-02"))
}

// EnsureExt appends ".zst" unless name already ends with it.
func EnsureExt(name string) string {
	if strings.HasSuffix(name, ".zst") {
		return name
	}
	return name + ".zst"
}

// Create exports st into the file at path. The file is written next to its
// final name and renamed into place, readable by the owner only.
func Create(ctx context.Context, st Store, path string) (*Archive, error) {
	snap, err := st.Export(ctx)
	if err != nil {
		return nil, err
	}
	a := FromSnapshot(snap, time.Now())

	tmp, err := os.CreateTemp(filepath.Dir(path), ".serverbase-backup-*")
	if err != nil {
		return nil, fmt.Errorf("could not create file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return nil, err
	}
	if err := Write(tmp, a); err != nil {
		_ = tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return nil, fmt.Errorf("could not move backup into place: %w", err)
	}
	logging.Infof("backup: wrote %d servers and %d accounts to %s", len(a.Servers), len(a.SSHAccounts)+len(a.DatabaseAccounts), path)
	return a, nil
}

// Restore loads the backup at path into st. A full restore wipes every
// table first; integrate only adds rows whose keys are not taken yet.
func Restore(ctx context.Context, st Store, path string, integrate bool) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fault.Wrap(fault.ErrNotFound, "restore", err)
	}
	defer f.Close()

	a, err := Read(f)
	if err != nil {
		return nil, err
	}
	if err := st.Import(ctx, a.Snapshot(), integrate); err != nil {
		return nil, err
	}
	mode := "full"
	if integrate {
		mode = "integrate"
	}
	logging.Infof("backup: restored %s (%s, created %s)", path, mode, a.CreatedAt.Format(time.RFC3339))
	return a, nil
}
