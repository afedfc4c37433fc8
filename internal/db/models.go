// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"time"

	"github.com/toeirei/serverbase/internal/model"
	"github.com/toeirei/serverbase/internal/security"
	"github.com/uptrace/bun"
)

// Bun row types. Nullable columns use nullzero so the Go zero value maps to
// NULL, which keeps "status IS NULL" meaning active.

// ServerModel maps the servers table.
type ServerModel struct {
	bun.BaseModel `bun:"table:servers,alias:s"`

	ID                    int64      `bun:"id,pk,autoincrement"`
	CreatedOn             time.Time  `bun:"created_on,nullzero,notnull,default:current_timestamp"`
	Domain                string     `bun:"domain,notnull"`
	SEODomain             string     `bun:"seodomain,notnull"`
	IPv4                  string     `bun:"ipv4,nullzero"`
	IPv6                  string     `bun:"ipv6,nullzero"`
	Port                  int        `bun:"port,notnull"`
	SSHAccountID          int64      `bun:"ssh_account_id,nullzero"`
	DatabaseAccountID     int64      `bun:"database_account_id,nullzero"`
	ProviderID            int64      `bun:"provider_id,nullzero"`
	CustomerID            int64      `bun:"customer_id,nullzero"`
	Status                string     `bun:"status,nullzero"`
	AllowSSHDModification bool       `bun:"allow_sshd_modification,notnull"`
	Description           string     `bun:"description,nullzero"`
	BillDueDate           *time.Time `bun:"bill_duedate"`
	Cost                  float64    `bun:"cost,nullzero"`
	Interval              string     `bun:"billing_interval,nullzero"`
}

// serverWithAccount is a servers row joined with its SSH account login.
type serverWithAccount struct {
	ServerModel `bun:",extend"`

	Username string          `bun:"ssh_username,scanonly"`
	SSHKey   security.Secret `bun:"ssh_key,scanonly"`
	Password security.Secret `bun:"ssh_password,scanonly"`
}

// SSHAccountModel maps ssh_accounts.
type SSHAccountModel struct {
	bun.BaseModel `bun:"table:ssh_accounts,alias:a"`

	ID          int64           `bun:"id,pk,autoincrement"`
	CreatedOn   time.Time       `bun:"created_on,nullzero,notnull,default:current_timestamp"`
	Name        string          `bun:"name,notnull"`
	SEOName     string          `bun:"seoname,notnull"`
	Username    string          `bun:"username,notnull"`
	SSHKey      security.Secret `bun:"ssh_key"`
	Password    security.Secret `bun:"password"`
	Description string          `bun:"description,nullzero"`
	Status      string          `bun:"status,nullzero"`
}

// DatabaseAccountModel maps database_accounts.
type DatabaseAccountModel struct {
	bun.BaseModel `bun:"table:database_accounts,alias:da"`

	ID           int64           `bun:"id,pk,autoincrement"`
	CreatedOn    time.Time       `bun:"created_on,nullzero,notnull,default:current_timestamp"`
	Name         string          `bun:"name,notnull"`
	SEOName      string          `bun:"seoname,notnull"`
	Username     string          `bun:"username,notnull"`
	Password     security.Secret `bun:"password"`
	RootPassword security.Secret `bun:"root_password"`
	Status       string          `bun:"status,nullzero"`
}

// ProviderModel maps providers.
type ProviderModel struct {
	bun.BaseModel `bun:"table:providers,alias:p"`

	ID        int64     `bun:"id,pk,autoincrement"`
	CreatedOn time.Time `bun:"created_on,nullzero,notnull,default:current_timestamp"`
	Name      string    `bun:"name,notnull"`
	SEOName   string    `bun:"seoname,notnull"`
	Status    string    `bun:"status,nullzero"`
}

// CustomerModel maps customers.
type CustomerModel struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID        int64     `bun:"id,pk,autoincrement"`
	CreatedOn time.Time `bun:"created_on,nullzero,notnull,default:current_timestamp"`
	Name      string    `bun:"name,notnull"`
	SEOName   string    `bun:"seoname,notnull"`
	Status    string    `bun:"status,nullzero"`
}

// ProxyEdgeModel maps servers_ssh_proxies.
type ProxyEdgeModel struct {
	bun.BaseModel `bun:"table:servers_ssh_proxies,alias:sp"`

	ID       int64 `bun:"id,pk,autoincrement"`
	ServerID int64 `bun:"servers_id,notnull"`
	ProxyID  int64 `bun:"proxies_id,notnull"`
}

// DomainModel maps domains.
type DomainModel struct {
	bun.BaseModel `bun:"table:domains,alias:d"`

	ID         int64     `bun:"id,pk,autoincrement"`
	CreatedOn  time.Time `bun:"created_on,nullzero,notnull,default:current_timestamp"`
	Domain     string    `bun:"domain,notnull"`
	SEODomain  string    `bun:"seodomain,notnull"`
	CustomerID int64     `bun:"customer_id,nullzero"`
	ProviderID int64     `bun:"provider_id,nullzero"`
	Status     string    `bun:"status,nullzero"`
}

// DomainLinkModel maps domains_servers.
type DomainLinkModel struct {
	bun.BaseModel `bun:"table:domains_servers,alias:ds"`

	ServerID int64 `bun:"servers_id,pk"`
	DomainID int64 `bun:"domains_id,pk"`
}

// KnownHostModel maps ssh_fingerprints.
type KnownHostModel struct {
	bun.BaseModel `bun:"table:ssh_fingerprints,alias:kh"`

	ID          int64  `bun:"id,pk,autoincrement"`
	ServerID    int64  `bun:"servers_id,nullzero"`
	Hostname    string `bun:"hostname,notnull"`
	Port        int    `bun:"port,notnull"`
	Algorithm   string `bun:"algorithm,notnull"`
	Fingerprint string `bun:"fingerprint,notnull"`
	PublicKey   string `bun:"public_key,notnull"`
}

// AuditLogModel maps audit_log.
type AuditLogModel struct {
	bun.BaseModel `bun:"table:audit_log,alias:al"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Timestamp time.Time `bun:"timestamp,nullzero,notnull,default:current_timestamp"`
	Username  string    `bun:"username,notnull"`
	Action    string    `bun:"action,notnull"`
	Details   string    `bun:"details,nullzero"`
}

func serverFromModel(m ServerModel) model.Server {
	return model.Server{
		ID:                    m.ID,
		CreatedOn:             m.CreatedOn,
		Domain:                m.Domain,
		SEODomain:             m.SEODomain,
		IPv4:                  m.IPv4,
		IPv6:                  m.IPv6,
		Port:                  m.Port,
		SSHAccountID:          m.SSHAccountID,
		DatabaseAccountID:     m.DatabaseAccountID,
		ProviderID:            m.ProviderID,
		CustomerID:            m.CustomerID,
		Status:                m.Status,
		AllowSSHDModification: m.AllowSSHDModification,
		Description:           m.Description,
		BillDueDate:           m.BillDueDate,
		Cost:                  m.Cost,
		Interval:              m.Interval,
	}
}

func serverToModel(s *model.Server) ServerModel {
	port := s.Port
	if port == 0 {
		port = model.DefaultSSHPort
	}
	return ServerModel{
		ID:                    s.ID,
		CreatedOn:             s.CreatedOn,
		Domain:                s.Domain,
		SEODomain:             s.SEODomain,
		IPv4:                  s.IPv4,
		IPv6:                  s.IPv6,
		Port:                  port,
		SSHAccountID:          s.SSHAccountID,
		DatabaseAccountID:     s.DatabaseAccountID,
		ProviderID:            s.ProviderID,
		CustomerID:            s.CustomerID,
		Status:                s.Status,
		AllowSSHDModification: s.AllowSSHDModification,
		Description:           s.Description,
		BillDueDate:           s.BillDueDate,
		Cost:                  s.Cost,
		Interval:              s.Interval,
	}
}

func sshAccountFromModel(m SSHAccountModel) model.SSHAccount {
	return model.SSHAccount{
		ID:          m.ID,
		Name:        m.Name,
		SEOName:     m.SEOName,
		Username:    m.Username,
		SSHKey:      m.SSHKey,
		Password:    m.Password,
		Description: m.Description,
		Status:      m.Status,
	}
}

func databaseAccountFromModel(m DatabaseAccountModel) model.DatabaseAccount {
	return model.DatabaseAccount{
		ID:           m.ID,
		Name:         m.Name,
		SEOName:      m.SEOName,
		Username:     m.Username,
		Password:     m.Password,
		RootPassword: m.RootPassword,
		Status:       m.Status,
	}
}

func domainFromModel(m DomainModel) model.Domain {
	return model.Domain{
		ID:         m.ID,
		Domain:     m.Domain,
		SEODomain:  m.SEODomain,
		CustomerID: m.CustomerID,
		ProviderID: m.ProviderID,
		Status:     m.Status,
	}
}

func knownHostFromModel(m KnownHostModel) model.KnownHost {
	return model.KnownHost{
		ID:          m.ID,
		ServerID:    m.ServerID,
		Hostname:    m.Hostname,
		Port:        m.Port,
		Algorithm:   m.Algorithm,
		Fingerprint: m.Fingerprint,
		PublicKey:   m.PublicKey,
	}
}
