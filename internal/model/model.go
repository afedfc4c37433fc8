// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

// package model defines the records kept in the server registry.
package model // import "github.com/toeirei/serverbase/internal/model"

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/toeirei/serverbase/internal/security"
)

// Status values. An empty status is stored as NULL and means the record is
// active; every other value hides the record from lookups and listings.
const (
	StatusActive  = ""
	StatusTesting = "testing"
	StatusDeleted = "deleted"
)

// DefaultSSHPort is used when a server does not carry a port.
const DefaultSSHPort = 22

// Server is a registered remote host together with the SSH account fields it
// is reached with.
type Server struct {
	ID                    int64      `json:"id"`
	CreatedOn             time.Time  `json:"created_on"`
	Domain                string     `json:"domain"`
	SEODomain             string     `json:"seodomain"`
	IPv4                  string     `json:"ipv4,omitempty"`
	IPv6                  string     `json:"ipv6,omitempty"`
	Port                  int        `json:"port"`
	SSHAccountID          int64      `json:"ssh_account_id,omitempty"`
	DatabaseAccountID     int64      `json:"database_account_id,omitempty"`
	ProviderID            int64      `json:"provider_id,omitempty"`
	CustomerID            int64      `json:"customer_id,omitempty"`
	Status                string     `json:"status,omitempty"`
	AllowSSHDModification bool       `json:"allow_sshd_modification"`
	Description           string     `json:"description,omitempty"`
	BillDueDate           *time.Time `json:"bill_duedate,omitempty"`
	Cost                  float64    `json:"cost,omitempty"`
	Interval              string     `json:"interval,omitempty"`

	// Joined from ssh_accounts.
	Username string          `json:"username,omitempty"`
	SSHKey   security.Secret `json:"-"`
	Password security.Secret `json:"-"`

	// IdentityFile points at an already materialized private key. It is
	// never persisted.
	IdentityFile string `json:"-"`

	// Persist asks the executor to keep the connection open for reuse.
	Persist bool `json:"persist,omitempty"`

	// Proxies lists the hops to tunnel through. Index 0 is the hop next to
	// this server, the last element is dialed first.
	Proxies []ProxyHop `json:"proxies,omitempty"`
}

// Address returns the host to connect to: the IPv4 literal when known, the
// domain otherwise.
func (s Server) Address() string {
	if s.IPv4 != "" {
		return s.IPv4
	}
	if s.IPv6 != "" {
		return s.IPv6
	}
	return s.Domain
}

// HostPort returns Address joined with the SSH port.
func (s Server) HostPort() string {
	port := s.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	return net.JoinHostPort(s.Address(), strconv.Itoa(port))
}

// HasCredentials reports whether anything can authenticate against the server.
func (s Server) HasCredentials() bool {
	return s.IdentityFile != "" || !s.SSHKey.Empty() || !s.Password.Empty()
}

// Clone returns a copy of s whose secrets and proxy hops do not share
// memory with s, so zeroing the copy's keys leaves s intact.
func (s Server) Clone() Server {
	c := s
	c.SSHKey = security.FromBytes(s.SSHKey)
	c.Password = security.FromBytes(s.Password)
	if s.Proxies != nil {
		c.Proxies = make([]ProxyHop, len(s.Proxies))
		for i, h := range s.Proxies {
			h.SSHKey = security.FromBytes(h.SSHKey)
			h.Password = security.FromBytes(h.Password)
			c.Proxies[i] = h
		}
	}
	return c
}

// Active reports whether the status is NULL.
func (s Server) Active() bool { return s.Status == StatusActive }

// Trim returns the subset of the record a proxy hop needs.
func (s Server) Trim() ProxyHop {
	return ProxyHop{
		ID:       s.ID,
		Domain:   s.Domain,
		IPv4:     s.IPv4,
		Port:     s.Port,
		Username: s.Username,
		SSHKey:   s.SSHKey,
		Password: s.Password,
	}
}

func (s Server) String() string {
	return fmt.Sprintf("%s (#%d)", s.Domain, s.ID)
}

// ProxyHop is the trimmed server record used for tunnelling.
type ProxyHop struct {
	ID       int64           `json:"id"`
	Domain   string          `json:"domain"`
	IPv4     string          `json:"ipv4,omitempty"`
	Port     int             `json:"port"`
	Username string          `json:"username,omitempty"`
	SSHKey   security.Secret `json:"-"`
	Password security.Secret `json:"-"`

	// IdentityFile is set by the executor while the hop's key is materialized.
	IdentityFile string `json:"-"`
}

// HostPort returns the hop address joined with its port.
func (h ProxyHop) HostPort() string {
	host := h.IPv4
	if host == "" {
		host = h.Domain
	}
	port := h.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// SSHAccount is a login used to reach servers.
type SSHAccount struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	SEOName     string          `json:"seoname"`
	Username    string          `json:"username"`
	SSHKey      security.Secret `json:"-"`
	Password    security.Secret `json:"-"`
	Description string          `json:"description,omitempty"`
	Status      string          `json:"status,omitempty"`
}

// DatabaseAccount holds credentials for the database running on a server.
type DatabaseAccount struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	SEOName      string          `json:"seoname"`
	Username     string          `json:"username"`
	Password     security.Secret `json:"-"`
	RootPassword security.Secret `json:"-"`
	Status       string          `json:"status,omitempty"`
}

// Party is a provider or a customer; both share the same shape.
type Party struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	SEOName string `json:"seoname"`
	Status  string `json:"status,omitempty"`
}

// Domain is a DNS domain that can be linked to many servers.
type Domain struct {
	ID         int64  `json:"id"`
	Domain     string `json:"domain"`
	SEODomain  string `json:"seodomain"`
	CustomerID int64  `json:"customer_id,omitempty"`
	ProviderID int64  `json:"provider_id,omitempty"`
	Status     string `json:"status,omitempty"`
}

// ProxyEdge says ServerID may be reached through ProxyID.
type ProxyEdge struct {
	ID       int64 `json:"id"`
	ServerID int64 `json:"servers_id"`
	ProxyID  int64 `json:"proxies_id"`
}

// DomainLink is a row of domains_servers.
type DomainLink struct {
	ServerID int64 `json:"servers_id"`
	DomainID int64 `json:"domains_id"`
}

// KnownHost is a trusted host key of a registered server.
type KnownHost struct {
	ID          int64  `json:"id"`
	ServerID    int64  `json:"servers_id"`
	Hostname    string `json:"hostname"`
	Port        int    `json:"port"`
	Algorithm   string `json:"algorithm"`
	Fingerprint string `json:"fingerprint"`
	PublicKey   string `json:"public_key"`
}

// AuditLogEntry records a change or remote call.
type AuditLogEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}
