// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"testing"

	"github.com/toeirei/serverbase/internal/security"
)

func TestServerAddress(t *testing.T) {
	s := Server{Domain: "web1.example.com"}
	if got := s.HostPort(); got != "web1.example.com:22" {
		t.Errorf("unexpected HostPort(): %q", got)
	}

	s.IPv4 = "10.0.0.5"
	s.Port = 2222
	if got := s.HostPort(); got != "10.0.0.5:2222" {
		t.Errorf("unexpected HostPort() with ipv4: %q", got)
	}

	s = Server{Domain: "v6.example.com", IPv6: "2001:db8::1", Port: 22}
	if got := s.HostPort(); got != "[2001:db8::1]:22" {
		t.Errorf("unexpected HostPort() with ipv6: %q", got)
	}
}

func TestServerHasCredentials(t *testing.T) {
	var s Server
	if s.HasCredentials() {
		t.Fatalf("empty server must not have credentials")
	}
	s.Password = security.FromString("pw")
	if !s.HasCredentials() {
		t.Fatalf("password counts as credential")
	}
	s = Server{IdentityFile: "/tmp/id"}
	if !s.HasCredentials() {
		t.Fatalf("identity file counts as credential")
	}
}

func TestServerTrim(t *testing.T) {
	s := Server{ID: 7, Domain: "jump.example.com", IPv4: "192.0.2.1", Port: 22, Username: "ops", Description: "not copied"}
	hop := s.Trim()
	if hop.ID != 7 || hop.Domain != "jump.example.com" || hop.Username != "ops" {
		t.Errorf("unexpected hop %+v", hop)
	}
	if hop.HostPort() != "192.0.2.1:22" {
		t.Errorf("unexpected hop address %q", hop.HostPort())
	}
}

func TestServerClone_DetachesSecrets(t *testing.T) {
	s := Server{
		ID:       3,
		SSHKey:   security.FromString("KEY"),
		Password: security.FromString("pw"),
		Proxies:  []ProxyHop{{ID: 4, SSHKey: security.FromString("HOP")}},
	}
	c := s.Clone()
	c.SSHKey.Zero()
	c.Password.Zero()
	c.Proxies[0].SSHKey.Zero()
	c.Proxies[0].Domain = "changed"

	if string(s.SSHKey.Bytes()) != "KEY" || string(s.Password.Bytes()) != "pw" {
		t.Errorf("zeroing the clone touched the original secrets")
	}
	if string(s.Proxies[0].SSHKey.Bytes()) != "HOP" || s.Proxies[0].Domain != "" {
		t.Errorf("clone shares proxy hops with the original: %+v", s.Proxies[0])
	}
	if c.ID != 3 {
		t.Errorf("clone lost fields: %+v", c)
	}
}
