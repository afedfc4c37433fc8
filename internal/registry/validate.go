// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package registry

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ccojocar/zxcvbn-go"
	"github.com/toeirei/serverbase/internal/db"
	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/model"
	"github.com/toeirei/serverbase/internal/seo"
)

// MaxDescriptionLength is the longest accepted server description.
const MaxDescriptionLength = 2047

// domainRegex validates domain name format (RFC 1035).
var domainRegex = regexp.MustCompile(`^(?i)[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)

// ValidDomain reports whether domain is a syntactically valid host name.
func ValidDomain(domain string) bool {
	return domain != "" && len(domain) <= 253 && domainRegex.MatchString(domain)
}

// ServerInput is a server record plus the extra domains to link to it.
type ServerInput struct {
	Server  model.Server
	Domains []string
}

// ValidateOptions selects optional checks.
type ValidateOptions struct {
	CheckPassword bool
}

// Validate runs every check on in and reports all problems at once as a
// fault.ValidationError. It normalizes in along the way: the domain is
// lowercased, seodomain is derived, a zero port becomes 22 and an empty IPv4
// is resolved from the domain when resolution is enabled.
func (r *Registry) Validate(ctx context.Context, in *ServerInput, opts ValidateOptions) error {
	if in == nil {
		return fault.Errorf(fault.ErrNotSpecified, "no server given")
	}
	s := &in.Server
	var v fault.ValidationError

	// password strength
	if opts.CheckPassword {
		r.checkPassword(s, &v)
	}

	// database account
	if s.DatabaseAccountID != 0 {
		r.checkExists(ctx, &v, "database_account_id", db.EntityDatabaseAccount, s.DatabaseAccountID)
	}

	// domain format
	s.Domain = normalizeDomain(s.Domain)
	domainOK := ValidDomain(s.Domain)
	switch {
	case s.Domain == "":
		v.Add("domain", "required")
	case !domainOK:
		v.Add("domain", "invalid domain %q", s.Domain)
	default:
		s.SEODomain = seo.Domain(s.Domain)
	}

	// description
	if n := utf8.RuneCountInString(s.Description); n > MaxDescriptionLength {
		v.Add("description", "too long (%d > %d characters)", n, MaxDescriptionLength)
	}

	// addresses
	s.IPv4 = strings.TrimSpace(s.IPv4)
	switch {
	case s.IPv4 != "":
		if ip := net.ParseIP(s.IPv4); ip == nil || ip.To4() == nil || strings.Contains(s.IPv4, ":") {
			v.Add("ipv4", "invalid IPv4 address %q", s.IPv4)
		}
	case domainOK && r.opts.ResolveIPv4 && r.opts.Resolver != nil:
		ips, err := r.opts.Resolver.LookupIPv4(ctx, s.Domain)
		if err != nil || len(ips) == 0 {
			v.Add("ipv4", "could not resolve %s", s.Domain)
		} else {
			s.IPv4 = ips[0]
		}
	}
	if s.IPv6 = strings.TrimSpace(s.IPv6); s.IPv6 != "" {
		if ip := net.ParseIP(s.IPv6); ip == nil || ip.To4() != nil {
			v.Add("ipv6", "invalid IPv6 address %q", s.IPv6)
		}
	}

	// port
	if s.Port == 0 {
		s.Port = model.DefaultSSHPort
	}
	if s.Port < 1 || s.Port > 65535 {
		v.Add("port", "must be between 1 and 65535, got %d", s.Port)
	}

	// extra domains
	for i, d := range in.Domains {
		if !ValidDomain(normalizeDomain(d)) {
			v.Add(fmt.Sprintf("domains[%d]", i), "invalid domain %q", d)
		}
	}

	// referenced records
	if s.ProviderID != 0 {
		r.checkExists(ctx, &v, "provider_id", db.EntityProvider, s.ProviderID)
	}
	if s.CustomerID != 0 {
		r.checkExists(ctx, &v, "customer_id", db.EntityCustomer, s.CustomerID)
	}
	if s.SSHAccountID != 0 {
		r.checkExists(ctx, &v, "ssh_account_id", db.EntitySSHAccount, s.SSHAccountID)
	}

	// uniqueness among other active rows
	if domainOK {
		taken, err := r.store.DomainTaken(ctx, s.Domain, s.ID)
		switch {
		case err != nil:
			v.Add("domain", "uniqueness check failed: %v", err)
		case taken:
			v.Add("domain", "%s is already registered", s.Domain)
		}
	}

	return v.Err()
}

func (r *Registry) checkPassword(s *model.Server, v *fault.ValidationError) {
	if s.Password.Empty() {
		v.Add("password", "required")
		return
	}
	var score int
	_ = s.Password.Use(func(pw []byte) error {
		score = zxcvbn.PasswordStrength(string(pw), []string{s.Domain, s.Username}).Score
		return nil
	})
	if score < r.opts.MinPasswordScore {
		v.Add("password", "too weak (score %d, need %d)", score, r.opts.MinPasswordScore)
	}
}

func (r *Registry) checkExists(ctx context.Context, v *fault.ValidationError, field string, e db.Entity, id int64) {
	ok, err := r.store.Exists(ctx, e, id)
	switch {
	case err != nil:
		v.Add(field, "lookup failed: %v", err)
	case !ok:
		v.Add(field, "%d does not exist", id)
	}
}
