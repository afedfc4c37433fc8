// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/toeirei/serverbase/internal/db"
	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/model"
	"github.com/toeirei/serverbase/internal/seo"
)

// domainRecord builds the domain row created when name is not known yet.
// It inherits customer and provider from srv.
func domainRecord(srv *model.Server, name string) model.Domain {
	name = normalizeDomain(name)
	return model.Domain{
		Domain:     name,
		SEODomain:  seo.Domain(name),
		CustomerID: srv.CustomerID,
		ProviderID: srv.ProviderID,
	}
}

// withUniqueSEODomains gives every record a seodomain that is neither stored
// yet nor used by an earlier record of the same batch. Distinct domains such
// as my-site.com and my.site.com share a slug otherwise.
func (r *Registry) withUniqueSEODomains(ctx context.Context, records []model.Domain) error {
	claimed := make(map[string]bool, len(records))
	for i := range records {
		slug, err := seo.Unique(ctx, records[i].SEODomain, maxSEOSuffix, func(ctx context.Context, candidate string) (bool, error) {
			if claimed[candidate] {
				return true, nil
			}
			return r.store.SEONameTaken(ctx, db.EntityDomain, candidate)
		})
		if err != nil {
			return fault.Wrap(fault.ErrUnknown, "domain seodomain", err)
		}
		claimed[slug] = true
		records[i].SEODomain = slug
	}
	return nil
}

func normalizeDomain(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}

// UpdateDomains replaces the full set of domains linked to server. Calling
// it twice with the same list leaves the same links behind.
func (r *Registry) UpdateDomains(ctx context.Context, server any, domains []string) error {
	srv, err := r.Get(ctx, server, GetOptions{IncludeInactive: true})
	if err != nil {
		return err
	}
	if srv == nil {
		return fault.Errorf(fault.ErrNotSpecified, "no server given")
	}
	var v fault.ValidationError
	records := make([]model.Domain, 0, len(domains))
	for i, d := range domains {
		if !ValidDomain(normalizeDomain(d)) {
			v.Add(fmt.Sprintf("domains[%d]", i), "invalid domain %q", d)
			continue
		}
		records = append(records, domainRecord(srv, d))
	}
	if err := v.Err(); err != nil {
		return err
	}
	if err := r.withUniqueSEODomains(ctx, records); err != nil {
		return err
	}
	if err := r.store.ReplaceDomainLinks(ctx, srv.ID, records); err != nil {
		return fault.Wrap(fault.ErrUnknown, "servers update domains", err)
	}
	r.audit(ctx, "SERVER_DOMAINS", fmt.Sprintf("server=%d domains=%s", srv.ID, strings.Join(domains, ",")))
	return nil
}

// AddDomain links one domain to server, creating the domain if needed.
func (r *Registry) AddDomain(ctx context.Context, server any, domain string) error {
	if domain == "" {
		return fault.Errorf(fault.ErrNotSpecified, "no domain given")
	}
	if !ValidDomain(normalizeDomain(domain)) {
		return fault.Errorf(fault.ErrInvalid, "invalid domain %q", domain)
	}
	srv, err := r.Get(ctx, server, GetOptions{IncludeInactive: true})
	if err != nil {
		return err
	}
	if srv == nil {
		return fault.Errorf(fault.ErrNotSpecified, "no server given")
	}
	records := []model.Domain{domainRecord(srv, domain)}
	if err := r.withUniqueSEODomains(ctx, records); err != nil {
		return err
	}
	if err := r.store.AddDomainLink(ctx, srv.ID, records[0]); err != nil {
		return fault.Wrap(fault.ErrUnknown, "servers add domain", err)
	}
	r.audit(ctx, "SERVER_DOMAIN_ADD", fmt.Sprintf("server=%d domain=%s", srv.ID, domain))
	return nil
}

// RemoveDomain unlinks domain from server. An empty domain removes every
// link of server; a nil server removes every link of domain. Omitting both
// is fault.ErrNotSpecified.
func (r *Registry) RemoveDomain(ctx context.Context, server any, domain string) (int64, error) {
	if server == nil && domain == "" {
		return 0, fault.Errorf(fault.ErrNotSpecified, "neither server nor domain given")
	}
	var serverID int64
	if server != nil {
		id, err := r.GetID(ctx, server)
		if err != nil {
			return 0, err
		}
		serverID = id
	}
	n, err := r.store.RemoveDomainLinks(ctx, serverID, normalizeDomain(domain))
	if err != nil {
		return 0, fault.Wrap(fault.ErrUnknown, "servers remove domain", err)
	}
	r.audit(ctx, "SERVER_DOMAIN_REMOVE", fmt.Sprintf("server=%d domain=%s removed=%d", serverID, domain, n))
	return n, nil
}

// ListDomains returns the domains linked to server.
func (r *Registry) ListDomains(ctx context.Context, server any) ([]model.Domain, error) {
	serverID, err := r.GetID(ctx, server)
	if err != nil {
		return nil, err
	}
	ds, err := r.store.ServerDomains(ctx, serverID)
	if err != nil {
		return nil, fault.Wrap(fault.ErrUnknown, "servers list domains", err)
	}
	return ds, nil
}
