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

// maxSEOSuffix bounds the numeric suffixes tried for a unique seoname.
const maxSEOSuffix = 100

func (r *Registry) uniqueSEOName(ctx context.Context, e db.Entity, name string) (string, error) {
	base := seo.Name(name)
	if base == "" {
		return "", fault.Errorf(fault.ErrInvalid, "name %q yields an empty seoname", name)
	}
	return seo.Unique(ctx, base, maxSEOSuffix, func(ctx context.Context, candidate string) (bool, error) {
		return r.store.SEONameTaken(ctx, e, candidate)
	})
}

// AddSSHAccount stores a new SSH account with a unique seoname.
func (r *Registry) AddSSHAccount(ctx context.Context, a *model.SSHAccount) error {
	var v fault.ValidationError
	if strings.TrimSpace(a.Name) == "" {
		v.Add("name", "required")
	}
	if strings.TrimSpace(a.Username) == "" {
		v.Add("username", "required")
	}
	if err := v.Err(); err != nil {
		return err
	}
	seoname, err := r.uniqueSEOName(ctx, db.EntitySSHAccount, a.Name)
	if err != nil {
		return err
	}
	a.SEOName = seoname
	if err := r.store.AddSSHAccount(ctx, a); err != nil {
		return fault.Wrap(fault.ErrUnknown, "ssh accounts insert", err)
	}
	r.audit(ctx, "SSH_ACCOUNT_ADD", fmt.Sprintf("id=%d name=%s", a.ID, a.Name))
	return nil
}

// AddDatabaseAccount stores a new database account with a unique seoname.
func (r *Registry) AddDatabaseAccount(ctx context.Context, a *model.DatabaseAccount) error {
	var v fault.ValidationError
	if strings.TrimSpace(a.Name) == "" {
		v.Add("name", "required")
	}
	if strings.TrimSpace(a.Username) == "" {
		v.Add("username", "required")
	}
	if err := v.Err(); err != nil {
		return err
	}
	seoname, err := r.uniqueSEOName(ctx, db.EntityDatabaseAccount, a.Name)
	if err != nil {
		return err
	}
	a.SEOName = seoname
	if err := r.store.AddDatabaseAccount(ctx, a); err != nil {
		return fault.Wrap(fault.ErrUnknown, "database accounts insert", err)
	}
	r.audit(ctx, "DB_ACCOUNT_ADD", fmt.Sprintf("id=%d name=%s", a.ID, a.Name))
	return nil
}

// AddParty stores a provider or customer with a unique seoname.
func (r *Registry) AddParty(ctx context.Context, e db.Entity, p *model.Party) error {
	if e != db.EntityProvider && e != db.EntityCustomer {
		return fault.Errorf(fault.ErrInvalid, "%s is not a provider or customer table", e)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fault.Errorf(fault.ErrNotSpecified, "name required")
	}
	seoname, err := r.uniqueSEOName(ctx, e, p.Name)
	if err != nil {
		return err
	}
	p.SEOName = seoname
	if err := r.store.AddParty(ctx, e, p); err != nil {
		return fault.Wrap(fault.ErrUnknown, string(e)+" insert", err)
	}
	r.audit(ctx, strings.ToUpper(string(e))+"_ADD", fmt.Sprintf("id=%d name=%s", p.ID, p.Name))
	return nil
}
