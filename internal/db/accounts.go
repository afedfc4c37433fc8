// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"fmt"

	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/model"
)

// AddSSHAccount stores a and sets its ID.
func (s *BunStore) AddSSHAccount(ctx context.Context, a *model.SSHAccount) error {
	m := &SSHAccountModel{
		Name:        a.Name,
		SEOName:     a.SEOName,
		Username:    a.Username,
		SSHKey:      a.SSHKey,
		Password:    a.Password,
		Description: a.Description,
		Status:      a.Status,
	}
	if _, err := s.bun.NewInsert().Model(m).ExcludeColumn("id").Returning("id").Exec(ctx); err != nil {
		return MapDBError(err)
	}
	a.ID = m.ID
	return nil
}

// GetSSHAccount returns the account with id regardless of its status.
func (s *BunStore) GetSSHAccount(ctx context.Context, id int64) (*model.SSHAccount, error) {
	var m SSHAccountModel
	if err := s.bun.NewSelect().Model(&m).Where("a.id = ?", id).Limit(1).Scan(ctx); err != nil {
		if notFound(err) {
			return nil, fault.Errorf(fault.ErrNotFound, "ssh account %d", id)
		}
		return nil, err
	}
	a := sshAccountFromModel(m)
	return &a, nil
}

// ListSSHAccounts returns the active accounts ordered by name.
func (s *BunStore) ListSSHAccounts(ctx context.Context) ([]model.SSHAccount, error) {
	var rows []SSHAccountModel
	if err := s.bun.NewSelect().Model(&rows).Where("a.status IS NULL").Order("a.name ASC").Scan(ctx); err != nil && !notFound(err) {
		return nil, err
	}
	out := make([]model.SSHAccount, 0, len(rows))
	for _, r := range rows {
		out = append(out, sshAccountFromModel(r))
	}
	return out, nil
}

// AddDatabaseAccount stores a and sets its ID.
func (s *BunStore) AddDatabaseAccount(ctx context.Context, a *model.DatabaseAccount) error {
	m := &DatabaseAccountModel{
		Name:         a.Name,
		SEOName:      a.SEOName,
		Username:     a.Username,
		Password:     a.Password,
		RootPassword: a.RootPassword,
		Status:       a.Status,
	}
	if _, err := s.bun.NewInsert().Model(m).ExcludeColumn("id").Returning("id").Exec(ctx); err != nil {
		return MapDBError(err)
	}
	a.ID = m.ID
	return nil
}

// GetDatabaseAccount returns the account with id regardless of its status.
func (s *BunStore) GetDatabaseAccount(ctx context.Context, id int64) (*model.DatabaseAccount, error) {
	var m DatabaseAccountModel
	if err := s.bun.NewSelect().Model(&m).Where("da.id = ?", id).Limit(1).Scan(ctx); err != nil {
		if notFound(err) {
			return nil, fault.Errorf(fault.ErrNotFound, "database account %d", id)
		}
		return nil, err
	}
	a := databaseAccountFromModel(m)
	return &a, nil
}

// ListDatabaseAccounts returns the active accounts ordered by name.
func (s *BunStore) ListDatabaseAccounts(ctx context.Context) ([]model.DatabaseAccount, error) {
	var rows []DatabaseAccountModel
	if err := s.bun.NewSelect().Model(&rows).Where("da.status IS NULL").Order("da.name ASC").Scan(ctx); err != nil && !notFound(err) {
		return nil, err
	}
	out := make([]model.DatabaseAccount, 0, len(rows))
	for _, r := range rows {
		out = append(out, databaseAccountFromModel(r))
	}
	return out, nil
}

// AddParty stores a provider or customer and sets its ID.
func (s *BunStore) AddParty(ctx context.Context, e Entity, p *model.Party) error {
	switch e {
	case EntityProvider:
		m := &ProviderModel{Name: p.Name, SEOName: p.SEOName, Status: p.Status}
		if _, err := s.bun.NewInsert().Model(m).ExcludeColumn("id").Returning("id").Exec(ctx); err != nil {
			return MapDBError(err)
		}
		p.ID = m.ID
	case EntityCustomer:
		m := &CustomerModel{Name: p.Name, SEOName: p.SEOName, Status: p.Status}
		if _, err := s.bun.NewInsert().Model(m).ExcludeColumn("id").Returning("id").Exec(ctx); err != nil {
			return MapDBError(err)
		}
		p.ID = m.ID
	default:
		return fmt.Errorf("entity %q is not a party", string(e))
	}
	return nil
}

// ListParties returns the active providers or customers ordered by name.
func (s *BunStore) ListParties(ctx context.Context, e Entity) ([]model.Party, error) {
	var out []model.Party
	switch e {
	case EntityProvider:
		var rows []ProviderModel
		if err := s.bun.NewSelect().Model(&rows).Where("p.status IS NULL").Order("p.name ASC").Scan(ctx); err != nil && !notFound(err) {
			return nil, err
		}
		for _, r := range rows {
			out = append(out, model.Party{ID: r.ID, Name: r.Name, SEOName: r.SEOName, Status: r.Status})
		}
	case EntityCustomer:
		var rows []CustomerModel
		if err := s.bun.NewSelect().Model(&rows).Where("c.status IS NULL").Order("c.name ASC").Scan(ctx); err != nil && !notFound(err) {
			return nil, err
		}
		for _, r := range rows {
			out = append(out, model.Party{ID: r.ID, Name: r.Name, SEOName: r.SEOName, Status: r.Status})
		}
	default:
		return nil, fmt.Errorf("entity %q is not a party", string(e))
	}
	return out, nil
}
