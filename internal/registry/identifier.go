// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package registry

import (
	"strconv"
	"strings"

	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/model"
)

// IdentifierKind tells how an Identifier selects a server.
type IdentifierKind int

const (
	// IdentNone means no server, i.e. the local machine.
	IdentNone IdentifierKind = iota
	// IdentServer carries a complete record that needs no lookup.
	IdentServer
	// IdentID selects by primary key.
	IdentID
	// IdentName selects by domain or seodomain.
	IdentName
)

// PersistPrefix on a string identifier asks for a persistent connection.
const PersistPrefix = "+"

// Identifier is a parsed server reference.
type Identifier struct {
	Kind    IdentifierKind
	Server  *model.Server
	ID      int64
	Name    string
	Persist bool
}

// ParseIdentifier accepts nil, a model.Server (by value or pointer), any
// integer, an Identifier or a string. Strings made of digits select by id,
// other strings by domain or seodomain; a leading "+" sets Persist.
func ParseIdentifier(v any) (Identifier, error) {
	switch t := v.(type) {
	case nil:
		return Identifier{Kind: IdentNone}, nil
	case Identifier:
		return t, nil
	case *Identifier:
		if t == nil {
			return Identifier{Kind: IdentNone}, nil
		}
		return *t, nil
	case *model.Server:
		if t == nil {
			return Identifier{Kind: IdentNone}, nil
		}
		return fromServer(*t)
	case model.Server:
		return fromServer(t)
	case int:
		return fromID(int64(t))
	case int32:
		return fromID(int64(t))
	case int64:
		return fromID(t)
	case uint:
		return fromID(int64(t))
	case uint32:
		return fromID(int64(t))
	case uint64:
		return fromID(int64(t))
	case string:
		return fromString(t)
	}
	return Identifier{}, fault.Errorf(fault.ErrInvalid, "unsupported server identifier type %T", v)
}

func fromServer(s model.Server) (Identifier, error) {
	switch {
	case s.ID != 0:
		// Callers zero the resolved keys; they must not reach into s.
		c := s.Clone()
		return Identifier{Kind: IdentServer, Server: &c, ID: s.ID, Persist: s.Persist}, nil
	case s.Domain != "":
		return Identifier{Kind: IdentName, Name: s.Domain, Persist: s.Persist}, nil
	}
	return Identifier{}, fault.Errorf(fault.ErrNotSpecified, "server record without id or domain")
}

func fromID(id int64) (Identifier, error) {
	if id <= 0 {
		return Identifier{}, fault.Errorf(fault.ErrInvalid, "server id %d", id)
	}
	return Identifier{Kind: IdentID, ID: id}, nil
}

func fromString(s string) (Identifier, error) {
	s = strings.TrimSpace(s)
	persist := false
	if strings.HasPrefix(s, PersistPrefix) {
		persist = true
		s = strings.TrimSpace(strings.TrimPrefix(s, PersistPrefix))
	}
	if s == "" {
		return Identifier{}, fault.Errorf(fault.ErrNotSpecified, "empty server identifier")
	}
	if isDigits(s) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Identifier{}, fault.Errorf(fault.ErrInvalid, "server id %q", s)
		}
		ident, err := fromID(id)
		ident.Persist = persist
		return ident, err
	}
	return Identifier{Kind: IdentName, Name: s, Persist: persist}, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func (i Identifier) String() string {
	p := ""
	if i.Persist {
		p = PersistPrefix
	}
	switch i.Kind {
	case IdentServer, IdentID:
		return p + strconv.FormatInt(i.ID, 10)
	case IdentName:
		return p + i.Name
	}
	return "local"
}
