// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

// Package state holds transient, process-local state shared between the CLI
// and the SSH runners, such as the passphrase of encrypted private keys.
package state

import (
	"sync"

	"github.com/toeirei/serverbase/internal/security"
)

// Mailbox is a concurrency-safe slot for one secret. Values are copied in
// and out so that every holder can zero its own copy.
type Mailbox struct {
	mu    sync.RWMutex
	value security.Secret
}

// Set stores a copy of s, wiping the previous value.
func (m *Mailbox) Set(s []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value.Zero()
	if s == nil {
		return
	}
	m.value = security.FromBytes(s)
}

// Get returns a copy of the stored value, or nil. The caller zeroes it.
func (m *Mailbox) Get() security.Secret {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.value == nil {
		return nil
	}
	return security.FromBytes(m.value)
}

// Clear wipes the stored value.
func (m *Mailbox) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value.Zero()
}
