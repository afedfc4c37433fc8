// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package state

import (
	"sync"
	"testing"
)

func TestMailbox_SetGetClear(t *testing.T) {
	var m Mailbox
	if got := m.Get(); got != nil {
		t.Fatalf("expected nil on empty mailbox, got %v", got)
	}

	pass := []byte("s3cr3t")
	m.Set(pass)
	got := m.Get()
	if string(got) != "s3cr3t" {
		t.Fatalf("unexpected value after Set")
	}

	got[0] = 'X'
	if again := m.Get(); again[0] == 'X' {
		t.Fatal("mailbox must hand out copies")
	}
	pass[0] = 'Y'
	if again := m.Get(); again[0] == 'Y' {
		t.Fatal("mailbox must store a copy")
	}

	m.Clear()
	if got := m.Get(); got != nil {
		t.Fatalf("expected nil after Clear, got %v", got)
	}
}

func TestMailbox_NilReceiver(t *testing.T) {
	var m *Mailbox
	if got := m.Get(); got != nil {
		t.Fatalf("nil mailbox returned %v", got)
	}
}

func TestMailbox_ConcurrentAccess(t *testing.T) {
	var m Mailbox
	m.Set([]byte("concurrent"))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := m.Get()
			if string(v) != "concurrent" {
				t.Errorf("unexpected value %q", string(v))
			}
			v.Zero()
		}()
	}
	wg.Wait()
}
