// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package remote

import (
	"sync"

	"github.com/toeirei/serverbase/internal/logging"
	"golang.org/x/crypto/ssh"
)

type pooled struct {
	client *ssh.Client
	close  func()
}

// Pool keeps persistent connections keyed by Target.Key. It is bounded;
// when full the oldest entry is closed and evicted (FIFO, not LRU).
type Pool struct {
	mu      sync.Mutex
	max     int
	order   []string
	entries map[string]pooled
}

// NewPool returns a pool holding at most max connections. A max below one
// disables pooling.
func NewPool(max int) *Pool {
	return &Pool{max: max, entries: map[string]pooled{}}
}

// Get returns the pooled client for key.
func (p *Pool) Get(key string) (*ssh.Client, bool) {
	if p == nil {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	return e.client, ok
}

// Put stores c under key. closeFn releases c and everything it tunnels
// through. It reports false, leaving ownership with the caller, when
// pooling is disabled or key is already present.
func (p *Pool) Put(key string, c *ssh.Client, closeFn func()) bool {
	if p == nil || p.max < 1 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[key]; ok {
		return false
	}
	for len(p.order) >= p.max {
		oldest := p.order[0]
		p.order = p.order[1:]
		if e, ok := p.entries[oldest]; ok {
			delete(p.entries, oldest)
			logging.Debugf("remote: evicting persistent connection %s", oldest)
			e.close()
		}
	}
	p.entries[key] = pooled{client: c, close: closeFn}
	p.order = append(p.order, key)
	return true
}

// Drop closes and removes the entry for key.
func (p *Pool) Drop(key string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	if !ok {
		return
	}
	delete(p.entries, key)
	for i, k := range p.order {
		if k == key {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	e.close()
}

// Len returns the number of pooled connections.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Close closes every pooled connection.
func (p *Pool) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range p.order {
		p.entries[k].close()
	}
	p.entries = map[string]pooled{}
	p.order = nil
}
