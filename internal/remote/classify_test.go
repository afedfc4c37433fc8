// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package remote

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name string
		fn   func(error) bool
		err  error
		want bool
	}{
		{"timeout nil", IsConnectionTimeoutError, nil, false},
		{"timeout plain", IsConnectionTimeoutError, errors.New("connection timeout"), true},
		{"timeout deadline", IsConnectionTimeoutError, errors.New("context deadline exceeded"), true},
		{"timeout io", IsConnectionTimeoutError, errors.New("dial tcp: i/o timeout"), true},
		{"timeout other", IsConnectionTimeoutError, errors.New("connection refused"), false},
		{"refused nil", IsConnectionRefusedError, nil, false},
		{"refused plain", IsConnectionRefusedError, errors.New("connection refused"), true},
		{"refused no route", IsConnectionRefusedError, errors.New("no route to host"), true},
		{"refused other", IsConnectionRefusedError, errors.New("timeout"), false},
		{"auth nil", IsAuthenticationError, nil, false},
		{"auth failed", IsAuthenticationError, errors.New("authentication failed"), true},
		{"auth denied", IsAuthenticationError, errors.New("permission denied"), true},
		{"auth x/crypto", IsAuthenticationError, errors.New("ssh: unable to authenticate, attempted methods [none publickey]"), true},
		{"auth other", IsAuthenticationError, errors.New("timeout"), false},
		{"hostkey nil", IsHostKeyError, nil, false},
		{"hostkey mismatch", IsHostKeyError, errors.New("!!! HOST KEY MISMATCH FOR h !!!"), true},
		{"hostkey unknown", IsHostKeyError, errors.New("unknown host key for h"), true},
		{"hostkey other", IsHostKeyError, errors.New("timeout"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.err); got != tt.want {
				t.Errorf("got %v, want %v for %v", got, tt.want, tt.err)
			}
		})
	}
}

func TestClassifyConnectionError(t *testing.T) {
	host := "test-host"
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", errors.New("timeout"), "connection to test-host timed out"},
		{"refused", errors.New("connection refused"), "connection to test-host refused"},
		{"auth", errors.New("authentication failed"), "authentication failed for test-host"},
		{"host key", errors.New("HOST KEY MISMATCH"), "host key verification failed for test-host"},
		{"generic", errors.New("some other error"), "failed to connect to test-host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyConnectionError(host, tt.err)
			if got == nil || !strings.Contains(got.Error(), tt.want) {
				t.Fatalf("expected %q in %v", tt.want, got)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("original error lost from chain")
			}
		})
	}
	if ClassifyConnectionError(host, nil) != nil {
		t.Error("nil error must stay nil")
	}
}

func TestHostPortHelpers(t *testing.T) {
	cases := []struct {
		in    string
		host  string
		port  string
		canon string
	}{
		{"example.com", "example.com", "", "example.com:22"},
		{"example.com:2222", "example.com", "2222", "example.com:2222"},
		{"192.168.1.10", "192.168.1.10", "", "192.168.1.10:22"},
		{"192.168.1.10:2200", "192.168.1.10", "2200", "192.168.1.10:2200"},
		{"[2001:db8::1]", "2001:db8::1", "", "[2001:db8::1]:22"},
		{"[2001:db8::1]:2200", "2001:db8::1", "2200", "[2001:db8::1]:2200"},
		{"2001:db8::1", "2001:db8::1", "", "[2001:db8::1]:22"},
		{"user@example.com", "example.com", "", "example.com:22"},
		{"user@[2001:db8::1]:2222", "2001:db8::1", "2222", "[2001:db8::1]:2222"},
	}
	for _, c := range cases {
		h, p, err := ParseHostPort(c.in)
		if err != nil {
			t.Fatalf("unexpected error parsing %q: %v", c.in, err)
		}
		if h != c.host || p != c.port {
			t.Errorf("ParseHostPort(%q) => host=%q port=%q; want host=%q port=%q", c.in, h, p, c.host, c.port)
		}
		if canon := CanonicalizeHostPort(c.in); canon != c.canon {
			t.Errorf("CanonicalizeHostPort(%q) => %q; want %q", c.in, canon, c.canon)
		}
		if joined := JoinHostPort(h, p, "22"); joined != c.canon {
			t.Errorf("JoinHostPort(%q,%q,22) => %q; want %q", h, p, joined, c.canon)
		}
	}

	for _, bad := range []string{"", "user@", "[::1", "[::1]x"} {
		if _, _, err := ParseHostPort(bad); err == nil {
			t.Errorf("ParseHostPort(%q) should fail", bad)
		}
	}
}
