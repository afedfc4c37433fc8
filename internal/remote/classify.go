// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package remote

import (
	"fmt"
	"net"
	"strings"
)

func containsAny(err error, needles ...string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, n := range needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}

// IsConnectionTimeoutError reports whether err looks like a dial or
// handshake timeout.
func IsConnectionTimeoutError(err error) bool {
	return containsAny(err, "timeout", "timed out", "deadline exceeded")
}

// IsConnectionRefusedError reports whether the remote end was unreachable.
func IsConnectionRefusedError(err error) bool {
	return containsAny(err, "connection refused", "no route to host", "network is unreachable")
}

// IsAuthenticationError reports whether every auth method was rejected.
func IsAuthenticationError(err error) bool {
	return containsAny(err, "unable to authenticate", "authentication failed", "permission denied", "no supported methods remain")
}

// IsHostKeyError reports whether host key verification failed.
func IsHostKeyError(err error) bool {
	return containsAny(err, "host key mismatch", "unknown host key", "host key verification failed")
}

// ClassifyConnectionError rewrites a connection error into a message that
// names the failure class. The original error stays in the chain.
func ClassifyConnectionError(host string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsHostKeyError(err):
		return fmt.Errorf("host key verification failed for %s: %w", host, err)
	case IsAuthenticationError(err):
		return fmt.Errorf("authentication failed for %s: %w", host, err)
	case IsConnectionRefusedError(err):
		return fmt.Errorf("connection to %s refused: %w", host, err)
	case IsConnectionTimeoutError(err):
		return fmt.Errorf("connection to %s timed out: %w", host, err)
	}
	return fmt.Errorf("failed to connect to %s: %w", host, err)
}

// ParseHostPort splits "[user@]host[:port]" into host and port. Bracketed
// and bare IPv6 literals are accepted; port is "" when absent.
func ParseHostPort(in string) (host, port string, err error) {
	s := strings.TrimSpace(in)
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if s == "" {
		return "", "", fmt.Errorf("empty address %q", in)
	}
	if strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]")
		if end < 0 {
			return "", "", fmt.Errorf("missing ']' in address %q", in)
		}
		host = s[1:end]
		rest := s[end+1:]
		switch {
		case rest == "":
			return host, "", nil
		case strings.HasPrefix(rest, ":"):
			return host, rest[1:], nil
		}
		return "", "", fmt.Errorf("unexpected %q after address in %q", rest, in)
	}
	switch strings.Count(s, ":") {
	case 0:
		return s, "", nil
	case 1:
		return net.SplitHostPort(s)
	}
	// bare IPv6 literal
	return s, "", nil
}

// JoinHostPort joins host and port, substituting defaultPort for an empty
// port.
func JoinHostPort(host, port, defaultPort string) string {
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(host, port)
}

// CanonicalizeHostPort returns in as host:port with the default SSH port
// filled in. Unparseable input is returned unchanged.
func CanonicalizeHostPort(in string) string {
	h, p, err := ParseHostPort(in)
	if err != nil {
		return in
	}
	return JoinHostPort(h, p, "22")
}
