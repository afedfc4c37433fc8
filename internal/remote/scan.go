// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
)

var errKeyCaptured = errors.New("serverbase: host key captured")

// Scanner fetches host keys with an unauthenticated probe handshake.
type Scanner struct {
	Timeout time.Duration
}

// ScanHostKey connects to host:port just long enough to receive the host
// key and aborts the handshake afterwards.
func (s Scanner) ScanHostKey(ctx context.Context, host string, port int) (ssh.PublicKey, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(dctx, "tcp", addr)
	if err != nil {
		return nil, ClassifyConnectionError(addr, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	keyCh := make(chan ssh.PublicKey, 1)
	cfg := &ssh.ClientConfig{
		User: "serverbase-probe",
		HostKeyCallback: func(_ string, _ net.Addr, key ssh.PublicKey) error {
			keyCh <- key
			return errKeyCaptured
		},
	}
	c, _, _, err := ssh.NewClientConn(conn, addr, cfg)
	if err == nil {
		_ = c.Close()
		return nil, fmt.Errorf("handshake with %s succeeded unexpectedly", addr)
	}
	select {
	case key := <-keyCh:
		return key, nil
	default:
		return nil, ClassifyConnectionError(addr, err)
	}
}
