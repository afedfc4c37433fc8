// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package remote

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pkg/sftp"
	"github.com/toeirei/serverbase/internal/testutil"
	"golang.org/x/crypto/ssh"
)

// testServer is a minimal SSH server: "echo X" prints X, every other
// command fails with status 127. It serves the sftp subsystem from the
// local filesystem and forwards direct-tcpip channels, so it can act as a
// jump host.
type testServer struct {
	Host    string
	Port    int
	HostKey ssh.Signer
	conns   atomic.Int32
	// NoSessions makes the server refuse new session channels.
	NoSessions atomic.Bool
}

func (s *testServer) Conns() int { return int(s.conns.Load()) }

func startTestServer(t *testing.T, password string) *testServer {
	t.Helper()
	hostKey, err := testutil.NewHostKey()
	if err != nil {
		t.Fatalf("host key: %v", err)
	}
	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(ssh.ConnMetadata, ssh.PublicKey) (*ssh.Permissions, error) {
			return nil, nil
		},
		PasswordCallback: func(_ ssh.ConnMetadata, pw []byte) (*ssh.Permissions, error) {
			if password != "" && string(pw) == password {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected")
		},
	}
	if password != "" {
		// Only password logins.
		cfg.PublicKeyCallback = nil
	}
	cfg.AddHostKey(hostKey)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	s := &testServer{Host: host, Port: port, HostKey: hostKey}

	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(nc, cfg)
		}
	}()
	return s
}

func (s *testServer) serve(nc net.Conn, cfg *ssh.ServerConfig) {
	sc, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		_ = nc.Close()
		return
	}
	s.conns.Add(1)
	defer sc.Close()
	go ssh.DiscardRequests(reqs)

	for nch := range chans {
		switch nch.ChannelType() {
		case "session":
			if s.NoSessions.Load() {
				_ = nch.Reject(ssh.Prohibited, "sessions disabled")
				continue
			}
			ch, chReqs, err := nch.Accept()
			if err != nil {
				continue
			}
			go handleSession(ch, chReqs)
		case "direct-tcpip":
			handleDirect(nch)
		default:
			_ = nch.Reject(ssh.UnknownChannelType, "unsupported")
		}
	}
}

func handleSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()
	for req := range reqs {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			_ = ssh.Unmarshal(req.Payload, &payload)
			_ = req.Reply(true, nil)
			status := uint32(0)
			if rest, ok := strings.CutPrefix(payload.Command, "echo "); ok {
				fmt.Fprintln(ch, rest)
			} else {
				fmt.Fprintln(ch.Stderr(), "unknown command")
				status = 127
			}
			_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
			go ssh.DiscardRequests(reqs)
			return
		case "subsystem":
			var payload struct{ Name string }
			_ = ssh.Unmarshal(req.Payload, &payload)
			if payload.Name != "sftp" {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)
			go ssh.DiscardRequests(reqs)
			srv, err := sftp.NewServer(ch)
			if err != nil {
				return
			}
			_ = srv.Serve()
			_ = srv.Close()
			return
		default:
			_ = req.Reply(false, nil)
		}
	}
}

func handleDirect(nch ssh.NewChannel) {
	var p struct {
		Host     string
		Port     uint32
		OrigHost string
		OrigPort uint32
	}
	if err := ssh.Unmarshal(nch.ExtraData(), &p); err != nil {
		_ = nch.Reject(ssh.ConnectionFailed, err.Error())
		return
	}
	target, err := net.Dial("tcp", net.JoinHostPort(p.Host, strconv.Itoa(int(p.Port))))
	if err != nil {
		_ = nch.Reject(ssh.ConnectionFailed, err.Error())
		return
	}
	ch, reqs, err := nch.Accept()
	if err != nil {
		_ = target.Close()
		return
	}
	go ssh.DiscardRequests(reqs)
	go func() {
		_, _ = io.Copy(target, ch)
		_ = target.Close()
	}()
	go func() {
		_, _ = io.Copy(ch, target)
		_ = ch.Close()
	}()
}
