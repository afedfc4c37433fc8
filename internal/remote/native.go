// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/toeirei/serverbase/internal/config"
	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/logging"
	"github.com/toeirei/serverbase/internal/security"
	"github.com/toeirei/serverbase/internal/state"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// DefaultConnectTimeout bounds TCP connect plus SSH handshake per hop.
const DefaultConnectTimeout = 10 * time.Second

// NativeRunner speaks SSH in-process with golang.org/x/crypto/ssh.
type NativeRunner struct {
	HostKeys       HostKeyStore
	HostKeyMode    string
	ConnectTimeout time.Duration
	// Passphrases unlocks encrypted identity files.
	Passphrases *state.Mailbox
	// Agent returns the SSH agent used as last auth fallback, or nil.
	Agent func() agent.Agent
	Pool  *Pool

	dialContext func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewNativeRunner builds a runner from the ssh configuration section.
func NewNativeRunner(hostKeys HostKeyStore, c config.SSH) *NativeRunner {
	return &NativeRunner{
		HostKeys:       hostKeys,
		HostKeyMode:    c.KnownHostsCheck,
		ConnectTimeout: c.ConnectTimeout,
		Agent:          getSSHAgent,
		Pool:           NewPool(c.PersistentPoolSize),
	}
}

// Close releases pooled connections.
func (r *NativeRunner) Close() {
	r.Pool.Close()
}

func (r *NativeRunner) timeout() time.Duration {
	if r.ConnectTimeout > 0 {
		return r.ConnectTimeout
	}
	return DefaultConnectTimeout
}

// Run executes cmd.Command in a new session on t and returns its stdout.
// Stderr is attached to the error of a failed run.
func (r *NativeRunner) Run(ctx context.Context, t *Target, cmd CommandSpec) ([]byte, error) {
	client, release, err := r.Dial(ctx, t)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := client.NewSession()
	if err != nil {
		if t.Persist {
			r.Pool.Drop(t.Key())
		}
		return nil, fmt.Errorf("failed to open session on %s: %w", t.Addr(), err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr
	sess.Stdin = cmd.Stdin

	done := make(chan error, 1)
	go func() { done <- sess.Run(cmd.Command) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		_ = sess.Close()
		<-done
		return stdout.Bytes(), ctx.Err()
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%w: %s", err, msg)
		}
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}

// Dial connects to t through its jumps. The returned release func closes
// the chain, or does nothing when the connection is pooled.
func (r *NativeRunner) Dial(ctx context.Context, t *Target) (*ssh.Client, func(), error) {
	key := t.Key()
	if t.Persist {
		if c, ok := r.Pool.Get(key); ok {
			if _, _, err := c.SendRequest("keepalive@openssh.com", true, nil); err == nil {
				logging.Debugf("remote: reusing persistent connection %s", key)
				return c, func() {}, nil
			}
			r.Pool.Drop(key)
		}
	}

	var chain []*ssh.Client
	closeAll := func() {
		for i := len(chain) - 1; i >= 0; i-- {
			_ = chain[i].Close()
		}
	}

	hops := append(append([]Endpoint{}, t.Jumps...), t.Endpoint)
	var via *ssh.Client
	for _, ep := range hops {
		c, err := r.connect(ctx, via, ep)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		chain = append(chain, c)
		via = c
	}

	if t.Persist && r.Pool.Put(key, via, closeAll) {
		return via, func() {}, nil
	}
	return via, closeAll, nil
}

func (r *NativeRunner) connect(ctx context.Context, via *ssh.Client, ep Endpoint) (*ssh.Client, error) {
	cfg, err := r.clientConfig(ctx, ep)
	if err != nil {
		return nil, err
	}
	addr := ep.Addr()

	dctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()
	var conn net.Conn
	switch {
	case via != nil:
		conn, err = via.DialContext(dctx, "tcp", addr)
	case r.dialContext != nil:
		conn, err = r.dialContext(dctx, "tcp", addr)
	default:
		var d net.Dialer
		conn, err = d.DialContext(dctx, "tcp", addr)
	}
	if err != nil {
		return nil, ClassifyConnectionError(addr, err)
	}

	_ = conn.SetDeadline(time.Now().Add(r.timeout()))
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, ClassifyConnectionError(addr, err)
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

// clientConfig builds the auth chain: identity file, password, agent.
func (r *NativeRunner) clientConfig(ctx context.Context, ep Endpoint) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if ep.IdentityFile != "" {
		signer, err := r.loadSigner(ep.IdentityFile)
		if err != nil {
			return nil, err
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if !ep.Password.Empty() {
		pw := string(ep.Password)
		auth = append(auth,
			ssh.Password(pw),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = pw
				}
				return answers, nil
			}),
		)
	}
	if r.Agent != nil {
		if a := r.Agent(); a != nil {
			auth = append(auth, ssh.PublicKeysCallback(a.Signers))
		}
	}
	if len(auth) == 0 {
		return nil, fault.Errorf(fault.ErrMissingCredentials, "no authentication method available for %s", ep.Addr())
	}
	return &ssh.ClientConfig{
		User:            ep.User,
		Auth:            auth,
		HostKeyCallback: HostKeyCallback(ctx, r.HostKeys, r.HostKeyMode, ep),
		Timeout:         r.timeout(),
	}, nil
}

func (r *NativeRunner) loadSigner(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read identity file: %w", err)
	}
	defer security.Wipe(data)

	signer, err := ssh.ParsePrivateKey(data)
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		pass := r.Passphrases.Get()
		if pass.Empty() {
			return nil, fault.Errorf(fault.ErrMissingCredentials, "identity file is encrypted and no passphrase is set")
		}
		defer pass.Zero()
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, pass)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to parse private key: %w", err)
	}
	return signer, nil
}
