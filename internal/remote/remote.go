// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

// Package remote executes commands on registered servers. The Executor
// resolves a server through the registry, materializes its private keys as
// transient identity files, hands the resolved Target to a Runner and
// removes every identity file again before returning.
package remote // import "github.com/toeirei/serverbase/internal/remote"

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/toeirei/serverbase/internal/model"
	"github.com/toeirei/serverbase/internal/registry"
	"github.com/toeirei/serverbase/internal/security"
)

// Endpoint is one SSH host with the credentials used to log in.
type Endpoint struct {
	ServerID     int64
	Host         string
	Port         int
	User         string
	IdentityFile string
	Password     security.Secret
}

// Addr returns host:port, defaulting the port to 22.
func (e Endpoint) Addr() string {
	return JoinHostPort(e.Host, portString(e.Port), "22")
}

func portString(p int) string {
	if p == 0 {
		return ""
	}
	return strconv.Itoa(p)
}

// Target is a fully resolved destination.
type Target struct {
	Endpoint
	// Jumps lists the proxy hops in dial order: Jumps[0] is dialed first,
	// the last jump connects to the target.
	Jumps []Endpoint
	// Persist keeps the connection open for reuse when the runner supports it.
	Persist bool
}

// Key identifies the connection path to the target, including every jump.
func (t *Target) Key() string {
	var b strings.Builder
	for _, j := range t.Jumps {
		b.WriteString(j.User + "@" + j.Addr() + ">")
	}
	b.WriteString(t.User + "@" + t.Addr())
	return b.String()
}

// CommandSpec is a command to run remotely.
type CommandSpec struct {
	// Command is passed to the remote login shell.
	Command string
	// Stdin, when set, is streamed to the command.
	Stdin io.Reader
	// Timeout bounds the run; zero means no limit beyond ctx.
	Timeout time.Duration
}

// Runner runs a command on a Target and returns its combined output.
type Runner interface {
	Run(ctx context.Context, t *Target, cmd CommandSpec) ([]byte, error)
}

// ServerSource resolves a server identifier, proxies included.
type ServerSource interface {
	Get(ctx context.Context, ident any, opts ...registry.GetOptions) (*model.Server, error)
}

// Auditor records executed actions.
type Auditor interface {
	LogAction(ctx context.Context, action, details string) error
}

// SplitLines turns raw command output into lines. The trailing newline is
// dropped; empty output yields no lines.
func SplitLines(out []byte) []string {
	s := strings.TrimSuffix(string(out), "\n")
	s = strings.TrimSuffix(s, "\r")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
