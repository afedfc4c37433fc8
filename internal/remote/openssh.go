// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package remote

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/toeirei/serverbase/internal/config"
	"github.com/toeirei/serverbase/internal/logging"
)

// OpenSSHRunner shells out to the OpenSSH client. It cannot feed
// passwords; targets are reached with identity files or the user's agent.
type OpenSSHRunner struct {
	Binary         string
	HostKeyMode    string
	ConnectTimeout time.Duration

	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewOpenSSHRunner builds a runner from the ssh configuration section.
func NewOpenSSHRunner(c config.SSH) *OpenSSHRunner {
	return &OpenSSHRunner{
		Binary:         c.Binary,
		HostKeyMode:    c.KnownHostsCheck,
		ConnectTimeout: c.ConnectTimeout,
	}
}

func (r *OpenSSHRunner) binary() string {
	if r.Binary == "" {
		return "ssh"
	}
	return r.Binary
}

// commonOptions are the -o flags shared by the target and jump commands.
func (r *OpenSSHRunner) commonOptions() []string {
	opts := []string{"-o", "BatchMode=yes"}
	switch r.HostKeyMode {
	case config.HostKeyStrict:
		opts = append(opts, "-o", "StrictHostKeyChecking=yes")
	case config.HostKeyOff:
		opts = append(opts, "-o", "StrictHostKeyChecking=no", "-o", "UserKnownHostsFile=/dev/null")
	default:
		opts = append(opts, "-o", "StrictHostKeyChecking=accept-new")
	}
	if r.ConnectTimeout > 0 {
		secs := int(r.ConnectTimeout.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		opts = append(opts, "-o", "ConnectTimeout="+strconv.Itoa(secs))
	}
	return opts
}

func endpointArgs(ep Endpoint) []string {
	var args []string
	if ep.IdentityFile != "" {
		args = append(args, "-i", ep.IdentityFile, "-o", "IdentitiesOnly=yes")
	}
	port := ep.Port
	if port == 0 {
		port = 22
	}
	return append(args, "-p", strconv.Itoa(port))
}

func userHost(ep Endpoint) string {
	host := ep.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if ep.User == "" {
		return host
	}
	return ep.User + "@" + host
}

// Args builds the argv, without the binary, that runs cmd on t. Jumps
// without identity files use -J; as soon as one jump needs its own key the
// chain is expressed as nested ProxyCommand options.
func (r *OpenSSHRunner) Args(t *Target, cmd CommandSpec) []string {
	args := r.commonOptions()
	args = append(args, endpointArgs(t.Endpoint)...)

	if len(t.Jumps) > 0 {
		nested := false
		for _, j := range t.Jumps {
			if j.IdentityFile != "" {
				nested = true
				break
			}
		}
		if nested {
			args = append(args, "-o", "ProxyCommand="+r.proxyCommand(t.Jumps))
		} else {
			hops := make([]string, 0, len(t.Jumps))
			for _, j := range t.Jumps {
				port := j.Port
				if port == 0 {
					port = 22
				}
				hops = append(hops, userHost(j)+":"+strconv.Itoa(port))
			}
			args = append(args, "-J", strings.Join(hops, ","))
		}
	}
	return append(args, userHost(t.Endpoint), cmd.Command)
}

// proxyCommand returns the shell command that connects stdio to %h:%p
// through jumps, the last jump being the one next to the target.
func (r *OpenSSHRunner) proxyCommand(jumps []Endpoint) string {
	last := jumps[len(jumps)-1]
	parts := []string{r.binary()}
	parts = append(parts, r.commonOptions()...)
	parts = append(parts, endpointArgs(last)...)
	if len(jumps) > 1 {
		// The enclosing ssh expands %-tokens once, so the nested command's
		// tokens are escaped one level.
		inner := strings.ReplaceAll(r.proxyCommand(jumps[:len(jumps)-1]), "%", "%%")
		parts = append(parts, "-o", "ProxyCommand="+inner)
	}
	parts = append(parts, "-W", "%h:%p", userHost(last))
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = shellQuote(p)
	}
	return strings.Join(quoted, " ")
}

// shellQuote quotes s for a POSIX shell when it contains anything beyond
// a conservative set of safe characters.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || strings.ContainsRune("-_./=:@%,+[]", c)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Run executes the ssh binary and returns its stdout.
func (r *OpenSSHRunner) Run(ctx context.Context, t *Target, cmd CommandSpec) ([]byte, error) {
	if !t.Password.Empty() && t.IdentityFile == "" {
		logging.Warnf("remote: %s has only a password; the openssh runner relies on the ssh agent instead", t.Addr())
	}
	newCmd := r.command
	if newCmd == nil {
		newCmd = exec.CommandContext
	}
	args := r.Args(t, cmd)
	logging.Debugf("remote: %s %s", r.binary(), strings.Join(args[:len(args)-1], " "))

	c := newCmd(ctx, r.binary(), args...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.Stdin = cmd.Stdin
	if err := c.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%w: %s", err, msg)
		}
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}
