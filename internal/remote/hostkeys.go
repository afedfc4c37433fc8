// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/toeirei/serverbase/internal/config"
	"github.com/toeirei/serverbase/internal/db"
	"github.com/toeirei/serverbase/internal/logging"
	"github.com/toeirei/serverbase/internal/model"
	"golang.org/x/crypto/ssh"
)

// HostKeyStore is the known-host table the native runner checks against.
type HostKeyStore interface {
	KnownHosts(ctx context.Context, hostname string, port int) ([]model.KnownHost, error)
	AddKnownHost(ctx context.Context, kh *model.KnownHost) error
}

// HostKeyCallback returns a callback that checks presented keys of ep
// against store. mode is one of the config.HostKey* values; with
// config.HostKeyAcceptNew an unknown key is stored, a changed key is
// always rejected.
func HostKeyCallback(ctx context.Context, store HostKeyStore, mode string, ep Endpoint) ssh.HostKeyCallback {
	if mode == config.HostKeyOff || store == nil {
		return ssh.InsecureIgnoreHostKey()
	}
	return func(hostname string, _ net.Addr, key ssh.PublicKey) error {
		host := ep.Host
		if host == "" {
			// The hostname passed to the callback can include the port.
			if h, _, err := net.SplitHostPort(hostname); err == nil {
				host = h
			} else {
				host = hostname
			}
		}
		port := ep.Port
		if port == 0 {
			port = model.DefaultSSHPort
		}

		known, err := store.KnownHosts(ctx, host, port)
		if err != nil {
			return fmt.Errorf("failed to query known hosts: %w", err)
		}
		presented := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))
		sameType := false
		for _, k := range known {
			if k.Algorithm != key.Type() {
				continue
			}
			sameType = true
			if strings.TrimSpace(k.PublicKey) == presented {
				return nil
			}
		}
		if sameType {
			return fmt.Errorf("!!! HOST KEY MISMATCH FOR %s:%d !!! remote key presented: %s", host, port, ssh.FingerprintSHA256(key))
		}
		if mode != config.HostKeyAcceptNew {
			return fmt.Errorf("unknown host key for %s:%d (%s); run 'serverbase servers trust' to add it", host, port, ssh.FingerprintSHA256(key))
		}

		kh := &model.KnownHost{
			ServerID:    ep.ServerID,
			Hostname:    host,
			Port:        port,
			Algorithm:   key.Type(),
			Fingerprint: ssh.FingerprintSHA256(key),
			PublicKey:   presented + "\n",
		}
		if err := store.AddKnownHost(ctx, kh); err != nil && !errors.Is(err, db.ErrDuplicate) {
			return fmt.Errorf("failed to store host key: %w", err)
		}
		logging.Infof("remote: trusted new host key %s for %s:%d", kh.Fingerprint, host, port)
		return nil
	}
}
