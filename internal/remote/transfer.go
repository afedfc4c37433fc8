// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/pkg/sftp"
	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/model"
	"golang.org/x/crypto/ssh"
)

// Dialer is implemented by runners that hand out SSH clients.
type Dialer interface {
	Dial(ctx context.Context, t *Target) (*ssh.Client, func(), error)
}

// withSFTP opens an SFTP session to the server ident refers to, with the
// same identity file lifecycle as Exec.
func (e *Executor) withSFTP(ctx context.Context, ident any, op string, fn func(*sftp.Client) error) error {
	d, ok := e.runner.(Dialer)
	if !ok {
		return fault.Errorf(fault.ErrInvalid, "%s needs the native runner", op)
	}
	return e.withTarget(ctx, ident, func(srv *model.Server, t *Target) error {
		client, release, err := d.Dial(ctx, t)
		if err != nil {
			return fault.Wrap(fault.ErrExecutionFailed, op+" "+srv.Domain, err)
		}
		defer release()
		sc, err := sftp.NewClient(client)
		if err != nil {
			return fault.Wrap(fault.ErrExecutionFailed, op+" "+srv.Domain, fmt.Errorf("failed to create sftp client: %w", err))
		}
		defer sc.Close()
		if err := fn(sc); err != nil {
			return fault.Wrap(fault.ErrExecutionFailed, op+" "+srv.Domain, err)
		}
		return nil
	})
}

// Push uploads the local file to remotePath. The file is written to a
// temporary name next to remotePath and renamed into place.
func (e *Executor) Push(ctx context.Context, ident any, local, remotePath string) (int64, error) {
	src, err := os.Open(local)
	if err != nil {
		return 0, fault.Wrap(fault.ErrNotFound, "servers push", err)
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return 0, fault.Wrap(fault.ErrUnknown, "servers push", err)
	}

	var n int64
	err = e.withSFTP(ctx, ident, "servers push", func(sc *sftp.Client) error {
		tmp := path.Join(path.Dir(remotePath), fmt.Sprintf(".%s.serverbase.%d", path.Base(remotePath), os.Getpid()))
		f, err := sc.Create(tmp)
		if err != nil {
			return fmt.Errorf("failed to create temporary file on remote: %w", err)
		}
		n, err = io.Copy(f, src)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = sc.Remove(tmp)
			return fmt.Errorf("failed to write to temporary file on remote: %w", err)
		}
		if err := sc.Chmod(tmp, info.Mode().Perm()); err != nil {
			_ = sc.Remove(tmp)
			return fmt.Errorf("failed to chmod temporary file: %w", err)
		}
		if err := sc.PosixRename(tmp, remotePath); err != nil {
			if err := sc.Rename(tmp, remotePath); err != nil {
				_ = sc.Remove(tmp)
				return fmt.Errorf("failed to move %s into place: %w", remotePath, err)
			}
		}
		return nil
	})
	if err == nil {
		e.record(ctx, "PUSH", fmt.Sprintf("local=%s remote=%s bytes=%d", local, remotePath, n))
	}
	return n, err
}

// Fetch downloads remotePath into the local file, keeping the remote
// permission bits.
func (e *Executor) Fetch(ctx context.Context, ident any, remotePath, local string) (int64, error) {
	var n int64
	err := e.withSFTP(ctx, ident, "servers fetch", func(sc *sftp.Client) error {
		src, err := sc.Open(remotePath)
		if err != nil {
			return fmt.Errorf("failed to open remote file %s: %w", remotePath, err)
		}
		defer src.Close()
		mode := os.FileMode(0o600)
		if info, err := src.Stat(); err == nil {
			mode = info.Mode().Perm()
		}
		dst, err := os.OpenFile(local, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
		if err != nil {
			return err
		}
		n, err = io.Copy(dst, src)
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("failed to read from remote file %s: %w", remotePath, err)
		}
		return nil
	})
	if err == nil {
		e.record(ctx, "FETCH", fmt.Sprintf("remote=%s local=%s bytes=%d", remotePath, local, n))
	}
	return n, err
}

// Connect opens an SSH client to the server ident refers to. Identity files
// only live for the handshake; the caller owns the returned release func.
func (e *Executor) Connect(ctx context.Context, ident any) (*ssh.Client, func(), error) {
	d, ok := e.runner.(Dialer)
	if !ok {
		return nil, nil, fault.Errorf(fault.ErrInvalid, "tunnels need the native runner")
	}
	var (
		client  *ssh.Client
		release func()
	)
	err := e.withTarget(ctx, ident, func(srv *model.Server, t *Target) error {
		c, rel, err := d.Dial(ctx, t)
		if err != nil {
			return fault.Wrap(fault.ErrExecutionFailed, "tunnel "+srv.Domain, err)
		}
		client, release = c, rel
		e.record(ctx, "TUNNEL", fmt.Sprintf("server=%d", srv.ID))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return client, release, nil
}
