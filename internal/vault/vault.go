// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

// Package vault materializes private keys as short-lived identity files.
//
// Files live in a private directory (0700), are created exclusively with mode
// 0400 and carry a random 8 hex character name. Remove overwrites a file
// with random bytes before unlinking it.
package vault // import "github.com/toeirei/serverbase/internal/vault"

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/toeirei/serverbase/internal/fault"
	"github.com/toeirei/serverbase/internal/logging"
	"github.com/toeirei/serverbase/internal/security"
)

const (
	dirMode  fs.FileMode = 0o700
	fileMode fs.FileMode = 0o400

	// nameAttempts bounds retries when a random name collides.
	nameAttempts = 8
)

// Vault writes identity files below Dir.
type Vault struct {
	Dir string
}

// New returns a Vault rooted at dir.
func New(dir string) *Vault {
	return &Vault{Dir: dir}
}

func (v *Vault) ensureDir() error {
	if v.Dir == "" {
		return fault.Errorf(fault.ErrNotSpecified, "identity directory not configured")
	}
	if err := os.MkdirAll(v.Dir, dirMode); err != nil {
		return fmt.Errorf("create identity directory: %w", err)
	}
	// MkdirAll keeps the mode of an existing directory.
	return os.Chmod(v.Dir, dirMode)
}

func randomName() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Create writes key to a new identity file and zeroes key afterwards. The
// caller owns the returned path and must hand it to Remove.
func (v *Vault) Create(key *security.Secret) (string, error) {
	if key == nil || key.Empty() {
		return "", fault.Errorf(fault.ErrMissingCredentials, "no private key to write")
	}
	defer key.Zero()

	if err := v.ensureDir(); err != nil {
		return "", err
	}

	var (
		f    *os.File
		path string
	)
	for i := 0; i < nameAttempts; i++ {
		name, err := randomName()
		if err != nil {
			return "", fmt.Errorf("generate identity file name: %w", err)
		}
		path = filepath.Join(v.Dir, name)
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fileMode)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("create identity file: %w", err)
		}
		f = nil
	}
	if f == nil {
		return "", fmt.Errorf("create identity file: no free name after %d attempts", nameAttempts)
	}

	data := key.Bytes()
	defer security.Wipe(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	_, werr := f.Write(data)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = v.Remove(path)
		return "", fmt.Errorf("write identity file: %w", errors.Join(werr, cerr))
	}
	logging.Debugf("vault: created identity file %s", path)
	return path, nil
}

// Remove makes path writable, overwrites its content with random bytes and
// unlinks it. A missing file is not an error.
func (v *Vault) Remove(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod identity file: %w", err)
	}
	if size := info.Size(); size > 0 {
		if err := overwrite(path, size); err != nil {
			logging.Warnf("vault: overwrite of %s failed: %v", path, err)
		}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove identity file: %w", err)
	}
	logging.Debugf("vault: removed identity file %s", path)
	return nil
}

func overwrite(path string, size int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	junk := make([]byte, size)
	if _, err := rand.Read(junk); err != nil {
		_ = f.Close()
		return err
	}
	if _, err := f.WriteAt(junk, 0); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ClearKey zeroes key in place.
func ClearKey(key *security.Secret) {
	if key != nil {
		key.Zero()
	}
}
