// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

// Package security holds the Secret type used for private keys and passwords
// on their way between the registry and the identity vault.
//
// Go cannot guarantee that secret material is gone from process memory: the
// garbage collector may have copied a slice before it is wiped, and strings
// are immutable. Wipe overwrites the bytes we still own, which is the best
// this runtime offers.
package security

import (
	"crypto/rand"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
)

const redacted = "[SECRET]"

// Secret wraps sensitive bytes (private keys, passwords). Formatting, JSON
// and text marshaling are redacted so a Secret never ends up in a log line.
type Secret []byte

func (s Secret) String() string { return redacted }

// Format implements fmt.Formatter so every verb is redacted.
func (s Secret) Format(f fmt.State, c rune) {
	_, _ = io.WriteString(f, redacted)
}

// Empty reports whether the secret holds no data.
func (s Secret) Empty() bool { return len(s) == 0 }

// Bytes returns a copy of the underlying bytes. Callers are responsible for
// wiping the copy.
func (s Secret) Bytes() []byte {
	out := make([]byte, len(s))
	copy(out, s)
	return out
}

// Use executes fn with the underlying bytes (not a copy).
func (s Secret) Use(fn func([]byte) error) error {
	return fn([]byte(s))
}

// Zero wipes the secret in place and drops the reference.
func (s *Secret) Zero() {
	if s == nil || *s == nil {
		return
	}
	Wipe(*s)
	*s = nil
}

// MarshalJSON redacts secrets in JSON output.
func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(redacted) }

// MarshalText redacts secrets for text encoders.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Value stores the raw bytes.
func (s Secret) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return string(s), nil
}

// Scan reads a secret column.
func (s *Secret) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = nil
	case []byte:
		*s = FromBytes(v)
	case string:
		*s = Secret(v)
	default:
		return fmt.Errorf("unsupported scan type %T", src)
	}
	return nil
}

// FromString creates a Secret from a string.
func FromString(in string) Secret { return Secret(in) }

// FromBytes creates a Secret holding a copy of in.
func FromBytes(in []byte) Secret {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return Secret(out)
}

// Wipe overwrites b with random bytes and then zeros.
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = 0
	}
}
