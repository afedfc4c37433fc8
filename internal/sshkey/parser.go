// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package sshkey

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Parse splits a public key line (authorized_keys or known_hosts style)
// into algorithm, key data and comment. Leading options or host patterns are
// skipped.
func Parse(rawKey string) (algorithm, keyData, comment string, err error) {
	fields := strings.Fields(rawKey)
	if len(fields) == 0 {
		err = fmt.Errorf("empty line")
		return
	}

	keyStartIndex := -1
	for i, field := range fields {
		if strings.HasPrefix(field, "ssh-") || strings.HasPrefix(field, "ecdsa-") || strings.HasPrefix(field, "sk-") {
			keyStartIndex = i
			break
		}
	}
	if keyStartIndex == -1 {
		err = fmt.Errorf("no valid SSH key type found in line")
		return
	}
	if len(fields) < keyStartIndex+2 {
		err = fmt.Errorf("invalid public key format: missing key data after algorithm")
		return
	}

	algorithm = fields[keyStartIndex]
	keyData = fields[keyStartIndex+1]
	if len(fields) > keyStartIndex+2 {
		comment = strings.Join(fields[keyStartIndex+2:], " ")
	}
	return
}

// ParsePublicKey parses the key part of a public key line.
func ParsePublicKey(rawKey string) (ssh.PublicKey, error) {
	algorithm, keyData, _, err := Parse(rawKey)
	if err != nil {
		return nil, err
	}
	pk, _, _, _, err := ssh.ParseAuthorizedKey([]byte(algorithm + " " + keyData))
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	return pk, nil
}

// Fingerprint returns the SHA256 fingerprint of a public key line.
func Fingerprint(rawKey string) (string, error) {
	pk, err := ParsePublicKey(rawKey)
	if err != nil {
		return "", err
	}
	return ssh.FingerprintSHA256(pk), nil
}
