// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

// Package sshkey generates, parses and fingerprints SSH keys stored for
// SSH accounts and known hosts.
package sshkey // import "github.com/toeirei/serverbase/internal/sshkey"

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/toeirei/serverbase/internal/security"
	"golang.org/x/crypto/ssh"
)

// GenerateEd25519 creates a new key pair. The public key is returned in
// authorized_keys format with comment appended, the private key as an
// OpenSSH PEM block, encrypted when passphrase is not empty.
func GenerateEd25519(comment string, passphrase security.Secret) (publicKey string, privateKey security.Secret, err error) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}

	sshPubKey, err := ssh.NewPublicKey(pubKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create SSH public key: %w", err)
	}
	publicKey = strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPubKey)))
	if comment != "" {
		publicKey += " " + comment
	}

	var block *pem.Block
	if passphrase.Empty() {
		block, err = ssh.MarshalPrivateKey(privKey, comment)
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(privKey, comment, passphrase.Bytes())
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return publicKey, security.FromBytes(pem.EncodeToMemory(block)), nil
}

// CheckPrivateKey reports whether key parses as an unencrypted private key.
// An encrypted key yields a *ssh.PassphraseMissingError.
func CheckPrivateKey(key security.Secret) error {
	return key.Use(func(b []byte) error {
		_, err := ssh.ParseRawPrivateKey(b)
		return err
	})
}

// PublicFromPrivate derives the authorized_keys line of a private key.
func PublicFromPrivate(key security.Secret) (string, error) {
	var out string
	err := key.Use(func(b []byte) error {
		signer, err := ssh.ParsePrivateKey(b)
		if err != nil {
			return err
		}
		out = strings.TrimSpace(string(ssh.MarshalAuthorizedKey(signer.PublicKey())))
		return nil
	})
	return out, err
}
