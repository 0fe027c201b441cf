// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// saltKey holds the key-derivation salt next to the encrypted values.
	saltKey = "chatdesk.salt"

	// checkKey holds a sealed known value that proves the passphrase.
	checkKey = "chatdesk.check"

	saltSize  = 32
	keySize   = 32
	nonceSize = 12

	// PBKDF2Iterations follows the OWASP 2023 figure for PBKDF2-SHA-256.
	PBKDF2Iterations = 600000
)

// encryptedMagic prefixes every sealed value.
var encryptedMagic = []byte("CDENC1")

var checkValue = []byte("chatdesk passphrase check")

// ErrDecrypt is returned when a value fails authentication, usually
// because the passphrase is wrong.
var ErrDecrypt = &Error{Message: "decryption failed"}

// EncryptedBackend seals values with AES-256-GCM before handing them to
// an inner backend. Keys are stored in the clear.
type EncryptedBackend struct {
	inner Backend
	aead  cipher.AEAD
}

// NewEncryptedBackend wraps inner, deriving the key from passphrase.
// The salt is created on first use and stored in inner. A passphrase
// that does not open the stored check value fails with ErrDecrypt, so
// nothing is ever sealed under the wrong key.
func NewEncryptedBackend(inner Backend, passphrase string) (*EncryptedBackend, error) {
	return newEncryptedBackend(inner, passphrase, PBKDF2Iterations)
}

func newEncryptedBackend(inner Backend, passphrase string, iterations int) (*EncryptedBackend, error) {
	if passphrase == "" {
		return nil, errors.New("encryption passphrase is empty")
	}

	salt, err := inner.Get(saltKey)
	if errors.Is(err, ErrKeyNotFound) {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		if err := inner.Set(saltKey, salt); err != nil {
			return nil, fmt.Errorf("store salt: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}

	key := pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	b := &EncryptedBackend{inner: inner, aead: aead}
	if err := b.verify(); err != nil {
		return nil, err
	}
	return b, nil
}

// verify opens the check value, writing it on first use. Stores sealed
// before the check value existed are proven by their conversation data.
func (b *EncryptedBackend) verify() error {
	got, err := b.Get(checkKey)
	switch {
	case err == nil:
		if !bytes.Equal(got, checkValue) {
			return &Error{Message: ErrDecrypt.Message, Key: checkKey}
		}
		return nil
	case !errors.Is(err, ErrKeyNotFound):
		return err
	}

	if _, err := b.Get(KeyConversations); err != nil && !errors.Is(err, ErrKeyNotFound) {
		return err
	}
	if err := b.Set(checkKey, checkValue); err != nil {
		return fmt.Errorf("store passphrase check: %w", err)
	}
	return nil
}

// Get reads and opens the value at key.
func (b *EncryptedBackend) Get(key string) ([]byte, error) {
	sealed, err := b.inner.Get(key)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(sealed, encryptedMagic) {
		return nil, &Error{Message: ErrDecrypt.Message, Key: key}
	}
	sealed = sealed[len(encryptedMagic):]
	if len(sealed) < nonceSize {
		return nil, &Error{Message: ErrDecrypt.Message, Key: key}
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plain, err := b.aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return nil, &Error{Message: ErrDecrypt.Message, Key: key}
	}
	return plain, nil
}

// Set seals value with a fresh random nonce. The key is bound as
// additional data so values cannot be swapped between keys.
func (b *EncryptedBackend) Set(key string, value []byte) error {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	out := make([]byte, 0, len(encryptedMagic)+nonceSize+len(value)+b.aead.Overhead())
	out = append(out, encryptedMagic...)
	out = append(out, nonce...)
	out = b.aead.Seal(out, nonce, value, []byte(key))
	return b.inner.Set(key, out)
}

// Remove deletes key from the inner backend.
func (b *EncryptedBackend) Remove(key string) error {
	return b.inner.Remove(key)
}

// Close closes the inner backend.
func (b *EncryptedBackend) Close() error {
	return Close(b.inner)
}
