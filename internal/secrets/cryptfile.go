// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/crypto/argon2"
)

// PassphraseEnv supplies the passphrase for the encrypted file store.
// Without it the backend reports itself unavailable.
const PassphraseEnv = "REPRISE_SECRETS_PASSPHRASE"

// Argon2id parameters for deriving the AES key from the passphrase.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// cryptFile is the on-disk layout: a fresh salt and nonce per write,
// with every secret sealed together in one AES-256-GCM ciphertext.
type cryptFile struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// CryptFileBackend keeps all secrets in one encrypted JSON file. The
// fallback for hosts with no credential store where plaintext files in
// the secrets directory are unacceptable.
type CryptFileBackend struct {
	path       string
	passphrase func() string

	mu sync.Mutex
}

// NewCryptFileBackend creates the encrypted file backend. The
// passphrase is read from PassphraseEnv on each use, so a daemon
// restarted without it degrades instead of caching a stale value.
func NewCryptFileBackend(path string) *CryptFileBackend {
	return &CryptFileBackend{
		path:       path,
		passphrase: func() string { return os.Getenv(PassphraseEnv) },
	}
}

// Name returns "file".
func (c *CryptFileBackend) Name() string { return "file" }

// Get decrypts the store and returns one key.
func (c *CryptFileBackend) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.load()
	if IsNotExist(err) {
		return "", fmt.Errorf("%w: encrypted store does not exist", ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	value, ok := values[key]
	if !ok {
		return "", fmt.Errorf("%w: no entry for %s in encrypted store", ErrNotFound, key)
	}
	return value, nil
}

// Set re-encrypts the store with the key added or replaced.
func (c *CryptFileBackend) Set(_ context.Context, key, value string) error {
	if !ValidKey(key) {
		return fmt.Errorf("invalid secret key %q", key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.load()
	if err != nil && !IsNotExist(err) {
		return err
	}
	if values == nil {
		values = map[string]string{}
	}
	values[key] = value
	return c.save(values)
}

// Delete re-encrypts the store with the key removed.
func (c *CryptFileBackend) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.load()
	if IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return ErrNotFound
	}
	delete(values, key)
	return c.save(values)
}

// List returns the stored keys, sorted.
func (c *CryptFileBackend) List(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.load()
	if IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Available requires a passphrase in the environment.
func (c *CryptFileBackend) Available() bool {
	return c.passphrase() != ""
}

// Priority ranks last in the standard chain.
func (c *CryptFileBackend) Priority() int { return EncryptedPriority }

// IsNotExist reports whether the error means the encrypted store file
// does not exist yet.
func IsNotExist(err error) bool {
	return err != nil && os.IsNotExist(err)
}

func (c *CryptFileBackend) load() (map[string]string, error) {
	pass := c.passphrase()
	if pass == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrUnavailable, PassphraseEnv)
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}

	var file cryptFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing encrypted store: %w", err)
	}
	if file.Version != 1 {
		return nil, fmt.Errorf("unsupported encrypted store version %d", file.Version)
	}

	gcm, err := newGCM(pass, file.Salt)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, file.Nonce, file.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting store (wrong passphrase?): %w", err)
	}

	values := map[string]string{}
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, fmt.Errorf("parsing decrypted store: %w", err)
	}
	return values, nil
}

func (c *CryptFileBackend) save(values map[string]string) error {
	pass := c.passphrase()
	if pass == "" {
		return fmt.Errorf("%w: %s not set", ErrUnavailable, PassphraseEnv)
	}

	plain, err := json.Marshal(values)
	if err != nil {
		return err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}
	gcm, err := newGCM(pass, salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}

	file := cryptFile{
		Version:    1,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: gcm.Seal(nil, nonce, plain, nil),
	}
	data, err := json.Marshal(file)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("creating secrets directory: %w", err)
	}
	return os.WriteFile(c.path, data, 0o600)
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
