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
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

// keyringService namespaces our entries in the OS credential store.
const keyringService = "reprise"

// availabilityProbeKey is read once to detect whether a usable
// credential store exists at all (headless hosts usually lack one).
const availabilityProbeKey = "__reprise_availability_probe__"

// KeychainBackend stores secrets in the OS credential store via
// go-keyring (macOS Keychain, Windows Credential Manager, Secret
// Service on Linux). It cannot enumerate its entries, so List returns
// nothing; the resolver tracks keys it has stored here separately.
type KeychainBackend struct {
	service string

	availOnce sync.Once
	avail     bool
}

// NewKeychainBackend creates the OS credential store backend.
func NewKeychainBackend() *KeychainBackend {
	return &KeychainBackend{service: keyringService}
}

// Name returns "keychain".
func (k *KeychainBackend) Name() string { return "keychain" }

// Get retrieves a secret from the credential store.
func (k *KeychainBackend) Get(_ context.Context, key string) (string, error) {
	value, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: no keychain entry for %s", ErrNotFound, key)
	}
	if err != nil {
		if isUnavailableError(err) {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", fmt.Errorf("keychain read: %w", err)
	}
	return value, nil
}

// Set stores a secret in the credential store.
func (k *KeychainBackend) Set(_ context.Context, key, value string) error {
	if !ValidKey(key) {
		return fmt.Errorf("invalid secret key %q", key)
	}
	if err := keyring.Set(k.service, key, value); err != nil {
		if isUnavailableError(err) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return fmt.Errorf("keychain write: %w", err)
	}
	return nil
}

// Delete removes a secret from the credential store.
func (k *KeychainBackend) Delete(_ context.Context, key string) error {
	err := keyring.Delete(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		if isUnavailableError(err) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return fmt.Errorf("keychain delete: %w", err)
	}
	return nil
}

// List returns nothing; credential stores cannot enumerate by service.
func (k *KeychainBackend) List(context.Context) ([]string, error) {
	return []string{}, nil
}

// Available probes the credential store once and caches the answer.
// A not-found result means the store works; only transport and locked
// errors mark it unavailable.
func (k *KeychainBackend) Available() bool {
	k.availOnce.Do(func() {
		_, err := keyring.Get(k.service, availabilityProbeKey)
		k.avail = err == nil || errors.Is(err, keyring.ErrNotFound)
	})
	return k.avail
}

// Priority ranks below the environment and above the directory store.
func (k *KeychainBackend) Priority() int { return KeychainPriority }

// isUnavailableError recognizes failures that mean "no usable store"
// rather than "this key is absent".
func isUnavailableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"no such interface",
		"service name does not exist",
		"cannot autolaunch",
		"dbus",
		"not available",
		"locked",
		"access denied",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
