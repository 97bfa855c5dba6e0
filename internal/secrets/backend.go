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

// Package secrets resolves API keys and other sensitive values through
// a chain of prioritized backends.
//
// The chain, highest priority first: process environment (100), system
// keychain (50), per-key files in the secrets directory (40), and an
// encrypted file store (25). An environment variable therefore always
// beats the corresponding secrets/<key>.txt file.
package secrets

import (
	"context"
	"errors"
	"regexp"
)

var (
	// ErrNotFound is returned when no backend holds the requested key.
	ErrNotFound = errors.New("secret not found")

	// ErrUnavailable is returned when a backend cannot be used in the
	// current environment (locked keychain, missing passphrase).
	ErrUnavailable = errors.New("secret backend unavailable")

	// ErrReadOnly is returned by writes against a read-only backend.
	ErrReadOnly = errors.New("secret backend is read-only")
)

// Standard backend priorities; higher is consulted first.
const (
	EnvPriority       = 100
	KeychainPriority  = 50
	DirPriority       = 40
	EncryptedPriority = 25
)

// keyPattern restricts secret key names so they map cleanly to
// environment variable names and filenames.
var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidKey reports whether a secret key name is acceptable.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// Backend stores sensitive values. Implementations differ in medium
// and are consulted by the Resolver in priority order.
type Backend interface {
	// Name identifies the backend ("env", "keychain", "dir", "file").
	Name() string

	// Get retrieves a secret. Returns ErrNotFound when absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a secret. Returns ErrReadOnly when unsupported.
	Set(ctx context.Context, key, value string) error

	// Delete removes a secret. Returns ErrNotFound when absent and
	// ErrReadOnly when unsupported.
	Delete(ctx context.Context, key string) error

	// List returns the keys (never values) this backend holds. Some
	// media cannot enumerate; those return an empty list.
	List(ctx context.Context) ([]string, error)

	// Available reports whether the backend is usable right now.
	Available() bool

	// Priority orders resolution; higher is consulted first.
	Priority() int
}

// Metadata describes one listed secret without exposing its value.
type Metadata struct {
	Key      string `json:"key"`
	Backend  string `json:"backend"`
	ReadOnly bool   `json:"read_only"`
}
