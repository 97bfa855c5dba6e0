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
	"log/slog"
	"path/filepath"
	"sort"
)

// Resolver consults its backends highest priority first. Unavailable
// backends are filtered out at construction.
type Resolver struct {
	backends []Backend
	dir      *DirBackend
	logger   *slog.Logger
}

// NewResolver builds a resolver over the given backends, dropping any
// that report themselves unavailable.
func NewResolver(logger *slog.Logger, backends ...Backend) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{logger: logger.With("component", "secrets")}
	for _, b := range backends {
		if !b.Available() {
			logger.Debug("secret backend unavailable", "backend", b.Name())
			continue
		}
		if d, ok := b.(*DirBackend); ok {
			r.dir = d
		}
		r.backends = append(r.backends, b)
	}
	sort.SliceStable(r.backends, func(a, b int) bool {
		return r.backends[a].Priority() > r.backends[b].Priority()
	})
	return r
}

// NewDefaultResolver wires the standard chain for a secrets directory:
// environment, OS keychain, per-key files, encrypted file store.
func NewDefaultResolver(secretsDir string, logger *slog.Logger) *Resolver {
	return NewResolver(logger,
		NewEnvBackend(),
		NewKeychainBackend(),
		NewDirBackend(secretsDir),
		NewCryptFileBackend(filepath.Join(secretsDir, "secrets.enc")),
	)
}

// Backends returns the active backends, highest priority first.
func (r *Resolver) Backends() []Backend {
	return r.backends
}

// Get returns the first value found walking the chain. ErrNotFound
// when no backend holds the key.
func (r *Resolver) Get(ctx context.Context, key string) (string, error) {
	if !ValidKey(key) {
		return "", fmt.Errorf("invalid secret key %q", key)
	}
	for _, b := range r.backends {
		value, err := b.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrUnavailable) {
			r.logger.Warn("secret backend error", "backend", b.Name(), "key", key, "error", err)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Source returns the value and the name of the backend that held it.
func (r *Resolver) Source(ctx context.Context, key string) (string, string, error) {
	if !ValidKey(key) {
		return "", "", fmt.Errorf("invalid secret key %q", key)
	}
	for _, b := range r.backends {
		if value, err := b.Get(ctx, key); err == nil {
			return value, b.Name(), nil
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Set stores the key in the named backend, or in the highest-priority
// writable backend when name is empty.
func (r *Resolver) Set(ctx context.Context, backend, key, value string) error {
	if !ValidKey(key) {
		return fmt.Errorf("invalid secret key %q", key)
	}
	if backend != "" {
		b := r.byName(backend)
		if b == nil {
			return fmt.Errorf("no available secret backend %q", backend)
		}
		return b.Set(ctx, key, value)
	}
	for _, b := range r.backends {
		err := b.Set(ctx, key, value)
		if errors.Is(err, ErrReadOnly) {
			continue
		}
		return err
	}
	return errors.New("no writable secret backend available")
}

// Delete removes the key from every backend that holds it. Succeeds if
// at least one deletion happened.
func (r *Resolver) Delete(ctx context.Context, key string) error {
	if !ValidKey(key) {
		return fmt.Errorf("invalid secret key %q", key)
	}
	deleted := false
	for _, b := range r.backends {
		err := b.Delete(ctx, key)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrReadOnly):
		default:
			return fmt.Errorf("deleting from %s: %w", b.Name(), err)
		}
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

// List enumerates keys across all backends, first (highest priority)
// occurrence wins.
func (r *Resolver) List(ctx context.Context) ([]Metadata, error) {
	seen := map[string]bool{}
	var out []Metadata
	for _, b := range r.backends {
		keys, err := b.List(ctx)
		if err != nil {
			r.logger.Warn("listing secret backend failed", "backend", b.Name(), "error", err)
			continue
		}
		readOnly := false
		if ro, ok := b.(interface{ ReadOnly() bool }); ok {
			readOnly = ro.ReadOnly()
		}
		for _, key := range keys {
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, Metadata{Key: key, Backend: b.Name(), ReadOnly: readOnly})
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Key < out[b].Key })
	return out, nil
}

// APIKey resolves a provider credential and shapes the not-found error
// into actionable advice naming both places the key may be supplied.
func (r *Resolver) APIKey(ctx context.Context, key string) (string, error) {
	value, err := r.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		hint := fmt.Sprintf("set the %s environment variable", EnvVar(key))
		if r.dir != nil {
			hint += fmt.Sprintf(" or create %s", r.dir.FilePath(key))
		}
		return "", fmt.Errorf("API key %s not configured: %s", key, hint)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *Resolver) byName(name string) Backend {
	for _, b := range r.backends {
		if b.Name() == name {
			return b
		}
	}
	return nil
}
