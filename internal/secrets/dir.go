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
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// fileExt is the extension for per-key secret files.
const fileExt = ".txt"

// DirBackend stores one secret per file under the secrets directory.
// The key "openai_api_key" lives at <dir>/openai_api_key.txt with the
// value as the file content, trailing whitespace trimmed. Files are
// written 0600 so other local users cannot read them.
type DirBackend struct {
	dir string
}

// NewDirBackend creates a backend over the given secrets directory. The
// directory is created lazily on first write.
func NewDirBackend(dir string) *DirBackend {
	return &DirBackend{dir: dir}
}

// Name returns "dir".
func (d *DirBackend) Name() string { return "dir" }

// FilePath returns where a secret key would be stored on disk.
func (d *DirBackend) FilePath(key string) string {
	return filepath.Join(d.dir, key+fileExt)
}

// Get reads <dir>/<key>.txt.
func (d *DirBackend) Get(_ context.Context, key string) (string, error) {
	if !ValidKey(key) {
		return "", fmt.Errorf("invalid secret key %q", key)
	}
	data, err := os.ReadFile(d.FilePath(key))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: no file %s", ErrNotFound, d.FilePath(key))
	}
	if err != nil {
		return "", fmt.Errorf("reading secret file: %w", err)
	}
	value := strings.TrimRight(string(data), "\r\n \t")
	if value == "" {
		return "", fmt.Errorf("%w: file %s is empty", ErrNotFound, d.FilePath(key))
	}
	return value, nil
}

// Set writes the value to <dir>/<key>.txt with 0600 permissions.
func (d *DirBackend) Set(_ context.Context, key, value string) error {
	if !ValidKey(key) {
		return fmt.Errorf("invalid secret key %q", key)
	}
	if err := os.MkdirAll(d.dir, 0o700); err != nil {
		return fmt.Errorf("creating secrets directory: %w", err)
	}
	if err := os.WriteFile(d.FilePath(key), []byte(value), 0o600); err != nil {
		return fmt.Errorf("writing secret file: %w", err)
	}
	return nil
}

// Delete removes the secret file.
func (d *DirBackend) Delete(_ context.Context, key string) error {
	if !ValidKey(key) {
		return fmt.Errorf("invalid secret key %q", key)
	}
	err := os.Remove(d.FilePath(key))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

// List returns the keys of all .txt files in the directory.
func (d *DirBackend) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		key := strings.TrimSuffix(entry.Name(), fileExt)
		if ValidKey(key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Available always reports true; the directory appears on first write.
func (d *DirBackend) Available() bool { return true }

// Priority ranks below the keychain and above the encrypted store.
func (d *DirBackend) Priority() int { return DirPriority }
