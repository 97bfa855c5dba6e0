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

// Package file provides the file_read and file_write builtin actions.
//
// Relative paths resolve against the run's base directory and must stay
// inside it. Absolute paths are accepted as-is; the engine runs on the
// operator's own machine and the base dir confinement exists to keep
// template mistakes from wandering, not as a sandbox.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tombee/reprise/pkg/action"
	"github.com/tombee/reprise/pkg/errors"
)

// maxReadSize bounds file_read so one step cannot balloon the run
// context with a multi-gigabyte result.
const maxReadSize = 32 * 1024 * 1024

// WriteAction implements file_write.
type WriteAction struct{}

// ReadAction implements file_read.
type ReadAction struct{}

// resolvePath turns the path parameter into an absolute path. Relative
// paths are anchored at base_dir and rejected when they escape it.
func resolvePath(params, runContext map[string]any) (string, error) {
	raw, _ := params["path"].(string)
	if raw == "" {
		return "", &errors.ValidationError{
			Field:      "path",
			Message:    "path is required",
			Suggestion: "Provide a file path, relative to the base directory",
		}
	}

	if filepath.IsAbs(raw) {
		return filepath.Clean(raw), nil
	}

	baseDir, _ := runContext["base_dir"].(string)
	if baseDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		baseDir = cwd
	}

	resolved := filepath.Clean(filepath.Join(baseDir, raw))
	rel, err := filepath.Rel(baseDir, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &errors.ValidationError{
			Field:      "path",
			Message:    fmt.Sprintf("path %q escapes the base directory", raw),
			Suggestion: "Use a path inside the base directory, or an absolute path",
		}
	}
	return resolved, nil
}

// Execute writes the content parameter to the resolved path, creating
// parent directories as needed.
func (a *WriteAction) Execute(_ context.Context, params, runContext map[string]any) (map[string]any, error) {
	path, err := resolvePath(params, runContext)
	if err != nil {
		return nil, err
	}

	content, _ := params["content"].(string)
	appendMode, _ := params["append"].(bool)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating parent directory: %w", err)
	}

	if appendMode {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening file for append: %w", err)
		}
		if _, err := f.WriteString(content); err != nil {
			f.Close()
			return nil, fmt.Errorf("appending to file: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
	} else {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("writing file: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"written": true,
		"path":    path,
		"size":    info.Size(),
	}, nil
}

// Execute reads the resolved path and returns its content.
func (a *ReadAction) Execute(_ context.Context, params, runContext map[string]any) (map[string]any, error) {
	path, err := resolvePath(params, runContext)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	if err != nil {
		return nil, err
	}
	if info.Size() > maxReadSize {
		return nil, fmt.Errorf("file size (%d bytes) exceeds maximum (%d bytes)", info.Size(), maxReadSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	return map[string]any{
		"content": string(data),
		"text":    string(data),
		"path":    path,
		"size":    info.Size(),
	}, nil
}

// WriteMetadata describes file_write for the catalog.
func WriteMetadata() *action.Metadata {
	return &action.Metadata{
		Type:        "file_write",
		Title:       "Write file",
		Category:    "file",
		Description: "Writes content to a file. Relative paths resolve under the base directory.",
		Params: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"path":    {Type: "string", Description: "Destination path"},
				"content": {Type: "string", Description: "Content to write"},
				"append":  {Type: "boolean", Description: "Append instead of truncating", Default: false},
			},
			Required: []string{"path", "content"},
		},
		Output: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"written": {Type: "boolean", Description: "Always true on success"},
				"path":    {Type: "string", Description: "The resolved absolute path"},
				"size":    {Type: "number", Description: "File size in bytes after the write"},
			},
		},
	}
}

// ReadMetadata describes file_read for the catalog.
func ReadMetadata() *action.Metadata {
	return &action.Metadata{
		Type:        "file_read",
		Title:       "Read file",
		Category:    "file",
		Description: "Reads a file into the run context.",
		Params: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"path": {Type: "string", Description: "Path to read"},
			},
			Required: []string{"path"},
		},
		Output: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"content": {Type: "string", Description: "File content"},
				"text":    {Type: "string", Description: "Alias of content"},
				"path":    {Type: "string", Description: "The resolved absolute path"},
				"size":    {Type: "number", Description: "File size in bytes"},
			},
		},
	}
}
