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

package workflow

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tombee/reprise/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Definition file extensions, in resolution order. A .yaml file wins
// over a .yml file with the same stem.
var definitionExts = []string{".yaml", ".yml"}

// TemplatesSubdir is the directory under the workflows dir holding
// starter templates.
const TemplatesSubdir = "templates"

// Summary describes one definition file for listings. Invalid files are
// still listed, with Valid false and the load error attached.
type Summary struct {
	Name        string `json:"name"`
	Filename    string `json:"filename"`
	TriggerType string `json:"trigger_type"`
	Cron        string `json:"cron,omitempty"`
	StepCount   int    `json:"step_count"`
	Valid       bool   `json:"is_valid"`
	Error       string `json:"error,omitempty"`
	Enabled     bool   `json:"enabled"`
	Folder      string `json:"folder,omitempty"`
}

// Loader reads and writes workflow definitions under a single directory.
// Load failures are ordinary return values, not panics: callers branch
// on the LoadError kind to decide how to surface them.
type Loader struct {
	dir string
}

// NewLoader returns a loader rooted at dir. The directory does not have
// to exist yet; Save creates it.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Dir returns the workflows directory.
func (l *Loader) Dir() string {
	return l.dir
}

// TemplatesDir returns the starter-template directory.
func (l *Loader) TemplatesDir() string {
	return filepath.Join(l.dir, TemplatesSubdir)
}

// Path resolves a workflow name to its definition file, trying each
// extension in order. The second return reports whether a file exists.
func (l *Loader) Path(name string) (string, bool) {
	return resolveDefinition(l.dir, name)
}

func resolveDefinition(dir, name string) (string, bool) {
	for _, ext := range definitionExts {
		path := filepath.Join(dir, name+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// Load reads, parses and validates the named workflow.
func (l *Loader) Load(name string) (*Workflow, *errors.LoadError) {
	return loadFrom(l.dir, name)
}

// LoadTemplate reads a starter template from the templates directory.
func (l *Loader) LoadTemplate(name string) (*Workflow, *errors.LoadError) {
	return loadFrom(l.TemplatesDir(), name)
}

func loadFrom(dir, name string) (*Workflow, *errors.LoadError) {
	path, ok := resolveDefinition(dir, name)
	if !ok {
		return nil, &errors.LoadError{
			Name:    name,
			Kind:    errors.LoadMissing,
			Message: fmt.Sprintf("workflow '%s' not found", name),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.LoadError{
			Name:    name,
			Path:    path,
			Kind:    errors.LoadParse,
			Message: fmt.Sprintf("failed to read workflow file: %v", err),
		}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &errors.LoadError{
			Name:    name,
			Path:    path,
			Kind:    errors.LoadParse,
			Message: fmt.Sprintf("YAML syntax error: %v", err),
		}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, &errors.LoadError{
			Name:    name,
			Path:    path,
			Kind:    errors.LoadEmpty,
			Message: "workflow file is empty",
		}
	}

	var w Workflow
	if err := doc.Decode(&w); err != nil {
		return nil, &errors.LoadError{
			Name:    name,
			Path:    path,
			Kind:    errors.LoadSchema,
			Message: fmt.Sprintf("validation error: %v", err),
		}
	}

	w.Normalize()
	if err := w.Validate(); err != nil {
		return nil, &errors.LoadError{
			Name:    name,
			Path:    path,
			Kind:    errors.LoadSchema,
			Message: err.Error(),
		}
	}

	return &w, nil
}

// RawContent returns the definition file's text, or "" when no file
// exists. Used by the editor and by backups before an overwrite.
func (l *Loader) RawContent(name string) string {
	path, ok := resolveDefinition(l.dir, name)
	if !ok {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// List returns a summary per definition file, sorted by filename stem.
// Files that fail to load are included with Valid false so dashboards
// can surface the problem inline.
func (l *Loader) List() []Summary {
	return listDir(l.dir)
}

// ListTemplates returns summaries for the starter templates.
func (l *Loader) ListTemplates() []Summary {
	return listDir(l.TemplatesDir())
}

func listDir(dir string) []Summary {
	var files []string
	for _, ext := range definitionExts {
		matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
		if err == nil {
			files = append(files, matches...)
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return stem(files[i]) < stem(files[j])
	})

	summaries := make([]Summary, 0, len(files))
	for _, file := range files {
		name := stem(file)
		w, loadErr := loadFrom(dir, name)
		if loadErr != nil {
			summaries = append(summaries, Summary{
				Name:        name,
				Filename:    filepath.Base(file),
				TriggerType: "unknown",
				Valid:       false,
				Error:       loadErr.Error(),
				Enabled:     false,
			})
			continue
		}
		summaries = append(summaries, Summary{
			Name:        w.Name,
			Filename:    filepath.Base(file),
			TriggerType: string(w.Trigger.Type),
			Cron:        w.Trigger.Cron,
			StepCount:   len(w.Steps),
			Valid:       true,
			Enabled:     w.IsEnabled(),
			Folder:      w.Folder,
		})
	}
	return summaries
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Save validates the workflow and writes it as <dir>/<name>.yaml. The
// primary extension is always used, even when the workflow was loaded
// from a .yml file. The write is atomic so readers never observe a
// partial definition. Returns the written path.
func (l *Loader) Save(w *Workflow) (string, error) {
	w.Normalize()
	if err := w.Validate(); err != nil {
		return "", err
	}

	data, err := w.Marshal()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create workflows directory: %w", err)
	}

	path := filepath.Join(l.dir, w.Name+definitionExts[0])
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("failed to write workflow file: %w", err)
	}
	return path, nil
}

// SetEnabled flips the enabled flag in the definition file while leaving
// every other byte of structure alone: key order, comments on untouched
// lines and unknown keys survive because the edit happens on the YAML
// node tree, not on the decoded model.
func (l *Loader) SetEnabled(name string, enabled bool) error {
	path, ok := resolveDefinition(l.dir, name)
	if !ok {
		return &errors.NotFoundError{Resource: "workflow", ID: name}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read workflow file: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse workflow definition: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return &errors.ValidationError{
			Field:   "enabled",
			Message: "workflow definition is not a mapping",
		}
	}

	root := doc.Content[0]
	value := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(enabled)}
	replaced := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "enabled" {
			root.Content[i+1] = value
			replaced = true
			break
		}
	}
	if !replaced {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "enabled"}
		root.Content = append(root.Content, key, value)
	}

	// the edited document must still be a valid workflow
	var w Workflow
	if err := doc.Decode(&w); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	w.Normalize()
	if err := w.Validate(); err != nil {
		return err
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}
	return writeFileAtomic(path, out)
}

// Delete removes the definition file for name.
func (l *Loader) Delete(name string) error {
	path, ok := resolveDefinition(l.dir, name)
	if !ok {
		return &errors.NotFoundError{Resource: "workflow", ID: name}
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete workflow file: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if err := stderrors.Join(writeErr, closeErr); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
