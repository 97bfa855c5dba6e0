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

package action

import (
	"context"
	"sort"
	"sync"

	"github.com/tombee/reprise/pkg/errors"
)

// Registry maintains the mapping from action type names to handlers.
//
// Registration is last-write-wins: re-registering a type silently
// replaces the previous handler. This lets embedders override builtins.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	metadata map[string]*Metadata
}

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		metadata: make(map[string]*Metadata),
	}
}

// Register adds a handler under the given type name, replacing any
// previous registration. Metadata may be nil for headless actions.
func (r *Registry) Register(actionType string, handler Handler, meta *Metadata) {
	if actionType == "" || handler == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[actionType] = handler
	if meta != nil {
		m := *meta
		m.Type = actionType
		r.metadata[actionType] = &m
	} else {
		delete(r.metadata, actionType)
	}
}

// Lookup returns the handler for the given type, or false when the
// type is not registered.
func (r *Registry) Lookup(actionType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[actionType]
	return handler, ok
}

// LookupMetadata returns the metadata for the given type, or false
// when the type has none.
func (r *Registry) LookupMetadata(actionType string) (*Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.metadata[actionType]
	return meta, ok
}

// Execute looks up and runs the handler for the given type. Callers
// that want to distinguish an unknown type from a handler failure
// should check Has first.
func (r *Registry) Execute(ctx context.Context, actionType string, params map[string]any, runContext map[string]any) (map[string]any, error) {
	handler, ok := r.Lookup(actionType)
	if !ok {
		return nil, &errors.NotFoundError{Resource: "action", ID: actionType}
	}
	return handler.Execute(ctx, params, runContext)
}

// Has checks if an action type is registered.
func (r *Registry) Has(actionType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.handlers[actionType]
	return ok
}

// List returns all registered type names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Descriptors returns the metadata of every action that has any,
// sorted by type name. Used by the editor API and the MCP server.
func (r *Registry) Descriptors() []*Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]*Metadata, 0, len(r.metadata))
	for _, meta := range r.metadata {
		descriptors = append(descriptors, meta)
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Type < descriptors[j].Type
	})
	return descriptors
}
