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

// Package httputil provides JSON response helpers for the daemon API.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tombee/reprise/pkg/errors"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// WriteError writes a JSON error body {"error": message}.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteDomainError maps a domain error to an HTTP status. Sentinels
// and typed errors carry the mapping; anything else is a 500.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrAlreadyRunning):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, errors.ErrNotRunning):
		WriteError(w, http.StatusNotFound, err.Error())
	default:
		var nfErr *errors.NotFoundError
		var loadErr *errors.LoadError
		var valErr *errors.ValidationError
		switch {
		case errors.As(err, &nfErr):
			WriteError(w, http.StatusNotFound, err.Error())
		case errors.As(err, &loadErr):
			status := http.StatusBadRequest
			if loadErr.Kind == errors.LoadMissing {
				status = http.StatusNotFound
			}
			WriteJSON(w, status, map[string]any{
				"error":    loadErr.Error(),
				"workflow": loadErr.Name,
				"kind":     string(loadErr.Kind),
			})
		case errors.As(err, &valErr):
			body := map[string]any{"error": valErr.Error()}
			if valErr.Suggestion != "" {
				body["suggestion"] = valErr.Suggestion
			}
			WriteJSON(w, http.StatusBadRequest, body)
		default:
			WriteError(w, http.StatusInternalServerError, err.Error())
		}
	}
}

// DecodeJSON decodes a request body into dst, tolerating an empty
// body. Unknown fields are rejected so typos surface as 400s.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
