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

package log

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// CorrelationHeader is the HTTP header carrying the correlation ID.
const CorrelationHeader = "X-Correlation-Id"

// statusRecorder captures the response status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.written += int64(n)
	return n, err
}

// HTTPMiddleware wraps HTTP handlers with structured request logging.
// Each request is logged on completion with its method, path, status,
// duration and correlation ID.
type HTTPMiddleware struct {
	logger *slog.Logger
}

// NewHTTPMiddleware creates a new HTTP logging middleware.
func NewHTTPMiddleware(logger *slog.Logger) *HTTPMiddleware {
	return &HTTPMiddleware{
		logger: logger,
	}
}

// Handler wraps the given handler with request logging.
// A correlation ID is read from the X-Correlation-Id header, or generated
// when absent, and echoed back on the response.
func (m *HTTPMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		correlationID := r.Header.Get(CorrelationHeader)
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		w.Header().Set(CorrelationHeader, correlationID)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		duration := time.Since(start).Milliseconds()
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}

		attrs := []any{
			EventKey, "http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			DurationKey, duration,
			"bytes", rec.written,
			"remote", r.RemoteAddr,
			CorrelationIDKey, correlationID,
		}

		level := slog.LevelInfo
		message := "request completed"
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
			message = "request failed"
		}

		m.logger.Log(r.Context(), level, message, attrs...)
	})
}
