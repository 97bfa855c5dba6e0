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

package errors_test

import (
	"context"
	"errors"
	"testing"
	"time"

	repriseerrors "github.com/tombee/reprise/pkg/errors"
)

func TestWrap(t *testing.T) {
	base := errors.New("disk full")

	wrapped := repriseerrors.Wrap(base, "appending run log")
	if wrapped == nil {
		t.Fatal("Wrap returned nil for non-nil error")
	}
	if wrapped.Error() != "appending run log: disk full" {
		t.Errorf("Wrap message = %q", wrapped.Error())
	}
	if !errors.Is(wrapped, base) {
		t.Error("Wrap should preserve the error chain")
	}

	if repriseerrors.Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWrapf(t *testing.T) {
	base := errors.New("permission denied")

	wrapped := repriseerrors.Wrapf(base, "saving workflow %s", "daily_report")
	if wrapped.Error() != "saving workflow daily_report: permission denied" {
		t.Errorf("Wrapf message = %q", wrapped.Error())
	}
	if !errors.Is(wrapped, base) {
		t.Error("Wrapf should preserve the error chain")
	}

	if repriseerrors.Wrapf(nil, "saving %s", "x") != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "not-found error",
			err:  &repriseerrors.NotFoundError{Resource: "workflow", ID: "x"},
			want: true,
		},
		{
			name: "wrapped not-found error",
			err:  repriseerrors.Wrap(&repriseerrors.NotFoundError{Resource: "run", ID: "r1"}, "query"),
			want: true,
		},
		{
			name: "load error of kind missing",
			err:  &repriseerrors.LoadError{Name: "x", Kind: repriseerrors.LoadMissing},
			want: true,
		},
		{
			name: "load error of kind parse",
			err:  &repriseerrors.LoadError{Name: "x", Kind: repriseerrors.LoadParse},
			want: false,
		},
		{
			name: "unrelated error",
			err:  errors.New("boom"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := repriseerrors.IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTimeout(t *testing.T) {
	te := &repriseerrors.TimeoutError{Operation: "step execution", Duration: time.Second}
	if !repriseerrors.IsTimeout(te) {
		t.Error("TimeoutError should be a timeout")
	}
	if !repriseerrors.IsTimeout(context.DeadlineExceeded) {
		t.Error("context.DeadlineExceeded should be a timeout")
	}
	if repriseerrors.IsTimeout(errors.New("boom")) {
		t.Error("plain error should not be a timeout")
	}
}

func TestIsCancelled(t *testing.T) {
	if !repriseerrors.IsCancelled(repriseerrors.ErrCancelled) {
		t.Error("ErrCancelled sentinel should report cancelled")
	}
	wrapped := repriseerrors.Wrap(repriseerrors.ErrCancelled, "run stopped")
	if !repriseerrors.IsCancelled(wrapped) {
		t.Error("wrapped ErrCancelled should report cancelled")
	}
	if !repriseerrors.IsCancelled(context.Canceled) {
		t.Error("context.Canceled should report cancelled")
	}
	if repriseerrors.IsCancelled(context.DeadlineExceeded) {
		t.Error("deadline exceeded is a timeout, not a cancel")
	}
}

func TestIsValidation(t *testing.T) {
	ve := &repriseerrors.ValidationError{Field: "name", Message: "required"}
	if !repriseerrors.IsValidation(repriseerrors.Wrap(ve, "save")) {
		t.Error("wrapped ValidationError should report validation")
	}
	if repriseerrors.IsValidation(errors.New("boom")) {
		t.Error("plain error should not report validation")
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	if errors.Is(repriseerrors.ErrAlreadyRunning, repriseerrors.ErrNotRunning) {
		t.Error("busy and not-running sentinels must not alias")
	}
}
