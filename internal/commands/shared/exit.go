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

package shared

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/tombee/reprise/pkg/errors"
)

// Exit codes for the reprise CLI.
const (
	ExitSuccess         = 0
	ExitExecutionFailed = 1
	ExitInvalidWorkflow = 2
	ExitNotFound        = 3
	ExitAlreadyRunning  = 4
)

// ExitError is an error that carries a process exit code.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewExecutionError wraps a workflow execution failure.
func NewExecutionError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitExecutionFailed, Message: msg, Cause: cause}
}

// NewInvalidWorkflowError wraps an invalid definition failure.
func NewInvalidWorkflowError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidWorkflow, Message: msg, Cause: cause}
}

// ExitCodeFor maps domain errors onto CLI exit codes.
func ExitCodeFor(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case stderrors.As(err, &exitErr):
		return exitErr.Code
	case stderrors.Is(err, errors.ErrAlreadyRunning):
		return ExitAlreadyRunning
	case errors.IsNotFound(err), stderrors.Is(err, errors.ErrNotRunning):
		return ExitNotFound
	case errors.IsValidation(err):
		return ExitInvalidWorkflow
	default:
		return ExitExecutionFailed
	}
}

// HandleExitError prints the error, any attached suggestion, and exits
// with the mapped code. A nil error is a no-op.
func HandleExitError(err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "Error:", err.Error())

	var valErr *errors.ValidationError
	if stderrors.As(err, &valErr) && valErr.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", valErr.Suggestion)
	}

	os.Exit(ExitCodeFor(err))
}
