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

// Package prompt provides interactive terminal prompts for the CLI.
package prompt

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"golang.org/x/term"
)

// Interactive reports whether stdin is a terminal, so prompting makes
// sense at all.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Secret asks for a hidden value, for secret entry.
func Secret(message string) (string, error) {
	if !Interactive() {
		return "", fmt.Errorf("cannot prompt in non-interactive mode; pipe the value on stdin instead")
	}

	var value string
	err := survey.AskOne(&survey.Password{Message: message}, &value, survey.WithValidator(survey.Required))
	return value, err
}

// Confirm asks a yes/no question, defaulting to no.
func Confirm(message string) (bool, error) {
	if !Interactive() {
		return false, fmt.Errorf("cannot confirm in non-interactive mode; pass --yes to proceed")
	}

	var ok bool
	err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok)
	return ok, err
}

// Input asks for a free-form value with an optional default.
func Input(message, def string) (string, error) {
	if !Interactive() {
		return def, nil
	}

	var value string
	err := survey.AskOne(&survey.Input{Message: message, Default: def}, &value)
	return value, err
}
