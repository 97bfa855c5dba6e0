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

// Package shared holds flag state, exit codes and the local engine
// assembly used by every reprise subcommand.
package shared

// Global flag values, bound by the root command.
var (
	verboseFlag bool
	quietFlag   bool
	jsonFlag    bool
	configFlag  string

	// Build-time version information, injected via ldflags.
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// RegisterFlagPointers returns pointers to the global flag variables so
// the root command can bind them.
func RegisterFlagPointers() (verbose, quiet, json *bool, config *string) {
	return &verboseFlag, &quietFlag, &jsonFlag, &configFlag
}

// SetVersion records build-time version information (called from main).
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
}

// GetVersion returns version, commit and build date.
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// GetVerbose returns the --verbose flag value.
func GetVerbose() bool {
	return verboseFlag
}

// GetQuiet returns the --quiet flag value.
func GetQuiet() bool {
	return quietFlag
}

// GetJSON returns the --json flag value.
func GetJSON() bool {
	return jsonFlag
}

// GetConfigPath returns the --config flag value.
func GetConfigPath() string {
	return configFlag
}

// SetConfigPathForTest sets the config path for testing purposes.
func SetConfigPathForTest(path string) {
	configFlag = path
}
