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

// Package secrets implements the reprise secrets command group.
package secrets

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/reprise/internal/cli/format"
	"github.com/tombee/reprise/internal/cli/prompt"
	"github.com/tombee/reprise/internal/commands/shared"
	"github.com/tombee/reprise/internal/secrets"
)

var (
	secretBackend string
	secretUnmask  bool
)

// NewCommand creates the secrets command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage API keys and other secrets",
		Long: `Manage secrets used by workflow actions.

Secrets resolve through a chain of backends, highest priority first:
  1. Environment variables (read-only)
  2. System keychain
  3. Files in the secrets directory (<key>.txt)
  4. Encrypted file (headless fallback)

Examples:
  reprise secrets set openai_api_key
  echo "sk-..." | reprise secrets set openai_api_key
  reprise secrets get openai_api_key
  reprise secrets list
  reprise secrets delete openai_api_key`,
	}

	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newGetCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newDeleteCommand())

	return cmd
}

func newSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret",
		Long: `Store a secret in the first writable backend, or a specific one
with --backend. The value comes from a hidden prompt, or from stdin
when piped.`,
		Args: cobra.ExactArgs(1),
		RunE: runSet,
	}

	cmd.Flags().StringVar(&secretBackend, "backend", "", "Target backend (keychain, dir, file)")

	return cmd
}

func newGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Show a secret (masked by default)",
		Args:  cobra.ExactArgs(1),
		RunE:  runGet,
	}

	cmd.Flags().BoolVar(&secretUnmask, "unmask", false, "Show the full value")

	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List secret keys and their backends",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a secret from its writable backend",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}
}

func runSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !secrets.ValidKey(key) {
		return fmt.Errorf("invalid secret key %q: use lowercase letters, digits and underscores", key)
	}

	env, err := shared.LoadEnv()
	if err != nil {
		return err
	}

	value, err := readSecretValue(key)
	if err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("refusing to store an empty value for %s", key)
	}

	if err := env.Secrets.Set(cmd.Context(), secretBackend, key, value); err != nil {
		return err
	}

	cmd.Println(shared.RenderOK("stored " + key))
	return nil
}

// readSecretValue takes the value from stdin when piped, otherwise from
// a hidden prompt.
func readSecretValue(key string) (string, error) {
	if !prompt.Interactive() {
		data, err := io.ReadAll(io.LimitReader(os.Stdin, 1024*1024))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}
	return prompt.Secret("Value for " + key + ":")
}

func runGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	env, err := shared.LoadEnv()
	if err != nil {
		return err
	}

	value, backend, err := env.Secrets.Source(cmd.Context(), key)
	if err != nil {
		return err
	}

	shown := value
	if !secretUnmask {
		shown = mask(value)
	}

	if shared.GetJSON() {
		return shared.EmitJSON(map[string]any{"key": key, "value": shown, "backend": backend})
	}
	cmd.Printf("%s = %s  %s\n", key, shown, shared.Muted.Render("("+backend+")"))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	env, err := shared.LoadEnv()
	if err != nil {
		return err
	}

	entries, err := env.Secrets.List(cmd.Context())
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		return shared.EmitJSON(map[string]any{"secrets": entries})
	}

	if len(entries) == 0 {
		cmd.Println("No secrets stored")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		mode := "writable"
		if entry.ReadOnly {
			mode = "read-only"
		}
		rows = append(rows, []string{entry.Key, entry.Backend, mode})
	}
	cmd.Print(format.Table([]string{"KEY", "BACKEND", "ACCESS"}, rows, format.IsTTY()))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	key := args[0]

	env, err := shared.LoadEnv()
	if err != nil {
		return err
	}

	if err := env.Secrets.Delete(cmd.Context(), key); err != nil {
		return err
	}
	cmd.Println(shared.RenderOK("deleted " + key))
	return nil
}

// mask keeps the last four characters visible.
func mask(value string) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
