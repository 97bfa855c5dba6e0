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

// Package actions implements the reprise actions command.
package actions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/reprise/internal/cli/format"
	"github.com/tombee/reprise/internal/commands/shared"
	"github.com/tombee/reprise/pkg/action"
)

// NewCommand creates the actions command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "actions [type]",
		Short: "Show the action catalog",
		Long: `Show the registered step types. With a type argument, render that
action's full parameter reference.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runActions,
	}
}

func runActions(cmd *cobra.Command, args []string) error {
	env, err := shared.LoadEnv()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		return showAction(cmd, env, args[0])
	}

	descriptors := env.Registry.Descriptors()

	if shared.GetJSON() {
		return shared.EmitJSON(map[string]any{"actions": descriptors})
	}

	byCategory := make(map[string][]*action.Metadata)
	for _, meta := range descriptors {
		byCategory[meta.Category] = append(byCategory[meta.Category], meta)
	}
	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	for _, cat := range categories {
		cmd.Println(shared.Header.Render(cat))
		rows := make([][]string, 0, len(byCategory[cat]))
		for _, meta := range byCategory[cat] {
			rows = append(rows, []string{meta.Type, meta.Title, meta.Description})
		}
		cmd.Print(format.Table([]string{"TYPE", "TITLE", "DESCRIPTION"}, rows, format.IsTTY()))
		cmd.Println()
	}
	return nil
}

// showAction renders one action's reference as markdown.
func showAction(cmd *cobra.Command, env *shared.Env, actionType string) error {
	meta, ok := env.Registry.LookupMetadata(actionType)
	if !ok {
		return fmt.Errorf("unknown action type %q", actionType)
	}

	if shared.GetJSON() {
		return shared.EmitJSON(meta)
	}

	rendered, err := format.Markdown(referenceMarkdown(meta), format.IsTTY())
	if err != nil {
		return err
	}
	cmd.Print(rendered)
	return nil
}

func referenceMarkdown(meta *action.Metadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n\n", meta.Type, meta.Description)

	if meta.Params != nil && len(meta.Params.Properties) > 0 {
		b.WriteString("## Parameters\n\n")
		names := make([]string, 0, len(meta.Params.Properties))
		for name := range meta.Params.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		required := make(map[string]bool, len(meta.Params.Required))
		for _, name := range meta.Params.Required {
			required[name] = true
		}

		for _, name := range names {
			prop := meta.Params.Properties[name]
			marker := ""
			if required[name] {
				marker = " (required)"
			}
			fmt.Fprintf(&b, "- `%s` %s%s: %s\n", name, prop.Type, marker, prop.Description)
		}
		b.WriteString("\n")
	}

	if meta.Output != nil && len(meta.Output.Properties) > 0 {
		b.WriteString("## Output\n\n")
		names := make([]string, 0, len(meta.Output.Properties))
		for name := range meta.Output.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "- `%s` %s: %s\n", name, meta.Output.Properties[name].Type, meta.Output.Properties[name].Description)
		}
	}
	return b.String()
}
