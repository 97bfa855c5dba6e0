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

import "time"

// CallChainKey is the reserved context key holding the ordered list of
// workflow names on the current subworkflow invocation path. It is a
// list, not a set, so failure messages can reproduce the path.
const CallChainKey = "_call_chain"

// Subworkflow control parameters. They steer the nested invocation and
// are stripped before anything reaches the nested run's context.
const (
	ParamWorkflowName    = "workflow_name"
	ParamMaxDepth        = "max_depth"
	ParamContinueOnError = "continue_on_error"
)

// IsControlParam reports whether key is one of the subworkflow control
// parameters.
func IsControlParam(key string) bool {
	switch key {
	case ParamWorkflowName, ParamMaxDepth, ParamContinueOnError:
		return true
	}
	return false
}

// NewRunContext builds the built-in context entries for a fresh run.
// Date fields derive from now, which must already be in the configured
// timezone; base_dir is the root actions resolve relative paths against.
func NewRunContext(runID, workflowName string, now time.Time, baseDir string) map[string]any {
	return map[string]any{
		"run_id":      runID,
		"workflow":    workflowName,
		"now":         now.Format(time.RFC3339),
		"base_dir":    baseDir,
		"today":       now.Format("2006-01-02"),
		"yesterday":   now.AddDate(0, 0, -1).Format("2006-01-02"),
		"tomorrow":    now.AddDate(0, 0, 1).Format("2006-01-02"),
		"today_ymd":   now.Format("20060102"),
		"now_ymd_hms": now.Format("20060102_150405"),
	}
}

// InheritableKeys are the built-in entries a nested run inherits from
// its parent. The identity fields run_id and workflow are excluded; the
// child's executor assigns its own.
var InheritableKeys = []string{
	"now", "base_dir",
	"today", "yesterday", "tomorrow",
	"today_ymd", "now_ymd_hms",
}

// MergeSeed overlays a caller-provided context onto ctx, dropping the
// subworkflow control parameters. Seed entries win over the fresh
// built-ins, so a nested run observes its parent's clock values.
func MergeSeed(ctx, seed map[string]any) {
	for key, value := range seed {
		if IsControlParam(key) {
			continue
		}
		ctx[key] = value
	}
}

// ChainFrom returns the call chain recorded in ctx, or nil when the run
// is not nested. Both []string and decoded []any forms are accepted.
func ChainFrom(ctx map[string]any) []string {
	switch chain := ctx[CallChainKey].(type) {
	case []string:
		return chain
	case []any:
		names := make([]string, 0, len(chain))
		for _, entry := range chain {
			if name, ok := entry.(string); ok {
				names = append(names, name)
			}
		}
		return names
	}
	return nil
}
