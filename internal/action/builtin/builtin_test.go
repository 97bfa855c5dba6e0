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

package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/reprise/internal/config"
	"github.com/tombee/reprise/internal/secrets"
	"github.com/tombee/reprise/pkg/action"
	"github.com/tombee/reprise/pkg/workflow"
)

type nopRunner struct{}

func (nopRunner) RunNested(_ context.Context, name string, _ map[string]any) (*workflow.RunLog, error) {
	return &workflow.RunLog{Workflow: name, Status: workflow.StatusSuccess}, nil
}

func TestRegister_FullSet(t *testing.T) {
	reg := action.NewRegistry()
	Register(reg, Deps{
		Secrets: secrets.NewResolver(nil, secrets.NewEnvBackend()),
		AI:      config.Default().AI,
		Runner:  nopRunner{},
	})

	for _, actionType := range []string{
		"log", "file_write", "file_read", "sleep", "http_request", "jq",
		"judge_equals", "judge_contains", "judge_regex", "judge_numeric",
		"ai_generate", "subworkflow",
	} {
		assert.True(t, reg.Has(actionType), actionType)
		meta, ok := reg.LookupMetadata(actionType)
		require.True(t, ok, actionType)
		assert.Equal(t, actionType, meta.Type)
		assert.NotEmpty(t, meta.Description, actionType)
	}
}

func TestRegister_WithoutRunnerOrSecrets(t *testing.T) {
	reg := action.NewRegistry()
	Register(reg, Deps{})

	assert.True(t, reg.Has("log"))
	assert.False(t, reg.Has("subworkflow"))
	assert.False(t, reg.Has("ai_generate"))
}

func TestRegisteredActionsExecute(t *testing.T) {
	reg := action.NewRegistry()
	Register(reg, Deps{})

	result, err := reg.Execute(context.Background(), "judge_equals", map[string]any{
		"target": "a", "value": "a",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "yes", result["result"])
}
