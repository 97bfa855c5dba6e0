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

// Package builtin registers the standard action set into a registry.
package builtin

import (
	"log/slog"

	"github.com/tombee/reprise/internal/action/ai"
	"github.com/tombee/reprise/internal/action/file"
	"github.com/tombee/reprise/internal/action/httpreq"
	"github.com/tombee/reprise/internal/action/judge"
	"github.com/tombee/reprise/internal/action/logging"
	"github.com/tombee/reprise/internal/action/subflow"
	"github.com/tombee/reprise/internal/action/transform"
	"github.com/tombee/reprise/internal/action/utility"
	"github.com/tombee/reprise/internal/config"
	"github.com/tombee/reprise/internal/secrets"
	"github.com/tombee/reprise/pkg/action"
)

// Deps carries everything the builtins need from the host process.
// Runner may be nil, in which case subworkflow is not registered;
// validation-only registries use that to keep the catalog complete
// without an execution path.
type Deps struct {
	Logger  *slog.Logger
	Secrets *secrets.Resolver
	AI      config.AIConfig
	Runner  subflow.NestedRunner
}

// Register wires the standard actions into reg.
func Register(reg *action.Registry, deps Deps) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reg.Register("log", logging.New(logger), logging.Metadata())
	reg.Register("file_write", &file.WriteAction{}, file.WriteMetadata())
	reg.Register("file_read", &file.ReadAction{}, file.ReadMetadata())
	reg.Register("sleep", &utility.SleepAction{}, utility.SleepMetadata())
	reg.Register("http_request", httpreq.New(), httpreq.Metadata())
	reg.Register("jq", transform.NewJQ(), transform.JQMetadata())

	reg.Register("judge_equals", &judge.EqualsAction{}, judge.EqualsMetadata())
	reg.Register("judge_contains", &judge.ContainsAction{}, judge.ContainsMetadata())
	reg.Register("judge_regex", &judge.RegexAction{}, judge.RegexMetadata())
	reg.Register("judge_numeric", &judge.NumericAction{}, judge.NumericMetadata())

	if deps.Secrets != nil {
		reg.Register("ai_generate", ai.New(deps.AI, deps.Secrets, logger), ai.Metadata())
	}
	if deps.Runner != nil {
		reg.Register("subworkflow", subflow.New(deps.Runner, logger), subflow.Metadata())
	}
}
