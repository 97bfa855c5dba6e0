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
	"github.com/tombee/reprise/internal/config"
	"github.com/tombee/reprise/sdk"
)

// NewClient builds a daemon API client from the loaded configuration.
// The daemon listens on cfg.Listen; the API token rides along when set.
func NewClient(cfg *config.Config) *sdk.Client {
	opts := []sdk.Option{}
	if cfg.APIToken != "" {
		opts = append(opts, sdk.WithToken(cfg.APIToken))
	}
	return sdk.New("http://"+cfg.Listen, opts...)
}
