// Copyright 2025 Google LLC
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

// Package tools aggregates the MCP tool surface (C9): one subpackage per
// related group of tools, each exporting an Install function dispatched
// against the shared core collaborators in Env.
package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/replicatedhq/bundle-mcp/pkg/bundle"
	"github.com/replicatedhq/bundle-mcp/pkg/config"
	"github.com/replicatedhq/bundle-mcp/pkg/explorer"
	"github.com/replicatedhq/bundle-mcp/pkg/kctl"
	toolsbundle "github.com/replicatedhq/bundle-mcp/pkg/tools/bundle"
	toolsexplore "github.com/replicatedhq/bundle-mcp/pkg/tools/explore"
	toolskubectl "github.com/replicatedhq/bundle-mcp/pkg/tools/kubectl"
)

// Env bundles the core collaborators every tool subpackage dispatches to,
// mirroring the teacher's *config.Config-threading idiom generalized to
// more than one shared handle.
type Env struct {
	Config   *config.Config
	Manager  *bundle.Manager
	Executor *kctl.Executor
	Explorer *explorer.Explorer
}

type installer func(ctx context.Context, s *mcp.Server, env *Env) error

// Install registers all six tools from spec.md §6 on s.
func Install(ctx context.Context, s *mcp.Server, env *Env) error {
	installers := []installer{
		func(ctx context.Context, s *mcp.Server, env *Env) error {
			return toolsbundle.Install(ctx, s, env.Config, env.Manager)
		},
		func(ctx context.Context, s *mcp.Server, env *Env) error {
			return toolskubectl.Install(ctx, s, env.Executor, env.Config)
		},
		func(ctx context.Context, s *mcp.Server, env *Env) error {
			return toolsexplore.Install(ctx, s, env.Explorer, env.Config)
		},
	}

	for _, install := range installers {
		if err := install(ctx, s, env); err != nil {
			return err
		}
	}

	return nil
}
