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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/replicatedhq/bundle-mcp/pkg/bundle"
	"github.com/replicatedhq/bundle-mcp/pkg/config"
	"github.com/replicatedhq/bundle-mcp/pkg/explorer"
	"github.com/replicatedhq/bundle-mcp/pkg/kctl"
	"github.com/replicatedhq/bundle-mcp/pkg/servetool"
	"github.com/replicatedhq/bundle-mcp/pkg/tools"
)

var (
	version = "(unknown)"

	// command flags
	serverMode string
	serverPort int

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "bundle-mcp",
		Short: "An MCP Server for interactive Kubernetes support-bundle analysis",
		Run:   runRootCmd,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	if bi, ok := debug.ReadBuildInfo(); ok {
		version = bi.Main.Version
	} else {
		log.Printf("Failed to read build info to get version.")
	}

	rootCmd.Flags().StringVar(&serverMode, "server-mode", "stdio", "transport to use for the server: stdio (default) or http")
	rootCmd.Flags().IntVar(&serverPort, "server-port", 8080, "server port to use when server-mode is http; defaults to 8080")
}

type startOptions struct {
	serverMode string
	serverPort int
}

func runRootCmd(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := startOptions{
		serverMode: serverMode,
		serverPort: serverPort,
	}
	startMCPServer(ctx, opts)
}

func startMCPServer(ctx context.Context, opts startOptions) {
	c := config.New()
	if _, err := c.EnsureBundleStorageDir(); err != nil {
		log.Fatalf("Failed to prepare bundle storage directory: %v\n", err)
	}

	manager := bundle.NewManager(ctx, c, func() bundle.Supervisor {
		return servetool.New(c.ServeToolBin, c.CleanupOrphaned)
	})

	executor := kctl.New(c.KctlBin, manager.GetKubeconfigPath, c.InitializationTimeout)
	exp := explorer.New(manager.GetRoot, 0, 0)

	s := mcp.NewServer(
		&mcp.Implementation{
			Name:    "Support Bundle MCP Server",
			Version: version,
		},
		&mcp.ServerOptions{
			HasTools: true,
		},
	)

	env := &tools.Env{
		Config:   c,
		Manager:  manager,
		Executor: executor,
		Explorer: exp,
	}

	if err := tools.Install(ctx, s, env); err != nil {
		log.Fatalf("Failed to install tools: %v\n", err)
	}

	log.Printf("Starting Support Bundle MCP Server (%s) in mode '%s'", version, opts.serverMode)
	var err error
	endpoint := fmt.Sprintf(":%d", opts.serverPort)

	switch opts.serverMode {
	case "stdio":
		tr := &mcp.LoggingTransport{Transport: &mcp.StdioTransport{}, Writer: log.Writer()}
		err = s.Run(ctx, tr)
	case "http":
		handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
			return s
		}, nil)
		log.Printf("Listening for HTTP connections on port: %d", opts.serverPort)
		err = http.ListenAndServe(endpoint, handler)
	default:
		log.Printf("Unknown mode '%s', defaulting to 'stdio'", opts.serverMode)
		tr := &mcp.LoggingTransport{Transport: &mcp.StdioTransport{}, Writer: log.Writer()}
		err = s.Run(ctx, tr)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Printf("Server shutting down.")
		} else {
			log.Printf("Server error: %v\n", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during bundle cleanup: %v\n", err)
	}
}
