// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ibuildlang/ibuild/internal/builder"
	"github.com/ibuildlang/ibuild/internal/mcpserver"
)

var mcpConfig string

var mcpCmd = &cobra.Command{
	Use:   "mcp [dir]",
	Short: "Run an MCP server exposing the diagnostics-only builder as tools over stdio",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpConfig, "config", "", "path to an ibuild config file")
}

// runMCP wires a diagnostics-only builder for dir into an MCP server and
// runs it over stdio until the client disconnects or ctx is canceled. A
// fresh builder is constructed once at startup; restarting the process
// picks up any source changes (watch-mode rebuilding is cmd/ibuild's
// own orchestration, not something the MCP front end models itself).
func runMCP(cmd *cobra.Command, args []string) error {
	countMCP.Inc()
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadProjectConfig(mcpConfig)
	if err != nil {
		return err
	}
	prog, _, err := newProgram(ctx, dir, cfg)
	if err != nil {
		return err
	}
	state, err := newBuilderState(ctx, prog)
	if err != nil {
		return err
	}
	d := builder.NewDiagnosticsOnlyBuilder(state, nil)
	return mcpserver.New(d).Run(ctx)
}
