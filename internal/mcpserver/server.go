// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mcpserver exposes the diagnostics-only builder façade (spec
// §4.5) as MCP tools, so an editor or agent can drive the affected-file
// iterator one file at a time over the Model Context Protocol instead
// of shelling out to the CLI for every query.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/telemetry/counter"

	"github.com/ibuildlang/ibuild/internal/builder"
	"github.com/ibuildlang/ibuild/internal/event"
	"github.com/ibuildlang/ibuild/internal/program"
)

// Anonymous per-tool usage counters, incremented once per call.
var (
	countGetSemanticDiagnostics               = counter.New("ibuild/mcp-tool:get-semantic-diagnostics")
	countGetSemanticDiagnosticsOfNextAffected = counter.New("ibuild/mcp-tool:get-semantic-diagnostics-of-next-affected")
	countGetAllDependencies                   = counter.New("ibuild/mcp-tool:get-all-dependencies")
)

// Server wraps a DiagnosticsOnlyBuilder as an MCP server.
type Server struct {
	d      *builder.DiagnosticsOnlyBuilder
	server *mcp.Server
}

// New creates an ibuild MCP server fronting d.
func New(d *builder.DiagnosticsOnlyBuilder) *Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    "ibuild",
		Version: "0.1.0",
	}, nil)

	srv := &Server{d: d, server: s}
	srv.setupTools()
	return srv
}

// Run serves over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	event.Log(ctx, "mcpserver: starting stdio transport")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) setupTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get-semantic-diagnostics",
		Description: "Return cached semantic diagnostics for one file, or the whole program if path is empty",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct {
		Path string `json:"path,omitempty" jsonschema:"Source file path, or empty for the whole program"`
	}) (*mcp.CallToolResult, any, error) {
		return s.handleGetSemanticDiagnostics(ctx, args.Path)
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get-semantic-diagnostics-of-next-affected",
		Description: "Advance the affected-file iterator by one unit and return its diagnostics",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct {
		IgnorePaths []string `json:"ignorePaths,omitempty" jsonschema:"Files to commit without analysis"`
	}) (*mcp.CallToolResult, any, error) {
		return s.handleGetSemanticDiagnosticsOfNextAffected(ctx, args.IgnorePaths)
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get-all-dependencies",
		Description: "Return every file a given file directly or transitively references",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct {
		Path string `json:"path" jsonschema:"Source file path"`
	}) (*mcp.CallToolResult, any, error) {
		return s.handleGetAllDependencies(args.Path)
	})
}

func (s *Server) handleGetSemanticDiagnostics(ctx context.Context, path string) (*mcp.CallToolResult, any, error) {
	countGetSemanticDiagnostics.Inc()
	diags, err := s.d.GetSemanticDiagnostics(ctx, builder.Path(path))
	if err != nil {
		return nil, nil, fmt.Errorf("get-semantic-diagnostics: %w", err)
	}
	return textResult(formatDiagnostics(diags)), nil, nil
}

func (s *Server) handleGetSemanticDiagnosticsOfNextAffected(ctx context.Context, ignorePaths []string) (*mcp.CallToolResult, any, error) {
	countGetSemanticDiagnosticsOfNextAffected.Inc()
	ignore := map[builder.Path]bool{}
	for _, p := range ignorePaths {
		ignore[builder.Path(p)] = true
	}
	result, ok, err := s.d.GetSemanticDiagnosticsOfNextAffected(ctx, func(p builder.Path) bool { return ignore[p] })
	if err != nil {
		return nil, nil, fmt.Errorf("get-semantic-diagnostics-of-next-affected: %w", err)
	}
	if !ok {
		return textResult("iteration complete: no more affected files"), nil, nil
	}
	return textResult(fmt.Sprintf("%s\n%s", describeAffected(result.Affected), formatDiagnostics(result.Diagnostics))), nil, nil
}

func (s *Server) handleGetAllDependencies(path string) (*mcp.CallToolResult, any, error) {
	countGetAllDependencies.Inc()
	deps := s.d.GetAllDependencies(builder.Path(path))
	if len(deps) == 0 {
		return textResult("(no dependencies)"), nil, nil
	}
	out := ""
	for _, d := range deps {
		out += string(d) + "\n"
	}
	return textResult(out), nil, nil
}

func describeAffected(a builder.Affected) string {
	switch v := a.(type) {
	case builder.WholeProgramAffected:
		return "affected: whole program"
	case builder.FileAffected:
		return "affected: " + string(v.File)
	default:
		return "affected: unknown"
	}
}

func formatDiagnostics(diags []program.Diagnostic) string {
	if len(diags) == 0 {
		return "(no diagnostics)"
	}
	out := ""
	for _, d := range diags {
		out += fmt.Sprintf("%s:%d:%d: %s: %s\n", d.File, d.Line, d.Column, d.Severity, d.Message)
	}
	return out
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
