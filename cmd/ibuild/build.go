// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibuildlang/ibuild/internal/builder"
	"github.com/ibuildlang/ibuild/internal/diagnosticsfmt"
)

var (
	buildBundled  bool
	buildConfig   string
	buildCaseFold bool
)

var buildCmd = &cobra.Command{
	Use:   "build [dir]",
	Short: "Run one incremental build of a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildBundled, "bundled", false, "collapse the build to a single whole-program unit")
	buildCmd.Flags().StringVar(&buildConfig, "config", "", "path to an ibuild config file")
	buildCmd.Flags().BoolVar(&buildCaseFold, "case-insensitive", false, "treat file paths as case-insensitive")
}

func runBuild(cmd *cobra.Command, args []string) error {
	countBuild.Inc()
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	cfg, err := loadProjectConfig(buildConfig)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("bundled") {
		cfg.BundledOutput = buildBundled
	}
	if cmd.Flags().Changed("case-insensitive") {
		cfg.CaseSensitive = !buildCaseFold
	}

	ctx := context.Background()
	prog, _, err := newProgram(ctx, dir, cfg)
	if err != nil {
		return err
	}
	state, err := newBuilderState(ctx, prog)
	if err != nil {
		return err
	}
	d := builder.NewDiagnosticsOnlyBuilder(state, nil)

	diags, err := d.GetSemanticDiagnostics(ctx, "")
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), diagnosticsfmt.Text(diags))
	fmt.Fprintf(cmd.OutOrStdout(), "%d source files analyzed\n", len(prog.SourceFiles()))
	return nil
}
