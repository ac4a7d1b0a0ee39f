// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ibuildlang/ibuild/internal/builder"
	"github.com/ibuildlang/ibuild/internal/diagnosticsfmt"
)

var (
	reportConfig string
	reportOut    string
)

var reportCmd = &cobra.Command{
	Use:   "report [dir]",
	Short: "Render an HTML diagnostics report",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportConfig, "config", "", "path to an ibuild config file")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "write the report to this file instead of stdout")
}

func runReport(cmd *cobra.Command, args []string) error {
	countReport.Inc()
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	cfg, err := loadProjectConfig(reportConfig)
	if err != nil {
		return err
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
		return fmt.Errorf("report: %w", err)
	}

	html, err := diagnosticsfmt.HTML(dir, diags)
	if err != nil {
		return err
	}
	if reportOut == "" {
		fmt.Fprint(cmd.OutOrStdout(), html)
		return nil
	}
	return os.WriteFile(reportOut, []byte(html), 0o644)
}
