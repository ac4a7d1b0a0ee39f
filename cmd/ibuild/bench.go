// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ibuildlang/ibuild/internal/builder"
)

var (
	benchConfig string
	benchN      int
)

var benchCmd = &cobra.Command{
	Use:   "bench [dir]",
	Short: "Compare cold vs. warm-state build latency across independent builders",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().StringVar(&benchConfig, "config", "", "path to an ibuild config file")
	benchCmd.Flags().IntVar(&benchN, "n", 4, "number of independent builder instances to run concurrently")
}

// runBench runs N independent builders concurrently, each performing a
// cold build followed by a warm (no-op) rebuild against its own state,
// and reports the latency of each phase. The concurrency here is
// strictly across independent builder instances — never across one
// builder's internal state — preserving the core's single-threaded-
// cooperative non-goal (spec §1's Non-goals).
func runBench(cmd *cobra.Command, args []string) error {
	countBench.Inc()
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	cfg, err := loadProjectConfig(benchConfig)
	if err != nil {
		return err
	}

	type result struct {
		cold, warm time.Duration
	}
	results := make([]result, benchN)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	g, ctx := errgroup.WithContext(parent)
	for i := 0; i < benchN; i++ {
		i := i
		g.Go(func() error {
			prog, _, err := newProgram(ctx, dir, cfg)
			if err != nil {
				return err
			}

			start := time.Now()
			state, err := newBuilderState(ctx, prog)
			if err != nil {
				return err
			}
			d := builder.NewDiagnosticsOnlyBuilder(state, nil)
			if _, err := d.GetSemanticDiagnostics(ctx, ""); err != nil {
				return err
			}
			cold := time.Since(start)

			start = time.Now()
			state2, err := builder.NewState(ctx, prog, prog, state)
			if err != nil {
				return err
			}
			d2 := builder.NewDiagnosticsOnlyBuilder(state2, nil)
			if _, err := d2.GetSemanticDiagnostics(ctx, ""); err != nil {
				return err
			}
			warm := time.Since(start)

			results[i] = result{cold: cold, warm: warm}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("bench: %w", err)
	}

	for i, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "builder %d: cold=%s warm=%s\n", i, r.cold, r.warm)
	}
	return nil
}
