// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ibuildlang/ibuild/internal/builder"
	"github.com/ibuildlang/ibuild/internal/diagnosticsfmt"
	"github.com/ibuildlang/ibuild/internal/event"
)

var (
	watchConfig string
	watchDelay  time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Re-run build on file-system changes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchConfig, "config", "", "path to an ibuild config file")
	watchCmd.Flags().DurationVar(&watchDelay, "delay", 200*time.Millisecond, "debounce window after the last change before rebuilding")
}

// runWatch re-runs a build whenever fsnotify reports a change under
// dir, debounced by watchDelay so a burst of edits (e.g. a save-all)
// triggers one rebuild instead of one per file. The builder core itself
// stays unaware of watching (spec's persistence/concurrency non-goals);
// this loop just constructs a fresh Program and diffs it against the
// previous State on every trigger, exactly as a one-shot `build` would.
func runWatch(cmd *cobra.Command, args []string) error {
	countWatch.Inc()
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	cfg, err := loadProjectConfig(watchConfig)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var state *builder.State
	rebuild := func() error {
		prog, _, err := newProgram(ctx, dir, cfg)
		if err != nil {
			return err
		}
		state, err = builder.NewState(ctx, prog, prog, state)
		if err != nil {
			return err
		}
		d := builder.NewDiagnosticsOnlyBuilder(state, nil)
		diags, err := d.GetSemanticDiagnostics(ctx, "")
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), diagnosticsfmt.Text(diags))
		return nil
	}
	if err := rebuild(); err != nil {
		return err
	}

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			event.Log(ctx, "watch: fsnotify event", event.Of("name", ev.Name), event.Of("op", ev.Op.String()))
			timer.Reset(watchDelay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "watch: fsnotify error:", err)
		case <-timer.C:
			if err := rebuild(); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "watch: rebuild failed:", err)
			}
		}
	}
}
