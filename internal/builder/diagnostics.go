// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package builder

import (
	"context"
	"sort"

	"github.com/ibuildlang/ibuild/internal/event"
	"github.com/ibuildlang/ibuild/internal/program"
)

// SemanticDiagnostics implements spec §4.3's read path for one file:
// return the cached value if present, otherwise query the program,
// cache, and return it.
//
// It panics (spec §7, programmer error) if path is the most recently
// yielded-but-uncommitted affected file: a direct, out-of-protocol query
// for that file would let a cached result outlive a cancellation of the
// very operation that produced it. The façade's own "next affected"
// operations (GetSemanticDiagnosticsOfNextAffected, drainAffected) are
// the sanctioned way to read that file's diagnostics as part of the
// yield/confirm cycle itself, and use [State.semanticDiagnosticsUnguarded]
// instead.
func (s *State) SemanticDiagnostics(ctx context.Context, path Path) ([]program.Diagnostic, error) {
	if s.isPendingYield(path) {
		panicInvariant("builder: SemanticDiagnostics called for %q, the currently yielded uncommitted affected file", path)
	}
	return s.semanticDiagnosticsUnguarded(ctx, path)
}

func (s *State) semanticDiagnosticsUnguarded(ctx context.Context, path Path) ([]program.Diagnostic, error) {
	if s.bundled || s.diagnosticsPerFile == nil {
		return s.prog.SemanticDiagnostics(ctx, path)
	}
	if cached, ok := s.diagnosticsPerFile[path]; ok {
		return cached, nil
	}
	diags, err := s.prog.SemanticDiagnostics(ctx, path)
	if err != nil {
		return nil, err
	}
	s.diagnosticsPerFile[path] = diags
	return diags, nil
}

// AllSemanticDiagnostics implements spec §4.4.
//
// drain selects which of the two builder variants is calling:
// diagnostics-only builders pass drain=true to exhaust the affected-file
// iterator first (confirming every batch via DoneWith) so the cache
// reflects the new program before concatenating it; emit+diagnostics
// builders pass drain=false and simply read every file, filling the
// cache on demand.
//
// In bundled-output mode the program's diagnostics are returned directly;
// the cache is never consulted (spec §4.4).
func (s *State) AllSemanticDiagnostics(ctx context.Context, drain bool) ([]program.Diagnostic, error) {
	if s.bundled {
		return s.prog.SemanticDiagnostics(ctx, "")
	}

	if drain {
		if err := s.drainAffected(ctx); err != nil {
			return nil, err
		}
	}

	files := append([]Path(nil), s.prog.SourceFiles()...)
	sort.Slice(files, func(i, j int) bool { return files[i] < files[j] })

	var all []program.Diagnostic
	for _, f := range files {
		diags, err := s.SemanticDiagnostics(ctx, f)
		if err != nil {
			return nil, err
		}
		all = append(all, diags...)
	}
	return all, nil
}

// drainAffected exhausts the iterator, matching spec §4.4's "exhaust the
// iterator ... to ensure the cache reflects the new program": for each
// yielded file it recomputes and caches that file's diagnostics, then
// calls DoneWith. A whole-program yield is confirmed without a read.
func (s *State) drainAffected(ctx context.Context) error {
	ctx, done := event.Start(ctx, "builder.drainAffected")
	defer done()
	for {
		affected, ok, err := s.NextAffected(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if f, isFile := affected.(FileAffected); isFile {
			// Force the recomputation the drain exists to guarantee,
			// rather than merely evicting and leaving it lazy: a
			// subsequent AllSemanticDiagnostics read must not re-run
			// the (already-drained) iterator to repopulate this file.
			if _, err := s.semanticDiagnosticsUnguarded(ctx, f.File); err != nil {
				return err
			}
		}
		s.DoneWith(affected)
	}
}
