// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package builder

import (
	"context"

	"github.com/ibuildlang/ibuild/internal/program"
	"github.com/ibuildlang/ibuild/internal/refgraph"
)

// base holds the façade operations common to both builder variants
// (spec §4.5): pass-through queries to the underlying Program, plus
// get-all-dependencies delegated to the BuilderState sub-layer. Per
// spec §9 ("Variant-specific methods on façade"), the two public
// variants are modeled as two distinct types sharing this base rather
// than as subtypes of one interface — the choice has no external
// impact, and this one keeps each variant's method set exactly the
// operations spec §4.5 grants it.
type base struct {
	state *State
}

func (b base) CompilerOptions() program.CompilerOptions { return b.state.prog.CompilerOptions() }

func (b base) SourceFile(path Path) bool { return b.state.prog.SourceFile(path) }

func (b base) SourceFiles() []Path { return b.state.prog.SourceFiles() }

func (b base) OptionsDiagnostics(ctx context.Context) []program.Diagnostic {
	return b.state.prog.OptionsDiagnostics(ctx)
}

func (b base) GlobalDiagnostics(ctx context.Context) []program.Diagnostic {
	return b.state.prog.GlobalDiagnostics(ctx)
}

func (b base) SyntacticDiagnostics(ctx context.Context, path Path) []program.Diagnostic {
	return b.state.prog.SyntacticDiagnostics(ctx, path)
}

// GetSemanticDiagnostics implements spec §4.3/§4.4: diagnostics for one
// file, or for the whole program when path is empty. For the whole
// program it drains the affected-file iterator first, the diagnostics-only
// behavior; EmitAndDiagnosticsBuilder overrides it.
func (b base) GetSemanticDiagnostics(ctx context.Context, path Path) ([]program.Diagnostic, error) {
	if path == "" {
		return b.state.AllSemanticDiagnostics(ctx, true)
	}
	return b.state.SemanticDiagnostics(ctx, path)
}

// GetAllDependencies delegates to the BuilderState sub-layer (spec §6).
func (b base) GetAllDependencies(file Path) []Path {
	return refgraph.AllDependencies(b.state.graph, file)
}

// checkEmitTargetFile implements spec §4.5's emit(targetFile) assertion:
// the caller is assumed to be processing targetFile outside the
// iterator, so targetFile must not be the currently-yielded-but-
// uncommitted affected file.
func (b base) checkEmitTargetFile(targetFile Path) {
	if targetFile != "" && b.state.isPendingYield(targetFile) {
		panicInvariant("builder: emit called for %q, the currently yielded uncommitted affected file", targetFile)
	}
}

// writeFileFor implements spec §4.5's "writeFile precedence": per-call
// override > host-provided writer > program's default (expressed here
// as "leave Program.Emit's own default alone when both override and
// host writer are nil").
func writeFileFor(override, host program.WriteFileFunc) program.WriteFileFunc {
	if override != nil {
		return override
	}
	return host // may be nil, meaning "use the program's own default"
}

// DiagnosticsOnlyBuilder is the diagnostics-only façade variant (spec
// §4.5). It never drives Program.Emit through the affected-file
// iterator; its Emit delegates straight to the program.
type DiagnosticsOnlyBuilder struct {
	base
	hostWriteFile program.WriteFileFunc
}

// NewDiagnosticsOnlyBuilder wraps state in the diagnostics-only façade.
func NewDiagnosticsOnlyBuilder(state *State, hostWriteFile program.WriteFileFunc) *DiagnosticsOnlyBuilder {
	return &DiagnosticsOnlyBuilder{base: base{state: state}, hostWriteFile: hostWriteFile}
}

// AffectedFileDiagnostics pairs a diagnostics result with a description
// of which affected unit it came from, returned by
// GetSemanticDiagnosticsOfNextAffected.
type AffectedFileDiagnostics struct {
	Affected    Affected
	Diagnostics []program.Diagnostic
}

// GetSemanticDiagnosticsOfNextAffected implements spec §4.5's
// diagnostics-only-variant operation: it advances the iterator by
// exactly one affected unit, returning that unit's diagnostics, or
// ok=false once iteration is complete.
//
// Files for which ignorePredicate returns true are committed without
// being analyzed (their diagnostics are never computed or cached) and
// the iterator continues to the next affected unit (spec §8 scenario
// S6).
func (d *DiagnosticsOnlyBuilder) GetSemanticDiagnosticsOfNextAffected(ctx context.Context, ignorePredicate func(Path) bool) (AffectedFileDiagnostics, bool, error) {
	for {
		affected, ok, err := d.state.NextAffected(ctx)
		if err != nil {
			return AffectedFileDiagnostics{}, false, err
		}
		if !ok {
			return AffectedFileDiagnostics{}, false, nil
		}
		if f, isFile := affected.(FileAffected); isFile && ignorePredicate != nil && ignorePredicate(f.File) {
			d.state.DoneWith(affected)
			continue
		}
		diags, err := d.diagnosticsFor(ctx, affected)
		if err != nil {
			return AffectedFileDiagnostics{}, false, err
		}
		d.state.DoneWith(affected)
		return AffectedFileDiagnostics{Affected: affected, Diagnostics: diags}, true, nil
	}
}

func (d *DiagnosticsOnlyBuilder) diagnosticsFor(ctx context.Context, affected Affected) ([]program.Diagnostic, error) {
	switch v := affected.(type) {
	case WholeProgramAffected:
		return d.state.prog.SemanticDiagnostics(ctx, "")
	case FileAffected:
		return d.state.semanticDiagnosticsUnguarded(ctx, v.File)
	default:
		panicInvariant("builder: unknown Affected variant %T", affected)
		return nil, nil
	}
}

// Emit implements spec §4.5's emit for the diagnostics-only variant. A
// diagnostics-only builder still exposes emit (the teacher's own
// checker/program pair always can emit; what makes a builder
// "diagnostics-only" is that it does not drive emission through the
// affected-file iterator).
func (d *DiagnosticsOnlyBuilder) Emit(ctx context.Context, opts program.EmitOptions) (program.EmitResult, error) {
	d.checkEmitTargetFile(opts.TargetFile)
	opts.WriteFile = writeFileFor(opts.WriteFile, d.hostWriteFile)
	return d.state.prog.Emit(ctx, opts)
}

// EmitAndDiagnosticsBuilder is the emit+diagnostics façade variant
// (spec §4.5).
type EmitAndDiagnosticsBuilder struct {
	base
	hostWriteFile program.WriteFileFunc
}

// NewEmitAndDiagnosticsBuilder wraps state in the emit+diagnostics
// façade.
func NewEmitAndDiagnosticsBuilder(state *State, hostWriteFile program.WriteFileFunc) *EmitAndDiagnosticsBuilder {
	return &EmitAndDiagnosticsBuilder{base: base{state: state}, hostWriteFile: hostWriteFile}
}

// CurrentDirectory is pass-through (spec §4.5).
func (e *EmitAndDiagnosticsBuilder) CurrentDirectory() string { return e.state.prog.CurrentDirectory() }

// GetSemanticDiagnostics overrides base's: an emit+diagnostics builder
// never force-drains the iterator first (spec §4.4 "no forced drain").
func (e *EmitAndDiagnosticsBuilder) GetSemanticDiagnostics(ctx context.Context, path Path) ([]program.Diagnostic, error) {
	if path == "" {
		return e.state.AllSemanticDiagnostics(ctx, false)
	}
	return e.state.SemanticDiagnostics(ctx, path)
}

// EmitNextAffected implements spec §4.5: advances the iterator by one
// affected unit and emits it.
func (e *EmitAndDiagnosticsBuilder) EmitNextAffected(ctx context.Context, opts program.EmitOptions) (program.EmitResult, Affected, bool, error) {
	affected, ok, err := e.state.NextAffected(ctx)
	if err != nil {
		return program.EmitResult{}, nil, false, err
	}
	if !ok {
		return program.EmitResult{}, nil, false, nil
	}
	perCall := opts
	perCall.WriteFile = writeFileFor(opts.WriteFile, e.hostWriteFile)
	switch v := affected.(type) {
	case WholeProgramAffected:
		perCall.TargetFile = ""
	case FileAffected:
		perCall.TargetFile = v.File
	}
	result, err := e.state.prog.Emit(ctx, perCall)
	if err != nil {
		return program.EmitResult{}, nil, false, err
	}
	e.state.DoneWith(affected)
	return result, affected, true, nil
}

// Emit implements spec §4.5. With no TargetFile it iterates
// EmitNextAffected to completion, merging results (logical-OR on
// emitSkipped, concatenation of diagnostics/files/source maps). With a
// TargetFile it assumes the caller is processing that file outside the
// iterator and delegates straight to the program, after asserting the
// file is not the currently-yielded-but-uncommitted one.
func (e *EmitAndDiagnosticsBuilder) Emit(ctx context.Context, opts program.EmitOptions) (program.EmitResult, error) {
	if opts.TargetFile != "" {
		e.checkEmitTargetFile(opts.TargetFile)
		opts.WriteFile = writeFileFor(opts.WriteFile, e.hostWriteFile)
		return e.state.prog.Emit(ctx, opts)
	}

	var merged program.EmitResult
	for {
		result, _, ok, err := e.EmitNextAffected(ctx, opts)
		if err != nil {
			return program.EmitResult{}, err
		}
		if !ok {
			return merged, nil
		}
		merged.Merge(result)
	}
}
