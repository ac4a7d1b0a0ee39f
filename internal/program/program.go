// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package program declares the external-collaborator contract that
// internal/builder depends on (spec §6): the "Program" produced by a
// compiler front end, and the diagnostics/emit value types the builder
// façade passes through.
//
// This core never imports a concrete compiler; internal/goprogram
// supplies the one demo implementation used by ibuild's own CLI and
// tests.
package program

import (
	"context"

	"github.com/ibuildlang/ibuild/internal/pathutil"
)

// Path identifies a source file, canonicalized per the host's
// case-sensitivity policy.
type Path = pathutil.Path

// Severity classifies a Diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeveritySuggestion
	SeverityMessage
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeveritySuggestion:
		return "suggestion"
	default:
		return "message"
	}
}

// Diagnostic is a compiler diagnostic. Diagnostics are values, never
// failures (spec §7): the builder core caches and forwards them but never
// interprets their contents.
type Diagnostic struct {
	File     Path // empty for options/global diagnostics not tied to a file
	Line     int
	Column   int
	Severity Severity
	Message  string
	Code     string
}

// WriteFileFunc matches the program's writeFile override shape (spec
// §4.5 "writeFile precedence").
type WriteFileFunc func(path string, contents []byte) error

// EmitOptions controls a call to Program.Emit, mirroring spec §6's emit
// signature. TargetFile is empty to mean "whole program".
type EmitOptions struct {
	TargetFile           Path
	WriteFile            WriteFileFunc // per-call override; nil means "use host/program default"
	EmitOnlyDeclarations bool
	CustomTransformers   any
}

// EmitResult is returned by Program.Emit and by the façade's emit
// operations (spec §6).
type EmitResult struct {
	EmitSkipped  bool
	Diagnostics  []Diagnostic
	EmittedFiles []string
	SourceMaps   []string
}

// Merge folds other into r following spec §4.5's emit-without-targetFile
// merge rule: emitSkipped is a logical OR, diagnostics/emittedFiles/
// sourceMaps are concatenated.
func (r *EmitResult) Merge(other EmitResult) {
	r.EmitSkipped = r.EmitSkipped || other.EmitSkipped
	r.Diagnostics = append(r.Diagnostics, other.Diagnostics...)
	r.EmittedFiles = append(r.EmittedFiles, other.EmittedFiles...)
	r.SourceMaps = append(r.SourceMaps, other.SourceMaps...)
}

// CompilerOptions is an opaque bag of the options a concrete Program was
// configured with. The only option this core recognizes itself is
// BundledOutput (spec §6); everything else is a pass-through value the
// façade returns verbatim.
type CompilerOptions struct {
	BundledOutput bool
	Extra         map[string]any
}

// Program is the external compiler contract (spec §6). A Program
// represents one fully parsed and (lazily) type-checked compilation unit;
// internal/builder never mutates a Program, only queries it.
type Program interface {
	CompilerOptions() CompilerOptions
	CurrentDirectory() string

	// SourceFiles returns every source file path in the program, in a
	// stable order.
	SourceFiles() []Path
	// SourceFile reports whether path belongs to the program.
	SourceFile(path Path) (ok bool)

	OptionsDiagnostics(ctx context.Context) []Diagnostic
	GlobalDiagnostics(ctx context.Context) []Diagnostic
	// SyntacticDiagnostics returns diagnostics for path, or for every
	// source file if path is empty.
	SyntacticDiagnostics(ctx context.Context, path Path) []Diagnostic
	// SemanticDiagnostics returns diagnostics for path, or for every
	// source file if path is empty. This is the expensive, cacheable
	// operation the builder core exists to avoid repeating.
	SemanticDiagnostics(ctx context.Context, path Path) ([]Diagnostic, error)

	Emit(ctx context.Context, opts EmitOptions) (EmitResult, error)
}
