// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package builder

import (
	"context"
	"fmt"

	"github.com/ibuildlang/ibuild/internal/program"
)

// fakeFile is one source file in a fakeProgram: content stands in for the
// file's version, sig for its shape signature, and refs for the files it
// directly references.
type fakeFile struct {
	content string
	sig     string
	refs    []Path
}

// fakeProgram is a minimal program.Program + refgraph.SignatureSource
// used to exercise the builder core without a real compiler. Diagnostics
// are deterministic: one "error" diagnostic per file named in errs.
type fakeProgram struct {
	files         map[Path]fakeFile
	order         []Path
	bundled       bool
	disableRefs   bool // simulates module-resolution tracking disabled
	errs          map[Path]bool
	semanticCalls map[Path]int // records how many times SemanticDiagnostics was invoked, for cache-purity assertions
}

func newFakeProgram(bundled bool, files map[Path]fakeFile, order []Path) *fakeProgram {
	return &fakeProgram{
		files:         files,
		order:         order,
		bundled:       bundled,
		errs:          map[Path]bool{},
		semanticCalls: map[Path]int{},
	}
}

func (p *fakeProgram) CompilerOptions() program.CompilerOptions {
	return program.CompilerOptions{BundledOutput: p.bundled}
}
func (p *fakeProgram) CurrentDirectory() string { return "/src" }
func (p *fakeProgram) SourceFiles() []Path      { return append([]Path(nil), p.order...) }
func (p *fakeProgram) SourceFile(path Path) bool {
	_, ok := p.files[path]
	return ok
}
func (p *fakeProgram) OptionsDiagnostics(ctx context.Context) []program.Diagnostic { return nil }
func (p *fakeProgram) GlobalDiagnostics(ctx context.Context) []program.Diagnostic  { return nil }
func (p *fakeProgram) SyntacticDiagnostics(ctx context.Context, path Path) []program.Diagnostic {
	return nil
}

func (p *fakeProgram) SemanticDiagnostics(ctx context.Context, path Path) ([]program.Diagnostic, error) {
	if path == "" {
		var all []program.Diagnostic
		for _, f := range p.order {
			d, err := p.SemanticDiagnostics(ctx, f)
			if err != nil {
				return nil, err
			}
			all = append(all, d...)
		}
		return all, nil
	}
	p.semanticCalls[path]++
	if p.errs[path] {
		return []program.Diagnostic{{File: path, Message: fmt.Sprintf("error in %s", path)}}, nil
	}
	return nil, nil
}

func (p *fakeProgram) Emit(ctx context.Context, opts program.EmitOptions) (program.EmitResult, error) {
	if opts.TargetFile == "" {
		return program.EmitResult{EmittedFiles: []string{"bundle.out"}}, nil
	}
	return program.EmitResult{EmittedFiles: []string{string(opts.TargetFile) + ".out"}}, nil
}

// SignatureSource implementation.

func (p *fakeProgram) Version(ctx context.Context, path Path) (string, error) {
	return p.files[path].content, nil
}

func (p *fakeProgram) Signature(ctx context.Context, path Path) (string, error) {
	return p.files[path].sig, nil
}

func (p *fakeProgram) References(ctx context.Context, path Path) ([]Path, bool) {
	if p.disableRefs {
		return nil, false
	}
	return append([]Path(nil), p.files[path].refs...), true
}
