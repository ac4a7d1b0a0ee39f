// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package goprogram is ibuild's one concrete compiler front end: a
// [program.Program] and [refgraph.SignatureSource] over a directory tree
// of Go source files, used by both ibuild's own CLI and its test suite.
//
// It deliberately type-checks with go/types rather than loading full
// module graphs via golang.org/x/tools/go/packages: ibuild drives
// incremental re-analysis itself (that is the whole point of
// internal/builder), so the front end only needs per-package syntax and
// type information, not build-system integration.
package goprogram

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"mvdan.cc/gofumpt/format"

	"github.com/ibuildlang/ibuild/internal/event"
	"github.com/ibuildlang/ibuild/internal/pathutil"
	"github.com/ibuildlang/ibuild/internal/program"
)

// Path is the builder core's canonical file identifier.
type Path = program.Path

// Options configures a [Program].
type Options struct {
	// BundledOutput, when true, collapses the whole program to a single
	// affected unit (spec §4.2 step 3) and makes Emit write one
	// concatenated bundle rather than per-file output.
	BundledOutput bool
	// CaseSensitive selects the host's file-name comparison policy.
	CaseSensitive bool
	// OutDir is where Emit writes output files by default, when the
	// caller supplies no WriteFile override.
	OutDir string
}

// file holds the per-file state computed once at Program construction:
// everything a Program needs is read from disk exactly once, so a
// Program is an immutable snapshot of the source tree at the moment it
// was built (spec §6, "Program ... represents one fully parsed and
// (lazily) type-checked compilation unit").
type file struct {
	abs      string
	raw      []byte
	version  string // sha256 of raw
	astFile  *ast.File
	parseErr scanner.ErrorList
	pkgDir   string // directory key used for package grouping
}

// Program implements program.Program and refgraph.SignatureSource over a
// directory of Go source files.
type Program struct {
	dir   string
	canon pathutil.Canonicalizer
	opts  Options
	fset  *token.FileSet

	order []Path
	files map[Path]*file

	mu       sync.Mutex
	checked  map[string]*checkResult // keyed by pkgDir, computed lazily
}

var _ program.Program = (*Program)(nil)

// New parses every file named by sourceFiles (paths relative to or
// inside dir) and returns a ready-to-use Program. Parsing happens eagerly
// because both Version and the AST it is derived from are needed
// immediately by refgraph.Build; type-checking is deferred until a
// diagnostic is actually requested (spec §6 "lazily").
func New(ctx context.Context, dir string, sourceFiles []string, canon pathutil.Canonicalizer, opts Options) (*Program, error) {
	ctx, done := event.Start(ctx, "goprogram.New", event.Of("dir", dir), event.Of("files", len(sourceFiles)))
	defer done()

	p := &Program{
		dir:     dir,
		canon:   canon,
		opts:    opts,
		fset:    token.NewFileSet(),
		files:   make(map[Path]*file, len(sourceFiles)),
		checked: make(map[string]*checkResult),
	}

	for _, raw := range sourceFiles {
		abs := raw
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(dir, raw)
		}
		path := canon(abs)

		content, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("goprogram: reading %s: %w", abs, err)
		}

		astFile, err := parser.ParseFile(p.fset, abs, content, parser.AllErrors|parser.ParseComments)
		var parseErr scanner.ErrorList
		if err != nil {
			if list, ok := err.(scanner.ErrorList); ok {
				parseErr = list
			} else {
				parseErr = scanner.ErrorList{&scanner.Error{Msg: err.Error()}}
			}
		}

		sum := sha256.Sum256(content)
		p.files[path] = &file{
			abs:      abs,
			raw:      content,
			version:  hex.EncodeToString(sum[:]),
			astFile:  astFile,
			parseErr: parseErr,
			pkgDir:   filepath.Dir(abs),
		}
		p.order = append(p.order, path)
		event.Log(ctx, "goprogram: parsed file", event.Of("path", path), event.Of("errors", len(parseErr)))
	}

	sort.Slice(p.order, func(i, j int) bool { return p.order[i] < p.order[j] })
	return p, nil
}

func (p *Program) CompilerOptions() program.CompilerOptions {
	return program.CompilerOptions{BundledOutput: p.opts.BundledOutput}
}

func (p *Program) CurrentDirectory() string { return p.dir }

func (p *Program) SourceFiles() []Path { return append([]Path(nil), p.order...) }

func (p *Program) SourceFile(path Path) bool {
	_, ok := p.files[path]
	return ok
}

// OptionsDiagnostics never reports anything: goprogram recognizes no
// compiler options of its own beyond BundledOutput, which cannot itself
// be invalid.
func (p *Program) OptionsDiagnostics(ctx context.Context) []program.Diagnostic { return nil }

// GlobalDiagnostics reports one diagnostic per source file that could
// not be read or parsed into a package at all (as opposed to a
// per-statement syntax error, which SyntacticDiagnostics reports).
func (p *Program) GlobalDiagnostics(ctx context.Context) []program.Diagnostic {
	var out []program.Diagnostic
	for _, path := range p.order {
		f := p.files[path]
		if f.astFile == nil {
			out = append(out, program.Diagnostic{
				File:     path,
				Severity: program.SeverityError,
				Message:  "file could not be parsed into a package",
			})
		}
	}
	return out
}

func (p *Program) SyntacticDiagnostics(ctx context.Context, path Path) []program.Diagnostic {
	if path == "" {
		var all []program.Diagnostic
		for _, f := range p.order {
			all = append(all, p.SyntacticDiagnostics(ctx, f)...)
		}
		return all
	}
	f, ok := p.files[path]
	if !ok {
		return nil
	}
	out := make([]program.Diagnostic, 0, len(f.parseErr))
	for _, e := range f.parseErr {
		out = append(out, program.Diagnostic{
			File:     path,
			Line:     e.Pos.Line,
			Column:   e.Pos.Column,
			Severity: program.SeverityError,
			Message:  e.Msg,
		})
	}
	return out
}

// defaultWriteFile is the Program's own writer, used by Emit when
// opts.WriteFile is nil: it creates path's directory and writes contents
// to path.
func (p *Program) defaultWriteFile(path string, contents []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, contents, 0o644)
}

// Emit implements program.Program's emit operation (spec §6): it
// gofumpt-formats the requested file(s) and writes them under
// Options.OutDir, or to opts.WriteFile if the caller (normally the
// builder façade, per spec §4.5's precedence rule) supplied one.
func (p *Program) Emit(ctx context.Context, opts program.EmitOptions) (program.EmitResult, error) {
	write := opts.WriteFile
	if write == nil {
		write = p.defaultWriteFile
	}

	if opts.TargetFile == "" {
		return p.emitAll(ctx, write)
	}
	return p.emitOne(ctx, opts.TargetFile, write)
}

func (p *Program) emitOne(ctx context.Context, path Path, write program.WriteFileFunc) (program.EmitResult, error) {
	f, ok := p.files[path]
	if !ok {
		return program.EmitResult{EmitSkipped: true}, nil
	}
	out, err := p.formattedSource(f)
	if err != nil {
		return program.EmitResult{}, err
	}
	target := p.outputPath(f.abs)
	if err := write(target, out); err != nil {
		return program.EmitResult{}, err
	}
	event.Log(ctx, "goprogram: emitted file", event.Of("path", path), event.Of("target", target))
	return program.EmitResult{EmittedFiles: []string{target}}, nil
}

func (p *Program) emitAll(ctx context.Context, write program.WriteFileFunc) (program.EmitResult, error) {
	if p.opts.BundledOutput {
		var buf bytes.Buffer
		for _, path := range p.order {
			out, err := p.formattedSource(p.files[path])
			if err != nil {
				return program.EmitResult{}, err
			}
			fmt.Fprintf(&buf, "// --- %s ---\n", path)
			buf.Write(out)
			buf.WriteByte('\n')
		}
		target := filepath.Join(p.opts.OutDir, "bundle.go")
		if err := write(target, buf.Bytes()); err != nil {
			return program.EmitResult{}, err
		}
		event.Log(ctx, "goprogram: emitted bundle", event.Of("target", target), event.Of("files", len(p.order)))
		return program.EmitResult{EmittedFiles: []string{target}}, nil
	}

	var merged program.EmitResult
	for _, path := range p.order {
		r, err := p.emitOne(ctx, path, write)
		if err != nil {
			return program.EmitResult{}, err
		}
		merged.Merge(r)
	}
	return merged, nil
}

func (p *Program) outputPath(abs string) string {
	rel, err := filepath.Rel(p.dir, abs)
	if err != nil {
		rel = filepath.Base(abs)
	}
	return filepath.Join(p.opts.OutDir, rel)
}

func (p *Program) formattedSource(f *file) ([]byte, error) {
	out, err := format.Source(f.raw, format.Options{})
	if err != nil {
		// Unparseable files are emitted verbatim; formatting is cosmetic,
		// not a precondition for emit.
		return f.raw, nil
	}
	return out, nil
}
