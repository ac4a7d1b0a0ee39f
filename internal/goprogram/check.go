// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package goprogram

import (
	"context"
	"go/ast"
	"go/importer"
	"go/types"
	"sort"

	"github.com/ibuildlang/ibuild/internal/event"
	"github.com/ibuildlang/ibuild/internal/program"
)

// checkResult is the cached outcome of type-checking one package
// directory: the compile errors produced, attributed back to the
// originating file by position.
type checkResult struct {
	pkg  *types.Package
	errs []types.Error
}

// checkPackage type-checks every file sharing pkgDir, caching the result
// on the Program so repeated SemanticDiagnostics queries for files in
// the same package don't re-run the type checker (spec §1's whole
// reason for existing: semantic analysis is the expensive step).
func (p *Program) checkPackage(ctx context.Context, pkgDir string) *checkResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.checked[pkgDir]; ok {
		return r
	}

	ctx, done := event.Start(ctx, "goprogram.checkPackage", event.Of("dir", pkgDir))
	defer done()

	var astFiles []*ast.File
	for _, path := range p.order {
		f := p.files[path]
		if f.pkgDir == pkgDir && f.astFile != nil {
			astFiles = append(astFiles, f.astFile)
		}
	}

	var errs []types.Error
	cfg := &types.Config{
		Importer: importer.Default(),
		Error: func(err error) {
			if te, ok := err.(types.Error); ok {
				errs = append(errs, te)
			}
		},
	}
	pkgName := "main"
	if len(astFiles) > 0 {
		pkgName = astFiles[0].Name.Name
	}
	pkg, _ := cfg.Check(pkgName+"@"+pkgDir, p.fset, astFiles, nil)

	r := &checkResult{pkg: pkg, errs: errs}
	p.checked[pkgDir] = r
	event.Log(ctx, "goprogram: type-checked package", event.Of("dir", pkgDir), event.Of("errors", len(errs)))
	return r
}

// SemanticDiagnostics implements program.Program's expensive, cacheable
// query (spec §6): type-check the requested file's package and return
// the errors attributed to that file.
func (p *Program) SemanticDiagnostics(ctx context.Context, path Path) ([]program.Diagnostic, error) {
	if path == "" {
		var all []program.Diagnostic
		for _, f := range p.order {
			diags, err := p.SemanticDiagnostics(ctx, f)
			if err != nil {
				return nil, err
			}
			all = append(all, diags...)
		}
		return all, nil
	}

	f, ok := p.files[path]
	if !ok || f.astFile == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := p.checkPackage(ctx, f.pkgDir)

	out := make([]program.Diagnostic, 0)
	for _, e := range result.errs {
		posn := p.fset.Position(e.Pos)
		if posn.Filename != f.abs {
			continue
		}
		out = append(out, program.Diagnostic{
			File:     path,
			Line:     posn.Line,
			Column:   posn.Column,
			Severity: program.SeverityError,
			Message:  e.Msg,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Column < out[j].Column
	})
	return out, nil
}
