// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package goprogram

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"go/ast"
	"go/types"
	"sort"
	"strings"

	"github.com/ibuildlang/ibuild/internal/refgraph"
)

var _ refgraph.SignatureSource = (*Program)(nil)

// Version implements refgraph.SignatureSource: the content-identity
// token is simply the file's own content hash, computed once at
// construction (spec §3).
func (p *Program) Version(ctx context.Context, path Path) (string, error) {
	f, ok := p.files[path]
	if !ok {
		return "", nil
	}
	return f.version, nil
}

// Signature implements refgraph.SignatureSource's shape-signature
// computation (spec §3, §6): a hash of the file's externally observable
// package-level declarations, stable across changes that don't alter
// what other files in the package can see (renaming a local variable,
// editing a function body, reformatting).
//
// Computing this requires the package to be type-checked, so Signature
// forces the same checkPackage pass SemanticDiagnostics uses; the two
// queries share the cached *types.Package for a given build.
func (p *Program) Signature(ctx context.Context, path Path) (string, error) {
	f, ok := p.files[path]
	if !ok || f.astFile == nil {
		return "", nil
	}
	result := p.checkPackage(ctx, f.pkgDir)
	if result.pkg == nil {
		// The package didn't type-check well enough to produce a scope;
		// fall back to a syntactic signature so unrelated files aren't
		// starved of invalidation entirely.
		return syntacticSignature(f.astFile), nil
	}
	return shapeSignature(result.pkg, f.astFile), nil
}

// References implements refgraph.SignatureSource: goprogram tracks
// references at package granularity (spec §3's module-resolution
// tracking is a per-program policy, and this Program's policy is "every
// file in a package references every other file in that package",
// matching Go's real compilation unit), so References(path) is every
// other file sharing path's directory.
func (p *Program) References(ctx context.Context, path Path) ([]Path, bool) {
	f, ok := p.files[path]
	if !ok {
		return nil, true
	}
	var out []Path
	for _, other := range p.order {
		if other == path {
			continue
		}
		if p.files[other].pkgDir == f.pkgDir {
			out = append(out, other)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, true
}

// shapeSignature hashes the types.ObjectString of every package-level
// object declared in astFile, sorted by name; a method is looked up on
// its receiver type and hashed by its own signature. types.ObjectString
// already normalizes a declaration to its externally observable type
// (names, field types, function and method signatures) without reference
// to identifiers used only inside function bodies, so two syntactically
// different but semantically identical declarations hash the same.
func shapeSignature(pkg *types.Package, astFile *ast.File) string {
	var names []string
	for _, decl := range astFile.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					names = append(names, s.Name.Name)
				case *ast.ValueSpec:
					for _, n := range s.Names {
						names = append(names, n.Name)
					}
				}
			}
		case *ast.FuncDecl:
			if d.Recv == nil {
				names = append(names, d.Name.Name)
			} else {
				names = append(names, recvTypeName(d.Recv)+"."+d.Name.Name)
			}
		}
	}
	sort.Strings(names)

	h := sha256.New()
	scope := pkg.Scope()
	for _, name := range names {
		base := name
		if i := strings.IndexByte(name, '.'); i >= 0 {
			base = name[:i]
		}
		obj := scope.Lookup(base)
		if obj == nil {
			h.Write([]byte(name))
			h.Write([]byte{0})
			continue
		}
		if tn, ok := obj.(*types.TypeName); ok && base != name {
			// A type's ObjectString does not include its methods.
			if named, ok := tn.Type().(*types.Named); ok {
				for j := 0; j < named.NumMethods(); j++ {
					if m := named.Method(j); m.Name() == name[len(base)+1:] {
						obj = m
					}
				}
			}
		}
		h.Write([]byte(types.ObjectString(obj, types.RelativeTo(pkg))))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func recvTypeName(recv *ast.FieldList) string {
	if recv == nil || len(recv.List) == 0 {
		return ""
	}
	expr := recv.List[0].Type
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	if id, ok := expr.(*ast.Ident); ok {
		return id.Name
	}
	return ""
}

// syntacticSignature is the fallback used when a package fails to
// type-check well enough to produce usable object information: it
// hashes each declaration's kind (the GenDecl token, or "func:" plus the
// function name). Adding, removing or reordering declarations or
// renaming a function changes it; edits to a declaration's types,
// fields or parameters do not.
func syntacticSignature(astFile *ast.File) string {
	h := sha256.New()
	for _, decl := range astFile.Decls {
		h.Write([]byte(declKind(decl)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func declKind(decl ast.Decl) string {
	switch d := decl.(type) {
	case *ast.GenDecl:
		return d.Tok.String()
	case *ast.FuncDecl:
		return "func:" + d.Name.Name
	default:
		return "decl"
	}
}
