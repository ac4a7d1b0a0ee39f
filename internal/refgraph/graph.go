// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package refgraph implements the ReferenceGraph / FileInfo store
// described in spec §3 and §6: for every file in a program it records a
// content version, a shape signature, and the set of paths the file
// directly references, and it knows how to expand a single changed file
// into its full transitive "affected" set.
//
// This package is the BuilderState sub-layer the core spec treats as an
// external collaborator; it is deliberately independent of
// internal/builder so that the diff engine and iterator in that package
// depend only on the contract in internal/program.
package refgraph

import (
	"context"
	"sort"

	"github.com/ibuildlang/ibuild/internal/pathutil"
)

// Path re-exports pathutil.Path so callers need not import both packages
// for the common case of naming a file.
type Path = pathutil.Path

// FileInfo holds the per-file state retained across builds (spec §3).
// Signature is the empty string until the file has been analyzed at least
// once in this or an ancestor graph, matching the spec's invariant that a
// file's signature is defined only after such analysis.
type FileInfo struct {
	Version   string
	Signature string
}

// ReferencedSet is the set of paths a file directly references.
type ReferencedSet map[Path]struct{}

// ReferenceMap maps a file to the set of files it directly references. A
// nil ReferenceMap means module-resolution tracking is disabled for this
// program; per spec §3, any change then forces whole-program invalidation.
type ReferenceMap map[Path]ReferencedSet

// SignatureSource computes a file's content version and shape signature,
// and its direct references if reference tracking is enabled. It is the
// part of the BuilderState contract (spec §6, "create") implemented in
// terms of internal/program.Program.
type SignatureSource interface {
	// Version returns an opaque content-identity token for path.
	Version(ctx context.Context, path Path) (string, error)
	// Signature computes path's shape signature, i.e. a hash of its
	// externally observable declarations.
	Signature(ctx context.Context, path Path) (string, error)
	// References returns the set of paths path directly references, or
	// ok=false if reference tracking is disabled for this program.
	References(ctx context.Context, path Path) (refs []Path, ok bool)
}

// Graph is the FileInfo store plus optional reference map for one
// program snapshot.
type Graph struct {
	FileInfos map[Path]FileInfo
	// References is nil when module-resolution tracking is disabled.
	References ReferenceMap
}

// Build constructs a fresh Graph for every path in files, consulting src
// for each file's version and references. This is the "create" operation
// of the BuilderState contract (spec §6).
//
// Signature is deliberately NOT recomputed here: doing so would force a
// full re-analysis of every file on every build, defeating the point of
// the cache. Instead, Build seeds each file's signature from old (the
// previous build's graph) when present, and leaves it as the zero value
// otherwise. [Affected] is the only place a signature is ever
// recomputed, and it only visits a changed root and the referrers its
// shape change reaches — exactly the files spec §1 says must be
// redone.
func Build(ctx context.Context, src SignatureSource, files []Path, old *Graph) (*Graph, error) {
	g := &Graph{FileInfos: make(map[Path]FileInfo, len(files))}
	trackingDisabled := false
	for i, p := range files {
		version, err := src.Version(ctx, p)
		if err != nil {
			return nil, err
		}
		var sig string
		if old != nil {
			sig = old.FileInfos[p].Signature
		}
		g.FileInfos[p] = FileInfo{Version: version, Signature: sig}

		refs, ok := src.References(ctx, p)
		if !ok {
			trackingDisabled = true
			continue
		}
		if i == 0 {
			g.References = make(ReferenceMap, len(files))
		}
		if g.References != nil {
			set := make(ReferencedSet, len(refs))
			for _, r := range refs {
				set[r] = struct{}{}
			}
			g.References[p] = set
		}
	}
	if trackingDisabled {
		g.References = nil
	}
	return g, nil
}

// CanReuseOldState reports whether newGraph's reference-tracking mode
// matches old's, the structural precondition spec §4.1 step 2 requires
// before any diagnostics or signatures can be carried forward.
func CanReuseOldState(newGraph, old *Graph) bool {
	if old == nil {
		return false
	}
	return (newGraph.References == nil) == (old.References == nil)
}

// referencedSetsEqual implements spec §4.1's "equality of reference sets":
// identical cardinality and matching key membership; referenced values
// (there are none beyond membership) are irrelevant.
func referencedSetsEqual(a, b ReferencedSet) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// VersionOrReferencesChanged implements spec §4.1 step 7: it reports
// whether path must be marked changed in the new graph relative to old,
// either because its own version or reference set differs, or because one
// of its referenced targets no longer exists in newFiles.
func VersionOrReferencesChanged(old, new *Graph, path Path, newFiles map[Path]struct{}) bool {
	oldInfo, hadOld := old.FileInfos[path]
	newInfo := new.FileInfos[path]
	if !hadOld {
		return true
	}
	if oldInfo.Version != newInfo.Version {
		return true
	}
	oldRefs, oldHasRefs := old.References[path]
	newRefs, newHasRefs := new.References[path]
	if oldHasRefs != newHasRefs {
		return true
	}
	if oldHasRefs && !referencedSetsEqual(oldRefs, newRefs) {
		return true
	}
	for target := range newRefs {
		if _, stillExists := newFiles[target]; !stillExists {
			// A referenced target was deleted: the old cache must not
			// survive into a program where resolving target would fail.
			return true
		}
	}
	return false
}

// referrers returns, in deterministic order, every path in g that directly
// references target. Cyclic reference graphs (a ↔ b) are handled safely by
// callers via visited-marking (see Affected); referrers itself does not
// need to track cycles.
func (g *Graph) referrers(target Path) []Path {
	if g.References == nil {
		return nil
	}
	var out []Path
	for from, set := range g.References {
		if _, ok := set[target]; ok {
			out = append(out, from)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Affected computes the transitive affected set rooted at root (spec
// §6 "getFilesAffectedBy"): root itself, plus every file reachable by
// following referrer edges from any file whose recomputed signature
// differs from its previous one. Recomputed signatures are written into
// outSignatures, keyed by path, but are never written back into g — the
// caller (internal/builder) commits them only once the whole batch
// drains, preserving cancellation idempotence (spec §4.2).
//
// The traversal marks files visited as they are dequeued, so it
// terminates even on a graph containing reference cycles (spec §9).
func Affected(ctx context.Context, g *Graph, src SignatureSource, root Path, outSignatures map[Path]string) ([]Path, error) {
	queue := []Path{root}
	visited := make(map[Path]struct{})
	var order []Path

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := queue[0]
		queue = queue[1:]
		if _, seen := visited[path]; seen {
			continue
		}
		visited[path] = struct{}{}

		newSig, err := src.Signature(ctx, path)
		if err != nil {
			return nil, err
		}
		outSignatures[path] = newSig
		order = append(order, path)

		// root is always part of the affected set (it was the changed
		// file), but propagation past it — like propagation past any
		// other node — is gated on its shape signature actually having
		// changed (spec §8 scenario S2: "yields a, then b because a's
		// shape changed").
		oldSig := g.FileInfos[path].Signature
		if newSig != oldSig {
			for _, referrer := range g.referrers(path) {
				if _, seen := visited[referrer]; !seen {
					queue = append(queue, referrer)
				}
			}
		}
	}
	return order, nil
}

// AllDependencies implements the "getAllDependencies" operation of spec
// §6: the sorted set of paths file directly or transitively references.
func AllDependencies(g *Graph, file Path) []Path {
	if g.References == nil {
		return nil
	}
	visited := map[Path]struct{}{file: {}}
	var out []Path
	var walk func(Path)
	walk = func(p Path) {
		for ref := range g.References[p] {
			if _, seen := visited[ref]; seen {
				continue
			}
			visited[ref] = struct{}{}
			out = append(out, ref)
			walk(ref)
		}
	}
	walk(file)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
