// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package builder

import (
	"context"

	"github.com/ibuildlang/ibuild/internal/event"
	"github.com/ibuildlang/ibuild/internal/program"
	"github.com/ibuildlang/ibuild/internal/refgraph"
)

// NewState is the state constructor / diff engine (spec §4.1). It builds
// a fresh reference graph for prog and, when old is non-nil, carries
// forward changed-file tracking and per-file diagnostics for every file
// proven unchanged.
//
// old is consulted only during this call; the returned State shares
// nothing mutable with it, and the caller should drop its reference to
// old immediately afterward (spec §3 "Lifecycle", §5 "Resource
// ownership") so the old graph and diagnostics cache can be collected.
func NewState(ctx context.Context, prog program.Program, src refgraph.SignatureSource, old *State) (*State, error) {
	ctx, done := event.Start(ctx, "builder.NewState")
	defer done()

	bundled := prog.CompilerOptions().BundledOutput
	files := prog.SourceFiles()

	var oldGraph *refgraph.Graph
	if old != nil {
		oldGraph = old.graph
	}
	graph, err := refgraph.Build(ctx, src, files, oldGraph)
	if err != nil {
		return nil, err
	}

	canReuse := old != nil && refgraph.CanReuseOldState(graph, old.graph)
	canCopyDiagnostics := canReuse && !bundled && !old.bundled &&
		old.diagnosticsPerFile != nil

	if canReuse {
		// spec §4.1 step 4: assert old state's iteration invariants —
		// "if currentChangedFilePath is absent then affectedFiles must
		// be absent and currentAffectedFilesSignatures must be empty".
		// batch bundles root/files/pendingSignatures into one optional
		// value (spec §9's batch-active-vs-idle representation), so a
		// nil batch already implies both of those; the only way to
		// violate the invariant is a pending yield surviving with no
		// batch behind it.
		if old.hasPendingYield && old.batch == nil {
			panicInvariant("builder: old state has a pending yield with no batch in progress")
		}
	}

	if canCopyDiagnostics {
		// spec §4.1 step 5: a changed file must never have cached
		// diagnostics.
		for p := range old.changedFilesSet.has {
			if _, cached := old.diagnosticsPerFile[p]; cached {
				panicInvariant("builder: changed file %q has a cached semantic diagnostic entry", p)
			}
		}
	}

	s := &State{
		graph:           graph,
		changedFilesSet: newOrderedSet(),
		prog:            prog,
		sigSource:       src,
		bundled:         bundled,
		hasRefGraph:     graph.References != nil,
	}
	if !bundled {
		s.diagnosticsPerFile = make(map[Path][]program.Diagnostic)
	}

	newFileSet := make(map[Path]struct{}, len(files))
	for _, p := range files {
		newFileSet[p] = struct{}{}
	}

	if canReuse {
		// spec §4.1 step 6: copy the old changed set forward verbatim.
		for _, p := range old.changedFilesSet.order {
			s.changedFilesSet.add(p)
		}
	}

	for _, p := range files {
		changed := !canReuse
		if !changed {
			_, existedBefore := old.graph.FileInfos[p]
			changed = !existedBefore || refgraph.VersionOrReferencesChanged(old.graph, graph, p, newFileSet)
		}
		if changed {
			s.changedFilesSet.add(p)
			continue
		}
		if canCopyDiagnostics {
			if diags, ok := old.diagnosticsPerFile[p]; ok {
				s.diagnosticsPerFile[p] = diags
			}
		}
	}

	event.Log(ctx, "builder: new state constructed",
		event.Of("files", len(files)),
		event.Of("changed", s.changedFilesSet.len()),
		event.Of("reusedOldState", canReuse),
		event.Of("copiedDiagnostics", canCopyDiagnostics))

	return s, nil
}
