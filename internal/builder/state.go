// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package builder implements the incremental build driver core: given a
// freshly produced Program and (optionally) the State of the previous
// build, it determines the minimal set of files that need semantic
// re-analysis, exposes that set through a resumable iterator, and caches
// per-file semantic diagnostics across builds (spec §1-§4).
package builder

import (
	"github.com/ibuildlang/ibuild/internal/pathutil"
	"github.com/ibuildlang/ibuild/internal/program"
	"github.com/ibuildlang/ibuild/internal/refgraph"
)

// Path identifies a source file.
type Path = pathutil.Path

// orderedSet is a minimal insertion-ordered set of Paths. changedFilesSet
// (spec §3) must iterate deterministically; a bare map does not.
type orderedSet struct {
	order []Path
	has   map[Path]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{has: make(map[Path]struct{})}
}

func (s *orderedSet) add(p Path) {
	if _, ok := s.has[p]; ok {
		return
	}
	s.has[p] = struct{}{}
	s.order = append(s.order, p)
}

func (s *orderedSet) remove(p Path) {
	if _, ok := s.has[p]; !ok {
		return
	}
	delete(s.has, p)
	for i, q := range s.order {
		if q == p {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *orderedSet) contains(p Path) bool {
	_, ok := s.has[p]
	return ok
}

func (s *orderedSet) len() int { return len(s.order) }

// first returns the first path in insertion order, matching spec §4.2
// step 2's "any path from changedFilesSet ... deterministic, e.g.
// insertion order".
func (s *orderedSet) first() (Path, bool) {
	if len(s.order) == 0 {
		return "", false
	}
	return s.order[0], true
}

func (s *orderedSet) clear() {
	s.order = nil
	s.has = make(map[Path]struct{})
}

func (s *orderedSet) clone() *orderedSet {
	cp := newOrderedSet()
	cp.order = append([]Path(nil), s.order...)
	for k := range s.has {
		cp.has[k] = struct{}{}
	}
	return cp
}

// batch is the "coherent sub-object" spec §9 describes: the cursor,
// seen-set, and pending signatures for one changed-root's affected-file
// expansion. A nil *batch means no batch is in progress (spec §9's
// batch-active-vs-idle two-variant representation).
type batch struct {
	root              Path
	files             []Path
	index             int
	pendingSignatures map[Path]string
	seen              map[Path]struct{}
}

// State is BuilderProgramState (spec §3): the reference graph snapshot,
// the changed-files set, the iteration cursor over affected files, the
// pending signature updates, the seen-affected set, and the semantic
// diagnostics cache.
//
// A State is mutated exclusively through [State.NextAffected] /
// [State.DoneWith] and the façade operations in facade.go; there is no
// other way to change it (spec §3 "Lifecycle").
type State struct {
	graph           *refgraph.Graph
	changedFilesSet *orderedSet
	batch           *batch // nil when idle

	// diagnosticsPerFile is nil when the compiler is in bundled-output
	// mode, disabling per-file caching (spec §3 "Output-bundling mode").
	diagnosticsPerFile map[Path][]program.Diagnostic

	prog        program.Program
	sigSource   refgraph.SignatureSource
	bundled     bool
	hasRefGraph bool // whether reference-tracking is enabled for this program

	// pendingYield is the file most recently returned by NextAffected
	// that has not yet been confirmed via DoneWith. It is the precise
	// state the spec §4.3 precondition and the spec §4.5 emit(targetFile)
	// assertion check against.
	pendingYield      Path
	hasPendingYield   bool
}

// bundledOutput reports whether this state is in output-bundling mode.
func (s *State) bundledOutput() bool { return s.bundled }

// changedFiles exposes the current changed-root set for tests and for
// the whole-program collapse check; it must not be mutated by callers.
func (s *State) changedFiles() []Path {
	return append([]Path(nil), s.changedFilesSet.order...)
}

// isPendingYield reports whether path is the currently-yielded-but-
// uncommitted affected file, the condition spec §4.3 and §4.5 forbid
// querying/emitting around.
func (s *State) isPendingYield(path Path) bool {
	return s.hasPendingYield && s.pendingYield == path
}
