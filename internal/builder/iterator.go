// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package builder

import (
	"context"

	"github.com/ibuildlang/ibuild/internal/event"
	"github.com/ibuildlang/ibuild/internal/refgraph"
)

// Affected is the tagged yield of [State.NextAffected]: either a specific
// file, or the WholeProgram sentinel meaning the compiler's bundled-output
// configuration requires treating the entire program as one affected
// unit (spec §9 "Tagged yield" — a genuine sum type, not an untyped
// union).
type Affected interface {
	isAffected()
}

// FileAffected is the "a specific source file needs re-analysis" variant.
type FileAffected struct{ File Path }

func (FileAffected) isAffected() {}

// WholeProgramAffected is the "bundled output forces whole-program
// reprocessing" variant (spec §4.2 step 3, §9).
type WholeProgramAffected struct{}

func (WholeProgramAffected) isAffected() {}

// NextAffected implements the affected-file iterator's "next-affected"
// operation (spec §4.2). It returns the next file or WholeProgram
// sentinel requiring work, or ok=false when iteration is complete.
//
// The returned value must be confirmed with [State.DoneWith] before the
// next call to NextAffected will advance past it: until confirmed, the
// same value is returned again, which is what makes the operation safe
// to retry after a cancelled diagnostics query or emit (spec's central
// two-phase-commit invariant, §4.2, §5).
//
// A non-nil error means computing root's affected set failed (in
// practice, only ctx.Err() from a cancellation mid-expansion) and no
// state was changed beyond what had already been committed by a prior
// drained batch: root remains in changedFilesSet, untouched, so a
// subsequent call retries the same expansion from scratch (spec §5's
// "no state change beyond the yielded-file cache eviction").
func (s *State) NextAffected(ctx context.Context) (Affected, bool, error) {
	for {
		if s.batch != nil {
			// Advance past any path already confirmed seen, per spec
			// §4.2 step 1.
			for s.batch.index < len(s.batch.files) {
				p := s.batch.files[s.batch.index]
				if _, seen := s.batch.seen[p]; !seen {
					break
				}
				s.batch.index++
			}
			if s.batch.index < len(s.batch.files) {
				p := s.batch.files[s.batch.index]
				// Evict stale cache eagerly, at yield time, so no
				// partially completed operation can observe a stale
				// diagnostic for p (spec §4.2 "Two-phase commit
				// rationale").
				if s.diagnosticsPerFile != nil {
					delete(s.diagnosticsPerFile, p)
				}
				s.pendingYield = p
				s.hasPendingYield = true
				return FileAffected{File: p}, true, nil
			}
			// Batch exhausted (spec §4.2 step 1, else-branch): commit.
			s.changedFilesSet.remove(s.batch.root)
			for p, sig := range s.batch.pendingSignatures {
				info := s.graph.FileInfos[p]
				info.Signature = sig
				s.graph.FileInfos[p] = info
			}
			event.Log(ctx, "builder: batch drained",
				event.Of("root", s.batch.root),
				event.Of("files", len(s.batch.files)))
			s.batch = nil
			continue
		}

		// spec §4.2 step 2: take any path from changedFilesSet.
		root, ok := s.changedFilesSet.first()
		if !ok {
			return nil, false, nil
		}

		if s.bundled {
			// spec §4.2 step 3: bundled-output mode collapses to the
			// whole-program sentinel without starting a batch.
			return WholeProgramAffected{}, true, nil
		}

		// spec §4.2 step 4: expand root's transitive affected set.
		pending := make(map[Path]string)
		files, err := refgraph.Affected(ctx, s.graph, s.sigSource, root, pending)
		if err != nil {
			// root is left in changedFilesSet exactly as it was: no
			// batch was started, no signature was committed, and no
			// other changed root is touched. The caller sees the
			// failure and may retry.
			event.Log(ctx, "builder: computeAffected failed",
				event.Of("root", root), event.Of("err", err))
			return nil, false, err
		}

		s.batch = &batch{
			root:              root,
			files:             files,
			index:             0,
			pendingSignatures: pending,
			seen:              make(map[Path]struct{}),
		}
		if s.diagnosticsPerFile != nil {
			delete(s.diagnosticsPerFile, root)
		}
		// Loop back to step 1 with the freshly started batch.
	}
}

// DoneWith confirms that the caller has finished processing affected,
// the two-phase commit's second phase (spec §4.2 "done-with").
func (s *State) DoneWith(affected Affected) {
	s.hasPendingYield = false
	switch v := affected.(type) {
	case WholeProgramAffected:
		s.changedFilesSet.clear()
	case FileAffected:
		if s.batch == nil {
			panicInvariant("builder: DoneWith called for %q with no batch in progress", v.File)
		}
		s.batch.seen[v.File] = struct{}{}
		s.batch.index++
	default:
		panicInvariant("builder: DoneWith called with unknown Affected variant %T", affected)
	}
}
