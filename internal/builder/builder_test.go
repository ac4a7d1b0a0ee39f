// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package builder

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ibuildlang/ibuild/internal/program"
)

func mustNewState(t *testing.T, p *fakeProgram, old *State) *State {
	t.Helper()
	s, err := NewState(context.Background(), p, p, old)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	return s
}

// drainAll repeatedly calls NextAffected/DoneWith and records the order
// affected units were yielded in.
func drainAll(s *State) []Affected {
	ctx := context.Background()
	var got []Affected
	for {
		a, ok, err := s.NextAffected(ctx)
		if err != nil {
			panic(err)
		}
		if !ok {
			return got
		}
		got = append(got, a)
		s.DoneWith(a)
	}
}

// --- S1: no change -------------------------------------------------------

func TestNoChangeSkipsReanalysis(t *testing.T) {
	files := map[Path]fakeFile{
		"a": {content: "v1", sig: "sigA"},
	}
	p1 := newFakeProgram(false, files, []Path{"a"})
	s1 := mustNewState(t, p1, nil)
	for _, a := range drainAll(s1) {
		if _, err := s1.SemanticDiagnostics(context.Background(), a.(FileAffected).File); err != nil {
			t.Fatal(err)
		}
	}

	p2 := newFakeProgram(false, files, []Path{"a"}) // identical content
	s2 := mustNewState(t, p2, s1)

	if got := s2.changedFiles(); len(got) != 0 {
		t.Fatalf("changedFilesSet after no-op rebuild = %v, want empty", got)
	}
	if _, err := s2.AllSemanticDiagnostics(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if p2.semanticCalls["a"] != 0 {
		t.Fatalf("expected zero SemanticDiagnostics calls against the new program for unchanged file, got %d", p2.semanticCalls["a"])
	}
}

// --- S2: single edit cascades through shape-changed referrers ------------

func TestSingleEditCascadesByShapeChange(t *testing.T) {
	// b references a, c references b.
	base := map[Path]fakeFile{
		"a": {content: "v1", sig: "sigA1", refs: nil},
		"b": {content: "v1", sig: "sigB1", refs: []Path{"a"}},
		"c": {content: "v1", sig: "sigC1", refs: []Path{"b"}},
	}
	order := []Path{"a", "b", "c"}
	p1 := newFakeProgram(false, base, order)
	s1 := mustNewState(t, p1, nil)
	drainAll(s1)

	t.Run("shape change propagates all the way", func(t *testing.T) {
		next := map[Path]fakeFile{
			"a": {content: "v2", sig: "sigA2", refs: nil}, // a's shape changes
			"b": {content: "v1", sig: "sigB2", refs: []Path{"a"}},
			"c": {content: "v1", sig: "sigC1", refs: []Path{"b"}},
		}
		p2 := newFakeProgram(false, next, order)
		s2 := mustNewState(t, p2, s1)
		if got := s2.changedFiles(); len(got) != 1 || got[0] != "a" {
			t.Fatalf("changedFilesSet = %v, want [a]", got)
		}
		got := drainAll(s2)
		want := []Affected{FileAffected{"a"}, FileAffected{"b"}, FileAffected{"c"}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("affected order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("root itself unchanged in shape does not propagate", func(t *testing.T) {
		next := map[Path]fakeFile{
			"a": {content: "v2", sig: "sigA1", refs: nil}, // a's content changes but its shape does not
			"b": {content: "v1", sig: "sigB1", refs: []Path{"a"}},
			"c": {content: "v1", sig: "sigC1", refs: []Path{"b"}},
		}
		p2 := newFakeProgram(false, next, order)
		s2 := mustNewState(t, p2, s1)
		if got := s2.changedFiles(); len(got) != 1 || got[0] != "a" {
			t.Fatalf("changedFilesSet = %v, want [a]", got)
		}
		got := drainAll(s2)
		want := []Affected{FileAffected{"a"}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("affected order mismatch (-want +got): a's referrers b and c must not be visited since a's own shape signature did not change\n%s", diff)
		}
	})

	t.Run("shape change stops when a referrer's shape is stable", func(t *testing.T) {
		next := map[Path]fakeFile{
			"a": {content: "v2", sig: "sigA2", refs: nil}, // a's content changes
			"b": {content: "v1", sig: "sigB1", refs: []Path{"a"}}, // but b's shape (as seen by c) is unaffected
			"c": {content: "v1", sig: "sigC1", refs: []Path{"b"}},
		}
		p2 := newFakeProgram(false, next, order)
		s2 := mustNewState(t, p2, s1)
		got := drainAll(s2)
		want := []Affected{FileAffected{"a"}, FileAffected{"b"}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("affected order mismatch (-want +got):\n%s", diff)
		}
	})
}

// --- S3: cancellation idempotence ----------------------------------------

func TestCancellationIdempotence(t *testing.T) {
	files := map[Path]fakeFile{
		"x": {content: "v1", sig: "sigX"},
		"y": {content: "v1", sig: "sigY", refs: []Path{"x"}},
	}
	p := newFakeProgram(false, files, []Path{"x", "y"})
	s := mustNewState(t, p, nil)

	ctx := context.Background()
	a1, ok, err := s.NextAffected(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected an affected file")
	}
	fa, isFile := a1.(FileAffected)
	if !isFile || fa.File != "x" {
		t.Fatalf("expected x first, got %v", a1)
	}

	// Simulate: the façade reads x's diagnostics as part of the yield
	// (populating the cache through the unguarded path it uses) then is
	// cancelled before calling DoneWith.
	if _, err := s.semanticDiagnosticsUnguarded(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	// Discard the result; do not call DoneWith. Re-entering must yield x
	// again, with its cache entry evicted once more.
	a2, ok, err := s.NextAffected(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || a2 != a1 {
		t.Fatalf("NextAffected after cancellation = %v, ok=%v, want %v, true", a2, ok, a1)
	}
	if _, cached := s.diagnosticsPerFile["x"]; cached {
		t.Fatal("cache entry for x must be evicted again on retry")
	}
	if got := s.changedFiles(); len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Fatalf("changedFilesSet = %v, want [x y] (root x not yet removed)", got)
	}
}

// --- S3b: a failed affected-set expansion leaves all changed roots intact --

func TestComputeAffectedErrorLeavesChangedRootsIntact(t *testing.T) {
	files := map[Path]fakeFile{
		"x": {content: "v1", sig: "sigX"},
		"y": {content: "v1", sig: "sigY"},
	}
	p := newFakeProgram(false, files, []Path{"x", "y"})
	s := mustNewState(t, p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	affected, ok, err := s.NextAffected(ctx)
	if err == nil {
		t.Fatal("expected NextAffected to propagate the cancellation error")
	}
	if ok {
		t.Fatalf("expected ok=false alongside the error, got affected=%v", affected)
	}
	if got := s.changedFiles(); len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Fatalf("changedFilesSet after a failed expansion = %v, want [x y] untouched", got)
	}
	if s.batch != nil {
		t.Fatal("no batch should have been started for a failed expansion")
	}

	// Retrying with a live context must make progress from scratch.
	got := drainAll(s)
	if len(got) != 2 {
		t.Fatalf("drainAll after retry = %v, want 2 affected units", got)
	}
}

// --- S4: deleted reference target marks the referrer changed -------------

func TestDeletedReferenceTargetMarksChanged(t *testing.T) {
	base := map[Path]fakeFile{
		"a": {content: "v1", sig: "sigA", refs: []Path{"b"}},
		"b": {content: "v1", sig: "sigB"},
	}
	p1 := newFakeProgram(false, base, []Path{"a", "b"})
	s1 := mustNewState(t, p1, nil)
	drainAll(s1)

	next := map[Path]fakeFile{
		"a": {content: "v1", sig: "sigA", refs: []Path{"b"}}, // a itself is textually unchanged
	}
	p2 := newFakeProgram(false, next, []Path{"a"})
	s2 := mustNewState(t, p2, s1)

	got := s2.changedFiles()
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("changedFilesSet = %v, want [a] (referenced target b was deleted)", got)
	}
}

// --- S5: bundled output collapses to the whole-program sentinel ----------

func TestBundledOutputCollapsesToWholeProgram(t *testing.T) {
	files := map[Path]fakeFile{
		"a": {content: "v1", sig: "sigA"},
		"b": {content: "v1", sig: "sigB"},
	}
	p := newFakeProgram(true, files, []Path{"a", "b"})
	s := mustNewState(t, p, nil)

	ctx := context.Background()
	a, ok, err := s.NextAffected(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected the whole-program sentinel")
	}
	if _, isWhole := a.(WholeProgramAffected); !isWhole {
		t.Fatalf("NextAffected = %T, want WholeProgramAffected", a)
	}
	s.DoneWith(a)

	if got := s.changedFiles(); len(got) != 0 {
		t.Fatalf("changedFilesSet after DoneWith(WholeProgram) = %v, want empty", got)
	}
	if _, ok, err := s.NextAffected(ctx); ok || err != nil {
		t.Fatal("expected no further affected units after the whole-program sentinel")
	}
	if s.diagnosticsPerFile != nil {
		t.Fatal("bundled-output mode must not enable the per-file diagnostics cache")
	}
}

// --- S6: ignore predicate --------------------------------------------------

func TestIgnorePredicateCommitsWithoutAnalysis(t *testing.T) {
	files := map[Path]fakeFile{
		"x": {content: "v1", sig: "sigX"},
		"y": {content: "v1", sig: "sigY"},
	}
	p := newFakeProgram(false, files, []Path{"x", "y"})
	s := mustNewState(t, p, nil)
	d := NewDiagnosticsOnlyBuilder(s, nil)

	ignoreX := func(path Path) bool { return path == "x" }

	result, ok, err := d.GetSemanticDiagnosticsOfNextAffected(context.Background(), ignoreX)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a result")
	}
	fa, isFile := result.Affected.(FileAffected)
	if !isFile || fa.File != "y" {
		t.Fatalf("expected y (x should be skipped), got %v", result.Affected)
	}
	if p.semanticCalls["x"] != 0 {
		t.Fatalf("ignored file x must never be analyzed, got %d calls", p.semanticCalls["x"])
	}
}

// --- Invariant 1: cache purity ---------------------------------------------

func TestCachePurity(t *testing.T) {
	files := map[Path]fakeFile{
		"a": {content: "v1", sig: "sigA"},
		"b": {content: "v1", sig: "sigB", refs: []Path{"a"}},
	}
	p := newFakeProgram(false, files, []Path{"a", "b"})
	s := mustNewState(t, p, nil)

	ctx := context.Background()
	a, _, err := s.NextAffected(ctx)
	if err != nil {
		t.Fatal(err)
	}
	fa := a.(FileAffected)
	if !s.isPendingYield(fa.File) {
		t.Fatal("expected the yielded file to be the pending yield")
	}
	if _, cached := s.diagnosticsPerFile[fa.File]; cached {
		t.Fatal("a freshly yielded file must have no cache entry (evicted at yield time)")
	}
}

func TestCachePurityPanicsOnPendingYieldQuery(t *testing.T) {
	files := map[Path]fakeFile{"a": {content: "v1", sig: "sigA"}}
	p := newFakeProgram(false, files, []Path{"a"})
	s := mustNewState(t, p, nil)
	ctx := context.Background()
	a, _, err := s.NextAffected(ctx)
	if err != nil {
		t.Fatal(err)
	}
	fa := a.(FileAffected)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic when querying the currently yielded uncommitted file")
		}
	}()
	s.SemanticDiagnostics(ctx, fa.File)
}

// --- Invariant 2: exhaustion -------------------------------------------

func TestExhaustion(t *testing.T) {
	files := map[Path]fakeFile{
		"a": {content: "v1", sig: "sigA"},
		"b": {content: "v1", sig: "sigB", refs: []Path{"a"}},
		"c": {content: "v1", sig: "sigC"},
	}
	p := newFakeProgram(false, files, []Path{"a", "b", "c"})
	s := mustNewState(t, p, nil)
	drainAll(s)

	if got := s.changedFiles(); len(got) != 0 {
		t.Fatalf("changedFilesSet after exhaustion = %v, want empty", got)
	}
	if s.batch != nil {
		t.Fatal("batch must be nil after exhaustion")
	}
}

// --- Invariant 4: commit monotonicity -------------------------------------

func TestSignatureCommitsOnlyAtBatchBoundary(t *testing.T) {
	base := map[Path]fakeFile{
		"a": {content: "v1", sig: "sigA1"},
		"b": {content: "v1", sig: "sigB1", refs: []Path{"a"}},
	}
	p1 := newFakeProgram(false, base, []Path{"a", "b"})
	s1 := mustNewState(t, p1, nil)
	drainAll(s1)

	next := map[Path]fakeFile{
		"a": {content: "v2", sig: "sigA2"},
		"b": {content: "v1", sig: "sigB2", refs: []Path{"a"}},
	}
	p2 := newFakeProgram(false, next, []Path{"a", "b"})
	s2 := mustNewState(t, p2, s1)

	ctx := context.Background()
	aUnit, _, err := s2.NextAffected(ctx) // yields "a"
	if err != nil {
		t.Fatal(err)
	}
	if got := s2.graph.FileInfos["a"].Signature; got != "sigA1" {
		t.Fatalf("signature must read the pre-batch value mid-batch, got %q want sigA1", got)
	}
	s2.DoneWith(aUnit)

	bUnit, _, err := s2.NextAffected(ctx) // yields "b"; batch for "a" not yet drained until this returns b and we confirm
	if err != nil {
		t.Fatal(err)
	}
	if got := s2.graph.FileInfos["a"].Signature; got != "sigA1" {
		t.Fatalf("signature for a must still read pre-batch value before the batch drains, got %q", got)
	}
	s2.DoneWith(bUnit)

	if _, ok, err := s2.NextAffected(ctx); ok || err != nil {
		t.Fatal("expected exhaustion")
	}
	if got := s2.graph.FileInfos["a"].Signature; got != "sigA2" {
		t.Fatalf("signature for a must be committed once its batch drains, got %q want sigA2", got)
	}
}

// --- Diagnostics-copy invariant violation is fail-fast --------------------

func TestChangedFileWithCachedDiagnosticsPanics(t *testing.T) {
	files := map[Path]fakeFile{"a": {content: "v1", sig: "sigA"}}
	p := newFakeProgram(false, files, []Path{"a"})
	s := mustNewState(t, p, nil)
	// Manually corrupt the state to violate the invariant: a is both
	// changed and has a cached diagnostic.
	s.changedFilesSet.add("a")
	s.diagnosticsPerFile["a"] = []program.Diagnostic{{File: "a", Message: "stale"}}

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected NewState to panic on an inconsistent old state")
		}
	}()
	p2 := newFakeProgram(false, files, []Path{"a"})
	NewState(context.Background(), p2, p2, s)
}

func TestEmitMerging(t *testing.T) {
	files := map[Path]fakeFile{
		"a": {content: "v1", sig: "sigA"},
		"b": {content: "v1", sig: "sigB"},
	}
	p := newFakeProgram(false, files, []Path{"a", "b"})
	s := mustNewState(t, p, nil)
	e := NewEmitAndDiagnosticsBuilder(s, nil)

	result, err := e.Emit(context.Background(), program.EmitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	wantFiles := []string{"a.out", "b.out"}
	if diff := cmp.Diff(wantFiles, result.EmittedFiles, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Fatalf("emitted files mismatch (-want +got):\n%s", diff)
	}
}
