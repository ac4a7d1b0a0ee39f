// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package diagnosticsfmt

import (
	"strings"
	"testing"

	"github.com/ibuildlang/ibuild/internal/program"
)

func TestGroupSeparatesFilesAndExtractsURLs(t *testing.T) {
	diags := []program.Diagnostic{
		{File: "b.go", Line: 1, Severity: program.SeverityError, Message: "oops"},
		{File: "a.go", Line: 2, Severity: program.SeverityWarning, Message: "see https://go.dev/ref/spec"},
		{File: "a.go", Line: 5, Severity: program.SeverityError, Message: "also see https://go.dev/ref/spec again"},
	}
	groups := Group(diags)
	if len(groups) != 2 {
		t.Fatalf("Group returned %d groups, want 2", len(groups))
	}
	if groups[0].File != "a.go" {
		t.Fatalf("groups[0].File = %q, want a.go (sorted)", groups[0].File)
	}
	if len(groups[0].SeeAlso) != 1 {
		t.Fatalf("expected one deduplicated URL, got %v", groups[0].SeeAlso)
	}
}

func TestTextNoDiagnostics(t *testing.T) {
	if got := Text(nil); !strings.Contains(got, "no diagnostics") {
		t.Fatalf("Text(nil) = %q, want it to mention no diagnostics", got)
	}
}
