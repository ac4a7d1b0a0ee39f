// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package diagnosticsfmt renders a builder's cached diagnostics as
// plain text (for the CLI) or an HTML report (for `ibuild report`).
package diagnosticsfmt

import (
	"fmt"
	"sort"
	"strings"

	"mvdan.cc/xurls/v2"

	"github.com/ibuildlang/ibuild/internal/program"
)

var urlPattern = xurls.Relaxed()

// Grouped is one file's diagnostics plus any URLs found in their
// messages, surfaced separately as a "See also" list.
type Grouped struct {
	File        string
	Diagnostics []program.Diagnostic
	SeeAlso     []string
}

// Group buckets diags by file (in file-path order, with the
// whole-program bucket — empty File — first) and extracts embedded URLs
// from each diagnostic's message.
func Group(diags []program.Diagnostic) []Grouped {
	byFile := map[string][]program.Diagnostic{}
	for _, d := range diags {
		byFile[string(d.File)] = append(byFile[string(d.File)], d)
	}

	var files []string
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	out := make([]Grouped, 0, len(files))
	for _, f := range files {
		ds := byFile[f]
		seen := map[string]bool{}
		var urls []string
		for _, d := range ds {
			for _, u := range urlPattern.FindAllString(d.Message, -1) {
				if !seen[u] {
					seen[u] = true
					urls = append(urls, u)
				}
			}
		}
		sort.Strings(urls)
		out = append(out, Grouped{File: f, Diagnostics: ds, SeeAlso: urls})
	}
	return out
}

// Text renders diags as the CLI's plain-text diagnostic listing.
func Text(diags []program.Diagnostic) string {
	var b strings.Builder
	for _, g := range Group(diags) {
		file := g.File
		if file == "" {
			file = "(program)"
		}
		fmt.Fprintf(&b, "%s\n", file)
		for _, d := range g.Diagnostics {
			if d.Line > 0 {
				fmt.Fprintf(&b, "  %d:%d: %s: %s\n", d.Line, d.Column, d.Severity, d.Message)
			} else {
				fmt.Fprintf(&b, "  %s: %s\n", d.Severity, d.Message)
			}
		}
		if len(g.SeeAlso) > 0 {
			fmt.Fprintf(&b, "  See also:\n")
			for _, u := range g.SeeAlso {
				fmt.Fprintf(&b, "    %s\n", u)
			}
		}
	}
	if b.Len() == 0 {
		return "(no diagnostics)\n"
	}
	return b.String()
}
