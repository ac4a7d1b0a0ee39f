// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pathutil implements the canonical-file-name normalizer referenced
// throughout the builder core (spec §3, §6 "Host contract"): two Paths
// denote the same source file iff they normalize to the same string under
// the host's configured case-sensitivity policy.
package pathutil

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// A Path is a canonical, case-normalized file identifier (spec §3). Once
// produced by a [Canonicalizer], two Paths are equal iff they refer to the
// same source file.
type Path string

// A Canonicalizer maps a raw file path to its canonical [Path] under a
// fixed case-sensitivity policy.
type Canonicalizer func(raw string) Path

// NewCanonicalizer returns a Canonicalizer for the given case-sensitivity
// policy. When caseSensitive is false, paths are case-folded with
// golang.org/x/text/cases, which (unlike strings.ToLower) applies Unicode
// case folding rather than a simple per-rune lowercase mapping, matching
// the behavior of case-insensitive filesystems on non-ASCII paths.
func NewCanonicalizer(caseSensitive bool) Canonicalizer {
	if caseSensitive {
		return func(raw string) Path {
			return Path(filepath.ToSlash(filepath.Clean(raw)))
		}
	}
	fold := cases.Fold()
	return func(raw string) Path {
		clean := filepath.ToSlash(filepath.Clean(raw))
		return Path(fold.String(clean))
	}
}

// HasPrefix reports whether p is d or is contained within the directory d,
// comparing canonicalized components. Both p and d must already be
// canonical (produced by the same Canonicalizer).
func HasPrefix(p, d Path) bool {
	ps, ds := string(p), string(d)
	if ps == ds {
		return true
	}
	return strings.HasPrefix(ps, ds+"/")
}
