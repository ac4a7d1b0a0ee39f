// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package builder

import "fmt"

// invariantViolation reports a programmer error (spec §7): an invariant
// the core relies on to prove cache safety has been broken by the caller
// or by a malformed old state. These are never returned as errors because
// they indicate a bug in the calling code, not a condition the caller can
// recover from at runtime.
type invariantViolation struct {
	msg string
}

func (e *invariantViolation) Error() string { return e.msg }

func panicInvariant(format string, args ...any) {
	panic(&invariantViolation{msg: fmt.Sprintf(format, args...)})
}
