// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import "golang.org/x/telemetry/counter"

// Anonymous usage counters for each subcommand, incremented once per
// invocation. These never carry file contents, paths, or diagnostic
// text — only the fact that a subcommand ran.
var (
	countBuild  = counter.New("ibuild/build")
	countWatch  = counter.New("ibuild/watch")
	countReport = counter.New("ibuild/report")
	countBench  = counter.New("ibuild/bench")
	countMCP    = counter.New("ibuild/mcp")
)
