// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ibuild drives internal/builder over a directory of Go source
// files using internal/goprogram as the compiler front end.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ibuild",
	Short: "Incremental build driver",
	Long:  "ibuild runs incremental builds over a directory of Go source files, caching semantic diagnostics across runs the way a language service's builder would.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(buildCmd, watchCmd, reportCmd, configCmd, benchCmd, mcpCmd)
}
