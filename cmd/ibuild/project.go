// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ibuildlang/ibuild/internal/builder"
	"github.com/ibuildlang/ibuild/internal/config"
	"github.com/ibuildlang/ibuild/internal/goprogram"
	"github.com/ibuildlang/ibuild/internal/pathutil"
)

// discoverGoFiles walks dir for *.go files, skipping the output
// directory (so re-running build after emit doesn't treat its own
// output as a source file) and any directory named testdata.
func discoverGoFiles(dir string, outDir string) ([]string, error) {
	absOut, _ := filepath.Abs(filepath.Join(dir, outDir))
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			abs, _ := filepath.Abs(path)
			if abs == absOut || d.Name() == "testdata" || strings.HasPrefix(d.Name(), ".") {
				if path != dir {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, "_test.go") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// loadProjectConfig reads the config file at path if it exists, else
// falls back to config.Default().
func loadProjectConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

// newProgram constructs the goprogram.Program for dir under cfg.
func newProgram(ctx context.Context, dir string, cfg config.Config) (*goprogram.Program, pathutil.Canonicalizer, error) {
	canon := pathutil.NewCanonicalizer(cfg.CaseSensitive)
	files, err := discoverGoFiles(dir, cfg.OutDir)
	if err != nil {
		return nil, nil, fmt.Errorf("discovering source files: %w", err)
	}
	prog, err := goprogram.New(ctx, dir, files, canon, goprogram.Options{
		BundledOutput: cfg.BundledOutput,
		CaseSensitive: cfg.CaseSensitive,
		OutDir:        cfg.OutDir,
	})
	if err != nil {
		return nil, nil, err
	}
	return prog, canon, nil
}

// newBuilderState builds a fresh, from-scratch BuilderProgramState for
// prog (spec §4.1's NewState with no prior state to diff against).
func newBuilderState(ctx context.Context, prog *goprogram.Program) (*builder.State, error) {
	return builder.NewState(ctx, prog, prog, nil)
}
