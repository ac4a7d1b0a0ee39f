// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads ibuild's YAML configuration file: the host
// contract knobs spec.md §6 leaves to the embedder (bundled-output mode,
// case-sensitivity, which shape-signature hash to use) plus a
// schemaVersion field so future incompatible config changes can be
// detected up front rather than surfacing as a confusing Program
// construction error.
package config

import (
	"fmt"
	"os"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// CurrentSchemaVersion is the schemaVersion this build of ibuild
// understands. It follows golang.org/x/mod/semver's "vMAJOR.MINOR"
// comparison rules (semver.Compare requires the "v" prefix).
const CurrentSchemaVersion = "v1.0"

// HashFunction selects the algorithm used for version/signature hashing
// in internal/goprogram. Only sha256 is implemented today; the field
// exists so a config file is forward-compatible with an eventual
// faster, non-cryptographic hash without a breaking format change.
type HashFunction string

const (
	HashSHA256 HashFunction = "sha256"
)

// Config is the root of ibuild's YAML config file.
type Config struct {
	// SchemaVersion must be a version Validate recognizes as compatible
	// with CurrentSchemaVersion.
	SchemaVersion string `yaml:"schemaVersion" json:"schemaVersion,omitempty" jsonschema:"the config schema version this file targets, e.g. v1.0"`

	// BundledOutput mirrors program.CompilerOptions.BundledOutput (spec
	// §6): when true, every build collapses to one whole-program
	// affected unit.
	BundledOutput bool `yaml:"bundledOutput" json:"bundledOutput,omitempty" jsonschema:"collapse every build to a single whole-program unit"`

	// CaseSensitive selects the pathutil.Canonicalizer policy (spec §3).
	CaseSensitive bool `yaml:"caseSensitive" json:"caseSensitive,omitempty" jsonschema:"treat file paths as case-sensitive"`

	// HashFunction selects the content-hash algorithm goprogram uses for
	// Version and Signature.
	HashFunction HashFunction `yaml:"hashFunction" json:"hashFunction,omitempty" jsonschema:"hash algorithm used for file versions and shape signatures"`

	// OutDir is where `ibuild build`/`report` write emitted files.
	OutDir string `yaml:"outDir" json:"outDir,omitempty" jsonschema:"directory emitted files are written under"`
}

// Default returns the configuration ibuild uses when no config file is
// present.
func Default() Config {
	return Config{
		SchemaVersion: CurrentSchemaVersion,
		BundledOutput: false,
		CaseSensitive: true,
		HashFunction:  HashSHA256,
		OutDir:        "out",
	}
}

// Load reads and parses the YAML config file at path, applying Default
// for any field the file doesn't set by unmarshaling onto a
// Default()-initialized value, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cfg's internal consistency: a recognized schema
// version and hash function.
func Validate(cfg Config) error {
	if !semver.IsValid(cfg.SchemaVersion) {
		return fmt.Errorf("schemaVersion %q is not a valid semantic version", cfg.SchemaVersion)
	}
	if semver.Major(cfg.SchemaVersion) != semver.Major(CurrentSchemaVersion) {
		return fmt.Errorf("schemaVersion %q is incompatible with this build (supports %s.x)", cfg.SchemaVersion, semver.Major(CurrentSchemaVersion))
	}
	switch cfg.HashFunction {
	case HashSHA256, "":
		// ok; empty means Default's zero-value path before unmarshal,
		// which Default() never actually produces, but accept it rather
		// than reject a config file that omits the field entirely.
	default:
		return fmt.Errorf("hashFunction %q is not supported", cfg.HashFunction)
	}
	return nil
}
