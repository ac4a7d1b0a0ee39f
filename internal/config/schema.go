// Copyright 2026 The ibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"

	"github.com/google/jsonschema-go/jsonschema"
	"gopkg.in/yaml.v3"
)

// Schema returns the JSON Schema for Config, generated by reflection
// over its struct tags, so the schema can never drift from the Go struct
// it describes. ValidateFile (behind `ibuild config validate`) uses it.
func Schema() (*jsonschema.Schema, error) {
	return jsonschema.For[Config](nil)
}

// ValidateFile reads the YAML file at path and validates its raw contents
// against Schema, independently of whether yaml.Unmarshal into Config
// would succeed silently on an unrecognized field: the file is decoded
// into a generic value and checked directly, never routed through Config
// first, so a typo'd or unknown key fails validation instead of being
// silently dropped before the schema ever sees it. Load is called
// separately so a structurally valid-but-incompatible file (bad
// schemaVersion, unknown hashFunction) is also still rejected.
func ValidateFile(path string) error {
	schema, err := Schema()
	if err != nil {
		return fmt.Errorf("config: building schema: %w", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("config: resolving schema: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	var instance any
	if err := yaml.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("config: decoding %s: %w", path, err)
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("config: %s does not satisfy its schema: %w", path, err)
	}

	if _, err := Load(path); err != nil {
		return err
	}
	return nil
}
