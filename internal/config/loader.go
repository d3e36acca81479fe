package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaSource string

// LoadPaths reads, vets, and decodes a paths configuration file.
func LoadPaths(file string) (*PathConfig, error) {
	var cfg PathConfig
	if err := loadInto(file, "#Paths", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(file); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadRuntime reads, vets, and decodes a runtime configuration file.
// Schema defaults (smoke dataset, variable names, row/point budgets) are
// applied for any field the file omits.
func LoadRuntime(file string) (*RuntimeConfig, error) {
	var cfg RuntimeConfig
	if err := loadInto(file, "#Runtime", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(file); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadInto parses the YAML document, unifies it with the named schema
// definition, and decodes the unified value into out. Any schema
// disagreement (missing key, wrong type, relative path) surfaces as a
// ConfigError carrying CUE's error detail.
func loadInto(file, def string, out any) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return &ConfigError{File: file, Message: err.Error()}
	}

	astFile, err := cueyaml.Extract(file, data)
	if err != nil {
		return &ConfigError{File: file, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if schema.Err() != nil {
		// Embedded schema is part of the binary; failing to compile it is a
		// programming error, not a user configuration error.
		return fmt.Errorf("compiling embedded schema: %w", schema.Err())
	}
	defVal := schema.LookupPath(cue.ParsePath(def))
	if defVal.Err() != nil {
		return fmt.Errorf("looking up schema definition %s: %w", def, defVal.Err())
	}

	doc := ctx.BuildFile(astFile)
	if doc.Err() != nil {
		return &ConfigError{File: file, Message: fmt.Sprintf("invalid document: %v", doc.Err())}
	}

	unified := defVal.Unify(doc)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return &ConfigError{File: file, Message: cueerrors.Details(err, nil)}
	}
	if err := unified.Decode(out); err != nil {
		return &ConfigError{File: file, Message: fmt.Sprintf("decoding configuration: %v", err)}
	}
	return nil
}
