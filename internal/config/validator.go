package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/hashicorp/go-multierror"
)

//go:embed schema.cue
var schemaCUE []byte

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validator validates configuration against the embedded CUE schema.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator creates a new configuration validator.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", schema.Err())
	}

	return &Validator{
		ctx:    ctx,
		schema: schema.LookupPath(cue.ParsePath("#Config")),
	}, nil
}

// Validate validates the given configuration. Failures are returned as a
// *multierror.Error of *ValidationError.
func (v *Validator) Validate(cfg *Config) error {
	var result *multierror.Error

	value := v.ctx.Encode(cfg)
	if value.Err() != nil {
		return fmt.Errorf("encoding config: %w", value.Err())
	}
	result = appendCUEErrors(result, v.schema.Unify(value).Validate(cue.Concrete(true)))
	result = appendSemanticErrors(result, cfg)

	return result.ErrorOrNil()
}

// ValidateFile validates the raw configuration file at path against the
// schema, so unknown keys and mistyped values are reported before decoding.
func (v *Validator) ValidateFile(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	file, err := cueyaml.Extract(expanded, data)
	if err != nil {
		return multierror.Append(nil, &ValidationError{Message: fmt.Sprintf("parsing YAML: %v", err)})
	}
	value := v.ctx.BuildFile(file)
	if value.Err() != nil {
		return multierror.Append(nil, &ValidationError{Message: value.Err().Error()})
	}

	var result *multierror.Error
	result = appendCUEErrors(result, v.schema.Unify(value).Validate(cue.Concrete(true)))
	if result != nil {
		return result
	}

	cfg, err := NewLoader().Load(expanded)
	if err != nil {
		return err
	}
	return v.Validate(cfg)
}

func appendCUEErrors(result *multierror.Error, err error) *multierror.Error {
	if err == nil {
		return result
	}
	seen := map[string]bool{}
	for _, e := range cueerrors.Errors(err) {
		elems := cueerrors.Path(e)
		full := strings.Join(elems, ".")
		if len(elems) > 0 && elems[0] == "#Config" {
			elems = elems[1:]
		}
		path := strings.Join(elems, ".")
		// A failed disjunction reports one error per alternative.
		if seen[path] {
			continue
		}
		seen[path] = true
		msg := e.Error()
		if full != "" {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, full), ":"))
		}
		result = multierror.Append(result, &ValidationError{Field: path, Message: msg})
	}
	return result
}

// appendSemanticErrors checks constraints spanning several fields.
func appendSemanticErrors(result *multierror.Error, cfg *Config) *multierror.Error {
	exts := map[string]string{}
	for _, e := range []struct{ key, ext string }{
		{"extensions.ambiguous", cfg.Extensions.Ambiguous},
		{"extensions.native", cfg.Extensions.Native},
		{"extensions.legacy", cfg.Extensions.Legacy},
	} {
		if e.ext == "" {
			continue
		}
		if prev, ok := exts[e.ext]; ok {
			result = multierror.Append(result, &ValidationError{
				Field:   e.key,
				Message: fmt.Sprintf("extension %q is already used by %s", e.ext, prev),
			})
			continue
		}
		exts[e.ext] = e.key
	}

	seen := map[string]bool{}
	for _, c := range cfg.Conditions {
		if seen[c] {
			result = multierror.Append(result, &ValidationError{
				Field:   "conditions",
				Message: fmt.Sprintf("condition %q is listed twice", c),
			})
		}
		seen[c] = true
	}
	return result
}
