//nolint:revive // Package name matches the package it tests
package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opmodel/modload/pkg/loader"
	"github.com/opmodel/modload/pkg/loader/jsengine"
)

// ----------------------------------------------------------------------------
// DetailError
// ----------------------------------------------------------------------------

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{ErrValidation, ErrResolution, ErrPermission, ErrNotFound, ErrEvaluation}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.NotErrorIs(t, a, b)
			}
		}
	}
}

func TestDetailErrorError(t *testing.T) {
	detail := &DetailError{
		Type:     "validation failed",
		Message:  "invalid value",
		Location: "/home/user/.modload/config.yaml",
		Field:    "extensions.native",
		Context:  map[string]string{"Value": ".txt", "Code": "X"},
		Hint:     "Extensions start with a dot",
	}

	output := detail.Error()

	assert.Contains(t, output, "Error: validation failed")
	assert.Contains(t, output, "Location: /home/user/.modload/config.yaml")
	assert.Contains(t, output, "Field: extensions.native")
	assert.Contains(t, output, "Value: .txt")
	assert.Contains(t, output, "invalid value")
	assert.Contains(t, output, "Hint: Extensions start with a dot")
	assert.Less(t, strings.Index(output, "Code: X"), strings.Index(output, "Value: .txt"), "context keys are sorted")
}

func TestDetailErrorUnwrap(t *testing.T) {
	detail := &DetailError{
		Type:    "test",
		Message: "test message",
		Cause:   ErrValidation,
	}

	assert.ErrorIs(t, detail, ErrValidation)
	assert.Equal(t, ErrValidation, detail.Unwrap())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		typ      string
	}{
		{"validation", NewValidationError("bad", "cfg.yaml", "log.verbose", "use a bool"), ErrValidation, "validation failed"},
		{"not found", NewNotFoundError("missing", "/app", ""), ErrNotFound, "not found"},
		{"permission", NewPermissionError("denied", map[string]string{"Path": "/app"}, ""), ErrPermission, "permission denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			var detail *DetailError
			require.ErrorAs(t, tt.err, &detail)
			assert.Equal(t, tt.typ, detail.Type)
		})
	}
}

func TestWrap(t *testing.T) {
	wrapped := Wrap(ErrValidation, "schema check failed")

	assert.ErrorIs(t, wrapped, ErrValidation)
	assert.Contains(t, wrapped.Error(), "schema check failed")
}

// ----------------------------------------------------------------------------
// Loader errors
// ----------------------------------------------------------------------------

func TestFromLoadError(t *testing.T) {
	t.Run("module not found", func(t *testing.T) {
		le := &loader.Error{Kind: loader.KindModuleNotFound, Specifier: "./missing.js", Referrer: "file:///app/main.js", Path: "/app/missing.js"}
		err := FromLoadError(fmt.Errorf("load: %w", le))

		var detail *DetailError
		require.ErrorAs(t, err, &detail)
		assert.Equal(t, "module not found", detail.Type)
		assert.Equal(t, "/app/missing.js", detail.Location)
		assert.Equal(t, "ERR_MODULE_NOT_FOUND", detail.Context["Code"])
		assert.Equal(t, "./missing.js", detail.Context["Specifier"])
		assert.Equal(t, "file:///app/main.js", detail.Context["Referrer"])
		assert.NotEmpty(t, detail.Hint)

		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, err, loader.ErrModuleNotFound)
		assert.Equal(t, ExitNotFound, ExitCodeFromError(err))
	})

	t.Run("resolution class", func(t *testing.T) {
		err := FromLoadError(&loader.Error{Kind: loader.KindUnsupportedScheme, Specifier: "https://x.test/a.js"})
		assert.ErrorIs(t, err, ErrResolution)
		assert.ErrorIs(t, err, loader.ErrUnsupportedScheme)
		assert.Equal(t, ExitResolutionError, ExitCodeFromError(err))
	})

	t.Run("script error", func(t *testing.T) {
		err := FromLoadError(&jsengine.ScriptError{Message: "boom"})
		var detail *DetailError
		require.ErrorAs(t, err, &detail)
		assert.Equal(t, "boom", detail.Message)
		assert.Equal(t, ExitEvaluationError, ExitCodeFromError(err))
	})

	t.Run("permission", func(t *testing.T) {
		err := FromLoadError(&fs.PathError{Op: "open", Path: "/app/secret.js", Err: fs.ErrPermission})
		var detail *DetailError
		require.ErrorAs(t, err, &detail)
		assert.Equal(t, "/app/secret.js", detail.Location)
		assert.Equal(t, ExitPermissionDenied, ExitCodeFromError(err))
	})

	t.Run("other errors pass through", func(t *testing.T) {
		plain := errors.New("plain")
		assert.Same(t, plain, FromLoadError(plain))
		assert.NoError(t, FromLoadError(nil))
	})
}

// ----------------------------------------------------------------------------
// Exit codes
// ----------------------------------------------------------------------------

func TestExitCodeFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"explicit exit error", NewExitError(errors.New("x"), ExitValidationError), ExitValidationError},
		{"wrapped validation", Wrap(ErrValidation, "config"), ExitValidationError},
		{"raw loader error", &loader.Error{Kind: loader.KindInvalidSpecifier}, ExitResolutionError},
		{"raw not found", &loader.Error{Kind: loader.KindModuleNotFound}, ExitNotFound},
		{"raw script error", fmt.Errorf("eval: %w", &jsengine.ScriptError{Message: "x"}), ExitEvaluationError},
		{"unknown", errors.New("other"), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFromError(tt.err))
		})
	}
}

func TestExitError(t *testing.T) {
	inner := errors.New("inner")
	exitErr := NewExitError(inner, ExitNotFound)
	assert.Equal(t, "inner", exitErr.Error())
	assert.ErrorIs(t, exitErr, inner)

	assert.Equal(t, "Not Found", (&ExitError{Code: ExitNotFound}).Error())
	assert.Equal(t, "Unknown", ExitCodeName(42))
}
