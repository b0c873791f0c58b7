// Package errors provides the CLI's error presentation and exit codes.
package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/opmodel/modload/pkg/loader"
	"github.com/opmodel/modload/pkg/loader/jsengine"
)

// DetailError captures structured error information for display.
type DetailError struct {
	// Type is the error category (required).
	Type string

	// Message is the specific description (required).
	Message string

	// Location is the file path or URL the error refers to (optional).
	Location string

	// Field is the field name for schema errors (optional).
	Field string

	// Context contains additional key-value context (optional).
	Context map[string]string

	// Hint provides actionable guidance (optional).
	Hint string

	// Cause is the underlying error (optional).
	Cause error
}

// Error implements the error interface.
func (e *DetailError) Error() string {
	var b strings.Builder

	b.WriteString("Error: ")
	b.WriteString(e.Type)
	b.WriteString("\n")

	if e.Location != "" {
		b.WriteString("  Location: ")
		b.WriteString(e.Location)
		b.WriteString("\n")
	}
	if e.Field != "" {
		b.WriteString("  Field: ")
		b.WriteString(e.Field)
		b.WriteString("\n")
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		b.WriteString("  ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(e.Context[k])
		b.WriteString("\n")
	}

	b.WriteString("\n  ")
	b.WriteString(e.Message)
	b.WriteString("\n")

	if e.Hint != "" {
		b.WriteString("\nHint: ")
		b.WriteString(e.Hint)
		b.WriteString("\n")
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *DetailError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a validation error with details.
func NewValidationError(message, location, field, hint string) error {
	return &DetailError{
		Type:     "validation failed",
		Message:  message,
		Location: location,
		Field:    field,
		Hint:     hint,
		Cause:    ErrValidation,
	}
}

// NewNotFoundError creates a not found error with details.
func NewNotFoundError(message, location, hint string) error {
	return &DetailError{
		Type:     "not found",
		Message:  message,
		Location: location,
		Hint:     hint,
		Cause:    ErrNotFound,
	}
}

// NewPermissionError creates a permission denied error with details.
func NewPermissionError(message string, context map[string]string, hint string) error {
	return &DetailError{
		Type:    "permission denied",
		Message: message,
		Context: context,
		Hint:    hint,
		Cause:   ErrPermission,
	}
}

// Wrap wraps an error with a sentinel error type.
func Wrap(sentinel error, message string) error {
	return fmt.Errorf("%s: %w", message, sentinel)
}

var kindHints = map[loader.Kind]string{
	loader.KindModuleNotFound:       "Check the specifier spelling, or install the package into a dependency directory next to the importer.",
	loader.KindUnsupportedDirImport: "Import a file inside the directory, or declare a \"main\" or \"exports\" entry in its package.json.",
	loader.KindUnknownExtension:     "Rename the file to a recognised extension, or map the extension in the loader configuration.",
	loader.KindInvalidManifest:      "Fix the JSON syntax of the package manifest.",
	loader.KindInvalidSpecifier:     "Specifiers must be relative (./, ../), absolute, a URL, or a bare package name.",
	loader.KindUnsupportedScheme:    "Only file:, data: and builtin: URLs can be loaded.",
	loader.KindUnknownBuiltin:       "Run 'modload load --help' to see how builtins are named.",
	loader.KindUnsupportedCallSite:  "The call site could not be identified; pass an explicit referrer.",
}

// FromLoadError converts an error returned by a load into a DetailError whose
// cause matches both the loader error and the CLI sentinel for its class.
// Errors of other shapes are returned unchanged.
func FromLoadError(err error) error {
	if err == nil {
		return nil
	}

	var le *loader.Error
	if errors.As(err, &le) {
		sentinel := ErrResolution
		switch {
		case le.Kind == loader.KindModuleNotFound:
			sentinel = ErrNotFound
		case errors.Is(le.Cause, fs.ErrPermission):
			sentinel = ErrPermission
		}

		ctx := map[string]string{"Code": le.Code()}
		if le.Specifier != "" {
			ctx["Specifier"] = le.Specifier
		}
		if le.Referrer != "" {
			ctx["Referrer"] = le.Referrer
		}
		return &DetailError{
			Type:     strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(le.Code(), "ERR_"), "_", " ")),
			Message:  le.Error(),
			Location: le.Path,
			Context:  ctx,
			Hint:     kindHints[le.Kind],
			Cause:    fmt.Errorf("%w: %w", sentinel, err),
		}
	}

	var se *jsengine.ScriptError
	if errors.As(err, &se) {
		return &DetailError{
			Type:    "evaluation failed",
			Message: se.Message,
			Cause:   fmt.Errorf("%w: %w", ErrEvaluation, err),
		}
	}

	var pe *fs.PathError
	if errors.As(err, &pe) && errors.Is(err, fs.ErrPermission) {
		return &DetailError{
			Type:     "permission denied",
			Message:  err.Error(),
			Location: pe.Path,
			Hint:     "Check the file permissions of the module source.",
			Cause:    fmt.Errorf("%w: %w", ErrPermission, err),
		}
	}

	return err
}

// ExitError wraps an error with an exit code.
type ExitError struct {
	Err  error
	Code int

	// Printed reports whether the error was already shown to the user.
	Printed bool
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return ExitCodeName(e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given error and exit code.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{Err: err, Code: code}
}

// ExitCodeFromError determines the appropriate exit code for an error.
func ExitCodeFromError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	switch {
	case errors.Is(err, ErrValidation):
		return ExitValidationError
	case errors.Is(err, ErrPermission), errors.Is(err, fs.ErrPermission):
		return ExitPermissionDenied
	case errors.Is(err, ErrNotFound), errors.Is(err, loader.ErrModuleNotFound):
		return ExitNotFound
	case errors.Is(err, ErrEvaluation):
		return ExitEvaluationError
	case errors.Is(err, ErrResolution):
		return ExitResolutionError
	}

	if loader.KindOf(err) != 0 {
		return ExitResolutionError
	}
	var se *jsengine.ScriptError
	if errors.As(err, &se) {
		return ExitEvaluationError
	}
	return ExitGeneralError
}
