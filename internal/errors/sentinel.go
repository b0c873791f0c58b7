package errors

import "errors"

// Sentinel errors for known conditions.
var (
	// ErrValidation indicates a configuration schema validation failure.
	ErrValidation = errors.New("validation error")

	// ErrResolution indicates a specifier could not be resolved or loaded
	// for a reason other than absence.
	ErrResolution = errors.New("resolution error")

	// ErrPermission indicates insufficient filesystem permissions.
	ErrPermission = errors.New("permission denied")

	// ErrNotFound indicates a module, package or file was not found.
	ErrNotFound = errors.New("not found")

	// ErrEvaluation indicates module code threw during evaluation.
	ErrEvaluation = errors.New("evaluation error")
)

// Exit codes.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError = 1

	// ExitValidationError indicates configuration validation failed.
	ExitValidationError = 2

	// ExitResolutionError indicates a specifier could not be resolved.
	ExitResolutionError = 3

	// ExitPermissionDenied indicates insufficient filesystem permissions.
	ExitPermissionDenied = 4

	// ExitNotFound indicates a module, package or file was not found.
	ExitNotFound = 5

	// ExitEvaluationError indicates module code threw.
	ExitEvaluationError = 6
)

// ExitCodeName returns the name of the exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitSuccess:
		return "Success"
	case ExitGeneralError:
		return "General Error"
	case ExitValidationError:
		return "Validation Error"
	case ExitResolutionError:
		return "Resolution Error"
	case ExitPermissionDenied:
		return "Permission Denied"
	case ExitNotFound:
		return "Not Found"
	case ExitEvaluationError:
		return "Evaluation Error"
	default:
		return "Unknown"
	}
}
