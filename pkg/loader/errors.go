package loader

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a loader failure.
type Kind uint8

// Failure kinds. The set is closed; every error produced by the loader for a
// resolution or loading problem carries exactly one of these.
const (
	KindModuleNotFound Kind = iota + 1
	KindUnsupportedDirImport
	KindUnknownExtension
	KindInvalidManifest
	KindInvalidSpecifier
	KindUnsupportedScheme
	KindUnknownBuiltin
	KindUnsupportedCallSite
)

var kindCodes = map[Kind]string{
	KindModuleNotFound:       "ERR_MODULE_NOT_FOUND",
	KindUnsupportedDirImport: "ERR_UNSUPPORTED_DIR_IMPORT",
	KindUnknownExtension:     "ERR_UNKNOWN_FILE_EXTENSION",
	KindInvalidManifest:      "ERR_INVALID_PACKAGE_CONFIG",
	KindInvalidSpecifier:     "ERR_INVALID_MODULE_SPECIFIER",
	KindUnsupportedScheme:    "ERR_UNSUPPORTED_ESM_URL_SCHEME",
	KindUnknownBuiltin:       "ERR_UNKNOWN_BUILTIN_MODULE",
	KindUnsupportedCallSite:  "ERR_UNSUPPORTED_CALL_SITE",
}

// Code returns the stable error code for the kind.
func (k Kind) Code() string {
	if c, ok := kindCodes[k]; ok {
		return c
	}
	return fmt.Sprintf("ERR_UNKNOWN(%d)", uint8(k))
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	return k.Code()
}

// TypeError reports whether failures of this kind belong to the type-error class.
func (k Kind) TypeError() bool {
	return k == KindUnknownExtension || k == KindInvalidSpecifier
}

// Sentinel errors for matching with errors.Is. Matching compares kinds only.
var (
	ErrModuleNotFound       = &Error{Kind: KindModuleNotFound}
	ErrUnsupportedDirImport = &Error{Kind: KindUnsupportedDirImport}
	ErrUnknownExtension     = &Error{Kind: KindUnknownExtension}
	ErrInvalidManifest      = &Error{Kind: KindInvalidManifest}
	ErrInvalidSpecifier     = &Error{Kind: KindInvalidSpecifier}
	ErrUnsupportedScheme    = &Error{Kind: KindUnsupportedScheme}
	ErrUnknownBuiltin       = &Error{Kind: KindUnknownBuiltin}
	ErrUnsupportedCallSite  = &Error{Kind: KindUnsupportedCallSite}
)

// Error is a loader failure annotated with the request that caused it.
type Error struct {
	// Kind is the failure category.
	Kind Kind

	// Specifier is the specifier as written by the importing module.
	Specifier string

	// Referrer is the canonical identifier of the importing module.
	Referrer string

	// Path is the filesystem path or URL the failure refers to, if any.
	Path string

	// Detail is additional free-form context.
	Detail string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Code())
	if msg := e.message(); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) message() string {
	ref := e.referenced()
	switch e.Kind {
	case KindModuleNotFound:
		if ref == "" {
			return e.Detail
		}
		return withDetail(fmt.Sprintf("Module %s not found", ref), e.Detail)
	case KindUnsupportedDirImport:
		return withDetail(fmt.Sprintf("Directory import %s is not supported", ref), e.Detail)
	case KindUnknownExtension:
		return fmt.Sprintf("Unrecognized file extension %q for %s", e.Detail, ref)
	case KindInvalidManifest:
		return withDetail(fmt.Sprintf("Invalid package config %q while resolving %s", e.Path, ref), e.Detail)
	case KindInvalidSpecifier:
		return withDetail(fmt.Sprintf("Invalid module specifier %s", ref), e.Detail)
	case KindUnsupportedScheme:
		return withDetail(fmt.Sprintf("Unsupported URL scheme for %s", ref), e.Detail)
	case KindUnknownBuiltin:
		return fmt.Sprintf("No such built-in module: %s", e.Specifier)
	case KindUnsupportedCallSite:
		return withDetail("Unsupported call site", e.Detail)
	}
	return e.Detail
}

func (e *Error) referenced() string {
	if e.Specifier == "" && e.Referrer == "" {
		return ""
	}
	if e.Referrer == "" {
		return fmt.Sprintf("%q", e.Specifier)
	}
	return fmt.Sprintf("%q imported by %s", e.Specifier, e.Referrer)
}

func withDetail(msg, detail string) string {
	if detail == "" {
		return msg
	}
	return msg + " (" + detail + ")"
}

// Code returns the stable error code.
func (e *Error) Code() string {
	return e.Kind.Code()
}

// IsTypeError reports whether the error belongs to the type-error class.
func (e *Error) IsTypeError() bool {
	return e.Kind.TypeError()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// retag returns err re-annotated with another request's specifier and
// referrer. Requests that share one in-flight load share its failure, but each
// reports the specifier it was issued with. Context wrapped around the loader
// error is kept.
func retag(err error, specifier, referrer string) error {
	var le *Error
	if !errors.As(err, &le) || (le.Specifier == specifier && le.Referrer == referrer) {
		return err
	}
	c := *le
	c.Specifier = specifier
	c.Referrer = referrer
	if err == error(le) {
		return &c
	}
	return &retagged{tag: &c, orig: le, err: err}
}

// retagged is a wrapped loader error whose *Error was re-annotated.
type retagged struct {
	tag  *Error
	orig *Error
	err  error
}

func (r *retagged) Error() string {
	return strings.Replace(r.err.Error(), r.orig.Error(), r.tag.Error(), 1)
}

// Unwrap yields the re-annotated error ahead of the original chain, so
// errors.As finds the request's own specifier.
func (r *retagged) Unwrap() []error {
	return []error{r.tag, r.err}
}

// KindOf returns the kind of a loader error, or 0 when err is not one.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return 0
}
