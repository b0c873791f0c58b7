package loader

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("loading: %w", &Error{Kind: KindUnsupportedDirImport, Specifier: "./dir/"})

	assert.ErrorIs(t, err, ErrUnsupportedDirImport)
	assert.NotErrorIs(t, err, ErrModuleNotFound)
	assert.Equal(t, KindUnsupportedDirImport, KindOf(err))
	assert.Zero(t, KindOf(errors.New("plain")))
}

func TestError_Messages(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "directory import",
			err:  &Error{Kind: KindUnsupportedDirImport, Specifier: "./dir/", Referrer: "file:///a.mjs"},
			want: `ERR_UNSUPPORTED_DIR_IMPORT: Directory import "./dir/" imported by file:///a.mjs is not supported`,
		},
		{
			name: "unknown extension",
			err:  &Error{Kind: KindUnknownExtension, Specifier: "./x.ts", Referrer: "file:///a.mjs", Detail: ".ts"},
			want: `ERR_UNKNOWN_FILE_EXTENSION: Unrecognized file extension ".ts" for "./x.ts" imported by file:///a.mjs`,
		},
		{
			name: "invalid manifest with cause",
			err: &Error{
				Kind:      KindInvalidManifest,
				Specifier: "./x.js",
				Referrer:  "file:///a.mjs",
				Path:      "/p/package.json",
				Cause:     errors.New("unexpected end of JSON input"),
			},
			want: `ERR_INVALID_PACKAGE_CONFIG: Invalid package config "/p/package.json" while resolving "./x.js" imported by file:///a.mjs: unexpected end of JSON input`,
		},
		{
			name: "unknown builtin",
			err:  &Error{Kind: KindUnknownBuiltin, Specifier: "builtin:nope"},
			want: `ERR_UNKNOWN_BUILTIN_MODULE: No such built-in module: builtin:nope`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestError_TypeErrorClass(t *testing.T) {
	for kind := range kindCodes {
		want := kind == KindUnknownExtension || kind == KindInvalidSpecifier
		assert.Equal(t, want, (&Error{Kind: kind}).IsTypeError(), kind.Code())
	}
}

func TestRetag(t *testing.T) {
	orig := &Error{Kind: KindInvalidManifest, Specifier: "./a.js", Referrer: "file:///r.mjs", Path: "/p/package.json"}

	got := retag(orig, "./b/../a.js", "file:///r.mjs")

	var le *Error
	assert.ErrorAs(t, got, &le)
	assert.Equal(t, "./b/../a.js", le.Specifier)
	assert.Equal(t, "/p/package.json", le.Path)
	assert.Equal(t, "./a.js", orig.Specifier, "original is left untouched")

	plain := errors.New("boom")
	assert.Same(t, plain, retag(plain, "x", "y"))
}

func TestRetag_KeepsWrappingContext(t *testing.T) {
	orig := &Error{Kind: KindModuleNotFound, Specifier: "./dep.mjs", Referrer: "file:///app/a.mjs"}
	wrapped := fmt.Errorf("compiling file:///app/a.mjs: %w", orig)

	got := retag(wrapped, "./dep.mjs", "file:///app/b.mjs")

	assert.Contains(t, got.Error(), "compiling file:///app/a.mjs: ")
	assert.Contains(t, got.Error(), "file:///app/b.mjs")
	assert.NotContains(t, got.Error(), "imported by file:///app/a.mjs")

	var le *Error
	require.ErrorAs(t, got, &le)
	assert.Equal(t, "file:///app/b.mjs", le.Referrer)
	assert.ErrorIs(t, got, ErrModuleNotFound)
}

func TestCallerIdentity(t *testing.T) {
	id, err := callerIdentity(0)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(id, "/errors_test.go"), id)

	_, err = callerIdentity(1 << 20)
	require.Error(t, err)
	assert.Equal(t, KindUnsupportedCallSite, KindOf(err))
	assert.ErrorIs(t, err, ErrUnsupportedCallSite)
}

func TestCanonicalFileURL(t *testing.T) {
	_, err := FileURLToPath("file:///a/b%2Fc.js")
	assert.ErrorIs(t, err, ErrInvalidSpecifier)

	path, err := FileURLToPath("file:///a/with%20space.js#frag")
	assert.NoError(t, err)
	assert.Equal(t, "/a/with space.js", path)

	assert.Equal(t, "file:///a/with%20space.js", PathToFileURL("/a/with space.js"))
	assert.Equal(t, "file:///a/dir/", PathToFileURL("/a/dir/"))
}
