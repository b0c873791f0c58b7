package loader

import (
	"path/filepath"
	"runtime"
)

// callerIdentity returns the file URL of the Go source file skip frames above
// its caller. Binaries built with -trimpath report relative file names, which
// cannot serve as a referrer.
func callerIdentity(skip int) (string, error) {
	_, file, _, ok := runtime.Caller(skip + 1)
	if !ok || file == "" {
		return "", &Error{Kind: KindUnsupportedCallSite, Detail: "caller frame is unavailable"}
	}
	path := filepath.FromSlash(file)
	if !filepath.IsAbs(path) {
		return "", &Error{Kind: KindUnsupportedCallSite, Path: file, Detail: "caller file " + file + " is not absolute"}
	}
	return PathToFileURL(path), nil
}
