package loader

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	drivePath      = regexp.MustCompile(`^/[A-Za-z]:`)
	encodedSepPath = regexp.MustCompile(`(?i)%2f|%5c`)
)

// PathToFileURL converts an absolute filesystem path into a file URL string.
// A trailing separator is kept.
func PathToFileURL(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p}
	return u.String()
}

// FileURLToPath converts a file URL string into a filesystem path.
func FileURLToPath(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	_, path, err := canonicalFileURL(u)
	return path, err
}

// canonicalFileURL validates a file URL and returns its canonical identifier
// together with the filesystem path it names. The fragment and query take part
// in the identifier but not in the path.
func canonicalFileURL(u *url.URL) (id, path string, err error) {
	if u.Scheme != "file" {
		return "", "", &Error{Kind: KindUnsupportedScheme, Detail: u.Scheme + ":"}
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", "", &Error{Kind: KindInvalidSpecifier, Detail: "file URL host must be \"localhost\" or empty"}
	}

	escaped := u.EscapedPath()
	p := u.Path
	if u.Opaque != "" {
		// file:dir/name is read as file:///dir/name
		escaped = "/" + u.Opaque
		if p, err = url.PathUnescape(escaped); err != nil {
			return "", "", &Error{Kind: KindInvalidSpecifier, Cause: err}
		}
	}
	if encodedSepPath.MatchString(escaped) {
		return "", "", &Error{Kind: KindInvalidSpecifier, Detail: "must not include encoded \"/\" or \"\\\" characters"}
	}
	if p == "" {
		p = "/"
	}

	c := url.URL{Scheme: "file", Path: p, RawQuery: u.RawQuery, Fragment: u.Fragment}
	id = c.String()

	if drivePath.MatchString(p) {
		p = p[1:]
	}
	return id, filepath.FromSlash(p), nil
}

// schemeOf returns the URL scheme of s including the trailing colon, or "".
func schemeOf(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		case i > 0 && c == ':':
			return strings.ToLower(s[:i+1])
		default:
			return ""
		}
	}
	return ""
}

// normalizeReferrer turns an absolute path into a file URL and leaves URLs untouched.
func normalizeReferrer(ref string) string {
	if ref == "" {
		return ""
	}
	if filepath.IsAbs(ref) {
		return PathToFileURL(ref)
	}
	return ref
}
