package loader

import (
	"encoding/base64"
	"mime"
	"net/url"
	"strings"
)

var nativeMIMETypes = map[string]bool{
	"text/javascript":        true,
	"application/javascript": true,
	"application/ecmascript": true,
	"text/ecmascript":        true,
}

// decodeDataURL decodes an inline data: URL module into its source text.
// Only JavaScript media types are accepted; they are always native.
func decodeDataURL(raw string) (string, error) {
	rest := strings.TrimPrefix(raw, "data:")
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", &Error{Kind: KindInvalidSpecifier, Detail: "data URL has no payload separator"}
	}

	isBase64 := false
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		isBase64 = true
		meta = meta[:len(meta)-len(";base64")]
	}

	mediaType := "text/plain"
	if meta != "" {
		mt, _, err := mime.ParseMediaType(meta)
		if err != nil {
			return "", &Error{Kind: KindInvalidSpecifier, Detail: "malformed data URL media type", Cause: err}
		}
		mediaType = mt
	}
	if !nativeMIMETypes[mediaType] {
		return "", &Error{Kind: KindUnknownExtension, Detail: mediaType}
	}

	if isBase64 {
		payload, err := url.PathUnescape(payload)
		if err != nil {
			return "", &Error{Kind: KindInvalidSpecifier, Cause: err}
		}
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", &Error{Kind: KindInvalidSpecifier, Detail: "malformed base64 payload", Cause: err}
		}
		return string(b), nil
	}

	text, err := url.PathUnescape(payload)
	if err != nil {
		return "", &Error{Kind: KindInvalidSpecifier, Detail: "malformed percent-encoding", Cause: err}
	}
	return text, nil
}
