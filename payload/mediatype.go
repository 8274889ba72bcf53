package payload

import "github.com/gabriel-vasile/mimetype"

// DefaultJSONMediaType is used for every system property and for any user
// property registered without an explicit media type.
const DefaultJSONMediaType = "application/json"

// SniffMediaType returns the declared media type if non-empty, otherwise
// detects one from the body's content. Used by the property host when
// serving a user property that was registered without a mediaType (spec.md
// §3 PropertyMetadata.mediaTypes is advertised but a specific value body
// may still need one at serve time).
func SniffMediaType(declared string, body []byte) string {
	if declared != "" {
		return declared
	}
	if len(body) == 0 {
		return DefaultJSONMediaType
	}
	return mimetype.Detect(body).String()
}
