package payload

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"

	"midici"
)

// ValidateTextBody checks that body is well-formed UTF-8, as required of a
// raw-ASCII/JSON property body (spec.md §4.7 "Default ... raw ASCII/UTF-8
// bytes"). ASCII is a strict subset of UTF-8, so this single check covers
// both declared cases.
func ValidateTextBody(body []byte) error {
	_, err := unicode.UTF8.NewDecoder().Bytes(body)
	if err != nil {
		return fmt.Errorf("payload: body is not valid UTF-8/ASCII: %w", err)
	}
	return nil
}

// Encode converts a decoded property body into its wire representation for
// the given mutualEncoding (spec.md §4.7 / §6).
func Encode(enc midici.Encoding, body []byte) ([]byte, error) {
	switch enc {
	case "", midici.EncodingASCII:
		return body, nil
	case midici.EncodingMcoded7:
		return EncodeMcoded7(body), nil
	case midici.EncodingZlibMcoded7:
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return EncodeMcoded7(buf.Bytes()), nil
	default:
		return nil, fmt.Errorf("payload: unsupported encoding %q (status %d)", enc, midici.StatusUnsupportedMediaType)
	}
}

// Decode converts a wire-representation property body back to its decoded
// form for the given mutualEncoding. For Mcoded7 (not zlib-wrapped), the
// caller must know the original byte length (e.g. from a prior Encode call
// or a property's recorded size) since the wire form is always padded to a
// multiple of 7 bytes per group; pass -1 if the body is expected to be a
// clean multiple of 7 bytes already (no padding to strip).
func Decode(enc midici.Encoding, wire []byte, originalLen int) ([]byte, error) {
	switch enc {
	case "", midici.EncodingASCII:
		return wire, nil
	case midici.EncodingMcoded7:
		if originalLen < 0 {
			return DecodeMcoded7(wire)
		}
		return DecodeMcoded7Len(wire, originalLen)
	case midici.EncodingZlibMcoded7:
		deflated, err := DecodeMcoded7(wire)
		if err != nil {
			return nil, err
		}
		r := flate.NewReader(bytes.NewReader(deflated))
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("payload: zlib+Mcoded7 inflate failed: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("payload: unsupported encoding %q (status %d)", enc, midici.StatusUnsupportedMediaType)
	}
}
