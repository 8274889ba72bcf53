// Package payload implements the Property Exchange payload codec (spec.md
// §4.7): the ASCII/Mcoded7/zlib+Mcoded7 encodings declared via a property
// header's mutualEncoding field, and RFC 6901 JSON-pointer partial updates.
package payload

import "fmt"

// EncodeMcoded7 packs data 7 bytes at a time into 8-byte groups: one "MSB
// byte" whose bit i carries the high bit of input byte i of that group,
// followed by the 7 input bytes with bit 7 cleared. The final group is
// zero-padded up to 7 bytes so the output length is always exactly
// ceil(len(data)/7)*8 (spec.md §4.7, testable property P5).
func EncodeMcoded7(data []byte) []byte {
	n := len(data)
	groups := (n + 6) / 7
	out := make([]byte, 0, groups*8)
	for g := 0; g < groups; g++ {
		start := g * 7
		end := start + 7
		if end > n {
			end = n
		}
		chunk := data[start:end]
		var msb byte
		for i, b := range chunk {
			if b&0x80 != 0 {
				msb |= 1 << uint(i)
			}
		}
		out = append(out, msb)
		for i := 0; i < 7; i++ {
			if i < len(chunk) {
				out = append(out, chunk[i]&0x7F)
			} else {
				out = append(out, 0)
			}
		}
	}
	return out
}

// DecodeMcoded7 inverts EncodeMcoded7 over whole 8-byte groups, returning
// exactly len(encoded)/8*7 bytes (including any zero padding from the
// final group of the original encode). Use DecodeMcoded7Len to trim that
// padding back to the original length.
func DecodeMcoded7(encoded []byte) ([]byte, error) {
	if len(encoded)%8 != 0 {
		return nil, fmt.Errorf("payload: Mcoded7 data length %d is not a multiple of 8", len(encoded))
	}
	groups := len(encoded) / 8
	out := make([]byte, 0, groups*7)
	for g := 0; g < groups; g++ {
		base := g * 8
		msb := encoded[base]
		for i := 0; i < 7; i++ {
			b := encoded[base+1+i]
			if msb&(1<<uint(i)) != 0 {
				b |= 0x80
			}
			out = append(out, b)
		}
	}
	return out, nil
}

// DecodeMcoded7Len decodes encoded and truncates the result to
// originalLen, which must not exceed the full decoded length. This is the
// exact inverse of EncodeMcoded7: DecodeMcoded7Len(EncodeMcoded7(x), len(x))
// == x for any x.
func DecodeMcoded7Len(encoded []byte, originalLen int) ([]byte, error) {
	full, err := DecodeMcoded7(encoded)
	if err != nil {
		return nil, err
	}
	if originalLen < 0 || originalLen > len(full) {
		return nil, fmt.Errorf("payload: originalLen %d out of range for decoded length %d", originalLen, len(full))
	}
	return full[:originalLen], nil
}
