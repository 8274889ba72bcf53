package midici

import "fmt"

// MUID is a 28-bit Manufacturer-Unique-Identifier identifying one MIDI-CI
// endpoint. On the wire it is packed into four bytes, each holding 7 bits,
// least-significant byte first.
type MUID uint32

const (
	// MUIDMin is the smallest MUID an endpoint may claim for itself.
	MUIDMin MUID = 1
	// MUIDMax is the largest MUID an endpoint may claim for itself.
	MUIDMax MUID = 0x0FFFFFFE
	// BroadcastMUID addresses every endpoint on the wire.
	BroadcastMUID MUID = 0x0FFFFFFF
	// LegacyBroadcastMUID is accepted as an alternate broadcast value from
	// older peers, per spec.md §3.
	LegacyBroadcastMUID MUID = 0x7F7F7F7F
)

// IsBroadcast reports whether m is either recognized broadcast value.
func (m MUID) IsBroadcast() bool {
	return m == BroadcastMUID || m == LegacyBroadcastMUID
}

// EncodeMUID packs m into 4 bytes, LSB-first, 7 bits per byte.
func EncodeMUID(m MUID) [4]byte {
	return [4]byte{
		byte(m & 0x7F),
		byte((m >> 7) & 0x7F),
		byte((m >> 14) & 0x7F),
		byte((m >> 21) & 0x7F),
	}
}

// DecodeMUID unpacks a 28-bit MUID from 4 bytes, LSB-first, 7 bits per byte.
// It fails if any byte has bit 7 set.
func DecodeMUID(b []byte) (MUID, error) {
	if len(b) < 4 {
		return 0, fmt.Errorf("%w: MUID needs 4 bytes, got %d", ErrMalformedHeader, len(b))
	}
	for i, x := range b[:4] {
		if x&0x80 != 0 {
			return 0, fmt.Errorf("%w: MUID byte %d has bit 7 set (0x%02X)", ErrMalformedHeader, i, x)
		}
	}
	v := MUID(b[0]) | MUID(b[1])<<7 | MUID(b[2])<<14 | MUID(b[3])<<21
	return v, nil
}

// Pack14 packs a 14-bit value into 2 bytes, LSB-first, 7 bits per byte.
func Pack14(v uint16) [2]byte {
	return [2]byte{byte(v & 0x7F), byte((v >> 7) & 0x7F)}
}

// Unpack14 unpacks a 14-bit value from 2 bytes, LSB-first, 7 bits per byte.
func Unpack14(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, fmt.Errorf("%w: 14-bit field needs 2 bytes, got %d", ErrMalformedHeader, len(b))
	}
	if b[0]&0x80 != 0 || b[1]&0x80 != 0 {
		return 0, fmt.Errorf("%w: 14-bit field byte has bit 7 set", ErrMalformedHeader)
	}
	return uint16(b[0]) | uint16(b[1])<<7, nil
}

// Pack28 packs a 28-bit value into 4 bytes, LSB-first, 7 bits per byte. It is
// used for fields other than MUID that share the same width (e.g. rxMaxSysex).
func Pack28(v uint32) [4]byte {
	return [4]byte{
		byte(v & 0x7F),
		byte((v >> 7) & 0x7F),
		byte((v >> 14) & 0x7F),
		byte((v >> 21) & 0x7F),
	}
}

// Unpack28 unpacks a 28-bit value from 4 bytes, LSB-first, 7 bits per byte.
func Unpack28(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, fmt.Errorf("%w: 28-bit field needs 4 bytes, got %d", ErrMalformedHeader, len(b))
	}
	for i, x := range b[:4] {
		if x&0x80 != 0 {
			return 0, fmt.Errorf("%w: 28-bit field byte %d has bit 7 set (0x%02X)", ErrMalformedHeader, i, x)
		}
	}
	return uint32(b[0]) | uint32(b[1])<<7 | uint32(b[2])<<14 | uint32(b[3])<<21, nil
}
