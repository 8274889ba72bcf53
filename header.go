package midici

import "fmt"

// Address byte values with reserved meanings (spec.md §3); any value 0-15
// addresses a channel directly.
const (
	AddrGroup         byte = 0x7E
	AddrFunctionBlock byte = 0x7F
)

const (
	universalSysExID byte = 0x7E
	ciSubID1         byte = 0x0D
	// CIVersion is the MIDI-CI protocol version this codec emits.
	CIVersion byte = 0x02
	// CommonHeaderLen is the length in bytes of the fixed common header
	// prefix that begins every MIDI-CI SysEx body (after F0 is stripped).
	CommonHeaderLen = 13
)

// Header is the 13-byte common header shared by every MIDI-CI message.
type Header struct {
	Addr    byte
	SubID2  byte
	Version byte
	Source  MUID
	Dest    MUID
}

// Encode serializes the common header to its 13-byte wire form.
func (h Header) Encode() []byte {
	src := EncodeMUID(h.Source)
	dst := EncodeMUID(h.Dest)
	b := make([]byte, CommonHeaderLen)
	b[0] = universalSysExID
	b[1] = h.Addr
	b[2] = ciSubID1
	b[3] = h.SubID2
	b[4] = h.Version
	copy(b[5:9], src[:])
	copy(b[9:13], dst[:])
	return b
}

// DecodeHeader parses the 13-byte common header prefix from a stripped SysEx
// body (no F0/F7 framing) and returns the header plus the remaining bytes.
func DecodeHeader(body []byte) (Header, []byte, error) {
	if len(body) < CommonHeaderLen {
		return Header{}, nil, fmt.Errorf("%w: body too short for common header (%d bytes)", ErrMalformedHeader, len(body))
	}
	if body[0] != universalSysExID {
		return Header{}, nil, fmt.Errorf("%w: expected universal SysEx ID 0x7E, got 0x%02X", ErrMalformedHeader, body[0])
	}
	if body[2] != ciSubID1 {
		return Header{}, nil, fmt.Errorf("%w: expected CI sub-ID 1 0x0D, got 0x%02X", ErrMalformedHeader, body[2])
	}
	src, err := DecodeMUID(body[5:9])
	if err != nil {
		return Header{}, nil, err
	}
	dst, err := DecodeMUID(body[9:13])
	if err != nil {
		return Header{}, nil, err
	}
	h := Header{
		Addr:    body[1],
		SubID2:  body[3],
		Version: body[4],
		Source:  src,
		Dest:    dst,
	}
	return h, body[CommonHeaderLen:], nil
}

// LooksLikeMessage reports whether a stripped SysEx body begins with the
// universal SysEx ID / CI sub-ID 1 prefix ({0x7E, *, 0x0D}), the cheap
// check a transport shim uses to decide whether a reassembled SysEx body
// is a MIDI-CI message at all before handing it to DecodeHeader (spec.md
// §4.9).
func LooksLikeMessage(body []byte) bool {
	return len(body) >= 3 && body[0] == universalSysExID && body[2] == ciSubID1
}

// AddressedTo reports whether a message with this header should be accepted
// by an endpoint whose own MUID is local. Per spec.md §4.2, broadcast is
// always accepted.
func (h Header) AddressedTo(local MUID) bool {
	return h.Dest == local || h.Dest.IsBroadcast()
}
