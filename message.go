// Package midici implements the wire codec for the MIDI Capability Inquiry
// (MIDI-CI) protocol: typed message kinds, 7-bit/28-bit integer packing, the
// common SysEx header, and chunk splitting for oversized property payloads.
// Everything here is pure encode/decode — no I/O, no dispatch, no state.
package midici

import "fmt"

// Sub-ID 2 values selecting a MIDI-CI message kind (spec.md §4.1).
const (
	SubID2DiscoveryInquiry   byte = 0x70
	SubID2DiscoveryReply     byte = 0x71
	SubID2InvalidateMUID     byte = 0x7E
	SubID2ACK                byte = 0x7D
	SubID2NAK                byte = 0x7F

	SubID2ProfileInquiry        byte = 0x20
	SubID2ProfileInquiryReply   byte = 0x21
	SubID2ProfileSetOn          byte = 0x22
	SubID2ProfileSetOff         byte = 0x23
	SubID2ProfileEnabledReport  byte = 0x24
	SubID2ProfileDisabledReport byte = 0x25
	SubID2ProfileAddedReport    byte = 0x26
	SubID2ProfileRemovedReport  byte = 0x27
	SubID2ProfileDetailsInquiry byte = 0x28
	SubID2ProfileDetailsReply   byte = 0x29
	SubID2ProfileSpecificData   byte = 0x2F

	SubID2PECapabilitiesInquiry byte = 0x30
	SubID2PECapabilitiesReply   byte = 0x31

	SubID2GetPropertyData        byte = 0x34
	SubID2GetPropertyDataReply   byte = 0x35
	SubID2SetPropertyData        byte = 0x36
	SubID2SetPropertyDataReply   byte = 0x37
	SubID2SubscribeProperty      byte = 0x38
	SubID2SubscribePropertyReply byte = 0x39
	SubID2PropertyNotify         byte = 0x3F
)

// subID2Names is used only for log fields and metrics labels (via
// SubID2Name) — never for dispatch.
var subID2Names = map[byte]string{
	SubID2DiscoveryInquiry:       "DiscoveryInquiry",
	SubID2DiscoveryReply:         "DiscoveryReply",
	SubID2InvalidateMUID:         "InvalidateMUID",
	SubID2ACK:                    "ACK",
	SubID2NAK:                    "NAK",
	SubID2ProfileInquiry:         "ProfileInquiry",
	SubID2ProfileInquiryReply:    "ProfileInquiryReply",
	SubID2ProfileSetOn:           "ProfileSetOn",
	SubID2ProfileSetOff:          "ProfileSetOff",
	SubID2ProfileEnabledReport:   "ProfileEnabledReport",
	SubID2ProfileDisabledReport:  "ProfileDisabledReport",
	SubID2ProfileAddedReport:     "ProfileAddedReport",
	SubID2ProfileRemovedReport:   "ProfileRemovedReport",
	SubID2ProfileDetailsInquiry:  "ProfileDetailsInquiry",
	SubID2ProfileDetailsReply:    "ProfileDetailsReply",
	SubID2ProfileSpecificData:    "ProfileSpecificData",
	SubID2PECapabilitiesInquiry:  "PECapabilitiesInquiry",
	SubID2PECapabilitiesReply:    "PECapabilitiesReply",
	SubID2GetPropertyData:        "GetPropertyData",
	SubID2GetPropertyDataReply:   "GetPropertyDataReply",
	SubID2SetPropertyData:        "SetPropertyData",
	SubID2SetPropertyDataReply:   "SetPropertyDataReply",
	SubID2SubscribeProperty:      "SubscribeProperty",
	SubID2SubscribePropertyReply: "SubscribePropertyReply",
	SubID2PropertyNotify:         "PropertyNotify",
}

// SubID2Name returns a human-readable name for a sub-ID 2 byte, or a hex
// fallback if unknown.
func SubID2Name(subID2 byte) string {
	if name, ok := subID2Names[subID2]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02X)", subID2)
}

// IsPropertyExchange reports whether subID2 belongs to the property
// envelope group (spec.md §4.1), i.e. it carries requestId/chunk framing.
func IsPropertyExchange(subID2 byte) bool {
	return (subID2 >= SubID2GetPropertyData && subID2 <= SubID2SubscribePropertyReply) || subID2 == SubID2PropertyNotify
}

// Message is implemented by every decoded MIDI-CI message kind.
type Message interface {
	// Header returns the common header fields for this message.
	Header() Header
	// SubID2 returns the message kind's sub-ID 2.
	SubID2() byte
	// Encode serializes the message to its full stripped-SysEx body
	// (common header + kind-specific payload), with no F0/F7 framing.
	Encode() []byte
}

// DeviceDetails identifies a device's manufacturer, family, model and
// software revision (spec.md §3). On the wire it is 11 bytes.
type DeviceDetails struct {
	Manufacturer [3]byte // each byte 7-bit, LSB-first triplet
	Family       uint16  // transmitted as a 14-bit field (2 bytes)
	Model        uint16  // transmitted as a 14-bit field (2 bytes)
	Revision     uint32  // transmitted as a 28-bit field (4 bytes)
}

// DeviceDetailsLen is the wire length of an encoded DeviceDetails.
const DeviceDetailsLen = 11

// Encode serializes d to its 11-byte wire form.
func (d DeviceDetails) Encode() []byte {
	fam := Pack14(d.Family)
	mod := Pack14(d.Model)
	rev := Pack28(d.Revision)
	b := make([]byte, 0, DeviceDetailsLen)
	b = append(b, d.Manufacturer[:]...)
	b = append(b, fam[:]...)
	b = append(b, mod[:]...)
	b = append(b, rev[:]...)
	return b
}

// DecodeDeviceDetails parses an 11-byte DeviceDetails and returns the
// remaining bytes.
func DecodeDeviceDetails(b []byte) (DeviceDetails, []byte, error) {
	if len(b) < DeviceDetailsLen {
		return DeviceDetails{}, nil, fmt.Errorf("%w: DeviceDetails needs %d bytes, got %d", ErrMalformedHeader, DeviceDetailsLen, len(b))
	}
	for i, x := range b[:3] {
		if x&0x80 != 0 {
			return DeviceDetails{}, nil, fmt.Errorf("%w: manufacturer byte %d has bit 7 set", ErrMalformedHeader, i)
		}
	}
	fam, err := Unpack14(b[3:5])
	if err != nil {
		return DeviceDetails{}, nil, err
	}
	mod, err := Unpack14(b[5:7])
	if err != nil {
		return DeviceDetails{}, nil, err
	}
	rev, err := Unpack28(b[7:11])
	if err != nil {
		return DeviceDetails{}, nil, err
	}
	d := DeviceDetails{
		Manufacturer: [3]byte{b[0], b[1], b[2]},
		Family:       fam,
		Model:        mod,
		Revision:     rev,
	}
	return d, b[DeviceDetailsLen:], nil
}

// ProfileId is a 5-byte profile name. Equality is bytewise (spec.md §3).
type ProfileId [5]byte

// Equal reports whether p and other identify the same profile.
func (p ProfileId) Equal(other ProfileId) bool {
	return p == other
}

// DecodeMessage parses a stripped SysEx body (no F0/F7) into a typed
// Message. It is the single entry point the messenger (C2) uses; the
// per-kind decoders it dispatches to are unexported and reached only
// through it.
func DecodeMessage(body []byte) (Message, error) {
	h, rest, err := DecodeHeader(body)
	if err != nil {
		return nil, err
	}
	switch h.SubID2 {
	case SubID2DiscoveryInquiry:
		return decodeDiscoveryInquiry(h, rest)
	case SubID2DiscoveryReply:
		return decodeDiscoveryReply(h, rest)
	case SubID2InvalidateMUID:
		return decodeInvalidateMUID(h, rest)
	case SubID2ACK:
		return decodeAckNak(h, rest, false)
	case SubID2NAK:
		return decodeAckNak(h, rest, true)
	case SubID2ProfileInquiry:
		return decodeProfileInquiry(h, rest)
	case SubID2ProfileInquiryReply:
		return decodeProfileInquiryReply(h, rest)
	case SubID2ProfileSetOn, SubID2ProfileSetOff:
		return decodeProfileSet(h, rest)
	case SubID2ProfileEnabledReport, SubID2ProfileDisabledReport:
		return decodeProfileEnableReport(h, rest)
	case SubID2ProfileAddedReport, SubID2ProfileRemovedReport:
		return decodeProfileAddRemoveReport(h, rest)
	case SubID2ProfileDetailsInquiry:
		return decodeProfileDetailsInquiry(h, rest)
	case SubID2ProfileDetailsReply:
		return decodeProfileDetailsReply(h, rest)
	case SubID2ProfileSpecificData:
		return decodeProfileSpecificData(h, rest)
	case SubID2PECapabilitiesInquiry, SubID2PECapabilitiesReply:
		return decodePECapabilities(h, rest)
	default:
		if IsPropertyExchange(h.SubID2) {
			return decodePropertyExchange(h, rest)
		}
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownSubID2, h.SubID2)
	}
}
