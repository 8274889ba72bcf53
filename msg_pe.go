package midici

import "fmt"

// PECapabilities is sent as an inquiry (0x30) or reply (0x31) to negotiate
// Property Exchange parameters before any property traffic begins.
type PECapabilities struct {
	Hdr          Header
	IsReply      bool
	MaxRequests  byte
	PEMajor      byte
	PEMinor      byte
}

func (m PECapabilities) Header() Header { return m.Hdr }
func (m PECapabilities) SubID2() byte {
	if m.IsReply {
		return SubID2PECapabilitiesReply
	}
	return SubID2PECapabilitiesInquiry
}

func (m PECapabilities) Encode() []byte {
	m.Hdr.SubID2 = m.SubID2()
	b := m.Hdr.Encode()
	return append(b, m.MaxRequests, m.PEMajor, m.PEMinor)
}

func decodePECapabilities(h Header, body []byte) (Message, error) {
	if len(body) < 3 {
		return nil, fmt.Errorf("%w: PE capabilities body too short", ErrMalformedHeader)
	}
	return PECapabilities{
		Hdr:         h,
		IsReply:     h.SubID2 == SubID2PECapabilitiesReply,
		MaxRequests: body[0],
		PEMajor:     body[1],
		PEMinor:     body[2],
	}, nil
}

// PropertyExchange is the shared envelope for every Get/Set/Subscribe
// request, reply, and Notify message (sub-IDs 0x34-0x39 and 0x3F). The
// header field is a UTF-8 JSON object whose shape depends on SubID2Value
// and direction; callers parse it with encoding/json (see the property
// package).
type PropertyExchange struct {
	Hdr          Header
	SubID2Value  byte
	RequestId    byte
	HeaderJSON   []byte
	TotalChunks  uint16
	ChunkIndex   uint16
	ChunkBody    []byte
}

func (m PropertyExchange) Header() Header { return m.Hdr }
func (m PropertyExchange) SubID2() byte   { return m.SubID2Value }

func (m PropertyExchange) Encode() []byte {
	m.Hdr.SubID2 = m.SubID2Value
	b := m.Hdr.Encode()
	b = append(b, m.RequestId)
	hl := Pack14(uint16(len(m.HeaderJSON)))
	b = append(b, hl[:]...)
	b = append(b, m.HeaderJSON...)
	tc := Pack14(m.TotalChunks)
	ci := Pack14(m.ChunkIndex)
	cl := Pack14(uint16(len(m.ChunkBody)))
	b = append(b, tc[:]...)
	b = append(b, ci[:]...)
	b = append(b, cl[:]...)
	b = append(b, m.ChunkBody...)
	return b
}

func decodePropertyExchange(h Header, body []byte) (Message, error) {
	if len(body) < 3 {
		return nil, fmt.Errorf("%w: property envelope too short for requestId+headerLen", ErrMalformedHeader)
	}
	requestId := body[0]
	headerLen, err := Unpack14(body[1:3])
	if err != nil {
		return nil, err
	}
	off := 3
	if int(headerLen) > len(body)-off {
		return nil, fmt.Errorf("%w: property header length %d overruns buffer", ErrMalformedHeader, headerLen)
	}
	headerJSON := append([]byte(nil), body[off:off+int(headerLen)]...)
	off += int(headerLen)

	if len(body)-off < 6 {
		return nil, fmt.Errorf("%w: property envelope too short for chunk framing", ErrMalformedHeader)
	}
	totalChunks, err := Unpack14(body[off : off+2])
	if err != nil {
		return nil, err
	}
	off += 2
	chunkIndex, err := Unpack14(body[off : off+2])
	if err != nil {
		return nil, err
	}
	off += 2
	chunkLen, err := Unpack14(body[off : off+2])
	if err != nil {
		return nil, err
	}
	off += 2
	if int(chunkLen) > len(body)-off {
		return nil, fmt.Errorf("%w: property chunk body length %d overruns buffer", ErrMalformedHeader, chunkLen)
	}
	chunkBody := append([]byte(nil), body[off:off+int(chunkLen)]...)

	return PropertyExchange{
		Hdr:         h,
		SubID2Value: h.SubID2,
		RequestId:   requestId,
		HeaderJSON:  headerJSON,
		TotalChunks: totalChunks,
		ChunkIndex:  chunkIndex,
		ChunkBody:   chunkBody,
	}, nil
}
