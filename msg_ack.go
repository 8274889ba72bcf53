package midici

import "fmt"

// AckNak is the shared layout for ACK (0x7D) and NAK (0x7F): it echoes the
// original sub-ID 2, a status code/data byte, 5 bytes of detail, and an
// optional embedded message (spec.md §4.1).
type AckNak struct {
	Hdr             Header
	IsNak           bool
	OriginalSubID2  byte
	StatusCode      byte
	StatusData      byte
	Details         [5]byte
	EmbeddedMessage []byte
}

func (m AckNak) Header() Header { return m.Hdr }

func (m AckNak) SubID2() byte {
	if m.IsNak {
		return SubID2NAK
	}
	return SubID2ACK
}

func (m AckNak) Encode() []byte {
	m.Hdr.SubID2 = m.SubID2()
	b := m.Hdr.Encode()
	b = append(b, m.OriginalSubID2, m.StatusCode, m.StatusData)
	b = append(b, m.Details[:]...)
	ln := Pack14(uint16(len(m.EmbeddedMessage)))
	b = append(b, ln[:]...)
	b = append(b, m.EmbeddedMessage...)
	return b
}

func decodeAckNak(h Header, body []byte, isNak bool) (Message, error) {
	if len(body) < 10 {
		return nil, fmt.Errorf("%w: ACK/NAK body too short", ErrMalformedHeader)
	}
	msgLen, err := Unpack14(body[8:10])
	if err != nil {
		return nil, err
	}
	if int(msgLen) > len(body)-10 {
		return nil, fmt.Errorf("%w: ACK/NAK embedded message length %d overruns buffer", ErrMalformedHeader, msgLen)
	}
	m := AckNak{
		Hdr:            h,
		IsNak:          isNak,
		OriginalSubID2: body[0],
		StatusCode:     body[1],
		StatusData:     body[2],
	}
	copy(m.Details[:], body[3:8])
	m.EmbeddedMessage = append([]byte(nil), body[10:10+int(msgLen)]...)
	return m, nil
}

// NewMalformedMessageNAK builds the NAK response spec.md §4.1/§7 class 1
// requires in reply to a framing error: status MalformedMessage (0x41).
func NewMalformedMessageNAK(addr byte, src, dst MUID, originalSubID2 byte) AckNak {
	return AckNak{
		Hdr:            Header{Addr: addr, Version: CIVersion, Source: src, Dest: dst},
		IsNak:          true,
		OriginalSubID2: originalSubID2,
		StatusCode:     byte(NAKMalformedMessage),
	}
}

// NewChunksOutOfSequenceNAK builds the NAK response for a chunk manager
// protocol error (spec.md §4.6).
func NewChunksOutOfSequenceNAK(addr byte, src, dst MUID, originalSubID2 byte) AckNak {
	return AckNak{
		Hdr:            Header{Addr: addr, Version: CIVersion, Source: src, Dest: dst},
		IsNak:          true,
		OriginalSubID2: originalSubID2,
		StatusCode:     byte(NAKChunksOutOfSequence),
	}
}
