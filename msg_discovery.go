package midici

import "fmt"

// DiscoveryInquiry is sent (usually to BroadcastMUID) to announce a device
// and ask peers to identify themselves.
type DiscoveryInquiry struct {
	Hdr                Header
	Details            DeviceDetails
	Categories         byte
	ReceivableMaxSysex uint32 // 28-bit
	OutputPathID       byte
}

func (m DiscoveryInquiry) Header() Header { return m.Hdr }
func (m DiscoveryInquiry) SubID2() byte   { return SubID2DiscoveryInquiry }

func (m DiscoveryInquiry) Encode() []byte {
	m.Hdr.SubID2 = SubID2DiscoveryInquiry
	b := m.Hdr.Encode()
	b = append(b, m.Details.Encode()...)
	b = append(b, m.Categories)
	rx := Pack28(m.ReceivableMaxSysex)
	b = append(b, rx[:]...)
	b = append(b, m.OutputPathID)
	return b
}

func decodeDiscoveryInquiry(h Header, body []byte) (Message, error) {
	details, rest, err := DecodeDeviceDetails(body)
	if err != nil {
		return nil, err
	}
	if len(rest) < 6 {
		return nil, fmt.Errorf("%w: DiscoveryInquiry body too short", ErrMalformedHeader)
	}
	rx, err := Unpack28(rest[1:5])
	if err != nil {
		return nil, err
	}
	return DiscoveryInquiry{
		Hdr:                h,
		Details:            details,
		Categories:         rest[0],
		ReceivableMaxSysex: rx,
		OutputPathID:       rest[5],
	}, nil
}

// DiscoveryReply answers a DiscoveryInquiry, adding the replying device's
// function block.
type DiscoveryReply struct {
	Hdr                Header
	Details            DeviceDetails
	Categories         byte
	ReceivableMaxSysex uint32
	OutputPathID       byte
	FunctionBlock      byte
}

func (m DiscoveryReply) Header() Header { return m.Hdr }
func (m DiscoveryReply) SubID2() byte   { return SubID2DiscoveryReply }

func (m DiscoveryReply) Encode() []byte {
	m.Hdr.SubID2 = SubID2DiscoveryReply
	b := m.Hdr.Encode()
	b = append(b, m.Details.Encode()...)
	b = append(b, m.Categories)
	rx := Pack28(m.ReceivableMaxSysex)
	b = append(b, rx[:]...)
	b = append(b, m.OutputPathID, m.FunctionBlock)
	return b
}

func decodeDiscoveryReply(h Header, body []byte) (Message, error) {
	details, rest, err := DecodeDeviceDetails(body)
	if err != nil {
		return nil, err
	}
	if len(rest) < 7 {
		return nil, fmt.Errorf("%w: DiscoveryReply body too short", ErrMalformedHeader)
	}
	rx, err := Unpack28(rest[1:5])
	if err != nil {
		return nil, err
	}
	return DiscoveryReply{
		Hdr:                h,
		Details:            details,
		Categories:         rest[0],
		ReceivableMaxSysex: rx,
		OutputPathID:       rest[5],
		FunctionBlock:      rest[6],
	}, nil
}

// InvalidateMUID tells every listener that a MUID is no longer valid.
type InvalidateMUID struct {
	Hdr    Header
	Target MUID
}

func (m InvalidateMUID) Header() Header { return m.Hdr }
func (m InvalidateMUID) SubID2() byte   { return SubID2InvalidateMUID }

func (m InvalidateMUID) Encode() []byte {
	m.Hdr.SubID2 = SubID2InvalidateMUID
	b := m.Hdr.Encode()
	t := EncodeMUID(m.Target)
	return append(b, t[:]...)
}

func decodeInvalidateMUID(h Header, body []byte) (Message, error) {
	target, err := DecodeMUID(body)
	if err != nil {
		return nil, err
	}
	return InvalidateMUID{Hdr: h, Target: target}, nil
}
