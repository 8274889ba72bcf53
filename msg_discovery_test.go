package midici

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscoveryInquiryRoundTrip(t *testing.T) {
	m := DiscoveryInquiry{
		Hdr:                Header{Addr: AddrFunctionBlock, Version: CIVersion, Source: 1, Dest: BroadcastMUID},
		Details:            DeviceDetails{Manufacturer: [3]byte{0x01, 0x02, 0x03}, Family: 0x1234, Model: 0x5678, Revision: 0x0A0B0C0D},
		Categories:         0x7F,
		ReceivableMaxSysex: 4096,
		OutputPathID:       0,
	}

	decoded, err := DecodeMessage(m.Encode())
	require.NoError(t, err)
	got, ok := decoded.(DiscoveryInquiry)
	require.True(t, ok)
	require.Equal(t, m.Details, got.Details)
	require.Equal(t, m.Categories, got.Categories)
	require.Equal(t, m.ReceivableMaxSysex, got.ReceivableMaxSysex)
	require.Equal(t, SubID2DiscoveryInquiry, got.SubID2())
}

func TestDiscoveryReplyRoundTrip(t *testing.T) {
	m := DiscoveryReply{
		Hdr:                Header{Addr: AddrFunctionBlock, Version: CIVersion, Source: 2, Dest: 1},
		Details:            DeviceDetails{Family: 1, Model: 2, Revision: 3},
		Categories:         0x01,
		ReceivableMaxSysex: 128,
		OutputPathID:       5,
		FunctionBlock:      0x7F,
	}

	decoded, err := DecodeMessage(m.Encode())
	require.NoError(t, err)
	got, ok := decoded.(DiscoveryReply)
	require.True(t, ok)
	require.Equal(t, m.FunctionBlock, got.FunctionBlock)
	require.Equal(t, m.OutputPathID, got.OutputPathID)
}

func TestInvalidateMUIDRoundTrip(t *testing.T) {
	m := InvalidateMUID{
		Hdr:    Header{Addr: AddrFunctionBlock, Version: CIVersion, Source: 1, Dest: BroadcastMUID},
		Target: MUID(42),
	}
	decoded, err := DecodeMessage(m.Encode())
	require.NoError(t, err)
	got, ok := decoded.(InvalidateMUID)
	require.True(t, ok)
	require.Equal(t, MUID(42), got.Target)
}

func TestDecodeMessageUnknownSubID2(t *testing.T) {
	h := Header{Addr: AddrFunctionBlock, SubID2: 0x55, Version: CIVersion}
	_, err := DecodeMessage(h.Encode())
	require.ErrorIs(t, err, ErrUnknownSubID2)
}
