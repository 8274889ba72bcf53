package midici

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Addr:    AddrFunctionBlock,
		SubID2:  SubID2DiscoveryInquiry,
		Version: CIVersion,
		Source:  MUID(0x1234567 & 0x0FFFFFFF),
		Dest:    BroadcastMUID,
	}
	enc := h.Encode()
	require.Len(t, enc, CommonHeaderLen)

	got, rest, err := DecodeHeader(enc)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.Equal(t, h, got)
}

func TestDecodeHeaderTooShort(t *testing.T) {
	_, _, err := DecodeHeader(make([]byte, CommonHeaderLen-1))
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestDecodeHeaderWrongUniversalID(t *testing.T) {
	h := Header{Addr: AddrFunctionBlock, SubID2: SubID2DiscoveryInquiry, Version: CIVersion}
	enc := h.Encode()
	enc[0] = 0x7D
	_, _, err := DecodeHeader(enc)
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestLooksLikeMessage(t *testing.T) {
	h := Header{Addr: AddrFunctionBlock, SubID2: SubID2DiscoveryInquiry, Version: CIVersion}
	require.True(t, LooksLikeMessage(h.Encode()))
	require.False(t, LooksLikeMessage([]byte{0x7E, 0x00, 0x0C}))
	require.False(t, LooksLikeMessage([]byte{0x7E, 0x00}))
}

func TestAddressedTo(t *testing.T) {
	local := MUID(100)
	h := Header{Dest: local}
	require.True(t, h.AddressedTo(local))
	require.False(t, h.AddressedTo(MUID(101)))

	h.Dest = BroadcastMUID
	require.True(t, h.AddressedTo(local))
	require.True(t, h.AddressedTo(MUID(999)))
}
