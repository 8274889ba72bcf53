package midici

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMUIDRoundTrip(t *testing.T) {
	cases := []MUID{0, 1, 0x7F, 0x3FFF, MUIDMax, BroadcastMUID}
	for _, m := range cases {
		enc := EncodeMUID(m)
		got, err := DecodeMUID(enc[:])
		require.NoError(t, err)
		require.Equal(t, m, got)
	}
}

func TestDecodeMUIDRejectsHighBit(t *testing.T) {
	_, err := DecodeMUID([]byte{0x80, 0, 0, 0})
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestIsBroadcast(t *testing.T) {
	require.True(t, BroadcastMUID.IsBroadcast())
	require.True(t, LegacyBroadcastMUID.IsBroadcast())
	require.False(t, MUID(42).IsBroadcast())
}

func TestPack14RoundTrip(t *testing.T) {
	b := Pack14(0x1FFF)
	v, err := Unpack14(b[:])
	require.NoError(t, err)
	require.EqualValues(t, 0x1FFF, v)
}

func TestUnpack28RejectsHighBit(t *testing.T) {
	_, err := Unpack28([]byte{0, 0, 0x80, 0})
	require.ErrorIs(t, err, ErrMalformedHeader)
}
