package ump

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPacketizeAndDefragmentRoundTrip(t *testing.T) {
	body := []byte{0xF0, 0x7E, 0x00, 0x0D, 0x70, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 0xF7}
	packets := PacketizeSysEx7(2, body)
	require.True(t, len(packets) > 1)

	d := NewDefragmenter()
	var out []byte
	var done bool
	for _, p := range packets {
		var err error
		out, done, err = d.Feed(p)
		require.NoError(t, err)
	}
	require.True(t, done)
	require.Equal(t, StripFraming(body), out)
}

func TestPacketizeEmptyBodyYieldsOneCompletePacket(t *testing.T) {
	packets := PacketizeSysEx7(0, nil)
	require.Len(t, packets, 1)
	require.Equal(t, StatusComplete, byte(packets[0].Words[0]>>16&0xF0))
}

func TestPacketizeSingleShortMessageIsComplete(t *testing.T) {
	packets := PacketizeSysEx7(0, []byte{0xF0, 1, 2, 3, 0xF7})
	require.Len(t, packets, 1)
}

func TestDefragmenterContinueWithoutStartIsIncomplete(t *testing.T) {
	d := NewDefragmenter()
	u := makeSysEx7Packet(0, StatusContinue, []byte{1, 2, 3})
	_, done, err := d.Feed(u)
	require.False(t, done)
	require.ErrorIs(t, err, IncompleteSysex7)
}

func TestDefragmenterSeparatesGroups(t *testing.T) {
	body1 := []byte{0xF0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 0xF7}
	body2 := []byte{0xF0, 9, 9, 0xF7}
	p1 := PacketizeSysEx7(1, body1)
	p2 := PacketizeSysEx7(2, body2)

	d := NewDefragmenter()
	for _, p := range p1[:len(p1)-1] {
		_, done, err := d.Feed(p)
		require.NoError(t, err)
		require.False(t, done)
	}
	out2, done2, err := d.Feed(p2[0])
	require.NoError(t, err)
	require.True(t, done2)
	require.Equal(t, StripFraming(body2), out2)

	out1, done1, err := d.Feed(p1[len(p1)-1])
	require.NoError(t, err)
	require.True(t, done1)
	require.Equal(t, StripFraming(body1), out1)
}

func TestStripFraming(t *testing.T) {
	require.Equal(t, []byte{1, 2, 3}, StripFraming([]byte{0xF0, 1, 2, 3, 0xF7}))
	require.Equal(t, []byte{1, 2, 3}, StripFraming([]byte{1, 2, 3}))
}
