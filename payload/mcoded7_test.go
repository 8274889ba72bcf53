package payload

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMcoded7RoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{0x00},
		{0xFF},
		[]byte("hello, world"),
		{0x01, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87, 0x88, 0x89},
	}
	for _, data := range cases {
		enc := EncodeMcoded7(data)
		require.Zero(t, len(enc)%8, "encoded length must be a multiple of 8")

		got, err := DecodeMcoded7Len(enc, len(data))
		require.NoError(t, err)
		require.Equal(t, data, got)
	}
}

func TestEncodeMcoded7ClearsHighBit(t *testing.T) {
	enc := EncodeMcoded7([]byte{0xFF, 0xFF})
	for _, b := range enc[1:] {
		require.Zero(t, b&0x80)
	}
}

func TestDecodeMcoded7RejectsBadLength(t *testing.T) {
	_, err := DecodeMcoded7([]byte{0, 1, 2})
	require.Error(t, err)
}

func TestDecodeMcoded7LenRejectsOutOfRange(t *testing.T) {
	enc := EncodeMcoded7([]byte("abc"))
	_, err := DecodeMcoded7Len(enc, 100)
	require.Error(t, err)
}
