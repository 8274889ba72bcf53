package propchunk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"midici"
)

func TestReassembleThreeChunks(t *testing.T) {
	m := New()
	now := time.Now()
	source := midici.MUID(7)
	header := []byte(`{"resource":"ResourceList"}`)

	require.NoError(t, m.AddPendingChunk(now, source, 1, 1, header, []byte("abc")))
	require.True(t, m.HasPendingChunk(source, 1))
	require.NoError(t, m.AddPendingChunk(now, source, 1, 2, header, []byte("def")))

	gotHeader, gotBody, err := m.FinishPendingChunk(source, 1, 3, header, []byte("ghi"))
	require.NoError(t, err)
	require.Equal(t, header, gotHeader)
	require.Equal(t, []byte("abcdefghi"), gotBody)
	require.False(t, m.HasPendingChunk(source, 1))
}

func TestOutOfSequenceChunkIndexErrors(t *testing.T) {
	m := New()
	now := time.Now()
	source := midici.MUID(1)
	header := []byte(`{}`)

	require.NoError(t, m.AddPendingChunk(now, source, 1, 5, header, []byte("a")))
	err := m.AddPendingChunk(now, source, 1, 5, header, []byte("b"))
	require.ErrorIs(t, err, midici.ErrChunksOutOfSequence)
	require.False(t, m.HasPendingChunk(source, 1))
}

func TestMismatchedHeaderErrors(t *testing.T) {
	m := New()
	now := time.Now()
	source := midici.MUID(1)

	require.NoError(t, m.AddPendingChunk(now, source, 1, 1, []byte(`{"a":1}`), []byte("x")))
	err := m.AddPendingChunk(now, source, 1, 2, []byte(`{"a":2}`), []byte("y"))
	require.ErrorIs(t, err, midici.ErrChunksOutOfSequence)
}

func TestFinishWithNoPendingEntryReturnsBodyAsIs(t *testing.T) {
	m := New()
	header, body, err := m.FinishPendingChunk(midici.MUID(9), 1, 1, []byte(`{}`), []byte("solo"))
	require.NoError(t, err)
	require.Nil(t, header)
	require.Equal(t, []byte("solo"), body)
}

func TestCleanupExpiredChunks(t *testing.T) {
	m := New()
	start := time.Now()
	source := midici.MUID(3)
	require.NoError(t, m.AddPendingChunk(start, source, 2, 1, []byte(`{}`), []byte("x")))
	require.Equal(t, 1, m.Len())

	evicted := m.CleanupExpiredChunks(start.Add(time.Hour), time.Minute)
	require.Len(t, evicted, 1)
	require.Equal(t, source, evicted[0].Source)
	require.Equal(t, byte(2), evicted[0].ReqID)
	require.Equal(t, 0, m.Len())
}

func TestCleanupExpiredChunksKeepsFreshEntries(t *testing.T) {
	m := New()
	start := time.Now()
	require.NoError(t, m.AddPendingChunk(start, midici.MUID(1), 1, 1, []byte(`{}`), []byte("x")))

	evicted := m.CleanupExpiredChunks(start.Add(time.Second), time.Minute)
	require.Empty(t, evicted)
	require.Equal(t, 1, m.Len())
}
