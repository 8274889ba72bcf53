package profile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"midici"
)

var testProfile = midici.ProfileId{0x7E, 0x01, 0x02, 0x03, 0x04}

func TestListAddEnableRemove(t *testing.T) {
	l := NewList()
	var events []EventKind
	l.OnChange(func(kind EventKind, e Entry) {
		events = append(events, kind)
	})

	e := l.Add(testProfile, 0, 0)
	require.False(t, e.Enabled)

	got, ok := l.SetEnabled(testProfile, 0, 0, true, 2)
	require.True(t, ok)
	require.True(t, got.Enabled)
	require.EqualValues(t, 2, got.ChannelsRequested)

	removed, ok := l.Remove(testProfile, 0, 0)
	require.True(t, ok)
	require.Equal(t, testProfile, removed.ProfileId)

	require.Equal(t, []EventKind{EventAdded, EventEnabledChanged, EventRemoved}, events)
}

func TestAddExistingTripleIsNoOpButStillNotifies(t *testing.T) {
	l := NewList()
	count := 0
	l.OnChange(func(kind EventKind, e Entry) { count++ })

	l.Add(testProfile, 1, 1)
	l.Add(testProfile, 1, 1)

	require.Equal(t, 2, count)
	require.Len(t, l.All(), 1)
}

func TestSetEnabledOnMissingTripleIsNoOp(t *testing.T) {
	l := NewList()
	_, ok := l.SetEnabled(testProfile, 0, 0, true, 1)
	require.False(t, ok)
}

func TestAtAddress(t *testing.T) {
	l := NewList()
	l.Add(testProfile, 2, 5)
	other := midici.ProfileId{0x7E, 9, 9, 9, 9}
	l.Add(other, 2, 5)
	l.Add(other, 3, 5)

	entries := l.AtAddress(2, 5)
	require.Len(t, entries, 2)
}

func TestOffStopsFurtherNotifications(t *testing.T) {
	l := NewList()
	count := 0
	handle := l.OnChange(func(kind EventKind, e Entry) { count++ })
	l.Add(testProfile, 0, 0)
	l.Off(handle)
	l.Add(midici.ProfileId{1, 2, 3, 4, 5}, 0, 0)
	require.Equal(t, 1, count)
}

func TestReentrantCallbackDoesNotAffectInProgressNotification(t *testing.T) {
	l := NewList()
	var seen []EventKind
	l.OnChange(func(kind EventKind, e Entry) {
		seen = append(seen, kind)
		if kind == EventAdded {
			l.OnChange(func(kind EventKind, e Entry) { seen = append(seen, kind) })
		}
	})
	l.Add(testProfile, 0, 0)
	require.Equal(t, []EventKind{EventAdded}, seen)
}
