// Package profile implements the Profile subsystem (spec.md §4.3): an
// observable list of (profileId, group, addr, enabled, channelsRequested)
// entries, shared by a host-side facade (this device serves profiles) and a
// client-side facade (this device observes a remote's profiles).
package profile

import (
	"sync"

	"midici"
)

// Entry is one profile registration at a (group, addr) pair (spec.md §3).
// The triple (ProfileId, Group, Addr) is unique within a List.
type Entry struct {
	ProfileId         midici.ProfileId
	Group             byte
	Addr              byte
	Enabled           bool
	ChannelsRequested uint16
}

type key struct {
	id    midici.ProfileId
	group byte
	addr  byte
}

// EventKind distinguishes the three callback events an observable List can
// fire (spec.md §4.3): added, enabledChanged, removed, always in that
// relative order for a given transition.
type EventKind int

const (
	EventAdded EventKind = iota
	EventEnabledChanged
	EventRemoved
)

// Callback is invoked once per event. Callbacks may mutate the List; the
// List snapshots its callback set before invoking any of them so re-entrant
// registration during a callback never affects the in-progress notification
// (spec.md §4.3, §5).
type Callback func(kind EventKind, e Entry)

// List is an ObservableProfileList: the de-duplicated set of profile
// entries at every (group, addr) known to one side of a connection, plus
// its registered callbacks.
type List struct {
	mu        sync.Mutex
	entries   map[key]Entry
	callbacks map[int]Callback
	nextHandle int
}

// NewList returns an empty observable profile list.
func NewList() *List {
	return &List{
		entries:   make(map[key]Entry),
		callbacks: make(map[int]Callback),
	}
}

// OnChange registers cb and returns a handle for Off.
func (l *List) OnChange(cb Callback) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := l.nextHandle
	l.nextHandle++
	l.callbacks[h] = cb
	return h
}

// Off deregisters the callback identified by handle.
func (l *List) Off(handle int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.callbacks, handle)
}

// snapshotCallbacks returns the callback set at the time of the call, so a
// callback that re-enters List (adds/removes entries or callbacks) cannot
// invalidate the notification loop that triggered it.
func (l *List) snapshotCallbacks() []Callback {
	out := make([]Callback, 0, len(l.callbacks))
	for _, cb := range l.callbacks {
		out = append(out, cb)
	}
	return out
}

func (l *List) notify(kind EventKind, e Entry) {
	for _, cb := range l.snapshotCallbacks() {
		cb(kind, e)
	}
}

// Add inserts a new profile entry, initially disabled, or is a no-op if the
// triple already exists — but still fires EventAdded so observers can
// re-sync (spec.md §4.3 "State transitions").
func (l *List) Add(id midici.ProfileId, group, addr byte) Entry {
	l.mu.Lock()
	k := key{id, group, addr}
	e, exists := l.entries[k]
	if !exists {
		e = Entry{ProfileId: id, Group: group, Addr: addr, Enabled: false}
		l.entries[k] = e
	}
	l.mu.Unlock()
	l.notify(EventAdded, e)
	return e
}

// Remove deletes the triple, firing EventRemoved if it existed.
func (l *List) Remove(id midici.ProfileId, group, addr byte) (Entry, bool) {
	l.mu.Lock()
	k := key{id, group, addr}
	e, exists := l.entries[k]
	if exists {
		delete(l.entries, k)
	}
	l.mu.Unlock()
	if exists {
		l.notify(EventRemoved, e)
	}
	return e, exists
}

// SetEnabled flips the enabled flag and channel count for an existing
// triple, firing EventEnabledChanged. A triple that does not exist is a
// no-op returning ok=false.
func (l *List) SetEnabled(id midici.ProfileId, group, addr byte, enabled bool, channels uint16) (Entry, bool) {
	l.mu.Lock()
	k := key{id, group, addr}
	e, exists := l.entries[k]
	if !exists {
		l.mu.Unlock()
		return Entry{}, false
	}
	e.Enabled = enabled
	e.ChannelsRequested = channels
	l.entries[k] = e
	l.mu.Unlock()
	l.notify(EventEnabledChanged, e)
	return e, true
}

// Get returns the entry for a triple, if present.
func (l *List) Get(id midici.ProfileId, group, addr byte) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key{id, group, addr}]
	return e, ok
}

// All returns every entry, in no particular order.
func (l *List) All() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	return out
}

// AtAddress returns every entry registered at (group, addr).
func (l *List) AtAddress(group, addr byte) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range l.entries {
		if e.Group == group && e.Addr == addr {
			out = append(out, e)
		}
	}
	return out
}
