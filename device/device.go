// Package device implements the MidiCIDevice aggregate of spec.md §3: the
// per-local-endpoint object wiring the Messenger (C2), Profile Host (C3),
// Property Host (C4), and transport Session (C9) together behind a single
// public API.
//
// The core is single-threaded cooperative per device (spec.md §5): every
// public method acquires the device's mutex before touching state, and
// internal helpers assume it is already held. The mutex is a plain
// sync.Mutex, not a recursive one: callbacks such as those registered with
// OnConnectionEstablished run while it is held, and a callback that calls
// one of the device's public methods deadlocks.
package device

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"midici"
	"midici/messenger"
	"midici/profile"
	"midici/property"
	"midici/session"
)

// Config supplies the fields this device answers Discovery and Property
// Get with.
type Config interface {
	property.SystemConfig
	messenger.LocalInfo
}

// MidiCIDevice is one local MIDI-CI endpoint.
type MidiCIDevice struct {
	mu sync.Mutex

	local  midici.MUID
	config Config
	log    *logrus.Entry

	session   *session.Session
	messenger *messenger.Messenger

	ProfileHost  *profile.HostFacade
	PropertyHost *property.HostFacade
}

// New constructs a device addressed as local, wired to a transport. mode,
// byteSend and wordSend select and drive the underlying session.Session;
// see package session for their semantics.
func New(local midici.MUID, config Config, mode session.Mode, byteSend session.ByteSender, wordSend session.WordSender, log *logrus.Entry) *MidiCIDevice {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	d := &MidiCIDevice{local: local, config: config, log: log}

	// The session needs the messenger's HandleInbound as its callback, and
	// the messenger needs the session as its outbound Transport — two-phase
	// construction breaks the cycle the same way Messenger/HostFacade does.
	d.messenger = messenger.New(local, nil, config, log.WithField("component", "messenger"))
	d.session = session.New(mode, byteSend, wordSend, d.messenger.HandleInbound, d.logOther, log.WithField("component", "session"))
	d.messenger.SetTransport(d.session)

	d.ProfileHost = profile.NewHostFacade(local, d.messenger)
	d.PropertyHost = property.NewHostFacade(local, d.messenger, config)
	d.messenger.SetHosts(d.ProfileHost, d.PropertyHost)

	return d
}

func (d *MidiCIDevice) logOther(group byte, body []byte) {
	d.log.WithField("group", group).WithField("bytes", len(body)).Debug("device: non-CI sysex ignored")
}

// LocalMUID returns this device's own MUID.
func (d *MidiCIDevice) LocalMUID() midici.MUID { return d.local }

// OnMidi1Bytes feeds one complete, F0/F7-framed SysEx message from a MIDI
// 1.0 byte-stream transport (spec.md §6 "onMidi1Bytes").
func (d *MidiCIDevice) OnMidi1Bytes(group byte, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session.OnBytes(data)
}

// OnUmpWords feeds a run of UMP words from a UMP transport (spec.md §6
// "onUmpWords").
func (d *MidiCIDevice) OnUmpWords(words []uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session.OnWords(words)
}

// SendDiscoveryInquiry broadcasts a Discovery Inquiry for group/addr using
// this device's configured details.
func (d *MidiCIDevice) SendDiscoveryInquiry(group, addr byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	hdr := midici.Header{Addr: addr, Version: midici.CIVersion, Source: d.local, Dest: midici.BroadcastMUID}
	d.messenger.Send(group, midici.DiscoveryInquiry{
		Hdr:                hdr,
		Details:            d.config.DeviceDetails(),
		Categories:         d.config.Categories(),
		ReceivableMaxSysex: d.config.ReceivableMaxSysex(),
		OutputPathID:       d.config.OutputPathID(),
	})
}

// OnConnectionEstablished registers a callback fired when a Discovery
// Reply introduces a previously-unknown remote MUID.
func (d *MidiCIDevice) OnConnectionEstablished(fn func(conn *messenger.Connection)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messenger.OnConnectionEstablished(fn)
}

// Connection returns the known connection state for remote, if any.
func (d *MidiCIDevice) Connection(remote midici.MUID) (*messenger.Connection, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.messenger.Connection(remote)
}

// Connections returns every currently-known remote connection, for
// metrics and diagnostics.
func (d *MidiCIDevice) Connections() []*messenger.Connection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.messenger.Connections()
}

// PendingChunkCount reports the number of in-flight property chunk
// reassemblies, for metrics.
func (d *MidiCIDevice) PendingChunkCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.messenger.PendingChunkCount()
}

// PendingRequestCount reports the total occupancy of every connection's
// 127-slot request ID table, for the midici_pending_requests metric.
func (d *MidiCIDevice) PendingRequestCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.messenger.PendingRequestCount()
}

// MessageCounts reports the cumulative midici_messages_total rows.
func (d *MidiCIDevice) MessageCounts() []messenger.MessageCount {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.messenger.MessageCounts()
}

// NAKCounts reports the cumulative midici_naks_total rows.
func (d *MidiCIDevice) NAKCounts() []messenger.NAKCount {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.messenger.NAKCounts()
}

// InvalidateRemote announces that remote's MUID is no longer valid,
// broadcasting InvalidateMUID and purging every local record of it
// (spec.md §5 "InvalidateMUID causes immediate abandonment").
func (d *MidiCIDevice) InvalidateRemote(group, addr byte, remote midici.MUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	hdr := midici.Header{Addr: addr, Version: midici.CIVersion, Source: d.local, Dest: midici.BroadcastMUID}
	d.messenger.Send(group, midici.InvalidateMUID{Hdr: hdr, Target: remote})
	d.messenger.HandleInbound(group, midici.InvalidateMUID{Hdr: hdr, Target: remote}.Encode())
}

// CleanupExpiredChunks evicts idle chunk-reassembly entries older than
// idle (0 selects propchunk.DefaultIdleTimeout), for a caller-driven timer
// (spec.md §5 "Cancellation / timeouts").
func (d *MidiCIDevice) CleanupExpiredChunks(group byte, idle time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messenger.CleanupExpiredChunks(group, time.Now(), idle)
}
