// Package messenger implements the Messenger / Dispatch subsystem (C2) of
// spec.md §4.2: header verification, addressing, decode, routing to the
// profile/property subsystems, request ID correlation, and ACK/NAK
// emission.
package messenger

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"midici"
	"midici/profile"
	"midici/property"
	"midici/propchunk"
)

// Transport sends a stripped SysEx body (no F0/F7) on behalf of the
// Messenger; session.Session.Send satisfies this.
type Transport interface {
	Send(group byte, body []byte) error
}

// LocalInfo supplies the values this device answers Discovery with.
type LocalInfo interface {
	DeviceDetails() midici.DeviceDetails
	Categories() byte
	ReceivableMaxSysex() uint32
	OutputPathID() byte
	FunctionBlock() byte
}

// ConnectionEstablishedFunc is invoked the first time a remote MUID is
// observed, from a DiscoveryReply (spec.md §4.2 item 4).
type ConnectionEstablishedFunc func(conn *Connection)

// Messenger is the central inbound dispatcher and outbound Sender/
// RequestAllocator for one MidiCIDevice.
type Messenger struct {
	local     midici.MUID
	transport Transport
	info      LocalInfo
	log       *logrus.Entry

	conns *connections
	chunk *propchunk.Manager
	stats *stats

	profileHost  *profile.HostFacade
	propertyHost *property.HostFacade

	onConnect ConnectionEstablishedFunc
}

// New constructs a Messenger with its transport and Discovery info. Its
// server-side facades are attached afterward via SetHosts, since they are
// typically constructed with this Messenger passed back in as their
// Sender — a two-phase init that breaks the construction cycle.
func New(local midici.MUID, transport Transport, info LocalInfo, log *logrus.Entry) *Messenger {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Messenger{
		local:     local,
		transport: transport,
		info:      info,
		log:       log,
		conns:     newConnections(),
		chunk:     propchunk.New(),
		stats:     newStats(),
	}
}

// SetHosts attaches this device's server-side profile/property facades.
// HandleInbound will panic if called before this.
func (m *Messenger) SetHosts(profileHost *profile.HostFacade, propertyHost *property.HostFacade) {
	m.profileHost = profileHost
	m.propertyHost = propertyHost
}

// SetTransport attaches the outbound transport after construction, for
// callers (such as package device) whose transport itself needs this
// Messenger's HandleInbound as its inbound callback.
func (m *Messenger) SetTransport(transport Transport) {
	m.transport = transport
}

// OnConnectionEstablished registers a callback fired when a new remote
// MUID's Connection is created.
func (m *Messenger) OnConnectionEstablished(fn ConnectionEstablishedFunc) {
	m.onConnect = fn
}

// Send implements profile.Sender and property.Sender: it serializes msg
// and writes it to the transport. Broadcast-addressed messages go out as
// a single SysEx; the transport layer is responsible for any physical
// fan-out to multiple connected peers.
func (m *Messenger) Send(group byte, msg midici.Message) {
	m.stats.recordMessage("out", msg.SubID2())
	if ack, ok := msg.(midici.AckNak); ok && ack.SubID2() == midici.SubID2NAK {
		m.stats.recordNAK(ack.StatusCode)
	}
	if err := m.transport.Send(group, msg.Encode()); err != nil {
		m.log.WithError(err).WithField("subId2", midici.SubID2Name(msg.SubID2())).Warn("messenger: send failed")
	}
}

// AllocateRequestID implements profile.RequestAllocator and
// property.RequestAllocator.
func (m *Messenger) AllocateRequestID(remote midici.MUID) (byte, error) {
	return m.connectionFor(remote).reqAlloc.allocate()
}

// ReleaseRequestID implements profile.RequestAllocator and
// property.RequestAllocator.
func (m *Messenger) ReleaseRequestID(remote midici.MUID, id byte) {
	if conn, ok := m.conns.get(remote); ok {
		conn.reqAlloc.release(id)
	}
}

func (m *Messenger) connectionFor(remote midici.MUID) *Connection {
	return m.conns.getOrCreate(remote, func() *Connection {
		conn := &Connection{Remote: remote, reqAlloc: newRequestIDAllocator()}
		conn.Profile = profile.NewClientFacade(m.local, m, m)
		conn.Property = property.NewClientFacade(m.local, remote, m, m, nil)
		return conn
	})
}

// Connection returns the known connection for remote, if any.
func (m *Messenger) Connection(remote midici.MUID) (*Connection, bool) {
	return m.conns.get(remote)
}

// Connections returns every currently-known remote connection.
func (m *Messenger) Connections() []*Connection {
	return m.conns.all()
}

// PendingChunkCount reports the number of in-flight property chunk
// reassemblies, for metrics.
func (m *Messenger) PendingChunkCount() int {
	return m.chunk.Len()
}

// PendingRequestCount reports how many of the 127-slot request ID tables
// are currently occupied, summed across every known connection, for the
// midici_pending_requests metric (spec.md §4.11).
func (m *Messenger) PendingRequestCount() int {
	total := 0
	for _, conn := range m.conns.all() {
		total += conn.reqAlloc.count()
	}
	return total
}

// MessageCounts reports the cumulative midici_messages_total rows: one per
// (direction, sub-ID 2) pair seen since this Messenger was created.
func (m *Messenger) MessageCounts() []MessageCount {
	return m.stats.messageCounts()
}

// NAKCounts reports the cumulative midici_naks_total rows: one per NAK
// status code sent since this Messenger was created.
func (m *Messenger) NAKCounts() []NAKCount {
	return m.stats.nakCounts()
}

// HandleInbound processes one reassembled SysEx body (no F0/F7) arriving
// on group, implementing the full C2 dispatch rule set (spec.md §4.2).
func (m *Messenger) HandleInbound(group byte, body []byte) {
	h, _, herr := midici.DecodeHeader(body)
	if herr != nil {
		m.log.WithError(herr).Warn("messenger: malformed header, dropping")
		return
	}
	if !h.AddressedTo(m.local) {
		m.log.WithFields(logrus.Fields{"dest": h.Dest, "local": m.local}).Debug("messenger: not addressed to us, dropping")
		return
	}

	msg, err := midici.DecodeMessage(body)
	if err != nil {
		m.log.WithError(err).Warn("messenger: malformed body, sending NAK")
		m.Send(group, midici.NewMalformedMessageNAK(h.Addr, m.local, h.Source, h.SubID2))
		return
	}
	m.stats.recordMessage("in", h.SubID2)

	switch mm := msg.(type) {
	case midici.DiscoveryInquiry:
		m.handleDiscoveryInquiry(group, mm)
	case midici.DiscoveryReply:
		m.handleDiscoveryReply(mm)
	case midici.InvalidateMUID:
		m.handleInvalidateMUID(mm)

	case midici.ProfileInquiry:
		m.Send(group, m.profileHost.HandleInquiry(group, mm.Hdr.Addr, mm.Hdr.Source))
	case midici.ProfileSet:
		m.handleProfileSet(group, mm)
	case midici.ProfileDetailsInquiry:
		m.handleProfileDetailsInquiry(group, mm)

	case midici.ProfileInquiryReply, midici.ProfileEnableReport, midici.ProfileAddRemoveReport, midici.ProfileDetailsReply:
		m.dispatchProfileClient(group, h.Source, msg)

	case midici.PropertyExchange:
		m.handlePropertyExchange(group, mm)

	default:
		m.log.WithField("subId2", midici.SubID2Name(h.SubID2)).Debug("messenger: unhandled message kind")
	}
}

func (m *Messenger) handleDiscoveryInquiry(group byte, mm midici.DiscoveryInquiry) {
	reply := midici.DiscoveryReply{
		Hdr:                midici.Header{Addr: mm.Hdr.Addr, Version: midici.CIVersion, Source: m.local, Dest: mm.Hdr.Source},
		Details:            m.info.DeviceDetails(),
		Categories:         m.info.Categories(),
		ReceivableMaxSysex: m.info.ReceivableMaxSysex(),
		OutputPathID:       m.info.OutputPathID(),
		FunctionBlock:      m.info.FunctionBlock(),
	}
	m.Send(group, reply)
}

func (m *Messenger) handleDiscoveryReply(mm midici.DiscoveryReply) {
	_, existed := m.conns.get(mm.Hdr.Source)
	conn := m.connectionFor(mm.Hdr.Source)
	conn.Details = mm.Details
	conn.HasInfo = true
	if !existed && m.onConnect != nil {
		m.onConnect(conn)
	}
}

func (m *Messenger) handleInvalidateMUID(mm midici.InvalidateMUID) {
	if conn, ok := m.conns.remove(mm.Target); ok {
		conn.Property.PurgeOnInvalidate()
	}
	m.propertyHost.PurgeSubscriber(mm.Target)
}

func (m *Messenger) handleProfileSet(group byte, mm midici.ProfileSet) {
	if mm.On {
		m.profileHost.HandleSetOn(group, mm.Hdr.Addr, mm.ProfileId, mm.ChannelsRequested)
	} else {
		m.profileHost.HandleSetOff(group, mm.Hdr.Addr, mm.ProfileId, mm.ChannelsRequested)
	}
}

func (m *Messenger) handleProfileDetailsInquiry(group byte, mm midici.ProfileDetailsInquiry) {
	// This device has no profile-details store and no hook for a
	// profile-specific data provider, so it replies with an empty data blob
	// rather than silently dropping the inquiry.
	reply := midici.ProfileDetailsReply{
		Hdr:       midici.Header{Addr: mm.Hdr.Addr, Version: midici.CIVersion, Source: m.local, Dest: mm.Hdr.Source},
		ProfileId: mm.ProfileId,
		Target:    mm.Target,
	}
	m.Send(group, reply)
}

func (m *Messenger) dispatchProfileClient(group byte, remote midici.MUID, msg midici.Message) {
	conn := m.connectionFor(remote)
	if err := conn.Profile.ProcessReport(group, remote, msg); err != nil {
		m.log.WithError(err).Debug("messenger: profile client dispatch error")
	}
}

func (m *Messenger) handlePropertyExchange(group byte, mm midici.PropertyExchange) {
	source := mm.Hdr.Source
	var headerJSON, fullBody []byte
	if mm.ChunkIndex < mm.TotalChunks {
		if err := m.chunk.AddPendingChunk(time.Now(), source, mm.RequestId, mm.ChunkIndex, mm.HeaderJSON, mm.ChunkBody); err != nil {
			m.log.WithError(err).Warn("messenger: chunk out of sequence")
			m.Send(group, midici.NewChunksOutOfSequenceNAK(mm.Hdr.Addr, m.local, source, mm.SubID2Value))
			return
		}
		return // wait for the final chunk
	}
	header, body, err := m.chunk.FinishPendingChunk(source, mm.RequestId, mm.ChunkIndex, mm.HeaderJSON, mm.ChunkBody)
	if err != nil {
		m.log.WithError(err).Warn("messenger: chunk out of sequence at finish")
		m.Send(group, midici.NewChunksOutOfSequenceNAK(mm.Hdr.Addr, m.local, source, mm.SubID2Value))
		return
	}
	if header == nil {
		headerJSON, fullBody = mm.HeaderJSON, body
	} else {
		headerJSON, fullBody = header, body
	}

	switch mm.SubID2Value {
	case midici.SubID2GetPropertyData:
		replies, err := m.propertyHost.HandleGet(group, source, mm.Hdr.Addr, mm.RequestId, headerJSON, 0)
		m.sendOrLog(group, replies, err)
	case midici.SubID2SetPropertyData:
		replies, err := m.propertyHost.HandleSet(group, source, mm.Hdr.Addr, mm.RequestId, headerJSON, fullBody, 0)
		m.sendOrLog(group, replies, err)
	case midici.SubID2SubscribeProperty:
		replies, err := m.propertyHost.HandleSubscribe(group, source, mm.Hdr.Addr, mm.RequestId, headerJSON, 0)
		m.sendOrLog(group, replies, err)
	case midici.SubID2GetPropertyDataReply, midici.SubID2SetPropertyDataReply, midici.SubID2SubscribePropertyReply, midici.SubID2PropertyNotify:
		conn := m.connectionFor(source)
		if err := conn.Property.ProcessReply(mm.SubID2Value, mm.RequestId, headerJSON, fullBody); err != nil {
			m.log.WithError(err).Debug("messenger: property client dispatch error")
		}
	default:
		m.log.WithField("subId2", fmt.Sprintf("0x%02X", mm.SubID2Value)).Debug("messenger: unhandled property exchange sub-ID")
	}
}

// CleanupExpiredChunks evicts idle chunk-reassembly entries and NAKs each
// one's source so it knows to retry, per spec.md §4.6 "Cancellation /
// timeouts". idle <= 0 selects propchunk.DefaultIdleTimeout.
func (m *Messenger) CleanupExpiredChunks(group byte, now time.Time, idle time.Duration) {
	for _, k := range m.chunk.CleanupExpiredChunks(now, idle) {
		m.log.WithField("source", k.Source).WithField("requestId", k.ReqID).Warn("messenger: evicted stale chunk reassembly")
		m.Send(group, midici.NewChunksOutOfSequenceNAK(midici.AddrFunctionBlock, m.local, k.Source, midici.SubID2SetPropertyData))
	}
}

func (m *Messenger) sendOrLog(group byte, replies []midici.PropertyExchange, err error) {
	if err != nil {
		m.log.WithError(err).Warn("messenger: property host handler error")
		return
	}
	for _, r := range replies {
		m.Send(group, r)
	}
}
