package messenger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"midici"
	"midici/profile"
	"midici/property"
)

type fakeTransport struct {
	sent [][]byte
}

func (f *fakeTransport) Send(group byte, body []byte) error {
	f.sent = append(f.sent, body)
	return nil
}

type fakeInfo struct{}

func (fakeInfo) DeviceDetails() midici.DeviceDetails { return midici.DeviceDetails{Family: 1} }
func (fakeInfo) Categories() byte                    { return 0x7F }
func (fakeInfo) ReceivableMaxSysex() uint32          { return 4096 }
func (fakeInfo) OutputPathID() byte                  { return 0 }
func (fakeInfo) FunctionBlock() byte                 { return 0x7F }

func newTestMessenger(t *testing.T) (*Messenger, *fakeTransport) {
	t.Helper()
	transport := &fakeTransport{}
	m := New(midici.MUID(1), transport, fakeInfo{}, nil)
	profileHost := profile.NewHostFacade(midici.MUID(1), m)
	propertyHost := property.NewHostFacade(midici.MUID(1), m, fakeSystemConfig{})
	m.SetHosts(profileHost, propertyHost)
	return m, transport
}

type fakeSystemConfig struct{}

func (fakeSystemConfig) DeviceInfoJSON() []byte  { return []byte(`{}`) }
func (fakeSystemConfig) ChannelListJSON() []byte { return []byte(`[]`) }
func (fakeSystemConfig) JSONSchema() []byte      { return []byte(`{}`) }

func TestHandleInboundDiscoveryInquiryRepliesWithDiscoveryReply(t *testing.T) {
	m, transport := newTestMessenger(t)
	inq := midici.DiscoveryInquiry{
		Hdr: midici.Header{Addr: midici.AddrFunctionBlock, Version: midici.CIVersion, Source: midici.MUID(2), Dest: midici.BroadcastMUID},
	}
	m.HandleInbound(0, inq.Encode())

	require.Len(t, transport.sent, 1)
	decoded, err := midici.DecodeMessage(transport.sent[0])
	require.NoError(t, err)
	reply, ok := decoded.(midici.DiscoveryReply)
	require.True(t, ok)
	require.Equal(t, midici.MUID(1), reply.Hdr.Source)
}

func TestHandleInboundDropsMessageNotAddressedToUs(t *testing.T) {
	m, transport := newTestMessenger(t)
	inq := midici.DiscoveryInquiry{
		Hdr: midici.Header{Addr: midici.AddrFunctionBlock, Version: midici.CIVersion, Source: midici.MUID(2), Dest: midici.MUID(99)},
	}
	m.HandleInbound(0, inq.Encode())
	require.Empty(t, transport.sent)
}

func TestHandleInboundDiscoveryReplyEstablishesConnectionOnce(t *testing.T) {
	m, _ := newTestMessenger(t)
	var established int
	m.OnConnectionEstablished(func(c *Connection) { established++ })

	reply := midici.DiscoveryReply{
		Hdr:     midici.Header{Addr: midici.AddrFunctionBlock, Version: midici.CIVersion, Source: midici.MUID(2), Dest: midici.MUID(1)},
		Details: midici.DeviceDetails{Family: 5},
	}
	m.HandleInbound(0, reply.Encode())
	m.HandleInbound(0, reply.Encode())

	require.Equal(t, 1, established)
	conn, ok := m.Connection(midici.MUID(2))
	require.True(t, ok)
	require.True(t, conn.HasInfo)
}

func TestHandleInboundMalformedBodySendsNAK(t *testing.T) {
	m, transport := newTestMessenger(t)
	h := midici.Header{Addr: midici.AddrFunctionBlock, SubID2: midici.SubID2DiscoveryInquiry, Version: midici.CIVersion, Source: midici.MUID(2), Dest: midici.MUID(1)}
	m.HandleInbound(0, h.Encode()) // header only, no DiscoveryInquiry body

	require.Len(t, transport.sent, 1)
	decoded, err := midici.DecodeMessage(transport.sent[0])
	require.NoError(t, err)
	_, ok := decoded.(midici.AckNak)
	require.True(t, ok)
}

func TestInvalidateMUIDRemovesConnectionAndPurgesSubscriptions(t *testing.T) {
	m, _ := newTestMessenger(t)
	reply := midici.DiscoveryReply{
		Hdr: midici.Header{Addr: midici.AddrFunctionBlock, Version: midici.CIVersion, Source: midici.MUID(2), Dest: midici.MUID(1)},
	}
	m.HandleInbound(0, reply.Encode())
	_, ok := m.Connection(midici.MUID(2))
	require.True(t, ok)

	inv := midici.InvalidateMUID{
		Hdr:    midici.Header{Addr: midici.AddrFunctionBlock, Version: midici.CIVersion, Source: midici.MUID(2), Dest: midici.MUID(1)},
		Target: midici.MUID(2),
	}
	m.HandleInbound(0, inv.Encode())
	_, ok = m.Connection(midici.MUID(2))
	require.False(t, ok)
}

func TestAllocateAndReleaseRequestID(t *testing.T) {
	m, _ := newTestMessenger(t)
	id, err := m.AllocateRequestID(midici.MUID(5))
	require.NoError(t, err)
	m.ReleaseRequestID(midici.MUID(5), id)
}

func TestPendingChunkCountReflectsInFlightReassembly(t *testing.T) {
	m, _ := newTestMessenger(t)
	require.Equal(t, 0, m.PendingChunkCount())
}
