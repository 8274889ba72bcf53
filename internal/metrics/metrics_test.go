package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"midici"
	"midici/device"
	"midici/session"
)

type fakeConfig struct{}

func (fakeConfig) DeviceDetails() midici.DeviceDetails { return midici.DeviceDetails{Family: 1} }
func (fakeConfig) Categories() byte                    { return 0x7F }
func (fakeConfig) ReceivableMaxSysex() uint32          { return 4096 }
func (fakeConfig) OutputPathID() byte                  { return 0 }
func (fakeConfig) FunctionBlock() byte                 { return 0x7F }
func (fakeConfig) DeviceInfoJSON() []byte              { return []byte(`{}`) }
func (fakeConfig) ChannelListJSON() []byte             { return []byte(`[]`) }
func (fakeConfig) JSONSchema() []byte                  { return []byte(`{}`) }

func collectMetrics(t *testing.T, c *DeviceCollector) []*dto.Metric {
	t.Helper()
	ch := make(chan prometheus.Metric, 16)
	c.Collect(ch)
	close(ch)

	var out []*dto.Metric
	for m := range ch {
		var dm dto.Metric
		require.NoError(t, m.Write(&dm))
		out = append(out, &dm)
	}
	return out
}

func TestDeviceCollectorDescribeEmitsFiveDescriptors(t *testing.T) {
	dev := device.New(midici.MUID(1), fakeConfig{}, session.ModeMIDI1, func([]byte) error { return nil }, nil, nil)
	c := NewDeviceCollector("dev-1", dev)

	ch := make(chan *prometheus.Desc, 16)
	c.Describe(ch)
	close(ch)

	var count int
	for range ch {
		count++
	}
	require.Equal(t, 5, count)
}

func TestDeviceCollectorCollectReportsZeroCountsForFreshDevice(t *testing.T) {
	dev := device.New(midici.MUID(1), fakeConfig{}, session.ModeMIDI1, func([]byte) error { return nil }, nil, nil)
	c := NewDeviceCollector("dev-1", dev)

	metrics := collectMetrics(t, c)
	// connections, pendingRequests, pendingChunks; no messages/NAKs seen yet.
	require.Len(t, metrics, 3)

	for _, m := range metrics {
		require.Equal(t, float64(0), m.GetGauge().GetValue())
	}
}

func TestDeviceCollectorCollectReflectsEstablishedConnection(t *testing.T) {
	dev := device.New(midici.MUID(1), fakeConfig{}, session.ModeMIDI1, func([]byte) error { return nil }, nil, nil)
	reply := midici.DiscoveryReply{
		Hdr: midici.Header{Addr: midici.AddrFunctionBlock, Version: midici.CIVersion, Source: midici.MUID(2), Dest: midici.MUID(1)},
	}
	framed := append([]byte{0xF0}, append(reply.Encode(), 0xF7)...)
	dev.OnMidi1Bytes(0, framed)

	c := NewDeviceCollector("dev-1", dev)
	metrics := collectMetrics(t, c)
	// connections, pendingRequests, pendingChunks (gauges) plus one
	// midici_messages_total row for the inbound Discovery Reply.
	require.Len(t, metrics, 4)
	require.Equal(t, float64(1), metrics[0].GetGauge().GetValue())

	var sawMessage bool
	for _, m := range metrics {
		if ctr := m.GetCounter(); ctr != nil {
			sawMessage = true
			require.Equal(t, float64(1), ctr.GetValue())
		}
	}
	require.True(t, sawMessage, "expected one midici_messages_total counter row")
}
