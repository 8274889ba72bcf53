// Package metrics exposes a MidiCIDevice's runtime state as Prometheus
// metrics via the custom-Collector pattern.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"midici"
	"midici/device"
)

// Exporter serves Prometheus metrics on a dedicated listen address/path.
type Exporter struct {
	Path   string // e.g. "/metrics"
	Listen string // e.g. ":9216"
}

// Start blocks serving the metrics endpoint until the listener fails.
func (e *Exporter) Start() error {
	mux := http.NewServeMux()
	mux.Handle(e.Path, promhttp.Handler())
	return http.ListenAndServe(e.Listen, mux)
}

// DeviceCollector reports live counts pulled from a MidiCIDevice, matching
// spec.md §4.11 exactly: known remote connections, request ID table
// occupancy, in-flight chunk reassemblies, and cumulative message/NAK
// counts by sub-ID 2/direction and status code.
type DeviceCollector struct {
	id  string
	dev *device.MidiCIDevice

	connections     *prometheus.Desc
	pendingRequests *prometheus.Desc
	pendingChunks   *prometheus.Desc
	messagesTotal   *prometheus.Desc
	naksTotal       *prometheus.Desc
}

// NewDeviceCollector builds a collector for dev, labeling every metric
// with id (e.g. the device's MUID in hex).
func NewDeviceCollector(id string, dev *device.MidiCIDevice) *DeviceCollector {
	return &DeviceCollector{
		id:  id,
		dev: dev,
		connections: prometheus.NewDesc(
			"midici_connections", "Known remote MIDI-CI connections", []string{"device"}, nil),
		pendingRequests: prometheus.NewDesc(
			"midici_pending_requests", "Occupied request ID table slots", []string{"device"}, nil),
		pendingChunks: prometheus.NewDesc(
			"midici_pending_chunks", "In-flight property chunk reassemblies", []string{"device"}, nil),
		messagesTotal: prometheus.NewDesc(
			"midici_messages_total", "Messages sent/received by sub-ID 2", []string{"device", "direction", "sub_id2"}, nil),
		naksTotal: prometheus.NewDesc(
			"midici_naks_total", "NAKs sent by status code", []string{"device", "status"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *DeviceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connections
	ch <- c.pendingRequests
	ch <- c.pendingChunks
	ch <- c.messagesTotal
	ch <- c.naksTotal
}

// Collect implements prometheus.Collector.
func (c *DeviceCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(len(c.dev.Connections())), c.id)
	ch <- prometheus.MustNewConstMetric(c.pendingRequests, prometheus.GaugeValue, float64(c.dev.PendingRequestCount()), c.id)
	ch <- prometheus.MustNewConstMetric(c.pendingChunks, prometheus.GaugeValue, float64(c.dev.PendingChunkCount()), c.id)

	for _, row := range c.dev.MessageCounts() {
		ch <- prometheus.MustNewConstMetric(c.messagesTotal, prometheus.CounterValue,
			float64(row.Count), c.id, row.Direction, midici.SubID2Name(row.SubID2))
	}
	for _, row := range c.dev.NAKCounts() {
		ch <- prometheus.MustNewConstMetric(c.naksTotal, prometheus.CounterValue,
			float64(row.Count), c.id, fmt.Sprintf("0x%02X", row.Status))
	}
}
