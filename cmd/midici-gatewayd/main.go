// Command midici-gatewayd wires a MidiCIDevice to a MIDI 1.0 byte-stream
// TCP listener, a Postgres/Mongo-backed persistence layer, a RabbitMQ
// lifecycle event bus, Prometheus metrics, and a small debug HTTP API.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/kataras/iris/v12"
	"github.com/pires/go-proxyproto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"midici"
	"midici/device"
	"midici/internal/config"
	"midici/internal/eventbus"
	"midici/internal/logging"
	"midici/internal/metrics"
	"midici/internal/store"
	"midici/messenger"
	"midici/session"
)

// deviceRegistry is the process-wide table of per-connection devices,
// read by the debug HTTP handler and written by the accept loop.
type deviceRegistry struct {
	mu   sync.Mutex
	byID map[string]*device.MidiCIDevice
}

func newDeviceRegistry() *deviceRegistry {
	return &deviceRegistry{byID: make(map[string]*device.MidiCIDevice)}
}

func (r *deviceRegistry) put(addr string, dev *device.MidiCIDevice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[addr] = dev
}

func (r *deviceRegistry) remove(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, addr)
}

func (r *deviceRegistry) snapshot() map[string]*device.MidiCIDevice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*device.MidiCIDevice, len(r.byID))
	for k, v := range r.byID {
		out[k] = v
	}
	return out
}

// localInfo is the fixed Discovery/Config answer this gateway advertises.
type localInfo struct {
	details midici.DeviceDetails
}

func (l localInfo) DeviceDetails() midici.DeviceDetails { return l.details }
func (l localInfo) Categories() byte                    { return 0x7F }
func (l localInfo) ReceivableMaxSysex() uint32           { return 4096 }
func (l localInfo) OutputPathID() byte                   { return 0 }
func (l localInfo) FunctionBlock() byte                  { return 0x7F }
func (l localInfo) DeviceInfoJSON() []byte               { return []byte(`{}`) }
func (l localInfo) ChannelListJSON() []byte              { return []byte(`[]`) }
func (l localInfo) JSONSchema() []byte                   { return []byte(`{}`) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("midici-gatewayd: config load failed")
	}

	lokiClient := logging.NewLokiClient(cfg.LokiURL, cfg.LokiUsername, cfg.LokiPassword)
	logMgr := logging.NewManager(lokiClient)
	defer logMgr.Close()

	deviceStore, err := store.OpenDeviceStore(cfg.PostgresDSN)
	if err != nil {
		logrus.WithError(err).Fatal("midici-gatewayd: postgres store failed")
	}
	catalog, err := store.OpenCatalogCache(cfg.MongoURI, "midici", "catalog_cache")
	if err != nil {
		logrus.WithError(err).Fatal("midici-gatewayd: mongo catalog cache failed")
	}

	bus := eventbus.NewClient(cfg.AMQPAddr, cfg.AMQPQueue, logrus.NewEntry(logrus.StandardLogger()).WithField("component", "eventbus"))
	defer bus.Close()

	local := midici.MUID(cfg.LocalMUIDSeed)
	info := localInfo{details: midici.DeviceDetails{}}

	// One MidiCIDevice per accepted MIDI 1.0 byte-stream connection; each
	// connection gets its own Session/Messenger pair but shares the
	// process-wide store/bus/metrics wiring above.
	devices := newDeviceRegistry()

	listener, err := net.Listen("tcp", cfg.MIDI1Addr)
	if err != nil {
		logrus.WithError(err).Fatal("midici-gatewayd: listen failed")
	}
	proxyListener := &proxyproto.Listener{Listener: listener}
	defer proxyListener.Close()

	go acceptLoop(proxyListener, local, info, devices, deviceStore, catalog, bus, logMgr)

	app := iris.New()
	setupDebugRoutes(app, devices)
	metricsExporter := &metrics.Exporter{Path: "/metrics", Listen: cfg.MetricsAddr}
	go func() {
		if err := metricsExporter.Start(); err != nil {
			logrus.WithError(err).Error("midici-gatewayd: metrics server stopped")
		}
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		logrus.WithError(err).Fatal("midici-gatewayd: debug http server stopped")
	}
}

func acceptLoop(ln net.Listener, local midici.MUID, info localInfo, devices *deviceRegistry, deviceStore *store.DeviceStore, catalog *store.CatalogCache, bus *eventbus.Client, logMgr *logging.Manager) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			logrus.WithError(err).Warn("midici-gatewayd: accept failed")
			return
		}
		go serveConnection(conn, local, info, devices, deviceStore, catalog, bus, logMgr)
	}
}

func serveConnection(conn net.Conn, local midici.MUID, info localInfo, devices *deviceRegistry, deviceStore *store.DeviceStore, catalog *store.CatalogCache, bus *eventbus.Client, logMgr *logging.Manager) {
	defer conn.Close()
	log := logrus.WithField("remoteAddr", conn.RemoteAddr().String())

	byteSend := func(data []byte) error {
		_, err := conn.Write(data)
		return err
	}
	dev := device.New(local, info, session.ModeMIDI1, byteSend, nil, log)
	addr := conn.RemoteAddr().String()
	devices.put(addr, dev)
	defer func() {
		for _, c := range dev.Connections() {
			if err := catalog.Purge(context.Background(), uint32(c.Remote)); err != nil {
				log.WithError(err).Debug("midici-gatewayd: failed to purge catalog cache")
			}
		}
		devices.remove(addr)
	}()

	collector := metrics.NewDeviceCollector(addr, dev)
	if err := prometheus.Register(collector); err != nil {
		log.WithError(err).Warn("midici-gatewayd: metrics collector registration failed")
	} else {
		defer prometheus.Unregister(collector)
	}

	dev.OnConnectionEstablished(func(c *messenger.Connection) {
		entry := logMgr.Build("DiscoveryReply", "AuthSuccess", logrus.InfoLevel, map[string]interface{}{
			"remoteMuid": fmt.Sprintf("%08X", uint32(c.Remote)),
		})
		logMgr.Send(entry)

		rec := &store.RemoteDevice{
			MUID:         uint32(c.Remote),
			Manufacturer: c.Details.Manufacturer[:],
			Family:       c.Details.Family,
			Model:        c.Details.Model,
			Revision:     c.Details.Revision,
		}
		if err := deviceStore.Upsert(rec); err != nil {
			log.WithError(err).Warn("midici-gatewayd: failed to persist remote device")
		}
		if err := bus.Publish(eventbus.Event{Type: eventbus.EventConnectionEstablished, LocalMUID: uint32(local), Remote: uint32(c.Remote), At: time.Now()}); err != nil {
			log.WithError(err).Debug("midici-gatewayd: eventbus publish failed")
		}
	})

	dev.SendDiscoveryInquiry(0, midici.AddrFunctionBlock)

	reader := bufio.NewReader(conn)
	for {
		msg, err := readSysEx(reader)
		if err != nil {
			log.WithError(err).Debug("midici-gatewayd: connection closed")
			return
		}
		dev.OnMidi1Bytes(0, msg)
	}
}

// readSysEx reads one F0...F7-framed SysEx message from r.
func readSysEx(r *bufio.Reader) ([]byte, error) {
	if _, err := r.ReadBytes(0xF0); err != nil {
		return nil, err
	}
	body, err := r.ReadBytes(0xF7)
	if err != nil {
		return nil, err
	}
	return append([]byte{0xF0}, body...), nil
}

func setupDebugRoutes(app *iris.Application, devices *deviceRegistry) {
	api := app.Party("/debug", basicAuthMiddleware)
	api.Get("/connections", func(ctx iris.Context) {
		type connSummary struct {
			RemoteAddr  string `json:"remote_addr"`
			Connections int    `json:"connections"`
			Profiles    int    `json:"profile_entries"`
			Subscribers int    `json:"property_subscribers"`
		}
		var out []connSummary
		for addr, dev := range devices.snapshot() {
			out = append(out, connSummary{
				RemoteAddr:  addr,
				Connections: len(dev.Connections()),
				Profiles:    len(dev.ProfileHost.List.All()),
				Subscribers: dev.PropertyHost.SubscriberCount(),
			})
		}
		ctx.JSON(out)
	})
}

func basicAuthMiddleware(ctx iris.Context) {
	expected := os.Getenv("API_KEY")
	if expected == "" {
		ctx.StatusCode(iris.StatusInternalServerError)
		ctx.WriteString("API_KEY not configured")
		return
	}
	_, password, ok := ctx.Request().BasicAuth()
	if !ok || password != expected {
		ctx.Header("WWW-Authenticate", `Basic realm="midici-gatewayd"`)
		ctx.StatusCode(iris.StatusUnauthorized)
		ctx.WriteString("unauthorized")
		return
	}
	ctx.Next()
}
