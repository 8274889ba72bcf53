// Package logging adapts the gateway's template-driven logrus wrapper to
// MIDI-CI event types, with an optional async push to Loki.
package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Manager owns a set of named message templates and an optional Loki
// sink that log entries are mirrored to asynchronously.
type Manager struct {
	Templates map[string]string
	Loki      *LokiClient
	channel   chan *Entry
	wg        sync.WaitGroup
}

// Entry is one structured log event.
type Entry struct {
	Message        string                 `json:"message,omitempty"`
	Error          error                  `json:"error,omitempty"`
	Type           string                 `json:"type,omitempty"`
	Level          logrus.Level           `json:"level,omitempty"`
	AdditionalData map[string]interface{} `json:"additional_data,omitempty"`
	Timestamp      time.Time              `json:"timestamp,omitempty"`
}

// LokiClient pushes log lines to a Grafana Loki push-API endpoint.
type LokiClient struct {
	PushURL  string
	Username string
	Password string
}

type lokiPushData struct {
	Streams []lokiStream `json:"streams"`
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// NewLokiClient constructs a client for pushURL, optionally authenticated.
func NewLokiClient(pushURL, username, password string) *LokiClient {
	return &LokiClient{PushURL: pushURL, Username: username, Password: password}
}

// Push sends one log line to Loki under labels.
func (c *LokiClient) Push(labels map[string]string, at time.Time, line string) error {
	payload := lokiPushData{Streams: []lokiStream{{
		Stream: labels,
		Values: [][2]string{{strconv.FormatInt(at.UnixNano(), 10), line}},
	}}}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal loki payload: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.PushURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to build loki request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Username != "" && c.Password != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach loki: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected response from loki: %d", resp.StatusCode)
	}
	return nil
}

// NewManager constructs a Manager with the MIDI-CI event templates loaded.
// loki may be nil, in which case entries are only printed via logrus.
func NewManager(loki *LokiClient) *Manager {
	m := &Manager{
		Templates: make(map[string]string),
		Loki:      loki,
		channel:   make(chan *Entry),
	}
	m.loadTemplates()
	m.wg.Add(1)
	go m.drain()
	return m
}

func (m *Manager) loadTemplates() {
	templates := map[string]string{
		"DiscoveryTimeout":       "No Discovery Reply received from MUID %08X within %s.",
		"MalformedHeader":        "Dropped malformed MIDI-CI header: %s",
		"UnknownSubID2":          "Unhandled sub-ID 2 0x%02X from MUID %08X",
		"RequestIDExhausted":     "No free request IDs for MUID %08X",
		"ChunkOutOfSequence":     "Chunk reassembly out of sequence for MUID %08X request %d",
		"ChunkEvicted":           "Evicted stale chunk reassembly for MUID %08X request %d after %s idle",
		"ProfileNotAdded":        "Profile %x not present at group %d addr %d; ignoring Set",
		"PropertyResourceMissing": "Property resource %q not found",
		"PropertySetRejected":    "Property Set rejected for resource %q: %s",
		"SubscriptionPurged":     "Purged subscriptions for invalidated MUID %08X",
		"TransportSendFailed":    "Transport send failed: %s",
	}
	for name, tmpl := range templates {
		m.Templates[strings.ToUpper(name)] = tmpl
	}
}

// Build formats templateName with args into a new Entry tagged with
// eventType, level and fields, ready for Send.
func (m *Manager) Build(eventType, templateName string, level logrus.Level, fields map[string]interface{}, args ...interface{}) *Entry {
	return &Entry{
		Message:        m.format(templateName, args...),
		Type:           strings.ToUpper(eventType),
		Level:          level,
		AdditionalData: fields,
		Timestamp:      time.Now(),
	}
}

func (m *Manager) format(templateName string, args ...interface{}) string {
	tmpl, ok := m.Templates[strings.ToUpper(templateName)]
	if !ok {
		return fmt.Sprintf("template %q not found", templateName)
	}
	return fmt.Sprintf(tmpl, args...)
}

// AddField attaches one more field to an already-built Entry.
func (e *Entry) AddField(key string, value interface{}) {
	if e.AdditionalData == nil {
		e.AdditionalData = make(map[string]interface{})
	}
	e.AdditionalData[key] = value
}

// Send prints e via logrus immediately and queues it for the Loki sink.
func (m *Manager) Send(e *Entry) {
	e.print()
	if m.Loki != nil {
		m.channel <- e
	}
}

func (m *Manager) drain() {
	defer m.wg.Done()
	for e := range m.channel {
		labels := map[string]string{
			"job":       "midici-gateway",
			"server_id": os.Getenv("SERVER_ID"),
			"type":      e.Type,
		}
		if err := m.Loki.Push(labels, e.Timestamp, e.json()); err != nil {
			logrus.WithError(err).Error("logging: failed to push to loki")
		}
	}
}

func (e *Entry) print() {
	entry := logrus.WithFields(logrus.Fields{
		"type": e.Type,
		"time": e.Timestamp.Format(time.RFC3339),
	})
	for k, v := range e.AdditionalData {
		entry = entry.WithField(k, v)
	}
	if e.Error != nil {
		entry = entry.WithError(e.Error)
	}
	switch e.Level {
	case logrus.ErrorLevel:
		entry.Error(e.Message)
	case logrus.WarnLevel:
		entry.Warn(e.Message)
	case logrus.DebugLevel:
		entry.Debug(e.Message)
	default:
		entry.Info(e.Message)
	}
}

func (e *Entry) json() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf("error serializing log: %v", err)
	}
	return string(data)
}

// Close drains and stops the Loki sink goroutine.
func (m *Manager) Close() {
	close(m.channel)
	m.wg.Wait()
}
