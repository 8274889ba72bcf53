// Package eventbus publishes MIDI-CI device lifecycle events (connection
// established, MUID invalidated, profile state changed) to RabbitMQ for
// external consumers, with the teacher's auto-reconnect client shape.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	reconnectDelay = 5 * time.Second
	reInitDelay    = 2 * time.Second
)

// EventType names a lifecycle event published to the bus.
type EventType string

const (
	EventConnectionEstablished EventType = "connection_established"
	EventMUIDInvalidated       EventType = "muid_invalidated"
	EventProfileChanged        EventType = "profile_changed"
	EventPropertyChanged       EventType = "property_changed"
)

// Event is the payload published for every device lifecycle change.
type Event struct {
	Type      EventType       `json:"type"`
	LocalMUID uint32          `json:"local_muid"`
	Remote    uint32          `json:"remote_muid,omitempty"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	At        time.Time       `json:"at"`
}

// Client is an auto-reconnecting AMQP publisher/consumer bound to one
// durable queue of device events.
type Client struct {
	mu              sync.Mutex
	queue           string
	log             *logrus.Entry
	connection      *amqp.Connection
	channel         *amqp.Channel
	done            chan struct{}
	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error
	notifyConfirm   chan amqp.Confirmation
	isReady         bool
}

// NewClient dials addr in the background and keeps reconnecting until
// Close is called.
func NewClient(addr, queue string, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Client{
		queue: queue,
		log:   log,
		done:  make(chan struct{}),
	}
	go c.handleReconnect(addr)
	return c
}

func (c *Client) handleReconnect(addr string) {
	for {
		c.mu.Lock()
		c.isReady = false
		c.mu.Unlock()

		c.log.Info("eventbus: connecting")
		conn, err := c.connect(addr)
		if err != nil {
			c.log.WithError(err).Warn("eventbus: connect failed, retrying")
			select {
			case <-c.done:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}
		if done := c.handleReInit(conn); done {
			return
		}
	}
}

func (c *Client) connect(addr string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		return nil, err
	}
	c.changeConnection(conn)
	c.log.Info("eventbus: connected")
	return conn, nil
}

func (c *Client) handleReInit(conn *amqp.Connection) bool {
	for {
		c.mu.Lock()
		c.isReady = false
		c.mu.Unlock()

		if err := c.init(conn); err != nil {
			c.log.WithError(err).Warn("eventbus: channel init failed, retrying")
			select {
			case <-c.done:
				return true
			case <-c.notifyConnClose:
				return false
			case <-time.After(reInitDelay):
			}
			continue
		}
		select {
		case <-c.done:
			return true
		case <-c.notifyConnClose:
			return false
		case <-c.notifyChanClose:
			c.log.Warn("eventbus: channel closed, re-initializing")
		}
	}
}

func (c *Client) init(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.Confirm(false); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("eventbus: declare queue %q: %w", c.queue, err)
	}
	c.changeChannel(ch)
	c.mu.Lock()
	c.isReady = true
	c.mu.Unlock()
	return nil
}

func (c *Client) changeConnection(conn *amqp.Connection) {
	c.connection = conn
	c.notifyConnClose = make(chan *amqp.Error, 1)
	c.connection.NotifyClose(c.notifyConnClose)
}

func (c *Client) changeChannel(ch *amqp.Channel) {
	c.channel = ch
	c.notifyChanClose = make(chan *amqp.Error, 1)
	c.notifyConfirm = make(chan amqp.Confirmation, 1)
	c.channel.NotifyClose(c.notifyChanClose)
	c.channel.NotifyPublish(c.notifyConfirm)
}

// Publish emits one Event. at is stamped by the caller so eventbus never
// touches the wall clock itself.
func (c *Client) Publish(ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventbus: marshal event: %w", err)
	}
	return c.unsafePublish(body)
}

func (c *Client) unsafePublish(data []byte) error {
	c.mu.Lock()
	ready, ch := c.isReady, c.channel
	c.mu.Unlock()
	if !ready || ch == nil {
		return fmt.Errorf("eventbus: not ready")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return ch.PublishWithContext(ctx, "", c.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        data,
	})
}

// Consume starts delivering messages from the configured queue.
func (c *Client) Consume() (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isReady || c.channel == nil {
		return nil, fmt.Errorf("eventbus: not ready")
	}
	if err := c.channel.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("eventbus: set QoS: %w", err)
	}
	return c.channel.Consume(c.queue, "", false, false, false, false, nil)
}

// Close shuts down the channel and connection and stops reconnecting.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isReady {
		if c.done != nil {
			select {
			case <-c.done:
			default:
				close(c.done)
			}
		}
		return fmt.Errorf("eventbus: already closed")
	}
	close(c.done)
	if err := c.channel.Close(); err != nil {
		return err
	}
	if err := c.connection.Close(); err != nil {
		return err
	}
	c.isReady = false
	return nil
}
