package messenger

import (
	"sync"

	"midici"
	"midici/profile"
	"midici/property"
)

// Connection is the per-remote-MUID state owned by the Messenger (spec.md
// §3 "ClientConnection"): the remote's cached device details and the two
// client facades that mirror its profile/property state.
type Connection struct {
	Remote  midici.MUID
	Details midici.DeviceDetails
	HasInfo bool

	Profile  *profile.ClientFacade
	Property *property.ClientFacade

	reqAlloc *requestIDAllocator
}

// connections is the Messenger's table of known remotes, created lazily on
// first contact and dropped on InvalidateMUID.
type connections struct {
	mu    sync.Mutex
	byID  map[midici.MUID]*Connection
}

func newConnections() *connections {
	return &connections{byID: make(map[midici.MUID]*Connection)}
}

func (c *connections) get(remote midici.MUID) (*Connection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.byID[remote]
	return conn, ok
}

func (c *connections) getOrCreate(remote midici.MUID, build func() *Connection) *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.byID[remote]; ok {
		return conn
	}
	conn := build()
	c.byID[remote] = conn
	return conn
}

func (c *connections) remove(remote midici.MUID) (*Connection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.byID[remote]
	delete(c.byID, remote)
	return conn, ok
}

func (c *connections) all() []*Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Connection, 0, len(c.byID))
	for _, conn := range c.byID {
		out = append(out, conn)
	}
	return out
}
