package profile

import (
	"fmt"
	"sync"

	"midici"
)

// RequestAllocator allocates and releases the per-connection 7-bit request
// ID used to correlate a ProfileDetailsInquiry with its reply (spec.md
// §4.2 "Request ID assignment"). The messenger implements this.
type RequestAllocator interface {
	AllocateRequestID(remote midici.MUID) (byte, error)
	ReleaseRequestID(remote midici.MUID, id byte)
}

// DetailsCallback is invoked once with the result of a
// RequestProfileDetails call (spec.md §4.3: "returns a future completed by
// a ProfileDetailsReply").
type DetailsCallback func(target byte, data []byte, err error)

// pendingKey correlates a ProfileDetailsReply with its inquiry.
// ProfileDetailsReply carries no requestId field on the wire (spec.md
// §4.1), so the key is the triple that reply actually echoes back:
// remote MUID, profile ID, and target.
type pendingKey struct {
	remote    midici.MUID
	profileId midici.ProfileId
	target    byte
}

// pendingDetails is one outstanding RequestProfileDetails call: its
// callback plus the request ID slot reserved for it, released only once
// the reply actually resolves the callback.
type pendingDetails struct {
	reqID byte
	cb    DetailsCallback
}

// ClientFacade mirrors a remote device's profile state by processing its
// report messages, and lets the local application request profile changes
// on the remote (spec.md §4.3).
type ClientFacade struct {
	local  midici.MUID
	sender Sender
	alloc  RequestAllocator

	List *List

	mu      sync.Mutex
	pending map[pendingKey]pendingDetails
}

// NewClientFacade returns a ClientFacade for one remote connection.
func NewClientFacade(local midici.MUID, sender Sender, alloc RequestAllocator) *ClientFacade {
	return &ClientFacade{
		local:   local,
		sender:  sender,
		alloc:   alloc,
		List:    NewList(),
		pending: make(map[pendingKey]pendingDetails),
	}
}

// SetProfile sends ProfileSetOn/Off to the remote. The local cache is
// updated only once the matching report arrives, via ProcessReport.
func (c *ClientFacade) SetProfile(group, addr byte, remote midici.MUID, id midici.ProfileId, enabled bool, channels uint16) {
	hdr := midici.Header{Addr: addr, Version: midici.CIVersion, Source: c.local, Dest: remote}
	c.sender.Send(group, midici.ProfileSet{Hdr: hdr, On: enabled, ProfileId: id, ChannelsRequested: channels})
}

// RequestProfileDetails sends a ProfileDetailsInquiry and registers cb to
// be invoked when the matching ProfileDetailsReply (or a timeout elsewhere
// in the stack) resolves it.
func (c *ClientFacade) RequestProfileDetails(group, addr byte, remote midici.MUID, id midici.ProfileId, target byte, cb DetailsCallback) error {
	reqID, err := c.alloc.AllocateRequestID(remote)
	if err != nil {
		return err
	}
	key := pendingKey{remote, id, target}
	c.mu.Lock()
	c.pending[key] = pendingDetails{reqID: reqID, cb: cb}
	c.mu.Unlock()

	hdr := midici.Header{Addr: addr, Version: midici.CIVersion, Source: c.local, Dest: remote}
	// ProfileDetailsInquiry has no requestId field on the wire (spec.md
	// §4.1); correlation is by (remote, profileId, target) instead. The
	// reserved request ID slot still counts against spec.md §5's
	// back-pressure accounting, and is released in resolveDetails once the
	// reply actually arrives, not here.
	c.sender.Send(group, midici.ProfileDetailsInquiry{Hdr: hdr, ProfileId: id, Target: target})
	return nil
}

// ProcessReport applies an inbound profile report/reply message from
// remote, mutating the mirrored List and resolving any pending details
// future. It is the client-addressed half of messenger dispatch rule #5
// (spec.md §4.2).
func (c *ClientFacade) ProcessReport(group byte, remote midici.MUID, msg midici.Message) error {
	switch m := msg.(type) {
	case midici.ProfileAddRemoveReport:
		if m.Added {
			c.List.Add(m.ProfileId, group, m.Hdr.Addr)
		} else {
			c.List.Remove(m.ProfileId, group, m.Hdr.Addr)
		}
	case midici.ProfileEnableReport:
		if _, ok := c.List.Get(m.ProfileId, group, m.Hdr.Addr); !ok {
			c.List.Add(m.ProfileId, group, m.Hdr.Addr)
		}
		c.List.SetEnabled(m.ProfileId, group, m.Hdr.Addr, m.Enabled, m.Channels)
	case midici.ProfileInquiryReply:
		for _, id := range m.Enabled {
			c.List.Add(id, group, m.Hdr.Addr)
			c.List.SetEnabled(id, group, m.Hdr.Addr, true, 0)
		}
		for _, id := range m.Disabled {
			c.List.Add(id, group, m.Hdr.Addr)
		}
	case midici.ProfileDetailsReply:
		c.resolveDetails(remote, m)
	default:
		return fmt.Errorf("profile: unexpected message type %T", msg)
	}
	return nil
}

func (c *ClientFacade) resolveDetails(remote midici.MUID, m midici.ProfileDetailsReply) {
	key := pendingKey{remote, m.ProfileId, m.Target}
	c.mu.Lock()
	entry, found := c.pending[key]
	if found {
		delete(c.pending, key)
	}
	c.mu.Unlock()
	if !found {
		return
	}
	c.alloc.ReleaseRequestID(remote, entry.reqID)
	entry.cb(m.Target, m.Data, nil)
}
