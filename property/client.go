package property

import (
	"encoding/json"
	"fmt"
	"sync"

	"midici"
)

// RequestAllocator allocates and releases the per-connection request ID
// used to correlate a Get/Set/Subscribe inquiry with its reply (spec.md
// §4.4 "Request ID assignment"). The messenger implements this; kept as a
// local copy of profile.RequestAllocator's shape so this package does not
// need to import profile.
type RequestAllocator interface {
	AllocateRequestID(remote midici.MUID) (byte, error)
	ReleaseRequestID(remote midici.MUID, id byte)
}

// GetCallback resolves a Get request with the decoded body and media type,
// or a non-OK status/err.
type GetCallback func(body []byte, mediaType string, status midici.StatusCode, err error)

// SetCallback resolves a Set request.
type SetCallback func(status midici.StatusCode, err error)

// NotifyCallback is invoked every time a subscribed resource changes
// (spec.md §4.5 "Subscribed" state).
type NotifyCallback func(resource, resId string, body []byte, partial bool)

type pendingKind int

const (
	pendingGet pendingKind = iota
	pendingSet
	pendingSubscribeStart
	pendingSubscribeEnd
)

type pendingRequest struct {
	kind     pendingKind
	resource string
	resId    string
	get      GetCallback
	set      SetCallback
}

type subKeyLocal struct {
	resource string
	resId    string
}

// ClientFacade is the Property Exchange client subsystem (C5): request
// correlation, a discovered-resource cache, and the subscription state
// machine of spec.md §4.5.
type ClientFacade struct {
	local  midici.MUID
	remote midici.MUID
	sender Sender
	alloc  RequestAllocator

	mu       sync.Mutex
	pending  map[byte]pendingRequest
	catalog  map[string]bool // resource name -> seen via ResourceList
	subs     map[subKeyLocal]*ClientSubscription
	onUpdate NotifyCallback
}

// NewClientFacade returns a ClientFacade addressed to one remote device.
func NewClientFacade(local, remote midici.MUID, sender Sender, alloc RequestAllocator, onUpdate NotifyCallback) *ClientFacade {
	return &ClientFacade{
		local:    local,
		remote:   remote,
		sender:   sender,
		alloc:    alloc,
		pending:  make(map[byte]pendingRequest),
		catalog:  make(map[string]bool),
		subs:     make(map[subKeyLocal]*ClientSubscription),
		onUpdate: onUpdate,
	}
}

// Get sends a GetPropertyData inquiry and registers cb to be invoked when
// the (possibly chunked) reply is reassembled and dispatched back via
// ProcessReply.
func (c *ClientFacade) Get(group, addr byte, resource, resId, mutualEncoding string, cb GetCallback) error {
	reqID, err := c.alloc.AllocateRequestID(c.remote)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.pending[reqID] = pendingRequest{kind: pendingGet, resource: resource, resId: resId, get: cb}
	c.mu.Unlock()

	header := marshalHeader(GetHeader{Resource: resource, ResId: resId, MutualEncoding: mutualEncoding})
	hdr := midici.Header{Addr: addr, Version: midici.CIVersion, Source: c.local, Dest: c.remote}
	for _, chunk := range midici.SplitPropertyChunks(hdr, midici.SubID2GetPropertyData, reqID, header, nil, 0) {
		c.sender.Send(group, chunk)
	}
	return nil
}

// Set sends a SetPropertyData inquiry (full replacement, or a partial
// update when setPartial is true and body is a pointer-keyed spec object)
// and registers cb for the reply.
func (c *ClientFacade) Set(group, addr byte, resource, resId, mutualEncoding string, setPartial bool, body []byte, cb SetCallback) error {
	reqID, err := c.alloc.AllocateRequestID(c.remote)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.pending[reqID] = pendingRequest{kind: pendingSet, resource: resource, resId: resId, set: cb}
	c.mu.Unlock()

	header := marshalHeader(SetHeader{Resource: resource, ResId: resId, MutualEncoding: mutualEncoding, SetPartial: setPartial})
	hdr := midici.Header{Addr: addr, Version: midici.CIVersion, Source: c.local, Dest: c.remote}
	for _, chunk := range midici.SplitPropertyChunks(hdr, midici.SubID2SetPropertyData, reqID, header, body, 0) {
		c.sender.Send(group, chunk)
	}
	return nil
}

// Subscribe transitions (resource, resId) from Unsubscribed to Subscribing
// and sends a SubscribeProperty(command=start) inquiry (spec.md §4.5). It
// returns an error if a subscription for this key is already in flight or
// active.
func (c *ClientFacade) Subscribe(group, addr byte, resource, resId, mutualEncoding string) error {
	k := subKeyLocal{resource, resId}
	c.mu.Lock()
	if existing, ok := c.subs[k]; ok && existing.State != Unsubscribed {
		c.mu.Unlock()
		return fmt.Errorf("property: %s/%s already %s", resource, resId, existing.State)
	}
	c.mu.Unlock()

	reqID, err := c.alloc.AllocateRequestID(c.remote)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.pending[reqID] = pendingRequest{kind: pendingSubscribeStart, resource: resource, resId: resId}
	c.subs[k] = &ClientSubscription{PropertyId: resource, ResId: resId, PendingRequestId: reqID, State: Subscribing}
	c.mu.Unlock()

	header := marshalHeader(SubscribeHeader{Resource: resource, ResId: resId, Command: SubscribeCommandStart, MutualEncoding: mutualEncoding})
	hdr := midici.Header{Addr: addr, Version: midici.CIVersion, Source: c.local, Dest: c.remote}
	for _, chunk := range midici.SplitPropertyChunks(hdr, midici.SubID2SubscribeProperty, reqID, header, nil, 0) {
		c.sender.Send(group, chunk)
	}
	return nil
}

// Unsubscribe transitions an active subscription to Unsubscribing and
// sends SubscribeProperty(command=end) (spec.md §4.5). It is a no-op error
// if the key is not currently Subscribed.
func (c *ClientFacade) Unsubscribe(group, addr byte, resource, resId string) error {
	k := subKeyLocal{resource, resId}
	c.mu.Lock()
	sub, ok := c.subs[k]
	if !ok || sub.State != Subscribed {
		c.mu.Unlock()
		return fmt.Errorf("property: %s/%s is not subscribed", resource, resId)
	}
	subscribeId := sub.SubscribeId
	c.mu.Unlock()

	reqID, err := c.alloc.AllocateRequestID(c.remote)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.pending[reqID] = pendingRequest{kind: pendingSubscribeEnd, resource: resource, resId: resId}
	sub.State = Unsubscribing
	sub.PendingRequestId = reqID
	c.mu.Unlock()

	header := marshalHeader(SubscribeHeader{Resource: resource, ResId: resId, Command: SubscribeCommandEnd, SubscribeId: subscribeId})
	hdr := midici.Header{Addr: addr, Version: midici.CIVersion, Source: c.local, Dest: c.remote}
	for _, chunk := range midici.SplitPropertyChunks(hdr, midici.SubID2SubscribeProperty, reqID, header, nil, 0) {
		c.sender.Send(group, chunk)
	}
	return nil
}

// ProcessReply dispatches one reassembled reply or notify message from
// remote (chunk reassembly happens upstream, in the chunk manager). It is
// the client-addressed half of messenger dispatch rule #5 (spec.md §4.2,
// §4.4).
func (c *ClientFacade) ProcessReply(subID2, requestId byte, headerJSON, body []byte) error {
	switch subID2 {
	case midici.SubID2GetPropertyDataReply:
		return c.handleGetReply(requestId, headerJSON, body)
	case midici.SubID2SetPropertyDataReply:
		return c.handleSetReply(requestId, headerJSON)
	case midici.SubID2SubscribePropertyReply:
		return c.handleSubscribeReply(requestId, headerJSON)
	case midici.SubID2PropertyNotify:
		return c.handleNotify(headerJSON, body)
	default:
		return fmt.Errorf("property: unexpected sub-ID 2 0x%02X", subID2)
	}
}

func (c *ClientFacade) takePending(requestId byte) (pendingRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.pending[requestId]
	if ok {
		delete(c.pending, requestId)
	}
	return req, ok
}

func (c *ClientFacade) handleGetReply(requestId byte, headerJSON, body []byte) error {
	req, ok := c.takePending(requestId)
	c.alloc.ReleaseRequestID(c.remote, requestId)
	if !ok {
		return nil // unsolicited or already-timed-out reply
	}
	var rh ReplyHeader
	if err := json.Unmarshal(headerJSON, &rh); err != nil {
		if req.get != nil {
			req.get(nil, "", 0, err)
		}
		return err
	}
	if rh.Status == int(midici.StatusOK) {
		if req.resource == ResourceResourceList {
			c.cacheResourceList(body)
		}
		if req.get != nil {
			req.get(body, rh.MediaType, midici.StatusCode(rh.Status), nil)
		}
		return nil
	}
	if req.get != nil {
		req.get(nil, "", midici.StatusCode(rh.Status), fmt.Errorf("property: get %s: %s", req.resource, rh.Message))
	}
	return nil
}

func (c *ClientFacade) cacheResourceList(body []byte) {
	var names []string
	if err := json.Unmarshal(body, &names); err != nil {
		return
	}
	c.mu.Lock()
	for _, n := range names {
		c.catalog[n] = true
	}
	c.mu.Unlock()
}

func (c *ClientFacade) handleSetReply(requestId byte, headerJSON []byte) error {
	req, ok := c.takePending(requestId)
	c.alloc.ReleaseRequestID(c.remote, requestId)
	if !ok {
		return nil
	}
	var rh ReplyHeader
	if err := json.Unmarshal(headerJSON, &rh); err != nil {
		if req.set != nil {
			req.set(0, err)
		}
		return err
	}
	if req.set != nil {
		var err error
		if rh.Status != int(midici.StatusOK) {
			err = fmt.Errorf("property: set %s: %s", req.resource, rh.Message)
		}
		req.set(midici.StatusCode(rh.Status), err)
	}
	return nil
}

func (c *ClientFacade) handleSubscribeReply(requestId byte, headerJSON []byte) error {
	req, ok := c.takePending(requestId)
	c.alloc.ReleaseRequestID(c.remote, requestId)
	if !ok {
		return nil
	}
	var rh ReplyHeader
	if err := json.Unmarshal(headerJSON, &rh); err != nil {
		return err
	}
	k := subKeyLocal{req.resource, req.resId}
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[k]
	if !ok {
		return nil
	}
	switch req.kind {
	case pendingSubscribeStart:
		if rh.Status == int(midici.StatusOK) {
			sub.State = Subscribed
			sub.SubscribeId = rh.SubscribeId
		} else {
			delete(c.subs, k)
		}
	case pendingSubscribeEnd:
		delete(c.subs, k)
	}
	return nil
}

func (c *ClientFacade) handleNotify(headerJSON, body []byte) error {
	var rh ReplyHeader
	if err := json.Unmarshal(headerJSON, &rh); err != nil {
		return err
	}
	c.mu.Lock()
	var found *ClientSubscription
	for _, sub := range c.subs {
		if sub.SubscribeId == rh.SubscribeId && sub.State == Subscribed {
			found = sub
			break
		}
	}
	c.mu.Unlock()
	if found == nil {
		return nil
	}
	if c.onUpdate != nil {
		c.onUpdate(found.PropertyId, found.ResId, body, rh.SetPartial)
	}
	return nil
}

// PurgeOnInvalidate resets all pending requests and subscriptions to the
// zero state, e.g. on InvalidateMUID for this remote (spec.md §4.5
// "InvalidateMUID" row: move silently to Unsubscribed, no end message
// sent).
func (c *ClientFacade) PurgeOnInvalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = make(map[byte]pendingRequest)
	c.subs = make(map[subKeyLocal]*ClientSubscription)
}

// KnownResources returns the resource names learned from a prior
// ResourceList fetch.
func (c *ClientFacade) KnownResources() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.catalog))
	for n := range c.catalog {
		names = append(names, n)
	}
	return names
}

// SubscriptionState reports the current state machine value for
// (resource, resId), or Unsubscribed if none exists.
func (c *ClientFacade) SubscriptionState(resource, resId string) ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sub, ok := c.subs[subKeyLocal{resource, resId}]; ok {
		return sub.State
	}
	return Unsubscribed
}
