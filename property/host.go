package property

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"midici"
	"midici/payload"
)

// Sender delivers an outbound MIDI-CI message for a facade (mirrors
// profile.Sender; kept as a separate local interface so this package does
// not need to import profile for a two-method shape).
type Sender interface {
	Send(group byte, msg midici.Message)
}

// SystemConfig supplies the live documents behind three of the four
// always-served system properties (spec.md §4.4); the fourth, ResourceList,
// is built by the host from its own catalog.
type SystemConfig interface {
	DeviceInfoJSON() []byte
	ChannelListJSON() []byte
	JSONSchema() []byte
}

type subKey struct {
	subscriber midici.MUID
	resource   string
	resId      string
}

// HostFacade is the Property Exchange host subsystem (C4): the server-side
// catalog, storage, and subscription table.
type HostFacade struct {
	local  midici.MUID
	sender Sender
	config SystemConfig

	mu       sync.Mutex
	metadata map[string]Metadata
	bodies   map[string][]byte

	subs     map[subKey]SubscriptionEntry
	subByID  map[string]subKey
}

// NewHostFacade returns an empty property host for local.
func NewHostFacade(local midici.MUID, sender Sender, config SystemConfig) *HostFacade {
	return &HostFacade{
		local:    local,
		sender:   sender,
		config:   config,
		metadata: make(map[string]Metadata),
		bodies:   make(map[string][]byte),
		subs:     make(map[subKey]SubscriptionEntry),
		subByID:  make(map[string]subKey),
	}
}

// AddMetadata registers a user property (spec.md §4.4).
func (h *HostFacade) AddMetadata(meta Metadata) {
	meta.Originator = OriginatorUser
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metadata[meta.Resource] = meta
	if _, ok := h.bodies[meta.Resource]; !ok {
		h.bodies[meta.Resource] = []byte("null")
	}
}

// RemoveMetadata deregisters a user property. Removing an unknown property
// is a no-op (spec.md §4.4).
func (h *HostFacade) RemoveMetadata(resource string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.metadata, resource)
	delete(h.bodies, resource)
}

func (h *HostFacade) resourceListJSON() []byte {
	h.mu.Lock()
	names := make([]string, 0, len(h.metadata)+len(systemResources))
	names = append(names, systemResources...)
	for r := range h.metadata {
		names = append(names, r)
	}
	h.mu.Unlock()
	sort.Strings(names)
	b, _ := json.Marshal(names)
	return b
}

// resolve returns the body and media type for (resource, resId), or
// found=false if the resource is unknown.
func (h *HostFacade) resolve(resource, resId string) (body []byte, mediaType string, found bool) {
	switch resource {
	case ResourceDeviceInfo:
		return h.config.DeviceInfoJSON(), payload.DefaultJSONMediaType, true
	case ResourceChannelList:
		return h.config.ChannelListJSON(), payload.DefaultJSONMediaType, true
	case ResourceJSONSchema:
		schema := h.config.JSONSchema()
		if len(schema) == 0 {
			schema = []byte("{}")
		}
		return schema, payload.DefaultJSONMediaType, true
	case ResourceResourceList:
		return h.resourceListJSON(), payload.DefaultJSONMediaType, true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	meta, ok := h.metadata[resource]
	if !ok {
		return nil, "", false
	}
	b := h.bodies[resource]
	mt := ""
	if len(meta.MediaTypes) > 0 {
		mt = meta.MediaTypes[0]
	}
	return b, payload.SniffMediaType(mt, b), true
}

func marshalHeader(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// HandleGet processes an inbound GetPropertyData inquiry and returns the
// (possibly chunked) reply messages (spec.md §4.4 "Handling Get").
func (h *HostFacade) HandleGet(group byte, remote midici.MUID, addr byte, requestId byte, headerJSON []byte, chunkSize int) ([]midici.PropertyExchange, error) {
	var req GetHeader
	if err := json.Unmarshal(headerJSON, &req); err != nil {
		return nil, fmt.Errorf("property: malformed GetPropertyData header: %w", err)
	}
	hdr := midici.Header{Addr: addr, Version: midici.CIVersion, Source: h.local, Dest: remote}

	body, mediaType, found := h.resolve(req.Resource, req.ResId)
	if !found {
		reply := ReplyHeader{Status: int(midici.StatusResourceUnavailable)}
		return midici.SplitPropertyChunks(hdr, midici.SubID2GetPropertyDataReply, requestId, marshalHeader(reply), nil, chunkSize), nil
	}

	body = paginate(body, req.Offset, req.Limit)

	enc := midici.Encoding(req.MutualEncoding)
	wire, err := payload.Encode(enc, body)
	if err != nil {
		reply := ReplyHeader{Status: int(midici.StatusUnsupportedMediaType), Message: err.Error()}
		return midici.SplitPropertyChunks(hdr, midici.SubID2GetPropertyDataReply, requestId, marshalHeader(reply), nil, chunkSize), nil
	}
	reply := ReplyHeader{Status: int(midici.StatusOK), MediaType: mediaType, MutualEncoding: req.MutualEncoding}
	return midici.SplitPropertyChunks(hdr, midici.SubID2GetPropertyDataReply, requestId, marshalHeader(reply), wire, chunkSize), nil
}

func paginate(body []byte, offset, limit *int) []byte {
	if offset == nil && limit == nil {
		return body
	}
	start := 0
	if offset != nil && *offset > 0 {
		start = *offset
	}
	if start > len(body) {
		start = len(body)
	}
	end := len(body)
	if limit != nil && *limit >= 0 && start+*limit < end {
		end = start + *limit
	}
	return body[start:end]
}

// HandleSet processes an inbound SetPropertyData inquiry, applying a full
// or partial update per the property's CanSet capability, and notifies
// every subscriber of the resource on success (spec.md §4.4 "Handling
// Set").
func (h *HostFacade) HandleSet(group byte, remote midici.MUID, addr byte, requestId byte, headerJSON, chunkBody []byte, chunkSize int) ([]midici.PropertyExchange, error) {
	var req SetHeader
	if err := json.Unmarshal(headerJSON, &req); err != nil {
		return nil, fmt.Errorf("property: malformed SetPropertyData header: %w", err)
	}
	hdr := midici.Header{Addr: addr, Version: midici.CIVersion, Source: h.local, Dest: remote}
	reply := func(status midici.StatusCode, msg string) []midici.PropertyExchange {
		rh := ReplyHeader{Status: int(status), Message: msg}
		return midici.SplitPropertyChunks(hdr, midici.SubID2SetPropertyDataReply, requestId, marshalHeader(rh), nil, chunkSize)
	}

	if IsSystemResource(req.Resource) {
		return reply(midici.StatusNotAllowed, "system properties are read-only"), nil
	}
	h.mu.Lock()
	meta, ok := h.metadata[req.Resource]
	h.mu.Unlock()
	if !ok {
		return reply(midici.StatusResourceUnavailable, "unknown resource"), nil
	}

	decoded, err := payload.Decode(midici.Encoding(req.MutualEncoding), chunkBody, -1)
	if err != nil {
		return reply(midici.StatusBadData, err.Error()), nil
	}

	switch meta.CanSet {
	case CanSetNone:
		return reply(midici.StatusNotAllowed, ""), nil
	case CanSetFull:
		h.mu.Lock()
		h.bodies[req.Resource] = decoded
		h.mu.Unlock()
		h.notifySubscribers(group, req.Resource, req.ResId, decoded, false, nil)
		return reply(midici.StatusOK, ""), nil
	case CanSetPartial:
		if !req.SetPartial {
			return reply(midici.StatusBadRequest, "partial property requires setPartial=true"), nil
		}
		h.mu.Lock()
		current := h.bodies[req.Resource]
		merged, err := payload.ApplyPartialUpdate(current, decoded)
		if err == nil {
			h.bodies[req.Resource] = merged
		}
		h.mu.Unlock()
		if err != nil {
			return reply(midici.StatusBadData, err.Error()), nil
		}
		h.notifySubscribers(group, req.Resource, req.ResId, decoded, true, nil)
		return reply(midici.StatusOK, ""), nil
	default:
		return reply(midici.StatusNotAllowed, ""), nil
	}
}

// notifySubscribers sends a PropertyNotify (0x3F) to every subscriber of
// (resource, resId), carrying the new full body or the partial spec,
// preserving the setPartial flag (spec.md §4.4).
func (h *HostFacade) notifySubscribers(group byte, resource, resId string, body []byte, partial bool, _ []byte) {
	h.mu.Lock()
	var entries []SubscriptionEntry
	for k, e := range h.subs {
		if k.resource == resource && k.resId == resId {
			entries = append(entries, e)
		}
	}
	h.mu.Unlock()

	command := SubscribeCommandFull
	if partial {
		command = SubscribeCommandPartial
	}
	for _, e := range entries {
		wire, err := payload.Encode(e.Encoding, body)
		if err != nil {
			continue
		}
		hdr := midici.Header{Addr: 0x7F, Version: midici.CIVersion, Source: h.local, Dest: e.SubscriberMUID}
		rh := ReplyHeader{Status: int(midici.StatusOK), Command: command, SubscribeId: e.SubscribeId, SetPartial: partial}
		for _, chunk := range midici.SplitPropertyChunks(hdr, midici.SubID2PropertyNotify, 0, marshalHeader(rh), wire, 0) {
			h.sender.Send(group, chunk)
		}
	}
}

// HandleSubscribe processes an inbound SubscribeProperty inquiry
// (command=start/end) and returns the reply (spec.md §4.4 "Subscription
// lifecycle").
func (h *HostFacade) HandleSubscribe(group byte, remote midici.MUID, addr byte, requestId byte, headerJSON []byte, chunkSize int) ([]midici.PropertyExchange, error) {
	var req SubscribeHeader
	if err := json.Unmarshal(headerJSON, &req); err != nil {
		return nil, fmt.Errorf("property: malformed SubscribeProperty header: %w", err)
	}
	hdr := midici.Header{Addr: addr, Version: midici.CIVersion, Source: h.local, Dest: remote}
	reply := func(status midici.StatusCode, subscribeId string) []midici.PropertyExchange {
		rh := ReplyHeader{Status: int(status), SubscribeId: subscribeId}
		return midici.SplitPropertyChunks(hdr, midici.SubID2SubscribePropertyReply, requestId, marshalHeader(rh), nil, chunkSize)
	}

	switch strings.ToLower(req.Command) {
	case SubscribeCommandStart:
		var canSubscribe bool
		if IsSystemResource(req.Resource) {
			canSubscribe = true
		} else {
			h.mu.Lock()
			meta, ok := h.metadata[req.Resource]
			h.mu.Unlock()
			canSubscribe = ok && meta.CanSubscribe
		}
		if !canSubscribe {
			return reply(midici.StatusNotAllowed, ""), nil
		}
		subID := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		entry := SubscriptionEntry{SubscriberMUID: remote, Resource: req.Resource, ResId: req.ResId, SubscribeId: subID, Encoding: midici.Encoding(req.MutualEncoding)}
		k := subKey{remote, req.Resource, req.ResId}
		h.mu.Lock()
		if old, exists := h.subs[k]; exists {
			delete(h.subByID, old.SubscribeId)
		}
		h.subs[k] = entry
		h.subByID[subID] = k
		h.mu.Unlock()
		return reply(midici.StatusOK, subID), nil
	case SubscribeCommandEnd:
		h.mu.Lock()
		k, ok := h.subByID[req.SubscribeId]
		if ok && k.subscriber == remote {
			delete(h.subByID, req.SubscribeId)
			delete(h.subs, k)
		} else {
			ok = false
		}
		h.mu.Unlock()
		if !ok {
			return reply(midici.StatusNotFound, ""), nil
		}
		return reply(midici.StatusOK, ""), nil
	default:
		return reply(midici.StatusBadRequest, ""), nil
	}
}

// PurgeSubscriber removes every subscription held by remote, e.g. on
// InvalidateMUID (spec.md §7 "Recovery": per-MUID transient state is
// cleared).
func (h *HostFacade) PurgeSubscriber(remote midici.MUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, e := range h.subs {
		if k.subscriber == remote {
			delete(h.subs, k)
			delete(h.subByID, e.SubscribeId)
		}
	}
}

// SubscriberCount reports the number of active subscriptions, for metrics.
func (h *HostFacade) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
