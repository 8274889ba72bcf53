package profile

import "midici"

// Sender delivers an outbound MIDI-CI message on behalf of a facade. group
// is the UMP transport group the message belongs to (separate from the
// addr byte inside the message's common header). The messenger's
// implementation writes a broadcast-addressed message once, as a single
// SysEx; it does not repeat it per known remote.
type Sender interface {
	Send(group byte, msg midici.Message)
}

// HostFacade is this device's profile server side (spec.md §4.3). It owns
// the authoritative List and announces every mutation on the wire.
type HostFacade struct {
	local  midici.MUID
	sender Sender
	List   *List
}

// NewHostFacade returns a HostFacade that announces changes as local.
func NewHostFacade(local midici.MUID, sender Sender) *HostFacade {
	return &HostFacade{local: local, sender: sender, List: NewList()}
}

func (h *HostFacade) header(addr byte) midici.Header {
	return midici.Header{Addr: addr, Version: midici.CIVersion, Source: h.local, Dest: midici.BroadcastMUID}
}

// AddProfile inserts profileId at (group, addr), initially disabled, and
// broadcasts ProfileAddedReport.
func (h *HostFacade) AddProfile(group, addr byte, id midici.ProfileId) Entry {
	e := h.List.Add(id, group, addr)
	h.sender.Send(group, midici.ProfileAddRemoveReport{Hdr: h.header(addr), Added: true, ProfileId: id})
	return e
}

// RemoveProfile deletes the triple and broadcasts ProfileRemovedReport.
func (h *HostFacade) RemoveProfile(group, addr byte, id midici.ProfileId) (Entry, bool) {
	e, ok := h.List.Remove(id, group, addr)
	if ok {
		h.sender.Send(group, midici.ProfileAddRemoveReport{Hdr: h.header(addr), Added: false, ProfileId: id})
	}
	return e, ok
}

// EnableProfile sets the enabled flag and broadcasts ProfileEnabledReport
// with the channel count.
func (h *HostFacade) EnableProfile(group, addr byte, id midici.ProfileId, channels uint16) (Entry, bool) {
	e, ok := h.List.SetEnabled(id, group, addr, true, channels)
	if ok {
		h.sender.Send(group, midici.ProfileEnableReport{Hdr: h.header(addr), Enabled: true, ProfileId: id, Channels: channels})
	}
	return e, ok
}

// DisableProfile clears the enabled flag and broadcasts
// ProfileDisabledReport with the channel count.
func (h *HostFacade) DisableProfile(group, addr byte, id midici.ProfileId, channels uint16) (Entry, bool) {
	e, ok := h.List.SetEnabled(id, group, addr, false, channels)
	if ok {
		h.sender.Send(group, midici.ProfileEnableReport{Hdr: h.header(addr), Enabled: false, ProfileId: id, Channels: channels})
	}
	return e, ok
}

// HandleInquiry builds the ProfileInquiryReply for the given address.
func (h *HostFacade) HandleInquiry(group, addr byte, dest midici.MUID) midici.ProfileInquiryReply {
	var enabled, disabled []midici.ProfileId
	for _, e := range h.List.AtAddress(group, addr) {
		if e.Enabled {
			enabled = append(enabled, e.ProfileId)
		} else {
			disabled = append(disabled, e.ProfileId)
		}
	}
	hdr := midici.Header{Addr: addr, Version: midici.CIVersion, Source: h.local, Dest: dest}
	return midici.ProfileInquiryReply{Hdr: hdr, Enabled: enabled, Disabled: disabled}
}

// HandleSetOn/HandleSetOff apply an inbound client request and report the
// resulting state. ok is false if the profile was never added at this
// address, in which case no report is sent (spec.md is silent on this edge
// case; we treat it as "nothing to enable").
func (h *HostFacade) HandleSetOn(group, addr byte, id midici.ProfileId, channels uint16) (Entry, bool) {
	if _, present := h.List.Get(id, group, addr); !present {
		return Entry{}, false
	}
	return h.EnableProfile(group, addr, id, channels)
}

func (h *HostFacade) HandleSetOff(group, addr byte, id midici.ProfileId, channels uint16) (Entry, bool) {
	if _, present := h.List.Get(id, group, addr); !present {
		return Entry{}, false
	}
	return h.DisableProfile(group, addr, id, channels)
}
