package midici

import "fmt"

// ProfileInquiry asks a device to list its profiles at the header's address.
// It carries no payload beyond the common header.
type ProfileInquiry struct {
	Hdr Header
}

func (m ProfileInquiry) Header() Header { return m.Hdr }
func (m ProfileInquiry) SubID2() byte   { return SubID2ProfileInquiry }
func (m ProfileInquiry) Encode() []byte {
	m.Hdr.SubID2 = SubID2ProfileInquiry
	return m.Hdr.Encode()
}

func decodeProfileInquiry(h Header, _ []byte) (Message, error) {
	return ProfileInquiry{Hdr: h}, nil
}

// ProfileEntry wraps a single profile ID. It carries no channel count, and
// ProfileInquiryReply lists plain ProfileId values rather than ProfileEntry.
type ProfileEntry struct {
	ProfileId ProfileId
}

// ProfileInquiryReply lists a device's enabled and disabled profiles.
type ProfileInquiryReply struct {
	Hdr      Header
	Enabled  []ProfileId
	Disabled []ProfileId
}

func (m ProfileInquiryReply) Header() Header { return m.Hdr }
func (m ProfileInquiryReply) SubID2() byte   { return SubID2ProfileInquiryReply }

func (m ProfileInquiryReply) Encode() []byte {
	m.Hdr.SubID2 = SubID2ProfileInquiryReply
	b := m.Hdr.Encode()
	b = appendProfileIdList(b, m.Enabled)
	b = appendProfileIdList(b, m.Disabled)
	return b
}

func appendProfileIdList(b []byte, ids []ProfileId) []byte {
	cnt := Pack14(uint16(len(ids)))
	b = append(b, cnt[:]...)
	for _, id := range ids {
		b = append(b, id[:]...)
	}
	return b
}

func readProfileIdList(body []byte) ([]ProfileId, []byte, error) {
	if len(body) < 2 {
		return nil, nil, fmt.Errorf("%w: profile id list count truncated", ErrMalformedHeader)
	}
	count, err := Unpack14(body[:2])
	if err != nil {
		return nil, nil, err
	}
	rest := body[2:]
	need := int(count) * 5
	if len(rest) < need {
		return nil, nil, fmt.Errorf("%w: profile id list needs %d bytes, got %d", ErrMalformedHeader, need, len(rest))
	}
	ids := make([]ProfileId, count)
	for i := range ids {
		copy(ids[i][:], rest[i*5:i*5+5])
	}
	return ids, rest[need:], nil
}

func decodeProfileInquiryReply(h Header, body []byte) (Message, error) {
	enabled, rest, err := readProfileIdList(body)
	if err != nil {
		return nil, err
	}
	disabled, _, err := readProfileIdList(rest)
	if err != nil {
		return nil, err
	}
	return ProfileInquiryReply{Hdr: h, Enabled: enabled, Disabled: disabled}, nil
}

// ProfileSet requests enabling (0x22) or disabling (0x23) a profile on the
// number of channels given.
type ProfileSet struct {
	Hdr               Header
	On                bool
	ProfileId         ProfileId
	ChannelsRequested uint16
}

func (m ProfileSet) Header() Header { return m.Hdr }
func (m ProfileSet) SubID2() byte {
	if m.On {
		return SubID2ProfileSetOn
	}
	return SubID2ProfileSetOff
}

func (m ProfileSet) Encode() []byte {
	m.Hdr.SubID2 = m.SubID2()
	b := m.Hdr.Encode()
	b = append(b, m.ProfileId[:]...)
	ch := Pack14(m.ChannelsRequested)
	return append(b, ch[:]...)
}

func decodeProfileSet(h Header, body []byte) (Message, error) {
	if len(body) < 7 {
		return nil, fmt.Errorf("%w: ProfileSetOn/Off body too short", ErrMalformedHeader)
	}
	ch, err := Unpack14(body[5:7])
	if err != nil {
		return nil, err
	}
	var id ProfileId
	copy(id[:], body[:5])
	return ProfileSet{
		Hdr:               h,
		On:                h.SubID2 == SubID2ProfileSetOn,
		ProfileId:         id,
		ChannelsRequested: ch,
	}, nil
}

// ProfileEnableReport reports that a profile became enabled (0x24) or
// disabled (0x25), with the channel count currently assigned.
type ProfileEnableReport struct {
	Hdr       Header
	Enabled   bool
	ProfileId ProfileId
	Channels  uint16
}

func (m ProfileEnableReport) Header() Header { return m.Hdr }
func (m ProfileEnableReport) SubID2() byte {
	if m.Enabled {
		return SubID2ProfileEnabledReport
	}
	return SubID2ProfileDisabledReport
}

func (m ProfileEnableReport) Encode() []byte {
	m.Hdr.SubID2 = m.SubID2()
	b := m.Hdr.Encode()
	b = append(b, m.ProfileId[:]...)
	ch := Pack14(m.Channels)
	return append(b, ch[:]...)
}

func decodeProfileEnableReport(h Header, body []byte) (Message, error) {
	if len(body) < 7 {
		return nil, fmt.Errorf("%w: ProfileEnabled/DisabledReport body too short", ErrMalformedHeader)
	}
	ch, err := Unpack14(body[5:7])
	if err != nil {
		return nil, err
	}
	var id ProfileId
	copy(id[:], body[:5])
	return ProfileEnableReport{
		Hdr:       h,
		Enabled:   h.SubID2 == SubID2ProfileEnabledReport,
		ProfileId: id,
		Channels:  ch,
	}, nil
}

// ProfileAddRemoveReport reports a profile was added (0x26) or removed
// (0x27) at the header's address.
type ProfileAddRemoveReport struct {
	Hdr       Header
	Added     bool
	ProfileId ProfileId
}

func (m ProfileAddRemoveReport) Header() Header { return m.Hdr }
func (m ProfileAddRemoveReport) SubID2() byte {
	if m.Added {
		return SubID2ProfileAddedReport
	}
	return SubID2ProfileRemovedReport
}

func (m ProfileAddRemoveReport) Encode() []byte {
	m.Hdr.SubID2 = m.SubID2()
	b := m.Hdr.Encode()
	return append(b, m.ProfileId[:]...)
}

func decodeProfileAddRemoveReport(h Header, body []byte) (Message, error) {
	if len(body) < 5 {
		return nil, fmt.Errorf("%w: ProfileAdded/RemovedReport body too short", ErrMalformedHeader)
	}
	var id ProfileId
	copy(id[:], body[:5])
	return ProfileAddRemoveReport{Hdr: h, Added: h.SubID2 == SubID2ProfileAddedReport, ProfileId: id}, nil
}

// ProfileDetailsInquiry asks for a specific target datum of a profile (the
// meaning of target is profile-defined).
type ProfileDetailsInquiry struct {
	Hdr       Header
	ProfileId ProfileId
	Target    byte
}

func (m ProfileDetailsInquiry) Header() Header { return m.Hdr }
func (m ProfileDetailsInquiry) SubID2() byte   { return SubID2ProfileDetailsInquiry }

func (m ProfileDetailsInquiry) Encode() []byte {
	m.Hdr.SubID2 = SubID2ProfileDetailsInquiry
	b := m.Hdr.Encode()
	b = append(b, m.ProfileId[:]...)
	return append(b, m.Target)
}

func decodeProfileDetailsInquiry(h Header, body []byte) (Message, error) {
	if len(body) < 6 {
		return nil, fmt.Errorf("%w: ProfileDetailsInquiry body too short", ErrMalformedHeader)
	}
	var id ProfileId
	copy(id[:], body[:5])
	return ProfileDetailsInquiry{Hdr: h, ProfileId: id, Target: body[5]}, nil
}

// ProfileDetailsReply answers a ProfileDetailsInquiry with the data for the
// requested target.
type ProfileDetailsReply struct {
	Hdr       Header
	ProfileId ProfileId
	Target    byte
	Data      []byte
}

func (m ProfileDetailsReply) Header() Header { return m.Hdr }
func (m ProfileDetailsReply) SubID2() byte   { return SubID2ProfileDetailsReply }

func (m ProfileDetailsReply) Encode() []byte {
	m.Hdr.SubID2 = SubID2ProfileDetailsReply
	b := m.Hdr.Encode()
	b = append(b, m.ProfileId[:]...)
	b = append(b, m.Target)
	ln := Pack14(uint16(len(m.Data)))
	b = append(b, ln[:]...)
	return append(b, m.Data...)
}

func decodeProfileDetailsReply(h Header, body []byte) (Message, error) {
	if len(body) < 8 {
		return nil, fmt.Errorf("%w: ProfileDetailsReply body too short", ErrMalformedHeader)
	}
	dataLen, err := Unpack14(body[6:8])
	if err != nil {
		return nil, err
	}
	if int(dataLen) > len(body)-8 {
		return nil, fmt.Errorf("%w: ProfileDetailsReply data length %d overruns buffer", ErrMalformedHeader, dataLen)
	}
	var id ProfileId
	copy(id[:], body[:5])
	return ProfileDetailsReply{
		Hdr:       h,
		ProfileId: id,
		Target:    body[5],
		Data:      append([]byte(nil), body[8:8+int(dataLen)]...),
	}, nil
}

// ProfileSpecificData carries profile-defined opaque data, addressed by
// profile ID rather than by property resource.
type ProfileSpecificData struct {
	Hdr       Header
	ProfileId ProfileId
	Data      []byte
}

func (m ProfileSpecificData) Header() Header { return m.Hdr }
func (m ProfileSpecificData) SubID2() byte   { return SubID2ProfileSpecificData }

func (m ProfileSpecificData) Encode() []byte {
	m.Hdr.SubID2 = SubID2ProfileSpecificData
	b := m.Hdr.Encode()
	b = append(b, m.ProfileId[:]...)
	ln := Pack14(uint16(len(m.Data)))
	b = append(b, ln[:]...)
	return append(b, m.Data...)
}

func decodeProfileSpecificData(h Header, body []byte) (Message, error) {
	if len(body) < 7 {
		return nil, fmt.Errorf("%w: ProfileSpecificData body too short", ErrMalformedHeader)
	}
	dataLen, err := Unpack14(body[5:7])
	if err != nil {
		return nil, err
	}
	if int(dataLen) > len(body)-7 {
		return nil, fmt.Errorf("%w: ProfileSpecificData length %d overruns buffer", ErrMalformedHeader, dataLen)
	}
	var id ProfileId
	copy(id[:], body[:5])
	return ProfileSpecificData{
		Hdr:       h,
		ProfileId: id,
		Data:      append([]byte(nil), body[7:7+int(dataLen)]...),
	}, nil
}
