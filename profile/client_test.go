package profile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"midici"
)

type fakeSender struct {
	sent []midici.Message
}

func (f *fakeSender) Send(group byte, msg midici.Message) {
	f.sent = append(f.sent, msg)
}

type fakeAllocator struct {
	next byte
}

func (a *fakeAllocator) AllocateRequestID(remote midici.MUID) (byte, error) {
	a.next++
	return a.next, nil
}

func (a *fakeAllocator) ReleaseRequestID(remote midici.MUID, id byte) {}

func TestSetProfileSendsProfileSet(t *testing.T) {
	sender := &fakeSender{}
	c := NewClientFacade(midici.MUID(1), sender, &fakeAllocator{})

	c.SetProfile(0, midici.AddrFunctionBlock, midici.MUID(2), testProfile, true, 3)

	require.Len(t, sender.sent, 1)
	ps := sender.sent[0].(midici.ProfileSet)
	require.True(t, ps.On)
	require.EqualValues(t, 3, ps.ChannelsRequested)
}

func TestRequestProfileDetailsSendsInquiryAndResolvesOnReply(t *testing.T) {
	sender := &fakeSender{}
	c := NewClientFacade(midici.MUID(1), sender, &fakeAllocator{})

	var gotTarget byte
	var gotData []byte
	err := c.RequestProfileDetails(0, midici.AddrFunctionBlock, midici.MUID(2), testProfile, 5, func(target byte, data []byte, err error) {
		gotTarget = target
		gotData = data
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	reply := midici.ProfileDetailsReply{
		Hdr:       midici.Header{Addr: midici.AddrFunctionBlock, Version: midici.CIVersion, Source: midici.MUID(2), Dest: midici.MUID(1)},
		ProfileId: testProfile,
		Target:    5,
		Data:      []byte{9, 9},
	}
	require.NoError(t, c.ProcessReport(0, midici.MUID(2), reply))

	require.Equal(t, byte(5), gotTarget)
	require.Equal(t, []byte{9, 9}, gotData)
}

func TestRequestProfileDetailsCorrelatesConcurrentRequestsByProfileAndTarget(t *testing.T) {
	sender := &fakeSender{}
	c := NewClientFacade(midici.MUID(1), sender, &fakeAllocator{})
	otherProfile := midici.ProfileId{0x7E, 0x05, 0x06, 0x07, 0x08}

	var firstTarget, secondTarget byte
	var firstData, secondData []byte
	err := c.RequestProfileDetails(0, midici.AddrFunctionBlock, midici.MUID(2), testProfile, 5, func(target byte, data []byte, err error) {
		firstTarget, firstData = target, data
	})
	require.NoError(t, err)
	err = c.RequestProfileDetails(0, midici.AddrFunctionBlock, midici.MUID(2), otherProfile, 7, func(target byte, data []byte, err error) {
		secondTarget, secondData = target, data
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)

	// Resolve the second request's reply first, to prove resolution isn't
	// first-match-wins over the pending map.
	secondReply := midici.ProfileDetailsReply{
		Hdr:       midici.Header{Addr: midici.AddrFunctionBlock, Version: midici.CIVersion, Source: midici.MUID(2), Dest: midici.MUID(1)},
		ProfileId: otherProfile,
		Target:    7,
		Data:      []byte{2, 2},
	}
	require.NoError(t, c.ProcessReport(0, midici.MUID(2), secondReply))
	require.Equal(t, byte(7), secondTarget)
	require.Equal(t, []byte{2, 2}, secondData)
	require.Zero(t, firstTarget)
	require.Nil(t, firstData)

	firstReply := midici.ProfileDetailsReply{
		Hdr:       midici.Header{Addr: midici.AddrFunctionBlock, Version: midici.CIVersion, Source: midici.MUID(2), Dest: midici.MUID(1)},
		ProfileId: testProfile,
		Target:    5,
		Data:      []byte{1, 1},
	}
	require.NoError(t, c.ProcessReport(0, midici.MUID(2), firstReply))
	require.Equal(t, byte(5), firstTarget)
	require.Equal(t, []byte{1, 1}, firstData)
}

func TestProcessReportAddRemoveUpdatesMirroredList(t *testing.T) {
	c := NewClientFacade(midici.MUID(1), &fakeSender{}, &fakeAllocator{})

	added := midici.ProfileAddRemoveReport{
		Hdr:       midici.Header{Addr: midici.AddrFunctionBlock},
		ProfileId: testProfile,
		Added:     true,
	}
	require.NoError(t, c.ProcessReport(0, midici.MUID(2), added))
	require.Len(t, c.List.All(), 1)

	removed := midici.ProfileAddRemoveReport{
		Hdr:       midici.Header{Addr: midici.AddrFunctionBlock},
		ProfileId: testProfile,
		Added:     false,
	}
	require.NoError(t, c.ProcessReport(0, midici.MUID(2), removed))
	require.Len(t, c.List.All(), 0)
}

func TestProcessReportEnableReportAddsMissingEntry(t *testing.T) {
	c := NewClientFacade(midici.MUID(1), &fakeSender{}, &fakeAllocator{})

	enable := midici.ProfileEnableReport{
		Hdr:       midici.Header{Addr: midici.AddrFunctionBlock},
		ProfileId: testProfile,
		Enabled:   true,
		Channels:  2,
	}
	require.NoError(t, c.ProcessReport(0, midici.MUID(2), enable))

	e, ok := c.List.Get(testProfile, 0, midici.AddrFunctionBlock)
	require.True(t, ok)
	require.True(t, e.Enabled)
}

func TestProcessReportRejectsUnexpectedMessageType(t *testing.T) {
	c := NewClientFacade(midici.MUID(1), &fakeSender{}, &fakeAllocator{})
	err := c.ProcessReport(0, midici.MUID(2), midici.DiscoveryInquiry{})
	require.Error(t, err)
}
