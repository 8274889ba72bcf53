package property

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"midici"
)

type clientFakeSender struct {
	sent []midici.PropertyExchange
}

func (f *clientFakeSender) Send(group byte, msg midici.Message) {
	f.sent = append(f.sent, msg.(midici.PropertyExchange))
}

type clientFakeAllocator struct {
	next byte
}

func (a *clientFakeAllocator) AllocateRequestID(remote midici.MUID) (byte, error) {
	a.next++
	return a.next, nil
}

func (a *clientFakeAllocator) ReleaseRequestID(remote midici.MUID, id byte) {}

func TestGetSendsInquiryAndResolvesOnOKReply(t *testing.T) {
	sender := &clientFakeSender{}
	c := NewClientFacade(midici.MUID(1), midici.MUID(2), sender, &clientFakeAllocator{}, nil)

	var gotBody []byte
	var gotStatus midici.StatusCode
	require.NoError(t, c.Get(0, midici.AddrFunctionBlock, "DeviceInfo", "", "", func(body []byte, mediaType string, status midici.StatusCode, err error) {
		gotBody = body
		gotStatus = status
	}))
	require.Len(t, sender.sent, 1)
	reqID := sender.sent[0].RequestId

	err := c.ProcessReply(midici.SubID2GetPropertyDataReply, reqID, mustMarshal(t, ReplyHeader{Status: int(midici.StatusOK)}), []byte(`{"x":1}`))
	require.NoError(t, err)
	require.Equal(t, midici.StatusOK, gotStatus)
	require.Equal(t, []byte(`{"x":1}`), gotBody)
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestGetCachesResourceListOnSuccess(t *testing.T) {
	sender := &clientFakeSender{}
	c := NewClientFacade(midici.MUID(1), midici.MUID(2), sender, &clientFakeAllocator{}, nil)

	require.NoError(t, c.Get(0, midici.AddrFunctionBlock, ResourceResourceList, "", "", nil))
	reqID := sender.sent[0].RequestId
	body := mustMarshal(t, []string{"DeviceInfo", "ChannelList"})
	require.NoError(t, c.ProcessReply(midici.SubID2GetPropertyDataReply, reqID, mustMarshal(t, ReplyHeader{Status: int(midici.StatusOK)}), body))

	require.ElementsMatch(t, []string{"DeviceInfo", "ChannelList"}, c.KnownResources())
}

func TestSetResolvesCallbackWithStatus(t *testing.T) {
	sender := &clientFakeSender{}
	c := NewClientFacade(midici.MUID(1), midici.MUID(2), sender, &clientFakeAllocator{}, nil)

	var gotStatus midici.StatusCode
	var gotErr error
	require.NoError(t, c.Set(0, midici.AddrFunctionBlock, "Custom", "", "", false, []byte(`{}`), func(status midici.StatusCode, err error) {
		gotStatus = status
		gotErr = err
	}))
	reqID := sender.sent[0].RequestId
	require.NoError(t, c.ProcessReply(midici.SubID2SetPropertyDataReply, reqID, mustMarshal(t, ReplyHeader{Status: int(midici.StatusBadRequest), Message: "nope"}), nil))

	require.Equal(t, midici.StatusBadRequest, gotStatus)
	require.Error(t, gotErr)
}

func TestSubscribeLifecycleTransitionsStateMachine(t *testing.T) {
	sender := &clientFakeSender{}
	c := NewClientFacade(midici.MUID(1), midici.MUID(2), sender, &clientFakeAllocator{}, nil)

	require.NoError(t, c.Subscribe(0, midici.AddrFunctionBlock, "Custom", "", ""))
	require.Equal(t, Subscribing, c.SubscriptionState("Custom", ""))

	reqID := sender.sent[0].RequestId
	require.NoError(t, c.ProcessReply(midici.SubID2SubscribePropertyReply, reqID, mustMarshal(t, ReplyHeader{Status: int(midici.StatusOK), SubscribeId: "sub-1"}), nil))
	require.Equal(t, Subscribed, c.SubscriptionState("Custom", ""))

	require.NoError(t, c.Unsubscribe(0, midici.AddrFunctionBlock, "Custom", ""))
	require.Equal(t, Unsubscribing, c.SubscriptionState("Custom", ""))

	endReqID := sender.sent[len(sender.sent)-1].RequestId
	require.NoError(t, c.ProcessReply(midici.SubID2SubscribePropertyReply, endReqID, mustMarshal(t, ReplyHeader{Status: int(midici.StatusOK)}), nil))
	require.Equal(t, Unsubscribed, c.SubscriptionState("Custom", ""))
}

func TestSubscribeRejectedWhenAlreadyInFlight(t *testing.T) {
	sender := &clientFakeSender{}
	c := NewClientFacade(midici.MUID(1), midici.MUID(2), sender, &clientFakeAllocator{}, nil)

	require.NoError(t, c.Subscribe(0, midici.AddrFunctionBlock, "Custom", "", ""))
	err := c.Subscribe(0, midici.AddrFunctionBlock, "Custom", "", "")
	require.Error(t, err)
}

func TestNotifyInvokesOnUpdateForMatchingSubscribeId(t *testing.T) {
	sender := &clientFakeSender{}
	var gotResource string
	var gotBody []byte
	onUpdate := func(resource, resId string, body []byte, partial bool) {
		gotResource = resource
		gotBody = body
	}
	c := NewClientFacade(midici.MUID(1), midici.MUID(2), sender, &clientFakeAllocator{}, onUpdate)

	require.NoError(t, c.Subscribe(0, midici.AddrFunctionBlock, "Custom", "", ""))
	reqID := sender.sent[0].RequestId
	require.NoError(t, c.ProcessReply(midici.SubID2SubscribePropertyReply, reqID, mustMarshal(t, ReplyHeader{Status: int(midici.StatusOK), SubscribeId: "sub-1"}), nil))

	require.NoError(t, c.ProcessReply(midici.SubID2PropertyNotify, 0, mustMarshal(t, ReplyHeader{SubscribeId: "sub-1"}), []byte(`{"y":2}`)))
	require.Equal(t, "Custom", gotResource)
	require.Equal(t, []byte(`{"y":2}`), gotBody)
}

func TestPurgeOnInvalidateClearsPendingAndSubscriptions(t *testing.T) {
	sender := &clientFakeSender{}
	c := NewClientFacade(midici.MUID(1), midici.MUID(2), sender, &clientFakeAllocator{}, nil)

	require.NoError(t, c.Subscribe(0, midici.AddrFunctionBlock, "Custom", "", ""))
	c.PurgeOnInvalidate()
	require.Equal(t, Unsubscribed, c.SubscriptionState("Custom", ""))
}

func TestProcessReplyUnknownSubID2Errors(t *testing.T) {
	c := NewClientFacade(midici.MUID(1), midici.MUID(2), &clientFakeSender{}, &clientFakeAllocator{}, nil)
	err := c.ProcessReply(0xFF, 1, nil, nil)
	require.Error(t, err)
}
