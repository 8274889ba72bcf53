package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestBuildFormatsKnownTemplate(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	e := m.Build("discovery", "DiscoveryTimeout", logrus.WarnLevel, nil, uint32(0x1234), "5s")
	require.Equal(t, "No Discovery Reply received from MUID 00001234 within 5s.", e.Message)
	require.Equal(t, "DISCOVERY", e.Type)
}

func TestBuildUnknownTemplateReturnsPlaceholder(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	e := m.Build("x", "NoSuchTemplate", logrus.InfoLevel, nil)
	require.Contains(t, e.Message, "not found")
}

func TestAddFieldInitializesMapLazily(t *testing.T) {
	e := &Entry{}
	e.AddField("remote", "abc")
	require.Equal(t, "abc", e.AdditionalData["remote"])
}

func TestSendWithoutLokiDoesNotBlock(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	e := m.Build("x", "TransportSendFailed", logrus.ErrorLevel, nil, "closed")
	require.NotPanics(t, func() { m.Send(e) })
}

func TestCloseDrainsPendingLokiPushes(t *testing.T) {
	m := NewManager(&LokiClient{PushURL: "http://127.0.0.1:0"})
	e := m.Build("x", "SubscriptionPurged", logrus.InfoLevel, nil, uint32(1))
	m.Send(e)
	require.NotPanics(t, func() { m.Close() })
}
