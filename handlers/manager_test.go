package handlers

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-flow-tracker/models"
)

func TestHandleFrameRoutesByKind(t *testing.T) {
	logger, _ := test.NewNullLogger()
	hm := NewHandlerManager(logger)

	var flows, lifecycles []Message
	hm.RegisterHandler("flows", NewHandlerFunc(func(m Message) error {
		flows = append(flows, m)
		return nil
	}, models.FlowKinds...))
	hm.RegisterHandler("lifecycle", NewHandlerFunc(func(m Message) error {
		lifecycles = append(lifecycles, m)
		return nil
	}, models.LifecycleKinds...))

	require.NoError(t, hm.HandleFrame(false, []byte(`{"type":"TRADE","symbol":"SPY"}`)))
	require.NoError(t, hm.HandleFrame(false, []byte(`{"type":"PRINT","symbol":"AAPL"}`)))
	require.NoError(t, hm.HandleFrame(false, []byte(`{"type":"AUTO_TRADE_CLOSED"}`)))

	assert.Len(t, flows, 2)
	assert.Len(t, lifecycles, 1)
}

func TestHandleFrameMalformedNeverReachesHandlers(t *testing.T) {
	logger, hook := test.NewNullLogger()
	hm := NewHandlerManager(logger)

	called := false
	hm.RegisterHandler("flows", NewHandlerFunc(func(Message) error {
		called = true
		return nil
	}, models.FlowKinds...))

	err := hm.HandleFrame(false, []byte(`not json`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMalformedMessage))
	assert.False(t, called)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "warning", hook.LastEntry().Level.String())
}

func TestDispatchJoinsHandlerErrors(t *testing.T) {
	logger, _ := test.NewNullLogger()
	hm := NewHandlerManager(logger)

	boom := errors.New("boom")
	second := false
	hm.RegisterHandler("failing", NewHandlerFunc(func(Message) error { return boom }, models.KindTrade))
	hm.RegisterHandler("second", NewHandlerFunc(func(Message) error {
		second = true
		return nil
	}, models.KindTrade))

	err := hm.HandleFrame(false, []byte(`{"type":"TRADE"}`))
	assert.ErrorIs(t, err, boom)
	assert.True(t, second, "later handlers still run")
}

func TestUnregisterHandler(t *testing.T) {
	logger, _ := test.NewNullLogger()
	hm := NewHandlerManager(logger)

	hm.RegisterHandler("flows", NewHandlerFunc(func(Message) error { return nil }, models.FlowKinds...))
	hm.UnregisterHandler("flows")

	err := hm.HandleFrame(false, []byte(`{"type":"TRADE"}`))
	assert.Error(t, err)
	assert.Empty(t, hm.ListHandlers()[models.KindTrade])
}
