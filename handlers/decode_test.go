package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"options-flow-tracker/models"
)

func TestDecodeTextFlowEvent(t *testing.T) {
	d := NewDecoder()
	frame := []byte(`{
		"type": "TRADE",
		"symbol": "SPY",
		"conid": 756733,
		"direction": "bto",
		"tradeSize": 250,
		"premium": "1250000",
		"strike": 450,
		"right": "C",
		"stanceScore": 45.5,
		"stanceLabel": "BULLISH",
		"confidence": 80,
		"classifications": ["SWEEP", "notable"],
		"volOiRatio": 2.4,
		"greeks": {"delta": 0.5, "gamma": 0.02, "theta": -0.1, "impliedVol": 0.3},
		"timestamp": 1700000000000
	}`)

	msg, err := d.DecodeText(frame)
	require.NoError(t, err)

	flow, ok := msg.(*FlowMessage)
	require.True(t, ok, "expected *FlowMessage, got %T", msg)

	ev := flow.Event
	assert.Equal(t, models.KindTrade, ev.Kind)
	assert.Equal(t, "SPY", ev.Symbol)
	assert.Equal(t, "756733", ev.ContractID)
	assert.Equal(t, models.DirectionBTO, ev.Direction)
	assert.Equal(t, 250.0, ev.Size)
	assert.Equal(t, 1_250_000.0, ev.Premium)
	assert.Equal(t, "C", ev.OptionType)
	assert.Equal(t, 45.5, ev.StanceScore)
	assert.Equal(t, []string{"SWEEP", "NOTABLE"}, ev.Classifications)
	require.NotNil(t, ev.VolOIRatio)
	assert.Equal(t, 2.4, *ev.VolOIRatio)
	require.NotNil(t, ev.Greeks)
	assert.Equal(t, 0.3, ev.Greeks.ImpliedVol)
	assert.Equal(t, "1700000000000", ev.Timestamp)
	assert.Equal(t, uint64(1), ev.Seq)
	assert.False(t, ev.ReceivedAt.IsZero())
}

func TestDecodeTextDefaultsMissingFields(t *testing.T) {
	d := NewDecoder()

	msg, err := d.DecodeText([]byte(`{"type":"PRINT","stanceScore":"abc","size":null}`))
	require.NoError(t, err)

	ev := msg.(*FlowMessage).Event
	assert.Equal(t, models.KindPrint, ev.Kind)
	assert.Equal(t, "", ev.Symbol)
	assert.Zero(t, ev.StanceScore)
	assert.Zero(t, ev.Size)
	assert.Nil(t, ev.VolOIRatio)
	assert.Nil(t, ev.Greeks)
	assert.Equal(t, "NEUTRAL", ev.Label())
}

func TestDecodeTextNestedPayloadOptionType(t *testing.T) {
	d := NewDecoder()

	msg, err := d.DecodeText([]byte(`{"type":"TRADE","payload":{"symbol":"AAPL","type":"PUT","strike":"190"}}`))
	require.NoError(t, err)

	ev := msg.(*FlowMessage).Event
	assert.Equal(t, models.KindTrade, ev.Kind)
	assert.Equal(t, "PUT", ev.OptionType)
	assert.Equal(t, 190.0, ev.Strike)

	msg, err = d.DecodeText([]byte(`{"type":"TRADE","symbol":"AAPL","right":"C"}`))
	require.NoError(t, err)
	assert.Equal(t, "C", msg.(*FlowMessage).Event.OptionType, "top-level type is the kind tag, not the option type")
}

func TestDecodeTextLifecycle(t *testing.T) {
	d := NewDecoder()

	for _, kind := range models.LifecycleKinds {
		msg, err := d.DecodeText([]byte(`{"type":"` + string(kind) + `","extra":{"ignored":true}}`))
		require.NoError(t, err, kind)

		lm, ok := msg.(*LifecycleMessage)
		require.True(t, ok, "expected *LifecycleMessage for %s", kind)
		assert.Equal(t, kind, lm.Kind())
	}
}

func TestDecodeTextMalformed(t *testing.T) {
	d := NewDecoder()

	tests := []struct {
		name        string
		frame       string
		unsupported bool
	}{
		{name: "not json", frame: `{"type":`},
		{name: "array", frame: `[1,2,3]`},
		{name: "null", frame: `null`},
		{name: "missing type", frame: `{"symbol":"SPY"}`},
		{name: "numeric type", frame: `{"type":5}`},
		{name: "unknown type", frame: `{"type":"HEARTBEAT"}`, unsupported: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := d.DecodeText([]byte(tt.frame))
			assert.Nil(t, msg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrMalformedMessage))
			assert.Equal(t, tt.unsupported, errors.Is(err, ErrUnsupportedType))
		})
	}
}

func TestDecodeBinaryStruct(t *testing.T) {
	d := NewDecoder()

	st, err := structpb.NewStruct(map[string]interface{}{
		"type":        "TRADE",
		"symbol":      "QQQ",
		"stanceScore": -40,
	})
	require.NoError(t, err)
	data, err := proto.Marshal(st)
	require.NoError(t, err)

	msg, err := d.DecodeBinary(data)
	require.NoError(t, err)

	ev := msg.(*FlowMessage).Event
	assert.Equal(t, "QQQ", ev.Symbol)
	assert.Equal(t, -40.0, ev.StanceScore)
}

func TestDecodeBinaryGarbage(t *testing.T) {
	d := NewDecoder()

	_, err := d.DecodeBinary([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMalformedMessage))
}

func TestDecoderSequenceIsMonotonic(t *testing.T) {
	d := NewDecoder()

	var last uint64
	for i := 0; i < 5; i++ {
		msg, err := d.DecodeText([]byte(`{"type":"TRADE","symbol":"SPY"}`))
		require.NoError(t, err)
		seq := msg.(*FlowMessage).Event.Seq
		assert.Greater(t, seq, last)
		last = seq
	}
}
