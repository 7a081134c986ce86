package handlers

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-flow-tracker/models"
)

type captureSink struct {
	alerts []models.FlowAlert
}

func (c *captureSink) SendAlert(alert models.FlowAlert) {
	c.alerts = append(c.alerts, alert)
}

func TestFlowAlertDetect(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := NewFlowAlertHandler(DefaultAlertThresholds(), &captureSink{}, logger)

	tests := []struct {
		name  string
		ev    models.FlowEvent
		want  string
		alert bool
	}{
		{"large sweep", models.FlowEvent{Premium: 300_000, Classifications: []string{"SWEEP"}}, models.AlertLargeSweep, true},
		{"small sweep", models.FlowEvent{Premium: 100_000, Classifications: []string{"SWEEP"}}, "", false},
		{"large block", models.FlowEvent{Premium: 500_000, Classifications: []string{"block"}}, models.AlertLargeBlock, true},
		{"huge unclassified", models.FlowEvent{Premium: 2_000_000}, models.AlertPremium, true},
		{"notable only", models.FlowEvent{Premium: 400_000, Classifications: []string{"NOTABLE"}}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := h.Detect(tt.ev)
			assert.Equal(t, tt.alert, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlowAlertHandleForwardsAlerts(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sink := &captureSink{}
	h := NewFlowAlertHandler(DefaultAlertThresholds(), sink, logger)
	fixed := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	require.NoError(t, h.Handle(&FlowMessage{Event: models.FlowEvent{
		Kind: models.KindTrade, Symbol: "NVDA", Direction: models.DirectionBTO,
		Premium: 750_000, Classifications: []string{"SWEEP"},
	}}))
	require.NoError(t, h.Handle(&FlowMessage{Event: models.FlowEvent{Kind: models.KindPrint, Symbol: "SPY", Premium: 10}}))
	require.NoError(t, h.Handle(&LifecycleMessage{Type: models.KindAutoTradeExecuted}))

	require.Len(t, sink.alerts, 2)
	assert.Equal(t, models.AlertLargeSweep, sink.alerts[0].AlertType)
	assert.Equal(t, "NVDA", sink.alerts[0].Symbol)
	assert.Equal(t, fixed, sink.alerts[0].DetectedAt)
	assert.Equal(t, models.AlertLifecycle, sink.alerts[1].AlertType)
	assert.Equal(t, models.KindAutoTradeExecuted, sink.alerts[1].Kind)
	assert.Len(t, h.Kinds(), 7)
}
