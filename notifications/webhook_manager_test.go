package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-flow-tracker/models"
)

func sweepAlert() models.FlowAlert {
	return models.FlowAlert{
		AlertType:   models.AlertLargeSweep,
		DetectedAt:  time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC),
		Kind:        models.KindTrade,
		Symbol:      "NVDA",
		Direction:   models.DirectionBTO,
		OptionType:  "CALL",
		Strike:      900,
		Size:        500,
		Premium:     1_250_000,
		StanceScore: 62,
	}
}

func TestFormatMessage(t *testing.T) {
	assert.Equal(t,
		"🐋 LARGE_SWEEP! NVDA BTO CALL 900 | Size: 500 | Premium: $1.25M | Stance: +62",
		FormatMessage(sweepAlert()))
	assert.Equal(t,
		"🔔 Auto-trade update: AUTO_TRADE_CLOSED",
		FormatMessage(models.FlowAlert{AlertType: models.AlertLifecycle, Kind: models.KindAutoTradeClosed}))
}

func TestShouldSend(t *testing.T) {
	logger, _ := test.NewNullLogger()
	wm := NewWebhookManager(context.Background(), nil, logger)
	alert := sweepAlert()

	tests := []struct {
		name string
		hook Webhook
		want bool
	}{
		{"no filters", Webhook{}, true},
		{"type match", Webhook{AlertTypes: []string{"large_sweep"}}, true},
		{"type mismatch", Webhook{AlertTypes: []string{models.AlertLargeBlock}}, false},
		{"symbol match", Webhook{Symbols: []string{"NVDA"}}, true},
		{"symbol mismatch", Webhook{Symbols: []string{"SPY"}}, false},
		{"premium below", Webhook{MinPremium: 2_000_000}, false},
		{"premium above", Webhook{MinPremium: 1_000_000}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wm.shouldSend(tt.hook, alert))
		})
	}

	lifecycle := models.FlowAlert{AlertType: models.AlertLifecycle, Kind: models.KindPaperTrade}
	assert.True(t, wm.shouldSend(Webhook{Symbols: []string{"SPY"}, MinPremium: 1}, lifecycle))
}

func TestSendAlertDeliversPayload(t *testing.T) {
	var mu sync.Mutex
	var got WebhookPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		auth = r.Header.Get("X-Api-Key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	wm := NewWebhookManager(context.Background(), []Webhook{
		{URL: srv.URL, AuthHeader: "X-Api-Key", AuthValue: "secret"},
	}, logger)

	wm.SendAlert(sweepAlert())
	wm.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "secret", auth)
	assert.Equal(t, models.AlertLargeSweep, got.AlertType)
	assert.NotEmpty(t, got.AlertID)
	assert.Equal(t, "NVDA", got.Alert.Symbol)
	assert.Contains(t, got.Message, "$1.25M")
}

func TestSendAlertRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	wm := NewWebhookManager(context.Background(), []Webhook{
		{URL: srv.URL, RetryCount: 3, RetryDelay: time.Millisecond},
	}, logger)

	wm.SendAlert(sweepAlert())
	wm.Wait()
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendAlertSkipsFilteredHooks(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	wm := NewWebhookManager(context.Background(), []Webhook{
		{URL: srv.URL, Symbols: []string{"SPY"}},
	}, logger)

	wm.SendAlert(sweepAlert())
	wm.Wait()
	require.Equal(t, int32(0), calls.Load())
}
