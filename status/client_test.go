package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-flow-tracker/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger, _ := test.NewNullLogger()
	return NewClient(srv.URL+"/", Options{Timeout: 2 * time.Second}, logger)
}

func TestFetchSnapshot(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, PathStatus, r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"enabled": true,
			"positions": [
				{"symbol":"SPY","type":"CALL","strike":450,"side":"BULL","contracts":2,"entry":1.5,"current":1.8,"status":"OPEN"}
			],
			"signals": {"SPY": {"count": 4, "avgStance": 42.5}},
			"recentOrders": [
				{"symbol":"QQQ","status":"CLOSED","dollarPnl":120.5,"entryPrice":2,"currentPrice":2.6}
			]
		}`))
	})

	snap, err := c.FetchSnapshot(context.Background())
	require.NoError(t, err)

	assert.True(t, snap.Enabled)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, "CALL", snap.Positions[0].OptionType)
	assert.Equal(t, 1.5, snap.Positions[0].EntryPrice)
	assert.Equal(t, 1.8, snap.Positions[0].CurrentPrice)
	assert.Equal(t, models.SignalSummary{Count: 4, AvgStance: 42.5}, snap.Signals["SPY"])
	require.Len(t, snap.RecentOrders, 1)
	assert.Equal(t, 120.5, snap.RecentOrders[0].DollarPnlValue())
	assert.Equal(t, 2.0, snap.RecentOrders[0].EntryPrice)
	assert.False(t, snap.FetchedAt.IsZero())
}

func TestFetchSnapshotNormalizesMissingCollections(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"enabled": false}`))
	})

	snap, err := c.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snap.Positions)
	assert.NotNil(t, snap.RecentOrders)
	assert.NotNil(t, snap.Signals)
}

func TestFetchSnapshotToleratesMalformedNumbers(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, snap *models.Snapshot)
	}{
		{
			name: "numeric string strike",
			body: `{"positions":[{"symbol":"SPY","strike":"450","status":"OPEN"}]}`,
			check: func(t *testing.T, snap *models.Snapshot) {
				require.Len(t, snap.Positions, 1)
				assert.Equal(t, 450.0, snap.Positions[0].Strike)
			},
		},
		{
			name: "float signal count",
			body: `{"signals":{"SPY":{"count":2.0,"avgStance":"12.5"}}}`,
			check: func(t *testing.T, snap *models.Snapshot) {
				assert.Equal(t, models.SignalSummary{Count: 2, AvgStance: 12.5}, snap.Signals["SPY"])
			},
		},
		{
			name: "numeric string dollar pnl",
			body: `{"recentOrders":[{"symbol":"QQQ","status":"CLOSED","dollarPnl":"100"}]}`,
			check: func(t *testing.T, snap *models.Snapshot) {
				require.Len(t, snap.RecentOrders, 1)
				assert.Equal(t, 100.0, snap.RecentOrders[0].DollarPnlValue())
			},
		},
		{
			name: "garbage values read as absent",
			body: `{"positions":[{"symbol":"SPY","strike":"n/a","contracts":true,"entry":{},"entryPrice":1.5,"dollarPnl":"NaN","status":"CLOSED"}],"signals":{"QQQ":{"count":"many"}}}`,
			check: func(t *testing.T, snap *models.Snapshot) {
				require.Len(t, snap.Positions, 1)
				p := snap.Positions[0]
				assert.Equal(t, "SPY", p.Symbol)
				assert.Zero(t, p.Strike)
				assert.Zero(t, p.Contracts)
				assert.Equal(t, 1.5, p.EntryPrice, "malformed entry falls back to entryPrice")
				assert.Nil(t, p.DollarPnl)
				assert.Equal(t, models.SignalSummary{}, snap.Signals["QQQ"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			snap, err := c.FetchSnapshot(context.Background())
			require.NoError(t, err)
			require.NotNil(t, snap)
			tt.check(t, snap)
		})
	}
}

func TestFetchSnapshotFailures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		statusCode int
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			statusCode: http.StatusInternalServerError,
		},
		{
			name: "invalid body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"enabled":`))
			},
			statusCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)

			snap, err := c.FetchSnapshot(context.Background())
			assert.Nil(t, snap)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrFetchFailed))

			var fe *models.FetchFailedError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.statusCode, fe.StatusCode)
		})
	}
}

func TestFetchSnapshotTransportError(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := NewClient("http://127.0.0.1:1", Options{Timeout: time.Second}, logger)

	_, err := c.FetchSnapshot(context.Background())
	assert.True(t, errors.Is(err, models.ErrFetchFailed))
}

func TestCommands(t *testing.T) {
	var paths []string
	var simBody simulateRequest

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		paths = append(paths, r.URL.Path)
		if r.URL.Path == PathSim {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&simBody))
		}
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := context.Background()
	require.NoError(t, c.EnableAutoTrade(ctx))
	require.NoError(t, c.DisableAutoTrade(ctx))
	require.NoError(t, c.SimulateTrade(ctx, "TSLA", models.SideBear))

	assert.Equal(t, []string{PathEnable, PathDisable, PathSim}, paths)
	assert.Equal(t, simulateRequest{Symbol: "TSLA", Side: models.SideBear}, simBody)
}

func TestCommandRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "auto-trade locked", http.StatusConflict)
	})

	err := c.EnableAutoTrade(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrCommandRejected))

	var ce *models.CommandRejectedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, http.StatusConflict, ce.StatusCode)
	assert.Equal(t, "auto-trade locked", ce.Body)
}

func TestSimulateTradeValidatesInput(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	err := c.SimulateTrade(context.Background(), "SPY", "SIDEWAYS")
	assert.True(t, errors.Is(err, models.ErrCommandRejected))
	err = c.SimulateTrade(context.Background(), "", models.SideBull)
	assert.True(t, errors.Is(err, models.ErrCommandRejected))
	assert.False(t, called)
}

func TestCommandRateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	c := NewClient(srv.URL, Options{CommandsPerSec: 0.001}, logger)

	require.NoError(t, c.EnableAutoTrade(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.EnableAutoTrade(ctx)
	assert.True(t, errors.Is(err, models.ErrFetchFailed))
}
