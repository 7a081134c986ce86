package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func startBroker(t *testing.T) (*Broker, *httptest.Server) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	b := NewBroker(logger)

	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	srv := httptest.NewServer(b)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return b, srv
}

// readEvent returns the next SSE data payload
func readEvent(t *testing.T, r *bufio.Reader) envelope {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			var env envelope
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &env))
			return env
		}
	}
}

func connect(t *testing.T, srv *httptest.Server) (*bufio.Reader, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return bufio.NewReader(resp.Body), cancel
}

func TestBrokerDeliversBroadcasts(t *testing.T) {
	b, srv := startBroker(t)
	r, cancel := connect(t, srv)
	defer cancel()

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	b.Broadcast("state", map[string]int{"version": 7})

	env := readEvent(t, r)
	assert.Equal(t, "state", env.Event)
	assert.JSONEq(t, `{"version":7}`, string(env.Payload))
}

func TestBrokerReplaysLatestOnConnect(t *testing.T) {
	b, srv := startBroker(t)

	first, cancelFirst := connect(t, srv)
	defer cancelFirst()
	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	b.Broadcast("state", map[string]int{"version": 1})
	readEvent(t, first)

	late, cancelLate := connect(t, srv)
	defer cancelLate()
	env := readEvent(t, late)
	assert.JSONEq(t, `{"version":1}`, string(env.Payload))
}

func TestBrokerUnregistersOnDisconnect(t *testing.T) {
	b, srv := startBroker(t)
	_, cancel := connect(t, srv)
	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return b.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestOfferLatestEvictsOldest(t *testing.T) {
	ch := make(chan []byte, 2)
	offerLatest(ch, []byte("1"))
	offerLatest(ch, []byte("2"))
	offerLatest(ch, []byte("3"))

	assert.Equal(t, "2", string(<-ch))
	assert.Equal(t, "3", string(<-ch))
}

func TestBrokerFullQueueKeepsNewestState(t *testing.T) {
	logger, _ := test.NewNullLogger()
	b := NewBroker(logger)

	const total = 300
	for i := 1; i <= total; i++ {
		b.Broadcast("state", map[string]int{"version": i})
	}

	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	srv := httptest.NewServer(b)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	r, cancelClient := connect(t, srv)
	defer cancelClient()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var payload struct {
			Version int `json:"version"`
		}
		require.NoError(t, json.Unmarshal(readEvent(t, r).Payload, &payload))
		if payload.Version == total {
			return
		}
	}
	t.Fatal("newest broadcast never reached the client")
}
