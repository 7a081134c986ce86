package websocket

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"options-flow-tracker/models"
)

// ErrClosed is returned by Run and Connect once Close has been called
var ErrClosed = errors.New("connection manager closed")

// FrameHandler consumes raw inbound frames
type FrameHandler interface {
	HandleFrame(binary bool, data []byte) error
}

// StatusListener is notified on every status transition. err is set on transitions to
// DISCONNECTED caused by a failure.
type StatusListener func(status models.ConnectionStatus, err error)

// ReconnectPolicy configures exponential backoff between connection attempts
type ReconnectPolicy struct {
	Enabled      bool
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Jitter       time.Duration
	MaxAttempts  int // consecutive failed attempts before giving up, <= 0 for infinite
}

// Options configures a ConnectionManager
type Options struct {
	URL            string
	Header         http.Header
	FuturesSymbols []string
	EquitySymbols  []string
	DialTimeout    time.Duration
	PingInterval   time.Duration
	Reconnect      ReconnectPolicy
}

// ConnectionManager handles the stream connection lifecycle: connect, subscribe, read,
// detect loss and reconnect with backoff.
type ConnectionManager struct {
	opts    Options
	handler FrameHandler
	log     *logrus.Entry

	status      atomic.Int32
	lastMsgTime atomic.Int64

	mu       sync.Mutex
	client   *Client
	futures  []string
	equities []string

	listenersMu sync.RWMutex
	listeners   []StatusListener

	closed    atomic.Bool
	closeOnce sync.Once
	closeCh   chan struct{}
}

// NewConnectionManager creates a new ConnectionManager
func NewConnectionManager(opts Options, handler FrameHandler, logger *logrus.Logger) *ConnectionManager {
	cm := &ConnectionManager{
		opts:     opts,
		handler:  handler,
		log:      logger.WithField("component", "stream"),
		futures:  append([]string(nil), opts.FuturesSymbols...),
		equities: append([]string(nil), opts.EquitySymbols...),
		closeCh:  make(chan struct{}),
	}
	cm.status.Store(int32(models.StatusDisconnected))
	return cm
}

// OnStatus registers a status listener
func (cm *ConnectionManager) OnStatus(l StatusListener) {
	cm.listenersMu.Lock()
	defer cm.listenersMu.Unlock()
	cm.listeners = append(cm.listeners, l)
}

// Status returns the current connection status
func (cm *ConnectionManager) Status() models.ConnectionStatus {
	return models.ConnectionStatus(cm.status.Load())
}

// LastMessageAt returns when the last frame was received
func (cm *ConnectionManager) LastMessageAt() time.Time {
	ns := cm.lastMsgTime.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (cm *ConnectionManager) setStatus(s models.ConnectionStatus, err error) {
	prev := models.ConnectionStatus(cm.status.Swap(int32(s)))
	if prev == s {
		return
	}

	entry := cm.log.WithField("status", s.String())
	if err != nil {
		entry.WithError(err).Warn("Stream status changed")
	} else {
		entry.Info("Stream status changed")
	}

	cm.listenersMu.RLock()
	listeners := append([]StatusListener(nil), cm.listeners...)
	cm.listenersMu.RUnlock()
	for _, l := range listeners {
		l(s, err)
	}
}

// Connect performs one connection attempt and sends the subscription message
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	if cm.closed.Load() {
		return ErrClosed
	}

	cm.setStatus(models.StatusConnecting, nil)
	client := NewClient(cm.opts.URL, cm.opts.Header, cm.opts.DialTimeout, cm.log)
	if err := client.Connect(ctx); err != nil {
		lost := &models.ConnectionLostError{Endpoint: cm.opts.URL, Err: err}
		cm.setStatus(models.StatusDisconnected, lost)
		return lost
	}

	cm.mu.Lock()
	if cm.closed.Load() {
		cm.mu.Unlock()
		_ = client.Close()
		cm.setStatus(models.StatusDisconnected, nil)
		return ErrClosed
	}
	cm.client = client
	msg := models.NewSubscribeMessage(cm.futures, cm.equities)
	cm.mu.Unlock()

	if err := client.Subscribe(msg); err != nil {
		cm.dropClient(client)
		lost := &models.ConnectionLostError{Endpoint: cm.opts.URL, Err: err}
		cm.setStatus(models.StatusDisconnected, lost)
		return lost
	}

	client.StartPing(cm.opts.PingInterval)
	cm.setStatus(models.StatusConnected, nil)
	return nil
}

// UpdateSymbols replaces the symbol universe and re-subscribes when connected
func (cm *ConnectionManager) UpdateSymbols(futures, equities []string) error {
	cm.mu.Lock()
	cm.futures = append([]string(nil), futures...)
	cm.equities = append([]string(nil), equities...)
	client := cm.client
	msg := models.NewSubscribeMessage(cm.futures, cm.equities)
	cm.mu.Unlock()

	if client == nil || cm.Status() != models.StatusConnected {
		return nil
	}
	return client.Subscribe(msg)
}

// Run connects and reads until ctx is done, Close is called, or reconnection gives up.
// Every frame is handed to the FrameHandler; handler errors are logged and never end the session.
func (cm *ConnectionManager) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { cm.closeCurrent() })
	defer stop()

	policy := cm.opts.Reconnect
	delay := policy.InitialDelay
	failures := 0

	for {
		if cm.closed.Load() {
			return ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := cm.Connect(ctx)
		if err == nil {
			failures = 0
			delay = policy.InitialDelay
			err = cm.readLoop(ctx)
			cm.setStatus(models.StatusDisconnected, err)
		}

		if cm.closed.Load() {
			return ErrClosed
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !policy.Enabled {
			return err
		}

		failures++
		if policy.MaxAttempts > 0 && failures > policy.MaxAttempts {
			cm.log.Errorf("❌ Giving up after %d failed reconnection attempts", policy.MaxAttempts)
			return err
		}

		wait := delay
		if policy.Jitter > 0 {
			wait += time.Duration(rand.Int63n(int64(policy.Jitter)))
		}
		cm.log.Warnf("🔄 Reconnecting in %v: %v", wait, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cm.closeCh:
			return ErrClosed
		case <-time.After(wait):
		}

		// Exponential backoff
		delay *= 2
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
}

// readLoop reads frames from the current client until the transport fails
func (cm *ConnectionManager) readLoop(ctx context.Context) error {
	cm.mu.Lock()
	client := cm.client
	cm.mu.Unlock()
	if client == nil {
		return &models.ConnectionLostError{Endpoint: cm.opts.URL, Err: errors.New("client not connected")}
	}
	defer cm.dropClient(client)
	if err := ctx.Err(); err != nil {
		return err
	}

	for {
		binary, data, err := client.ReadFrame()
		if err != nil {
			return &models.ConnectionLostError{Endpoint: cm.opts.URL, Err: err}
		}
		cm.lastMsgTime.Store(time.Now().UnixNano())
		cm.deliver(binary, data)
	}
}

// deliver hands one frame to the handler, containing any failure
func (cm *ConnectionManager) deliver(binary bool, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			cm.log.Errorf("Frame handler panicked: %v", r)
		}
	}()

	if cm.handler == nil {
		return
	}
	if err := cm.handler.HandleFrame(binary, data); err != nil {
		cm.log.Debugf("Frame not handled: %v", err)
	}
}

func (cm *ConnectionManager) dropClient(client *Client) {
	cm.mu.Lock()
	if cm.client == client {
		cm.client = nil
	}
	cm.mu.Unlock()
	_ = client.Close()
}

func (cm *ConnectionManager) closeCurrent() {
	cm.mu.Lock()
	client := cm.client
	cm.mu.Unlock()
	if client != nil {
		_ = client.Close()
	}
}

// Close ends the session for good. No reconnect is attempted afterwards.
func (cm *ConnectionManager) Close() error {
	cm.closeOnce.Do(func() {
		cm.closed.Store(true)
		close(cm.closeCh)
	})

	cm.mu.Lock()
	client := cm.client
	cm.client = nil
	cm.mu.Unlock()

	var err error
	if client != nil {
		if cerr := client.Close(); cerr != nil {
			err = fmt.Errorf("close stream: %w", cerr)
		}
	}
	cm.setStatus(models.StatusDisconnected, nil)
	return err
}
