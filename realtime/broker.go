package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
)

// Broker handles Server-Sent Events (SSE) clients and broadcasting.
// Every message is a full state, so a full queue sheds its oldest entry, never the newest.
type Broker struct {
	clients    map[chan []byte]bool
	register   chan chan []byte
	unregister chan chan []byte
	broadcast  chan []byte
	mu         sync.RWMutex
	latest     []byte // replayed to clients on connect
	done       chan struct{}
	log        *logrus.Entry
}

// NewBroker creates a new SSE broker
func NewBroker(logger *logrus.Logger) *Broker {
	return &Broker{
		clients:    make(map[chan []byte]bool),
		register:   make(chan chan []byte),
		unregister: make(chan chan []byte),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		log:        logger.WithField("component", "sse"),
	}
}

// Run starts the broker loop
func (b *Broker) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for client := range b.clients {
				delete(b.clients, client)
				close(client)
			}
			b.mu.Unlock()
			return

		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			if b.latest != nil {
				client <- b.latest
			}
			total := len(b.clients)
			b.mu.Unlock()
			b.log.Infof("SSE Client connected. Total: %d", total)

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client)
			}
			total := len(b.clients)
			b.mu.Unlock()
			b.log.Infof("SSE Client disconnected. Total: %d", total)

		case msg := <-b.broadcast:
			b.mu.Lock()
			b.latest = msg
			for client := range b.clients {
				offerLatest(client, msg)
			}
			b.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected SSE clients
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// ServeHTTP handles the SSE endpoint
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	clientChan := make(chan []byte, 10)
	select {
	case b.register <- clientChan:
	case <-r.Context().Done():
		return
	case <-b.done:
		return
	}

	for {
		select {
		case <-r.Context().Done():
			go func() {
				select {
				case b.unregister <- clientChan:
				case <-b.done:
				}
			}()
			// Drain until the broker closes the channel
			for range clientChan {
			}
			return
		case msg, ok := <-clientChan:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// Broadcast sends a message to all connected clients
func (b *Broker) Broadcast(event string, payload interface{}) {
	data := map[string]interface{}{
		"event":   event,
		"payload": payload,
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		b.log.WithError(err).Error("Error marshalling broadcast message")
		return
	}

	offerLatest(b.broadcast, jsonBytes)
}

// offerLatest queues msg without blocking, evicting the oldest queued message when ch is full
func offerLatest(ch chan []byte, msg []byte) {
	for {
		select {
		case ch <- msg:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
