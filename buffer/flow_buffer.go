// Package buffer holds the bounded newest-first window of recent flow events.
package buffer

import (
	"fmt"
	"sync"

	"options-flow-tracker/models"
)

// DefaultCapacity is the number of events retained when no capacity is configured
const DefaultCapacity = 100

// FlowBuffer is a fixed-capacity ring of flow events.
// Index 0 is always the most recently pushed event; Size never exceeds Capacity.
type FlowBuffer struct {
	data     []models.FlowEvent
	capacity int
	next     int // next write position
	size     int
	mu       sync.RWMutex
}

// NewFlowBuffer creates a buffer with the given capacity
func NewFlowBuffer(capacity int) *FlowBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &FlowBuffer{
		data:     make([]models.FlowEvent, capacity),
		capacity: capacity,
	}
}

// Push prepends an event, evicting the oldest once the buffer is full
func (b *FlowBuffer) Push(ev models.FlowEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data[b.next] = ev
	b.next = (b.next + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Size returns the number of retained events
func (b *FlowBuffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Capacity returns the fixed capacity
func (b *FlowBuffer) Capacity() int {
	return b.capacity
}

// At returns the i-th newest event
func (b *FlowBuffer) At(i int) (models.FlowEvent, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if i < 0 || i >= b.size {
		return models.FlowEvent{}, false
	}
	return b.data[b.index(i)], true
}

// Snapshot returns a copy of the retained events, newest first.
// The copy is taken under the read lock so callers never observe a half-applied push.
func (b *FlowBuffer) Snapshot() []models.FlowEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]models.FlowEvent, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.data[b.index(i)]
	}
	return out
}

// Clear drops all events
func (b *FlowBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = make([]models.FlowEvent, b.capacity)
	b.next = 0
	b.size = 0
}

// index maps newest-first position i to a slot; the newest lives at next-1
func (b *FlowBuffer) index(i int) int {
	return (b.next - 1 - i + 2*b.capacity) % b.capacity
}

// EventKey returns a display key for an event at position i of a snapshot.
// The embedded timestamp wins; otherwise symbol, contract id (or position) and position.
func EventKey(ev models.FlowEvent, i int) string {
	if ev.Timestamp != "" {
		return ev.Timestamp
	}
	instrument := ev.ContractID
	if instrument == "" {
		instrument = fmt.Sprintf("%d", i)
	}
	return fmt.Sprintf("%s-%s-%d", ev.Symbol, instrument, i)
}
