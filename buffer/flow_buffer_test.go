package buffer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-flow-tracker/models"
)

func event(seq int) models.FlowEvent {
	return models.FlowEvent{Seq: uint64(seq), Symbol: fmt.Sprintf("S%d", seq)}
}

func TestPushSizeIsMinOfPushesAndCapacity(t *testing.T) {
	tests := []struct {
		capacity int
		pushes   int
	}{
		{capacity: 1, pushes: 0},
		{capacity: 1, pushes: 5},
		{capacity: 3, pushes: 2},
		{capacity: 3, pushes: 3},
		{capacity: 3, pushes: 10},
		{capacity: 100, pushes: 250},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("cap%d_n%d", tt.capacity, tt.pushes), func(t *testing.T) {
			b := NewFlowBuffer(tt.capacity)
			for i := 1; i <= tt.pushes; i++ {
				b.Push(event(i))
				require.LessOrEqual(t, b.Size(), b.Capacity())

				head, ok := b.At(0)
				require.True(t, ok)
				assert.Equal(t, uint64(i), head.Seq, "index 0 is the latest push")
			}
			assert.Equal(t, min(tt.pushes, tt.capacity), b.Size())
		})
	}
}

func TestSnapshotIsNewestFirstAndEvictsTail(t *testing.T) {
	b := NewFlowBuffer(3)
	for i := 1; i <= 5; i++ {
		b.Push(event(i))
	}

	snap := b.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []uint64{5, 4, 3}, []uint64{snap[0].Seq, snap[1].Seq, snap[2].Seq})
}

func TestSnapshotIsACopy(t *testing.T) {
	b := NewFlowBuffer(2)
	b.Push(event(1))

	snap := b.Snapshot()
	b.Push(event(2))
	b.Push(event(3))

	require.Len(t, snap, 1)
	assert.Equal(t, uint64(1), snap[0].Seq)
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewFlowBuffer(0).Capacity())
	assert.Equal(t, DefaultCapacity, NewFlowBuffer(-4).Capacity())
}

func TestAtOutOfRange(t *testing.T) {
	b := NewFlowBuffer(2)
	_, ok := b.At(0)
	assert.False(t, ok)

	b.Push(event(1))
	_, ok = b.At(1)
	assert.False(t, ok)
	_, ok = b.At(-1)
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	b := NewFlowBuffer(2)
	b.Push(event(1))
	b.Clear()
	assert.Zero(t, b.Size())
	assert.Empty(t, b.Snapshot())
}

func TestConcurrentPushAndSnapshot(t *testing.T) {
	b := NewFlowBuffer(10)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= 1000; i++ {
			b.Push(event(i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := b.Snapshot()
			for j := 1; j < len(snap); j++ {
				assert.Greater(t, snap[j-1].Seq, snap[j].Seq)
			}
		}
	}()
	wg.Wait()

	assert.Equal(t, 10, b.Size())
}

func TestEventKey(t *testing.T) {
	assert.Equal(t, "2024-01-02T10:00:00Z", EventKey(models.FlowEvent{Timestamp: "2024-01-02T10:00:00Z", Symbol: "SPY"}, 3))
	assert.Equal(t, "SPY-756733-3", EventKey(models.FlowEvent{Symbol: "SPY", ContractID: "756733"}, 3))
	assert.Equal(t, "SPY-3-3", EventKey(models.FlowEvent{Symbol: "SPY"}, 3))
}
