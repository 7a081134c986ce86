package store

import (
	"time"

	"options-flow-tracker/aggregation"
	"options-flow-tracker/models"
)

// ReadModel is the immutable state published to the view layer after every change.
// Subscribers must treat it as read-only; a new value is built for each mutation.
type ReadModel struct {
	Version   uint64                  `json:"version"`
	Status    models.ConnectionStatus `json:"status"`
	Connected bool                    `json:"connected"`

	AutoTradeEnabled bool                            `json:"autoTradeEnabled"`
	Positions        []models.Position               `json:"positions"`
	RecentOrders     []models.Position               `json:"recentOrders"`
	Signals          map[string]models.SignalSummary `json:"signals"`

	aggregation.View
	BufferSize     int `json:"bufferSize"`
	BufferCapacity int `json:"bufferCapacity"`

	// SnapshotStale is true until a live fetch succeeds, e.g. while only a cached copy is known
	SnapshotStale    bool       `json:"snapshotStale"`
	SnapshotAt       *time.Time `json:"snapshotAt,omitempty"`
	LastFetchError   string     `json:"lastFetchError,omitempty"`
	LastCommandError string     `json:"lastCommandError,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Signal returns the backend signal summary for a symbol
func (rm *ReadModel) Signal(symbol string) (models.SignalSummary, bool) {
	if rm == nil || rm.Signals == nil {
		return models.SignalSummary{}, false
	}
	s, ok := rm.Signals[symbol]
	return s, ok
}
