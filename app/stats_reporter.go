package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"options-flow-tracker/store"
)

type streamInfo interface {
	LastMessageAt() time.Time
}

type currentState interface {
	Current() *store.ReadModel
}

// statsReporter periodically logs a one-line summary of the tracked state
type statsReporter struct {
	state    currentState
	stream   streamInfo
	interval time.Duration
	log      *logrus.Entry
}

func newStatsReporter(state currentState, stream streamInfo, interval time.Duration, logger *logrus.Logger) *statsReporter {
	return &statsReporter{
		state:    state,
		stream:   stream,
		interval: interval,
		log:      logger.WithField("component", "reporter"),
	}
}

// Run begins the report loop
func (r *statsReporter) Run(ctx context.Context) {
	r.log.Debug("📊 Stats reporter started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.report()
		case <-ctx.Done():
			r.log.Debug("📊 Stats reporter stopped")
			return
		}
	}
}

func (r *statsReporter) report() {
	rm := r.state.Current()
	if rm == nil {
		return
	}

	fields := logrus.Fields{
		"stream":        rm.Status.String(),
		"flows":         rm.BufferSize,
		"symbols":       len(rm.SentimentRows),
		"openPositions": rm.Stats.OpenPositions,
		"closedTrades":  rm.Stats.TotalTrades,
		"winRate":       rm.Stats.WinRate,
		"totalPnL":      rm.Stats.TotalPnL,
		"autoTrade":     rm.AutoTradeEnabled,
	}
	if last := r.stream.LastMessageAt(); !last.IsZero() {
		fields["lastMessageAgo"] = time.Since(last).Round(time.Second).String()
	}

	entry := r.log.WithFields(fields)
	if rm.LastFetchError != "" {
		entry.WithField("lastFetchError", rm.LastFetchError).Warn("📊 Tracker summary (snapshot stale)")
		return
	}
	entry.Info("📊 Tracker summary")
}
