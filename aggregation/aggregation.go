// Package aggregation derives display state from the flow window and the latest snapshot.
//
// Every function here is pure: it reads its arguments, allocates a fresh result and keeps no
// state between calls. Callers recompute from scratch on every change instead of patching
// running totals.
package aggregation

import (
	"sort"

	"options-flow-tracker/models"
)

// UnknownSymbol is the bucket for flow events without a symbol
const UnknownSymbol = "UNKNOWN"

// Default stance thresholds
const (
	DefaultBullishThreshold = 30.0
	DefaultBearishThreshold = -30.0
)

// Stance is the sentiment band of a stance score
type Stance string

const (
	StanceBullish Stance = "bullish"
	StanceBearish Stance = "bearish"
	StanceNeutral Stance = "neutral"
)

// Thresholds are the stance score bounds. Comparisons are strict,
// so a score equal to either bound is neutral.
type Thresholds struct {
	Bullish float64 `json:"bullish" yaml:"bullish"`
	Bearish float64 `json:"bearish" yaml:"bearish"`
}

// DefaultThresholds returns the ±30 policy
func DefaultThresholds() Thresholds {
	return Thresholds{Bullish: DefaultBullishThreshold, Bearish: DefaultBearishThreshold}
}

// Classify maps a stance score to its band
func (t Thresholds) Classify(score float64) Stance {
	switch {
	case score > t.Bullish:
		return StanceBullish
	case score < t.Bearish:
		return StanceBearish
	default:
		return StanceNeutral
	}
}

// SentimentCounts is the per-symbol tally of flow stances
type SentimentCounts struct {
	Bullish int `json:"bullish"`
	Bearish int `json:"bearish"`
	Neutral int `json:"neutral"`
}

// Total returns the number of events counted
func (c SentimentCounts) Total() int {
	return c.Bullish + c.Bearish + c.Neutral
}

// SymbolSentiment is one row of the sentiment chart
type SymbolSentiment struct {
	Symbol string `json:"symbol"`
	SentimentCounts
}

// DerivedStats summarizes the position set
type DerivedStats struct {
	TotalPnL      float64 `json:"totalPnL"`
	WinRate       float64 `json:"winRate"`
	TotalTrades   int     `json:"totalTrades"`
	OpenPositions int     `json:"openPositions"`
}

// PnlPoint is one closed trade in the cumulative P&L series
type PnlPoint struct {
	Trade      int     `json:"trade"` // 1-based
	Pnl        float64 `json:"pnl"`
	Cumulative float64 `json:"cumulative"`
}

// ComputeSentiment counts bullish/bearish/neutral events per symbol
func ComputeSentiment(flows []models.FlowEvent, th Thresholds) map[string]SentimentCounts {
	out := make(map[string]SentimentCounts)
	for _, ev := range flows {
		sym := ev.Symbol
		if sym == "" {
			sym = UnknownSymbol
		}

		counts := out[sym]
		switch th.Classify(ev.StanceScore) {
		case StanceBullish:
			counts.Bullish++
		case StanceBearish:
			counts.Bearish++
		default:
			counts.Neutral++
		}
		out[sym] = counts
	}
	return out
}

// SentimentRows flattens a sentiment map into rows sorted by symbol
func SentimentRows(sentiment map[string]SentimentCounts) []SymbolSentiment {
	rows := make([]SymbolSentiment, 0, len(sentiment))
	for sym, counts := range sentiment {
		rows = append(rows, SymbolSentiment{Symbol: sym, SentimentCounts: counts})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	return rows
}

// ComputeStats derives win rate and P&L from one position collection.
// WinRate is 0 when there are no closed positions.
func ComputeStats(positions []models.Position) DerivedStats {
	var (
		stats  DerivedStats
		wins   int
		closed int
	)
	for _, p := range positions {
		switch p.Status {
		case models.StatusClosed:
			closed++
			stats.TotalPnL += p.DollarPnlValue()
			if p.WinPnl() > 0 {
				wins++
			}
		case models.StatusOpen:
			stats.OpenPositions++
		}
	}

	stats.TotalTrades = closed
	if closed > 0 {
		stats.WinRate = float64(wins) / float64(closed) * 100
	}
	return stats
}

// ComputePnlSeries emits the running sum of dollarPnl over CLOSED positions in input order
func ComputePnlSeries(positions []models.Position) []PnlPoint {
	series := make([]PnlPoint, 0, len(positions))
	cumulative := 0.0
	for _, p := range positions {
		if !p.IsClosed() {
			continue
		}
		pnl := p.DollarPnlValue()
		cumulative += pnl
		series = append(series, PnlPoint{
			Trade:      len(series) + 1,
			Pnl:        pnl,
			Cumulative: cumulative,
		})
	}
	return series
}
