package models

import (
	"encoding/json"
	"math"
	"time"
)

// Position is an auto-trade position as reported by the backend.
// DollarPnl and Pnl are only meaningful once the position is CLOSED; either may be absent.
type Position struct {
	Symbol       string         `json:"symbol"`
	OptionType   string         `json:"type"`
	Strike       float64        `json:"strike"`
	Side         string         `json:"side"`
	Contracts    float64        `json:"contracts"`
	EntryPrice   float64        `json:"entry"`
	CurrentPrice float64        `json:"current"`
	ProfitTarget float64        `json:"profitTarget"`
	Status       PositionStatus `json:"status"`
	Pnl          *float64       `json:"pnl,omitempty"`
	DollarPnl    *float64       `json:"dollarPnl,omitempty"`
}

// positionWire accepts both the short wire names and the long documented names.
// Numbers are lenient: a malformed value reads as absent.
type positionWire struct {
	Symbol       string         `json:"symbol"`
	Type         string         `json:"type"`
	OptionType   string         `json:"optionType"`
	Strike       Number         `json:"strike"`
	Side         string         `json:"side"`
	Contracts    Number         `json:"contracts"`
	Entry        Number         `json:"entry"`
	EntryPrice   Number         `json:"entryPrice"`
	Current      Number         `json:"current"`
	CurrentPrice Number         `json:"currentPrice"`
	ProfitTarget Number         `json:"profitTarget"`
	Status       PositionStatus `json:"status"`
	Pnl          Number         `json:"pnl"`
	DollarPnl    Number         `json:"dollarPnl"`
}

// UnmarshalJSON implements json.Unmarshaler
func (p *Position) UnmarshalJSON(data []byte) error {
	var w positionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*p = Position{
		Symbol:       w.Symbol,
		OptionType:   firstNonEmpty(w.Type, w.OptionType),
		Strike:       w.Strike.Value,
		Side:         w.Side,
		Contracts:    w.Contracts.Value,
		EntryPrice:   firstSet(w.Entry, w.EntryPrice),
		CurrentPrice: firstSet(w.Current, w.CurrentPrice),
		ProfitTarget: w.ProfitTarget.Value,
		Status:       w.Status,
		Pnl:          w.Pnl.Ptr(),
		DollarPnl:    w.DollarPnl.Ptr(),
	}
	return nil
}

// DollarPnlValue returns DollarPnl or 0 when absent.
func (p Position) DollarPnlValue() float64 {
	if p.DollarPnl == nil {
		return 0
	}
	return *p.DollarPnl
}

// WinPnl is the value used to decide whether a closed position was a win:
// pnl when reported, dollarPnl otherwise.
func (p Position) WinPnl() float64 {
	if p.Pnl != nil {
		return *p.Pnl
	}
	return p.DollarPnlValue()
}

// PercentPnl returns the unrealized move from entry in percent, 0 when prices are missing.
func (p Position) PercentPnl() float64 {
	if p.EntryPrice == 0 || p.CurrentPrice == 0 {
		return 0
	}
	return (p.CurrentPrice - p.EntryPrice) / p.EntryPrice * 100
}

// IsOpen reports whether the position is OPEN.
func (p Position) IsOpen() bool { return p.Status == StatusOpen }

// IsClosed reports whether the position is CLOSED.
func (p Position) IsClosed() bool { return p.Status == StatusClosed }

// SignalSummary is the backend's per-symbol signal aggregate.
type SignalSummary struct {
	Count     int     `json:"count"`
	AvgStance float64 `json:"avgStance"`
}

// UnmarshalJSON implements json.Unmarshaler. Count may arrive as 2.0 or "2".
func (s *SignalSummary) UnmarshalJSON(data []byte) error {
	var w struct {
		Count     Number `json:"count"`
		AvgStance Number `json:"avgStance"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = SignalSummary{
		Count:     int(math.Round(w.Count.Value)),
		AvgStance: w.AvgStance.Value,
	}
	return nil
}

// Snapshot is the payload of the status endpoint.
// Positions and RecentOrders are independently supplied collections.
type Snapshot struct {
	Enabled      bool                     `json:"enabled"`
	Positions    []Position               `json:"positions"`
	Signals      map[string]SignalSummary `json:"signals"`
	RecentOrders []Position               `json:"recentOrders"`
	FetchedAt    time.Time                `json:"fetchedAt"`
}

// Normalize replaces nil collections with empty ones.
func (s *Snapshot) Normalize() {
	if s.Positions == nil {
		s.Positions = []Position{}
	}
	if s.RecentOrders == nil {
		s.RecentOrders = []Position{}
	}
	if s.Signals == nil {
		s.Signals = map[string]SignalSummary{}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
