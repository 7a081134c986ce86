// Package models holds the domain records shared by the stream, snapshot and aggregation layers.
//
// Data Models:
//   - FlowEvent: a single classified options/equity trade or print received from the stream
//   - Position: an auto-trade position owned by the backend, replaced wholesale on every fetch
//   - SignalSummary: per-symbol signal aggregate supplied by the backend
//   - Snapshot: the full pull-based readout of the backend status endpoint
//
// None of these records are mutated after creation. Consumers copy, they never patch.
package models

import (
	"strings"
	"time"
)

// EventKind is the `type` tag carried by every inbound stream message.
type EventKind string

// Flow event kinds
const (
	KindTrade EventKind = "TRADE"
	KindPrint EventKind = "PRINT"
)

// Trade lifecycle kinds. All of them trigger a snapshot refresh.
const (
	KindAutoTradeExecuted    EventKind = "AUTO_TRADE_EXECUTED"
	KindAutoTradeClosed      EventKind = "AUTO_TRADE_CLOSED"
	KindSimulatedTrade       EventKind = "SIMULATED_TRADE"
	KindPaperTrade           EventKind = "PAPER_TRADE"
	KindSimulatedTradeClosed EventKind = "SIMULATED_TRADE_CLOSED"
)

// FlowKinds lists the kinds that carry a FlowEvent payload.
var FlowKinds = []EventKind{KindTrade, KindPrint}

// LifecycleKinds lists the kinds that signal a server-side position change.
var LifecycleKinds = []EventKind{
	KindAutoTradeExecuted,
	KindAutoTradeClosed,
	KindSimulatedTrade,
	KindPaperTrade,
	KindSimulatedTradeClosed,
}

// IsFlow reports whether the kind carries a FlowEvent payload.
func (k EventKind) IsFlow() bool {
	return k == KindTrade || k == KindPrint
}

// IsLifecycle reports whether the kind is a trade lifecycle notification.
func (k EventKind) IsLifecycle() bool {
	for _, lk := range LifecycleKinds {
		if k == lk {
			return true
		}
	}
	return false
}

// Direction is the opening/closing side of an options print.
type Direction string

const (
	DirectionBTO Direction = "BTO" // buy to open
	DirectionBTC Direction = "BTC" // buy to close
	DirectionSTO Direction = "STO" // sell to open
	DirectionSTC Direction = "STC" // sell to close
)

// IsBuySide reports whether the direction is a buy (BTO/BTC).
func (d Direction) IsBuySide() bool {
	return d == DirectionBTO || d == DirectionBTC
}

// Classification tags assigned by the backend
const (
	ClassSweep   = "SWEEP"
	ClassBlock   = "BLOCK"
	ClassNotable = "NOTABLE"
)

// Greeks are the optional option sensitivities attached to a flow event.
type Greeks struct {
	Delta      float64 `json:"delta"`
	Gamma      float64 `json:"gamma"`
	Theta      float64 `json:"theta"`
	ImpliedVol float64 `json:"impliedVol"`
}

// FlowEvent represents one classified trade or print from the stream.
//
// Key Fields:
//   - Seq: arrival order assigned on receipt, strictly increasing per process
//   - Timestamp: the timestamp embedded by the backend, may be empty or duplicated
//   - VolOIRatio: volume over open interest, nil when the backend omitted it
//   - Greeks: nil when the backend omitted them
type FlowEvent struct {
	Seq             uint64    `json:"seq"`
	ReceivedAt      time.Time `json:"receivedAt"`
	Kind            EventKind `json:"type"`
	Symbol          string    `json:"symbol"`
	ContractID      string    `json:"conid,omitempty"`
	Direction       Direction `json:"direction"`
	Size            float64   `json:"size"`
	Premium         float64   `json:"premium"`
	Strike          float64   `json:"strike"`
	OptionType      string    `json:"optionType"`
	StanceScore     float64   `json:"stanceScore"`
	StanceLabel     string    `json:"stanceLabel"`
	Confidence      float64   `json:"confidence"`
	Classifications []string  `json:"classifications,omitempty"`
	VolOIRatio      *float64  `json:"volOiRatio,omitempty"`
	Greeks          *Greeks   `json:"greeks,omitempty"`
	Timestamp       string    `json:"timestamp,omitempty"`
}

// HasClassification reports whether the event carries the given tag (case-insensitive).
func (e FlowEvent) HasClassification(tag string) bool {
	for _, c := range e.Classifications {
		if strings.EqualFold(c, tag) {
			return true
		}
	}
	return false
}

// PremiumMillions returns the premium in millions of dollars.
func (e FlowEvent) PremiumMillions() float64 {
	return e.Premium / 1_000_000
}

// HighVolOI reports whether volume exceeds twice the open interest.
func (e FlowEvent) HighVolOI() bool {
	return e.VolOIRatio != nil && *e.VolOIRatio >= 2
}

// Label returns the stance label, NEUTRAL when the backend sent none.
func (e FlowEvent) Label() string {
	if e.StanceLabel == "" {
		return "NEUTRAL"
	}
	return e.StanceLabel
}

// PositionStatus is the lifecycle state of a backend position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "OPEN"
	StatusClosed PositionStatus = "CLOSED"
)

// TradeSide is the side accepted by the simulate endpoint.
type TradeSide string

const (
	SideBull TradeSide = "BULL"
	SideBear TradeSide = "BEAR"
)

// Valid reports whether the side is BULL or BEAR.
func (s TradeSide) Valid() bool {
	return s == SideBull || s == SideBear
}

// SubscribeMessage is sent once per connection to declare the symbol universe.
type SubscribeMessage struct {
	Action         string   `json:"action"`
	FuturesSymbols []string `json:"futuresSymbols"`
	EquitySymbols  []string `json:"equitySymbols"`
}

// NewSubscribeMessage builds a subscribe message, never emitting null symbol lists.
func NewSubscribeMessage(futures, equities []string) SubscribeMessage {
	msg := SubscribeMessage{
		Action:         "subscribe",
		FuturesSymbols: append([]string{}, futures...),
		EquitySymbols:  append([]string{}, equities...),
	}
	return msg
}
