package models

import "time"

// Alert types raised by the flow alert detector
const (
	AlertLargeSweep = "LARGE_SWEEP"
	AlertLargeBlock = "LARGE_BLOCK"
	AlertPremium    = "LARGE_PREMIUM"
	AlertLifecycle  = "TRADE_LIFECYCLE"
)

// FlowAlert is a notable flow event or trade lifecycle change worth notifying about
type FlowAlert struct {
	AlertType       string    `json:"alertType"`
	DetectedAt      time.Time `json:"detectedAt"`
	Kind            EventKind `json:"kind"`
	Symbol          string    `json:"symbol,omitempty"`
	Direction       Direction `json:"direction,omitempty"`
	OptionType      string    `json:"optionType,omitempty"`
	Strike          float64   `json:"strike,omitempty"`
	Size            float64   `json:"size,omitempty"`
	Premium         float64   `json:"premium,omitempty"`
	StanceScore     float64   `json:"stanceScore,omitempty"`
	Confidence      float64   `json:"confidence,omitempty"`
	Classifications []string  `json:"classifications,omitempty"`
}
