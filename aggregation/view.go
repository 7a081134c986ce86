package aggregation

import (
	"options-flow-tracker/buffer"
	"options-flow-tracker/helpers"
	"options-flow-tracker/models"
)

// FlowRow is a flow event prepared for the live feed.
// Label replaces an empty stance label with NEUTRAL.
type FlowRow struct {
	Key    string `json:"key"`
	Stance Stance `json:"stance"`
	models.FlowEvent
	Label           string  `json:"label"`
	PremiumMillions float64 `json:"premiumMillions"`
	PremiumDisplay  string  `json:"premiumDisplay"`
	BuySide         bool    `json:"buySide"`
	HighVolOI       bool    `json:"highVolOi"`
}

// OpenPositionRow is an OPEN position with its unrealized percent move
type OpenPositionRow struct {
	models.Position
	PercentPnl float64 `json:"percentPnl"`
}

// View is everything the display derives from the buffer and the snapshot
type View struct {
	Flows         []FlowRow                  `json:"flows"`
	Sentiment     map[string]SentimentCounts `json:"sentiment"`
	SentimentRows []SymbolSentiment          `json:"sentimentRows"`
	Stats         DerivedStats               `json:"stats"`
	PnlSeries     []PnlPoint                 `json:"pnlSeries"`
	OpenPositions []OpenPositionRow          `json:"openPositions"`
}

// Compute builds the full view. flows must be newest first.
//
// Closed-trade statistics come from the snapshot's recentOrders and the open count from its
// positions; the P&L series follows positions. The two collections are never assumed equal.
func Compute(flows []models.FlowEvent, snap *models.Snapshot, th Thresholds) View {
	sentiment := ComputeSentiment(flows, th)
	view := View{
		Flows:         FlowRows(flows, th),
		Sentiment:     sentiment,
		SentimentRows: SentimentRows(sentiment),
		PnlSeries:     []PnlPoint{},
		OpenPositions: []OpenPositionRow{},
	}
	if snap == nil {
		return view
	}

	closedStats := ComputeStats(snap.RecentOrders)
	openStats := ComputeStats(snap.Positions)
	view.Stats = DerivedStats{
		TotalPnL:      closedStats.TotalPnL,
		WinRate:       closedStats.WinRate,
		TotalTrades:   closedStats.TotalTrades,
		OpenPositions: openStats.OpenPositions,
	}
	view.PnlSeries = ComputePnlSeries(snap.Positions)
	view.OpenPositions = OpenPositionRows(snap.Positions)
	return view
}

// FlowRows attaches display keys and stance bands to a newest-first window
func FlowRows(flows []models.FlowEvent, th Thresholds) []FlowRow {
	rows := make([]FlowRow, len(flows))
	for i, ev := range flows {
		rows[i] = FlowRow{
			Key:             buffer.EventKey(ev, i),
			Stance:          th.Classify(ev.StanceScore),
			FlowEvent:       ev,
			Label:           ev.Label(),
			PremiumMillions: ev.PremiumMillions(),
			PremiumDisplay:  helpers.FormatPremium(ev.Premium),
			BuySide:         ev.Direction.IsBuySide(),
			HighVolOI:       ev.HighVolOI(),
		}
	}
	return rows
}

// OpenPositionRows filters to OPEN positions, preserving order
func OpenPositionRows(positions []models.Position) []OpenPositionRow {
	rows := make([]OpenPositionRow, 0, len(positions))
	for _, p := range positions {
		if p.IsOpen() {
			rows = append(rows, OpenPositionRow{Position: p, PercentPnl: p.PercentPnl()})
		}
	}
	return rows
}
