package database

import (
	"time"

	"github.com/lib/pq"

	"options-flow-tracker/models"
)

// FlowEventRecord is one archived flow event
type FlowEventRecord struct {
	ID              int64          `gorm:"primaryKey;autoIncrement"`
	Seq             uint64         `gorm:"not null;index"`
	ReceivedAt      time.Time      `gorm:"not null;index"`
	Kind            string         `gorm:"type:varchar(16);not null"`
	Symbol          string         `gorm:"type:varchar(32);not null;index"`
	ContractID      string         `gorm:"column:conid;type:varchar(64)"`
	Direction       string         `gorm:"type:varchar(8)"`
	Size            float64        `gorm:"type:decimal(18,4)"`
	Premium         float64        `gorm:"type:decimal(18,2)"`
	Strike          float64        `gorm:"type:decimal(18,4)"`
	OptionType      string         `gorm:"type:varchar(8)"`
	StanceScore     float64        `gorm:"type:decimal(8,2)"`
	StanceLabel     string         `gorm:"type:varchar(32)"`
	Confidence      float64        `gorm:"type:decimal(5,2)"`
	Classifications pq.StringArray `gorm:"type:text[]"`
	VolOIRatio      *float64       `gorm:"column:vol_oi_ratio;type:decimal(10,4)"`
	Delta           *float64       `gorm:"type:decimal(8,4)"`
	Gamma           *float64       `gorm:"type:decimal(8,4)"`
	Theta           *float64       `gorm:"type:decimal(8,4)"`
	ImpliedVol      *float64       `gorm:"type:decimal(8,4)"`
	EventTimestamp  string         `gorm:"type:varchar(64)"`
}

// TableName specifies the table name for FlowEventRecord
func (FlowEventRecord) TableName() string {
	return "flow_events"
}

// NewFlowEventRecord converts a flow event into its archive row
func NewFlowEventRecord(ev models.FlowEvent) FlowEventRecord {
	rec := FlowEventRecord{
		Seq:             ev.Seq,
		ReceivedAt:      ev.ReceivedAt,
		Kind:            string(ev.Kind),
		Symbol:          ev.Symbol,
		ContractID:      ev.ContractID,
		Direction:       string(ev.Direction),
		Size:            ev.Size,
		Premium:         ev.Premium,
		Strike:          ev.Strike,
		OptionType:      ev.OptionType,
		StanceScore:     ev.StanceScore,
		StanceLabel:     ev.Label(),
		Confidence:      ev.Confidence,
		Classifications: pq.StringArray(append([]string{}, ev.Classifications...)),
		VolOIRatio:      ev.VolOIRatio,
		EventTimestamp:  ev.Timestamp,
	}
	if ev.Greeks != nil {
		g := *ev.Greeks
		rec.Delta, rec.Gamma, rec.Theta, rec.ImpliedVol = &g.Delta, &g.Gamma, &g.Theta, &g.ImpliedVol
	}
	return rec
}
