package handlers

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"options-flow-tracker/models"
)

// Default detection thresholds
const (
	DefaultMinSweepPremium = 250_000.0   // Sweeps at or above this premium alert
	DefaultMinBlockPremium = 500_000.0   // Blocks at or above this premium alert
	DefaultMinPremium      = 1_000_000.0 // Any flow at or above this premium alerts
)

// AlertSink receives detected alerts. Implementations must not block.
type AlertSink interface {
	SendAlert(alert models.FlowAlert)
}

// AlertThresholds configures the flow alert detector
type AlertThresholds struct {
	MinSweepPremium float64
	MinBlockPremium float64
	MinPremium      float64
}

// DefaultAlertThresholds returns the default detection thresholds
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		MinSweepPremium: DefaultMinSweepPremium,
		MinBlockPremium: DefaultMinBlockPremium,
		MinPremium:      DefaultMinPremium,
	}
}

// FlowAlertHandler detects large flow and trade lifecycle changes and forwards them as alerts
type FlowAlertHandler struct {
	thresholds AlertThresholds
	sink       AlertSink
	log        *logrus.Entry
	now        func() time.Time
}

// NewFlowAlertHandler creates the alert handler
func NewFlowAlertHandler(thresholds AlertThresholds, sink AlertSink, logger *logrus.Logger) *FlowAlertHandler {
	return &FlowAlertHandler{
		thresholds: thresholds,
		sink:       sink,
		log:        logger.WithField("component", "alerts"),
		now:        time.Now,
	}
}

// Handle implements MessageHandler
func (h *FlowAlertHandler) Handle(msg Message) error {
	switch m := msg.(type) {
	case *FlowMessage:
		alertType, ok := h.Detect(m.Event)
		if !ok {
			return nil
		}
		alert := models.FlowAlert{
			AlertType:       alertType,
			DetectedAt:      h.now(),
			Kind:            m.Event.Kind,
			Symbol:          m.Event.Symbol,
			Direction:       m.Event.Direction,
			OptionType:      m.Event.OptionType,
			Strike:          m.Event.Strike,
			Size:            m.Event.Size,
			Premium:         m.Event.Premium,
			StanceScore:     m.Event.StanceScore,
			Confidence:      m.Event.Confidence,
			Classifications: m.Event.Classifications,
		}
		h.log.Infof("🐋 %s %s %s premium=%.0f", alertType, alert.Symbol, alert.Direction, alert.Premium)
		h.sink.SendAlert(alert)

	case *LifecycleMessage:
		h.sink.SendAlert(models.FlowAlert{
			AlertType:  models.AlertLifecycle,
			DetectedAt: h.now(),
			Kind:       m.Type,
		})

	default:
		return fmt.Errorf("alerts: unexpected message %T", msg)
	}
	return nil
}

// Detect classifies a flow event, reporting whether it is alert-worthy
func (h *FlowAlertHandler) Detect(ev models.FlowEvent) (string, bool) {
	switch {
	case ev.HasClassification(models.ClassSweep) && ev.Premium >= h.thresholds.MinSweepPremium:
		return models.AlertLargeSweep, true
	case ev.HasClassification(models.ClassBlock) && ev.Premium >= h.thresholds.MinBlockPremium:
		return models.AlertLargeBlock, true
	case h.thresholds.MinPremium > 0 && ev.Premium >= h.thresholds.MinPremium:
		return models.AlertPremium, true
	default:
		return "", false
	}
}

// Kinds implements MessageHandler
func (h *FlowAlertHandler) Kinds() []models.EventKind {
	kinds := append([]models.EventKind{}, models.FlowKinds...)
	return append(kinds, models.LifecycleKinds...)
}
