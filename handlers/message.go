package handlers

import (
	"time"

	"options-flow-tracker/models"
)

// Message is a decoded inbound stream message. The set of implementations is closed:
// *FlowMessage and *LifecycleMessage.
type Message interface {
	Kind() models.EventKind
	isMessage()
}

// FlowMessage carries a TRADE or PRINT payload
type FlowMessage struct {
	Event models.FlowEvent
}

// Kind returns the message kind
func (m *FlowMessage) Kind() models.EventKind { return m.Event.Kind }

func (*FlowMessage) isMessage() {}

// LifecycleMessage signals a server-side trade state change. Only the kind tag is parsed.
type LifecycleMessage struct {
	Type       models.EventKind
	Seq        uint64
	ReceivedAt time.Time
}

// Kind returns the message kind
func (m *LifecycleMessage) Kind() models.EventKind { return m.Type }

func (*LifecycleMessage) isMessage() {}
